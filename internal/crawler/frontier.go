package crawler

// Frontier is the pending queue of one domain crawl. A URL is queued only
// when it is neither pending nor already claimed in the run-wide tracker, and
// it is claimed when popped. Frontier is owned by a single goroutine.
type Frontier struct {
	pending []string
	queued  map[string]struct{}
	visited *VisitTracker
}

// NewFrontier creates an empty frontier backed by visited.
func NewFrontier(visited *VisitTracker) *Frontier {
	return &Frontier{
		queued:  make(map[string]struct{}),
		visited: visited,
	}
}

// Push normalizes rawURL and queues it. It reports whether the URL was added.
func (f *Frontier) Push(rawURL string) bool {
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}
	if _, ok := f.queued[u]; ok {
		return false
	}
	if f.visited.Seen(u) {
		return false
	}
	f.queued[u] = struct{}{}
	f.pending = append(f.pending, u)
	return true
}

// Pop claims and returns the next pending URL. URLs claimed elsewhere since
// they were queued are skipped.
func (f *Frontier) Pop() (string, bool) {
	for len(f.pending) > 0 {
		u := f.pending[0]
		f.pending[0] = ""
		f.pending = f.pending[1:]
		delete(f.queued, u)
		if f.visited.MarkIfNew(u) {
			return u, true
		}
	}
	return "", false
}

// Len returns the number of pending URLs.
func (f *Frontier) Len() int {
	return len(f.pending)
}
