package crawler

import (
	"net/url"
	"strings"
)

// HostBlocklist rejects discovered links whose host matches an exact entry or a
// "*.suffix" / ".suffix" wildcard.
type HostBlocklist struct {
	exact    map[string]struct{}
	suffixes []string
}

// NewHostBlocklist builds a blocklist from patterns. It returns nil when no usable
// pattern is given; a nil blocklist blocks nothing.
func NewHostBlocklist(patterns []string) *HostBlocklist {
	b := &HostBlocklist{exact: make(map[string]struct{})}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		if suffix, ok := wildcardSuffix(value); ok {
			b.addSuffix(suffix)
			continue
		}
		b.exact[value] = struct{}{}
	}
	if len(b.exact) == 0 && len(b.suffixes) == 0 {
		return nil
	}
	return b
}

func wildcardSuffix(value string) (string, bool) {
	for _, prefix := range []string{"*.", "."} {
		if strings.HasPrefix(value, prefix) {
			suffix := strings.TrimPrefix(value, prefix)
			return suffix, suffix != ""
		}
	}
	return "", false
}

func (b *HostBlocklist) addSuffix(suffix string) {
	for _, existing := range b.suffixes {
		if existing == suffix {
			return
		}
	}
	b.suffixes = append(b.suffixes, suffix)
}

// IsBlocked reports whether host is covered by the blocklist.
func (b *HostBlocklist) IsBlocked(host string) bool {
	if b == nil {
		return false
	}
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if _, ok := b.exact[host]; ok {
		return true
	}
	for _, suffix := range b.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// AllowsURL reports whether the URL's host is not blocked.
func (b *HostBlocklist) AllowsURL(rawURL string) bool {
	if b == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return !b.IsBlocked(u.Hostname())
}
