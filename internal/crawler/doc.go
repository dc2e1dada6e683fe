// Package crawler implements the crawling engine: the per-domain frontier,
// batch dispatch to a bounded worker pool, the politeness delay, title-prefix
// deduplication, and the orchestrator that walks the domain catalog toward a
// target record count.
package crawler
