// Package store defines interfaces for persisting crawl output: the record
// sink the run manager writes to and the read side served by the HTTP API.
// Implementations live in internal/storage; this package must not import
// database drivers or concrete clients.
package store
