// Package extract turns fetched pages into crawl output: outgoing links, a
// field classification, and the structured record.
package extract
