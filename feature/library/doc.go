// Package library reads and writes a calibre library.
//
// Store wraps metadata.db through gorm and the calibre-compatible sqlite
// driver registered by core/database. Indexer builds the lookup index the
// match engine runs against, hashing each EPUB through the host hash cache.
// Covers turns library covers into the thumbnails the device displays.
package library
