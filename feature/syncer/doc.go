// Package syncer runs a device session against the desktop library.
//
// # Full sync
//
// FullSync builds the library index and scans the device concurrently, then
// runs the match engine over every device book. The result is the record set
// every other operation works on.
//
// # Mutating operations
//
// Metadata export, collection and flag updates, deletion, annotation fetch and
// Deep View requests each issue one command through core/protocol. Once the
// app reports completion the snapshot is pulled again, the touched books are
// re-read and all records are re-classified.
//
// Batch operations return a BatchReport: a failing book is recorded and the
// rest of the batch goes on.
//
// # HTTP
//
// Handler exposes the session under /sync for the host UI.
package syncer
