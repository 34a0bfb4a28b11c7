// Package model defines the shared data types of the synchronization core: device book
// records, desktop metadata, lookup indices, match qualities and reading flags.
//
// Flags and collections are kept as two typed fields. They are merged into one list
// only at the wire boundary (MergeWire/SplitWire), where the device's historical schema
// interleaves them.
package model
