// Package reconcile matches device books against the desktop library and plans
// metadata writes between them.
//
// # Matching
//
// Engine.Run works in four steps over the device records, ordered by book id:
//
//  1. Hash pass. A record whose content hash is known to the library index is a
//     hard match when its own uuid is among the uuids recorded for that hash; it
//     takes the whole list. Otherwise it is a soft candidate and keeps only its
//     own uuid. A record with an unknown hash but a uuid present in the library
//     is matched on the uuid alone.
//  2. Soft resolution. A soft candidate sharing a hash with hard matches takes
//     the union of their lists, and the hard matches are widened to it.
//  3. Comparison. When a desktop counterpart is known (by uuid, else the single
//     uuid under the record's hash) CompareMetadata fills Mismatches.
//  4. Classification. Classify maps the facts of each record to a MatchQuality.
//
// # Classification
//
// The first rule that holds wins:
//
//	GREEN   uuid set, matches is exactly [uuid], no mismatches
//	YELLOW  on primary location with mismatches, or matches is exactly [uuid]
//	ORANGE  uuid is among several matches
//	RED     content hash shared by more than one unmatched device book
//	WHITE   anything else
//
// # Index cache
//
// IndexCache keeps the library index until the library uuid or its modification
// timestamp changes. Concurrent requests for a missing index share one build.
//
// # Plans
//
// BuildPlan turns recorded mismatches into per-book field changes for export
// (desktop to device) or import (device to desktop). Import never writes the
// uuid or the cover hash.
package reconcile
