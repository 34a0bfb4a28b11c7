// Package storage wraps the MinIO client used by the object backend of the device
// filesystem, where the reader app's sandbox is mirrored into an S3 bucket by a
// sync agent instead of being mounted locally.
//
// The Client interface is intentionally narrow so core/storage/mocks can stand in
// for it in tests.
package storage
