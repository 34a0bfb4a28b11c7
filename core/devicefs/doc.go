// Package devicefs is the device filesystem collaborator: every read, write and
// copy the sync core performs against the reader app's sandbox goes through FS.
//
// # Backends
//
//   - mount: the sandbox is mounted on the host (ifuse or an app file-sharing
//     mount); served through an afero BasePathFs so paths cannot escape it.
//   - object: a sync agent mirrors the sandbox into an S3/MinIO bucket; served
//     through core/storage.
//
// Device paths are POSIX-style and relative to the sandbox root ("Documents/x.epub",
// "Library/calibre/marvin.cmd"). Clean normalizes them. Missing files surface as
// errors wrapping ErrNotExist on both backends.
//
// Local() is the host scratch filesystem used for the CopyToDevice and
// CopyFromDevice staging copies (hash cache archive, database snapshot, books
// being hashed).
package devicefs
