// Package epub computes the content hash used as a book identity key across the
// desktop library and the device.
//
// The hash is an MD5 over (entry name, uncompressed size) pairs of the text and
// style payload declared in the OPF manifest. Selection is by manifest media
// type, never by file extension. Anything that cannot be parsed hashes to NoHash,
// which callers must treat as matching nothing, itself included.
package epub
