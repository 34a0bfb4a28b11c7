// Package hashcache persists content hashes between syncs so unchanged books are
// not copied off the device and rehashed on every connect.
//
// The cache is a zip archive holding one JSON document:
//
//	{"version":1,"entries":{"Documents/a.epub":{"hash":"..","size":123,"mtime":1700000000}}}
//
// Open keeps the archive on the device and works on a local copy; OpenLocal keeps
// it on the host for desktop library hashes. Both degrade rather than fail: a
// folder that cannot be created disables the cache, and an unreadable or corrupt
// archive is treated as empty.
package hashcache
