// Package integrity checks that both sides of a sync are usable.
//
// # Checks Provided
//
//   - Device: the sandbox folders sync writes to exist (Documents, the command
//     staging folder, the hash cache folder). Missing folders can be created.
//   - Files: the app database and preferences are present and non-empty.
//   - Library: metadata.db has every table and column the store touches, and
//     the custom fields named in the sync configuration exist.
//
// # HTTP Endpoints
//
//   - GET /integrity : Runs all checks.
//   - GET /integrity/device : Runs the folder check (supports ?fix=true).
//   - GET /integrity/files : Runs the app files check.
//   - GET /integrity/library : Runs the library schema check.
package integrity
