// Package utils provides common utility functions for marvin-sync.
// It includes the loose type conversions used when scanning SQLite rows whose
// column affinity is not guaranteed (the reader app and calibre both store
// numbers as text in places).
package utils
