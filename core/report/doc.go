// Package report renders the device record set for people: a JSON or YAML
// document, or a printable PDF table.
package report
