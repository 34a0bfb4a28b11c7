package library

import "fmt"

// RequiredSchema lists the calibre tables and columns the store reads and writes.
var RequiredSchema = map[string][]string{
	"library_id":            {"uuid"},
	"books":                 {"id", "title", "sort", "pubdate", "series_index", "author_sort", "path", "uuid", "has_cover", "last_modified"},
	"authors":               {"id", "name", "sort"},
	"books_authors_link":    {"book", "author"},
	"publishers":            {"id", "name"},
	"books_publishers_link": {"book", "publisher"},
	"series":                {"id", "name"},
	"books_series_link":     {"book", "series"},
	"tags":                  {"id", "name"},
	"books_tags_link":       {"book", "tag"},
	"comments":              {"book", "text"},
	"data":                  {"book", "format", "name"},
	"custom_columns":        {"id", "label", "datatype", "is_multiple", "normalized"},
}

// Schema is the subset of the calibre schema the store works with, including
// the triggers that call calibre's SQL functions.
var Schema = []string{
	`CREATE TABLE library_id (id INTEGER PRIMARY KEY, uuid TEXT NOT NULL, UNIQUE(uuid))`,
	`CREATE TABLE books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL DEFAULT 'Unknown' COLLATE NOCASE,
		sort TEXT COLLATE NOCASE,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		pubdate TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		series_index REAL NOT NULL DEFAULT 1.0,
		author_sort TEXT COLLATE NOCASE,
		isbn TEXT DEFAULT '' COLLATE NOCASE,
		lccn TEXT DEFAULT '' COLLATE NOCASE,
		path TEXT NOT NULL DEFAULT '',
		flags INTEGER NOT NULL DEFAULT 1,
		uuid TEXT,
		has_cover BOOL DEFAULT 0,
		last_modified TIMESTAMP NOT NULL DEFAULT '2000-01-01 00:00:00+00:00'
	)`,
	`CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT NOT NULL COLLATE NOCASE, sort TEXT COLLATE NOCASE, link TEXT NOT NULL DEFAULT '', UNIQUE(name))`,
	`CREATE TABLE books_authors_link (id INTEGER PRIMARY KEY, book INTEGER NOT NULL, author INTEGER NOT NULL, UNIQUE(book, author))`,
	`CREATE TABLE publishers (id INTEGER PRIMARY KEY, name TEXT NOT NULL COLLATE NOCASE, sort TEXT COLLATE NOCASE, link TEXT NOT NULL DEFAULT '', UNIQUE(name))`,
	`CREATE TABLE books_publishers_link (id INTEGER PRIMARY KEY, book INTEGER NOT NULL, publisher INTEGER NOT NULL, UNIQUE(book))`,
	`CREATE TABLE series (id INTEGER PRIMARY KEY, name TEXT NOT NULL COLLATE NOCASE, sort TEXT COLLATE NOCASE, link TEXT NOT NULL DEFAULT '', UNIQUE(name))`,
	`CREATE TABLE books_series_link (id INTEGER PRIMARY KEY, book INTEGER NOT NULL, series INTEGER NOT NULL, UNIQUE(book))`,
	`CREATE TABLE tags (id INTEGER PRIMARY KEY, name TEXT NOT NULL COLLATE NOCASE, link TEXT NOT NULL DEFAULT '', UNIQUE(name))`,
	`CREATE TABLE books_tags_link (id INTEGER PRIMARY KEY, book INTEGER NOT NULL, tag INTEGER NOT NULL, UNIQUE(book, tag))`,
	`CREATE TABLE comments (id INTEGER PRIMARY KEY, book INTEGER NOT NULL, text TEXT NOT NULL COLLATE NOCASE, UNIQUE(book))`,
	`CREATE TABLE data (id INTEGER PRIMARY KEY, book INTEGER NOT NULL, format TEXT NOT NULL COLLATE NOCASE, uncompressed_size INTEGER NOT NULL, name TEXT NOT NULL, UNIQUE(book, format))`,
	`CREATE TABLE custom_columns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		label TEXT NOT NULL,
		name TEXT NOT NULL,
		datatype TEXT NOT NULL,
		mark_for_delete BOOL DEFAULT 0 NOT NULL,
		editable BOOL DEFAULT 1 NOT NULL,
		display TEXT DEFAULT '{}' NOT NULL,
		is_multiple BOOL DEFAULT 0 NOT NULL,
		normalized BOOL NOT NULL,
		UNIQUE(label)
	)`,
	`CREATE TRIGGER books_insert_trg AFTER INSERT ON books
	BEGIN
		UPDATE books SET sort=title_sort(NEW.title),uuid=uuid4() WHERE id=NEW.id;
	END`,
	`CREATE TRIGGER books_update_trg AFTER UPDATE ON books
	BEGIN
		UPDATE books SET sort=title_sort(NEW.title) WHERE id=NEW.id AND OLD.title <> NEW.title;
	END`,
}

// CustomColumnSchema returns the tables backing custom column id.
func CustomColumnSchema(id int64, normalized bool) []string {
	if !normalized {
		return []string{
			fmt.Sprintf(`CREATE TABLE custom_column_%d (id INTEGER PRIMARY KEY, book INTEGER, value TEXT NOT NULL COLLATE NOCASE, UNIQUE(book))`, id),
		}
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE custom_column_%d (id INTEGER PRIMARY KEY, value TEXT NOT NULL COLLATE NOCASE, link TEXT NOT NULL DEFAULT '', UNIQUE(value))`, id),
		fmt.Sprintf(`CREATE TABLE books_custom_column_%d_link (id INTEGER PRIMARY KEY, book INTEGER NOT NULL, value INTEGER NOT NULL, UNIQUE(book, value))`, id),
	}
}
