// Package librarytest writes calibre libraries for tests.
package librarytest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"marvin-sync/core/database"
	"marvin-sync/feature/library"

	"gorm.io/gorm"
)

// LibraryUUID is the library_id of every fixture library.
const LibraryUUID = "0d9cbd8c-5f6e-4e0b-a7c3-2f3f1f0a1b2c"

// Book is a library book to insert.
type Book struct {
	Title       string
	Authors     []string
	UUID        string
	Publisher   string
	Pubdate     string
	Series      string
	SeriesIndex float64
	Tags        []string
	Comments    string
	// EPUB is written as the book's EPUB file when set.
	EPUB []byte
	// Cover is written as cover.jpg when set.
	Cover []byte
}

// Library is a fixture library on disk.
type Library struct {
	t    *testing.T
	Root string
	DB   *gorm.DB
}

// Create writes an empty library into a temp folder.
func Create(t *testing.T) *Library {
	t.Helper()
	root := t.TempDir()

	db, err := database.Connect(database.Config{Path: filepath.Join(root, library.MetadataFile)})
	if err != nil {
		t.Fatalf("open fixture library: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	for _, stmt := range library.Schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create fixture schema: %v", err)
		}
	}
	l := &Library{t: t, Root: root, DB: db}
	l.exec(`INSERT INTO library_id (uuid) VALUES (?)`, LibraryUUID)
	return l
}

func (l *Library) exec(query string, args ...any) {
	l.t.Helper()
	if err := l.DB.Exec(query, args...).Error; err != nil {
		l.t.Fatalf("fixture: %s: %v", strings.Fields(query)[0], err)
	}
}

func (l *Library) id(query string, args ...any) int64 {
	l.t.Helper()
	var id int64
	if err := l.DB.Raw(query, args...).Scan(&id).Error; err != nil {
		l.t.Fatalf("fixture lookup: %v", err)
	}
	return id
}

// Add inserts a book and writes its files. It returns the book id.
func (l *Library) Add(b Book) int64 {
	l.t.Helper()
	if len(b.Authors) == 0 {
		b.Authors = []string{"Unknown"}
	}
	if b.SeriesIndex == 0 {
		b.SeriesIndex = 1
	}
	pubdate := b.Pubdate
	if pubdate == "" {
		pubdate = "0101-01-01 00:00:00+00:00"
	}

	l.exec(`INSERT INTO books (title, series_index, author_sort, pubdate, has_cover, last_modified) VALUES (?, ?, ?, ?, ?, ?)`,
		b.Title, b.SeriesIndex, b.Authors[0], pubdate, len(b.Cover) > 0, "2024-01-01 00:00:00+00:00")
	id := l.id(`SELECT MAX(id) FROM books`)

	dir := fmt.Sprintf("%s/%s (%d)", b.Authors[0], b.Title, id)
	l.exec(`UPDATE books SET path = ? WHERE id = ?`, dir, id)
	if b.UUID != "" {
		l.exec(`UPDATE books SET uuid = ? WHERE id = ?`, b.UUID, id)
	}

	for _, a := range b.Authors {
		l.exec(`INSERT OR IGNORE INTO authors (name, sort) VALUES (?, ?)`, a, a)
		l.exec(`INSERT INTO books_authors_link (book, author) VALUES (?, ?)`, id, l.id(`SELECT id FROM authors WHERE name = ?`, a))
	}
	if b.Publisher != "" {
		l.exec(`INSERT OR IGNORE INTO publishers (name) VALUES (?)`, b.Publisher)
		l.exec(`INSERT INTO books_publishers_link (book, publisher) VALUES (?, ?)`, id, l.id(`SELECT id FROM publishers WHERE name = ?`, b.Publisher))
	}
	if b.Series != "" {
		l.exec(`INSERT OR IGNORE INTO series (name, sort) VALUES (?, ?)`, b.Series, b.Series)
		l.exec(`INSERT INTO books_series_link (book, series) VALUES (?, ?)`, id, l.id(`SELECT id FROM series WHERE name = ?`, b.Series))
	}
	for _, tag := range b.Tags {
		l.exec(`INSERT OR IGNORE INTO tags (name) VALUES (?)`, tag)
		l.exec(`INSERT INTO books_tags_link (book, tag) VALUES (?, ?)`, id, l.id(`SELECT id FROM tags WHERE name = ?`, tag))
	}
	if b.Comments != "" {
		l.exec(`INSERT INTO comments (book, text) VALUES (?, ?)`, id, b.Comments)
	}

	hostDir := filepath.Join(l.Root, filepath.FromSlash(dir))
	if err := os.MkdirAll(hostDir, 0o755); err != nil {
		l.t.Fatalf("fixture dir: %v", err)
	}
	if b.EPUB != nil {
		name := fmt.Sprintf("%s - %s", b.Title, b.Authors[0])
		l.write(filepath.Join(hostDir, name+".epub"), b.EPUB)
		l.exec(`INSERT INTO data (book, format, uncompressed_size, name) VALUES (?, 'EPUB', ?, ?)`, id, len(b.EPUB), name)
	}
	if b.Cover != nil {
		l.write(filepath.Join(hostDir, "cover.jpg"), b.Cover)
	}
	return id
}

// UUID returns the uuid of book id.
func (l *Library) UUID(id int64) string {
	l.t.Helper()
	var uuid string
	if err := l.DB.Raw(`SELECT uuid FROM books WHERE id = ?`, id).Scan(&uuid).Error; err != nil {
		l.t.Fatalf("fixture uuid: %v", err)
	}
	return uuid
}

// AddCustomField creates a custom column and returns its id.
func (l *Library) AddCustomField(label, datatype string, multiple, normalized bool) int64 {
	l.t.Helper()
	l.exec(`INSERT INTO custom_columns (label, name, datatype, is_multiple, normalized) VALUES (?, ?, ?, ?, ?)`,
		label, label, datatype, multiple, normalized)
	id := l.id(`SELECT id FROM custom_columns WHERE label = ?`, label)
	for _, stmt := range library.CustomColumnSchema(id, normalized) {
		l.exec(stmt)
	}
	return id
}

func (l *Library) write(path string, data []byte) {
	l.t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		l.t.Fatalf("fixture file: %v", err)
	}
}
