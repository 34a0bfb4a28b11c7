// Package devicedbtest writes reader app databases for tests.
package devicedbtest

import (
	"database/sql"
	"strings"
	"testing"

	"marvin-sync/core/devicedb"

	_ "modernc.org/sqlite"
)

// Book is a Books row to insert. Zero values are written as NULL where the
// column is nullable.
type Book struct {
	ID            int64
	Title         string
	Author        string
	AuthorSort    string
	TitleSort     string
	UUID          string
	FileName      string
	OnDevice      string
	IsRead        bool
	ReadingList   bool
	NewFlag       bool
	Progress      *float64
	Publisher     string
	DatePublished string
	Series        string
	SeriesIndex   *float64
	Description   string
	CoverHash     string
	DeepView      bool
	Collections   []string
	Subjects      []string
	Highlights    []string
	Vocabulary    []string
	Pinned        []string
	Wiki          []string
}

// DB is a writable fixture database.
type DB struct {
	t           *testing.T
	db          *sql.DB
	collections map[string]int64
}

// Create writes the schema to path. skip lists optional tables to leave out.
func Create(t *testing.T, path string, skip ...string) *DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range strings.Split(devicedb.Schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || skipped(stmt, skip) {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("create fixture schema: %v", err)
		}
	}
	return &DB{t: t, db: db, collections: make(map[string]int64)}
}

func skipped(stmt string, skip []string) bool {
	for _, s := range skip {
		if strings.HasPrefix(stmt, "CREATE TABLE "+s+" ") {
			return true
		}
	}
	return false
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// Insert adds books and their related rows.
func (d *DB) Insert(books ...Book) *DB {
	d.t.Helper()
	for _, b := range books {
		d.exec(`INSERT INTO Books (ID, Title, Author, AuthorSort, CalibreTitleSort, UUID, FileName, OnDevice,
			IsRead, ReadingList, NewFlag, Progress, Publisher, DatePublished, CalibreSeries, CalibreSeriesIndex,
			Description, CalibreCoverHash, DeepViewPrepared) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			b.ID, b.Title, b.Author, nullable(b.AuthorSort), nullable(b.TitleSort), nullable(b.UUID), b.FileName,
			nullable(b.OnDevice), b.IsRead, b.ReadingList, b.NewFlag, nullableFloat(b.Progress),
			nullable(b.Publisher), nullable(b.DatePublished), nullable(b.Series), nullableFloat(b.SeriesIndex),
			nullable(b.Description), nullable(b.CoverHash), b.DeepView)

		for _, name := range b.Collections {
			d.exec(`INSERT INTO BookCollections (BookID, CollectionID) VALUES (?, ?)`, b.ID, d.collection(name))
		}
		for _, s := range b.Subjects {
			d.exec(`INSERT INTO BookSubjects (BookID, Title) VALUES (?, ?)`, b.ID, s)
		}
		for i, h := range b.Highlights {
			d.exec(`INSERT INTO Highlights (BookID, Text, Note, Color, DateCreated) VALUES (?, ?, '', 'yellow', ?)`,
				b.ID, h, "2024-01-0"+string(rune('1'+i%9)))
		}
		for _, w := range b.Vocabulary {
			d.exec(`INSERT INTO Vocabulary (BookID, Word) VALUES (?, ?)`, b.ID, w)
		}
		for _, p := range b.Pinned {
			d.exec(`INSERT INTO PinnedArticles (BookID, Title) VALUES (?, ?)`, b.ID, p)
		}
		for _, w := range b.Wiki {
			d.exec(`INSERT INTO Wiki (BookID, Title) VALUES (?, ?)`, b.ID, w)
		}
	}
	return d
}

// Exec runs an arbitrary statement, for tests that mutate the device state.
func (d *DB) Exec(query string, args ...any) {
	d.t.Helper()
	d.exec(query, args...)
}

// Try runs a statement and returns its error. Unlike Exec it is safe to call
// from goroutines other than the test's.
func (d *DB) Try(query string, args ...any) error {
	_, err := d.db.Exec(query, args...)
	return err
}

func (d *DB) collection(name string) int64 {
	if id, ok := d.collections[name]; ok {
		return id
	}
	res, err := d.db.Exec(`INSERT INTO Collections (Name) VALUES (?)`, name)
	if err != nil {
		d.t.Fatalf("insert collection: %v", err)
	}
	id, _ := res.LastInsertId()
	d.collections[name] = id
	return id
}

func (d *DB) exec(query string, args ...any) {
	if _, err := d.db.Exec(query, args...); err != nil {
		d.t.Fatalf("fixture exec: %v", err)
	}
}

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }
