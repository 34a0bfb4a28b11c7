package devicedb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"marvin-sync/core/model"
	"marvin-sync/core/utils"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// BookRow is one row of the Books table with loose SQLite values normalized.
type BookRow struct {
	ID               int64
	Title            string
	Author           string
	AuthorSort       string
	TitleSort        string
	UUID             string
	FileName         string
	OnDevice         string
	IsRead           bool
	ReadingList      bool
	NewFlag          bool
	Progress         *float64
	Publisher        string
	DatePublished    *time.Time
	Series           string
	SeriesIndex      *float64
	Description      string
	CoverHash        string
	DeepViewPrepared bool
	DateAdded        *time.Time
}

// Flags folds the three flag columns into a flag set.
func (r BookRow) Flags() model.Flags {
	var f model.Flags
	if r.IsRead {
		f |= model.FlagRead
	}
	if r.ReadingList {
		f |= model.FlagReadingList
	}
	if r.NewFlag {
		f |= model.FlagNew
	}
	return f
}

// Snapshot is a read-only view of a local copy of the reader app database.
type Snapshot struct {
	db     *sql.DB
	path   string
	tables map[string]bool
	log    *zap.Logger
}

// OpenFile opens a local database file read-only.
func OpenFile(ctx context.Context, path string, log *zap.Logger) (*Snapshot, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open device db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open device db: %w", err)
	}

	s := &Snapshot{db: db, path: path, tables: make(map[string]bool), log: log}
	if err := s.loadTables(ctx); err != nil {
		db.Close()
		return nil, err
	}

	var missing []string
	for _, t := range RequiredTables {
		if !s.tables[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		db.Close()
		return nil, fmt.Errorf("device db %s is missing tables: %s", path, strings.Join(missing, ", "))
	}
	return s, nil
}

func (s *Snapshot) loadTables(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return fmt.Errorf("list device db tables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("list device db tables: %w", err)
		}
		s.tables[name] = true
	}
	return rows.Err()
}

// Path returns the local file backing the snapshot.
func (s *Snapshot) Path() string { return s.path }

// Has reports whether the snapshot contains a table.
func (s *Snapshot) Has(table string) bool { return s.tables[table] }

// Close releases the database handle.
func (s *Snapshot) Close() error {
	return s.db.Close()
}

const bookColumns = `ID, Title, Author, AuthorSort, CalibreTitleSort, UUID, FileName, OnDevice,
	IsRead, ReadingList, NewFlag, Progress, Publisher, DatePublished, CalibreSeries,
	CalibreSeriesIndex, Description, CalibreCoverHash, DeepViewPrepared, DateAdded`

// Books returns every book row ordered by id.
func (s *Snapshot) Books(ctx context.Context) ([]BookRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM Books ORDER BY ID`)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var out []BookRow
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan books: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Book returns a single book row, or sql.ErrNoRows.
func (s *Snapshot) Book(ctx context.Context, id int64) (BookRow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM Books WHERE ID = ?`, id)
	b, err := scanBook(row)
	if err != nil {
		return BookRow{}, fmt.Errorf("query book %d: %w", id, err)
	}
	return b, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(r scanner) (BookRow, error) {
	var v [20]any
	ptrs := make([]any, len(v))
	for i := range v {
		ptrs[i] = &v[i]
	}
	if err := r.Scan(ptrs...); err != nil {
		return BookRow{}, err
	}

	b := BookRow{
		ID:               utils.ToInt64(v[0]),
		Title:            utils.ToString(v[1]),
		Author:           utils.ToString(v[2]),
		AuthorSort:       utils.ToString(v[3]),
		TitleSort:        utils.ToString(v[4]),
		UUID:             strings.TrimSpace(utils.ToString(v[5])),
		FileName:         utils.ToString(v[6]),
		OnDevice:         utils.ToString(v[7]),
		IsRead:           utils.ToBool(v[8]),
		ReadingList:      utils.ToBool(v[9]),
		NewFlag:          utils.ToBool(v[10]),
		Publisher:        utils.ToString(v[12]),
		Series:           utils.ToString(v[14]),
		Description:      utils.ToString(v[16]),
		CoverHash:        utils.ToString(v[17]),
		DeepViewPrepared: utils.ToBool(v[18]),
	}
	if f, ok := utils.ToFloat(v[11]); ok {
		b.Progress = &f
	}
	if t, ok := utils.ToTime(v[13]); ok {
		b.DatePublished = &t
	}
	if f, ok := utils.ToFloat(v[15]); ok {
		b.SeriesIndex = &f
	}
	if t, ok := utils.ToTime(v[19]); ok {
		b.DateAdded = &t
	}
	return b, nil
}

// Collections returns the collection id to name lookup.
func (s *Snapshot) Collections(ctx context.Context) (map[int64]string, error) {
	out := make(map[int64]string)
	err := s.each(ctx, TableCollections, `SELECT ID, Name FROM Collections`, func(v []any) {
		out[utils.ToInt64(v[0])] = utils.ToString(v[1])
	}, 2)
	return out, err
}

// BookCollections returns, per book id, the names of its collections.
func (s *Snapshot) BookCollections(ctx context.Context) (map[int64][]string, error) {
	names, err := s.Collections(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]string)
	err = s.each(ctx, TableBookCollections, `SELECT BookID, CollectionID FROM BookCollections`, func(v []any) {
		name, ok := names[utils.ToInt64(v[1])]
		if !ok {
			return
		}
		id := utils.ToInt64(v[0])
		out[id] = append(out[id], name)
	}, 2)
	return out, err
}

// Highlights returns the annotations per book id in creation order.
func (s *Snapshot) Highlights(ctx context.Context) (map[int64][]model.Highlight, error) {
	out := make(map[int64][]model.Highlight)
	err := s.each(ctx, TableHighlights, `SELECT BookID, Text, Note, Color, DateCreated FROM Highlights ORDER BY BookID, DateCreated`, func(v []any) {
		h := model.Highlight{
			Text:  utils.ToString(v[1]),
			Note:  utils.ToString(v[2]),
			Color: utils.ToString(v[3]),
		}
		if t, ok := utils.ToTime(v[4]); ok {
			h.Created = t
		}
		id := utils.ToInt64(v[0])
		out[id] = append(out[id], h)
	}, 5)
	return out, err
}

// Vocabulary returns the looked-up words per book id.
func (s *Snapshot) Vocabulary(ctx context.Context) (map[int64][]string, error) {
	return s.stringColumn(ctx, TableVocabulary, "Word")
}

// PinnedArticles returns pinned article titles per book id.
func (s *Snapshot) PinnedArticles(ctx context.Context) (map[int64][]string, error) {
	return s.stringColumn(ctx, TablePinnedArticles, "Title")
}

// Wiki returns wiki snippet titles per book id.
func (s *Snapshot) Wiki(ctx context.Context) (map[int64][]string, error) {
	return s.stringColumn(ctx, TableWiki, "Title")
}

// Subjects returns subject tags per book id.
func (s *Snapshot) Subjects(ctx context.Context) (map[int64][]string, error) {
	return s.stringColumn(ctx, TableBookSubjects, "Title")
}

func (s *Snapshot) stringColumn(ctx context.Context, table, column string) (map[int64][]string, error) {
	out := make(map[int64][]string)
	query := fmt.Sprintf(`SELECT BookID, %s FROM %s ORDER BY BookID, rowid`, column, table)
	err := s.each(ctx, table, query, func(v []any) {
		val := utils.ToString(v[1])
		if val == "" {
			return
		}
		id := utils.ToInt64(v[0])
		out[id] = append(out[id], val)
	}, 2)
	return out, err
}

// each runs query and calls fn per row. A missing optional table yields no rows.
func (s *Snapshot) each(ctx context.Context, table, query string, fn func([]any), ncols int) error {
	if !s.tables[table] {
		s.log.Debug("Device db table missing, treating as empty", zap.String("table", table))
		return nil
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	v := make([]any, ncols)
	ptrs := make([]any, ncols)
	for i := range v {
		ptrs[i] = &v[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		fn(v)
	}
	return rows.Err()
}
