package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"marvin-sync/core/database"
	"marvin-sync/core/logger"
	"marvin-sync/core/model"
	"marvin-sync/core/utils"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned for unknown book ids.
	ErrNotFound = errors.New("book not found")
	// ErrNoCover is returned when a book has no cover image.
	ErrNoCover = errors.New("book has no cover")
	// ErrUnknownField is returned for custom field labels the library does not define.
	ErrUnknownField = errors.New("unknown custom field")
)

const (
	// MetadataFile is the calibre database inside the library root.
	MetadataFile = "metadata.db"
	coverFile    = "cover.jpg"

	timeLayout = "2006-01-02 15:04:05-07:00"
	// last_modified keeps microseconds so edits within one second stay ordered
	modifiedLayout = "2006-01-02 15:04:05.999999-07:00"
	// calibre's "no date" value
	undefinedDate = "0101-01-01 00:00:00+00:00"

	queryChunk = 500
)

// Store reads and writes book metadata in a calibre library.
type Store struct {
	db   *gorm.DB
	fs   afero.Fs
	root string
	log  *zap.Logger
}

// NewStore wraps an open library database. fs serves the files under root.
func NewStore(db *gorm.DB, fs afero.Fs, root string, log *zap.Logger) *Store {
	return &Store{db: db, fs: fs, root: root, log: logger.Component(log, "library")}
}

// Open connects to the library at cfg.Root and verifies its schema.
func Open(cfg Config, log *zap.Logger) (*Store, error) {
	db, err := database.Connect(database.Config{
		Driver:         "sqlite",
		Path:           filepath.Join(cfg.Root, MetadataFile),
		ReadOnly:       cfg.ReadOnly,
		TimeoutSeconds: cfg.TimeoutSeconds,
	})
	if err != nil {
		return nil, err
	}

	s := NewStore(db, afero.NewOsFs(), cfg.Root, log)
	if err := s.Verify(); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("library %s: %w", cfg.Root, err)
	}
	return s, nil
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB { return s.db }

// Root returns the library folder.
func (s *Store) Root() string { return s.root }

// Close releases the database.
func (s *Store) Close() error { return database.Close(s.db) }

// Verify checks that the library carries every table and column the store uses.
func (s *Store) Verify() error {
	return database.RequireColumns(s.db, RequiredSchema)
}

// Identity returns the library uuid and its last modification time: the later
// of the newest book change and the database file's mtime.
func (s *Store) Identity(ctx context.Context) (model.LibraryIdentity, error) {
	db := s.db.WithContext(ctx)

	var id model.LibraryIdentity
	if err := db.Raw("SELECT uuid FROM library_id LIMIT 1").Scan(&id.UUID).Error; err != nil {
		return id, fmt.Errorf("failed to read library id: %w", err)
	}

	var last sql.NullString
	if err := db.Raw("SELECT MAX(last_modified) FROM books").Scan(&last).Error; err != nil {
		return id, fmt.Errorf("failed to read library modification time: %w", err)
	}
	if t, ok := utils.ToTime(last.String); last.Valid && ok {
		id.LastModified = t
	}

	if info, err := s.fs.Stat(filepath.Join(s.root, MetadataFile)); err == nil {
		if mt := info.ModTime().UTC(); mt.After(id.LastModified) {
			id.LastModified = mt
		}
	}
	return id, nil
}

// SearchIDs returns the ids of the books having a file in format, ascending.
func (s *Store) SearchIDs(ctx context.Context, format string) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Raw("SELECT DISTINCT book FROM data WHERE UPPER(format) = ? ORDER BY book", strings.ToUpper(format)).
		Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search %s books: %w", format, err)
	}
	return ids, nil
}

// GetMetadata returns one book's metadata.
func (s *Store) GetMetadata(ctx context.Context, id int64) (*model.Metadata, error) {
	all, err := s.ListMetadata(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	md, ok := all[id]
	if !ok {
		return nil, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	return md, nil
}

// ListMetadata loads the metadata of several books. Unknown ids are left out.
func (s *Store) ListMetadata(ctx context.Context, ids []int64) (map[int64]*model.Metadata, error) {
	out := make(map[int64]*model.Metadata, len(ids))
	db := s.db.WithContext(ctx)

	for _, chunk := range chunks(ids, queryChunk) {
		var books []Book
		if err := db.Where("id IN ?", chunk).Find(&books).Error; err != nil {
			return nil, fmt.Errorf("failed to load books: %w", err)
		}
		for _, b := range books {
			out[b.ID] = b.metadata()
		}

		lists := []struct {
			query string
			apply func(md *model.Metadata, value string)
		}{
			{
				`SELECT l.book AS book, a.name AS value FROM books_authors_link l JOIN authors a ON a.id = l.author WHERE l.book IN ? ORDER BY l.id`,
				func(md *model.Metadata, v string) { md.Authors = append(md.Authors, v) },
			},
			{
				`SELECT l.book AS book, p.name AS value FROM books_publishers_link l JOIN publishers p ON p.id = l.publisher WHERE l.book IN ?`,
				func(md *model.Metadata, v string) { md.Publisher = v },
			},
			{
				`SELECT l.book AS book, s.name AS value FROM books_series_link l JOIN series s ON s.id = l.series WHERE l.book IN ?`,
				func(md *model.Metadata, v string) { md.Series = v },
			},
			{
				`SELECT l.book AS book, t.name AS value FROM books_tags_link l JOIN tags t ON t.id = l.tag WHERE l.book IN ? ORDER BY t.name`,
				func(md *model.Metadata, v string) { md.Tags = append(md.Tags, v) },
			},
			{
				`SELECT book, text AS value FROM comments WHERE book IN ?`,
				func(md *model.Metadata, v string) { md.Comments = v },
			},
		}

		for _, l := range lists {
			var rows []valueRow
			if err := db.Raw(l.query, chunk).Scan(&rows).Error; err != nil {
				return nil, fmt.Errorf("failed to load book metadata: %w", err)
			}
			for _, r := range rows {
				if md, ok := out[r.Book]; ok {
					l.apply(md, r.Value)
				}
			}
		}
	}

	for _, md := range out {
		md.Tags = model.NormalizeSet(md.Tags)
	}
	return out, nil
}

func (b Book) metadata() *model.Metadata {
	md := &model.Metadata{
		ID:          b.ID,
		UUID:        b.UUID,
		Title:       b.Title,
		TitleSort:   b.Sort,
		AuthorSort:  b.AuthorSort,
		SeriesIndex: b.SeriesIndex,
		Path:        b.Path,
		HasCover:    b.HasCover,
	}
	if b.Pubdate != nil {
		if t, ok := utils.ToTime(*b.Pubdate); ok && t.Year() > 101 {
			md.Pubdate = &t
		}
	}
	if t, ok := utils.ToTime(b.LastModified); ok {
		md.LastModified = t
	}
	return md
}

// SetMetadata writes the listed fields of md to book id in one transaction.
// The cover hash is not a library field and is ignored.
func (s *Store) SetMetadata(ctx context.Context, id int64, md *model.Metadata, fields []string) error {
	want := make(map[string]bool, len(fields))
	for _, f := range fields {
		want[f] = true
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireBook(tx, id); err != nil {
			return err
		}

		// Title before title_sort: the update trigger rewrites sort when the title changes.
		for _, field := range model.MetadataFields {
			if !want[field] {
				continue
			}

			var err error
			switch field {
			case model.FieldAuthors:
				err = setAuthors(tx, id, md.Authors)
			case model.FieldAuthorSort:
				err = updateBook(tx, id, "author_sort", md.AuthorSort)
			case model.FieldPubdate:
				err = updateBook(tx, id, "pubdate", formatDate(md.Pubdate))
			case model.FieldPublisher:
				err = setPublisher(tx, id, md.Publisher)
			case model.FieldSeries:
				err = setSeries(tx, id, md.Series, md.SeriesIndex)
			case model.FieldTitle:
				err = updateBook(tx, id, "title", md.Title)
			case model.FieldTitleSort:
				err = updateBook(tx, id, "sort", md.TitleSort)
			case model.FieldComments:
				err = setComments(tx, id, md.Comments)
			case model.FieldTags:
				err = setTags(tx, id, md.Tags)
			case model.FieldUUID:
				err = updateBook(tx, id, "uuid", md.UUID)
			}
			if err != nil {
				return fmt.Errorf("failed to set %s of book %d: %w", field, id, err)
			}
		}

		return touch(tx, id)
	})
}

func requireBook(tx *gorm.DB, id int64) error {
	var count int64
	if err := tx.Model(&Book{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	return nil
}

func updateBook(tx *gorm.DB, id int64, column string, value any) error {
	return tx.Model(&Book{}).Where("id = ?", id).Update(column, value).Error
}

func touch(tx *gorm.DB, id int64) error {
	return updateBook(tx, id, "last_modified", time.Now().UTC().Format(modifiedLayout))
}

func formatDate(t *time.Time) string {
	if t == nil {
		return undefinedDate
	}
	return t.UTC().Format(timeLayout)
}

func setAuthors(tx *gorm.DB, id int64, names []string) error {
	if err := tx.Where("book = ?", id).Delete(&bookAuthorLink{}).Error; err != nil {
		return err
	}
	if len(names) == 0 {
		names = []string{"Unknown"}
	}
	for _, name := range names {
		var a Author
		if err := tx.Where(Author{Name: name}).Attrs(Author{Sort: utils.AuthorSort(name)}).FirstOrCreate(&a).Error; err != nil {
			return err
		}
		if err := tx.Create(&bookAuthorLink{Book: id, Author: a.ID}).Error; err != nil {
			return err
		}
	}
	return nil
}

func setPublisher(tx *gorm.DB, id int64, name string) error {
	if err := tx.Where("book = ?", id).Delete(&bookPublisherLink{}).Error; err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	var p Publisher
	if err := tx.Where(Publisher{Name: name}).FirstOrCreate(&p).Error; err != nil {
		return err
	}
	return tx.Create(&bookPublisherLink{Book: id, Publisher: p.ID}).Error
}

func setSeries(tx *gorm.DB, id int64, name string, index float64) error {
	if err := tx.Where("book = ?", id).Delete(&bookSeriesLink{}).Error; err != nil {
		return err
	}
	if name == "" {
		return updateBook(tx, id, "series_index", 1.0)
	}
	var se Series
	if err := tx.Where(Series{Name: name}).Attrs(Series{Sort: utils.TitleSort(name)}).FirstOrCreate(&se).Error; err != nil {
		return err
	}
	if err := tx.Create(&bookSeriesLink{Book: id, Series: se.ID}).Error; err != nil {
		return err
	}
	return updateBook(tx, id, "series_index", index)
}

func setComments(tx *gorm.DB, id int64, text string) error {
	if err := tx.Where("book = ?", id).Delete(&Comment{}).Error; err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	return tx.Create(&Comment{Book: id, Text: text}).Error
}

func setTags(tx *gorm.DB, id int64, names []string) error {
	if err := tx.Where("book = ?", id).Delete(&bookTagLink{}).Error; err != nil {
		return err
	}
	for _, name := range model.NormalizeSet(names) {
		var t Tag
		if err := tx.Where(Tag{Name: name}).FirstOrCreate(&t).Error; err != nil {
			return err
		}
		if err := tx.Create(&bookTagLink{Book: id, Tag: t.ID}).Error; err != nil {
			return err
		}
	}
	return nil
}

// Cover returns the cover image of a book and its modification time.
func (s *Store) Cover(ctx context.Context, id int64) ([]byte, time.Time, error) {
	var b Book
	err := s.db.WithContext(ctx).Select("id", "path", "has_cover").First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, time.Time{}, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to load book %d: %w", id, err)
	}
	if !b.HasCover {
		return nil, time.Time{}, ErrNoCover
	}

	p := filepath.Join(s.root, filepath.FromSlash(b.Path), coverFile)
	info, err := s.fs.Stat(p)
	if err != nil {
		s.log.Debug("Cover flagged but missing", zap.Int64("book", id), zap.String("path", p))
		return nil, time.Time{}, ErrNoCover
	}
	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read cover of book %d: %w", id, err)
	}
	return data, info.ModTime().UTC(), nil
}

// FormatFiles returns, per book, the library-relative path of its file in format.
func (s *Store) FormatFiles(ctx context.Context, ids []int64, format string) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	ext := "." + strings.ToLower(format)

	for _, chunk := range chunks(ids, queryChunk) {
		var rows []fileRow
		err := s.db.WithContext(ctx).Raw(
			`SELECT d.book AS book, b.path AS path, d.name AS name FROM data d JOIN books b ON b.id = d.book WHERE d.book IN ? AND UPPER(d.format) = ?`,
			chunk, strings.ToUpper(format),
		).Scan(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("failed to locate %s files: %w", format, err)
		}
		for _, r := range rows {
			out[r.Book] = path.Join(r.Path, r.Name+ext)
		}
	}
	return out, nil
}

// FormatPath returns the host path of a book's file in format.
func (s *Store) FormatPath(ctx context.Context, id int64, format string) (string, error) {
	files, err := s.FormatFiles(ctx, []int64{id}, format)
	if err != nil {
		return "", err
	}
	rel, ok := files[id]
	if !ok {
		return "", fmt.Errorf("book %d has no %s file: %w", id, format, ErrNotFound)
	}
	return s.HostPath(rel), nil
}

// HostPath converts a library-relative path to a host path.
func (s *Store) HostPath(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// Files returns the filesystem serving the library folder.
func (s *Store) Files() afero.Fs { return s.fs }

// CustomFields lists the user-defined columns.
func (s *Store) CustomFields(ctx context.Context) ([]CustomField, error) {
	var out []CustomField
	if err := s.db.WithContext(ctx).Order("label").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list custom fields: %w", err)
	}
	return out, nil
}

func customField(tx *gorm.DB, label string) (CustomField, error) {
	var cf CustomField
	err := tx.Where("label = ?", strings.TrimPrefix(label, "#")).First(&cf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cf, fmt.Errorf("%q: %w", label, ErrUnknownField)
	}
	return cf, err
}

// GetCustomField returns a custom field value: []string for multi-value
// fields, string otherwise.
func (s *Store) GetCustomField(ctx context.Context, id int64, label string) (any, error) {
	db := s.db.WithContext(ctx)
	cf, err := customField(db, label)
	if err != nil {
		return nil, err
	}

	var values []string
	if cf.Normalized {
		q := fmt.Sprintf(`SELECT v.value FROM books_custom_column_%d_link l JOIN custom_column_%d v ON v.id = l.value WHERE l.book = ? ORDER BY v.value`, cf.ID, cf.ID)
		err = db.Raw(q, id).Scan(&values).Error
	} else {
		err = db.Raw(fmt.Sprintf(`SELECT value FROM custom_column_%d WHERE book = ?`, cf.ID), id).Scan(&values).Error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read custom field %s of book %d: %w", label, id, err)
	}

	if cf.IsMultiple {
		return model.NormalizeSet(values), nil
	}
	if len(values) == 0 {
		return "", nil
	}
	return values[0], nil
}

// SetCustomField replaces a custom field value. value is a string, a []string
// for multi-value fields, or nil to clear it.
func (s *Store) SetCustomField(ctx context.Context, id int64, label string, value any) error {
	var (
		text string
		list []string
	)
	switch v := value.(type) {
	case nil:
	case string:
		text = v
		if v != "" {
			list = []string{v}
		}
	case []string:
		list = model.NormalizeSet(v)
		text = strings.Join(list, ", ")
	default:
		return fmt.Errorf("unsupported custom field value %T", value)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireBook(tx, id); err != nil {
			return err
		}
		cf, err := customField(tx, label)
		if err != nil {
			return err
		}

		if !cf.Normalized {
			if err := tx.Exec(fmt.Sprintf(`DELETE FROM custom_column_%d WHERE book = ?`, cf.ID), id).Error; err != nil {
				return err
			}
			if text != "" {
				if err := tx.Exec(fmt.Sprintf(`INSERT INTO custom_column_%d (book, value) VALUES (?, ?)`, cf.ID), id, text).Error; err != nil {
					return err
				}
			}
			return touch(tx, id)
		}

		if !cf.IsMultiple && len(list) > 1 {
			return fmt.Errorf("custom field %s takes a single value", label)
		}
		if err := tx.Exec(fmt.Sprintf(`DELETE FROM books_custom_column_%d_link WHERE book = ?`, cf.ID), id).Error; err != nil {
			return err
		}
		for _, v := range list {
			if err := tx.Exec(fmt.Sprintf(`INSERT OR IGNORE INTO custom_column_%d (value) VALUES (?)`, cf.ID), v).Error; err != nil {
				return err
			}
			var vid int64
			if err := tx.Raw(fmt.Sprintf(`SELECT id FROM custom_column_%d WHERE value = ?`, cf.ID), v).Scan(&vid).Error; err != nil {
				return err
			}
			if err := tx.Exec(fmt.Sprintf(`INSERT INTO books_custom_column_%d_link (book, value) VALUES (?, ?)`, cf.ID), id, vid).Error; err != nil {
				return err
			}
		}
		return touch(tx, id)
	})
}

func chunks(ids []int64, size int) [][]int64 {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var out [][]int64
	for len(sorted) > size {
		out = append(out, sorted[:size])
		sorted = sorted[size:]
	}
	if len(sorted) > 0 {
		out = append(out, sorted)
	}
	return out
}
