package library

// Book represents the 'books' table of a calibre library.
type Book struct {
	ID           int64   `gorm:"column:id;primaryKey"`
	Title        string  `gorm:"column:title"`
	Sort         string  `gorm:"column:sort"`
	Pubdate      *string `gorm:"column:pubdate"`
	SeriesIndex  float64 `gorm:"column:series_index"`
	AuthorSort   string  `gorm:"column:author_sort"`
	Path         string  `gorm:"column:path"`
	UUID         string  `gorm:"column:uuid"`
	HasCover     bool    `gorm:"column:has_cover"`
	LastModified string  `gorm:"column:last_modified"`
}

// TableName overrides the table name.
func (Book) TableName() string { return "books" }

// Author represents the 'authors' table.
type Author struct {
	ID   int64  `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`
	Sort string `gorm:"column:sort"`
	Link string `gorm:"column:link"`
}

// TableName overrides the table name.
func (Author) TableName() string { return "authors" }

// Publisher represents the 'publishers' table.
type Publisher struct {
	ID   int64  `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`
	Sort string `gorm:"column:sort"`
	Link string `gorm:"column:link"`
}

// TableName overrides the table name.
func (Publisher) TableName() string { return "publishers" }

// Series represents the 'series' table.
type Series struct {
	ID   int64  `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`
	Sort string `gorm:"column:sort"`
	Link string `gorm:"column:link"`
}

// TableName overrides the table name.
func (Series) TableName() string { return "series" }

// Tag represents the 'tags' table.
type Tag struct {
	ID   int64  `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`
	Link string `gorm:"column:link"`
}

// TableName overrides the table name.
func (Tag) TableName() string { return "tags" }

// Comment represents the 'comments' table.
type Comment struct {
	ID   int64  `gorm:"column:id;primaryKey"`
	Book int64  `gorm:"column:book"`
	Text string `gorm:"column:text"`
}

// TableName overrides the table name.
func (Comment) TableName() string { return "comments" }

// Data represents the 'data' table listing the format files of a book.
type Data struct {
	ID               int64  `gorm:"column:id;primaryKey"`
	Book             int64  `gorm:"column:book"`
	Format           string `gorm:"column:format"`
	UncompressedSize int64  `gorm:"column:uncompressed_size"`
	Name             string `gorm:"column:name"`
}

// TableName overrides the table name.
func (Data) TableName() string { return "data" }

// CustomField represents one row of 'custom_columns'.
type CustomField struct {
	ID         int64  `gorm:"column:id;primaryKey" json:"id"`
	Label      string `gorm:"column:label" json:"label"`
	Name       string `gorm:"column:name" json:"name"`
	Datatype   string `gorm:"column:datatype" json:"datatype"`
	IsMultiple bool   `gorm:"column:is_multiple" json:"is_multiple"`
	Normalized bool   `gorm:"column:normalized" json:"normalized"`
}

// TableName overrides the table name.
func (CustomField) TableName() string { return "custom_columns" }

type bookAuthorLink struct {
	ID     int64 `gorm:"column:id;primaryKey"`
	Book   int64 `gorm:"column:book"`
	Author int64 `gorm:"column:author"`
}

func (bookAuthorLink) TableName() string { return "books_authors_link" }

type bookPublisherLink struct {
	ID        int64 `gorm:"column:id;primaryKey"`
	Book      int64 `gorm:"column:book"`
	Publisher int64 `gorm:"column:publisher"`
}

func (bookPublisherLink) TableName() string { return "books_publishers_link" }

type bookSeriesLink struct {
	ID     int64 `gorm:"column:id;primaryKey"`
	Book   int64 `gorm:"column:book"`
	Series int64 `gorm:"column:series"`
}

func (bookSeriesLink) TableName() string { return "books_series_link" }

type bookTagLink struct {
	ID   int64 `gorm:"column:id;primaryKey"`
	Book int64 `gorm:"column:book"`
	Tag  int64 `gorm:"column:tag"`
}

func (bookTagLink) TableName() string { return "books_tags_link" }

// valueRow is a (book, value) pair read from a link query.
type valueRow struct {
	Book  int64  `gorm:"column:book"`
	Value string `gorm:"column:value"`
}

// fileRow locates a format file.
type fileRow struct {
	Book int64  `gorm:"column:book"`
	Path string `gorm:"column:path"`
	Name string `gorm:"column:name"`
}
