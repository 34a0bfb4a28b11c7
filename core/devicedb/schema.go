package devicedb

// Table names in the reader app database.
const (
	TableBooks           = "Books"
	TableCollections     = "Collections"
	TableBookCollections = "BookCollections"
	TableHighlights      = "Highlights"
	TableVocabulary      = "Vocabulary"
	TablePinnedArticles  = "PinnedArticles"
	TableWiki            = "Wiki"
	TableBookSubjects    = "BookSubjects"
)

// RequiredTables must exist for a scan to run. The rest are optional and
// treated as empty when missing (older app versions lack them).
var RequiredTables = []string{TableBooks, TableCollections, TableBookCollections}

// Schema is the subset of the reader app schema this package reads. It is used
// to build fixtures and documents the columns relied on.
const Schema = `
CREATE TABLE Books (
	ID INTEGER PRIMARY KEY,
	Title TEXT,
	Author TEXT,
	AuthorSort TEXT,
	CalibreTitleSort TEXT,
	UUID TEXT,
	FileName TEXT,
	OnDevice TEXT,
	IsRead INTEGER DEFAULT 0,
	ReadingList INTEGER DEFAULT 0,
	NewFlag INTEGER DEFAULT 0,
	Progress REAL,
	Publisher TEXT,
	DatePublished TEXT,
	CalibreSeries TEXT,
	CalibreSeriesIndex REAL,
	Description TEXT,
	CalibreCoverHash TEXT,
	DeepViewPrepared INTEGER DEFAULT 0,
	DateAdded TEXT
);
CREATE TABLE Collections (ID INTEGER PRIMARY KEY, Name TEXT);
CREATE TABLE BookCollections (BookID INTEGER, CollectionID INTEGER);
CREATE TABLE Highlights (BookID INTEGER, Text TEXT, Note TEXT, Color TEXT, DateCreated TEXT);
CREATE TABLE Vocabulary (BookID INTEGER, Word TEXT);
CREATE TABLE PinnedArticles (BookID INTEGER, Title TEXT);
CREATE TABLE Wiki (BookID INTEGER, Title TEXT);
CREATE TABLE BookSubjects (BookID INTEGER, Title TEXT);
`
