package model

import (
	"fmt"
	"strconv"
	"time"
)

// NoHash is the sentinel content hash for books whose package could not be hashed.
// It never matches anything and never collides with another NoHash.
const NoHash = ""

// IsValidHash reports whether h is a real content hash.
func IsValidHash(h string) bool {
	return h != NoHash
}

// Metadata is the desktop library's view of a single book.
type Metadata struct {
	ID           int64      `json:"id"`
	UUID         string     `json:"uuid"`
	Title        string     `json:"title"`
	TitleSort    string     `json:"title_sort"`
	Authors      []string   `json:"authors"`
	AuthorSort   string     `json:"author_sort"`
	Publisher    string     `json:"publisher,omitempty"`
	Pubdate      *time.Time `json:"pubdate,omitempty"`
	Series       string     `json:"series,omitempty"`
	SeriesIndex  float64    `json:"series_index"`
	Tags         []string   `json:"tags,omitempty"`
	Comments     string     `json:"comments,omitempty"`
	Path         string     `json:"path"`
	HasCover     bool       `json:"has_cover"`
	LastModified time.Time  `json:"last_modified"`
}

// Metadata field names shared by mismatch reports, plans and SetMetadata field masks.
const (
	FieldAuthors    = "authors"
	FieldAuthorSort = "author_sort"
	FieldCoverHash  = "cover_hash"
	FieldPubdate    = "pubdate"
	FieldPublisher  = "publisher"
	FieldSeries     = "series"
	FieldTitle      = "title"
	FieldTitleSort  = "title_sort"
	FieldComments   = "comments"
	FieldTags       = "tags"
	FieldUUID       = "uuid"
)

// MetadataFields lists every comparable field in report order.
var MetadataFields = []string{
	FieldAuthors,
	FieldAuthorSort,
	FieldCoverHash,
	FieldPubdate,
	FieldPublisher,
	FieldSeries,
	FieldTitle,
	FieldTitleSort,
	FieldComments,
	FieldTags,
	FieldUUID,
}

// FormatSeries renders a series and index as "Name [index]", or "" without a series.
func FormatSeries(name string, index *float64) string {
	if name == "" {
		return ""
	}
	if index == nil {
		return name
	}
	return fmt.Sprintf("%s [%s]", name, strconv.FormatFloat(*index, 'f', -1, 64))
}

// LibraryIdentity identifies a desktop library and its modification state.
type LibraryIdentity struct {
	UUID         string    `json:"uuid"`
	LastModified time.Time `json:"last_modified"`
}

// Same reports whether two identities describe the same unmodified library.
func (i LibraryIdentity) Same(other LibraryIdentity) bool {
	return i.UUID == other.UUID && i.LastModified.Equal(other.LastModified)
}

// TitleEntry is a by-title index value.
type TitleEntry struct {
	CalibreID int64    `json:"calibre_id"`
	Authors   []string `json:"authors"`
	UUID      string   `json:"uuid"`
}

// UUIDEntry is a by-uuid index value.
type UUIDEntry struct {
	CalibreID int64    `json:"calibre_id"`
	Authors   []string `json:"authors"`
	Title     string   `json:"title"`
}

// LibraryIndex holds the lookup maps built over the desktop library once per sync.
type LibraryIndex struct {
	ByTitle  map[string]TitleEntry `json:"by_title"`
	ByUUID   map[string]UUIDEntry  `json:"by_uuid"`
	Books    map[int64]*Metadata   `json:"-"`
	HashMap  HashMap               `json:"hash_map"`
	Identity LibraryIdentity       `json:"identity"`
	Built    time.Time             `json:"built"`
}

// NewLibraryIndex returns an empty index.
func NewLibraryIndex(identity LibraryIdentity) *LibraryIndex {
	return &LibraryIndex{
		ByTitle:  make(map[string]TitleEntry),
		ByUUID:   make(map[string]UUIDEntry),
		Books:    make(map[int64]*Metadata),
		HashMap:  make(HashMap),
		Identity: identity,
	}
}

// Add registers a desktop book and its content hash.
func (idx *LibraryIndex) Add(md *Metadata, contentHash string) {
	idx.Books[md.ID] = md
	idx.ByTitle[md.Title] = TitleEntry{CalibreID: md.ID, Authors: md.Authors, UUID: md.UUID}
	if md.UUID != "" {
		idx.ByUUID[md.UUID] = UUIDEntry{CalibreID: md.ID, Authors: md.Authors, Title: md.Title}
	}
	idx.HashMap.Add(contentHash, md.UUID)
}

// ByUUIDMetadata returns the full desktop metadata for a uuid.
func (idx *LibraryIndex) ByUUIDMetadata(uuid string) (*Metadata, bool) {
	if idx == nil || uuid == "" {
		return nil, false
	}
	entry, ok := idx.ByUUID[uuid]
	if !ok {
		return nil, false
	}
	md, ok := idx.Books[entry.CalibreID]
	return md, ok
}

// HashMap maps a content hash to the keys (desktop uuids or device book ids) sharing it.
type HashMap map[string][]string

// Add appends key under hash, ignoring invalid hashes and duplicates.
func (m HashMap) Add(hash, key string) {
	if !IsValidHash(hash) {
		return
	}
	for _, k := range m[hash] {
		if k == key {
			return
		}
	}
	m[hash] = append(m[hash], key)
}

// Get returns the keys under hash. Invalid hashes never match.
func (m HashMap) Get(hash string) ([]string, bool) {
	if !IsValidHash(hash) {
		return nil, false
	}
	keys, ok := m[hash]
	return keys, ok
}

// Remove drops every reverse reference to key, deleting emptied hashes.
func (m HashMap) Remove(key string) {
	for hash, keys := range m {
		out := keys[:0]
		for _, k := range keys {
			if k != key {
				out = append(out, k)
			}
		}
		if len(out) == 0 {
			delete(m, hash)
		} else {
			m[hash] = out
		}
	}
}
