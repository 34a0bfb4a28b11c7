package model

import (
	"sort"
	"strings"
	"time"
)

// OnDeviceMain is the storage location name of the device's primary library.
const OnDeviceMain = "Main"

// Article group names used in BookRecord.Articles.
const (
	ArticlesPinned = "Pinned"
	ArticlesWiki   = "Wiki"
)

// Highlight is a single annotation stored by the reader app.
type Highlight struct {
	Text    string    `json:"text"`
	Note    string    `json:"note,omitempty"`
	Color   string    `json:"color,omitempty"`
	Created time.Time `json:"created,omitempty"`
}

// Mismatch holds the desktop (local) and device (remote) values of a differing field.
// A nil value means the field is absent on that side.
type Mismatch struct {
	Local  any `json:"local"`
	Remote any `json:"remote"`
}

// BookRecord represents a single book found on the device, with the identity and
// reconciliation data computed against the desktop library.
type BookRecord struct {
	// ID is the device database primary key.
	ID int64 `json:"id"`

	Title      string   `json:"title"`
	TitleSort  string   `json:"title_sort,omitempty"`
	Authors    []string `json:"authors"`
	AuthorSort string   `json:"author_sort,omitempty"`

	// UUID is the calibre uuid stamped into the book when it was sent to the device.
	UUID string `json:"uuid"`

	// ContentHash is the content digest of the book package, or empty when unknown.
	ContentHash string `json:"content_hash"`

	// Path is the device-relative path of the book file.
	Path string `json:"path"`

	// CalibreID links the record to a desktop library book once matched.
	CalibreID *int64 `json:"calibre_id,omitempty"`

	// Collections is the sorted set of user collections assigned on the device.
	Collections []string `json:"collections"`

	Flags    Flags    `json:"flags"`
	Progress *float64 `json:"progress,omitempty"`

	Highlights []Highlight         `json:"highlights,omitempty"`
	Vocabulary []string            `json:"vocabulary,omitempty"`
	Articles   map[string][]string `json:"articles,omitempty"`

	DeepViewPrepared bool `json:"deep_view_prepared"`

	// Mismatches maps field names to their differing values.
	Mismatches map[string]Mismatch `json:"metadata_mismatches"`

	MatchQuality MatchQuality `json:"match_quality"`

	// Matches is the list of desktop uuids this book has been associated with.
	Matches []string `json:"matches"`

	// OnDevice is the storage location holding the book.
	OnDevice string `json:"on_device"`

	Publisher   string     `json:"publisher,omitempty"`
	Pubdate     *time.Time `json:"pubdate,omitempty"`
	Series      string     `json:"series,omitempty"`
	SeriesIndex *float64   `json:"series_index,omitempty"`
	Description string     `json:"description,omitempty"`
	Subjects    []string   `json:"subjects,omitempty"`
	CoverHash   string     `json:"cover_hash,omitempty"`

	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// OnPrimary reports whether the book lives on the device's main storage location.
func (b *BookRecord) OnPrimary() bool {
	return b.OnDevice == "" || b.OnDevice == OnDeviceMain
}

// AuthorString joins the authors the way calibre displays them.
func (b *BookRecord) AuthorString() string {
	return JoinAuthors(b.Authors)
}

// Clone returns a deep copy of the record.
func (b *BookRecord) Clone() *BookRecord {
	c := *b
	c.Authors = append([]string(nil), b.Authors...)
	c.Collections = append([]string(nil), b.Collections...)
	c.Highlights = append([]Highlight(nil), b.Highlights...)
	c.Vocabulary = append([]string(nil), b.Vocabulary...)
	c.Subjects = append([]string(nil), b.Subjects...)
	c.Matches = append([]string(nil), b.Matches...)
	if b.CalibreID != nil {
		id := *b.CalibreID
		c.CalibreID = &id
	}
	if b.Articles != nil {
		c.Articles = make(map[string][]string, len(b.Articles))
		for k, v := range b.Articles {
			c.Articles[k] = append([]string(nil), v...)
		}
	}
	if b.Mismatches != nil {
		c.Mismatches = make(map[string]Mismatch, len(b.Mismatches))
		for k, v := range b.Mismatches {
			c.Mismatches[k] = v
		}
	}
	return &c
}

// SetCollections replaces the collection set, normalizing it.
func (b *BookRecord) SetCollections(names []string) {
	b.Collections = NormalizeSet(names)
}

// JoinAuthors joins an author list with calibre's " & " separator.
func JoinAuthors(authors []string) string {
	return strings.Join(authors, " & ")
}

// SplitAuthors splits an author string on "&", trimming whitespace and dropping blanks.
func SplitAuthors(s string) []string {
	var out []string
	for _, part := range strings.Split(s, "&") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NormalizeSet trims, de-duplicates and sorts a list of names.
func NormalizeSet(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// UnionSet returns the normalized union of two name lists.
func UnionSet(a, b []string) []string {
	return NormalizeSet(append(append([]string(nil), a...), b...))
}

// EqualSet reports whether two name lists hold the same elements regardless of order.
func EqualSet(a, b []string) bool {
	na, nb := NormalizeSet(a), NormalizeSet(b)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}
