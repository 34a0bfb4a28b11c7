package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"marvin-sync/core/model"
	"marvin-sync/core/reconcile"

	"github.com/segmentio/encoding/json"
	"gopkg.in/yaml.v3"
)

// Format selects the report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatPDF  Format = "pdf"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// Summary counts records per quality color.
type Summary struct {
	Total      int            `json:"total" yaml:"total"`
	Mismatched int            `json:"mismatched" yaml:"mismatched"`
	ByQuality  map[string]int `json:"by_quality" yaml:"by_quality"`
}

// Row is one book line of a report.
type Row struct {
	ID         int64    `json:"id" yaml:"id"`
	Title      string   `json:"title" yaml:"title"`
	Authors    []string `json:"authors" yaml:"authors"`
	Quality    string   `json:"quality" yaml:"quality"`
	CalibreID  *int64   `json:"calibre_id,omitempty" yaml:"calibre_id,omitempty"`
	Mismatches []string `json:"mismatches,omitempty" yaml:"mismatches,omitempty"`
}

// Document is the full report.
type Document struct {
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Summary     Summary   `json:"summary" yaml:"summary"`
	Books       []Row     `json:"books" yaml:"books"`
}

// Summarize counts records per quality.
func Summarize(records []*model.BookRecord) Summary {
	s := reconcile.Summarize(records)
	out := Summary{Total: s.Total, Mismatched: s.Mismatched, ByQuality: make(map[string]int, len(s.ByQuality))}
	for q, n := range s.ByQuality {
		out.ByQuality[q.String()] = n
	}
	return out
}

// Build assembles the report document, ordered by book id.
func Build(records []*model.BookRecord, now time.Time) *Document {
	doc := &Document{GeneratedAt: now.UTC(), Summary: Summarize(records), Books: make([]Row, 0, len(records))}
	for _, r := range records {
		row := Row{
			ID:        r.ID,
			Title:     r.Title,
			Authors:   r.Authors,
			Quality:   r.MatchQuality.String(),
			CalibreID: r.CalibreID,
		}
		for field := range r.Mismatches {
			row.Mismatches = append(row.Mismatches, field)
		}
		sort.Strings(row.Mismatches)
		doc.Books = append(doc.Books, row)
	}
	sort.Slice(doc.Books, func(i, j int) bool { return doc.Books[i].ID < doc.Books[j].ID })
	return doc
}

// Write renders records to w in format.
func Write(w io.Writer, records []*model.BookRecord, format Format) error {
	doc := Build(records, time.Now())
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		return enc.Close()
	case FormatPDF:
		return writePDF(w, doc)
	}
	return fmt.Errorf("unknown report format %q", format)
}
