package reconcile

import (
	"strings"
	"time"

	"marvin-sync/core/model"
)

// PubdateTolerance is the largest publish date difference still considered equal.
// Dates lose their timezone on one side and can shift by a day.
const PubdateTolerance = 24 * time.Hour

// CoverState is the cover comparison input for one book.
type CoverState struct {
	// Known is false when the desktop cover could not be hashed; the field is then skipped.
	Known bool
	// Hash is the desktop thumbnail digest, empty when the book has no cover.
	Hash string
}

// CompareMetadata returns the differing fields between a desktop book and its
// device record. Values missing on one side compare as nil.
func CompareMetadata(md *model.Metadata, b *model.BookRecord, cover CoverState) map[string]model.Mismatch {
	out := make(map[string]model.Mismatch)

	cmpString := func(field, local, remote string) {
		l, r := optional(local), optional(remote)
		if l != r {
			out[field] = model.Mismatch{Local: anyOrNil(l), Remote: anyOrNil(r)}
		}
	}

	cmpString(model.FieldAuthors, model.JoinAuthors(md.Authors), model.JoinAuthors(b.Authors))
	cmpString(model.FieldAuthorSort, md.AuthorSort, b.AuthorSort)
	if cover.Known {
		cmpString(model.FieldCoverHash, cover.Hash, b.CoverHash)
	}
	if l, r, differ := comparePubdate(md.Pubdate, b.Pubdate); differ {
		out[model.FieldPubdate] = model.Mismatch{Local: l, Remote: r}
	}
	cmpString(model.FieldPublisher, md.Publisher, b.Publisher)
	cmpString(model.FieldSeries, librarySeries(md), model.FormatSeries(b.Series, b.SeriesIndex))
	cmpString(model.FieldTitle, md.Title, b.Title)
	cmpString(model.FieldTitleSort, md.TitleSort, b.TitleSort)
	cmpString(model.FieldComments, md.Comments, b.Description)
	if !model.EqualSet(md.Tags, b.Subjects) {
		out[model.FieldTags] = model.Mismatch{Local: setOrNil(md.Tags), Remote: setOrNil(b.Subjects)}
	}
	cmpString(model.FieldUUID, md.UUID, b.UUID)

	return out
}

func librarySeries(md *model.Metadata) string {
	if md.Series == "" {
		return ""
	}
	idx := md.SeriesIndex
	return model.FormatSeries(md.Series, &idx)
}

func comparePubdate(local, remote *time.Time) (any, any, bool) {
	switch {
	case local == nil && remote == nil:
		return nil, nil, false
	case local == nil:
		return nil, formatDate(*remote), true
	case remote == nil:
		return formatDate(*local), nil, true
	}

	delta := local.Sub(*remote)
	if delta < 0 {
		delta = -delta
	}
	if delta <= PubdateTolerance {
		return nil, nil, false
	}
	return formatDate(*local), formatDate(*remote), true
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func optional(s string) string {
	return strings.TrimSpace(s)
}

func anyOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func setOrNil(names []string) any {
	set := model.NormalizeSet(names)
	if len(set) == 0 {
		return nil
	}
	return set
}
