package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"marvin-sync/core/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCovers struct {
	hashes map[int64]string
	err    error
}

func (s *stubCovers) CoverHash(_ context.Context, md *model.Metadata) (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	h, ok := s.hashes[md.ID]
	return h, ok, nil
}

func newLibrary(books ...struct {
	md   *model.Metadata
	hash string
}) *model.LibraryIndex {
	idx := model.NewLibraryIndex(model.LibraryIdentity{UUID: "lib"})
	for _, b := range books {
		idx.Add(b.md, b.hash)
	}
	return idx
}

func entry(md *model.Metadata, hash string) struct {
	md   *model.Metadata
	hash string
} {
	return struct {
		md   *model.Metadata
		hash string
	}{md, hash}
}

func desktopBook(id int64, uuid, title string) *model.Metadata {
	return &model.Metadata{
		ID:         id,
		UUID:       uuid,
		Title:      title,
		TitleSort:  title,
		Authors:    []string{"Frank Herbert"},
		AuthorSort: "Herbert, Frank",
		Publisher:  "Chilton",
		Tags:       []string{"Sci-Fi"},
	}
}

// deviceCopy returns a device record carrying the same metadata as md.
func deviceCopy(id int64, md *model.Metadata, hash string) *model.BookRecord {
	return &model.BookRecord{
		ID:          id,
		UUID:        md.UUID,
		Title:       md.Title,
		TitleSort:   md.TitleSort,
		Authors:     append([]string(nil), md.Authors...),
		AuthorSort:  md.AuthorSort,
		Publisher:   md.Publisher,
		Subjects:    append([]string(nil), md.Tags...),
		ContentHash: hash,
		OnDevice:    model.OnDeviceMain,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		facts Facts
		want  model.MatchQuality
	}{
		{"ExactUUIDNoMismatches", Facts{UUID: "u1", Matches: []string{"u1"}}, model.MatchGreen},
		{"ExactUUIDWithMismatches", Facts{UUID: "u1", Matches: []string{"u1"}, HasMismatches: true}, model.MatchYellow},
		{"ExactUUIDMismatchesOffPrimary", Facts{UUID: "u1", Matches: []string{"u1"}, HasMismatches: true, OnPrimary: false}, model.MatchYellow},
		{"HashOnlyEmptyUUID", Facts{UUID: "", Matches: []string{""}}, model.MatchYellow},
		{"PrimaryWithMismatchesNoMatch", Facts{UUID: "u9", HasMismatches: true, OnPrimary: true}, model.MatchYellow},
		{"PrimaryMismatchesBeatsOrange", Facts{UUID: "u1", Matches: []string{"u1", "u2"}, HasMismatches: true, OnPrimary: true}, model.MatchYellow},
		{"UUIDAmongSeveralMatches", Facts{UUID: "u1", Matches: []string{"u1", "u2"}}, model.MatchOrange},
		{"UUIDAmongMatchesOffPrimaryMismatches", Facts{UUID: "u2", Matches: []string{"u1", "u2"}, HasMismatches: true}, model.MatchOrange},
		{"SoftMatchNeverGreen", Facts{UUID: "stale", Matches: []string{"stale"}, Soft: true}, model.MatchYellow},
		{"DuplicateDeviceOnlyHash", Facts{UUID: "u5", DeviceOnlyHashCount: 2}, model.MatchRed},
		{"SingleDeviceOnlyHash", Facts{UUID: "u5", DeviceOnlyHashCount: 1}, model.MatchWhite},
		{"NoMatch", Facts{UUID: "u5"}, model.MatchWhite},
		{"EmptyEverything", Facts{}, model.MatchWhite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.facts))
			// Pure function: same input, same output
			assert.Equal(t, Classify(tt.facts), Classify(tt.facts))
		})
	}
}

func TestEngine_ScenarioIdenticalBookIsGreen(t *testing.T) {
	a := desktopBook(1, "u1", "Foo")
	idx := newLibrary(entry(a, "h1"))
	dev := deviceCopy(10, a, "h1")

	res := NewEngine(nil, nil).Run(context.Background(), []*model.BookRecord{dev}, idx)

	assert.Equal(t, model.MatchGreen, dev.MatchQuality)
	assert.Empty(t, dev.Mismatches)
	assert.Equal(t, []string{"u1"}, dev.Matches)
	require.NotNil(t, dev.CalibreID)
	assert.Equal(t, int64(1), *dev.CalibreID)
	assert.Equal(t, 1, res.Summary.ByQuality[model.MatchGreen])
}

func TestEngine_ScenarioTitleChangeIsYellow(t *testing.T) {
	a := desktopBook(1, "u1", "Foo")
	idx := newLibrary(entry(a, "h1"))
	dev := deviceCopy(10, a, "h1")
	dev.Title = "Foo (revised)"

	NewEngine(nil, nil).Run(context.Background(), []*model.BookRecord{dev}, idx)

	assert.Equal(t, model.MatchYellow, dev.MatchQuality)
	assert.Equal(t, map[string]model.Mismatch{
		model.FieldTitle: {Local: "Foo", Remote: "Foo (revised)"},
	}, dev.Mismatches)
}

func TestEngine_ScenarioSharedDeviceOnlyHashIsRed(t *testing.T) {
	idx := newLibrary(entry(desktopBook(1, "u1", "Other"), "h9"))
	b1 := &model.BookRecord{ID: 1, UUID: "x1", ContentHash: "h1"}
	b2 := &model.BookRecord{ID: 2, UUID: "x2", ContentHash: "h1"}

	res := NewEngine(nil, nil).Run(context.Background(), []*model.BookRecord{b1, b2}, idx)

	assert.Equal(t, model.MatchRed, b1.MatchQuality)
	assert.Equal(t, model.MatchRed, b2.MatchQuality)
	assert.Nil(t, b1.CalibreID)
	assert.Equal(t, []string{"1", "2"}, res.DeviceHashes["h1"])
}

func TestEngine_NoHashNeverCollides(t *testing.T) {
	b1 := &model.BookRecord{ID: 1, UUID: "x1", ContentHash: model.NoHash}
	b2 := &model.BookRecord{ID: 2, UUID: "x2", ContentHash: model.NoHash}

	res := NewEngine(nil, nil).Run(context.Background(), []*model.BookRecord{b1, b2}, nil)

	assert.Equal(t, model.MatchWhite, b1.MatchQuality)
	assert.Equal(t, model.MatchWhite, b2.MatchQuality)
	assert.Empty(t, res.DeviceHashes)
}

func TestEngine_SoftMatchByHash(t *testing.T) {
	a := desktopBook(1, "u1", "Foo")
	idx := newLibrary(entry(a, "h1"))
	dev := deviceCopy(10, a, "h1")
	dev.UUID = "stale"

	NewEngine(nil, nil).Run(context.Background(), []*model.BookRecord{dev}, idx)

	assert.Equal(t, []string{"stale"}, dev.Matches)
	require.NotNil(t, dev.CalibreID, "counterpart found through the hash")
	assert.Equal(t, model.Mismatch{Local: "u1", Remote: "stale"}, dev.Mismatches[model.FieldUUID])
	assert.Equal(t, model.MatchYellow, dev.MatchQuality)
}

func TestEngine_SoftMatchAgainstSharedHashIsNotGreen(t *testing.T) {
	a := desktopBook(1, "u1", "Foo")
	b := desktopBook(2, "u2", "Foo")
	idx := newLibrary(entry(a, "h1"), entry(b, "h1"))
	dev := deviceCopy(10, a, "h1")
	dev.UUID = "stale"

	NewEngine(nil, nil).Run(context.Background(), []*model.BookRecord{dev}, idx)

	assert.Equal(t, []string{"stale"}, dev.Matches)
	assert.Nil(t, dev.CalibreID, "hash maps to two desktop books")
	assert.Empty(t, dev.Mismatches)
	assert.NotEqual(t, model.MatchGreen, dev.MatchQuality)
	assert.Equal(t, model.MatchYellow, dev.MatchQuality)
}

func TestEngine_SoftResolutionUnionsWithHardMatch(t *testing.T) {
	a := desktopBook(1, "u1", "Foo")
	idx := newLibrary(entry(a, "h1"))
	hard := deviceCopy(10, a, "h1")
	soft := deviceCopy(11, a, "h1")
	soft.UUID = "u-copy"

	NewEngine(nil, nil).Run(context.Background(), []*model.BookRecord{soft, hard}, idx)

	assert.Equal(t, []string{"u1", "u-copy"}, hard.Matches)
	assert.Equal(t, []string{"u-copy", "u1"}, soft.Matches)
	assert.Equal(t, model.MatchOrange, hard.MatchQuality)
	// Soft copy on primary with a uuid mismatch
	assert.Equal(t, model.MatchYellow, soft.MatchQuality)
}

func TestEngine_DuplicateDesktopUUIDsAreOrange(t *testing.T) {
	a := desktopBook(1, "u1", "Foo")
	b := desktopBook(2, "u2", "Foo")
	idx := newLibrary(entry(a, "h1"), entry(b, "h1"))
	dev := deviceCopy(10, a, "h1")
	dev.OnDevice = "Archive"
	dev.Title = "Foo 2"

	NewEngine(nil, nil).Run(context.Background(), []*model.BookRecord{dev}, idx)

	assert.Equal(t, []string{"u1", "u2"}, dev.Matches)
	assert.Equal(t, model.MatchOrange, dev.MatchQuality)
}

func TestEngine_UUIDMatchWithUnknownHash(t *testing.T) {
	a := desktopBook(1, "u1", "Foo")
	idx := newLibrary(entry(a, model.NoHash))
	dev := deviceCopy(10, a, "h-new")

	NewEngine(nil, nil).Run(context.Background(), []*model.BookRecord{dev}, idx)

	assert.Equal(t, []string{"u1"}, dev.Matches)
	assert.Equal(t, model.MatchGreen, dev.MatchQuality)
}

func TestEngine_CoverComparison(t *testing.T) {
	a := desktopBook(1, "u1", "Foo")
	idx := newLibrary(entry(a, "h1"))

	t.Run("Differs", func(t *testing.T) {
		dev := deviceCopy(10, a, "h1")
		dev.CoverHash = "old"
		NewEngine(&stubCovers{hashes: map[int64]string{1: "new"}}, nil).Run(context.Background(), []*model.BookRecord{dev}, idx)
		assert.Equal(t, model.Mismatch{Local: "new", Remote: "old"}, dev.Mismatches[model.FieldCoverHash])
	})

	t.Run("LookupFailureSkipsField", func(t *testing.T) {
		dev := deviceCopy(10, a, "h1")
		dev.CoverHash = "old"
		NewEngine(&stubCovers{err: errors.New("unreadable")}, nil).Run(context.Background(), []*model.BookRecord{dev}, idx)
		assert.NotContains(t, dev.Mismatches, model.FieldCoverHash)
		assert.Equal(t, model.MatchGreen, dev.MatchQuality)
	})

	t.Run("NoDesktopCover", func(t *testing.T) {
		dev := deviceCopy(10, a, "h1")
		dev.CoverHash = "old"
		NewEngine(&stubCovers{}, nil).Run(context.Background(), []*model.BookRecord{dev}, idx)
		assert.Equal(t, model.Mismatch{Local: nil, Remote: "old"}, dev.Mismatches[model.FieldCoverHash])
	})
}

func TestEngine_RunIsIdempotent(t *testing.T) {
	a := desktopBook(1, "u1", "Foo")
	b := desktopBook(2, "u2", "Bar")
	idx := newLibrary(entry(a, "h1"), entry(b, "h2"))
	books := []*model.BookRecord{
		deviceCopy(10, a, "h1"),
		deviceCopy(11, b, "h2"),
		{ID: 12, UUID: "x", ContentHash: "h3"},
		{ID: 13, UUID: "y", ContentHash: "h3"},
	}
	books[1].Title = "Baz"

	engine := NewEngine(nil, nil)
	engine.Run(context.Background(), books, idx)
	first := make([]*model.BookRecord, len(books))
	for i, b := range books {
		first[i] = b.Clone()
	}

	engine.Run(context.Background(), books, idx)
	for i := range books {
		assert.Equal(t, first[i].MatchQuality, books[i].MatchQuality)
		assert.Equal(t, first[i].Mismatches, books[i].Mismatches)
		assert.Equal(t, first[i].Matches, books[i].Matches)
	}
}

func TestCompareMetadata(t *testing.T) {
	day := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	nextDay := day.Add(20 * time.Hour)
	later := day.Add(72 * time.Hour)
	idx := 3.0

	base := func() (*model.Metadata, *model.BookRecord) {
		md := desktopBook(1, "u1", "Foo")
		return md, deviceCopy(10, md, "h1")
	}

	t.Run("PubdateWithinToleranceIsEqual", func(t *testing.T) {
		md, b := base()
		md.Pubdate, b.Pubdate = &day, &nextDay
		assert.Empty(t, CompareMetadata(md, b, CoverState{}))
	})

	t.Run("PubdateBeyondTolerance", func(t *testing.T) {
		md, b := base()
		md.Pubdate, b.Pubdate = &day, &later
		assert.Equal(t, model.Mismatch{Local: "2020-05-01", Remote: "2020-05-04"}, CompareMetadata(md, b, CoverState{})[model.FieldPubdate])
	})

	t.Run("PubdateMissingOnDevice", func(t *testing.T) {
		md, b := base()
		md.Pubdate = &day
		assert.Equal(t, model.Mismatch{Local: "2020-05-01", Remote: nil}, CompareMetadata(md, b, CoverState{})[model.FieldPubdate])
	})

	t.Run("SeriesWithIndex", func(t *testing.T) {
		md, b := base()
		md.Series, md.SeriesIndex = "Dune", 3
		b.Series, b.SeriesIndex = "Dune", &idx
		assert.Empty(t, CompareMetadata(md, b, CoverState{}))

		b.Series = ""
		assert.Equal(t, model.Mismatch{Local: "Dune [3]", Remote: nil}, CompareMetadata(md, b, CoverState{})[model.FieldSeries])
	})

	t.Run("TagsCompareAsSets", func(t *testing.T) {
		md, b := base()
		md.Tags = []string{"b", "a"}
		b.Subjects = []string{"a", "b", "a"}
		assert.Empty(t, CompareMetadata(md, b, CoverState{}))

		b.Subjects = nil
		assert.Equal(t, model.Mismatch{Local: []string{"a", "b"}, Remote: nil}, CompareMetadata(md, b, CoverState{})[model.FieldTags])
	})

	t.Run("CommentsAgainstDescription", func(t *testing.T) {
		md, b := base()
		md.Comments = "<p>hi</p>"
		assert.Equal(t, model.Mismatch{Local: "<p>hi</p>", Remote: nil}, CompareMetadata(md, b, CoverState{})[model.FieldComments])
	})

	t.Run("AuthorsJoined", func(t *testing.T) {
		md, b := base()
		b.Authors = []string{"Frank Herbert", "Brian Herbert"}
		assert.Equal(t, model.Mismatch{Local: "Frank Herbert", Remote: "Frank Herbert & Brian Herbert"}, CompareMetadata(md, b, CoverState{})[model.FieldAuthors])
	})
}
