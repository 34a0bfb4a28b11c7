package model_test

import (
	"testing"

	"marvin-sync/core/model"

	"github.com/stretchr/testify/assert"
)

func TestFlags_Set(t *testing.T) {
	tests := []struct {
		name  string
		start model.Flags
		mask  model.Flags
		want  model.Flags
	}{
		{"ReadClearsOthers", model.FlagNew | model.FlagReadingList, model.FlagRead, model.FlagRead},
		{"NewClearsReadingList", model.FlagReadingList, model.FlagNew, model.FlagNew},
		{"NewClearsRead", model.FlagRead, model.FlagNew, model.FlagNew},
		{"ReadingListClearsNew", model.FlagNew, model.FlagReadingList, model.FlagReadingList},
		{"NewWinsInCombinedMask", 0, model.FlagNew | model.FlagRead, model.FlagNew},
		{"InvalidBitsIgnored", 0, 8, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.start.Set(tt.mask))
		})
	}
}

func TestFlags_Clear(t *testing.T) {
	f := model.FlagRead | model.FlagNew
	assert.Equal(t, model.FlagNew, f.Clear(model.FlagRead))
	assert.Equal(t, model.Flags(0), f.Clear(model.FlagMask))
}

func TestWireInterleaving(t *testing.T) {
	wire := model.MergeWire(model.FlagReadingList, []string{"Sci-Fi", "READ", "Classics"})
	assert.Equal(t, []string{"READING LIST", "Classics", "Sci-Fi"}, wire)

	flags, rest := model.SplitWire(wire)
	assert.Equal(t, model.FlagReadingList, flags)
	assert.Equal(t, []string{"Classics", "Sci-Fi"}, rest)
}

func TestHashMap(t *testing.T) {
	m := make(model.HashMap)
	m.Add("h1", "u1")
	m.Add("h1", "u1")
	m.Add("h1", "u2")
	m.Add(model.NoHash, "u3")

	keys, ok := m.Get("h1")
	assert.True(t, ok)
	assert.Equal(t, []string{"u1", "u2"}, keys)

	_, ok = m.Get(model.NoHash)
	assert.False(t, ok, "sentinel hash must never match")

	m.Remove("u1")
	m.Remove("u2")
	_, ok = m.Get("h1")
	assert.False(t, ok)
}

func TestMatchQuality_Ordering(t *testing.T) {
	assert.True(t, model.MatchGreen > model.MatchYellow)
	assert.True(t, model.MatchYellow > model.MatchOrange)
	assert.True(t, model.MatchOrange > model.MatchRed)
	assert.True(t, model.MatchRed > model.MatchWhite)

	q, err := model.ParseMatchQuality("orange")
	assert.NoError(t, err)
	assert.Equal(t, model.MatchOrange, q)

	_, err = model.ParseMatchQuality("purple")
	assert.Error(t, err)
}

func TestFormatSeries(t *testing.T) {
	idx := 2.5
	assert.Equal(t, "Dune [2.5]", model.FormatSeries("Dune", &idx))
	assert.Equal(t, "Dune", model.FormatSeries("Dune", nil))
	assert.Equal(t, "", model.FormatSeries("", &idx))
}

func TestSplitAuthors(t *testing.T) {
	assert.Equal(t, []string{"Terry Pratchett", "Neil Gaiman"}, model.SplitAuthors(" Terry Pratchett & Neil Gaiman &"))
	assert.Nil(t, model.SplitAuthors(""))
}
