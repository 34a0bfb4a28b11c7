package reconcile

import (
	"testing"

	"marvin-sync/core/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPlan(t *testing.T) {
	id := int64(7)
	records := []*model.BookRecord{
		{
			ID:           2,
			Title:        "Foo",
			CalibreID:    &id,
			MatchQuality: model.MatchYellow,
			Mismatches: map[string]model.Mismatch{
				model.FieldTitle:     {Local: "Foo", Remote: "Foo (revised)"},
				model.FieldUUID:      {Local: "u1", Remote: "stale"},
				model.FieldCoverHash: {Local: "c1", Remote: nil},
			},
		},
		{ID: 1, Title: "Orphan", MatchQuality: model.MatchWhite},
		{ID: 3, Title: "Clean", CalibreID: &id, MatchQuality: model.MatchGreen, Mismatches: map[string]model.Mismatch{}},
	}

	t.Run("Export", func(t *testing.T) {
		plan := BuildPlan(records, Export)

		assert.Equal(t, []int64{1}, plan.Skipped)
		require.Len(t, plan.Books, 1)
		assert.Equal(t, []string{model.FieldCoverHash, model.FieldTitle, model.FieldUUID}, plan.Books[0].Fields())
		assert.Equal(t, FieldChange{Field: model.FieldTitle, From: "Foo (revised)", To: "Foo"}, plan.Books[0].Changes[1])
		assert.Equal(t, 1, plan.Summary.Planned)
		assert.Equal(t, 3, plan.Summary.Changes)
	})

	t.Run("ImportSkipsIdentityFields", func(t *testing.T) {
		plan := BuildPlan(records, Import)

		require.Len(t, plan.Books, 1)
		assert.Equal(t, []string{model.FieldTitle}, plan.Books[0].Fields())
		assert.Equal(t, FieldChange{Field: model.FieldTitle, From: "Foo", To: "Foo (revised)"}, plan.Books[0].Changes[0])
	})

	t.Run("Summary", func(t *testing.T) {
		plan := BuildPlan(records, Export)

		assert.Equal(t, 3, plan.Summary.Total)
		assert.Equal(t, 1, plan.Summary.Mismatched)
		assert.Equal(t, 1, plan.Summary.ByQuality[model.MatchGreen])
		assert.Equal(t, 1, plan.Summary.ByQuality[model.MatchWhite])
		assert.Equal(t, 0, plan.Summary.ByQuality[model.MatchRed])
	})
}
