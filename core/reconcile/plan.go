package reconcile

import (
	"sort"

	"marvin-sync/core/model"
)

// importExcluded lists fields never written back to the desktop library.
var importExcluded = map[string]bool{
	model.FieldUUID:      true,
	model.FieldCoverHash: true,
}

// BuildPlan lists the metadata writes needed to align the given records in one
// direction. Only fields with a recorded mismatch are planned. Records without
// a desktop counterpart are reported as skipped.
func BuildPlan(records []*model.BookRecord, direction Direction) *Plan {
	plan := &Plan{
		Direction: direction,
		Books:     []BookPlan{},
		Skipped:   []int64{},
	}

	ordered := make([]*model.BookRecord, len(records))
	copy(ordered, records)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	for _, b := range ordered {
		if b.CalibreID == nil {
			plan.Skipped = append(plan.Skipped, b.ID)
			continue
		}

		bp := BookPlan{BookID: b.ID, CalibreID: *b.CalibreID, Title: b.Title, Changes: []FieldChange{}}
		for _, field := range model.MetadataFields {
			mm, ok := b.Mismatches[field]
			if !ok {
				continue
			}
			switch direction {
			case Import:
				if importExcluded[field] {
					continue
				}
				bp.Changes = append(bp.Changes, FieldChange{Field: field, From: mm.Local, To: mm.Remote})
			default:
				bp.Changes = append(bp.Changes, FieldChange{Field: field, From: mm.Remote, To: mm.Local})
			}
		}

		if len(bp.Changes) == 0 {
			continue
		}
		plan.Books = append(plan.Books, bp)
		plan.Summary.Planned++
		plan.Summary.Changes += len(bp.Changes)
	}

	counts := Summarize(records)
	plan.Summary.Total = counts.Total
	plan.Summary.ByQuality = counts.ByQuality
	plan.Summary.Mismatched = counts.Mismatched

	return plan
}

// Summarize counts records per match quality.
func Summarize(records []*model.BookRecord) Summary {
	s := Summary{ByQuality: make(map[model.MatchQuality]int, len(model.AllQualities()))}
	for _, q := range model.AllQualities() {
		s.ByQuality[q] = 0
	}
	for _, b := range records {
		s.Total++
		s.ByQuality[b.MatchQuality]++
		if len(b.Mismatches) > 0 {
			s.Mismatched++
		}
	}
	return s
}
