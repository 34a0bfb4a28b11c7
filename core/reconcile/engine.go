package reconcile

import (
	"context"
	"sort"
	"strconv"

	"marvin-sync/core/model"

	"go.uber.org/zap"
)

// Engine matches device books against the desktop library index.
type Engine struct {
	covers CoverHasher
	log    *zap.Logger
}

// NewEngine creates an Engine. covers may be nil, which skips cover comparison.
func NewEngine(covers CoverHasher, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{covers: covers, log: log}
}

// Result is the outcome of a matching run.
type Result struct {
	// DeviceHashes maps content hashes to the ids of device books carrying them.
	DeviceHashes model.HashMap
	// Summary counts records per quality.
	Summary Summary
}

// Run assigns Matches, CalibreID, Mismatches and MatchQuality to every record.
// Records are updated in place. The outcome depends only on the records and the
// index, so running it twice yields the same classification.
func (e *Engine) Run(ctx context.Context, books []*model.BookRecord, idx *model.LibraryIndex) Result {
	ordered := make([]*model.BookRecord, len(books))
	copy(ordered, books)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	if idx == nil {
		idx = model.NewLibraryIndex(model.LibraryIdentity{})
	}

	// 1. Hash pass
	hard := make(map[string][]*model.BookRecord)
	var soft []*model.BookRecord
	softSet := make(map[*model.BookRecord]bool)
	for _, b := range ordered {
		b.Matches = nil
		b.CalibreID = nil
		b.Mismatches = make(map[string]model.Mismatch)

		if uuids, ok := idx.HashMap.Get(b.ContentHash); ok {
			if contains(uuids, b.UUID) {
				b.Matches = append([]string(nil), uuids...)
				hard[b.ContentHash] = append(hard[b.ContentHash], b)
			} else {
				b.Matches = []string{b.UUID}
				soft = append(soft, b)
				softSet[b] = true
			}
			continue
		}

		// Unknown hash, but the uuid is authoritative when the library has it.
		if b.UUID != "" {
			if _, ok := idx.ByUUID[b.UUID]; ok {
				b.Matches = []string{b.UUID}
			}
		}
	}

	// 2. Soft resolution: a soft book sharing a hard book's hash refers to the
	// same desktop uuid set, so both sides get the union.
	for _, s := range soft {
		peers, ok := hard[s.ContentHash]
		if !ok {
			continue
		}
		union := s.Matches
		for _, h := range peers {
			union = unionKeys(union, h.Matches)
		}
		s.Matches = union
		for _, h := range peers {
			h.Matches = unionKeys(h.Matches, union)
		}
	}

	// 3. Mismatches against the known counterpart
	for _, b := range ordered {
		md := counterpart(b, idx)
		if md == nil {
			continue
		}
		id := md.ID
		b.CalibreID = &id
		b.Mismatches = CompareMetadata(md, b, e.coverState(ctx, md))
	}

	// 4. Classification
	deviceHashes := make(model.HashMap)
	deviceOnly := make(map[string]int)
	for _, b := range ordered {
		deviceHashes.Add(b.ContentHash, strconv.FormatInt(b.ID, 10))
		if len(b.Matches) == 0 && model.IsValidHash(b.ContentHash) {
			deviceOnly[b.ContentHash]++
		}
	}

	summary := Summary{ByQuality: make(map[model.MatchQuality]int)}
	for _, b := range ordered {
		count := 0
		if model.IsValidHash(b.ContentHash) && len(b.Matches) == 0 {
			count = deviceOnly[b.ContentHash]
		}
		b.MatchQuality = Classify(Facts{
			UUID:                b.UUID,
			Matches:             b.Matches,
			HasMismatches:       len(b.Mismatches) > 0,
			OnPrimary:           b.OnPrimary(),
			DeviceOnlyHashCount: count,
			Soft:                softSet[b],
		})
		summary.Total++
		summary.ByQuality[b.MatchQuality]++
		if len(b.Mismatches) > 0 {
			summary.Mismatched++
		}
	}

	e.log.Debug("Match run complete",
		zap.Int("books", summary.Total),
		zap.Int("green", summary.ByQuality[model.MatchGreen]),
		zap.Int("yellow", summary.ByQuality[model.MatchYellow]),
		zap.Int("orange", summary.ByQuality[model.MatchOrange]),
		zap.Int("red", summary.ByQuality[model.MatchRed]),
		zap.Int("white", summary.ByQuality[model.MatchWhite]),
	)

	return Result{DeviceHashes: deviceHashes, Summary: summary}
}

// Classify returns the match quality for a set of facts. Conditions are
// evaluated in order and the first that holds wins; a book that is both on the
// primary location with mismatches and listed among duplicate matches is YELLOW.
// A book matched only through its content hash is never GREEN.
func Classify(f Facts) model.MatchQuality {
	exact := len(f.Matches) == 1 && f.Matches[0] == f.UUID

	switch {
	case f.UUID != "" && exact && !f.HasMismatches && !f.Soft:
		return model.MatchGreen
	case (f.OnPrimary && f.HasMismatches) || exact:
		return model.MatchYellow
	case contains(f.Matches, f.UUID):
		return model.MatchOrange
	case f.DeviceOnlyHashCount > 1:
		return model.MatchRed
	default:
		return model.MatchWhite
	}
}

// counterpart finds the desktop book a record is compared against: by uuid
// first, else the single desktop uuid recorded under its content hash.
func counterpart(b *model.BookRecord, idx *model.LibraryIndex) *model.Metadata {
	if md, ok := idx.ByUUIDMetadata(b.UUID); ok {
		return md
	}
	uuids, ok := idx.HashMap.Get(b.ContentHash)
	if !ok || len(uuids) != 1 {
		return nil
	}
	md, _ := idx.ByUUIDMetadata(uuids[0])
	return md
}

func (e *Engine) coverState(ctx context.Context, md *model.Metadata) CoverState {
	if e.covers == nil {
		return CoverState{}
	}
	hash, ok, err := e.covers.CoverHash(ctx, md)
	if err != nil {
		e.log.Warn("Cover hash failed, skipping cover comparison", zap.Int64("calibre_id", md.ID), zap.Error(err))
		return CoverState{}
	}
	if !ok {
		return CoverState{Known: true}
	}
	return CoverState{Known: true, Hash: hash}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// unionKeys appends the elements of b missing from a, keeping order.
func unionKeys(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, v := range b {
		if !contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
