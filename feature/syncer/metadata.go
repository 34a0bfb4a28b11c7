package syncer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"marvin-sync/core/model"
	"marvin-sync/core/protocol"
	"marvin-sync/core/reconcile"

	"go.uber.org/zap"
)

const manifestDate = "2006-01-02"

// Plan previews the metadata writes an export or import of ids would make.
func (s *Service) Plan(ids []int64, direction reconcile.Direction) *reconcile.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := newReport()
	books := s.lookup(ids, report)
	return reconcile.BuildPlan(books, direction)
}

// ExportMetadata writes desktop metadata to the device for ids in one
// update_metadata command. Covers travel along when the cover hashes differ.
func (s *Service) ExportMetadata(ctx context.Context, ids []int64, progress Progress) (*BatchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := newReport()
	books := s.lookup(ids, report)
	t := newTicker(progress, 2*len(books))

	env := &protocol.UpdateMetadata{}
	var sent []int64
	for _, b := range books {
		mb, err := s.manifestBook(ctx, b)
		t.tick()
		if err != nil {
			report.fail(b.ID, err)
			s.logger.Warn("Metadata export skipped", zap.Int64("book", b.ID), zap.Error(err))
			continue
		}
		env.Books = append(env.Books, *mb)
		sent = append(sent, b.ID)
	}
	if len(sent) == 0 {
		t.to(t.total)
		return report, nil
	}

	base := t.done
	res, err := s.issue(ctx, protocol.Request{
		Envelope:       env,
		Mutating:       true,
		IgnoreTimeouts: true,
		OnProgress: func(p float64) {
			t.to(base + int(p*float64(len(sent))))
		},
	})
	t.to(t.total)
	if err != nil {
		for _, id := range sent {
			report.fail(id, err)
		}
		return report, err
	}

	report.Warnings = res.Warnings
	report.Succeeded = append(report.Succeeded, sent...)
	return report, s.refreshAfter(ctx, sent)
}

// manifestBook renders the desktop metadata of a matched device book.
func (s *Service) manifestBook(ctx context.Context, b *model.BookRecord) (*protocol.ManifestBook, error) {
	if b.CalibreID == nil {
		return nil, fmt.Errorf("book %d: %w", b.ID, ErrNoCounterpart)
	}
	md, err := s.lib.GetMetadata(ctx, *b.CalibreID)
	if err != nil {
		return nil, stageError(StageLibrary, err)
	}

	mb := &protocol.ManifestBook{
		Author:     model.JoinAuthors(md.Authors),
		AuthorSort: md.AuthorSort,
		Filename:   s.scanner.FileName(b),
		Publisher:  md.Publisher,
		Series:     md.Series,
		Title:      md.Title,
		TitleSort:  md.TitleSort,
		UUID:       md.UUID,
		Subjects:   &protocol.Subjects{Items: model.NormalizeSet(md.Tags)},
	}
	if md.Pubdate != nil {
		mb.Pubdate = md.Pubdate.UTC().Format(manifestDate)
	}
	if md.Series != "" {
		mb.SeriesIndex = strconv.FormatFloat(md.SeriesIndex, 'f', -1, 64)
	}

	if _, differ := b.Mismatches[model.FieldCoverHash]; differ && s.covers != nil {
		c, err := s.coverFor(ctx, md)
		if err != nil {
			s.logger.Warn("Cover not sent", zap.Int64("book", b.ID), zap.Error(err))
		} else {
			mb.Cover = c
		}
	}
	return mb, nil
}

// coverFor returns the cover element: the full cover image tagged with the
// thumbnail digest the device reports back.
func (s *Service) coverFor(ctx context.Context, md *model.Metadata) (*protocol.Cover, error) {
	thumb, ok, err := s.covers.Thumbnail(ctx, md)
	if err != nil || !ok {
		return nil, err
	}
	data, _, err := s.lib.Cover(ctx, md.ID)
	if err != nil {
		return nil, err
	}
	return protocol.NewCover(thumb.Hash, data), nil
}

// ImportMetadata writes the mismatched device values of ids into the desktop
// library. uuid and cover hash are never imported.
func (s *Service) ImportMetadata(ctx context.Context, ids []int64, progress Progress) (*BatchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := newReport()
	books := s.lookup(ids, report)
	t := newTicker(progress, 2*len(books))

	for _, b := range books {
		t.tick()
		if err := s.importBook(ctx, b); err != nil {
			report.fail(b.ID, err)
			s.logger.Warn("Metadata import failed", zap.Int64("book", b.ID), zap.Error(err))
		} else {
			report.ok(b.ID)
		}
		t.tick()
	}

	if len(report.Succeeded) == 0 {
		return report, nil
	}
	return report, s.rematch(ctx)
}

func (s *Service) importBook(ctx context.Context, b *model.BookRecord) error {
	plan := reconcile.BuildPlan([]*model.BookRecord{b}, reconcile.Import)
	if len(plan.Skipped) > 0 {
		return fmt.Errorf("book %d: %w", b.ID, ErrNoCounterpart)
	}

	if len(plan.Books) > 0 {
		if err := s.lib.SetMetadata(ctx, *b.CalibreID, deviceMetadata(b), plan.Books[0].Fields()); err != nil {
			return stageError(StageLibrary, err)
		}
	}

	if s.cfg.ProgressField != "" && b.Progress != nil {
		value := strconv.Itoa(int(*b.Progress*100+0.5)) + "%"
		if err := s.lib.SetCustomField(ctx, *b.CalibreID, s.cfg.ProgressField, value); err != nil {
			return stageError(StageLibrary, err)
		}
	}
	return nil
}

// deviceMetadata expresses a device record as desktop metadata.
func deviceMetadata(b *model.BookRecord) *model.Metadata {
	md := &model.Metadata{
		UUID:        b.UUID,
		Title:       b.Title,
		TitleSort:   b.TitleSort,
		Authors:     b.Authors,
		AuthorSort:  b.AuthorSort,
		Publisher:   b.Publisher,
		Pubdate:     b.Pubdate,
		Series:      b.Series,
		SeriesIndex: 1,
		Tags:        b.Subjects,
		Comments:    strings.TrimSpace(b.Description),
	}
	if b.SeriesIndex != nil {
		md.SeriesIndex = *b.SeriesIndex
	}
	return md
}
