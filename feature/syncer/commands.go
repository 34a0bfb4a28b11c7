package syncer

import (
	"context"
	"fmt"
	"html"
	"strings"

	"marvin-sync/core/model"
	"marvin-sync/core/protocol"

	"go.uber.org/zap"
)

func (s *Service) fileParams(books []*model.BookRecord) ([]protocol.Parameter, []int64) {
	params := make([]protocol.Parameter, 0, len(books))
	ids := make([]int64, 0, len(books))
	for _, b := range books {
		params = append(params, protocol.Param("filename", s.scanner.FileName(b)))
		ids = append(ids, b.ID)
	}
	return params, ids
}

// DeleteBooks removes ids from the device. The records leave the session
// before the command is sent.
func (s *Service) DeleteBooks(ctx context.Context, ids []int64) (*BatchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := newReport()
	books := s.lookup(ids, report)
	if len(books) == 0 {
		return report, nil
	}

	params, sent := s.fileParams(books)
	for _, id := range sent {
		s.forget(id)
	}
	// Survivors are reclassified whatever the app answers.
	s.match(ctx)

	res, err := s.issue(ctx, protocol.Request{
		Envelope:       protocol.NewCommand(protocol.CmdDeleteBooks, params...),
		Mutating:       true,
		IgnoreTimeouts: true,
	})
	if err != nil {
		for _, id := range sent {
			report.fail(id, err)
		}
		return report, err
	}
	report.Warnings = res.Warnings
	report.Succeeded = append(report.Succeeded, sent...)
	s.logger.Info("Books deleted from device", zap.Int("count", len(sent)))
	return report, s.rematch(ctx)
}

// FetchAnnotations asks the app to export the highlights of ids, re-reads them
// and renders them into the configured desktop field.
func (s *Service) FetchAnnotations(ctx context.Context, ids []int64) (*BatchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := newReport()
	books := s.lookup(ids, report)
	if len(books) == 0 {
		return report, nil
	}

	params, sent := s.fileParams(books)
	res, err := s.issue(ctx, protocol.Request{
		Envelope: protocol.NewCommand(protocol.CmdRefreshHighlights, params...),
		Mutating: true,
	})
	if err != nil {
		for _, id := range sent {
			report.fail(id, err)
		}
		return report, err
	}
	report.Warnings = res.Warnings
	if err := s.refreshAfter(ctx, sent); err != nil {
		return report, err
	}

	for _, id := range sent {
		b, ok := s.records[id]
		if !ok {
			report.fail(id, fmt.Errorf("book %d: %w", id, ErrUnknownBook))
			continue
		}
		if s.cfg.AnnotationsField == "" || len(b.Highlights) == 0 {
			report.ok(id)
			continue
		}
		if b.CalibreID == nil {
			report.fail(id, fmt.Errorf("book %d: %w", id, ErrNoCounterpart))
			continue
		}
		if err := s.lib.SetCustomField(ctx, *b.CalibreID, s.cfg.AnnotationsField, RenderHighlights(b.Highlights)); err != nil {
			report.fail(id, stageError(StageLibrary, err))
			continue
		}
		report.ok(id)
	}
	return report, nil
}

// RenderHighlights formats highlights as the HTML stored in a comments field.
func RenderHighlights(hs []model.Highlight) string {
	var sb strings.Builder
	for _, h := range hs {
		sb.WriteString(`<div class="annotation">`)
		if !h.Created.IsZero() {
			fmt.Fprintf(&sb, `<p class="date">%s</p>`, h.Created.Format("2006-01-02 15:04"))
		}
		color := h.Color
		if color == "" {
			color = "yellow"
		}
		fmt.Fprintf(&sb, `<blockquote class="%s">%s</blockquote>`, html.EscapeString(color), html.EscapeString(h.Text))
		if h.Note != "" {
			fmt.Fprintf(&sb, `<p class="note">%s</p>`, html.EscapeString(h.Note))
		}
		sb.WriteString(`</div>`)
	}
	return sb.String()
}

// GenerateDeepView asks the app to prepare Deep View for ids.
func (s *Service) GenerateDeepView(ctx context.Context, ids []int64) (*BatchReport, error) {
	return s.bookCommand(ctx, ids, protocol.CmdGenerateDeepView, true)
}

// SetDeepViewOrder selects how Deep View sorts the entities of ids.
func (s *Service) SetDeepViewOrder(ctx context.Context, ids []int64, order string) (*BatchReport, error) {
	if order == "" {
		return nil, fmt.Errorf("deep view order is empty")
	}
	return s.bookCommand(ctx, ids, protocol.CmdDeepViewOrder, false, protocol.Param("order", order))
}

// bookCommand issues a per-book command and re-reads the books afterwards.
func (s *Service) bookCommand(ctx context.Context, ids []int64, typ string, bulk bool, extra ...protocol.Parameter) (*BatchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := newReport()
	books := s.lookup(ids, report)
	if len(books) == 0 {
		return report, nil
	}

	params, sent := s.fileParams(books)
	res, err := s.issue(ctx, protocol.Request{
		Envelope:       protocol.NewCommand(typ, append(extra, params...)...),
		Mutating:       true,
		IgnoreTimeouts: bulk,
	})
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
