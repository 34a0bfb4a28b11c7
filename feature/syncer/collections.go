package syncer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"marvin-sync/core/model"
	"marvin-sync/core/protocol"

	"go.uber.org/zap"
)

// CollectionsMode selects the direction of a collections update.
type CollectionsMode string

const (
	CollectionsExport      CollectionsMode = "export"
	CollectionsImport      CollectionsMode = "import"
	CollectionsSynchronize CollectionsMode = "synchronize"
	CollectionsClear       CollectionsMode = "clear"
)

// ParseCollectionsMode validates a mode name.
func ParseCollectionsMode(s string) (CollectionsMode, error) {
	switch m := CollectionsMode(strings.ToLower(s)); m {
	case CollectionsExport, CollectionsImport, CollectionsSynchronize, CollectionsClear:
		return m, nil
	}
	return "", fmt.Errorf("unknown collections mode %q", s)
}

// UpdateCollections aligns device collections and the desktop collections
// field for ids. Export and synchronize issue one update_collections command.
func (s *Service) UpdateCollections(ctx context.Context, ids []int64, mode CollectionsMode) (*BatchReport, error) {
	if _, err := ParseCollectionsMode(string(mode)); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report := newReport()
	books := s.lookup(ids, report)

	var (
		wire []protocol.CollectionsBook
		sent []int64
	)
	for _, b := range books {
		device, err := s.planCollections(ctx, b, mode)
		if err != nil {
			report.fail(b.ID, err)
			s.logger.Warn("Collections update failed", zap.Int64("book", b.ID), zap.String("mode", string(mode)), zap.Error(err))
			continue
		}
		if device == nil {
			report.ok(b.ID)
			continue
		}
		wire = append(wire, s.collectionsBook(b, b.Flags, device))
		sent = append(sent, b.ID)
	}

	if len(sent) == 0 {
		if len(report.Succeeded) > 0 && mode == CollectionsImport {
			return report, s.rematch(ctx)
		}
		return report, nil
	}
	return s.sendCollections(ctx, report, wire, sent)
}

// planCollections writes the desktop side when the mode asks for it and
// returns the collection list to send to the device, or nil when the device
// keeps its list.
func (s *Service) planCollections(ctx context.Context, b *model.BookRecord, mode CollectionsMode) ([]string, error) {
	if mode == CollectionsClear {
		return []string{}, nil
	}
	if b.CalibreID == nil {
		return nil, fmt.Errorf("book %d: %w", b.ID, ErrNoCounterpart)
	}

	desktop, err := s.desktopCollections(ctx, *b.CalibreID)
	if err != nil {
		return nil, err
	}

	switch mode {
	case CollectionsExport:
		return desktop, nil
	case CollectionsImport:
		return nil, s.setDesktopCollections(ctx, *b.CalibreID, b.Collections)
	default:
		union := model.UnionSet(desktop, b.Collections)
		if !model.EqualSet(union, desktop) {
			if err := s.setDesktopCollections(ctx, *b.CalibreID, union); err != nil {
				return nil, err
			}
		}
		return union, nil
	}
}

// desktopCollections reads the configured collections field, or the tags.
func (s *Service) desktopCollections(ctx context.Context, calibreID int64) ([]string, error) {
	if s.cfg.CollectionsField == "" {
		md, err := s.lib.GetMetadata(ctx, calibreID)
		if err != nil {
			return nil, stageError(StageLibrary, err)
		}
		return model.NormalizeSet(md.Tags), nil
	}

	v, err := s.lib.GetCustomField(ctx, calibreID, s.cfg.CollectionsField)
	if err != nil {
		return nil, stageError(StageLibrary, err)
	}
	switch val := v.(type) {
	case []string:
		return model.NormalizeSet(val), nil
	case string:
		return model.NormalizeSet(strings.Split(val, ",")), nil
	default:
		return []string{}, nil
	}
}

func (s *Service) setDesktopCollections(ctx context.Context, calibreID int64, names []string) error {
	var err error
	if s.cfg.CollectionsField == "" {
		err = s.lib.SetMetadata(ctx, calibreID, &model.Metadata{Tags: names}, []string{model.FieldTags})
	} else {
		err = s.lib.SetCustomField(ctx, calibreID, s.cfg.CollectionsField, model.NormalizeSet(names))
	}
	return stageError(StageLibrary, err)
}

func (s *Service) collectionsBook(b *model.BookRecord, flags model.Flags, collections []string) protocol.CollectionsBook {
	items := model.MergeWire(flags, collections)
	if items == nil {
		items = []string{}
	}
	return protocol.CollectionsBook{
		Filename:    s.scanner.FileName(b),
		Collections: &protocol.Collection{Items: items},
	}
}

func (s *Service) sendCollections(ctx context.Context, report *BatchReport, wire []protocol.CollectionsBook, sent []int64) (*BatchReport, error) {
	cmd := protocol.NewCommand(protocol.CmdUpdateCollections)
	cmd.Books = wire

	res, err := s.issue(ctx, protocol.Request{Envelope: cmd, Mutating: true, IgnoreTimeouts: true})
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

// SetFlags sets the flags in mask on ids. Each set flag clears the flags it
// inhibits: READ clears NEW and READING LIST, NEW clears READING LIST and
// READ, READING LIST clears NEW and READ.
func (s *Service) SetFlags(ctx context.Context, ids []int64, mask model.Flags) (*BatchReport, error) {
	return s.updateFlags(ctx, ids, mask, model.Flags.Set)
}

// ClearFlags clears the flags in mask on ids.
func (s *Service) ClearFlags(ctx context.Context, ids []int64, mask model.Flags) (*BatchReport, error) {
	return s.updateFlags(ctx, ids, mask, model.Flags.Clear)
}

func (s *Service) updateFlags(ctx context.Context, ids []int64, mask model.Flags, apply func(model.Flags, model.Flags) model.Flags) (*BatchReport, error) {
	if mask&model.FlagMask == 0 || mask&^model.FlagMask != 0 {
		return nil, fmt.Errorf("invalid flag mask %d", mask)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report := newReport()
	books := s.lookup(ids, report)
	if len(books) == 0 {
		return report, nil
	}

	wire := make([]protocol.CollectionsBook, 0, len(books))
	sent := make([]int64, 0, len(books))
	for _, b := range books {
		wire = append(wire, s.collectionsBook(b, apply(b.Flags, mask), b.Collections))
		sent = append(sent, b.ID)
	}
	return s.sendCollections(ctx, report, wire, sent)
}

// RenameCollection renames a device collection on every book carrying it.
func (s *Service) RenameCollection(ctx context.Context, name, newName string) (*BatchReport, error) {
	if strings.TrimSpace(newName) == "" {
		return nil, fmt.Errorf("new collection name is empty")
	}
	return s.maintainCollection(ctx, name,
		protocol.Param("action", "rename"),
		protocol.Param("name", name),
		protocol.Param("newname", newName),
	)
}

// DeleteCollection removes a device collection from every book.
func (s *Service) DeleteCollection(ctx context.Context, name string) (*BatchReport, error) {
	return s.maintainCollection(ctx, name,
		protocol.Param("action", "delete"),
		protocol.Param("name", name),
	)
}

func (s *Service) maintainCollection(ctx context.Context, name string, params ...protocol.Parameter) (*BatchReport, error) {
	if model.IsFlagName(name) {
		return nil, fmt.Errorf("%q is a reserved flag name", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var touched []int64
	for id, b := range s.records {
		for _, c := range b.Collections {
			if c == name {
				touched = append(touched, id)
				break
			}
		}
	}

	sort.Slice(touched, func(i, j int) bool { return touched[i] < touched[j] })

	report := newReport()
	res, err := s.issue(ctx, protocol.Request{
		Envelope: protocol.NewCommand(protocol.CmdCollectionMaintenance, params...),
		Mutating: true,
	})
	if err != nil {
		for _, id := range touched {
			report.fail(id, err)
		}
		return report, err
	}
	report.Warnings = res.Warnings
	report.Succeeded = append(report.Succeeded, touched...)
	return report, s.refreshAfter(ctx, touched)
}
