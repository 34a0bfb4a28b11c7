package syncer_test

import (
	"bytes"
	"context"
	"encoding/xml"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"marvin-sync/core/cover"
	"marvin-sync/core/devicedb/devicedbtest"
	"marvin-sync/core/devicefs"
	"marvin-sync/core/model"
	"marvin-sync/core/protocol"
	"marvin-sync/feature/device"
	"marvin-sync/feature/library"
	"marvin-sync/feature/library/librarytest"
	"marvin-sync/feature/syncer"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

type harness struct {
	lib   *librarytest.Library
	store *library.Store
	root  string
	fs    *devicefs.MountFS
	db    *devicedbtest.DB
	app   *appSim
	svc   *syncer.Service
}

type harnessOptions struct {
	sync    syncer.Config
	timeout time.Duration
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	log := zap.NewNop()

	lib := librarytest.Create(t)
	store := library.NewStore(lib.DB, afero.NewOsFs(), lib.Root, log)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Library"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Documents"), 0o755))
	fs := devicefs.NewMountFS(afero.NewBasePathFs(afero.NewOsFs(), root), afero.NewOsFs())
	db := devicedbtest.Create(t, filepath.Join(root, "Library", "mainDb.sqlite"))

	devCfg := device.DefaultConfig()
	devCfg.ScratchDir = t.TempDir()

	protoCfg := protocol.DefaultConfig()
	protoCfg.PollInterval = 5 * time.Millisecond
	protoCfg.Timeout = 2 * time.Second
	if opts.timeout > 0 {
		protoCfg.Timeout = opts.timeout
	}

	svc := syncer.NewService(syncer.Deps{
		Library: store,
		Indexer: library.NewIndexer(store, "EPUB", nil, 2, log),
		Covers:  library.NewCovers(store, cover.NewHasher(0, 0)),
		Device:  fs,
	}, syncer.Options{Sync: opts.sync, Device: devCfg, Protocol: protoCfg}, log)
	t.Cleanup(func() { _ = svc.Disconnect() })

	app := &appSim{root: root, fs: fs, db: db, cfg: protoCfg, stop: make(chan struct{}), done: make(chan struct{})}
	go app.run()
	t.Cleanup(app.close)

	return &harness{lib: lib, store: store, root: root, fs: fs, db: db, app: app, svc: svc}
}

// deviceBook writes a book file into Documents and its row into the app database.
func (h *harness) deviceBook(t *testing.T, b devicedbtest.Book, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "Documents", b.FileName), data, 0o644))
	h.db.Insert(b)
}

func (h *harness) fullSync(t *testing.T) map[int64]*model.BookRecord {
	t.Helper()
	records, err := h.svc.FullSync(context.Background())
	require.NoError(t, err)
	out := make(map[int64]*model.BookRecord, len(records))
	for _, r := range records {
		out[r.ID] = r
	}
	return out
}

// appSim plays the reader app: it consumes staged commands, applies them to
// the app database and answers with a status artifact.
type appSim struct {
	root string
	fs   devicefs.FS
	db   *devicedbtest.DB
	cfg  protocol.Config

	mu       sync.Mutex
	silent   bool
	code     int
	messages []string
	received [][]byte
	errs     []error

	stop chan struct{}
	done chan struct{}
}

func (a *appSim) close() {
	close(a.stop)
	<-a.done
}

// reply sets the status code and messages of the following answers.
func (a *appSim) reply(code int, messages ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.code = code
	a.messages = messages
}

// mute makes the app consume commands without ever answering.
func (a *appSim) mute() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.silent = true
}

func (a *appSim) commands() [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([][]byte(nil), a.received...)
}

func (a *appSim) failures() []error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]error(nil), a.errs...)
}

func (a *appSim) run() {
	defer close(a.done)
	ctx := context.Background()
	for {
		select {
		case <-a.stop:
			return
		case <-time.After(2 * time.Millisecond):
		}

		data, err := a.fs.Read(ctx, a.cfg.CommandPath())
		if err != nil {
			continue
		}
		_ = a.fs.Remove(ctx, a.cfg.CommandPath())
		data = bytes.TrimPrefix(data, bom)

		a.mu.Lock()
		a.received = append(a.received, data)
		silent, code, messages := a.silent, a.code, a.messages
		a.mu.Unlock()
		if silent {
			continue
		}

		if code == protocol.CodeSuccess || code == protocol.CodeWarnings {
			if err := a.apply(data); err != nil {
				a.mu.Lock()
				a.errs = append(a.errs, err)
				a.mu.Unlock()
			}
		}

		st, err := protocol.EncodeStatus(&protocol.Status{Code: code, Timestamp: "t1", Progress: 1, Messages: messages})
		if err != nil {
			continue
		}
		tmp := a.cfg.StatusPath() + ".app"
		if a.fs.Write(ctx, st, tmp) == nil {
			_ = a.fs.Rename(ctx, tmp, a.cfg.StatusPath())
		}
	}
}

const byFile = `(SELECT ID FROM Books WHERE FileName = ?)`

func (a *appSim) apply(data []byte) error {
	if bytes.Contains(data, []byte("<updatemetadata")) {
		var env protocol.UpdateMetadata
		if err := xml.Unmarshal(data, &env); err != nil {
			return err
		}
		for _, b := range env.Books {
			if err := a.updateMetadata(b); err != nil {
				return err
			}
		}
		return nil
	}

	var cmd protocol.Command
	if err := xml.Unmarshal(data, &cmd); err != nil {
		return err
	}
	switch cmd.Type {
	case protocol.CmdUpdateCollections:
		for _, b := range cmd.Books {
			if err := a.setCollections(b.Filename, b.Collections.Items); err != nil {
				return err
			}
		}
	case protocol.CmdDeleteBooks:
		for _, p := range cmd.Parameters {
			if err := a.db.Try(`DELETE FROM Books WHERE FileName = ?`, p.Value); err != nil {
				return err
			}
			_ = os.Remove(filepath.Join(a.root, "Documents", p.Value))
		}
	case protocol.CmdGenerateDeepView:
		for _, p := range cmd.Parameters {
			if err := a.db.Try(`UPDATE Books SET DeepViewPrepared = 1 WHERE FileName = ?`, p.Value); err != nil {
				return err
			}
		}
	case protocol.CmdCollectionMaintenance:
		params := make(map[string]string)
		for _, p := range cmd.Parameters {
			params[p.Name] = p.Value
		}
		if params["action"] == "rename" {
			return a.db.Try(`UPDATE Collections SET Name = ? WHERE Name = ?`, params["newname"], params["name"])
		}
		if err := a.db.Try(`DELETE FROM BookCollections WHERE CollectionID IN (SELECT ID FROM Collections WHERE Name = ?)`, params["name"]); err != nil {
			return err
		}
		return a.db.Try(`DELETE FROM Collections WHERE Name = ?`, params["name"])
	}
	return nil
}

func (a *appSim) updateMetadata(b protocol.ManifestBook) error {
	err := a.db.Try(`UPDATE Books SET Title = ?, Author = ?, AuthorSort = NULLIF(?, ''), CalibreTitleSort = NULLIF(?, ''),
		UUID = NULLIF(?, ''), Publisher = NULLIF(?, ''), DatePublished = NULLIF(?, ''), CalibreSeries = NULLIF(?, ''),
		CalibreSeriesIndex = NULLIF(?, '') WHERE FileName = ?`,
		b.Title, b.Author, b.AuthorSort, b.TitleSort, b.UUID, b.Publisher, b.Pubdate, b.Series, b.SeriesIndex, b.Filename)
	if err != nil {
		return err
	}
	if b.Cover != nil {
		if err := a.db.Try(`UPDATE Books SET CalibreCoverHash = ? WHERE FileName = ?`, b.Cover.Hash, b.Filename); err != nil {
			return err
		}
	}
	if b.Subjects == nil {
		return nil
	}
	if err := a.db.Try(`DELETE FROM BookSubjects WHERE BookID = `+byFile, b.Filename); err != nil {
		return err
	}
	for _, s := range b.Subjects.Items {
		if err := a.db.Try(`INSERT INTO BookSubjects (BookID, Title) VALUES (`+byFile+`, ?)`, b.Filename, s); err != nil {
			return err
		}
	}
	return nil
}

func (a *appSim) setCollections(file string, items []string) error {
	flags, names := model.SplitWire(items)
	if err := a.db.Try(`UPDATE Books SET IsRead = ?, ReadingList = ?, NewFlag = ? WHERE FileName = ?`,
		flags.Has(model.FlagRead), flags.Has(model.FlagReadingList), flags.Has(model.FlagNew), file); err != nil {
		return err
	}
	if err := a.db.Try(`DELETE FROM BookCollections WHERE BookID = `+byFile, file); err != nil {
		return err
	}
	for _, name := range names {
		if err := a.db.Try(`INSERT INTO Collections (Name) SELECT ? WHERE NOT EXISTS (SELECT 1 FROM Collections WHERE Name = ?)`, name, name); err != nil {
			return err
		}
		if err := a.db.Try(`INSERT INTO BookCollections (BookID, CollectionID) SELECT `+byFile+`, ID FROM Collections WHERE Name = ?`, file, name); err != nil {
			return err
		}
	}
	return nil
}
