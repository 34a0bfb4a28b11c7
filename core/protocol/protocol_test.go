package protocol

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"marvin-sync/core/devicefs"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingRefresher struct {
	calls int32
	err   error
}

func (r *countingRefresher) Refresh(context.Context) error {
	atomic.AddInt32(&r.calls, 1)
	return r.err
}

// app plays the device side of the exchange.
type app struct {
	t   *testing.T
	fs  devicefs.FS
	cfg Config
}

func (a *app) waitFor(path string, within time.Duration) ([]byte, bool) {
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if data, err := a.fs.Read(context.Background(), path); err == nil {
			return data, true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return nil, false
}

// consume waits for a command and removes it like the app does.
func (a *app) consume() []byte {
	data, ok := a.waitFor(a.cfg.CommandPath(), 2*time.Second)
	if !assert.True(a.t, ok, "command never staged") {
		return nil
	}
	_ = a.fs.Remove(context.Background(), a.cfg.CommandPath())
	return data
}

func (a *app) status(code int, ts string, progress float64, messages ...string) {
	data, err := EncodeStatus(&Status{Code: code, Timestamp: ts, Progress: progress, Messages: messages})
	if !assert.NoError(a.t, err) {
		return
	}
	ctx := context.Background()
	tmp := a.cfg.StatusPath() + ".app"
	assert.NoError(a.t, a.fs.Write(ctx, data, tmp))
	assert.NoError(a.t, a.fs.Rename(ctx, tmp, a.cfg.StatusPath()))
}

func testConfig(timeout time.Duration) Config {
	cfg := DefaultConfig()
	cfg.Timeout = timeout
	cfg.PollInterval = 5 * time.Millisecond
	return cfg
}

func setup(t *testing.T, timeout time.Duration) (*Protocol, *app, *countingRefresher) {
	t.Helper()
	fs := devicefs.NewMountFS(afero.NewMemMapFs(), afero.NewMemMapFs())
	cfg := testConfig(timeout)
	ref := &countingRefresher{}
	return New(fs, cfg, ref, zap.NewNop()), &app{t: t, fs: fs, cfg: cfg}, ref
}

func exists(t *testing.T, fs devicefs.FS, path string) bool {
	t.Helper()
	ok, err := fs.Exists(context.Background(), path)
	require.NoError(t, err)
	return ok
}

func deleteRequest() Request {
	return Request{Envelope: NewCommand(CmdDeleteBooks, Param("filename", "a.epub")), Mutating: true}
}

func TestIssue_Completed(t *testing.T) {
	p, dev, ref := setup(t, time.Second)

	go func() {
		data := dev.consume()
		assert.True(t, bytes.HasPrefix(data, bom), "command must start with a byte order mark")
		assert.Contains(t, string(data), `<command type="delete_books"`)
		assert.Contains(t, string(data), `<parameter name="filename">a.epub</parameter>`)
		dev.status(CodeSuccess, "t1", 1)
	}()

	res, err := p.Issue(context.Background(), deleteRequest())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, CodeSuccess, res.Code)
	assert.Empty(t, res.Warnings)
	assert.False(t, exists(t, dev.fs, dev.cfg.StatusPath()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&ref.calls))
}

func TestIssue_CompletedWithWarnings(t *testing.T) {
	p, dev, ref := setup(t, time.Second)

	go func() {
		dev.consume()
		dev.status(CodeWarnings, "t1", 1, "cover too large", "series ignored")
	}()

	req := deleteRequest()
	req.Mutating = false
	res, err := p.Issue(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"cover too large", "series ignored"}, res.Warnings)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ref.calls))
}

func TestIssue_DeviceError(t *testing.T) {
	p, dev, ref := setup(t, time.Second)

	go func() {
		dev.consume()
		dev.status(CodeInProgress, "t1", 0.2)
		time.Sleep(20 * time.Millisecond)
		dev.status(CodeFailed, "t2", 0.2, "book not found")
	}()

	_, err := p.Issue(context.Background(), deleteRequest())
	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, CodeFailed, devErr.Code)
	assert.Equal(t, []string{"book not found"}, devErr.Messages)
	assert.Contains(t, err.Error(), "book not found")
	assert.False(t, exists(t, dev.fs, dev.cfg.StatusPath()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&ref.calls), "mutating commands refresh on failure too")
}

func TestIssue_TimeoutWithoutAck(t *testing.T) {
	p, dev, _ := setup(t, time.Second)

	start := time.Now()
	_, err := p.Issue(context.Background(), deleteRequest())

	require.ErrorIs(t, err, ErrTimeout)
	var tErr *TimeoutError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, StateAwaitingAck, tErr.State)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	assert.False(t, exists(t, dev.fs, dev.cfg.StatusPath()))
	assert.False(t, exists(t, dev.fs, dev.cfg.CommandPath()), "unread command is withdrawn")
}

func TestIssue_TimeoutWhileMonitoring(t *testing.T) {
	p, dev, _ := setup(t, 100*time.Millisecond)

	go func() {
		dev.consume()
		dev.status(CodeInProgress, "t1", 0.1)
	}()

	_, err := p.Issue(context.Background(), deleteRequest())
	var tErr *TimeoutError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, StateMonitoring, tErr.State)
	assert.False(t, exists(t, dev.fs, dev.cfg.StatusPath()), "status artifact removed after timeout")
}

// slowApp acks late and then reports progress with advancing timestamps, each
// step slower than the watchdog window. It reports false when the command was
// gone by the time it looked.
func slowApp(dev *app, step time.Duration) bool {
	time.Sleep(step)
	if _, ok := dev.waitFor(dev.cfg.CommandPath(), step); !ok {
		return false
	}
	_ = dev.fs.Remove(context.Background(), dev.cfg.CommandPath())
	dev.status(CodeInProgress, "t1", 0.3)
	time.Sleep(step)
	dev.status(CodeInProgress, "t2", 0.6)
	time.Sleep(step)
	dev.status(CodeSuccess, "t3", 1)
	return true
}

func TestIssue_IgnoreTimeouts(t *testing.T) {
	const step = 150 * time.Millisecond

	t.Run("Enabled", func(t *testing.T) {
		p, dev, _ := setup(t, 50*time.Millisecond)
		acked := make(chan bool, 1)
		go func() { acked <- slowApp(dev, step) }()

		req := deleteRequest()
		req.IgnoreTimeouts = true
		res, err := p.Issue(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, StateCompleted, res.State)
		assert.True(t, <-acked)
	})

	t.Run("Disabled", func(t *testing.T) {
		p, dev, _ := setup(t, 50*time.Millisecond)
		acked := make(chan bool, 1)
		go func() { acked <- slowApp(dev, step) }()

		_, err := p.Issue(context.Background(), deleteRequest())
		assert.ErrorIs(t, err, ErrTimeout)
		var tErr *TimeoutError
		require.ErrorAs(t, err, &tErr)
		assert.Equal(t, StateAwaitingAck, tErr.State)
		// The command was withdrawn on timeout; the slow app finds nothing to consume.
		assert.False(t, <-acked)
		assert.False(t, exists(t, dev.fs, dev.cfg.StatusPath()))
	})
}

func TestIssue_Progress(t *testing.T) {
	p, dev, _ := setup(t, time.Second)

	go func() {
		dev.consume()
		dev.status(CodeInProgress, "t1", 0.5)
		time.Sleep(50 * time.Millisecond)
		dev.status(CodeSuccess, "t2", 1)
	}()

	var mu sync.Mutex
	var seen []float64
	req := deleteRequest()
	req.OnProgress = func(v float64) {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	}

	_, err := p.Issue(context.Background(), req)
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, 0.5)
	assert.Equal(t, 1.0, seen[len(seen)-1])
}

func TestIssue_CancelWhileMonitoring(t *testing.T) {
	p, dev, _ := setup(t, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		dev.consume()
		dev.status(CodeInProgress, "t1", 0.1)
		data, ok := dev.waitFor(dev.cfg.CancelPath(), 2*time.Second)
		if assert.True(t, ok, "cancel request never written") {
			assert.Contains(t, string(data), `type="cancel"`)
			assert.Contains(t, string(data), `<parameter name="command">delete_books</parameter>`)
		}
		dev.status(CodeCancelled, "t2", 0.1)
	}()

	var once sync.Once
	req := deleteRequest()
	req.OnProgress = func(float64) { once.Do(cancel) }

	_, err := p.Issue(ctx, req)
	require.ErrorIs(t, err, ErrCancelled)
	assert.False(t, exists(t, dev.fs, dev.cfg.StatusPath()))
	assert.False(t, exists(t, dev.fs, dev.cfg.CancelPath()))
}

func TestIssue_CancelBeforeAck(t *testing.T) {
	p, dev, _ := setup(t, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := p.Issue(ctx, deleteRequest())
	require.ErrorIs(t, err, ErrCancelled)
	assert.False(t, exists(t, dev.fs, dev.cfg.CommandPath()), "unread command is withdrawn")
}

func TestIssue_StaleStatusIsNotAnAck(t *testing.T) {
	p, dev, _ := setup(t, 80*time.Millisecond)
	require.NoError(t, dev.fs.Mkdir(context.Background(), dev.cfg.StagingFolder))
	dev.status(CodeSuccess, "old", 1)

	_, err := p.Issue(context.Background(), deleteRequest())
	var tErr *TimeoutError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, StateAwaitingAck, tErr.State)
}

func TestIssue_RefreshFailure(t *testing.T) {
	p, dev, ref := setup(t, time.Second)
	ref.err = errors.New("snapshot locked")

	go func() {
		dev.consume()
		dev.status(CodeSuccess, "t1", 1)
	}()

	_, err := p.Issue(context.Background(), deleteRequest())
	assert.ErrorContains(t, err, "snapshot locked")
}

func TestIssue_Busy(t *testing.T) {
	p, dev, _ := setup(t, time.Second)
	release := make(chan struct{})

	go func() {
		dev.consume()
		<-release
		dev.status(CodeSuccess, "t1", 1)
	}()

	first := make(chan error, 1)
	go func() {
		_, err := p.Issue(context.Background(), deleteRequest())
		first <- err
	}()

	_, ok := dev.waitFor(dev.cfg.CommandPath(), 2*time.Second)
	if !ok {
		// Already consumed by the app goroutine; the status has not been written yet.
		time.Sleep(10 * time.Millisecond)
	}

	_, err := p.TryIssue(context.Background(), deleteRequest())
	assert.ErrorIs(t, err, ErrBusy)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Issue(ctx, deleteRequest())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-first)

	go func() {
		dev.consume()
		dev.status(CodeSuccess, "t2", 1)
	}()
	_, err = p.TryIssue(context.Background(), deleteRequest())
	assert.NoError(t, err)
}

// crashFS fails the two-phase write at a chosen step.
type crashFS struct {
	devicefs.FS
	failWrite  bool
	failRename bool
}

func (c *crashFS) Write(ctx context.Context, data []byte, p string) error {
	if c.failWrite {
		// Half the content reaches the disk before the crash.
		_ = c.FS.Write(ctx, data[:len(data)/2], p)
		return errors.New("disk full")
	}
	return c.FS.Write(ctx, data, p)
}

func (c *crashFS) Rename(ctx context.Context, src, dst string) error {
	if c.failRename {
		return errors.New("connection lost")
	}
	return c.FS.Rename(ctx, src, dst)
}

func TestIssue_TwoPhaseWrite(t *testing.T) {
	tests := []struct {
		name string
		fs   *crashFS
		want string
	}{
		{"CrashDuringWrite", &crashFS{failWrite: true}, "disk full"},
		{"CrashBeforeRename", &crashFS{failRename: true}, "connection lost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := devicefs.NewMountFS(afero.NewMemMapFs(), afero.NewMemMapFs())
			tt.fs.FS = base
			cfg := testConfig(time.Second)
			ref := &countingRefresher{}
			p := New(tt.fs, cfg, ref, nil)

			_, err := p.Issue(context.Background(), deleteRequest())
			require.ErrorContains(t, err, tt.want)

			assert.False(t, exists(t, base, cfg.CommandPath()), "final name must never hold partial content")
			assert.False(t, exists(t, base, tempPath(cfg.CommandPath())))

			// The slot is released for the next command.
			_, err = p.TryIssue(context.Background(), deleteRequest())
			assert.NotErrorIs(t, err, ErrBusy)
		})
	}
}
