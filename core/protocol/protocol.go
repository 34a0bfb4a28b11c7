package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marvin-sync/core/devicefs"
	"marvin-sync/core/logger"

	"go.uber.org/zap"
)

// Refresher pulls a fresh copy of the device database after a mutating command.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Request describes one command exchange.
type Request struct {
	// Envelope is the document written to the command artifact.
	Envelope Envelope
	// Mutating commands trigger a snapshot refresh once they end.
	Mutating bool
	// IgnoreTimeouts restarts the watchdog instead of failing. Used for bulk
	// operations whose progress is tracked by the status timestamp.
	IgnoreTimeouts bool
	// Timeout overrides the configured watchdog window when positive.
	Timeout time.Duration
	// OnProgress receives the progress reported in the status artifact.
	OnProgress func(progress float64)
}

// Result is a completed exchange.
type Result struct {
	Command  string   `json:"command"`
	State    State    `json:"state"`
	Code     int      `json:"code"`
	Progress float64  `json:"progress"`
	Warnings []string `json:"warnings,omitempty"`
}

// Protocol issues commands to the app through files in the staging folder.
// At most one command is in flight at a time.
type Protocol struct {
	fs        devicefs.FS
	cfg       Config
	refresher Refresher
	log       *zap.Logger
	busy      chan struct{}
	now       func() time.Time
}

// New creates a Protocol. refresher may be nil.
func New(fs devicefs.FS, cfg Config, refresher Refresher, log *zap.Logger) *Protocol {
	return &Protocol{
		fs:        fs,
		cfg:       cfg.WithDefaults(),
		refresher: refresher,
		log:       logger.Component(log, "protocol"),
		busy:      make(chan struct{}, 1),
		now:       time.Now,
	}
}

// SetRefresher replaces the snapshot refresher.
func (p *Protocol) SetRefresher(r Refresher) {
	p.refresher = r
}

// Config returns the effective configuration.
func (p *Protocol) Config() Config {
	return p.cfg
}

// Issue sends a command and waits for it to end. It blocks while another
// command is in flight. Cancelling ctx asks the app to stop the command.
func (p *Protocol) Issue(ctx context.Context, req Request) (*Result, error) {
	select {
	case p.busy <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return p.run(ctx, req)
}

// TryIssue is Issue without waiting: it returns ErrBusy while another command
// is in flight.
func (p *Protocol) TryIssue(ctx context.Context, req Request) (*Result, error) {
	select {
	case p.busy <- struct{}{}:
	default:
		return nil, ErrBusy
	}
	return p.run(ctx, req)
}

// machine tracks the exchange state.
type machine struct {
	state   State
	command string
	log     *zap.Logger
}

func (m *machine) to(next State) {
	if err := ValidateTransition(m.state, next); err != nil {
		m.log.Error("Protocol state error", zap.String("command", m.command), zap.Error(err))
	}
	m.log.Debug("Protocol state", zap.String("command", m.command), zap.String("from", string(m.state)), zap.String("to", string(next)))
	m.state = next
}

func (p *Protocol) run(ctx context.Context, req Request) (res *Result, err error) {
	if req.Envelope == nil {
		<-p.busy
		return nil, errors.New("protocol: request without envelope")
	}

	name := req.Envelope.CommandType()
	m := &machine{state: StateIdle, command: name, log: p.log}

	// Device I/O after cancellation must still complete.
	ioCtx := context.WithoutCancel(ctx)

	defer func() {
		p.removeQuiet(ioCtx, p.cfg.StatusPath())
		p.removeQuiet(ioCtx, p.cfg.CancelPath())
		p.removeQuiet(ioCtx, tempPath(p.cfg.CancelPath()))

		if req.Mutating && p.refresher != nil {
			if rerr := p.refresher.Refresh(ioCtx); rerr != nil {
				p.log.Warn("Device snapshot refresh failed", zap.String("command", name), zap.Error(rerr))
				if err == nil {
					err = fmt.Errorf("refresh device snapshot: %w", rerr)
					res = nil
				}
			}
		}

		if IsTerminal(m.state) {
			m.to(StateIdle)
		}
		<-p.busy
	}()

	m.to(StateStaging)

	// A status left over from an interrupted session would read as an ack.
	p.removeQuiet(ioCtx, p.cfg.StatusPath())

	req.Envelope.SetTimestamp(Stamp(p.now()))
	data, err := Encode(req.Envelope)
	if err != nil {
		m.to(StateFailed)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		m.to(StateCancelled)
		return nil, ErrCancelled
	}

	if err := p.writeTwoPhase(ioCtx, data, p.cfg.CommandPath()); err != nil {
		m.to(StateFailed)
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}
	m.to(StateAwaitingAck)

	return p.monitor(ctx, ioCtx, m, req)
}

func (p *Protocol) monitor(ctx, ioCtx context.Context, m *machine, req Request) (*Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = p.cfg.Timeout
	}

	watchdog := time.NewTimer(timeout)
	defer watchdog.Stop()
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	var (
		lastStamp       string
		cancelRequested bool
		done            = ctx.Done()
	)

	for {
		select {
		case <-done:
			done = nil

			if m.state == StateAwaitingAck {
				if _, ok := p.readStatus(ioCtx); !ok {
					// Not picked up yet: withdraw the command.
					p.removeQuiet(ioCtx, p.cfg.CommandPath())
					m.to(StateCancelled)
					return nil, ErrCancelled
				}
				m.to(StateMonitoring)
			}

			cancel := NewCommand(CmdCancel, Param("command", m.command))
			cancel.SetTimestamp(Stamp(p.now()))
			body, err := Encode(cancel)
			if err == nil {
				err = p.writeTwoPhase(ioCtx, body, p.cfg.CancelPath())
			}
			if err != nil {
				p.log.Warn("Cancel request failed", zap.String("command", m.command), zap.Error(err))
			}
			cancelRequested = true
			watchdog.Reset(timeout)

		case <-watchdog.C:
			// A pending cancel request is always bounded by the watchdog.
			if req.IgnoreTimeouts && !cancelRequested {
				p.log.Debug("Watchdog expired, restarting", zap.String("command", m.command), zap.String("state", string(m.state)))
				watchdog.Reset(timeout)
				continue
			}

			from := m.state
			if from == StateAwaitingAck {
				p.removeQuiet(ioCtx, p.cfg.CommandPath())
			}
			m.to(StateTimedOut)
			p.log.Warn("Command timed out", zap.String("command", m.command), zap.String("state", string(from)), zap.Duration("after", timeout))
			return nil, &TimeoutError{Command: m.command, State: from, After: timeout}

		case <-ticker.C:
			st, ok := p.readStatus(ioCtx)
			if !ok {
				continue
			}

			if m.state == StateAwaitingAck {
				m.to(StateMonitoring)
				lastStamp = st.Timestamp
				watchdog.Reset(timeout)
			} else if st.Timestamp != lastStamp {
				lastStamp = st.Timestamp
				watchdog.Reset(timeout)
			}

			if req.OnProgress != nil {
				req.OnProgress(st.Progress)
			}

			switch st.Code {
			case CodeInProgress:
				continue
			case CodeSuccess, CodeWarnings:
				m.to(StateCompleted)
				res := &Result{Command: m.command, State: StateCompleted, Code: st.Code, Progress: st.Progress}
				if st.Code == CodeWarnings {
					res.Warnings = st.Messages
					p.log.Warn("Command completed with warnings", zap.String("command", m.command), zap.Strings("messages", st.Messages))
				}
				return res, nil
			case CodeCancelled:
				m.to(StateCancelled)
				return nil, ErrCancelled
			default:
				m.to(StateFailed)
				return nil, &DeviceError{Command: m.command, Code: st.Code, Messages: st.Messages}
			}
		}
	}
}

// readStatus returns the status artifact when present and complete.
func (p *Protocol) readStatus(ctx context.Context) (*Status, bool) {
	data, err := p.fs.Read(ctx, p.cfg.StatusPath())
	if err != nil {
		if !devicefs.IsNotExist(err) {
			p.log.Debug("Status read failed", zap.Error(err))
		}
		return nil, false
	}
	st, err := ParseStatus(data)
	if err != nil {
		// Partially written; try again on the next tick.
		p.log.Debug("Status not parseable yet", zap.Error(err))
		return nil, false
	}
	return st, true
}

// writeTwoPhase writes to a temp name and renames it into place, so the
// final name only ever holds complete content.
func (p *Protocol) writeTwoPhase(ctx context.Context, data []byte, final string) error {
	tmp := tempPath(final)
	if err := p.fs.Mkdir(ctx, p.cfg.StagingFolder); err != nil {
		return err
	}
	if err := p.fs.Write(ctx, data, tmp); err != nil {
		p.removeQuiet(ctx, tmp)
		return err
	}
	if err := p.fs.Rename(ctx, tmp, final); err != nil {
		p.removeQuiet(ctx, tmp)
		return err
	}
	return nil
}

func (p *Protocol) removeQuiet(ctx context.Context, path string) {
	if err := p.fs.Remove(ctx, path); err != nil && !devicefs.IsNotExist(err) {
		p.log.Debug("Remove failed", zap.String("path", path), zap.Error(err))
	}
}
