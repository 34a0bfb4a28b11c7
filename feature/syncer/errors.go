package syncer

import (
	"errors"
	"fmt"
)

// Stages reported by SyncError.
const (
	StageLibrary = "library"
	StageDevice  = "device"
	StageCommand = "command"
)

var (
	// ErrUnknownBook is reported for ids that are not in the current record set.
	ErrUnknownBook = errors.New("book not on device")
	// ErrNoCounterpart is reported for books with no desktop match.
	ErrNoCounterpart = errors.New("book has no library match")
)

// SyncError is an operation failure attributed to one side of the sync.
type SyncError struct {
	Stage string
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

func stageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	var se *SyncError
	if errors.As(err, &se) {
		return err
	}
	return &SyncError{Stage: stage, Err: err}
}

// BatchReport is the outcome of a per-book batch. A failure of one book does
// not stop the others.
type BatchReport struct {
	Succeeded []int64          `json:"succeeded"`
	Failed    map[int64]string `json:"failed"`
	Warnings  []string         `json:"warnings,omitempty"`
}

func newReport() *BatchReport {
	return &BatchReport{Succeeded: []int64{}, Failed: map[int64]string{}}
}

func (r *BatchReport) ok(id int64) {
	r.Succeeded = append(r.Succeeded, id)
}

func (r *BatchReport) fail(id int64, err error) {
	r.Failed[id] = err.Error()
}

// Progress receives batch progress as done out of total steps.
type Progress func(done, total int)

type ticker struct {
	fn    Progress
	done  int
	total int
}

func newTicker(fn Progress, total int) *ticker {
	return &ticker{fn: fn, total: total}
}

func (t *ticker) tick() {
	if t.done < t.total {
		t.done++
	}
	if t.fn != nil {
		t.fn(t.done, t.total)
	}
}

// to moves the counter forward to n without going back.
func (t *ticker) to(n int) {
	if n > t.total {
		n = t.total
	}
	if n <= t.done {
		return
	}
	t.done = n
	if t.fn != nil {
		t.fn(t.done, t.total)
	}
}
