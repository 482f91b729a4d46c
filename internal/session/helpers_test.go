package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/resumable-download/internal/transfer/transfertest"
)

const timeout = 5 * time.Second

type progressCall struct {
	downloaded int64
	total      int64
	percent    float64
}

// recorder is an Observer that remembers every notification.
type recorder struct {
	mu       sync.Mutex
	calls    []string
	progress []progressCall
	errs     []error
	// onProgress, if set, runs for each progress notification (on the worker)
	onProgress func(progressCall)

	paused   chan struct{}
	terminal chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		paused:   make(chan struct{}, 16),
		terminal: make(chan struct{}, 16),
	}
}

func (r *recorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) OnProgress(downloaded, total int64, percent float64) {
	p := progressCall{downloaded, total, percent}
	r.mu.Lock()
	r.calls = append(r.calls, "progress")
	r.progress = append(r.progress, p)
	f := r.onProgress
	r.mu.Unlock()
	if f != nil {
		f(p)
	}
}

func (r *recorder) OnCompleted() {
	r.record("completed")
	r.terminal <- struct{}{}
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	r.calls = append(r.calls, "error")
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.terminal <- struct{}{}
}

func (r *recorder) OnPaused() {
	r.record("paused")
	r.paused <- struct{}{}
}

func (r *recorder) OnResumed() {
	r.record("resumed")
}

func (r *recorder) OnCancelled() {
	r.record("cancelled")
	r.terminal <- struct{}{}
}

func (r *recorder) count(call string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (r *recorder) progressCalls() []progressCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progressCall(nil), r.progress...)
}

func (r *recorder) lastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[len(r.errs)-1]
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		require.FailNow(t, "timed out waiting for "+what)
	}
}

// waitDone waits for the worker to exit, returning the final state.
func waitDone(t *testing.T, s *Session) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	state, err := s.Wait(ctx)
	require.NoError(t, err)
	return state
}

func newTestSession(t *testing.T, factory *transfertest.Factory, config Config) *Session {
	t.Helper()
	config.Transfer = factory.Func()
	s, err := New(context.Background(), config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func outputPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "out", "file.bin")
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Size()
}

var errDiskFull = errors.New("disk full")

// failingStorage wraps FileStorage, failing Open or failing writes once limit bytes have been written.
type failingStorage struct {
	FileStorage
	openErr error
	limit   int
}

func (s failingStorage) Open(path string, append bool) (Sink, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	inner, err := s.FileStorage.Open(path, append)
	if err != nil {
		return nil, err
	}
	return &limitedSink{Sink: inner, limit: s.limit}, nil
}

type limitedSink struct {
	Sink
	limit   int
	written int
}

func (s *limitedSink) Write(p []byte) (int, error) {
	if s.written+len(p) > s.limit {
		return 0, errDiskFull
	}
	s.written += len(p)
	return s.Sink.Write(p)
}

// memoryDatabase keeps every record written, in order.
type memoryDatabase struct {
	mu     sync.Mutex
	writes []TransferRecord
}

func (d *memoryDatabase) ListTransfers() ([]TransferRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	latest := make(map[TransferID]int)
	var records []TransferRecord
	for _, r := range d.writes {
		if i, ok := latest[r.ID]; ok {
			records[i] = r
		} else {
			latest[r.ID] = len(records)
			records = append(records, r)
		}
	}
	return records, nil
}

func (d *memoryDatabase) WriteTransfer(r *TransferRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, *r)
	return nil
}

func timeoutChan() <-chan time.Time {
	return time.After(timeout)
}

// panickyObserver panics from every notification.
type panickyObserver struct {
	name string
}

func (o *panickyObserver) OnProgress(int64, int64, float64) { panic(o.name + ": progress boom") }
func (o *panickyObserver) OnCompleted()                     { panic(o.name + ": completed boom") }
func (o *panickyObserver) OnError(error)                    { panic(o.name + ": error boom") }
func (o *panickyObserver) OnPaused()                        { panic(o.name + ": paused boom") }
func (o *panickyObserver) OnResumed()                       { panic(o.name + ": resumed boom") }
func (o *panickyObserver) OnCancelled()                     { panic(o.name + ": cancelled boom") }

type panickyDatabase struct{}

func (panickyDatabase) ListTransfers() ([]TransferRecord, error) { panic("list boom") }
func (panickyDatabase) WriteTransfer(*TransferRecord) error     { panic("write boom") }
