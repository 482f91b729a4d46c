package session

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	sync_ "github.com/alanbriolat/resumable-download/internal/sync"
	"github.com/alanbriolat/resumable-download/internal/transfer"
)

// worker runs a single transfer for a Session; every Start gets a new one.
type worker struct {
	s         *Session
	log       *zap.SugaredLogger
	ctx       context.Context
	cancel    context.CancelFunc
	goroutine atomic.Uint64
	done      sync_.Event

	record   TransferRecord
	sink     Sink
	writeErr error
	finished bool
}

func newWorker(s *Session, url, outputPath string) *worker {
	w := &worker{
		s: s,
		record: TransferRecord{
			ID:         NewTransferID(),
			URL:        url,
			OutputPath: outputPath,
			State:      StateDownloading,
		},
	}
	w.log = s.log.With("transfer_id", w.record.ID)
	w.ctx, w.cancel = context.WithCancel(s.ctx)
	// Wake the pause gate however the context ends, including the parent going away
	context.AfterFunc(w.ctx, func() {
		s.ctl.Lock()
		defer s.ctl.Unlock()
		s.gate.Broadcast()
	})
	return w
}

func (w *worker) isCurrentGoroutine() bool {
	id := w.goroutine.Load()
	return id != 0 && id == sync_.GoroutineID()
}

func (w *worker) run() {
	w.goroutine.Store(sync_.GoroutineID())
	defer w.done.Set()
	defer w.cancel()
	defer func() {
		if r := recover(); r != nil {
			w.log.Errorf("recovered from panic: %v\n%s", r, debug.Stack())
			_ = w.closeSink()
			if w.finished {
				// The terminal notification already went out
				return
			}
			w.finish(StateError, newTransferError(ErrWorkerFault, 0, fmt.Sprintf("internal error: %v", r), nil))
		}
	}()
	w.transfer()
}

func (w *worker) transfer() {
	s := w.s
	t := s.target.Get()
	offset := s.config.Storage.ExistingLength(t.outputPath).UnwrapOr(0)
	s.downloaded.Store(offset)
	w.record.ResumedFrom = offset
	w.record.StartedAt = time.Now()
	w.save()
	if offset > 0 {
		w.log.Infof("resuming %s from offset %d", t.outputPath, offset)
	}

	sink, err := s.config.Storage.Open(t.outputPath, offset > 0)
	if err != nil {
		w.finish(StateError, newTransferError(ErrSinkOpen, 0, fmt.Sprintf("failed to open output file %s", t.outputPath), err))
		return
	}
	w.sink = sink

	tr, err := s.config.Transfer()
	if err == nil && tr == nil {
		err = fmt.Errorf("transfer factory returned nil")
	}
	if err != nil {
		_ = w.closeSink()
		w.finish(StateError, newTransferError(ErrWorkerFault, 0, "failed to create transfer", err))
		return
	}
	opts := transfer.Options{
		URL:             t.url,
		ConnectTimeout:  s.config.ConnectTimeout,
		UserAgent:       s.config.UserAgent,
		FollowRedirects: s.config.FollowRedirects,
		VerifyTLS:       s.config.VerifyTLS,
		HTTP2:           s.config.HTTP2,
		ChunkSize:       s.config.ChunkSize,
	}
	if offset > 0 {
		opts.ResumeFrom = offset
	}
	tr.Configure(opts)
	tr.SetDataCallback(w.onData)
	tr.SetProgressCallback(w.onProgress)

	result := tr.Perform(w.ctx)
	closeErr := w.closeSink()
	if closeErr != nil {
		w.log.Warnf("failed to close output file: %v", closeErr)
	}
	w.resolve(result, tr.StatusCode(), tr.Diagnostic(), closeErr)
}

func (w *worker) onData(chunk []byte) int {
	s := w.s
	if s.cancelRequested.Load() {
		return 0
	}
	if s.pauseRequested.Load() && !w.pauseGate() {
		return 0
	}
	if _, err := w.sink.Write(chunk); err != nil {
		w.writeErr = err
		w.log.Warnf("failed to write output file: %v", err)
		return 0
	}
	s.downloaded.Add(int64(len(chunk)))
	return len(chunk)
}

func (w *worker) onProgress(sessionTotal, sessionNow int64) bool {
	s := w.s
	if s.cancelRequested.Load() {
		return false
	}
	downloaded := s.downloaded.Load()
	if sessionTotal > 0 {
		// The transfer only knows about its own range, so add back whatever was there before it started
		s.total.Store(sessionTotal + (downloaded - sessionNow))
	}
	total := s.total.Load()
	s.observers.notifyProgress(downloaded, total, percent(downloaded, total))
	return true
}

// resolve decides how the transfer ended; the first matching case wins.
func (w *worker) resolve(result transfer.Result, status int, diagnostic string, closeErr error) {
	s := w.s
	s.ctl.Lock()
	cancelled := s.cancelRequested.Load() || s.state.Load() == StatePaused
	s.ctl.Unlock()

	switch {
	case cancelled:
		w.finish(StateCancelled, nil)
	case result == transfer.ResultOK && status >= 400:
		w.finish(StateError, newTransferError(ErrHTTPStatus, status, fmt.Sprintf("HTTP error: %d", status), nil))
	case result == transfer.ResultOK && closeErr != nil:
		w.finish(StateError, newTransferError(ErrTransferAborted, status, "failed to write output file", closeErr))
	case result == transfer.ResultOK:
		downloaded := s.downloaded.Load()
		total := s.total.Load()
		if downloaded > total {
			total = downloaded
		}
		s.total.Store(total)
		s.observers.notifyProgress(downloaded, total, 100)
		w.finish(StateCompleted, nil)
	case result == transfer.ResultAbortedByCallback:
		var cause error
		if w.writeErr != nil {
			cause = multierror.Append(cause, w.writeErr)
		}
		if closeErr != nil {
			cause = multierror.Append(cause, closeErr)
		}
		w.finish(StateError, newTransferError(ErrTransferAborted, status, "download aborted: "+diagnostic, cause))
	case result == transfer.ResultNetworkError:
		w.finish(StateError, newTransferError(ErrNetwork, status, "network error: "+diagnostic, nil))
	case result == transfer.ResultResumeRejected:
		w.finish(StateError, newTransferError(ErrResumeRejected, status, "server does not support resume (range not satisfied)", nil))
	default:
		w.finish(StateError, newTransferError(ErrTransferFailed, status, "download failed: "+diagnostic, nil))
	}
}

// finish stores the terminal state and then delivers the one terminal notification.
func (w *worker) finish(state State, err error) {
	if w.finished {
		return
	}
	s := w.s
	s.ctl.Lock()
	s.state.Store(state)
	s.ctl.Unlock()

	w.record.State = state
	w.record.DownloadedBytes = s.downloaded.Load()
	w.record.TotalBytes = s.total.Load()
	w.record.FinishedAt = time.Now()
	if err != nil {
		w.record.Error = err.Error()
	}
	w.save()

	w.finished = true
	switch state {
	case StateCompleted:
		w.log.Infof("completed, %d bytes", w.record.DownloadedBytes)
		s.observers.notifyCompleted()
	case StateCancelled:
		w.log.Info("cancelled")
		s.observers.notifyCancelled()
	default:
		w.log.Errorf("failed: %v", err)
		s.observers.notifyError(err)
	}
}

// save writes the history record; a failing or panicking Database never affects the transfer.
func (w *worker) save() {
	defer func() {
		if r := recover(); r != nil {
			w.log.Errorf("recovered from panic writing transfer record: %v\n%s", r, debug.Stack())
		}
	}()
	if err := w.s.config.Database.WriteTransfer(&w.record); err != nil {
		w.log.Warnf("failed to write transfer record: %v", err)
	}
}

// closeSink flushes and closes the sink, if it's open.
func (w *worker) closeSink() error {
	if w.sink == nil {
		return nil
	}
	var result error
	if err := w.sink.Flush(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := w.sink.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	w.sink = nil
	return result
}
