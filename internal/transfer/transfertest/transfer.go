// Package transfertest provides a scripted transfer.Transfer that produces synthetic content without any network.
package transfertest

import (
	"context"
	"sync"
	"time"

	"github.com/alanbriolat/resumable-download/internal/transfer"
)

// Config scripts the behaviour of a Transfer.
type Config struct {
	// TotalSize is the size of the whole (synthetic) content, including any resume offset.
	TotalSize int64
	// ChunkSize is the size of each chunk passed to the data callback (default 1024).
	ChunkSize int
	// ChunkDelay is slept between chunks, to give the test time to intervene.
	ChunkDelay time.Duration
	// StartDelay is slept before any callback, like a connection that hasn't answered yet.
	StartDelay time.Duration
	// Result to return once all content is sent. Results other than ResultOK and ResultAbortedByCallback are
	// returned immediately without sending anything.
	Result     transfer.Result
	StatusCode int
	// Diagnostic defaults to "scripted failure".
	Diagnostic string
	// RejectResume makes a transfer with ResumeFrom > 0 fail with ResultResumeRejected and status 416.
	RejectResume bool
	// Fill is the byte value of the synthetic content.
	Fill byte
	// PanicWith makes Perform panic with this value.
	PanicWith interface{}
}

// Transfer records how it was configured and replays its Config on Perform.
type Transfer struct {
	config Config

	mu          sync.Mutex
	opts        transfer.Options
	configured  bool
	performs    int
	onData      transfer.DataFunc
	onProgress  transfer.ProgressFunc
	status      int
	sessionSent int64
}

var _ transfer.Transfer = &Transfer{}

func New(config Config) *Transfer {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 1024
	}
	if config.Diagnostic == "" {
		config.Diagnostic = "scripted failure"
	}
	return &Transfer{config: config}
}

func (t *Transfer) Configure(opts transfer.Options) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opts = opts
	t.configured = true
}

func (t *Transfer) SetDataCallback(f transfer.DataFunc) {
	t.onData = f
}

func (t *Transfer) SetProgressCallback(f transfer.ProgressFunc) {
	t.onProgress = f
}

func (t *Transfer) Perform(ctx context.Context) transfer.Result {
	t.mu.Lock()
	t.performs++
	t.status = t.config.StatusCode
	resumeFrom := t.opts.ResumeFrom
	t.mu.Unlock()

	if t.config.PanicWith != nil {
		panic(t.config.PanicWith)
	}
	if t.config.Result != transfer.ResultOK && t.config.Result != transfer.ResultAbortedByCallback {
		return t.config.Result
	}
	if resumeFrom > 0 && t.config.RejectResume {
		t.setStatus(416)
		return transfer.ResultResumeRejected
	}

	if t.config.StartDelay > 0 {
		select {
		case <-time.After(t.config.StartDelay):
		case <-ctx.Done():
			return transfer.ResultAbortedByCallback
		}
	}

	sessionTotal := t.config.TotalSize - resumeFrom
	if sessionTotal < 0 {
		sessionTotal = 0
	}
	chunk := make([]byte, t.config.ChunkSize)
	for i := range chunk {
		chunk[i] = t.config.Fill
	}
	var sent int64
	for sent < sessionTotal {
		n := int64(len(chunk))
		if remaining := sessionTotal - sent; remaining < n {
			n = remaining
		}
		if t.onProgress != nil && !t.onProgress(sessionTotal, sent) {
			return transfer.ResultAbortedByCallback
		}
		if t.onData != nil && t.onData(chunk[:n]) != int(n) {
			return transfer.ResultAbortedByCallback
		}
		sent += n
		t.mu.Lock()
		t.sessionSent = sent
		t.mu.Unlock()
		if t.config.ChunkDelay > 0 {
			select {
			case <-time.After(t.config.ChunkDelay):
			case <-ctx.Done():
				return transfer.ResultAbortedByCallback
			}
		}
	}
	if t.onProgress != nil && !t.onProgress(sessionTotal, sent) {
		return transfer.ResultAbortedByCallback
	}
	return t.config.Result
}

func (t *Transfer) setStatus(status int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
}

func (t *Transfer) StatusCode() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Transfer) Diagnostic() string {
	return t.config.Diagnostic
}

// Configured returns the options passed to Configure, and whether Configure was called at all.
func (t *Transfer) Configured() (transfer.Options, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opts, t.configured
}

// Performs is how many times Perform was called.
func (t *Transfer) Performs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.performs
}

// Sent is how many bytes this transfer has passed to the data callback.
func (t *Transfer) Sent() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionSent
}

// Factory hands out a new Transfer per call and remembers them all.
type Factory struct {
	config    Config
	mu        sync.Mutex
	transfers []*Transfer
}

func NewFactory(config Config) *Factory {
	return &Factory{config: config}
}

// Func is the transfer.Factory to give to a session.
func (f *Factory) Func() transfer.Factory {
	return func() (transfer.Transfer, error) {
		t := New(f.config)
		f.mu.Lock()
		f.transfers = append(f.transfers, t)
		f.mu.Unlock()
		return t, nil
	}
}

// Transfers returns every Transfer created so far, oldest first.
func (f *Factory) Transfers() []*Transfer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Transfer(nil), f.transfers...)
}

// Last returns the most recently created Transfer, or nil.
func (f *Factory) Last() *Transfer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.transfers) == 0 {
		return nil
	}
	return f.transfers[len(f.transfers)-1]
}
