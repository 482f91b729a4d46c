package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	sync_ "github.com/alanbriolat/resumable-download/internal/sync"
	"github.com/alanbriolat/resumable-download/internal/transfer"
)

type Config struct {
	ChunkSize       int
	ConnectTimeout  time.Duration
	HTTP2           bool
	VerifyTLS       bool
	FollowRedirects bool
	UserAgent       string
	// Transfer creates the transfer primitive for each Start.
	Transfer transfer.Factory
	Storage  Storage
	Database Database
}

var DefaultConfig = Config{
	ChunkSize:       transfer.DefaultChunkSize,
	ConnectTimeout:  30 * time.Second,
	HTTP2:           true,
	VerifyTLS:       true,
	FollowRedirects: true,
	UserAgent:       "resumable-download/1.0",
	Transfer:        transfer.NewHTTP,
	Storage:         FileStorage{},
	Database:        NilDatabase{},
}

type target struct {
	url        string
	outputPath string
}

// Stats is a point-in-time view of a Session.
type Stats struct {
	State           State
	URL             string
	OutputPath      string
	DownloadedBytes int64
	TotalBytes      int64
	// Percent is -1 while the total size is unknown.
	Percent float64
}

// Session runs one transfer at a time on a background worker, and can be reused for sequential transfers.
type Session struct {
	config    Config
	log       *zap.SugaredLogger
	ctx       context.Context
	ctxCancel context.CancelFunc
	observers *registry

	target     *sync_.Mutexed[target]
	downloaded atomic.Int64
	total      atomic.Int64

	// ctl serialises every change to state and the intent flags, and is the lock of the pause gate
	ctl             sync.Mutex
	gate            *sync.Cond
	state           atomicState
	pauseRequested  atomic.Bool
	cancelRequested atomic.Bool

	// lifecycle serialises Start and Close
	lifecycle sync.Mutex
	closed    bool
	worker    atomic.Pointer[worker]
}

// New creates an idle Session; zero fields of config take their value from DefaultConfig.
func New(ctx context.Context, config Config) (*Session, error) {
	if config.ChunkSize < 0 {
		return nil, fmt.Errorf("invalid chunk size %d", config.ChunkSize)
	} else if config.ChunkSize == 0 {
		config.ChunkSize = DefaultConfig.ChunkSize
	}
	if config.ConnectTimeout < 0 {
		return nil, fmt.Errorf("invalid connect timeout %v", config.ConnectTimeout)
	} else if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConfig.ConnectTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultConfig.UserAgent
	}
	if config.Transfer == nil {
		config.Transfer = DefaultConfig.Transfer
	}
	if config.Storage == nil {
		config.Storage = DefaultConfig.Storage
	}
	if config.Database == nil {
		config.Database = DefaultConfig.Database
	}

	s := &Session{
		config:    config,
		log:       zap.S().Named("session"),
		observers: newRegistry(),
		target:    sync_.NewMutexed(target{}),
	}
	s.ctx, s.ctxCancel = context.WithCancel(ctx)
	s.gate = sync.NewCond(&s.ctl)
	s.state.Store(StateIdle)
	return s, nil
}

// Close cancels any transfer in progress and waits for the worker to exit. The Session can't be started again.
func (s *Session) Close() error {
	if s.onWorker() {
		// Waiting here would mean the worker waiting for itself
		s.Cancel()
		return ErrCalledFromWorker
	}
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.Cancel()
	s.ctxCancel()
	if w := s.worker.Load(); w != nil {
		<-w.done.Wait()
	}
	s.log.Debug("closed")
	return nil
}

// Wait blocks until the current worker (if any) has exited, returning the resulting state.
func (s *Session) Wait(ctx context.Context) (State, error) {
	w := s.worker.Load()
	if w == nil {
		return s.State(), nil
	}
	if w.isCurrentGoroutine() {
		return s.State(), ErrCalledFromWorker
	}
	select {
	case <-w.done.Wait():
		return s.State(), nil
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

func (s *Session) State() State {
	return s.state.Load()
}

func (s *Session) Stats() Stats {
	t := s.target.Get()
	stats := Stats{
		State:           s.State(),
		URL:             t.url,
		OutputPath:      t.outputPath,
		DownloadedBytes: s.downloaded.Load(),
		TotalBytes:      s.total.Load(),
	}
	stats.Percent = percent(stats.DownloadedBytes, stats.TotalBytes)
	return stats
}

func percent(downloaded, total int64) float64 {
	if total <= 0 {
		return -1
	}
	return float64(downloaded) / float64(total) * 100
}

// AddObserver registers o for notifications, returning false if it is nil, not a pointer, or already registered.
func (s *Session) AddObserver(o Observer) bool {
	return s.observers.add(o)
}

func (s *Session) RemoveObserver(o Observer) bool {
	return s.observers.remove(o)
}

// onWorker is true when called from inside the current worker, i.e. from an observer callback.
func (s *Session) onWorker() bool {
	w := s.worker.Load()
	return w != nil && w.isCurrentGoroutine()
}
