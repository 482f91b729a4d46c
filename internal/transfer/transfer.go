// Package transfer defines the capability the session drives a single blocking byte transfer through, plus the
// production implementation over net/http.
//
// A Transfer is used for exactly one Perform call. The caller configures it, registers the two callbacks, and then
// Perform invokes them on the calling goroutine until the transfer finishes or a callback asks it to stop.
package transfer

import (
	"context"
	"time"
)

type Result int

const (
	ResultOK Result = iota
	// ResultAbortedByCallback means a DataFunc accepted fewer bytes than offered, or a ProgressFunc returned false.
	ResultAbortedByCallback
	// ResultNetworkError covers connection, DNS, timeout and truncated-body failures.
	ResultNetworkError
	// ResultResumeRejected means ResumeFrom was set but the server would not serve a partial response.
	ResultResumeRejected
	ResultOtherError
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultAbortedByCallback:
		return "aborted by callback"
	case ResultNetworkError:
		return "network error"
	case ResultResumeRejected:
		return "resume rejected"
	default:
		return "other error"
	}
}

// DataFunc receives each chunk of the body and returns how many bytes it accepted. Returning less than len(chunk)
// aborts the transfer. The chunk is only valid for the duration of the call.
type DataFunc func(chunk []byte) int

// ProgressFunc receives the expected size (0 if unknown) and the bytes received so far, both counted for this
// transfer only, i.e. excluding ResumeFrom. Returning false aborts the transfer.
type ProgressFunc func(sessionTotal, sessionNow int64) bool

type Options struct {
	URL string
	// ResumeFrom asks for the content starting at this offset; 0 means the whole content.
	ResumeFrom      int64
	ConnectTimeout  time.Duration
	UserAgent       string
	FollowRedirects bool
	VerifyTLS       bool
	// HTTP2 is a hint to prefer HTTP/2 where the server supports it.
	HTTP2 bool
	// ChunkSize is the read buffer size, and so the largest chunk passed to DataFunc.
	ChunkSize int
}

type Transfer interface {
	Configure(opts Options)
	SetDataCallback(f DataFunc)
	SetProgressCallback(f ProgressFunc)
	// Perform runs the transfer to completion, blocking the caller.
	Perform(ctx context.Context) Result
	// StatusCode is the final protocol status (e.g. HTTP status), or 0 if no response was received.
	StatusCode() int
	// Diagnostic is a human-readable description of the last failure.
	Diagnostic() string
}

// Factory creates a fresh Transfer for each transfer attempt.
type Factory func() (Transfer, error)
