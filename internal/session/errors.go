package session

import (
	"errors"
)

var (
	ErrTransferActive   = errors.New("a transfer is already in progress")
	ErrSessionClosed    = errors.New("session closed")
	ErrCalledFromWorker = errors.New("called from the session's own worker (inside an observer callback)")
)

// Kinds of transfer failure, matched with errors.Is against the error passed to Observer.OnError.
var (
	ErrSinkOpen        = errors.New("failed to open output")
	ErrTransferAborted = errors.New("transfer aborted")
	ErrNetwork         = errors.New("network failure")
	ErrHTTPStatus      = errors.New("HTTP status failure")
	ErrResumeRejected  = errors.New("resume rejected")
	ErrTransferFailed  = errors.New("transfer failed")
	ErrWorkerFault     = errors.New("internal worker fault")
)

// TransferError is what ends a transfer in StateError.
type TransferError struct {
	// Kind is one of the ErrSinkOpen, ErrNetwork, etc. sentinels.
	Kind error
	// StatusCode is the final protocol status, if there was a response.
	StatusCode int
	Message    string
	// Err is the underlying cause, if any.
	Err error
}

func newTransferError(kind error, status int, message string, cause error) *TransferError {
	return &TransferError{Kind: kind, StatusCode: status, Message: message, Err: cause}
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *TransferError) Is(target error) bool {
	return target == e.Kind
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
