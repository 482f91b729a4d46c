package session

import (
	"fmt"

	"github.com/alanbriolat/resumable-download/internal/pubsub"
)

type Event interface {
	// Terminal is true for the last event of a transfer.
	Terminal() bool
	String() string
}

type ProgressEvent struct {
	Downloaded int64
	Total      int64
	Percent    float64
}

func (e ProgressEvent) Terminal() bool { return false }
func (e ProgressEvent) String() string {
	return fmt.Sprintf("progress: %d/%d (%.1f%%)", e.Downloaded, e.Total, e.Percent)
}

type CompletedEvent struct{}

func (e CompletedEvent) Terminal() bool { return true }
func (e CompletedEvent) String() string { return "completed" }

type ErrorEvent struct {
	Err error
}

func (e ErrorEvent) Terminal() bool { return true }
func (e ErrorEvent) String() string { return "error: " + e.Err.Error() }

type PausedEvent struct{}

func (e PausedEvent) Terminal() bool { return false }
func (e PausedEvent) String() string { return "paused" }

type ResumedEvent struct{}

func (e ResumedEvent) Terminal() bool { return false }
func (e ResumedEvent) String() string { return "resumed" }

type CancelledEvent struct{}

func (e CancelledEvent) Terminal() bool { return true }
func (e CancelledEvent) String() string { return "cancelled" }

// EventObserver turns observer callbacks into a stream of Event values, so consumers can run on their own goroutines.
//
// Publishing blocks the worker once the publisher's buffer is full, so subscribers must keep reading until the
// publisher is closed.
type EventObserver struct {
	pubsub.Publisher[Event]
}

var _ Observer = &EventObserver{}

func NewEventObserver() *EventObserver {
	return &EventObserver{Publisher: pubsub.NewPublisher[Event]()}
}

func (o *EventObserver) OnProgress(downloaded, total int64, percent float64) {
	o.Send(ProgressEvent{Downloaded: downloaded, Total: total, Percent: percent})
}

func (o *EventObserver) OnCompleted() {
	o.Send(CompletedEvent{})
}

func (o *EventObserver) OnError(err error) {
	o.Send(ErrorEvent{Err: err})
}

func (o *EventObserver) OnPaused() {
	o.Send(PausedEvent{})
}

func (o *EventObserver) OnResumed() {
	o.Send(ResumedEvent{})
}

func (o *EventObserver) OnCancelled() {
	o.Send(CancelledEvent{})
}
