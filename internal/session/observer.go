package session

import (
	"reflect"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/alanbriolat/resumable-download/generic"
	sync_ "github.com/alanbriolat/resumable-download/internal/sync"
)

// Observer receives progress and lifecycle notifications for a Session's transfers.
//
// All methods are called from the session's worker goroutine, one at a time and in order. They may call back into the
// Session (e.g. Pause from OnProgress), but Start, Close and Wait return ErrCalledFromWorker.
//
// Observers are registered by pointer and told apart by identity. A panicking method is logged and skipped.
type Observer interface {
	OnProgress(downloaded, total int64, percent float64)
	OnCompleted()
	OnError(err error)
	OnPaused()
	OnResumed()
	OnCancelled()
}

// NopObserver ignores everything; embed it to implement only some of Observer.
type NopObserver struct{}

func (NopObserver) OnProgress(int64, int64, float64) {}
func (NopObserver) OnCompleted()                     {}
func (NopObserver) OnError(error)                    {}
func (NopObserver) OnPaused()                        {}
func (NopObserver) OnResumed()                       {}
func (NopObserver) OnCancelled()                     {}

// ObserverFuncs is an Observer made of optional functions. Register it by pointer, so it has an identity.
type ObserverFuncs struct {
	Progress  func(downloaded, total int64, percent float64)
	Completed func()
	Error     func(err error)
	Paused    func()
	Resumed   func()
	Cancelled func()
}

var _ Observer = &ObserverFuncs{}

func (o *ObserverFuncs) OnProgress(downloaded, total int64, percent float64) {
	if o.Progress != nil {
		o.Progress(downloaded, total, percent)
	}
}

func (o *ObserverFuncs) OnCompleted() {
	if o.Completed != nil {
		o.Completed()
	}
}

func (o *ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

func (o *ObserverFuncs) OnPaused() {
	if o.Paused != nil {
		o.Paused()
	}
}

func (o *ObserverFuncs) OnResumed() {
	if o.Resumed != nil {
		o.Resumed()
	}
}

func (o *ObserverFuncs) OnCancelled() {
	if o.Cancelled != nil {
		o.Cancelled()
	}
}

// registry is an insertion-ordered set of observers, compared by identity.
type registry struct {
	observers *sync_.RWMutexed[generic.Set[Observer]]
}

func newRegistry() *registry {
	return &registry{observers: sync_.NewRWMutexed(generic.NewOrderedSet[Observer]())}
}

// usable accepts only non-nil pointers, since observers are told apart by identity and equal values have none.
func usable(o Observer) bool {
	if o == nil {
		return false
	}
	v := reflect.ValueOf(o)
	return v.Kind() == reflect.Pointer && !v.IsNil()
}

func (r *registry) add(o Observer) bool {
	if !usable(o) {
		return false
	}
	var added bool
	_ = r.observers.Locked(func(s *generic.Set[Observer]) error {
		added = (*s).Add(o)
		return nil
	})
	return added
}

func (r *registry) remove(o Observer) bool {
	if !usable(o) {
		return false
	}
	var removed bool
	_ = r.observers.Locked(func(s *generic.Set[Observer]) error {
		removed = (*s).Remove(o)
		return nil
	})
	return removed
}

func (r *registry) count() int {
	var n int
	_ = r.observers.RLocked(func(s generic.Set[Observer]) error {
		n = s.Count()
		return nil
	})
	return n
}

// snapshot copies the membership, so handlers run without the lock and may add or remove observers.
func (r *registry) snapshot() []Observer {
	var observers []Observer
	_ = r.observers.RLocked(func(s generic.Set[Observer]) error {
		observers = s.ToSlice()
		return nil
	})
	return observers
}

// each calls f for every observer; a panicking observer is logged and skipped so the rest are still notified.
func (r *registry) each(f func(Observer)) {
	for _, o := range r.snapshot() {
		r.call(f, o)
	}
}

func (r *registry) call(f func(Observer), o Observer) {
	defer func() {
		if p := recover(); p != nil {
			zap.S().Named("session").Errorf("recovered from panic in observer %T: %v\n%s", o, p, debug.Stack())
		}
	}()
	f(o)
}

func (r *registry) notifyProgress(downloaded, total int64, percent float64) {
	r.each(func(o Observer) { o.OnProgress(downloaded, total, percent) })
}

func (r *registry) notifyCompleted() {
	r.each(Observer.OnCompleted)
}

func (r *registry) notifyError(err error) {
	r.each(func(o Observer) { o.OnError(err) })
}

func (r *registry) notifyPaused() {
	r.each(Observer.OnPaused)
}

func (r *registry) notifyResumed() {
	r.each(Observer.OnResumed)
}

func (r *registry) notifyCancelled() {
	r.each(Observer.OnCancelled)
}
