package session

// pauseGate blocks the worker until the pause is lifted, returning false if it was lifted by a cancel or by the
// worker's context ending.
func (w *worker) pauseGate() bool {
	s := w.s
	w.log.Debug("paused")
	s.observers.notifyPaused()

	s.ctl.Lock()
	for s.pauseRequested.Load() && !s.cancelRequested.Load() && w.ctx.Err() == nil {
		s.gate.Wait()
	}
	cancelled := s.cancelRequested.Load() || w.ctx.Err() != nil
	s.ctl.Unlock()

	if cancelled {
		return false
	}
	w.log.Debug("resumed")
	s.observers.notifyResumed()
	return true
}
