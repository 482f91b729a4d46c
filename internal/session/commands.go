package session

// Start launches a transfer of url into outputPath, resuming from whatever outputPath already holds.
func (s *Session) Start(url, outputPath string) error {
	if s.onWorker() {
		return ErrCalledFromWorker
	}
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if state := s.State(); state.IsActive() {
		s.log.Debugf("ignoring start of %s, already %v", url, state)
		return ErrTransferActive
	}
	// The previous worker has stored its terminal state but may still be notifying observers
	if prev := s.worker.Load(); prev != nil {
		<-prev.done.Wait()
	}

	s.target.Set(target{url: url, outputPath: outputPath})
	s.downloaded.Store(0)
	s.total.Store(0)
	w := newWorker(s, url, outputPath)
	s.ctl.Lock()
	// Stored before the state, so a Cancel that sees StateDownloading reaches this worker
	s.worker.Store(w)
	s.pauseRequested.Store(false)
	s.cancelRequested.Store(false)
	s.state.Store(StateDownloading)
	s.ctl.Unlock()
	s.log.Infof("starting download of %s to %s", url, outputPath)
	go w.run()
	return nil
}

// Pause asks the worker to stop at the next chunk of data. It does nothing unless the state is StateDownloading.
func (s *Session) Pause() {
	s.ctl.Lock()
	defer s.ctl.Unlock()
	if s.state.Load() != StateDownloading {
		return
	}
	s.state.Store(StatePaused)
	s.pauseRequested.Store(true)
	s.log.Debug("pause requested")
}

// Resume releases a paused worker. It does nothing unless the state is StatePaused.
func (s *Session) Resume() {
	s.ctl.Lock()
	defer s.ctl.Unlock()
	if s.state.Load() != StatePaused {
		return
	}
	s.state.Store(StateDownloading)
	s.pauseRequested.Store(false)
	s.gate.Broadcast()
	s.log.Debug("resume requested")
}

// Cancel asks the worker to abandon the transfer, without waiting for it. It does nothing unless a transfer is active.
func (s *Session) Cancel() {
	s.ctl.Lock()
	defer s.ctl.Unlock()
	if !s.state.Load().IsActive() {
		return
	}
	if s.cancelRequested.Swap(true) {
		return
	}
	s.pauseRequested.Store(false)
	s.gate.Broadcast()
	// Also abort a transfer stuck somewhere no callback can reach
	if w := s.worker.Load(); w != nil {
		w.cancel()
	}
	s.log.Debug("cancel requested")
}
