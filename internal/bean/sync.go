package bean

import (
	"github.com/jfmyers9/playerhub/internal/schedule"
)

// EnableSync mirrors the store to a remote backend. The remote snapshot is
// loaded once and overlaid onto known properties (unknown remote keys are
// ignored), then onLoaded is called. A failed load is retried after the
// retry delay until it succeeds. Afterwards every Set schedules a
// debounced write of the full snapshot; a failed write is rescheduled.
func (s *Store) EnableSync(backend SyncBackend, onLoaded func()) {
	s.DisableSync()

	st := &syncState{backend: backend, onLoaded: onLoaded}
	st.load = schedule.NewTask(s.clock, func() { s.loadSync(st, s.dispatcher.Do) })
	st.save = schedule.NewDebouncer(s.clock, s.saveDelay, func() { s.saveSync(st) })

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.sync = st
	s.mu.Unlock()

	s.loadSync(st, func(fn func()) { fn() })
}

// DisableSync stops mirroring and cancels pending load and save timers.
func (s *Store) DisableSync() {
	s.mu.Lock()
	st := s.sync
	s.sync = nil
	s.mu.Unlock()

	if st == nil {
		return
	}
	st.load.Cancel()
	st.save.Stop()
}

// SyncEnabled reports whether a remote backend is attached.
func (s *Store) SyncEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sync != nil
}

func (s *Store) activeSync(st *syncState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sync == st
}

// loadSync fetches the remote snapshot and overlays it through apply.
// Timer retries apply through the store dispatcher, EnableSync inline.
func (s *Store) loadSync(st *syncState, apply func(func())) {
	if !s.activeSync(st) {
		return
	}

	values, err := st.backend.Load(s.ctx)
	if err != nil {
		if !s.activeSync(st) {
			return
		}
		s.logger.Warn().
			Err(&RemoteSyncError{Op: "load", Err: err}).
			Dur("retry_in", s.retryDelay).
			Msg("Failed to load synced values")
		st.load.Schedule(s.retryDelay)
		return
	}

	apply(func() { s.overlay(st, values) })
}

func (s *Store) overlay(st *syncState, values map[string]any) {
	s.mu.Lock()
	if s.sync != st {
		s.mu.Unlock()
		return
	}
	st.loading = true
	s.mu.Unlock()

	applied := 0
	for _, name := range s.order {
		value, ok := values[name]
		if !ok {
			continue
		}
		if err := s.Set(name, value); err != nil {
			s.logger.Warn().Err(err).Str("property", name).Msg("Failed to apply synced value")
			continue
		}
		applied++
	}

	s.mu.Lock()
	st.loading = false
	s.mu.Unlock()

	s.logger.Debug().Int("applied", applied).Msg("Loaded synced values")
	if st.onLoaded != nil {
		st.onLoaded()
	}
}

func (s *Store) saveSync(st *syncState) {
	if !s.activeSync(st) {
		return
	}

	if err := st.backend.Save(s.ctx, s.Snapshot()); err != nil {
		if !s.activeSync(st) {
			return
		}
		s.logger.Warn().
			Err(&RemoteSyncError{Op: "save", Err: err}).
			Dur("retry_in", s.saveDelay).
			Msg("Failed to save synced values")
		st.save.Trigger()
		return
	}
	s.logger.Debug().Msg("Saved synced values")
}
