// Package state owns the process-wide property stores. The daemon builds
// one State at startup and hands it to every component.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/playerhub/internal/bean"
	"github.com/jfmyers9/playerhub/internal/schedule"
	"github.com/jfmyers9/playerhub/internal/storage"
)

const listenerSource = "state"

// Options tune store construction. Zero values mean real time and the
// default sync delays.
type Options struct {
	Clock          schedule.Clock
	SyncSaveDelay  time.Duration
	SyncRetryDelay time.Duration
}

// State groups the four stores.
type State struct {
	Settings      *bean.Store
	LocalSettings *bean.Store
	Player        *bean.Store
	Song          *bean.Store

	dispatcher *bean.Dispatcher
	logger     zerolog.Logger
}

// New builds the stores. settings and localSettings persist to db when it
// is non-nil; player and song are memory only.
func New(db *storage.SQLite, logger zerolog.Logger, opts Options) (*State, error) {
	logger = logger.With().Str("component", "state").Logger()

	dispatcher := bean.NewDispatcher()
	common := []bean.Option{bean.WithLogger(logger), bean.WithDispatcher(dispatcher)}
	if opts.Clock != nil {
		common = append(common, bean.WithClock(opts.Clock))
	}
	if opts.SyncSaveDelay > 0 || opts.SyncRetryDelay > 0 {
		save, retry := opts.SyncSaveDelay, opts.SyncRetryDelay
		if save <= 0 {
			save = bean.DefaultSyncSaveDelay
		}
		if retry <= 0 {
			retry = bean.DefaultSyncRetryDelay
		}
		common = append(common, bean.WithSyncDelays(save, retry))
	}

	persisted := func(ns string) []bean.Option {
		if db == nil {
			return common
		}
		return append(append([]bean.Option(nil), common...), bean.WithLocal(db.Namespace(ns)))
	}

	s := &State{dispatcher: dispatcher, logger: logger}
	var err error

	if s.Settings, err = bean.New(SettingsStore, SettingsDefaults(), persisted(SettingsStore)...); err != nil {
		return nil, fmt.Errorf("failed to create settings store: %w", err)
	}
	if s.LocalSettings, err = bean.New(LocalSettingsStore, LocalSettingsDefaults(), persisted(LocalSettingsStore)...); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create local settings store: %w", err)
	}
	if s.Player, err = bean.New(PlayerStore, PlayerDefaults(), common...); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create player store: %w", err)
	}
	if s.Song, err = bean.New(SongStore, SongDefaults(), common...); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create song store: %w", err)
	}

	return s, nil
}

// Do runs fn as one step of the single logical thread that owns the
// stores. Every goroutine that writes (connection handlers, API calls,
// timers, remote call completions) goes through Do. Listeners already
// run inside it and must not call Do again.
func (s *State) Do(fn func()) {
	s.dispatcher.Do(fn)
}

// Stores returns the stores keyed by name.
func (s *State) Stores() map[string]*bean.Store {
	return map[string]*bean.Store{
		SettingsStore:      s.Settings,
		LocalSettingsStore: s.LocalSettings,
		PlayerStore:        s.Player,
		SongStore:          s.Song,
	}
}

// BindSync mirrors the settings store to backend while
// localSettings.syncSettings is true.
func (s *State) BindSync(backend bean.SyncBackend) error {
	l := bean.NewListener(func(value, _ any, _ string) {
		enabled, _ := value.(bool)
		if enabled == s.Settings.SyncEnabled() {
			return
		}
		if !enabled {
			s.Settings.DisableSync()
			s.logger.Info().Msg("Settings sync disabled")
			return
		}
		s.Settings.EnableSync(backend, func() {
			s.logger.Info().Msg("Settings sync loaded")
		})
		s.logger.Info().Msg("Settings sync enabled")
	})
	return s.LocalSettings.Watch("syncSettings", l, listenerSource)
}

// ResetPlayback returns player and song to their defaults.
func (s *State) ResetPlayback() {
	ctx := context.Background()
	err := errors.Join(s.Player.ResetToDefaults(ctx), s.Song.ResetToDefaults(ctx))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to reset playback state")
	}
}

// Close cancels every pending store timer.
func (s *State) Close() {
	for _, store := range []*bean.Store{s.Settings, s.LocalSettings, s.Player, s.Song} {
		if store == nil {
			continue
		}
		store.RemoveAllForSource(listenerSource)
		store.Close()
	}
}
