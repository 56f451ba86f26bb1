package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfmyers9/playerhub/internal/schedule"
	"github.com/jfmyers9/playerhub/internal/storage"
)

type memSync struct {
	mu    sync.Mutex
	data  map[string]any
	saves int
}

func (m *memSync) Load(ctx context.Context) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, nil
}

func (m *memSync) Save(ctx context.Context, values map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = values
	m.saves++
	return nil
}

func (m *memSync) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

func TestNew_Defaults(t *testing.T) {
	st, err := New(nil, zerolog.Nop(), Options{})
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, 50.0, st.Settings.Float("scrobblePercent"))
	assert.Equal(t, ZeroPosition, st.Song.String("position"))
	assert.Equal(t, -1.0, st.Song.Float("scrobbleTime"))
	assert.False(t, st.Player.Bool("connected"))
	assert.Len(t, st.Stores(), 4)
}

func TestNew_PersistsSettings(t *testing.T) {
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	st, err := New(db, zerolog.Nop(), Options{})
	require.NoError(t, err)
	require.NoError(t, st.Settings.Set("scrobblePercent", 70))
	require.NoError(t, st.LocalSettings.Set("lastfmSessionName", "alice"))
	require.NoError(t, st.Song.Set("position", "1:00"))
	st.Close()

	st, err = New(db, zerolog.Nop(), Options{})
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, 70.0, st.Settings.Float("scrobblePercent"))
	assert.Equal(t, "alice", st.LocalSettings.String("lastfmSessionName"))
	assert.Equal(t, ZeroPosition, st.Song.String("position"), "song is never persisted")
}

func TestResetPlayback(t *testing.T) {
	st, err := New(nil, zerolog.Nop(), Options{})
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Player.Set("connected", true))
	require.NoError(t, st.Song.Set("info", map[string]any{"title": "x", "duration": 200}))
	require.NoError(t, st.Settings.Set("scrobble", false))

	st.ResetPlayback()

	assert.False(t, st.Player.Bool("connected"))
	assert.True(t, st.Song.IsNil("info"))
	assert.False(t, st.Settings.Bool("scrobble"), "settings are untouched")
}

func TestBindSync_FollowsSyncSetting(t *testing.T) {
	clock := schedule.NewFake()
	st, err := New(nil, zerolog.Nop(), Options{Clock: clock})
	require.NoError(t, err)
	defer st.Close()

	backend := &memSync{data: map[string]any{"scrobblePercent": 80.0}}
	require.NoError(t, st.BindSync(backend))
	assert.False(t, st.Settings.SyncEnabled())

	require.NoError(t, st.LocalSettings.Set("syncSettings", true))
	assert.True(t, st.Settings.SyncEnabled())
	assert.Equal(t, 80.0, st.Settings.Float("scrobblePercent"))

	require.NoError(t, st.Settings.Set("lyrics", false))
	clock.Advance(10 * time.Second)
	assert.Equal(t, 1, backend.saves)
	assert.Equal(t, false, backend.data["lyrics"])

	require.NoError(t, st.LocalSettings.Set("syncSettings", false))
	assert.False(t, st.Settings.SyncEnabled())

	require.NoError(t, st.Settings.Set("lyrics", true))
	clock.Advance(time.Minute)
	assert.Equal(t, 1, backend.saves)
}
