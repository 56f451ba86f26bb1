package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfmyers9/playerhub/internal/bean"
	"github.com/jfmyers9/playerhub/internal/state"
)

type fakeEndpoint struct {
	id     string
	source string

	mu      sync.Mutex
	sent    []Outbound
	sendErr error
	closed  bool
}

func newEndpoint(id, source string) *fakeEndpoint {
	return &fakeEndpoint{id: id, source: source}
}

func (e *fakeEndpoint) ID() string     { return e.id }
func (e *fakeEndpoint) Source() string { return e.source }

func (e *fakeEndpoint) Send(msg Outbound) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sendErr != nil {
		return e.sendErr
	}
	e.sent = append(e.sent, msg)
	return nil
}

func (e *fakeEndpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *fakeEndpoint) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.sent))
	for i, m := range e.sent {
		out[i] = m.Type()
	}
	return out
}

func newTestHub(t *testing.T) (*Hub, *state.State) {
	t.Helper()
	st, err := state.New(nil, zerolog.Nop(), state.Options{})
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return New(st, zerolog.Nop()), st
}

func msg(t *testing.T, msgType string, value any) Inbound {
	t.Helper()
	in := Inbound{Type: msgType}
	if value != nil {
		raw, err := json.Marshal(value)
		require.NoError(t, err)
		in.Value = raw
	}
	return in
}

func TestConnect_SingleActiveConnection(t *testing.T) {
	h, _ := newTestHub(t)
	first := newEndpoint("1", "tab-1")
	second := newEndpoint("2", "tab-2")

	require.NoError(t, h.Connect(first))
	require.NoError(t, h.Connect(second))

	assert.Equal(t, []string{"connected"}, first.types())
	assert.Empty(t, second.types(), "parked endpoint gets no acknowledgement")
	assert.Equal(t, "1", h.BoundID())
	assert.Equal(t, 1, h.Parked())
	assert.Equal(t, Connecting, h.State())

	h.Disconnect(first)

	assert.Equal(t, []string{"connected"}, second.types())
	assert.Equal(t, "2", h.BoundID())
	assert.Equal(t, 0, h.Parked())
}

func TestConnect_SameSourceRejected(t *testing.T) {
	h, _ := newTestHub(t)
	first := newEndpoint("1", "tab-1")
	dup := newEndpoint("2", "tab-1")

	require.NoError(t, h.Connect(first))
	err := h.Connect(dup)

	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, []string{"alreadyConnected"}, dup.types())
	assert.Equal(t, 0, h.Parked())
	assert.Equal(t, "1", h.BoundID())
}

func TestDisconnect_ParkedLeavesQueue(t *testing.T) {
	h, _ := newTestHub(t)
	first := newEndpoint("1", "a")
	second := newEndpoint("2", "b")
	third := newEndpoint("3", "c")

	require.NoError(t, h.Connect(first))
	require.NoError(t, h.Connect(second))
	require.NoError(t, h.Connect(third))

	h.Disconnect(second)
	assert.Equal(t, 1, h.Parked())

	h.Disconnect(first)
	assert.Equal(t, "3", h.BoundID())
	assert.Empty(t, second.types())
}

func TestDisconnect_PromotionSkipsDeadEndpoints(t *testing.T) {
	h, _ := newTestHub(t)
	first := newEndpoint("1", "a")
	dead := newEndpoint("2", "b")
	alive := newEndpoint("3", "c")
	dead.sendErr = errors.New("gone")

	require.NoError(t, h.Connect(first))
	require.NoError(t, h.Connect(dead))
	require.NoError(t, h.Connect(alive))

	h.Disconnect(first)

	assert.Equal(t, "3", h.BoundID())
	assert.Equal(t, []string{"connected"}, alive.types())
	assert.Equal(t, 0, h.Parked())
}

func TestDisconnect_LastEndpointLeavesHubEmpty(t *testing.T) {
	h, st := newTestHub(t)
	ep := newEndpoint("1", "a")

	require.NoError(t, h.Connect(ep))
	require.NoError(t, h.HandleMessage(ep, msg(t, "connected", map[string]any{"ratingMode": "star"})))
	require.NoError(t, h.HandleMessage(ep, msg(t, "song-info", map[string]any{"title": "t", "duration": 120})))

	h.Disconnect(ep)

	assert.Equal(t, Disconnected, h.State())
	assert.Equal(t, "", h.BoundID())
	assert.False(t, st.Player.Bool("connected"))
	assert.True(t, st.Player.IsNil("ratingMode"))
	assert.True(t, st.Song.IsNil("info"))
	assert.ErrorIs(t, h.Send(ConnectedAck()), ErrNotConnected)
}

func TestConnect_FailedAckUnbinds(t *testing.T) {
	h, _ := newTestHub(t)
	ep := newEndpoint("1", "a")
	ep.sendErr = errors.New("broken pipe")

	assert.Error(t, h.Connect(ep))
	assert.Equal(t, Disconnected, h.State())

	fresh := newEndpoint("2", "a")
	require.NoError(t, h.Connect(fresh))
	assert.Equal(t, "2", h.BoundID())
}

func TestHandleMessage_ConnectedHandshake(t *testing.T) {
	h, st := newTestHub(t)
	ep := newEndpoint("1", "a")
	require.NoError(t, h.Connect(ep))

	var seen []any
	require.NoError(t, st.Player.AddListener("connected", bean.NewListener(func(v, _ any, _ string) {
		seen = append(seen, v)
	}), ""))

	links := []any{"albums", "artists"}
	require.NoError(t, h.HandleMessage(ep, msg(t, "connected", map[string]any{"ratingMode": "thumbs", "quicklinks": links})))

	assert.Equal(t, Connected, h.State())
	assert.Equal(t, "thumbs", st.Player.String("ratingMode"))
	assert.Equal(t, links, st.Player.Slice("quicklinks"))
	assert.Equal(t, []any{true}, seen)
}

func TestHandleMessage_RoutesIntoStores(t *testing.T) {
	h, st := newTestHub(t)
	ep := newEndpoint("1", "a")
	require.NoError(t, h.Connect(ep))

	require.NoError(t, h.HandleMessage(ep, msg(t, "song-position", "1:23")))
	require.NoError(t, h.HandleMessage(ep, msg(t, "song-ff", true)))
	require.NoError(t, h.HandleMessage(ep, msg(t, "player-volume", 42)))
	require.NoError(t, h.HandleMessage(ep, msg(t, "player-playing", true)))

	assert.Equal(t, "1:23", st.Song.String("position"))
	assert.True(t, st.Song.Bool("ff"))
	assert.Equal(t, 42.0, st.Player.Float("volume"))
	assert.True(t, st.Player.Bool("playing"))

	require.NoError(t, h.HandleMessage(ep, msg(t, "song-position", "")))
	assert.Equal(t, state.ZeroPosition, st.Song.String("position"))
}

func TestHandleMessage_UnknownProperty(t *testing.T) {
	h, _ := newTestHub(t)
	ep := newEndpoint("1", "a")
	require.NoError(t, h.Connect(ep))

	err := h.HandleMessage(ep, msg(t, "song-bogus", 1))
	assert.True(t, bean.IsUnknownProperty(err))
}

func TestHandleMessage_IgnoresUnboundEndpoints(t *testing.T) {
	h, st := newTestHub(t)
	bound := newEndpoint("1", "a")
	parked := newEndpoint("2", "b")
	require.NoError(t, h.Connect(bound))
	require.NoError(t, h.Connect(parked))

	require.NoError(t, h.HandleMessage(parked, msg(t, "song-position", "2:00")))
	assert.Equal(t, state.ZeroPosition, st.Song.String("position"))
}

func TestHandleMessage_DomainHandlers(t *testing.T) {
	h, _ := newTestHub(t)
	ep := newEndpoint("1", "a")
	require.NoError(t, h.Connect(ep))

	var got json.RawMessage
	h.Handle(TypeRated, func(value json.RawMessage) error {
		got = value
		return nil
	})
	h.Handle(TypeLoadLyrics, func(json.RawMessage) error {
		return errors.New("no provider")
	})

	require.NoError(t, h.HandleMessage(ep, msg(t, "rated", map[string]any{"rating": 5})))
	assert.JSONEq(t, `{"rating":5}`, string(got))

	assert.Error(t, h.HandleMessage(ep, msg(t, "loadLyrics", nil)))
	assert.NoError(t, h.HandleMessage(ep, msg(t, "somethingElse", nil)))
}

func TestClose_ClosesEndpoints(t *testing.T) {
	h, st := newTestHub(t)
	a := newEndpoint("1", "a")
	b := newEndpoint("2", "b")
	require.NoError(t, h.Connect(a))
	require.NoError(t, h.Connect(b))

	h.Close()

	assert.True(t, a.closed)
	assert.True(t, b.closed)

	assert.Equal(t, "", h.BoundID())
	assert.Equal(t, Disconnected, h.State())
	assert.Equal(t, 0, h.Parked())
	assert.ErrorIs(t, h.Send(Execute("play", nil)), ErrNotConnected)

	require.NoError(t, h.HandleMessage(a, msg(t, "player-volume", 30)))
	assert.True(t, st.Player.IsNil("volume"))
}

func TestOutboundMessages(t *testing.T) {
	tests := []struct {
		msg  Outbound
		want string
	}{
		{ConnectedAck(), `{"type":"connected"}`},
		{AlreadyConnected(), `{"type":"alreadyConnected"}`},
		{Execute("playPause", nil), `{"type":"execute","command":"playPause","options":null}`},
		{ConnectedIndicator(true), `{"type":"connectedIndicator","show":true}`},
		{LyricsState(true, 11, 250, false), `{"type":"lyricsState","enabled":true,"fontSize":11,"width":250,"autoReload":false}`},
		{GetNavigationList("albums", "", true), `{"type":"getNavigationList","link":"albums","search":"","omitUnknownAlbums":true}`},
		{SelectLink("artist/x"), `{"type":"selectLink","link":"artist/x"}`},
		{StartPlaylist("pl/1"), `{"type":"startPlaylist","link":"pl/1"}`},
		{Lyrics(LyricsResult{Error: "none"}, nil, "x"), `{"type":"lyrics","result":{"error":"none"},"providers":[],"src":"x"}`},
		{
			ResumeLastSong(LastSong{AlbumLink: "al", Artist: "a", Title: "t", Duration: "3:00", Position: 0.5}),
			`{"type":"resumeLastSong","albumLink":"al","artist":"a","title":"t","duration":"3:00","position":0.5}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.msg.Type(), func(t *testing.T) {
			raw, err := json.Marshal(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}
