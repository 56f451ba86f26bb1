// Package hub binds the player endpoint to the property stores: it keeps
// a single live connection with a waiting list, routes inbound messages
// into the stores or domain handlers, and carries outbound messages back.
package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/playerhub/internal/bean"
	"github.com/jfmyers9/playerhub/internal/state"
)

var (
	// ErrNotConnected is returned by Send when no endpoint is bound.
	ErrNotConnected = errors.New("hub: no player connected")

	// ErrAlreadyConnected is returned by Connect when the bound endpoint
	// already comes from the same source.
	ErrAlreadyConnected = errors.New("hub: source already connected")
)

// Endpoint is one connection to a player page.
type Endpoint interface {
	ID() string
	// Source identifies the page the connection comes from. Two
	// connections with the same source are the same player.
	Source() string
	Send(msg Outbound) error
	Close() error
}

// ConnState is the lifecycle of the bound connection.
type ConnState int

const (
	Disconnected ConnState = iota
	// Connecting means an endpoint is bound and acknowledged, but the
	// player has not reported its state yet.
	Connecting
	Connected
)

func (c ConnState) String() string {
	switch c {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// HandlerFunc handles an inbound message type that is not a store write.
type HandlerFunc func(value json.RawMessage) error

// Hub is the EventRouter.
type Hub struct {
	state  *state.State
	logger zerolog.Logger

	// lifecycle serializes Connect and Disconnect so a reset of the
	// playback stores never overlaps a new binding.
	lifecycle sync.Mutex

	mu       sync.Mutex
	bound    Endpoint
	conn     ConnState
	parked   []Endpoint
	handlers map[string]HandlerFunc
}

// New creates a hub routing into st.
func New(st *state.State, logger zerolog.Logger) *Hub {
	return &Hub{
		state:    st,
		logger:   logger.With().Str("component", "hub").Logger(),
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers fn for an inbound message type, replacing any
// previous handler. A nil fn removes the handler.
func (h *Hub) Handle(msgType string, fn HandlerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if fn == nil {
		delete(h.handlers, msgType)
		return
	}
	h.handlers[msgType] = fn
}

// State returns the connection state.
func (h *Hub) State() ConnState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn
}

// BoundID returns the id of the bound endpoint, or "".
func (h *Hub) BoundID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bound == nil {
		return ""
	}
	return h.bound.ID()
}

// Parked returns the number of endpoints waiting for promotion.
func (h *Hub) Parked() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.parked)
}

// Connect handles a connection request. Without a bound endpoint ep is
// bound and acknowledged. If the bound endpoint has the same source ep is
// told it is already connected and ErrAlreadyConnected is returned.
// Otherwise ep is parked until the bound endpoint goes away.
func (h *Hub) Connect(ep Endpoint) error {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()

	h.mu.Lock()
	bound := h.bound
	if bound != nil {
		if bound.Source() == ep.Source() {
			h.mu.Unlock()
			h.logger.Info().Str("endpoint", ep.ID()).Str("source", ep.Source()).Msg("Rejecting duplicate connection")
			if err := ep.Send(AlreadyConnected()); err != nil {
				h.logger.Debug().Err(err).Str("endpoint", ep.ID()).Msg("Failed to send rejection")
			}
			return ErrAlreadyConnected
		}
		h.parked = append(h.parked, ep)
		h.mu.Unlock()
		h.logger.Info().Str("endpoint", ep.ID()).Str("source", ep.Source()).Msg("Parked connection")
		return nil
	}
	h.mu.Unlock()

	if err := h.bind(ep); err != nil {
		return fmt.Errorf("failed to acknowledge connection: %w", err)
	}
	return nil
}

// bind makes ep the live endpoint and acknowledges it. On a failed
// acknowledgement the binding is undone. Callers hold lifecycle.
func (h *Hub) bind(ep Endpoint) error {
	h.mu.Lock()
	h.bound = ep
	h.conn = Connecting
	h.mu.Unlock()

	if err := ep.Send(ConnectedAck()); err != nil {
		h.mu.Lock()
		if h.bound == ep {
			h.bound = nil
			h.conn = Disconnected
		}
		h.mu.Unlock()
		return err
	}

	h.logger.Info().Str("endpoint", ep.ID()).Str("source", ep.Source()).Msg("Player bound")
	return nil
}

// Disconnect handles the loss of ep. A parked endpoint just leaves the
// queue. The bound endpoint is unbound, playback state is reset, and
// parked endpoints are promoted in order until one accepts.
func (h *Hub) Disconnect(ep Endpoint) {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()

	h.mu.Lock()
	if h.bound != ep {
		for i, p := range h.parked {
			if p == ep {
				h.parked = append(h.parked[:i], h.parked[i+1:]...)
				break
			}
		}
		h.mu.Unlock()
		return
	}
	h.bound = nil
	h.conn = Disconnected
	h.mu.Unlock()

	h.logger.Info().Str("endpoint", ep.ID()).Msg("Player disconnected")
	h.state.Do(h.state.ResetPlayback)

	for {
		h.mu.Lock()
		if len(h.parked) == 0 {
			h.mu.Unlock()
			return
		}
		next := h.parked[0]
		h.parked = h.parked[1:]
		h.mu.Unlock()

		if err := h.bind(next); err != nil {
			h.logger.Debug().Err(err).Str("endpoint", next.ID()).Msg("Skipping parked connection")
			continue
		}
		return
	}
}

// HandleMessage routes a message from ep. Messages from endpoints other
// than the bound one are ignored. Routing runs inside State.Do.
func (h *Hub) HandleMessage(ep Endpoint, msg Inbound) (err error) {
	h.state.Do(func() { err = h.handleMessage(ep, msg) })
	return err
}

func (h *Hub) handleMessage(ep Endpoint, msg Inbound) error {
	h.mu.Lock()
	bound := h.bound == ep
	h.mu.Unlock()
	if !bound {
		h.logger.Debug().Str("endpoint", ep.ID()).Str("type", msg.Type).Msg("Ignoring message from unbound endpoint")
		return nil
	}

	switch {
	case msg.Type == TypeConnected:
		return h.handleConnected(msg.Value)
	case strings.HasPrefix(msg.Type, songPrefix):
		return h.route(h.state.Song, strings.TrimPrefix(msg.Type, songPrefix), msg.Value)
	case strings.HasPrefix(msg.Type, playerPrefix):
		return h.route(h.state.Player, strings.TrimPrefix(msg.Type, playerPrefix), msg.Value)
	}

	h.mu.Lock()
	fn := h.handlers[msg.Type]
	h.mu.Unlock()
	if fn == nil {
		h.logger.Debug().Str("type", msg.Type).Msg("No handler for message")
		return nil
	}
	if err := fn(msg.Value); err != nil {
		return fmt.Errorf("failed to handle %s: %w", msg.Type, err)
	}
	return nil
}

func (h *Hub) handleConnected(raw json.RawMessage) error {
	var info struct {
		RatingMode any `json:"ratingMode"`
		Quicklinks any `json:"quicklinks"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &info); err != nil {
			return fmt.Errorf("failed to decode connected message: %w", err)
		}
	}

	player := h.state.Player
	if err := player.Set("ratingMode", info.RatingMode); err != nil {
		return err
	}
	if err := player.Set("quicklinks", info.Quicklinks); err != nil {
		return err
	}

	h.mu.Lock()
	h.conn = Connected
	h.mu.Unlock()

	return player.Set("connected", true)
}

func (h *Hub) route(store *bean.Store, name string, raw json.RawMessage) error {
	var value any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &value); err != nil {
			return fmt.Errorf("failed to decode %s.%s: %w", store.Name(), name, err)
		}
	}
	if store == h.state.Song && name == "position" && value == "" {
		value = state.ZeroPosition
	}
	return store.Set(name, value)
}

// Send delivers msg to the bound endpoint.
func (h *Hub) Send(msg Outbound) error {
	h.mu.Lock()
	ep := h.bound
	h.mu.Unlock()
	if ep == nil {
		return ErrNotConnected
	}
	return ep.Send(msg)
}

// Close unbinds and closes the bound and parked endpoints.
func (h *Hub) Close() {
	h.mu.Lock()
	eps := append([]Endpoint(nil), h.parked...)
	if h.bound != nil {
		eps = append(eps, h.bound)
	}
	h.parked = nil
	h.bound = nil
	h.conn = Disconnected
	h.mu.Unlock()

	for _, ep := range eps {
		_ = ep.Close()
	}
}
