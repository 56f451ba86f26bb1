package hub

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	writeTimeout   = 5 * time.Second
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The player page is served from its own origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEndpoint is an Endpoint over a websocket connection.
type wsEndpoint struct {
	id     string
	source string
	conn   *websocket.Conn

	writeMu sync.Mutex
}

func (e *wsEndpoint) ID() string     { return e.id }
func (e *wsEndpoint) Source() string { return e.source }

func (e *wsEndpoint) Send(msg Outbound) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if err := e.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return e.conn.WriteJSON(msg)
}

func (e *wsEndpoint) Close() error {
	e.writeMu.Lock()
	_ = e.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout),
	)
	e.writeMu.Unlock()
	return e.conn.Close()
}

// WebsocketHandler serves player connections at /ws?source=<id>.
type WebsocketHandler struct {
	hub    *Hub
	schema *jsonschema.Schema
	logger zerolog.Logger
}

// NewWebsocketHandler returns the transport for h.
func NewWebsocketHandler(h *Hub) (*WebsocketHandler, error) {
	schema, err := compileInboundSchema()
	if err != nil {
		return nil, err
	}
	return &WebsocketHandler{
		hub:    h,
		schema: schema,
		logger: h.logger.With().Str("transport", "websocket").Logger(),
	}, nil
}

func (wh *WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		http.Error(w, "missing source", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		wh.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	ep := &wsEndpoint{id: uuid.NewString(), source: source, conn: conn}
	log := wh.logger.With().Str("endpoint", ep.id).Str("source", source).Logger()

	if err := wh.hub.Connect(ep); err != nil {
		if !errors.Is(err, ErrAlreadyConnected) {
			log.Warn().Err(err).Msg("Connection failed")
		}
		_ = ep.Close()
		return
	}
	defer func() {
		wh.hub.Disconnect(ep)
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("Connection closed unexpectedly")
			}
			return
		}

		msg, err := decodeInbound(wh.schema, raw)
		if err != nil {
			log.Warn().Err(err).Msg("Dropping invalid message")
			continue
		}
		if err := wh.hub.HandleMessage(ep, msg); err != nil {
			log.Warn().Err(err).Str("type", msg.Type).Msg("Failed to handle message")
		}
	}
}
