package hub

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/playerhub/internal/state"
)

// StateResponse is the body of GET /api/state.
type StateResponse struct {
	Connection string         `json:"connection"`
	User       string         `json:"user"`
	Player     map[string]any `json:"player"`
	Song       map[string]any `json:"song"`
}

// ExecuteRequest is the body of POST /api/execute.
type ExecuteRequest struct {
	Command string `json:"command"`
	Options any    `json:"options,omitempty"`
}

// Navigation actions accepted by POST /api/navigate.
const (
	NavigateList   = "list"
	NavigateSelect = "select"
	NavigatePlay   = "play"
)

// NavigateRequest is the body of POST /api/navigate. Search and
// OmitUnknownAlbums only apply to NavigateList.
type NavigateRequest struct {
	Action            string `json:"action"`
	Link              string `json:"link"`
	Search            string `json:"search,omitempty"`
	OmitUnknownAlbums bool   `json:"omitUnknownAlbums,omitempty"`
}

// ImportResponse is the body returned by PATCH /api/settings.
type ImportResponse struct {
	Unknown []string `json:"unknown"`
}

// SessionRequest is the body of PUT /api/session.
type SessionRequest struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// API serves the local control endpoints used by the CLI.
type API struct {
	hub    *Hub
	state  *state.State
	logger zerolog.Logger
}

// NewAPI returns the control API for h.
func NewAPI(h *Hub) *API {
	return &API{
		hub:    h,
		state:  h.state,
		logger: h.logger.With().Str("transport", "api").Logger(),
	}
}

// Register mounts the endpoints on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", a.getState)
	mux.HandleFunc("POST /api/execute", a.execute)
	mux.HandleFunc("POST /api/navigate", a.navigate)
	mux.HandleFunc("POST /api/resume", a.resume)
	mux.HandleFunc("GET /api/settings", a.getSettings)
	mux.HandleFunc("PATCH /api/settings", a.patchSettings)
	mux.HandleFunc("POST /api/settings/reset", a.resetSettings)
	mux.HandleFunc("PUT /api/session", a.putSession)
	mux.HandleFunc("DELETE /api/session", a.deleteSession)
}

func (a *API) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StateResponse{
		Connection: a.hub.State().String(),
		User:       a.state.LocalSettings.String("lastfmSessionName"),
		Player:     a.state.Player.Snapshot(),
		Song:       a.state.Song.Snapshot(),
	})
}

func (a *API) execute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Command == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	a.forward(w, Execute(req.Command, req.Options))
}

func (a *API) navigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Link == "" {
		writeError(w, http.StatusBadRequest, "link is required")
		return
	}

	var msg Outbound
	switch req.Action {
	case NavigateList:
		msg = GetNavigationList(req.Link, req.Search, req.OmitUnknownAlbums)
	case NavigateSelect:
		msg = SelectLink(req.Link)
	case NavigatePlay:
		msg = StartPlaylist(req.Link)
	default:
		writeError(w, http.StatusBadRequest, "action must be list, select or play")
		return
	}
	a.forward(w, msg)
}

func (a *API) resume(w http.ResponseWriter, r *http.Request) {
	var req LastSong
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" || req.Artist == "" {
		writeError(w, http.StatusBadRequest, "artist and title are required")
		return
	}
	a.forward(w, ResumeLastSong(req))
}

// forward sends msg to the bound player and maps the outcome to a status.
func (a *API) forward(w http.ResponseWriter, msg Outbound) {
	if err := a.hub.Send(msg); err != nil {
		if errors.Is(err, ErrNotConnected) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		a.logger.Warn().Err(err).Str("type", msg.Type()).Msg("Failed to send message")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.state.Settings.Snapshot())
}

func (a *API) patchSettings(w http.ResponseWriter, r *http.Request) {
	var record map[string]any
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON object")
		return
	}

	var (
		unknown []string
		err     error
	)
	a.state.Do(func() { unknown, err = a.state.Settings.Import(record) })
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if unknown == nil {
		unknown = []string{}
	}
	writeJSON(w, http.StatusOK, ImportResponse{Unknown: unknown})
}

func (a *API) resetSettings(w http.ResponseWriter, r *http.Request) {
	var err error
	a.state.Do(func() { err = a.state.Settings.ResetToDefaults(r.Context()) })
	if err != nil {
		a.logger.Warn().Err(err).Msg("Settings reset incomplete")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a.state.Settings.Snapshot())
}

func (a *API) putSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "key and name are required")
		return
	}
	a.setSession(w, req.Key, req.Name)
}

func (a *API) deleteSession(w http.ResponseWriter, r *http.Request) {
	a.setSession(w, "", "")
}

// setSession writes the key before the name: the name is what switches
// the rules to the new user.
func (a *API) setSession(w http.ResponseWriter, key, name string) {
	local := a.state.LocalSettings
	var err error
	a.state.Do(func() {
		if err = local.Set("lastfmSessionKey", key); err != nil {
			return
		}
		err = local.Set("lastfmSessionName", name)
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
