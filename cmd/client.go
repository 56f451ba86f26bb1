package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jfmyers9/playerhub/internal/config"
	"github.com/jfmyers9/playerhub/internal/hub"
)

// errDaemonNotRunning is returned when nothing answers on the daemon
// address.
var errDaemonNotRunning = errors.New("daemon is not running (start it with 'playerhub daemon')")

// apiClient calls the daemon's control API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// clientFromConfig resolves the daemon address from --addr or the config.
func clientFromConfig() (*apiClient, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if apiAddr != "" {
		cfg.ListenAddr = apiAddr
	}
	return newAPIClient(cfg.APIURL()), cfg, nil
}

// do sends body as JSON and decodes a JSON response into out when out is
// non-nil.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return errDaemonNotRunning
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon: unexpected status %s", resp.Status)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *apiClient) state(ctx context.Context) (*hub.StateResponse, error) {
	var st hub.StateResponse
	if err := c.do(ctx, http.MethodGet, "/api/state", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *apiClient) execute(ctx context.Context, command string, options any) error {
	return c.do(ctx, http.MethodPost, "/api/execute", hub.ExecuteRequest{Command: command, Options: options}, nil)
}

func (c *apiClient) settings(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodGet, "/api/settings", nil, &out)
	return out, err
}

func (c *apiClient) importSettings(ctx context.Context, record map[string]any) ([]string, error) {
	var out hub.ImportResponse
	if err := c.do(ctx, http.MethodPatch, "/api/settings", record, &out); err != nil {
		return nil, err
	}
	return out.Unknown, nil
}

func (c *apiClient) resetSettings(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/settings/reset", nil, nil)
}

func (c *apiClient) setSession(ctx context.Context, key, name string) error {
	return c.do(ctx, http.MethodPut, "/api/session", hub.SessionRequest{Key: key, Name: name}, nil)
}

func (c *apiClient) clearSession(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/session", nil, nil)
}

func (c *apiClient) navigate(ctx context.Context, req hub.NavigateRequest) error {
	return c.do(ctx, http.MethodPost, "/api/navigate", req, nil)
}

func (c *apiClient) resume(ctx context.Context, song hub.LastSong) error {
	return c.do(ctx, http.MethodPost, "/api/resume", song, nil)
}
