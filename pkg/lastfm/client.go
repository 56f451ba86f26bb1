package lastfm

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Config holds client configuration.
type Config struct {
	APIKey     string       // Required: Last.fm API key
	APISecret  string       // Required: Last.fm API secret
	SessionKey string       // Optional: Session key for authenticated requests
	HTTPClient *http.Client // Optional: HTTP client (defaults to http.DefaultClient)
	BaseURL    string       // Optional: Base URL for API (defaults to Last.fm API, used for testing)
	UserAgent  string       // Optional: User-Agent header (defaults to DefaultUserAgent)
	Logger     Logger       // Optional: Logger interface for debug logging

	// MaxAttempts bounds the tries per call, including the first
	// (defaults to 3). RetryBackoff is the first pause between attempts
	// and doubles after each retry (defaults to 1s).
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Logger is an optional interface for logging.
type Logger interface {
	Debugf(format string, args ...any)
}

// Client is the main entry point for Last.fm API operations. It is safe
// for concurrent use.
type Client struct {
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     Logger

	maxAttempts  int
	retryBackoff time.Duration

	mu         sync.RWMutex
	sessionKey string

	auth     *AuthService
	scrobble *ScrobbleService
	track    *TrackService
}

const (
	// DefaultBaseURL is the default Last.fm API endpoint.
	DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

	// DefaultAuthURL is the page where users authorize a token.
	DefaultAuthURL = "https://www.last.fm/api/auth/"

	// DefaultUserAgent identifies requests made by this package.
	DefaultUserAgent = "playerhub/1.0"
)

// NewClient creates a new Last.fm API client.
//
// Returns an error if required configuration (APIKey, APISecret) is missing.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: APIKey is required", ErrInvalidConfig)
	}
	if cfg.APISecret == "" {
		return nil, fmt.Errorf("%w: APISecret is required", ErrInvalidConfig)
	}

	c := &Client{
		apiKey:       cfg.APIKey,
		apiSecret:    cfg.APISecret,
		sessionKey:   cfg.SessionKey,
		httpClient:   cfg.HTTPClient,
		baseURL:      cfg.BaseURL,
		userAgent:    cfg.UserAgent,
		logger:       cfg.Logger,
		maxAttempts:  cfg.MaxAttempts,
		retryBackoff: cfg.RetryBackoff,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 3
	}
	if c.retryBackoff <= 0 {
		c.retryBackoff = time.Second
	}

	c.auth = &AuthService{client: c}
	c.scrobble = &ScrobbleService{client: c}
	c.track = &TrackService{client: c}

	return c, nil
}

// Auth returns the authentication service.
func (c *Client) Auth() *AuthService {
	return c.auth
}

// Scrobble returns the scrobbling service.
func (c *Client) Scrobble() *ScrobbleService {
	return c.scrobble
}

// Track returns the track service (love, unlove).
func (c *Client) Track() *TrackService {
	return c.track
}

// SetSessionKey sets the session key for authenticated requests.
func (c *Client) SetSessionKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionKey = key
}

// GetSessionKey returns the current session key.
func (c *Client) GetSessionKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionKey
}

func (c *Client) logDebugf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
