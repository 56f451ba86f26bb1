package lastfm

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
)

// AuthService implements the desktop token flow.
type AuthService struct {
	client *Client
}

// GetToken requests an unauthorized token (auth.getToken). The user then
// authorizes it at GetAuthURL before GetSession is called.
func (a *AuthService) GetToken(ctx context.Context) (*Token, error) {
	inner, err := a.client.call(ctx, "auth.getToken", nil, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Token string `xml:"token"`
	}
	if err := xml.Unmarshal(wrapInner(inner), &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse token response: %w", err)
	}
	token := strings.TrimSpace(resp.Token)
	if token == "" {
		return nil, fmt.Errorf("lastfm: empty token in response")
	}
	return &Token{Token: token}, nil
}

// GetAuthURL returns the page where the user authorizes token.
func (a *AuthService) GetAuthURL(token string) string {
	q := url.Values{}
	q.Set("api_key", a.client.apiKey)
	q.Set("token", token)
	return DefaultAuthURL + "?" + q.Encode()
}

// GetSession exchanges an authorized token for a session key
// (auth.getSession). Session keys do not expire; store the key and pass
// it as Config.SessionKey later.
//
// Example:
//
//	session, err := client.Auth().GetSession(ctx, token.Token)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client.SetSessionKey(session.Key)
func (a *AuthService) GetSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("lastfm: token is required")
	}

	inner, err := a.client.call(ctx, "auth.getSession", map[string]string{"token": token}, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Name       string `xml:"session>name"`
		Key        string `xml:"session>key"`
		Subscriber int    `xml:"session>subscriber"`
	}
	if err := xml.Unmarshal(wrapInner(inner), &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse session response: %w", err)
	}
	return &Session{
		Key:        strings.TrimSpace(resp.Key),
		Username:   strings.TrimSpace(resp.Name),
		Subscriber: resp.Subscriber == 1,
	}, nil
}
