package scrobbler

import (
	"context"
	"errors"
	"fmt"

	"github.com/jfmyers9/playerhub/pkg/lastfm"
)

// IgnoredError is returned when Last.fm accepted the request but ignored
// one or more scrobbles (timestamp too old, filtered artist).
type IgnoredError struct {
	Count  int
	Reason string
}

func (e *IgnoredError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("scrobble was ignored: %s", e.Reason)
	}
	return fmt.Sprintf("%d scrobbles were ignored by Last.fm", e.Count)
}

// IsRetriable reports whether a failed call should be cached and retried
// later: temporary Last.fm errors (11, 16, 29), server errors, timeouts
// and network failures.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *lastfm.Error
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var httpErr *lastfm.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return lastfm.IsNetworkError(err)
}
