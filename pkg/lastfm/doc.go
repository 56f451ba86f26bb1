// Package lastfm is a small client for the Last.fm API 2.0 covering the
// calls a scrobbler needs.
//
// # Authentication
//
// Desktop applications use the token flow:
//
//	client, err := lastfm.NewClient(lastfm.Config{
//	    APIKey:    "your-api-key",
//	    APISecret: "your-api-secret",
//	})
//	token, err := client.Auth().GetToken(ctx)
//	fmt.Println("Authorize at:", client.Auth().GetAuthURL(token.Token))
//	// wait for the user
//	session, err := client.Auth().GetSession(ctx, token.Token)
//	client.SetSessionKey(session.Key)
//
// # Scrobbling and loving
//
//	track := lastfm.Track{Artist: "The Beatles", Track: "Yesterday", Duration: 125}
//	_, err = client.Scrobble().UpdateNowPlaying(ctx, track)
//	_, err = client.Scrobble().Scrobble(ctx, lastfm.Scrobble{Track: track, Timestamp: started})
//	err = client.Track().Love(ctx, track.Artist, track.Track)
//
// # Errors
//
// API failures are returned as *Error. Every call retries network errors,
// 5xx responses and temporary API errors (Error.Temporary) with
// exponential backoff before giving up:
//
//	var apiErr *lastfm.Error
//	if errors.As(err, &apiErr) && apiErr.Code == lastfm.ErrCodeInvalidSessionKey {
//	    // re-authenticate
//	}
//
// Supported methods: auth.getToken, auth.getSession, track.updateNowPlaying,
// track.scrobble, track.love and track.unlove.
package lastfm
