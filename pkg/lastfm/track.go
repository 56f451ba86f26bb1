package lastfm

import "context"

// TrackService implements track.love and track.unlove.
type TrackService struct {
	client *Client
}

// Love marks a track as loved by the authenticated user.
func (t *TrackService) Love(ctx context.Context, artist, track string) error {
	return t.mark(ctx, "track.love", artist, track)
}

// Unlove removes a track from the authenticated user's loved tracks.
func (t *TrackService) Unlove(ctx context.Context, artist, track string) error {
	return t.mark(ctx, "track.unlove", artist, track)
}

func (t *TrackService) mark(ctx context.Context, method, artist, track string) error {
	_, err := t.client.call(ctx, method, map[string]string{
		"artist": artist,
		"track":  track,
	}, true)
	return err
}
