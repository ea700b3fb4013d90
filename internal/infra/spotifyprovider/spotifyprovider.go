// Package spotifyprovider is the concrete core/provider.Provider backed by
// the Spotify Web API Playback endpoints.
//
// Grounded directly on internal/infra/spotify/client.go: same
// spotifyauth.New + refresh-token oauth2.Token authentication, the same
// retry-with-backoff shape, and the same extractTrackID helper, re-pointed
// from playlist-build endpoints (GetTrack/Search/AddTracksToPlaylist) to
// playback-control endpoints (PlayOpt/Pause/PlayerDevices) and re-scoped
// to playback-control OAuth scopes instead of playlist-modify scopes.
// Single-tenant: one process holds one Spotify account's token, matching
// spec.md §6's single provider-credential set; venueID is accepted on
// every call for interface symmetry with a future multi-tenant provider
// but is not otherwise consulted.
package spotifyprovider

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/beatline/beatline/internal/coreerr"
	"github.com/beatline/beatline/internal/core/provider"
)

// Config configures the Spotify client.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	RefreshToken string
}

// Provider is a core/provider.Provider backed by a single Spotify account.
type Provider struct {
	auth         *spotifyauth.Authenticator
	refreshToken string

	mu         sync.Mutex
	client     *spotify.Client
	maxRetries int
	retryDelay time.Duration
}

// New builds a Provider from cfg. The refresh token is obtained out of
// band via cmd/auth (see internal/infra/spotify's grounding) and passed
// in; New itself performs no OAuth authorization-code exchange.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.RedirectURI),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserModifyPlaybackState,
			spotifyauth.ScopeUserReadPlaybackState,
			spotifyauth.ScopeUserReadCurrentlyPlaying,
		),
	)

	p := &Provider{
		auth:         auth,
		refreshToken: cfg.RefreshToken,
		maxRetries:   3,
		retryDelay:   time.Second,
	}
	p.client = spotify.New(auth.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken}))
	return p, nil
}

// currentClient returns the spotify.Client in use, which refreshClient may
// have swapped out from under a concurrent caller after a 401.
func (p *Provider) currentClient() *spotify.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client
}

// refreshClient discards the cached access token and builds a new
// oauth2-backed client from the long-lived refresh token, forcing an
// immediate token exchange on the next call instead of waiting out the
// access token's normal expiry.
func (p *Provider) refreshClient(ctx context.Context) {
	token := &oauth2.Token{RefreshToken: p.refreshToken}
	client := spotify.New(p.auth.Client(ctx, token))

	p.mu.Lock()
	p.client = client
	p.mu.Unlock()
}

// ListDevices returns every playback device visible to the account.
func (p *Provider) ListDevices(ctx context.Context, venueID string) ([]provider.Device, error) {
	var devices []spotify.PlayerDevice
	err := p.retry(ctx, func() error {
		d, err := p.currentClient().PlayerDevices(ctx)
		if err != nil {
			return err
		}
		devices = d
		return nil
	})
	if err != nil {
		return nil, coreerr.Provider(err, "list devices")
	}

	out := make([]provider.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, provider.Device{
			ID:       string(d.ID),
			Name:     d.Name,
			IsActive: d.IsActive,
		})
	}
	return out, nil
}

// PlayTrack starts trackURI playing on deviceID by passing the device id
// to PlayOpt; it makes no separate TransferPlayback call.
func (p *Provider) PlayTrack(ctx context.Context, venueID, trackURI, deviceID string) error {
	id := spotify.ID(extractTrackID(trackURI))
	uri := spotify.URI("spotify:track:" + string(id))
	devID := spotify.ID(deviceID)

	err := p.retry(ctx, func() error {
		return p.currentClient().PlayOpt(ctx, &spotify.PlayOptions{
			DeviceID: &devID,
			URIs:     []spotify.URI{uri},
		})
	})
	if err != nil {
		return coreerr.Provider(err, "play track %s on device %s", trackURI, deviceID)
	}
	return nil
}

// PausePlayback pauses whatever is playing on deviceID.
func (p *Provider) PausePlayback(ctx context.Context, venueID, deviceID string) error {
	devID := spotify.ID(deviceID)
	err := p.retry(ctx, func() error {
		return p.currentClient().PauseOpt(ctx, &spotify.PlayOptions{DeviceID: &devID})
	})
	if err != nil {
		return coreerr.Provider(err, "pause playback on device %s", deviceID)
	}
	return nil
}

// retry retries a provider call with linear backoff on rate-limit/server
// errors, per internal/infra/spotify/client.go's retry. A 401 is handled
// separately from the backoff errors: it refreshes the cached access token
// exactly once via refreshClient and retries immediately, without
// consuming the backoff delay, before falling back to the normal
// retryable/non-retryable decision on any further failure.
func (p *Provider) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	refreshed := false
	for i := 0; i < p.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if isUnauthorized(err) && !refreshed {
			refreshed = true
			p.refreshClient(ctx)
			continue
		}
		if !isRetryable(err) {
			return err
		}
		if i < p.maxRetries-1 {
			time.Sleep(p.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// isUnauthorized reports whether err is a 401 from the Spotify API, the
// signal that the cached access token expired early or was revoked and a
// refresh (not a plain retry) is what's needed.
func isUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "401") || strings.Contains(errStr, "Unauthorized")
}

// extractTrackID extracts the bare Spotify ID from a track URL or URI.
func extractTrackID(input string) string {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "spotify:track:") {
		return strings.TrimPrefix(input, "spotify:track:")
	}
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/track/") {
		parts := strings.Split(input, "/track/")
		if len(parts) >= 2 {
			id := strings.Split(parts[len(parts)-1], "?")[0]
			id = strings.TrimRight(id, "/")
			return id
		}
	}
	return input
}
