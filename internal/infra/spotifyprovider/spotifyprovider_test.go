package spotifyprovider

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
)

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestNew_SucceedsWithCredentials(t *testing.T) {
	p, err := New(context.Background(), Config{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURI:  "https://example.com/callback",
		RefreshToken: "refresh",
	})
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestExtractTrackID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare id", "abc123", "abc123"},
		{"uri", "spotify:track:abc123", "abc123"},
		{"url", "https://open.spotify.com/track/abc123", "abc123"},
		{"url with query", "https://open.spotify.com/track/abc123?si=xyz", "abc123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTrackID(tt.input))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, isRetryable(nil))
	assert.True(t, isRetryable(errors.New("rate limit exceeded")))
	assert.True(t, isRetryable(errors.New("received 429")))
	assert.True(t, isRetryable(errors.New("received 503")))
	assert.False(t, isRetryable(errors.New("invalid token")))
}

func TestProvider_Retry_GivesUpAfterMaxRetries(t *testing.T) {
	p := &Provider{maxRetries: 2, retryDelay: 0}
	calls := 0
	err := p.retry(context.Background(), func() error {
		calls++
		return errors.New("429 too many requests")
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestProvider_Retry_StopsOnNonRetryableError(t *testing.T) {
	p := &Provider{maxRetries: 3, retryDelay: 0}
	calls := 0
	err := p.retry(context.Background(), func() error {
		calls++
		return errors.New("invalid request")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestProvider_Retry_SucceedsWithoutRetrying(t *testing.T) {
	p := &Provider{maxRetries: 3, retryDelay: 0}
	calls := 0
	err := p.retry(context.Background(), func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsUnauthorized(t *testing.T) {
	assert.False(t, isUnauthorized(nil))
	assert.True(t, isUnauthorized(errors.New("received 401 Unauthorized")))
	assert.True(t, isUnauthorized(errors.New("Unauthorized")))
	assert.False(t, isUnauthorized(errors.New("received 429")))
}

func TestProvider_Retry_RefreshesTokenOnceOn401(t *testing.T) {
	auth := spotifyauth.New(
		spotifyauth.WithClientID("id"),
		spotifyauth.WithClientSecret("secret"),
	)
	p := &Provider{auth: auth, refreshToken: "refresh", maxRetries: 3, retryDelay: 0}
	clientBefore := p.currentClient()

	calls := 0
	err := p.retry(context.Background(), func() error {
		calls++
		if calls == 1 {
			return errors.New("401 Unauthorized")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NotSame(t, clientBefore, p.currentClient())
}

func TestProvider_Retry_OnlyRefreshesOnceAcrossRepeated401s(t *testing.T) {
	auth := spotifyauth.New(
		spotifyauth.WithClientID("id"),
		spotifyauth.WithClientSecret("secret"),
	)
	p := &Provider{auth: auth, refreshToken: "refresh", maxRetries: 3, retryDelay: 0}

	calls := 0
	err := p.retry(context.Background(), func() error {
		calls++
		return errors.New("401 Unauthorized")
	})

	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}
