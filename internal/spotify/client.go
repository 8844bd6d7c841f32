// Package spotify provides a similarity service backed by Spotify recommendations.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"vibechain/internal/core"
	"vibechain/pkg/fuzzy"
)

const (
	// ProviderName identifies this service in logs and metrics.
	ProviderName = "spotify"
	// MaxRecommendations is the largest page the recommendations endpoint returns.
	MaxRecommendations = 100
	// MaxTrackSearchResults limits the candidates considered when resolving a seed.
	MaxTrackSearchResults = 5
	// UnknownArtist is the default value when artist name is not available
	UnknownArtist = "Unknown"
)

var errSeedNotFound = errors.New("seed track not found on Spotify")

type Client struct {
	config     *core.SpotifyConfig
	logger     *zap.Logger
	client     *spotify.Client
	normalizer *fuzzy.Normalizer
}

// NewClient authenticates with the client credentials flow. No user login is involved.
func NewClient(ctx context.Context, config *core.SpotifyConfig, logger *zap.Logger) *Client {
	creds := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return newClient(config, logger, spotify.New(creds.Client(ctx)))
}

// NewClientWithHTTP builds a client on a preconfigured HTTP client and API base URL.
func NewClientWithHTTP(config *core.SpotifyConfig, logger *zap.Logger, httpClient *http.Client, baseURL string) *Client {
	return newClient(config, logger, spotify.New(httpClient, spotify.WithBaseURL(baseURL)))
}

func newClient(config *core.SpotifyConfig, logger *zap.Logger, api *spotify.Client) *Client {
	return &Client{
		config:     config,
		logger:     logger,
		client:     api,
		normalizer: fuzzy.NewNormalizer(),
	}
}

func (c *Client) Name() string { return ProviderName }

// Similar resolves the seed to a Spotify track and returns recommendations seeded by it.
// A seed Spotify does not know yields an empty list, not an error.
func (c *Client) Similar(ctx context.Context, seed core.Seed, limit int) ([]core.Suggestion, error) {
	trackID, err := c.findSeedTrack(ctx, seed)
	if errors.Is(err, errSeedNotFound) {
		c.logger.Debug("Seed not found on Spotify", zap.String("seed", seed.String()))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if limit > MaxRecommendations {
		limit = MaxRecommendations
	}
	opts := []spotify.RequestOption{spotify.Limit(limit)}
	if c.config.Market != "" {
		opts = append(opts, spotify.Market(c.config.Market))
	}

	recs, err := c.client.GetRecommendations(ctx, spotify.Seeds{Tracks: []spotify.ID{trackID}}, nil, opts...)
	if err != nil {
		return nil, c.wrapError(ctx, "recommendations", err)
	}

	suggestions := make([]core.Suggestion, 0, len(recs.Tracks))
	for i := range recs.Tracks {
		track := &recs.Tracks[i]
		suggestions = append(suggestions, core.Suggestion{
			Artist: primaryArtist(track.Artists),
			Title:  track.Name,
			Rank:   len(suggestions) + 1,
		})
	}
	return suggestions, nil
}

func (c *Client) findSeedTrack(ctx context.Context, seed core.Seed) (spotify.ID, error) {
	query := fmt.Sprintf("artist:%q track:%q", seed.Artist, seed.Title)
	results, err := c.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(MaxTrackSearchResults))
	if err != nil {
		return "", c.wrapError(ctx, "search", err)
	}
	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return "", errSeedNotFound
	}

	ranked := c.rankTracks(results.Tracks.Tracks, seed)
	return ranked[0].ID, nil
}

// rankTracks orders search results by how closely they match the seed; ties keep Spotify's order.
func (c *Client) rankTracks(tracks []spotify.FullTrack, seed core.Seed) []spotify.FullTrack {
	wantArtist := c.normalizer.Normalize(seed.Artist)
	wantTitle := c.normalizer.Normalize(seed.Title)

	type scoredTrack struct {
		track spotify.FullTrack
		score int
	}

	scored := make([]scoredTrack, 0, len(tracks))
	for _, track := range tracks {
		score := c.normalizer.TitleDistance(wantTitle, c.normalizer.Normalize(track.Name))
		if c.normalizer.Normalize(primaryArtist(track.Artists)) != wantArtist {
			score += len(wantArtist) + 1
		}
		scored = append(scored, scoredTrack{track: track, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score < scored[j].score
	})

	ranked := make([]spotify.FullTrack, 0, len(scored))
	for _, item := range scored {
		ranked = append(ranked, item.track)
	}
	return ranked
}

// wrapError marks rate limiting and server failures as transient.
func (c *Client) wrapError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		transient := apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
		if transient {
			return fmt.Errorf("spotify %s failed (status %d): %w: %w", op, apiErr.Status, core.ErrTransient, err)
		}
		return fmt.Errorf("spotify %s failed (status %d): %w", op, apiErr.Status, err)
	}

	// Anything without an API status is a transport failure.
	return fmt.Errorf("spotify %s failed: %w: %w", op, core.ErrTransient, err)
}

func primaryArtist(artists []spotify.SimpleArtist) string {
	for _, artist := range artists {
		if name := strings.TrimSpace(artist.Name); name != "" {
			return name
		}
	}
	return UnknownArtist
}
