// Package similar provides similarity services and the decorators that make them dependable.
package similar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"vibechain/internal/core"
)

const lastFMProvider = core.ProviderLastFM

// lastFMTransientCodes are Last.fm error codes that describe temporary conditions:
// 8 operation failed, 11 service offline, 16 temporarily unavailable, 29 rate limit exceeded.
var lastFMTransientCodes = map[int]bool{8: true, 11: true, 16: true, 29: true}

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

type LastFM struct {
	config     *core.LastFMConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewLastFM(config *core.LastFMConfig, logger *zap.Logger) *LastFM {
	return &LastFM{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

func (l *LastFM) Name() string { return lastFMProvider }

// Similar calls track.getSimilar once. Retrying is left to the caller.
func (l *LastFM) Similar(ctx context.Context, seed core.Seed, limit int) ([]core.Suggestion, error) {
	params := url.Values{}
	params.Set("method", "track.getSimilar")
	params.Set("artist", seed.Artist)
	params.Set("track", seed.Title)
	params.Set("api_key", l.config.APIKey)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("autocorrect", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.config.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if l.config.UserAgent != "" {
		req.Header.Set("User-Agent", l.config.UserAgent)
	}

	l.logger.Debug("Requesting similar tracks",
		zap.String("artist", seed.Artist),
		zap.String("title", seed.Title),
		zap.Int("limit", limit))

	resp, err := l.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ServiceError{Provider: lastFMProvider, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ServiceError{Provider: lastFMProvider, StatusCode: resp.StatusCode, Transient: true, Err: err}
	}

	return parseLastFM(resp.StatusCode, body)
}

// parseLastFM turns a track.getSimilar response into suggestions. The "track" member may be an
// array or a single object, and each "artist" may be a plain string or an object with a name.
func parseLastFM(status int, body []byte) ([]core.Suggestion, error) {
	if !gjson.ValidBytes(body) {
		if status != http.StatusOK {
			return nil, &ServiceError{
				Provider:   lastFMProvider,
				StatusCode: status,
				Message:    http.StatusText(status),
				Transient:  transientStatus(status),
			}
		}
		return nil, &ServiceError{Provider: lastFMProvider, StatusCode: status, Message: "response is not valid JSON"}
	}

	doc := gjson.ParseBytes(body)
	if errCode := doc.Get("error"); errCode.Exists() {
		code := int(errCode.Int())
		message := doc.Get("message").String()
		if message == "" {
			message = "unknown error"
		}
		return nil, &ServiceError{
			Provider:   lastFMProvider,
			StatusCode: status,
			Code:       code,
			Message:    message,
			Transient:  lastFMTransientCodes[code],
		}
	}
	if status != http.StatusOK {
		return nil, &ServiceError{
			Provider:   lastFMProvider,
			StatusCode: status,
			Message:    http.StatusText(status),
			Transient:  transientStatus(status),
		}
	}

	var items []gjson.Result
	tracks := doc.Get("similartracks.track")
	switch {
	case tracks.IsArray():
		items = tracks.Array()
	case tracks.IsObject():
		items = []gjson.Result{tracks}
	}

	suggestions := make([]core.Suggestion, 0, len(items))
	for _, item := range items {
		artist := item.Get("artist")
		artistName := artist.String()
		if artist.IsObject() {
			artistName = artist.Get("name").String()
		}

		suggestions = append(suggestions, core.Suggestion{
			Artist: strings.TrimSpace(artistName),
			Title:  strings.TrimSpace(item.Get("name").String()),
			ID:     strings.ToLower(strings.TrimSpace(item.Get("mbid").String())),
			Rank:   len(suggestions) + 1,
		})
	}
	return suggestions, nil
}
