// Package llm asks a language model for tracks similar to a seed.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"vibechain/internal/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxPromptSuggestions caps how many tracks a model is asked for in one call.
const maxPromptSuggestions = 50

// Completer sends one system and user prompt pair and returns the raw model output.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Provider adapts a Completer to core.SimilarityService.
type Provider struct {
	name      string
	completer Completer
	logger    *zap.Logger
}

type suggestionResponse struct {
	Tracks []struct {
		Artist string `json:"artist"`
		Title  string `json:"title"`
	} `json:"tracks"`
}

func NewProvider(name string, config *core.LLMConfig, logger *zap.Logger) (*Provider, error) {
	var completer Completer
	var err error

	switch name {
	case core.ProviderOpenAI:
		completer, err = NewOpenAIClient(config, logger)
	case core.ProviderAnthropic:
		completer, err = NewAnthropicClient(config, logger)
	case core.ProviderOllama:
		completer, err = NewOllamaClient(config, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", name)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", name, err)
	}
	return NewProviderWithCompleter(name, completer, logger), nil
}

func NewProviderWithCompleter(name string, completer Completer, logger *zap.Logger) *Provider {
	return &Provider{name: name, completer: completer, logger: logger}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Similar(ctx context.Context, seed core.Seed, limit int) ([]core.Suggestion, error) {
	want := min(limit, maxPromptSuggestions)
	content, err := p.completer.Complete(ctx, systemPrompt, buildUserPrompt(seed, want))
	if err != nil {
		return nil, err
	}

	suggestions, err := parseSuggestions(content, limit)
	if err != nil {
		p.logger.Error("Failed to parse model response",
			zap.String("provider", p.name),
			zap.Error(err),
			zap.String("content", content))
		return nil, err
	}

	p.logger.Debug("Model suggestions received",
		zap.String("provider", p.name),
		zap.String("seed", seed.String()),
		zap.Int("count", len(suggestions)))
	return suggestions, nil
}

const systemPrompt = `You are a music recommender. Given a seed track, suggest real, existing tracks that sound similar.

Return JSON in this exact format:
{
  "tracks": [
    {"artist": "Artist Name", "title": "Song Title"}
  ]
}

Rules:
- Order tracks from most to least similar
- Only include songs that actually exist
- Do not include the seed track itself
- Respond with valid JSON only`

func buildUserPrompt(seed core.Seed, count int) string {
	return fmt.Sprintf("Seed track: %q by %q\nSuggest %d similar tracks.", seed.Title, seed.Artist, count)
}

// parseSuggestions accepts bare JSON or JSON wrapped in a markdown code fence.
func parseSuggestions(content string, limit int) ([]core.Suggestion, error) {
	payload := stripCodeFence(content)
	if start, end := strings.Index(payload, "{"), strings.LastIndex(payload, "}"); start >= 0 && end > start {
		payload = payload[start : end+1]
	}

	var response suggestionResponse
	if err := json.Unmarshal([]byte(payload), &response); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	suggestions := make([]core.Suggestion, 0, len(response.Tracks))
	for _, track := range response.Tracks {
		if limit > 0 && len(suggestions) >= limit {
			break
		}
		suggestions = append(suggestions, core.Suggestion{
			Artist: strings.TrimSpace(track.Artist),
			Title:  strings.TrimSpace(track.Title),
			Rank:   len(suggestions) + 1,
		})
	}
	return suggestions, nil
}

func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if newline := strings.IndexByte(content, '\n'); newline >= 0 {
		content = content[newline+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(content), "```"))
}

// apiFailure marks rate limits and server errors as transient.
func apiFailure(provider string, status int, err error) error {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return fmt.Errorf("%s API call failed: %w: %w", provider, core.ErrTransient, err)
	}
	return fmt.Errorf("%s API call failed: %w", provider, err)
}

func transportFailure(ctx context.Context, provider string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%s API call failed: %w: %w", provider, core.ErrTransient, err)
}
