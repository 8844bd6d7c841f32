package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"vibechain/internal/core"
)

type fakeCompleter struct {
	content    string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.lastSystem = system
	f.lastUser = user
	return f.content, f.err
}

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		limit    int
		expected []core.Suggestion
		wantErr  bool
	}{
		{
			name:    "bare json",
			content: `{"tracks":[{"artist":"Portishead","title":"Roads"},{"artist":" Tricky ","title":"Overcome "}]}`,
			limit:   10,
			expected: []core.Suggestion{
				{Artist: "Portishead", Title: "Roads", Rank: 1},
				{Artist: "Tricky", Title: "Overcome", Rank: 2},
			},
		},
		{
			name:     "fenced json",
			content:  "```json\n{\"tracks\":[{\"artist\":\"Portishead\",\"title\":\"Roads\"}]}\n```",
			limit:    10,
			expected: []core.Suggestion{{Artist: "Portishead", Title: "Roads", Rank: 1}},
		},
		{
			name:     "chatty preamble",
			content:  "Sure! Here you go:\n{\"tracks\":[{\"artist\":\"Portishead\",\"title\":\"Roads\"}]}\nEnjoy.",
			limit:    10,
			expected: []core.Suggestion{{Artist: "Portishead", Title: "Roads", Rank: 1}},
		},
		{
			name:     "limit applied",
			content:  `{"tracks":[{"artist":"A","title":"1"},{"artist":"B","title":"2"}]}`,
			limit:    1,
			expected: []core.Suggestion{{Artist: "A", Title: "1", Rank: 1}},
		},
		{
			name:     "empty list",
			content:  `{"tracks":[]}`,
			limit:    10,
			expected: []core.Suggestion{},
		},
		{
			name:    "not json",
			content: "I cannot help with that",
			limit:   10,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSuggestions(tt.content, tt.limit)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected %d suggestions, got %d", len(tt.expected), len(got))
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Suggestion %d = %+v, want %+v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestProvider_SimilarBuildsPromptFromSeed(t *testing.T) {
	completer := &fakeCompleter{content: `{"tracks":[{"artist":"Portishead","title":"Roads"}]}`}
	provider := NewProviderWithCompleter(core.ProviderOpenAI, completer, zap.NewNop())

	suggestions, err := provider.Similar(context.Background(), core.Seed{Artist: "Massive Attack", Title: "Teardrop"}, 150)
	if err != nil {
		t.Fatalf("Similar failed: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("Expected 1 suggestion, got %d", len(suggestions))
	}
	if !strings.Contains(completer.lastUser, `"Teardrop" by "Massive Attack"`) {
		t.Errorf("Prompt does not mention the seed: %s", completer.lastUser)
	}
	if !strings.Contains(completer.lastUser, "Suggest 50 similar tracks") {
		t.Errorf("Expected the request to be capped at 50 tracks: %s", completer.lastUser)
	}
	if provider.Name() != core.ProviderOpenAI {
		t.Errorf("Expected name %s, got %s", core.ProviderOpenAI, provider.Name())
	}
}

func TestProvider_PassesCompleterErrorsThrough(t *testing.T) {
	boom := errors.New("boom")
	provider := NewProviderWithCompleter(core.ProviderOllama, &fakeCompleter{err: boom}, zap.NewNop())

	if _, err := provider.Similar(context.Background(), core.Seed{Artist: "A", Title: "B"}, 5); !errors.Is(err, boom) {
		t.Errorf("Expected completer error, got %v", err)
	}
}

func TestNewProvider_RequiresKnownProviderAndKey(t *testing.T) {
	if _, err := NewProvider("bard", &core.LLMConfig{}, zap.NewNop()); err == nil {
		t.Error("Expected error for unknown provider")
	}
	if _, err := NewProvider(core.ProviderOpenAI, &core.LLMConfig{}, zap.NewNop()); err == nil {
		t.Error("Expected error for missing OpenAI key")
	}
	if _, err := NewProvider(core.ProviderOllama, &core.LLMConfig{}, zap.NewNop()); err != nil {
		t.Errorf("Ollama needs no key: %v", err)
	}
}

func TestOllamaClient_Complete(t *testing.T) {
	var received OllamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response": "{\"tracks\": []}", "done": true}`))
	}))
	defer server.Close()

	client, err := NewOllamaClient(&core.LLMConfig{BaseURL: server.URL + "/"}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewOllamaClient failed: %v", err)
	}

	content, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if content != `{"tracks": []}` {
		t.Errorf("Unexpected content: %s", content)
	}
	if received.Model != defaultOllamaModel || received.System != "system" || received.Prompt != "user" || received.Stream {
		t.Errorf("Unexpected request: %+v", received)
	}
}

func TestOllamaClient_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusServiceUnavailable, true},
		{http.StatusTooManyRequests, true},
		{http.StatusNotFound, false},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))

		client, _ := NewOllamaClient(&core.LLMConfig{BaseURL: server.URL}, zap.NewNop())
		_, err := client.Complete(context.Background(), "s", "u")
		server.Close()

		if err == nil {
			t.Fatalf("Status %d: expected an error", tt.status)
		}
		if got := errors.Is(err, core.ErrTransient); got != tt.transient {
			t.Errorf("Status %d: transient = %v, want %v", tt.status, got, tt.transient)
		}
	}
}
