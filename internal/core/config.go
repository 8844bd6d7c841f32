package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultSimilarLimit is how many suggestions each hop requests.
	DefaultSimilarLimit = 150
	// DefaultTargetQueue is the queue length a walk tries to reach.
	DefaultTargetQueue = 50
	// DefaultMaxMisses is how many consecutive misses end a walk.
	DefaultMaxMisses = 10
	// DefaultReseedWindow is how many recent accepted seeds a reseed considers.
	DefaultReseedWindow = 12
	// DefaultShuffleTop is how many leading suggestions get shuffled each hop.
	DefaultShuffleTop = 10
	// DefaultAlbumGuardDepth is how many recently accepted albums the same-album guard remembers.
	DefaultAlbumGuardDepth = 1

	// DefaultSimilarityMaxAttempts caps similarity calls per hop, retries included.
	DefaultSimilarityMaxAttempts = 4
	// DefaultSimilarityBackoffStep is the linear backoff unit between attempts.
	DefaultSimilarityBackoffStep = 1500 * time.Millisecond
	// DefaultSimilarityCacheTTL is how long suggestions for one seed are reused.
	DefaultSimilarityCacheTTL = 10 * time.Minute

	// DefaultMPDPort is MPD's standard TCP port.
	DefaultMPDPort = 6600
	// DefaultServerPort is the HTTP port used by serve mode.
	DefaultServerPort = 8080
	// DefaultTagCacheSize bounds the number of files whose tags are cached.
	DefaultTagCacheSize = 2048
	// DefaultFloodLimitPerMinute bounds API walk requests per client.
	DefaultFloodLimitPerMinute = 6

	// ModeLoad builds the queue and leaves playback stopped.
	ModeLoad = "load"
	// ModePlay builds the queue and starts playback.
	ModePlay = "play"

	// ProviderLastFM selects the Last.fm track.getSimilar service.
	ProviderLastFM = "lastfm"
	// ProviderSpotify selects Spotify recommendations.
	ProviderSpotify = "spotify"
	// ProviderOpenAI selects an OpenAI chat model as the similarity source.
	ProviderOpenAI = "openai"
	// ProviderAnthropic selects an Anthropic model as the similarity source.
	ProviderAnthropic = "anthropic"
	// ProviderOllama selects a local Ollama model as the similarity source.
	ProviderOllama = "ollama"
)

type Config struct {
	Similarity SimilarityConfig
	LastFM     LastFMConfig
	Spotify    SpotifyConfig
	LLM        LLMConfig
	MPD        MPDConfig
	Library    LibraryConfig
	Chain      ChainConfig
	Run        RunConfig
	Server     ServerConfig
	Log        LogConfig
}

type SimilarityConfig struct {
	Provider    string
	Limit       int
	MaxAttempts int
	BackoffStep time.Duration
	CacheTTL    time.Duration
}

type LastFMConfig struct {
	APIKey    string
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	Market       string
}

type LLMConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

type MPDConfig struct {
	Host     string
	Port     int
	Socket   string
	Password string
}

// Address returns the network and address to dial, preferring a unix socket when set.
func (c MPDConfig) Address() (network, addr string) {
	if c.Socket != "" {
		return "unix", c.Socket
	}
	return "tcp", fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LibraryConfig struct {
	IndexPath string
	// PathRewrites maps absolute path prefixes in the index to MPD URI prefixes.
	PathRewrites map[string]string
	// TagRoots maps an MPD URI prefix to local directories where the files can be read.
	TagRoots     map[string][]string
	TagCacheSize int
}

type ChainConfig struct {
	TargetQueue     int
	MaxMisses       int
	ReseedWindow    int
	ReseedRandom    bool
	ShuffleTop      int
	IncludeHoliday  bool
	AlbumGuardDepth int
	HopDelay        time.Duration
	MaxDuration     time.Duration
}

type RunConfig struct {
	Mode       string
	Append     bool
	Crop       bool
	DryRun     bool
	JSONOut    string
	SeedArtist string
	SeedTitle  string
}

type ServerConfig struct {
	Host                string
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	FloodLimitPerMinute int
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

func DefaultConfig() *Config {
	return &Config{
		Similarity: SimilarityConfig{
			Provider:    ProviderLastFM,
			Limit:       DefaultSimilarLimit,
			MaxAttempts: DefaultSimilarityMaxAttempts,
			BackoffStep: DefaultSimilarityBackoffStep,
			CacheTTL:    DefaultSimilarityCacheTTL,
		},
		LastFM: LastFMConfig{
			BaseURL:   "https://ws.audioscrobbler.com/2.0/",
			UserAgent: "vibechain/1.0",
			Timeout:   20 * time.Second,
		},
		MPD: MPDConfig{
			Host: "localhost",
			Port: DefaultMPDPort,
		},
		Library: LibraryConfig{
			IndexPath: "./library_index.json",
			PathRewrites: map[string]string{
				"/media/":                 "USB/",
				"/var/lib/mpd/music/USB/": "USB/",
			},
			TagRoots: map[string][]string{
				"USB/": {"/media/", "/var/lib/mpd/music/USB/"},
			},
			TagCacheSize: DefaultTagCacheSize,
		},
		Chain: ChainConfig{
			TargetQueue:     DefaultTargetQueue,
			MaxMisses:       DefaultMaxMisses,
			ReseedWindow:    DefaultReseedWindow,
			ShuffleTop:      DefaultShuffleTop,
			AlbumGuardDepth: DefaultAlbumGuardDepth,
		},
		Run: RunConfig{
			Mode: ModeLoad,
		},
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                DefaultServerPort,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Minute,
			FloodLimitPerMinute: DefaultFloodLimitPerMinute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks everything that must hold before any external call is made.
func (c *Config) Validate() error {
	if err := c.validateSimilarity(); err != nil {
		return err
	}
	if err := c.validateChain(); err != nil {
		return err
	}
	return c.validateRun()
}

func (c *Config) validateSimilarity() error {
	if c.Similarity.Limit <= 0 {
		return fmt.Errorf("%w: similar limit must be positive, got %d", ErrConfig, c.Similarity.Limit)
	}
	if c.Similarity.MaxAttempts <= 0 {
		return fmt.Errorf("%w: similarity max attempts must be positive, got %d", ErrConfig, c.Similarity.MaxAttempts)
	}

	switch c.Similarity.Provider {
	case ProviderLastFM:
		if c.LastFM.APIKey == "" {
			return fmt.Errorf("%w: Last.fm API key is required", ErrConfig)
		}
	case ProviderSpotify:
		if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
			return fmt.Errorf("%w: Spotify client ID and secret are required", ErrConfig)
		}
	case ProviderOpenAI, ProviderAnthropic:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("%w: LLM API key is required for provider %s", ErrConfig, c.Similarity.Provider)
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("%w: unsupported similarity provider: %s", ErrConfig, c.Similarity.Provider)
	}
	return nil
}

func (c *Config) validateChain() error {
	if c.Chain.TargetQueue <= 0 {
		return fmt.Errorf("%w: target queue must be positive, got %d", ErrConfig, c.Chain.TargetQueue)
	}
	if c.Chain.MaxMisses <= 0 {
		return fmt.Errorf("%w: max misses must be positive, got %d", ErrConfig, c.Chain.MaxMisses)
	}
	if c.Chain.ShuffleTop < 0 {
		return fmt.Errorf("%w: shuffle top cannot be negative, got %d", ErrConfig, c.Chain.ShuffleTop)
	}
	if c.Chain.AlbumGuardDepth < 0 {
		return fmt.Errorf("%w: album guard depth cannot be negative, got %d", ErrConfig, c.Chain.AlbumGuardDepth)
	}
	return nil
}

func (c *Config) validateRun() error {
	if c.Run.Mode != ModeLoad && c.Run.Mode != ModePlay {
		return fmt.Errorf("%w: mode must be %q or %q, got %q", ErrConfig, ModeLoad, ModePlay, c.Run.Mode)
	}
	artist := strings.TrimSpace(c.Run.SeedArtist)
	title := strings.TrimSpace(c.Run.SeedTitle)
	if (artist == "") != (title == "") {
		return fmt.Errorf("%w: provide both seed artist and seed title, or neither", ErrConfig)
	}
	return nil
}
