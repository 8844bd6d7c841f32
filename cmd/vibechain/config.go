package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"vibechain/internal/core"
)

const envPrefix = "VIBECHAIN"

func registerFlags(cmd *cobra.Command) {
	defaults := core.DefaultConfig()
	flags := cmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "log format (json, text)")
	flags.String("log-file", "", "also write JSON logs to this file, rotated")

	flags.String("similarity-provider", defaults.Similarity.Provider, "similarity source (lastfm, spotify, openai, anthropic, ollama)")
	flags.Int("similar-limit", defaults.Similarity.Limit, "suggestions requested per hop")
	flags.Int("similarity-max-attempts", defaults.Similarity.MaxAttempts, "similarity calls per hop, retries included")
	flags.Int("similarity-backoff-ms", int(defaults.Similarity.BackoffStep/time.Millisecond), "linear backoff step between attempts")
	flags.Int("similarity-cache-ttl-secs", int(defaults.Similarity.CacheTTL/time.Second), "how long suggestions are reused (0 disables)")

	flags.String("lastfm-api-key", "", "Last.fm API key")
	flags.String("lastfm-base-url", defaults.LastFM.BaseURL, "Last.fm API endpoint")
	flags.String("lastfm-user-agent", defaults.LastFM.UserAgent, "User-Agent sent to Last.fm")
	flags.Int("lastfm-timeout-secs", int(defaults.LastFM.Timeout/time.Second), "Last.fm request timeout")

	flags.String("spotify-client-id", "", "Spotify client ID")
	flags.String("spotify-client-secret", "", "Spotify client secret")
	flags.String("spotify-market", "", "Spotify market for recommendations (e.g. US)")

	flags.String("llm-model", "", "LLM model name")
	flags.String("llm-api-key", "", "LLM API key")
	flags.String("llm-base-url", "", "LLM base URL (Ollama or compatible endpoints)")

	flags.String("mpd-host", defaults.MPD.Host, "MPD host")
	flags.Int("mpd-port", defaults.MPD.Port, "MPD port")
	flags.String("mpd-socket", "", "MPD unix socket, preferred over host and port")
	flags.String("mpd-password", "", "MPD password")

	flags.String("index-path", defaults.Library.IndexPath, "library index file (.json, .db, .sqlite)")
	flags.StringSlice("path-rewrite", nil, "index path prefix rewrite FROM=TO (repeatable)")
	flags.StringSlice("tag-root", nil, "local directory for an MPD prefix PREFIX=DIR (repeatable)")
	flags.Int("tag-cache-size", defaults.Library.TagCacheSize, "files whose tags are cached (0 disables)")

	flags.Int("target-queue", defaults.Chain.TargetQueue, "queue length to reach")
	flags.Int("max-misses", defaults.Chain.MaxMisses, "consecutive misses before giving up")
	flags.Int("reseed-window", defaults.Chain.ReseedWindow, "recent accepted tracks considered when reseeding")
	flags.Bool("reseed-random", false, "reseed from a random recent track instead of walking back")
	flags.Int("shuffle-top", defaults.Chain.ShuffleTop, "leading suggestions shuffled each hop (0 disables)")
	flags.Bool("include-holiday", false, "allow holiday tracks")
	flags.Bool("exclude-holiday", false, "reject holiday tracks (wins over --include-holiday)")
	flags.Int("album-guard-depth", defaults.Chain.AlbumGuardDepth, "recent albums a new track may not repeat")
	flags.Int("hop-delay-ms", 0, "pause between hops")
	flags.Int("max-seconds", 0, "time budget for a walk (0 is unlimited)")

	flags.String("mode", defaults.Run.Mode, "load (leave stopped) or play")
	flags.Bool("append", false, "keep the current queue and append to it")
	flags.Bool("crop", false, "keep only the playing track before building")
	flags.Bool("dry-run", false, "preview without touching the queue")
	flags.String("json-out", "", "write the walk summary to this file")
	flags.String("seed-artist", "", "seed artist override")
	flags.String("seed-title", "", "seed title override")

	flags.String("server-host", defaults.Server.Host, "HTTP server host")
	flags.Int("server-port", defaults.Server.Port, "HTTP server port")
	flags.Int("flood-limit-per-minute", defaults.Server.FloodLimitPerMinute, "walk requests per client per minute (0 disables)")

	flags.Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureSimilarity(cfg)
	configureProviders(cfg)
	configureMPD(cfg)
	configureLibrary(cfg)
	configureChain(cfg)
	configureRun(cfg)
	configureServer(cfg)

	return cfg
}

func configureSimilarity(cfg *core.Config) {
	cfg.Similarity.Provider = strings.ToLower(strings.TrimSpace(viper.GetString("similarity-provider")))
	cfg.Similarity.Limit = viper.GetInt("similar-limit")
	cfg.Similarity.MaxAttempts = viper.GetInt("similarity-max-attempts")
	cfg.Similarity.BackoffStep = time.Duration(viper.GetInt("similarity-backoff-ms")) * time.Millisecond
	cfg.Similarity.CacheTTL = time.Duration(viper.GetInt("similarity-cache-ttl-secs")) * time.Second
}

func configureProviders(cfg *core.Config) {
	cfg.LastFM.APIKey = viper.GetString("lastfm-api-key")
	cfg.LastFM.BaseURL = viper.GetString("lastfm-base-url")
	cfg.LastFM.UserAgent = viper.GetString("lastfm-user-agent")
	cfg.LastFM.Timeout = time.Duration(viper.GetInt("lastfm-timeout-secs")) * time.Second

	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	cfg.Spotify.Market = viper.GetString("spotify-market")

	cfg.LLM.Model = viper.GetString("llm-model")
	cfg.LLM.APIKey = viper.GetString("llm-api-key")
	cfg.LLM.BaseURL = viper.GetString("llm-base-url")
}

func configureMPD(cfg *core.Config) {
	cfg.MPD.Host = viper.GetString("mpd-host")
	cfg.MPD.Port = viper.GetInt("mpd-port")
	cfg.MPD.Socket = viper.GetString("mpd-socket")
	cfg.MPD.Password = viper.GetString("mpd-password")
}

func configureLibrary(cfg *core.Config) {
	cfg.Library.IndexPath = viper.GetString("index-path")
	cfg.Library.TagCacheSize = viper.GetInt("tag-cache-size")

	if rules := parsePairs(viper.GetStringSlice("path-rewrite")); len(rules) > 0 {
		cfg.Library.PathRewrites = map[string]string{}
		for _, rule := range rules {
			cfg.Library.PathRewrites[rule[0]] = rule[1]
		}
	}
	if roots := parsePairs(viper.GetStringSlice("tag-root")); len(roots) > 0 {
		cfg.Library.TagRoots = map[string][]string{}
		for _, root := range roots {
			cfg.Library.TagRoots[root[0]] = append(cfg.Library.TagRoots[root[0]], root[1])
		}
	}
}

func configureChain(cfg *core.Config) {
	cfg.Chain.TargetQueue = viper.GetInt("target-queue")
	cfg.Chain.MaxMisses = viper.GetInt("max-misses")
	cfg.Chain.ReseedWindow = viper.GetInt("reseed-window")
	cfg.Chain.ReseedRandom = viper.GetBool("reseed-random")
	cfg.Chain.ShuffleTop = viper.GetInt("shuffle-top")
	cfg.Chain.IncludeHoliday = viper.GetBool("include-holiday") && !viper.GetBool("exclude-holiday")
	cfg.Chain.AlbumGuardDepth = viper.GetInt("album-guard-depth")
	cfg.Chain.HopDelay = time.Duration(viper.GetInt("hop-delay-ms")) * time.Millisecond
	cfg.Chain.MaxDuration = time.Duration(viper.GetInt("max-seconds")) * time.Second
}

func configureRun(cfg *core.Config) {
	cfg.Run.Mode = strings.ToLower(strings.TrimSpace(viper.GetString("mode")))
	cfg.Run.Append = viper.GetBool("append")
	cfg.Run.Crop = viper.GetBool("crop")
	cfg.Run.DryRun = viper.GetBool("dry-run")
	cfg.Run.JSONOut = viper.GetString("json-out")
	cfg.Run.SeedArtist = viper.GetString("seed-artist")
	cfg.Run.SeedTitle = viper.GetString("seed-title")
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = core.DefaultConfig().Server.Host
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Server.FloodLimitPerMinute = viper.GetInt("flood-limit-per-minute")

	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = viper.GetString("log-format")
	cfg.Log.File = viper.GetString("log-file")
}

// parsePairs splits KEY=VALUE items. Environment values may separate items with commas or spaces.
func parsePairs(items []string) [][2]string {
	var pairs [][2]string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
			key, value = strings.TrimSpace(key), strings.TrimSpace(value)
			if !ok || key == "" || value == "" {
				if part != "" {
					fmt.Fprintf(os.Stderr, "Warning: ignoring malformed mapping %q, expected KEY=VALUE\n", part)
				}
				continue
			}
			pairs = append(pairs, [2]string{key, value})
		}
	}
	return pairs
}
