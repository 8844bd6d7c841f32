package vibe

import (
	"fmt"
	"strings"
	"time"

	"vibechain/internal/core"
)

// Request describes one walk. Zero numeric fields fall back to the configuration.
type Request struct {
	SeedArtist     string        `json:"seed_artist"`
	SeedTitle      string        `json:"seed_title"`
	Mode           string        `json:"mode"`
	Append         bool          `json:"append"`
	Crop           bool          `json:"crop"`
	DryRun         bool          `json:"dry_run"`
	IncludeHoliday bool          `json:"include_holiday"`
	TargetQueue    int           `json:"target_queue"`
	MaxDuration    time.Duration `json:"-"`
	MaxSeconds     int           `json:"max_seconds"`
	JSONOut        string        `json:"-"`
}

// RequestFromConfig builds the request the CLI runs with.
func RequestFromConfig(cfg *core.Config) Request {
	return Request{
		SeedArtist:     cfg.Run.SeedArtist,
		SeedTitle:      cfg.Run.SeedTitle,
		Mode:           cfg.Run.Mode,
		Append:         cfg.Run.Append,
		Crop:           cfg.Run.Crop,
		DryRun:         cfg.Run.DryRun,
		IncludeHoliday: cfg.Chain.IncludeHoliday,
		TargetQueue:    cfg.Chain.TargetQueue,
		MaxDuration:    cfg.Chain.MaxDuration,
		JSONOut:        cfg.Run.JSONOut,
	}
}

// Seed returns the explicit seed override, if any.
func (r Request) Seed() core.Seed {
	return core.Seed{Artist: strings.TrimSpace(r.SeedArtist), Title: strings.TrimSpace(r.SeedTitle)}
}

func (r Request) validate() error {
	seed := r.Seed()
	if (seed.Artist == "") != (seed.Title == "") {
		return fmt.Errorf("%w: provide both seed artist and seed title, or neither", core.ErrConfig)
	}
	if r.Mode != "" && r.Mode != core.ModeLoad && r.Mode != core.ModePlay {
		return fmt.Errorf("%w: mode must be %q or %q, got %q", core.ErrConfig, core.ModeLoad, core.ModePlay, r.Mode)
	}
	if r.TargetQueue < 0 || r.MaxSeconds < 0 {
		return fmt.Errorf("%w: target queue and time budget cannot be negative", core.ErrConfig)
	}
	return nil
}

func (r Request) withDefaults(cfg *core.Config) Request {
	if r.Mode == "" {
		r.Mode = core.ModeLoad
	}
	if r.TargetQueue == 0 {
		r.TargetQueue = cfg.Chain.TargetQueue
	}
	if r.MaxDuration == 0 && r.MaxSeconds > 0 {
		r.MaxDuration = time.Duration(r.MaxSeconds) * time.Second
	}
	return r
}
