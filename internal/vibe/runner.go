// Package vibe runs one queue-building session: seed resolution, queue preparation, the walk,
// playback finalization, and the summary.
package vibe

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"vibechain/internal/chain"
	"vibechain/internal/core"
	"vibechain/internal/guard"
	"vibechain/internal/library"
	"vibechain/internal/mpd"
	"vibechain/internal/report"
	"vibechain/pkg/fuzzy"
)

type Dependencies struct {
	Config  *core.Config
	Service core.SimilarityService
	Index   *library.Index
	Tags    core.TagReader
	Player  core.Player
	Metrics core.Metrics
	Logger  *zap.Logger
	// NewRand defaults to a time-seeded PCG source per walk.
	NewRand func() *rand.Rand
	Now     func() time.Time
}

// Runner serializes walks: a second Run while one is in flight fails with core.ErrBusy.
type Runner struct {
	deps       Dependencies
	normalizer *fuzzy.Normalizer

	running sync.Mutex

	lastMutex sync.RWMutex
	last      *report.Summary
}

func NewRunner(deps Dependencies) *Runner {
	if deps.Metrics == nil {
		deps.Metrics = core.NopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Index == nil {
		deps.Index = library.Empty()
	}
	if deps.NewRand == nil {
		deps.NewRand = func() *rand.Rand {
			return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
		}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Runner{deps: deps, normalizer: fuzzy.NewNormalizer()}
}

// Last returns the summary of the most recent walk, if any.
func (r *Runner) Last() (report.Summary, bool) {
	r.lastMutex.RLock()
	defer r.lastMutex.RUnlock()
	if r.last == nil {
		return report.Summary{}, false
	}
	return *r.last, true
}

// Run executes one walk. A summary is returned whenever the walk started, together with the
// walk's fatal error if it had one.
func (r *Runner) Run(ctx context.Context, req Request) (report.Summary, error) {
	if !r.running.TryLock() {
		return report.Summary{}, core.ErrBusy
	}
	defer r.running.Unlock()

	if err := req.validate(); err != nil {
		return report.Summary{}, err
	}
	req = req.withDefaults(r.deps.Config)

	logger := r.deps.Logger
	started := r.deps.Now()

	player := r.deps.Player
	if req.DryRun {
		player = mpd.NewPreview(player)
	}

	seed, current, err := r.resolveSeed(ctx, req, player)
	if err != nil {
		return report.Summary{}, err
	}
	logger.Info("Seed resolved", zap.String("seed", seed.String()), zap.Bool("override", !req.Seed().IsZero()))

	state := chain.NewState(seed, r.deps.Config.Chain.AlbumGuardDepth)
	r.pushSeedAlbum(state, seed, current)

	if err := r.prepareQueue(ctx, req, player); err != nil {
		return report.Summary{}, err
	}

	baseline := 0
	files, err := player.Files(ctx)
	if err != nil {
		logger.Warn("Failed to read the current queue", zap.Error(err))
	}
	state.MarkFilesUsed(files...)
	if !req.DryRun {
		baseline = len(files)
	}

	opts := chain.OptionsFromConfig(r.deps.Config, baseline)
	opts.Target = req.TargetQueue
	opts.MaxDuration = req.MaxDuration

	recorder := report.NewRecorder()
	walker := chain.NewWalker(chain.Dependencies{
		Service:  r.deps.Service,
		Index:    r.deps.Index,
		Guard:    guard.New(req.IncludeHoliday, nil),
		Tags:     r.deps.Tags,
		Sink:     player,
		Recorder: recorder,
		Metrics:  r.deps.Metrics,
		Rand:     r.deps.NewRand(),
		Logger:   logger.Named("chain"),
		Now:      r.deps.Now,
	}, opts)

	walkErr := walker.Walk(ctx, state)

	if !req.DryRun && ctx.Err() == nil {
		r.finalize(ctx, req, player)
	}

	summary := r.summarize(ctx, req, player, seed, state, recorder, started, walkErr)
	took := r.deps.Now().Sub(started)
	r.deps.Metrics.ObserveWalk(summary.Outcome, took)

	if req.JSONOut != "" {
		if err := report.WriteJSON(req.JSONOut, summary); err != nil {
			logger.Error("Failed to write summary", zap.String("path", req.JSONOut), zap.Error(err))
		}
	}

	r.lastMutex.Lock()
	r.last = &summary
	r.lastMutex.Unlock()

	logger.Info("Walk complete",
		zap.String("outcome", summary.Outcome),
		zap.String("stop_reason", summary.StopReason),
		zap.Int("added", summary.Added),
		zap.Int("queue_length", summary.QueueLength),
		zap.Duration("took", took))

	return summary, walkErr
}

// resolveSeed prefers the request's seed and falls back to the current song.
func (r *Runner) resolveSeed(ctx context.Context, req Request, player core.Player) (core.Seed, *core.NowPlaying, error) {
	current, err := player.Current(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return core.Seed{}, nil, ctx.Err()
		}
		r.deps.Logger.Warn("Failed to read the current song", zap.Error(err))
		current = nil
	}

	if seed := req.Seed(); !seed.IsZero() {
		return seed, current, nil
	}
	if current == nil || current.Artist == "" || current.Title == "" {
		return core.Seed{}, nil, core.ErrNoSeed
	}
	return current.Seed(), current, nil
}

// pushSeedAlbum lets the same-album check see the seed's album. The current song's album is used
// when the current song is the seed; otherwise the seed's library file is looked up.
func (r *Runner) pushSeedAlbum(state *chain.State, seed core.Seed, current *core.NowPlaying) {
	seedKey := r.normalizer.TrackKey(seed.Artist, seed.Title)

	if current != nil && current.Album != "" && r.normalizer.TrackKey(current.Artist, current.Title) == seedKey {
		state.PushAlbum(r.normalizer.AlbumKey(current.Album))
		return
	}
	if r.deps.Tags == nil {
		return
	}
	if path, ok := r.deps.Index.LookupSeed(seed.Artist, seed.Title); ok {
		state.PushAlbum(r.normalizer.AlbumKey(r.deps.Tags.ReadTags(path).Album))
	}
}

func (r *Runner) prepareQueue(ctx context.Context, req Request, player core.Player) error {
	switch {
	case req.DryRun, req.Append:
		return nil
	case req.Crop:
		if err := player.Crop(ctx); err != nil {
			return fmt.Errorf("failed to crop queue: %w", err)
		}
	default:
		if err := player.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear queue: %w", err)
		}
	}
	return nil
}

func (r *Runner) finalize(ctx context.Context, req Request, player core.Player) {
	var err error
	if req.Mode == core.ModePlay {
		err = player.Play(ctx)
	} else {
		err = player.Stop(ctx)
	}
	if err != nil {
		r.deps.Logger.Warn("Failed to set playback state", zap.String("mode", req.Mode), zap.Error(err))
	}
}

func (r *Runner) summarize(
	ctx context.Context,
	req Request,
	player core.Player,
	seed core.Seed,
	state *chain.State,
	recorder *report.Recorder,
	started time.Time,
	walkErr error,
) report.Summary {
	// Reads after a cancelled walk still report what the player looks like.
	readCtx := context.WithoutCancel(ctx)

	queueLength, err := player.Len(readCtx)
	if err != nil {
		r.deps.Logger.Warn("Failed to read queue length", zap.Error(err))
	}
	playerState, err := player.State(readCtx)
	if err != nil {
		playerState = core.PlayerStateUnknown
	}

	outcome := report.OutcomeDone
	if state.Phase != chain.PhaseDone {
		outcome = report.OutcomeFailed
	}

	summary := report.Summary{
		Seed:        report.NewSeedInfo(seed),
		FinalSeed:   report.NewSeedInfo(state.Seed),
		Target:      req.TargetQueue,
		QueueLength: queueLength,
		Hops:        state.Hops,
		Misses:      state.TotalMisses,
		Outcome:     outcome,
		StopReason:  state.StopReason,
		PlayerState: playerState,
		Options: report.RunOptions{
			Mode:           req.Mode,
			Provider:       r.deps.Service.Name(),
			Append:         req.Append,
			Crop:           req.Crop,
			DryRun:         req.DryRun,
			IncludeHoliday: req.IncludeHoliday,
			SimilarLimit:   r.deps.Config.Similarity.Limit,
			MaxMisses:      r.deps.Config.Chain.MaxMisses,
			ShuffleTop:     r.deps.Config.Chain.ShuffleTop,
			ReseedWindow:   r.deps.Config.Chain.ReseedWindow,
			ReseedRandom:   r.deps.Config.Chain.ReseedRandom,
		},
		StartedAt:  started,
		DurationMS: r.deps.Now().Sub(started).Milliseconds(),
	}
	if walkErr != nil {
		summary.Error = walkErr.Error()
	}
	return recorder.Summarize(summary)
}
