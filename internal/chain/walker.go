// Package chain walks a similarity graph hop by hop, queueing one resolved library file per hop.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"vibechain/internal/core"
	"vibechain/internal/guard"
	"vibechain/internal/library"
	"vibechain/internal/report"
	"vibechain/internal/retry"
	"vibechain/pkg/fuzzy"
)

const (
	hopAccepted     = "accepted"
	hopMissed       = "missed"
	hopSinkNotFound = "sink_not_found"

	rejectUnresolved = "unresolved"
	rejectIncomplete = "incomplete"
)

// Resolver maps a suggestion onto a library file not present in used.
type Resolver interface {
	Resolve(s core.Suggestion, used library.PathSet) (core.Resolution, bool)
}

type Options struct {
	// Target is the queue length that ends the walk.
	Target int
	// Baseline is the queue length before the walk; zero for previews.
	Baseline     int
	SimilarLimit int
	MaxMisses    int
	// ReseedWindow limits reseeding to the most recent accepted seeds; zero or less means all.
	ReseedWindow int
	ReseedRandom bool
	ShuffleTop   int
	HopDelay     time.Duration
	MaxDuration  time.Duration
}

// OptionsFromConfig maps the chain section of the configuration onto walk options.
func OptionsFromConfig(cfg *core.Config, baseline int) Options {
	return Options{
		Target:       cfg.Chain.TargetQueue,
		Baseline:     baseline,
		SimilarLimit: cfg.Similarity.Limit,
		MaxMisses:    cfg.Chain.MaxMisses,
		ReseedWindow: cfg.Chain.ReseedWindow,
		ReseedRandom: cfg.Chain.ReseedRandom,
		ShuffleTop:   cfg.Chain.ShuffleTop,
		HopDelay:     cfg.Chain.HopDelay,
		MaxDuration:  cfg.Chain.MaxDuration,
	}
}

type Dependencies struct {
	Service  core.SimilarityService
	Index    Resolver
	Guard    *guard.Guard
	Tags     core.TagReader
	Sink     core.QueueSink
	Recorder *report.Recorder
	Metrics  core.Metrics
	Rand     *rand.Rand
	Logger   *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Walker struct {
	deps       Dependencies
	opts       Options
	normalizer *fuzzy.Normalizer
}

func NewWalker(deps Dependencies, opts Options) *Walker {
	if deps.Metrics == nil {
		deps.Metrics = core.NopMetrics{}
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Recorder == nil {
		deps.Recorder = report.NewRecorder()
	}
	if deps.Guard == nil {
		deps.Guard = guard.New(false, nil)
	}
	if deps.Tags == nil {
		deps.Tags = noTags{}
	}
	if opts.MaxMisses <= 0 {
		opts.MaxMisses = core.DefaultMaxMisses
	}
	if opts.SimilarLimit <= 0 {
		opts.SimilarLimit = core.DefaultSimilarLimit
	}
	return &Walker{deps: deps, opts: opts, normalizer: fuzzy.NewNormalizer()}
}

type noTags struct{}

func (noTags) ReadTags(string) core.Tags { return core.Tags{} }

type selection struct {
	candidate guard.Candidate
	method    core.Method
}

// Walk runs hops until the state reaches DONE or FAILED. The returned error is non-nil only
// for fatal conditions: a failed similarity request, a hard sink error or cancellation.
func (w *Walker) Walk(ctx context.Context, state *State) error {
	logger := w.deps.Logger
	started := w.deps.Now()
	state.MarkTrackUsed(w.normalizer.TrackKey(state.Seed.Artist, state.Seed.Title))

	logger.Info("Starting walk",
		zap.String("seed", state.Seed.String()),
		zap.Int("baseline", w.opts.Baseline),
		zap.Int("target", w.opts.Target))

	for {
		if reason, done := w.finished(state, started); done {
			state.Phase = PhaseDone
			state.StopReason = reason
			logger.Info("Walk finished", zap.String("reason", reason), zap.Int("hops", state.Hops))
			return nil
		}
		if err := ctx.Err(); err != nil {
			return w.fail(state, StopCancelled, err)
		}

		state.Hops++
		state.Phase = PhaseFetching
		suggestions, err := w.deps.Service.Similar(ctx, state.Seed, w.opts.SimilarLimit)
		if err != nil {
			if ctx.Err() != nil {
				return w.fail(state, StopCancelled, ctx.Err())
			}
			return w.fail(state, StopSimilarityFailed,
				fmt.Errorf("similar tracks for %q: %w", state.Seed.String(), err))
		}
		suggestions = w.shuffleTop(suggestions)

		state.Phase = PhaseSelecting
		chosen, ok := w.selectCandidate(state, suggestions)
		if !ok {
			logger.Debug("No usable suggestion",
				zap.Int("hop", state.Hops),
				zap.Int("suggestions", len(suggestions)))
			w.miss(state, hopMissed)
			if state.Phase == PhaseFailed {
				return nil
			}
			w.reseed(state)
			continue
		}

		path := chosen.candidate.Path
		if err := w.deps.Sink.Append(ctx, path); err != nil {
			if !errors.Is(err, core.ErrNotFound) {
				return w.fail(state, StopSinkFailed, fmt.Errorf("queue %s: %w", path, err))
			}
			logger.Warn("Queue rejected file, marking it bad",
				zap.Int("hop", state.Hops),
				zap.String("file", path),
				zap.Error(err))
			state.MarkBad(path)
			w.miss(state, hopSinkNotFound)
			if state.Phase == PhaseFailed {
				return nil
			}
			continue
		}

		w.accept(state, chosen)

		if w.opts.HopDelay > 0 {
			if err := retry.Sleep(ctx, w.opts.HopDelay); err != nil {
				return w.fail(state, StopCancelled, err)
			}
		}
	}
}

func (w *Walker) finished(state *State, started time.Time) (string, bool) {
	if w.opts.Baseline+state.Accepted >= w.opts.Target {
		return StopTargetReached, true
	}
	if w.opts.MaxDuration > 0 && w.deps.Now().Sub(started) >= w.opts.MaxDuration {
		return StopTimeBudget, true
	}
	return "", false
}

func (w *Walker) fail(state *State, reason string, err error) error {
	state.Phase = PhaseFailed
	state.StopReason = reason
	w.deps.Logger.Error("Walk failed",
		zap.String("reason", reason),
		zap.Int("hops", state.Hops),
		zap.Error(err))
	return err
}

// shuffleTop permutes only the first ShuffleTop entries of a copy of suggestions.
func (w *Walker) shuffleTop(suggestions []core.Suggestion) []core.Suggestion {
	out := append([]core.Suggestion(nil), suggestions...)
	n := min(w.opts.ShuffleTop, len(out))
	if n > 1 {
		w.deps.Rand.Shuffle(n, func(i, j int) {
			out[i], out[j] = out[j], out[i]
		})
	}
	return out
}

// selectCandidate returns the first suggestion that resolves and passes every guard.
func (w *Walker) selectCandidate(state *State, suggestions []core.Suggestion) (selection, bool) {
	for _, s := range suggestions {
		s.Artist = strings.TrimSpace(s.Artist)
		s.Title = strings.TrimSpace(s.Title)
		if s.Artist == "" || s.Title == "" {
			w.deps.Metrics.ObserveRejection(rejectIncomplete)
			continue
		}

		key := w.normalizer.TrackKey(s.Artist, s.Title)
		if reason := w.deps.Guard.CheckSuggestion(s, key, state); reason != guard.Accept {
			w.deps.Metrics.ObserveRejection(string(reason))
			continue
		}

		res, ok := w.deps.Index.Resolve(s, state)
		if !ok {
			w.deps.Metrics.ObserveRejection(rejectUnresolved)
			continue
		}

		tags := w.deps.Tags.ReadTags(res.Path)
		c := guard.Candidate{
			Suggestion: s,
			TrackKey:   key,
			Path:       res.Path,
			Tags:       tags,
			AlbumKey:   w.normalizer.AlbumKey(tags.Album),
		}
		if reason := w.deps.Guard.CheckCandidate(c, state); reason != guard.Accept {
			w.deps.Logger.Debug("Candidate rejected",
				zap.String("file", res.Path),
				zap.String("reason", string(reason)))
			w.deps.Metrics.ObserveRejection(string(reason))
			continue
		}

		return selection{candidate: c, method: res.Method}, true
	}
	return selection{}, false
}

func (w *Walker) accept(state *State, chosen selection) {
	c := chosen.candidate
	state.Phase = PhaseAccepted
	state.Accepted++
	w.deps.Metrics.ObserveResolution(chosen.method)

	w.deps.Recorder.Record(report.Entry{
		Hop:             state.Hops,
		File:            c.Path,
		Artist:          firstNonEmpty(c.Tags.Artist, c.Suggestion.Artist),
		Title:           firstNonEmpty(c.Tags.Title, c.Suggestion.Title),
		Album:           c.Tags.Album,
		Genre:           c.Tags.Genre,
		Method:          chosen.method,
		SuggestedArtist: c.Suggestion.Artist,
		SuggestedTitle:  c.Suggestion.Title,
	})

	state.MarkFilesUsed(c.Path)
	state.MarkTrackUsed(c.TrackKey)
	state.PushAlbum(c.AlbumKey)
	state.Misses = 0
	state.ReseedCursor = 0

	next := c.Suggestion.Seed()
	if c.Tags.Artist != "" && c.Tags.Title != "" {
		next = core.Seed{Artist: c.Tags.Artist, Title: c.Tags.Title}
	}
	state.MarkTrackUsed(w.normalizer.TrackKey(next.Artist, next.Title))
	state.Seed = next
	state.History = append(state.History, next)

	w.deps.Metrics.ObserveHop(hopAccepted)
	w.deps.Logger.Info("Added track",
		zap.Int("hop", state.Hops),
		zap.String("suggestion", c.Suggestion.Seed().String()),
		zap.String("method", string(chosen.method)),
		zap.String("file", c.Path),
		zap.Int("accepted", state.Accepted))
}

// miss counts a hop without an addition and fails the walk once the limit is reached.
func (w *Walker) miss(state *State, outcome string) {
	state.Phase = PhaseMissed
	state.Misses++
	state.TotalMisses++
	w.deps.Metrics.ObserveHop(outcome)

	if state.Misses >= w.opts.MaxMisses {
		state.Phase = PhaseFailed
		state.StopReason = StopMaxMisses
		w.deps.Logger.Warn("Too many consecutive misses",
			zap.Int("misses", state.Misses),
			zap.Int("hops", state.Hops))
	}
}

// reseed moves the seed back to a recently accepted track. With an empty window the seed stays.
func (w *Walker) reseed(state *State) {
	window := w.reseedWindow(state)
	if len(window) == 0 {
		w.deps.Logger.Info("No reseed candidates",
			zap.Int("hop", state.Hops),
			zap.Int("misses", state.Misses))
		return
	}

	state.Phase = PhaseReseeding
	var next core.Seed
	if w.opts.ReseedRandom {
		next = window[w.deps.Rand.IntN(len(window))]
	} else {
		back := min(state.ReseedCursor, len(window)-1)
		next = window[len(window)-1-back]
		state.ReseedCursor++
		if state.ReseedCursor >= len(window) {
			state.ReseedCursor = 0
		}
	}

	w.deps.Logger.Info("Reseeding",
		zap.Int("hop", state.Hops),
		zap.Int("misses", state.Misses),
		zap.String("seed", next.String()))
	state.Seed = next
}

func (w *Walker) reseedWindow(state *State) []core.Seed {
	history := state.History
	if w.opts.ReseedWindow > 0 && len(history) > w.opts.ReseedWindow {
		history = history[len(history)-w.opts.ReseedWindow:]
	}

	window := make([]core.Seed, 0, len(history))
	for _, s := range history {
		if s == state.Seed {
			continue
		}
		if w.deps.Guard.IsSeasonal(s) {
			continue
		}
		window = append(window, s)
	}
	return window
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
