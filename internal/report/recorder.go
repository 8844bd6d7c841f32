// Package report accumulates accepted tracks and renders the summary of a walk.
package report

import (
	"sync"
	"time"

	"vibechain/internal/core"
)

const (
	OutcomeDone   = "DONE"
	OutcomeFailed = "FAILED"
)

// Entry is one accepted track. Artist and title come from the file's tags when readable,
// otherwise from the suggestion that produced it.
type Entry struct {
	Hop             int         `json:"hop"`
	File            string      `json:"file"`
	Artist          string      `json:"artist"`
	Title           string      `json:"title"`
	Album           string      `json:"album"`
	Genre           string      `json:"genre"`
	Method          core.Method `json:"method"`
	SuggestedArtist string      `json:"rec_artist"`
	SuggestedTitle  string      `json:"rec_title"`
}

type SeedInfo struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

func NewSeedInfo(seed core.Seed) SeedInfo {
	return SeedInfo{Artist: seed.Artist, Title: seed.Title}
}

// RunOptions echoes the options a walk ran with.
type RunOptions struct {
	Mode           string `json:"mode"`
	Provider       string `json:"provider"`
	Append         bool   `json:"append"`
	Crop           bool   `json:"crop"`
	DryRun         bool   `json:"dry_run"`
	IncludeHoliday bool   `json:"include_holiday"`
	SimilarLimit   int    `json:"similar_limit"`
	MaxMisses      int    `json:"max_misses"`
	ShuffleTop     int    `json:"shuffle_top"`
	ReseedWindow   int    `json:"reseed_window"`
	ReseedRandom   bool   `json:"reseed_random"`
}

type Summary struct {
	Seed        SeedInfo   `json:"seed"`
	FinalSeed   SeedInfo   `json:"final_seed"`
	Target      int        `json:"target_queue"`
	QueueLength int        `json:"final_queue_length"`
	Added       int        `json:"added"`
	Hops        int        `json:"hops"`
	Misses      int        `json:"misses"`
	Outcome     string     `json:"outcome"`
	StopReason  string     `json:"stop_reason"`
	Error       string     `json:"error,omitempty"`
	PlayerState string     `json:"player_state"`
	Options     RunOptions `json:"options"`
	StartedAt   time.Time  `json:"started_at"`
	DurationMS  int64      `json:"duration_ms"`
	Tracks      []Entry    `json:"tracks"`
}

// Recorder is safe for concurrent use so the HTTP layer can read progress while a walk runs.
type Recorder struct {
	entries []Entry
	mutex   sync.RWMutex
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Record(e Entry) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.entries = append(r.entries, e)
}

// Entries returns a copy of the recorded entries in acceptance order.
func (r *Recorder) Entries() []Entry {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return append([]Entry(nil), r.entries...)
}

func (r *Recorder) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.entries)
}

// Summarize completes base with the recorded tracks.
func (r *Recorder) Summarize(base Summary) Summary {
	base.Tracks = r.Entries()
	if base.Tracks == nil {
		base.Tracks = []Entry{}
	}
	base.Added = len(base.Tracks)
	return base
}
