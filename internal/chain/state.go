package chain

import (
	"vibechain/internal/core"
	"vibechain/internal/store"
)

type Phase int

const (
	PhaseSeeded Phase = iota
	PhaseFetching
	PhaseSelecting
	PhaseAccepted
	PhaseMissed
	PhaseReseeding
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseSeeded:
		return "SEEDED"
	case PhaseFetching:
		return "FETCHING"
	case PhaseSelecting:
		return "SELECTING"
	case PhaseAccepted:
		return "ACCEPTED"
	case PhaseMissed:
		return "MISSED"
	case PhaseReseeding:
		return "RESEEDING"
	case PhaseDone:
		return "DONE"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the walk has ended.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

const (
	StopTargetReached    = "target_reached"
	StopTimeBudget       = "time_budget"
	StopMaxMisses        = "max_misses"
	StopSimilarityFailed = "similarity_failed"
	StopSinkFailed       = "sink_failed"
	StopCancelled        = "cancelled"
)

// State is the mutable memory of one walk. It is owned by a single walker and never persisted.
// The used and bad sets only grow.
type State struct {
	Seed         core.Seed
	Phase        Phase
	StopReason   string
	History      []core.Seed
	Misses       int
	TotalMisses  int
	ReseedCursor int
	Hops         int
	Accepted     int

	usedTracks   *store.KeySet
	usedFiles    *store.KeySet
	badFiles     *store.KeySet
	recentAlbums []string
	albumDepth   int
}

// NewState starts a walk at seed. albumDepth is how many accepted albums the same-album
// check remembers; zero disables it.
func NewState(seed core.Seed, albumDepth int) *State {
	return &State{
		Seed:       seed,
		Phase:      PhaseSeeded,
		usedTracks: store.NewDefaultKeySet(),
		usedFiles:  store.NewDefaultKeySet(),
		badFiles:   store.NewDefaultKeySet(),
		albumDepth: max(albumDepth, 0),
	}
}

func (s *State) UsedTrack(key string) bool { return s.usedTracks.Has(key) }
func (s *State) UsedFile(path string) bool { return s.usedFiles.Has(path) }
func (s *State) BadFile(path string) bool  { return s.badFiles.Has(path) }

func (s *State) RecentAlbum(albumKey string) bool {
	if albumKey == "" {
		return false
	}
	for _, k := range s.recentAlbums {
		if k == albumKey {
			return true
		}
	}
	return false
}

func (s *State) MarkTrackUsed(key string) { s.usedTracks.Add(key) }

// MarkFilesUsed is used to seed the state with files already in the queue.
func (s *State) MarkFilesUsed(paths ...string) { s.usedFiles.AddAll(paths) }

func (s *State) MarkBad(path string) { s.badFiles.Add(path) }

// PushAlbum remembers an accepted album, forgetting the oldest beyond the configured depth.
func (s *State) PushAlbum(albumKey string) {
	if albumKey == "" || s.albumDepth == 0 {
		return
	}
	s.recentAlbums = append(s.recentAlbums, albumKey)
	if len(s.recentAlbums) > s.albumDepth {
		s.recentAlbums = s.recentAlbums[len(s.recentAlbums)-s.albumDepth:]
	}
}

// RecentAlbums returns the remembered album keys, oldest first.
func (s *State) RecentAlbums() []string {
	return append([]string(nil), s.recentAlbums...)
}

func (s *State) UsedFileCount() int { return s.usedFiles.Size() }

// Has makes the state usable as the exclusion set for library resolution: a path is
// unavailable once it has been used or found bad.
func (s *State) Has(path string) bool {
	return s.usedFiles.Has(path) || s.badFiles.Has(path)
}
