// Package guard decides whether a resolved suggestion may be queued.
package guard

import (
	"vibechain/internal/core"
)

type Reason string

const (
	// Accept means no check rejected the candidate.
	Accept Reason = ""

	ReasonUsedTrack          Reason = "used_track"
	ReasonSeasonalSuggestion Reason = "seasonal_suggestion"
	ReasonBadFile            Reason = "bad_file"
	ReasonUsedFile           Reason = "used_file"
	ReasonSeasonalLocal      Reason = "seasonal_local"
	ReasonSameAlbum          Reason = "same_album"
)

// Memory is the walk history the guard consults.
type Memory interface {
	UsedTrack(key string) bool
	UsedFile(path string) bool
	BadFile(path string) bool
	RecentAlbum(albumKey string) bool
}

// Candidate is a suggestion together with the file it resolved to and that file's tags.
type Candidate struct {
	Suggestion core.Suggestion
	TrackKey   string
	Path       string
	Tags       core.Tags
	AlbumKey   string
}

type Guard struct {
	allowHoliday bool
	vocabulary   *Vocabulary
}

func New(allowHoliday bool, vocabulary *Vocabulary) *Guard {
	if vocabulary == nil {
		vocabulary = DefaultVocabulary()
	}
	return &Guard{allowHoliday: allowHoliday, vocabulary: vocabulary}
}

// CheckSuggestion runs the checks that need only the suggestion text: identity, then seasonal.
func (g *Guard) CheckSuggestion(s core.Suggestion, trackKey string, mem Memory) Reason {
	if trackKey != "" && mem.UsedTrack(trackKey) {
		return ReasonUsedTrack
	}
	if !g.allowHoliday && g.vocabulary.Matches(s.Title, s.Artist) {
		return ReasonSeasonalSuggestion
	}
	return Accept
}

// CheckCandidate runs the remaining checks against the resolved file: bad or used file,
// seasonal path and tags, then same album.
func (g *Guard) CheckCandidate(c Candidate, mem Memory) Reason {
	if mem.BadFile(c.Path) {
		return ReasonBadFile
	}
	if mem.UsedFile(c.Path) {
		return ReasonUsedFile
	}
	if !g.allowHoliday {
		if g.vocabulary.Matches(c.Path) {
			return ReasonSeasonalLocal
		}
		if g.vocabulary.Matches(c.Tags.Title, c.Tags.Album, c.Tags.Artist, c.Tags.Genre) {
			return ReasonSeasonalLocal
		}
	}
	if c.AlbumKey != "" && mem.RecentAlbum(c.AlbumKey) {
		return ReasonSameAlbum
	}
	return Accept
}

// Check runs every check in order, stopping at the first rejection.
func (g *Guard) Check(c Candidate, mem Memory) Reason {
	if reason := g.CheckSuggestion(c.Suggestion, c.TrackKey, mem); reason != Accept {
		return reason
	}
	return g.CheckCandidate(c, mem)
}

// IsSeasonal applies the holiday vocabulary to a seed, honouring the allow flag.
func (g *Guard) IsSeasonal(seed core.Seed) bool {
	return !g.allowHoliday && g.vocabulary.Matches(seed.Title, seed.Artist)
}
