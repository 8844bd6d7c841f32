package core

import (
	"context"
	"strings"
)

// Seed is the (artist, title) pair the next similarity request is made for.
type Seed struct {
	Artist string
	Title  string
}

// IsZero reports whether either half of the seed is blank.
func (s Seed) IsZero() bool {
	return strings.TrimSpace(s.Artist) == "" || strings.TrimSpace(s.Title) == ""
}

func (s Seed) String() string {
	return s.Artist + " - " + s.Title
}

// Tags are the locally read tags of a library file. All fields are empty when the file could
// not be read.
type Tags struct {
	Artist string
	Title  string
	Album  string
	Genre  string
}

func (t Tags) IsEmpty() bool {
	return t.Artist == "" && t.Title == "" && t.Album == "" && t.Genre == ""
}

// Suggestion is one entry of a similarity response, already flattened to plain text.
type Suggestion struct {
	Artist string
	Title  string
	// ID is an optional recording identifier (a MusicBrainz id for Last.fm).
	ID   string
	Rank int
}

// Seed returns the suggestion as a seed.
func (s Suggestion) Seed() Seed {
	return Seed{Artist: s.Artist, Title: s.Title}
}

type Method string

const (
	// MethodIdentifier resolved through the recording identifier map
	MethodIdentifier Method = "identifier"
	// MethodExact resolved through an exact track key match
	MethodExact Method = "exact"
	// MethodFuzzy resolved through a same-artist title prefix match
	MethodFuzzy Method = "fuzzy"
)

// Resolution is a library file chosen for a suggestion.
type Resolution struct {
	Path   string
	Method Method
}

// NowPlaying describes the song the player currently has selected.
type NowPlaying struct {
	File   string
	Artist string
	Title  string
	Album  string
}

// Seed returns the now playing song as a seed.
func (n NowPlaying) Seed() Seed {
	return Seed{Artist: n.Artist, Title: n.Title}
}

const (
	PlayerStatePlay    = "play"
	PlayerStatePause   = "pause"
	PlayerStateStop    = "stop"
	PlayerStateUnknown = "unknown"
)

type SimilarityService interface {
	// Similar returns up to limit suggestions for seed, best first.
	Similar(ctx context.Context, seed Seed, limit int) ([]Suggestion, error)
	Name() string
}

type TagReader interface {
	// ReadTags never fails; unreadable files yield empty Tags.
	ReadTags(path string) Tags
}

// QueueSink is the part of the player the chain walker appends to.
type QueueSink interface {
	// Append queues path. A missing or invalid path is reported as ErrNotFound.
	Append(ctx context.Context, path string) error
	Len(ctx context.Context) (int, error)
}

type Player interface {
	QueueSink
	Files(ctx context.Context) ([]string, error)
	Current(ctx context.Context) (*NowPlaying, error)
	State(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
	// Crop removes every queued entry except the one currently playing.
	Crop(ctx context.Context) error
	Play(ctx context.Context) error
	Stop(ctx context.Context) error
}
