// Package library maps normalized track keys and recording identifiers onto local library files.
package library

import (
	"sort"
	"strings"

	"vibechain/internal/core"
	"vibechain/pkg/fuzzy"
)

// fuzzyPrefixWords is how many leading words of a title take part in prefix matching.
const fuzzyPrefixWords = 8

// Data is the serialized form of an index.
type Data struct {
	TextMap map[string][]string `json:"text_map"`
	IDMap   map[string][]string `json:"mbid_map"`
	Meta    map[string]any      `json:"meta"`
}

// PathSet answers membership for already used or rejected paths.
type PathSet interface {
	Has(key string) bool
}

type emptySet struct{}

func (emptySet) Has(string) bool { return false }

// Index is read-only once built and safe for concurrent use.
type Index struct {
	textMap    map[string][]string
	idMap      map[string][]string
	byArtist   map[string][]string
	meta       map[string]any
	normalizer *fuzzy.Normalizer
}

// New builds an index from data. Every path goes through rewriter and is de-duplicated per key.
func New(data Data, rewriter *Rewriter) *Index {
	idx := &Index{
		textMap:    make(map[string][]string, len(data.TextMap)),
		idMap:      make(map[string][]string, len(data.IDMap)),
		byArtist:   make(map[string][]string),
		meta:       data.Meta,
		normalizer: fuzzy.NewNormalizer(),
	}
	if idx.meta == nil {
		idx.meta = map[string]any{}
	}

	for key, paths := range data.TextMap {
		artist, _, ok := fuzzy.SplitTrackKey(key)
		if !ok {
			continue
		}
		paths = rewriter.rewriteAll(paths)
		if len(paths) == 0 {
			continue
		}
		idx.textMap[key] = paths
		idx.byArtist[artist] = append(idx.byArtist[artist], key)
	}
	for _, keys := range idx.byArtist {
		sort.Strings(keys)
	}

	for id, paths := range data.IDMap {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		paths = rewriter.rewriteAll(paths)
		if len(paths) == 0 {
			continue
		}
		// Identifiers differing only in case share one entry.
		idx.idMap[id] = uniquePaths(append(idx.idMap[id], paths...))
	}

	return idx
}

// Empty returns an index that resolves nothing.
func Empty() *Index {
	return New(Data{}, nil)
}

// Len is the number of distinct track keys.
func (idx *Index) Len() int { return len(idx.textMap) }

// IDLen is the number of distinct recording identifiers.
func (idx *Index) IDLen() int { return len(idx.idMap) }

func (idx *Index) Meta() map[string]any { return idx.meta }

// Data returns the index contents in serializable form.
func (idx *Index) Data() Data {
	return Data{TextMap: idx.textMap, IDMap: idx.idMap, Meta: idx.meta}
}

// Resolve maps a suggestion to the best unused library file. Tiers are tried in order
// identifier, exact, fuzzy; a tier whose paths are all used falls through to the next.
func (idx *Index) Resolve(s core.Suggestion, used PathSet) (core.Resolution, bool) {
	if used == nil {
		used = emptySet{}
	}

	if id := strings.ToLower(strings.TrimSpace(s.ID)); id != "" {
		if path, ok := pickBest(rankPaths(idx.idMap[id]), used); ok {
			return core.Resolution{Path: path, Method: core.MethodIdentifier}, true
		}
	}

	if key := idx.normalizer.TrackKey(s.Artist, s.Title); key != "" {
		if path, ok := pickBest(rankPaths(idx.textMap[key]), used); ok {
			return core.Resolution{Path: path, Method: core.MethodExact}, true
		}
	}

	if path, ok := pickBest(idx.fuzzyCandidates(s.Artist, s.Title), used); ok {
		return core.Resolution{Path: path, Method: core.MethodFuzzy}, true
	}

	return core.Resolution{}, false
}

// LookupSeed returns the best file for a seed track, trying exact then fuzzy matching.
func (idx *Index) LookupSeed(artist, title string) (string, bool) {
	if key := idx.normalizer.TrackKey(artist, title); key != "" {
		if path, ok := pickBest(rankPaths(idx.textMap[key]), emptySet{}); ok {
			return path, true
		}
	}
	return pickBest(idx.fuzzyCandidates(artist, title), emptySet{})
}

func (idx *Index) fuzzyCandidates(artist, title string) []string {
	artistKey := idx.normalizer.Normalize(artist)
	titleKey := idx.normalizer.Normalize(title)
	if artistKey == "" || titleKey == "" {
		return nil
	}

	distances := make(map[string]int)
	for _, key := range idx.byArtist[artistKey] {
		_, candidateTitle, _ := fuzzy.SplitTrackKey(key)
		if !titlesMatch(titleKey, candidateTitle) {
			continue
		}
		d := idx.normalizer.TitleDistance(titleKey, candidateTitle)
		for _, path := range idx.textMap[key] {
			if prev, seen := distances[path]; !seen || d < prev {
				distances[path] = d
			}
		}
	}

	return rankFuzzy(distances)
}

// titlesMatch is true for equal titles, or when one title's leading words are a whole-word
// prefix of the other's. Titles longer than fuzzyPrefixWords words are truncated first.
func titlesMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}

	aw := truncateWords(strings.Fields(a))
	bw := truncateWords(strings.Fields(b))
	if len(aw) > len(bw) {
		aw, bw = bw, aw
	}
	for i, w := range aw {
		if bw[i] != w {
			return false
		}
	}
	return true
}

func truncateWords(words []string) []string {
	if len(words) > fuzzyPrefixWords {
		return words[:fuzzyPrefixWords]
	}
	return words
}

// rankPaths orders paths: originals before duplicate copies, then shorter first, then lexically.
func rankPaths(paths []string) []string {
	ranked := append([]string(nil), paths...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return lessPath(ranked[i], ranked[j])
	})
	return ranked
}

// rankFuzzy orders like rankPaths but uses title distance before the lexical tie-break.
func rankFuzzy(distances map[string]int) []string {
	ranked := make([]string, 0, len(distances))
	for path := range distances {
		ranked = append(ranked, path)
	}
	sort.Slice(ranked, func(i, j int) bool {
		pi, pj := ranked[i], ranked[j]
		ci, cj := IsDuplicateCopy(pi), IsDuplicateCopy(pj)
		if ci != cj {
			return !ci
		}
		if len(pi) != len(pj) {
			return len(pi) < len(pj)
		}
		if distances[pi] != distances[pj] {
			return distances[pi] < distances[pj]
		}
		return pi < pj
	})
	return ranked
}

func lessPath(a, b string) bool {
	ca, cb := IsDuplicateCopy(a), IsDuplicateCopy(b)
	if ca != cb {
		return !ca
	}
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func pickBest(ranked []string, used PathSet) (string, bool) {
	for _, path := range ranked {
		if !used.Has(path) {
			return path, true
		}
	}
	return "", false
}
