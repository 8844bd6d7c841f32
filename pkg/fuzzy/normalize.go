// Package fuzzy canonicalizes free-text artist, title and album strings into matching keys.
package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// KeySeparator joins the artist and title halves of a track key.
const KeySeparator = "|"

// maxNormalizePasses bounds the fixed-point loop. Every pass after the first only removes text,
// so in practice the loop settles after one or two passes.
const maxNormalizePasses = 8

var (
	parenRegex   = regexp.MustCompile(`\s*\([^)]*\)\s*`)
	bracketRegex = regexp.MustCompile(`\s*\[[^\]]*\]\s*`)
	featRegex    = regexp.MustCompile(`\b(?:feat|ft)\.?\b.*$`)
	nonWordRegex = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

// junkPhrases are removed as raw substrings, in this order. The list matches the index builder,
// so keys produced here line up with keys stored in existing index files.
var junkPhrases = []string{
	"album version", "single version", "radio edit", "edit",
	"remaster", "remastered", "live", "live album version",
	"mono", "stereo", "bonus track", "deluxe edition", "expanded edition",
}

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize returns the matching key for text. The result is a fixed point:
// Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	key := n.pass(text)
	for range maxNormalizePasses {
		next := n.pass(key)
		if next == key {
			break
		}
		key = next
	}
	return key
}

// TrackKey joins the normalized artist and title. It is empty unless both halves are non-empty.
func (n *Normalizer) TrackKey(artist, title string) string {
	a := n.Normalize(artist)
	t := n.Normalize(title)
	if a == "" || t == "" {
		return ""
	}
	return a + KeySeparator + t
}

// AlbumKey is the normalized album name on its own.
func (n *Normalizer) AlbumKey(album string) string {
	return n.Normalize(album)
}

// SplitTrackKey returns the artist and title halves of a track key.
func SplitTrackKey(key string) (artist, title string, ok bool) {
	artist, title, ok = strings.Cut(key, KeySeparator)
	if !ok || artist == "" || title == "" {
		return "", "", false
	}
	return artist, title, true
}

// TitleDistance is the edit distance between two already-normalized titles.
func (n *Normalizer) TitleDistance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

func (n *Normalizer) pass(text string) string {
	text = n.fold(text)

	text = parenRegex.ReplaceAllString(text, " ")
	text = bracketRegex.ReplaceAllString(text, " ")
	text = featRegex.ReplaceAllString(text, "")

	for _, junk := range junkPhrases {
		text = strings.ReplaceAll(text, junk, " ")
	}

	text = nonWordRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// fold case-folds and drops combining marks, so "Björk" and "BJORK" fold to "bjork".
func (n *Normalizer) fold(text string) string {
	text = cases.Fold().String(text)
	text = norm.NFKD.String(text)

	var result strings.Builder
	result.Grow(len(text))
	for _, r := range text {
		if !unicode.IsMark(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
