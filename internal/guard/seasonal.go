package guard

import (
	"strings"

	"golang.org/x/text/cases"
)

// HolidayVocabulary lists the phrases that mark a track as seasonal holiday music.
var HolidayVocabulary = []string{
	"christmas", "xmas", "noel", "nativity", "yuletide", "advent",
	"silent night", "jingle bell", "santa", "mistletoe",
	"winter wonderland", "white christmas", "let it snow",
	"have yourself a merry little christmas",
	"it's the most wonderful time of the year",
	"the christmas song", "christmas waltz",
}

// Vocabulary matches free text against a fixed list of phrases.
type Vocabulary struct {
	phrases []string
}

func NewVocabulary(phrases []string) *Vocabulary {
	v := &Vocabulary{phrases: make([]string, 0, len(phrases))}
	for _, p := range phrases {
		if p = cases.Fold().String(strings.TrimSpace(p)); p != "" {
			v.phrases = append(v.phrases, p)
		}
	}
	return v
}

func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(HolidayVocabulary)
}

// Matches joins the non-empty parts with spaces and reports whether any phrase occurs in the
// result, ignoring case.
func (v *Vocabulary) Matches(parts ...string) bool {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	if len(nonEmpty) == 0 {
		return false
	}

	hay := cases.Fold().String(strings.Join(nonEmpty, " "))
	for _, phrase := range v.phrases {
		if strings.Contains(hay, phrase) {
			return true
		}
	}
	return false
}
