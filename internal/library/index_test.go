package library

import (
	"testing"

	"vibechain/internal/core"
)

type pathSet map[string]bool

func (s pathSet) Has(key string) bool { return s[key] }

func testIndex() *Index {
	return New(Data{
		TextMap: map[string][]string{
			"the beatles|hey jude": {
				"/media/Beatles/Past Masters/Hey Jude (1).flac",
				"/media/Beatles/1/Hey Jude.flac",
				"/media/Beatles/Past Masters Vol 2/Hey Jude.flac",
			},
			"the beatles|yesterday":            {"USB/Beatles/Help/Yesterday.flac"},
			"the beatles|here comes the sun":   {"USB/Beatles/Abbey Road/Here Comes The Sun.flac"},
			"radiohead|paranoid android":       {"USB/Radiohead/OK Computer/Paranoid Android.flac"},
			"portishead|roads":                 {"USB/Portishead/Dummy/Roads.mp3"},
			"portishead|roads to nowhere demo": {"USB/Portishead/Demos/Roads To Nowhere.mp3"},
		},
		IDMap: map[string][]string{
			"ABC-123": {"USB/Beatles/Anthology/Hey Jude (Take 1).flac"},
		},
	}, NewRewriter(map[string]string{"/media/": "USB/"}))
}

func TestIndex_ResolveTiers(t *testing.T) {
	idx := testIndex()

	tests := []struct {
		name       string
		suggestion core.Suggestion
		used       pathSet
		wantPath   string
		wantMethod core.Method
		wantOK     bool
	}{
		{
			name:       "Identifier preferred over exact",
			suggestion: core.Suggestion{Artist: "The Beatles", Title: "Hey Jude", ID: "abc-123"},
			wantPath:   "USB/Beatles/Anthology/Hey Jude (Take 1).flac",
			wantMethod: core.MethodIdentifier,
			wantOK:     true,
		},
		{
			name:       "Exact match with rewrite and shortest path",
			suggestion: core.Suggestion{Artist: "The Beatles", Title: "Hey Jude (Remastered 2015)"},
			wantPath:   "USB/Beatles/1/Hey Jude.flac",
			wantMethod: core.MethodExact,
			wantOK:     true,
		},
		{
			name:       "Used path skipped for next ranked",
			suggestion: core.Suggestion{Artist: "The Beatles", Title: "Hey Jude"},
			used:       pathSet{"USB/Beatles/1/Hey Jude.flac": true},
			wantPath:   "USB/Beatles/Past Masters Vol 2/Hey Jude.flac",
			wantMethod: core.MethodExact,
			wantOK:     true,
		},
		{
			name:       "Duplicate copy ranked last",
			suggestion: core.Suggestion{Artist: "The Beatles", Title: "Hey Jude"},
			used: pathSet{
				"USB/Beatles/1/Hey Jude.flac":                 true,
				"USB/Beatles/Past Masters Vol 2/Hey Jude.flac": true,
			},
			wantPath:   "USB/Beatles/Past Masters/Hey Jude (1).flac",
			wantMethod: core.MethodExact,
			wantOK:     true,
		},
		{
			name:       "Used identifier path falls through to exact",
			suggestion: core.Suggestion{Artist: "The Beatles", Title: "Hey Jude", ID: "ABC-123"},
			used:       pathSet{"USB/Beatles/Anthology/Hey Jude (Take 1).flac": true},
			wantPath:   "USB/Beatles/1/Hey Jude.flac",
			wantMethod: core.MethodExact,
			wantOK:     true,
		},
		{
			name:       "Unknown identifier falls through to exact",
			suggestion: core.Suggestion{Artist: "Radiohead", Title: "Paranoid Android", ID: "nope"},
			wantPath:   "USB/Radiohead/OK Computer/Paranoid Android.flac",
			wantMethod: core.MethodExact,
			wantOK:     true,
		},
		{
			name:       "Fuzzy whole-word prefix",
			suggestion: core.Suggestion{Artist: "The Beatles", Title: "Here Comes The Sun Acoustic Demo"},
			wantPath:   "USB/Beatles/Abbey Road/Here Comes The Sun.flac",
			wantMethod: core.MethodFuzzy,
			wantOK:     true,
		},
		{
			name:       "Fuzzy shorter library title is a prefix",
			suggestion: core.Suggestion{Artist: "Portishead", Title: "Roads Forever"},
			wantPath:   "USB/Portishead/Dummy/Roads.mp3",
			wantMethod: core.MethodFuzzy,
			wantOK:     true,
		},
		{
			name:       "Partial word is not a prefix",
			suggestion: core.Suggestion{Artist: "The Beatles", Title: "Yester"},
			wantOK:     false,
		},
		{
			name:       "Different artist never matches",
			suggestion: core.Suggestion{Artist: "Oasis", Title: "Yesterday"},
			wantOK:     false,
		},
		{
			name:       "All candidates used",
			suggestion: core.Suggestion{Artist: "The Beatles", Title: "Yesterday"},
			used:       pathSet{"USB/Beatles/Help/Yesterday.flac": true},
			wantOK:     false,
		},
		{
			name:       "Blank title",
			suggestion: core.Suggestion{Artist: "The Beatles"},
			wantOK:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var used PathSet
			if tt.used != nil {
				used = tt.used
			}
			got, ok := idx.Resolve(tt.suggestion, used)
			if ok != tt.wantOK {
				t.Fatalf("Resolve() ok = %v, want %v (got %+v)", ok, tt.wantOK, got)
			}
			if !ok {
				return
			}
			if got.Path != tt.wantPath {
				t.Errorf("Resolve() path = %q, want %q", got.Path, tt.wantPath)
			}
			if got.Method != tt.wantMethod {
				t.Errorf("Resolve() method = %q, want %q", got.Method, tt.wantMethod)
			}
		})
	}
}

func TestIndex_ResolveNeverReturnsUsedPath(t *testing.T) {
	idx := testIndex()
	used := pathSet{}
	s := core.Suggestion{Artist: "The Beatles", Title: "Hey Jude"}

	for i := 0; i < 3; i++ {
		got, ok := idx.Resolve(s, used)
		if !ok {
			t.Fatalf("Resolve() #%d failed early", i)
		}
		if used[got.Path] {
			t.Fatalf("Resolve() returned used path %q", got.Path)
		}
		used[got.Path] = true
	}
	if _, ok := idx.Resolve(s, used); ok {
		t.Error("Resolve() should fail once every path is used")
	}
}

func TestIndex_LookupSeed(t *testing.T) {
	idx := testIndex()

	path, ok := idx.LookupSeed("The Beatles", "Hey Jude")
	if !ok || path != "USB/Beatles/1/Hey Jude.flac" {
		t.Errorf("LookupSeed() = (%q, %v)", path, ok)
	}

	path, ok = idx.LookupSeed("Radiohead", "Paranoid Android (Live)")
	if !ok || path != "USB/Radiohead/OK Computer/Paranoid Android.flac" {
		t.Errorf("LookupSeed() = (%q, %v)", path, ok)
	}

	if _, ok := idx.LookupSeed("Nobody", "Nothing"); ok {
		t.Error("LookupSeed() should miss unknown tracks")
	}
}

func TestIndex_IgnoresMalformedKeys(t *testing.T) {
	idx := New(Data{TextMap: map[string][]string{
		"no separator": {"a.flac"},
		"artist|":      {"b.flac"},
		"a|b":          {"", "  "},
	}}, nil)

	if idx.Len() != 0 {
		t.Errorf("Expected malformed keys to be dropped, got %d keys", idx.Len())
	}
}

func TestEmpty(t *testing.T) {
	idx := Empty()
	if idx.Len() != 0 || idx.IDLen() != 0 {
		t.Error("Empty() should hold nothing")
	}
	if _, ok := idx.Resolve(core.Suggestion{Artist: "a", Title: "b"}, nil); ok {
		t.Error("Empty index should resolve nothing")
	}
}

func TestTitlesMatch(t *testing.T) {
	tests := []struct {
		a, b     string
		expected bool
	}{
		{"roads", "roads", true},
		{"roads", "roads to nowhere", true},
		{"roads to nowhere", "roads", true},
		{"road", "roads", false},
		{"", "roads", false},
		{"one two three four five six seven eight nine", "one two three four five six seven eight ten", true},
		{"one two three four five six seven eight", "one two three four five six seven nine", false},
	}

	for _, tt := range tests {
		if got := titlesMatch(tt.a, tt.b); got != tt.expected {
			t.Errorf("titlesMatch(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.expected)
		}
	}
}

func TestRewriter(t *testing.T) {
	r := NewRewriter(map[string]string{
		"/media/":                 "USB/",
		"/var/lib/mpd/music/USB/": "USB/",
		"/var/lib/mpd/music/":     "",
	})

	tests := []struct {
		input    string
		expected string
	}{
		{"/media/Disk/a.flac", "USB/Disk/a.flac"},
		{"/var/lib/mpd/music/USB/Disk/a.flac", "USB/Disk/a.flac"},
		{"/var/lib/mpd/music/NAS/a.flac", "NAS/a.flac"},
		{"USB/Disk/a.flac", "USB/Disk/a.flac"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := r.Rewrite(tt.input); got != tt.expected {
			t.Errorf("Rewrite(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}

	var nilRewriter *Rewriter
	if got := nilRewriter.Rewrite("/media/a.flac"); got != "/media/a.flac" {
		t.Errorf("nil Rewriter should be identity, got %q", got)
	}
}

func TestIsDuplicateCopy(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"USB/a/Song (1).flac", true},
		{"USB/a/Song (12).MP3", true},
		{"USB/a/Song.flac", false},
		{"USB/a/Song (Live).flac", false},
		{"USB/a/Song (1).txt", false},
		{"USB/a/Song(1).flac", false},
	}

	for _, tt := range tests {
		if got := IsDuplicateCopy(tt.path); got != tt.expected {
			t.Errorf("IsDuplicateCopy(%q) = %v, want %v", tt.path, got, tt.expected)
		}
	}
}
