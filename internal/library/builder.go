package library

import (
	"strings"
	"time"

	"vibechain/pkg/fuzzy"
)

// Entry is one file as reported by the music server's database.
type Entry struct {
	File        string
	Artist      string
	Title       string
	RecordingID string
}

type BuildStats struct {
	Total      int
	Tagged     int
	UniqueKeys int
	WithID     int
}

// Build constructs index data from library entries. Entries without a file, or whose artist or
// title normalize to nothing, are counted but not indexed by text.
func Build(entries []Entry, meta map[string]any) (Data, BuildStats) {
	normalizer := fuzzy.NewNormalizer()
	data := Data{
		TextMap: map[string][]string{},
		IDMap:   map[string][]string{},
		Meta:    map[string]any{},
	}
	var stats BuildStats

	for _, e := range entries {
		file := strings.TrimSpace(e.File)
		if file == "" {
			continue
		}
		stats.Total++

		if id := strings.ToLower(strings.TrimSpace(e.RecordingID)); id != "" {
			data.IDMap[id] = append(data.IDMap[id], file)
			stats.WithID++
		}

		key := normalizer.TrackKey(e.Artist, e.Title)
		if key == "" {
			continue
		}
		stats.Tagged++
		data.TextMap[key] = append(data.TextMap[key], file)
	}
	stats.UniqueKeys = len(data.TextMap)

	for k, v := range meta {
		data.Meta[k] = v
	}
	data.Meta["total_files"] = stats.Total
	data.Meta["tagged_files"] = stats.Tagged
	data.Meta["built_at"] = time.Now().UTC().Format(time.RFC3339)

	return data, stats
}
