// Package tags reads artist, title, album, and genre tags from audio files addressed by MPD URI.
package tags

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
	"go.uber.org/zap"

	"vibechain/internal/core"
)

// id3Frames limits ID3 parsing to the frames that are read.
var id3Frames = []string{"Artist", "Title", "Album", "Content type"}

type mapping struct {
	prefix string
	roots  []string
}

// FileReader maps MPD URIs onto local paths and reads their tags. Failures yield empty tags.
type FileReader struct {
	mappings []mapping
	logger   *zap.Logger
}

// NewFileReader builds a reader from MPD URI prefixes to local directory roots.
// Longer prefixes are tried first.
func NewFileReader(roots map[string][]string, logger *zap.Logger) *FileReader {
	mappings := make([]mapping, 0, len(roots))
	for prefix, dirs := range roots {
		// Prefixes are directories: "USB" must not claim "USBX/...".
		prefix = strings.TrimPrefix(prefix, "/")
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		mappings = append(mappings, mapping{prefix: prefix, roots: dirs})
	}
	sort.Slice(mappings, func(i, j int) bool {
		if len(mappings[i].prefix) != len(mappings[j].prefix) {
			return len(mappings[i].prefix) > len(mappings[j].prefix)
		}
		return mappings[i].prefix < mappings[j].prefix
	})
	return &FileReader{mappings: mappings, logger: logger}
}

// Candidates lists the local paths tried for an MPD URI, in order.
func (r *FileReader) Candidates(uri string) []string {
	if uri == "" {
		return nil
	}
	if filepath.IsAbs(uri) {
		return []string{uri}
	}

	trimmed := strings.TrimPrefix(uri, "/")
	for _, m := range r.mappings {
		if !strings.HasPrefix(trimmed, m.prefix) {
			continue
		}
		tail := trimmed[len(m.prefix):]
		candidates := make([]string, 0, len(m.roots))
		for _, root := range m.roots {
			candidates = append(candidates, filepath.Join(root, tail))
		}
		return candidates
	}
	return []string{trimmed}
}

func (r *FileReader) ReadTags(uri string) core.Tags {
	for _, path := range r.Candidates(uri) {
		tags, err := readFile(path)
		if err == nil {
			return tags
		}
		if !errors.Is(err, os.ErrNotExist) {
			r.logger.Debug("Failed to read tags", zap.String("path", path), zap.Error(err))
		}
	}
	return core.Tags{}
}

func readFile(path string) (core.Tags, error) {
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		if tags, err := readID3(path); err == nil && !tags.IsEmpty() {
			return tags, nil
		}
	}
	return readGeneric(path)
}

func readID3(path string) (core.Tags, error) {
	id3, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: id3Frames})
	if err != nil {
		return core.Tags{}, err
	}
	defer id3.Close()

	return core.Tags{
		Artist: strings.TrimSpace(id3.Artist()),
		Title:  strings.TrimSpace(id3.Title()),
		Album:  strings.TrimSpace(id3.Album()),
		Genre:  strings.TrimSpace(id3.Genre()),
	}, nil
}

// readGeneric covers FLAC, MP4, OGG, and ID3v1-only files.
func readGeneric(path string) (core.Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.Tags{}, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return core.Tags{}, err
	}

	return core.Tags{
		Artist: strings.TrimSpace(m.Artist()),
		Title:  strings.TrimSpace(m.Title()),
		Album:  strings.TrimSpace(m.Album()),
		Genre:  strings.TrimSpace(m.Genre()),
	}, nil
}
