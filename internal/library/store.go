package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Format string

const (
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
)

// FormatFor picks the on-disk format from the file extension. Anything that is not a
// SQLite extension is treated as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatJSON
	}
}

// Load reads the index at path. A missing, unreadable or malformed index yields an empty
// index and a warning, so a walk can still run and simply resolve nothing.
func Load(path string, rewriter *Rewriter, logger *zap.Logger) *Index {
	data, err := Read(path)
	if err != nil {
		logger.Warn("Library index unavailable, continuing with an empty index",
			zap.String("path", path),
			zap.Error(err))
		return Empty()
	}

	idx := New(data, rewriter)
	logger.Info("Library index loaded",
		zap.String("path", path),
		zap.Int("track_keys", idx.Len()),
		zap.Int("identifiers", idx.IDLen()))
	return idx
}

func Read(path string) (Data, error) {
	if path == "" {
		return Data{}, fmt.Errorf("no index path configured")
	}
	if FormatFor(path) == FormatSQLite {
		return readSQLite(path)
	}
	return readJSON(path)
}

// Save writes data to path in the format chosen by its extension. The file is replaced atomically.
func Save(path string, data Data) error {
	if FormatFor(path) == FormatSQLite {
		return writeAtomic(path, func(tmp string) error {
			return writeSQLite(tmp, data)
		})
	}
	return writeAtomic(path, func(tmp string) error {
		return writeJSON(tmp, data)
	})
}

func readJSON(path string) (Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, fmt.Errorf("failed to read index: %w", err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return Data{}, fmt.Errorf("failed to parse index %s: %w", path, err)
	}
	return data, nil
}

func writeJSON(path string, data Data) error {
	if data.TextMap == nil {
		data.TextMap = map[string][]string{}
	}
	if data.IDMap == nil {
		data.IDMap = map[string][]string{}
	}
	if data.Meta == nil {
		data.Meta = map[string]any{}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

// writeAtomic lets write fill a temporary sibling of path, then renames it into place.
func writeAtomic(path string, write func(tmp string) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary index: %w", err)
	}
	tmp := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to create temporary index: %w", err)
	}

	if err := write(tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move index into place: %w", err)
	}
	return nil
}
