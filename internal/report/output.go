package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WriteJSON writes the summary as indented JSON, replacing path atomically.
func WriteJSON(path string, s Summary) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary summary: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(append(raw, '\n')); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write summary: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write summary: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move summary into place: %w", err)
	}
	return nil
}

// PrintText renders a human readable summary. Colors follow color.NoColor.
func PrintText(w io.Writer, s Summary) {
	heading := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)

	heading.Fprintf(w, "Seed: %s — %s\n", s.Seed.Title, s.Seed.Artist)
	if s.Options.DryRun {
		color.New(color.FgYellow).Fprintln(w, "Dry run: queue left untouched")
	}

	for i, e := range s.Tracks {
		fmt.Fprintf(w, "%3d. %s — %s ", i+1, e.Title, e.Artist)
		dim.Fprintf(w, "[%s] %s\n", e.Method, e.File)
	}

	outcome := color.New(color.FgGreen, color.Bold)
	if s.Outcome != OutcomeDone {
		outcome = color.New(color.FgRed, color.Bold)
	}
	outcome.Fprintf(w, "%s", s.Outcome)
	fmt.Fprintf(w, " (%s): added %d in %d hops, queue %d/%d, player %s\n",
		s.StopReason, s.Added, s.Hops, s.QueueLength, s.Target, s.PlayerState)
	if s.Error != "" {
		color.New(color.FgRed).Fprintf(w, "Error: %s\n", s.Error)
	}
}
