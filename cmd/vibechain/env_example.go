package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// envSections groups flags by name prefix. Flags matching no prefix land in the last section.
var envSections = []struct {
	title    string
	prefixes []string
}{
	{"Similarity Service", []string{"similarity-", "similar-"}},
	{"Last.fm", []string{"lastfm-"}},
	{"Spotify", []string{"spotify-"}},
	{"LLM Providers", []string{"llm-"}},
	{"MPD Connection", []string{"mpd-"}},
	{"Library Index and Tags", []string{"index-", "path-", "tag-"}},
	{"Chain Walk", []string{
		"target-", "max-", "reseed-", "shuffle-", "include-", "exclude-", "album-", "hop-",
	}},
	{"Run Options", []string{"mode", "append", "crop", "dry-run", "json-out", "seed-"}},
	{"HTTP Server", []string{"server-", "flood-"}},
	{"Logging", []string{"log-"}},
}

var envSkipFlags = map[string]bool{
	"config":               true,
	"generate-env-example": true,
	"help":                 true,
}

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)

	if err := os.WriteFile(".env.example", []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Println("Successfully generated .env.example file")
	return nil
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# vibechain Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	fmt.Fprintf(&content, "# Format: %s_<SETTING>=value\n", envPrefix)
	content.WriteString("# CLI equivalent: --<setting>\n")
	content.WriteString("#\n\n")

	grouped := make([][]*pflag.Flag, len(envSections))
	cmd.Root().PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if envSkipFlags[f.Name] {
			return
		}
		grouped[sectionFor(f.Name)] = append(grouped[sectionFor(f.Name)], f)
	})

	for i, section := range envSections {
		if len(grouped[i]) == 0 {
			continue
		}
		content.WriteString("# -----------------------------------------------------------------------------\n")
		fmt.Fprintf(&content, "# %s\n", section.title)
		content.WriteString("# -----------------------------------------------------------------------------\n")
		for _, f := range grouped[i] {
			fmt.Fprintf(&content, "# %s (--%s)\n", f.Usage, f.Name)
			fmt.Fprintf(&content, "%s=%s\n", flagToEnvVar(f.Name), envDefault(f))
		}
		content.WriteString("\n")
	}

	return content.String()
}

func sectionFor(name string) int {
	for i, section := range envSections {
		for _, prefix := range section.prefixes {
			if strings.HasPrefix(name, prefix) {
				return i
			}
		}
	}
	return len(envSections) - 1
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// envDefault renders a flag default the way the environment expects it. Slice defaults print as "[]".
func envDefault(f *pflag.Flag) string {
	if f.DefValue == "[]" {
		return ""
	}
	return f.DefValue
}
