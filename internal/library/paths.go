package library

import (
	"regexp"
	"sort"
	"strings"
)

// duplicateCopyRegex matches the " (N).ext" suffix file managers add to copies of audio files.
var duplicateCopyRegex = regexp.MustCompile(`(?i)\s\(\d+\)\.(?:flac|mp3|m4a|mp4|ogg|oga|opus|wav|aiff|aif)$`)

// IsDuplicateCopy reports whether path looks like a numbered copy of another file.
func IsDuplicateCopy(path string) bool {
	return duplicateCopyRegex.MatchString(path)
}

type rewriteRule struct {
	from string
	to   string
}

// Rewriter turns absolute mount paths into MPD URIs by prefix substitution.
// The longest matching prefix wins; paths matching no rule are returned unchanged.
type Rewriter struct {
	rules []rewriteRule
}

func NewRewriter(rules map[string]string) *Rewriter {
	r := &Rewriter{rules: make([]rewriteRule, 0, len(rules))}
	for from, to := range rules {
		if from == "" {
			continue
		}
		r.rules = append(r.rules, rewriteRule{from: from, to: to})
	}
	sort.Slice(r.rules, func(i, j int) bool {
		if len(r.rules[i].from) != len(r.rules[j].from) {
			return len(r.rules[i].from) > len(r.rules[j].from)
		}
		return r.rules[i].from < r.rules[j].from
	})
	return r
}

func (r *Rewriter) Rewrite(path string) string {
	if r == nil || path == "" {
		return path
	}
	for _, rule := range r.rules {
		if rest, ok := strings.CutPrefix(path, rule.from); ok {
			return rule.to + rest
		}
	}
	return path
}

// rewriteAll rewrites paths and drops empties and duplicates, keeping first occurrence order.
func (r *Rewriter) rewriteAll(paths []string) []string {
	rewritten := make([]string, 0, len(paths))
	for _, p := range paths {
		rewritten = append(rewritten, r.Rewrite(strings.TrimSpace(p)))
	}
	return uniquePaths(rewritten)
}

func uniquePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
