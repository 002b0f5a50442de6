package render

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Query describes the artifact a Locator searches for.
type Query struct {
	EntryPoint string
	Stem       string
	// Since drops candidates last modified before this instant. Zero
	// disables the check.
	Since time.Time
	// Exclude lists absolute paths never returned, such as the canonical
	// artifact when it lives inside the searched tree.
	Exclude []string
}

// Locator finds the video the renderer wrote under root.
type Locator interface {
	// Locate returns the chosen path and every pattern tried in order. A
	// missing artifact yields an empty path and a nil error.
	Locate(root string, q Query) (path string, searched []string, err error)
}

// Pattern placeholders expanded per query.
const (
	PlaceholderScene = "{scene}"
	PlaceholderStem  = "{stem}"
)

// DefaultPatterns mirrors manim's media layout, most specific first. The
// renderer names its scene directory and quality segment itself, so each
// step widens the search.
var DefaultPatterns = []string{
	"videos/" + PlaceholderScene + "/*/" + PlaceholderStem + ".mp4",
	"videos/*/*/" + PlaceholderStem + ".mp4",
	"**/" + PlaceholderStem + ".mp4",
	"**/*.mp4",
}

// PatternLocator walks an ordered list of slash-separated glob patterns. A
// leading "**/" matches the rest of the pattern against file names at any
// depth.
type PatternLocator struct {
	Patterns []string
}

// NewPatternLocator returns a locator over patterns, or DefaultPatterns when
// none are given.
func NewPatternLocator(patterns ...string) PatternLocator {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	return PatternLocator{Patterns: append([]string(nil), patterns...)}
}

func (l PatternLocator) Locate(root string, q Query) (string, []string, error) {
	patterns := l.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	expand := strings.NewReplacer(
		PlaceholderScene, SnakeCase(q.EntryPoint),
		PlaceholderStem, q.Stem,
	)
	exclude := make(map[string]struct{}, len(q.Exclude))
	for _, p := range q.Exclude {
		if abs, err := filepath.Abs(p); err == nil {
			exclude[abs] = struct{}{}
		}
	}

	searched := make([]string, 0, len(patterns))
	for _, raw := range patterns {
		pattern := expand.Replace(raw)
		searched = append(searched, pattern)
		matches, err := match(root, pattern)
		if err != nil {
			return "", searched, err
		}
		for _, candidate := range matches {
			if l.accept(candidate, q.Since, exclude) {
				return candidate, searched, nil
			}
		}
	}
	return "", searched, nil
}

func (PatternLocator) accept(path string, since time.Time, exclude map[string]struct{}) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if _, skip := exclude[abs]; skip {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return since.IsZero() || !info.ModTime().Before(since)
}

func match(root, pattern string) ([]string, error) {
	if name, ok := strings.CutPrefix(pattern, "**/"); ok {
		return walkMatch(root, name)
	}
	matches, err := filepath.Glob(filepath.Join(root, filepath.FromSlash(pattern)))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func walkMatch(root, name string) ([]string, error) {
	if _, err := filepath.Match(name, ""); err != nil {
		return nil, err
	}
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(name, d.Name()); ok {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

// SnakeCase converts a PascalCase identifier to manim's directory naming:
// GeneratedScene becomes generated_scene and HTTPScene becomes http_scene.
func SnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}
	return cases.Lower(language.Und).String(b.String())
}
