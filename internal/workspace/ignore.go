package workspace

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// alwaysExcluded are never shown to the generator regardless of configuration.
var alwaysExcluded = []string{".git", ".tdd", "node_modules"}

// loadMatcher builds a matcher from the built-in exclusions, the configured
// patterns, and the project's root .gitignore when present.
func loadMatcher(root string, extra []string) (gitignore.Matcher, error) {
	var patterns []gitignore.Pattern
	for _, p := range alwaysExcluded {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	for _, p := range extra {
		if p = parseLine(p); p != "" {
			patterns = append(patterns, gitignore.ParsePattern(p, nil))
		}
	}

	fromFile, err := parseIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, p := range fromFile {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	return gitignore.NewMatcher(patterns), nil
}

func parseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if p := parseLine(scanner.Text()); p != "" {
			patterns = append(patterns, p)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

// parseLine returns the pattern on a gitignore line, or "" for blanks and comments.
func parseLine(line string) string {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}
	return line
}
