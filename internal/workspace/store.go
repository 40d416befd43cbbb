// Package workspace reads, writes, and lists files under a project root.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned by Read when the file does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrOutsideRoot is returned when a path resolves outside the project root.
	ErrOutsideRoot = errors.New("path escapes project root")
)

// EmptyListing is what Listing returns for a project with no visible files.
const EmptyListing = "(empty project)"

// Store is the file gateway for one project root.
type Store struct {
	root    string
	exclude []string
}

// NewStore creates a Store rooted at root. Exclude holds additional
// gitignore-style patterns hidden from List.
func NewStore(root string, exclude []string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	return &Store{root: abs, exclude: exclude}, nil
}

// Root returns the absolute project root.
func (s *Store) Root() string {
	return s.root
}

// Resolve maps a project-relative (or absolute) path to an absolute path
// inside the root. Paths that escape the root return ErrOutsideRoot.
func (s *Store) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("empty path")
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(s.root, path)
	}
	full = filepath.Clean(full)

	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}
	return full, nil
}

// Read returns the contents of path.
func (s *Store) Read(path string) (string, error) {
	full, err := s.Resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// Write replaces the contents of path, creating parent directories as needed.
func (s *Store) Write(path, content string) error {
	full, err := s.Resolve(path)
	if err != nil {
		return err
	}
	if err := WriteAtomic(full, []byte(content)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// List returns every visible file as a sorted slash-separated path relative
// to the root. Excluded directories are not descended into.
func (s *Store) List() ([]string, error) {
	matcher, err := loadMatcher(s.root, s.exclude)
	if err != nil {
		return nil, fmt.Errorf("loading ignore patterns: %w", err)
	}

	var files []string
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == s.root {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if matcher.Match(parts, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.root, err)
	}

	sort.Strings(files)
	return files, nil
}

// Listing renders paths one per line, or EmptyListing when there are none.
func Listing(paths []string) string {
	if len(paths) == 0 {
		return EmptyListing
	}
	return strings.Join(paths, "\n")
}
