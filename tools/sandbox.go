// Sandbox - read-only filesystem access scoped to named roots.
//
// Information Hiding:
// - Root directory locations hidden behind logical names
// - Path cleaning and escape detection hidden
// - No write operation is exposed

package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Root names one of the directories tools may read from.
type Root string

const (
	RootActivity Root = "activity"
	RootSummary  Root = "summary"
	RootContext  Root = "context"
)

// RootNames lists the valid roots in declaration order.
var RootNames = []string{string(RootActivity), string(RootSummary), string(RootContext)}

// DefaultMaxFileSize is the largest file ReadFile returns.
const DefaultMaxFileSize = 1024 * 1024 // 1MB

var (
	// ErrUnknownRoot is returned for a root name the sandbox does not hold.
	ErrUnknownRoot = errors.New("unknown directory")

	// ErrOutsideRoot is returned for paths that escape their root.
	ErrOutsideRoot = errors.New("path escapes directory")

	// ErrFileTooLarge is returned when a file exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// Sandbox gives tools read access to the activity, summary and context
// directories and nothing else. It holds no mutable state and may be shared.
type Sandbox struct {
	roots       map[Root]string
	maxFileSize int64
}

// NewSandbox creates a sandbox over the three directories. An empty path
// leaves that root unavailable.
func NewSandbox(activityDir, summaryDir, contextDir string) *Sandbox {
	roots := make(map[Root]string, 3)
	for root, dir := range map[Root]string{
		RootActivity: activityDir,
		RootSummary:  summaryDir,
		RootContext:  contextDir,
	} {
		if dir == "" {
			continue
		}
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		roots[root] = filepath.Clean(dir)
	}
	return &Sandbox{roots: roots, maxFileSize: DefaultMaxFileSize}
}

// WithMaxFileSize overrides the ReadFile size limit.
func (s *Sandbox) WithMaxFileSize(n int64) *Sandbox {
	s.maxFileSize = n
	return s
}

// Dir returns the absolute directory behind a root.
func (s *Sandbox) Dir(root Root) (string, error) {
	dir, ok := s.roots[root]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRoot, root)
	}
	return dir, nil
}

// Resolve maps a root-relative path to an absolute path inside the root.
func (s *Sandbox) Resolve(root Root, rel string) (string, error) {
	base, err := s.Dir(root)
	if err != nil {
		return "", err
	}

	if filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}

	full := filepath.Join(base, filepath.FromSlash(rel))
	if !within(base, full) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}

	// A symlink inside the root may still point outside it.
	if target, err := filepath.EvalSymlinks(full); err == nil {
		realBase, baseErr := filepath.EvalSymlinks(base)
		if baseErr == nil && !within(realBase, target) {
			return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
		}
	}

	return full, nil
}

func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Exists reports whether a path exists inside the root.
func (s *Sandbox) Exists(root Root, rel string) (bool, error) {
	full, err := s.Resolve(root, rel)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReadFile returns the text of a file inside the root.
func (s *Sandbox) ReadFile(root Root, rel string) (string, error) {
	full, err := s.Resolve(root, rel)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(full)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", rel)
	}
	if info.Size() > s.maxFileSize {
		return "", fmt.Errorf("%w: %d bytes (max: %d bytes)", ErrFileTooLarge, info.Size(), s.maxFileSize)
	}

	content, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// ListFiles returns the names of regular files in one directory, sorted.
func (s *Sandbox) ListFiles(root Root, rel string) ([]string, error) {
	full, err := s.Resolve(root, rel)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Walk visits every regular file below rel whose path, relative to rel,
// matches the doublestar pattern. fn receives the path relative to the
// root, slash-separated. Hidden directories are skipped.
func (s *Sandbox) Walk(ctx context.Context, root Root, rel, pattern string, fn func(path string) error) error {
	base, err := s.Dir(root)
	if err != nil {
		return err
	}
	searchDir, err := s.Resolve(root, rel)
	if err != nil {
		return err
	}
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid pattern: %s", pattern)
	}

	return filepath.WalkDir(searchDir, func(path string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == searchDir {
				return err
			}
			if errors.Is(err, fs.ErrPermission) {
				return filepath.SkipDir
			}
			return nil
		}

		if entry.IsDir() {
			if path != searchDir && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		fromSearch, err := filepath.Rel(searchDir, path)
		if err != nil {
			return nil
		}
		matched, _ := doublestar.Match(pattern, filepath.ToSlash(fromSearch))
		if !matched {
			return nil
		}

		fromRoot, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		return fn(filepath.ToSlash(fromRoot))
	})
}
