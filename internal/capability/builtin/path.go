package builtin

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Path returns slash-separated path helpers. Nothing here touches a filesystem.
func Path() map[string]any {
	return map[string]any{
		"join": func(parts ...string) string {
			return path.Join(parts...)
		},
		"normalize": func(p string) string {
			return path.Clean(p)
		},
		"dirname": func(p string) string {
			return path.Dir(p)
		},
		"basename": func(p string, ext ...string) string {
			base := path.Base(p)
			if len(ext) > 0 && ext[0] != "" {
				base = strings.TrimSuffix(base, ext[0])
			}
			return base
		},
		"extname": func(p string) string {
			return path.Ext(p)
		},
		"isAbsolute": func(p string) bool {
			return path.IsAbs(p)
		},
		"split": func(p string) []string {
			dir, file := path.Split(p)
			return []string{dir, file}
		},
		"relative": relativePath,
		"match":    matchPath,
	}
}

// relativePath returns `to` relative to `from`
func relativePath(from, to string) (string, error) {
	rel, err := filepath.Rel(filepath.FromSlash(path.Clean(from)), filepath.FromSlash(path.Clean(to)))
	if err != nil {
		return "", fmt.Errorf("cannot make %s relative to %s: %w", to, from, err)
	}
	return filepath.ToSlash(rel), nil
}

// matchPath reports whether name matches a doublestar glob pattern
func matchPath(pattern, name string) (bool, error) {
	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		return false, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return ok, nil
}
