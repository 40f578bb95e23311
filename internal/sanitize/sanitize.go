// Package sanitize validates paths and identifiers supplied by agents before
// they are used as storage keys or filesystem lookups. Every function is
// total: any input yields either a normalized value or a typed error.
package sanitize

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	ErrInvalidPath       = errors.New("invalid path")
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

const (
	maxPathLen       = 512
	maxIdentifierLen = 100
)

// NormalizePath validates a repository-relative path from an untrusted
// caller. Absolute paths, traversal segments and control characters are
// rejected; the returned path is cleaned and always resolves inside the
// repository root.
func NormalizePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	if len(p) > maxPathLen {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidPath, maxPathLen)
	}
	if hasControlChars(p) {
		return "", fmt.Errorf("%w: control characters", ErrInvalidPath)
	}
	// Windows-style separators and drive letters never name repository files.
	if strings.ContainsRune(p, '\\') || strings.Contains(p, ":") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	if path.IsAbs(p) {
		return "", fmt.Errorf("%w: absolute path %q", ErrInvalidPath, p)
	}

	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: escapes root: %q", ErrInvalidPath, p)
	}
	if cleaned == "." {
		return "", fmt.Errorf("%w: empty after normalization: %q", ErrInvalidPath, p)
	}
	return cleaned, nil
}

// NormalizeIdentifier validates an entity or queue key such as "pr/42".
// One optional slash separates the entity type from the id; everything else
// must be word characters, dots or dashes.
func NormalizeIdentifier(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	if len(id) > maxIdentifierLen {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidIdentifier, maxIdentifierLen)
	}
	if hasControlChars(id) {
		return "", fmt.Errorf("%w: control characters", ErrInvalidIdentifier)
	}
	if strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: traversal sequence in %q", ErrInvalidIdentifier, id)
	}
	if strings.HasPrefix(id, "/") || strings.ContainsRune(id, '\\') {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '/', r == '_', r == '-', r == '.':
		default:
			return "", fmt.Errorf("%w: character %q in %q", ErrInvalidIdentifier, r, id)
		}
	}
	return id, nil
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}
