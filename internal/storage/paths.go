package storage

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrInvalidPath is returned for relative paths that are absolute or climb out with "..".
	ErrInvalidPath = errors.New("invalid relative path")
	// ErrOutsideRoot is returned when a resolved path escapes the user's storage root.
	ErrOutsideRoot = errors.New("path escapes storage root")
)

// Paths maps user relative paths onto the storage tree. Each user owns the
// directory <root>/<user id>.
type Paths struct {
	root string
}

func NewPaths(root string) *Paths {
	return &Paths{root: filepath.Clean(root)}
}

func (p *Paths) Root() string {
	return p.root
}

func (p *Paths) UserRoot(userID uint) string {
	return filepath.Join(p.root, strconv.FormatUint(uint64(userID), 10))
}

// CleanRelative normalises a user supplied relative path to slash form.
func CleanRelative(rel string) (string, error) {
	rel = strings.TrimSpace(strings.ReplaceAll(rel, "\\", "/"))
	if strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidPath, rel)
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
		}
	}

	cleaned := path.Clean("/" + rel)
	return strings.TrimPrefix(cleaned, "/"), nil
}

// Resolve returns the absolute path of rel inside the user's storage root.
func (p *Paths) Resolve(userID uint, rel string) (string, error) {
	cleaned, err := CleanRelative(rel)
	if err != nil {
		return "", err
	}

	userRoot := p.UserRoot(userID)
	abs := filepath.Join(userRoot, filepath.FromSlash(cleaned))
	if abs != userRoot && !strings.HasPrefix(abs, userRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, rel)
	}

	return abs, nil
}

// Key returns the blob key of rel, relative to the storage root.
func (p *Paths) Key(userID uint, rel string) (string, error) {
	cleaned, err := CleanRelative(rel)
	if err != nil {
		return "", err
	}
	if cleaned == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	return path.Join(strconv.FormatUint(uint64(userID), 10), cleaned), nil
}

// KeyOf returns the blob key of an absolute path under the storage root.
func (p *Paths) KeyOf(abs string) (string, bool) {
	rel, err := filepath.Rel(p.root, filepath.Clean(abs))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
