package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/Hyllesen/scamvenge-telegram-bot/internal/errors"
)

// LocalImageSource reads images from a directory on disk. References are
// file:// URLs or paths; both must resolve inside root.
type LocalImageSource struct {
	root     string
	maxBytes int64
}

var _ ImageSource = (*LocalImageSource)(nil)

// NewLocalImageSource creates a source confined to root
func NewLocalImageSource(root string, maxBytes int64) (*LocalImageSource, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve image root %s: %w", root, err)
	}
	return &LocalImageSource{root: abs, maxBytes: maxBytes}, nil
}

// Name returns the source name
func (s *LocalImageSource) Name() string { return "local" }

// Accepts file:// references and paths without a URL scheme
func (s *LocalImageSource) Accepts(ref string) bool {
	if strings.HasPrefix(ref, "file://") {
		return true
	}
	return ref != "" && !strings.Contains(ref, "://")
}

// Resolve maps a reference to an absolute path inside root.
func (s *LocalImageSource) Resolve(ref string) (string, error) {
	p := strings.TrimPrefix(ref, "file://")
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	p = filepath.Clean(p)

	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside %s", ref, s.root)
	}
	return p, nil
}

// Fetch reads the file
func (s *LocalImageSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("image read cancelled", err)
	}

	path, err := s.Resolve(ref)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid image path", err)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewValidationError("image file not found", err)
		}
		return nil, apperrors.NewInternalError("failed to open image file", err)
	}
	defer f.Close()

	return readImage(f, s.maxBytes)
}
