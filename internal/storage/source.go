// Package storage fetches raw screenshot bytes from the places images live.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/Hyllesen/scamvenge-telegram-bot/internal/errors"
)

// DefaultMaxImageBytes caps a single download.
const DefaultMaxImageBytes int64 = 10 * 1024 * 1024

// ImageSource returns the encoded bytes of the image at ref.
type ImageSource interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
	// Accepts reports whether this source understands ref
	Accepts(ref string) bool
	Name() string
}

// Router dispatches a reference to the first source that accepts it.
type Router struct {
	sources []ImageSource
}

var _ ImageSource = (*Router)(nil)

// NewRouter creates a router; earlier sources take precedence
func NewRouter(sources ...ImageSource) *Router {
	kept := make([]ImageSource, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Router{sources: kept}
}

// Name returns the router name
func (r *Router) Name() string { return "router" }

// Accepts reports whether any source accepts ref
func (r *Router) Accepts(ref string) bool {
	return r.route(ref) != nil
}

// Fetch delegates to the accepting source
func (r *Router) Fetch(ctx context.Context, ref string) ([]byte, error) {
	src := r.route(ref)
	if src == nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("no image source accepts %q", ref), nil)
	}
	return src.Fetch(ctx, ref)
}

func (r *Router) route(ref string) ImageSource {
	for _, s := range r.sources {
		if s.Accepts(ref) {
			return s
		}
	}
	return nil
}

// readImage reads at most limit bytes and checks the payload sniffs as an image.
func readImage(body io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxImageBytes
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to read image body", err)
	}
	if int64(len(data)) > limit {
		return nil, apperrors.NewValidationError(fmt.Sprintf("image exceeds %d bytes", limit), nil)
	}
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("image is empty", nil)
	}
	if ct := http.DetectContentType(data); !strings.HasPrefix(ct, "image/") {
		return nil, apperrors.NewValidationError(fmt.Sprintf("content is %s, not an image", ct), nil)
	}
	return data, nil
}
