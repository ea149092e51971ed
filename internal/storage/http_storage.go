package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/Hyllesen/scamvenge-telegram-bot/internal/errors"
)

const maxFetchAttempts = 3

// HTTPImageSource downloads images over HTTP(S) with retries on transient failures.
type HTTPImageSource struct {
	client     *http.Client
	maxBytes   int64
	retryDelay time.Duration
}

var _ ImageSource = (*HTTPImageSource)(nil)

// NewHTTPImageSource creates an HTTP image source
func NewHTTPImageSource(timeout time.Duration, maxBytes int64) *HTTPImageSource {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPImageSource{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxBytes:   maxBytes,
		retryDelay: time.Second,
	}
}

// Name returns the source name
func (h *HTTPImageSource) Name() string { return "http" }

// Accepts http and https URLs
func (h *HTTPImageSource) Accepts(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// Fetch downloads the image, retrying 5xx and transport errors
func (h *HTTPImageSource) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		data, retryable, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable || attempt == maxFetchAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, apperrors.NewTimeoutError("image fetch cancelled", ctx.Err())
		case <-time.After(time.Duration(attempt+1) * h.retryDelay):
		}
	}

	if appErr, ok := apperrors.As(lastErr); ok && appErr.Type != apperrors.ErrorTypeNetwork {
		return nil, lastErr
	}
	return nil, apperrors.NewNetworkError(
		fmt.Sprintf("failed to fetch image after %d attempts", maxFetchAttempts), lastErr)
}

func (h *HTTPImageSource) fetchOnce(ctx context.Context, imageURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, false, apperrors.NewValidationError("invalid image URL", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "scamvenge-store-dedup/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, apperrors.NewTimeoutError("image fetch cancelled", err)
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err := readImage(resp.Body, h.maxBytes)
	return data, false, err
}
