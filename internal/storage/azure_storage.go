package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	apperrors "github.com/Hyllesen/scamvenge-telegram-bot/internal/errors"
)

// AzureImageSource downloads screenshots from Azure Blob Storage.
type AzureImageSource struct {
	client      *azblob.Client
	accountHost string
	maxBytes    int64
}

var _ ImageSource = (*AzureImageSource)(nil)

// NewAzureImageSource authenticates with a shared account key
func NewAzureImageSource(accountName, accountKey string, maxBytes int64) (*AzureImageSource, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	host := fmt.Sprintf("%s.blob.core.windows.net", accountName)
	client, err := azblob.NewClientWithSharedKeyCredential("https://"+host, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure blob client: %w", err)
	}

	return &AzureImageSource{client: client, accountHost: host, maxBytes: maxBytes}, nil
}

// Name returns the source name
func (s *AzureImageSource) Name() string { return "azure" }

// Accepts blob URLs of the configured account
func (s *AzureImageSource) Accepts(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, s.accountHost)
}

// Fetch downloads the blob
func (s *AzureImageSource) Fetch(ctx context.Context, blobURL string) ([]byte, error) {
	containerName, blobName, err := ParseBlobURL(blobURL)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid blob URL", err)
	}

	resp, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewTimeoutError("blob download cancelled", err)
		}
		return nil, apperrors.NewNetworkError("blob download failed", err)
	}
	defer resp.Body.Close()

	return readImage(resp.Body, s.maxBytes)
}

// ParseBlobURL splits a blob URL into container and blob name. Both
// https://acct.blob.core.windows.net/container/path/name.png and the legacy
// https://acct.blob.core.windows.net/container?blob=path/name.png forms are accepted.
func ParseBlobURL(blobURL string) (container, blob string, err error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return "", "", err
	}

	path := strings.Trim(u.Path, "/")
	if path == "" {
		return "", "", fmt.Errorf("blob URL %q has no container", blobURL)
	}

	if q := u.Query().Get("blob"); q != "" {
		return path, q, nil
	}

	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("blob URL %q has no blob name", blobURL)
	}
	return parts[0], parts[1], nil
}
