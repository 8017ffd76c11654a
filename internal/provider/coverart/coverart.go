// Package coverart looks up release-group artwork on the Cover Art Archive.
package coverart

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/loudcat/loudcat/internal/provider"
	"github.com/loudcat/loudcat/internal/provider/fetch"
)

// DefaultBaseURL is the public Cover Art Archive root.
const DefaultBaseURL = "https://coverartarchive.org"

// Adapter fetches artwork listings through the resilient fetcher.
type Adapter struct {
	fetcher *fetch.Client
	limiter *provider.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates a Cover Art Archive adapter with the default base URL.
func New(fetcher *fetch.Client, limiter *provider.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(fetcher, limiter, logger, DefaultBaseURL)
}

// NewWithBaseURL creates an adapter with a custom base URL (for testing).
func NewWithBaseURL(fetcher *fetch.Client, limiter *provider.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		fetcher: fetcher,
		limiter: limiter,
		logger:  logger.With(slog.String("provider", "coverart")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameCoverArt }

// ReleaseGroupArtwork returns the first listed image for a release group.
// It returns nil, nil when the listing has no images and *provider.ErrNotFound
// when the archive has no listing for the release group.
func (a *Adapter) ReleaseGroupArtwork(ctx context.Context, releaseGroupID string) (*provider.Artwork, error) {
	if err := a.limiter.Wait(ctx, provider.NameCoverArt); err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameCoverArt,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	reqURL := a.baseURL + "/release-group/" + url.PathEscape(releaseGroupID)
	a.logger.Debug("requesting", slog.String("url", reqURL))

	var resp releaseGroupResponse
	if err := a.fetcher.FetchJSON(ctx, reqURL, &resp); err != nil {
		if fetch.IsNotFound(err) {
			return nil, &provider.ErrNotFound{Provider: provider.NameCoverArt, ID: releaseGroupID}
		}
		return nil, fmt.Errorf("fetching cover art for %s: %w", releaseGroupID, err)
	}
	if len(resp.Images) == 0 {
		return nil, nil
	}

	img := resp.Images[0]
	return &provider.Artwork{
		Image:     img.Image,
		Thumbnail: img.Thumbnails.Small,
	}, nil
}
