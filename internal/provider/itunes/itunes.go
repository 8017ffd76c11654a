// Package itunes searches the iTunes catalog for albums.
package itunes

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/loudcat/loudcat/internal/provider"
	"github.com/loudcat/loudcat/internal/provider/fetch"
)

// DefaultBaseURL is the public iTunes Search API root.
const DefaultBaseURL = "https://itunes.apple.com"

// Adapter implements album search against the iTunes Search API.
// No authentication is required.
type Adapter struct {
	fetcher *fetch.Client
	limiter *provider.RateLimiterMap
	logger  *slog.Logger
	baseURL string
	country string
}

// New creates an iTunes adapter with the default base URL.
func New(fetcher *fetch.Client, limiter *provider.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(fetcher, limiter, logger, DefaultBaseURL)
}

// NewWithBaseURL creates an iTunes adapter with a custom base URL (for testing).
func NewWithBaseURL(fetcher *fetch.Client, limiter *provider.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		fetcher: fetcher,
		limiter: limiter,
		logger:  logger.With(slog.String("provider", "itunes")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// SetCountry restricts searches to one storefront (ISO country code).
func (a *Adapter) SetCountry(country string) {
	a.country = strings.ToUpper(strings.TrimSpace(country))
}

// Name returns the provider identifier.
func (a *Adapter) Name() provider.ProviderName { return provider.NameITunes }

// SearchAlbums returns album candidates for term in upstream order.
// Non-collection results are skipped.
func (a *Adapter) SearchAlbums(ctx context.Context, term string, limit int) ([]provider.AlbumCandidate, error) {
	if strings.TrimSpace(term) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 1
	}

	if err := a.limiter.Wait(ctx, provider.NameITunes); err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameITunes,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	params := url.Values{
		"term":   {term},
		"entity": {"album"},
		"limit":  {strconv.Itoa(limit)},
	}
	if a.country != "" {
		params.Set("country", a.country)
	}
	reqURL := a.baseURL + "/search?" + params.Encode()

	var resp searchResponse
	if err := a.fetcher.FetchJSON(ctx, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("searching albums %q: %w", term, err)
	}

	candidates := make([]provider.AlbumCandidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.CollectionID == 0 {
			continue
		}
		candidates = append(candidates, provider.AlbumCandidate{
			CollectionID:   r.CollectionID,
			CollectionName: r.CollectionName,
			ArtistName:     r.ArtistName,
		})
	}

	a.logger.Debug("album search completed",
		slog.String("term", term),
		slog.Int("results", len(candidates)))

	return candidates, nil
}

// TestConnection verifies connectivity to the iTunes Search API.
func (a *Adapter) TestConnection(ctx context.Context) error {
	_, err := a.SearchAlbums(ctx, "test", 1)
	return err
}
