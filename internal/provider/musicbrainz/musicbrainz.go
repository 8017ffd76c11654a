package musicbrainz

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

// DefaultBaseURL is the public MusicBrainz web service root.
const DefaultBaseURL = "https://musicbrainz.org/ws/2"

// Adapter talks to the MusicBrainz web service through the resilient fetcher.
type Adapter struct {
	fetcher *fetch.Client
	limiter *provider.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates a MusicBrainz adapter with the default base URL.
func New(fetcher *fetch.Client, limiter *provider.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(fetcher, limiter, logger, DefaultBaseURL)
}

// NewWithBaseURL creates a MusicBrainz adapter with a custom base URL (for testing).
func NewWithBaseURL(fetcher *fetch.Client, limiter *provider.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		fetcher: fetcher,
		limiter: limiter,
		logger:  logger.With(slog.String("provider", "musicbrainz")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameMusicBrainz }

// SearchArtist searches MusicBrainz for artists matching name, returning at
// most limit hits in upstream order.
func (a *Adapter) SearchArtist(ctx context.Context, name string, limit int) ([]provider.ArtistSearchResult, error) {
	if limit <= 0 {
		limit = 1
	}
	params := url.Values{
		"query": {name},
		"limit": {strconv.Itoa(limit)},
		"fmt":   {"json"},
	}
	reqURL := a.baseURL + "/artist?" + params.Encode()

	var resp SearchResponse
	if err := a.doRequest(ctx, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("searching artist %q: %w", name, err)
	}

	results := make([]provider.ArtistSearchResult, 0, len(resp.Artists))
	for _, mb := range resp.Artists {
		results = append(results, provider.ArtistSearchResult{
			ProviderID:     mb.ID,
			Name:           mb.Name,
			Type:           mb.Type,
			Country:        mb.Country,
			Disambiguation: mb.Disambiguation,
			Score:          mb.Score,
		})
	}

	a.logger.Debug("artist search completed",
		slog.String("query", name),
		slog.Int("results", len(results)))

	return results, nil
}

// GetArtist fetches an artist with URL relations and release groups inline.
func (a *Adapter) GetArtist(ctx context.Context, mbid string) (*provider.ArtistDetail, error) {
	reqURL := a.baseURL + "/artist/" + url.PathEscape(mbid) + "?fmt=json&inc=url-rels+release-groups"

	var mb MBArtist
	if err := a.doRequest(ctx, reqURL, &mb); err != nil {
		if fetch.IsNotFound(err) {
			return nil, &provider.ErrNotFound{Provider: provider.NameMusicBrainz, ID: mbid}
		}
		return nil, fmt.Errorf("fetching artist %s: %w", mbid, err)
	}

	return mapArtist(&mb), nil
}

// TestConnection verifies connectivity to the MusicBrainz API.
func (a *Adapter) TestConnection(ctx context.Context) error {
	_, err := a.SearchArtist(ctx, "test", 1)
	return err
}

// doRequest waits for the MusicBrainz limiter and fetches reqURL into v.
func (a *Adapter) doRequest(ctx context.Context, reqURL string, v any) error {
	if err := a.limiter.Wait(ctx, provider.NameMusicBrainz); err != nil {
		return &provider.ErrProviderUnavailable{
			Provider: provider.NameMusicBrainz,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	a.logger.Debug("requesting", slog.String("url", reqURL))
	return a.fetcher.FetchJSON(ctx, reqURL, v)
}

// mapArtist copies the MusicBrainz record into the provider-neutral shape.
func mapArtist(mb *MBArtist) *provider.ArtistDetail {
	detail := &provider.ArtistDetail{
		ID:             mb.ID,
		Name:           mb.Name,
		Country:        mb.Country,
		Type:           mb.Type,
		Disambiguation: mb.Disambiguation,
	}

	for _, rel := range mb.Relations {
		r := provider.Relation{Type: rel.Type}
		if rel.URL != nil {
			r.Resource = rel.URL.Resource
		}
		detail.Relations = append(detail.Relations, r)
	}

	for _, rg := range mb.ReleaseGroups {
		detail.ReleaseGroups = append(detail.ReleaseGroups, provider.ReleaseGroup{
			ID:               rg.ID,
			Title:            rg.Title,
			PrimaryType:      rg.PrimaryType,
			FirstReleaseDate: rg.FirstReleaseDate,
		})
	}

	return detail
}
