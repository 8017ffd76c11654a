package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loudcat/loudcat/internal/provider"
)

// ArtistSearcher searches the primary catalog by name.
type ArtistSearcher interface {
	SearchArtist(ctx context.Context, name string, limit int) ([]provider.ArtistSearchResult, error)
}

// Resolver maps a free-text artist name to a primary-catalog identifier.
type Resolver struct {
	catalog ArtistSearcher
	logger  *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(catalog ArtistSearcher, logger *slog.Logger) *Resolver {
	return &Resolver{
		catalog: catalog,
		logger:  logger.With(slog.String("component", "resolver")),
	}
}

// Resolve returns the first search hit for name verbatim. The caller must
// pass a non-empty name.
func (r *Resolver) Resolve(ctx context.Context, name string) (ResolvedArtist, error) {
	hits, err := r.catalog.SearchArtist(ctx, name, 1)
	if err != nil {
		return ResolvedArtist{}, fmt.Errorf("resolving %q: %w", name, err)
	}
	if len(hits) == 0 {
		r.logger.Info("no artist candidate", slog.String("query", name))
		return ResolvedArtist{}, fmt.Errorf("%w: %q", ErrArtistNotFound, name)
	}

	hit := hits[0]
	r.logger.Debug("artist resolved",
		slog.String("query", name),
		slog.String("artist_id", hit.ProviderID),
		slog.String("artist_name", hit.Name))

	return ResolvedArtist{ID: hit.ProviderID, Name: hit.Name}, nil
}
