package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loudcat/loudcat/internal/provider"
)

// AlbumSearcher searches the secondary catalog for albums.
type AlbumSearcher interface {
	SearchAlbums(ctx context.Context, term string, limit int) ([]provider.AlbumCandidate, error)
}

// EnrichReport summarizes one enrichment pass.
type EnrichReport struct {
	Matched  int  `json:"matched"`
	Total    int  `json:"total"`
	Canceled bool `json:"canceled,omitempty"`
}

func (r EnrichReport) String() string {
	return fmt.Sprintf("%d/%d", r.Matched, r.Total)
}

// Matcher attaches secondary-catalog identifiers to release entries.
type Matcher struct {
	catalog AlbumSearcher
	pacer   Pacer
	config  MatchConfig
	logger  *slog.Logger
}

// NewMatcher creates a matcher. A nil pacer means FixedDelay at the default interval.
func NewMatcher(catalog AlbumSearcher, pacer Pacer, config MatchConfig, logger *slog.Logger) *Matcher {
	defaults := DefaultMatchConfig()
	if config.MaxAlbums <= 0 {
		config.MaxAlbums = defaults.MaxAlbums
	}
	if config.CandidateLimit <= 0 {
		config.CandidateLimit = defaults.CandidateLimit
	}
	if config.Policy == "" {
		config.Policy = defaults.Policy
	}
	if pacer == nil {
		pacer = FixedDelay{Interval: DefaultPaceInterval}
	}
	return &Matcher{
		catalog: catalog,
		pacer:   pacer,
		config:  config,
		logger:  logger.With(slog.String("component", "matcher")),
	}
}

// EnrichAlbums returns a copy of albums with matches attached.
func (m *Matcher) EnrichAlbums(ctx context.Context, albums []ReleaseEntry, artistName string) []ReleaseEntry {
	out, _ := m.EnrichAlbumsReport(ctx, albums, artistName)
	return out
}

// EnrichAlbumsReport is EnrichAlbums plus a match summary. Only the first
// MaxAlbums entries are queried, in order; the rest are copied with
// IsClickable recomputed from CollectionID.
// Per-album failures count as no match. Cancellation stops the pass and the
// unvisited entries are copied unchanged.
func (m *Matcher) EnrichAlbumsReport(ctx context.Context, albums []ReleaseEntry, artistName string) ([]ReleaseEntry, EnrichReport) {
	out := make([]ReleaseEntry, len(albums))
	copy(out, albums)
	for i := range out {
		out[i].normalize()
	}

	limit := min(len(out), m.config.MaxAlbums)
	report := EnrichReport{Total: limit}

	for i := 0; i < limit; i++ {
		if err := m.pacer.Wait(ctx, i); err != nil {
			report.Canceled = true
			break
		}

		candidate, ok, err := m.matchOne(ctx, out[i], artistName)
		if err != nil {
			if ctx.Err() != nil {
				report.Canceled = true
				break
			}
			m.logger.Warn("album match failed",
				slog.String("album_id", out[i].ID),
				slog.String("title", out[i].Title),
				slog.String("artist", artistName),
				slog.String("error", err.Error()))
			continue
		}
		if ok {
			out[i].attach(candidate.CollectionID)
		}
	}

	for i := 0; i < limit; i++ {
		if out[i].Matched() {
			report.Matched++
		}
	}

	m.logger.Info("album enrichment finished",
		slog.String("artist", artistName),
		slog.String("matched", report.String()),
		slog.Bool("canceled", report.Canceled))

	return out, report
}

func (m *Matcher) matchOne(ctx context.Context, entry ReleaseEntry, artistName string) (provider.AlbumCandidate, bool, error) {
	term := strings.TrimSpace(entry.Title + " " + artistName)
	candidates, err := m.catalog.SearchAlbums(ctx, term, m.config.CandidateLimit)
	if err != nil {
		return provider.AlbumCandidate{}, false, err
	}
	c, ok := m.config.Policy.pick(entry.Title, candidates)
	return c, ok, nil
}
