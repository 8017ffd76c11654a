package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/loudcat/loudcat/internal/provider"
)

// Display-only follower count range. Not sourced from any upstream.
const (
	minFans   = 5000
	fansRange = 500000
)

// Relation types kept in ArtistProfile.Links.
var linkRelationTypes = map[string]bool{
	"official homepage": true,
	"social network":    true,
}

// ArtistGetter fetches an artist with relations and discography inline.
type ArtistGetter interface {
	GetArtist(ctx context.Context, id string) (*provider.ArtistDetail, error)
}

// ArtworkSource looks up cover art for a release group. A nil result with a
// nil error means the release group has no images.
type ArtworkSource interface {
	ReleaseGroupArtwork(ctx context.Context, releaseGroupID string) (*provider.Artwork, error)
}

// ProfileFetcher loads and normalizes an artist profile. Albums come back
// unmatched; enrichment is a separate step.
type ProfileFetcher struct {
	artists     ArtistGetter
	artwork     ArtworkSource
	placeholder string
	fans        func() int
	logger      *slog.Logger
}

// NewProfileFetcher creates a ProfileFetcher. artwork may be nil, in which
// case every profile uses the placeholder picture.
func NewProfileFetcher(artists ArtistGetter, artwork ArtworkSource, placeholder string, logger *slog.Logger) *ProfileFetcher {
	if placeholder == "" {
		placeholder = DefaultPlaceholderArt
	}
	return &ProfileFetcher{
		artists:     artists,
		artwork:     artwork,
		placeholder: placeholder,
		fans:        randomFans,
		logger:      logger.With(slog.String("component", "profile")),
	}
}

// Fetch retrieves artist detail, resolves the artist picture from the first
// release group, and normalizes both into an ArtistProfile.
func (f *ProfileFetcher) Fetch(ctx context.Context, artistID string) (*ArtistProfile, error) {
	detail, err := f.artists.GetArtist(ctx, artistID)
	if err != nil {
		var nf *provider.ErrNotFound
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("%w: %s", ErrArtistNotFound, artistID)
		}
		return nil, fmt.Errorf("loading profile %s: %w", artistID, err)
	}
	if detail == nil {
		detail = &provider.ArtistDetail{ID: artistID}
	}

	picture := f.picture(ctx, detail)
	return f.normalize(artistID, detail, picture), nil
}

// picture returns the first release group's artwork URL or the placeholder.
// Lookup failures are logged and never returned.
func (f *ProfileFetcher) picture(ctx context.Context, detail *provider.ArtistDetail) string {
	if f.artwork == nil || len(detail.ReleaseGroups) == 0 || detail.ReleaseGroups[0].ID == "" {
		return f.placeholder
	}

	rgID := detail.ReleaseGroups[0].ID
	art, err := f.artwork.ReleaseGroupArtwork(ctx, rgID)
	var nf *provider.ErrNotFound
	if errors.As(err, &nf) {
		f.logger.Debug("no cover art listing, using placeholder",
			slog.String("artist_id", detail.ID),
			slog.String("release_group_id", rgID))
		return f.placeholder
	}
	if err != nil {
		f.logger.Warn("cover art lookup failed, using placeholder",
			slog.String("artist_id", detail.ID),
			slog.String("release_group_id", rgID),
			slog.String("error", err.Error()))
		return f.placeholder
	}
	if u := art.URL(); u != "" {
		return u
	}
	return f.placeholder
}

func (f *ProfileFetcher) normalize(requestedID string, d *provider.ArtistDetail, picture string) *ArtistProfile {
	p := &ArtistProfile{
		ID:             orDefault(d.ID, requestedID),
		Name:           orDefault(d.Name, DefaultName),
		Country:        orDefault(d.Country, DefaultCountry),
		Type:           orDefault(d.Type, DefaultType),
		Disambiguation: d.Disambiguation,
		Picture:        picture,
		Fans:           f.fans(),
		Links:          []string{},
		Albums:         make([]ReleaseEntry, 0, len(d.ReleaseGroups)),
	}

	for _, rel := range d.Relations {
		if linkRelationTypes[rel.Type] && rel.Resource != "" {
			p.Links = append(p.Links, rel.Resource)
		}
	}

	for _, rg := range d.ReleaseGroups {
		p.Albums = append(p.Albums, ReleaseEntry{
			ID:    rg.ID,
			Title: rg.Title,
			Type:  orDefault(rg.PrimaryType, DefaultReleaseType),
			Date:  orDefault(rg.FirstReleaseDate, UnknownDate),
			Cover: picture,
		})
	}

	return p
}

func randomFans() int {
	return minFans + rand.IntN(fansRange)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
