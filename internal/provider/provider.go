package provider

import (
	"fmt"
	"time"
)

// ProviderName uniquely identifies an upstream catalog.
type ProviderName string

// Known provider names.
const (
	NameMusicBrainz ProviderName = "musicbrainz"
	NameCoverArt    ProviderName = "coverart"
	NameITunes      ProviderName = "itunes"
)

// AllProviderNames returns all known provider names in display order.
func AllProviderNames() []ProviderName {
	return []ProviderName{
		NameMusicBrainz,
		NameCoverArt,
		NameITunes,
	}
}

// DisplayName returns a human-readable name for the provider.
func (n ProviderName) DisplayName() string {
	switch n {
	case NameMusicBrainz:
		return "MusicBrainz"
	case NameCoverArt:
		return "Cover Art Archive"
	case NameITunes:
		return "iTunes"
	default:
		return string(n)
	}
}

// ArtistSearchResult represents a single artist search hit from the primary catalog.
type ArtistSearchResult struct {
	ProviderID     string `json:"provider_id"`
	Name           string `json:"name"`
	Type           string `json:"type,omitempty"`
	Country        string `json:"country,omitempty"`
	Disambiguation string `json:"disambiguation,omitempty"`
	Score          int    `json:"score"`
}

// Relation is a URL relation attached to an artist.
type Relation struct {
	Type     string `json:"type"`
	Resource string `json:"resource,omitempty"`
}

// ReleaseGroup is one entry of an artist's discography as reported upstream.
// Empty strings mean the field was absent.
type ReleaseGroup struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	PrimaryType      string `json:"primary_type,omitempty"`
	FirstReleaseDate string `json:"first_release_date,omitempty"`
}

// ArtistDetail is the raw artist record with relations and discography inline.
// Fields are copied verbatim; defaults are applied by the caller.
type ArtistDetail struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Country        string         `json:"country,omitempty"`
	Type           string         `json:"type,omitempty"`
	Disambiguation string         `json:"disambiguation,omitempty"`
	Relations      []Relation     `json:"relations,omitempty"`
	ReleaseGroups  []ReleaseGroup `json:"release_groups,omitempty"`
}

// Artwork is a single cover image with an optional small thumbnail.
type Artwork struct {
	Image     string `json:"image,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// URL returns the preferred display URL: the small thumbnail, else the full image.
func (a *Artwork) URL() string {
	if a == nil {
		return ""
	}
	if a.Thumbnail != "" {
		return a.Thumbnail
	}
	return a.Image
}

// AlbumCandidate is one album hit from the secondary catalog.
type AlbumCandidate struct {
	CollectionID   int64  `json:"collection_id"`
	CollectionName string `json:"collection_name"`
	ArtistName     string `json:"artist_name"`
}

// ErrProviderUnavailable indicates a transient failure (rate-limited, timeout, server error).
type ErrProviderUnavailable struct {
	Provider   ProviderName
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrProviderUnavailable) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Cause)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the provider has no data for the requested ID.
type ErrNotFound struct {
	Provider ProviderName
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("provider %s: %s not found", e.Provider, e.ID)
}
