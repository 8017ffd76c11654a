// Package discovery resolves an artist against the primary catalog, builds
// the artist profile, and enriches its discography against the secondary
// catalog.
package discovery

import "errors"

// Normalization defaults for fields missing upstream.
const (
	DefaultName           = "Unknown"
	DefaultCountry        = "Unknown"
	DefaultType           = "N/A"
	DefaultReleaseType    = "Album"
	UnknownDate           = "unknown"
	DefaultPlaceholderArt = "/static/img/placeholder-artist.svg"
)

var (
	// ErrInvalidInput is returned for an empty artist name.
	ErrInvalidInput = errors.New("artist name is required")
	// ErrArtistNotFound is returned when the primary catalog has no candidate.
	ErrArtistNotFound = errors.New("artist not found")
)

// Session exposes the signed-in identity, if any, of the caller.
type Session interface {
	CurrentUserID() (string, bool)
}

// ResolvedArtist is the primary catalog's minimal search hit.
type ResolvedArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ArtistProfile is the assembled artist view-model.
type ArtistProfile struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Country        string         `json:"country"`
	Type           string         `json:"type"`
	Disambiguation string         `json:"disambiguation"`
	Picture        string         `json:"picture"`
	Fans           int            `json:"fans"`
	Links          []string       `json:"links"`
	Albums         []ReleaseEntry `json:"albums"`
}

// withAlbums returns a shallow copy of p carrying albums.
func (p *ArtistProfile) withAlbums(albums []ReleaseEntry) *ArtistProfile {
	cp := *p
	cp.Albums = albums
	return &cp
}

// ReleaseEntry is one release group of the discography.
// IsClickable is true exactly when CollectionID is set.
type ReleaseEntry struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Type         string `json:"type"`
	Date         string `json:"date"`
	Cover        string `json:"cover"`
	CollectionID *int64 `json:"collectionId"`
	IsClickable  bool   `json:"isClickable"`
}

// attach records a secondary-catalog match. There is no inverse.
func (e *ReleaseEntry) attach(collectionID int64) {
	id := collectionID
	e.CollectionID = &id
	e.IsClickable = true
}

// normalize derives IsClickable from CollectionID for entries supplied by
// callers.
func (e *ReleaseEntry) normalize() {
	e.IsClickable = e.CollectionID != nil
}

// Matched reports whether the entry carries a secondary-catalog identifier.
func (e ReleaseEntry) Matched() bool {
	return e.CollectionID != nil
}
