package discovery

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/loudcat/loudcat/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakePrimary is an in-memory primary catalog.
type fakePrimary struct {
	mu          sync.Mutex
	hits        []provider.ArtistSearchResult
	searchErr   error
	detail      *provider.ArtistDetail
	detailErr   error
	searches    []string
	detailCalls []string
}

func (f *fakePrimary) SearchArtist(_ context.Context, name string, limit int) ([]provider.ArtistSearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, name)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if limit > 0 && len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

func (f *fakePrimary) GetArtist(_ context.Context, id string) (*provider.ArtistDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls = append(f.detailCalls, id)
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	return f.detail, nil
}

// fakeArtwork returns a fixed result for every release group.
type fakeArtwork struct {
	art   *provider.Artwork
	err   error
	calls []string
}

func (f *fakeArtwork) ReleaseGroupArtwork(_ context.Context, id string) (*provider.Artwork, error) {
	f.calls = append(f.calls, id)
	return f.art, f.err
}

// fakeSecondary answers album searches from a term table.
type fakeSecondary struct {
	mu      sync.Mutex
	results map[string][]provider.AlbumCandidate
	errs    map[string]error
	terms   []string
	// onSearch runs after a search is recorded.
	onSearch func(n int)
}

func (f *fakeSecondary) SearchAlbums(_ context.Context, term string, _ int) ([]provider.AlbumCandidate, error) {
	f.mu.Lock()
	f.terms = append(f.terms, term)
	n := len(f.terms)
	hook := f.onSearch
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	if err := f.errs[term]; err != nil {
		return nil, err
	}
	return f.results[term], nil
}

func (f *fakeSecondary) searched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.terms...)
}

// noPace never waits.
type noPace struct{}

func (noPace) Wait(ctx context.Context, _ int) error { return ctx.Err() }

func candidate(id int64, name string) []provider.AlbumCandidate {
	return []provider.AlbumCandidate{{CollectionID: id, CollectionName: name}}
}

func napalmDetail() *provider.ArtistDetail {
	return &provider.ArtistDetail{
		ID:      "abc-123",
		Name:    "Napalm Death",
		Country: "GB",
		Type:    "Group",
		Relations: []provider.Relation{
			{Type: "official homepage", Resource: "https://www.napalmdeath.org"},
			{Type: "wikipedia", Resource: "https://en.wikipedia.org/wiki/Napalm_Death"},
			{Type: "social network", Resource: "https://www.facebook.com/officialnapalmdeath"},
		},
		ReleaseGroups: []provider.ReleaseGroup{
			{ID: "rg-utopia", Title: "Utopia Banished", PrimaryType: "Album", FirstReleaseDate: "1992-06-23"},
			{ID: "rg-scum", Title: "Scum", PrimaryType: "Album", FirstReleaseDate: "1987-07-01"},
		},
	}
}
