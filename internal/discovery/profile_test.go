package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/loudcat/loudcat/internal/provider"
)

func newTestFetcher(primary *fakePrimary, art ArtworkSource) *ProfileFetcher {
	f := NewProfileFetcher(primary, art, "", testLogger())
	f.fans = func() int { return 4242 }
	return f
}

func TestFetch_Normalizes(t *testing.T) {
	art := &fakeArtwork{art: &provider.Artwork{Image: "https://img/full.jpg", Thumbnail: "https://img/250.jpg"}}
	f := newTestFetcher(&fakePrimary{detail: napalmDetail()}, art)

	p, err := f.Fetch(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if p.ID != "abc-123" || p.Name != "Napalm Death" || p.Country != "GB" || p.Type != "Group" {
		t.Errorf("profile header = %+v", p)
	}
	if p.Picture != "https://img/250.jpg" {
		t.Errorf("picture = %q, want thumbnail", p.Picture)
	}
	if p.Fans != 4242 {
		t.Errorf("fans = %d", p.Fans)
	}
	wantLinks := []string{"https://www.napalmdeath.org", "https://www.facebook.com/officialnapalmdeath"}
	if len(p.Links) != len(wantLinks) {
		t.Fatalf("links = %v, want %v", p.Links, wantLinks)
	}
	for i := range wantLinks {
		if p.Links[i] != wantLinks[i] {
			t.Errorf("links[%d] = %q, want %q", i, p.Links[i], wantLinks[i])
		}
	}
	if len(p.Albums) != 2 {
		t.Fatalf("albums = %d, want 2", len(p.Albums))
	}
	for _, a := range p.Albums {
		if a.Cover != p.Picture {
			t.Errorf("album %s cover = %q, want artist picture", a.ID, a.Cover)
		}
		if a.IsClickable || a.CollectionID != nil {
			t.Errorf("album %s should start unmatched", a.ID)
		}
	}
	if p.Albums[0].Title != "Utopia Banished" || p.Albums[1].Title != "Scum" {
		t.Errorf("album order = %s, %s", p.Albums[0].Title, p.Albums[1].Title)
	}
	if len(art.calls) != 1 || art.calls[0] != "rg-utopia" {
		t.Errorf("cover art calls = %v, want [rg-utopia]", art.calls)
	}
}

func TestFetch_Defaults(t *testing.T) {
	detail := &provider.ArtistDetail{
		ReleaseGroups: []provider.ReleaseGroup{{ID: "rg-1", Title: "Untitled"}},
		Relations:     []provider.Relation{{Type: "social network"}},
	}
	f := newTestFetcher(&fakePrimary{detail: detail}, &fakeArtwork{})

	p, err := f.Fetch(context.Background(), "xyz")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if p.ID != "xyz" {
		t.Errorf("id = %q, want requested id", p.ID)
	}
	if p.Name != DefaultName || p.Country != DefaultCountry || p.Type != DefaultType || p.Disambiguation != "" {
		t.Errorf("defaults not applied: %+v", p)
	}
	if p.Links == nil || len(p.Links) != 0 {
		t.Errorf("links = %#v, want empty non-nil", p.Links)
	}
	a := p.Albums[0]
	if a.Type != DefaultReleaseType || a.Date != UnknownDate {
		t.Errorf("album defaults = %+v", a)
	}
}

func TestFetch_EmptyCoverArtUsesPlaceholder(t *testing.T) {
	// nil artwork with nil error is how an empty images list arrives.
	f := newTestFetcher(&fakePrimary{detail: napalmDetail()}, &fakeArtwork{})

	p, err := f.Fetch(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if p.Picture != DefaultPlaceholderArt {
		t.Errorf("picture = %q, want placeholder", p.Picture)
	}
	if p.Albums[0].Cover != DefaultPlaceholderArt {
		t.Errorf("album cover = %q, want placeholder", p.Albums[0].Cover)
	}
}

func TestFetch_CoverArtErrorUsesPlaceholder(t *testing.T) {
	f := newTestFetcher(&fakePrimary{detail: napalmDetail()}, &fakeArtwork{err: errors.New("404")})

	p, err := f.Fetch(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("Fetch should not fail on cover art errors: %v", err)
	}
	if p.Picture != DefaultPlaceholderArt {
		t.Errorf("picture = %q, want placeholder", p.Picture)
	}
}

func TestFetch_MissingCoverArtListingUsesPlaceholder(t *testing.T) {
	missing := &provider.ErrNotFound{Provider: provider.NameCoverArt, ID: "rg-1"}
	f := newTestFetcher(&fakePrimary{detail: napalmDetail()}, &fakeArtwork{err: missing})

	p, err := f.Fetch(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if p.Picture != DefaultPlaceholderArt {
		t.Errorf("picture = %q, want placeholder", p.Picture)
	}
}

func TestFetch_NoReleaseGroupsSkipsCoverArt(t *testing.T) {
	art := &fakeArtwork{}
	f := newTestFetcher(&fakePrimary{detail: &provider.ArtistDetail{ID: "solo", Name: "Solo"}}, art)

	p, err := f.Fetch(context.Background(), "solo")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(art.calls) != 0 {
		t.Errorf("cover art called %d times, want 0", len(art.calls))
	}
	if p.Albums == nil || len(p.Albums) != 0 {
		t.Errorf("albums = %#v, want empty non-nil", p.Albums)
	}
}

func TestFetch_DetailError(t *testing.T) {
	boom := errors.New("boom")
	f := newTestFetcher(&fakePrimary{detailErr: boom}, nil)
	if _, err := f.Fetch(context.Background(), "abc-123"); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped boom", err)
	}
}

func TestFetch_UnknownArtistIsNotFound(t *testing.T) {
	missing := &provider.ErrNotFound{Provider: provider.NameMusicBrainz, ID: "abc-123"}
	f := newTestFetcher(&fakePrimary{detailErr: missing}, nil)
	if _, err := f.Fetch(context.Background(), "abc-123"); !errors.Is(err, ErrArtistNotFound) {
		t.Errorf("error = %v, want ErrArtistNotFound", err)
	}
}

func TestRandomFansRange(t *testing.T) {
	for range 1000 {
		n := randomFans()
		if n < minFans || n >= minFans+fansRange {
			t.Fatalf("randomFans() = %d out of range", n)
		}
	}
}
