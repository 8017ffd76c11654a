package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/loudcat/loudcat/internal/provider"
)

func TestResolve_FirstHitVerbatim(t *testing.T) {
	primary := &fakePrimary{hits: []provider.ArtistSearchResult{
		{ProviderID: "abc-123", Name: "Napalm Death", Score: 100},
		{ProviderID: "def-456", Name: "Napalm Death Tribute", Score: 60},
	}}
	r := NewResolver(primary, testLogger())

	got, err := r.Resolve(context.Background(), "napalm death")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != "abc-123" || got.Name != "Napalm Death" {
		t.Errorf("Resolve = %+v", got)
	}
	if len(primary.searches) != 1 || primary.searches[0] != "napalm death" {
		t.Errorf("searches = %v", primary.searches)
	}
}

func TestResolve_NotFound(t *testing.T) {
	r := NewResolver(&fakePrimary{}, testLogger())
	_, err := r.Resolve(context.Background(), "zzzzqqq")
	if !errors.Is(err, ErrArtistNotFound) {
		t.Errorf("error = %v, want ErrArtistNotFound", err)
	}
}

func TestResolve_UpstreamError(t *testing.T) {
	boom := errors.New("boom")
	r := NewResolver(&fakePrimary{searchErr: boom}, testLogger())
	_, err := r.Resolve(context.Background(), "Carcass")
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped boom", err)
	}
	if errors.Is(err, ErrArtistNotFound) {
		t.Error("upstream failure must not look like not-found")
	}
}
