package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loudcat/loudcat/internal/event"
	"github.com/loudcat/loudcat/internal/provider/fetch"
)

// Phase is the pipeline's externally visible state.
type Phase string

// Pipeline phases.
const (
	PhaseIdle           Phase = "idle"
	PhaseLoading        Phase = "loading"
	PhasePartial        Phase = "partial"
	PhaseComplete       Phase = "complete"
	PhaseArtistNotFound Phase = "artist_not_found"
	PhaseFetchError     Phase = "fetch_error"
	PhaseInvalidInput   Phase = "invalid_input"
	PhaseCanceled       Phase = "canceled"
)

// Terminal reports whether no further state follows p in the same run.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseComplete, PhaseArtistNotFound, PhaseFetchError, PhaseInvalidInput, PhaseCanceled:
		return true
	}
	return false
}

// User-facing messages for terminal error states.
const (
	msgInvalidInput = "Please enter an artist name."
	msgNotFound     = "No artist found with that name."
	msgFetchError   = "Could not reach the music catalogs. Please try again."
	msgCanceled     = "Search canceled."
)

// State is one snapshot emitted by the pipeline.
type State struct {
	Seq     uint64         `json:"seq"`
	Phase   Phase          `json:"phase"`
	Query   string         `json:"query"`
	Profile *ArtistProfile `json:"profile,omitempty"`
	Matched int            `json:"matched,omitempty"`
	Total   int            `json:"total,omitempty"`
	Message string         `json:"message,omitempty"`
	Err     error          `json:"-"`
}

// Sink receives states in order. It is called on the pipeline goroutine.
type Sink func(State)

// Request describes one pipeline run.
type Request struct {
	Name    string
	Session Session
	// Tracker, when set, makes this run supersede earlier runs on the same
	// tracker. States of superseded runs never reach the sink.
	Tracker *Tracker
}

// Assembler sequences resolution, profile fetch, and album enrichment.
type Assembler struct {
	resolver *Resolver
	profiles *ProfileFetcher
	matcher  *Matcher
	bus      *event.Bus
	logger   *slog.Logger
}

// NewAssembler wires the pipeline stages together.
func NewAssembler(resolver *Resolver, profiles *ProfileFetcher, matcher *Matcher, logger *slog.Logger) *Assembler {
	return &Assembler{
		resolver: resolver,
		profiles: profiles,
		matcher:  matcher,
		logger:   logger.With(slog.String("component", "assembler")),
	}
}

// SetEventBus sets the bus for pipeline outcome events.
func (a *Assembler) SetEventBus(bus *event.Bus) {
	a.bus = bus
}

// Load runs the pipeline for name without a session or tracker.
func (a *Assembler) Load(ctx context.Context, name string, sink Sink) State {
	return a.Run(ctx, Request{Name: name}, sink)
}

// Run executes the pipeline and returns the last state produced. A run with
// a non-empty discography emits partial before complete.
func (a *Assembler) Run(ctx context.Context, req Request, sink Sink) State {
	var seq uint64
	if req.Tracker != nil {
		ctx, seq = req.Tracker.Begin(ctx)
		defer req.Tracker.End(seq)
	}

	emit := func(s State) State {
		s.Seq = seq
		s.Query = req.Name
		if req.Tracker != nil && !req.Tracker.IsCurrent(seq) {
			a.logger.Debug("dropping stale state",
				slog.Uint64("seq", seq),
				slog.String("phase", string(s.Phase)))
			return s
		}
		if sink != nil {
			sink(s)
		}
		return s
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return emit(State{Phase: PhaseInvalidInput, Message: msgInvalidInput, Err: ErrInvalidInput})
	}

	emit(State{Phase: PhaseLoading})

	resolved, err := a.resolver.Resolve(ctx, name)
	if err != nil {
		return emit(a.failure(ctx, req, name, "", err))
	}

	profile, err := a.profiles.Fetch(ctx, resolved.ID)
	if err != nil {
		return emit(a.failure(ctx, req, name, resolved.ID, err))
	}

	if len(profile.Albums) == 0 {
		a.publishLoaded(req, name, profile, EnrichReport{})
		return emit(State{Phase: PhaseComplete, Profile: profile})
	}

	emit(State{Phase: PhasePartial, Profile: profile, Total: min(len(profile.Albums), a.matcher.config.MaxAlbums)})

	albums, report := a.matcher.EnrichAlbumsReport(ctx, profile.Albums, matchArtistName(profile, resolved))
	enriched := profile.withAlbums(albums)
	if report.Canceled {
		return emit(State{Phase: PhaseCanceled, Profile: enriched, Matched: report.Matched, Total: report.Total, Message: msgCanceled, Err: ctx.Err()})
	}

	a.publishLoaded(req, name, enriched, report)
	return emit(State{Phase: PhaseComplete, Profile: enriched, Matched: report.Matched, Total: report.Total})
}

// ResolveAndLoadProfile runs the full pipeline and returns the complete
// profile, or the error that stopped it.
func (a *Assembler) ResolveAndLoadProfile(ctx context.Context, name string) (*ArtistProfile, error) {
	return a.ResolveAndLoadProfileFor(ctx, Request{Name: name})
}

// ResolveAndLoadProfileFor is ResolveAndLoadProfile with a session and tracker.
func (a *Assembler) ResolveAndLoadProfileFor(ctx context.Context, req Request) (*ArtistProfile, error) {
	final := a.Run(ctx, req, nil)
	switch final.Phase {
	case PhaseComplete:
		return final.Profile, nil
	case PhaseCanceled:
		if final.Err != nil {
			return nil, final.Err
		}
		return nil, context.Canceled
	default:
		if final.Err != nil {
			return nil, final.Err
		}
		return nil, fmt.Errorf("pipeline ended in phase %s", final.Phase)
	}
}

// EnrichAlbums re-enriches an existing album list.
func (a *Assembler) EnrichAlbums(ctx context.Context, albums []ReleaseEntry, artistName string) ([]ReleaseEntry, EnrichReport) {
	return a.matcher.EnrichAlbumsReport(ctx, albums, artistName)
}

func (a *Assembler) failure(ctx context.Context, req Request, name, artistID string, err error) State {
	switch {
	case errors.Is(err, ErrArtistNotFound):
		a.publish(event.ArtistNotFound, req, map[string]any{"query": name})
		return State{Phase: PhaseArtistNotFound, Message: msgNotFound, Err: err}
	case ctx.Err() != nil:
		return State{Phase: PhaseCanceled, Message: msgCanceled, Err: ctx.Err()}
	}

	attrs := []any{slog.String("query", name), slog.String("error", err.Error())}
	if artistID != "" {
		attrs = append(attrs, slog.String("artist_id", artistID))
	}
	var exhausted *fetch.ExhaustedError
	if errors.As(err, &exhausted) {
		attrs = append(attrs, slog.String("url", exhausted.URL), slog.Int("attempts", exhausted.Attempts))
	}
	a.logger.Error("artist pipeline failed", attrs...)

	a.publish(event.ProfileFailed, req, map[string]any{"query": name, "artist_id": artistID, "error": err.Error()})
	return State{Phase: PhaseFetchError, Message: msgFetchError, Err: err}
}

func (a *Assembler) publishLoaded(req Request, name string, p *ArtistProfile, report EnrichReport) {
	a.publish(event.ProfileLoaded, req, map[string]any{
		"query":       name,
		"artist_id":   p.ID,
		"artist_name": p.Name,
		"albums":      len(p.Albums),
		"matched":     report.Matched,
	})
}

func (a *Assembler) publish(t event.Type, req Request, data map[string]any) {
	if a.bus == nil {
		return
	}
	if req.Session != nil {
		if uid, ok := req.Session.CurrentUserID(); ok {
			data["user_id"] = uid
		}
	}
	a.bus.Publish(event.Event{Type: t, Data: data})
}

// matchArtistName picks the artist name used in secondary-catalog search
// terms: the profile name, or the search hit's name if the profile fell
// back to the default.
func matchArtistName(p *ArtistProfile, resolved ResolvedArtist) string {
	if p.Name != DefaultName || resolved.Name == "" {
		return p.Name
	}
	return resolved.Name
}
