package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/loudcat/loudcat/internal/api/middleware"
	"github.com/loudcat/loudcat/internal/discovery"
)

const (
	maxEnrichBody   = 1 << 20
	maxEnrichAlbums = 500
)

// handleArtistProfile runs the full pipeline and returns the complete profile.
// GET /api/v1/artists/profile?name={name}[&view={id}]
func (r *Router) handleArtistProfile(w http.ResponseWriter, req *http.Request) {
	dreq := r.discoveryRequest(req)
	profile, err := r.assembler.ResolveAndLoadProfileFor(req.Context(), dreq)
	if err != nil {
		r.writeDiscoveryError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleArtistProfileStream runs the pipeline and streams every state as a
// server-sent event. The stream ends after the terminal state.
// GET /api/v1/artists/profile/stream?name={name}[&view={id}]
func (r *Router) handleArtistProfileStream(w http.ResponseWriter, req *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sink := func(s discovery.State) {
		data, err := json.Marshal(s)
		if err != nil {
			r.logger.Error("encoding pipeline state", "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", s.Seq, s.Phase, data); err != nil {
			return
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			r.logger.Debug("flushing event stream", "error", err)
		}
	}

	final := r.assembler.Run(req.Context(), r.discoveryRequest(req), sink)
	r.logger.Debug("profile stream finished",
		slog.String("query", final.Query),
		slog.String("phase", string(final.Phase)))
}

type enrichRequest struct {
	Artist string                   `json:"artist"`
	Albums []discovery.ReleaseEntry `json:"albums"`
}

type enrichResponse struct {
	Albums  []discovery.ReleaseEntry `json:"albums"`
	Matched int                      `json:"matched"`
	Total   int                      `json:"total"`
}

// handleEnrichAlbums matches a caller-supplied album list against the
// secondary catalog. Entries already matched stay matched.
// POST /api/v1/albums/enrich
func (r *Router) handleEnrichAlbums(w http.ResponseWriter, req *http.Request) {
	var body enrichRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxEnrichBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Artist) == "" {
		writeError(w, http.StatusBadRequest, "artist is required")
		return
	}
	if len(body.Albums) > maxEnrichAlbums {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d albums per request", maxEnrichAlbums))
		return
	}
	if body.Albums == nil {
		body.Albums = []discovery.ReleaseEntry{}
	}

	albums, report := r.assembler.EnrichAlbums(req.Context(), body.Albums, body.Artist)
	if report.Canceled {
		// The client is gone or the server is shutting down.
		writeError(w, http.StatusServiceUnavailable, "enrichment canceled")
		return
	}
	writeJSON(w, http.StatusOK, enrichResponse{Albums: albums, Matched: report.Matched, Total: report.Total})
}

// discoveryRequest builds the pipeline request for req. Requests from the
// same client and view share a tracker, so a newer search supersedes an
// older one still in flight.
func (r *Router) discoveryRequest(req *http.Request) discovery.Request {
	return discovery.Request{
		Name:    req.URL.Query().Get("name"),
		Session: middleware.SessionFromContext(req.Context()),
		Tracker: r.trackers.Get(trackerKey(req)),
	}
}

// trackerKey scopes latest-request-wins to one caller and view. Callers are
// told apart by user, then anonymous client ID, then IP.
func trackerKey(req *http.Request) string {
	client := middleware.UserIDFromContext(req.Context())
	if client == "" {
		if id := middleware.ClientIDFromContext(req.Context()); id != "" {
			client = "client:" + id
		} else {
			client = "ip:" + middleware.ClientIP(req)
		}
	}
	return client + "|" + req.URL.Query().Get("view")
}

func (r *Router) writeDiscoveryError(w http.ResponseWriter, req *http.Request, err error) {
	switch {
	case errors.Is(err, discovery.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, discovery.ErrArtistNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.Canceled) && req.Context().Err() == nil:
		writeError(w, http.StatusConflict, "superseded by a newer search")
	case req.Context().Err() != nil:
		// Client went away; nothing useful to write.
	default:
		writeError(w, http.StatusBadGateway, "could not reach the music catalogs")
	}
}
