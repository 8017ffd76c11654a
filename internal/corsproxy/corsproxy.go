// Package corsproxy forwards browser GET requests to allow-listed catalog
// hosts and adds permissive CORS headers. It implements both proxy forms the
// fetch chain understands: a percent-encoded ?url= parameter and a raw
// target appended to the path.
package corsproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loudcat/loudcat/internal/provider"
)

const maxBodyBytes = 5 << 20

// Headers copied from the upstream response.
var passHeaders = []string{"Content-Type", "Cache-Control", "ETag", "Last-Modified", "Retry-After"}

// hostProviders maps allow-listed hosts to the limiter bucket they share
// with the adapters.
var hostProviders = map[string]provider.ProviderName{
	"musicbrainz.org":     provider.NameMusicBrainz,
	"coverartarchive.org": provider.NameCoverArt,
	"itunes.apple.com":    provider.NameITunes,
}

var (
	errMissingTarget = errors.New("missing target url")
	errBadTarget     = errors.New("target must be an absolute http(s) url")
	errHostDenied    = errors.New("target host is not allowed")
)

// Handler is the proxy endpoint.
type Handler struct {
	client    *http.Client
	allowed   []string
	limiter   *provider.RateLimiterMap
	userAgent string
	prefix    string
	logger    *slog.Logger
}

// Options configures a Handler.
type Options struct {
	// Prefix is the mount path, e.g. "/proxy".
	Prefix       string
	AllowedHosts []string
	UserAgent    string
	Timeout      time.Duration
	Limiter      *provider.RateLimiterMap
	HTTPClient   *http.Client
}

// New creates a proxy handler.
func New(opts Options, logger *slog.Logger) *Handler {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{
			Timeout: timeout,
			// Redirects could leave the allow-list.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		}
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = provider.Unlimited()
	}
	allowed := make([]string, 0, len(opts.AllowedHosts))
	for _, h := range opts.AllowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allowed = append(allowed, h)
		}
	}
	return &Handler{
		client:    hc,
		allowed:   allowed,
		limiter:   limiter,
		userAgent: opts.UserAgent,
		prefix:    strings.TrimRight(opts.Prefix, "/"),
		logger:    logger.With(slog.String("component", "corsproxy")),
	}
}

// Matches reports whether path belongs to the proxy.
func (h *Handler) Matches(path string) bool {
	return path == h.prefix || strings.HasPrefix(path, h.prefix+"/")
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet, http.MethodHead:
	default:
		w.Header().Set("Allow", "GET, HEAD, OPTIONS")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	target, err := h.target(r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errHostDenied) {
			status = http.StatusForbidden
		}
		writeError(w, status, err.Error())
		return
	}

	if err := h.limiter.Wait(r.Context(), hostProviders[registrableHost(target.Hostname())]); err != nil {
		writeError(w, http.StatusServiceUnavailable, "rate limited")
		return
	}

	h.forward(w, r, target)
}

// target extracts and validates the upstream URL from either proxy form.
func (h *Handler) target(r *http.Request) (*url.URL, error) {
	var raw string
	if q := r.URL.Query().Get("url"); q != "" {
		raw = q
	} else {
		// Use the undecoded request URI so the target's own query survives.
		rest := strings.TrimPrefix(r.RequestURI, h.prefix)
		rest = strings.TrimPrefix(rest, "/")
		raw = fixSchemeSlashes(rest)
	}
	if raw == "" {
		return nil, errMissingTarget
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errBadTarget
	}
	if u.User != nil {
		return nil, errBadTarget
	}
	if !h.allowedHost(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", errHostDenied, u.Hostname())
	}
	return u, nil
}

func (h *Handler) allowedHost(host string) bool {
	host = strings.ToLower(host)
	for _, a := range h.allowed {
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request, target *url.URL) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.Method, target.String(), nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadTarget.Error())
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(req) //nolint:gosec // target host checked against the allow-list
	if err != nil {
		h.logger.Warn("proxy upstream failed",
			slog.String("url", target.String()),
			slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "upstream request failed")
		return
	}
	defer resp.Body.Close() //nolint:errcheck

	for _, k := range passHeaders {
		if v := resp.Header.Get(k); v != "" {
			w.Header().Set(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead {
		return
	}
	n, err := io.Copy(w, io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		h.logger.Debug("proxy copy interrupted",
			slog.String("url", target.String()),
			slog.Int64("bytes", n),
			slog.String("error", err.Error()))
		return
	}
	h.logger.Debug("proxied",
		slog.String("url", target.String()),
		slog.Int("status", resp.StatusCode),
		slog.Int64("bytes", n))
}

// fixSchemeSlashes restores "https://" after path cleaning by clients or
// reverse proxies collapsed it to "https:/".
func fixSchemeSlashes(s string) string {
	for _, scheme := range []string{"https:", "http:"} {
		if rest, ok := strings.CutPrefix(s, scheme+"/"); ok && !strings.HasPrefix(rest, "/") {
			return scheme + "//" + rest
		}
	}
	return s
}

// registrableHost reduces a host to the allow-list entry it falls under.
func registrableHost(host string) string {
	host = strings.ToLower(host)
	for h := range hostProviders {
		if host == h || strings.HasSuffix(host, "."+h) {
			return h
		}
	}
	return host
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Accept, Content-Type")
	h.Set("Access-Control-Max-Age", "86400")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error":%q}`, msg)
}
