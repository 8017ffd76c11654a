// Package fetch issues JSON GET requests that degrade through an ordered
// chain of CORS proxies when the direct request fails.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 2 << 20
)

// ErrExhausted is matched by errors.Is for every *ExhaustedError.
var ErrExhausted = errors.New("fetch exhausted")

// ExhaustedError reports that the direct request and every proxy failed.
type ExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fetching %s: all %d attempts failed: %v", e.URL, e.Attempts, e.Last)
}

// Is reports whether target is ErrExhausted.
func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

func (e *ExhaustedError) Unwrap() error { return e.Last }

// StatusError is a non-2xx answer from one attempt.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// IsNotFound reports whether err ends in an HTTP 404 answer.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Proxy is one entry of the fallback chain. A prefix ending in "=" takes the
// percent-encoded target; any other prefix takes the raw target appended.
type Proxy struct {
	Prefix string
}

// Wrap builds the proxied URL for target.
func (p Proxy) Wrap(target string) string {
	if strings.HasSuffix(p.Prefix, "=") {
		return p.Prefix + url.QueryEscape(target)
	}
	return p.Prefix + target
}

// ParseProxies turns configured prefixes into a proxy chain, skipping blanks.
func ParseProxies(prefixes []string) []Proxy {
	proxies := make([]Proxy, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		proxies = append(proxies, Proxy{Prefix: p})
	}
	return proxies
}

// Options configures a Client.
type Options struct {
	Proxies   []Proxy
	UserAgent string
	Timeout   time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client fetches JSON documents with a direct attempt followed by the proxy chain.
type Client struct {
	http      *http.Client
	proxies   []Proxy
	userAgent string
	logger    *slog.Logger
}

// New creates a fetch client.
func New(opts Options, logger *slog.Logger) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		http:      hc,
		proxies:   append([]Proxy(nil), opts.Proxies...),
		userAgent: opts.UserAgent,
		logger:    logger.With(slog.String("component", "fetch")),
	}
}

// Proxies returns a copy of the configured chain.
func (c *Client) Proxies() []Proxy {
	return append([]Proxy(nil), c.proxies...)
}

// FetchJSON decodes the first successful response for target into v, which
// must be a non-nil pointer. Each attempt decodes into a fresh value and v is
// only assigned from the winning attempt. Each proxy gets exactly one
// attempt, in order. A canceled context stops the chain and its error is
// returned as-is.
func (c *Client) FetchJSON(ctx context.Context, target string, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &json.InvalidUnmarshalError{Type: reflect.TypeOf(v)}
	}

	attempts := make([]string, 0, len(c.proxies)+1)
	attempts = append(attempts, target)
	for _, p := range c.proxies {
		attempts = append(attempts, p.Wrap(target))
	}

	var lastErr error
	for i, attemptURL := range attempts {
		if err := ctx.Err(); err != nil {
			return err
		}

		fresh := reflect.New(rv.Elem().Type())
		err := c.try(ctx, attemptURL, fresh.Interface())
		if err == nil {
			rv.Elem().Set(fresh.Elem())
			if i > 0 {
				c.logger.Debug("fetched through proxy",
					slog.String("url", target),
					slog.Int("attempt", i+1))
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		lastErr = err
		c.logger.Debug("fetch attempt failed",
			slog.String("url", target),
			slog.String("attempt_url", attemptURL),
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
	}

	return &ExhaustedError{URL: target, Attempts: len(attempts), Last: lastErr}
}

func (c *Client) try(ctx context.Context, reqURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req) //nolint:gosec // URL built from configured base URLs and proxy prefixes
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{URL: reqURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	if !json.Valid(body) {
		return fmt.Errorf("response from %s is not valid JSON", reqURL)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding JSON: %w", err)
	}
	return nil
}
