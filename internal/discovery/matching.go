package discovery

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/loudcat/loudcat/internal/provider"
)

// MatchPolicy decides which secondary-catalog candidate, if any, a release
// is attached to.
type MatchPolicy string

// Match policies.
const (
	// MatchPolicyFirst takes the first candidate unconditionally.
	MatchPolicyFirst MatchPolicy = "first"
	// MatchPolicyTitle takes the first candidate whose normalized collection
	// name equals the normalized release title.
	MatchPolicyTitle MatchPolicy = "title"
)

// ParseMatchPolicy validates a configured policy name. Empty means first.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch MatchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchPolicyFirst:
		return MatchPolicyFirst, nil
	case MatchPolicyTitle:
		return MatchPolicyTitle, nil
	default:
		return "", fmt.Errorf("unknown match policy %q", s)
	}
}

// pick returns the chosen candidate.
func (p MatchPolicy) pick(title string, candidates []provider.AlbumCandidate) (provider.AlbumCandidate, bool) {
	if len(candidates) == 0 {
		return provider.AlbumCandidate{}, false
	}
	switch p {
	case MatchPolicyTitle:
		want := normalizeAlbumName(title)
		for _, c := range candidates {
			if normalizeAlbumName(c.CollectionName) == want {
				return c, true
			}
		}
		return provider.AlbumCandidate{}, false
	default:
		return candidates[0], true
	}
}

// MatchConfig holds configuration for the album matcher.
type MatchConfig struct {
	// MaxAlbums caps how many leading entries are queried per pass.
	MaxAlbums int
	// CandidateLimit is the secondary-catalog result limit per query.
	CandidateLimit int
	Policy         MatchPolicy
}

// DefaultMatchConfig returns the default matching configuration.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		MaxAlbums:      20,
		CandidateLimit: 1,
		Policy:         MatchPolicyFirst,
	}
}

// parenSuffix matches trailing parenthetical text like " (Deluxe Edition)".
var parenSuffix = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// punctuation matches non-alphanumeric, non-space characters.
var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// multiSpace collapses multiple whitespace chars into one.
var multiSpace = regexp.MustCompile(`\s+`)

// normalizeAlbumName lowercases, strips a trailing parenthetical suffix,
// removes punctuation and collapses whitespace.
func normalizeAlbumName(name string) string {
	s := strings.ToLower(name)
	s = parenSuffix.ReplaceAllString(s, "")
	s = punctuation.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimFunc(s, unicode.IsSpace)
}
