// Package resolver turns a catalog URL or a free-text query into canonical
// track metadata. There is one Resolver per supported catalog; a Registry
// routes inputs to the right one.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	ErrTrackNotFound     = errors.New("track not found")
	ErrUnsupportedSource = errors.New("unsupported source")
	ErrInvalidURL        = errors.New("invalid url")
	ErrEmptyQuery        = errors.New("empty query")
	ErrResolverDisabled  = errors.New("resolver is not configured")
)

var (
	decorationRe = regexp.MustCompile(`(?i)\s*[\(\[](official|lyric|lyrics|audio|music|hd|hq|video|visualizer|remaster)[^\)\]]*[\)\]]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

type Source string

const (
	SourceYoutube Source = "Youtube"
	SourceSpotify Source = "Spotify"
)

func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "youtube":
		return SourceYoutube, nil
	case "spotify":
		return SourceSpotify, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSource, s)
	}
}

// Track is the canonical metadata every resolver produces.
type Track struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Artist    string            `json:"artist"`
	Album     string            `json:"album,omitempty"`
	URL       string            `json:"url"`
	SmallImg  string            `json:"smallImg"`
	BigImg    string            `json:"bigImg"`
	Duration  int               `json:"duration"`
	Source    Source            `json:"source"`
	CrossRefs map[Source]string `json:"crossRefs,omitempty"`
}

// IsComplete reports whether the track carries enough metadata to skip a
// full lookup.
func (t *Track) IsComplete() bool {
	return t != nil && t.Title != "" && t.Artist != "" && t.Duration > 0
}

type Resolver interface {
	Source() Source
	ValidateURL(rawURL string) bool
	// ExtractID returns the catalog-native id embedded in rawURL.
	ExtractID(rawURL string) (string, bool)
	GetTrackDetails(ctx context.Context, id string) (*Track, error)
	// Search returns the best match for a free-text query.
	Search(ctx context.Context, query string) (*Track, error)
}

type Registry struct {
	resolvers map[Source]Resolver
}

func NewRegistry(resolvers ...Resolver) *Registry {
	r := &Registry{resolvers: make(map[Source]Resolver, len(resolvers))}
	for _, res := range resolvers {
		if res == nil {
			continue
		}
		r.resolvers[res.Source()] = res
	}

	return r
}

func (r *Registry) Get(source Source) (Resolver, error) {
	res, ok := r.resolvers[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, source)
	}

	return res, nil
}

// Detect finds the resolver that accepts rawURL.
func (r *Registry) Detect(rawURL string) (Resolver, bool) {
	for _, source := range r.Sources() {
		res := r.resolvers[source]
		if res.ValidateURL(rawURL) {
			return res, true
		}
	}

	return nil, false
}

func (r *Registry) Sources() []Source {
	sources := make([]Source, 0, len(r.resolvers))
	for source := range r.resolvers {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

	return sources
}

// IsURL is a cheap check separating links from free-text queries.
func IsURL(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.") || strings.HasPrefix(s, "spotify:")
}

// CleanTitle strips video decorations such as "(Official Video)".
func CleanTitle(title string) string {
	title = decorationRe.ReplaceAllString(title, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(title, " "))
}
