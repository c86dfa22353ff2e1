package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

var spotifyIdRe = regexp.MustCompile(`^[a-zA-Z0-9]{22}$`)

type trackCatalog interface {
	GetTrack(ctx context.Context, id spotify.ID, opts ...spotify.RequestOption) (*spotify.FullTrack, error)
	Search(ctx context.Context, query string, t spotify.SearchType, opts ...spotify.RequestOption) (*spotify.SearchResult, error)
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
}

type Spotify struct {
	catalog trackCatalog
}

// NewSpotify authenticates with the client-credentials flow. The token
// source refreshes itself, so the client can be shared for the process
// lifetime.
func NewSpotify(ctx context.Context, cfg SpotifyConfig) (*Spotify, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrResolverDisabled
	}

	config := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	if _, err := config.Token(ctx); err != nil {
		return nil, fmt.Errorf("spotify authentication failed: %w", err)
	}

	return &Spotify{catalog: spotify.New(config.Client(ctx))}, nil
}

func (s *Spotify) Source() Source {
	return SourceSpotify
}

func (s *Spotify) ValidateURL(rawURL string) bool {
	_, ok := s.ExtractID(rawURL)
	return ok
}

func (s *Spotify) ExtractID(rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)

	var id string
	if strings.HasPrefix(rawURL, "spotify:track:") {
		id = strings.TrimPrefix(rawURL, "spotify:track:")
	} else {
		if !strings.Contains(rawURL, "://") {
			rawURL = "https://" + rawURL
		}

		u, err := url.Parse(rawURL)
		if err != nil || strings.ToLower(u.Hostname()) != "open.spotify.com" {
			return "", false
		}

		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		// localized links look like /intl-de/track/<id>
		if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
			parts = parts[1:]
		}
		if len(parts) != 2 || parts[0] != "track" {
			return "", false
		}
		id = parts[1]
	}

	if !spotifyIdRe.MatchString(id) {
		return "", false
	}

	return id, true
}

func (s *Spotify) GetTrackDetails(ctx context.Context, id string) (*Track, error) {
	if !spotifyIdRe.MatchString(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, id)
	}

	track, err := s.catalog.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		var spotifyErr spotify.Error
		if errors.As(err, &spotifyErr) && spotifyErr.Status == 404 {
			return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, id)
		}
		return nil, fmt.Errorf("spotify get track failed: %w", err)
	}

	return toSpotifyTrack(track), nil
}

func (s *Spotify) Search(ctx context.Context, query string) (*Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	results, err := s.catalog.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(5))
	if err != nil {
		return nil, fmt.Errorf("spotify search failed: %w", err)
	}

	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrTrackNotFound, query)
	}

	return toSpotifyTrack(&results.Tracks.Tracks[0]), nil
}

func toSpotifyTrack(t *spotify.FullTrack) *Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}

	artist := strings.Join(artists, ", ")
	if artist == "" {
		artist = "Unknown Artist"
	}

	// images are ordered widest first
	var smallImg, bigImg string
	if images := t.Album.Images; len(images) > 0 {
		bigImg = images[0].URL
		smallImg = images[len(images)-1].URL
	}

	trackURL := t.ExternalURLs["spotify"]
	if trackURL == "" {
		trackURL = "https://open.spotify.com/track/" + string(t.ID)
	}

	return &Track{
		ID:       string(t.ID),
		Title:    t.Name,
		Artist:   artist,
		Album:    t.Album.Name,
		URL:      trackURL,
		SmallImg: smallImg,
		BigImg:   bigImg,
		Duration: int(t.Duration) / 1000,
		Source:   SourceSpotify,
	}
}
