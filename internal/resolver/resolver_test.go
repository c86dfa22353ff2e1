package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sharetube/syncspace/pkg/ytvideodata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

type fakeMetadata struct {
	data map[string]*ytvideodata.VideoData
}

func (f fakeMetadata) Get(_ context.Context, id string) (*ytvideodata.VideoData, error) {
	d, ok := f.data[id]
	if !ok {
		return nil, ytvideodata.ErrVideoNotFound
	}
	cp := *d
	cp.Duration = 0
	return &cp, nil
}

func (f fakeMetadata) GetWithDuration(_ context.Context, id string) (*ytvideodata.VideoData, error) {
	d, ok := f.data[id]
	if !ok {
		return nil, ytvideodata.ErrVideoNotFound
	}
	return d, nil
}

func newFakeYoutube(hits []searchHit) *Youtube {
	return &Youtube{
		metadata: fakeMetadata{data: map[string]*ytvideodata.VideoData{
			"dQw4w9WgXcQ": {
				Title:      "Rick Astley - Never Gonna Give You Up (Official Music Video)",
				AuthorName: "Rick Astley",
				Duration:   213 * time.Second,
			},
		}},
		searcher: searchFunc(func(context.Context, string) ([]searchHit, error) {
			return hits, nil
		}),
	}
}

func TestYoutubeExtractID(t *testing.T) {
	y := newFakeYoutube(nil)

	tests := []struct {
		url string
		id  string
		ok  bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"youtube.com/watch?v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?v=short", "", false},
		{"https://vimeo.com/12345", "", false},
		{"never gonna give you up", "", false},
	}

	for _, tt := range tests {
		id, ok := y.ExtractID(tt.url)
		assert.Equal(t, tt.ok, ok, tt.url)
		assert.Equal(t, tt.id, id, tt.url)
	}
}

func TestYoutubeGetTrackDetails(t *testing.T) {
	y := newFakeYoutube(nil)

	track, err := y.GetTrackDetails(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "Never Gonna Give You Up", track.Title)
	assert.Equal(t, "Rick Astley", track.Artist)
	assert.Equal(t, 213, track.Duration)
	assert.Equal(t, SourceYoutube, track.Source)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", track.URL)
	assert.NotEmpty(t, track.SmallImg)
	assert.NotEmpty(t, track.BigImg)

	_, err = y.GetTrackDetails(context.Background(), "aaaaaaaaaaa")
	assert.ErrorIs(t, err, ErrTrackNotFound)
}

func TestYoutubeSearch(t *testing.T) {
	y := newFakeYoutube([]searchHit{{VideoId: "dQw4w9WgXcQ", Title: "whatever"}})

	track, err := y.Search(context.Background(), "rick astley never gonna")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", track.ID)
	assert.Equal(t, "Never Gonna Give You Up", track.Title)

	_, err = y.Search(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	empty := newFakeYoutube(nil)
	_, err = empty.Search(context.Background(), "nothing")
	assert.ErrorIs(t, err, ErrTrackNotFound)
}

func TestYoutubeSearchFallsBackToHitTitle(t *testing.T) {
	y := newFakeYoutube([]searchHit{{VideoId: "zzzzzzzzzzz", Title: "Daft Punk - One More Time"}})

	track, err := y.Search(context.Background(), "one more time")
	require.NoError(t, err)
	assert.Equal(t, "One More Time", track.Title)
	assert.Equal(t, "Daft Punk", track.Artist)
}

type fakeCatalog struct {
	tracks map[spotify.ID]*spotify.FullTrack
}

func (f fakeCatalog) GetTrack(_ context.Context, id spotify.ID, _ ...spotify.RequestOption) (*spotify.FullTrack, error) {
	t, ok := f.tracks[id]
	if !ok {
		return nil, spotify.Error{Message: "non existing id", Status: 404}
	}
	return t, nil
}

func (f fakeCatalog) Search(_ context.Context, _ string, _ spotify.SearchType, _ ...spotify.RequestOption) (*spotify.SearchResult, error) {
	page := &spotify.FullTrackPage{}
	for _, t := range f.tracks {
		page.Tracks = append(page.Tracks, *t)
	}
	return &spotify.SearchResult{Tracks: page}, nil
}

const spotifyTrackId = "4cOdK2wGLETKBW3PvgPWqT"

func newFakeSpotify() *Spotify {
	return &Spotify{catalog: fakeCatalog{tracks: map[spotify.ID]*spotify.FullTrack{
		spotifyTrackId: {
			SimpleTrack: spotify.SimpleTrack{
				ID:           spotifyTrackId,
				Name:         "Never Gonna Give You Up",
				Artists:      []spotify.SimpleArtist{{Name: "Rick Astley"}},
				Duration:     213000,
				ExternalURLs: map[string]string{"spotify": "https://open.spotify.com/track/" + spotifyTrackId},
			},
			Album: spotify.SimpleAlbum{
				Name:   "Whenever You Need Somebody",
				Images: []spotify.Image{{URL: "https://img/640"}, {URL: "https://img/64"}},
			},
		},
	}}}
}

func TestSpotifyExtractID(t *testing.T) {
	s := newFakeSpotify()

	id, ok := s.ExtractID("https://open.spotify.com/track/" + spotifyTrackId + "?si=abc")
	assert.True(t, ok)
	assert.Equal(t, spotifyTrackId, id)

	id, ok = s.ExtractID("https://open.spotify.com/intl-de/track/" + spotifyTrackId)
	assert.True(t, ok)
	assert.Equal(t, spotifyTrackId, id)

	id, ok = s.ExtractID("spotify:track:" + spotifyTrackId)
	assert.True(t, ok)
	assert.Equal(t, spotifyTrackId, id)

	_, ok = s.ExtractID("https://open.spotify.com/album/" + spotifyTrackId)
	assert.False(t, ok)
	_, ok = s.ExtractID("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	assert.False(t, ok)
}

func TestSpotifyGetTrackDetails(t *testing.T) {
	s := newFakeSpotify()

	track, err := s.GetTrackDetails(context.Background(), spotifyTrackId)
	require.NoError(t, err)
	assert.Equal(t, "Never Gonna Give You Up", track.Title)
	assert.Equal(t, "Rick Astley", track.Artist)
	assert.Equal(t, "Whenever You Need Somebody", track.Album)
	assert.Equal(t, 213, track.Duration)
	assert.Equal(t, "https://img/640", track.BigImg)
	assert.Equal(t, "https://img/64", track.SmallImg)

	_, err = s.GetTrackDetails(context.Background(), "0000000000000000000000")
	assert.ErrorIs(t, err, ErrTrackNotFound)

	_, err = s.GetTrackDetails(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestNewSpotifyRequiresCredentials(t *testing.T) {
	_, err := NewSpotify(context.Background(), SpotifyConfig{})
	assert.True(t, errors.Is(err, ErrResolverDisabled))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(newFakeYoutube(nil), newFakeSpotify(), nil)

	assert.Equal(t, []Source{SourceSpotify, SourceYoutube}, r.Sources())

	res, ok := r.Detect("https://youtu.be/dQw4w9WgXcQ")
	require.True(t, ok)
	assert.Equal(t, SourceYoutube, res.Source())

	res, ok = r.Detect("https://open.spotify.com/track/" + spotifyTrackId)
	require.True(t, ok)
	assert.Equal(t, SourceSpotify, res.Source())

	_, ok = r.Detect("https://soundcloud.com/x/y")
	assert.False(t, ok)

	_, err := r.Get("Deezer")
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestParseSourceAndHelpers(t *testing.T) {
	s, err := ParseSource("YouTube")
	require.NoError(t, err)
	assert.Equal(t, SourceYoutube, s)

	_, err = ParseSource("tape")
	assert.ErrorIs(t, err, ErrUnsupportedSource)

	assert.True(t, IsURL("https://x"))
	assert.True(t, IsURL("spotify:track:abc"))
	assert.False(t, IsURL("daft punk"))

	assert.Equal(t, "Song Name", CleanTitle("Song Name (Official Video) [HD]"))
}
