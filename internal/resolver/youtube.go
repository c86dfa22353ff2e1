package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/ppalone/ytsearch"
	"github.com/sharetube/syncspace/pkg/ytvideodata"
)

var youtubeIdRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

type videoMetadata interface {
	Get(ctx context.Context, videoId string) (*ytvideodata.VideoData, error)
	GetWithDuration(ctx context.Context, videoId string) (*ytvideodata.VideoData, error)
}

type searchHit struct {
	VideoId string
	Title   string
}

type videoSearcher interface {
	search(ctx context.Context, query string) ([]searchHit, error)
}

type searchFunc func(ctx context.Context, query string) ([]searchHit, error)

func (f searchFunc) search(ctx context.Context, query string) ([]searchHit, error) {
	return f(ctx, query)
}

func newYtsearch() videoSearcher {
	client := ytsearch.NewClient(nil)

	return searchFunc(func(ctx context.Context, query string) ([]searchHit, error) {
		res, err := client.Search(ctx, query)
		if err != nil {
			return nil, err
		}

		hits := make([]searchHit, 0, len(res.Results))
		for _, v := range res.Results {
			if v.VideoID == "" {
				continue
			}
			hits = append(hits, searchHit{VideoId: v.VideoID, Title: v.Title})
		}

		return hits, nil
	})
}

type Youtube struct {
	metadata videoMetadata
	searcher videoSearcher
}

func NewYoutube(metadata *ytvideodata.Client) *Youtube {
	return &Youtube{
		metadata: metadata,
		searcher: newYtsearch(),
	}
}

func (y *Youtube) Source() Source {
	return SourceYoutube
}

func (y *Youtube) ValidateURL(rawURL string) bool {
	_, ok := y.ExtractID(rawURL)
	return ok
}

func (y *Youtube) ExtractID(rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/shorts/"), strings.HasPrefix(u.Path, "/embed/"), strings.HasPrefix(u.Path, "/live/"):
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			if len(parts) == 2 {
				id = parts[1]
			}
		}
	default:
		return "", false
	}

	if !youtubeIdRe.MatchString(id) {
		return "", false
	}

	return id, true
}

func (y *Youtube) GetTrackDetails(ctx context.Context, id string) (*Track, error) {
	if !youtubeIdRe.MatchString(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, id)
	}

	data, err := y.metadata.GetWithDuration(ctx, id)
	if err != nil {
		if errors.Is(err, ytvideodata.ErrVideoNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, id)
		}
		return nil, err
	}

	return y.toTrack(id, data), nil
}

func (y *Youtube) Search(ctx context.Context, query string) (*Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	hits, err := y.searcher.search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("youtube search failed: %w", err)
	}

	if len(hits) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrTrackNotFound, query)
	}

	best := hits[0]
	data, err := y.metadata.Get(ctx, best.VideoId)
	if err != nil {
		// the search hit alone is enough to play the video
		data = &ytvideodata.VideoData{Title: best.Title}
	}

	return y.toTrack(best.VideoId, data), nil
}

func (y *Youtube) toTrack(id string, data *ytvideodata.VideoData) *Track {
	title, artist := splitVideoTitle(CleanTitle(data.Title), data.AuthorName)

	bigImg := data.ThumbnailUrl
	if bigImg == "" {
		bigImg = ytvideodata.ThumbnailURL(id, "maxresdefault")
	}

	return &Track{
		ID:       id,
		Title:    title,
		Artist:   artist,
		URL:      "https://www.youtube.com/watch?v=" + id,
		SmallImg: ytvideodata.ThumbnailURL(id, "mqdefault"),
		BigImg:   bigImg,
		Duration: int(data.Duration.Seconds()),
		Source:   SourceYoutube,
	}
}

// splitVideoTitle turns "Artist - Title" into its parts, falling back to the
// channel name for the artist.
func splitVideoTitle(title, author string) (string, string) {
	author = strings.TrimSuffix(strings.TrimSpace(author), " - Topic")
	if parts := strings.SplitN(title, " - ", 2); len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		return strings.TrimSpace(parts[1]), strings.TrimSpace(parts[0])
	}

	if author == "" {
		author = "Unknown Artist"
	}

	return title, author
}
