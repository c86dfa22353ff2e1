package ytvideodata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type VideoData struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailUrl string `json:"thumbnail_url"`
	// Duration is only known when the watch page was scraped.
	Duration time.Duration `json:"-"`
}

type Client struct {
	httpClient *http.Client
	oembedURL  string
	watchURL   string
}

func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		httpClient: httpClient,
		oembedURL:  "https://www.youtube.com/oembed",
		watchURL:   "https://www.youtube.com/watch",
	}
}

func ThumbnailURL(videoId string, quality string) string {
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/%s.jpg", videoId, quality)
}

func (c *Client) Get(ctx context.Context, videoId string) (*VideoData, error) {
	videoData, err := c.getVideoWithEmbed(ctx, videoId)
	if err != nil {
		if !errors.Is(err, ErrVideoNotEmbeddable) {
			return nil, fmt.Errorf("failed to get video data with embed: %w", err)
		}

		videoData, err = c.getFromPage(ctx, videoId)
		if err != nil {
			return nil, fmt.Errorf("failed to get video data from page: %w", err)
		}
	}

	if videoData.ThumbnailUrl == "" {
		videoData.ThumbnailUrl = ThumbnailURL(videoId, "hqdefault")
	}

	return videoData, nil
}

// GetWithDuration always scrapes the watch page, which is the only source
// exposing the duration.
func (c *Client) GetWithDuration(ctx context.Context, videoId string) (*VideoData, error) {
	videoData, err := c.getFromPage(ctx, videoId)
	if err != nil {
		return nil, fmt.Errorf("failed to get video data from page: %w", err)
	}

	if videoData.Title == "" {
		return c.Get(ctx, videoId)
	}

	return videoData, nil
}
