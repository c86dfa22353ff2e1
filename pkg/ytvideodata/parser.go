package ytvideodata

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

func (c *Client) getFromPage(ctx context.Context, videoId string) (*VideoData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.watchURL+"?v="+videoId, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrVideoNotFound
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	var videoData VideoData
	videoData.Title = strings.TrimSuffix(getTitle(doc), " - YouTube")
	videoData.ThumbnailUrl = ThumbnailURL(videoId, "hqdefault")
	videoData.AuthorName = getItempropContent(doc, "name")
	videoData.Duration = ParseISODuration(getItempropContent(doc, "duration"))

	if videoData.Title == "" {
		return nil, ErrVideoNotFound
	}

	return &videoData, nil
}

// ParseISODuration parses the PT#H#M#S form used by the watch page.
func ParseISODuration(s string) time.Duration {
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}

	var d time.Duration
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, _ := strconv.Atoi(m[i+1])
		d += time.Duration(n) * unit
	}

	return d
}

func getTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return n.FirstChild.Data
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := getTitle(c); title != "" {
			return title
		}
	}
	return ""
}

func getItempropContent(n *html.Node, itemprop string) string {
	if n.Type == html.ElementNode && (n.Data == "link" || n.Data == "meta") {
		var prop, content string
		for _, attr := range n.Attr {
			switch attr.Key {
			case "itemprop":
				prop = attr.Val
			case "content":
				content = attr.Val
			}
		}
		if prop == itemprop && content != "" {
			return content
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if content := getItempropContent(c, itemprop); content != "" {
			return content
		}
	}
	return ""
}
