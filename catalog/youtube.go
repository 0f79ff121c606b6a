package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

var ErrNoAPIKey = errors.New("youtube api key not configured")

const (
	youtubeSearchURL = "https://www.googleapis.com/youtube/v3/search"
	maxResults       = 10
)

type Video struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Thumbnail    string `json:"thumbnail"`
	ChannelTitle string `json:"channelTitle"`
}

// VideoSearch queries the YouTube Data API for karaoke versions of a song.
type VideoSearch struct {
	APIKey  string
	BaseURL string // defaults to the public search endpoint
	Client  *http.Client
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

func (v *VideoSearch) Search(ctx context.Context, query string) ([]Video, error) {
	if v.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	base := v.BaseURL
	if base == "" {
		base = youtubeSearchURL
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query+" karaoke")
	params.Set("type", "video")
	params.Set("key", v.APIKey)
	params.Set("maxResults", strconv.Itoa(maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube search: unexpected status %s", resp.Status)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("youtube search: decode: %w", err)
	}

	videos := make([]Video, 0, len(body.Items))
	for _, item := range body.Items {
		videos = append(videos, Video{
			ID:           item.ID.VideoID,
			Title:        item.Snippet.Title,
			Thumbnail:    item.Snippet.Thumbnails.Default.URL,
			ChannelTitle: item.Snippet.ChannelTitle,
		})
	}
	return videos, nil
}
