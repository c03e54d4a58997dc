package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chirpwatch/chirpwatch/internal/models"
)

const defaultBaseURL = "https://api.twitter.com/2"

// Client talks to the Twitter API v2 with an app-only bearer token.
type Client struct {
	bearerToken string
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a Twitter API client.
func NewClient(bearerToken string, logger *slog.Logger) *Client {
	return &Client{
		bearerToken: bearerToken,
		baseURL:     defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// RawTweet is one post as returned by the provider, before normalization.
type RawTweet struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	CreatedAt   string `json:"created_at"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
	Entities struct {
		URLs []EntityURL `json:"urls"`
	} `json:"entities"`
}

// EntityURL is a rich-text link entity attached to a tweet.
type EntityURL struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
}

// RawMedia is one structured media record from the response includes.
type RawMedia struct {
	MediaKey        string         `json:"media_key"`
	Type            string         `json:"type"`
	URL             string         `json:"url"`
	PreviewImageURL string         `json:"preview_image_url"`
	Variants        []MediaVariant `json:"variants"`
}

// MediaVariant is one playable rendition of a video or animated gif.
type MediaVariant struct {
	ContentType string `json:"content_type"`
	BitRate     int    `json:"bit_rate"`
	URL         string `json:"url"`
}

type timelineResponse struct {
	Data     []RawTweet `json:"data"`
	Includes struct {
		Media []RawMedia `json:"media"`
	} `json:"includes"`
}

// ResolveUserID looks up the provider-internal id for a handle.
func (c *Client) ResolveUserID(ctx context.Context, username string) (string, error) {
	endpoint := fmt.Sprintf("%s/users/by/username/%s", c.baseURL, url.PathEscape(username))

	var result struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}

	if err := c.get(ctx, endpoint, &result); err != nil {
		return "", err
	}

	if result.Data.ID == "" {
		return "", fmt.Errorf("user %q not found", username)
	}

	c.logger.Debug("resolved user id", "username", username, "id", result.Data.ID)
	return result.Data.ID, nil
}

// RecentPosts fetches the newest original posts of a user (reposts and
// replies excluded), newest first, together with the referenced media keyed
// by media key. At most models.MaxRecentItems posts are requested.
func (c *Client) RecentPosts(ctx context.Context, userID string) ([]RawTweet, map[string]RawMedia, error) {
	params := []string{
		fmt.Sprintf("max_results=%d", models.MaxRecentItems),
		"exclude=retweets,replies",
		"tweet.fields=created_at,entities,attachments",
		"expansions=attachments.media_keys",
		"media.fields=type,url,preview_image_url,variants",
	}
	endpoint := fmt.Sprintf("%s/users/%s/tweets?%s", c.baseURL, url.PathEscape(userID), strings.Join(params, "&"))

	var result timelineResponse
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, nil, err
	}

	media := make(map[string]RawMedia, len(result.Includes.Media))
	for _, m := range result.Includes.Media {
		media[m.MediaKey] = m
	}

	return result.Data, media, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("twitter API error: %d - %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode twitter response: %w", err)
	}

	return nil
}
