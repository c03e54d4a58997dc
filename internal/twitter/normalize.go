package twitter

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/chirpwatch/chirpwatch/internal/models"
)

const mp4ContentType = "video/mp4"

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// Normalize converts one raw tweet plus the media lookup table into a stable
// Content item. Text-only posts still produce an item; a post is never
// dropped for lacking media.
func Normalize(tweet RawTweet, media map[string]RawMedia, username string) models.Content {
	return models.Content{
		ID:        tweet.ID,
		Text:      tweet.Text,
		CreatedAt: tweet.CreatedAt,
		URL:       fmt.Sprintf("https://twitter.com/%s/status/%s", username, tweet.ID),
		Media:     resolveMedia(tweet, media),
	}
}

// NormalizeAll normalizes a timeline in provider order (newest first).
func NormalizeAll(tweets []RawTweet, media map[string]RawMedia, username string) []models.Content {
	items := make([]models.Content, 0, len(tweets))
	for _, tweet := range tweets {
		items = append(items, Normalize(tweet, media, username))
	}
	return items
}

// resolveMedia prefers structured attachments; the link-entity fallback is
// used only when structured media yields nothing usable. The two strategies
// are never merged.
func resolveMedia(tweet RawTweet, media map[string]RawMedia) []models.Media {
	var resolved []models.Media
	for _, key := range tweet.Attachments.MediaKeys {
		raw, ok := media[key]
		if !ok {
			continue
		}
		if m, ok := structuredMedia(raw); ok {
			resolved = append(resolved, m)
		}
	}

	if len(resolved) > 0 {
		return resolved
	}
	return linkedImages(tweet.Entities.URLs)
}

func structuredMedia(raw RawMedia) (models.Media, bool) {
	var kind models.MediaKind
	switch raw.Type {
	case "photo":
		kind = models.MediaPhoto
	case "video":
		kind = models.MediaVideo
	case "animated_gif":
		kind = models.MediaGIF
	default:
		return models.Media{}, false
	}

	display := raw.URL
	if kind != models.MediaPhoto {
		display = raw.PreviewImageURL
		if display == "" {
			display = raw.URL
		}
	}
	if display == "" {
		return models.Media{}, false
	}

	open := raw.URL
	if open == "" {
		open = bestVariantURL(raw.Variants)
	}
	if open == "" {
		open = display
	}

	return models.Media{Kind: kind, DisplayURL: display, OpenURL: open}, true
}

// bestVariantURL picks the highest-bitrate MP4 rendition; streaming playlist
// variants are ignored even when their advertised bitrate is higher.
func bestVariantURL(variants []MediaVariant) string {
	playable := make([]MediaVariant, 0, len(variants))
	for _, v := range variants {
		if v.ContentType == mp4ContentType && v.URL != "" {
			playable = append(playable, v)
		}
	}
	if len(playable) == 0 {
		return ""
	}

	sort.SliceStable(playable, func(i, j int) bool {
		return playable[i].BitRate > playable[j].BitRate
	})
	return playable[0].URL
}

// linkedImages emits one external_image per link entity whose URL path ends
// in a known image extension, in entity order.
func linkedImages(entities []EntityURL) []models.Media {
	var images []models.Media
	for _, entity := range entities {
		link := entity.ExpandedURL
		if link == "" {
			link = entity.URL
		}
		if !looksLikeImage(link) {
			continue
		}
		images = append(images, models.Media{
			Kind:       models.MediaExternalImage,
			DisplayURL: link,
			OpenURL:    link,
		})
	}
	return images
}

func looksLikeImage(link string) bool {
	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}

	path := strings.ToLower(parsed.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
