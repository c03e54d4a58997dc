package models

// MediaKind classifies a displayable attachment.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
	MediaGIF   MediaKind = "gif"
	// MediaExternalImage marks an image extracted from a post's link
	// entities rather than from structured media.
	MediaExternalImage MediaKind = "external_image"
)

// Media is a single displayable attachment of a post.
type Media struct {
	Kind       MediaKind `json:"kind"`
	DisplayURL string    `json:"displayUrl"`
	OpenURL    string    `json:"openUrl"`
}

// Content is one normalized post. Instances are immutable once built; a
// refresh replaces an account's items wholesale instead of patching them.
type Content struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	CreatedAt string  `json:"createdAt"`
	URL       string  `json:"url"`
	Media     []Media `json:"media"`
}
