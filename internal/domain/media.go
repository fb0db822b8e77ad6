package domain

import "time"

// Allowed content types for media uploads.
var AllowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"video/mp4":  true,
}

// MaxUploadSize is the maximum allowed upload size in bytes (25 MB; product
// videos are larger than the usual image limit).
const MaxUploadSize int64 = 25 * 1024 * 1024

// Media owner type constants.
const (
	MediaOwnerDrone = "drone"
	MediaOwnerUser  = "user"
)

// MediaFile represents an uploaded media asset.
type MediaFile struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	OwnerType    string    `json:"ownerType"`
	FileName     string    `json:"fileName"`
	OriginalName string    `json:"originalName"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	AltText      string    `json:"altText,omitempty"`
	SortOrder    int       `json:"sortOrder"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsAllowedContentType checks whether the given content type is allowed.
func IsAllowedContentType(contentType string) bool {
	return AllowedContentTypes[contentType]
}

// IsValidMediaOwnerType checks whether the given owner type is valid.
func IsValidMediaOwnerType(ownerType string) bool {
	return ownerType == MediaOwnerDrone || ownerType == MediaOwnerUser
}
