package storefront

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/KshitijGomber/arrow3-sub001/internal/cache"
	"github.com/KshitijGomber/arrow3-sub001/internal/domain"
	"github.com/KshitijGomber/arrow3-sub001/internal/transport"
	apperrors "github.com/KshitijGomber/arrow3-sub001/pkg/errors"
)

// MediaService manages the media assets attached to drones and users.
type MediaService struct {
	api    *transport.Client
	cache  *cache.Store
	logger *slog.Logger
}

// UploadInput describes one media upload.
type UploadInput struct {
	OwnerType   string
	OwnerID     string
	FileName    string
	ContentType string
	Size        int64
	AltText     string
	Content     io.Reader
}

// List returns the media files of one owner.
func (s *MediaService) List(ctx context.Context, ownerType, ownerID string) ([]domain.MediaFile, error) {
	if !domain.IsValidMediaOwnerType(ownerType) {
		return nil, apperrors.InvalidInput("unknown media owner type: " + ownerType)
	}

	key := cache.NewKey(resourceMedia, "ownerType", ownerType, "ownerId", ownerID)
	return cache.QueryAs(ctx, s.cache, key, func(ctx context.Context) ([]domain.MediaFile, error) {
		var files []domain.MediaFile
		path := fmt.Sprintf("/media?ownerType=%s&ownerId=%s",
			url.QueryEscape(ownerType), url.QueryEscape(ownerID))
		err := s.api.Get(ctx, path, &files)
		return files, err
	}, cache.Options{
		Enabled: func() bool { return ownerID != "" },
	})
}

// Upload sends one file. Content type and size are checked client-side so an
// oversized video fails before the bytes leave the machine.
func (s *MediaService) Upload(ctx context.Context, input UploadInput) (*domain.MediaFile, error) {
	if !domain.IsValidMediaOwnerType(input.OwnerType) {
		return nil, apperrors.InvalidInput("unknown media owner type: " + input.OwnerType)
	}
	if !domain.IsAllowedContentType(input.ContentType) {
		return nil, apperrors.InvalidInput("unsupported content type: " + input.ContentType)
	}
	if input.Size > domain.MaxUploadSize {
		return nil, apperrors.InvalidInput(fmt.Sprintf("file exceeds the %d MB upload limit", domain.MaxUploadSize/(1024*1024)))
	}

	// Buffer the content so a retried write re-sends the same bytes instead
	// of a drained reader. Bounded by MaxUploadSize just above.
	content, err := io.ReadAll(input.Content)
	if err != nil {
		return nil, apperrors.Wrap(err, "read upload content")
	}

	fields := map[string]string{
		"ownerType": input.OwnerType,
		"ownerId":   input.OwnerID,
		"altText":   input.AltText,
	}

	resp, err := s.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		var file domain.MediaFile
		if err := s.api.Upload(ctx, "/media", "file", input.FileName, bytes.NewReader(content), fields, &file); err != nil {
			return nil, err
		}
		return &file, nil
	}, cache.MutationOpts{
		Invalidates: []cache.Predicate{
			cache.WithParam(resourceMedia, "ownerId", input.OwnerID),
		},
	})
	if err != nil {
		return nil, err
	}
	return resp.(*domain.MediaFile), nil
}

// Delete removes a media file.
func (s *MediaService) Delete(ctx context.Context, id, ownerID string) error {
	_, err := s.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		return nil, s.api.Delete(ctx, "/media/"+url.PathEscape(id), nil)
	}, cache.MutationOpts{
		Invalidates: []cache.Predicate{
			cache.WithParam(resourceMedia, "ownerId", ownerID),
		},
	})
	return err
}
