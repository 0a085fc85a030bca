package upload

//go:generate go run go.uber.org/mock/mockgen -source=media_store.go -destination=../../mocks/mock_media_store.go -package=mocks

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/skillswap/exchange-api/internal/config"
	"github.com/skillswap/exchange-api/internal/models"
)

// Asset describes where an attachment lands in media storage.
type Asset struct {
	PublicID string
	Folder   string
	Kind     models.MessageKind
}

// IMediaStore persists attachment bytes and returns a public URL.
type IMediaStore interface {
	Store(ctx context.Context, file io.Reader, asset Asset) (string, error)
}

// CloudinaryStore keeps attachments in Cloudinary.
type CloudinaryStore struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryStore(cfg config.CloudinaryConfig) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary client: %w", err)
	}
	cld.Config.URL.Secure = true
	return &CloudinaryStore{cld: cld}, nil
}

func (s *CloudinaryStore) Store(ctx context.Context, file io.Reader, asset Asset) (string, error) {
	res, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		PublicID:     asset.PublicID,
		Folder:       asset.Folder,
		ResourceType: resourceType(asset.Kind),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

// resourceType maps a message kind onto Cloudinary's resource classes.
func resourceType(kind models.MessageKind) string {
	switch kind {
	case models.KindImage:
		return "image"
	case models.KindVideo:
		return "video"
	}
	return "raw"
}
