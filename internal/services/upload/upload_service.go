package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/config"
	"github.com/skillswap/exchange-api/internal/models"
)

const (
	MaxImageSize    = 5 << 20
	MaxVideoSize    = 20 << 20
	MaxDocumentSize = 10 << 20
	MaxFileSize     = 20 << 20

	// sniffLen matches mimetype's default read limit.
	sniffLen = 3072
)

var allowedTypes = map[string]models.MessageKind{
	"image/jpeg": models.KindImage,
	"image/jpg":  models.KindImage,
	"image/png":  models.KindImage,
	"image/gif":  models.KindImage,
	"image/webp": models.KindImage,

	"video/mp4":       models.KindVideo,
	"video/webm":      models.KindVideo,
	"video/quicktime": models.KindVideo,

	"application/pdf":    models.KindDocument,
	"application/msword": models.KindDocument,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": models.KindDocument,
}

var sizeLimits = map[models.MessageKind]int64{
	models.KindImage:    MaxImageSize,
	models.KindVideo:    MaxVideoSize,
	models.KindDocument: MaxDocumentSize,
}

// Attachment is a stored file ready to be referenced from a message.
type Attachment struct {
	ContentRef string             `json:"content_ref"`
	Kind       models.MessageKind `json:"kind"`
	Size       int64              `json:"size"`
}

// SignedParams lets a client upload straight to Cloudinary.
type SignedParams struct {
	Timestamp    string `json:"timestamp"`
	Signature    string `json:"signature"`
	APIKey       string `json:"api_key"`
	CloudName    string `json:"cloud_name"`
	Folder       string `json:"folder"`
	PublicID     string `json:"public_id"`
	UploadPreset string `json:"upload_preset,omitempty"`
}

// Service validates and stores session attachments.
type Service struct {
	media IMediaStore
	cfg   config.CloudinaryConfig
	log   *slog.Logger
	now   func() time.Time
}

func NewService(media IMediaStore, cfg config.CloudinaryConfig, log *slog.Logger) *Service {
	return &Service{
		media: media,
		cfg:   cfg,
		log:   log.With("component", "uploads"),
		now:   time.Now,
	}
}

// Classify returns the message kind for a MIME type, enforcing the size
// limit of that kind.
func Classify(contentType string, size int64) (models.MessageKind, error) {
	kind, ok := allowedTypes[contentType]
	if !ok {
		return "", fmt.Errorf("file type %q not allowed: %w", contentType, apperrors.ErrInvalidInput)
	}
	if size <= 0 {
		return "", fmt.Errorf("empty file: %w", apperrors.ErrInvalidInput)
	}
	if limit := sizeLimits[kind]; size > limit {
		return "", fmt.Errorf("%s exceeds %d bytes: %w", kind, limit, apperrors.ErrInvalidInput)
	}
	return kind, nil
}

// Sniff detects the content type from the leading bytes of file. It returns
// the allow-list entry the content matches (or the detected type when none
// does) and a reader that still yields the whole file.
func Sniff(file io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	return allowedName(detected), io.MultiReader(bytes.NewReader(head), file), nil
}

func allowedName(detected *mimetype.MIME) string {
	if _, ok := allowedTypes[detected.String()]; ok {
		return detected.String()
	}
	for name := range allowedTypes {
		if detected.Is(name) {
			return name
		}
	}
	return detected.String()
}

// Upload stores the file under the actor's folder and returns its reference.
// The kind comes from the file content; the declared content type is only
// logged when it disagrees.
func (s *Service) Upload(ctx context.Context, actorID string, file io.Reader, filename, contentType string, size int64) (*Attachment, error) {
	sniffed, file, err := Sniff(file)
	if err != nil {
		return nil, err
	}
	if sniffed != contentType {
		s.log.Warn("declared content type differs from content",
			"actor_id", actorID, "file", filename, "declared", contentType, "detected", sniffed)
	}
	kind, err := Classify(sniffed, size)
	if err != nil {
		return nil, err
	}

	asset := Asset{
		PublicID: uuid.NewString(),
		Folder:   s.folderFor(actorID),
		Kind:     kind,
	}
	ref, err := s.media.Store(ctx, file, asset)
	if err != nil {
		s.log.Error("attachment upload failed", "actor_id", actorID, "file", filename, "error", err)
		return nil, fmt.Errorf("store %s: %w", filename, err)
	}

	s.log.Info("attachment uploaded",
		"actor_id", actorID,
		"file", filename,
		"content_type", sniffed,
		"size", size,
	)
	return &Attachment{ContentRef: ref, Kind: kind, Size: size}, nil
}

// SignUpload produces signed parameters for a direct client upload.
func (s *Service) SignUpload(actorID string) (*SignedParams, error) {
	out := &SignedParams{
		Timestamp:    strconv.FormatInt(s.now().Unix(), 10),
		APIKey:       s.cfg.APIKey,
		CloudName:    s.cfg.CloudName,
		Folder:       s.folderFor(actorID),
		PublicID:     uuid.NewString(),
		UploadPreset: s.cfg.UploadPreset,
	}

	params := url.Values{}
	params.Set("timestamp", out.Timestamp)
	params.Set("folder", out.Folder)
	params.Set("public_id", out.PublicID)
	if out.UploadPreset != "" {
		params.Set("upload_preset", out.UploadPreset)
	}

	signature, err := api.SignParameters(params, s.cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("sign upload params: %w", err)
	}
	out.Signature = signature
	return out, nil
}

func (s *Service) folderFor(actorID string) string {
	return path.Join(s.cfg.UploadFolder, actorID)
}
