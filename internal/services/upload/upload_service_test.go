package upload_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/config"
	"github.com/skillswap/exchange-api/internal/middleware"
	"github.com/skillswap/exchange-api/internal/mocks"
	"github.com/skillswap/exchange-api/internal/models"
	"github.com/skillswap/exchange-api/internal/services/upload"
	"github.com/skillswap/exchange-api/internal/utils"
)

var testCloudinary = config.CloudinaryConfig{
	CloudName:    "demo",
	APIKey:       "key",
	APISecret:    "secret",
	UploadPreset: "skillswap",
	UploadFolder: "skillswap/sessions",
}

var (
	pngData = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	mp4Data = append([]byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2"), make([]byte, 32)...)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClassify(t *testing.T) {
	t.Run("should map allowed types to kinds", func(t *testing.T) {
		req := require.New(t)
		kind, err := upload.Classify("image/png", 1024)
		req.NoError(err)
		req.Equal(models.KindImage, kind)

		kind, err = upload.Classify("application/pdf", 1024)
		req.NoError(err)
		req.Equal(models.KindDocument, kind)
	})

	t.Run("should reject unknown types and oversize files", func(t *testing.T) {
		req := require.New(t)
		_, err := upload.Classify("application/x-msdownload", 10)
		req.ErrorIs(err, apperrors.ErrInvalidInput)

		_, err = upload.Classify("image/png", upload.MaxImageSize+1)
		req.ErrorIs(err, apperrors.ErrInvalidInput)

		_, err = upload.Classify("video/mp4", 0)
		req.ErrorIs(err, apperrors.ErrInvalidInput)
	})
}

func TestService_Upload(t *testing.T) {
	t.Run("should store under the actor folder", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		media := mocks.NewMockIMediaStore(ctrl)

		media.EXPECT().Store(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, file io.Reader, asset upload.Asset) (string, error) {
				stored, err := io.ReadAll(file)
				req.NoError(err)
				req.Equal(mp4Data, stored)
				req.Equal("skillswap/sessions/alice", asset.Folder)
				req.Equal(models.KindVideo, asset.Kind)
				req.NotEmpty(asset.PublicID)
				return "https://res.cloudinary.com/demo/video/upload/x.mp4", nil
			})

		svc := upload.NewService(media, testCloudinary, discardLogger())
		att, err := svc.Upload(context.Background(), "alice", bytes.NewReader(mp4Data), "x.mp4", "video/mp4", int64(len(mp4Data)))
		req.NoError(err)
		req.Equal(models.KindVideo, att.Kind)
		req.Equal("https://res.cloudinary.com/demo/video/upload/x.mp4", att.ContentRef)
	})

	t.Run("should surface storage failures", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		media := mocks.NewMockIMediaStore(ctrl)
		media.EXPECT().Store(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("unavailable"))

		svc := upload.NewService(media, testCloudinary, discardLogger())
		_, err := svc.Upload(context.Background(), "alice", bytes.NewReader(pngData), "a.png", "image/png", int64(len(pngData)))
		req.Error(err)
		req.False(apperrors.IsClientError(err))
	})
}

func TestSniff(t *testing.T) {
	t.Run("should detect the type from content and keep every byte", func(t *testing.T) {
		req := require.New(t)
		sniffed, r, err := upload.Sniff(bytes.NewReader(pngData))
		req.NoError(err)
		req.Equal("image/png", sniffed)

		all, err := io.ReadAll(r)
		req.NoError(err)
		req.Equal(pngData, all)
	})

	t.Run("should not trust a declared type the content contradicts", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		media := mocks.NewMockIMediaStore(ctrl)

		svc := upload.NewService(media, testCloudinary, discardLogger())
		script := []byte("#!/bin/sh\nrm -rf /\n")
		_, err := svc.Upload(context.Background(), "alice", bytes.NewReader(script), "cat.png", "image/png", int64(len(script)))
		req.ErrorIs(err, apperrors.ErrInvalidInput)
	})

	t.Run("should classify by content when the declared type is generic", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		media := mocks.NewMockIMediaStore(ctrl)
		media.EXPECT().Store(gomock.Any(), gomock.Any(), gomock.Any()).Return("https://cdn/p.png", nil)

		svc := upload.NewService(media, testCloudinary, discardLogger())
		att, err := svc.Upload(context.Background(), "alice", bytes.NewReader(pngData), "p", "application/octet-stream", int64(len(pngData)))
		req.NoError(err)
		req.Equal(models.KindImage, att.Kind)
	})
}

func TestService_SignUpload(t *testing.T) {
	req := require.New(t)
	svc := upload.NewService(nil, testCloudinary, discardLogger())

	params, err := svc.SignUpload("bob")
	req.NoError(err)
	req.Len(params.Signature, 40)
	req.Equal("key", params.APIKey)
	req.Equal("demo", params.CloudName)
	req.Equal("skillswap/sessions/bob", params.Folder)

	other := upload.NewService(nil, config.CloudinaryConfig{APISecret: "other", UploadFolder: testCloudinary.UploadFolder}, discardLogger())
	again, err := other.SignUpload("bob")
	req.NoError(err)
	req.NotEqual(params.Signature, again.Signature)
}

func TestUploadHandler(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	media := mocks.NewMockIMediaStore(ctrl)
	media.EXPECT().Store(gomock.Any(), gomock.Any(), gomock.Any()).Return("https://cdn/x.png", nil)

	jwtService := utils.NewJWTService("test-secret", time.Hour)
	token, err := jwtService.GenerateToken("alice")
	req.NoError(err)

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(discardLogger())})
	upload.NewService(media, testCloudinary, discardLogger()).
		SetupRoutes(app, middleware.AuthMiddleware(jwtService))

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="x.png"`)
	h.Set("Content-Type", "image/png")
	part, err := form.CreatePart(h)
	req.NoError(err)
	_, err = part.Write(pngData)
	req.NoError(err)
	req.NoError(form.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/sessions/upload", &body)
	r.Header.Set("Content-Type", form.FormDataContentType())
	r.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(r)
	req.NoError(err)
	req.Equal(http.StatusCreated, resp.StatusCode)

	var att upload.Attachment
	req.NoError(json.NewDecoder(resp.Body).Decode(&att))
	req.Equal("https://cdn/x.png", att.ContentRef)
	req.Equal(models.KindImage, att.Kind)
}
