package upload

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/middleware"
)

// UploadHandler accepts a multipart "file" field.
func (s *Service) UploadHandler(c fiber.Ctx) error {
	// Read the multipart file
	header, err := c.FormFile("file")
	if err != nil {
		return fmt.Errorf("file field: %w", apperrors.ErrInvalidInput)
	}
	file, err := header.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	// Type and size are checked against the file content
	attachment, err := s.Upload(c.Context(), middleware.UserID(c), file,
		header.Filename, header.Header.Get(fiber.HeaderContentType), header.Size)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(attachment)
}

// ParamsHandler returns signed direct-upload parameters.
func (s *Service) ParamsHandler(c fiber.Ctx) error {
	params, err := s.SignUpload(middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(params)
}
