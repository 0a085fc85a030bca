package apperrors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	t.Run("should map wrapped sentinel errors", func(t *testing.T) {
		req := require.New(t)
		err := fmt.Errorf("accept proposal: %w", ErrNotPending)

		req.Equal(http.StatusConflict, HTTPStatus(err))
		req.Equal("not_pending", Code(err))
		req.True(IsClientError(err))
	})

	t.Run("should treat unknown errors as internal", func(t *testing.T) {
		req := require.New(t)
		err := fmt.Errorf("connection reset by peer")

		req.Equal(http.StatusInternalServerError, HTTPStatus(err))
		req.Equal("internal", Code(err))
		req.False(IsClientError(err))
	})

	t.Run("should distinguish auth and expiry", func(t *testing.T) {
		req := require.New(t)
		req.Equal(http.StatusUnauthorized, HTTPStatus(ErrAuthRequired))
		req.Equal(http.StatusGone, HTTPStatus(ErrExpired))
	})
}
