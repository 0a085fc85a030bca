package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePage(t *testing.T) {
	req := require.New(t)

	page, limit := NormalizePage(0, 0, 10, 100)
	req.Equal(1, page)
	req.Equal(10, limit)

	page, limit = NormalizePage(3, 500, 10, 100)
	req.Equal(3, page)
	req.Equal(100, limit)
}

func TestTotalPages(t *testing.T) {
	req := require.New(t)
	req.Equal(0, TotalPages(0, 10))
	req.Equal(1, TotalPages(10, 10))
	req.Equal(2, TotalPages(11, 10))
	req.Equal(0, TotalPages(5, 0))
}
