//go:generate go run go.uber.org/mock/mockgen -source=catalog.go -destination=../mocks/mock_catalog.go -package=mocks
package catalog

import (
	"context"

	"github.com/skillswap/exchange-api/internal/models"
)

// ICatalog is the read side of the skill catalog and user profiles that the
// exchange flow depends on. Both lookups return ErrNotFound for unknown ids.
type ICatalog interface {
	Skill(ctx context.Context, id string) (*models.Skill, error)
	Profile(ctx context.Context, actorID string) (*models.Profile, error)
	// ProfilesTeaching returns every profile that lists skillID in Teaches.
	ProfilesTeaching(ctx context.Context, skillID string) ([]models.Profile, error)
}
