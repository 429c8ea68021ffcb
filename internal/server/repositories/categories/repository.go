package categories

import (
	"context"

	"github.com/dmitrijs2005/talkboard/internal/server/models"
)

// Repository reads and writes categories. Owned lookups join through the
// parent profile so a foreign category is indistinguishable from a missing one.
type Repository interface {
	Create(ctx context.Context, c *models.Category) (*models.Category, error)
	GetOwned(ctx context.Context, userID string, id int64) (*models.Category, error)
	LockOwned(ctx context.Context, userID string, id int64) (*models.Category, error)
	ListByProfile(ctx context.Context, profileID int64) ([]*models.Category, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Category, error)
	Update(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id int64) error
	ImageKeysByProfile(ctx context.Context, profileID int64) ([]string, error)
}
