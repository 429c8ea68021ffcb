package imagewords

import (
	"context"

	"github.com/dmitrijs2005/talkboard/internal/server/models"
)

// Repository reads and writes image words. Owned lookups join through the
// category and profile up to the owning user.
type Repository interface {
	Create(ctx context.Context, w *models.ImageWord) (*models.ImageWord, error)
	GetOwned(ctx context.Context, userID string, id int64) (*models.ImageWord, error)
	LockOwned(ctx context.Context, userID string, id int64) (*models.ImageWord, error)
	ListByCategory(ctx context.Context, categoryID int64) ([]*models.ImageWord, error)
	ListByUser(ctx context.Context, userID string) ([]*models.ImageWord, error)
	Update(ctx context.Context, w *models.ImageWord) error
	Delete(ctx context.Context, id int64) error
	ImageKeysByCategory(ctx context.Context, categoryID int64) ([]string, error)
	ImageKeysByProfile(ctx context.Context, profileID int64) ([]string, error)
}
