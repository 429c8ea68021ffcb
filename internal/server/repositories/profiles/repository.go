package profiles

import (
	"context"

	"github.com/dmitrijs2005/talkboard/internal/server/models"
)

// Repository reads and writes profiles. Every lookup is scoped by the
// owning user id.
type Repository interface {
	Create(ctx context.Context, userID string, name string) (*models.Profile, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Profile, error)
	GetOwned(ctx context.Context, userID string, id int64) (*models.Profile, error)
	LockOwned(ctx context.Context, userID string, id int64) (*models.Profile, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID string, id int64) error
}
