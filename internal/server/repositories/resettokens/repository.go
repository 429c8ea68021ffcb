package resettokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/talkboard/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	Find(ctx context.Context, token string) (*models.PasswordResetToken, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
