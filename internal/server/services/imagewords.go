package services

import (
	"context"

	"github.com/dmitrijs2005/talkboard/internal/dbx"
	"github.com/dmitrijs2005/talkboard/internal/logging"
	"github.com/dmitrijs2005/talkboard/internal/server/assets"
	"github.com/dmitrijs2005/talkboard/internal/server/models"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/repomanager"
)

// ImageWordPatch lists the fields to change. Nil fields are left as they are.
// CategoryID moves the word, and only into a category the user owns.
type ImageWordPatch struct {
	Word       *string
	CategoryID *int64
	Image      *Image
}

type ImageWordService struct {
	db     dbx.DBTX
	repos  repomanager.RepositoryManager
	guard  *OwnershipGuard
	coord  *assets.Coordinator
	logger logging.Logger
}

func NewImageWordService(db dbx.DBTX, repos repomanager.RepositoryManager, coord *assets.Coordinator, logger logging.Logger) *ImageWordService {
	return &ImageWordService{
		db:     db,
		repos:  repos,
		guard:  NewOwnershipGuard(repos),
		coord:  coord,
		logger: logger.With("service", "ImageWordService"),
	}
}

func (s *ImageWordService) ListByCategory(ctx context.Context, userID string, categoryID int64) ([]*models.ImageWord, error) {
	if _, err := s.guard.Category(ctx, s.db, userID, categoryID); err != nil {
		return nil, err
	}
	words, err := s.repos.ImageWords(s.db).ListByCategory(ctx, categoryID)
	if err != nil {
		return nil, persistErr("list image words", err)
	}
	if words == nil {
		words = []*models.ImageWord{}
	}
	return words, nil
}

func (s *ImageWordService) Get(ctx context.Context, userID string, id int64) (*models.ImageWord, error) {
	return s.guard.ImageWord(ctx, s.db, userID, id)
}

// Create adds a pictured word to one of the user's categories. The image is
// required.
func (s *ImageWordService) Create(ctx context.Context, userID string, categoryID int64, word string, img *Image) (*models.ImageWord, error) {
	var created *models.ImageWord
	err := s.coord.Run(ctx, func(ctx context.Context, u *assets.Unit) error {
		var err error
		created, err = s.create(ctx, u, userID, categoryID, word, img)
		return err
	})
	if err != nil {
		return nil, persistErr("create image word", err)
	}
	s.logger.Info(ctx, "image word created", "image_word_id", created.ID, "category_id", categoryID)
	return created, nil
}

func (s *ImageWordService) create(ctx context.Context, u *assets.Unit, userID string, categoryID int64, word string, img *Image) (*models.ImageWord, error) {
	word, err := requireText("word", word)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.Category(ctx, u.Tx(), userID, categoryID); err != nil {
		return nil, err
	}
	key, err := upload(ctx, u, img)
	if err != nil {
		return nil, err
	}
	w, err := s.repos.ImageWords(u.Tx()).Create(ctx, &models.ImageWord{CategoryID: categoryID, Word: word, ImageKey: key})
	if err != nil {
		return nil, persistErr("insert image word", err)
	}
	return w, nil
}

func (s *ImageWordService) Update(ctx context.Context, userID string, id int64, patch ImageWordPatch) (*models.ImageWord, error) {
	var updated *models.ImageWord
	err := s.coord.Run(ctx, func(ctx context.Context, u *assets.Unit) error {
		w, err := s.guard.LockImageWord(ctx, u.Tx(), userID, id)
		if err != nil {
			return err
		}
		if patch.Word != nil {
			if w.Word, err = requireText("word", *patch.Word); err != nil {
				return err
			}
		}
		if patch.CategoryID != nil && *patch.CategoryID != w.CategoryID {
			if _, err := s.guard.Category(ctx, u.Tx(), userID, *patch.CategoryID); err != nil {
				return err
			}
			w.CategoryID = *patch.CategoryID
		}
		if patch.Image != nil {
			key, err := upload(ctx, u, patch.Image)
			if err != nil {
				return err
			}
			u.Release(w.ImageKey)
			w.ImageKey = key
		}
		if err := s.repos.ImageWords(u.Tx()).Update(ctx, w); err != nil {
			return persistErr("update image word", err)
		}
		updated = w
		return nil
	})
	if err != nil {
		return nil, persistErr("update image word", err)
	}
	return updated, nil
}

func (s *ImageWordService) Delete(ctx context.Context, userID string, id int64) error {
	err := s.coord.Run(ctx, func(ctx context.Context, u *assets.Unit) error {
		w, err := s.guard.LockImageWord(ctx, u.Tx(), userID, id)
		if err != nil {
			return err
		}
		if err := s.repos.ImageWords(u.Tx()).Delete(ctx, w.ID); err != nil {
			return persistErr("delete image word", err)
		}
		u.Release(w.ImageKey)
		return nil
	})
	if err != nil {
		return persistErr("delete image word", err)
	}
	s.logger.Info(ctx, "image word deleted", "image_word_id", id)
	return nil
}
