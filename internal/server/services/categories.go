package services

import (
	"context"

	"github.com/dmitrijs2005/talkboard/internal/dbx"
	"github.com/dmitrijs2005/talkboard/internal/logging"
	"github.com/dmitrijs2005/talkboard/internal/server/assets"
	"github.com/dmitrijs2005/talkboard/internal/server/models"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/repomanager"
)

// CategoryPatch lists the fields to change. Nil fields are left as they are.
type CategoryPatch struct {
	Name  *string
	Image *Image
}

type CategoryService struct {
	db     dbx.DBTX
	repos  repomanager.RepositoryManager
	guard  *OwnershipGuard
	coord  *assets.Coordinator
	logger logging.Logger
}

func NewCategoryService(db dbx.DBTX, repos repomanager.RepositoryManager, coord *assets.Coordinator, logger logging.Logger) *CategoryService {
	return &CategoryService{
		db:     db,
		repos:  repos,
		guard:  NewOwnershipGuard(repos),
		coord:  coord,
		logger: logger.With("service", "CategoryService"),
	}
}

// ListByProfile returns the profile's categories with their words, oldest first.
func (s *CategoryService) ListByProfile(ctx context.Context, userID string, profileID int64) ([]*models.Category, error) {
	if _, err := s.guard.Profile(ctx, s.db, userID, profileID); err != nil {
		return nil, err
	}
	cats, err := s.repos.Categories(s.db).ListByProfile(ctx, profileID)
	if err != nil {
		return nil, persistErr("list categories", err)
	}
	if err := attachItems(ctx, s.repos, s.db, cats); err != nil {
		return nil, err
	}
	return cats, nil
}

func (s *CategoryService) Get(ctx context.Context, userID string, id int64) (*models.Category, error) {
	c, err := s.guard.Category(ctx, s.db, userID, id)
	if err != nil {
		return nil, err
	}
	if err := attachItems(ctx, s.repos, s.db, []*models.Category{c}); err != nil {
		return nil, err
	}
	return c, nil
}

// Create adds a category with its icon to one of the user's profiles. The
// icon is required.
func (s *CategoryService) Create(ctx context.Context, userID string, profileID int64, name string, img *Image) (*models.Category, error) {
	var created *models.Category
	err := s.coord.Run(ctx, func(ctx context.Context, u *assets.Unit) error {
		var err error
		created, err = s.create(ctx, u, userID, profileID, name, img)
		return err
	})
	if err != nil {
		return nil, persistErr("create category", err)
	}
	s.logger.Info(ctx, "category created", "category_id", created.ID, "profile_id", profileID)
	return created, nil
}

func (s *CategoryService) create(ctx context.Context, u *assets.Unit, userID string, profileID int64, name string, img *Image) (*models.Category, error) {
	name, err := requireText("name", name)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.Profile(ctx, u.Tx(), userID, profileID); err != nil {
		return nil, err
	}
	key, err := upload(ctx, u, img)
	if err != nil {
		return nil, err
	}
	c, err := s.repos.Categories(u.Tx()).Create(ctx, &models.Category{ProfileID: profileID, Name: name, ImageKey: key})
	if err != nil {
		return nil, persistErr("insert category", err)
	}
	c.Items = []*models.ImageWord{}
	return c, nil
}

// Update applies patch. A new image replaces the old one, which is deleted
// only after the change commits.
func (s *CategoryService) Update(ctx context.Context, userID string, id int64, patch CategoryPatch) (*models.Category, error) {
	var updated *models.Category
	err := s.coord.Run(ctx, func(ctx context.Context, u *assets.Unit) error {
		c, err := s.guard.LockCategory(ctx, u.Tx(), userID, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			if c.Name, err = requireText("name", *patch.Name); err != nil {
				return err
			}
		}
		if patch.Image != nil {
			key, err := upload(ctx, u, patch.Image)
			if err != nil {
				return err
			}
			u.Release(c.ImageKey)
			c.ImageKey = key
		}
		if err := s.repos.Categories(u.Tx()).Update(ctx, c); err != nil {
			return persistErr("update category", err)
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, persistErr("update category", err)
	}
	if err := attachItems(ctx, s.repos, s.db, []*models.Category{updated}); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the category and its words, then deletes every asset they
// referenced once the delete has committed.
func (s *CategoryService) Delete(ctx context.Context, userID string, id int64) error {
	err := s.coord.Run(ctx, func(ctx context.Context, u *assets.Unit) error {
		c, err := s.guard.LockCategory(ctx, u.Tx(), userID, id)
		if err != nil {
			return err
		}
		keys, err := s.repos.ImageWords(u.Tx()).ImageKeysByCategory(ctx, c.ID)
		if err != nil {
			return persistErr("collect word images", err)
		}
		if err := s.repos.Categories(u.Tx()).Delete(ctx, c.ID); err != nil {
			return persistErr("delete category", err)
		}
		u.Release(keys...)
		u.Release(c.ImageKey)
		return nil
	})
	if err != nil {
		return persistErr("delete category", err)
	}
	s.logger.Info(ctx, "category deleted", "category_id", id)
	return nil
}

func attachItems(ctx context.Context, repos repomanager.RepositoryManager, db dbx.DBTX, cats []*models.Category) error {
	words := repos.ImageWords(db)
	for _, c := range cats {
		items, err := words.ListByCategory(ctx, c.ID)
		if err != nil {
			return persistErr("list image words", err)
		}
		if items == nil {
			items = []*models.ImageWord{}
		}
		c.Items = items
	}
	return nil
}
