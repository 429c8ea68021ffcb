package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/talkboard/internal/common"
	"github.com/dmitrijs2005/talkboard/internal/logging"
	"github.com/dmitrijs2005/talkboard/internal/server/assets"
	"github.com/dmitrijs2005/talkboard/internal/server/models"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/talkboard/internal/server/seed"
)

// Seeder fills profiles with the starter catalog. It always works inside the
// caller's unit, so a seeding failure undoes the operation that triggered it.
type Seeder struct {
	repos      repomanager.RepositoryManager
	categories *CategoryService
	words      *ImageWordService
	catalog    seed.Catalog
	logger     logging.Logger
}

func NewSeeder(repos repomanager.RepositoryManager, categories *CategoryService, words *ImageWordService, catalog seed.Catalog, logger logging.Logger) *Seeder {
	return &Seeder{
		repos:      repos,
		categories: categories,
		words:      words,
		catalog:    catalog,
		logger:     logger.With("service", "Seeder"),
	}
}

// SeedIfEmpty creates and seeds the default profile when the user has no
// profiles. The user row is locked first so concurrent logins seed once.
func (s *Seeder) SeedIfEmpty(ctx context.Context, u *assets.Unit, userID string) (bool, error) {
	if err := s.repos.Users(u.Tx()).Lock(ctx, userID); err != nil {
		return false, persistErr("lock user", err)
	}
	n, err := s.repos.Profiles(u.Tx()).CountByUser(ctx, userID)
	if err != nil {
		return false, persistErr("count profiles", err)
	}
	if n > 0 {
		return false, nil
	}

	s.logger.Info(ctx, "user has no profiles, seeding default", "user_id", userID)
	p, err := s.repos.Profiles(u.Tx()).Create(ctx, userID, seed.DefaultProfileName)
	if err != nil {
		return false, persistErr("insert default profile", err)
	}
	if err := s.SeedProfile(ctx, u, userID, p.ID); err != nil {
		return false, err
	}
	return true, nil
}

// SeedProfile creates the catalog's categories and then its words. A word
// whose category was not created is skipped.
func (s *Seeder) SeedProfile(ctx context.Context, u *assets.Unit, userID string, profileID int64) error {
	created := make(map[string]*models.Category, len(s.catalog.Categories))
	for _, cs := range s.catalog.Categories {
		img, err := s.image(cs.Image)
		if err != nil {
			return err
		}
		c, err := s.categories.create(ctx, u, userID, profileID, cs.Name, img)
		if err != nil {
			s.logger.Error(ctx, "seeding category failed", "category", cs.Name, "error", err)
			return err
		}
		created[cs.Name] = c
	}

	for _, ws := range s.catalog.Words {
		c, ok := created[ws.Category]
		if !ok || c.ID == 0 {
			s.logger.Warn(ctx, "skipping seed word, category not created", "word", ws.Word, "category", ws.Category)
			continue
		}
		img, err := s.image(ws.Image)
		if err != nil {
			return err
		}
		if _, err := s.words.create(ctx, u, userID, c.ID, ws.Word, img); err != nil {
			s.logger.Error(ctx, "seeding word failed", "word", ws.Word, "error", err)
			return err
		}
		s.logger.Debug(ctx, "seeded word", "word", ws.Word, "category", ws.Category)
	}
	return nil
}

func (s *Seeder) image(name string) (*Image, error) {
	b, err := s.catalog.Image(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return &Image{Content: b, Filename: name}, nil
}
