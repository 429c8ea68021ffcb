package services

import (
	"context"

	"github.com/dmitrijs2005/talkboard/internal/dbx"
	"github.com/dmitrijs2005/talkboard/internal/logging"
	"github.com/dmitrijs2005/talkboard/internal/server/assets"
	"github.com/dmitrijs2005/talkboard/internal/server/models"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/repomanager"
)

type ProfileService struct {
	db     dbx.DBTX
	repos  repomanager.RepositoryManager
	guard  *OwnershipGuard
	coord  *assets.Coordinator
	seeder *Seeder
	logger logging.Logger
}

func NewProfileService(db dbx.DBTX, repos repomanager.RepositoryManager, coord *assets.Coordinator, seeder *Seeder, logger logging.Logger) *ProfileService {
	return &ProfileService{
		db:     db,
		repos:  repos,
		guard:  NewOwnershipGuard(repos),
		coord:  coord,
		seeder: seeder,
		logger: logger.With("service", "ProfileService"),
	}
}

// List returns every profile of the user with nested categories and words,
// each level in creation order.
func (s *ProfileService) List(ctx context.Context, userID string) ([]*models.Profile, error) {
	profiles, err := s.repos.Profiles(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, persistErr("list profiles", err)
	}
	cats, err := s.repos.Categories(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, persistErr("list categories", err)
	}
	words, err := s.repos.ImageWords(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, persistErr("list image words", err)
	}

	byCategory := make(map[int64]*models.Category, len(cats))
	for _, c := range cats {
		c.Items = []*models.ImageWord{}
		byCategory[c.ID] = c
	}
	for _, w := range words {
		if c, ok := byCategory[w.CategoryID]; ok {
			c.Items = append(c.Items, w)
		}
	}

	byProfile := make(map[int64]*models.Profile, len(profiles))
	for _, p := range profiles {
		p.Categories = []*models.Category{}
		byProfile[p.ID] = p
	}
	for _, c := range cats {
		if p, ok := byProfile[c.ProfileID]; ok {
			p.Categories = append(p.Categories, c)
		}
	}

	if profiles == nil {
		profiles = []*models.Profile{}
	}
	return profiles, nil
}

func (s *ProfileService) Get(ctx context.Context, userID string, id int64) (*models.Profile, error) {
	p, err := s.guard.Profile(ctx, s.db, userID, id)
	if err != nil {
		return nil, err
	}
	cats, err := s.repos.Categories(s.db).ListByProfile(ctx, p.ID)
	if err != nil {
		return nil, persistErr("list categories", err)
	}
	if err := attachItems(ctx, s.repos, s.db, cats); err != nil {
		return nil, err
	}
	if cats == nil {
		cats = []*models.Category{}
	}
	p.Categories = cats
	return p, nil
}

// Create adds a profile and fills it with the starter catalog in one unit.
// If seeding fails the profile is not created.
func (s *ProfileService) Create(ctx context.Context, userID string, name string) (*models.Profile, error) {
	name, err := requireText("name", name)
	if err != nil {
		return nil, err
	}
	var id int64
	err = s.coord.Run(ctx, func(ctx context.Context, u *assets.Unit) error {
		p, err := s.repos.Profiles(u.Tx()).Create(ctx, userID, name)
		if err != nil {
			return persistErr("insert profile", err)
		}
		id = p.ID
		return s.seeder.SeedProfile(ctx, u, userID, p.ID)
	})
	if err != nil {
		return nil, persistErr("create profile", err)
	}
	s.logger.Info(ctx, "profile created", "profile_id", id)
	return s.Get(ctx, userID, id)
}

// Delete removes the profile with all its content. Asset keys are collected
// inside the transaction and the assets deleted after it commits.
func (s *ProfileService) Delete(ctx context.Context, userID string, id int64) error {
	err := s.coord.Run(ctx, func(ctx context.Context, u *assets.Unit) error {
		p, err := s.guard.LockProfile(ctx, u.Tx(), userID, id)
		if err != nil {
			return err
		}
		wordKeys, err := s.repos.ImageWords(u.Tx()).ImageKeysByProfile(ctx, p.ID)
		if err != nil {
			return persistErr("collect word images", err)
		}
		catKeys, err := s.repos.Categories(u.Tx()).ImageKeysByProfile(ctx, p.ID)
		if err != nil {
			return persistErr("collect category images", err)
		}
		if err := s.repos.Profiles(u.Tx()).Delete(ctx, userID, p.ID); err != nil {
			return persistErr("delete profile", err)
		}
		u.Release(wordKeys...)
		u.Release(catKeys...)
		return nil
	})
	if err != nil {
		return persistErr("delete profile", err)
	}
	s.logger.Info(ctx, "profile deleted", "profile_id", id)
	return nil
}
