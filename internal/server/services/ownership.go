package services

import (
	"context"

	"github.com/dmitrijs2005/talkboard/internal/dbx"
	"github.com/dmitrijs2005/talkboard/internal/server/models"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/repomanager"
)

// OwnershipGuard resolves rows only through the requesting user. A row that
// does not exist and a row that belongs to someone else both yield
// common.ErrNotFound.
//
// The Lock variants additionally lock the row (and share-lock its ancestors)
// for the rest of the transaction and must be used before a mutation.
type OwnershipGuard struct {
	repos repomanager.RepositoryManager
}

func NewOwnershipGuard(repos repomanager.RepositoryManager) *OwnershipGuard {
	return &OwnershipGuard{repos: repos}
}

func (g *OwnershipGuard) Profile(ctx context.Context, db dbx.DBTX, userID string, id int64) (*models.Profile, error) {
	p, err := g.repos.Profiles(db).GetOwned(ctx, userID, id)
	return p, persistErr("get profile", err)
}

func (g *OwnershipGuard) Category(ctx context.Context, db dbx.DBTX, userID string, id int64) (*models.Category, error) {
	c, err := g.repos.Categories(db).GetOwned(ctx, userID, id)
	return c, persistErr("get category", err)
}

func (g *OwnershipGuard) ImageWord(ctx context.Context, db dbx.DBTX, userID string, id int64) (*models.ImageWord, error) {
	w, err := g.repos.ImageWords(db).GetOwned(ctx, userID, id)
	return w, persistErr("get image word", err)
}

func (g *OwnershipGuard) LockProfile(ctx context.Context, db dbx.DBTX, userID string, id int64) (*models.Profile, error) {
	p, err := g.repos.Profiles(db).LockOwned(ctx, userID, id)
	return p, persistErr("lock profile", err)
}

func (g *OwnershipGuard) LockCategory(ctx context.Context, db dbx.DBTX, userID string, id int64) (*models.Category, error) {
	c, err := g.repos.Categories(db).LockOwned(ctx, userID, id)
	return c, persistErr("lock category", err)
}

func (g *OwnershipGuard) LockImageWord(ctx context.Context, db dbx.DBTX, userID string, id int64) (*models.ImageWord, error) {
	w, err := g.repos.ImageWords(db).LockOwned(ctx, userID, id)
	return w, persistErr("lock image word", err)
}
