package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/talkboard/internal/dbx"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/categories"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/imagewords"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same service
// code runs against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Profiles(db dbx.DBTX) profiles.Repository
	Categories(db dbx.DBTX) categories.Repository
	ImageWords(db dbx.DBTX) imagewords.Repository
	ResetTokens(db dbx.DBTX) resettokens.Repository
}
