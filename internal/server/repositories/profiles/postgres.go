// Package profiles stores board profiles in PostgreSQL.
package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/talkboard/internal/common"
	"github.com/dmitrijs2005/talkboard/internal/dbx"
	"github.com/dmitrijs2005/talkboard/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, userID string, name string) (*models.Profile, error) {
	query :=
		`INSERT INTO profiles (name, user_id)
		 VALUES ($1, $2)
		 RETURNING id`

	p := &models.Profile{UserID: userID, Name: name}
	if err := r.db.QueryRowContext(ctx, query, name, userID).Scan(&p.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Profile, error) {
	query :=
		`SELECT id, name, user_id FROM profiles
		 WHERE user_id = $1
		 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Profile
	for rows.Next() {
		p := &models.Profile{}
		if err := rows.Scan(&p.ID, &p.Name, &p.UserID); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) GetOwned(ctx context.Context, userID string, id int64) (*models.Profile, error) {
	return r.getOne(ctx,
		`SELECT id, name, user_id FROM profiles
		 WHERE id = $1 AND user_id = $2`, userID, id)
}

// LockOwned is GetOwned plus a row lock held until the surrounding
// transaction ends.
func (r *PostgresRepository) LockOwned(ctx context.Context, userID string, id int64) (*models.Profile, error) {
	return r.getOne(ctx,
		`SELECT id, name, user_id FROM profiles
		 WHERE id = $1 AND user_id = $2
		 FOR UPDATE`, userID, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, userID string, id int64) (*models.Profile, error) {
	p := &models.Profile{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&p.ID, &p.Name, &p.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// Delete removes the profile; categories and image words go with it through
// ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, userID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
