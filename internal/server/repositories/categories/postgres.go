// Package categories stores board categories in PostgreSQL.
package categories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/talkboard/internal/common"
	"github.com/dmitrijs2005/talkboard/internal/dbx"
	"github.com/dmitrijs2005/talkboard/internal/server/models"
)

const ownedSelect = `SELECT c.id, c.profile_id, c.name, c.image_key
	FROM categories c
	JOIN profiles p ON p.id = c.profile_id
	WHERE c.id = $1 AND p.user_id = $2`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Category) (*models.Category, error) {
	query :=
		`INSERT INTO categories (name, image_key, profile_id)
		 VALUES ($1, $2, $3)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query, c.Name, dbx.NullString(c.ImageKey), c.ProfileID).Scan(&c.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) GetOwned(ctx context.Context, userID string, id int64) (*models.Category, error) {
	return r.getOne(ctx, ownedSelect, userID, id)
}

// LockOwned locks the category for update and its profile for share, so a
// concurrent profile delete waits for the caller's transaction.
func (r *PostgresRepository) LockOwned(ctx context.Context, userID string, id int64) (*models.Category, error) {
	return r.getOne(ctx, ownedSelect+` FOR UPDATE OF c FOR SHARE OF p`, userID, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, userID string, id int64) (*models.Category, error) {
	c := &models.Category{}
	var key sql.NullString
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&c.ID, &c.ProfileID, &c.Name, &key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	c.ImageKey = key.String
	return c, nil
}

func (r *PostgresRepository) ListByProfile(ctx context.Context, profileID int64) ([]*models.Category, error) {
	return r.list(ctx,
		`SELECT id, profile_id, name, image_key FROM categories
		 WHERE profile_id = $1
		 ORDER BY id`, profileID)
}

// ListByUser returns every category across the user's profiles, ordered by
// profile and then by creation.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Category, error) {
	return r.list(ctx,
		`SELECT c.id, c.profile_id, c.name, c.image_key
		 FROM categories c
		 JOIN profiles p ON p.id = c.profile_id
		 WHERE p.user_id = $1
		 ORDER BY c.profile_id, c.id`, userID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg any) ([]*models.Category, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Category
	for rows.Next() {
		c := &models.Category{}
		var key sql.NullString
		if err := rows.Scan(&c.ID, &c.ProfileID, &c.Name, &key); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		c.ImageKey = key.String
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, c *models.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = $2, image_key = $3 WHERE id = $1`,
		c.ID, c.Name, dbx.NullString(c.ImageKey))
	return affectedOne(res, err)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	return affectedOne(res, err)
}

// ImageKeysByProfile lists the non-empty category keys under a profile.
func (r *PostgresRepository) ImageKeysByProfile(ctx context.Context, profileID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT image_key FROM categories
		 WHERE profile_id = $1 AND image_key IS NOT NULL`, profileID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return keys, nil
}

func affectedOne(res sql.Result, err error) error {
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
