// Package imagewords stores pictured words in PostgreSQL.
package imagewords

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/talkboard/internal/common"
	"github.com/dmitrijs2005/talkboard/internal/dbx"
	"github.com/dmitrijs2005/talkboard/internal/server/models"
)

const ownedSelect = `SELECT w.id, w.category_id, w.word, w.image_key
	FROM image_words w
	JOIN categories c ON c.id = w.category_id
	JOIN profiles p ON p.id = c.profile_id
	WHERE w.id = $1 AND p.user_id = $2`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, w *models.ImageWord) (*models.ImageWord, error) {
	query :=
		`INSERT INTO image_words (word, image_key, category_id)
		 VALUES ($1, $2, $3)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query, w.Word, dbx.NullString(w.ImageKey), w.CategoryID).Scan(&w.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return w, nil
}

func (r *PostgresRepository) GetOwned(ctx context.Context, userID string, id int64) (*models.ImageWord, error) {
	return r.getOne(ctx, ownedSelect, userID, id)
}

// LockOwned locks the word for update and its ancestors for share.
func (r *PostgresRepository) LockOwned(ctx context.Context, userID string, id int64) (*models.ImageWord, error) {
	return r.getOne(ctx, ownedSelect+` FOR UPDATE OF w FOR SHARE OF c, p`, userID, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, userID string, id int64) (*models.ImageWord, error) {
	w := &models.ImageWord{}
	var key sql.NullString
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&w.ID, &w.CategoryID, &w.Word, &key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	w.ImageKey = key.String
	return w, nil
}

func (r *PostgresRepository) ListByCategory(ctx context.Context, categoryID int64) ([]*models.ImageWord, error) {
	return r.list(ctx,
		`SELECT id, category_id, word, image_key FROM image_words
		 WHERE category_id = $1
		 ORDER BY id`, categoryID)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.ImageWord, error) {
	return r.list(ctx,
		`SELECT w.id, w.category_id, w.word, w.image_key
		 FROM image_words w
		 JOIN categories c ON c.id = w.category_id
		 JOIN profiles p ON p.id = c.profile_id
		 WHERE p.user_id = $1
		 ORDER BY w.category_id, w.id`, userID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg any) ([]*models.ImageWord, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.ImageWord
	for rows.Next() {
		w := &models.ImageWord{}
		var key sql.NullString
		if err := rows.Scan(&w.ID, &w.CategoryID, &w.Word, &key); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		w.ImageKey = key.String
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, w *models.ImageWord) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE image_words SET word = $2, image_key = $3, category_id = $4 WHERE id = $1`,
		w.ID, w.Word, dbx.NullString(w.ImageKey), w.CategoryID)
	return affectedOne(res, err)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM image_words WHERE id = $1`, id)
	return affectedOne(res, err)
}

func (r *PostgresRepository) ImageKeysByCategory(ctx context.Context, categoryID int64) ([]string, error) {
	return r.keys(ctx,
		`SELECT image_key FROM image_words
		 WHERE category_id = $1 AND image_key IS NOT NULL`, categoryID)
}

func (r *PostgresRepository) ImageKeysByProfile(ctx context.Context, profileID int64) ([]string, error) {
	return r.keys(ctx,
		`SELECT w.image_key
		 FROM image_words w
		 JOIN categories c ON c.id = w.category_id
		 WHERE c.profile_id = $1 AND w.image_key IS NOT NULL`, profileID)
}

func (r *PostgresRepository) keys(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
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
