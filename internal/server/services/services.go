// Package services holds the board's business logic. Every mutation runs
// through an assets.Coordinator unit so relational rows and blob assets
// commit or roll back together.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/talkboard/internal/common"
	"github.com/dmitrijs2005/talkboard/internal/server/assets"
)

// Image is an uploaded image file. A nil *Image means "no image supplied".
type Image struct {
	Content  []byte
	Filename string
}

func upload(ctx context.Context, u *assets.Unit, img *Image) (string, error) {
	if img == nil {
		return u.Upload(ctx, nil, "")
	}
	return u.Upload(ctx, img.Content, img.Filename)
}

// passthrough errors keep their identity; anything else from the relational
// layer becomes ErrPersistence.
var passthrough = []error{
	common.ErrNotFound,
	common.ErrValidation,
	common.ErrAlreadyExists,
	common.ErrStorage,
	common.ErrPersistence,
	common.ErrUnauthorized,
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, e := range passthrough {
		if errors.Is(err, e) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", common.ErrPersistence, op, err)
}

func requireText(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", common.ErrValidation, field)
	}
	return v, nil
}
