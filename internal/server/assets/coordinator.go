// Package assets keeps blob storage and the relational store consistent.
//
// Every mutation that touches an asset runs inside Coordinator.Run, which
// opens one database transaction and hands the caller a Unit. Assets
// uploaded through the Unit are deleted again if the transaction does not
// commit; assets released through the Unit are deleted only after it does.
// Neither kind of cleanup failure is returned to the caller: it is logged and
// counted, and the stray object is left for an operator.
package assets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/talkboard/internal/common"
	"github.com/dmitrijs2005/talkboard/internal/dbx"
	"github.com/dmitrijs2005/talkboard/internal/logging"
	"github.com/dmitrijs2005/talkboard/internal/server/blob"
	"github.com/dmitrijs2005/talkboard/internal/server/metrics"
)

// cleanupTimeout bounds the post-transaction deletes, which run detached
// from the request context so a cancelled request still cleans up.
const cleanupTimeout = 30 * time.Second

// CleanupRecorder receives cleanup outcomes. *metrics.Metrics satisfies it.
type CleanupRecorder interface {
	BlobDeleted(phase string)
	BlobCleanupFailed(phase string)
}

type Coordinator struct {
	db       dbx.Beginner
	store    blob.Store
	logger   logging.Logger
	recorder CleanupRecorder
}

func NewCoordinator(db dbx.Beginner, store blob.Store, logger logging.Logger, recorder CleanupRecorder) *Coordinator {
	return &Coordinator{
		db:       db,
		store:    store,
		logger:   logger.With("service", "AssetCoordinator"),
		recorder: recorder,
	}
}

// Store exposes the underlying blob store for read-only paths such as URL
// resolution.
func (c *Coordinator) Store() blob.Store {
	return c.store
}

// Run executes fn inside a single transaction. On any error, panic or commit
// failure the transaction is rolled back and every asset uploaded through
// the Unit is deleted. On commit every released asset is deleted once.
func (c *Coordinator) Run(ctx context.Context, fn func(ctx context.Context, u *Unit) error) (err error) {
	u := &Unit{store: c.store, released: make(map[string]struct{})}

	defer func() {
		if p := recover(); p != nil {
			c.cleanup(ctx, u.pending, metrics.PhaseCompensate)
			panic(p)
		}
	}()

	err = dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		u.tx = tx
		return fn(ctx, u)
	})
	if err != nil {
		c.cleanup(ctx, u.pending, metrics.PhaseCompensate)
		return err
	}

	c.cleanup(ctx, u.releasedKeys(), metrics.PhaseRelease)
	return nil
}

func (c *Coordinator) cleanup(ctx context.Context, keys []string, phase string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		deleted, err := c.store.Delete(ctx, key)
		if err != nil {
			c.logger.Error(ctx, "asset cleanup failed", "phase", phase, "key", key, "error", err)
			if c.recorder != nil {
				c.recorder.BlobCleanupFailed(phase)
			}
			continue
		}
		if !deleted {
			c.logger.Debug(ctx, "asset already absent", "phase", phase, "key", key)
		}
		if c.recorder != nil {
			c.recorder.BlobDeleted(phase)
		}
	}
}

// Unit is the handle a Run callback works through. It is not safe for
// concurrent use.
type Unit struct {
	tx       dbx.DBTX
	store    blob.Store
	pending  []string
	released map[string]struct{}
	order    []string
}

// Tx returns the transactional database handle.
func (u *Unit) Tx() dbx.DBTX {
	return u.tx
}

// Upload stores content and remembers the key for compensation. Empty
// content is a validation error and reaches the store only when non-empty.
func (u *Unit) Upload(ctx context.Context, content []byte, originalName string) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("%w: image file is required and cannot be empty", common.ErrValidation)
	}
	key, err := u.store.Upload(ctx, content, originalName)
	if err != nil {
		if !errors.Is(err, common.ErrStorage) {
			err = fmt.Errorf("%w: %v", common.ErrStorage, err)
		}
		return "", err
	}
	u.pending = append(u.pending, key)
	return key, nil
}

// Release schedules keys for deletion after commit. Empty keys are ignored
// and repeated keys are deleted only once.
func (u *Unit) Release(keys ...string) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, seen := u.released[k]; seen {
			continue
		}
		u.released[k] = struct{}{}
		u.order = append(u.order, k)
	}
}

func (u *Unit) releasedKeys() []string {
	return u.order
}
