package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/talkboard/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryCreate_StoresImage(t *testing.T) {
	h := newHarness(t)
	uid, pid := h.addUser(t, "a@x.y")
	h.expectCommit()

	c, err := h.categories.Create(context.Background(), uid, pid, "  Food ", png("food.PNG"))
	require.NoError(t, err)
	require.NoError(t, h.mock.ExpectationsWereMet())

	assert.Equal(t, "Food", c.Name)
	assert.Equal(t, pid, c.ProfileID)
	assert.Regexp(t, `^[0-9a-f-]{36}\.png$`, c.ImageKey)
	assert.True(t, h.store.Has(c.ImageKey))
	assert.Empty(t, c.Items)
}

func TestCategoryCreate_ForeignProfileUploadsNothing(t *testing.T) {
	h := newHarness(t)
	_, pid := h.addUser(t, "a@x.y")
	other, _ := h.addUser(t, "b@x.y")
	h.expectRollback()

	_, err := h.categories.Create(context.Background(), other, pid, "Food", png("food.png"))
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Zero(t, h.store.Uploads())
}

func TestCategoryCreate_RequiresImageAndName(t *testing.T) {
	h := newHarness(t)
	uid, pid := h.addUser(t, "a@x.y")

	h.expectRollback()
	_, err := h.categories.Create(context.Background(), uid, pid, "Food", nil)
	assert.ErrorIs(t, err, common.ErrValidation)

	h.expectRollback()
	_, err = h.categories.Create(context.Background(), uid, pid, "Food", &Image{Filename: "x.png"})
	assert.ErrorIs(t, err, common.ErrValidation)

	h.expectRollback()
	_, err = h.categories.Create(context.Background(), uid, pid, "   ", png("x.png"))
	assert.ErrorIs(t, err, common.ErrValidation)

	assert.Zero(t, h.store.Uploads())
}

func TestCategoryCreate_InsertFailureCompensatesUpload(t *testing.T) {
	h := newHarness(t)
	uid, pid := h.addUser(t, "a@x.y")
	h.mem.failOn("categories.Create", errors.New("db error: deadlock"))
	h.expectRollback()

	_, err := h.categories.Create(context.Background(), uid, pid, "Food", png("food.png"))
	assert.ErrorIs(t, err, common.ErrPersistence)
	assert.Equal(t, 1, h.store.Uploads())
	assert.Empty(t, h.store.Keys(), "the uploaded asset must be removed again")
}

func TestCategoryCreate_StorageFailure(t *testing.T) {
	h := newHarness(t)
	uid, pid := h.addUser(t, "a@x.y")
	h.store.UploadErr = errors.New("bucket unavailable")
	h.expectRollback()

	_, err := h.categories.Create(context.Background(), uid, pid, "Food", png("food.png"))
	assert.ErrorIs(t, err, common.ErrStorage)
	list, _ := h.repos.Categories(nil).ListByProfile(context.Background(), pid)
	assert.Empty(t, list)
}

func TestCategoryUpdate_ReplacesImageAfterCommit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	uid, pid := h.addUser(t, "a@x.y")
	cat := h.addCategory(t, pid, "Food")
	h.addWord(t, cat.ID, "apple")
	h.expectCommit()

	name := "Snacks"
	got, err := h.categories.Update(ctx, uid, cat.ID, CategoryPatch{Name: &name, Image: png("snack.jpg")})
	require.NoError(t, err)

	assert.Equal(t, "Snacks", got.Name)
	assert.NotEqual(t, cat.ImageKey, got.ImageKey)
	assert.True(t, h.store.Has(got.ImageKey))
	assert.False(t, h.store.Has(cat.ImageKey))
	assert.Len(t, got.Items, 1)
}

func TestCategoryUpdate_NameOnlyTouchesNoAssets(t *testing.T) {
	h := newHarness(t)
	uid, pid := h.addUser(t, "a@x.y")
	cat := h.addCategory(t, pid, "Food")
	h.expectCommit()

	name := "Meals"
	got, err := h.categories.Update(context.Background(), uid, cat.ID, CategoryPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, cat.ImageKey, got.ImageKey)
	assert.Zero(t, h.store.Uploads())
	assert.Empty(t, h.store.Deletes())
}

func TestCategoryUpdate_FailureKeepsOldImage(t *testing.T) {
	h := newHarness(t)
	uid, pid := h.addUser(t, "a@x.y")
	cat := h.addCategory(t, pid, "Food")
	h.mem.failOn("categories.Update", errors.New("db error: timeout"))
	h.expectRollback()

	_, err := h.categories.Update(context.Background(), uid, cat.ID, CategoryPatch{Image: png("new.png")})
	assert.ErrorIs(t, err, common.ErrPersistence)
	assert.Equal(t, []string{cat.ImageKey}, h.store.Keys(), "old asset kept, new asset compensated")
}

func TestCategoryUpdate_Foreign(t *testing.T) {
	h := newHarness(t)
	_, pid := h.addUser(t, "a@x.y")
	other, _ := h.addUser(t, "b@x.y")
	cat := h.addCategory(t, pid, "Food")
	h.expectRollback()

	name := "Mine now"
	_, err := h.categories.Update(context.Background(), other, cat.ID, CategoryPatch{Name: &name, Image: png("x.png")})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Zero(t, h.store.Uploads())
}

func TestCategoryDelete_ReleasesCategoryAndWordAssets(t *testing.T) {
	h := newHarness(t)
	uid, pid := h.addUser(t, "a@x.y")
	cat := h.addCategory(t, pid, "Food")
	w1 := h.addWord(t, cat.ID, "apple")
	w2 := h.addWord(t, cat.ID, "pear")
	keep := h.addCategory(t, pid, "Toys")
	h.expectCommit()

	require.NoError(t, h.categories.Delete(context.Background(), uid, cat.ID))

	assert.ElementsMatch(t, []string{cat.ImageKey, w1.ImageKey, w2.ImageKey}, h.store.Deletes())
	assert.Equal(t, []string{keep.ImageKey}, h.store.Keys())

	_, err := h.categories.Get(context.Background(), uid, cat.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCategoryDelete_FailureDeletesNothing(t *testing.T) {
	h := newHarness(t)
	uid, pid := h.addUser(t, "a@x.y")
	cat := h.addCategory(t, pid, "Food")
	h.addWord(t, cat.ID, "apple")
	h.mem.failOn("categories.Delete", errors.New("db error: lock timeout"))
	h.expectRollback()

	err := h.categories.Delete(context.Background(), uid, cat.ID)
	assert.ErrorIs(t, err, common.ErrPersistence)
	assert.Empty(t, h.store.Deletes())
}

func TestCategoryListByProfile(t *testing.T) {
	h := newHarness(t)
	uid, pid := h.addUser(t, "a@x.y")
	other, _ := h.addUser(t, "b@x.y")
	c1 := h.addCategory(t, pid, "Food")
	c2 := h.addCategory(t, pid, "Toys")
	h.addWord(t, c1.ID, "apple")

	list, err := h.categories.ListByProfile(context.Background(), uid, pid)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, c1.ID, list[0].ID)
	assert.Equal(t, c2.ID, list[1].ID)
	assert.Len(t, list[0].Items, 1)
	assert.NotNil(t, list[1].Items)

	_, err = h.categories.ListByProfile(context.Background(), other, pid)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
