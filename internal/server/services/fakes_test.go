package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/talkboard/internal/common"
	"github.com/dmitrijs2005/talkboard/internal/dbx"
	"github.com/dmitrijs2005/talkboard/internal/logging"
	"github.com/dmitrijs2005/talkboard/internal/server/assets"
	"github.com/dmitrijs2005/talkboard/internal/server/blob/blobtest"
	"github.com/dmitrijs2005/talkboard/internal/server/config"
	"github.com/dmitrijs2005/talkboard/internal/server/models"
	"github.com/dmitrijs2005/talkboard/internal/server/notify"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/categories"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/imagewords"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/users"
	"github.com/dmitrijs2005/talkboard/internal/server/seed"
	"github.com/stretchr/testify/require"
)

// memDB is an in-memory stand-in for the relational store. It ignores the
// DBTX it is bound to, so rollbacks are not reflected in its state.
type memDB struct {
	mu      sync.Mutex
	nextID  int64
	users   map[string]*models.User
	prof    []*models.Profile
	cats    []*models.Category
	words   []*models.ImageWord
	tokens  map[string]*models.PasswordResetToken
	failing map[string]error
}

func newMemDB() *memDB {
	return &memDB{
		users:   map[string]*models.User{},
		tokens:  map[string]*models.PasswordResetToken{},
		failing: map[string]error{},
	}
}

func (m *memDB) failOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[op] = err
}

func (m *memDB) fail(op string) error {
	if err, ok := m.failing[op]; ok {
		return err
	}
	return nil
}

func (m *memDB) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memDB) profileOwner(id int64) (string, bool) {
	for _, p := range m.prof {
		if p.ID == id {
			return p.UserID, true
		}
	}
	return "", false
}

func (m *memDB) categoryOwner(id int64) (*models.Category, string, bool) {
	for _, c := range m.cats {
		if c.ID == id {
			owner, ok := m.profileOwner(c.ProfileID)
			return c, owner, ok
		}
	}
	return nil, "", false
}

type fakeRepoManager struct{ m *memDB }

func (f fakeRepoManager) RunMigrations(context.Context, *sql.DB) error  { return nil }
func (f fakeRepoManager) Users(dbx.DBTX) users.Repository             { return memUsers(f) }
func (f fakeRepoManager) Profiles(dbx.DBTX) profiles.Repository       { return memProfiles(f) }
func (f fakeRepoManager) Categories(dbx.DBTX) categories.Repository   { return memCategories(f) }
func (f fakeRepoManager) ImageWords(dbx.DBTX) imagewords.Repository   { return memWords(f) }
func (f fakeRepoManager) ResetTokens(dbx.DBTX) resettokens.Repository { return memTokens(f) }

// --- users ---

type memUsers struct{ m *memDB }

func (r memUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("users.Create"); err != nil {
		return nil, err
	}
	for _, x := range r.m.users {
		if x.Email == u.Email {
			return nil, common.ErrAlreadyExists
		}
	}
	c := *u
	c.ID = fmt.Sprintf("user-%d", r.m.id())
	c.CreatedAt = time.Now()
	r.m.users[c.ID] = &c
	out := c
	return &out, nil
}

func (r memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("users.GetByEmail"); err != nil {
		return nil, err
	}
	for _, u := range r.m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if u, ok := r.m.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, common.ErrNotFound
}

func (r memUsers) Lock(ctx context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[id]; !ok {
		return common.ErrNotFound
	}
	return nil
}

func (r memUsers) UpdatePIN(ctx context.Context, id, pin string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.PIN = pin
	return nil
}

func (r memUsers) UpdatePassword(ctx context.Context, id, hashed string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.HashedPassword = hashed
	return nil
}

// --- profiles ---

type memProfiles struct{ m *memDB }

func (r memProfiles) Create(ctx context.Context, userID, name string) (*models.Profile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("profiles.Create"); err != nil {
		return nil, err
	}
	p := &models.Profile{ID: r.m.id(), UserID: userID, Name: name}
	r.m.prof = append(r.m.prof, p)
	c := *p
	return &c, nil
}

func (r memProfiles) ListByUser(ctx context.Context, userID string) ([]*models.Profile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Profile
	for _, p := range r.m.prof {
		if p.UserID == userID {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r memProfiles) GetOwned(ctx context.Context, userID string, id int64) (*models.Profile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("profiles.GetOwned"); err != nil {
		return nil, err
	}
	for _, p := range r.m.prof {
		if p.ID == id && p.UserID == userID {
			c := *p
			return &c, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r memProfiles) LockOwned(ctx context.Context, userID string, id int64) (*models.Profile, error) {
	return r.GetOwned(ctx, userID, id)
}

func (r memProfiles) CountByUser(ctx context.Context, userID string) (int, error) {
	list, _ := r.ListByUser(ctx, userID)
	return len(list), nil
}

func (r memProfiles) Delete(ctx context.Context, userID string, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("profiles.Delete"); err != nil {
		return err
	}
	found := false
	var keep []*models.Profile
	for _, p := range r.m.prof {
		if p.ID == id && p.UserID == userID {
			found = true
			continue
		}
		keep = append(keep, p)
	}
	if !found {
		return common.ErrNotFound
	}
	r.m.prof = keep
	var cats []*models.Category
	gone := map[int64]bool{}
	for _, c := range r.m.cats {
		if c.ProfileID == id {
			gone[c.ID] = true
			continue
		}
		cats = append(cats, c)
	}
	r.m.cats = cats
	var words []*models.ImageWord
	for _, w := range r.m.words {
		if !gone[w.CategoryID] {
			words = append(words, w)
		}
	}
	r.m.words = words
	return nil
}

// --- categories ---

type memCategories struct{ m *memDB }

func (r memCategories) Create(ctx context.Context, c *models.Category) (*models.Category, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("categories.Create"); err != nil {
		return nil, err
	}
	cp := *c
	cp.ID = r.m.id()
	r.m.cats = append(r.m.cats, &cp)
	out := cp
	return &out, nil
}

func (r memCategories) GetOwned(ctx context.Context, userID string, id int64) (*models.Category, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, owner, ok := r.m.categoryOwner(id)
	if !ok || owner != userID {
		return nil, common.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r memCategories) LockOwned(ctx context.Context, userID string, id int64) (*models.Category, error) {
	return r.GetOwned(ctx, userID, id)
}

func (r memCategories) ListByProfile(ctx context.Context, profileID int64) ([]*models.Category, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Category
	for _, c := range r.m.cats {
		if c.ProfileID == profileID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memCategories) ListByUser(ctx context.Context, userID string) ([]*models.Category, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Category
	for _, c := range r.m.cats {
		if owner, _ := r.m.profileOwner(c.ProfileID); owner == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memCategories) Update(ctx context.Context, c *models.Category) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("categories.Update"); err != nil {
		return err
	}
	for _, x := range r.m.cats {
		if x.ID == c.ID {
			x.Name, x.ImageKey = c.Name, c.ImageKey
			return nil
		}
	}
	return common.ErrNotFound
}

func (r memCategories) Delete(ctx context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("categories.Delete"); err != nil {
		return err
	}
	var cats []*models.Category
	for _, c := range r.m.cats {
		if c.ID != id {
			cats = append(cats, c)
		}
	}
	r.m.cats = cats
	var words []*models.ImageWord
	for _, w := range r.m.words {
		if w.CategoryID != id {
			words = append(words, w)
		}
	}
	r.m.words = words
	return nil
}

func (r memCategories) ImageKeysByProfile(ctx context.Context, profileID int64) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var keys []string
	for _, c := range r.m.cats {
		if c.ProfileID == profileID && c.ImageKey != "" {
			keys = append(keys, c.ImageKey)
		}
	}
	return keys, nil
}

// --- image words ---

type memWords struct{ m *memDB }

func (r memWords) Create(ctx context.Context, w *models.ImageWord) (*models.ImageWord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("imagewords.Create"); err != nil {
		return nil, err
	}
	cp := *w
	cp.ID = r.m.id()
	r.m.words = append(r.m.words, &cp)
	out := cp
	return &out, nil
}

func (r memWords) GetOwned(ctx context.Context, userID string, id int64) (*models.ImageWord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, w := range r.m.words {
		if w.ID != id {
			continue
		}
		if _, owner, ok := r.m.categoryOwner(w.CategoryID); ok && owner == userID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r memWords) LockOwned(ctx context.Context, userID string, id int64) (*models.ImageWord, error) {
	return r.GetOwned(ctx, userID, id)
}

func (r memWords) ListByCategory(ctx context.Context, categoryID int64) ([]*models.ImageWord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.ImageWord
	for _, w := range r.m.words {
		if w.CategoryID == categoryID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memWords) ListByUser(ctx context.Context, userID string) ([]*models.ImageWord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.ImageWord
	for _, w := range r.m.words {
		if _, owner, _ := r.m.categoryOwner(w.CategoryID); owner == userID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memWords) Update(ctx context.Context, w *models.ImageWord) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("imagewords.Update"); err != nil {
		return err
	}
	for _, x := range r.m.words {
		if x.ID == w.ID {
			x.Word, x.ImageKey, x.CategoryID = w.Word, w.ImageKey, w.CategoryID
			return nil
		}
	}
	return common.ErrNotFound
}

func (r memWords) Delete(ctx context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var words []*models.ImageWord
	for _, w := range r.m.words {
		if w.ID != id {
			words = append(words, w)
		}
	}
	r.m.words = words
	return nil
}

func (r memWords) ImageKeysByCategory(ctx context.Context, categoryID int64) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var keys []string
	for _, w := range r.m.words {
		if w.CategoryID == categoryID && w.ImageKey != "" {
			keys = append(keys, w.ImageKey)
		}
	}
	return keys, nil
}

func (r memWords) ImageKeysByProfile(ctx context.Context, profileID int64) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var keys []string
	for _, w := range r.m.words {
		for _, c := range r.m.cats {
			if c.ID == w.CategoryID && c.ProfileID == profileID && w.ImageKey != "" {
				keys = append(keys, w.ImageKey)
			}
		}
	}
	return keys, nil
}

// --- reset tokens ---

type memTokens struct{ m *memDB }

func (r memTokens) Create(ctx context.Context, t *models.PasswordResetToken) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("resettokens.Create"); err != nil {
		return err
	}
	cp := *t
	r.m.tokens[t.Token] = &cp
	return nil
}

func (r memTokens) Find(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tokens[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r memTokens) Delete(ctx context.Context, token string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.tokens, token)
	return nil
}

func (r memTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for k, t := range r.m.tokens {
		if t.Expired(now) {
			delete(r.m.tokens, k)
			n++
		}
	}
	return n, nil
}

// --- mail ---

type fakeMail struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (f *fakeMail) Dispatch(msg notify.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
}

func (f *fakeMail) messages() []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Message(nil), f.sent...)
}

// --- harness ---

type harness struct {
	db    *sql.DB
	mock  sqlmock.Sqlmock
	mem   *memDB
	repos fakeRepoManager
	store *blobtest.Store
	mail  *fakeMail

	categories *CategoryService
	words      *ImageWordService
	profiles   *ProfileService
	seeder     *Seeder
	users      *UserService
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithCatalog(t, seed.Default())
}

func newHarnessWithCatalog(t *testing.T, catalog seed.Catalog) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{db: db, mock: mock, mem: newMemDB(), store: blobtest.New(), mail: &fakeMail{}}
	h.repos = fakeRepoManager{m: h.mem}
	log := logging.Nop()
	coord := assets.NewCoordinator(db, h.store, log, nil)

	h.categories = NewCategoryService(db, h.repos, coord, log)
	h.words = NewImageWordService(db, h.repos, coord, log)
	h.seeder = NewSeeder(h.repos, h.categories, h.words, catalog, log)
	h.profiles = NewProfileService(db, h.repos, coord, h.seeder, log)

	cfg := &config.Config{
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
		DefaultPIN:                  "9999",
		ResetTokenTTL:               time.Hour,
		AppURL:                      "board.example",
	}
	h.users = NewUserService(db, h.repos, coord, h.seeder, h.mail, cfg, log)
	return h
}

func (h *harness) expectCommit() {
	h.mock.ExpectBegin()
	h.mock.ExpectCommit()
}

func (h *harness) expectRollback() {
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()
}

// addUser inserts a user with an empty profile and returns both ids.
func (h *harness) addUser(t *testing.T, email string) (string, int64) {
	t.Helper()
	u, err := h.repos.Users(nil).Create(context.Background(), &models.User{Email: email, IsActive: true})
	require.NoError(t, err)
	p, err := h.repos.Profiles(nil).Create(context.Background(), u.ID, "Mine")
	require.NoError(t, err)
	return u.ID, p.ID
}

// addCategory inserts a category with a stored image.
func (h *harness) addCategory(t *testing.T, profileID int64, name string) *models.Category {
	t.Helper()
	key := "cat-" + strings.ToLower(name) + ".png"
	h.store.Put(key, []byte("img"))
	c, err := h.repos.Categories(nil).Create(context.Background(), &models.Category{ProfileID: profileID, Name: name, ImageKey: key})
	require.NoError(t, err)
	return c
}

// addWord inserts an image word with a stored image.
func (h *harness) addWord(t *testing.T, categoryID int64, word string) *models.ImageWord {
	t.Helper()
	key := "word-" + strings.ToLower(word) + ".png"
	h.store.Put(key, []byte("img"))
	w, err := h.repos.ImageWords(nil).Create(context.Background(), &models.ImageWord{CategoryID: categoryID, Word: word, ImageKey: key})
	require.NoError(t, err)
	return w
}

func png(name string) *Image {
	return &Image{Content: []byte("\x89PNG fake"), Filename: name}
}

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}
