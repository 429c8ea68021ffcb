package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/talkboard/internal/common"
	"github.com/dmitrijs2005/talkboard/internal/server/blob/blobtest"
	"github.com/dmitrijs2005/talkboard/internal/server/models"
	"github.com/dmitrijs2005/talkboard/internal/server/morph"
	"github.com/dmitrijs2005/talkboard/internal/server/services"
	"github.com/dmitrijs2005/talkboard/internal/server/tts"
	"github.com/stretchr/testify/require"
)

const (
	testToken  = "good-token"
	testUserID = "user-1"
)

type fakeUsers struct {
	registered    []string
	registerErr   error
	loginErr      error
	pin           string
	pinErr        error
	resetPINCalls int
	resetEmails   []string
	resetOK       bool
	resetErr      error
}

func (f *fakeUsers) Register(ctx context.Context, email, password string) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.registered = append(f.registered, email)
	return &models.User{ID: "new-id", Email: email, IsActive: true}, nil
}

func (f *fakeUsers) Login(ctx context.Context, email, password string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return testToken, nil
}

func (f *fakeUsers) UserIDFromToken(token string) (string, error) {
	switch token {
	case testToken:
		return testUserID, nil
	case "expired":
		return "", common.ErrTokenExpired
	default:
		return "", common.ErrInvalidToken
	}
}

func (f *fakeUsers) GetPIN(ctx context.Context, userID string) (string, error) {
	return f.pin, f.pinErr
}

func (f *fakeUsers) UpdatePIN(ctx context.Context, userID, pin string) error {
	if f.pinErr != nil {
		return f.pinErr
	}
	f.pin = pin
	return nil
}

func (f *fakeUsers) ResetPIN(ctx context.Context, userID string) error {
	f.resetPINCalls++
	return nil
}

func (f *fakeUsers) RequestPasswordReset(ctx context.Context, email string) {
	f.resetEmails = append(f.resetEmails, email)
}

func (f *fakeUsers) CompletePasswordReset(ctx context.Context, token, newPassword string) (bool, error) {
	return f.resetOK, f.resetErr
}

// fakeBoard serves profiles, categories and image words from fixed data and
// records the last mutation arguments.
type fakeBoard struct {
	userID     string
	profile    *models.Profile
	err        error
	lastName   string
	lastImage  *services.Image
	catPatch   services.CategoryPatch
	wordPatch  services.ImageWordPatch
	deletedIDs []int64
}

func (f *fakeBoard) owned(userID string) error {
	if f.err != nil {
		return f.err
	}
	if userID != f.userID {
		return common.ErrNotFound
	}
	return nil
}

func (f *fakeBoard) List(ctx context.Context, userID string) ([]*models.Profile, error) {
	if err := f.owned(userID); err != nil {
		return nil, err
	}
	return []*models.Profile{f.profile}, nil
}

func (f *fakeBoard) Get(ctx context.Context, userID string, id int64) (*models.Profile, error) {
	if err := f.owned(userID); err != nil {
		return nil, err
	}
	if id != f.profile.ID {
		return nil, common.ErrNotFound
	}
	return f.profile, nil
}

func (f *fakeBoard) Create(ctx context.Context, userID string, name string) (*models.Profile, error) {
	if err := f.owned(userID); err != nil {
		return nil, err
	}
	f.lastName = name
	return &models.Profile{ID: 99, UserID: userID, Name: name}, nil
}

func (f *fakeBoard) Delete(ctx context.Context, userID string, id int64) error {
	if err := f.owned(userID); err != nil {
		return err
	}
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

type fakeCategories struct{ *fakeBoard }

func (f fakeCategories) ListByProfile(ctx context.Context, userID string, profileID int64) ([]*models.Category, error) {
	if _, err := f.fakeBoard.Get(ctx, userID, profileID); err != nil {
		return nil, err
	}
	return f.profile.Categories, nil
}

func (f fakeCategories) Get(ctx context.Context, userID string, id int64) (*models.Category, error) {
	if err := f.owned(userID); err != nil {
		return nil, err
	}
	for _, c := range f.profile.Categories {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f fakeCategories) Create(ctx context.Context, userID string, profileID int64, name string, img *services.Image) (*models.Category, error) {
	if err := f.owned(userID); err != nil {
		return nil, err
	}
	f.lastName, f.lastImage = name, img
	return &models.Category{ID: 50, ProfileID: profileID, Name: name, ImageKey: "new.png"}, nil
}

func (f fakeCategories) Update(ctx context.Context, userID string, id int64, patch services.CategoryPatch) (*models.Category, error) {
	c, err := f.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	f.catPatch = patch
	return c, nil
}

func (f fakeCategories) Delete(ctx context.Context, userID string, id int64) error {
	if _, err := f.Get(ctx, userID, id); err != nil {
		return err
	}
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

type fakeWords struct{ *fakeBoard }

func (f fakeWords) find(userID string, id int64) (*models.ImageWord, error) {
	if err := f.owned(userID); err != nil {
		return nil, err
	}
	for _, c := range f.profile.Categories {
		for _, w := range c.Items {
			if w.ID == id {
				return w, nil
			}
		}
	}
	return nil, common.ErrNotFound
}

func (f fakeWords) ListByCategory(ctx context.Context, userID string, categoryID int64) ([]*models.ImageWord, error) {
	c, err := fakeCategories(f).Get(ctx, userID, categoryID)
	if err != nil {
		return nil, err
	}
	return c.Items, nil
}

func (f fakeWords) Get(ctx context.Context, userID string, id int64) (*models.ImageWord, error) {
	return f.find(userID, id)
}

func (f fakeWords) Create(ctx context.Context, userID string, categoryID int64, word string, img *services.Image) (*models.ImageWord, error) {
	if err := f.owned(userID); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, common.ErrValidation
	}
	f.lastName, f.lastImage = word, img
	return &models.ImageWord{ID: 70, CategoryID: categoryID, Word: word, ImageKey: "w.png"}, nil
}

func (f fakeWords) Update(ctx context.Context, userID string, id int64, patch services.ImageWordPatch) (*models.ImageWord, error) {
	w, err := f.find(userID, id)
	if err != nil {
		return nil, err
	}
	f.wordPatch = patch
	return w, nil
}

func (f fakeWords) Delete(ctx context.Context, userID string, id int64) error {
	if _, err := f.find(userID, id); err != nil {
		return err
	}
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

type fakeTTS struct {
	got   tts.Request
	audio []byte
	err   error
}

func (f *fakeTTS) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	f.got = req
	return f.audio, f.err
}

type recordedRequest struct {
	method, route string
	status        int
}

type fakeRecorder struct {
	inFlight int
	requests []recordedRequest
}

func (f *fakeRecorder) IncInFlight() { f.inFlight++ }
func (f *fakeRecorder) DecInFlight() { f.inFlight-- }
func (f *fakeRecorder) RecordHTTPRequest(method, route string, status int, _ time.Duration) {
	f.requests = append(f.requests, recordedRequest{method, route, status})
}

type testAPI struct {
	handler  http.Handler
	users    *fakeUsers
	board    *fakeBoard
	tts      *fakeTTS
	store    *blobtest.Store
	recorder *fakeRecorder
	dir      string
}

func boardFixture() *models.Profile {
	return &models.Profile{
		ID: 1, UserID: testUserID, Name: "Mine",
		Categories: []*models.Category{{
			ID: 10, ProfileID: 1, Name: "Food", ImageKey: "food.png",
			Items: []*models.ImageWord{
				{ID: 100, CategoryID: 10, Word: "apple", ImageKey: "apple.png"},
				{ID: 101, CategoryID: 10, Word: "bread"},
			},
		}},
	}
}

func newTestAPI(t *testing.T, mutate ...func(*Deps)) *testAPI {
	t.Helper()
	a := &testAPI{
		users:    &fakeUsers{pin: "1234", resetOK: true},
		board:    &fakeBoard{userID: testUserID, profile: boardFixture()},
		tts:      &fakeTTS{audio: []byte("RIFF")},
		store:    blobtest.New(),
		recorder: &fakeRecorder{},
		dir:      t.TempDir(),
	}
	d := Deps{
		Users:       a.users,
		Profiles:    a.board,
		Categories:  fakeCategories{a.board},
		Words:       fakeWords{a.board},
		TTS:         a.tts,
		Morph:       morph.NewTriggerTransformer(nil),
		Store:       a.store,
		UploadDir:   a.dir,
		Metrics:     a.recorder,
		CORSOrigins: []string{"http://localhost:5173"},
		TTSRate:     100,
		TTSBurst:    100,
	}
	for _, m := range mutate {
		m(&d)
	}
	a.handler = NewRouter(d)
	return a
}

func (a *testAPI) do(t *testing.T, method, path string, body io.Reader, contentType string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) doJSON(t *testing.T, method, path string, payload any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	return a.do(t, method, path, body, "application/json", authed)
}

type formFile struct {
	field, name string
	content     []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	decodeBody(t, rec, &body)
	return body.Error.Code
}
