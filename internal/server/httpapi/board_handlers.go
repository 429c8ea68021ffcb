package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/talkboard/internal/server/services"
)

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// parseForm reads a multipart body bounded by maxUploadBody.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		return errors.New("invalid multipart form")
	}
	return nil
}

// formValue reports whether field was sent at all, so an update can tell
// "unchanged" apart from "set to empty".
func formValue(r *http.Request, field string) (string, bool) {
	if r.MultipartForm == nil {
		return "", false
	}
	v, ok := r.MultipartForm.Value[field]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// formImage returns the uploaded file under field, or nil when none was sent.
func formImage(r *http.Request, field string) (*services.Image, error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New("invalid image file")
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.New("cannot read image file")
	}
	return &services.Image{Content: content, Filename: hdr.Filename}, nil
}

func (h *handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ps, err := h.profiles.List(ctx, UserIDFrom(ctx))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]profileOut, 0, len(ps))
	for _, p := range ps {
		out = append(out, h.toProfileOut(ctx, p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ctx := r.Context()
	p, err := h.profiles.Get(ctx, UserIDFrom(ctx), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProfileOut(ctx, p))
}

func (h *handler) createProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	ctx := r.Context()
	p, err := h.profiles.Create(ctx, UserIDFrom(ctx), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toProfileOut(ctx, p))
}

func (h *handler) deleteProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ctx := r.Context()
	if err := h.profiles.Delete(ctx, UserIDFrom(ctx), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listCategories(w http.ResponseWriter, r *http.Request) {
	profileID, err := pathID(r, "profileID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ctx := r.Context()
	cs, err := h.categories.ListByProfile(ctx, UserIDFrom(ctx), profileID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCategoriesOut(ctx, cs))
}

func (h *handler) getCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ctx := r.Context()
	c, err := h.categories.Get(ctx, UserIDFrom(ctx), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCategoryOut(ctx, c))
}

func (h *handler) createCategory(w http.ResponseWriter, r *http.Request) {
	profileID, err := pathID(r, "profileID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := parseForm(w, r); err != nil {
		badRequest(w, err.Error())
		return
	}
	img, err := formImage(r, "imageFile")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	name, _ := formValue(r, "name")

	ctx := r.Context()
	c, err := h.categories.Create(ctx, UserIDFrom(ctx), profileID, name, img)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toCategoryOut(ctx, c))
}

func (h *handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := parseForm(w, r); err != nil {
		badRequest(w, err.Error())
		return
	}
	var patch services.CategoryPatch
	if name, ok := formValue(r, "name"); ok {
		patch.Name = &name
	}
	if patch.Image, err = formImage(r, "imageFile"); err != nil {
		badRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	c, err := h.categories.Update(ctx, UserIDFrom(ctx), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCategoryOut(ctx, c))
}

func (h *handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ctx := r.Context()
	if err := h.categories.Delete(ctx, UserIDFrom(ctx), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listImageWords(w http.ResponseWriter, r *http.Request) {
	categoryID, err := pathID(r, "categoryID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ctx := r.Context()
	ws, err := h.words.ListByCategory(ctx, UserIDFrom(ctx), categoryID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toImageWordsOut(ctx, ws))
}

func (h *handler) getImageWord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ctx := r.Context()
	iw, err := h.words.Get(ctx, UserIDFrom(ctx), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toImageWordOut(ctx, iw))
}

func (h *handler) createImageWord(w http.ResponseWriter, r *http.Request) {
	categoryID, err := pathID(r, "categoryID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := parseForm(w, r); err != nil {
		badRequest(w, err.Error())
		return
	}
	img, err := formImage(r, "imageFile")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	word, _ := formValue(r, "word")

	ctx := r.Context()
	iw, err := h.words.Create(ctx, UserIDFrom(ctx), categoryID, word, img)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toImageWordOut(ctx, iw))
}

func (h *handler) updateImageWord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := parseForm(w, r); err != nil {
		badRequest(w, err.Error())
		return
	}
	var patch services.ImageWordPatch
	if word, ok := formValue(r, "wordText"); ok {
		patch.Word = &word
	}
	if raw, ok := formValue(r, "categoryId"); ok && strings.TrimSpace(raw) != "" {
		cid, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || cid <= 0 {
			badRequest(w, "invalid categoryId")
			return
		}
		patch.CategoryID = &cid
	}
	if patch.Image, err = formImage(r, "imageFile"); err != nil {
		badRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	iw, err := h.words.Update(ctx, UserIDFrom(ctx), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toImageWordOut(ctx, iw))
}

func (h *handler) deleteImageWord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ctx := r.Context()
	if err := h.words.Delete(ctx, UserIDFrom(ctx), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
