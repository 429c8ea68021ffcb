package httpapi

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/talkboard/internal/server/blob"
	"github.com/dmitrijs2005/talkboard/internal/server/tts"
)

const localServePrefix = "/api/v1/images/serve/"

type speechRequest struct {
	Sentence string   `json:"sentence"`
	Speaker  string   `json:"speaker"`
	Speed    *float64 `json:"speed"`
}

func (h *handler) synthesize(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	text := strings.TrimSpace(req.Sentence)
	if text == "" {
		badRequest(w, "sentence is required")
		return
	}
	out := tts.Request{Text: text, Speaker: req.Speaker, Speed: tts.DefaultSpeed}
	if out.Speaker == "" {
		out.Speaker = tts.DefaultSpeaker
	}
	if req.Speed != nil {
		if *req.Speed <= 0 {
			badRequest(w, "speed must be positive")
			return
		}
		out.Speed = *req.Speed
	}

	audio, err := h.tts.Synthesize(r.Context(), out)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"audioBase64": base64.StdEncoding.EncodeToString(audio),
	})
}

type sentenceWord struct {
	ID             any     `json:"id"`
	Word           string  `json:"word"`
	ImageURL       *string `json:"imageUrl"`
	ConjugatedWord string  `json:"conjugatedWord"`
}

func (h *handler) convert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sentence []sentenceWord `json:"sentence"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	words := make([]string, len(req.Sentence))
	for i, sw := range req.Sentence {
		words[i] = sw.Word
	}
	forms, err := h.morph.Transform(r.Context(), words)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(forms) != len(words) {
		h.writeError(w, r, fmt.Errorf("transformer returned %d words for %d", len(forms), len(words)))
		return
	}
	for i := range req.Sentence {
		req.Sentence[i].ConjugatedWord = forms[i]
	}
	if req.Sentence == nil {
		req.Sentence = []sentenceWord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sentence": req.Sentence})
}

// resolveImage reports where the client can fetch key: a signed cloud URL
// when the store hands one out, otherwise the local serve path if the file
// exists on disk.
func (h *handler) resolveImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if h.store != nil {
		url, err := h.store.URL(r.Context(), key, h.urlTTL)
		if err == nil && (strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "http://")) {
			writeJSON(w, http.StatusOK, map[string]string{"url": url, "source": "cloud"})
			return
		}
		if err != nil {
			h.logger.Debug(r.Context(), "cloud url unavailable", "key", key, "error", err)
		}
	}
	if h.uploadDir != "" {
		if _, err := blob.ResolveLocal(h.uploadDir, key); err == nil {
			writeJSON(w, http.StatusOK, map[string]string{"url": localServePrefix + key, "source": "local"})
			return
		}
	}
	writeErrorStatus(w, http.StatusNotFound, "not_found", "image not found")
}

func (h *handler) serveImage(w http.ResponseWriter, r *http.Request) {
	if h.uploadDir == "" {
		writeErrorStatus(w, http.StatusNotFound, "not_found", "image not found")
		return
	}
	p, err := blob.ResolveLocal(h.uploadDir, chi.URLParam(r, "key"))
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "not_found", "image not found")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, p)
}
