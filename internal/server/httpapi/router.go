// Package httpapi is the REST surface of the board server. Handlers decode
// requests, call the services and translate their sentinel errors into HTTP
// statuses; they hold no business rules of their own.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dmitrijs2005/talkboard/internal/logging"
	"github.com/dmitrijs2005/talkboard/internal/server/blob"
	"github.com/dmitrijs2005/talkboard/internal/server/models"
	"github.com/dmitrijs2005/talkboard/internal/server/morph"
	"github.com/dmitrijs2005/talkboard/internal/server/services"
	"github.com/dmitrijs2005/talkboard/internal/server/tts"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = 10 << 20
	imageURLTTL   = time.Hour
)

type UserService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	UserIDFromToken(token string) (string, error)
	GetPIN(ctx context.Context, userID string) (string, error)
	UpdatePIN(ctx context.Context, userID, pin string) error
	ResetPIN(ctx context.Context, userID string) error
	RequestPasswordReset(ctx context.Context, email string)
	CompletePasswordReset(ctx context.Context, token, newPassword string) (bool, error)
}

type ProfileService interface {
	List(ctx context.Context, userID string) ([]*models.Profile, error)
	Get(ctx context.Context, userID string, id int64) (*models.Profile, error)
	Create(ctx context.Context, userID string, name string) (*models.Profile, error)
	Delete(ctx context.Context, userID string, id int64) error
}

type CategoryService interface {
	ListByProfile(ctx context.Context, userID string, profileID int64) ([]*models.Category, error)
	Get(ctx context.Context, userID string, id int64) (*models.Category, error)
	Create(ctx context.Context, userID string, profileID int64, name string, img *services.Image) (*models.Category, error)
	Update(ctx context.Context, userID string, id int64, patch services.CategoryPatch) (*models.Category, error)
	Delete(ctx context.Context, userID string, id int64) error
}

type ImageWordService interface {
	ListByCategory(ctx context.Context, userID string, categoryID int64) ([]*models.ImageWord, error)
	Get(ctx context.Context, userID string, id int64) (*models.ImageWord, error)
	Create(ctx context.Context, userID string, categoryID int64, word string, img *services.Image) (*models.ImageWord, error)
	Update(ctx context.Context, userID string, id int64, patch services.ImageWordPatch) (*models.ImageWord, error)
	Delete(ctx context.Context, userID string, id int64) error
}

type Synthesizer interface {
	Synthesize(ctx context.Context, req tts.Request) ([]byte, error)
}

// HTTPRecorder receives per-request metrics. *metrics.Metrics satisfies it.
type HTTPRecorder interface {
	IncInFlight()
	DecInFlight()
	RecordHTTPRequest(method, route string, status int, d time.Duration)
}

// Deps lists everything the router needs. Metrics, MetricsHandler and Health
// are optional; ImageURLTTL defaults to one hour.
type Deps struct {
	Users      UserService
	Profiles   ProfileService
	Categories CategoryService
	Words      ImageWordService
	TTS        Synthesizer
	Morph      morph.Transformer

	Store       blob.Store
	UploadDir   string
	ImageURLTTL time.Duration

	Logger         logging.Logger
	Metrics        HTTPRecorder
	MetricsHandler http.Handler
	Health         func(ctx context.Context) error

	CORSOrigins []string
	TTSRate     float64
	TTSBurst    int
}

type handler struct {
	users      UserService
	profiles   ProfileService
	categories CategoryService
	words      ImageWordService
	tts        Synthesizer
	morph      morph.Transformer
	store      blob.Store
	uploadDir  string
	urlTTL     time.Duration
	health     func(ctx context.Context) error
	logger     logging.Logger
}

// NewRouter builds the chi router serving the whole API.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	h := &handler{
		users:      d.Users,
		profiles:   d.Profiles,
		categories: d.Categories,
		words:      d.Words,
		tts:        d.TTS,
		morph:      d.Morph,
		store:      d.Store,
		uploadDir:  d.UploadDir,
		urlTTL:     d.ImageURLTTL,
		health:     d.Health,
		logger:     logger.With("component", "httpapi"),
	}

	if h.urlTTL <= 0 {
		h.urlTTL = imageURLTTL
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(instrument(d.Metrics))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.healthz)
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}
	r.Get("/shared/{key}", h.serveImage)

	auth := h.authenticate
	limiter := newRateLimiter(d.TTSRate, d.TTSBurst)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.register)
			r.Post("/login", h.login)
			r.Post("/forgot-password", h.forgotPassword)
			r.Post("/reset-password", h.resetPassword)
			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Get("/pin", h.getPIN)
				r.Put("/pin", h.updatePIN)
				r.Post("/reset-pin-request", h.resetPIN)
			})
		})

		r.Route("/images", func(r chi.Router) {
			r.Get("/serve/{key}", h.serveImage)
			r.Get("/{key}", h.resolveImage)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Route("/profiles", func(r chi.Router) {
				r.Get("/me", h.listProfiles)
				r.Post("/", h.createProfile)
				r.Get("/{id}", h.getProfile)
				r.Delete("/{id}", h.deleteProfile)
			})

			r.Route("/categories", func(r chi.Router) {
				r.Get("/profile/{profileID}", h.listCategories)
				r.Post("/profile/{profileID}", h.createCategory)
				r.Get("/{id}", h.getCategory)
				r.Put("/{id}", h.updateCategory)
				r.Delete("/{id}", h.deleteCategory)
			})

			r.Route("/image-words", func(r chi.Router) {
				r.Get("/category/{categoryID}", h.listImageWords)
				r.Post("/category/{categoryID}", h.createImageWord)
				r.Get("/{id}", h.getImageWord)
				r.Put("/{id}", h.updateImageWord)
				r.Delete("/{id}", h.deleteImageWord)
			})

			r.With(limiter.Handler).Post("/tts/audio", h.synthesize)
			r.Post("/morph/convert", h.convert)
		})
	})

	return r
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
