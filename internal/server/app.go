// Package server wires the board server together: database and migrations,
// the blob store, services, the REST API, the gRPC health endpoint and the
// background jobs. It also owns graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/talkboard/internal/logging"
	"github.com/dmitrijs2005/talkboard/internal/server/assets"
	"github.com/dmitrijs2005/talkboard/internal/server/blob"
	"github.com/dmitrijs2005/talkboard/internal/server/config"
	"github.com/dmitrijs2005/talkboard/internal/server/httpapi"
	"github.com/dmitrijs2005/talkboard/internal/server/jobs"
	"github.com/dmitrijs2005/talkboard/internal/server/metrics"
	"github.com/dmitrijs2005/talkboard/internal/server/models"
	"github.com/dmitrijs2005/talkboard/internal/server/morph"
	"github.com/dmitrijs2005/talkboard/internal/server/notify"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/talkboard/internal/server/seed"
	"github.com/dmitrijs2005/talkboard/internal/server/services"
	"github.com/dmitrijs2005/talkboard/internal/server/tts"

	gs "github.com/dmitrijs2005/talkboard/internal/server/grpc"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	store   blob.Store
	redis   io.Closer
	metrics *metrics.Metrics

	users      *services.UserService
	profiles   *services.ProfileService
	categories *services.CategoryService
	words      *services.ImageWordService

	mail    *notify.Dispatcher
	tts     *tts.Client
	janitor *jobs.TokenJanitor
}

// NewApp connects to the database, applies migrations and builds every
// service. The caller owns the returned App and must call Close.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(c.LogFormat)
	if err != nil {
		return nil, err
	}

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, rdb, err := newStore(ctx, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	m := metrics.New()
	coord := assets.NewCoordinator(db, store, logger, m)

	var mailer notify.Mailer = notify.NewLogMailer(logger)
	if c.SMTPServer != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Server:   c.SMTPServer,
			Port:     c.SMTPPort,
			User:     c.SMTPUser,
			Password: c.SMTPPassword,
			Sender:   c.SMTPSender,
		})
	} else {
		logger.Warn(ctx, "SMTP server not configured, emails are only logged")
	}
	mail := notify.NewDispatcher(mailer, c.MailWorkers, logger, m)

	categories := services.NewCategoryService(db, repos, coord, logger)
	words := services.NewImageWordService(db, repos, coord, logger)
	seeder := services.NewSeeder(repos, categories, words, seed.Default(), logger)
	profiles := services.NewProfileService(db, repos, coord, seeder, logger)
	users := services.NewUserService(db, repos, coord, seeder, mail, c, logger)

	speech := tts.NewClient(c.TTSURL, &http.Client{Timeout: c.TTSTimeout}, logger, tts.WithRecorder(m))

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		store:      store,
		redis:      rdb,
		metrics:    m,
		users:      users,
		profiles:   profiles,
		categories: categories,
		words:      words,
		mail:       mail,
		tts:        speech,
		janitor:    jobs.NewTokenJanitor(repos.ResetTokens(db), logger),
	}, nil
}

// newStore picks the blob backend. R2 presigned URLs are cached in Redis
// when an address is configured, otherwise in process memory. The returned
// closer is the Redis client, or nil.
func newStore(ctx context.Context, c *config.Config, logger logging.Logger) (blob.Store, io.Closer, error) {
	if c.StorageType == config.StorageLocal {
		logger.Info(ctx, "using local blob storage", "dir", c.UploadDir)
		store, err := blob.NewLocalStore(c.UploadDir)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}

	var cache blob.URLCache = blob.NewMemoryURLCache()
	var closer io.Closer
	if c.RedisAddr != "" {
		rdb, err := blob.NewRedisClient(ctx, c.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		cache = blob.NewRedisURLCache(rdb)
		closer = rdb
	}
	logger.Info(ctx, "using r2 blob storage", "bucket", c.S3Bucket, "redis", c.RedisAddr != "")
	store, err := blob.NewR2Store(ctx, blob.R2Config{
		AccessKeyID:     c.S3AccessKeyID,
		SecretAccessKey: c.S3SecretAccessKey,
		Bucket:          c.S3Bucket,
		Region:          c.S3Region,
		Endpoint:        c.S3BaseEndpoint,
	}, cache)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, err
	}
	return store, closer, nil
}

// RegisterUser creates a user with a seeded first profile, bypassing the
// HTTP layer. Used by the createuser command.
func (app *App) RegisterUser(ctx context.Context, email, password string) (*models.User, error) {
	return app.users.Register(ctx, email, password)
}

// Handler returns the REST router.
func (app *App) Handler() http.Handler {
	var uploadDir string
	if app.config.StorageType == config.StorageLocal {
		uploadDir = app.config.UploadDir
	}
	return httpapi.NewRouter(httpapi.Deps{
		Users:          app.users,
		Profiles:       app.profiles,
		Categories:     app.categories,
		Words:          app.words,
		TTS:            app.tts,
		Morph:          morph.NewTriggerTransformer(morph.Identity),
		Store:          app.store,
		UploadDir:      uploadDir,
		ImageURLTTL:    app.config.PresignTTL,
		Logger:         app.logger,
		Metrics:        app.metrics,
		MetricsHandler: app.metrics.Handler(),
		Health:         app.db.PingContext,
		CORSOrigins:    app.config.CORSOrigins,
		TTSRate:        app.config.TTSRateLimit,
		TTSBurst:       app.config.TTSRateBurst,
	})
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "HTTP server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.db, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until SIGINT, SIGTERM or SIGQUIT, or until a listener fails,
// then shuts everything down.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.janitor.Start(ctx, app.config.TokenJanitorSchedule); err != nil {
		app.logger.Error(ctx, "token janitor not started", "error", err)
	}

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.logger.Info(ctx, "Stopping app...")
}

// Close stops background work and releases resources. Queued emails get up
// to shutdownTimeout to go out.
func (app *App) Close(ctx context.Context) error {
	app.janitor.Stop()

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := app.mail.Drain(drainCtx); err != nil {
		errs = append(errs, fmt.Errorf("drain mail: %w", err))
	}
	app.tts.Close()
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if err := app.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close db: %w", err))
	}
	// Flush errors on stdout/stderr (ENOTTY, EINVAL) are expected and ignored.
	_ = logging.Sync(app.logger)
	return errors.Join(errs...)
}
