package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/talkboard/internal/common"
	"github.com/dmitrijs2005/talkboard/internal/dbx"
	"github.com/dmitrijs2005/talkboard/internal/logging"
	"github.com/dmitrijs2005/talkboard/internal/server/assets"
	"github.com/dmitrijs2005/talkboard/internal/server/auth"
	"github.com/dmitrijs2005/talkboard/internal/server/config"
	"github.com/dmitrijs2005/talkboard/internal/server/models"
	"github.com/dmitrijs2005/talkboard/internal/server/notify"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/repomanager"
)

const resetTokenBytes = 32

var pinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// MailQueue hands messages to background delivery. *notify.Dispatcher
// satisfies it.
type MailQueue interface {
	Dispatch(msg notify.Message)
}

// UserService handles registration, login, PINs and password resets.
type UserService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	coord  *assets.Coordinator
	seeder *Seeder
	mail   MailQueue
	logger logging.Logger

	jwtSecret     []byte
	tokenValidity time.Duration
	defaultPIN    string
	resetTTL      time.Duration
	appURL        string
	now           func() time.Time
}

func NewUserService(db *sql.DB, repos repomanager.RepositoryManager, coord *assets.Coordinator, seeder *Seeder, mail MailQueue, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		db:            db,
		repos:         repos,
		coord:         coord,
		seeder:        seeder,
		mail:          mail,
		logger:        logger.With("service", "UserService"),
		jwtSecret:     []byte(cfg.SecretKey),
		tokenValidity: cfg.AccessTokenValidityDuration,
		defaultPIN:    cfg.DefaultPIN,
		resetTTL:      cfg.ResetTokenTTL,
		appURL:        cfg.AppURL,
		now:           time.Now,
	}
}

// Register creates the user and seeds their first profile in one unit.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", common.ErrValidation)
	}

	var user *models.User
	err = s.coord.Run(ctx, func(ctx context.Context, u *assets.Unit) error {
		repo := s.repos.Users(u.Tx())
		if _, err := repo.GetByEmail(ctx, email); err == nil {
			return fmt.Errorf("%w: email already registered", common.ErrAlreadyExists)
		} else if !errors.Is(err, common.ErrNotFound) {
			return persistErr("get user", err)
		}

		hashed, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		user, err = repo.Create(ctx, &models.User{Email: email, HashedPassword: hashed, IsActive: true})
		if err != nil {
			return persistErr("insert user", err)
		}
		_, err = s.seeder.SeedIfEmpty(ctx, u, user.ID)
		return err
	})
	if err != nil {
		if !errors.Is(err, common.ErrAlreadyExists) && !errors.Is(err, common.ErrValidation) {
			s.logger.Error(ctx, "registration failed", "error", err)
		}
		return nil, persistErr("register", err)
	}
	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Authenticate checks the credentials and makes sure the user has at least
// one profile. Bad credentials yield common.ErrUnauthorized.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, persistErr("get user", err)
	}
	ok, err := auth.CheckPassword(user.HashedPassword, password)
	if err != nil {
		s.logger.Warn(ctx, "stored password hash is unusable", "user_id", user.ID, "error", err)
		return nil, common.ErrUnauthorized
	}
	if !ok || !user.IsActive {
		return nil, common.ErrUnauthorized
	}

	var seeded bool
	err = s.coord.Run(ctx, func(ctx context.Context, u *assets.Unit) error {
		var err error
		seeded, err = s.seeder.SeedIfEmpty(ctx, u, user.ID)
		return err
	})
	if err != nil {
		return nil, persistErr("seed on login", err)
	}
	if seeded {
		s.logger.Info(ctx, "seeded default profile on login", "user_id", user.ID)
	}
	return user, nil
}

// Login authenticates and issues an access token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", err
	}
	return auth.GenerateToken(user.ID, s.jwtSecret, s.tokenValidity)
}

// UserIDFromToken validates an access token.
func (s *UserService) UserIDFromToken(token string) (string, error) {
	return auth.GetUserIDFromToken(token, s.jwtSecret)
}

func (s *UserService) GetPIN(ctx context.Context, userID string) (string, error) {
	user, err := s.repos.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return "", persistErr("get user", err)
	}
	return user.PIN, nil
}

// UpdatePIN sets a new PIN, which must be exactly four digits.
func (s *UserService) UpdatePIN(ctx context.Context, userID, pin string) error {
	if !pinPattern.MatchString(pin) {
		return fmt.Errorf("%w: PIN must be exactly 4 digits", common.ErrValidation)
	}
	return persistErr("update pin", s.repos.Users(s.db).UpdatePIN(ctx, userID, pin))
}

// ResetPIN restores the default PIN and mails it to the user in the
// background.
func (s *UserService) ResetPIN(ctx context.Context, userID string) error {
	repo := s.repos.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return persistErr("get user", err)
	}
	if err := repo.UpdatePIN(ctx, userID, s.defaultPIN); err != nil {
		return persistErr("reset pin", err)
	}
	s.logger.Info(ctx, "pin reset", "user_id", userID)
	s.mail.Dispatch(notify.PINResetMessage(user.Email, s.defaultPIN))
	return nil
}

// RequestPasswordReset stores a reset token and mails the link. It reports
// nothing to the caller so the response never reveals whether the email is
// registered.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "password reset requested for unknown email")
		} else {
			s.logger.Error(ctx, "password reset lookup failed", "error", err)
		}
		return
	}

	token, err := common.MakeURLSafeToken(resetTokenBytes)
	if err != nil {
		s.logger.Error(ctx, "reset token generation failed", "error", err)
		return
	}
	rec := &models.PasswordResetToken{Token: token, UserID: user.ID, ExpiresAt: s.now().Add(s.resetTTL)}
	if err := s.repos.ResetTokens(s.db).Create(ctx, rec); err != nil {
		s.logger.Error(ctx, "storing reset token failed", "user_id", user.ID, "error", err)
		return
	}
	s.logger.Info(ctx, "stored password reset token", "user_id", user.ID)
	s.mail.Dispatch(notify.PasswordResetMessage(user.Email, s.appURL, token))
}

// CompletePasswordReset sets a new password if token is known and unexpired.
// It returns false for an unknown or expired token; an expired token is
// deleted.
func (s *UserService) CompletePasswordReset(ctx context.Context, token, newPassword string) (bool, error) {
	if newPassword == "" {
		return false, fmt.Errorf("%w: password is required", common.ErrValidation)
	}
	tokens := s.repos.ResetTokens(s.db)
	rec, err := tokens.Find(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, persistErr("find reset token", err)
	}
	if rec.Expired(s.now()) {
		if err := tokens.Delete(ctx, token); err != nil {
			return false, persistErr("delete expired reset token", err)
		}
		return false, nil
	}

	hashed, err := auth.HashPassword(newPassword)
	if err != nil {
		return false, err
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).UpdatePassword(ctx, rec.UserID, hashed); err != nil {
			return err
		}
		return s.repos.ResetTokens(tx).Delete(ctx, token)
	})
	if err != nil {
		return false, persistErr("complete password reset", err)
	}
	s.logger.Info(ctx, "password reset completed", "user_id", rec.UserID)
	return true, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", common.ErrValidation)
	}
	return email, nil
}
