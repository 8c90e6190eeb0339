package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/treehouse-chat/treehouse-backend/internal/profiles"
	"github.com/treehouse-chat/treehouse-backend/internal/users"
	"github.com/treehouse-chat/treehouse-backend/pkg/config"
	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
	pkgerrors "github.com/treehouse-chat/treehouse-backend/pkg/errors"
	"github.com/treehouse-chat/treehouse-backend/pkg/security"
)

const PasswordMinLength = 8

// RegisterRequest contains the payload required for creating an account.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Username string `json:"username" validate:"required"`
}

// RegisterService handles the account creation transaction.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) error
}

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type registerUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
}

type registerProfileRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.Profile, error)
	Create(ctx context.Context, dto profiles.CreateProfileDTO) (*models.Profile, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	TxRunner           TxRunner
	UserRepoFactory    func(tx *gorm.DB) registerUserRepository
	ProfileRepoFactory func(tx *gorm.DB) registerProfileRepository
	PasswordConfig     config.PasswordConfig
}

type registerService struct {
	tx          TxRunner
	userRepo    func(tx *gorm.DB) registerUserRepository
	profileRepo func(tx *gorm.DB) registerProfileRepository
	passwordCfg config.PasswordConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.UserRepoFactory == nil {
		params.UserRepoFactory = func(tx *gorm.DB) registerUserRepository {
			return users.NewRepository(tx)
		}
	}
	if params.ProfileRepoFactory == nil {
		params.ProfileRepoFactory = func(tx *gorm.DB) registerProfileRepository {
			return profiles.NewRepository(tx)
		}
	}
	return &registerService{
		tx:          params.TxRunner,
		userRepo:    params.UserRepoFactory,
		profileRepo: params.ProfileRepoFactory,
		passwordCfg: params.PasswordConfig,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) error {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if len(req.Password) < PasswordMinLength {
		return pkgerrors.New(
			pkgerrors.CodeValidation,
			fmt.Sprintf("password must be at least %d characters", PasswordMinLength),
		)
	}
	username, err := profiles.NormalizeUsername(req.Username)
	if err != nil {
		return err
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.userRepo(tx)
		profileRepo := s.profileRepo(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		if _, err := profileRepo.FindByUsername(ctx, username); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check username")
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		if _, err := profileRepo.Create(ctx, profiles.CreateProfileDTO{
			UserID:   user.ID,
			Username: username,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create profile")
		}

		return nil
	})
}
