package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
	pkgerrors "github.com/treehouse-chat/treehouse-backend/pkg/errors"
	"github.com/treehouse-chat/treehouse-backend/pkg/security"
)

// DeleteAccountRequest requires the current password as confirmation.
type DeleteAccountRequest struct {
	Password string `json:"password" validate:"required"`
}

// Service handles account-level destructive operations.
type Service interface {
	Delete(ctx context.Context, userID uuid.UUID, req DeleteAccountRequest) error
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	users userLookup
	tx    txRunner
}

// ServiceParams bundles the dependencies required to build an account service.
type ServiceParams struct {
	UserRepo userLookup
	TxRunner txRunner
}

// NewService constructs an account service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	return &service{
		users: params.UserRepo,
		tx:    params.TxRunner,
	}, nil
}

// Delete removes the user row after password confirmation. Profiles, created
// channels, memberships, messages, and invitations cascade in the schema.
func (s *service) Delete(ctx context.Context, userID uuid.UUID, req DeleteAccountRequest) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return pkgerrors.New(pkgerrors.CodeForbidden, "password confirmation failed")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		result := tx.Delete(&models.User{}, "id = ?", userID)
		if result.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "delete account")
		}
		if result.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil
	})
}
