package profiles

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
	pkgerrors "github.com/treehouse-chat/treehouse-backend/pkg/errors"
)

const (
	UsernameMinLength = 3
	UsernameMaxLength = 20
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// UpdateProfileRequest carries the mutable profile fields.
type UpdateProfileRequest struct {
	Username string `json:"username" validate:"required"`
}

// Service defines the behavior needed by the profile controller.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error)
	UpdateUsername(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*ProfileDTO, error)
}

type profileRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	FindByUsername(ctx context.Context, username string) (*models.Profile, error)
	UpdateUsername(ctx context.Context, userID uuid.UUID, username string) error
}

type service struct {
	repo profileRepository
}

// NewService constructs a profile service with the provided repository.
func NewService(repo profileRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("profile repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error) {
	profile, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup profile")
	}
	return FromModel(profile), nil
}

func (s *service) UpdateUsername(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*ProfileDTO, error) {
	username, err := NormalizeUsername(req.Username)
	if err != nil {
		return nil, err
	}

	if existing, err := s.repo.FindByUsername(ctx, username); err == nil {
		if existing.ID == userID {
			return FromModel(existing), nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check username")
	}

	if err := s.repo.UpdateUsername(ctx, userID, username); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update username")
	}

	profile, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload profile")
	}
	return FromModel(profile), nil
}

// NormalizeUsername trims the handle and enforces length and charset rules.
func NormalizeUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if len(username) < UsernameMinLength || len(username) > UsernameMaxLength {
		return "", pkgerrors.New(
			pkgerrors.CodeValidation,
			fmt.Sprintf("username must be %d-%d characters", UsernameMinLength, UsernameMaxLength),
		)
	}
	if !usernameRe.MatchString(username) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "username may only contain letters, numbers, and underscores")
	}
	return username, nil
}
