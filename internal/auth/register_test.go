package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/treehouse-chat/treehouse-backend/internal/profiles"
	"github.com/treehouse-chat/treehouse-backend/internal/users"
	"github.com/treehouse-chat/treehouse-backend/pkg/config"
	pkgmodels "github.com/treehouse-chat/treehouse-backend/pkg/db/models"
	pkgerrors "github.com/treehouse-chat/treehouse-backend/pkg/errors"
)

type stubTxRunner struct{}

func (s stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubUserRepository struct {
	data      map[string]*pkgmodels.User
	created   *pkgmodels.User
	createErr error
}

func newStubUserRepository() *stubUserRepository {
	return &stubUserRepository{data: map[string]*pkgmodels.User{}}
}

func (s *stubUserRepository) FindByEmail(ctx context.Context, email string) (*pkgmodels.User, error) {
	if user, ok := s.data[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepository) Create(ctx context.Context, dto users.CreateUserDTO) (*pkgmodels.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	user := &pkgmodels.User{
		ID:           uuid.New(),
		Email:        dto.Email,
		PasswordHash: dto.PasswordHash,
		IsActive:     true,
	}
	s.data[dto.Email] = user
	s.created = user
	return user, nil
}

type stubProfileRepository struct {
	byUsername map[string]*pkgmodels.Profile
	created    *pkgmodels.Profile
}

func newStubProfileRepository() *stubProfileRepository {
	return &stubProfileRepository{byUsername: map[string]*pkgmodels.Profile{}}
}

func (s *stubProfileRepository) FindByUsername(ctx context.Context, username string) (*pkgmodels.Profile, error) {
	if profile, ok := s.byUsername[username]; ok {
		return profile, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubProfileRepository) Create(ctx context.Context, dto profiles.CreateProfileDTO) (*pkgmodels.Profile, error) {
	profile := &pkgmodels.Profile{ID: dto.UserID, Username: dto.Username}
	s.byUsername[dto.Username] = profile
	s.created = profile
	return profile, nil
}

type registerTestSetup struct {
	service     RegisterService
	userRepo    *stubUserRepository
	profileRepo *stubProfileRepository
}

func newRegisterTestSetup(t *testing.T) *registerTestSetup {
	t.Helper()
	userRepo := newStubUserRepository()
	profileRepo := newStubProfileRepository()
	svc, err := NewRegisterService(RegisterServiceParams{
		TxRunner: stubTxRunner{},
		UserRepoFactory: func(tx *gorm.DB) registerUserRepository {
			return userRepo
		},
		ProfileRepoFactory: func(tx *gorm.DB) registerProfileRepository {
			return profileRepo
		},
		PasswordConfig: config.PasswordConfig{},
	})
	if err != nil {
		t.Fatalf("new register service: %v", err)
	}
	return &registerTestSetup{
		service:     svc,
		userRepo:    userRepo,
		profileRepo: profileRepo,
	}
}

func TestRegisterCreatesUserAndProfile(t *testing.T) {
	setup := newRegisterTestSetup(t)

	err := setup.service.Register(context.Background(), RegisterRequest{
		Email:    " New@Example.com ",
		Password: "Secret123!",
		Username: "new_user",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if setup.userRepo.created == nil {
		t.Fatalf("expected user to be created")
	}
	if setup.userRepo.created.Email != "new@example.com" {
		t.Fatalf("expected normalized email, got %q", setup.userRepo.created.Email)
	}
	if setup.userRepo.created.PasswordHash == "Secret123!" {
		t.Fatalf("expected password to be hashed")
	}
	if setup.profileRepo.created == nil {
		t.Fatalf("expected profile to be created")
	}
	if setup.profileRepo.created.ID != setup.userRepo.created.ID {
		t.Fatalf("profile not linked to created user")
	}
	if setup.profileRepo.created.Username != "new_user" {
		t.Fatalf("unexpected username %q", setup.profileRepo.created.Username)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	setup := newRegisterTestSetup(t)
	setup.userRepo.data["taken@example.com"] = &pkgmodels.User{ID: uuid.New(), Email: "taken@example.com"}

	err := setup.service.Register(context.Background(), RegisterRequest{
		Email:    "taken@example.com",
		Password: "Secret123!",
		Username: "whoever",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if setup.userRepo.created != nil {
		t.Fatalf("expected no user creation")
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	setup := newRegisterTestSetup(t)
	setup.profileRepo.byUsername["taken_name"] = &pkgmodels.Profile{ID: uuid.New(), Username: "taken_name"}

	err := setup.service.Register(context.Background(), RegisterRequest{
		Email:    "fresh@example.com",
		Password: "Secret123!",
		Username: "taken_name",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	setup := newRegisterTestSetup(t)

	err := setup.service.Register(context.Background(), RegisterRequest{
		Email:    "short@example.com",
		Password: "short1",
		Username: "short_user",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegisterRejectsBadUsername(t *testing.T) {
	setup := newRegisterTestSetup(t)

	err := setup.service.Register(context.Background(), RegisterRequest{
		Email:    "fresh@example.com",
		Password: "Secret123!",
		Username: "has spaces",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
