package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/treehouse-chat/treehouse-backend/pkg/auth"
	"github.com/treehouse-chat/treehouse-backend/pkg/config"
	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
	pkgerrors "github.com/treehouse-chat/treehouse-backend/pkg/errors"
	"github.com/treehouse-chat/treehouse-backend/pkg/security"
)

func TestServiceLoginIssuesTokens(t *testing.T) {
	password := "hunter2secret"
	hashed := mustHashPassword(t, password)
	user := &models.User{
		ID:           uuid.New(),
		Email:        "ada@example.com",
		PasswordHash: hashed,
		IsActive:     true,
	}
	profile := &models.Profile{ID: user.ID, Username: "ada_l"}
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "treehouse",
		ExpirationMinutes: 30,
	}

	svc, err := buildTestService(user, profile, cfg)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "  Ada@Example.com ",
		Password: password,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected user id claim %s, got %s", user.ID, claims.UserID)
	}
	if claims.Username != "ada_l" {
		t.Fatalf("expected username claim, got %q", claims.Username)
	}
	if resp.RefreshToken == "" {
		t.Fatalf("expected refresh token to be set")
	}
	if resp.User.LastLoginAt == nil {
		t.Fatalf("expected last login to be recorded")
	}
	if resp.Profile == nil || resp.Profile.Username != "ada_l" {
		t.Fatalf("expected profile in response, got %+v", resp.Profile)
	}
}

func TestServiceLoginRejectsBadPassword(t *testing.T) {
	user := &models.User{
		ID:           uuid.New(),
		Email:        "ada@example.com",
		PasswordHash: mustHashPassword(t, "correct-password"),
		IsActive:     true,
	}
	profile := &models.Profile{ID: user.ID, Username: "ada_l"}
	cfg := config.JWTConfig{Secret: "secret", Issuer: "treehouse", ExpirationMinutes: 30}

	svc, err := buildTestService(user, profile, cfg)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: "wrong-password",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestServiceLoginRejectsInactiveUser(t *testing.T) {
	password := "hunter2secret"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "ada@example.com",
		PasswordHash: mustHashPassword(t, password),
		IsActive:     false,
	}
	profile := &models.Profile{ID: user.ID, Username: "ada_l"}
	cfg := config.JWTConfig{Secret: "secret", Issuer: "treehouse", ExpirationMinutes: 30}

	svc, err := buildTestService(user, profile, cfg)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: password,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestServiceLoginRejectsUnknownEmail(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "treehouse", ExpirationMinutes: 30}
	svc, err := NewService(ServiceParams{
		UserRepo:       stubUserRepo{err: gorm.ErrRecordNotFound},
		ProfileRepo:    stubProfileRepo{},
		SessionManager: &stubSessionManager{refreshToken: "rt"},
		JWTConfig:      cfg,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "missing@example.com",
		Password: "whatever1",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func buildTestService(user *models.User, profile *models.Profile, jwtCfg config.JWTConfig) (Service, error) {
	return NewService(ServiceParams{
		UserRepo:       stubUserRepo{user: user},
		ProfileRepo:    stubProfileRepo{profile: profile},
		SessionManager: &stubSessionManager{refreshToken: "refresh-token"},
		JWTConfig:      jwtCfg,
	})
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

type stubUserRepo struct {
	user *models.User
	err  error
}

func (s stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

func (s stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s.user != nil && s.user.ID == id {
		s.user.LastLoginAt = &at
	}
	return nil
}

type stubProfileRepo struct {
	profile *models.Profile
	err     error
}

func (s stubProfileRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.profile == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.profile, nil
}

type stubSessionManager struct {
	refreshToken string
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	return s.refreshToken, nil
}
