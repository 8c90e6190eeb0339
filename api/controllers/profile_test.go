package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/treehouse-chat/treehouse-backend/internal/profiles"
	pkgerrors "github.com/treehouse-chat/treehouse-backend/pkg/errors"
)

type stubProfileService struct {
	getResp    *profiles.ProfileDTO
	getErr     error
	updateResp *profiles.ProfileDTO
	updateErr  error

	lastUserID uuid.UUID
	lastReq    profiles.UpdateProfileRequest
}

func (s *stubProfileService) Get(ctx context.Context, userID uuid.UUID) (*profiles.ProfileDTO, error) {
	s.lastUserID = userID
	return s.getResp, s.getErr
}

func (s *stubProfileService) UpdateUsername(ctx context.Context, userID uuid.UUID, req profiles.UpdateProfileRequest) (*profiles.ProfileDTO, error) {
	s.lastUserID = userID
	s.lastReq = req
	return s.updateResp, s.updateErr
}

func TestProfileMe(t *testing.T) {
	userID := uuid.New()
	svc := &stubProfileService{getResp: &profiles.ProfileDTO{ID: userID, Username: "gopher"}}
	handler := ProfileMe(svc, nil)

	req := authedRequest(http.MethodGet, "/api/v1/users/me", nil, userID, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastUserID != userID {
		t.Fatalf("expected lookup for %s got %s", userID, svc.lastUserID)
	}

	var envelope struct {
		Data profiles.ProfileDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Username != "gopher" {
		t.Fatalf("unexpected profile %+v", envelope.Data)
	}
}

func TestProfileUpdateUsernameConflict(t *testing.T) {
	svc := &stubProfileService{updateErr: pkgerrors.New(pkgerrors.CodeConflict, "username already taken")}
	handler := ProfileUpdate(svc, nil)

	req := authedRequest(http.MethodPatch, "/api/v1/users/me", bytes.NewBufferString(`{"username":"taken_name"}`), uuid.New(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	if svc.lastReq.Username != "taken_name" {
		t.Fatalf("expected username passed through got %q", svc.lastReq.Username)
	}
}

func TestProfileUpdateRequiresUsername(t *testing.T) {
	handler := ProfileUpdate(&stubProfileService{}, nil)

	req := authedRequest(http.MethodPatch, "/api/v1/users/me", bytes.NewBufferString(`{}`), uuid.New(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
