package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/treehouse-chat/treehouse-backend/internal/messages"
)

type stubMessageService struct {
	sendResp *messages.MessageDTO
	sendErr  error
	listResp *messages.MessagePage
	listErr  error

	lastSend messages.SendMessageRequest
	lastList messages.ListMessagesRequest
}

func (s *stubMessageService) Send(ctx context.Context, userID, channelID uuid.UUID, req messages.SendMessageRequest) (*messages.MessageDTO, error) {
	s.lastSend = req
	return s.sendResp, s.sendErr
}

func (s *stubMessageService) List(ctx context.Context, userID, channelID uuid.UUID, req messages.ListMessagesRequest) (*messages.MessagePage, error) {
	s.lastList = req
	return s.listResp, s.listErr
}

func TestMessageSendSuccess(t *testing.T) {
	channelID := uuid.New()
	svc := &stubMessageService{sendResp: &messages.MessageDTO{
		ID:        uuid.New(),
		ChannelID: channelID,
		Content:   "hello",
		Username:  "gopher",
		CreatedAt: time.Now().UTC(),
	}}
	handler := MessageSend(svc, nil)

	req := authedRequest(http.MethodPost, "/api/v1/channels/"+channelID.String()+"/messages",
		bytes.NewBufferString(`{"content":"hello"}`), uuid.New(), map[string]string{"channelId": channelID.String()})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	if svc.lastSend.Content != "hello" {
		t.Fatalf("expected content passed through got %q", svc.lastSend.Content)
	}

	var envelope struct {
		Data messages.MessageDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Username != "gopher" {
		t.Fatalf("unexpected message %+v", envelope.Data)
	}
}

func TestMessageSendRejectsEmptyBody(t *testing.T) {
	channelID := uuid.New()
	handler := MessageSend(&stubMessageService{}, nil)

	req := authedRequest(http.MethodPost, "/api/v1/channels/"+channelID.String()+"/messages",
		bytes.NewBufferString(`{}`), uuid.New(), map[string]string{"channelId": channelID.String()})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestMessageListPassesPagination(t *testing.T) {
	channelID := uuid.New()
	svc := &stubMessageService{listResp: &messages.MessagePage{
		Messages:   []messages.MessageDTO{{ID: uuid.New(), Content: "hi"}},
		NextCursor: "opaque",
		HasMore:    true,
	}}
	handler := MessageList(svc, nil)

	req := authedRequest(http.MethodGet, "/api/v1/channels/"+channelID.String()+"/messages?limit=10&cursor=abc",
		nil, uuid.New(), map[string]string{"channelId": channelID.String()})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastList.Limit != 10 || svc.lastList.Cursor != "abc" {
		t.Fatalf("unexpected pagination %+v", svc.lastList)
	}

	var envelope struct {
		Data messages.MessagePage `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.HasMore || envelope.Data.NextCursor != "opaque" {
		t.Fatalf("unexpected page %+v", envelope.Data)
	}
}

func TestMessageListRejectsOutOfRangeLimit(t *testing.T) {
	channelID := uuid.New()
	handler := MessageList(&stubMessageService{}, nil)

	req := authedRequest(http.MethodGet, "/api/v1/channels/"+channelID.String()+"/messages?limit=500",
		nil, uuid.New(), map[string]string{"channelId": channelID.String()})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
