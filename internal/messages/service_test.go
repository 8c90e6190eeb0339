package messages

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
	pkgerrors "github.com/treehouse-chat/treehouse-backend/pkg/errors"
	"github.com/treehouse-chat/treehouse-backend/pkg/pagination"
)

type fakeMessageRepo struct {
	rows []MessageDTO
}

func (f *fakeMessageRepo) Create(ctx context.Context, dto CreateMessageDTO) (*models.Message, error) {
	message := dto.ToModel()
	message.ID = uuid.New()
	message.CreatedAt = time.Now().UTC()
	f.rows = append(f.rows, *FromModel(message))
	return message, nil
}

func (f *fakeMessageRepo) ListChannelPage(ctx context.Context, channelID uuid.UUID, cursor *pagination.Cursor, limit int) ([]MessageDTO, error) {
	sorted := make([]MessageDTO, 0, len(f.rows))
	for _, row := range f.rows {
		if row.ChannelID != channelID {
			continue
		}
		if cursor != nil && !row.CreatedAt.Before(cursor.CreatedAt) {
			continue
		}
		sorted = append(sorted, row)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

type allowAllAccess struct{}

func (allowAllAccess) RequireMember(ctx context.Context, userID, channelID uuid.UUID) error {
	return nil
}

type denyAccess struct{}

func (denyAccess) RequireMember(ctx context.Context, userID, channelID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeForbidden, "not a channel member")
}

type fakeProfileLookup struct {
	username string
}

func (f fakeProfileLookup) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	if f.username == "" {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.Profile{ID: userID, Username: f.username}, nil
}

type capturePublisher struct {
	events []string
	last   any
}

func (c *capturePublisher) Publish(ctx context.Context, channelID uuid.UUID, eventType string, payload any) error {
	c.events = append(c.events, eventType)
	c.last = payload
	return nil
}

func TestSendPersistsAndPublishes(t *testing.T) {
	repo := &fakeMessageRepo{}
	publisher := &capturePublisher{}
	svc, err := NewService(ServiceParams{
		MessageRepo: repo,
		Access:      allowAllAccess{},
		ProfileRepo: fakeProfileLookup{username: "ada_l"},
		Publisher:   publisher,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	channelID := uuid.New()
	dto, err := svc.Send(context.Background(), uuid.New(), channelID, SendMessageRequest{Content: " hello tree "})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if dto.Content != "hello tree" {
		t.Fatalf("expected trimmed content, got %q", dto.Content)
	}
	if dto.Username != "ada_l" {
		t.Fatalf("expected username on dto, got %q", dto.Username)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("expected one stored message, got %d", len(repo.rows))
	}
	if len(publisher.events) != 1 || publisher.events[0] != EventMessageCreated {
		t.Fatalf("expected %s event, got %v", EventMessageCreated, publisher.events)
	}
}

func TestSendValidatesContent(t *testing.T) {
	svc, err := NewService(ServiceParams{
		MessageRepo: &fakeMessageRepo{},
		Access:      allowAllAccess{},
		ProfileRepo: fakeProfileLookup{},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cases := []struct {
		name    string
		content string
	}{
		{"empty", "   "},
		{"too long", strings.Repeat("x", ContentMaxLength+1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Send(context.Background(), uuid.New(), uuid.New(), SendMessageRequest{Content: tc.content})
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSendRequiresMembership(t *testing.T) {
	publisher := &capturePublisher{}
	svc, err := NewService(ServiceParams{
		MessageRepo: &fakeMessageRepo{},
		Access:      denyAccess{},
		ProfileRepo: fakeProfileLookup{},
		Publisher:   publisher,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Send(context.Background(), uuid.New(), uuid.New(), SendMessageRequest{Content: "hi"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}
	if len(publisher.events) != 0 {
		t.Fatalf("expected no events, got %v", publisher.events)
	}
}

func TestListPaginatesWithCursor(t *testing.T) {
	repo := &fakeMessageRepo{}
	svc, err := NewService(ServiceParams{
		MessageRepo: repo,
		Access:      allowAllAccess{},
		ProfileRepo: fakeProfileLookup{},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	channelID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		repo.rows = append(repo.rows, MessageDTO{
			ID:        uuid.New(),
			ChannelID: channelID,
			UserID:    uuid.New(),
			Content:   "msg",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	page, err := svc.List(context.Background(), uuid.New(), channelID, ListMessagesRequest{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(page.Messages))
	}
	if !page.HasMore || page.NextCursor == "" {
		t.Fatalf("expected more pages, got %+v", page)
	}
	if page.Messages[0].CreatedAt.Before(page.Messages[1].CreatedAt) {
		t.Fatal("expected newest-first ordering")
	}

	second, err := svc.List(context.Background(), uuid.New(), channelID, ListMessagesRequest{
		Limit:  2,
		Cursor: page.NextCursor,
	})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second.Messages) != 2 {
		t.Fatalf("expected 2 messages on second page, got %d", len(second.Messages))
	}
	if !second.Messages[0].CreatedAt.Before(page.Messages[1].CreatedAt) {
		t.Fatal("expected second page strictly older than first")
	}

	third, err := svc.List(context.Background(), uuid.New(), channelID, ListMessagesRequest{
		Limit:  2,
		Cursor: second.NextCursor,
	})
	if err != nil {
		t.Fatalf("list third page: %v", err)
	}
	if len(third.Messages) != 1 || third.HasMore {
		t.Fatalf("expected final page of 1, got %+v", third)
	}
}

func TestListRejectsMalformedCursor(t *testing.T) {
	svc, err := NewService(ServiceParams{
		MessageRepo: &fakeMessageRepo{},
		Access:      allowAllAccess{},
		ProfileRepo: fakeProfileLookup{},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.List(context.Background(), uuid.New(), uuid.New(), ListMessagesRequest{Cursor: "not-base64!"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
