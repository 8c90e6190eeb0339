package messages

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
	pkgerrors "github.com/treehouse-chat/treehouse-backend/pkg/errors"
	"github.com/treehouse-chat/treehouse-backend/pkg/pagination"
)

const ContentMaxLength = 2000

// EventMessageCreated is the realtime event type emitted for new messages.
const EventMessageCreated = "message.created"

// SendMessageRequest is the payload for posting a message.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// ListMessagesRequest carries history pagination inputs.
type ListMessagesRequest struct {
	Limit  int
	Cursor string
}

// Service defines the behavior needed by the message controller.
type Service interface {
	Send(ctx context.Context, userID, channelID uuid.UUID, req SendMessageRequest) (*MessageDTO, error)
	List(ctx context.Context, userID, channelID uuid.UUID, req ListMessagesRequest) (*MessagePage, error)
}

type messageRepository interface {
	Create(ctx context.Context, dto CreateMessageDTO) (*models.Message, error)
	ListChannelPage(ctx context.Context, channelID uuid.UUID, cursor *pagination.Cursor, limit int) ([]MessageDTO, error)
}

type membershipChecker interface {
	RequireMember(ctx context.Context, userID, channelID uuid.UUID) error
}

type profileLookup interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, channelID uuid.UUID, eventType string, payload any) error
}

type service struct {
	repo      messageRepository
	access    membershipChecker
	profiles  profileLookup
	publisher eventPublisher
}

// ServiceParams bundles the dependencies required to build a message service.
type ServiceParams struct {
	MessageRepo messageRepository
	Access      membershipChecker
	ProfileRepo profileLookup
	Publisher   eventPublisher
}

// NewService constructs a message service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.MessageRepo == nil {
		return nil, fmt.Errorf("message repository is required")
	}
	if params.Access == nil {
		return nil, fmt.Errorf("membership checker is required")
	}
	if params.ProfileRepo == nil {
		return nil, fmt.Errorf("profile repository is required")
	}
	return &service{
		repo:      params.MessageRepo,
		access:    params.Access,
		profiles:  params.ProfileRepo,
		publisher: params.Publisher,
	}, nil
}

func (s *service) Send(ctx context.Context, userID, channelID uuid.UUID, req SendMessageRequest) (*MessageDTO, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message content is required")
	}
	if len(content) > ContentMaxLength {
		return nil, pkgerrors.New(
			pkgerrors.CodeValidation,
			fmt.Sprintf("message content must be at most %d characters", ContentMaxLength),
		)
	}

	if err := s.access.RequireMember(ctx, userID, channelID); err != nil {
		return nil, err
	}

	message, err := s.repo.Create(ctx, CreateMessageDTO{
		ChannelID: channelID,
		UserID:    userID,
		Content:   content,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create message")
	}

	dto := FromModel(message)
	if profile, err := s.profiles.FindByUserID(ctx, userID); err == nil {
		dto.Username = profile.Username
	}

	// fan-out failures never fail the durable write
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, channelID, EventMessageCreated, dto)
	}

	return dto, nil
}

func (s *service) List(ctx context.Context, userID, channelID uuid.UUID, req ListMessagesRequest) (*MessagePage, error) {
	if err := s.access.RequireMember(ctx, userID, channelID); err != nil {
		return nil, err
	}

	cursor, err := pagination.ParseCursor(req.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(req.Limit)
	rows, err := s.repo.ListChannelPage(ctx, channelID, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list messages")
	}

	page := &MessagePage{Messages: rows}
	if len(rows) > limit {
		page.Messages = rows[:limit]
		page.HasMore = true
		last := page.Messages[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}
