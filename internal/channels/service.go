package channels

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/treehouse-chat/treehouse-backend/internal/memberships"
	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
	pkgerrors "github.com/treehouse-chat/treehouse-backend/pkg/errors"
)

const (
	NameMaxLength        = 50
	DescriptionMaxLength = 200
)

// CreateChannelRequest is the payload for creating a channel.
type CreateChannelRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
}

// UpdateChannelRequest carries the mutable channel fields.
type UpdateChannelRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Service defines the behavior needed by the channel controller.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, req CreateChannelRequest) (*ChannelDTO, error)
	List(ctx context.Context, userID uuid.UUID) ([]ChannelDTO, error)
	Get(ctx context.Context, userID, channelID uuid.UUID) (*ChannelDTO, error)
	Update(ctx context.Context, userID, channelID uuid.UUID, req UpdateChannelRequest) (*ChannelDTO, error)
	Delete(ctx context.Context, userID, channelID uuid.UUID) error
	ListMembers(ctx context.Context, userID, channelID uuid.UUID) ([]memberships.MemberDTO, error)
	Leave(ctx context.Context, userID, channelID uuid.UUID) error
	RequireMember(ctx context.Context, userID, channelID uuid.UUID) error
}

type channelRepository interface {
	Create(ctx context.Context, dto CreateChannelDTO) (*models.Channel, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Channel, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]models.Channel, error)
	Update(ctx context.Context, id uuid.UUID, dto UpdateChannelDTO) error
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

type membershipRepository interface {
	EnsureMember(ctx context.Context, channelID, userID uuid.UUID) error
	IsMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error)
	ListChannelMembers(ctx context.Context, channelID uuid.UUID) ([]memberships.MemberDTO, error)
	Remove(ctx context.Context, channelID, userID uuid.UUID) (int64, error)
}

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	channels    channelRepository
	members     membershipRepository
	tx          TxRunner
	channelRepo func(tx *gorm.DB) channelRepository
	memberRepo  func(tx *gorm.DB) membershipRepository
}

// ServiceParams bundles the dependencies required to build a channel service.
type ServiceParams struct {
	ChannelRepo    channelRepository
	MembershipRepo membershipRepository
	TxRunner       TxRunner

	// Factories rebind the repositories to a transaction handle. Production
	// wiring leaves them nil and gets the real repositories.
	ChannelRepoFactory    func(tx *gorm.DB) channelRepository
	MembershipRepoFactory func(tx *gorm.DB) membershipRepository
}

// NewService constructs a channel service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.ChannelRepo == nil {
		return nil, fmt.Errorf("channel repository is required")
	}
	if params.MembershipRepo == nil {
		return nil, fmt.Errorf("membership repository is required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.ChannelRepoFactory == nil {
		params.ChannelRepoFactory = func(tx *gorm.DB) channelRepository {
			return NewRepository(tx)
		}
	}
	if params.MembershipRepoFactory == nil {
		params.MembershipRepoFactory = func(tx *gorm.DB) membershipRepository {
			return memberships.NewRepository(tx)
		}
	}
	return &service{
		channels:    params.ChannelRepo,
		members:     params.MembershipRepo,
		tx:          params.TxRunner,
		channelRepo: params.ChannelRepoFactory,
		memberRepo:  params.MembershipRepoFactory,
	}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateChannelRequest) (*ChannelDTO, error) {
	name, err := normalizeName(req.Name)
	if err != nil {
		return nil, err
	}
	description, err := normalizeDescription(req.Description)
	if err != nil {
		return nil, err
	}

	// The channel row and the creator's membership land atomically so a
	// half-created channel is never visible.
	var channel *models.Channel
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.channelRepo(tx).Create(ctx, CreateChannelDTO{
			Name:        name,
			Description: description,
			CreatorID:   userID,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create channel")
		}
		if err := s.memberRepo(tx).EnsureMember(ctx, created.ID, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add creator membership")
		}
		channel = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return FromModel(channel), nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]ChannelDTO, error) {
	channels, err := s.channels.ListByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list channels")
	}
	out := make([]ChannelDTO, 0, len(channels))
	for i := range channels {
		out = append(out, *FromModel(&channels[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, userID, channelID uuid.UUID) (*ChannelDTO, error) {
	if err := s.RequireMember(ctx, userID, channelID); err != nil {
		return nil, err
	}

	channel, err := s.channels.FindByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "channel not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup channel")
	}
	return FromModel(channel), nil
}

func (s *service) Update(ctx context.Context, userID, channelID uuid.UUID, req UpdateChannelRequest) (*ChannelDTO, error) {
	channel, err := s.requireCreator(ctx, userID, channelID)
	if err != nil {
		return nil, err
	}

	update := UpdateChannelDTO{}
	if req.Name != nil {
		name, err := normalizeName(*req.Name)
		if err != nil {
			return nil, err
		}
		update.Name = &name
	}
	if req.Description != nil {
		description, err := normalizeDescription(req.Description)
		if err != nil {
			return nil, err
		}
		update.Description = description
	}

	if err := s.channels.Update(ctx, channel.ID, update); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update channel")
	}

	updated, err := s.channels.FindByID(ctx, channel.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload channel")
	}
	return FromModel(updated), nil
}

func (s *service) Delete(ctx context.Context, userID, channelID uuid.UUID) error {
	if _, err := s.requireCreator(ctx, userID, channelID); err != nil {
		return err
	}

	if _, err := s.channels.Delete(ctx, channelID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete channel")
	}
	return nil
}

func (s *service) ListMembers(ctx context.Context, userID, channelID uuid.UUID) ([]memberships.MemberDTO, error) {
	if err := s.RequireMember(ctx, userID, channelID); err != nil {
		return nil, err
	}

	members, err := s.members.ListChannelMembers(ctx, channelID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list members")
	}
	return members, nil
}

func (s *service) Leave(ctx context.Context, userID, channelID uuid.UUID) error {
	channel, err := s.channels.FindByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "channel not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup channel")
	}
	if channel.CreatorID == userID {
		return pkgerrors.New(pkgerrors.CodeValidation, "channel creator cannot leave; delete the channel instead")
	}

	removed, err := s.members.Remove(ctx, channelID, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "leave channel")
	}
	if removed == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
	}
	return nil
}

// RequireMember returns a forbidden error when the user does not belong to the channel.
func (s *service) RequireMember(ctx context.Context, userID, channelID uuid.UUID) error {
	isMember, err := s.members.IsMember(ctx, channelID, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check membership")
	}
	if !isMember {
		return pkgerrors.New(pkgerrors.CodeForbidden, "not a channel member")
	}
	return nil
}

func (s *service) requireCreator(ctx context.Context, userID, channelID uuid.UUID) (*models.Channel, error) {
	channel, err := s.channels.FindByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "channel not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup channel")
	}
	if channel.CreatorID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the channel creator may do that")
	}
	return channel, nil
}

func normalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "channel name is required")
	}
	if len(name) > NameMaxLength {
		return "", pkgerrors.New(
			pkgerrors.CodeValidation,
			fmt.Sprintf("channel name must be at most %d characters", NameMaxLength),
		)
	}
	return name, nil
}

func normalizeDescription(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	description := strings.TrimSpace(*raw)
	if description == "" {
		return nil, nil
	}
	if len(description) > DescriptionMaxLength {
		return nil, pkgerrors.New(
			pkgerrors.CodeValidation,
			fmt.Sprintf("description must be at most %d characters", DescriptionMaxLength),
		)
	}
	return &description, nil
}
