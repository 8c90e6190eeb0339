package invitations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/treehouse-chat/treehouse-backend/pkg/config"
	"github.com/treehouse-chat/treehouse-backend/pkg/db"
	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
	pkgerrors "github.com/treehouse-chat/treehouse-backend/pkg/errors"
)

// RequestInviteRequest is the payload for creating an invitation.
type RequestInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Service owns the invitation lifecycle: request, preview, accept, revoke.
type Service interface {
	RequestInvite(ctx context.Context, channelID, requesterID uuid.UUID, req RequestInviteRequest) (*InviteResult, error)
	ListPending(ctx context.Context, channelID, requesterID uuid.UUID) ([]InvitationDTO, error)
	Details(ctx context.Context, token string) (*InvitationDetails, error)
	Accept(ctx context.Context, token string, userID uuid.UUID) (*AcceptResult, error)
	Revoke(ctx context.Context, token string, requesterID uuid.UUID) error
}

type invitationRepository interface {
	Create(ctx context.Context, dto CreateInvitationDTO) (*models.ChannelInvitation, error)
	FindPending(ctx context.Context, channelID uuid.UUID, email string) (*models.ChannelInvitation, error)
	ListPendingUnexpired(ctx context.Context, channelID uuid.UUID, now time.Time) ([]models.ChannelInvitation, error)
	MarkRevoked(ctx context.Context, id uuid.UUID, now time.Time) (int64, error)
	FindDetailsByToken(ctx context.Context, token string) (*detailsRow, error)
	AcceptByToken(ctx context.Context, token string, userID uuid.UUID, now time.Time) (uuid.UUID, error)
	RevokeByToken(ctx context.Context, token string, requesterID uuid.UUID, now time.Time) (int64, error)
}

type channelLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Channel, error)
}

type service struct {
	repo     invitationRepository
	channels channelLookup
	cfg      config.InvitationsConfig
	now      func() time.Time
	token    func() (string, error)
}

// ServiceParams bundles the dependencies required to build an invitation service.
type ServiceParams struct {
	InvitationRepo invitationRepository
	ChannelRepo    channelLookup
	Config         config.InvitationsConfig

	// Now and TokenSource are test seams; production wiring leaves them nil.
	Now         func() time.Time
	TokenSource func() (string, error)
}

// NewService constructs an invitation service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.InvitationRepo == nil {
		return nil, fmt.Errorf("invitation repository is required")
	}
	if params.ChannelRepo == nil {
		return nil, fmt.Errorf("channel repository is required")
	}
	if params.Config.Expiry <= 0 {
		return nil, fmt.Errorf("invitation expiry must be positive")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	token := params.TokenSource
	if token == nil {
		token = GenerateToken
	}
	return &service{
		repo:     params.InvitationRepo,
		channels: params.ChannelRepo,
		cfg:      params.Config,
		now:      now,
		token:    token,
	}, nil
}

func (s *service) RequestInvite(ctx context.Context, channelID, requesterID uuid.UUID, req RequestInviteRequest) (*InviteResult, error) {
	if err := s.requireOwner(ctx, channelID, requesterID); err != nil {
		return nil, err
	}

	email := NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	result, err := s.requestInviteOnce(ctx, channelID, requesterID, email)
	if err != nil && db.IsUniqueViolation(err) {
		// lost an invite-vs-invite race; the winner's pending row now exists
		result, err = s.requestInviteOnce(ctx, channelID, requesterID, email)
		if err != nil && db.IsUniqueViolation(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "concurrent invitation")
		}
	}
	return result, err
}

func (s *service) requestInviteOnce(ctx context.Context, channelID, requesterID uuid.UUID, email string) (*InviteResult, error) {
	now := s.now()

	existing, err := s.repo.FindPending(ctx, channelID, email)
	switch {
	case err == nil && existing.ExpiresAt.After(now):
		// idempotent re-invite inside the validity window
		return &InviteResult{
			InviteURL: s.inviteURL(existing.Token),
			ExpiresAt: existing.ExpiresAt,
			Status:    ResultExisting,
		}, nil

	case err == nil:
		// pending but expired: supersede it
		if _, err := s.repo.MarkRevoked(ctx, existing.ID, now); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke expired invitation")
		}

	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup pending invitation")
	}

	token, err := s.token()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate token")
	}

	invitation, err := s.repo.Create(ctx, CreateInvitationDTO{
		ChannelID:       channelID,
		InvitedEmail:    email,
		InvitedByUserID: requesterID,
		Token:           token,
		ExpiresAt:       now.Add(s.cfg.Expiry),
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create invitation")
	}

	return &InviteResult{
		InviteURL: s.inviteURL(invitation.Token),
		ExpiresAt: invitation.ExpiresAt,
		Status:    ResultCreated,
	}, nil
}

func (s *service) ListPending(ctx context.Context, channelID, requesterID uuid.UUID) ([]InvitationDTO, error) {
	if err := s.requireOwner(ctx, channelID, requesterID); err != nil {
		return nil, err
	}

	invitations, err := s.repo.ListPendingUnexpired(ctx, channelID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list invitations")
	}

	out := make([]InvitationDTO, 0, len(invitations))
	for i := range invitations {
		out = append(out, *FromModel(&invitations[i]))
	}
	return out, nil
}

func (s *service) Details(ctx context.Context, token string) (*InvitationDetails, error) {
	row, err := s.repo.FindDetailsByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invitation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup invitation")
	}

	return &InvitationDetails{
		ChannelName: row.ChannelName,
		InviterName: row.InviterUsername,
		ExpiresAt:   row.ExpiresAt,
		Status:      row.Status,
		IsExpired:   s.now().After(row.ExpiresAt),
	}, nil
}

func (s *service) Accept(ctx context.Context, token string, userID uuid.UUID) (*AcceptResult, error) {
	channelID, err := s.repo.AcceptByToken(ctx, strings.TrimSpace(token), userID, s.now())
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidOrExpired):
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invitation invalid or expired")
		case errors.Is(err, ErrAlreadyProcessed):
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invitation already processed")
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "accept invitation")
		}
	}
	return &AcceptResult{Success: true, ChannelID: channelID}, nil
}

func (s *service) Revoke(ctx context.Context, token string, requesterID uuid.UUID) error {
	affected, err := s.repo.RevokeByToken(ctx, strings.TrimSpace(token), requesterID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke invitation")
	}
	if affected == 0 {
		// collapses "no such token" and "not the owner" into one outcome
		return pkgerrors.New(pkgerrors.CodeForbidden, "invitation not found or not yours to revoke")
	}
	return nil
}

func (s *service) requireOwner(ctx context.Context, channelID, requesterID uuid.UUID) error {
	channel, err := s.channels.FindByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "channel not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup channel")
	}
	if channel.CreatorID != requesterID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the channel creator may manage invitations")
	}
	return nil
}

func (s *service) inviteURL(token string) string {
	return fmt.Sprintf("%s/invite/%s", strings.TrimRight(s.cfg.BaseURL, "/"), token)
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
