package invitations

import (
	"time"

	"github.com/google/uuid"

	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
	"github.com/treehouse-chat/treehouse-backend/pkg/enums"
)

// Invite result statuses returned by RequestInvite.
const (
	ResultCreated  = "created"
	ResultExisting = "existing"
)

// InvitationDTO is the transport shape for an invitation owned by a channel.
type InvitationDTO struct {
	ID           uuid.UUID              `json:"id"`
	ChannelID    uuid.UUID              `json:"channel_id"`
	InvitedEmail string                 `json:"invited_email"`
	Status       enums.InvitationStatus `json:"status"`
	CreatedAt    time.Time              `json:"created_at"`
	ExpiresAt    time.Time              `json:"expires_at"`
}

// InviteResult is returned by RequestInvite.
type InviteResult struct {
	InviteURL string    `json:"invite_url"`
	ExpiresAt time.Time `json:"expires_at"`
	Status    string    `json:"status"`
}

// InvitationDetails is the public preview any token bearer may fetch.
// IsExpired is computed from expires_at at read time; the stored status is
// reported untouched, so a pending-but-expired invitation shows both
// status "pending" and is_expired true.
type InvitationDetails struct {
	ChannelName string                 `json:"channel_name"`
	InviterName string                 `json:"inviter_name"`
	ExpiresAt   time.Time              `json:"expires_at"`
	Status      enums.InvitationStatus `json:"status"`
	IsExpired   bool                   `json:"is_expired"`
}

// AcceptResult is returned by AcceptInvite.
type AcceptResult struct {
	Success   bool      `json:"success"`
	ChannelID uuid.UUID `json:"channel_id"`
}

// CreateInvitationDTO holds the data the repo needs to persist an invitation.
type CreateInvitationDTO struct {
	ChannelID       uuid.UUID
	InvitedEmail    string
	InvitedByUserID uuid.UUID
	Token           string
	ExpiresAt       time.Time
}

func FromModel(inv *models.ChannelInvitation) *InvitationDTO {
	if inv == nil {
		return nil
	}

	return &InvitationDTO{
		ID:           inv.ID,
		ChannelID:    inv.ChannelID,
		InvitedEmail: inv.InvitedEmail,
		Status:       inv.Status,
		CreatedAt:    inv.CreatedAt,
		ExpiresAt:    inv.ExpiresAt,
	}
}

func (c CreateInvitationDTO) ToModel() *models.ChannelInvitation {
	return &models.ChannelInvitation{
		ChannelID:       c.ChannelID,
		InvitedEmail:    c.InvitedEmail,
		InvitedByUserID: c.InvitedByUserID,
		Token:           c.Token,
		Status:          enums.InvitationStatusPending,
		ExpiresAt:       c.ExpiresAt,
	}
}

// detailsRow joins the invitation with channel and inviter metadata.
type detailsRow struct {
	models.ChannelInvitation
	ChannelName     string
	InviterUsername string
}
