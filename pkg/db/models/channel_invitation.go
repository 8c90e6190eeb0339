package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/treehouse-chat/treehouse-backend/pkg/enums"
)

// ChannelInvitation is the bearer-token record granting one-time channel-join
// rights. A partial unique index (created in the migrations) guarantees at most
// one pending row per (channel_id, invited_email) pair.
type ChannelInvitation struct {
	ID              uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ChannelID       uuid.UUID              `gorm:"column:channel_id;type:uuid;not null;index"`
	InvitedEmail    string                 `gorm:"column:invited_email;type:text;not null"`
	InvitedByUserID uuid.UUID              `gorm:"column:invited_by_user_id;type:uuid;not null"`
	Token           string                 `gorm:"type:text;not null;uniqueIndex"`
	Status          enums.InvitationStatus `gorm:"type:text;not null;default:'pending'"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	ExpiresAt       time.Time              `gorm:"column:expires_at;not null"`
	AcceptedAt      *time.Time             `gorm:"column:accepted_at"`
	RevokedAt       *time.Time             `gorm:"column:revoked_at"`
}
