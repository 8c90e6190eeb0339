package models

import (
	"time"

	"github.com/google/uuid"
)

// ChannelMember links a user with a channel. The (channel_id, user_id) pair is
// unique so membership materialization stays idempotent.
type ChannelMember struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ChannelID uuid.UUID `gorm:"column:channel_id;type:uuid;not null;uniqueIndex:idx_channel_members_channel_user"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_channel_members_channel_user"`
	JoinedAt  time.Time `gorm:"column:joined_at;autoCreateTime"`
}
