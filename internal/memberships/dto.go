package memberships

import (
	"time"

	"github.com/google/uuid"

	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
)

// MembershipDTO is the transport shape for a raw membership record.
type MembershipDTO struct {
	ID        uuid.UUID `json:"id"`
	ChannelID uuid.UUID `json:"channel_id"`
	UserID    uuid.UUID `json:"user_id"`
	JoinedAt  time.Time `json:"joined_at"`
}

// MemberDTO mixes membership metadata with the member's public profile.
type MemberDTO struct {
	MembershipID uuid.UUID `json:"membership_id"`
	ChannelID    uuid.UUID `json:"channel_id"`
	UserID       uuid.UUID `json:"user_id"`
	Username     string    `json:"username"`
	JoinedAt     time.Time `json:"joined_at"`
}

// ToDTO converts a model to the external DTO.
func ToDTO(m *models.ChannelMember) *MembershipDTO {
	if m == nil {
		return nil
	}

	return &MembershipDTO{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		UserID:    m.UserID,
		JoinedAt:  m.JoinedAt,
	}
}

type memberRow struct {
	models.ChannelMember
	Username string
}

func membersFromRows(rows []memberRow) []MemberDTO {
	members := make([]MemberDTO, 0, len(rows))
	for _, row := range rows {
		members = append(members, MemberDTO{
			MembershipID: row.ID,
			ChannelID:    row.ChannelID,
			UserID:       row.UserID,
			Username:     row.Username,
			JoinedAt:     row.JoinedAt,
		})
	}
	return members
}
