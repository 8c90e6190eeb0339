package channels

import (
	"time"

	"github.com/google/uuid"

	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
)

// ChannelDTO is the transport shape for a channel.
type ChannelDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatorID   uuid.UUID `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateChannelDTO holds the data the repo needs to persist a channel.
type CreateChannelDTO struct {
	Name        string
	Description *string
	CreatorID   uuid.UUID
}

// UpdateChannelDTO carries the mutable channel fields. Nil means leave as-is.
type UpdateChannelDTO struct {
	Name        *string
	Description *string
}

func FromModel(c *models.Channel) *ChannelDTO {
	if c == nil {
		return nil
	}

	return &ChannelDTO{
		ID:          c.ID,
		Name:        c.Name,
		Description: copyStringPointer(c.Description),
		CreatorID:   c.CreatorID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (c CreateChannelDTO) ToModel() *models.Channel {
	return &models.Channel{
		Name:        c.Name,
		Description: copyStringPointer(c.Description),
		CreatorID:   c.CreatorID,
	}
}

func copyStringPointer(src *string) *string {
	if src == nil {
		return nil
	}
	dst := *src
	return &dst
}
