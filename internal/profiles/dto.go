package profiles

import (
	"time"

	"github.com/google/uuid"

	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
)

// ProfileDTO is the public identity attached to a user.
type ProfileDTO struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateProfileDTO holds the data the repo needs to persist a profile row.
type CreateProfileDTO struct {
	UserID   uuid.UUID
	Username string
}

func FromModel(p *models.Profile) *ProfileDTO {
	if p == nil {
		return nil
	}

	return &ProfileDTO{
		ID:        p.ID,
		Username:  p.Username,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (c CreateProfileDTO) ToModel() *models.Profile {
	return &models.Profile{
		ID:       c.UserID,
		Username: c.Username,
	}
}
