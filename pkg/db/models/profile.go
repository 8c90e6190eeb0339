package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile stores the public-facing identity for a user. The primary key is
// the owning user's id, mirroring the one-to-one relationship in the schema.
type Profile struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username  string    `gorm:"type:text;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
