package channels

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
)

// Repository exposes channel persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new channel and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateChannelDTO) (*models.Channel, error) {
	channel := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(channel).Error; err != nil {
		return nil, err
	}
	return channel, nil
}

// FindByID loads a channel by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).First(&channel, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &channel, nil
}

// ListByUserID returns the channels the user belongs to, newest first.
func (r *Repository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.WithContext(ctx).
		Joins("JOIN channel_members ON channel_members.channel_id = channels.id").
		Where("channel_members.user_id = ?", userID).
		Order("channels.created_at DESC").
		Find(&channels).Error
	if err != nil {
		return nil, err
	}
	return channels, nil
}

// Update applies the provided field changes to the channel.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, dto UpdateChannelDTO) error {
	updates := map[string]any{}
	if dto.Name != nil {
		updates["name"] = *dto.Name
	}
	if dto.Description != nil {
		updates["description"] = *dto.Description
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Channel{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// Delete removes the channel row. Members, messages, and invitations cascade in the schema.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.Channel{}, "id = ?", id)
	return result.RowsAffected, result.Error
}
