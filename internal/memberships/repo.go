package memberships

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
)

// Repository exposes channel membership persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// EnsureMember inserts the membership if it does not already exist.
// Safe to call repeatedly for the same (channel, user) pair.
func (r *Repository) EnsureMember(ctx context.Context, channelID, userID uuid.UUID) error {
	member := &models.ChannelMember{
		ChannelID: channelID,
		UserID:    userID,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(member).Error
}

// IsMember reports whether the user belongs to the channel.
func (r *Repository) IsMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ChannelMember{}).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListChannelMembers returns memberships for the channel along with profile metadata.
func (r *Repository) ListChannelMembers(ctx context.Context, channelID uuid.UUID) ([]MemberDTO, error) {
	var rows []memberRow
	err := r.db.WithContext(ctx).
		Model(&models.ChannelMember{}).
		Select("channel_members.*, profiles.username").
		Joins("JOIN profiles ON profiles.id = channel_members.user_id").
		Where("channel_members.channel_id = ?", channelID).
		Order("channel_members.joined_at").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return membersFromRows(rows), nil
}

// Remove deletes the membership linking the user to the channel.
func (r *Repository) Remove(ctx context.Context, channelID, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Delete(&models.ChannelMember{})
	return result.RowsAffected, result.Error
}
