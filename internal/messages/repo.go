package messages

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
	"github.com/treehouse-chat/treehouse-backend/pkg/pagination"
)

// Repository exposes message persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new message and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateMessageDTO) (*models.Message, error) {
	message := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

// ListChannelPage returns up to limit messages for the channel, newest first.
// When cursor is set, only rows strictly older than the cursor position are
// returned. Ties on created_at break on id so pages never skip or repeat rows.
func (r *Repository) ListChannelPage(ctx context.Context, channelID uuid.UUID, cursor *pagination.Cursor, limit int) ([]MessageDTO, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Select("messages.*, profiles.username").
		Joins("JOIN profiles ON profiles.id = messages.user_id").
		Where("messages.channel_id = ?", channelID)

	if cursor != nil {
		query = query.Where(
			"(messages.created_at, messages.id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []messageRow
	err := query.
		Order("messages.created_at DESC, messages.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return messagesFromRows(rows), nil
}
