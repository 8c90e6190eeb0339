package messages

import (
	"time"

	"github.com/google/uuid"

	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
)

// MessageDTO is the transport shape for a chat message.
type MessageDTO struct {
	ID        uuid.UUID `json:"id"`
	ChannelID uuid.UUID `json:"channel_id"`
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateMessageDTO holds the data the repo needs to persist a message.
type CreateMessageDTO struct {
	ChannelID uuid.UUID
	UserID    uuid.UUID
	Content   string
}

// MessagePage is a page of message history plus the cursor for the next one.
type MessagePage struct {
	Messages   []MessageDTO `json:"messages"`
	NextCursor string       `json:"next_cursor,omitempty"`
	HasMore    bool         `json:"has_more"`
}

func FromModel(m *models.Message) *MessageDTO {
	if m == nil {
		return nil
	}

	return &MessageDTO{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		UserID:    m.UserID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func (c CreateMessageDTO) ToModel() *models.Message {
	return &models.Message{
		ChannelID: c.ChannelID,
		UserID:    c.UserID,
		Content:   c.Content,
	}
}

type messageRow struct {
	models.Message
	Username string
}

func messagesFromRows(rows []messageRow) []MessageDTO {
	messages := make([]MessageDTO, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, MessageDTO{
			ID:        row.ID,
			ChannelID: row.ChannelID,
			UserID:    row.UserID,
			Username:  row.Username,
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
		})
	}
	return messages
}
