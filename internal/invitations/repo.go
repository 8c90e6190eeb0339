package invitations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
	"github.com/treehouse-chat/treehouse-backend/pkg/enums"
)

var (
	// ErrInvalidOrExpired means the token matched no pending, unexpired row.
	ErrInvalidOrExpired = errors.New("invitation invalid or expired")
	// ErrAlreadyProcessed means the token exists but was already accepted or revoked.
	ErrAlreadyProcessed = errors.New("invitation already processed")
)

// Repository exposes invitation persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new pending invitation. A unique-violation surfaces to the
// caller untouched so the lifecycle policy can treat it as a lost race.
func (r *Repository) Create(ctx context.Context, dto CreateInvitationDTO) (*models.ChannelInvitation, error) {
	invitation := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(invitation).Error; err != nil {
		return nil, err
	}
	return invitation, nil
}

// FindPending returns the pending invitation for the (channel, email) pair, if any.
func (r *Repository) FindPending(ctx context.Context, channelID uuid.UUID, email string) (*models.ChannelInvitation, error) {
	var invitation models.ChannelInvitation
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND invited_email = ? AND status = ?", channelID, email, enums.InvitationStatusPending).
		First(&invitation).Error
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

// ListPendingUnexpired returns pending invitations whose expiry is still in the future.
func (r *Repository) ListPendingUnexpired(ctx context.Context, channelID uuid.UUID, now time.Time) ([]models.ChannelInvitation, error) {
	var invitations []models.ChannelInvitation
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND status = ? AND expires_at > ?", channelID, enums.InvitationStatusPending, now).
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

// MarkRevoked transitions the row to revoked only while it is still pending.
func (r *Repository) MarkRevoked(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ChannelInvitation{}).
		Where("id = ? AND status = ?", id, enums.InvitationStatusPending).
		Updates(map[string]any{
			"status":     enums.InvitationStatusRevoked,
			"revoked_at": now,
		})
	return result.RowsAffected, result.Error
}

// FindDetailsByToken loads the invitation plus channel and inviter metadata.
func (r *Repository) FindDetailsByToken(ctx context.Context, token string) (*detailsRow, error) {
	var row detailsRow
	err := r.db.WithContext(ctx).
		Model(&models.ChannelInvitation{}).
		Select("channel_invitations.*, channels.name AS channel_name, profiles.username AS inviter_username").
		Joins("JOIN channels ON channels.id = channel_invitations.channel_id").
		Joins("JOIN profiles ON profiles.id = channel_invitations.invited_by_user_id").
		Where("channel_invitations.token = ?", token).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// AcceptByToken runs the accept state transition and membership materialization
// in one transaction. The conditional UPDATE is the arbiter: a concurrent
// accept or revoke of the same token loses the race and observes zero rows.
func (r *Repository) AcceptByToken(ctx context.Context, token string, userID uuid.UUID, now time.Time) (uuid.UUID, error) {
	var channelID uuid.UUID

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Model(&models.ChannelInvitation{}).
			Where("token = ? AND status = ? AND expires_at > ?", token, enums.InvitationStatusPending, now).
			Updates(map[string]any{
				"status":      enums.InvitationStatusAccepted,
				"accepted_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var existing models.ChannelInvitation
			err := tx.Where("token = ?", token).First(&existing).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidOrExpired
			}
			if err != nil {
				return err
			}
			if existing.Status.IsTerminal() {
				return ErrAlreadyProcessed
			}
			return ErrInvalidOrExpired
		}

		var invitation models.ChannelInvitation
		if err := tx.Where("token = ?", token).First(&invitation).Error; err != nil {
			return err
		}
		channelID = invitation.ChannelID

		member := &models.ChannelMember{
			ChannelID: invitation.ChannelID,
			UserID:    userID,
		}
		return tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "channel_id"}, {Name: "user_id"}},
				DoNothing: true,
			}).
			Create(member).Error
	})
	if err != nil {
		return uuid.Nil, err
	}
	return channelID, nil
}

// RevokeByToken sets status=revoked when the token is pending and the requester
// owns the channel. The owner check lives in the WHERE clause so "not found"
// and "not authorized" are indistinguishable to the caller.
func (r *Repository) RevokeByToken(ctx context.Context, token string, requesterID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ChannelInvitation{}).
		Where(
			"token = ? AND status = ? AND channel_id IN (?)",
			token,
			enums.InvitationStatusPending,
			r.db.Model(&models.Channel{}).Select("id").Where("creator_id = ?", requesterID),
		).
		Updates(map[string]any{
			"status":     enums.InvitationStatusRevoked,
			"revoked_at": now,
		})
	return result.RowsAffected, result.Error
}
