package channels

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/treehouse-chat/treehouse-backend/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	// The production schema lives in goose migrations; mirror the two tables
	// this repo touches without the Postgres-only column defaults.
	ddl := []string{
		`CREATE TABLE channels (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			creator_id TEXT NOT NULL,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE channel_members (
			id TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			joined_at DATETIME,
			UNIQUE (channel_id, user_id)
		)`,
	}
	for _, stmt := range ddl {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return conn
}

func mustCreateChannel(t *testing.T, repo *Repository, creatorID uuid.UUID, name string, createdAt time.Time) *models.Channel {
	t.Helper()
	channel := &models.Channel{
		ID:        uuid.New(),
		Name:      name,
		CreatorID: creatorID,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := repo.db.Create(channel).Error; err != nil {
		t.Fatalf("create channel: %v", err)
	}
	return channel
}

func mustAddMember(t *testing.T, db *gorm.DB, channelID, userID uuid.UUID) {
	t.Helper()
	member := &models.ChannelMember{
		ID:        uuid.New(),
		ChannelID: channelID,
		UserID:    userID,
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("create member: %v", err)
	}
}

func TestRepositoryFindByIDRoundTrips(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)

	desc := "weekend plans"
	channel := mustCreateChannel(t, repo, uuid.New(), "trips", time.Now().UTC())
	if err := db.Model(&models.Channel{}).Where("id = ?", channel.ID).Update("description", desc).Error; err != nil {
		t.Fatalf("seed description: %v", err)
	}

	found, err := repo.FindByID(context.Background(), channel.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.Name != "trips" {
		t.Fatalf("expected name trips got %q", found.Name)
	}
	if found.Description == nil || *found.Description != desc {
		t.Fatalf("expected description %q got %v", desc, found.Description)
	}
}

func TestRepositoryFindMissingChannel(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindByID(context.Background(), uuid.New())
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found got %v", err)
	}
}

func TestRepositoryListByUserIDOrdersNewestFirst(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	userID := uuid.New()

	older := mustCreateChannel(t, repo, userID, "older", time.Now().Add(-2*time.Hour).UTC())
	newer := mustCreateChannel(t, repo, userID, "newer", time.Now().Add(-1*time.Hour).UTC())
	outsider := mustCreateChannel(t, repo, uuid.New(), "outsider", time.Now().UTC())

	mustAddMember(t, db, older.ID, userID)
	mustAddMember(t, db, newer.ID, userID)
	mustAddMember(t, db, outsider.ID, outsider.CreatorID)

	listed, err := repo.ListByUserID(context.Background(), userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 channels got %d", len(listed))
	}
	if listed[0].ID != newer.ID || listed[1].ID != older.ID {
		t.Fatalf("expected newest-first ordering, got %s then %s", listed[0].Name, listed[1].Name)
	}
}

func TestRepositoryUpdateAppliesOnlyProvidedFields(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)

	channel := mustCreateChannel(t, repo, uuid.New(), "before", time.Now().UTC())

	name := "after"
	if err := repo.Update(context.Background(), channel.ID, UpdateChannelDTO{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}

	found, err := repo.FindByID(context.Background(), channel.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.Name != "after" {
		t.Fatalf("expected updated name got %q", found.Name)
	}
	if found.Description != nil {
		t.Fatalf("expected description untouched got %v", *found.Description)
	}

	// No-op update should not touch the row.
	if err := repo.Update(context.Background(), channel.ID, UpdateChannelDTO{}); err != nil {
		t.Fatalf("noop update: %v", err)
	}
}

func TestRepositoryDeleteReportsAffectedRows(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)

	channel := mustCreateChannel(t, repo, uuid.New(), "doomed", time.Now().UTC())

	affected, err := repo.Delete(context.Background(), channel.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 row deleted got %d", affected)
	}

	affected, err = repo.Delete(context.Background(), channel.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected 0 rows on repeat delete got %d", affected)
	}
}
