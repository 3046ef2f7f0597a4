package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cmwillett/wapiti-sub000/internal/entity"
)

type preferenceRepository struct {
	db *sql.DB
}

func NewPreferenceRepository(db *sql.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

func (r *preferenceRepository) Get(ctx context.Context, ownerID string) (*entity.ChannelPreference, error) {
	query := `SELECT owner_id, channel FROM channel_preferences WHERE owner_id = $1`

	var pref entity.ChannelPreference
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&pref.OwnerID, &pref.Channel)

	if err == sql.ErrNoRows {
		// Unset preference means push
		return &entity.ChannelPreference{OwnerID: ownerID, Channel: entity.ChannelPush}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel preference: %v", err)
	}

	return &pref, nil
}

func (r *preferenceRepository) Set(ctx context.Context, pref *entity.ChannelPreference) error {
	query := `
		INSERT INTO channel_preferences (owner_id, channel)
		VALUES ($1, $2)
		ON CONFLICT (owner_id) DO UPDATE SET channel = EXCLUDED.channel
	`

	if _, err := r.db.ExecContext(ctx, query, pref.OwnerID, pref.Channel); err != nil {
		return fmt.Errorf("failed to set channel preference: %v", err)
	}
	return nil
}
