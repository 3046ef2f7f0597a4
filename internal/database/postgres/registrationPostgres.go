package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cmwillett/wapiti-sub000/internal/entity"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type registrationRepository struct {
	db *sql.DB
}

func NewRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &registrationRepository{db: db}
}

func (r *registrationRepository) Create(ctx context.Context, reg *entity.DeviceRegistration) error {
	if reg.ID == "" {
		reg.ID = uuid.New().String()
	}

	query := `
		INSERT INTO device_registrations (id, owner_id, endpoint, p256dh_key, auth_key, device_label, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		reg.ID,
		reg.OwnerID,
		reg.Endpoint,
		reg.P256dhKey,
		reg.AuthKey,
		reg.DeviceLabel,
		now,
		now,
	)

	if err != nil {
		// The unique constraint on (owner_id, endpoint) is the backstop for
		// the at-most-one-row invariant.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return entity.ErrDuplicateEndpoint
		}
		return fmt.Errorf("failed to create registration: %v", err)
	}

	reg.CreatedAt = now
	reg.LastUsedAt = now
	return nil
}

func (r *registrationRepository) GetByOwner(ctx context.Context, ownerID string) ([]*entity.DeviceRegistration, error) {
	query := `
		SELECT id, owner_id, endpoint, p256dh_key, auth_key, device_label, created_at, last_used_at
		FROM device_registrations
		WHERE owner_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %v", err)
	}
	defer rows.Close()

	var regs []*entity.DeviceRegistration
	for rows.Next() {
		var reg entity.DeviceRegistration
		if err := rows.Scan(
			&reg.ID,
			&reg.OwnerID,
			&reg.Endpoint,
			&reg.P256dhKey,
			&reg.AuthKey,
			&reg.DeviceLabel,
			&reg.CreatedAt,
			&reg.LastUsedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %v", err)
		}
		regs = append(regs, &reg)
	}
	return regs, rows.Err()
}

func (r *registrationRepository) GetByOwnerAndEndpoint(ctx context.Context, ownerID, endpoint string) (*entity.DeviceRegistration, error) {
	query := `
		SELECT id, owner_id, endpoint, p256dh_key, auth_key, device_label, created_at, last_used_at
		FROM device_registrations
		WHERE owner_id = $1 AND endpoint = $2
	`

	var reg entity.DeviceRegistration
	err := r.db.QueryRowContext(ctx, query, ownerID, endpoint).Scan(
		&reg.ID,
		&reg.OwnerID,
		&reg.Endpoint,
		&reg.P256dhKey,
		&reg.AuthKey,
		&reg.DeviceLabel,
		&reg.CreatedAt,
		&reg.LastUsedAt,
	)

	if err == sql.ErrNoRows {
		return nil, entity.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %v", err)
	}

	return &reg, nil
}

func (r *registrationRepository) DeleteByEndpoint(ctx context.Context, ownerID, endpoint string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM device_registrations WHERE owner_id = $1 AND endpoint = $2`,
		ownerID, endpoint,
	)
	if err != nil {
		return fmt.Errorf("failed to delete registration: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %v", err)
	}
	if affected == 0 {
		return entity.ErrRegistrationNotFound
	}

	return nil
}

func (r *registrationRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM device_registrations WHERE owner_id = $1`,
		ownerID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to wipe registrations: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %v", err)
	}
	return affected, nil
}

func (r *registrationRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE device_registrations SET last_used_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to update last_used_at: %v", err)
	}
	return nil
}
