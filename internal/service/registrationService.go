package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	repository "github.com/cmwillett/wapiti-sub000/internal/database/postgres"
	"github.com/cmwillett/wapiti-sub000/internal/entity"

	"github.com/sirupsen/logrus"
)

type registrationService struct {
	repo repository.RegistrationRepository
}

func NewRegistrationService(repo repository.RegistrationRepository) RegistrationService {
	return &registrationService{repo: repo}
}

// Register reconciles the caller's live subscription against the store:
//   - exactly one matching row with identical keys: no-op fast path
//   - matching row with rotated keys: delete the stale row, insert fresh
//   - no matching row: insert with a generated display label
//
// Lookup and deletion are keyed by (owner, endpoint) only. Device labels are
// never a basis for destructive operations.
func (s *registrationService) Register(ctx context.Context, req *entity.RegisterDeviceRequest) (*entity.DeviceRegistration, bool, error) {
	if req.OwnerID == "" || req.Endpoint == "" {
		return nil, false, entity.ErrInvalidInput
	}

	existing, err := s.repo.GetByOwnerAndEndpoint(ctx, req.OwnerID, req.Endpoint)
	if err != nil && !errors.Is(err, entity.ErrRegistrationNotFound) {
		return nil, false, fmt.Errorf("failed to look up registration: %w", err)
	}

	if existing != nil {
		if existing.KeysMatch(req.P256dhKey, req.AuthKey) {
			// Current row already represents the live subscription
			return existing, false, nil
		}

		// Platform rotated the subscription keys: the stored row is stale
		if err := s.repo.DeleteByEndpoint(ctx, req.OwnerID, req.Endpoint); err != nil && !errors.Is(err, entity.ErrRegistrationNotFound) {
			return nil, false, fmt.Errorf("failed to remove stale registration: %w", err)
		}
		logrus.WithFields(logrus.Fields{
			"owner_id": req.OwnerID,
			"label":    existing.DeviceLabel,
		}).Info("Replaced registration with rotated keys")
	}

	reg := &entity.DeviceRegistration{
		OwnerID:     req.OwnerID,
		Endpoint:    req.Endpoint,
		P256dhKey:   req.P256dhKey,
		AuthKey:     req.AuthKey,
		DeviceLabel: req.DeviceLabel,
	}
	if reg.DeviceLabel == "" {
		reg.DeviceLabel = entity.DeviceLabelFor("", time.Now())
	}

	if err := s.repo.Create(ctx, reg); err != nil {
		if errors.Is(err, entity.ErrDuplicateEndpoint) {
			// Lost a race against another reconcile of the same device; the
			// surviving row is authoritative.
			current, getErr := s.repo.GetByOwnerAndEndpoint(ctx, req.OwnerID, req.Endpoint)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to re-read registration after conflict: %w", getErr)
			}
			return current, false, nil
		}
		return nil, false, fmt.Errorf("failed to create registration: %w", err)
	}

	return reg, true, nil
}

func (s *registrationService) List(ctx context.Context, ownerID string) ([]*entity.DeviceRegistration, error) {
	return s.repo.GetByOwner(ctx, ownerID)
}

func (s *registrationService) RemoveEndpoint(ctx context.Context, ownerID, endpoint string) error {
	if ownerID == "" || endpoint == "" {
		return entity.ErrInvalidInput
	}
	return s.repo.DeleteByEndpoint(ctx, ownerID, endpoint)
}

func (s *registrationService) Wipe(ctx context.Context, ownerID string) (int64, error) {
	if ownerID == "" {
		return 0, entity.ErrInvalidInput
	}

	removed, err := s.repo.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{
		"owner_id": ownerID,
		"removed":  removed,
	}).Info("Wiped registrations")
	return removed, nil
}
