package service

import (
	"context"

	repository "github.com/cmwillett/wapiti-sub000/internal/database/postgres"
	"github.com/cmwillett/wapiti-sub000/internal/entity"
)

type preferenceService struct {
	repo repository.PreferenceRepository
}

func NewPreferenceService(repo repository.PreferenceRepository) PreferenceService {
	return &preferenceService{repo: repo}
}

func (s *preferenceService) Get(ctx context.Context, ownerID string) (*entity.ChannelPreference, error) {
	if ownerID == "" {
		return nil, entity.ErrInvalidInput
	}
	return s.repo.Get(ctx, ownerID)
}

func (s *preferenceService) Set(ctx context.Context, ownerID string, channel entity.DeliveryChannel) (*entity.ChannelPreference, error) {
	if ownerID == "" {
		return nil, entity.ErrInvalidInput
	}

	switch channel {
	case entity.ChannelPush, entity.ChannelSMS, entity.ChannelEmail, entity.ChannelPushSMSFallback:
	default:
		return nil, entity.ErrInvalidInput
	}

	pref := &entity.ChannelPreference{OwnerID: ownerID, Channel: channel}
	if err := s.repo.Set(ctx, pref); err != nil {
		return nil, err
	}
	return pref, nil
}
