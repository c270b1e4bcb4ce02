package service

import (
	"context"
	"fmt"
	"strings"

	"dispatch-service/internal/model"
	"dispatch-service/internal/repository"
)

type SettingsService struct {
	store *repository.Store
}

func NewSettingsService(store *repository.Store) *SettingsService {
	return &SettingsService{store: store}
}

func (s *SettingsService) All(ctx context.Context) (map[string]string, error) {
	settings, err := s.store.Settings().All(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[string]string, len(settings))
	for _, setting := range settings {
		result[setting.Key] = setting.Value
	}
	return result, nil
}

func (s *SettingsService) Get(ctx context.Context, key string) (*model.Setting, error) {
	setting, err := s.store.Settings().Get(ctx, strings.TrimSpace(key))
	if err != nil {
		return nil, translateStoreError(err, "setting")
	}
	return setting, nil
}

// Upsert writes every key in one transaction.
func (s *SettingsService) Upsert(ctx context.Context, principal model.Principal, values map[string]string) (map[string]string, error) {
	if err := ensureWriter(principal); err != nil {
		return nil, err
	}
	for key := range values {
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: setting key must not be empty", ErrInvalidInput)
		}
	}
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		for key, value := range values {
			if err := tx.Settings().Upsert(ctx, &model.Setting{Key: strings.TrimSpace(key), Value: value}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.All(ctx)
}
