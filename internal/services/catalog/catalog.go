// Package catalog читает тарифы с кешированием в redis.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

// TariffRepository источник тарифов.
type TariffRepository interface {
	GetTariff(ctx context.Context, key string) (*models.Tariff, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// CatalogService отдает тарифы, сначала заглядывая в кеш. Правка тарифа в
// базе видна не позже чем через ttl или сразу после Invalidate.
type CatalogService struct {
	repo  TariffRepository
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewCatalogService создает новый экземпляр CatalogService.
func NewCatalogService(repo TariffRepository, cache Cache, ttl time.Duration, log *slog.Logger) *CatalogService {
	return &CatalogService{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

func cacheKey(key string) string {
	return fmt.Sprintf("tariff:%s", key)
}

// Tariff возвращает активный тариф по ключу или models.ErrUnknownTariff.
// Ошибки кеша не мешают чтению из базы.
func (s *CatalogService) Tariff(ctx context.Context, key string) (*models.Tariff, error) {
	var cached models.Tariff
	found, err := s.cache.Get(ctx, cacheKey(key), &cached)
	if err != nil {
		s.log.Warn("failed to read tariff from cache", slog.String("key", key), sl.Err(err))
	}
	if found && err == nil {
		return &cached, nil
	}

	tariff, err := s.repo.GetTariff(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cacheKey(key), tariff, s.ttl); err != nil {
		s.log.Warn("failed to cache tariff", slog.String("key", key), sl.Err(err))
	}
	return tariff, nil
}

// Invalidate сбрасывает кеш тарифа после правки оператором.
func (s *CatalogService) Invalidate(ctx context.Context, key string) error {
	const op = "catalog.Invalidate"

	if err := s.cache.Invalidate(ctx, cacheKey(key)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Refresh сбрасывает кеш тарифа и перечитывает его из базы.
func (s *CatalogService) Refresh(ctx context.Context, key string) (*models.Tariff, error) {
	if err := s.Invalidate(ctx, key); err != nil {
		return nil, err
	}
	tariff, err := s.Tariff(ctx, key)
	if err != nil {
		return nil, err
	}
	s.log.Info("tariff cache refreshed", slog.String("key", key), slog.String("price", tariff.Price.String()))
	return tariff, nil
}
