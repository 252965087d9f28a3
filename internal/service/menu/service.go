// Package menu отдаёт меню ресторана и загружает его из YAML-файла.
package menu

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

// Service читает меню из хранилища и нормализует блюда для витрины.
type Service struct {
	repo   domain.MenuRepository
	logger *log.Entry
}

// NewService создаёт сервис меню. logger может быть nil.
func NewService(repo domain.MenuRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "menu-service")
	}
	return &Service{repo: repo, logger: logger}
}

// List возвращает всё меню. Пустое меню даёт domain.ErrMenuEmpty.
func (s *Service) List(ctx context.Context) ([]domain.MenuItem, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	if len(items) == 0 {
		return nil, domain.ErrMenuEmpty
	}
	out := make([]domain.MenuItem, 0, len(items))
	for _, it := range items {
		out = append(out, it.Normalized())
	}
	return out, nil
}

// Categories возвращает категории меню для фильтра на витрине.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	return domain.MenuCategories(items), nil
}

// Seed сохраняет блюда в хранилище, заменяя записи с теми же ID.
func (s *Service) Seed(ctx context.Context, items []domain.MenuItem) error {
	for _, it := range items {
		if err := s.repo.Upsert(ctx, it); err != nil {
			return fmt.Errorf("seed menu item %s: %w", it.ID, err)
		}
	}
	s.logger.WithField("items", len(items)).Info("menu loaded")
	return nil
}
