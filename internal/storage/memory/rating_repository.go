package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

// ratingRepositoryInMemory хранит оценки по блюду и email пользователя.
type ratingRepositoryInMemory struct {
	mu     sync.RWMutex
	byDish map[string]map[string]domain.Rating
}

// NewRatingRepository создаёт in-memory реализацию RatingRepository.
func NewRatingRepository() domain.RatingRepository {
	return &ratingRepositoryInMemory{byDish: make(map[string]map[string]domain.Rating)}
}

func (r *ratingRepositoryInMemory) Upsert(_ context.Context, rating domain.Rating) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dish, ok := r.byDish[rating.DishID]
	if !ok {
		dish = make(map[string]domain.Rating)
		r.byDish[rating.DishID] = dish
	}
	dish[rating.UserEmail] = rating
	return nil
}

func (r *ratingRepositoryInMemory) Get(_ context.Context, dishID, email string) (domain.Rating, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rating, ok := r.byDish[dishID][email]
	if !ok {
		return domain.Rating{}, domain.ErrRatingNotFound
	}
	return rating, nil
}

func (r *ratingRepositoryInMemory) Recent(_ context.Context, dishID string, limit int) ([]domain.Rating, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Rating, 0, len(r.byDish[dishID]))
	for _, rating := range r.byDish[dishID] {
		out = append(out, rating)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].UserEmail < out[j].UserEmail
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ratingRepositoryInMemory) Stats(_ context.Context, dishID string) (domain.RatingStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats domain.RatingStats
	for _, rating := range r.byDish[dishID] {
		stats.Count++
		stats.StarsTotal += int64(rating.Stars)
	}
	return stats, nil
}

var _ domain.RatingRepository = (*ratingRepositoryInMemory)(nil)
