package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

type menuRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.MenuItem
}

// NewMenuRepository создаёт in-memory реализацию MenuRepository.
func NewMenuRepository() domain.MenuRepository {
	return &menuRepositoryInMemory{items: make(map[string]domain.MenuItem)}
}

func (r *menuRepositoryInMemory) Upsert(_ context.Context, item domain.MenuItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item.Tags = slices.Clone(item.Tags)
	r.items[item.ID] = item
	return nil
}

func (r *menuRepositoryInMemory) List(_ context.Context) ([]domain.MenuItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.MenuItem, 0, len(r.items))
	for _, it := range r.items {
		it.Tags = slices.Clone(it.Tags)
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

var _ domain.MenuRepository = (*menuRepositoryInMemory)(nil)
