package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

type menuRepository struct {
	db *sql.DB
}

// NewMenuRepository создаёт PostgreSQL-реализацию MenuRepository. Теги лежат в JSONB.
func NewMenuRepository(store *Store) domain.MenuRepository {
	return &menuRepository{db: store.DB()}
}

func (r *menuRepository) Upsert(ctx context.Context, item domain.MenuItem) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	rawTags, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode menu tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO menu_items (id, name, description, image, price_minor, category, tags)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			image = EXCLUDED.image,
			price_minor = EXCLUDED.price_minor,
			category = EXCLUDED.category,
			tags = EXCLUDED.tags
	`, item.ID, item.Name, item.Description, item.Image, item.PriceMinor, item.Category, rawTags)
	if err != nil {
		return fmt.Errorf("upsert menu item: %w", err)
	}
	return nil
}

func (r *menuRepository) List(ctx context.Context) ([]domain.MenuItem, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, image, price_minor, category, tags
		FROM menu_items
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("select menu: %w", err)
	}
	defer rows.Close()

	var out []domain.MenuItem
	for rows.Next() {
		var (
			it      domain.MenuItem
			rawTags []byte
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Image, &it.PriceMinor, &it.Category, &rawTags); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		if err := json.Unmarshal(rawTags, &it.Tags); err != nil {
			return nil, fmt.Errorf("decode menu tags %s: %w", it.ID, err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate menu: %w", err)
	}
	return out, nil
}

var _ domain.MenuRepository = (*menuRepository)(nil)
