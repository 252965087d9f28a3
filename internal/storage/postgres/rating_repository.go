package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

type ratingRepository struct {
	db *sql.DB
}

// NewRatingRepository создаёт PostgreSQL-реализацию RatingRepository.
// Одна оценка на пользователя обеспечивается первичным ключом (dish_id, user_email).
func NewRatingRepository(store *Store) domain.RatingRepository {
	return &ratingRepository{db: store.DB()}
}

func (r *ratingRepository) Upsert(ctx context.Context, rating domain.Rating) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ratings (dish_id, user_email, stars, comment, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (dish_id, user_email) DO UPDATE SET
			stars = EXCLUDED.stars,
			comment = EXCLUDED.comment,
			updated_at = EXCLUDED.updated_at
	`, rating.DishID, rating.UserEmail, rating.Stars, rating.Comment, rating.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

func (r *ratingRepository) Get(ctx context.Context, dishID, email string) (domain.Rating, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rating, err := scanRating(r.db.QueryRowContext(ctx, `
		SELECT dish_id, user_email, stars, comment, updated_at
		FROM ratings
		WHERE dish_id = $1 AND user_email = $2
	`, dishID, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Rating{}, domain.ErrRatingNotFound
		}
		return domain.Rating{}, fmt.Errorf("select rating: %w", err)
	}
	return rating, nil
}

func (r *ratingRepository) Recent(ctx context.Context, dishID string, limit int) ([]domain.Rating, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = domain.RecentRatingsLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT dish_id, user_email, stars, comment, updated_at
		FROM ratings
		WHERE dish_id = $1
		ORDER BY updated_at DESC, user_email
		LIMIT $2
	`, dishID, limit)
	if err != nil {
		return nil, fmt.Errorf("select ratings: %w", err)
	}
	defer rows.Close()

	var out []domain.Rating
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		out = append(out, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return out, nil
}

func (r *ratingRepository) Stats(ctx context.Context, dishID string) (domain.RatingStats, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var stats domain.RatingStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(stars), 0)
		FROM ratings
		WHERE dish_id = $1
	`, dishID).Scan(&stats.Count, &stats.StarsTotal)
	if err != nil {
		return domain.RatingStats{}, fmt.Errorf("rating stats: %w", err)
	}
	return stats, nil
}

func scanRating(row rowScanner) (domain.Rating, error) {
	var rating domain.Rating
	if err := row.Scan(&rating.DishID, &rating.UserEmail, &rating.Stars, &rating.Comment, &rating.UpdatedAt); err != nil {
		return domain.Rating{}, err
	}
	rating.UpdatedAt = rating.UpdatedAt.UTC()
	return rating, nil
}

var _ domain.RatingRepository = (*ratingRepository)(nil)
