package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

const reservationSlotConstraint = "reservations_slot_key"

type reservationRepository struct {
	db *sql.DB
}

// NewReservationRepository создаёт PostgreSQL-реализацию ReservationRepository.
// Уникальность слота обеспечивает ограничение reservations_slot_key.
func NewReservationRepository(store *Store) domain.ReservationRepository {
	return &reservationRepository{db: store.DB()}
}

func (r *reservationRepository) Create(ctx context.Context, res domain.Reservation) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reservations (id, first_name, last_name, table_no, date, time, phone, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, res.ID, res.FirstName, res.LastName, res.TableNo, res.Date, res.Time, res.Phone, res.CreatedAt)
	if err != nil {
		if constraintViolated(err, reservationSlotConstraint) {
			return res.Conflict()
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (r *reservationRepository) Get(ctx context.Context, id string) (domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var res domain.Reservation
	err := r.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, table_no, date, time, phone, created_at
		FROM reservations
		WHERE id = $1
	`, id).Scan(&res.ID, &res.FirstName, &res.LastName, &res.TableNo, &res.Date, &res.Time, &res.Phone, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("select reservation: %w", err)
	}
	res.CreatedAt = res.CreatedAt.UTC()
	return res, nil
}

func (r *reservationRepository) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reservations: %w", err)
	}
	return n, nil
}

var _ domain.ReservationRepository = (*reservationRepository)(nil)
