package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

const orderColumns = `
	id, items, total_minor,
	delivery_name, delivery_phone, delivery_address, delivery_instructions,
	status, user_email, version, created_at, updated_at`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// itemRow — формат позиции в колонке items (JSONB).
type itemRow struct {
	Name       string `json:"name"`
	PriceMinor int64  `json:"price_minor"`
	Quantity   int32  `json:"quantity"`
	Image      string `json:"image,omitempty"`
}

func encodeItems(items []domain.OrderItem) ([]byte, error) {
	rows := make([]itemRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, itemRow{Name: it.Name, PriceMinor: it.PriceMinor, Quantity: it.Quantity, Image: it.Image})
	}
	return json.Marshal(rows)
}

func decodeItems(raw []byte) ([]domain.OrderItem, error) {
	var rows []itemRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	items := make([]domain.OrderItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, domain.OrderItem{Name: r.Name, PriceMinor: r.PriceMinor, Quantity: r.Quantity, Image: r.Image})
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order  domain.Order
		items  []byte
		status string
		email  sql.NullString
	)
	if err := row.Scan(
		&order.ID, &items, &order.TotalMinor,
		&order.Delivery.Name, &order.Delivery.Phone, &order.Delivery.Address, &order.Delivery.Instructions,
		&status, &email, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}

	decoded, err := decodeItems(items)
	if err != nil {
		return domain.Order{}, fmt.Errorf("decode order items: %w", err)
	}
	order.Items = decoded
	order.Status = domain.OrderStatus(status)
	order.UserEmail = email.String
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	items, err := encodeItems(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		order.ID, items, order.TotalMinor,
		order.Delivery.Name, order.Delivery.Phone, order.Delivery.Address, order.Delivery.Instructions,
		string(order.Status), nullableString(order.UserEmail), order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if constraintViolated(err, "orders_pkey") {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, email string, limit int) ([]domain.Order, error) {
	return r.list(ctx, `WHERE user_email = $1`, []any{email}, limit)
}

func (r *orderRepository) ListAll(ctx context.Context, limit int) ([]domain.Order, error) {
	return r.list(ctx, ``, nil, limit)
}

func (r *orderRepository) list(ctx context.Context, where string, args []any, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders ` + where + ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $2,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $1
		RETURNING `+orderColumns,
		id, string(status), time.Now().UTC(),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}
	return order, nil
}

func (r *orderRepository) Stats(ctx context.Context) (domain.OrderStats, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var stats domain.OrderStats
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = $1),
		       COALESCE(SUM(total_minor) FILTER (WHERE status = $2), 0)
		FROM orders
	`, string(domain.OrderStatusPending), string(domain.OrderStatusDelivered),
	).Scan(&stats.TotalOrders, &stats.PendingOrders, &stats.DeliveredRevenueMinor); err != nil {
		return domain.OrderStats{}, fmt.Errorf("order stats query failed: %w", err)
	}
	return stats, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ domain.OrderRepository = (*orderRepository)(nil)
