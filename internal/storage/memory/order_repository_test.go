package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
	"github.com/vladislavdragonenkov/yummybites/internal/storage/memory"
)

func newOrder(id, email string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:         id,
		Items:      []domain.OrderItem{{Name: "Veg Biryani", PriceMinor: 18000, Quantity: 1}},
		TotalMinor: 18000,
		Delivery:   domain.DeliveryDetails{}.WithDefaults(),
		Status:     domain.OrderStatusPending,
		UserEmail:  email,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func TestOrderRepository_CreateGet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "user@example.com", time.Now().UTC())

	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(ctx, order); err == nil {
		t.Fatal("expected duplicate create to fail")
	}

	stored, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.ID != order.ID {
		t.Fatalf("expected id %s, got %s", order.ID, stored.ID)
	}

	stored.Items[0].Name = "mutated"
	again, _ := repo.Get(ctx, order.ID)
	if again.Items[0].Name != "Veg Biryani" {
		t.Fatal("stored order must not alias caller slices")
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"o1", "o2", "o3"} {
		if err := repo.Create(ctx, newOrder(id, "user@example.com", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	if err := repo.Create(ctx, newOrder("guest-1", "", base)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	orders, err := repo.ListByUser(ctx, "user@example.com", 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != "o3" || orders[1].ID != "o2" {
		t.Fatalf("unexpected order list %+v", orders)
	}

	all, err := repo.ListAll(ctx, 0)
	if err != nil {
		t.Fatalf("list all failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 orders, got %d", len(all))
	}
}

func TestOrderRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("abc123", "", time.Now().UTC())
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusConfirmed)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Status != domain.OrderStatusConfirmed {
		t.Fatalf("expected Confirmed, got %s", updated.Status)
	}
	if updated.Version != order.Version+1 {
		t.Fatalf("expected version increment, got %d", updated.Version)
	}

	stored, _ := repo.Get(ctx, order.ID)
	if stored.Status != domain.OrderStatusConfirmed {
		t.Fatalf("store must reflect new status, got %s", stored.Status)
	}

	if _, err := repo.UpdateStatus(ctx, "missing", domain.OrderStatusConfirmed); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_Stats(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	now := time.Now().UTC()

	_ = repo.Create(ctx, newOrder("o1", "", now))
	_ = repo.Create(ctx, newOrder("o2", "", now))
	_ = repo.Create(ctx, newOrder("o3", "", now))
	if _, err := repo.UpdateStatus(ctx, "o3", domain.OrderStatusDelivered); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalOrders != 3 || stats.PendingOrders != 2 || stats.DeliveredRevenueMinor != 18000 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
