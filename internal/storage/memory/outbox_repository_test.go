package memory

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

func TestOutboxRepository_EnqueueAndPull(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepository()

	base := time.Now().UTC()
	second, err := repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   "order-2",
		EventType:     domain.EventOrderStatusChanged,
		CreatedAt:     base.Add(time.Second),
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	first, err := repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   "order-1",
		EventType:     domain.EventOrderStatusChanged,
		Payload:       []byte(`{"status":"Confirmed"}`),
		CreatedAt:     base,
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated id")
	}

	pending, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending messages, got %d", len(pending))
	}
	if pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Fatalf("expected oldest first, got %s, %s", pending[0].ID, pending[1].ID)
	}

	limited, _ := repo.PullPending(ctx, 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 2 || !stats.OldestPendingAt.Equal(base) {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestOutboxRepository_MarkSentAndFailed(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepository()

	saved, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: domain.AggregateOrder})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := repo.MarkSent(ctx, saved.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if len(repo.AllPending()) != 0 {
		t.Fatal("sent message must leave the backlog")
	}

	if err := repo.MarkFailed(ctx, saved.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if err := repo.MarkFailed(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing record")
	}
}

func TestOutboxRepository_DeleteProcessed(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepository()

	var ids []string
	for i := 0; i < 3; i++ {
		saved, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: domain.AggregateOrder})
		if err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
		ids = append(ids, saved.ID)
	}
	if err := repo.MarkSent(ctx, ids[0]); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := repo.MarkFailed(ctx, ids[1]); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	deleted, err := repo.DeleteProcessed(ctx, time.Now().Add(-time.Hour), 10)
	if err != nil || deleted != 0 {
		t.Fatalf("fresh records must survive: deleted=%d err=%v", deleted, err)
	}

	deleted, err = repo.DeleteProcessed(ctx, time.Now().Add(time.Second), 1)
	if err != nil || deleted != 1 {
		t.Fatalf("expected one deleted record, got %d err=%v", deleted, err)
	}
	deleted, err = repo.DeleteProcessed(ctx, time.Now().Add(time.Second), 10)
	if err != nil || deleted != 1 {
		t.Fatalf("expected second processed record deleted, got %d err=%v", deleted, err)
	}

	if pending := repo.AllPending(); len(pending) != 1 || pending[0].ID != ids[2] {
		t.Fatalf("pending record must stay untouched: %+v", pending)
	}
}
