package memory_test

import (
	"context"
	"testing"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
	"github.com/vladislavdragonenkov/yummybites/internal/storage/memory"
)

func TestMenuRepository_UpsertAndList(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMenuRepository()

	if got, _ := repo.List(ctx); len(got) != 0 {
		t.Fatalf("expected empty menu, got %d items", len(got))
	}

	tags := []string{"veg"}
	_ = repo.Upsert(ctx, domain.MenuItem{ID: "d2", Name: "Vada", PriceMinor: 6000, Tags: tags})
	_ = repo.Upsert(ctx, domain.MenuItem{ID: "d1", Name: "Idli", PriceMinor: 5000})
	_ = repo.Upsert(ctx, domain.MenuItem{ID: "d1", Name: "Idli", PriceMinor: 5500})
	tags[0] = "mutated"

	got, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].ID != "d1" || got[0].PriceMinor != 5500 {
		t.Fatalf("expected replaced Idli first, got %+v", got[0])
	}
	if got[1].Tags[0] != "veg" {
		t.Fatalf("stored tags must not alias the caller's slice, got %v", got[1].Tags)
	}
}
