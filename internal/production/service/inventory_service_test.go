package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/production/entity"
	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/bitfantasy/nimo-mes/internal/production/repository"
	"github.com/bitfantasy/nimo-mes/internal/testutil"
)

func TestInventoryPartitions(t *testing.T) {
	f := setupServiceTest(t, "8", "2")
	ctx := context.Background()

	all, err := f.svc.Inventory.ListMaterials(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListMaterials = %d, %v", len(all), err)
	}
	raw, _ := f.svc.Inventory.RawMaterials(ctx)
	finished, _ := f.svc.Inventory.FinishedGoods(ctx)
	if len(raw) != 2 || len(finished) != 1 || finished[0].ID != f.chair.ID {
		t.Errorf("unexpected partition raw=%d finished=%d", len(raw), len(finished))
	}
	if _, err := f.svc.Inventory.GetMaterial(ctx, 9999); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing material = %v", err)
	}
}

func TestCreateMaterial(t *testing.T) {
	f := setupServiceTest(t, "0", "0")
	ctx := context.Background()

	id, err := f.svc.Inventory.CreateMaterial(ctx, model.Material{
		Name:              "Glue",
		Type:              model.ParseMaterialType(0),
		CurrentStockLevel: dec("12.5"),
		MinimumStockLevel: dec("20"),
	})
	if err != nil {
		t.Fatalf("CreateMaterial: %v", err)
	}
	m, err := f.svc.Inventory.GetMaterial(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if m.Type != model.MaterialTypeRaw || m.UnitOfMeasure != "pcs" || !m.BelowMinimum() {
		t.Errorf("unexpected material %+v", m)
	}

	if _, err := f.svc.Inventory.CreateMaterial(ctx, model.Material{Name: "Mystery"}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("unknown type = %v", err)
	}
}

func listedStock(t *testing.T, materials []model.Material, id int64) string {
	t.Helper()
	for _, m := range materials {
		if m.ID == id {
			return m.CurrentStockLevel.String()
		}
	}
	t.Fatalf("material %d not listed", id)
	return ""
}

func TestMaterialCacheNotStoredAcrossInvalidation(t *testing.T) {
	f := setupServiceTest(t, "8", "2")
	rdb := testutil.SetupTestRedis(t)
	inv := NewInventoryService(repository.NewRepositories(f.db).Material, rdb, time.Minute, nil)
	ctx := context.Background()

	setStock := func(qty string) {
		t.Helper()
		err := f.db.Model(&entity.Material{}).Where("id = ?", f.steel.ID).Update("current_stock_level", dec(qty)).Error
		if err != nil {
			t.Fatal(err)
		}
	}

	// a start commits between the database read and the cache write
	inv.afterLoad = func() {
		setStock("3")
		inv.Invalidate(ctx)
	}
	first, err := inv.ListMaterials(ctx)
	if err != nil {
		t.Fatalf("ListMaterials: %v", err)
	}
	if got := listedStock(t, first, f.steel.ID); got != "8" {
		t.Errorf("Expected the value read before the change, got %s", got)
	}
	if n, _ := rdb.Exists(ctx, materialsCacheKey).Result(); n != 0 {
		t.Fatal("a list read before an invalidation must not be cached")
	}

	inv.afterLoad = nil
	second, err := inv.ListMaterials(ctx)
	if err != nil {
		t.Fatalf("ListMaterials: %v", err)
	}
	if got := listedStock(t, second, f.steel.ID); got != "3" {
		t.Errorf("Expected fresh stock 3, got %s", got)
	}

	// served from the cache until the next invalidation
	setStock("1")
	cached, _ := inv.ListMaterials(ctx)
	if got := listedStock(t, cached, f.steel.ID); got != "3" {
		t.Errorf("Expected cached stock 3, got %s", got)
	}
	inv.Invalidate(ctx)
	fresh, _ := inv.ListMaterials(ctx)
	if got := listedStock(t, fresh, f.steel.ID); got != "1" {
		t.Errorf("Expected stock 1 after invalidation, got %s", got)
	}
}
