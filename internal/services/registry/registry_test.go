package registry

import (
	"context"
	"testing"

	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/services/export"
	"github.com/xelth-com/loomtrace/internal/testutil"
)

type recorder struct {
	events []string
}

func (r *recorder) ReferenceChanged(entity string, id uint, action string) {
	r.events = append(r.events, entity+":"+action)
}

func TestStoreCRUDNotifies(t *testing.T) {
	db := testutil.NewDB(t)
	rec := &recorder{}
	reg := New(db, audit.NewGormWriter(), rec, testutil.Logger())
	ctx := context.Background()

	w := &models.Warehouse{Code: "WH-2", Name: "Yarn store", IsActive: true}
	if err := reg.Warehouses.Create(ctx, w); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if w.ID == 0 {
		t.Fatalf("id not assigned")
	}
	if err := reg.Warehouses.Create(ctx, &models.Warehouse{Code: "WH-2", Name: "Other"}); !apperr.IsConflict(err) {
		t.Errorf("duplicate code: expected Conflict, got %v", err)
	}
	if err := reg.Warehouses.Create(ctx, &models.Warehouse{Name: "No code"}); !apperr.IsValidation(err) {
		t.Errorf("missing code: expected Validation, got %v", err)
	}

	got, err := reg.Warehouses.Update(ctx, w.ID, &models.Warehouse{Code: "WH-2", Name: "Renamed", IsActive: false})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Name != "Renamed" || got.IsActive {
		t.Errorf("updated = %+v", got)
	}

	list, err := reg.Warehouses.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("list = %d rows", len(list))
	}

	if err := reg.Warehouses.Delete(ctx, w.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := reg.Warehouses.Get(ctx, w.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}

	want := []string{"warehouse:create", "warehouse:update", "warehouse:delete"}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v", rec.events)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, rec.events[i], want[i])
		}
	}

	var logs int64
	db.Model(&models.AuditLog{}).Where("entity = ?", "warehouse").Count(&logs)
	if logs != 3 {
		t.Errorf("audit rows = %d, want 3", logs)
	}
}

func TestDeleteGuards(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	reg := New(db, audit.Nop{}, nil, testutil.Logger())
	ctx := context.Background()

	testutil.SeedBatch(t, db, "V260001", fx.Material.ID, fx.Warehouse.ID, models.QCPass, 3)
	if err := reg.Warehouses.Delete(ctx, fx.Warehouse.ID); !apperr.IsConflict(err) {
		t.Errorf("warehouse with stock: expected Conflict, got %v", err)
	}
	if err := reg.Materials.Delete(ctx, fx.Material.ID); !apperr.IsConflict(err) {
		t.Errorf("material with batches: expected Conflict, got %v", err)
	}
	if err := reg.Materials.Delete(ctx, fx.Material2.ID); err != nil {
		t.Errorf("unused material: %v", err)
	}

	if err := db.Model(&fx.Basket).Update("status", models.BasketInUse).Error; err != nil {
		t.Fatalf("claim basket: %v", err)
	}
	if err := reg.Baskets.Delete(ctx, fx.Basket.ID); !apperr.IsConflict(err) {
		t.Errorf("basket in use: expected Conflict, got %v", err)
	}

	ticket := models.WeavingBasketTicket{MachineID: fx.Machine.ID, LineNo: fx.Machine.LineNo, ProductID: fx.Product.ID, TimeIn: testutil.Clock}
	if err := db.Create(&ticket).Error; err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	if err := reg.Machines.Delete(ctx, fx.Machine.ID); !apperr.IsConflict(err) {
		t.Errorf("machine with open ticket: expected Conflict, got %v", err)
	}

	bom := models.BOMHeader{ProductID: fx.Product.ID, ApplicableYear: 2026}
	if err := db.Create(&bom).Error; err != nil {
		t.Fatalf("seed BOM: %v", err)
	}
	if err := reg.Products.Delete(ctx, fx.Product.ID); !apperr.IsConflict(err) {
		t.Errorf("product with BOM: expected Conflict, got %v", err)
	}
}

func TestBasketStatusIsOwnedByExports(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	reg := New(db, audit.Nop{}, nil, testutil.Logger())
	ctx := context.Background()

	if _, err := reg.Baskets.Update(ctx, fx.Basket.ID, &models.Basket{Code: "BSK-01", Status: models.BasketInUse, TareKg: 1.5}); !apperr.IsValidation(err) {
		t.Errorf("setting IN_USE directly: expected Validation, got %v", err)
	}
	got, err := reg.Baskets.Update(ctx, fx.Basket.ID, &models.Basket{Code: "BSK-01", Status: models.BasketDamaged, TareKg: 1.5})
	if err != nil {
		t.Fatalf("mark damaged: %v", err)
	}
	if got.Status != models.BasketDamaged {
		t.Errorf("status = %s, want DAMAGED", got.Status)
	}
	if _, err := reg.Baskets.Update(ctx, fx.Basket.ID, &models.Basket{Code: "BSK-01", Status: models.BasketReady, TareKg: 1.5}); err != nil {
		t.Fatalf("repair: %v", err)
	}

	b := testutil.SeedBatch(t, db, "V260001", fx.Material.ID, fx.Warehouse.ID, models.QCPass, 10)
	exports := export.NewService(db, testutil.Codes(), audit.Nop{}, testutil.Logger())
	line := export.DetailInput{
		MaterialID:    fx.Material.ID,
		BatchID:       b.ID,
		Quantity:      2,
		MachineID:     &fx.Machine.ID,
		LineNo:        fx.Machine.LineNo,
		ProductID:     &fx.Product.ID,
		BasketID:      &fx.Basket.ID,
		ComponentType: "Ground",
	}
	if _, err := exports.Create(ctx, export.CreateInput{WarehouseID: fx.Warehouse.ID, Details: []export.DetailInput{line}}); err != nil {
		t.Fatalf("export: %v", err)
	}

	if _, err := reg.Baskets.Update(ctx, fx.Basket.ID, &models.Basket{Code: "BSK-01", Status: models.BasketReady, TareKg: 1.5}); !apperr.IsConflict(err) {
		t.Fatalf("freeing an in-use basket: expected Conflict, got %v", err)
	}
	// a rename without status keeps the basket in use
	got, err = reg.Baskets.Update(ctx, fx.Basket.ID, &models.Basket{Code: "BSK-01A", TareKg: 1.6})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got.Status != models.BasketInUse || got.Code != "BSK-01A" {
		t.Errorf("basket = %+v, want BSK-01A IN_USE", got)
	}

	if _, err := exports.Create(ctx, export.CreateInput{WarehouseID: fx.Warehouse.ID, Details: []export.DetailInput{line}}); !apperr.IsConflict(err) {
		t.Errorf("second export on the busy basket: expected Conflict, got %v", err)
	}
}
