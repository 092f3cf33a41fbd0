package inventory

import (
	"bytes"
	"context"
	"testing"

	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/testutil"
)

func setup(t *testing.T) (*Service, *testutil.Fixture) {
	t.Helper()
	db := testutil.NewDB(t)
	return NewService(db, audit.NewGormWriter(), testutil.Logger()), testutil.Seed(t, db)
}

func reserved(t *testing.T, db *database.DB, batchID uint) float64 {
	t.Helper()
	var s models.InventoryStock
	if err := db.Where("batch_id = ?", batchID).First(&s).Error; err != nil {
		t.Fatalf("load stock of batch %d: %v", batchID, err)
	}
	return s.QuantityReserved
}

func TestReserveTakesPassedBatchesOldestFirst(t *testing.T) {
	svc, fx := setup(t)
	ctx := context.Background()
	m, w := fx.Material.ID, fx.Warehouse.ID

	b1 := testutil.SeedBatch(t, svc.db, "V260001", m, w, models.QCPass, 10)
	pending := testutil.SeedBatch(t, svc.db, "V260002", m, w, models.QCPending, 100)
	b3 := testutil.SeedBatch(t, svc.db, "V260003", m, w, models.QCPass, 10)
	retired := testutil.SeedBatch(t, svc.db, "V260004", m, w, models.QCPass, 100)
	if err := svc.db.Model(&models.Batch{}).Where("id = ?", retired.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	allocs, err := svc.Reserve(ctx, ReserveInput{MaterialID: m, Quantity: 15})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if len(allocs) != 2 || allocs[0].BatchID != b1.ID || allocs[0].Quantity != 10 || allocs[1].BatchID != b3.ID || allocs[1].Quantity != 5 {
		t.Fatalf("allocations = %+v", allocs)
	}
	if got := reserved(t, svc.db, pending.ID); got != 0 {
		t.Errorf("pending batch reserved %v", got)
	}

	// 5 left on passed active batches
	if _, err := svc.Reserve(ctx, ReserveInput{MaterialID: m, Quantity: 6}); !apperr.IsInsufficientStock(err) {
		t.Fatalf("expected InsufficientStock, got %v", err)
	}
	if got := reserved(t, svc.db, b3.ID); got != 5 {
		t.Errorf("failed reservation leaked: reserved %v on b3", got)
	}

	allocs, err = svc.Release(ctx, ReserveInput{MaterialID: m, Quantity: 7})
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if len(allocs) != 2 || allocs[0].BatchID != b3.ID || allocs[0].Quantity != 5 || allocs[1].Quantity != 2 {
		t.Fatalf("release allocations = %+v", allocs)
	}
	if got := reserved(t, svc.db, b1.ID); got != 8 {
		t.Errorf("b1 reserved = %v, want 8", got)
	}
	if _, err := svc.Release(ctx, ReserveInput{MaterialID: m, Quantity: 9}); !apperr.IsValidation(err) {
		t.Errorf("over-release: expected Validation, got %v", err)
	}
}

func TestAdjust(t *testing.T) {
	svc, fx := setup(t)
	ctx := context.Background()
	b := testutil.SeedBatch(t, svc.db, "V260001", fx.Material.ID, fx.Warehouse.ID, models.QCPass, 0)
	key := models.StockKey{MaterialID: fx.Material.ID, WarehouseID: fx.Warehouse.ID, BatchID: b.ID}

	if _, err := svc.Adjust(ctx, AdjustInput{StockKey: key, NewQuantity: 0}); !apperr.IsNotFound(err) {
		t.Fatalf("zeroing a missing row: expected NotFound, got %v", err)
	}
	row, err := svc.Adjust(ctx, AdjustInput{StockKey: key, NewQuantity: 12.5, Reason: "stocktake"})
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if row.QuantityOnHand != 12.5 {
		t.Errorf("on hand = %v", row.QuantityOnHand)
	}
	if _, err := svc.Adjust(ctx, AdjustInput{StockKey: key, NewQuantity: 3}); err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if got := testutil.OnHand(t, svc.db, key.MaterialID, key.WarehouseID, key.BatchID); got != 3 {
		t.Errorf("on hand = %v, want 3", got)
	}
	if _, err := svc.Adjust(ctx, AdjustInput{StockKey: key, NewQuantity: -1}); !apperr.IsValidation(err) {
		t.Errorf("negative quantity: expected Validation, got %v", err)
	}
	bad := key
	bad.WarehouseID = 999
	if _, err := svc.Adjust(ctx, AdjustInput{StockKey: bad, NewQuantity: 1}); !apperr.IsNotFound(err) {
		t.Errorf("unknown warehouse: expected NotFound, got %v", err)
	}

	var entries int64
	svc.db.Model(&models.AuditLog{}).Where("entity = ?", "inventory_stock").Count(&entries)
	if entries != 2 {
		t.Errorf("audit entries = %d, want 2", entries)
	}
}

func TestTotalsAndLowStock(t *testing.T) {
	svc, fx := setup(t)
	ctx := context.Background()
	m, w := fx.Material.ID, fx.Warehouse.ID

	b1 := testutil.SeedBatch(t, svc.db, "V260001", m, w, models.QCPass, 20)
	testutil.SeedBatch(t, svc.db, "V260002", m, w, models.QCPass, 10)
	if err := svc.db.Model(&models.InventoryStock{}).Where("batch_id = ?", b1.ID).Update("quantity_reserved", 25).Error; err != nil {
		t.Fatalf("over-reserve: %v", err)
	}

	total, err := svc.TotalByMaterial(ctx, m)
	if err != nil {
		t.Fatalf("TotalByMaterial: %v", err)
	}
	if total.QuantityOnHand != 30 || total.QuantityReserved != 25 || total.AvailableQuantity != 5 {
		t.Errorf("total = %+v", total)
	}

	rows, err := svc.List(ctx, Filter{BatchID: b1.ID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || rows[0].AvailableQuantity != -5 {
		t.Errorf("row-level available should not be floored: %+v", rows)
	}

	low, err := svc.LowStock(ctx)
	if err != nil {
		t.Fatalf("LowStock: %v", err)
	}
	if len(low) != 1 || low[0].Code != "PP-1000" || low[0].Shortage != 45 {
		t.Errorf("low stock = %+v", low)
	}

	if _, err := svc.TotalByMaterial(ctx, 999); !apperr.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestWithdrawChecksOnHand(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	b := testutil.SeedBatch(t, db, "V260001", fx.Material.ID, fx.Warehouse.ID, models.QCPass, 4)
	key := models.StockKey{MaterialID: fx.Material.ID, WarehouseID: fx.Warehouse.ID, BatchID: b.ID}

	if _, err := Withdraw(db.DB, key, 4.0001); !apperr.IsInsufficientStock(err) {
		t.Fatalf("expected InsufficientStock, got %v", err)
	}
	row, err := Withdraw(db.DB, key, 4)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if row.QuantityOnHand != 0 {
		t.Errorf("on hand = %v", row.QuantityOnHand)
	}
	missing := key
	missing.BatchID = b.ID + 1
	if _, err := Withdraw(db.DB, missing, 1); !apperr.IsInsufficientStock(err) {
		t.Errorf("missing row: expected InsufficientStock, got %v", err)
	}
}

func TestReportXLSX(t *testing.T) {
	svc, fx := setup(t)
	testutil.SeedBatch(t, svc.db, "V260001", fx.Material.ID, fx.Warehouse.ID, models.QCPass, 7)

	rows, err := svc.Report(context.Background())
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(rows) != 1 || rows[0].BatchCode != "V260001" || rows[0].WarehouseCode != "WH-1" || rows[0].AvailableQuantity != 7 {
		t.Fatalf("rows = %+v", rows)
	}
	out, err := svc.ReportXLSX(context.Background())
	if err != nil {
		t.Fatalf("ReportXLSX: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("PK")) {
		t.Errorf("workbook is not a zip container")
	}
}
