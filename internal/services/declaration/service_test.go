package declaration

import (
	"context"
	"testing"

	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/testutil"
)

func TestDeclarationLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	svc := NewService(db, audit.NewGormWriter(), testutil.Logger())
	ctx := context.Background()

	po := models.PurchaseOrder{PONumber: "V00000001", SupplierID: fx.Supplier.ID, OrderDate: testutil.Clock, Status: models.POStatusConfirmed}
	if err := db.Create(&po).Error; err != nil {
		t.Fatalf("seed PO: %v", err)
	}
	line := models.PurchaseOrderDetail{POID: po.ID, MaterialID: fx.Material.ID, Quantity: 100}
	if err := db.Create(&line).Error; err != nil {
		t.Fatalf("seed PO line: %v", err)
	}

	in := Input{
		DeclarationNo: "CD-2026-001",
		SupplierID:    &fx.Supplier.ID,
		Currency:      "USD",
		TotalValue:    1500,
		Details: []DetailInput{
			{MaterialID: fx.Material.ID, PODetailID: &line.ID, Quantity: 100, UnitPrice: 15, HSCode: "5402.33"},
		},
	}
	d, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(d.Details) != 1 || d.Details[0].HSCode != "5402.33" {
		t.Fatalf("declaration = %+v", d)
	}
	if _, err := svc.Create(ctx, in); !apperr.IsConflict(err) {
		t.Errorf("duplicate number: expected Conflict, got %v", err)
	}

	missing := uint(999)
	bad := in
	bad.DeclarationNo = "CD-2026-002"
	bad.Details = []DetailInput{{MaterialID: fx.Material.ID, PODetailID: &missing}}
	if _, err := svc.Create(ctx, bad); !apperr.IsNotFound(err) {
		t.Errorf("unknown PO line: expected NotFound, got %v", err)
	}
	bad.Currency = "DOLLAR"
	if _, err := svc.Create(ctx, bad); !apperr.IsValidation(err) {
		t.Errorf("bad currency: expected Validation, got %v", err)
	}

	in.Details = append(in.Details, DetailInput{MaterialID: fx.Material2.ID, Quantity: 20})
	in.InvoiceNo = "INV-7"
	updated, err := svc.Update(ctx, d.ID, in)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(updated.Details) != 2 || updated.InvoiceNo != "INV-7" {
		t.Errorf("updated = %+v", updated)
	}

	list, err := svc.List(ctx, fx.Supplier.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("list = %d", len(list))
	}

	receipt := models.MaterialReceipt{ReceiptNumber: "2026/03-001", WarehouseID: fx.Warehouse.ID, ImportDeclarationID: &d.ID}
	if err := db.Create(&receipt).Error; err != nil {
		t.Fatalf("seed receipt: %v", err)
	}
	if err := svc.Delete(ctx, d.ID); !apperr.IsConflict(err) {
		t.Fatalf("referenced declaration: expected Conflict, got %v", err)
	}
	if err := db.Delete(&receipt).Error; err != nil {
		t.Fatalf("drop receipt: %v", err)
	}
	if err := svc.Delete(ctx, d.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var lines int64
	db.Model(&models.ImportDeclarationDetail{}).Count(&lines)
	if lines != 0 {
		t.Errorf("lines survived delete: %d", lines)
	}
}
