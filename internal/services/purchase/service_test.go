package purchase

import (
	"context"
	"testing"

	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/testutil"
)

func newService(t *testing.T) (*Service, *testutil.Fixture) {
	t.Helper()
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	return NewService(db, testutil.Codes(), audit.NewGormWriter(), testutil.Logger()), fx
}

func TestCreateGeneratesSequentialNumbers(t *testing.T) {
	svc, fx := newService(t)
	ctx := context.Background()

	in := CreateInput{
		SupplierID: fx.Supplier.ID,
		Details:    []DetailInput{{MaterialID: fx.Material.ID, Quantity: 100, UnitPrice: 2.5}},
	}
	first, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.PONumber != "V00000001" || second.PONumber != "V00000002" {
		t.Errorf("numbers = %s, %s", first.PONumber, second.PONumber)
	}
	if first.Status != models.POStatusDraft {
		t.Errorf("status = %s, want Draft", first.Status)
	}

	next, err := svc.NextNumber(ctx)
	if err != nil {
		t.Fatalf("NextNumber: %v", err)
	}
	if next != "V00000003" {
		t.Errorf("NextNumber = %s", next)
	}

	var logs int64
	svc.db.Model(&models.AuditLog{}).Where("entity = ?", "purchase_order").Count(&logs)
	if logs != 2 {
		t.Errorf("audit rows = %d, want 2", logs)
	}
}

func TestCreateRejectsDuplicateNumber(t *testing.T) {
	svc, fx := newService(t)
	ctx := context.Background()

	in := CreateInput{PONumber: "PO-A", SupplierID: fx.Supplier.ID}
	if _, err := svc.Create(ctx, in); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := svc.Create(ctx, in)
	if !apperr.IsConflict(err) {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	svc, fx := newService(t)
	_, err := svc.Create(context.Background(), CreateInput{
		SupplierID: fx.Supplier.ID,
		Details:    []DetailInput{{MaterialID: fx.Material.ID, Quantity: 0}},
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected Validation, got %v", err)
	}

	_, err = svc.Create(context.Background(), CreateInput{SupplierID: 999})
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected NotFound for unknown supplier, got %v", err)
	}
}

func TestTransitionAndDelete(t *testing.T) {
	svc, fx := newService(t)
	ctx := context.Background()

	po, err := svc.Create(ctx, CreateInput{
		SupplierID: fx.Supplier.ID,
		Details:    []DetailInput{{MaterialID: fx.Material.ID, Quantity: 10}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Transition(ctx, po.ID, models.POStatusCompleted); !apperr.IsConflict(err) {
		t.Errorf("manual Completed should be refused, got %v", err)
	}
	sent, err := svc.Transition(ctx, po.ID, models.POStatusSent)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if sent.Status != models.POStatusSent {
		t.Errorf("status = %s, want Sent", sent.Status)
	}

	if _, err := svc.ReplaceDetails(ctx, po.ID, []DetailInput{{MaterialID: fx.Material2.ID, Quantity: 5}}); !apperr.IsConflict(err) {
		t.Errorf("ReplaceDetails outside Draft should conflict, got %v", err)
	}
	if err := svc.Delete(ctx, po.ID); !apperr.IsConflict(err) {
		t.Errorf("Delete outside Draft should conflict, got %v", err)
	}
}

func TestReplaceDetailsInDraft(t *testing.T) {
	svc, fx := newService(t)
	ctx := context.Background()

	po, err := svc.Create(ctx, CreateInput{
		SupplierID: fx.Supplier.ID,
		Details:    []DetailInput{{MaterialID: fx.Material.ID, Quantity: 10}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := svc.ReplaceDetails(ctx, po.ID, []DetailInput{
		{MaterialID: fx.Material2.ID, Quantity: 5},
		{MaterialID: fx.Material.ID, Quantity: 7},
	})
	if err != nil {
		t.Fatalf("ReplaceDetails: %v", err)
	}
	if len(got.Details) != 2 || got.Details[0].MaterialID != fx.Material2.ID || got.Details[1].Quantity != 7 {
		t.Errorf("details = %+v", got.Details)
	}

	if err := svc.Delete(ctx, po.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, po.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected NotFound after delete, got %v", err)
	}
}

func TestUpdateHeaderOnlyTouchesGivenFields(t *testing.T) {
	svc, fx := newService(t)
	ctx := context.Background()

	po, err := svc.Create(ctx, CreateInput{SupplierID: fx.Supplier.ID, Incoterm: "FOB", Currency: "USD"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	notes := "ship by sea"
	got, err := svc.Update(ctx, po.ID, UpdateInput{Notes: &notes})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Notes != notes || got.Incoterm != "FOB" || got.Currency != "USD" {
		t.Errorf("got %+v", got)
	}
}
