package iqc

import (
	"context"
	"testing"

	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/services/batch"
	"github.com/xelth-com/loomtrace/internal/services/printer"
	"github.com/xelth-com/loomtrace/internal/testutil"
)

func TestResultIsMirroredOntoBatch(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	b := testutil.SeedBatch(t, db, "V260001", fx.Material.ID, fx.Warehouse.ID, models.QCPending, 10)
	svc := NewService(db, audit.NewGormWriter(), testutil.Logger())
	ctx := context.Background()

	tensile := 4.2
	r, err := svc.Create(ctx, CreateInput{BatchID: b.ID, Inspector: "QA-1", TensileStrength: &tensile, FinalResult: models.QCFail})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	assertBatch(t, svc, b.ID, models.QCFail, "IQC failed")

	pass := models.QCPass
	if _, err := svc.Update(ctx, r.ID, UpdateInput{FinalResult: &pass}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	assertBatch(t, svc, b.ID, models.QCPass, "IQC passed")

	// an older test submitted later still wins
	if _, err := svc.Create(ctx, CreateInput{BatchID: b.ID, FinalResult: models.QCPending}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	assertBatch(t, svc, b.ID, models.QCPending, "IQC pending")

	results, err := svc.ListByBatch(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListByBatch: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("results = %d, want 2", len(results))
	}

	if err := svc.Delete(ctx, r.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	assertBatch(t, svc, b.ID, models.QCPending, "IQC pending")
}

func TestUpdateWithoutResultLeavesBatch(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	b := testutil.SeedBatch(t, db, "V260001", fx.Material.ID, fx.Warehouse.ID, models.QCPending, 0)
	svc := NewService(db, audit.Nop{}, testutil.Logger())
	ctx := context.Background()

	r, err := svc.Create(ctx, CreateInput{BatchID: b.ID, FinalResult: models.QCPass})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := db.Model(&models.Batch{}).Where("id = ?", b.ID).Update("qc_status", models.QCExpired).Error; err != nil {
		t.Fatalf("expire batch: %v", err)
	}
	notes := "re-weighed"
	if _, err := svc.Update(ctx, r.ID, UpdateInput{Notes: &notes}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	var got models.Batch
	db.First(&got, b.ID)
	if got.QCStatus != models.QCExpired {
		t.Errorf("status = %s, want Expired untouched", got.QCStatus)
	}
}

func TestCreateValidation(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, audit.Nop{}, testutil.Logger())

	if _, err := svc.Create(context.Background(), CreateInput{BatchID: 42, FinalResult: models.QCPass}); !apperr.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
	if _, err := svc.Create(context.Background(), CreateInput{BatchID: 42, FinalResult: "Great"}); !apperr.IsValidation(err) {
		t.Errorf("expected Validation, got %v", err)
	}
}

func assertBatch(t *testing.T, svc *Service, id uint, status models.QCStatus, note string) {
	t.Helper()
	var b models.Batch
	if err := svc.db.First(&b, id).Error; err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if b.QCStatus != status || b.QCNote != note {
		t.Errorf("batch = %s %q, want %s %q", b.QCStatus, b.QCNote, status, note)
	}
}

func TestQCResultGatesBatchDeletion(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	svc := NewService(db, audit.Nop{}, testutil.Logger())
	batches := batch.NewService(db, testutil.Codes(), audit.Nop{}, printer.DefaultLabelOptions("LOT:"), testutil.Logger())
	ctx := context.Background()

	b, err := batches.Create(ctx, batch.CreateInput{MaterialID: fx.Material.ID})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}

	if _, err := svc.Create(ctx, CreateInput{BatchID: b.ID, FinalResult: models.QCPass}); err != nil {
		t.Fatalf("Create Pass: %v", err)
	}
	assertBatch(t, svc, b.ID, models.QCPass, "IQC passed")
	if err := batches.Delete(ctx, b.ID); !apperr.IsConflict(err) {
		t.Fatalf("delete after Pass: expected Conflict, got %v", err)
	}

	if _, err := svc.Create(ctx, CreateInput{BatchID: b.ID, FinalResult: models.QCFail}); err != nil {
		t.Fatalf("Create Fail: %v", err)
	}
	assertBatch(t, svc, b.ID, models.QCFail, "IQC failed")
	if err := batches.Delete(ctx, b.ID); err != nil {
		t.Fatalf("delete after Fail: %v", err)
	}
	if _, err := batches.Get(ctx, b.ID); !apperr.IsNotFound(err) {
		t.Errorf("batch still present: %v", err)
	}
}
