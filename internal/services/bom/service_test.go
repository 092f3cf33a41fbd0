package bom

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/testutil"
)

func sampleInput(productID uint) Input {
	return Input{
		ProductID:      productID,
		ApplicableYear: 2026,
		Header:         Header{TargetWeightGm: 80},
		Details: []Component{
			{ComponentType: "GROUND", YarnType: "PP 1000D", Threads: 1, Dtex: 11000, ActualLengthCm: 300},
			{ComponentType: "BINDER", YarnType: "PP 1000D", Threads: 2, Dtex: 5500, ActualLengthCm: 100},
			{ComponentType: "EDGE", YarnType: "", Threads: 4, Dtex: 100, ActualLengthCm: 10},
			{ComponentType: "STUFFER", YarnType: "PE 500D", Threads: 0, Dtex: 100, ActualLengthCm: 10},
		},
	}
}

func TestCreateStoresComputedWeights(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	svc := NewService(db, audit.NewGormWriter(), testutil.Logger())
	ctx := context.Background()

	h, err := svc.Create(ctx, sampleInput(fx.Product.ID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(h.Details) != 4 {
		t.Fatalf("details = %d", len(h.Details))
	}
	if !almost(h.Details[0].ActualWeightCal, 3) || !almost(h.Details[1].ActualWeightCal, 1) {
		t.Errorf("actual weights = %v, %v", h.Details[0].ActualWeightCal, h.Details[1].ActualWeightCal)
	}
	var shares float64
	for _, d := range h.Details {
		shares += d.WeightPercentage
	}
	if math.Abs(shares-100) > 1e-3 {
		t.Errorf("shares sum to %v", shares)
	}
	if h.TotalActualWeight <= 4 {
		t.Errorf("total actual = %v", h.TotalActualWeight)
	}

	if _, err := svc.Create(ctx, sampleInput(fx.Product.ID)); !apperr.IsConflict(err) {
		t.Errorf("second BOM for the same year: expected Conflict, got %v", err)
	}
	next := sampleInput(fx.Product.ID)
	next.ApplicableYear = 2027
	if _, err := svc.Create(ctx, next); err != nil {
		t.Errorf("BOM for another year: %v", err)
	}

	list, err := svc.List(ctx, ListFilter{ProductID: fx.Product.ID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ApplicableYear != 2027 {
		t.Errorf("list = %+v", list)
	}
}

func TestCreateValidatesReferences(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	svc := NewService(db, audit.Nop{}, testutil.Logger())
	ctx := context.Background()

	if _, err := svc.Create(ctx, sampleInput(999)); !apperr.IsNotFound(err) {
		t.Errorf("unknown product: expected NotFound, got %v", err)
	}
	in := sampleInput(fx.Product.ID)
	missing := uint(999)
	in.Details[0].MaterialID = &missing
	if _, err := svc.Create(ctx, in); !apperr.IsNotFound(err) {
		t.Errorf("unknown material: expected NotFound, got %v", err)
	}
	in = sampleInput(fx.Product.ID)
	in.ApplicableYear = 1999
	if _, err := svc.Create(ctx, in); !apperr.IsValidation(err) {
		t.Errorf("year out of range: expected Validation, got %v", err)
	}
	in = sampleInput(fx.Product.ID)
	in.Details[1].ComponentType = ""
	if _, err := svc.Create(ctx, in); !apperr.IsValidation(err) {
		t.Errorf("empty component type: expected Validation, got %v", err)
	}
}

func TestUpdateReplacesDetails(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	svc := NewService(db, audit.Nop{}, testutil.Logger())
	ctx := context.Background()

	h, err := svc.Create(ctx, sampleInput(fx.Product.ID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	in := sampleInput(fx.Product.ID)
	in.Notes = "trimmed"
	in.Details = in.Details[:1]
	got, err := svc.Update(ctx, h.ID, in)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(got.Details) != 1 || got.Notes != "trimmed" {
		t.Fatalf("updated BOM = %+v", got)
	}
	if !almost(got.Details[0].WeightPercentage, 100) || !almost(got.Details[0].BOMGm, 80) {
		t.Errorf("single component = %+v", got.Details[0])
	}
	var rows int64
	db.Model(&models.BOMDetail{}).Where("bom_id = ?", h.ID).Count(&rows)
	if rows != 1 {
		t.Errorf("detail rows = %d, want 1", rows)
	}

	if err := svc.Delete(ctx, h.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	db.Model(&models.BOMDetail{}).Count(&rows)
	if rows != 0 {
		t.Errorf("details survived delete: %d", rows)
	}
	if _, err := svc.Get(ctx, h.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestSummaryGroupsByYarnType(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	svc := NewService(db, audit.Nop{}, testutil.Logger())
	ctx := context.Background()

	h, err := svc.Create(ctx, sampleInput(fx.Product.ID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rows, err := svc.Summary(ctx, h.ID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	// empty yarn type and the zero-thread PE line are dropped
	if len(rows) != 1 || rows[0].YarnType != "PP 1000D" || rows[0].Threads != 3 {
		t.Fatalf("summary = %+v", rows)
	}

	out, err := svc.SummaryXLSX(ctx, h.ID)
	if err != nil {
		t.Fatalf("SummaryXLSX: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("PK")) {
		t.Errorf("workbook is not a zip container")
	}
}

func TestCalculateDryRun(t *testing.T) {
	svc := NewService(testutil.NewDB(t), audit.Nop{}, testutil.Logger())
	res, err := svc.Calculate(CalculateInput{
		Header:  Header{TargetWeightGm: 10},
		Details: []Component{{ComponentType: "ground", Threads: 1, Dtex: 11000, ActualLengthCm: 100}},
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if len(res.Lines) != 1 || !almost(res.Lines[0].BOMGm, 10) {
		t.Errorf("result = %+v", res)
	}
	if _, err := svc.Calculate(CalculateInput{Header: Header{TargetWeightGm: -1}}); !apperr.IsValidation(err) {
		t.Errorf("expected Validation, got %v", err)
	}
}
