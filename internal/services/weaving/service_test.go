package weaving

import (
	"context"
	"testing"

	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/testutil"
)

func TestRecordOutputNetsTareAndCloses(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	svc := NewService(db, audit.NewGormWriter(), testutil.Logger())
	ctx := context.Background()

	if err := db.Model(&fx.Basket).Update("status", models.BasketInUse).Error; err != nil {
		t.Fatalf("claim basket: %v", err)
	}
	ticket := models.WeavingBasketTicket{MachineID: fx.Machine.ID, LineNo: "L1", ProductID: fx.Product.ID, BasketID: &fx.Basket.ID, TimeIn: testutil.Clock}
	if err := db.Create(&ticket).Error; err != nil {
		t.Fatalf("seed ticket: %v", err)
	}

	if _, err := svc.RecordOutput(ctx, ticket.ID, OutputInput{GrossWeight: 1}); !apperr.IsValidation(err) {
		t.Fatalf("gross under tare: expected Validation, got %v", err)
	}
	got, err := svc.RecordOutput(ctx, ticket.ID, OutputInput{GrossWeight: 12})
	if err != nil {
		t.Fatalf("RecordOutput: %v", err)
	}
	if got.NetWeight != 10.5 || !got.IsOpen() {
		t.Errorf("ticket = net %v open %v", got.NetWeight, got.IsOpen())
	}

	open, err := svc.List(ctx, ListFilter{MachineID: fx.Machine.ID, OpenOnly: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(open) != 1 {
		t.Errorf("open tickets = %d", len(open))
	}

	got, err = svc.RecordOutput(ctx, ticket.ID, OutputInput{GrossWeight: 13, Close: true})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if got.IsOpen() || got.NetWeight != 11.5 {
		t.Errorf("closed ticket = %+v", got)
	}
	var basket models.Basket
	db.First(&basket, fx.Basket.ID)
	if basket.Status != models.BasketReady {
		t.Errorf("basket = %s, want READY", basket.Status)
	}

	if _, err := svc.RecordOutput(ctx, ticket.ID, OutputInput{GrossWeight: 14}); !apperr.IsConflict(err) {
		t.Errorf("closed ticket: expected Conflict, got %v", err)
	}
	if open, _ = svc.List(ctx, ListFilter{OpenOnly: true}); len(open) != 0 {
		t.Errorf("open tickets after close = %d", len(open))
	}
	if _, err := svc.Get(ctx, 999); !apperr.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}
