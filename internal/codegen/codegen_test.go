package codegen_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/codegen"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/testutil"
	"gorm.io/gorm"
)

func TestNextFromLast(t *testing.T) {
	tests := []struct {
		prefix, last string
		width        int
		want         string
	}{
		{"V26", "", 4, "V260001"},
		{"V26", "V260009", 4, "V260010"},
		{"V26", "V269999", 4, "V2610000"},
		{"V", "V00000041", 8, "V00000042"},
		{"2026/03-", "2026/03-007", 3, "2026/03-008"},
		{"202603-", "202603-abc", 4, "202603-0001"},
	}
	for _, tt := range tests {
		if got := codegen.NextFromLast(tt.prefix, tt.last, tt.width); got != tt.want {
			t.Errorf("NextFromLast(%q, %q, %d) = %q, want %q", tt.prefix, tt.last, tt.width, got, tt.want)
		}
	}
}

func TestNextScansCurrentPrefixOnly(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	g := testutil.Codes()

	testutil.SeedBatch(t, db, "V250917", fx.Material.ID, fx.Warehouse.ID, models.QCPass, 0)
	got, err := g.Next(db.DB, codegen.BatchCode)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != "V260001" {
		t.Errorf("first code of the year = %s, want V260001", got)
	}

	testutil.SeedBatch(t, db, "V260041", fx.Material.ID, fx.Warehouse.ID, models.QCPass, 0)
	if got, _ = g.Next(db.DB, codegen.BatchCode); got != "V260042" {
		t.Errorf("next = %s, want V260042", got)
	}

	march := testutil.Clock
	april := codegen.NewGenerator(codegen.WithClock(func() time.Time { return march.AddDate(0, 1, 0) }))
	if got, _ = april.Next(db.DB, codegen.ReceiptNumber); got != "2026/04-001" {
		t.Errorf("receipt number = %s", got)
	}
	if got, _ = april.Next(db.DB, codegen.ExportCode); got != "202604-0001" {
		t.Errorf("export code = %s", got)
	}
	if got, _ = april.Next(db.DB, codegen.PONumber); got != "V00000001" {
		t.Errorf("po number = %s", got)
	}
}

func TestRunRetriesUniqueViolations(t *testing.T) {
	g := codegen.NewGenerator(codegen.WithMaxAttempts(3), codegen.WithLogger(testutil.Logger()))
	ctx := context.Background()

	calls := 0
	err := g.Run(ctx, codegen.BatchCode, func(context.Context) error {
		calls++
		if calls < 2 {
			return gorm.ErrDuplicatedKey
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("err = %v after %d calls", err, calls)
	}

	calls = 0
	err = g.Run(ctx, codegen.BatchCode, func(context.Context) error {
		calls++
		return gorm.ErrDuplicatedKey
	})
	if !apperr.IsConflict(err) || calls != 3 {
		t.Errorf("err = %v after %d calls, want Conflict after 3", err, calls)
	}

	boom := errors.New("boom")
	calls = 0
	err = g.Run(ctx, codegen.BatchCode, func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Errorf("err = %v after %d calls, want boom once", err, calls)
	}
}
