// Package testutil opens throwaway databases for service tests.
package testutil

import (
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/loomtrace/internal/codegen"
	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// Logger returns a logger that discards everything.
func Logger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// NewDB opens a private in-memory SQLite database with every model migrated.
// One connection is used so the in-memory schema is shared by all queries.
func NewDB(t *testing.T) *database.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:loomtrace_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), database.GormConfig("silent", nil))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	db := database.Wrap(gdb)
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Clock is a fixed time for code generation in tests: 2026-03-15.
var Clock = time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)

// Codes returns a generator pinned to Clock.
func Codes() *codegen.Generator {
	return codegen.NewGenerator(codegen.WithClock(func() time.Time { return Clock }), codegen.WithLogger(Logger()))
}

// Fixture holds the reference rows seeded by Seed.
type Fixture struct {
	Supplier  models.Supplier
	Warehouse models.Warehouse
	Material  models.Material
	Material2 models.Material
	Machine   models.Machine
	Product   models.Product
	Basket    models.Basket
}

// Seed inserts one row of each reference table plus a second material.
func Seed(t *testing.T, db *database.DB) *Fixture {
	t.Helper()
	f := &Fixture{
		Supplier:  models.Supplier{Code: "SUP-1", Name: "Yarn Supplier", IsActive: true},
		Warehouse: models.Warehouse{Code: "WH-1", Name: "Main Store", IsActive: true},
		Material:  models.Material{Code: "PP-1000", Name: "PP yarn 1000D", YarnType: "PP", Denier: 1000, Dtex: 1111, MinStock: 50, IsActive: true},
		Material2: models.Material{Code: "PE-500", Name: "PE yarn 500D", YarnType: "PE", Denier: 500, Dtex: 555, IsActive: true},
		Machine:   models.Machine{Code: "LOOM-01", Name: "Loom 1", LineNo: "L1", IsActive: true},
		Product:   models.Product{Code: "BAG-55", Name: "Woven bag 55cm"},
		Basket:    models.Basket{Code: "BSK-01", Status: models.BasketReady, TareKg: 1.5},
	}
	for _, row := range []any{&f.Supplier, &f.Warehouse, &f.Material, &f.Material2, &f.Machine, &f.Product, &f.Basket} {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed %T: %v", row, err)
		}
	}
	return f
}

// SeedBatch inserts a manual batch with one stock row of onHand in warehouseID.
func SeedBatch(t *testing.T, db *database.DB, code string, materialID, warehouseID uint, qc models.QCStatus, onHand float64) models.Batch {
	t.Helper()
	b := models.Batch{InternalBatchCode: code, MaterialID: materialID, QCStatus: qc, IsActive: true}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("seed batch %s: %v", code, err)
	}
	if onHand != 0 {
		s := models.InventoryStock{MaterialID: materialID, WarehouseID: warehouseID, BatchID: b.ID, QuantityOnHand: onHand}
		if err := db.Create(&s).Error; err != nil {
			t.Fatalf("seed stock of %s: %v", code, err)
		}
	}
	return b
}

// OnHand returns the on-hand quantity of one stock row, or 0 when it does not exist.
func OnHand(t *testing.T, db *database.DB, materialID, warehouseID, batchID uint) float64 {
	t.Helper()
	var s models.InventoryStock
	err := db.Where("material_id = ? AND warehouse_id = ? AND batch_id = ?", materialID, warehouseID, batchID).
		Limit(1).Find(&s).Error
	if err != nil {
		t.Fatalf("load stock: %v", err)
	}
	return s.QuantityOnHand
}
