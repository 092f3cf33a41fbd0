package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/codegen"
	"github.com/xelth-com/loomtrace/internal/config"
	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/services/purchase"
	"github.com/xelth-com/loomtrace/internal/services/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}
	lg := config.NewLogger(cfg.Log)

	db, err := database.Connect(cfg.Database, lg)
	if err != nil {
		lg.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.AutoMigrate(models.All()...); err != nil {
		lg.Fatalf("schema migration failed: %v", err)
	}

	var count int64
	db.Model(&models.Material{}).Count(&count)
	if count > 0 {
		lg.Warnf("database already has %d materials, nothing seeded", count)
		return
	}

	ctx := audit.WithActor(context.Background(), "seed_demo")
	aw := audit.NewGormWriter()
	reg := registry.New(db, aw, nil, lg)

	kg := models.Unit{Code: "KG", Name: "Kilogram"}
	must(lg, "unit", reg.Units.Create(ctx, &kg))
	roll := models.Unit{Code: "ROLL", Name: "Roll"}
	must(lg, "unit", reg.Units.Create(ctx, &roll))

	supplier := models.Supplier{Code: "SUP-TW", Name: "Formosa Yarn Co.", Country: "Taiwan", IsActive: true}
	must(lg, "supplier", reg.Suppliers.Create(ctx, &supplier))

	warehouses := []models.Warehouse{
		{Code: "WH-RAW", Name: "Raw yarn store", Location: "Building A", IsActive: true},
		{Code: "WH-LINE", Name: "Line-side store", Location: "Weaving hall", IsActive: true},
	}
	for i := range warehouses {
		must(lg, "warehouse", reg.Warehouses.Create(ctx, &warehouses[i]))
	}

	materials := []models.Material{
		{Code: "PP-1000-W", Name: "PP yarn 1000D white", YarnType: "PP", Denier: 1000, Dtex: 1111, Color: "white", MinStock: 500},
		{Code: "PP-850-W", Name: "PP yarn 850D white", YarnType: "PP", Denier: 850, Dtex: 944, Color: "white", MinStock: 300},
		{Code: "PE-500-B", Name: "PE yarn 500D blue", YarnType: "PE", Denier: 500, Dtex: 555, Color: "blue", MinStock: 100},
	}
	for i := range materials {
		materials[i].PurchaseUnitID = &kg.ID
		materials[i].ProductionUnitID = &roll.ID
		materials[i].IsActive = true
		must(lg, "material", reg.Materials.Create(ctx, &materials[i]))
	}

	for i, code := range []string{"LOOM-01", "LOOM-02", "LOOM-03", "LOOM-04"} {
		line := "L1"
		if i >= 2 {
			line = "L2"
		}
		m := models.Machine{Code: code, Name: "Circular loom " + code[len(code)-2:], LineNo: line, IsActive: true}
		must(lg, "machine", reg.Machines.Create(ctx, &m))
	}
	for _, code := range []string{"BSK-01", "BSK-02", "BSK-03"} {
		b := models.Basket{Code: code, Status: models.BasketReady, TareKg: 1.5}
		must(lg, "basket", reg.Baskets.Create(ctx, &b))
	}
	bag := models.Product{Code: "BAG-55x95", Name: "Woven bag 55x95cm"}
	must(lg, "product", reg.Products.Create(ctx, &bag))

	gen := codegen.NewGenerator(codegen.WithLogger(lg.WithField("module", "codegen")))
	po, err := purchase.NewService(db, gen, aw, lg).Create(ctx, purchase.CreateInput{
		SupplierID: supplier.ID,
		OrderDate:  time.Now().UTC(),
		Incoterm:   "CIF",
		Currency:   "USD",
		Details: []purchase.DetailInput{
			{MaterialID: materials[0].ID, Quantity: 2000, UnitPrice: 1.45},
			{MaterialID: materials[2].ID, Quantity: 400, UnitPrice: 1.80},
		},
	})
	must(lg, "purchase order", err)

	lg.WithFields(logrus.Fields{
		"warehouses": len(warehouses),
		"materials":  len(materials),
		"po_number":  po.PONumber,
	}).Info("demo data seeded")
}

func must(lg logrus.FieldLogger, what string, err error) {
	if err != nil {
		lg.Fatalf("seed %s: %v", what, err)
	}
}
