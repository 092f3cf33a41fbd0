// show_data prints the stock position and low-stock list, or writes the
// stock workbook when given -xlsx.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/config"
	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/services/inventory"
)

func main() {
	xlsxPath := flag.String("xlsx", "", "write the stock report workbook to this path")
	flag.Parse()

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

	ctx := context.Background()
	inv := inventory.NewService(db, audit.Nop{}, lg)

	if *xlsxPath != "" {
		data, err := inv.ReportXLSX(ctx)
		if err != nil {
			lg.Fatalf("render report: %v", err)
		}
		if err := os.WriteFile(*xlsxPath, data, 0o644); err != nil {
			lg.Fatalf("write %s: %v", *xlsxPath, err)
		}
		lg.Infof("stock report written to %s", *xlsxPath)
		return
	}

	rows, err := inv.Report(ctx)
	if err != nil {
		lg.Fatalf("stock report: %v", err)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MATERIAL\tWAREHOUSE\tBATCH\tQC\tON HAND\tRESERVED\tAVAILABLE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.4f\t%.4f\t%.4f\n",
			r.MaterialCode, r.WarehouseCode, r.BatchCode, r.QCStatus,
			r.QuantityOnHand, r.QuantityReserved, r.AvailableQuantity)
	}
	tw.Flush()

	low, err := inv.LowStock(ctx)
	if err != nil {
		lg.Fatalf("low stock: %v", err)
	}
	if len(low) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Below minimum stock:")
	for _, item := range low {
		fmt.Printf("  %-14s %10.4f / %10.4f  short %.4f\n", item.Code, item.AvailableQuantity, item.MinStock, item.Shortage)
	}
}
