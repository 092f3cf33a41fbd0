package inventory

import (
	"context"
	"fmt"

	"github.com/xelth-com/loomtrace/internal/reports"
	"github.com/xelth-com/loomtrace/internal/utils"
)

// ReportRow is one stock row with its codes resolved.
type ReportRow struct {
	MaterialCode      string
	MaterialName      string
	WarehouseCode     string
	BatchCode         string
	QCStatus          string
	QuantityOnHand    float64
	QuantityReserved  float64
	AvailableQuantity float64
}

// Report lists every stock row joined with material, warehouse and batch.
func (s *Service) Report(ctx context.Context) ([]ReportRow, error) {
	var rows []ReportRow
	err := s.db.WithContext(ctx).Table("inventory_stocks AS s").
		Select(`m.code AS material_code, m.name AS material_name, w.code AS warehouse_code,
			b.internal_batch_code AS batch_code, b.qc_status AS qc_status,
			s.quantity_on_hand, s.quantity_reserved`).
		Joins("JOIN materials m ON m.id = s.material_id").
		Joins("JOIN warehouses w ON w.id = s.warehouse_id").
		Joins("JOIN batches b ON b.id = s.batch_id").
		Order("m.code, w.code, b.internal_batch_code").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("stock report: %w", err)
	}
	for i := range rows {
		rows[i].AvailableQuantity = utils.Add4(rows[i].QuantityOnHand, -rows[i].QuantityReserved)
	}
	return rows, nil
}

// ReportXLSX renders Report as a single-sheet workbook.
func (s *Service) ReportXLSX(ctx context.Context) ([]byte, error) {
	rows, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	sheet := reports.Sheet{
		Name:     "Stock",
		Headings: []string{"Material", "Name", "Warehouse", "Batch", "QC", "On hand", "Reserved", "Available"},
		Rows:     make([][]any, 0, len(rows)),
	}
	for _, r := range rows {
		sheet.Rows = append(sheet.Rows, []any{
			r.MaterialCode, r.MaterialName, r.WarehouseCode, r.BatchCode, r.QCStatus,
			r.QuantityOnHand, r.QuantityReserved, r.AvailableQuantity,
		})
	}
	return reports.Workbook(sheet)
}
