package batch

import (
	"context"
	"fmt"

	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/models"
	"gorm.io/gorm"
)

// Trace is the full upstream and downstream chain of one batch.
type Trace struct {
	Batch             models.Batch                  `json:"batch"`
	Material          *models.Material              `json:"material,omitempty"`
	ReceiptDetail     *models.MaterialReceiptDetail `json:"receipt_detail,omitempty"`
	Receipt           *models.MaterialReceipt       `json:"receipt,omitempty"`
	PurchaseOrder     *models.PurchaseOrder         `json:"purchase_order,omitempty"`
	ImportDeclaration *models.ImportDeclaration     `json:"import_declaration,omitempty"`
	IQCResults        []models.IQCResult            `json:"iqc_results"`
	Stock             []models.InventoryStock       `json:"stock"`
	ExportLines       []models.MaterialExportDetail `json:"export_lines"`
	TicketYarns       []models.WeavingTicketYarn    `json:"ticket_yarns"`
}

// Trace walks PO -> declaration -> receipt -> batch -> stock -> export -> weaving ticket.
func (s *Service) Trace(ctx context.Context, id uint) (*Trace, error) {
	db := s.db.WithContext(ctx)
	b, err := database.First[models.Batch](db, id, "batch")
	if err != nil {
		return nil, err
	}
	t := &Trace{Batch: *b}

	if t.Material, err = optional[models.Material](db, b.MaterialID); err != nil {
		return nil, err
	}
	if b.ReceiptDetailID != nil {
		if t.ReceiptDetail, err = optional[models.MaterialReceiptDetail](db, *b.ReceiptDetailID); err != nil {
			return nil, err
		}
	}
	if t.ReceiptDetail != nil {
		if t.Receipt, err = optional[models.MaterialReceipt](db, t.ReceiptDetail.ReceiptID); err != nil {
			return nil, err
		}
	}
	if t.Receipt != nil {
		t.Batch.ReceiptNumber = t.Receipt.ReceiptNumber
		if t.Receipt.POID != nil {
			if t.PurchaseOrder, err = optional[models.PurchaseOrder](db, *t.Receipt.POID); err != nil {
				return nil, err
			}
		}
		if t.Receipt.ImportDeclarationID != nil {
			if t.ImportDeclaration, err = optional[models.ImportDeclaration](db, *t.Receipt.ImportDeclarationID); err != nil {
				return nil, err
			}
		}
	}

	if err := db.Where("batch_id = ?", id).Order("test_date, id").Find(&t.IQCResults).Error; err != nil {
		return nil, fmt.Errorf("load IQC results: %w", err)
	}
	if err := db.Where("batch_id = ?", id).Order("warehouse_id").Find(&t.Stock).Error; err != nil {
		return nil, fmt.Errorf("load stock: %w", err)
	}
	if err := db.Where("batch_id = ?", id).Order("id").Find(&t.ExportLines).Error; err != nil {
		return nil, fmt.Errorf("load export lines: %w", err)
	}
	if err := db.Where("batch_id = ?", id).Order("id").Find(&t.TicketYarns).Error; err != nil {
		return nil, fmt.Errorf("load ticket yarns: %w", err)
	}
	return t, nil
}

// optional loads a row by id, returning nil when it has been deleted.
func optional[T any](db *gorm.DB, id uint) (*T, error) {
	var row T
	res := db.Limit(1).Find(&row, id)
	if res.Error != nil {
		return nil, fmt.Errorf("load %T %d: %w", row, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}
