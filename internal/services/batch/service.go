// Package batch owns the lot ledger: code allocation, QC state and traceability.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/codegen"
	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/services/printer"
	"github.com/xelth-com/loomtrace/internal/utils"
	"gorm.io/gorm"
)

// Service handles batch operations
type Service struct {
	db     *database.DB
	codes  *codegen.Generator
	audit  audit.Writer
	labels printer.LabelOptions
	log    logrus.FieldLogger
}

// NewService creates a new batch service
func NewService(db *database.DB, codes *codegen.Generator, aw audit.Writer, labels printer.LabelOptions, log logrus.FieldLogger) *Service {
	return &Service{db: db, codes: codes, audit: aw, labels: labels, log: log.WithField("module", "batch")}
}

// CreateInput is a manually registered batch (stock adjustment, legacy lot).
type CreateInput struct {
	MaterialID      uint       `json:"material_id" validate:"required"`
	SupplierBatchNo string     `json:"supplier_batch_no" validate:"max=100"`
	ManufactureDate *time.Time `json:"manufacture_date"`
	ExpiryDate      *time.Time `json:"expiry_date"`
	OriginCountry   string     `json:"origin_country" validate:"max=100"`
	Location        string     `json:"location" validate:"max=100"`
}

// Create allocates a new code and stores a Pending batch.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Batch, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	var b *models.Batch
	err := s.codes.Run(ctx, codegen.BatchCode, func(ctx context.Context) error {
		return s.db.Tx(ctx, func(tx *gorm.DB) error {
			if err := database.Exists[models.Material](tx, in.MaterialID, "material"); err != nil {
				return err
			}
			code, err := s.codes.Next(tx, codegen.BatchCode)
			if err != nil {
				return err
			}
			b = &models.Batch{
				InternalBatchCode: code,
				SupplierBatchNo:   in.SupplierBatchNo,
				MaterialID:        in.MaterialID,
				ManufactureDate:   in.ManufactureDate,
				ExpiryDate:        in.ExpiryDate,
				OriginCountry:     in.OriginCountry,
				Location:          in.Location,
				QCStatus:          models.QCPending,
				IsActive:          true,
			}
			if err := tx.Create(b).Error; err != nil {
				return fmt.Errorf("create batch: %w", err)
			}
			return s.audit.Record(ctx, tx, audit.Entry{Entity: "batch", EntityID: b.ID, Action: audit.ActionCreate, After: b})
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"batch_id": b.ID, "code": b.InternalBatchCode}).Info("batch created")
	return b, nil
}

// Get loads a batch and resolves its receipt number through the receipt line.
func (s *Service) Get(ctx context.Context, id uint) (*models.Batch, error) {
	db := s.db.WithContext(ctx)
	b, err := database.First[models.Batch](db, id, "batch")
	if err != nil {
		return nil, err
	}
	if err := fillReceiptNumbers(db, []*models.Batch{b}); err != nil {
		return nil, err
	}
	return b, nil
}

func fillReceiptNumbers(db *gorm.DB, batches []*models.Batch) error {
	ids := make([]uint, 0, len(batches))
	for _, b := range batches {
		if b.ReceiptDetailID != nil {
			ids = append(ids, *b.ReceiptDetailID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	var rows []struct {
		DetailID      uint
		ReceiptNumber string
	}
	err := db.Table("material_receipt_details").
		Select("material_receipt_details.id AS detail_id, material_receipts.receipt_number").
		Joins("JOIN material_receipts ON material_receipts.id = material_receipt_details.receipt_id").
		Where("material_receipt_details.id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("resolve receipt numbers: %w", err)
	}
	byDetail := make(map[uint]string, len(rows))
	for _, r := range rows {
		byDetail[r.DetailID] = r.ReceiptNumber
	}
	for _, b := range batches {
		if b.ReceiptDetailID != nil {
			b.ReceiptNumber = byDetail[*b.ReceiptDetailID]
		}
	}
	return nil
}

// ListFilter narrows List. Nil/zero fields match everything.
type ListFilter struct {
	MaterialID uint
	QCStatus   models.QCStatus
	Active     *bool
}

// List returns batches newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.Batch, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&models.Batch{})
	if f.MaterialID != 0 {
		q = q.Where("material_id = ?", f.MaterialID)
	}
	if f.QCStatus != "" {
		q = q.Where("qc_status = ?", f.QCStatus)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}
	var out []models.Batch
	if err := q.Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	ptrs := make([]*models.Batch, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	if err := fillReceiptNumbers(db, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateInput lists the fields a client may change on a batch.
// QCStatus is refused once an IQC result exists for the batch.
type UpdateInput struct {
	SupplierBatchNo *string          `json:"supplier_batch_no" validate:"omitempty,max=100"`
	ManufactureDate *time.Time       `json:"manufacture_date"`
	ExpiryDate      *time.Time       `json:"expiry_date"`
	OriginCountry   *string          `json:"origin_country" validate:"omitempty,max=100"`
	Location        *string          `json:"location" validate:"omitempty,max=100"`
	QCStatus        *models.QCStatus `json:"qc_status" validate:"omitempty,oneof=Pending Pass Fail Expired"`
	QCNote          *string          `json:"qc_note" validate:"omitempty,max=500"`
	IsActive        *bool            `json:"is_active"`
}

// Update patches the listed fields.
func (s *Service) Update(ctx context.Context, id uint, in UpdateInput) (*models.Batch, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	var out *models.Batch
	err := s.db.Tx(ctx, func(tx *gorm.DB) error {
		b, err := database.FirstForUpdate[models.Batch](tx, id, "batch")
		if err != nil {
			return err
		}
		before := *b
		updates := map[string]any{}
		if in.SupplierBatchNo != nil {
			updates["supplier_batch_no"] = *in.SupplierBatchNo
		}
		if in.ManufactureDate != nil {
			updates["manufacture_date"] = *in.ManufactureDate
		}
		if in.ExpiryDate != nil {
			updates["expiry_date"] = *in.ExpiryDate
		}
		if in.OriginCountry != nil {
			updates["origin_country"] = *in.OriginCountry
		}
		if in.Location != nil {
			updates["location"] = *in.Location
		}
		if in.QCNote != nil {
			updates["qc_note"] = *in.QCNote
		}
		if in.IsActive != nil {
			updates["is_active"] = *in.IsActive
		}
		if in.QCStatus != nil {
			var tests int64
			if err := tx.Model(&models.IQCResult{}).Where("batch_id = ?", id).Count(&tests).Error; err != nil {
				return fmt.Errorf("count IQC results of batch %d: %w", id, err)
			}
			if tests > 0 {
				return apperr.Conflict("batch %s has IQC results; its QC status follows the latest test", b.InternalBatchCode)
			}
			updates["qc_status"] = *in.QCStatus
		}
		if len(updates) > 0 {
			if err := tx.Model(b).Updates(updates).Error; err != nil {
				return fmt.Errorf("update batch %d: %w", id, err)
			}
		}
		if out, err = database.First[models.Batch](tx, id, "batch"); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "batch", EntityID: id, Action: audit.ActionUpdate, Before: before, After: out})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Deactivate retires a batch without deleting its history.
func (s *Service) Deactivate(ctx context.Context, id uint) (*models.Batch, error) {
	inactive := false
	return s.Update(ctx, id, UpdateInput{IsActive: &inactive})
}

// Delete hard-deletes a manual batch that never moved stock.
// QC-passed batches, receipt batches and batches with stock history must be deactivated instead.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.db.Tx(ctx, func(tx *gorm.DB) error {
		b, err := database.FirstForUpdate[models.Batch](tx, id, "batch")
		if err != nil {
			return err
		}
		if b.QCStatus == models.QCPass {
			return apperr.Conflict("batch %s passed QC and cannot be deleted; deactivate it instead", b.InternalBatchCode)
		}
		if b.ReceiptDetailID != nil {
			return apperr.Conflict("batch %s belongs to a receipt line; delete the receipt line instead", b.InternalBatchCode)
		}
		var moved int64
		if err := tx.Model(&models.InventoryStock{}).Where("batch_id = ? AND (quantity_on_hand <> 0 OR quantity_reserved <> 0)", id).Count(&moved).Error; err != nil {
			return fmt.Errorf("count stock of batch %d: %w", id, err)
		}
		if moved == 0 {
			if err := tx.Model(&models.MaterialExportDetail{}).Where("batch_id = ?", id).Count(&moved).Error; err != nil {
				return fmt.Errorf("count exports of batch %d: %w", id, err)
			}
		}
		if moved > 0 {
			return apperr.Conflict("batch %s has stock movements; deactivate it instead", b.InternalBatchCode)
		}
		if err := Purge(tx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "batch", EntityID: id, Action: audit.ActionDelete, Before: b})
	})
}

// NextCode previews the next batch code. Another writer may take it first.
func (s *Service) NextCode(ctx context.Context) (string, error) {
	return s.codes.Next(s.db.WithContext(ctx), codegen.BatchCode)
}

// Labels renders an A4 sheet of QR labels for the given batches.
func (s *Service) Labels(ctx context.Context, ids []uint) ([]byte, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, apperr.Validation("no batch ids given")
	}
	db := s.db.WithContext(ctx)
	var batches []models.Batch
	if err := db.Where("id IN ?", ids).Order("id").Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}
	if len(batches) != len(ids) {
		return nil, apperr.NotFound("%d of %d batches not found", len(ids)-len(batches), len(ids))
	}

	materialIDs := make([]uint, 0, len(batches))
	for _, b := range batches {
		materialIDs = append(materialIDs, b.MaterialID)
	}
	var materials []models.Material
	if err := db.Where("id IN ?", materialIDs).Find(&materials).Error; err != nil {
		return nil, fmt.Errorf("load materials: %w", err)
	}
	codes := make(map[uint]string, len(materials))
	for _, m := range materials {
		codes[m.ID] = m.Code
	}

	labels := make([]printer.BatchLabel, 0, len(batches))
	for _, b := range batches {
		labels = append(labels, printer.BatchLabel{
			InternalCode:    b.InternalBatchCode,
			SupplierBatchNo: b.SupplierBatchNo,
			MaterialCode:    codes[b.MaterialID],
			QCStatus:        string(b.QCStatus),
		})
	}
	return printer.BatchLabelsPDF(labels, s.labels)
}

// uniqueIDs drops zero and repeated ids, keeping first-seen order.
func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
