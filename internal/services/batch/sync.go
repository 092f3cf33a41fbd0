package batch

import (
	"fmt"

	"github.com/xelth-com/loomtrace/internal/codegen"
	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/services/inventory"
	"gorm.io/gorm"
)

// SyncFromReceiptDetail finds or creates the one batch seeded by a receipt line.
// On an existing batch only non-empty fields of the line are copied forward.
func SyncFromReceiptDetail(tx *gorm.DB, codes *codegen.Generator, d *models.MaterialReceiptDetail) (*models.Batch, error) {
	var b models.Batch
	err := tx.Where("receipt_detail_id = ?", d.ID).Limit(1).Find(&b).Error
	if err != nil {
		return nil, fmt.Errorf("find batch of receipt line %d: %w", d.ID, err)
	}

	if b.ID == 0 {
		code, err := codes.Next(tx, codegen.BatchCode)
		if err != nil {
			return nil, err
		}
		detailID := d.ID
		b = models.Batch{
			InternalBatchCode: code,
			SupplierBatchNo:   d.SupplierBatchNo,
			MaterialID:        d.MaterialID,
			OriginCountry:     d.OriginCountry,
			Location:          d.Location,
			QCStatus:          models.QCPending,
			ReceiptDetailID:   &detailID,
			IsActive:          true,
		}
		if err := tx.Create(&b).Error; err != nil {
			return nil, fmt.Errorf("create batch for receipt line %d: %w", d.ID, err)
		}
		return &b, nil
	}

	updates := map[string]any{}
	if d.SupplierBatchNo != "" && d.SupplierBatchNo != b.SupplierBatchNo {
		updates["supplier_batch_no"] = d.SupplierBatchNo
	}
	if d.MaterialID != 0 && d.MaterialID != b.MaterialID {
		updates["material_id"] = d.MaterialID
	}
	if d.OriginCountry != "" && d.OriginCountry != b.OriginCountry {
		updates["origin_country"] = d.OriginCountry
	}
	if d.Location != "" && d.Location != b.Location {
		updates["location"] = d.Location
	}
	if len(updates) > 0 {
		if err := tx.Model(&b).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("patch batch %d: %w", b.ID, err)
		}
	}
	return &b, nil
}

// ForReceiptDetail returns the batch seeded by a receipt line, or nil.
func ForReceiptDetail(tx *gorm.DB, detailID uint) (*models.Batch, error) {
	var b models.Batch
	if err := tx.Where("receipt_detail_id = ?", detailID).Limit(1).Find(&b).Error; err != nil {
		return nil, fmt.Errorf("find batch of receipt line %d: %w", detailID, err)
	}
	if b.ID == 0 {
		return nil, nil
	}
	return &b, nil
}

// Purge deletes a batch together with its stock rows and test records.
// It does not check downstream consumption.
func Purge(tx *gorm.DB, batchID uint) error {
	if err := inventory.DeleteByBatch(tx, batchID); err != nil {
		return err
	}
	if err := tx.Where("batch_id = ?", batchID).Delete(&models.IQCResult{}).Error; err != nil {
		return fmt.Errorf("delete IQC results of batch %d: %w", batchID, err)
	}
	if err := tx.Delete(&models.Batch{}, batchID).Error; err != nil {
		return fmt.Errorf("delete batch %d: %w", batchID, err)
	}
	return nil
}

// SetQC overwrites the batch QC status and note. Last write wins.
func SetQC(tx *gorm.DB, batchID uint, status models.QCStatus, note string) (*models.Batch, error) {
	b, err := database.FirstForUpdate[models.Batch](tx, batchID, "batch")
	if err != nil {
		return nil, err
	}
	if err := tx.Model(b).Updates(map[string]any{"qc_status": status, "qc_note": note}).Error; err != nil {
		return nil, fmt.Errorf("update QC status of batch %d: %w", batchID, err)
	}
	b.QCStatus = status
	b.QCNote = note
	return b, nil
}
