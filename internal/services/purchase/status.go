package purchase

import (
	"fmt"

	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/utils"
	"gorm.io/gorm"
)

// DeriveStatus applies the closure rule to a PO's lines:
// every line received (within 0.01) -> Completed, anything received -> Partial,
// nothing received -> Draft stays Draft, later states fall back to Confirmed.
// Cancelled orders and orders without lines keep their status.
func DeriveStatus(current models.POStatus, lines []models.PurchaseOrderDetail) models.POStatus {
	if current == models.POStatusCancelled || len(lines) == 0 {
		return current
	}

	allReceived := true
	anyReceived := false
	for _, l := range lines {
		if !utils.AtLeast(l.ReceivedQuantity, l.Quantity) {
			allReceived = false
		}
		if utils.Positive(l.ReceivedQuantity) {
			anyReceived = true
		}
	}

	switch {
	case allReceived:
		return models.POStatusCompleted
	case anyReceived:
		return models.POStatusPartial
	case current == models.POStatusDraft:
		return models.POStatusDraft
	default:
		return models.POStatusConfirmed
	}
}

// ApplyReceipt adds delta to the received quantity of the first line of poID
// carrying materialID. Lines for other materials are untouched; a PO without a
// matching line is left as is.
func ApplyReceipt(tx *gorm.DB, poID, materialID uint, delta float64) error {
	if delta == 0 {
		return nil
	}
	var line models.PurchaseOrderDetail
	err := tx.Where("po_id = ? AND material_id = ?", poID, materialID).Order("id ASC").Limit(1).Find(&line).Error
	if err != nil {
		return fmt.Errorf("find PO %d line for material %d: %w", poID, materialID, err)
	}
	if line.ID == 0 {
		return nil
	}
	received := utils.Add4(line.ReceivedQuantity, delta)
	if err := tx.Model(&line).Update("received_quantity", received).Error; err != nil {
		return fmt.Errorf("update received quantity of PO line %d: %w", line.ID, err)
	}
	return nil
}

// Recompute re-derives and stores the status of poID.
func Recompute(tx *gorm.DB, poID uint) (models.POStatus, error) {
	po, err := database.FirstForUpdate[models.PurchaseOrder](tx, poID, "purchase order")
	if err != nil {
		return "", err
	}
	var lines []models.PurchaseOrderDetail
	if err := tx.Where("po_id = ?", poID).Order("id").Find(&lines).Error; err != nil {
		return "", fmt.Errorf("load PO %d lines: %w", poID, err)
	}
	next := DeriveStatus(po.Status, lines)
	if next != po.Status {
		if err := tx.Model(po).Update("status", next).Error; err != nil {
			return "", fmt.Errorf("update PO %d status: %w", poID, err)
		}
	}
	return next, nil
}
