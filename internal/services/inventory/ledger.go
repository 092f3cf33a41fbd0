package inventory

import (
	"errors"
	"fmt"

	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The ledger functions run inside the caller's transaction so that receipts,
// exports and adjustments commit or roll back together with their stock movement.

// Find loads the stock row for key with a row lock, or returns (nil, nil).
func Find(tx *gorm.DB, key models.StockKey) (*models.InventoryStock, error) {
	var stock models.InventoryStock
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("material_id = ? AND warehouse_id = ? AND batch_id = ?", key.MaterialID, key.WarehouseID, key.BatchID).
		First(&stock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load stock %+v: %w", key, err)
	}
	return &stock, nil
}

// Increase adds delta (may be negative) to on-hand, creating the row on first movement.
// No floor is enforced; callers that withdraw must check sufficiency first.
func Increase(tx *gorm.DB, key models.StockKey, delta float64) (*models.InventoryStock, error) {
	stock, err := Find(tx, key)
	if err != nil {
		return nil, err
	}
	if stock == nil {
		stock = &models.InventoryStock{
			MaterialID:     key.MaterialID,
			WarehouseID:    key.WarehouseID,
			BatchID:        key.BatchID,
			QuantityOnHand: utils.Round4(delta),
		}
		if err := tx.Create(stock).Error; err != nil {
			return nil, fmt.Errorf("create stock %+v: %w", key, err)
		}
		stock.AvailableQuantity = stock.Available()
		return stock, nil
	}

	stock.QuantityOnHand = utils.Add4(stock.QuantityOnHand, delta)
	if err := tx.Model(stock).Update("quantity_on_hand", stock.QuantityOnHand).Error; err != nil {
		return nil, fmt.Errorf("update stock %+v: %w", key, err)
	}
	stock.AvailableQuantity = stock.Available()
	return stock, nil
}

// Withdraw decrements on-hand after checking it covers quantity.
func Withdraw(tx *gorm.DB, key models.StockKey, quantity float64) (*models.InventoryStock, error) {
	stock, err := Find(tx, key)
	if err != nil {
		return nil, err
	}
	onHand := 0.0
	if stock != nil {
		onHand = stock.QuantityOnHand
	}
	if onHand < quantity {
		return nil, apperr.InsufficientStock(
			"insufficient stock for material %d batch %d in warehouse %d: on hand %.4f, requested %.4f, short %.4f",
			key.MaterialID, key.BatchID, key.WarehouseID, onHand, quantity, utils.Add4(quantity, -onHand))
	}
	return Increase(tx, key, -quantity)
}

// Set overwrites on-hand with an absolute stocktake value.
// A missing row is created only when newQuantity is positive.
func Set(tx *gorm.DB, key models.StockKey, newQuantity float64) (before, after *models.InventoryStock, err error) {
	stock, err := Find(tx, key)
	if err != nil {
		return nil, nil, err
	}
	if stock == nil {
		if newQuantity <= 0 {
			return nil, nil, apperr.NotFound("no stock row for material %d, warehouse %d, batch %d", key.MaterialID, key.WarehouseID, key.BatchID)
		}
		after, err = Increase(tx, key, newQuantity)
		return nil, after, err
	}

	prev := *stock
	stock.QuantityOnHand = utils.Round4(newQuantity)
	if err := tx.Model(stock).Update("quantity_on_hand", stock.QuantityOnHand).Error; err != nil {
		return nil, nil, fmt.Errorf("adjust stock %+v: %w", key, err)
	}
	stock.AvailableQuantity = stock.Available()
	return &prev, stock, nil
}

// Allocation is the part of a reservation or release taken from one stock row.
type Allocation struct {
	StockID     uint    `json:"stock_id"`
	BatchID     uint    `json:"batch_id"`
	WarehouseID uint    `json:"warehouse_id"`
	Quantity    float64 `json:"quantity"`
}

// Reserve marks quantity as reserved across the material's QC-passed active
// batches, oldest batch id first. A shortfall fails the whole reservation.
func Reserve(tx *gorm.DB, materialID uint, quantity float64) ([]Allocation, error) {
	var stocks []models.InventoryStock
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "inventory_stocks"}}).
		Joins("JOIN batches ON batches.id = inventory_stocks.batch_id").
		Where("inventory_stocks.material_id = ? AND batches.qc_status = ? AND batches.is_active = ?", materialID, models.QCPass, true).
		Order("inventory_stocks.batch_id ASC, inventory_stocks.id ASC").
		Find(&stocks).Error
	if err != nil {
		return nil, fmt.Errorf("load stock for material %d: %w", materialID, err)
	}

	remaining := utils.Round4(quantity)
	var allocs []Allocation
	for i := range stocks {
		if remaining <= 0 {
			break
		}
		s := &stocks[i]
		avail := s.Available()
		if avail <= 0 {
			continue
		}
		take := avail
		if take > remaining {
			take = remaining
		}
		s.QuantityReserved = utils.Add4(s.QuantityReserved, take)
		if err := tx.Model(s).Update("quantity_reserved", s.QuantityReserved).Error; err != nil {
			return nil, fmt.Errorf("reserve stock %d: %w", s.ID, err)
		}
		allocs = append(allocs, Allocation{StockID: s.ID, BatchID: s.BatchID, WarehouseID: s.WarehouseID, Quantity: take})
		remaining = utils.Add4(remaining, -take)
	}

	if remaining > 0 {
		return nil, apperr.InsufficientStock("insufficient available stock for material %d: requested %.4f, short %.4f",
			materialID, quantity, remaining)
	}
	return allocs, nil
}

// Release un-reserves quantity of a material, newest batch first.
func Release(tx *gorm.DB, materialID uint, quantity float64) ([]Allocation, error) {
	var stocks []models.InventoryStock
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("material_id = ? AND quantity_reserved > 0", materialID).
		Order("batch_id DESC, id DESC").
		Find(&stocks).Error
	if err != nil {
		return nil, fmt.Errorf("load reserved stock for material %d: %w", materialID, err)
	}

	remaining := utils.Round4(quantity)
	var allocs []Allocation
	for i := range stocks {
		if remaining <= 0 {
			break
		}
		s := &stocks[i]
		take := s.QuantityReserved
		if take > remaining {
			take = remaining
		}
		s.QuantityReserved = utils.Add4(s.QuantityReserved, -take)
		if err := tx.Model(s).Update("quantity_reserved", s.QuantityReserved).Error; err != nil {
			return nil, fmt.Errorf("release stock %d: %w", s.ID, err)
		}
		allocs = append(allocs, Allocation{StockID: s.ID, BatchID: s.BatchID, WarehouseID: s.WarehouseID, Quantity: take})
		remaining = utils.Add4(remaining, -take)
	}

	if remaining > 0 {
		return nil, apperr.Validation("cannot release %.4f of material %d: only %.4f reserved",
			quantity, materialID, utils.Add4(quantity, -remaining))
	}
	return allocs, nil
}

// DeleteByBatch removes every stock row of a batch.
func DeleteByBatch(tx *gorm.DB, batchID uint) error {
	if err := tx.Where("batch_id = ?", batchID).Delete(&models.InventoryStock{}).Error; err != nil {
		return fmt.Errorf("delete stock of batch %d: %w", batchID, err)
	}
	return nil
}
