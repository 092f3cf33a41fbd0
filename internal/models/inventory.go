package models

import (
	"time"

	"github.com/xelth-com/loomtrace/internal/utils"
	"gorm.io/gorm"
)

// StockKey identifies one stock row.
type StockKey struct {
	MaterialID  uint `json:"material_id" validate:"required"`
	WarehouseID uint `json:"warehouse_id" validate:"required"`
	BatchID     uint `json:"batch_id" validate:"required"`
}

// InventoryStock holds on-hand and reserved quantity for one (material, warehouse, batch).
type InventoryStock struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	MaterialID       uint      `gorm:"not null;uniqueIndex:idx_stock_triple,priority:1" json:"material_id"`
	WarehouseID      uint      `gorm:"not null;uniqueIndex:idx_stock_triple,priority:2" json:"warehouse_id"`
	BatchID          uint      `gorm:"not null;uniqueIndex:idx_stock_triple,priority:3;index" json:"batch_id"`
	QuantityOnHand   float64   `gorm:"not null;default:0" json:"quantity_on_hand"`
	QuantityReserved float64   `gorm:"not null;default:0" json:"quantity_reserved"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	AvailableQuantity float64 `gorm:"-" json:"available_quantity"`
}

func (InventoryStock) TableName() string { return "inventory_stocks" }

// Key returns the identifying triple.
func (s *InventoryStock) Key() StockKey {
	return StockKey{MaterialID: s.MaterialID, WarehouseID: s.WarehouseID, BatchID: s.BatchID}
}

// Available is on-hand minus reserved.
func (s *InventoryStock) Available() float64 {
	return utils.Add4(s.QuantityOnHand, -s.QuantityReserved)
}

// AfterFind fills the display-only available quantity
func (s *InventoryStock) AfterFind(tx *gorm.DB) error {
	s.AvailableQuantity = s.Available()
	return nil
}
