// Package inventory is the stock ledger: one row per (material, warehouse, batch).
package inventory

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/utils"
	"gorm.io/gorm"
)

// Service exposes the ledger to the HTTP layer
type Service struct {
	db    *database.DB
	audit audit.Writer
	log   logrus.FieldLogger
}

// NewService creates a new inventory service
func NewService(db *database.DB, aw audit.Writer, log logrus.FieldLogger) *Service {
	return &Service{db: db, audit: aw, log: log.WithField("module", "inventory")}
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	MaterialID  uint
	WarehouseID uint
	BatchID     uint
}

// List returns stock rows matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]models.InventoryStock, error) {
	q := s.db.WithContext(ctx).Model(&models.InventoryStock{})
	if f.MaterialID != 0 {
		q = q.Where("material_id = ?", f.MaterialID)
	}
	if f.WarehouseID != 0 {
		q = q.Where("warehouse_id = ?", f.WarehouseID)
	}
	if f.BatchID != 0 {
		q = q.Where("batch_id = ?", f.BatchID)
	}
	var rows []models.InventoryStock
	if err := q.Order("material_id, warehouse_id, batch_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	return rows, nil
}

// ByBatch returns every stock row of one batch.
func (s *Service) ByBatch(ctx context.Context, batchID uint) ([]models.InventoryStock, error) {
	if err := database.Exists[models.Batch](s.db.WithContext(ctx), batchID, "batch"); err != nil {
		return nil, err
	}
	return s.List(ctx, Filter{BatchID: batchID})
}

// MaterialTotal aggregates a material over all warehouses and batches.
type MaterialTotal struct {
	MaterialID        uint    `json:"material_id"`
	QuantityOnHand    float64 `json:"quantity_on_hand"`
	QuantityReserved  float64 `json:"quantity_reserved"`
	AvailableQuantity float64 `json:"available_quantity"`
}

// TotalByMaterial sums on-hand and reserved. Available is floored at zero on the aggregate only.
func (s *Service) TotalByMaterial(ctx context.Context, materialID uint) (*MaterialTotal, error) {
	if err := database.Exists[models.Material](s.db.WithContext(ctx), materialID, "material"); err != nil {
		return nil, err
	}
	return totalByMaterial(s.db.WithContext(ctx), materialID)
}

func totalByMaterial(db *gorm.DB, materialID uint) (*MaterialTotal, error) {
	var agg struct {
		OnHand   float64
		Reserved float64
	}
	err := db.Model(&models.InventoryStock{}).
		Select("COALESCE(SUM(quantity_on_hand), 0) AS on_hand, COALESCE(SUM(quantity_reserved), 0) AS reserved").
		Where("material_id = ?", materialID).
		Scan(&agg).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate stock of material %d: %w", materialID, err)
	}
	total := &MaterialTotal{
		MaterialID:       materialID,
		QuantityOnHand:   utils.Round4(agg.OnHand),
		QuantityReserved: utils.Round4(agg.Reserved),
	}
	total.AvailableQuantity = utils.Add4(total.QuantityOnHand, -total.QuantityReserved)
	if total.AvailableQuantity < 0 {
		total.AvailableQuantity = 0
	}
	return total, nil
}

// AdjustInput is a stocktake correction.
type AdjustInput struct {
	models.StockKey
	NewQuantity float64 `json:"new_quantity" validate:"gte=0"`
	Reason      string  `json:"reason"`
}

// Adjust sets on-hand to an absolute value.
func (s *Service) Adjust(ctx context.Context, in AdjustInput) (*models.InventoryStock, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	var result *models.InventoryStock
	err := s.db.Tx(ctx, func(tx *gorm.DB) error {
		if err := requireKey(tx, in.StockKey); err != nil {
			return err
		}
		before, after, err := Set(tx, in.StockKey, in.NewQuantity)
		if err != nil {
			return err
		}
		result = after
		action := audit.ActionUpdate
		if before == nil {
			action = audit.ActionCreate
		}
		return s.audit.Record(ctx, tx, audit.Entry{
			Entity: "inventory_stock", EntityID: after.ID, Action: action, Before: before, After: after,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"material_id": in.MaterialID, "warehouse_id": in.WarehouseID, "batch_id": in.BatchID,
		"new_quantity": in.NewQuantity, "reason": in.Reason,
	}).Info("stock adjusted")
	return result, nil
}

// ReserveInput asks for quantity of a material regardless of batch.
type ReserveInput struct {
	MaterialID uint    `json:"material_id" validate:"required"`
	Quantity   float64 `json:"quantity" validate:"gt=0"`
}

// Reserve reserves stock FIFO by batch id; see Reserve in ledger.go.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) ([]Allocation, error) {
	return s.reservation(ctx, in, Reserve, "reserve")
}

// Release returns reserved stock to available.
func (s *Service) Release(ctx context.Context, in ReserveInput) ([]Allocation, error) {
	return s.reservation(ctx, in, Release, "release")
}

func (s *Service) reservation(ctx context.Context, in ReserveInput, op func(*gorm.DB, uint, float64) ([]Allocation, error), action string) ([]Allocation, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	var allocs []Allocation
	err := s.db.Tx(ctx, func(tx *gorm.DB) error {
		if err := database.Exists[models.Material](tx, in.MaterialID, "material"); err != nil {
			return err
		}
		var err error
		allocs, err = op(tx, in.MaterialID, in.Quantity)
		if err != nil {
			return err
		}
		for _, a := range allocs {
			if err := s.audit.Record(ctx, tx, audit.Entry{
				Entity: "inventory_stock", EntityID: a.StockID, Action: audit.ActionUpdate, After: a,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"material_id": in.MaterialID, "quantity": in.Quantity, "rows": len(allocs)}).Infof("stock %s", action)
	return allocs, nil
}

// LowStockItem is a material whose available quantity is under its threshold.
type LowStockItem struct {
	MaterialID        uint    `json:"material_id"`
	Code              string  `json:"code"`
	Name              string  `json:"name"`
	MinStock          float64 `json:"min_stock"`
	AvailableQuantity float64 `json:"available_quantity"`
	Shortage          float64 `json:"shortage"`
}

// LowStock lists active materials below min_stock.
func (s *Service) LowStock(ctx context.Context) ([]LowStockItem, error) {
	db := s.db.WithContext(ctx)
	var materials []models.Material
	if err := db.Where("min_stock > 0 AND is_active = ?", true).Order("code").Find(&materials).Error; err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	var out []LowStockItem
	for _, m := range materials {
		total, err := totalByMaterial(db, m.ID)
		if err != nil {
			return nil, err
		}
		if total.AvailableQuantity < m.MinStock {
			out = append(out, LowStockItem{
				MaterialID:        m.ID,
				Code:              m.Code,
				Name:              m.Name,
				MinStock:          m.MinStock,
				AvailableQuantity: total.AvailableQuantity,
				Shortage:          utils.Add4(m.MinStock, -total.AvailableQuantity),
			})
		}
	}
	return out, nil
}

func requireKey(tx *gorm.DB, key models.StockKey) error {
	if err := database.Exists[models.Material](tx, key.MaterialID, "material"); err != nil {
		return err
	}
	if err := database.Exists[models.Warehouse](tx, key.WarehouseID, "warehouse"); err != nil {
		return err
	}
	return database.Exists[models.Batch](tx, key.BatchID, "batch")
}
