// Package receipt turns physical deliveries into batches and stock.
//
// Every receipt line owns exactly one batch and one stock row in the receipt's
// warehouse. When the receipt references a purchase order, each line's quantity
// is credited to the first PO line of the same material and the PO status is
// re-derived in the same transaction.
package receipt

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
	"github.com/xelth-com/loomtrace/internal/services/batch"
	"github.com/xelth-com/loomtrace/internal/services/inventory"
	"github.com/xelth-com/loomtrace/internal/services/purchase"
	"github.com/xelth-com/loomtrace/internal/utils"
	"gorm.io/gorm"
)

// Service handles material receipts
type Service struct {
	db    *database.DB
	codes *codegen.Generator
	audit audit.Writer
	log   logrus.FieldLogger
}

// NewService creates a new receipt service
func NewService(db *database.DB, codes *codegen.Generator, aw audit.Writer, log logrus.FieldLogger) *Service {
	return &Service{db: db, codes: codes, audit: aw, log: log.WithField("module", "receipt")}
}

// DetailInput is one received line.
type DetailInput struct {
	MaterialID            uint    `json:"material_id" validate:"required"`
	ReceivedQuantityKg    float64 `json:"received_quantity_kg" validate:"gt=0"`
	ReceivedQuantityCones int     `json:"received_quantity_cones" validate:"gte=0"`
	PalletCount           int     `json:"pallet_count" validate:"gte=0"`
	SupplierBatchNo       string  `json:"supplier_batch_no" validate:"max=100"`
	OriginCountry         string  `json:"origin_country" validate:"max=100"`
	Location              string  `json:"location" validate:"max=100"`
	Notes                 string  `json:"notes" validate:"max=500"`
}

// CreateInput is a new receipt. An empty ReceiptNumber is generated.
type CreateInput struct {
	ReceiptNumber       string        `json:"receipt_number" validate:"max=20"`
	ReceiptDate         *time.Time    `json:"receipt_date"`
	WarehouseID         uint          `json:"warehouse_id" validate:"required"`
	SupplierID          *uint         `json:"supplier_id"`
	POID                *uint         `json:"po_id"`
	ImportDeclarationID *uint         `json:"import_declaration_id"`
	Notes               string        `json:"notes"`
	Details             []DetailInput `json:"details" validate:"dive"`
}

// Create stores the header and runs every line through the receiving pipeline.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.MaterialReceipt, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}

	var id uint
	err := s.codes.Run(ctx, codegen.ReceiptNumber, func(ctx context.Context) error {
		return s.db.Tx(ctx, func(tx *gorm.DB) error {
			number := in.ReceiptNumber
			if number == "" {
				var err error
				if number, err = s.codes.Next(tx, codegen.ReceiptNumber); err != nil {
					return err
				}
			} else if err := ensureUnique(tx, number); err != nil {
				return err
			}
			if err := checkHeaderRefs(tx, in.WarehouseID, in.SupplierID, in.POID, in.ImportDeclarationID); err != nil {
				return err
			}

			r := &models.MaterialReceipt{
				ReceiptNumber:       number,
				ReceiptDate:         s.codes.Now().UTC(),
				WarehouseID:         in.WarehouseID,
				SupplierID:          in.SupplierID,
				POID:                in.POID,
				ImportDeclarationID: in.ImportDeclarationID,
				Notes:               in.Notes,
			}
			if in.ReceiptDate != nil {
				r.ReceiptDate = *in.ReceiptDate
			}
			if err := tx.Create(r).Error; err != nil {
				return fmt.Errorf("create receipt: %w", err)
			}
			for _, d := range in.Details {
				if _, err := s.receiveLine(tx, r, d); err != nil {
					return err
				}
			}
			if err := s.recomputePO(tx, r); err != nil {
				return err
			}
			id = r.ID
			return s.audit.Record(ctx, tx, audit.Entry{Entity: "receipt", EntityID: r.ID, Action: audit.ActionCreate, After: r})
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"receipt_id": id, "lines": len(in.Details)}).Info("receipt created")
	return s.Get(ctx, id)
}

func ensureUnique(tx *gorm.DB, number string) error {
	var count int64
	if err := tx.Model(&models.MaterialReceipt{}).Where("receipt_number = ?", number).Count(&count).Error; err != nil {
		return fmt.Errorf("check receipt number: %w", err)
	}
	if count > 0 {
		return apperr.Conflict("receipt number %s already exists", number)
	}
	return nil
}

func checkHeaderRefs(tx *gorm.DB, warehouseID uint, supplierID, poID, declarationID *uint) error {
	if err := database.Exists[models.Warehouse](tx, warehouseID, "warehouse"); err != nil {
		return err
	}
	if supplierID != nil {
		if err := database.Exists[models.Supplier](tx, *supplierID, "supplier"); err != nil {
			return err
		}
	}
	if poID != nil {
		if err := database.Exists[models.PurchaseOrder](tx, *poID, "purchase order"); err != nil {
			return err
		}
	}
	if declarationID != nil {
		if err := database.Exists[models.ImportDeclaration](tx, *declarationID, "import declaration"); err != nil {
			return err
		}
	}
	return nil
}

// receiveLine creates the detail, its batch and its stock, and credits the PO line.
// The PO status is re-derived by the caller once all lines are in.
func (s *Service) receiveLine(tx *gorm.DB, r *models.MaterialReceipt, in DetailInput) (*models.MaterialReceiptDetail, error) {
	if err := database.Exists[models.Material](tx, in.MaterialID, "material"); err != nil {
		return nil, err
	}
	d := &models.MaterialReceiptDetail{
		ReceiptID:             r.ID,
		MaterialID:            in.MaterialID,
		ReceivedQuantityKg:    utils.Round4(in.ReceivedQuantityKg),
		ReceivedQuantityCones: in.ReceivedQuantityCones,
		PalletCount:           in.PalletCount,
		SupplierBatchNo:       in.SupplierBatchNo,
		OriginCountry:         in.OriginCountry,
		Location:              in.Location,
		Notes:                 in.Notes,
	}
	if err := tx.Create(d).Error; err != nil {
		return nil, fmt.Errorf("create receipt line: %w", err)
	}

	b, err := batch.SyncFromReceiptDetail(tx, s.codes, d)
	if err != nil {
		return nil, err
	}
	d.BatchID = b.ID
	d.InternalBatchCode = b.InternalBatchCode

	key := models.StockKey{MaterialID: d.MaterialID, WarehouseID: r.WarehouseID, BatchID: b.ID}
	if _, err := inventory.Increase(tx, key, d.ReceivedQuantityKg); err != nil {
		return nil, err
	}
	if r.POID != nil {
		if err := purchase.ApplyReceipt(tx, *r.POID, d.MaterialID, d.ReceivedQuantityKg); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (s *Service) recomputePO(tx *gorm.DB, r *models.MaterialReceipt) error {
	if r.POID == nil {
		return nil
	}
	status, err := purchase.Recompute(tx, *r.POID)
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"po_id": *r.POID, "status": status}).Debug("PO status recomputed")
	return nil
}

// AddDetail appends one line to an existing receipt.
func (s *Service) AddDetail(ctx context.Context, receiptID uint, in DetailInput) (*models.MaterialReceiptDetail, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	var out *models.MaterialReceiptDetail
	err := s.codes.Run(ctx, codegen.BatchCode, func(ctx context.Context) error {
		return s.db.Tx(ctx, func(tx *gorm.DB) error {
			r, err := database.FirstForUpdate[models.MaterialReceipt](tx, receiptID, "receipt")
			if err != nil {
				return err
			}
			if out, err = s.receiveLine(tx, r, in); err != nil {
				return err
			}
			if err := s.recomputePO(tx, r); err != nil {
				return err
			}
			return s.audit.Record(ctx, tx, audit.Entry{Entity: "receipt_detail", EntityID: out.ID, Action: audit.ActionCreate, After: out})
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DetailUpdate lists the fields a client may change on a receipt line.
// Material and warehouse are fixed once received; delete and re-add the line instead.
type DetailUpdate struct {
	ReceivedQuantityKg    *float64 `json:"received_quantity_kg" validate:"omitempty,gt=0"`
	ReceivedQuantityCones *int     `json:"received_quantity_cones" validate:"omitempty,gte=0"`
	PalletCount           *int     `json:"pallet_count" validate:"omitempty,gte=0"`
	SupplierBatchNo       *string  `json:"supplier_batch_no" validate:"omitempty,max=100"`
	OriginCountry         *string  `json:"origin_country" validate:"omitempty,max=100"`
	Location              *string  `json:"location" validate:"omitempty,max=100"`
	Notes                 *string  `json:"notes" validate:"omitempty,max=500"`
}

// UpdateDetail applies the quantity delta to stock and PO, then re-syncs the batch.
func (s *Service) UpdateDetail(ctx context.Context, receiptID, detailID uint, in DetailUpdate) (*models.MaterialReceiptDetail, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	var out *models.MaterialReceiptDetail
	err := s.codes.Run(ctx, codegen.BatchCode, func(ctx context.Context) error {
		return s.db.Tx(ctx, func(tx *gorm.DB) error {
			r, d, err := loadLine(tx, receiptID, detailID)
			if err != nil {
				return err
			}
			before := *d

			updates := map[string]any{}
			delta := 0.0
			if in.ReceivedQuantityKg != nil {
				qty := utils.Round4(*in.ReceivedQuantityKg)
				delta = utils.Add4(qty, -d.ReceivedQuantityKg)
				updates["received_quantity_kg"] = qty
				d.ReceivedQuantityKg = qty
			}
			if in.ReceivedQuantityCones != nil {
				updates["received_quantity_cones"] = *in.ReceivedQuantityCones
				d.ReceivedQuantityCones = *in.ReceivedQuantityCones
			}
			if in.PalletCount != nil {
				updates["pallet_count"] = *in.PalletCount
				d.PalletCount = *in.PalletCount
			}
			if in.SupplierBatchNo != nil {
				updates["supplier_batch_no"] = *in.SupplierBatchNo
				d.SupplierBatchNo = *in.SupplierBatchNo
			}
			if in.OriginCountry != nil {
				updates["origin_country"] = *in.OriginCountry
				d.OriginCountry = *in.OriginCountry
			}
			if in.Location != nil {
				updates["location"] = *in.Location
				d.Location = *in.Location
			}
			if in.Notes != nil {
				updates["notes"] = *in.Notes
				d.Notes = *in.Notes
			}
			if len(updates) > 0 {
				if err := tx.Model(d).Updates(updates).Error; err != nil {
					return fmt.Errorf("update receipt line %d: %w", detailID, err)
				}
			}

			b, err := batch.SyncFromReceiptDetail(tx, s.codes, d)
			if err != nil {
				return err
			}
			d.BatchID = b.ID
			d.InternalBatchCode = b.InternalBatchCode

			if delta != 0 {
				key := models.StockKey{MaterialID: d.MaterialID, WarehouseID: r.WarehouseID, BatchID: b.ID}
				if _, err := inventory.Increase(tx, key, delta); err != nil {
					return err
				}
				if r.POID != nil {
					if err := purchase.ApplyReceipt(tx, *r.POID, d.MaterialID, delta); err != nil {
						return err
					}
				}
			}
			if err := s.recomputePO(tx, r); err != nil {
				return err
			}
			out = d
			return s.audit.Record(ctx, tx, audit.Entry{Entity: "receipt_detail", EntityID: d.ID, Action: audit.ActionUpdate, Before: before, After: d})
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadLine(tx *gorm.DB, receiptID, detailID uint) (*models.MaterialReceipt, *models.MaterialReceiptDetail, error) {
	r, err := database.FirstForUpdate[models.MaterialReceipt](tx, receiptID, "receipt")
	if err != nil {
		return nil, nil, err
	}
	d, err := database.FirstForUpdate[models.MaterialReceiptDetail](tx, detailID, "receipt line")
	if err != nil {
		return nil, nil, err
	}
	if d.ReceiptID != r.ID {
		return nil, nil, apperr.NotFound("receipt line %d not found on receipt %s", detailID, r.ReceiptNumber)
	}
	return r, d, nil
}

// DeleteDetail reverses the line on the PO and deletes its batch and stock.
// Stock already exported from the batch is not checked.
func (s *Service) DeleteDetail(ctx context.Context, receiptID, detailID uint) error {
	return s.db.Tx(ctx, func(tx *gorm.DB) error {
		r, d, err := loadLine(tx, receiptID, detailID)
		if err != nil {
			return err
		}
		if err := unreceiveLine(tx, r, d); err != nil {
			return err
		}
		if err := s.recomputePO(tx, r); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "receipt_detail", EntityID: d.ID, Action: audit.ActionDelete, Before: d})
	})
}

func unreceiveLine(tx *gorm.DB, r *models.MaterialReceipt, d *models.MaterialReceiptDetail) error {
	if r.POID != nil {
		if err := purchase.ApplyReceipt(tx, *r.POID, d.MaterialID, -d.ReceivedQuantityKg); err != nil {
			return err
		}
	}
	b, err := batch.ForReceiptDetail(tx, d.ID)
	if err != nil {
		return err
	}
	if b != nil {
		if err := batch.Purge(tx, b.ID); err != nil {
			return err
		}
	}
	if err := tx.Delete(&models.MaterialReceiptDetail{}, d.ID).Error; err != nil {
		return fmt.Errorf("delete receipt line %d: %w", d.ID, err)
	}
	return nil
}

// Delete reverses every line and removes the receipt.
func (s *Service) Delete(ctx context.Context, id uint) error {
	err := s.db.Tx(ctx, func(tx *gorm.DB) error {
		r, err := database.FirstForUpdate[models.MaterialReceipt](tx, id, "receipt")
		if err != nil {
			return err
		}
		var lines []models.MaterialReceiptDetail
		if err := tx.Where("receipt_id = ?", id).Order("id").Find(&lines).Error; err != nil {
			return fmt.Errorf("load receipt %d lines: %w", id, err)
		}
		for i := range lines {
			if err := unreceiveLine(tx, r, &lines[i]); err != nil {
				return err
			}
		}
		if err := tx.Delete(r).Error; err != nil {
			return fmt.Errorf("delete receipt %d: %w", id, err)
		}
		if err := s.recomputePO(tx, r); err != nil {
			return err
		}
		r.Details = lines
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "receipt", EntityID: id, Action: audit.ActionDelete, Before: r})
	})
	if err != nil {
		return err
	}
	s.log.WithField("receipt_id", id).Info("receipt deleted")
	return nil
}

// HeaderUpdate lists the header fields a client may change.
// Warehouse and PO are fixed because stock and received quantities were booked against them.
type HeaderUpdate struct {
	ReceiptDate         *time.Time `json:"receipt_date"`
	SupplierID          *uint      `json:"supplier_id"`
	ImportDeclarationID *uint      `json:"import_declaration_id"`
	Notes               *string    `json:"notes"`
}

// UpdateHeader patches the receipt header.
func (s *Service) UpdateHeader(ctx context.Context, id uint, in HeaderUpdate) (*models.MaterialReceipt, error) {
	err := s.db.Tx(ctx, func(tx *gorm.DB) error {
		r, err := database.FirstForUpdate[models.MaterialReceipt](tx, id, "receipt")
		if err != nil {
			return err
		}
		before := *r
		updates := map[string]any{}
		if in.ReceiptDate != nil {
			updates["receipt_date"] = *in.ReceiptDate
		}
		if in.SupplierID != nil {
			if err := database.Exists[models.Supplier](tx, *in.SupplierID, "supplier"); err != nil {
				return err
			}
			updates["supplier_id"] = *in.SupplierID
		}
		if in.ImportDeclarationID != nil {
			if err := database.Exists[models.ImportDeclaration](tx, *in.ImportDeclarationID, "import declaration"); err != nil {
				return err
			}
			updates["import_declaration_id"] = *in.ImportDeclarationID
		}
		if in.Notes != nil {
			updates["notes"] = *in.Notes
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(r).Updates(updates).Error; err != nil {
			return fmt.Errorf("update receipt %d: %w", id, err)
		}
		after, err := database.First[models.MaterialReceipt](tx, id, "receipt")
		if err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "receipt", EntityID: id, Action: audit.ActionUpdate, Before: before, After: after})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Get loads a receipt with its lines and their batch codes.
func (s *Service) Get(ctx context.Context, id uint) (*models.MaterialReceipt, error) {
	db := s.db.WithContext(ctx)
	r, err := database.First[models.MaterialReceipt](db.Preload("Details", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}), id, "receipt")
	if err != nil {
		return nil, err
	}
	if err := fillBatchCodes(db, r.Details); err != nil {
		return nil, err
	}
	return r, nil
}

func fillBatchCodes(db *gorm.DB, lines []models.MaterialReceiptDetail) error {
	if len(lines) == 0 {
		return nil
	}
	ids := make([]uint, len(lines))
	for i, l := range lines {
		ids[i] = l.ID
	}
	var batches []models.Batch
	if err := db.Where("receipt_detail_id IN ?", ids).Find(&batches).Error; err != nil {
		return fmt.Errorf("load receipt batches: %w", err)
	}
	byLine := make(map[uint]models.Batch, len(batches))
	for _, b := range batches {
		byLine[*b.ReceiptDetailID] = b
	}
	for i := range lines {
		if b, ok := byLine[lines[i].ID]; ok {
			lines[i].BatchID = b.ID
			lines[i].InternalBatchCode = b.InternalBatchCode
		}
	}
	return nil
}

// ListFilter narrows List
type ListFilter struct {
	WarehouseID uint
	POID        uint
	From, To    *time.Time
}

// List returns receipt headers newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.MaterialReceipt, error) {
	q := s.db.WithContext(ctx).Model(&models.MaterialReceipt{})
	if f.WarehouseID != 0 {
		q = q.Where("warehouse_id = ?", f.WarehouseID)
	}
	if f.POID != 0 {
		q = q.Where("po_id = ?", f.POID)
	}
	if f.From != nil {
		q = q.Where("receipt_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("receipt_date < ?", *f.To)
	}
	var out []models.MaterialReceipt
	if err := q.Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return out, nil
}

// NextNumber previews the next receipt number. Another writer may take it first.
func (s *Service) NextNumber(ctx context.Context) (string, error) {
	return s.codes.Next(s.db.WithContext(ctx), codegen.ReceiptNumber)
}
