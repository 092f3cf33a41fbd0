// Package purchase tracks ordered versus received quantity per purchase order line.
package purchase

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
	"github.com/xelth-com/loomtrace/internal/utils"
	"gorm.io/gorm"
)

// Service handles purchase order operations
type Service struct {
	db    *database.DB
	codes *codegen.Generator
	audit audit.Writer
	log   logrus.FieldLogger
}

// NewService creates a new purchase order service
func NewService(db *database.DB, codes *codegen.Generator, aw audit.Writer, log logrus.FieldLogger) *Service {
	return &Service{db: db, codes: codes, audit: aw, log: log.WithField("module", "purchase")}
}

// DetailInput is one ordered line. Received quantity is not accepted from clients.
type DetailInput struct {
	MaterialID uint    `json:"material_id" validate:"required"`
	Quantity   float64 `json:"quantity" validate:"gt=0"`
	UnitPrice  float64 `json:"unit_price" validate:"gte=0"`
	Notes      string  `json:"notes"`
}

// CreateInput is a new purchase order. An empty PONumber is generated.
type CreateInput struct {
	PONumber     string        `json:"po_number" validate:"max=20"`
	SupplierID   uint          `json:"supplier_id" validate:"required"`
	OrderDate    time.Time     `json:"order_date"`
	ExpectedDate *time.Time    `json:"expected_date"`
	Incoterm     string        `json:"incoterm" validate:"max=20"`
	Currency     string        `json:"currency" validate:"omitempty,len=3"`
	Notes        string        `json:"notes"`
	Details      []DetailInput `json:"details" validate:"dive"`
}

// Create stores a Draft purchase order with its lines.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.PurchaseOrder, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}

	var po *models.PurchaseOrder
	create := func(ctx context.Context) error {
		return s.db.Tx(ctx, func(tx *gorm.DB) error {
			number := in.PONumber
			if number == "" {
				var err error
				if number, err = s.codes.Next(tx, codegen.PONumber); err != nil {
					return err
				}
			} else if err := ensureUnique(tx, number); err != nil {
				return err
			}
			if err := database.Exists[models.Supplier](tx, in.SupplierID, "supplier"); err != nil {
				return err
			}
			details, err := buildDetails(tx, in.Details)
			if err != nil {
				return err
			}

			orderDate := in.OrderDate
			if orderDate.IsZero() {
				orderDate = s.codes.Now()
			}
			po = &models.PurchaseOrder{
				PONumber:     number,
				SupplierID:   in.SupplierID,
				OrderDate:    orderDate,
				ExpectedDate: in.ExpectedDate,
				Incoterm:     in.Incoterm,
				Currency:     in.Currency,
				Status:       models.POStatusDraft,
				Notes:        in.Notes,
				Details:      details,
			}
			if err := tx.Create(po).Error; err != nil {
				return fmt.Errorf("create purchase order: %w", err)
			}
			return s.audit.Record(ctx, tx, audit.Entry{Entity: "purchase_order", EntityID: po.ID, Action: audit.ActionCreate, After: po})
		})
	}

	var err error
	if in.PONumber == "" {
		err = s.codes.Run(ctx, codegen.PONumber, create)
	} else {
		err = create(ctx)
		if database.IsUniqueViolation(err) {
			err = apperr.Conflict("purchase order number %s already exists", in.PONumber)
		}
	}
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"po_id": po.ID, "po_number": po.PONumber}).Info("purchase order created")
	return po, nil
}

func ensureUnique(tx *gorm.DB, number string) error {
	var count int64
	if err := tx.Model(&models.PurchaseOrder{}).Where("po_number = ?", number).Count(&count).Error; err != nil {
		return fmt.Errorf("check PO number: %w", err)
	}
	if count > 0 {
		return apperr.Conflict("purchase order number %s already exists", number)
	}
	return nil
}

func buildDetails(tx *gorm.DB, in []DetailInput) ([]models.PurchaseOrderDetail, error) {
	out := make([]models.PurchaseOrderDetail, 0, len(in))
	for _, d := range in {
		if err := database.Exists[models.Material](tx, d.MaterialID, "material"); err != nil {
			return nil, err
		}
		out = append(out, models.PurchaseOrderDetail{
			MaterialID: d.MaterialID,
			Quantity:   utils.Round4(d.Quantity),
			UnitPrice:  d.UnitPrice,
			Notes:      d.Notes,
		})
	}
	return out, nil
}

// Get loads a purchase order with its lines.
func (s *Service) Get(ctx context.Context, id uint) (*models.PurchaseOrder, error) {
	return load(s.db.WithContext(ctx), id)
}

func load(tx *gorm.DB, id uint) (*models.PurchaseOrder, error) {
	po, err := database.First[models.PurchaseOrder](tx.Preload("Details", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}), id, "purchase order")
	if err != nil {
		return nil, err
	}
	return po, nil
}

// ListFilter narrows List.
type ListFilter struct {
	Status     models.POStatus
	SupplierID uint
}

// List returns purchase orders newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.PurchaseOrder, error) {
	q := s.db.WithContext(ctx).Model(&models.PurchaseOrder{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.SupplierID != 0 {
		q = q.Where("supplier_id = ?", f.SupplierID)
	}
	var out []models.PurchaseOrder
	if err := q.Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	return out, nil
}

// UpdateInput lists the header fields a client may change.
type UpdateInput struct {
	ExpectedDate *time.Time `json:"expected_date"`
	Incoterm     *string    `json:"incoterm" validate:"omitempty,max=20"`
	Currency     *string    `json:"currency" validate:"omitempty,len=3"`
	Notes        *string    `json:"notes"`
}

// Update changes header fields only.
func (s *Service) Update(ctx context.Context, id uint, in UpdateInput) (*models.PurchaseOrder, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	var po *models.PurchaseOrder
	err := s.db.Tx(ctx, func(tx *gorm.DB) error {
		current, err := database.FirstForUpdate[models.PurchaseOrder](tx, id, "purchase order")
		if err != nil {
			return err
		}
		before := *current
		updates := map[string]any{}
		if in.ExpectedDate != nil {
			updates["expected_date"] = *in.ExpectedDate
		}
		if in.Incoterm != nil {
			updates["incoterm"] = *in.Incoterm
		}
		if in.Currency != nil {
			updates["currency"] = *in.Currency
		}
		if in.Notes != nil {
			updates["notes"] = *in.Notes
		}
		if len(updates) > 0 {
			if err := tx.Model(current).Updates(updates).Error; err != nil {
				return fmt.Errorf("update purchase order %d: %w", id, err)
			}
		}
		if po, err = load(tx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "purchase_order", EntityID: id, Action: audit.ActionUpdate, Before: before, After: po})
	})
	if err != nil {
		return nil, err
	}
	return po, nil
}

// ReplaceDetails swaps the full line set of a Draft order.
func (s *Service) ReplaceDetails(ctx context.Context, id uint, details []DetailInput) (*models.PurchaseOrder, error) {
	if err := utils.Validate(struct {
		Details []DetailInput `validate:"dive"`
	}{details}); err != nil {
		return nil, err
	}
	var po *models.PurchaseOrder
	err := s.db.Tx(ctx, func(tx *gorm.DB) error {
		before, err := load(tx, id)
		if err != nil {
			return err
		}
		if before.Status != models.POStatusDraft {
			return apperr.Conflict("purchase order %s is %s; lines can only be replaced in Draft", before.PONumber, before.Status)
		}
		rows, err := buildDetails(tx, details)
		if err != nil {
			return err
		}
		if err := tx.Where("po_id = ?", id).Delete(&models.PurchaseOrderDetail{}).Error; err != nil {
			return fmt.Errorf("delete PO %d lines: %w", id, err)
		}
		for i := range rows {
			rows[i].POID = id
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("create PO %d lines: %w", id, err)
			}
		}
		if po, err = load(tx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "purchase_order", EntityID: id, Action: audit.ActionUpdate, Before: before, After: po})
	})
	if err != nil {
		return nil, err
	}
	return po, nil
}

// manualTransitions lists the status changes a client may request.
// Partial and Completed are only ever derived from receipts.
var manualTransitions = map[models.POStatus][]models.POStatus{
	models.POStatusDraft:     {models.POStatusSent, models.POStatusConfirmed, models.POStatusCancelled},
	models.POStatusSent:      {models.POStatusConfirmed, models.POStatusCancelled},
	models.POStatusConfirmed: {models.POStatusCancelled},
	models.POStatusPartial:   {models.POStatusCancelled},
}

// Transition moves a purchase order to a manually controlled status.
func (s *Service) Transition(ctx context.Context, id uint, to models.POStatus) (*models.PurchaseOrder, error) {
	var po *models.PurchaseOrder
	err := s.db.Tx(ctx, func(tx *gorm.DB) error {
		current, err := database.FirstForUpdate[models.PurchaseOrder](tx, id, "purchase order")
		if err != nil {
			return err
		}
		if !allowed(current.Status, to) {
			return apperr.Conflict("purchase order %s cannot move from %s to %s", current.PONumber, current.Status, to)
		}
		before := *current
		if err := tx.Model(current).Update("status", to).Error; err != nil {
			return fmt.Errorf("update PO %d status: %w", id, err)
		}
		if po, err = load(tx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "purchase_order", EntityID: id, Action: audit.ActionUpdate, Before: before, After: po})
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"po_id": id, "status": to}).Info("purchase order status changed")
	return po, nil
}

func allowed(from, to models.POStatus) bool {
	for _, s := range manualTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Delete removes a Draft purchase order and its lines.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.db.Tx(ctx, func(tx *gorm.DB) error {
		po, err := load(tx, id)
		if err != nil {
			return err
		}
		if po.Status != models.POStatusDraft {
			return apperr.Conflict("purchase order %s is %s; only Draft orders can be deleted", po.PONumber, po.Status)
		}
		var receipts int64
		if err := tx.Model(&models.MaterialReceipt{}).Where("po_id = ?", id).Count(&receipts).Error; err != nil {
			return fmt.Errorf("count receipts of PO %d: %w", id, err)
		}
		if receipts > 0 {
			return apperr.Conflict("purchase order %s has %d receipts", po.PONumber, receipts)
		}
		if err := tx.Where("po_id = ?", id).Delete(&models.PurchaseOrderDetail{}).Error; err != nil {
			return fmt.Errorf("delete PO %d lines: %w", id, err)
		}
		if err := tx.Delete(&models.PurchaseOrder{}, id).Error; err != nil {
			return fmt.Errorf("delete PO %d: %w", id, err)
		}
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "purchase_order", EntityID: id, Action: audit.ActionDelete, Before: po})
	})
}

// NextNumber previews the next PO number. Another writer may take it first.
func (s *Service) NextNumber(ctx context.Context) (string, error) {
	return s.codes.Next(s.db.WithContext(ctx), codegen.PONumber)
}
