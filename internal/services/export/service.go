// Package export withdraws yarn from stock and links it to weaving tickets.
package export

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
	"github.com/xelth-com/loomtrace/internal/services/inventory"
	"github.com/xelth-com/loomtrace/internal/utils"
	"gorm.io/gorm"
)

// Service handles material exports
type Service struct {
	db    *database.DB
	codes *codegen.Generator
	audit audit.Writer
	log   logrus.FieldLogger
}

// NewService creates a new export service
func NewService(db *database.DB, codes *codegen.Generator, aw audit.Writer, log logrus.FieldLogger) *Service {
	return &Service{db: db, codes: codes, audit: aw, log: log.WithField("module", "export")}
}

// DetailInput withdraws Quantity of one batch. Machine and product together
// route the yarn into the open weaving ticket of that machine and line.
type DetailInput struct {
	MaterialID    uint    `json:"material_id" validate:"required"`
	BatchID       uint    `json:"batch_id" validate:"required"`
	Quantity      float64 `json:"quantity" validate:"gt=0"`
	MachineID     *uint   `json:"machine_id"`
	LineNo        string  `json:"line_no" validate:"max=20"`
	ProductID     *uint   `json:"product_id"`
	BasketID      *uint   `json:"basket_id"`
	ComponentType string  `json:"component_type" validate:"max=50"`
}

// CreateInput is a new export. The code is generated when AutoCode is set or ExportCode is empty.
type CreateInput struct {
	ExportCode  string        `json:"export_code" validate:"max=20"`
	AutoCode    bool          `json:"auto_code"`
	ExportDate  *time.Time    `json:"export_date"`
	WarehouseID uint          `json:"warehouse_id" validate:"required"`
	RequestedBy string        `json:"requested_by" validate:"max=100"`
	Notes       string        `json:"notes"`
	Details     []DetailInput `json:"details" validate:"required,min=1,dive"`
}

// Create withdraws every line or nothing.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.MaterialExport, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}

	var id uint
	err := s.codes.Run(ctx, codegen.ExportCode, func(ctx context.Context) error {
		return s.db.Tx(ctx, func(tx *gorm.DB) error {
			code := in.ExportCode
			if in.AutoCode || code == "" {
				var err error
				if code, err = s.codes.Next(tx, codegen.ExportCode); err != nil {
					return err
				}
			} else if err := ensureUnique(tx, code); err != nil {
				return err
			}
			if err := database.Exists[models.Warehouse](tx, in.WarehouseID, "warehouse"); err != nil {
				return err
			}

			e := &models.MaterialExport{
				ExportCode:  code,
				ExportDate:  s.codes.Now().UTC(),
				WarehouseID: in.WarehouseID,
				RequestedBy: in.RequestedBy,
				Notes:       in.Notes,
			}
			if in.ExportDate != nil {
				e.ExportDate = *in.ExportDate
			}
			if err := tx.Create(e).Error; err != nil {
				return fmt.Errorf("create export: %w", err)
			}
			for _, d := range in.Details {
				line, err := s.issueLine(tx, e, d)
				if err != nil {
					return err
				}
				e.Details = append(e.Details, *line)
			}
			id = e.ID
			return s.audit.Record(ctx, tx, audit.Entry{Entity: "export", EntityID: e.ID, Action: audit.ActionCreate, After: e})
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"export_id": id, "lines": len(in.Details)}).Info("export created")
	return s.Get(ctx, id)
}

func ensureUnique(tx *gorm.DB, code string) error {
	var count int64
	if err := tx.Model(&models.MaterialExport{}).Where("export_code = ?", code).Count(&count).Error; err != nil {
		return fmt.Errorf("check export code: %w", err)
	}
	if count > 0 {
		return apperr.Conflict("export code %s already exists", code)
	}
	return nil
}

// issueLine validates the basket, withdraws stock, and feeds the weaving ticket.
func (s *Service) issueLine(tx *gorm.DB, e *models.MaterialExport, in DetailInput) (*models.MaterialExportDetail, error) {
	b, err := database.First[models.Batch](tx, in.BatchID, "batch")
	if err != nil {
		return nil, err
	}
	if b.MaterialID != in.MaterialID {
		return nil, apperr.Validation("batch %s holds material %d, not %d", b.InternalBatchCode, b.MaterialID, in.MaterialID)
	}

	var basket *models.Basket
	if in.BasketID != nil {
		if basket, err = database.FirstForUpdate[models.Basket](tx, *in.BasketID, "basket"); err != nil {
			return nil, err
		}
		if basket.Status != models.BasketReady {
			// a basket already claimed by an earlier line of this export may be reused
			claimed, err := claimedBy(tx, e.ID, basket.ID)
			if err != nil {
				return nil, err
			}
			if !claimed {
				return nil, apperr.Conflict("basket %s is %s, not READY", basket.Code, basket.Status)
			}
		}
	}

	d := &models.MaterialExportDetail{
		ExportID:      e.ID,
		MaterialID:    in.MaterialID,
		BatchID:       in.BatchID,
		Quantity:      utils.Round4(in.Quantity),
		MachineID:     in.MachineID,
		LineNo:        in.LineNo,
		ProductID:     in.ProductID,
		BasketID:      in.BasketID,
		ComponentType: in.ComponentType,
	}
	if err := tx.Create(d).Error; err != nil {
		return nil, fmt.Errorf("create export line: %w", err)
	}

	key := models.StockKey{MaterialID: in.MaterialID, WarehouseID: e.WarehouseID, BatchID: in.BatchID}
	if _, err := inventory.Withdraw(tx, key, d.Quantity); err != nil {
		return nil, err
	}

	if in.MachineID != nil && in.ProductID != nil {
		ticket, err := openTicket(tx, *in.MachineID, in.LineNo, *in.ProductID, in.BasketID)
		if err != nil {
			return nil, err
		}
		if err := attachBasket(tx, ticket, basket); err != nil {
			return nil, err
		}
		detailID := d.ID
		yarn := &models.WeavingTicketYarn{
			TicketID:       ticket.ID,
			BatchID:        in.BatchID,
			MaterialID:     in.MaterialID,
			ComponentType:  in.ComponentType,
			Quantity:       d.Quantity,
			ExportDetailID: &detailID,
		}
		if err := tx.Create(yarn).Error; err != nil {
			return nil, fmt.Errorf("create ticket yarn: %w", err)
		}
		d.TicketID = &ticket.ID
		if err := tx.Model(d).Update("ticket_id", ticket.ID).Error; err != nil {
			return nil, fmt.Errorf("link export line %d to ticket: %w", d.ID, err)
		}
	}

	if basket != nil && basket.Status != models.BasketInUse {
		if err := tx.Model(basket).Update("status", models.BasketInUse).Error; err != nil {
			return nil, fmt.Errorf("claim basket %s: %w", basket.Code, err)
		}
	}
	return d, nil
}

func claimedBy(tx *gorm.DB, exportID, basketID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.MaterialExportDetail{}).
		Where("export_id = ? AND basket_id = ?", exportID, basketID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check basket %d on export %d: %w", basketID, exportID, err)
	}
	return count > 0, nil
}

// attachBasket binds basket to an open ticket that has none yet.
// A ticket holds one basket; closing it releases only that one.
func attachBasket(tx *gorm.DB, t *models.WeavingBasketTicket, basket *models.Basket) error {
	if basket == nil {
		return nil
	}
	if t.BasketID == nil {
		if err := tx.Model(t).Update("basket_id", basket.ID).Error; err != nil {
			return fmt.Errorf("attach basket %s to ticket %d: %w", basket.Code, t.ID, err)
		}
		t.BasketID = &basket.ID
		return nil
	}
	if *t.BasketID != basket.ID {
		return apperr.Conflict("machine line already runs ticket %d with another basket; close it before using basket %s", t.ID, basket.Code)
	}
	return nil
}

// openTicket returns the open ticket of machine and line, creating one when none is open.
func openTicket(tx *gorm.DB, machineID uint, lineNo string, productID uint, basketID *uint) (*models.WeavingBasketTicket, error) {
	if err := database.Exists[models.Machine](tx, machineID, "machine"); err != nil {
		return nil, err
	}
	var t models.WeavingBasketTicket
	err := tx.Where("machine_id = ? AND line_no = ? AND time_out IS NULL", machineID, lineNo).
		Order("id DESC").Limit(1).Find(&t).Error
	if err != nil {
		return nil, fmt.Errorf("find open ticket of machine %d: %w", machineID, err)
	}
	if t.ID != 0 {
		return &t, nil
	}
	if err := database.Exists[models.Product](tx, productID, "product"); err != nil {
		return nil, err
	}
	t = models.WeavingBasketTicket{
		MachineID: machineID,
		LineNo:    lineNo,
		ProductID: productID,
		BasketID:  basketID,
		TimeIn:    time.Now().UTC(),
	}
	if err := tx.Create(&t).Error; err != nil {
		return nil, fmt.Errorf("open ticket for machine %d: %w", machineID, err)
	}
	return &t, nil
}

// Delete puts every line's quantity back and unwinds untouched tickets.
// A ticket that already recorded output weight blocks the delete.
func (s *Service) Delete(ctx context.Context, id uint) error {
	err := s.db.Tx(ctx, func(tx *gorm.DB) error {
		e, err := database.FirstForUpdate[models.MaterialExport](tx, id, "export")
		if err != nil {
			return err
		}
		var lines []models.MaterialExportDetail
		if err := tx.Where("export_id = ?", id).Order("id").Find(&lines).Error; err != nil {
			return fmt.Errorf("load export %d lines: %w", id, err)
		}
		for i := range lines {
			if err := reverseLine(tx, e, &lines[i]); err != nil {
				return err
			}
		}
		if err := tx.Where("export_id = ?", id).Delete(&models.MaterialExportDetail{}).Error; err != nil {
			return fmt.Errorf("delete export %d lines: %w", id, err)
		}
		if err := tx.Delete(e).Error; err != nil {
			return fmt.Errorf("delete export %d: %w", id, err)
		}
		e.Details = lines
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "export", EntityID: id, Action: audit.ActionDelete, Before: e})
	})
	if err != nil {
		return err
	}
	s.log.WithField("export_id", id).Info("export deleted")
	return nil
}

func reverseLine(tx *gorm.DB, e *models.MaterialExport, d *models.MaterialExportDetail) error {
	key := models.StockKey{MaterialID: d.MaterialID, WarehouseID: e.WarehouseID, BatchID: d.BatchID}
	if _, err := inventory.Increase(tx, key, d.Quantity); err != nil {
		return err
	}

	if d.TicketID != nil {
		var t models.WeavingBasketTicket
		if err := tx.Limit(1).Find(&t, *d.TicketID).Error; err != nil {
			return fmt.Errorf("load ticket %d: %w", *d.TicketID, err)
		}
		if t.ID != 0 {
			if !utils.Zero(t.GrossWeight) {
				return apperr.Conflict("ticket %d already recorded %.4f kg of output and cannot be unwound", t.ID, t.GrossWeight)
			}
			if err := tx.Where("export_detail_id = ?", d.ID).Delete(&models.WeavingTicketYarn{}).Error; err != nil {
				return fmt.Errorf("delete yarns of export line %d: %w", d.ID, err)
			}
			if t.IsOpen() && d.BasketID != nil {
				var left int64
				if err := tx.Model(&models.WeavingTicketYarn{}).Where("ticket_id = ?", t.ID).Count(&left).Error; err != nil {
					return fmt.Errorf("count yarns of ticket %d: %w", t.ID, err)
				}
				if left == 0 {
					if err := tx.Delete(&t).Error; err != nil {
						return fmt.Errorf("delete ticket %d: %w", t.ID, err)
					}
				} else if t.BasketID != nil && *t.BasketID == *d.BasketID {
					// the basket goes back to READY below, so the ticket no longer holds it
					if err := tx.Model(&t).Update("basket_id", nil).Error; err != nil {
						return fmt.Errorf("detach basket from ticket %d: %w", t.ID, err)
					}
				}
			}
		}
	}

	if d.BasketID != nil {
		if err := tx.Model(&models.Basket{}).Where("id = ?", *d.BasketID).Update("status", models.BasketReady).Error; err != nil {
			return fmt.Errorf("release basket %d: %w", *d.BasketID, err)
		}
	}
	return nil
}

// Get loads an export with its lines.
func (s *Service) Get(ctx context.Context, id uint) (*models.MaterialExport, error) {
	return database.First[models.MaterialExport](s.db.WithContext(ctx).Preload("Details", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}), id, "export")
}

// ListFilter narrows List
type ListFilter struct {
	WarehouseID uint
	From, To    *time.Time
}

// List returns export headers newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.MaterialExport, error) {
	q := s.db.WithContext(ctx).Model(&models.MaterialExport{})
	if f.WarehouseID != 0 {
		q = q.Where("warehouse_id = ?", f.WarehouseID)
	}
	if f.From != nil {
		q = q.Where("export_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("export_date < ?", *f.To)
	}
	var out []models.MaterialExport
	if err := q.Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	return out, nil
}

// NextCode previews the next export code. Another writer may take it first.
func (s *Service) NextCode(ctx context.Context) (string, error) {
	return s.codes.Next(s.db.WithContext(ctx), codegen.ExportCode)
}
