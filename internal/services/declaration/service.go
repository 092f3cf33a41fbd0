// Package declaration stores customs import declarations.
package declaration

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/utils"
	"gorm.io/gorm"
)

// Service handles import declarations
type Service struct {
	db    *database.DB
	audit audit.Writer
	log   logrus.FieldLogger
}

// NewService creates a new import declaration service
func NewService(db *database.DB, aw audit.Writer, log logrus.FieldLogger) *Service {
	return &Service{db: db, audit: aw, log: log.WithField("module", "declaration")}
}

// DetailInput is one declared line, optionally tied to the PO line it clears.
type DetailInput struct {
	MaterialID uint    `json:"material_id" validate:"required"`
	PODetailID *uint   `json:"po_detail_id"`
	Quantity   float64 `json:"quantity" validate:"gte=0"`
	UnitPrice  float64 `json:"unit_price" validate:"gte=0"`
	HSCode     string  `json:"hs_code" validate:"max=20"`
}

// Input is the full declaration. Update replaces the lines.
type Input struct {
	DeclarationNo   string        `json:"declaration_no" validate:"required,max=50"`
	DeclarationDate *time.Time    `json:"declaration_date"`
	SupplierID      *uint         `json:"supplier_id"`
	CustomsOffice   string        `json:"customs_office" validate:"max=200"`
	InvoiceNo       string        `json:"invoice_no" validate:"max=100"`
	TotalValue      float64       `json:"total_value" validate:"gte=0"`
	Currency        string        `json:"currency" validate:"omitempty,len=3"`
	Details         []DetailInput `json:"details" validate:"dive"`
}

func (in Input) header() models.ImportDeclaration {
	d := models.ImportDeclaration{
		DeclarationNo: in.DeclarationNo,
		SupplierID:    in.SupplierID,
		CustomsOffice: in.CustomsOffice,
		InvoiceNo:     in.InvoiceNo,
		TotalValue:    utils.Round4(in.TotalValue),
		Currency:      in.Currency,
	}
	if in.DeclarationDate != nil {
		d.DeclarationDate = *in.DeclarationDate
	} else {
		d.DeclarationDate = time.Now().UTC()
	}
	return d
}

func buildDetails(tx *gorm.DB, declarationID uint, in []DetailInput) ([]models.ImportDeclarationDetail, error) {
	out := make([]models.ImportDeclarationDetail, 0, len(in))
	for _, d := range in {
		if err := database.Exists[models.Material](tx, d.MaterialID, "material"); err != nil {
			return nil, err
		}
		if d.PODetailID != nil {
			if err := database.Exists[models.PurchaseOrderDetail](tx, *d.PODetailID, "purchase order line"); err != nil {
				return nil, err
			}
		}
		out = append(out, models.ImportDeclarationDetail{
			DeclarationID: declarationID,
			MaterialID:    d.MaterialID,
			PODetailID:    d.PODetailID,
			Quantity:      utils.Round4(d.Quantity),
			UnitPrice:     d.UnitPrice,
			HSCode:        d.HSCode,
		})
	}
	return out, nil
}

func ensureUnique(tx *gorm.DB, number string, self uint) error {
	var count int64
	if err := tx.Model(&models.ImportDeclaration{}).Where("declaration_no = ? AND id <> ?", number, self).Count(&count).Error; err != nil {
		return fmt.Errorf("check declaration number: %w", err)
	}
	if count > 0 {
		return apperr.Conflict("import declaration %s already exists", number)
	}
	return nil
}

// Create stores a declaration with its lines.
func (s *Service) Create(ctx context.Context, in Input) (*models.ImportDeclaration, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	var id uint
	err := s.db.Tx(ctx, func(tx *gorm.DB) error {
		if err := ensureUnique(tx, in.DeclarationNo, 0); err != nil {
			return err
		}
		if in.SupplierID != nil {
			if err := database.Exists[models.Supplier](tx, *in.SupplierID, "supplier"); err != nil {
				return err
			}
		}
		d := in.header()
		if err := tx.Create(&d).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.Conflict("import declaration %s already exists", in.DeclarationNo)
			}
			return fmt.Errorf("create import declaration: %w", err)
		}
		details, err := buildDetails(tx, d.ID, in.Details)
		if err != nil {
			return err
		}
		if len(details) > 0 {
			if err := tx.Create(&details).Error; err != nil {
				return fmt.Errorf("create declaration lines: %w", err)
			}
		}
		d.Details = details
		id = d.ID
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "import_declaration", EntityID: d.ID, Action: audit.ActionCreate, After: d})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Get loads a declaration with its lines.
func (s *Service) Get(ctx context.Context, id uint) (*models.ImportDeclaration, error) {
	return database.First[models.ImportDeclaration](s.db.WithContext(ctx).Preload("Details", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}), id, "import declaration")
}

// List returns declarations newest first, optionally for one supplier.
func (s *Service) List(ctx context.Context, supplierID uint) ([]models.ImportDeclaration, error) {
	q := s.db.WithContext(ctx).Model(&models.ImportDeclaration{})
	if supplierID != 0 {
		q = q.Where("supplier_id = ?", supplierID)
	}
	var out []models.ImportDeclaration
	if err := q.Order("declaration_date DESC, id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list import declarations: %w", err)
	}
	return out, nil
}

// Update overwrites the header and replaces every line.
func (s *Service) Update(ctx context.Context, id uint, in Input) (*models.ImportDeclaration, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	before, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.db.Tx(ctx, func(tx *gorm.DB) error {
		if err := ensureUnique(tx, in.DeclarationNo, id); err != nil {
			return err
		}
		if in.SupplierID != nil {
			if err := database.Exists[models.Supplier](tx, *in.SupplierID, "supplier"); err != nil {
				return err
			}
		}
		h := in.header()
		err := tx.Model(&models.ImportDeclaration{ID: id}).Select(
			"declaration_no", "declaration_date", "supplier_id", "customs_office", "invoice_no", "total_value", "currency",
		).Updates(&h).Error
		if err != nil {
			return fmt.Errorf("update import declaration %d: %w", id, err)
		}
		if err := tx.Where("declaration_id = ?", id).Delete(&models.ImportDeclarationDetail{}).Error; err != nil {
			return fmt.Errorf("clear declaration lines: %w", err)
		}
		details, err := buildDetails(tx, id, in.Details)
		if err != nil {
			return err
		}
		if len(details) > 0 {
			if err := tx.Create(&details).Error; err != nil {
				return fmt.Errorf("create declaration lines: %w", err)
			}
		}
		h.ID = id
		h.Details = details
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "import_declaration", EntityID: id, Action: audit.ActionUpdate, Before: before, After: h})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a declaration that no receipt references.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.db.Tx(ctx, func(tx *gorm.DB) error {
		d, err := database.First[models.ImportDeclaration](tx, id, "import declaration")
		if err != nil {
			return err
		}
		var receipts int64
		if err := tx.Model(&models.MaterialReceipt{}).Where("import_declaration_id = ?", id).Count(&receipts).Error; err != nil {
			return fmt.Errorf("count receipts of declaration %d: %w", id, err)
		}
		if receipts > 0 {
			return apperr.Conflict("import declaration %s is referenced by %d receipt(s)", d.DeclarationNo, receipts)
		}
		if err := tx.Where("declaration_id = ?", id).Delete(&models.ImportDeclarationDetail{}).Error; err != nil {
			return fmt.Errorf("delete declaration lines: %w", err)
		}
		if err := tx.Delete(d).Error; err != nil {
			return fmt.Errorf("delete import declaration %d: %w", id, err)
		}
		s.log.WithField("declaration_no", d.DeclarationNo).Info("import declaration deleted")
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "import_declaration", EntityID: id, Action: audit.ActionDelete, Before: d})
	})
}
