package registry

import (
	"github.com/sirupsen/logrus"
	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/models"
	"gorm.io/gorm"
)

// Registry groups the reference stores.
type Registry struct {
	Units      *Store[models.Unit, *models.Unit]
	Materials  *Store[models.Material, *models.Material]
	Suppliers  *Store[models.Supplier, *models.Supplier]
	Warehouses *Store[models.Warehouse, *models.Warehouse]
	Machines   *Store[models.Machine, *models.Machine]
	Products   *Store[models.Product, *models.Product]
	Baskets    *Store[models.Basket, *models.Basket]
}

// New builds every store. A nil notifier disables change broadcasts.
func New(db *database.DB, aw audit.Writer, n Notifier, log logrus.FieldLogger) *Registry {
	if n == nil {
		n = nopNotifier{}
	}
	log = log.WithField("module", "registry")

	r := &Registry{
		Units:      newStore[models.Unit](db, "unit", "code", aw, n, log),
		Materials:  newStore[models.Material](db, "material", "code", aw, n, log),
		Suppliers:  newStore[models.Supplier](db, "supplier", "code", aw, n, log),
		Warehouses: newStore[models.Warehouse](db, "warehouse", "code", aw, n, log),
		Machines:   newStore[models.Machine](db, "machine", "line_no, code", aw, n, log),
		Products:   newStore[models.Product](db, "product", "code", aw, n, log),
		Baskets:    newStore[models.Basket](db, "basket", "code", aw, n, log),
	}

	r.Units.guard = func(tx *gorm.DB, u *models.Unit) error {
		return inUse(tx, &models.Material{}, "unit "+u.Code, "material(s)", "purchase_unit_id = ? OR production_unit_id = ?", u.ID, u.ID)
	}
	r.Materials.guard = func(tx *gorm.DB, m *models.Material) error {
		if err := inUse(tx, &models.Batch{}, "material "+m.Code, "batch(es)", "material_id = ?", m.ID); err != nil {
			return err
		}
		return inUse(tx, &models.PurchaseOrderDetail{}, "material "+m.Code, "purchase order line(s)", "material_id = ?", m.ID)
	}
	r.Suppliers.guard = func(tx *gorm.DB, s *models.Supplier) error {
		return inUse(tx, &models.PurchaseOrder{}, "supplier "+s.Code, "purchase order(s)", "supplier_id = ?", s.ID)
	}
	r.Warehouses.guard = func(tx *gorm.DB, w *models.Warehouse) error {
		if err := inUse(tx, &models.MaterialReceipt{}, "warehouse "+w.Code, "receipt(s)", "warehouse_id = ?", w.ID); err != nil {
			return err
		}
		return inUse(tx, &models.InventoryStock{}, "warehouse "+w.Code, "stock row(s)", "warehouse_id = ?", w.ID)
	}
	r.Machines.guard = func(tx *gorm.DB, m *models.Machine) error {
		return inUse(tx, &models.WeavingBasketTicket{}, "machine "+m.Code, "open ticket(s)", "machine_id = ? AND time_out IS NULL", m.ID)
	}
	r.Products.guard = func(tx *gorm.DB, p *models.Product) error {
		return inUse(tx, &models.BOMHeader{}, "product "+p.Code, "BOM(s)", "product_id = ?", p.ID)
	}
	r.Baskets.guard = func(tx *gorm.DB, b *models.Basket) error {
		if b.Status == models.BasketInUse {
			return apperr.Conflict("basket %s is in use", b.Code)
		}
		return nil
	}
	// IN_USE is owned by exports and weaving tickets; the registry may only
	// move an idle basket between READY and DAMAGED.
	r.Baskets.checkUpdate = func(_ *gorm.DB, before, row *models.Basket) error {
		if row.Status == "" {
			row.Status = before.Status
		}
		if row.Status == before.Status {
			return nil
		}
		if before.Status == models.BasketInUse {
			return apperr.Conflict("basket %s is in use; close its ticket before changing status", before.Code)
		}
		if row.Status == models.BasketInUse {
			return apperr.Validation("basket %s can only be put in use by an export", before.Code)
		}
		return nil
	}
	return r
}
