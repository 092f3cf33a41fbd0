package models

import (
	"time"

	"gorm.io/gorm"
)

// Unit is a unit of measure (kg, cone, m).
type Unit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:20;not null;uniqueIndex" json:"code" validate:"required,max=20"`
	Name      string    `gorm:"size:100" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Unit) PrimaryKey() uint { return m.ID }

func (Unit) TableName() string { return "units" }

// Material is a yarn or fiber SKU.
type Material struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Code             string    `gorm:"size:50;not null;uniqueIndex" json:"code" validate:"required,max=50"`
	Name             string    `gorm:"size:200;not null" json:"name" validate:"required"`
	YarnType         string    `gorm:"size:100" json:"yarn_type"`
	Denier           float64   `json:"denier"`
	Dtex             float64   `json:"dtex"`
	Color            string    `gorm:"size:50" json:"color"`
	PurchaseUnitID   *uint     `json:"purchase_unit_id"`
	ProductionUnitID *uint     `json:"production_unit_id"`
	MinStock         float64   `json:"min_stock" validate:"gte=0"`
	IsActive         bool      `gorm:"default:true" json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (m *Material) PrimaryKey() uint { return m.ID }

func (Material) TableName() string { return "materials" }

// Supplier is a yarn vendor.
type Supplier struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:50;not null;uniqueIndex" json:"code" validate:"required,max=50"`
	Name      string    `gorm:"size:200;not null" json:"name" validate:"required"`
	Country   string    `gorm:"size:100" json:"country"`
	Contact   string    `gorm:"size:200" json:"contact"`
	Email     string    `gorm:"size:200" json:"email" validate:"omitempty,email"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Supplier) PrimaryKey() uint { return m.ID }

func (Supplier) TableName() string { return "suppliers" }

// Warehouse is a physical store for yarn stock.
type Warehouse struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:50;not null;uniqueIndex" json:"code" validate:"required,max=50"`
	Name      string    `gorm:"size:200;not null" json:"name" validate:"required"`
	Location  string    `gorm:"size:200" json:"location"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Warehouse) PrimaryKey() uint { return m.ID }

func (Warehouse) TableName() string { return "warehouses" }

// Machine is a loom on a weaving line.
type Machine struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:50;not null;uniqueIndex" json:"code" validate:"required,max=50"`
	Name      string    `gorm:"size:200" json:"name"`
	LineNo    string    `gorm:"size:20" json:"line_no"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Machine) PrimaryKey() uint { return m.ID }

func (Machine) TableName() string { return "machines" }

// Product is a woven article with a BOM per year.
type Product struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:50;not null;uniqueIndex" json:"code" validate:"required,max=50"`
	Name      string    `gorm:"size:200;not null" json:"name" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Product) PrimaryKey() uint { return m.ID }

func (Product) TableName() string { return "products" }

// BasketStatus tracks whether a basket can receive yarn.
type BasketStatus string

const (
	BasketReady   BasketStatus = "READY"
	BasketInUse   BasketStatus = "IN_USE"
	BasketDamaged BasketStatus = "DAMAGED"
)

// Basket is a physical production-run container.
type Basket struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	Code      string       `gorm:"size:50;not null;uniqueIndex" json:"code" validate:"required,max=50"`
	Status    BasketStatus `gorm:"size:20;not null;default:READY;index" json:"status" validate:"omitempty,oneof=READY IN_USE DAMAGED"`
	TareKg    float64      `json:"tare_kg"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (m *Basket) PrimaryKey() uint { return m.ID }

func (Basket) TableName() string { return "baskets" }

// BeforeCreate defaults new baskets to READY
func (b *Basket) BeforeCreate(tx *gorm.DB) error {
	if b.Status == "" {
		b.Status = BasketReady
	}
	return nil
}
