package models

import (
	"time"
)

// POStatus defines purchase order states
type POStatus string

const (
	POStatusDraft     POStatus = "Draft"
	POStatusSent      POStatus = "Sent"
	POStatusConfirmed POStatus = "Confirmed"
	POStatusPartial   POStatus = "Partial"
	POStatusCompleted POStatus = "Completed"
	POStatusCancelled POStatus = "Cancelled"
)

// PurchaseOrder is the header of a commitment to buy from a supplier.
type PurchaseOrder struct {
	ID           uint                  `gorm:"primaryKey" json:"id"`
	PONumber     string                `gorm:"column:po_number;size:20;not null;uniqueIndex" json:"po_number"`
	SupplierID   uint                  `gorm:"not null;index" json:"supplier_id"`
	OrderDate    time.Time             `json:"order_date"`
	ExpectedDate *time.Time            `json:"expected_date,omitempty"`
	Incoterm     string                `gorm:"size:20" json:"incoterm"`
	Currency     string                `gorm:"size:3" json:"currency"`
	Status       POStatus              `gorm:"size:20;not null;default:Draft;index" json:"status"`
	Notes        string                `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	Details      []PurchaseOrderDetail `gorm:"foreignKey:POID;constraint:OnDelete:CASCADE" json:"details,omitempty"`
}

func (PurchaseOrder) TableName() string { return "purchase_orders" }

// PurchaseOrderDetail is one ordered line. ReceivedQuantity is written only by receipts.
type PurchaseOrderDetail struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	POID             uint      `gorm:"column:po_id;not null;index" json:"po_id"`
	MaterialID       uint      `gorm:"not null;index" json:"material_id"`
	Quantity         float64   `gorm:"not null" json:"quantity"`
	UnitPrice        float64   `json:"unit_price"`
	ReceivedQuantity float64   `gorm:"not null;default:0" json:"received_quantity"`
	Notes            string    `gorm:"size:500" json:"notes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (PurchaseOrderDetail) TableName() string { return "purchase_order_details" }

// ImportDeclaration is customs paperwork for an inbound shipment.
type ImportDeclaration struct {
	ID              uint                      `gorm:"primaryKey" json:"id"`
	DeclarationNo   string                    `gorm:"size:50;not null;uniqueIndex" json:"declaration_no"`
	DeclarationDate time.Time                 `json:"declaration_date"`
	SupplierID      *uint                     `gorm:"index" json:"supplier_id,omitempty"`
	CustomsOffice   string                    `gorm:"size:200" json:"customs_office"`
	InvoiceNo       string                    `gorm:"size:100" json:"invoice_no"`
	TotalValue      float64                   `json:"total_value"`
	Currency        string                    `gorm:"size:3" json:"currency"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
	Details         []ImportDeclarationDetail `gorm:"foreignKey:DeclarationID;constraint:OnDelete:CASCADE" json:"details,omitempty"`
}

func (ImportDeclaration) TableName() string { return "import_declarations" }

// ImportDeclarationDetail optionally points at the PO line it clears.
type ImportDeclarationDetail struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	DeclarationID uint    `gorm:"not null;index" json:"declaration_id"`
	MaterialID    uint    `gorm:"not null;index" json:"material_id"`
	PODetailID    *uint   `gorm:"column:po_detail_id;index" json:"po_detail_id,omitempty"`
	Quantity      float64 `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
	HSCode        string  `gorm:"column:hs_code;size:20" json:"hs_code"`
}

func (ImportDeclarationDetail) TableName() string { return "import_declaration_details" }
