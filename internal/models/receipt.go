package models

import (
	"time"
)

// MaterialReceipt is one physical delivery into a warehouse.
type MaterialReceipt struct {
	ID                  uint                    `gorm:"primaryKey" json:"id"`
	ReceiptNumber       string                  `gorm:"size:20;not null;uniqueIndex" json:"receipt_number"`
	ReceiptDate         time.Time               `json:"receipt_date"`
	WarehouseID         uint                    `gorm:"not null;index" json:"warehouse_id"`
	SupplierID          *uint                   `gorm:"index" json:"supplier_id,omitempty"`
	POID                *uint                   `gorm:"column:po_id;index" json:"po_id,omitempty"`
	ImportDeclarationID *uint                   `gorm:"index" json:"import_declaration_id,omitempty"`
	Notes               string                  `gorm:"type:text" json:"notes"`
	CreatedAt           time.Time               `json:"created_at"`
	UpdatedAt           time.Time               `json:"updated_at"`
	Details             []MaterialReceiptDetail `gorm:"foreignKey:ReceiptID;constraint:OnDelete:CASCADE" json:"details,omitempty"`
}

func (MaterialReceipt) TableName() string { return "material_receipts" }

// MaterialReceiptDetail is one received line. It seeds exactly one Batch.
type MaterialReceiptDetail struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	ReceiptID             uint      `gorm:"not null;index" json:"receipt_id"`
	MaterialID            uint      `gorm:"not null;index" json:"material_id"`
	ReceivedQuantityKg    float64   `gorm:"not null" json:"received_quantity_kg"`
	ReceivedQuantityCones int       `json:"received_quantity_cones"`
	PalletCount           int       `json:"pallet_count"`
	SupplierBatchNo       string    `gorm:"size:100" json:"supplier_batch_no"`
	OriginCountry         string    `gorm:"size:100" json:"origin_country"`
	Location              string    `gorm:"size:100" json:"location"`
	Notes                 string    `gorm:"size:500" json:"notes"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`

	// Filled on read
	InternalBatchCode string `gorm:"-" json:"internal_batch_code,omitempty"`
	BatchID           uint   `gorm:"-" json:"batch_id,omitempty"`
}

func (MaterialReceiptDetail) TableName() string { return "material_receipt_details" }
