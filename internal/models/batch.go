package models

import (
	"time"

	"gorm.io/datatypes"
)

// QCStatus is the quality gate of a batch.
type QCStatus string

const (
	QCPending QCStatus = "Pending"
	QCPass    QCStatus = "Pass"
	QCFail    QCStatus = "Fail"
	QCExpired QCStatus = "Expired"
)

// Batch is the lot-traceability unit for one receipt line or one manual entry.
type Batch struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	InternalBatchCode string     `gorm:"size:20;not null;uniqueIndex" json:"internal_batch_code"`
	SupplierBatchNo   string     `gorm:"size:100;index" json:"supplier_batch_no"`
	MaterialID        uint       `gorm:"not null;index" json:"material_id"`
	ManufactureDate   *time.Time `json:"manufacture_date,omitempty"`
	ExpiryDate        *time.Time `json:"expiry_date,omitempty"`
	OriginCountry     string     `gorm:"size:100" json:"origin_country"`
	Location          string     `gorm:"size:100" json:"location"`
	QCStatus          QCStatus   `gorm:"column:qc_status;size:20;not null;default:Pending;index" json:"qc_status"`
	QCNote            string     `gorm:"column:qc_note;size:500" json:"qc_note"`
	ReceiptDetailID   *uint      `gorm:"uniqueIndex" json:"receipt_detail_id,omitempty"`
	IsActive          bool       `gorm:"default:true;index" json:"is_active"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// Filled on read through batch -> receipt detail -> receipt
	ReceiptNumber string `gorm:"-" json:"receipt_number,omitempty"`
}

func (Batch) TableName() string { return "batches" }

// IQCResult is one incoming quality test of a batch.
type IQCResult struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	BatchID         uint           `gorm:"not null;index" json:"batch_id"`
	TestDate        time.Time      `json:"test_date"`
	Inspector       string         `gorm:"size:100" json:"inspector"`
	TensileStrength *float64       `json:"tensile_strength,omitempty"`
	Elongation      *float64       `json:"elongation,omitempty"`
	ColorFastness   *float64       `json:"color_fastness,omitempty"`
	Measurements    datatypes.JSON `json:"measurements,omitempty"`
	FinalResult     QCStatus       `gorm:"size:20;not null;default:Pending" json:"final_result"`
	Notes           string         `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (IQCResult) TableName() string { return "iqc_results" }
