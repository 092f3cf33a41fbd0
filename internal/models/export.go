package models

import (
	"time"
)

// MaterialExport is a withdrawal of yarn from a warehouse to production.
type MaterialExport struct {
	ID          uint                   `gorm:"primaryKey" json:"id"`
	ExportCode  string                 `gorm:"size:20;not null;uniqueIndex" json:"export_code"`
	ExportDate  time.Time              `json:"export_date"`
	WarehouseID uint                   `gorm:"not null;index" json:"warehouse_id"`
	RequestedBy string                 `gorm:"size:100" json:"requested_by"`
	Notes       string                 `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Details     []MaterialExportDetail `gorm:"foreignKey:ExportID;constraint:OnDelete:CASCADE" json:"details,omitempty"`
}

func (MaterialExport) TableName() string { return "material_exports" }

// MaterialExportDetail withdraws a quantity of one batch, optionally into a machine/basket.
type MaterialExportDetail struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ExportID      uint      `gorm:"not null;index" json:"export_id"`
	MaterialID    uint      `gorm:"not null;index" json:"material_id"`
	BatchID       uint      `gorm:"not null;index" json:"batch_id"`
	Quantity      float64   `gorm:"not null" json:"quantity"`
	MachineID     *uint     `gorm:"index" json:"machine_id,omitempty"`
	LineNo        string    `gorm:"size:20" json:"line_no"`
	ProductID     *uint     `json:"product_id,omitempty"`
	BasketID      *uint     `gorm:"index" json:"basket_id,omitempty"`
	ComponentType string    `gorm:"size:50" json:"component_type"`
	TicketID      *uint     `gorm:"index" json:"ticket_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (MaterialExportDetail) TableName() string { return "material_export_details" }

// WeavingBasketTicket accumulates yarn fed to a machine/line while open (TimeOut nil).
type WeavingBasketTicket struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	MachineID   uint                `gorm:"not null;index:idx_ticket_machine_line,priority:1" json:"machine_id"`
	LineNo      string              `gorm:"size:20;index:idx_ticket_machine_line,priority:2" json:"line_no"`
	ProductID   uint                `gorm:"not null;index" json:"product_id"`
	BasketID    *uint               `gorm:"index" json:"basket_id,omitempty"`
	TimeIn      time.Time           `json:"time_in"`
	TimeOut     *time.Time          `gorm:"index" json:"time_out,omitempty"`
	GrossWeight float64             `gorm:"not null;default:0" json:"gross_weight"`
	NetWeight   float64             `gorm:"not null;default:0" json:"net_weight"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Yarns       []WeavingTicketYarn `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE" json:"yarns,omitempty"`
}

func (WeavingBasketTicket) TableName() string { return "weaving_basket_tickets" }

// IsOpen reports whether the ticket is still accumulating yarn.
func (t *WeavingBasketTicket) IsOpen() bool {
	return t.TimeOut == nil
}

// WeavingTicketYarn records one batch quantity consumed into a ticket.
type WeavingTicketYarn struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	TicketID       uint      `gorm:"not null;index" json:"ticket_id"`
	BatchID        uint      `gorm:"not null;index" json:"batch_id"`
	MaterialID     uint      `gorm:"not null" json:"material_id"`
	ComponentType  string    `gorm:"size:50" json:"component_type"`
	Quantity       float64   `gorm:"not null" json:"quantity"`
	ExportDetailID *uint     `gorm:"index" json:"export_detail_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (WeavingTicketYarn) TableName() string { return "weaving_ticket_yarns" }
