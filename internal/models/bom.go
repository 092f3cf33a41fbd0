package models

import (
	"time"
)

// BOMHeader is the yarn recipe of one product for one applicable year.
type BOMHeader struct {
	ID                uint        `gorm:"primaryKey" json:"id"`
	ProductID         uint        `gorm:"not null;uniqueIndex:idx_bom_product_year,priority:1" json:"product_id"`
	ApplicableYear    int         `gorm:"not null;uniqueIndex:idx_bom_product_year,priority:2" json:"applicable_year"`
	TargetWeightGm    float64     `json:"target_weight_gm"`
	WidthBehindLoomMm float64     `json:"width_behind_loom_mm"`
	Picks             float64     `json:"picks"`
	TotalScrapPct     float64     `json:"total_scrap_pct"`
	TotalShrinkagePct float64     `json:"total_shrinkage_pct"`
	TotalActualWeight float64     `json:"total_actual_weight"`
	Notes             string      `gorm:"type:text" json:"notes"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	Details           []BOMDetail `gorm:"foreignKey:BOMID;constraint:OnDelete:CASCADE" json:"details,omitempty"`
}

func (BOMHeader) TableName() string { return "bom_headers" }

// BOMDetail is one yarn component with its computed weights.
type BOMDetail struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	BOMID               uint      `gorm:"column:bom_id;not null;index" json:"bom_id"`
	MaterialID          *uint     `json:"material_id,omitempty"`
	ComponentType       string    `gorm:"size:50;not null" json:"component_type"`
	YarnType            string    `gorm:"size:100" json:"yarn_type"`
	Threads             float64   `json:"threads"`
	Dtex                float64   `json:"dtex"`
	TwistFactor         float64   `json:"twist_factor"`
	CrimpPct            float64   `json:"crimp_pct"`
	ActualLengthCm      float64   `json:"actual_length_cm"`
	TheoreticalWeightGm float64   `json:"theoretical_weight_gm"`
	ActualWeightCal     float64   `json:"actual_weight_cal"`
	WeightPercentage    float64   `json:"weight_percentage"`
	BOMGm               float64   `gorm:"column:bom_gm" json:"bom_gm"`
	CreatedAt           time.Time `json:"created_at"`
}

func (BOMDetail) TableName() string { return "bom_details" }
