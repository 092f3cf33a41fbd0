package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog is one recorded mutation with before/after snapshots.
type AuditLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Entity    string         `gorm:"size:50;not null;index:idx_audit_entity,priority:1" json:"entity"`
	EntityID  uint           `gorm:"not null;index:idx_audit_entity,priority:2" json:"entity_id"`
	Action    string         `gorm:"size:20;not null" json:"action"`
	Actor     string         `gorm:"size:100" json:"actor"`
	RequestID string         `gorm:"size:64" json:"request_id"`
	Before    datatypes.JSON `json:"before,omitempty"`
	After     datatypes.JSON `json:"after,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
