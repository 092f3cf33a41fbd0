// Package audit records before/after snapshots of every mutation.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xelth-com/loomtrace/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Action names
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Entry describes one mutation. Before is nil on create, After is nil on delete.
type Entry struct {
	Entity   string
	EntityID uint
	Action   string
	Before   any
	After    any
}

// Writer is called by write-path services after a successful mutation,
// with the transaction the mutation ran in.
type Writer interface {
	Record(ctx context.Context, tx *gorm.DB, e Entry) error
}

// GormWriter stores entries in audit_logs inside the caller's transaction.
type GormWriter struct{}

// NewGormWriter creates a Writer backed by the audit_logs table
func NewGormWriter() *GormWriter {
	return &GormWriter{}
}

func (GormWriter) Record(ctx context.Context, tx *gorm.DB, e Entry) error {
	before, err := snapshot(e.Before)
	if err != nil {
		return err
	}
	after, err := snapshot(e.After)
	if err != nil {
		return err
	}
	row := models.AuditLog{
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		Action:    e.Action,
		Actor:     ActorFrom(ctx),
		RequestID: RequestIDFrom(ctx),
		Before:    before,
		After:     after,
	}
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("write audit log for %s %d: %w", e.Entity, e.EntityID, err)
	}
	return nil
}

func snapshot(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal audit snapshot: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, *gorm.DB, Entry) error { return nil }
