// Package registry provides CRUD for reference data: units, materials,
// suppliers, warehouses, machines, products and baskets.
package registry

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/utils"
	"gorm.io/gorm"
)

// Notifier is told about every committed registry mutation.
type Notifier interface {
	ReferenceChanged(entity string, id uint, action string)
}

type nopNotifier struct{}

func (nopNotifier) ReferenceChanged(string, uint, string) {}

// Record is a reference model addressed by its primary key.
type Record[T any] interface {
	*T
	PrimaryKey() uint
}

// Store is the CRUD surface of one reference table.
type Store[T any, PT Record[T]] struct {
	db     *database.DB
	entity string
	order  string
	audit  audit.Writer
	notify Notifier
	log    logrus.FieldLogger

	// guard runs inside the delete transaction and may veto it.
	guard func(tx *gorm.DB, row PT) error
	// checkUpdate runs inside the update transaction before the write.
	// It may veto the change or fill fields the caller must not set.
	checkUpdate func(tx *gorm.DB, before, row PT) error
}

func newStore[T any, PT Record[T]](db *database.DB, entity, order string, aw audit.Writer, n Notifier, log logrus.FieldLogger) *Store[T, PT] {
	return &Store[T, PT]{db: db, entity: entity, order: order, audit: aw, notify: n, log: log}
}

// Entity names the records of this store in audit and notification messages.
func (s *Store[T, PT]) Entity() string { return s.entity }

// Create validates and inserts row.
func (s *Store[T, PT]) Create(ctx context.Context, row PT) error {
	if err := utils.Validate(row); err != nil {
		return err
	}
	err := s.db.Tx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return s.translate(err, "create")
		}
		return s.audit.Record(ctx, tx, audit.Entry{Entity: s.entity, EntityID: row.PrimaryKey(), Action: audit.ActionCreate, After: row})
	})
	if err != nil {
		return err
	}
	s.changed(row.PrimaryKey(), audit.ActionCreate)
	return nil
}

// Get loads one row.
func (s *Store[T, PT]) Get(ctx context.Context, id uint) (PT, error) {
	row, err := database.First[T](s.db.WithContext(ctx), id, s.entity)
	if err != nil {
		return nil, err
	}
	return PT(row), nil
}

// List returns every row in the store's natural order.
func (s *Store[T, PT]) List(ctx context.Context) ([]T, error) {
	var out []T
	if err := s.db.WithContext(ctx).Order(s.order).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", s.entity, err)
	}
	return out, nil
}

// Update overwrites every column of row id except the primary key and creation time.
func (s *Store[T, PT]) Update(ctx context.Context, id uint, row PT) (PT, error) {
	if err := utils.Validate(row); err != nil {
		return nil, err
	}
	var out PT
	err := s.db.Tx(ctx, func(tx *gorm.DB) error {
		before, err := database.FirstForUpdate[T](tx, id, s.entity)
		if err != nil {
			return err
		}
		if s.checkUpdate != nil {
			if err := s.checkUpdate(tx, PT(before), row); err != nil {
				return err
			}
		}
		if err := tx.Model(PT(before)).Select("*").Omit("id", "created_at").Updates(row).Error; err != nil {
			return s.translate(err, "update")
		}
		after, err := database.First[T](tx, id, s.entity)
		if err != nil {
			return err
		}
		out = PT(after)
		return s.audit.Record(ctx, tx, audit.Entry{Entity: s.entity, EntityID: id, Action: audit.ActionUpdate, Before: before, After: out})
	})
	if err != nil {
		return nil, err
	}
	s.changed(id, audit.ActionUpdate)
	return out, nil
}

// Delete removes row id unless the store's guard refuses.
func (s *Store[T, PT]) Delete(ctx context.Context, id uint) error {
	err := s.db.Tx(ctx, func(tx *gorm.DB) error {
		row, err := database.FirstForUpdate[T](tx, id, s.entity)
		if err != nil {
			return err
		}
		if s.guard != nil {
			if err := s.guard(tx, PT(row)); err != nil {
				return err
			}
		}
		if err := tx.Delete(PT(row)).Error; err != nil {
			return fmt.Errorf("delete %s %d: %w", s.entity, id, err)
		}
		return s.audit.Record(ctx, tx, audit.Entry{Entity: s.entity, EntityID: id, Action: audit.ActionDelete, Before: row})
	})
	if err != nil {
		return err
	}
	s.changed(id, audit.ActionDelete)
	return nil
}

func (s *Store[T, PT]) translate(err error, op string) error {
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("%s with this code already exists", s.entity)
	}
	return fmt.Errorf("%s %s: %w", op, s.entity, err)
}

func (s *Store[T, PT]) changed(id uint, action string) {
	s.log.WithFields(logrus.Fields{"entity": s.entity, "id": id, "action": action}).Info("reference data changed")
	s.notify.ReferenceChanged(s.entity, id, action)
}

// inUse returns a Conflict when any row of model matches query.
func inUse(tx *gorm.DB, model any, label, what string, query string, args ...any) error {
	var count int64
	if err := tx.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return fmt.Errorf("check %s usage: %w", label, err)
	}
	if count > 0 {
		return apperr.Conflict("%s is referenced by %d %s", label, count, what)
	}
	return nil
}
