// Package weaving exposes the basket tickets that exports feed yarn into.
package weaving

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/utils"
	"gorm.io/gorm"
)

// Service handles weaving basket tickets
type Service struct {
	db    *database.DB
	audit audit.Writer
	log   logrus.FieldLogger
}

// NewService creates a new weaving service
func NewService(db *database.DB, aw audit.Writer, log logrus.FieldLogger) *Service {
	return &Service{db: db, audit: aw, log: log.WithField("module", "weaving")}
}

// ListFilter narrows List
type ListFilter struct {
	MachineID uint
	OpenOnly  bool
}

// List returns tickets newest first, with their yarn rows.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.WeavingBasketTicket, error) {
	q := s.db.WithContext(ctx).Preload("Yarns")
	if f.MachineID != 0 {
		q = q.Where("machine_id = ?", f.MachineID)
	}
	if f.OpenOnly {
		q = q.Where("time_out IS NULL")
	}
	var out []models.WeavingBasketTicket
	if err := q.Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return out, nil
}

// Get loads one ticket with its yarn rows.
func (s *Service) Get(ctx context.Context, id uint) (*models.WeavingBasketTicket, error) {
	return database.First[models.WeavingBasketTicket](s.db.WithContext(ctx).Preload("Yarns"), id, "ticket")
}

// OutputInput is the weighed production of a ticket. Net weight is gross minus the basket tare.
type OutputInput struct {
	GrossWeight float64 `json:"gross_weight" validate:"gt=0"`
	Close       bool    `json:"close"`
}

// RecordOutput stores the weighed output and optionally closes the ticket.
// Closing frees the machine line for a new ticket.
func (s *Service) RecordOutput(ctx context.Context, id uint, in OutputInput) (*models.WeavingBasketTicket, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	var out *models.WeavingBasketTicket
	err := s.db.Tx(ctx, func(tx *gorm.DB) error {
		t, err := database.FirstForUpdate[models.WeavingBasketTicket](tx, id, "ticket")
		if err != nil {
			return err
		}
		if !t.IsOpen() {
			return apperr.Conflict("ticket %d is closed", id)
		}
		before := *t

		tare := 0.0
		if t.BasketID != nil {
			basket, err := database.First[models.Basket](tx, *t.BasketID, "basket")
			if err != nil {
				return err
			}
			tare = basket.TareKg
		}
		net := utils.Add4(in.GrossWeight, -tare)
		if net < 0 {
			return apperr.Validation("gross weight %.4f is below the basket tare %.4f", in.GrossWeight, tare)
		}
		updates := map[string]any{
			"gross_weight": utils.Round4(in.GrossWeight),
			"net_weight":   net,
		}
		if in.Close {
			updates["time_out"] = time.Now().UTC()
		}
		if err := tx.Model(t).Updates(updates).Error; err != nil {
			return fmt.Errorf("record output of ticket %d: %w", id, err)
		}
		if in.Close && t.BasketID != nil {
			if err := tx.Model(&models.Basket{}).Where("id = ?", *t.BasketID).Update("status", models.BasketReady).Error; err != nil {
				return fmt.Errorf("release basket %d: %w", *t.BasketID, err)
			}
		}
		if out, err = database.First[models.WeavingBasketTicket](tx.Preload("Yarns"), id, "ticket"); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "ticket", EntityID: id, Action: audit.ActionUpdate, Before: before, After: out})
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"ticket_id": id, "gross": in.GrossWeight, "closed": in.Close}).Info("ticket output recorded")
	return out, nil
}
