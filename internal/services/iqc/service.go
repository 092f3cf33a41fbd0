// Package iqc records incoming quality tests and pushes their verdict onto the batch.
package iqc

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/services/batch"
	"github.com/xelth-com/loomtrace/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Note returns the canned batch note written for a test verdict.
func Note(result models.QCStatus) string {
	switch result {
	case models.QCPass:
		return "IQC passed"
	case models.QCFail:
		return "IQC failed"
	default:
		return "IQC pending"
	}
}

// Service handles IQC results
type Service struct {
	db    *database.DB
	audit audit.Writer
	log   logrus.FieldLogger
}

// NewService creates a new IQC service
func NewService(db *database.DB, aw audit.Writer, log logrus.FieldLogger) *Service {
	return &Service{db: db, audit: aw, log: log.WithField("module", "iqc")}
}

// CreateInput is one submitted test.
type CreateInput struct {
	BatchID         uint            `json:"batch_id" validate:"required"`
	TestDate        *time.Time      `json:"test_date"`
	Inspector       string          `json:"inspector" validate:"max=100"`
	TensileStrength *float64        `json:"tensile_strength"`
	Elongation      *float64        `json:"elongation"`
	ColorFastness   *float64        `json:"color_fastness"`
	Measurements    datatypes.JSON  `json:"measurements"`
	FinalResult     models.QCStatus `json:"final_result" validate:"required,oneof=Pending Pass Fail"`
	Notes           string          `json:"notes"`
}

// Create stores the result and overwrites the batch QC status with its verdict.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.IQCResult, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	r := &models.IQCResult{
		BatchID:         in.BatchID,
		Inspector:       in.Inspector,
		TensileStrength: in.TensileStrength,
		Elongation:      in.Elongation,
		ColorFastness:   in.ColorFastness,
		Measurements:    in.Measurements,
		FinalResult:     in.FinalResult,
		Notes:           in.Notes,
	}
	if in.TestDate != nil {
		r.TestDate = *in.TestDate
	} else {
		r.TestDate = time.Now().UTC()
	}

	err := s.db.Tx(ctx, func(tx *gorm.DB) error {
		if err := database.Exists[models.Batch](tx, in.BatchID, "batch"); err != nil {
			return err
		}
		if err := tx.Create(r).Error; err != nil {
			return fmt.Errorf("create IQC result: %w", err)
		}
		if _, err := batch.SetQC(tx, r.BatchID, r.FinalResult, Note(r.FinalResult)); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "iqc_result", EntityID: r.ID, Action: audit.ActionCreate, After: r})
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"batch_id": r.BatchID, "result": r.FinalResult}).Info("IQC result recorded")
	return r, nil
}

// UpdateInput lists the fields a client may change on a result.
// Setting FinalResult pushes it onto the batch again.
type UpdateInput struct {
	TestDate        *time.Time       `json:"test_date"`
	Inspector       *string          `json:"inspector" validate:"omitempty,max=100"`
	TensileStrength *float64         `json:"tensile_strength"`
	Elongation      *float64         `json:"elongation"`
	ColorFastness   *float64         `json:"color_fastness"`
	Measurements    *datatypes.JSON  `json:"measurements"`
	FinalResult     *models.QCStatus `json:"final_result" validate:"omitempty,oneof=Pending Pass Fail"`
	Notes           *string          `json:"notes"`
}

// Update patches a result.
func (s *Service) Update(ctx context.Context, id uint, in UpdateInput) (*models.IQCResult, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	var out *models.IQCResult
	err := s.db.Tx(ctx, func(tx *gorm.DB) error {
		r, err := database.FirstForUpdate[models.IQCResult](tx, id, "IQC result")
		if err != nil {
			return err
		}
		before := *r
		updates := map[string]any{}
		if in.TestDate != nil {
			updates["test_date"] = *in.TestDate
		}
		if in.Inspector != nil {
			updates["inspector"] = *in.Inspector
		}
		if in.TensileStrength != nil {
			updates["tensile_strength"] = *in.TensileStrength
		}
		if in.Elongation != nil {
			updates["elongation"] = *in.Elongation
		}
		if in.ColorFastness != nil {
			updates["color_fastness"] = *in.ColorFastness
		}
		if in.Measurements != nil {
			updates["measurements"] = *in.Measurements
		}
		if in.FinalResult != nil {
			updates["final_result"] = *in.FinalResult
		}
		if in.Notes != nil {
			updates["notes"] = *in.Notes
		}
		if len(updates) > 0 {
			if err := tx.Model(r).Updates(updates).Error; err != nil {
				return fmt.Errorf("update IQC result %d: %w", id, err)
			}
		}
		if in.FinalResult != nil {
			if _, err := batch.SetQC(tx, r.BatchID, *in.FinalResult, Note(*in.FinalResult)); err != nil {
				return err
			}
		}
		if out, err = database.First[models.IQCResult](tx, id, "IQC result"); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "iqc_result", EntityID: id, Action: audit.ActionUpdate, Before: before, After: out})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get loads one result.
func (s *Service) Get(ctx context.Context, id uint) (*models.IQCResult, error) {
	return database.First[models.IQCResult](s.db.WithContext(ctx), id, "IQC result")
}

// ListByBatch returns a batch's results in test order.
func (s *Service) ListByBatch(ctx context.Context, batchID uint) ([]models.IQCResult, error) {
	db := s.db.WithContext(ctx)
	if err := database.Exists[models.Batch](db, batchID, "batch"); err != nil {
		return nil, err
	}
	var out []models.IQCResult
	if err := db.Where("batch_id = ?", batchID).Order("test_date, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list IQC results: %w", err)
	}
	return out, nil
}

// Delete removes a result. The batch keeps whatever status it has.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.db.Tx(ctx, func(tx *gorm.DB) error {
		r, err := database.First[models.IQCResult](tx, id, "IQC result")
		if err != nil {
			return err
		}
		if err := tx.Delete(r).Error; err != nil {
			return fmt.Errorf("delete IQC result %d: %w", id, err)
		}
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "iqc_result", EntityID: id, Action: audit.ActionDelete, Before: r})
	})
}
