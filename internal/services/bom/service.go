// Package bom stores yarn recipes and computes their per-component weights.
package bom

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/reports"
	"github.com/xelth-com/loomtrace/internal/utils"
	"gorm.io/gorm"
)

// Service handles BOM headers and details
type Service struct {
	db    *database.DB
	audit audit.Writer
	log   logrus.FieldLogger
}

// NewService creates a new BOM service
func NewService(db *database.DB, aw audit.Writer, log logrus.FieldLogger) *Service {
	return &Service{db: db, audit: aw, log: log.WithField("module", "bom")}
}

// Input is a full BOM. Update replaces every detail row.
type Input struct {
	ProductID      uint `json:"product_id" validate:"required"`
	ApplicableYear int  `json:"applicable_year" validate:"required,gte=2000,lte=2100"`
	Header
	Notes   string      `json:"notes"`
	Details []Component `json:"details" validate:"dive"`
}

// CalculateInput is a dry run without product or year.
type CalculateInput struct {
	Header
	Details []Component `json:"details" validate:"dive"`
}

// Calculate validates and computes without storing anything.
func (s *Service) Calculate(in CalculateInput) (*Result, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	res := Calculate(in.Header, in.Details)
	return &res, nil
}

func (in Input) rows(bomID uint) (models.BOMHeader, []models.BOMDetail) {
	res := Calculate(in.Header, in.Details)
	h := models.BOMHeader{
		ID:                bomID,
		ProductID:         in.ProductID,
		ApplicableYear:    in.ApplicableYear,
		TargetWeightGm:    in.TargetWeightGm,
		WidthBehindLoomMm: in.WidthBehindLoomMm,
		Picks:             in.Picks,
		TotalScrapPct:     in.TotalScrapPct,
		TotalShrinkagePct: in.TotalShrinkagePct,
		TotalActualWeight: res.TotalActualWeight,
		Notes:             in.Notes,
	}
	details := make([]models.BOMDetail, len(res.Lines))
	for i, l := range res.Lines {
		details[i] = models.BOMDetail{
			BOMID:               bomID,
			MaterialID:          l.MaterialID,
			ComponentType:       l.ComponentType,
			YarnType:            l.YarnType,
			Threads:             l.Threads,
			Dtex:                l.Dtex,
			TwistFactor:         l.TwistFactor,
			CrimpPct:            l.CrimpPct,
			ActualLengthCm:      l.ActualLengthCm,
			TheoreticalWeightGm: l.TheoreticalWeightGm,
			ActualWeightCal:     l.ActualWeightCal,
			WeightPercentage:    l.WeightPercentage,
			BOMGm:               l.BOMGm,
		}
	}
	return h, details
}

func ensureUniqueYear(tx *gorm.DB, productID uint, year int, self uint) error {
	var count int64
	err := tx.Model(&models.BOMHeader{}).
		Where("product_id = ? AND applicable_year = ? AND id <> ?", productID, year, self).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("check BOM uniqueness: %w", err)
	}
	if count > 0 {
		return apperr.Conflict("product %d already has a BOM for %d", productID, year)
	}
	return nil
}

func checkRefs(tx *gorm.DB, in Input) error {
	if err := database.Exists[models.Product](tx, in.ProductID, "product"); err != nil {
		return err
	}
	for _, c := range in.Details {
		if c.MaterialID != nil {
			if err := database.Exists[models.Material](tx, *c.MaterialID, "material"); err != nil {
				return err
			}
		}
	}
	return nil
}

// Create computes and stores a new BOM.
func (s *Service) Create(ctx context.Context, in Input) (*models.BOMHeader, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	var id uint
	err := s.db.Tx(ctx, func(tx *gorm.DB) error {
		if err := checkRefs(tx, in); err != nil {
			return err
		}
		if err := ensureUniqueYear(tx, in.ProductID, in.ApplicableYear, 0); err != nil {
			return err
		}
		h, details := in.rows(0)
		if err := tx.Omit("Details").Create(&h).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.Conflict("product %d already has a BOM for %d", in.ProductID, in.ApplicableYear)
			}
			return fmt.Errorf("create BOM: %w", err)
		}
		if err := insertDetails(tx, h.ID, details); err != nil {
			return err
		}
		h.Details = details
		id = h.ID
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "bom", EntityID: h.ID, Action: audit.ActionCreate, After: h})
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"bom_id": id, "product_id": in.ProductID, "year": in.ApplicableYear}).Info("BOM created")
	return s.Get(ctx, id)
}

func insertDetails(tx *gorm.DB, bomID uint, details []models.BOMDetail) error {
	if len(details) == 0 {
		return nil
	}
	for i := range details {
		details[i].BOMID = bomID
	}
	if err := tx.Create(&details).Error; err != nil {
		return fmt.Errorf("create BOM details: %w", err)
	}
	return nil
}

// Update overwrites the header and recomputes every detail row.
func (s *Service) Update(ctx context.Context, id uint, in Input) (*models.BOMHeader, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	before, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.db.Tx(ctx, func(tx *gorm.DB) error {
		if err := checkRefs(tx, in); err != nil {
			return err
		}
		if err := ensureUniqueYear(tx, in.ProductID, in.ApplicableYear, id); err != nil {
			return err
		}
		h, details := in.rows(id)
		err := tx.Model(&models.BOMHeader{ID: id}).Select(
			"product_id", "applicable_year", "target_weight_gm", "width_behind_loom_mm", "picks",
			"total_scrap_pct", "total_shrinkage_pct", "total_actual_weight", "notes",
		).Updates(&h).Error
		if err != nil {
			return fmt.Errorf("update BOM %d: %w", id, err)
		}
		if err := tx.Where("bom_id = ?", id).Delete(&models.BOMDetail{}).Error; err != nil {
			return fmt.Errorf("clear BOM %d details: %w", id, err)
		}
		if err := insertDetails(tx, id, details); err != nil {
			return err
		}
		h.Details = details
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "bom", EntityID: id, Action: audit.ActionUpdate, Before: before, After: h})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Get loads a BOM with its details in entry order.
func (s *Service) Get(ctx context.Context, id uint) (*models.BOMHeader, error) {
	return database.First[models.BOMHeader](s.db.WithContext(ctx).Preload("Details", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}), id, "BOM")
}

// ListFilter narrows List
type ListFilter struct {
	ProductID uint
	Year      int
}

// List returns BOM headers, latest year first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.BOMHeader, error) {
	q := s.db.WithContext(ctx).Model(&models.BOMHeader{})
	if f.ProductID != 0 {
		q = q.Where("product_id = ?", f.ProductID)
	}
	if f.Year != 0 {
		q = q.Where("applicable_year = ?", f.Year)
	}
	var out []models.BOMHeader
	if err := q.Order("applicable_year DESC, product_id, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list BOMs: %w", err)
	}
	return out, nil
}

// Delete removes a BOM and its details.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.db.Tx(ctx, func(tx *gorm.DB) error {
		h, err := database.First[models.BOMHeader](tx, id, "BOM")
		if err != nil {
			return err
		}
		if err := tx.Where("bom_id = ?", id).Delete(&models.BOMDetail{}).Error; err != nil {
			return fmt.Errorf("delete BOM %d details: %w", id, err)
		}
		if err := tx.Delete(h).Error; err != nil {
			return fmt.Errorf("delete BOM %d: %w", id, err)
		}
		return s.audit.Record(ctx, tx, audit.Entry{Entity: "bom", EntityID: id, Action: audit.ActionDelete, Before: h})
	})
}

// SummaryRow is the thread count of one yarn type within a BOM.
type SummaryRow struct {
	YarnType string  `json:"yarn_type"`
	Threads  float64 `json:"threads"`
}

// Summary groups a BOM's details by yarn type, dropping empty labels and zero totals.
func (s *Service) Summary(ctx context.Context, id uint) ([]SummaryRow, error) {
	db := s.db.WithContext(ctx)
	if err := database.Exists[models.BOMHeader](db, id, "BOM"); err != nil {
		return nil, err
	}
	var rows []SummaryRow
	err := db.Model(&models.BOMDetail{}).
		Select("yarn_type, SUM(threads) AS threads").
		Where("bom_id = ?", id).
		Group("yarn_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("summarise BOM %d: %w", id, err)
	}
	out := rows[:0]
	for _, r := range rows {
		if r.YarnType == "" || utils.Zero(r.Threads) {
			continue
		}
		r.Threads = utils.Round4(r.Threads)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].YarnType < out[j].YarnType })
	return out, nil
}

// SummaryXLSX renders the BOM's details and yarn summary as a workbook.
func (s *Service) SummaryXLSX(ctx context.Context, id uint) ([]byte, error) {
	h, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	summary, err := s.Summary(ctx, id)
	if err != nil {
		return nil, err
	}

	details := reports.Sheet{
		Name: "Components",
		Headings: []string{
			"Component", "Yarn type", "Threads", "Dtex", "Twist", "Crimp %", "Actual length cm",
			"Theoretical g", "Actual g", "Share %", "BOM g/m",
		},
	}
	for _, d := range h.Details {
		details.Rows = append(details.Rows, []any{
			d.ComponentType, d.YarnType, d.Threads, d.Dtex, d.TwistFactor, d.CrimpPct, d.ActualLengthCm,
			d.TheoreticalWeightGm, d.ActualWeightCal, d.WeightPercentage, d.BOMGm,
		})
	}

	yarns := reports.Sheet{Name: "Yarn summary", Headings: []string{"Yarn type", "Threads"}}
	for _, r := range summary {
		yarns.Rows = append(yarns.Rows, []any{r.YarnType, r.Threads})
	}
	return reports.Workbook(details, yarns)
}
