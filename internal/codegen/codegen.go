// Package codegen allocates document numbers by scanning the highest existing
// code for the current prefix and incrementing its numeric suffix.
//
// Allocation holds no database lock. Two concurrent writers can compute the same
// number; the unique index rejects the second insert and Run retries the whole
// operation with a fresh number.
package codegen

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/database"
	"gorm.io/gorm"
)

// Series describes one numbering scheme.
type Series struct {
	Name   string
	Table  string
	Column string
	Prefix func(now time.Time) string
	Width  int
}

var (
	// BatchCode: V{YY}{0001..}, reset each calendar year.
	BatchCode = Series{
		Name:   "batch",
		Table:  "batches",
		Column: "internal_batch_code",
		Prefix: func(now time.Time) string { return "V" + now.Format("06") },
		Width:  4,
	}
	// PONumber: V + 8-digit global sequence.
	PONumber = Series{
		Name:   "purchase_order",
		Table:  "purchase_orders",
		Column: "po_number",
		Prefix: func(time.Time) string { return "V" },
		Width:  8,
	}
	// ReceiptNumber: YYYY/MM-###, reset each month.
	ReceiptNumber = Series{
		Name:   "receipt",
		Table:  "material_receipts",
		Column: "receipt_number",
		Prefix: func(now time.Time) string { return now.Format("2006/01") + "-" },
		Width:  3,
	}
	// ExportCode: YYYYMM-####, reset each month.
	ExportCode = Series{
		Name:   "export",
		Table:  "material_exports",
		Column: "export_code",
		Prefix: func(now time.Time) string { return now.Format("200601") + "-" },
		Width:  4,
	}
)

// NextFromLast returns the code following last within prefix.
// An empty or unparsable last value seeds the sequence at 1.
func NextFromLast(prefix, last string, width int) string {
	seq := 1
	if last != "" {
		if n, err := strconv.Atoi(strings.TrimPrefix(last, prefix)); err == nil && n >= 0 {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%0*d", prefix, width, seq)
}

// Generator allocates codes and retries operations that lose an allocation race.
type Generator struct {
	now         func() time.Time
	locker      Locker
	maxAttempts int
	log         logrus.FieldLogger
}

// Option configures a Generator
type Option func(*Generator)

// WithClock overrides the time source used for year/month prefixes.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithLocker serialises allocation per series across processes.
func WithLocker(l Locker) Option {
	return func(g *Generator) { g.locker = l }
}

// WithMaxAttempts bounds Run's retries.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l logrus.FieldLogger) Option {
	return func(g *Generator) { g.log = l }
}

// NewGenerator creates a Generator with a no-op locker and three attempts
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		now:         time.Now,
		locker:      NopLocker{},
		maxAttempts: 3,
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Now returns the generator's current time.
func (g *Generator) Now() time.Time {
	return g.now()
}

// Next returns the next unused code of s as seen by db (usually the open transaction).
func (g *Generator) Next(db *gorm.DB, s Series) (string, error) {
	prefix := s.Prefix(g.now())

	var last string
	err := db.Table(s.Table).
		Select(s.Column).
		Where(s.Column+" LIKE ?", prefix+"%").
		Order(s.Column + " DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil {
		return "", fmt.Errorf("scan last %s code: %w", s.Name, err)
	}
	return NextFromLast(prefix, last, s.Width), nil
}

// Run executes fn, repeating it while it fails with a unique violation.
// fn must be a whole transaction that allocates its codes through Next.
func (g *Generator) Run(ctx context.Context, s Series, fn func(ctx context.Context) error) error {
	release, err := g.locker.Obtain(ctx, "codegen:"+s.Name)
	if err != nil {
		return err
	}
	defer release()

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || !database.IsUniqueViolation(err) {
			return err
		}
		if attempt >= g.maxAttempts {
			return apperr.Conflict("could not allocate a unique %s number after %d attempts", s.Name, attempt)
		}
		g.log.WithFields(logrus.Fields{
			"series":  s.Name,
			"attempt": attempt,
		}).Warn("number collision, retrying")
	}
}
