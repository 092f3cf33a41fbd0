package bom

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Family is the yarn orientation that selects the weight formula.
type Family string

const (
	Warp Family = "warp"
	Weft Family = "weft"
)

var (
	hundred     = decimal.NewFromInt(100)
	thousand    = decimal.NewFromInt(1000)
	tenThousand = decimal.NewFromInt(10000)
	// divisor of the actual-length formula, kept as the literal the weight sheets use
	actualDivisor = decimal.NewFromInt(11000)
	half          = decimal.NewFromFloat(0.5)
	one           = decimal.NewFromInt(1)

	upper = cases.Upper(language.Und)
)

// NormalizeComponentType upper-cases t and collapses runs of whitespace.
func NormalizeComponentType(t string) string {
	return strings.Join(strings.Fields(upper.String(t)), " ")
}

// FamilyOf classifies a component type. FILLING and anything mentioning WEFT
// is weft; everything else (ground, binder, edge, stuffer, catch cord) is warp.
func FamilyOf(componentType string) Family {
	n := NormalizeComponentType(componentType)
	if n == "FILLING" || strings.Contains(n, "WEFT") {
		return Weft
	}
	return Warp
}

// halvesActual reports the doubled-yarn filling types whose actual weight counts half.
func halvesActual(componentType string) bool {
	n := NormalizeComponentType(componentType)
	return n == "FILLING" || n == "2ND FILLING"
}

// Header carries the fabric-level parameters. Percentages are given as 0..100.
type Header struct {
	TargetWeightGm    float64 `json:"target_weight_gm" validate:"gte=0"`
	WidthBehindLoomMm float64 `json:"width_behind_loom_mm" validate:"gte=0"`
	Picks             float64 `json:"picks" validate:"gte=0"`
	TotalScrapPct     float64 `json:"total_scrap_pct" validate:"gte=0"`
	TotalShrinkagePct float64 `json:"total_shrinkage_pct" validate:"gte=0"`
}

// Component is one yarn of the recipe. A zero twist factor counts as 1.
type Component struct {
	MaterialID     *uint   `json:"material_id"`
	ComponentType  string  `json:"component_type" validate:"required,max=50"`
	YarnType       string  `json:"yarn_type" validate:"max=100"`
	Threads        float64 `json:"threads" validate:"gte=0"`
	Dtex           float64 `json:"dtex" validate:"gte=0"`
	TwistFactor    float64 `json:"twist_factor" validate:"gte=0"`
	CrimpPct       float64 `json:"crimp_pct" validate:"gte=0"`
	ActualLengthCm float64 `json:"actual_length_cm" validate:"gte=0"`
}

// Line is a component with its computed weights, all rounded to 4 decimals.
type Line struct {
	Component
	Family              Family  `json:"family"`
	TheoreticalWeightGm float64 `json:"theoretical_weight_gm"`
	ActualWeightCal     float64 `json:"actual_weight_cal"`
	WeightPercentage    float64 `json:"weight_percentage"`
	BOMGm               float64 `json:"bom_gm"`
}

// Result is the outcome of one calculation.
type Result struct {
	Lines             []Line  `json:"lines"`
	TotalActualWeight float64 `json:"total_actual_weight"`
}

func pct(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Div(hundred)
}

func round(d decimal.Decimal) float64 {
	return d.Round(4).InexactFloat64()
}

// Calculate runs both passes: per-component weights, then normalisation of the
// actual weights against the target weight.
func Calculate(h Header, comps []Component) Result {
	scrap := one.Add(pct(h.TotalScrapPct))
	shrink := one.Add(pct(h.TotalShrinkagePct))
	widthM := decimal.NewFromFloat(h.WidthBehindLoomMm).Div(thousand)
	picks := decimal.NewFromFloat(h.Picks)

	lines := make([]Line, len(comps))
	actuals := make([]decimal.Decimal, len(comps))
	total := decimal.Zero

	for i, c := range comps {
		threads := decimal.NewFromFloat(c.Threads)
		dtex := decimal.NewFromFloat(c.Dtex)
		twist := decimal.NewFromFloat(c.TwistFactor)
		if twist.IsZero() {
			twist = one
		}

		family := FamilyOf(c.ComponentType)
		var theoretical, actual decimal.Decimal
		if family == Weft {
			lengthPerMeter := widthM.Mul(picks).Mul(threads).Mul(twist)
			theoretical = lengthPerMeter.Mul(dtex).Div(tenThousand).Mul(scrap).Mul(shrink)
			actual = theoretical
		} else {
			crimp := one.Add(pct(c.CrimpPct))
			theoretical = threads.Mul(dtex).Mul(twist).Mul(crimp).Div(tenThousand).Mul(scrap).Mul(shrink)
			actual = decimal.NewFromFloat(c.ActualLengthCm).Div(hundred).Mul(dtex.Div(actualDivisor)).Mul(threads)
		}
		if halvesActual(c.ComponentType) {
			actual = actual.Mul(half)
		}
		actual = actual.Round(4)

		lines[i] = Line{
			Component:           c,
			Family:              family,
			TheoreticalWeightGm: round(theoretical),
			ActualWeightCal:     actual.InexactFloat64(),
		}
		actuals[i] = actual
		total = total.Add(actual)
	}

	target := decimal.NewFromFloat(h.TargetWeightGm)
	for i := range lines {
		if total.IsZero() {
			continue
		}
		share := actuals[i].Div(total).Mul(hundred)
		lines[i].WeightPercentage = round(share)
		lines[i].BOMGm = round(share.Div(hundred).Mul(target).Mul(scrap))
	}

	return Result{Lines: lines, TotalActualWeight: round(total)}
}
