package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrBelowMinNotional = errors.New("notional below min")
)

// stepTolerance absorbs binary-float noise in quantities that callers
// produced with float arithmetic before handing them over.
var stepTolerance = decimal.New(1, -8)

// ValidationOutcome is produced fresh per validation call and never
// persisted. Err is terminal (the order must not be submitted); a Warning
// with IsValid=false means the adjusted quantity may be submitted only with
// explicit caller confirmation, while IsValid=true with a Warning is an
// allowed auto-adjustment.
type ValidationOutcome struct {
	IsValid     bool
	AdjustedQty decimal.Decimal
	MinQuantity decimal.Decimal
	MinNotional decimal.Decimal
	Price       decimal.Decimal
	Warning     string
	Err         error
}

// ReconcileQuantity checks a requested order quantity against the symbol's
// LOT_SIZE and MIN_NOTIONAL filters at the given price.
//
// The exchange's real floor is whichever filter binds tighter at the current
// price: max(minQty, minNotional/price). A shortfall is always pushed up to
// that floor (rounded up to the step grid); a step misalignment above the
// floor is truncated down to keep the order close to what was asked, and
// only rounded up when truncation would undercut the floor. If the step
// rounding leaves the notional below the minimum there is no further
// auto-adjustment: the outcome carries a terminal Err.
func ReconcileQuantity(requested, price decimal.Decimal, f SymbolFilter) ValidationOutcome {
	out := ValidationOutcome{
		AdjustedQty: requested,
		MinQuantity: f.MinQty,
		MinNotional: f.MinNotional,
		Price:       price,
	}
	if price.Cmp(decimal.Zero) <= 0 {
		out.Err = fmt.Errorf("%w: price must be > 0", ErrInvalidQuantity)
		return out
	}

	minFromNotional := f.MinNotional.Div(price)
	actualMin := f.MinQty
	if minFromNotional.Cmp(actualMin) > 0 {
		actualMin = minFromNotional
	}

	if requested.Cmp(actualMin) < 0 {
		out.AdjustedQty = actualMin
		if f.StepSize.Cmp(decimal.Zero) > 0 {
			out.AdjustedQty = RoundUpToStep(actualMin, f.StepSize)
		}
		out.Warning = shortfallWarning(requested, price, f, minFromNotional, actualMin, out.AdjustedQty)
		return out
	}

	if f.StepSize.Cmp(decimal.Zero) > 0 {
		remainder := requested.Mod(f.StepSize)
		if remainder.Cmp(stepTolerance) > 0 {
			out.AdjustedQty = requested.Sub(remainder)
			if out.AdjustedQty.Cmp(actualMin) < 0 {
				out.AdjustedQty = RoundUpToStep(requested, f.StepSize)
			}
			out.Warning = stepWarning(requested, price, f.StepSize, out.AdjustedQty)
		}
	}

	if f.MinNotional.Cmp(decimal.Zero) > 0 {
		notional := out.AdjustedQty.Mul(price)
		if notional.Cmp(f.MinNotional) < 0 {
			out.IsValid = false
			out.Err = ErrBelowMinNotional
			return out
		}
	}

	out.IsValid = true
	return out
}

func RoundDownToStep(value, step decimal.Decimal) decimal.Decimal {
	if step.Cmp(decimal.Zero) <= 0 {
		return value
	}
	return value.Div(step).Floor().Mul(step)
}

func RoundUpToStep(value, step decimal.Decimal) decimal.Decimal {
	if step.Cmp(decimal.Zero) <= 0 {
		return value
	}
	return value.Div(step).Ceil().Mul(step)
}

func shortfallWarning(requested, price decimal.Decimal, f SymbolFilter, minFromNotional, actualMin, adjusted decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "quantity below exchange minimum for %s:\n", f.Symbol)
	fmt.Fprintf(&b, "  requested:            %s\n", requested)
	fmt.Fprintf(&b, "  current price:        %s\n", price)
	fmt.Fprintf(&b, "  LOT_SIZE min qty:     %s\n", f.MinQty)
	fmt.Fprintf(&b, "  MIN_NOTIONAL min qty: %s (min notional %s)\n", minFromNotional, f.MinNotional)
	fmt.Fprintf(&b, "  effective minimum:    %s\n", actualMin)
	fmt.Fprintf(&b, "  adjusted quantity:    %s\n", adjusted)
	fmt.Fprintf(&b, "  adjusted notional:    %s", adjusted.Mul(price))
	return b.String()
}

func stepWarning(requested, price, step, adjusted decimal.Decimal) string {
	var b strings.Builder
	b.WriteString("quantity adjusted to step size:\n")
	fmt.Fprintf(&b, "  requested:         %s\n", requested)
	fmt.Fprintf(&b, "  step size:         %s\n", step)
	fmt.Fprintf(&b, "  adjusted quantity: %s\n", adjusted)
	fmt.Fprintf(&b, "  adjusted notional: %s", adjusted.Mul(price))
	return b.String()
}
