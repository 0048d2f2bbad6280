package units

import "math/bits"

// Monetary amounts are integer cents and rates are integer basis points
// everywhere past the HTTP boundary. Converting from human units (dollars,
// 0-100 percentages) happens exactly once, here.

// Cents is a monetary amount in integer cents.
type Cents int64

// BasisPoints is a rate in 1/10000 units.
type BasisPoints int64

const (
	// BpsScale is the number of basis points in 100%.
	BpsScale = 10000

	// MaxSafeCents bounds every monetary field to the 53-bit integer
	// domain so amounts survive a round-trip through JSON numbers.
	MaxSafeCents Cents = 1<<53 - 1
)

// DollarsToCents converts a dollar amount to cents, saturating instead of
// failing: negative input becomes 0, amounts beyond the safe integer
// domain become MaxSafeCents.
func DollarsToCents(dollars float64) Cents {
	if dollars <= 0 || dollars != dollars {
		return 0
	}
	c := Cents(dollars*100 + 0.5)
	if c > MaxSafeCents || c < 0 {
		return MaxSafeCents
	}
	return c
}

// PercentToBps converts a bounded 0-100 percentage to basis points,
// clamping to [0, BpsScale]. Used for portfolio-level fractions such as
// the reserve ratio; cap percentages use MultipleToBps which is unbounded
// above.
func PercentToBps(pct float64) BasisPoints {
	if pct <= 0 || pct != pct {
		return 0
	}
	bps := BasisPoints(pct*100 + 0.5)
	if bps > BpsScale {
		return BpsScale
	}
	return bps
}

// MultipleToBps converts a multiple (e.g. a 4.0x MOIC) to basis points.
// Negative and non-finite input clamps to 0; there is no upper clamp since
// exit multiples and cap percentages may legitimately exceed 100%.
func MultipleToBps(mult float64) BasisPoints {
	if mult <= 0 || mult != mult || mult > float64(1<<40) {
		if mult > 0 {
			return BasisPoints(1) << 40
		}
		return 0
	}
	return BasisPoints(mult*BpsScale + 0.5)
}

// BpsToFraction converts basis points to a 0-based fraction (5000 -> 0.5).
func BpsToFraction(bps BasisPoints) float64 {
	return float64(bps) / BpsScale
}

// ApplyBps computes amount*bps/10000 exactly in integer arithmetic,
// flooring the result. Cap multiples make bps unbounded above, so the
// product is taken in 128 bits; anything past MaxSafeCents saturates.
func ApplyBps(amount Cents, bps BasisPoints) Cents {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(amount), uint64(bps))
	if hi >= BpsScale {
		return MaxSafeCents
	}
	out, _ := bits.Div64(hi, lo, BpsScale)
	if out > uint64(MaxSafeCents) {
		return MaxSafeCents
	}
	return Cents(out)
}

// MinCents returns the smaller of two amounts.
func MinCents(a, b Cents) Cents {
	if a < b {
		return a
	}
	return b
}

// ClampCents saturates an amount into [0, MaxSafeCents]. Conversion
// helpers never reject input; the strict checks below do.
func ClampCents(c Cents) Cents {
	if c < 0 {
		return 0
	}
	if c > MaxSafeCents {
		return MaxSafeCents
	}
	return c
}

// CheckCents is the strict validator counterpart of ClampCents.
func CheckCents(c Cents) bool {
	return c >= 0 && c <= MaxSafeCents
}

// CheckBoundedBps reports whether bps is a valid bounded rate in
// [0, BpsScale].
func CheckBoundedBps(bps BasisPoints) bool {
	return bps >= 0 && bps <= BpsScale
}

// CheckFraction reports whether f is a valid 0-1 fraction (ownership and
// probability fields).
func CheckFraction(f float64) bool {
	return f == f && f >= 0 && f <= 1
}
