package models

import (
	"math"

	"ReserveDesk/internal/domain/units"
)

// CapPolicyKind discriminates the closed set of cap policy variants.
type CapPolicyKind string

const (
	CapFixedPercent CapPolicyKind = "fixed_percent"
	CapStageBased   CapPolicyKind = "stage_based"
	CapCustom       CapPolicyKind = "custom"
)

// CustomCapFn is caller-supplied cap logic for the Custom variant. It
// returns a percentage of invested capital (100 = one full check). The
// engine treats the result as untrusted and clamps it.
type CustomCapFn func(Company) float64

// CapPolicy limits the reserve any single company may receive, as a
// percentage of its invested capital. Percentages above 100 are permitted
// (flagged as unusual by boundary validation, never rejected).
type CapPolicy struct {
	Kind       CapPolicyKind
	DefaultBps units.BasisPoints
	// StageBps overrides DefaultBps per stage for the StageBased variant.
	StageBps map[string]units.BasisPoints
	Fn       CustomCapFn
}

// FixedPercentPolicy caps every company at pct% of its invested capital.
func FixedPercentPolicy(pct float64) CapPolicy {
	return CapPolicy{Kind: CapFixedPercent, DefaultBps: units.MultipleToBps(pct / 100)}
}

// StageBasedPolicy caps per stage, falling back to defaultPct for stages
// without an override.
func StageBasedPolicy(defaultPct float64, stagePct map[string]float64) CapPolicy {
	overrides := make(map[string]units.BasisPoints, len(stagePct))
	for stage, pct := range stagePct {
		overrides[stage] = units.MultipleToBps(pct / 100)
	}
	return CapPolicy{Kind: CapStageBased, DefaultBps: units.MultipleToBps(defaultPct / 100), StageBps: overrides}
}

// CustomPolicy delegates cap resolution to fn.
func CustomPolicy(fn CustomCapFn) CapPolicy {
	return CapPolicy{Kind: CapCustom, Fn: fn}
}

// Resolve returns the maximum reserve the policy allows for a company, in
// cents, always >= 0. The error is non-nil only for the Custom variant when
// the supplied function produced a negative or non-finite percentage; the
// returned cap is already clamped in that case, so callers may log the
// defect and continue.
func (p CapPolicy) Resolve(c Company) (units.Cents, error) {
	switch p.Kind {
	case CapStageBased:
		bps := p.DefaultBps
		if override, ok := p.StageBps[c.Stage]; ok {
			bps = override
		}
		return units.ApplyBps(c.InvestedCents, bps), nil
	case CapCustom:
		if p.Fn == nil {
			return 0, &PolicyError{CompanyID: c.ID, Raw: math.NaN()}
		}
		pct := p.Fn(c)
		if math.IsNaN(pct) || math.IsInf(pct, 0) || pct < 0 {
			return 0, &PolicyError{CompanyID: c.ID, Raw: pct}
		}
		return units.ApplyBps(c.InvestedCents, units.MultipleToBps(pct/100)), nil
	default:
		// FixedPercent, and the zero value behaves as fixed 0%.
		return units.ApplyBps(c.InvestedCents, p.DefaultBps), nil
	}
}
