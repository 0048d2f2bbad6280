package synthetic

import (
	"context"
	"fmt"

	"ReserveDesk/internal/domain/models"
	domrepo "ReserveDesk/internal/domain/repository"
	"ReserveDesk/internal/domain/units"
)

// seedBase is the fixed constant mixed with the fund size to seed the
// generator. Identical fund parameters always produce an identical
// portfolio, so previews never flicker across repeated calls.
const seedBase uint32 = 0x9E3779B9

var stages = []string{"pre_seed", "seed", "series_a", "series_b"}

var sectors = []string{"fintech", "healthtech", "infra", "consumer", "climate"}

// rng is a 32-bit mixing pseudorandom generator (mulberry32). Good enough
// spread for preview data, fully reproducible, no global state.
type rng struct{ state uint32 }

func newRNG(seed uint32) *rng { return &rng{state: seed} }

func (r *rng) next() uint32 {
	r.state += 0x6D2B79F5
	z := r.state
	z = (z ^ (z >> 15)) * (z | 1)
	z ^= z + (z^(z>>7))*(z|61)
	return z ^ (z >> 14)
}

// float returns a float in [0,1).
func (r *rng) float() float64 {
	return float64(r.next()) / (1 << 32)
}

// between returns a float in [lo,hi).
func (r *rng) between(lo, hi float64) float64 {
	return lo + r.float()*(hi-lo)
}

// intBetween returns an int in [lo,hi].
func (r *rng) intBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + int(r.next()%uint32(hi-lo+1))
}

// Generator builds reproducible preview portfolios when no real portfolio
// exists. It implements repository.PortfolioSource so the engine can be
// pointed at real data later without interface changes.
type Generator struct {
	fundSizeCents      units.Cents
	initialCheckCents  units.Cents
	reserveFractionBps units.BasisPoints
}

// New creates a generator for one set of fund parameters.
func New(fundSizeCents, initialCheckCents units.Cents, reserveFractionBps units.BasisPoints) *Generator {
	return &Generator{
		fundSizeCents:      fundSizeCents,
		initialCheckCents:  initialCheckCents,
		reserveFractionBps: reserveFractionBps,
	}
}

// Companies implements repository.PortfolioSource.
func (g *Generator) Companies(_ context.Context) ([]models.Company, error) {
	return Portfolio(g.fundSizeCents, g.initialCheckCents, g.reserveFractionBps), nil
}

// Portfolio deterministically constructs the synthetic portfolio for the
// given fund parameters. Company count is deployable capital divided by the
// initial check size; every attribute is drawn from the seeded generator.
func Portfolio(fundSizeCents, initialCheckCents units.Cents, reserveFractionBps units.BasisPoints) []models.Company {
	if fundSizeCents <= 0 || initialCheckCents <= 0 {
		return []models.Company{}
	}
	deployable := fundSizeCents - units.ApplyBps(fundSizeCents, reserveFractionBps)
	count := int(deployable / initialCheckCents)
	if count <= 0 {
		return []models.Company{}
	}
	const maxCompanies = 10000
	if count > maxCompanies {
		count = maxCompanies
	}

	seed := seedBase ^ uint32(fundSizeCents) ^ uint32(uint64(fundSizeCents)>>32)
	r := newRNG(seed)

	companies := make([]models.Company, 0, count)
	for i := 0; i < count; i++ {
		// Markup between 0.8x and 12x, skewed low by squaring the draw.
		f := r.float()
		markup := 0.8 + f*f*11.2
		companies = append(companies, models.Company{
			ID:                 fmt.Sprintf("synthetic-%04d", i+1),
			Name:               fmt.Sprintf("Synthetic Co %d", i+1),
			InvestedCents:      initialCheckCents,
			ExitMOICBps:        units.MultipleToBps(markup),
			Stage:              stages[r.intBetween(0, len(stages)-1)],
			Sector:             sectors[r.intBetween(0, len(sectors)-1)],
			Ownership:          r.between(0.05, 0.20),
			Remain:             r.float() < 0.35,
			MonthsToGraduation: r.intBetween(9, 30),
		})
	}
	return companies
}

var _ domrepo.PortfolioSource = (*Generator)(nil)
