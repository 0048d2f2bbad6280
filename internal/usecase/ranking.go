package usecase

import (
	"sort"

	"ReserveDesk/internal/domain/models"
	"ReserveDesk/internal/domain/units"
)

// candidate is one company's allocation request for a pass: the cap the
// policy resolved, the graduation-weighted target, and the amount the pass
// will try to place (min of the two).
type candidate struct {
	company     models.Company
	capCents    units.Cents
	targetCents units.Cents
	askCents    units.Cents
	moic        float64
}

// buildCandidates resolves caps and targets for every company. Policy
// defects are clamped and reported through onPolicyError; they never abort
// the run.
func buildCandidates(companies []models.Company, policy models.CapPolicy, matrix *models.GraduationMatrix, onPolicyError func(error)) []candidate {
	out := make([]candidate, 0, len(companies))
	for _, c := range companies {
		capCents, err := policy.Resolve(c)
		if err != nil {
			if onPolicyError != nil {
				onPolicyError(err)
			}
			capCents = 0
		}
		target := graduationTarget(c, matrix, capCents)
		ask := units.MinCents(capCents, target)
		out = append(out, candidate{
			company:     c,
			capCents:    capCents,
			targetCents: target,
			askCents:    ask,
			moic:        c.ExitMOICOnReserves(ask),
		})
	}
	return out
}

// graduationTarget is the probability-weighted follow-on target: invested
// capital scaled by the stage's graduation probability and next-round
// valuation multiple. Companies without a stage in the matrix fall back to
// the cap, leaving the cap as the only binding constraint.
func graduationTarget(c models.Company, matrix *models.GraduationMatrix, capCents units.Cents) units.Cents {
	if matrix == nil || c.Stage == "" {
		return capCents
	}
	rate, ok := matrix.Rate(c.Stage)
	if !ok {
		return capCents
	}
	weighted := float64(c.InvestedCents) * rate.Probability * rate.ValuationMultiple
	return units.ClampCents(units.Cents(weighted + 0.5))
}

// rankCandidates orders by exit MOIC on planned reserves descending, ties
// broken by company id so identical inputs always rank identically.
func rankCandidates(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].moic != cands[j].moic {
			return cands[i].moic > cands[j].moic
		}
		return cands[i].company.ID < cands[j].company.ID
	})
}

// rankingMetadata snapshots the ranking for the audit trailer.
func rankingMetadata(cands []candidate) []models.RankedCompany {
	out := make([]models.RankedCompany, 0, len(cands))
	for _, c := range cands {
		out = append(out, models.RankedCompany{
			CompanyID:      c.company.ID,
			ExitMOIC:       c.moic,
			CandidateCents: c.askCents,
		})
	}
	return out
}
