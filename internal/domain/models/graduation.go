package models

import (
	"fmt"
	"sort"

	"ReserveDesk/internal/domain/units"
)

// GraduationRate models one stage transition: the probability of graduating
// from FromStage to ToStage, the probability of exiting at FromStage, and
// the valuation multiple a graduation implies.
type GraduationRate struct {
	FromStage          string
	ToStage            string
	Probability        float64
	ExitProbability    float64
	ValuationMultiple  float64
	MonthsToTransition int
}

// StageOutcome is the per-stage probability triple the engine consumes.
// Graduation + Exit + Failure always sums to 1; enforced at construction.
type StageOutcome struct {
	GraduationProbability float64
	ExitProbability       float64
	FailureProbability    float64
}

// GraduationMatrix is a named, ordered stage-transition model. Immutable
// after construction.
type GraduationMatrix struct {
	name     string
	rates    []GraduationRate
	outcomes map[string]StageOutcome
}

// NewGraduationMatrix validates rates and builds the per-stage outcome
// table. A stage with graduation + exit > 1 fails construction; a terminal
// stage (empty ToStage) must carry zero graduation probability.
func NewGraduationMatrix(name string, rates []GraduationRate) (*GraduationMatrix, error) {
	outcomes := make(map[string]StageOutcome, len(rates))
	for _, r := range rates {
		if !units.CheckFraction(r.Probability) {
			return nil, fmt.Errorf("%w: stage %s graduation probability %v outside [0,1]",
				ErrMatrixInvalid, r.FromStage, r.Probability)
		}
		if !units.CheckFraction(r.ExitProbability) {
			return nil, fmt.Errorf("%w: stage %s exit probability %v outside [0,1]",
				ErrMatrixInvalid, r.FromStage, r.ExitProbability)
		}
		if r.ToStage == "" && r.Probability != 0 {
			return nil, fmt.Errorf("%w: terminal stage %s has graduation probability %v",
				ErrMatrixInvalid, r.FromStage, r.Probability)
		}
		if r.ToStage != "" && r.ValuationMultiple <= 0 {
			return nil, fmt.Errorf("%w: stage %s->%s valuation multiple must be positive",
				ErrMatrixInvalid, r.FromStage, r.ToStage)
		}
		prev, dup := outcomes[r.FromStage]
		if dup {
			return nil, fmt.Errorf("%w: duplicate rate for stage %s (previous graduation %v)",
				ErrMatrixInvalid, r.FromStage, prev.GraduationProbability)
		}
		total := r.Probability + r.ExitProbability
		if total > 1 {
			return nil, fmt.Errorf("%w: stage %s outgoing probabilities sum to %v (> 1)",
				ErrMatrixInvalid, r.FromStage, total)
		}
		outcomes[r.FromStage] = StageOutcome{
			GraduationProbability: r.Probability,
			ExitProbability:       r.ExitProbability,
			FailureProbability:    1 - total,
		}
	}
	out := &GraduationMatrix{name: name, outcomes: outcomes}
	out.rates = append(out.rates, rates...)
	return out, nil
}

// Name returns the matrix display name.
func (m *GraduationMatrix) Name() string { return m.name }

// Rates returns a copy of the underlying transition records.
func (m *GraduationMatrix) Rates() []GraduationRate {
	out := make([]GraduationRate, len(m.rates))
	copy(out, m.rates)
	return out
}

// Outcome returns the outcome triple for a stage. Unknown stages get a
// zero-graduation, zero-exit outcome (all failure) and ok=false so callers
// can fall back.
func (m *GraduationMatrix) Outcome(stage string) (StageOutcome, bool) {
	o, ok := m.outcomes[stage]
	if !ok {
		return StageOutcome{FailureProbability: 1}, false
	}
	return o, true
}

// Rate returns the transition record for a stage.
func (m *GraduationMatrix) Rate(stage string) (GraduationRate, bool) {
	for _, r := range m.rates {
		if r.FromStage == stage {
			return r, true
		}
	}
	return GraduationRate{}, false
}

// Stages lists the stages covered by the matrix in deterministic order.
func (m *GraduationMatrix) Stages() []string {
	stages := make([]string, 0, len(m.outcomes))
	for s := range m.outcomes {
		stages = append(stages, s)
	}
	sort.Strings(stages)
	return stages
}
