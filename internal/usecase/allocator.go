package usecase

import (
	"fmt"
	"time"

	"ReserveDesk/internal/domain/models"
	domrepo "ReserveDesk/internal/domain/repository"
	"ReserveDesk/internal/domain/units"
	applogger "ReserveDesk/pkg/logger"
)

// Allocator is the deterministic reserve allocation engine. It is a pure,
// synchronous computation: the only shared state across invocations is the
// injected metrics recorder, and every output structure is newly built per
// run.
type Allocator struct {
	metrics domrepo.Metrics
	l       *applogger.Logger
	now     func() time.Time
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator)

// WithMetrics injects a metrics recorder.
func WithMetrics(m domrepo.Metrics) AllocatorOption {
	return func(a *Allocator) { a.metrics = m }
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) AllocatorOption {
	return func(a *Allocator) { a.l = l }
}

// WithClock overrides the engine clock. Tests use this to exercise the
// duration budget without sleeping.
func WithClock(now func() time.Time) AllocatorOption {
	return func(a *Allocator) { a.now = now }
}

// NewAllocator creates an engine instance.
func NewAllocator(opts ...AllocatorOption) *Allocator {
	a := &Allocator{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate computes a ReservesOutput for one portfolio. Validation failures
// come back as models.ValidationErrors; a conservation violation comes back
// as *models.ConservationError and must never be repaired by rounding; an
// exceeded duration budget comes back wrapping models.ErrTimeout.
func (a *Allocator) Allocate(input models.ReservesInput, cfg models.ReservesConfig, matrix *models.GraduationMatrix) (*models.ReservesOutput, error) {
	start := a.now()

	if errs := validateRun(input, cfg); len(errs) > 0 {
		a.recordRun("invalid")
		return nil, models.ValidationErrors(errs)
	}

	available := units.ApplyBps(input.FundSizeCents, cfg.ReserveFractionBps)

	cands := buildCandidates(input.Companies, cfg.CapPolicy, matrix, func(err error) {
		if a.metrics != nil {
			a.metrics.RecordError("policy")
		}
		if a.l != nil {
			a.l.Warn("cap policy defect", applogger.Error(err))
		}
	})
	rankCandidates(cands)

	// First pass: greedy down the ranking. The loop always visits every
	// company, even with zero reserve, so the output shape stays uniform.
	remaining := available
	decisions := make([]models.AllocationDecision, 0, len(cands))
	allocatedByID := make(map[string]units.Cents, len(cands))
	for i := range cands {
		if err := a.checkBudget(start, cfg.MaxDuration); err != nil {
			a.recordRun("timeout")
			return nil, err
		}
		d := allocateOne(&cands[i], &remaining, 1)
		allocatedByID[d.CompanyID] = d.PlannedAmountCents
		decisions = append(decisions, d)
	}

	maxIterations := 1
	var trace []models.AllocationDecision
	remainQuarter := 0

	// Remain pass: a delayed top-up round for companies that neither
	// graduated nor exited, re-ranked among themselves against whatever
	// reserve the first pass left over.
	if cfg.RemainPasses == 1 && remaining > 0 {
		remainQuarter = input.QuarterIndex + cfg.RemainDelayQuarters
		topUps := remainCandidates(cands, allocatedByID)
		if len(topUps) > 0 {
			maxIterations = 2
			rankCandidates(topUps)
			for i := range topUps {
				if err := a.checkBudget(start, cfg.MaxDuration); err != nil {
					a.recordRun("timeout")
					return nil, err
				}
				extra := units.MinCents(topUps[i].askCents, remaining)
				if extra <= 0 {
					continue
				}
				remaining -= extra
				id := topUps[i].company.ID
				for j := range decisions {
					if decisions[j].CompanyID != id {
						continue
					}
					if cfg.AuditLevel == models.AuditVerbose {
						superseded := decisions[j]
						superseded.Superseded = true
						trace = append(trace, superseded)
					}
					decisions[j] = models.AllocationDecision{
						CompanyID:          id,
						PlannedAmountCents: decisions[j].PlannedAmountCents + extra,
						ReasonCode:         models.ReasonRemainTopUp,
						CapAppliedCents:    topUps[i].capCents,
						Iteration:          2,
					}
					break
				}
			}
		}
	}

	out := &models.ReservesOutput{
		Allocations:    decisions,
		RemainingCents: remaining,
		Trace:          trace,
		Metadata: models.RunMetadata{
			TotalAvailableCents: available,
			MaxIterationsUsed:   maxIterations,
			ExitMOICRanking:     rankingMetadata(cands),
			QuarterIndex:        input.QuarterIndex,
			RemainPassQuarter:   remainQuarter,
		},
	}

	allocated := out.TotalAllocatedCents()
	out.Metadata.TotalAllocatedCents = allocated
	for _, d := range decisions {
		if d.PlannedAmountCents > 0 {
			out.Metadata.CompaniesFunded++
		}
	}

	// The conservation contract. A violation is an engine bug, surfaced
	// as a fatal fault rather than rounded into balance.
	if allocated+remaining != available {
		a.recordRun("conservation_failure")
		if a.metrics != nil {
			a.metrics.RecordError("conservation")
		}
		return nil, &models.ConservationError{
			AvailableCents: int64(available),
			AllocatedCents: int64(allocated),
			RemainingCents: int64(remaining),
		}
	}
	out.Metadata.ConservationCheckPassed = true

	if a.metrics != nil {
		a.metrics.RecordRemainingReserve(remaining)
		a.metrics.RecordLatency("allocate", a.now().Sub(start).Seconds())
	}
	a.recordRun("ok")
	return out, nil
}

// allocateOne applies the greedy step for one ranked candidate and debits
// the shared remaining balance.
func allocateOne(c *candidate, remaining *units.Cents, iteration int) models.AllocationDecision {
	d := models.AllocationDecision{
		CompanyID:       c.company.ID,
		CapAppliedCents: c.capCents,
		Iteration:       iteration,
	}
	switch {
	case c.capCents == 0:
		d.ReasonCode = models.ReasonCapZero
	case *remaining == 0:
		d.ReasonCode = models.ReasonReserveExhausted
	default:
		amount := units.MinCents(c.askCents, *remaining)
		*remaining -= amount
		d.PlannedAmountCents = amount
		d.ReasonCode = models.ReasonAllocated
	}
	return d
}

// remainCandidates selects companies flagged Remain that still have cap
// headroom, with asks reduced to the unfilled remainder.
func remainCandidates(cands []candidate, allocated map[string]units.Cents) []candidate {
	var out []candidate
	for _, c := range cands {
		if !c.company.Remain {
			continue
		}
		got := allocated[c.company.ID]
		headroom := c.capCents - got
		if headroom <= 0 {
			continue
		}
		c.askCents = headroom
		c.moic = c.company.ExitMOICOnReserves(got + headroom)
		out = append(out, c)
	}
	return out
}

func (a *Allocator) checkBudget(start time.Time, budget time.Duration) error {
	if budget <= 0 {
		return nil
	}
	if a.now().Sub(start) > budget {
		return fmt.Errorf("allocation aborted after %s: %w", budget, models.ErrTimeout)
	}
	return nil
}

func (a *Allocator) recordRun(status string) {
	if a.metrics != nil {
		a.metrics.RecordRun(status)
	}
}

// validateRun checks the input and config bounds the engine relies on.
func validateRun(input models.ReservesInput, cfg models.ReservesConfig) []models.FieldError {
	errs := models.ValidateCompanies(input.Companies)
	if !units.CheckCents(input.FundSizeCents) {
		errs = append(errs, models.FieldError{Field: "fundSizeCents", Code: "ERR_RANGE", Message: "fund size must be within the safe integer domain"})
	}
	if !units.CheckBoundedBps(cfg.ReserveFractionBps) {
		errs = append(errs, models.FieldError{Field: "reserveFractionBps", Code: "ERR_RANGE", Message: "reserve fraction must be within [0, 10000] bps"})
	}
	if cfg.RemainPasses < 0 || cfg.RemainPasses > 1 {
		errs = append(errs, models.FieldError{Field: "remainPasses", Code: "ERR_RANGE", Message: "remainPasses must be 0 or 1"})
	}
	return errs
}
