package models

import (
	"time"

	"ReserveDesk/internal/domain/units"
)

// AuditLevel controls how much decision history a run emits.
type AuditLevel string

const (
	AuditSummary AuditLevel = "summary"
	// AuditVerbose keeps superseded decisions from earlier passes in the
	// output trace instead of only the final decision per company.
	AuditVerbose AuditLevel = "verbose"
)

// ReservesConfig parameterizes one engine invocation.
type ReservesConfig struct {
	// ReserveFractionBps is the share of fund size held back for
	// follow-ons, bounded to [0, 10000].
	ReserveFractionBps units.BasisPoints
	// RemainPasses is 0 or 1: whether companies flagged Remain get a
	// delayed second allocation pass against leftover reserve.
	RemainPasses int
	// RemainDelayQuarters offsets the remain pass from the input quarter.
	RemainDelayQuarters int
	CapPolicy           CapPolicy
	AuditLevel          AuditLevel
	// MaxDuration is the engine's fail-fast budget. Zero means no budget.
	MaxDuration time.Duration
}

// ReservesInput is the portfolio side of an invocation.
type ReservesInput struct {
	Companies     []Company
	FundSizeCents units.Cents
	QuarterIndex  int
}

// Reason codes recorded on allocation decisions.
const (
	ReasonAllocated        = "allocated"
	ReasonCapZero          = "cap_zero"
	ReasonReserveExhausted = "reserve_exhausted"
	ReasonRemainTopUp      = "remain_top_up"
)

// AllocationDecision is one company's outcome for one pass. Decisions are
// immutable once created; a remain pass supersedes (never mutates) the
// first-pass decision for the same company.
type AllocationDecision struct {
	CompanyID          string      `json:"companyId"`
	PlannedAmountCents units.Cents `json:"plannedAmountCents"`
	ReasonCode         string      `json:"reasonCode"`
	CapAppliedCents    units.Cents `json:"capAppliedCents"`
	Iteration          int         `json:"iteration"`
	Superseded         bool        `json:"superseded,omitempty"`
}

// RankedCompany is one entry of the audit ranking: the ranking key and the
// candidate amount it was computed against.
type RankedCompany struct {
	CompanyID      string      `json:"companyId"`
	ExitMOIC       float64     `json:"exitMoic"`
	CandidateCents units.Cents `json:"candidateCents"`
}

// RunMetadata is the audit trailer of a run. Persisted verbatim by callers
// that keep outputs as audit records.
type RunMetadata struct {
	TotalAvailableCents     units.Cents     `json:"totalAvailableCents"`
	TotalAllocatedCents     units.Cents     `json:"totalAllocatedCents"`
	CompaniesFunded         int             `json:"companiesFunded"`
	MaxIterationsUsed       int             `json:"maxIterationsUsed"`
	ConservationCheckPassed bool            `json:"conservationCheckPassed"`
	ExitMOICRanking         []RankedCompany `json:"exitMoicRanking"`
	QuarterIndex            int             `json:"quarterIndex"`
	RemainPassQuarter       int             `json:"remainPassQuarter,omitempty"`
}

// ReservesOutput is the full result of one engine run. Newly constructed
// per run, owned by the caller, never retained by the engine.
type ReservesOutput struct {
	Allocations    []AllocationDecision `json:"allocations"`
	RemainingCents units.Cents          `json:"remainingCents"`
	Metadata       RunMetadata          `json:"metadata"`
	// Trace carries superseded decisions when AuditLevel is verbose.
	Trace []AllocationDecision `json:"trace,omitempty"`
}

// TotalAllocatedCents sums live (non-superseded) decisions.
func (o *ReservesOutput) TotalAllocatedCents() units.Cents {
	var total units.Cents
	for _, d := range o.Allocations {
		total += d.PlannedAmountCents
	}
	return total
}
