package models

import (
	"time"

	"ReserveDesk/internal/domain/units"
)

// Requests for reserve HTTP endpoints. Bodies arrive in human units
// (dollars, 0-100 percentages); conversion to cents/bps happens in the
// ToDomain methods, after validation.

type CompanyRequest struct {
	ID                 string  `json:"id" validate:"required"`
	Name               string  `json:"name"`
	InvestedDollars    float64 `json:"investedDollars" validate:"gte=0"`
	ExitMOIC           float64 `json:"exitMoic" validate:"gte=0"`
	Stage              string  `json:"stage"`
	Sector             string  `json:"sector"`
	Ownership          float64 `json:"ownership" validate:"gte=0,lte=1"`
	Remain             bool    `json:"remain"`
	MonthsToGraduation int     `json:"monthsToGraduation" validate:"gte=0"`
}

type GraduationRateRequest struct {
	FromStage          string  `json:"fromStage" validate:"required"`
	ToStage            string  `json:"toStage"`
	Probability        float64 `json:"probability" validate:"gte=0,lte=1"`
	ExitProbability    float64 `json:"exitProbability" validate:"gte=0,lte=1"`
	ValuationMultiple  float64 `json:"valuationMultiple" validate:"gte=0"`
	MonthsToTransition int     `json:"monthsToTransition" default:"18" validate:"gte=0"`
}

type CapPolicyRequest struct {
	Kind           string             `json:"kind" default:"fixed_percent" validate:"oneof=fixed_percent stage_based"`
	DefaultPercent float64            `json:"defaultPercent" default:"100" validate:"gte=0"`
	StagePercents  map[string]float64 `json:"stagePercents"`
}

type AllocateRequest struct {
	Companies           []CompanyRequest        `json:"companies" validate:"max=10000,dive"`
	FundSizeDollars     float64                 `json:"fundSizeDollars" validate:"required,gt=0"`
	QuarterIndex        int                     `json:"quarterIndex" validate:"gte=0"`
	FundInceptionDate   string                  `json:"fundInceptionDate" validate:"omitempty,datetime=2006-01-02"`
	ReserveFractionPct  float64                 `json:"reserveFractionPct" default:"50" validate:"gte=0,lte=100"`
	RemainPasses        int                     `json:"remainPasses" default:"1" validate:"gte=0,lte=1"`
	RemainDelayQuarters int                     `json:"remainDelayQuarters" default:"4" validate:"gte=0,lte=40"`
	AuditLevel          string                  `json:"auditLevel" default:"summary" validate:"oneof=summary verbose"`
	CapPolicy           CapPolicyRequest        `json:"capPolicy"`
	GraduationRates     []GraduationRateRequest `json:"graduationRates" validate:"dive"`
}

type PreviewRequest struct {
	FundSizeDollars         float64 `json:"fundSizeDollars" validate:"required,gt=0"`
	InitialCheckSizeDollars float64 `json:"initialCheckSizeDollars" validate:"required,gt=0"`
	ReserveFractionPct      float64 `json:"reserveFractionPct" default:"50" validate:"gte=0,lte=100"`
	RemainPasses            int     `json:"remainPasses" default:"1" validate:"gte=0,lte=1"`
	CapDefaultPercent       float64 `json:"capDefaultPercent" default:"100" validate:"gte=0"`
}

type RankingRequest struct {
	Companies       []CompanyRequest `json:"companies" validate:"required,max=10000,dive"`
	FundSizeDollars float64          `json:"fundSizeDollars" validate:"required,gt=0"`
}

// ToDomain converts a validated company request to engine units.
func (r CompanyRequest) ToDomain() Company {
	return Company{
		ID:                 r.ID,
		Name:               r.Name,
		InvestedCents:      units.DollarsToCents(r.InvestedDollars),
		ExitMOICBps:        units.MultipleToBps(r.ExitMOIC),
		Stage:              r.Stage,
		Sector:             r.Sector,
		Ownership:          r.Ownership,
		Remain:             r.Remain,
		MonthsToGraduation: r.MonthsToGraduation,
	}
}

// ToDomain converts the policy request. Percentages above 100 pass through;
// boundary validation flags them as unusual without rejecting.
func (r CapPolicyRequest) ToDomain() CapPolicy {
	switch r.Kind {
	case string(CapStageBased):
		return StageBasedPolicy(r.DefaultPercent, r.StagePercents)
	default:
		return FixedPercentPolicy(r.DefaultPercent)
	}
}

// InceptionTime parses the optional fund inception date. The second return
// is false when the field is absent or unparseable.
func (r AllocateRequest) InceptionTime() (time.Time, bool) {
	if r.FundInceptionDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", r.FundInceptionDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ToDomain converts the allocate request into engine input and config.
func (r AllocateRequest) ToDomain(maxDuration time.Duration) (ReservesInput, ReservesConfig) {
	companies := make([]Company, 0, len(r.Companies))
	for _, c := range r.Companies {
		companies = append(companies, c.ToDomain())
	}
	input := ReservesInput{
		Companies:     companies,
		FundSizeCents: units.DollarsToCents(r.FundSizeDollars),
		QuarterIndex:  r.QuarterIndex,
	}
	cfg := ReservesConfig{
		ReserveFractionBps:  units.PercentToBps(r.ReserveFractionPct),
		RemainPasses:        r.RemainPasses,
		RemainDelayQuarters: r.RemainDelayQuarters,
		CapPolicy:           r.CapPolicy.ToDomain(),
		AuditLevel:          AuditLevel(r.AuditLevel),
		MaxDuration:         maxDuration,
	}
	return input, cfg
}

// GraduationRatesToDomain converts rate requests for matrix construction.
func GraduationRatesToDomain(reqs []GraduationRateRequest) []GraduationRate {
	rates := make([]GraduationRate, 0, len(reqs))
	for _, r := range reqs {
		rates = append(rates, GraduationRate{
			FromStage:          r.FromStage,
			ToStage:            r.ToStage,
			Probability:        r.Probability,
			ExitProbability:    r.ExitProbability,
			ValuationMultiple:  r.ValuationMultiple,
			MonthsToTransition: r.MonthsToTransition,
		})
	}
	return rates
}

// UnusualCapWarnings flags cap percentages above 100% without rejecting
// them. Returned alongside (not instead of) a successful parse.
func (r CapPolicyRequest) UnusualCapWarnings() []FieldError {
	var warns []FieldError
	if r.DefaultPercent > 100 {
		warns = append(warns, FieldError{
			Field:   "capPolicy.defaultPercent",
			Code:    "WARN_UNUSUAL",
			Message: "cap above 100% of invested capital",
		})
	}
	for stage, pct := range r.StagePercents {
		if pct > 100 {
			warns = append(warns, FieldError{
				Field:   "capPolicy.stagePercents." + stage,
				Code:    "WARN_UNUSUAL",
				Message: "cap above 100% of invested capital",
			})
		}
	}
	return warns
}
