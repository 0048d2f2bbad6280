package models

import (
	"strconv"

	"ReserveDesk/internal/domain/units"
)

// Company is a portfolio company as seen by the allocation engine. All
// monetary fields are integer cents and the exit multiple is basis points;
// conversion from human units happens at the boundary, never here.
type Company struct {
	ID            string
	Name          string
	InvestedCents units.Cents
	// ExitMOICBps is the expected multiple-on-invested-capital at exit,
	// in basis points (40000 = 4.0x).
	ExitMOICBps units.BasisPoints
	Stage       string
	Sector      string
	// Ownership is the fund's ownership fraction, 0-1. Zero means unknown.
	Ownership float64
	// Remain marks a company that neither graduated nor exited within the
	// modeled horizon, making it eligible for the delayed remain pass.
	Remain bool
	// MonthsToGraduation is the modeled time to the next stage. Informational
	// for audit output; the engine does not branch on it.
	MonthsToGraduation int
}

// ValuationCents is the company's current modeled valuation: invested
// capital scaled by the exit multiple.
func (c Company) ValuationCents() units.Cents {
	return units.ApplyBps(c.InvestedCents, c.ExitMOICBps)
}

// ExitMOICOnReserves computes the multiple an exit at the current valuation
// would yield if candidate cents of additional reserve were committed.
// This is the engine's ranking key.
func (c Company) ExitMOICOnReserves(candidate units.Cents) float64 {
	denom := c.InvestedCents + candidate
	if denom <= 0 {
		return 0
	}
	return float64(c.ValuationCents()) / float64(denom)
}

// Check validates the company invariants the engine relies on.
func (c Company) Check() []FieldError {
	var errs []FieldError
	if c.ID == "" {
		errs = append(errs, FieldError{Field: "id", Code: "ERR_REQUIRED", Message: "company id is required"})
	}
	if !units.CheckCents(c.InvestedCents) {
		errs = append(errs, FieldError{Field: "investedCents", Code: "ERR_RANGE", Message: "invested amount must be within the safe integer domain"})
	}
	if c.ExitMOICBps < 0 {
		errs = append(errs, FieldError{Field: "exitMoicBps", Code: "ERR_RANGE", Message: "exit MOIC must be non-negative"})
	}
	if !units.CheckFraction(c.Ownership) {
		errs = append(errs, FieldError{Field: "ownership", Code: "ERR_RANGE", Message: "ownership must be a fraction in [0,1]"})
	}
	return errs
}

// ValidateCompanies checks a full portfolio, qualifying each error with the
// offending company's position and id. It never mutates its input.
func ValidateCompanies(companies []Company) []FieldError {
	const maxCompanies = 10000
	if len(companies) > maxCompanies {
		return []FieldError{{Field: "companies", Code: "ERR_MAX", Message: "portfolio exceeds 10000 companies"}}
	}
	var errs []FieldError
	seen := make(map[string]struct{}, len(companies))
	for i, c := range companies {
		for _, e := range c.Check() {
			e.Field = companyField(i, e.Field)
			errs = append(errs, e)
		}
		if c.ID != "" {
			if _, dup := seen[c.ID]; dup {
				errs = append(errs, FieldError{
					Field:   companyField(i, "id"),
					Code:    "ERR_DUPLICATE",
					Message: "duplicate company id " + c.ID,
				})
			}
			seen[c.ID] = struct{}{}
		}
	}
	return errs
}

func companyField(i int, field string) string {
	return "companies[" + strconv.Itoa(i) + "]." + field
}
