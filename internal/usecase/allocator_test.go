package usecase

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReserveDesk/internal/domain/models"
	"ReserveDesk/internal/domain/units"
)

func decisionByID(t *testing.T, out *models.ReservesOutput, id string) models.AllocationDecision {
	t.Helper()
	for _, d := range out.Allocations {
		if d.CompanyID == id {
			return d
		}
	}
	t.Fatalf("no decision for company %s", id)
	return models.AllocationDecision{}
}

func TestAllocateEndToEnd(t *testing.T) {
	// $10M fund, 50% reserve ratio, two companies capped at one full check
	// each: $5M available, caps fully funded, $4.7M left over.
	input := models.ReservesInput{
		FundSizeCents: 10_000_000_00,
		Companies: []models.Company{
			{ID: "c1", Name: "Aurora", InvestedCents: 100_000_00, ExitMOICBps: 40000},
			{ID: "c2", Name: "Borealis", InvestedCents: 200_000_00, ExitMOICBps: 15000},
		},
	}
	cfg := models.ReservesConfig{
		ReserveFractionBps: 5000,
		CapPolicy:          models.FixedPercentPolicy(100),
	}

	out, err := NewAllocator().Allocate(input, cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, units.Cents(5_000_000_00), out.Metadata.TotalAvailableCents)
	assert.Equal(t, units.Cents(100_000_00), decisionByID(t, out, "c1").PlannedAmountCents)
	assert.Equal(t, units.Cents(200_000_00), decisionByID(t, out, "c2").PlannedAmountCents)
	assert.Equal(t, units.Cents(4_700_000_00), out.RemainingCents)
	assert.Equal(t, units.Cents(300_000_00), out.Metadata.TotalAllocatedCents)
	assert.Equal(t, 2, out.Metadata.CompaniesFunded)
	assert.Equal(t, 1, out.Metadata.MaxIterationsUsed)
	assert.True(t, out.Metadata.ConservationCheckPassed)

	// c1's 4.0x beats c2's 1.5x even after diluting by the planned reserve
	require.Len(t, out.Metadata.ExitMOICRanking, 2)
	assert.Equal(t, "c1", out.Metadata.ExitMOICRanking[0].CompanyID)
	assert.InDelta(t, 2.0, out.Metadata.ExitMOICRanking[0].ExitMOIC, 1e-12)
	assert.Equal(t, "c2", out.Metadata.ExitMOICRanking[1].CompanyID)
	assert.InDelta(t, 0.75, out.Metadata.ExitMOICRanking[1].ExitMOIC, 1e-12)
}

func TestAllocateRankingNonIncreasing(t *testing.T) {
	input := models.ReservesInput{
		FundSizeCents: 1_000_000_00,
		Companies: []models.Company{
			{ID: "a", InvestedCents: 10_000_00, ExitMOICBps: 12000},
			{ID: "b", InvestedCents: 10_000_00, ExitMOICBps: 90000},
			{ID: "c", InvestedCents: 10_000_00, ExitMOICBps: 45000},
			{ID: "d", InvestedCents: 10_000_00, ExitMOICBps: 45000},
		},
	}
	cfg := models.ReservesConfig{
		ReserveFractionBps: 3000,
		CapPolicy:          models.FixedPercentPolicy(50),
	}

	out, err := NewAllocator().Allocate(input, cfg, nil)
	require.NoError(t, err)

	ranking := out.Metadata.ExitMOICRanking
	require.Len(t, ranking, 4)
	for i := 1; i < len(ranking); i++ {
		assert.GreaterOrEqual(t, ranking[i-1].ExitMOIC, ranking[i].ExitMOIC)
	}
	// identical multiples rank by id
	assert.Equal(t, "c", ranking[1].CompanyID)
	assert.Equal(t, "d", ranking[2].CompanyID)
}

func TestAllocatePartialThenExhausted(t *testing.T) {
	// Reserve covers the first ask fully, the second partially, the third
	// not at all. Every cent is accounted for.
	input := models.ReservesInput{
		FundSizeCents: 200_00,
		Companies: []models.Company{
			{ID: "a", InvestedCents: 80_00, ExitMOICBps: 50000},
			{ID: "b", InvestedCents: 80_00, ExitMOICBps: 40000},
			{ID: "c", InvestedCents: 80_00, ExitMOICBps: 30000},
		},
	}
	cfg := models.ReservesConfig{
		ReserveFractionBps: 5000, // $100.00 available
		CapPolicy:          models.FixedPercentPolicy(100),
	}

	out, err := NewAllocator().Allocate(input, cfg, nil)
	require.NoError(t, err)

	a := decisionByID(t, out, "a")
	assert.Equal(t, units.Cents(80_00), a.PlannedAmountCents)
	assert.Equal(t, models.ReasonAllocated, a.ReasonCode)

	b := decisionByID(t, out, "b")
	assert.Equal(t, units.Cents(20_00), b.PlannedAmountCents)
	assert.Equal(t, models.ReasonAllocated, b.ReasonCode)

	c := decisionByID(t, out, "c")
	assert.Equal(t, units.Cents(0), c.PlannedAmountCents)
	assert.Equal(t, models.ReasonReserveExhausted, c.ReasonCode)

	assert.Equal(t, units.Cents(0), out.RemainingCents)
	assert.True(t, out.Metadata.ConservationCheckPassed)
}

func TestAllocateZeroReserve(t *testing.T) {
	input := models.ReservesInput{
		FundSizeCents: 1_000_00,
		Companies: []models.Company{
			{ID: "a", InvestedCents: 100_00, ExitMOICBps: 30000},
			{ID: "b", InvestedCents: 0, ExitMOICBps: 30000},
		},
	}
	cfg := models.ReservesConfig{CapPolicy: models.FixedPercentPolicy(100)}

	out, err := NewAllocator().Allocate(input, cfg, nil)
	require.NoError(t, err)

	// every company is still visited and the ranking is still produced
	assert.Len(t, out.Allocations, 2)
	assert.Equal(t, models.ReasonReserveExhausted, decisionByID(t, out, "a").ReasonCode)
	assert.Equal(t, models.ReasonCapZero, decisionByID(t, out, "b").ReasonCode)
	assert.Equal(t, units.Cents(0), out.RemainingCents)
	assert.Len(t, out.Metadata.ExitMOICRanking, 2)
	assert.True(t, out.Metadata.ConservationCheckPassed)
}

func TestAllocateEmptyPortfolio(t *testing.T) {
	input := models.ReservesInput{FundSizeCents: 1_000_00}
	cfg := models.ReservesConfig{
		ReserveFractionBps: 2000,
		CapPolicy:          models.FixedPercentPolicy(100),
	}

	out, err := NewAllocator().Allocate(input, cfg, nil)
	require.NoError(t, err)

	assert.Empty(t, out.Allocations)
	assert.Equal(t, units.Cents(200_00), out.RemainingCents)
	assert.Empty(t, out.Metadata.ExitMOICRanking)
	assert.True(t, out.Metadata.ConservationCheckPassed)
}

func TestAllocateGraduationWeightedTarget(t *testing.T) {
	rates := []models.GraduationRate{
		{FromStage: "seed", ToStage: "series_a", Probability: 0.25, ExitProbability: 0.1, ValuationMultiple: 2.0},
	}
	matrix, err := models.NewGraduationMatrix("standard", rates)
	require.NoError(t, err)

	input := models.ReservesInput{
		FundSizeCents: 10_000_00,
		Companies: []models.Company{
			// seed: target 400*0.25*2.0 = 200 binds below the 400 cap
			{ID: "seed-co", InvestedCents: 400_00, ExitMOICBps: 30000, Stage: "seed"},
			// unknown stage falls back to the cap
			{ID: "growth-co", InvestedCents: 400_00, ExitMOICBps: 30000, Stage: "growth"},
		},
	}
	cfg := models.ReservesConfig{
		ReserveFractionBps: units.BpsScale,
		CapPolicy:          models.FixedPercentPolicy(100),
	}

	out, err := NewAllocator().Allocate(input, cfg, matrix)
	require.NoError(t, err)

	assert.Equal(t, units.Cents(200_00), decisionByID(t, out, "seed-co").PlannedAmountCents)
	assert.Equal(t, units.Cents(400_00), decisionByID(t, out, "growth-co").PlannedAmountCents)
	assert.True(t, out.Metadata.ConservationCheckPassed)
}

func TestAllocateRemainPass(t *testing.T) {
	rates := []models.GraduationRate{
		{FromStage: "seed", ToStage: "series_a", Probability: 0.25, ExitProbability: 0.1, ValuationMultiple: 2.0},
	}
	matrix, err := models.NewGraduationMatrix("standard", rates)
	require.NoError(t, err)

	input := models.ReservesInput{
		FundSizeCents: 20_00,
		QuarterIndex:  4,
		Companies: []models.Company{
			// first pass places the 200-cent weighted target, the remain
			// pass tops up to the 400-cent cap
			{ID: "r", InvestedCents: 4_00, ExitMOICBps: 30000, Stage: "seed", Remain: true},
			{ID: "n", InvestedCents: 3_00, ExitMOICBps: 20000},
		},
	}
	cfg := models.ReservesConfig{
		ReserveFractionBps:  5000, // 1000 cents available
		RemainPasses:        1,
		RemainDelayQuarters: 4,
		CapPolicy:           models.FixedPercentPolicy(100),
		AuditLevel:          models.AuditVerbose,
	}

	out, err := NewAllocator().Allocate(input, cfg, matrix)
	require.NoError(t, err)

	r := decisionByID(t, out, "r")
	assert.Equal(t, units.Cents(4_00), r.PlannedAmountCents)
	assert.Equal(t, models.ReasonRemainTopUp, r.ReasonCode)
	assert.Equal(t, 2, r.Iteration)
	assert.False(t, r.Superseded)

	n := decisionByID(t, out, "n")
	assert.Equal(t, units.Cents(3_00), n.PlannedAmountCents)
	assert.Equal(t, 1, n.Iteration)

	// superseded first-pass decision lands in the verbose trace
	require.Len(t, out.Trace, 1)
	assert.Equal(t, "r", out.Trace[0].CompanyID)
	assert.Equal(t, units.Cents(2_00), out.Trace[0].PlannedAmountCents)
	assert.True(t, out.Trace[0].Superseded)
	assert.Equal(t, 1, out.Trace[0].Iteration)

	assert.Equal(t, 2, out.Metadata.MaxIterationsUsed)
	assert.Equal(t, 8, out.Metadata.RemainPassQuarter)
	assert.Equal(t, units.Cents(3_00), out.RemainingCents)
	assert.True(t, out.Metadata.ConservationCheckPassed)
}

func TestAllocateRemainPassSummaryDropsTrace(t *testing.T) {
	input := models.ReservesInput{
		FundSizeCents: 20_00,
		Companies: []models.Company{
			{ID: "r", InvestedCents: 4_00, ExitMOICBps: 30000, Remain: true},
		},
	}
	cfg := models.ReservesConfig{
		ReserveFractionBps: 1000, // 200 cents: first pass fills half the 400 cap
		RemainPasses:       1,
		CapPolicy:          models.FixedPercentPolicy(100),
		AuditLevel:         models.AuditSummary,
	}

	out, err := NewAllocator().Allocate(input, cfg, nil)
	require.NoError(t, err)

	// cap already consumed, nothing left for the remain pass
	assert.Equal(t, units.Cents(2_00), decisionByID(t, out, "r").PlannedAmountCents)
	assert.Empty(t, out.Trace)
	assert.True(t, out.Metadata.ConservationCheckPassed)
}

func TestAllocateValidationFailure(t *testing.T) {
	input := models.ReservesInput{
		FundSizeCents: 1_000_00,
		Companies: []models.Company{
			{ID: "dup", InvestedCents: 100_00},
			{ID: "dup", InvestedCents: 100_00},
		},
	}
	cfg := models.ReservesConfig{
		ReserveFractionBps: 20000, // out of range as well
		CapPolicy:          models.FixedPercentPolicy(100),
	}

	out, err := NewAllocator().Allocate(input, cfg, nil)
	assert.Nil(t, out)

	var verrs models.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	codes := make([]string, 0, len(verrs))
	for _, e := range verrs {
		codes = append(codes, e.Code)
	}
	assert.Contains(t, codes, "ERR_DUPLICATE")
	assert.Contains(t, codes, "ERR_RANGE")
}

func TestAllocateTimeout(t *testing.T) {
	var tick int
	base := time.Unix(0, 0)
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 10 * time.Millisecond)
	}

	input := models.ReservesInput{
		FundSizeCents: 1_000_00,
		Companies:     []models.Company{{ID: "a", InvestedCents: 100_00, ExitMOICBps: 20000}},
	}
	cfg := models.ReservesConfig{
		ReserveFractionBps: 5000,
		CapPolicy:          models.FixedPercentPolicy(100),
		MaxDuration:        5 * time.Millisecond,
	}

	out, err := NewAllocator(WithClock(clock)).Allocate(input, cfg, nil)
	assert.Nil(t, out)
	require.ErrorIs(t, err, models.ErrTimeout)
}

func TestAllocatePolicyDefectClampsToZero(t *testing.T) {
	policy := models.CustomPolicy(func(c models.Company) float64 {
		if c.ID == "bad" {
			return math.NaN()
		}
		return 100
	})
	input := models.ReservesInput{
		FundSizeCents: 1_000_00,
		Companies: []models.Company{
			{ID: "bad", InvestedCents: 100_00, ExitMOICBps: 30000},
			{ID: "good", InvestedCents: 100_00, ExitMOICBps: 30000},
		},
	}
	cfg := models.ReservesConfig{
		ReserveFractionBps: 5000,
		CapPolicy:          policy,
	}

	out, err := NewAllocator().Allocate(input, cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ReasonCapZero, decisionByID(t, out, "bad").ReasonCode)
	assert.Equal(t, units.Cents(100_00), decisionByID(t, out, "good").PlannedAmountCents)
	assert.True(t, out.Metadata.ConservationCheckPassed)
}

func TestAllocateDeterministic(t *testing.T) {
	input := models.ReservesInput{
		FundSizeCents: 5_000_000_00,
		Companies: []models.Company{
			{ID: "a", InvestedCents: 250_000_00, ExitMOICBps: 32000, Stage: "seed", Remain: true},
			{ID: "b", InvestedCents: 400_000_00, ExitMOICBps: 18000, Stage: "series_a"},
			{ID: "c", InvestedCents: 150_000_00, ExitMOICBps: 55000, Stage: "seed"},
		},
	}
	cfg := models.ReservesConfig{
		ReserveFractionBps:  4000,
		RemainPasses:        1,
		RemainDelayQuarters: 4,
		CapPolicy:           models.StageBasedPolicy(50, map[string]float64{"seed": 100}),
	}

	first, err := NewAllocator().Allocate(input, cfg, nil)
	require.NoError(t, err)
	second, err := NewAllocator().Allocate(input, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
