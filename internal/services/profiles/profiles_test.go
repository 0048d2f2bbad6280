package profiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReserveDesk/internal/domain/models"
)

func TestDeriveMatrixAveragesSectors(t *testing.T) {
	cohorts := []StageCohort{
		{Sector: "fintech", FromStage: "seed", ToStage: "series_a", GraduationRate: 0.40, ExitRate: 0.10, ValuationMultiple: 2.0, MonthsToTransition: 18},
		{Sector: "infra", FromStage: "seed", ToStage: "series_a", GraduationRate: 0.60, ExitRate: 0.20, ValuationMultiple: 3.0, MonthsToTransition: 22},
		{Sector: "fintech", FromStage: "series_a", ToStage: "series_b", GraduationRate: 0.50, ExitRate: 0.15, ValuationMultiple: 1.8, MonthsToTransition: 20},
	}

	m, err := DeriveMatrix("sector-blend", cohorts)
	require.NoError(t, err)
	assert.Equal(t, "sector-blend", m.Name())

	seed, ok := m.Rate("seed")
	require.True(t, ok)
	assert.Equal(t, "series_a", seed.ToStage)
	assert.InDelta(t, 0.50, seed.Probability, 1e-12)
	assert.InDelta(t, 0.15, seed.ExitProbability, 1e-12)
	assert.InDelta(t, 2.5, seed.ValuationMultiple, 1e-12)
	assert.Equal(t, 20, seed.MonthsToTransition)

	// single-sector stage passes through unchanged
	a, ok := m.Rate("series_a")
	require.True(t, ok)
	assert.InDelta(t, 0.50, a.Probability, 1e-12)
	assert.InDelta(t, 1.8, a.ValuationMultiple, 1e-12)
}

func TestDeriveMatrixRejectsInconsistentTargets(t *testing.T) {
	cohorts := []StageCohort{
		{Sector: "fintech", FromStage: "seed", ToStage: "series_a", GraduationRate: 0.4, ValuationMultiple: 2},
		{Sector: "infra", FromStage: "seed", ToStage: "series_b", GraduationRate: 0.4, ValuationMultiple: 2},
	}

	_, err := DeriveMatrix("bad", cohorts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maps to both")
}

func TestDeriveMatrixValidatesAveragedRates(t *testing.T) {
	// both cohorts are individually plausible but average into
	// graduation + exit > 1
	cohorts := []StageCohort{
		{Sector: "fintech", FromStage: "seed", ToStage: "series_a", GraduationRate: 0.9, ExitRate: 0.3, ValuationMultiple: 2},
		{Sector: "infra", FromStage: "seed", ToStage: "series_a", GraduationRate: 0.7, ExitRate: 0.5, ValuationMultiple: 2},
	}

	_, err := DeriveMatrix("bad", cohorts)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMatrixInvalid)
}

func TestDeriveMatrixEmpty(t *testing.T) {
	_, err := DeriveMatrix("empty", nil)
	assert.Error(t, err)
}
