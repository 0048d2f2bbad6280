package synthetic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReserveDesk/internal/domain/models"
	"ReserveDesk/internal/domain/units"
)

func TestPortfolioDeterministic(t *testing.T) {
	first := Portfolio(1_000_000_00, 50_000_00, 5000)
	second := Portfolio(1_000_000_00, 50_000_00, 5000)
	assert.Equal(t, first, second)

	// a different fund size reseeds the generator
	other := Portfolio(2_000_000_00, 50_000_00, 5000)
	assert.NotEqual(t, first, other)
}

func TestPortfolioCount(t *testing.T) {
	// $1M fund, 50% reserved, $50k checks: 10 initial investments
	companies := Portfolio(1_000_000_00, 50_000_00, 5000)
	require.Len(t, companies, 10)

	// no reserve held back doubles the deployable capital
	companies = Portfolio(1_000_000_00, 50_000_00, 0)
	assert.Len(t, companies, 20)
}

func TestPortfolioAttributeBounds(t *testing.T) {
	companies := Portfolio(10_000_000_00, 50_000_00, 4000)
	require.NotEmpty(t, companies)

	seen := make(map[string]struct{}, len(companies))
	for _, c := range companies {
		_, dup := seen[c.ID]
		assert.False(t, dup, "duplicate id %s", c.ID)
		seen[c.ID] = struct{}{}

		assert.Equal(t, units.Cents(50_000_00), c.InvestedCents)
		assert.GreaterOrEqual(t, c.ExitMOICBps, units.BasisPoints(8000))
		assert.LessOrEqual(t, c.ExitMOICBps, units.BasisPoints(120000))
		assert.Contains(t, stages, c.Stage)
		assert.Contains(t, sectors, c.Sector)
		assert.GreaterOrEqual(t, c.Ownership, 0.05)
		assert.Less(t, c.Ownership, 0.20)
		assert.GreaterOrEqual(t, c.MonthsToGraduation, 9)
		assert.LessOrEqual(t, c.MonthsToGraduation, 30)
	}

	// the synthetic portfolio always passes engine validation
	assert.Empty(t, models.ValidateCompanies(companies))
}

func TestPortfolioDegenerateInputs(t *testing.T) {
	assert.Empty(t, Portfolio(0, 50_000_00, 5000))
	assert.Empty(t, Portfolio(1_000_000_00, 0, 5000))
	// check larger than deployable capital
	assert.Empty(t, Portfolio(100_00, 1_000_00, 5000))
	// full reserve leaves nothing to deploy
	assert.Empty(t, Portfolio(1_000_000_00, 50_000_00, units.BpsScale))
}

func TestGeneratorImplementsPortfolioSource(t *testing.T) {
	g := New(1_000_000_00, 50_000_00, 5000)
	companies, err := g.Companies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Portfolio(1_000_000_00, 50_000_00, 5000), companies)
}
