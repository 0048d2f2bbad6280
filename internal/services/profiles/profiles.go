package profiles

import (
	"fmt"

	"ReserveDesk/internal/domain/models"
)

// StageCohort is one sector profile's observation of a stage transition:
// how often companies in the cohort graduated or exited, and the valuation
// step a graduation carried.
type StageCohort struct {
	Sector             string
	FromStage          string
	ToStage            string
	GraduationRate     float64
	ExitRate           float64
	ValuationMultiple  float64
	MonthsToTransition int
}

// DeriveMatrix builds a GraduationMatrix from sector-profile cohorts.
// When multiple sectors report the same stage pair the rates are averaged;
// the derived matrix still has to pass full construction validation, so
// cohorts that average into graduation+exit > 1 fail here rather than
// inside the engine.
func DeriveMatrix(name string, cohorts []StageCohort) (*models.GraduationMatrix, error) {
	if len(cohorts) == 0 {
		return nil, fmt.Errorf("derive matrix: no cohorts")
	}

	type acc struct {
		toStage string
		grad    float64
		exit    float64
		mult    float64
		months  int
		n       int
	}
	order := make([]string, 0)
	byStage := make(map[string]*acc)
	for _, c := range cohorts {
		a, ok := byStage[c.FromStage]
		if !ok {
			a = &acc{toStage: c.ToStage}
			byStage[c.FromStage] = a
			order = append(order, c.FromStage)
		}
		if a.toStage != c.ToStage {
			return nil, fmt.Errorf("derive matrix: stage %s maps to both %s and %s",
				c.FromStage, a.toStage, c.ToStage)
		}
		a.grad += c.GraduationRate
		a.exit += c.ExitRate
		a.mult += c.ValuationMultiple
		a.months += c.MonthsToTransition
		a.n++
	}

	rates := make([]models.GraduationRate, 0, len(byStage))
	for _, stage := range order {
		a := byStage[stage]
		n := float64(a.n)
		rates = append(rates, models.GraduationRate{
			FromStage:          stage,
			ToStage:            a.toStage,
			Probability:        a.grad / n,
			ExitProbability:    a.exit / n,
			ValuationMultiple:  a.mult / n,
			MonthsToTransition: a.months / a.n,
		})
	}
	return models.NewGraduationMatrix(name, rates)
}
