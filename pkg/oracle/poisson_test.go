package oracle

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formRow(homeGoals, homeXG, awayGoals, awayXG float64) *FeatureRow {
	return &FeatureRow{
		MatchID: 1, HomeElo: 1500, AwayElo: 1500, HomeRest: 7, AwayRest: 7,
		HomeGoals5: homeGoals, HomeXG5: homeXG, AwayGoals5: awayGoals, AwayXG5: awayXG,
	}
}

func TestPoissonBaselineSumsToOne(t *testing.T) {
	b := DefaultPoissonBaseline()
	require.NoError(t, b.Validate())
	for _, r := range []*FeatureRow{formRow(1.4, 1.2, 1.1, 1.0), formRow(0, 0, 0, 0), formRow(3.2, 2.9, 0.4, 0.6)} {
		p, err := b.Predict(r)
		require.NoError(t, err)
		assert.NoError(t, ValidateProbabilities(p, 1e-9))
	}
}

func TestPoissonBaselineSymmetry(t *testing.T) {
	p, err := DefaultPoissonBaseline().Predict(formRow(1.3, 1.3, 1.3, 1.3))
	require.NoError(t, err)
	assert.InDelta(t, p.Home, p.Away, 1e-12)
	assert.Greater(t, p.Draw, 0.2)
}

func TestPoissonBaselineFavoursStrongerAttack(t *testing.T) {
	p, err := DefaultPoissonBaseline().Predict(formRow(2.6, 2.2, 0.6, 0.8))
	require.NoError(t, err)
	assert.Greater(t, p.Home, 0.6)
	assert.Less(t, p.Away, p.Draw)
}

func TestPoissonBaselineWithoutCorrection(t *testing.T) {
	b := DefaultPoissonBaseline()
	b.Rho = 0
	p, err := b.Predict(formRow(1, 1, 1, 1))
	require.NoError(t, err)

	// two unit Poissons draw with probability e^-2 * I0(2)
	draw := 0.0
	pmf := poissonPMF(1, b.MaxGoals)
	for k := range pmf {
		draw += pmf[k] * pmf[k]
	}
	assert.InDelta(t, draw, p.Draw, 1e-6)
	assert.InDelta(t, 0.3085, p.Draw, 1e-3)
}

func TestPoissonBaselineRejectsIncompleteRow(t *testing.T) {
	r := formRow(1, 1, 1, 1)
	r.AwayXG5 = math.NaN()
	_, err := DefaultPoissonBaseline().Predict(r)
	assert.True(t, errors.Is(err, ErrMalformedMatch))
}

func TestPoissonBaselineValidate(t *testing.T) {
	b := DefaultPoissonBaseline()
	b.Rho = 0.2
	assert.True(t, errors.Is(b.Validate(), ErrInvalidConfig))
	b = DefaultPoissonBaseline()
	b.XGBlend = 2
	assert.Error(t, b.Validate())
}
