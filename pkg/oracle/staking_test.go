package oracle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKellyZeroFloor(t *testing.T) {
	assert.Equal(t, 0.0, KellyFraction(0.3, 2.0))
	assert.InDelta(t, -0.4, ExpectedValue(0.3, 2.0), 1e-12)

	for _, bankroll := range []float64{0, 10, 1000, 1e9} {
		rec, err := Recommend(Probabilities{Home: 0.3, Draw: 0.35, Away: 0.35}, Odds{Home: 2, Draw: 2, Away: 2}, bankroll, DefaultConfig())
		require.NoError(t, err)
		assert.Equal(t, SelectNone, rec.RecommendedOutcome)
		assert.Equal(t, 0.0, rec.Stake)
		assert.Equal(t, 0.0, rec.KellyFraction)
	}
}

func TestKellyPositiveCase(t *testing.T) {
	p := Probabilities{Home: 0.6, Draw: 0.2, Away: 0.2}
	o := Odds{Home: 2.0, Draw: 3.0, Away: 4.0}

	rec, err := Recommend(p, o, 1000, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, SelectHome, rec.RecommendedOutcome)
	assert.InDelta(t, 0.2, rec.KellyFraction, 1e-12)
	assert.InDelta(t, 200, rec.Stake, 1e-9)
	assert.InDelta(t, 0.2, rec.ExpectedValue, 1e-12)
	assert.InDelta(t, -0.4, rec.EV.Draw, 1e-12)

	half := DefaultConfig()
	half.KellyMultiplier = 0.5
	rec, err = Recommend(p, o, 1000, half)
	require.NoError(t, err)
	assert.InDelta(t, 100, rec.Stake, 1e-9)
}

func TestKellyEvenMoneyPaysNothing(t *testing.T) {
	assert.Equal(t, 0.0, KellyFraction(0.99, 1.0))
	rec, err := Recommend(Probabilities{Home: 1, Draw: 0, Away: 0}, Odds{Home: 1, Draw: 5, Away: 5}, 100, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, SelectNone, rec.RecommendedOutcome)
	assert.Equal(t, 0.0, rec.Stake)
}

func TestRecommendTieBreak(t *testing.T) {
	rec, err := Recommend(Probabilities{Home: 0.4, Draw: 0.4, Away: 0.2}, Odds{Home: 3, Draw: 3, Away: 2}, 100, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, SelectHome, rec.RecommendedOutcome)

	rec, err = Recommend(Probabilities{Home: 0.2, Draw: 0.4, Away: 0.4}, Odds{Home: 2, Draw: 3, Away: 3}, 100, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, SelectDraw, rec.RecommendedOutcome)
}

func TestRecommendPicksAway(t *testing.T) {
	rec, err := Recommend(Probabilities{Home: 0.2, Draw: 0.25, Away: 0.55}, Odds{Home: 4, Draw: 3.5, Away: 2.2}, 500, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, SelectAway, rec.RecommendedOutcome)
	// b=1.2, f=(1.2*0.55-0.45)/1.2
	assert.InDelta(t, 500*(1.2*0.55-0.45)/1.2, rec.Stake, 1e-9)
}

func TestRecommendValidatesInput(t *testing.T) {
	cfg := DefaultConfig()
	good := Odds{Home: 2, Draw: 3, Away: 4}

	_, err := Recommend(Probabilities{Home: 0.5, Draw: 0.5, Away: 0.5}, good, 100, cfg)
	assert.True(t, errors.Is(err, ErrInvalidProbabilities))

	_, err = Recommend(Probabilities{Home: -0.1, Draw: 0.6, Away: 0.5}, good, 100, cfg)
	assert.True(t, errors.Is(err, ErrInvalidProbabilities))

	_, err = Recommend(Probabilities{Home: 0.5, Draw: 0.3, Away: 0.2}, Odds{Home: 0.9, Draw: 3, Away: 4}, 100, cfg)
	assert.True(t, errors.Is(err, ErrInvalidOdds))

	_, err = Recommend(Probabilities{Home: 0.5, Draw: 0.3, Away: 0.2}, good, -1, cfg)
	assert.Error(t, err)

	cfg.KellyMultiplier = 1.5
	_, err = Recommend(Probabilities{Home: 0.5, Draw: 0.3, Away: 0.2}, good, 100, cfg)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestValidateProbabilitiesTolerance(t *testing.T) {
	assert.NoError(t, ValidateProbabilities(Probabilities{Home: 0.3333333, Draw: 0.3333333, Away: 0.3333334}, 1e-6))
	assert.Error(t, ValidateProbabilities(Probabilities{Home: 0.33, Draw: 0.33, Away: 0.33}, 1e-6))
}
