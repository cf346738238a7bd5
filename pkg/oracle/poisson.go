package oracle

import (
	"fmt"
	"math"
)

// PoissonBaseline turns a feature row into outcome probabilities with an
// independent Poisson score model and the Dixon-Coles low-score correction.
// Backtests fall back to it when no classifier output is supplied.
type PoissonBaseline struct {
	Rho         float64 // Dixon-Coles correlation (default: -0.03, range: -0.1 to 0)
	MaxGoals    int     // scorelines 0..MaxGoals per side are enumerated (default: 10)
	MaxGoalsCap float64 // cap on an expected goals value (default: 10.0)
	MinExpected float64 // floor on an expected goals value (default: 0.05)
	XGBlend     float64 // weight of rolling xG against rolling goals (default: 0.5)
}

func DefaultPoissonBaseline() *PoissonBaseline {
	return &PoissonBaseline{
		Rho:         -0.03,
		MaxGoals:    10,
		MaxGoalsCap: 10.0,
		MinExpected: 0.05,
		XGBlend:     0.5,
	}
}

func (b *PoissonBaseline) Validate() error {
	if b.Rho > 0 || b.Rho < -0.1 {
		return fmt.Errorf("%w: Rho should be between -0.1 and 0, got: %f", ErrInvalidConfig, b.Rho)
	}
	if b.MaxGoals < 2 {
		return fmt.Errorf("%w: MaxGoals must be at least 2, got: %d", ErrInvalidConfig, b.MaxGoals)
	}
	if b.XGBlend < 0 || b.XGBlend > 1 {
		return fmt.Errorf("%w: XGBlend must be in [0, 1], got: %f", ErrInvalidConfig, b.XGBlend)
	}
	if b.MinExpected <= 0 || b.MaxGoalsCap <= b.MinExpected {
		return fmt.Errorf("%w: need 0 < MinExpected < MaxGoalsCap", ErrInvalidConfig)
	}
	return nil
}

// ExpectedGoals derives both sides' scoring rates from the rolling form
func (b *PoissonBaseline) ExpectedGoals(r *FeatureRow) (home, away float64) {
	clamp := func(v float64) float64 {
		return math.Max(b.MinExpected, math.Min(b.MaxGoalsCap, v))
	}
	home = clamp(b.XGBlend*r.HomeXG5 + (1-b.XGBlend)*r.HomeGoals5)
	away = clamp(b.XGBlend*r.AwayXG5 + (1-b.XGBlend)*r.AwayGoals5)
	return home, away
}

// Predict returns home, draw and away probabilities for a complete row
func (b *PoissonBaseline) Predict(r *FeatureRow) (Probabilities, error) {
	if !r.Complete() {
		return Probabilities{}, fmt.Errorf("%w: feature row %d is incomplete", ErrMalformedMatch, r.MatchID)
	}
	lh, la := b.ExpectedGoals(r)
	matrix := scoreMatrix(poissonPMF(lh, b.MaxGoals), poissonPMF(la, b.MaxGoals))
	dixonColes(matrix, lh, la, b.Rho)
	renormalize(matrix)

	var p Probabilities
	for i := range matrix {
		for j, v := range matrix[i] {
			switch {
			case i > j:
				p.Home += v
			case i == j:
				p.Draw += v
			default:
				p.Away += v
			}
		}
	}
	return p, nil
}

// poissonPMF returns P(k) for k = 0..max, computed iteratively
func poissonPMF(lambda float64, max int) []float64 {
	out := make([]float64, max+1)
	out[0] = math.Exp(-lambda)
	for k := 1; k <= max; k++ {
		out[k] = out[k-1] * lambda / float64(k)
	}
	return out
}

// scoreMatrix is the outer product of the two goal distributions, home goals on rows
func scoreMatrix(home, away []float64) [][]float64 {
	m := make([][]float64, len(home))
	for i := range home {
		m[i] = make([]float64, len(away))
		for j := range away {
			m[i][j] = home[i] * away[j]
		}
	}
	return m
}

// dixonColes scales the 0-0, 1-0, 0-1 and 1-1 cells in place
func dixonColes(m [][]float64, lh, la, rho float64) {
	m[0][0] *= 1 - lh*la*rho
	m[0][1] *= 1 + lh*rho
	m[1][0] *= 1 + la*rho
	m[1][1] *= 1 - rho
}

func renormalize(m [][]float64) {
	total := 0.0
	for i := range m {
		for _, v := range m[i] {
			total += v
		}
	}
	if total <= 0 {
		return
	}
	for i := range m {
		for j := range m[i] {
			m[i][j] /= total
		}
	}
}
