package oracle

import (
	"fmt"
	"math"
)

// Selection is the outcome a recommendation backs
type Selection string

const (
	SelectHome Selection = "home"
	SelectDraw Selection = "draw"
	SelectAway Selection = "away"
	SelectNone Selection = "none"
)

// Probabilities are the classifier's outcome probabilities
type Probabilities struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw"`
	Away float64 `json:"away"`
}

// Odds are decimal bookmaker prices for the same three outcomes
type Odds struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw"`
	Away float64 `json:"away"`
}

// Recommendation is the staking verdict for one match
type Recommendation struct {
	RecommendedOutcome Selection     `json:"recommended_outcome"`
	Stake              float64       `json:"stake"`
	ExpectedValue      float64       `json:"expected_value"`
	KellyFraction      float64       `json:"kelly_fraction"`
	Probabilities      Probabilities `json:"probabilities"`
	EV                 Odds          `json:"ev"` // expected value per outcome
}

// ExpectedValue of a unit stake: probability * odds - 1
func ExpectedValue(probability, odds float64) float64 {
	return probability*odds - 1
}

// KellyFraction returns (b*p - q) / b with b = odds - 1, floored at zero.
// Odds of exactly 1.0 pay nothing so the fraction is zero.
func KellyFraction(probability, odds float64) float64 {
	b := odds - 1
	if b <= 0 {
		return 0
	}
	f := (b*probability - (1 - probability)) / b
	if f < 0 {
		return 0
	}
	return f
}

// ValidateProbabilities checks each value is in [0,1] and they sum to one within eps
func ValidateProbabilities(p Probabilities, eps float64) error {
	for _, v := range []float64{p.Home, p.Draw, p.Away} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: %v out of range", ErrInvalidProbabilities, v)
		}
	}
	if sum := p.Home + p.Draw + p.Away; math.Abs(sum-1) > eps {
		return fmt.Errorf("%w: sum to %f", ErrInvalidProbabilities, sum)
	}
	return nil
}

// ValidateOdds checks every price is a decimal price of at least 1.0
func ValidateOdds(o Odds) error {
	for _, v := range []float64{o.Home, o.Draw, o.Away} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 1 {
			return fmt.Errorf("%w: %v", ErrInvalidOdds, v)
		}
	}
	return nil
}

// Recommend picks the outcome with the highest expected value and sizes a
// fractional Kelly stake on it. Ties go home, then draw, then away. A best EV
// at or below zero means no bet.
func Recommend(p Probabilities, o Odds, bankroll float64, cfg *Config) (*Recommendation, error) {
	if err := ValidateProbabilities(p, cfg.ProbabilityEpsilon); err != nil {
		return nil, err
	}
	if err := ValidateOdds(o); err != nil {
		return nil, err
	}
	if bankroll < 0 || math.IsNaN(bankroll) {
		return nil, fmt.Errorf("bankroll must not be negative, got %f", bankroll)
	}
	if cfg.KellyMultiplier <= 0 || cfg.KellyMultiplier > 1 {
		return nil, fmt.Errorf("%w: KellyMultiplier %f", ErrInvalidConfig, cfg.KellyMultiplier)
	}

	ev := Odds{
		Home: ExpectedValue(p.Home, o.Home),
		Draw: ExpectedValue(p.Draw, o.Draw),
		Away: ExpectedValue(p.Away, o.Away),
	}
	candidates := []struct {
		sel  Selection
		ev   float64
		prob float64
		odds float64
	}{
		{SelectHome, ev.Home, p.Home, o.Home},
		{SelectDraw, ev.Draw, p.Draw, o.Draw},
		{SelectAway, ev.Away, p.Away, o.Away},
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.ev > best.ev {
			best = c
		}
	}

	rec := &Recommendation{
		RecommendedOutcome: SelectNone,
		ExpectedValue:      best.ev,
		Probabilities:      p,
		EV:                 ev,
	}
	if best.ev <= 0 {
		return rec, nil
	}
	f := KellyFraction(best.prob, best.odds)
	if f == 0 {
		return rec, nil
	}
	rec.RecommendedOutcome = best.sel
	rec.KellyFraction = f
	rec.Stake = bankroll * f * cfg.KellyMultiplier
	return rec, nil
}
