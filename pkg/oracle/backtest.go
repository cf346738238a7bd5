package oracle

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/richard-senior/oracle/internal/logger"
)

// StakingMode selects how the backtest sizes bets
type StakingMode string

const (
	StakeKelly StakingMode = "kelly"
	StakeFlat  StakingMode = "flat"
)

// BacktestInput is one finished match with the model's view and the prices
type BacktestInput struct {
	MatchID       int64
	Date          time.Time
	Probabilities Probabilities
	Odds          Odds
	Result        Outcome
}

type BacktestConfig struct {
	StartingBankroll float64
	Mode             StakingMode
	FlatStake        float64 // StakeFlat: amount per bet
	EdgeThreshold    float64 // StakeFlat: bet home when p(home) exceeds implied probability by this much
	MaxStakeFraction float64 // StakeKelly: cap on the fraction of bankroll risked per bet (0 = no cap)
}

func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		StartingBankroll: 1000,
		Mode:             StakeKelly,
		FlatStake:        50,
		EdgeThreshold:    0.05,
		MaxStakeFraction: 0.25,
	}
}

// BetRecord is one settled bet
type BetRecord struct {
	MatchID  int64     `json:"matchId"`
	Date     time.Time `json:"date"`
	Outcome  Selection `json:"outcome"`
	Odds     float64   `json:"odds"`
	Stake    float64   `json:"stake"`
	Won      bool      `json:"won"`
	Bankroll float64   `json:"bankroll"` // after settlement
}

type BacktestReport struct {
	StartingBankroll float64     `json:"startingBankroll"`
	FinalBankroll    float64     `json:"finalBankroll"`
	ReturnPct        float64     `json:"returnPct"`
	BetsPlaced       int         `json:"betsPlaced"`
	Wins             int         `json:"wins"`
	WinRatePct       float64     `json:"winRatePct"`
	Staked           float64     `json:"staked"`
	History          []float64   `json:"history"`
	Bets             []BetRecord `json:"bets"`
}

// SimulatedHomeOdds prices the home side from the Elo expectation with the
// bookmaker's margin taken off, rounded to two places. It stands in for real
// prices when the history has none.
func SimulatedHomeOdds(homeElo, awayElo, scale, margin float64) float64 {
	fair := 1 / ExpectedHomeScore(homeElo, awayElo, scale)
	return math.Round(fair*(1-margin)*100) / 100
}

// SimulatedOdds prices a feature row from its pre-match ratings. Only the home
// side gets a price; draw and away pay evens so they are never backed.
func SimulatedOdds(r *FeatureRow, scale, margin float64) Odds {
	return Odds{Home: SimulatedHomeOdds(r.HomeElo, r.AwayElo, scale, margin), Draw: 1, Away: 1}
}

func selectionWon(sel Selection, result Outcome) bool {
	switch sel {
	case SelectHome:
		return result == HomeWin
	case SelectDraw:
		return result == Draw
	case SelectAway:
		return result == AwayWin
	}
	return false
}

func oddsFor(sel Selection, o Odds) float64 {
	switch sel {
	case SelectHome:
		return o.Home
	case SelectDraw:
		return o.Draw
	case SelectAway:
		return o.Away
	}
	return 0
}

// HoldOut returns the chronologically last fraction of inputs, the part a
// classifier trained on the earlier rows has not seen. A fraction of 1 keeps
// everything.
func HoldOut(inputs []BacktestInput, fraction float64) ([]BacktestInput, error) {
	if math.IsNaN(fraction) || fraction <= 0 || fraction > 1 {
		return nil, fmt.Errorf("%w: test fraction must be in (0, 1], got %v", ErrInvalidConfig, fraction)
	}
	sorted := make([]BacktestInput, len(inputs))
	copy(sorted, inputs)
	// same-day matches keep the order they were given in
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	start := int(float64(len(sorted)) * (1 - fraction))
	return sorted[start:], nil
}

// Backtest replays inputs in order against a bankroll. Inputs with unusable
// probabilities or odds are skipped with a warning.
func Backtest(inputs []BacktestInput, bt BacktestConfig, cfg *Config) (*BacktestReport, error) {
	if bt.StartingBankroll <= 0 {
		return nil, fmt.Errorf("%w: starting bankroll must be positive", ErrInvalidConfig)
	}
	if bt.Mode != StakeKelly && bt.Mode != StakeFlat {
		return nil, fmt.Errorf("%w: unknown staking mode %q", ErrInvalidConfig, bt.Mode)
	}

	bankroll := bt.StartingBankroll
	rep := &BacktestReport{
		StartingBankroll: bt.StartingBankroll,
		History:          []float64{bankroll},
	}

	for _, in := range inputs {
		var sel Selection
		var stake float64

		switch bt.Mode {
		case StakeKelly:
			rec, err := Recommend(in.Probabilities, in.Odds, bankroll, cfg)
			if err != nil {
				logger.Warn("Skipping backtest input", in.MatchID, err)
				continue
			}
			sel, stake = rec.RecommendedOutcome, rec.Stake
			if bt.MaxStakeFraction > 0 && stake > bankroll*bt.MaxStakeFraction {
				stake = bankroll * bt.MaxStakeFraction
			}
		case StakeFlat:
			if in.Odds.Home <= 1 {
				continue
			}
			if in.Probabilities.Home > 1/in.Odds.Home+bt.EdgeThreshold {
				sel, stake = SelectHome, math.Min(bt.FlatStake, bankroll)
			}
		}

		if sel == "" || sel == SelectNone || stake <= 0 {
			rep.History = append(rep.History, bankroll)
			continue
		}

		odds := oddsFor(sel, in.Odds)
		won := selectionWon(sel, in.Result)
		bankroll -= stake
		if won {
			bankroll += stake * odds
			rep.Wins++
		}
		rep.BetsPlaced++
		rep.Staked += stake
		rep.History = append(rep.History, bankroll)
		rep.Bets = append(rep.Bets, BetRecord{
			MatchID:  in.MatchID,
			Date:     in.Date,
			Outcome:  sel,
			Odds:     odds,
			Stake:    stake,
			Won:      won,
			Bankroll: bankroll,
		})
	}

	rep.FinalBankroll = bankroll
	rep.ReturnPct = (bankroll - bt.StartingBankroll) / bt.StartingBankroll * 100
	if rep.BetsPlaced > 0 {
		rep.WinRatePct = float64(rep.Wins) / float64(rep.BetsPlaced) * 100
	}
	logger.Info("Backtest finished, bets", rep.BetsPlaced, "wins", rep.Wins, "final bankroll", rep.FinalBankroll)
	return rep, nil
}
