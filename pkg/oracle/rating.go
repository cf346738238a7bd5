package oracle

import (
	"fmt"
	"math"
	"time"
)

// RatingState is the team -> rating accumulator for a single run.
// It is never shared between runs; create one with NewRatingState.
type RatingState struct {
	ratings  map[int]float64
	baseline float64
	k        float64
	scale    float64
}

// RatingPoint is one step of a team's rating trajectory, the rating held
// right after the match was folded in
type RatingPoint struct {
	Date    time.Time `json:"date" column:"date" dbtype:"TIMESTAMP NOT NULL" index:"true"`
	MatchID int64     `json:"matchId" column:"match_id" dbtype:"BIGINT NOT NULL" primary:"true"`
	TeamID  int       `json:"teamId" column:"team_id" dbtype:"INTEGER NOT NULL" primary:"true" index:"true"`
	Rating  float64   `json:"rating" column:"rating" dbtype:"REAL NOT NULL"`
}

func (p *RatingPoint) GetTableName() string { return "rating_history" }

func (p *RatingPoint) GetPrimaryKey() map[string]any {
	return map[string]any{"match_id": p.MatchID, "team_id": p.TeamID}
}

func (p *RatingPoint) BeforeSave() error {
	p.Date = p.Date.UTC()
	return nil
}

// RatingPair holds the pre-match ratings of both sides
type RatingPair struct {
	Home float64
	Away float64
}

// RatingResult is what the rating pass hands to the assembler
type RatingResult struct {
	PreMatch map[int64]RatingPair
	History  []*RatingPoint
	Final    *RatingState
}

// NewRatingState returns an empty state seeded from cfg
func NewRatingState(cfg *Config) *RatingState {
	return &RatingState{
		ratings:  make(map[int]float64),
		baseline: cfg.BaselineRating,
		k:        cfg.KFactor,
		scale:    cfg.RatingScale,
	}
}

// Rating returns the team's current rating, the baseline if never seen
func (s *RatingState) Rating(teamID int) float64 {
	if r, ok := s.ratings[teamID]; ok {
		return r
	}
	return s.baseline
}

// Ratings returns a copy of every rating held
func (s *RatingState) Ratings() map[int]float64 {
	out := make(map[int]float64, len(s.ratings))
	for k, v := range s.ratings {
		out[k] = v
	}
	return out
}

// ExpectedHomeScore is the logistic expectation 1 / (1 + 10^((away-home)/scale))
func ExpectedHomeScore(homeRating, awayRating, scale float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (awayRating-homeRating)/scale))
}

// Apply folds one finished match into the state and returns the ratings both
// sides held before it
func (s *RatingState) Apply(m *Match) RatingPair {
	pre := RatingPair{Home: s.Rating(m.HomeID), Away: s.Rating(m.AwayID)}

	actual := m.HomeScore()
	expected := ExpectedHomeScore(pre.Home, pre.Away, s.scale)

	s.ratings[m.HomeID] = pre.Home + s.k*(actual-expected)
	s.ratings[m.AwayID] = pre.Away + s.k*((1-actual)-(1-expected))
	return pre
}

// RateMatches runs the rating recurrence over the whole history. matches must
// already be sorted by date then sequence and every one must have a score.
func RateMatches(matches []*Match, cfg *Config) (*RatingResult, error) {
	if err := CheckOrder(matches); err != nil {
		return nil, err
	}

	state := NewRatingState(cfg)
	res := &RatingResult{
		PreMatch: make(map[int64]RatingPair, len(matches)),
		History:  make([]*RatingPoint, 0, 2*len(matches)),
		Final:    state,
	}

	for _, m := range matches {
		if !m.HasBeenPlayed() {
			return nil, fmt.Errorf("%w: match %d reached the rating engine without a score", ErrMalformedMatch, m.ID)
		}
		res.PreMatch[m.ID] = state.Apply(m)
		res.History = append(res.History,
			&RatingPoint{Date: m.Date, MatchID: m.ID, TeamID: m.HomeID, Rating: state.Rating(m.HomeID)},
			&RatingPoint{Date: m.Date, MatchID: m.ID, TeamID: m.AwayID, Rating: state.Rating(m.AwayID)},
		)
	}
	return res, nil
}
