package oracle

import (
	"fmt"
	"math"
	"time"

	"github.com/richard-senior/oracle/internal/logger"
)

// FeatureRow is the per-match vector handed to the classifier
type FeatureRow struct {
	MatchID   int64     `json:"matchId" column:"match_id" dbtype:"BIGINT" primary:"true"`
	Date      time.Time `json:"date" column:"date" dbtype:"TIMESTAMP NOT NULL" index:"true"`
	Seq       int       `json:"seq" column:"seq" dbtype:"INTEGER DEFAULT 0"`
	HomeID    int       `json:"homeTeamId" column:"home_team_id" dbtype:"INTEGER NOT NULL" index:"true"`
	AwayID    int       `json:"awayTeamId" column:"away_team_id" dbtype:"INTEGER NOT NULL" index:"true"`
	HomeGoals int       `json:"homeGoals" column:"home_goals" dbtype:"INTEGER NOT NULL"`
	AwayGoals int       `json:"awayGoals" column:"away_goals" dbtype:"INTEGER NOT NULL"`

	HomeElo float64 `json:"homeElo" column:"home_elo" dbtype:"REAL NOT NULL"`
	AwayElo float64 `json:"awayElo" column:"away_elo" dbtype:"REAL NOT NULL"`
	EloDiff float64 `json:"eloDiff" column:"elo_diff" dbtype:"REAL NOT NULL"`

	HomeRest float64 `json:"homeRest" column:"home_rest" dbtype:"REAL NOT NULL"`
	AwayRest float64 `json:"awayRest" column:"away_rest" dbtype:"REAL NOT NULL"`

	HomeGoals5  float64 `json:"homeGoals5" column:"home_goals_5" dbtype:"REAL NOT NULL"`
	AwayGoals5  float64 `json:"awayGoals5" column:"away_goals_5" dbtype:"REAL NOT NULL"`
	HomeXG5     float64 `json:"homeXg5" column:"home_xg_5" dbtype:"REAL NOT NULL"`
	AwayXG5     float64 `json:"awayXg5" column:"away_xg_5" dbtype:"REAL NOT NULL"`
	HomePoints5 float64 `json:"homePoints5" column:"home_points_5" dbtype:"REAL NOT NULL"`
	AwayPoints5 float64 `json:"awayPoints5" column:"away_points_5" dbtype:"REAL NOT NULL"`
	HomePPDA5   float64 `json:"homePpda5" column:"home_ppda_5" dbtype:"REAL NOT NULL"`
	AwayPPDA5   float64 `json:"awayPpda5" column:"away_ppda_5" dbtype:"REAL NOT NULL"`
	HomeDeep5   float64 `json:"homeDeep5" column:"home_deep_5" dbtype:"REAL NOT NULL"`
	AwayDeep5   float64 `json:"awayDeep5" column:"away_deep_5" dbtype:"REAL NOT NULL"`

	// Previous-season squad averages, only set when Config.SquadFeatures is on
	HomeSquadXGChain   float64 `json:"homeSquadXgChain" column:"home_squad_xg_chain" dbtype:"REAL DEFAULT 0"`
	AwaySquadXGChain   float64 `json:"awaySquadXgChain" column:"away_squad_xg_chain" dbtype:"REAL DEFAULT 0"`
	HomeSquadXGBuildup float64 `json:"homeSquadXgBuildup" column:"home_squad_xg_buildup" dbtype:"REAL DEFAULT 0"`
	AwaySquadXGBuildup float64 `json:"awaySquadXgBuildup" column:"away_squad_xg_buildup" dbtype:"REAL DEFAULT 0"`

	// 0 away win, 1 draw, 2 home win
	MatchResult int `json:"matchResult" column:"match_result" dbtype:"INTEGER NOT NULL"`
}

func (r *FeatureRow) GetTableName() string { return "model_features" }

func (r *FeatureRow) GetPrimaryKey() map[string]any {
	return map[string]any{"match_id": r.MatchID}
}

func (r *FeatureRow) BeforeSave() error {
	r.Date = r.Date.UTC()
	return nil
}

// Numeric returns every feature column in a fixed order, the label excluded
func (r *FeatureRow) Numeric() []float64 {
	return []float64{
		r.HomeElo, r.AwayElo, r.EloDiff,
		r.HomeRest, r.AwayRest,
		r.HomeGoals5, r.AwayGoals5,
		r.HomeXG5, r.AwayXG5,
		r.HomePoints5, r.AwayPoints5,
		r.HomePPDA5, r.AwayPPDA5,
		r.HomeDeep5, r.AwayDeep5,
	}
}

// SquadNumeric returns the squad columns in SquadColumns order
func (r *FeatureRow) SquadNumeric() []float64 {
	return []float64{r.HomeSquadXGChain, r.AwaySquadXGChain, r.HomeSquadXGBuildup, r.AwaySquadXGBuildup}
}

func allDefined(vals []float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Complete reports whether every numeric feature is defined
func (r *FeatureRow) Complete() bool {
	return allDefined(r.Numeric())
}

// CompleteWithSquad also requires the squad columns
func (r *FeatureRow) CompleteWithSquad() bool {
	return r.Complete() && allDefined(r.SquadNumeric())
}

// FeatureColumns names the Numeric() values, in order
var FeatureColumns = []string{
	"home_elo", "away_elo", "elo_diff",
	"home_rest", "away_rest",
	"home_goals_5", "away_goals_5",
	"home_xg_5", "away_xg_5",
	"home_points_5", "away_points_5",
	"home_ppda_5", "away_ppda_5",
	"home_deep_5", "away_deep_5",
}

// SquadColumns names the SquadNumeric() values, in order
var SquadColumns = []string{
	"home_squad_xg_chain", "away_squad_xg_chain",
	"home_squad_xg_buildup", "away_squad_xg_buildup",
}

// SkippedMatch records a malformed input row and why it was left out
type SkippedMatch struct {
	MatchID int64
	Reason  string
}

// TeamSnapshot is a team's state after the whole history, for the dashboard
type TeamSnapshot struct {
	TeamID     int        `json:"teamId"`
	Rating     float64    `json:"rating"`
	Matches    int        `json:"matches"`
	LastPlayed time.Time  `json:"lastPlayed"`
	Form       FormValues `json:"form"`
}

// FeatureTable is the output of one assembler run
type FeatureTable struct {
	Rows      []*FeatureRow
	Skipped   []SkippedMatch // malformed input
	Dropped   int            // well formed but without enough history
	Ratings   *RatingResult
	Snapshots []*TeamSnapshot
}

// Label is the classifier target for a finished match
func Label(m *Match) int {
	return int(m.Outcome())
}

// BuildFeatures runs the whole pipeline over a chronologically sorted match
// history: rating, rest days, rolling form, join and label. Malformed matches
// are skipped, matches without enough history are dropped, an out of order or
// duplicated stream aborts the run.
func BuildFeatures(matches []*Match, cfg *Config) (*FeatureTable, error) {
	return BuildFeaturesWithPlayers(matches, nil, cfg)
}

// BuildFeaturesWithPlayers is BuildFeatures plus the squad columns when
// cfg.SquadFeatures is set. Rows whose squad values stay undefined after
// imputation are dropped like any other incomplete row.
func BuildFeaturesWithPlayers(matches []*Match, players []*PlayerSeasonStats, cfg *Config) (*FeatureTable, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	table := &FeatureTable{}
	valid := make([]*Match, 0, len(matches))
	seen := make(map[int64]bool, len(matches))
	for _, m := range matches {
		if m == nil {
			continue
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateMatch, m.ID)
		}
		seen[m.ID] = true
		if err := m.Validate(); err != nil {
			logger.Warn("Skipping match", m.ID, err)
			table.Skipped = append(table.Skipped, SkippedMatch{MatchID: m.ID, Reason: err.Error()})
			continue
		}
		valid = append(valid, m)
	}
	if err := CheckOrder(valid); err != nil {
		return nil, err
	}

	ratings, err := RateMatches(valid, cfg)
	if err != nil {
		return nil, fmt.Errorf("rating pass failed: %w", err)
	}
	table.Ratings = ratings
	rest := RestDays(valid, cfg)
	form, formState := RollingForm(valid, cfg)
	var squads map[int64]SquadPair
	if cfg.SquadFeatures {
		if len(players) == 0 {
			logger.Warn("Squad features are on but there are no player season stats")
		}
		squads = SquadFeatures(valid, players, cfg)
	}

	for _, m := range valid {
		row := assemble(m, ratings.PreMatch[m.ID], rest[m.ID], form[m.ID])
		complete := row.Complete()
		if cfg.SquadFeatures {
			sq := squads[m.ID]
			row.HomeSquadXGChain, row.AwaySquadXGChain = sq.Home.XGChain, sq.Away.XGChain
			row.HomeSquadXGBuildup, row.AwaySquadXGBuildup = sq.Home.XGBuildup, sq.Away.XGBuildup
			complete = row.CompleteWithSquad()
		}
		if !complete {
			table.Dropped++
			logger.Debug("Dropping match without enough history", m.ID)
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	table.Snapshots = snapshots(valid, ratings.Final, formState)

	logger.Info("Features built", len(table.Rows), "rows, skipped", len(table.Skipped), "dropped", table.Dropped)
	return table, nil
}

func assemble(m *Match, r RatingPair, rest RestPair, f FormPair) *FeatureRow {
	return &FeatureRow{
		MatchID:   m.ID,
		Date:      m.Date,
		Seq:       m.Seq,
		HomeID:    m.HomeID,
		AwayID:    m.AwayID,
		HomeGoals: m.HomeGoals,
		AwayGoals: m.AwayGoals,

		HomeElo: r.Home,
		AwayElo: r.Away,
		EloDiff: r.Home - r.Away,

		HomeRest: rest.Home,
		AwayRest: rest.Away,

		HomeGoals5:  f.Home.Goals,
		AwayGoals5:  f.Away.Goals,
		HomeXG5:     f.Home.XG,
		AwayXG5:     f.Away.XG,
		HomePoints5: f.Home.Points,
		AwayPoints5: f.Away.Points,
		HomePPDA5:   f.Home.PPDA,
		AwayPPDA5:   f.Away.PPDA,
		HomeDeep5:   f.Home.Deep,
		AwayDeep5:   f.Away.Deep,

		MatchResult: Label(m),
	}
}

func snapshots(matches []*Match, ratings *RatingState, form *FormState) []*TeamSnapshot {
	last := make(map[int]time.Time)
	for _, m := range matches {
		last[m.HomeID] = m.Date
		last[m.AwayID] = m.Date
	}
	teams := GetTeamsFromMatches(matches)
	out := make([]*TeamSnapshot, 0, len(teams))
	for _, id := range teams {
		out = append(out, &TeamSnapshot{
			TeamID:     id,
			Rating:     ratings.Rating(id),
			Matches:    form.Appearances(id),
			LastPlayed: last[id],
			Form:       form.Latest(id),
		})
	}
	return out
}
