package oracle

import (
	"math"
	"time"
)

// PlayerSeasonStats is one player's totals for one season at one club
type PlayerSeasonStats struct {
	PlayerID  int     `json:"playerId" column:"player_id" dbtype:"INTEGER NOT NULL" primary:"true"`
	TeamID    int     `json:"teamId" column:"team_id" dbtype:"INTEGER NOT NULL" primary:"true" index:"true"`
	Season    int     `json:"season" column:"season" dbtype:"INTEGER NOT NULL" primary:"true" index:"true"`
	Goals     int     `json:"goals" column:"goals" dbtype:"INTEGER DEFAULT 0"`
	XGChain   float64 `json:"xgChain" column:"xg_chain" dbtype:"REAL DEFAULT -1.0"`
	XGBuildup float64 `json:"xgBuildup" column:"xg_buildup" dbtype:"REAL DEFAULT -1.0"`
}

func (p *PlayerSeasonStats) GetTableName() string { return "player_season_stats" }

func (p *PlayerSeasonStats) GetPrimaryKey() map[string]any {
	return map[string]any{"player_id": p.PlayerID, "team_id": p.TeamID, "season": p.Season}
}

func (p *PlayerSeasonStats) BeforeSave() error { return nil }

// SeasonOf labels a date with the calendar year its season started in
func SeasonOf(t time.Time, startMonth time.Month) int {
	u := t.UTC()
	if u.Month() < startMonth {
		return u.Year() - 1
	}
	return u.Year()
}

// SquadValues are a squad's per-player averages. NaN means unknown.
type SquadValues struct {
	XGChain   float64
	XGBuildup float64
}

// SquadPair holds both sides' squad values for one match
type SquadPair struct {
	Home SquadValues
	Away SquadValues
}

type squadKey struct {
	team   int
	season int
}

type meanAcc struct {
	chain, buildup   float64
	nChain, nBuildup int
}

func (a *meanAcc) add(chain, buildup float64) {
	if chain >= 0 && !math.IsNaN(chain) {
		a.chain += chain
		a.nChain++
	}
	if buildup >= 0 && !math.IsNaN(buildup) {
		a.buildup += buildup
		a.nBuildup++
	}
}

func (a *meanAcc) values() SquadValues {
	v := SquadValues{XGChain: math.NaN(), XGBuildup: math.NaN()}
	if a.nChain > 0 {
		v.XGChain = a.chain / float64(a.nChain)
	}
	if a.nBuildup > 0 {
		v.XGBuildup = a.buildup / float64(a.nBuildup)
	}
	return v
}

// SquadTable holds per-team, per-season squad averages and the league mean of
// those averages for each season
type SquadTable struct {
	teams   map[squadKey]SquadValues
	seasons map[int]SquadValues
}

// NewSquadTable averages player rows per team and season. Negative values are
// treated as missing.
func NewSquadTable(stats []*PlayerSeasonStats) *SquadTable {
	perTeam := make(map[squadKey]*meanAcc)
	for _, p := range stats {
		if p == nil {
			continue
		}
		k := squadKey{p.TeamID, p.Season}
		if perTeam[k] == nil {
			perTeam[k] = &meanAcc{}
		}
		perTeam[k].add(p.XGChain, p.XGBuildup)
	}

	t := &SquadTable{
		teams:   make(map[squadKey]SquadValues, len(perTeam)),
		seasons: make(map[int]SquadValues),
	}
	perSeason := make(map[int]*meanAcc)
	for k, acc := range perTeam {
		v := acc.values()
		t.teams[k] = v
		if perSeason[k.season] == nil {
			perSeason[k.season] = &meanAcc{}
		}
		perSeason[k.season].add(v.XGChain, v.XGBuildup)
	}
	for season, acc := range perSeason {
		t.seasons[season] = acc.values()
	}
	return t
}

// Lookup returns the team's values for season. A missing value falls back to
// the league mean of that season when the imputation policy asks for it.
func (t *SquadTable) Lookup(teamID, season int) SquadValues {
	v, ok := t.teams[squadKey{teamID, season}]
	if !ok {
		v = SquadValues{XGChain: math.NaN(), XGBuildup: math.NaN()}
	}
	league, ok := t.seasons[season]
	if !ok {
		league = SquadValues{XGChain: math.NaN(), XGBuildup: math.NaN()}
	}
	if math.IsNaN(v.XGChain) && ImputationPolicy[MetricSquadXGChain] == ImputeGlobalMean {
		v.XGChain = league.XGChain
	}
	if math.IsNaN(v.XGBuildup) && ImputationPolicy[MetricSquadXGBuildup] == ImputeGlobalMean {
		v.XGBuildup = league.XGBuildup
	}
	return v
}

// SquadFeatures attaches to every match the squad averages of the season
// before the match's season. A season's totals are only final once it ends,
// so the current season is never used.
func SquadFeatures(matches []*Match, stats []*PlayerSeasonStats, cfg *Config) map[int64]SquadPair {
	table := NewSquadTable(stats)
	out := make(map[int64]SquadPair, len(matches))
	for _, m := range matches {
		prior := SeasonOf(m.Date, cfg.SeasonStartMonth) - 1
		out[m.ID] = SquadPair{
			Home: table.Lookup(m.HomeID, prior),
			Away: table.Lookup(m.AwayID, prior),
		}
	}
	return out
}
