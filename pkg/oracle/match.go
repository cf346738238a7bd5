package oracle

import (
	"fmt"
	"sort"
	"time"
)

// Outcome of a finished match. The numeric values are the label written to
// the feature table: 0 away win, 1 draw, 2 home win
type Outcome int

const (
	AwayWin Outcome = iota
	Draw
	HomeWin
)

func (o Outcome) String() string {
	switch o {
	case AwayWin:
		return "away"
	case Draw:
		return "draw"
	case HomeWin:
		return "home"
	}
	return "unknown"
}

// Missing is the sentinel stored in any numeric Match field that the source
// never supplied. All the raw statistics are non-negative so -1 cannot clash
// with a real value.
const Missing = -1

// Match is a single fixture as handed over by the ingestion layer.
// It is read-only to the pipeline.
type Match struct {
	ID   int64     `json:"matchId" column:"match_id" dbtype:"BIGINT" primary:"true"`
	Date time.Time `json:"date" column:"date" dbtype:"TIMESTAMP NOT NULL" index:"true"`
	// Seq is the ingestion sequence; it breaks ties between matches on the same date
	Seq    int `json:"seq" column:"seq" dbtype:"INTEGER DEFAULT 0"`
	HomeID int `json:"homeTeamId" column:"home_team_id" dbtype:"INTEGER NOT NULL" index:"true"`
	AwayID int `json:"awayTeamId" column:"away_team_id" dbtype:"INTEGER NOT NULL" index:"true"`

	HomeGoals int `json:"homeGoals" column:"home_goals" dbtype:"INTEGER DEFAULT -1"`
	AwayGoals int `json:"awayGoals" column:"away_goals" dbtype:"INTEGER DEFAULT -1"`

	// Advanced stats, -1 when the source had nothing
	HomeXG   float64 `json:"homeXg" column:"home_xg" dbtype:"REAL DEFAULT -1.0"`
	AwayXG   float64 `json:"awayXg" column:"away_xg" dbtype:"REAL DEFAULT -1.0"`
	HomePPDA float64 `json:"homePpda" column:"home_ppda" dbtype:"REAL DEFAULT -1.0"`
	AwayPPDA float64 `json:"awayPpda" column:"away_ppda" dbtype:"REAL DEFAULT -1.0"`
	HomeDeep float64 `json:"homeDeep" column:"home_deep" dbtype:"REAL DEFAULT -1.0"`
	AwayDeep float64 `json:"awayDeep" column:"away_deep" dbtype:"REAL DEFAULT -1.0"`
}

// NewMatch creates a Match with every optional numeric field set to Missing
func NewMatch(id int64, date time.Time, homeID, awayID int) *Match {
	return &Match{
		ID:        id,
		Date:      date,
		HomeID:    homeID,
		AwayID:    awayID,
		HomeGoals: Missing,
		AwayGoals: Missing,
		HomeXG:    Missing,
		AwayXG:    Missing,
		HomePPDA:  Missing,
		AwayPPDA:  Missing,
		HomeDeep:  Missing,
		AwayDeep:  Missing,
	}
}

/////////////////////////////////////////////////////////////////////////
////// Persistable Interface Implementation
/////////////////////////////////////////////////////////////////////////

// GetTableName returns the table name for matches
func (m *Match) GetTableName() string {
	return "matches"
}

// GetPrimaryKey returns the primary key as a map
func (m *Match) GetPrimaryKey() map[string]any {
	return map[string]any{"match_id": m.ID}
}

// BeforeSave normalises the date so sqlite and postgres round trip it the same way
func (m *Match) BeforeSave() error {
	m.Date = m.Date.UTC()
	return nil
}

/////////////////////////////////////////////////////////////////////////
////// Status Query Methods
/////////////////////////////////////////////////////////////////////////

// HasBeenPlayed determines if the match has a final score
func (m *Match) HasBeenPlayed() bool {
	return m.HomeGoals >= 0 && m.AwayGoals >= 0
}

func (m *Match) HasXG() bool   { return m.HomeXG >= 0 && m.AwayXG >= 0 }
func (m *Match) HasPPDA() bool { return m.HomePPDA >= 0 && m.AwayPPDA >= 0 }
func (m *Match) HasDeep() bool { return m.HomeDeep >= 0 && m.AwayDeep >= 0 }

// Outcome derives the result from goals. Only meaningful once HasBeenPlayed.
func (m *Match) Outcome() Outcome {
	switch {
	case m.HomeGoals > m.AwayGoals:
		return HomeWin
	case m.HomeGoals == m.AwayGoals:
		return Draw
	default:
		return AwayWin
	}
}

// HomeScore is the actual score used by the rating update: 1, 0.5 or 0
func (m *Match) HomeScore() float64 {
	switch m.Outcome() {
	case HomeWin:
		return 1.0
	case Draw:
		return 0.5
	}
	return 0.0
}

// Validate reports why a match cannot enter the pipeline, wrapped in ErrMalformedMatch
func (m *Match) Validate() error {
	switch {
	case m.Date.IsZero():
		return fmt.Errorf("%w: match %d has no date", ErrMalformedMatch, m.ID)
	case !m.HasBeenPlayed():
		return fmt.Errorf("%w: match %d has no final score", ErrMalformedMatch, m.ID)
	case m.HomeID <= 0 || m.AwayID <= 0:
		return fmt.Errorf("%w: match %d has no team id", ErrMalformedMatch, m.ID)
	case m.HomeID == m.AwayID:
		return fmt.Errorf("%w: match %d has team %d playing itself", ErrMalformedMatch, m.ID, m.HomeID)
	}
	return nil
}

// Before reports whether m sorts ahead of n in the chronological order used by
// every stage: date first, ingestion sequence second
func (m *Match) Before(n *Match) bool {
	if !m.Date.Equal(n.Date) {
		return m.Date.Before(n.Date)
	}
	return m.Seq < n.Seq
}

/////////////////////////////////////////////////////////////////////////
////// Match Collection Operations
/////////////////////////////////////////////////////////////////////////

// SortMatches sorts in place by date then ingestion sequence
func SortMatches(matches []*Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Before(matches[j])
	})
}

// CheckOrder returns ErrOrderingViolation naming the first pair out of order
func CheckOrder(matches []*Match) error {
	for i := 1; i < len(matches); i++ {
		if matches[i].Before(matches[i-1]) {
			return fmt.Errorf("%w: match %d (%s) follows match %d (%s)", ErrOrderingViolation,
				matches[i].ID, matches[i].Date.Format(time.RFC3339),
				matches[i-1].ID, matches[i-1].Date.Format(time.RFC3339))
		}
	}
	return nil
}

// GetTeamsFromMatches extracts unique team IDs from matches in ascending order
func GetTeamsFromMatches(matches []*Match) []int {
	teamSet := make(map[int]bool)
	for _, m := range matches {
		teamSet[m.HomeID] = true
		teamSet[m.AwayID] = true
	}
	teams := make([]int, 0, len(teamSet))
	for id := range teamSet {
		teams = append(teams, id)
	}
	sort.Ints(teams)
	return teams
}
