package oracle

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabel(t *testing.T) {
	assert.Equal(t, 2, Label(played(1, 0, 1, 2, 2, 1)))
	assert.Equal(t, 1, Label(played(2, 0, 1, 2, 1, 1)))
	assert.Equal(t, 0, Label(played(3, 0, 1, 2, 0, 3)))
}

func TestBuildFeaturesDropsEarlyMatches(t *testing.T) {
	table, err := BuildFeatures(roundRobin(10), DefaultConfig())
	require.NoError(t, err)

	// every team needs three prior rounds
	assert.Equal(t, 9, table.Dropped)
	assert.Len(t, table.Rows, 21)
	assert.Empty(t, table.Skipped)

	for _, r := range table.Rows {
		assert.True(t, r.Complete(), "row %d", r.MatchID)
		assert.Len(t, r.Numeric(), len(FeatureColumns))
		assert.Equal(t, r.HomeElo-r.AwayElo, r.EloDiff)
		want := 1
		if r.HomeGoals > r.AwayGoals {
			want = 2
		} else if r.HomeGoals < r.AwayGoals {
			want = 0
		}
		assert.Equal(t, want, r.MatchResult)
	}
}

func TestBuildFeaturesUsesPreMatchRatings(t *testing.T) {
	table, err := BuildFeatures(roundRobin(6), DefaultConfig())
	require.NoError(t, err)
	for _, r := range table.Rows {
		pre := table.Ratings.PreMatch[r.MatchID]
		assert.Equal(t, pre.Home, r.HomeElo)
		assert.Equal(t, pre.Away, r.AwayElo)
	}
}

func TestBuildFeaturesIsIdempotent(t *testing.T) {
	first, err := BuildFeatures(roundRobin(10), DefaultConfig())
	require.NoError(t, err)
	second, err := BuildFeatures(roundRobin(10), DefaultConfig())
	require.NoError(t, err)

	a, err := json.Marshal(first.Rows)
	require.NoError(t, err)
	b, err := json.Marshal(second.Rows)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildFeaturesHasNoLookahead(t *testing.T) {
	history := roundRobin(10)
	before, err := BuildFeatures(history, DefaultConfig())
	require.NoError(t, err)

	// a future match with wild numbers and gaps the imputer must fill
	future := played(999, 60, 1, 2, 9, 9)
	future.HomeXG, future.AwayPPDA, future.HomeDeep = Missing, 40, Missing
	after, err := BuildFeatures(append(roundRobin(10), future), DefaultConfig())
	require.NoError(t, err)

	require.Len(t, after.Rows, len(before.Rows)+1)
	a, err := json.Marshal(before.Rows)
	require.NoError(t, err)
	b, err := json.Marshal(after.Rows[:len(before.Rows)])
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestBuildFeaturesSkipsMalformed(t *testing.T) {
	ms := roundRobin(4)
	broken := NewMatch(500, ms[5].Date, 1, 2)
	ms = append(ms[:6], append([]*Match{broken}, ms[6:]...)...)

	table, err := BuildFeatures(ms, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, table.Skipped, 1)
	assert.Equal(t, int64(500), table.Skipped[0].MatchID)
	assert.Len(t, table.Rows, 3)
}

func TestBuildFeaturesRejectsDuplicates(t *testing.T) {
	ms := roundRobin(2)
	ms = append(ms, ms[0])
	_, err := BuildFeatures(ms, DefaultConfig())
	assert.True(t, errors.Is(err, ErrDuplicateMatch))
}

func TestBuildFeaturesRejectsUnsortedInput(t *testing.T) {
	ms := roundRobin(3)
	ms[0], ms[8] = ms[8], ms[0]
	_, err := BuildFeatures(ms, DefaultConfig())
	assert.True(t, errors.Is(err, ErrOrderingViolation))
}

func TestBuildFeaturesRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FormWindow = 0
	_, err := BuildFeatures(roundRobin(2), cfg)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestBuildFeaturesSnapshots(t *testing.T) {
	table, err := BuildFeatures(roundRobin(10), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, table.Snapshots, 6)
	for i, s := range table.Snapshots {
		assert.Equal(t, i+1, s.TeamID)
		assert.Equal(t, 10, s.Matches)
		assert.Equal(t, table.Ratings.Final.Rating(s.TeamID), s.Rating)
		assert.True(t, s.Form.Complete())
	}
}

func TestBuildFeaturesEmpty(t *testing.T) {
	table, err := BuildFeatures(nil, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
	assert.Empty(t, table.Snapshots)
}

func TestBuildFeaturesWithLatePressingCoverage(t *testing.T) {
	// PPDA is only reported from day 20 (round 5) onwards
	ms := roundRobin(14)
	coverage := epoch.AddDate(0, 0, 20)
	for _, m := range ms {
		if m.Date.Before(coverage) {
			m.HomePPDA, m.AwayPPDA = Missing, Missing
		}
	}

	table, err := BuildFeatures(ms, DefaultConfig())
	require.NoError(t, err)

	// a window is only usable once all five prior rounds carry PPDA
	assert.Len(t, table.Rows, 12)
	assert.Equal(t, 30, table.Dropped)
	for _, r := range table.Rows {
		assert.False(t, r.Date.Before(epoch.AddDate(0, 0, 40)), "row %d", r.MatchID)
		for _, v := range []float64{r.HomePPDA5, r.AwayPPDA5} {
			assert.GreaterOrEqual(t, v, 9.5, "row %d", r.MatchID)
			assert.LessOrEqual(t, v, 12.0, "row %d", r.MatchID)
		}
	}
}
