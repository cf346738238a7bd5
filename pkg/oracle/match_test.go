package oracle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatchMarksEverythingMissing(t *testing.T) {
	m := NewMatch(1, epoch, 10, 20)
	assert.False(t, m.HasBeenPlayed())
	assert.False(t, m.HasXG())
	assert.False(t, m.HasPPDA())
	assert.False(t, m.HasDeep())
	assert.Equal(t, Missing, m.HomeGoals)
}

func TestMatchOutcome(t *testing.T) {
	tests := []struct {
		home, away int
		want       Outcome
		score      float64
	}{
		{2, 1, HomeWin, 1},
		{1, 1, Draw, 0.5},
		{0, 3, AwayWin, 0},
	}
	for _, tt := range tests {
		m := played(1, 0, 1, 2, tt.home, tt.away)
		assert.Equal(t, tt.want, m.Outcome())
		assert.Equal(t, tt.score, m.HomeScore())
	}
	assert.Equal(t, "home", HomeWin.String())
	assert.Equal(t, "draw", Draw.String())
	assert.Equal(t, "away", AwayWin.String())
}

func TestMatchValidate(t *testing.T) {
	ok := played(1, 0, 1, 2, 1, 0)
	require.NoError(t, ok.Validate())

	noScore := NewMatch(2, epoch, 1, 2)
	noDate := played(3, 0, 1, 2, 1, 0)
	noDate.Date = time.Time{}
	self := played(4, 0, 5, 5, 1, 0)
	noTeam := played(5, 0, 0, 2, 1, 0)

	for _, m := range []*Match{noScore, noDate, self, noTeam} {
		err := m.Validate()
		assert.True(t, errors.Is(err, ErrMalformedMatch), "match %d: %v", m.ID, err)
	}
}

func TestSortMatchesUsesDateThenSeq(t *testing.T) {
	a := played(1, 1, 1, 2, 0, 0)
	b := played(2, 0, 3, 4, 0, 0)
	c := played(3, 0, 5, 6, 0, 0)
	c.Seq = 0
	ms := []*Match{a, b, c}
	require.Error(t, CheckOrder(ms))

	SortMatches(ms)
	assert.Equal(t, []int64{3, 2, 1}, []int64{ms[0].ID, ms[1].ID, ms[2].ID})
	assert.NoError(t, CheckOrder(ms))
}

func TestCheckOrderReportsViolation(t *testing.T) {
	ms := []*Match{played(1, 3, 1, 2, 0, 0), played(2, 1, 1, 2, 0, 0)}
	err := CheckOrder(ms)
	assert.True(t, errors.Is(err, ErrOrderingViolation))
}

func TestGetTeamsFromMatches(t *testing.T) {
	ms := []*Match{played(1, 0, 7, 3, 0, 0), played(2, 1, 3, 5, 0, 0)}
	assert.Equal(t, []int{3, 5, 7}, GetTeamsFromMatches(ms))
}
