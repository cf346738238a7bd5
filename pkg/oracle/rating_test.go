package oracle

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatingSeedScenario(t *testing.T) {
	cfg := DefaultConfig()
	res, err := RateMatches([]*Match{played(1, 0, 1, 2, 2, 0)}, cfg)
	require.NoError(t, err)

	assert.Equal(t, RatingPair{Home: 1500, Away: 1500}, res.PreMatch[1])
	assert.InDelta(t, 1510, res.Final.Rating(1), 1e-9)
	assert.InDelta(t, 1490, res.Final.Rating(2), 1e-9)

	require.Len(t, res.History, 2)
	assert.Equal(t, 1, res.History[0].TeamID)
	assert.InDelta(t, 1510, res.History[0].Rating, 1e-9)
	assert.InDelta(t, 1490, res.History[1].Rating, 1e-9)
}

func TestUnseenTeamGetsBaseline(t *testing.T) {
	s := NewRatingState(DefaultConfig())
	assert.Equal(t, 1500.0, s.Rating(42))
	assert.Empty(t, s.Ratings())
}

func TestRatingConservation(t *testing.T) {
	scores := [][2]int{{3, 0}, {1, 1}, {0, 2}}
	for _, k := range []float64{1, 20, 32, 64} {
		for _, sc := range scores {
			cfg := DefaultConfig()
			cfg.KFactor = k
			// give the pair unequal ratings first
			history := []*Match{played(1, 0, 1, 3, 4, 0), played(2, 1, 2, 4, 0, 1), played(3, 5, 1, 2, sc[0], sc[1])}
			res, err := RateMatches(history, cfg)
			require.NoError(t, err)

			pre := res.PreMatch[3]
			dh := res.Final.Rating(1) - pre.Home
			da := res.Final.Rating(2) - pre.Away
			assert.InDelta(t, math.Abs(dh), math.Abs(da), 1e-9, "k=%v score=%v", k, sc)
			assert.InDelta(t, 0, dh+da, 1e-9)
		}
	}
}

func TestRatingTotalIsConserved(t *testing.T) {
	res, err := RateMatches(roundRobin(8), DefaultConfig())
	require.NoError(t, err)
	total := 0.0
	for _, r := range res.Final.Ratings() {
		total += r
	}
	assert.InDelta(t, 6*1500.0, total, 1e-6)
}

func TestRatingMonotonicity(t *testing.T) {
	prefix := []*Match{played(1, 0, 1, 3, 1, 2), played(2, 1, 2, 3, 2, 0)}
	win := append(append([]*Match{}, prefix...), played(3, 4, 1, 2, 2, 1))
	draw := append(append([]*Match{}, prefix...), played(3, 4, 1, 2, 1, 1))

	rw, err := RateMatches(win, DefaultConfig())
	require.NoError(t, err)
	rd, err := RateMatches(draw, DefaultConfig())
	require.NoError(t, err)

	assert.Greater(t, rw.Final.Rating(1), rd.Final.Rating(1))
	assert.Less(t, rw.Final.Rating(2), rd.Final.Rating(2))
}

func TestRatingRejectsOutOfOrder(t *testing.T) {
	_, err := RateMatches([]*Match{played(1, 5, 1, 2, 1, 0), played(2, 1, 1, 2, 1, 0)}, DefaultConfig())
	assert.True(t, errors.Is(err, ErrOrderingViolation))
}

func TestRatingRejectsUnplayed(t *testing.T) {
	_, err := RateMatches([]*Match{NewMatch(1, epoch, 1, 2)}, DefaultConfig())
	assert.True(t, errors.Is(err, ErrMalformedMatch))
}

func TestRatingRunsAreIndependent(t *testing.T) {
	ms := roundRobin(4)
	a, err := RateMatches(ms, DefaultConfig())
	require.NoError(t, err)
	b, err := RateMatches(ms, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, a.Final.Ratings(), b.Final.Ratings())
	assert.Equal(t, a.PreMatch, b.PreMatch)
}

func TestExpectedHomeScore(t *testing.T) {
	assert.InDelta(t, 0.5, ExpectedHomeScore(1500, 1500, 400), 1e-12)
	assert.InDelta(t, 10.0/11.0, ExpectedHomeScore(1900, 1500, 400), 1e-12)
}
