package oracle

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// team 1 wins six in a row at home, scoring day+1 each time
func winningRun(n int) []*Match {
	var ms []*Match
	for i := 0; i < n; i++ {
		ms = append(ms, played(int64(i+1), i*3, 1, i+2, i+1, 0))
	}
	return ms
}

func TestFormNeedsMinimumHistory(t *testing.T) {
	form, _ := RollingForm(winningRun(4), DefaultConfig())

	for id := int64(1); id <= 3; id++ {
		assert.True(t, math.IsNaN(form[id].Home.Goals), "match %d", id)
		assert.False(t, form[id].Home.Complete())
	}
	assert.True(t, form[4].Home.Complete())
	assert.InDelta(t, 2.0, form[4].Home.Goals, 1e-12)
	assert.InDelta(t, 3.0, form[4].Home.Points, 1e-12)
	assert.InDelta(t, 0.0, form[4].Home.Conceded, 1e-12)
	// opponents are all new
	assert.False(t, form[4].Away.Complete())
}

func TestFormUsesTrailingWindow(t *testing.T) {
	form, state := RollingForm(winningRun(7), DefaultConfig())
	// goals 2..6 in the last five
	assert.InDelta(t, 4.0, form[7].Home.Goals, 1e-12)
	assert.Equal(t, 7, state.Appearances(1))
	// latest includes match 7 itself: goals 3..7
	assert.InDelta(t, 5.0, state.Latest(1).Goals, 1e-12)
}

func TestFormExcludesSameDay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFormHistory = 1
	a := played(1, 0, 1, 2, 3, 0)
	b := played(2, 5, 1, 3, 1, 1)
	c := played(3, 5, 4, 1, 0, 2)

	form, _ := RollingForm([]*Match{a, b, c}, cfg)
	assert.InDelta(t, 3.0, form[2].Home.Goals, 1e-12)
	// match 2 is on the same day so it is not prior to match 3
	assert.InDelta(t, 3.0, form[3].Away.Goals, 1e-12)
}

func TestFormImputesBeforeRolling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFormHistory = 1

	a := played(1, 0, 1, 2, 1, 0)
	a.HomeXG, a.AwayXG = 1.0, 2.0
	b := played(2, 3, 1, 2, 1, 0)
	b.HomeXG, b.AwayXG = Missing, Missing
	c := played(3, 6, 1, 2, 1, 0)

	form, state := RollingForm([]*Match{a, b, c}, cfg)
	require.Equal(t, 3, state.Appearances(1))
	// match 2 gets the league mean of the days before it
	assert.InDelta(t, 1.5, state.history[1][1].Values[MetricXG], 1e-12)
	assert.InDelta(t, 1.5, state.history[2][1].Values[MetricXGA], 1e-12)
	assert.InDelta(t, (1.0+1.5)/2, form[3].Home.XG, 1e-12)
}

func TestFormLeavesUnobservedMetricsUndefined(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFormHistory = 1
	a := NewMatch(1, epoch, 1, 2)
	a.HomeGoals, a.AwayGoals = 0, 0
	b := NewMatch(2, epoch.AddDate(0, 0, 4), 1, 2)
	b.HomeGoals, b.AwayGoals = 1, 0

	form, _ := RollingForm([]*Match{a, b}, cfg)
	assert.False(t, form[2].Home.Complete())
	assert.True(t, math.IsNaN(form[2].Home.PPDA))
	assert.True(t, math.IsNaN(form[2].Away.Deep))
	// goals and points never need imputing
	assert.InDelta(t, 1.0, form[2].Away.Points, 1e-12)
	assert.InDelta(t, 0.0, form[2].Home.Goals, 1e-12)
}

func TestFormValuesJSONKeepsUndefinedMeans(t *testing.T) {
	in := FormValues{Goals: 1.5, Conceded: 1, XG: 1.2, XGA: 0.9, Points: 2, PPDA: math.NaN(), Deep: 6}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"ppda":null`)

	var out FormValues
	require.NoError(t, json.Unmarshal(b, &out))
	assert.True(t, math.IsNaN(out.PPDA))
	assert.Equal(t, 1.5, out.Goals)
	assert.Equal(t, 6.0, out.Deep)
}

func TestImputerIgnoresLaterMatches(t *testing.T) {
	im := NewImputer()
	assert.True(t, math.IsNaN(im.Mean(MetricPPDA)))
	im.Observe(played(1, 0, 1, 2, 0, 0))
	assert.InDelta(t, (9.5+12.0)/2, im.Mean(MetricPPDA), 1e-12)

	a := Appearance{Values: [numMetrics]float64{MetricDeep: math.NaN(), MetricGoals: 2}}
	im.Fill(&a)
	assert.InDelta(t, 5.5, a.Values[MetricDeep], 1e-12)
	assert.Equal(t, 2.0, a.Values[MetricGoals])
}
