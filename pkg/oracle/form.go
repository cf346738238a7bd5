package oracle

import (
	"encoding/json"
	"math"
	"time"

	"github.com/richard-senior/oracle/internal/logger"
)

// Metric is one per-team, per-match observation tracked for rolling form
type Metric int

const (
	MetricGoals Metric = iota
	MetricConceded
	MetricXG
	MetricXGA
	MetricPoints
	MetricPPDA
	MetricDeep
	numMetrics
)

// Squad metrics come from player season statistics rather than the match
// stream, so they never enter a rolling window
const (
	MetricSquadXGChain Metric = numMetrics + iota
	MetricSquadXGBuildup
)

func (m Metric) String() string {
	switch m {
	case MetricGoals:
		return "goals"
	case MetricConceded:
		return "conceded"
	case MetricXG:
		return "xg"
	case MetricXGA:
		return "xga"
	case MetricPoints:
		return "points"
	case MetricPPDA:
		return "ppda"
	case MetricDeep:
		return "deep"
	case MetricSquadXGChain:
		return "squad_xg_chain"
	case MetricSquadXGBuildup:
		return "squad_xg_buildup"
	}
	return "unknown"
}

// Imputation says how a missing raw observation is filled before rolling
type Imputation int

const (
	// ImputeNone leaves the value missing; goals and points are never missing
	// on a validated match
	ImputeNone Imputation = iota
	// ImputeGlobalMean fills with the league-wide mean over both sides of every
	// match played on an earlier day. With nothing observed yet the value
	// stays undefined and the row is dropped later.
	ImputeGlobalMean
)

// ImputationPolicy is the one place missing raw metrics are dealt with
var ImputationPolicy = map[Metric]Imputation{
	MetricGoals:    ImputeNone,
	MetricConceded: ImputeNone,
	MetricXG:       ImputeGlobalMean,
	MetricXGA:      ImputeGlobalMean,
	MetricPoints:   ImputeNone,
	MetricPPDA:     ImputeGlobalMean,
	MetricDeep:     ImputeGlobalMean,

	MetricSquadXGChain:   ImputeGlobalMean,
	MetricSquadXGBuildup: ImputeGlobalMean,
}

// Appearance is one team's own view of one match
type Appearance struct {
	MatchID int64
	TeamID  int
	Date    time.Time
	Home    bool
	Values  [numMetrics]float64
}

// FormValues are trailing means for one side. NaN means not enough history.
type FormValues struct {
	Goals    float64 `json:"goals"`
	Conceded float64 `json:"conceded"`
	XG       float64 `json:"xg"`
	XGA      float64 `json:"xga"`
	Points   float64 `json:"points"`
	PPDA     float64 `json:"ppda"`
	Deep     float64 `json:"deep"`
}

// Complete reports whether every mean is defined
func (f FormValues) Complete() bool {
	for _, v := range f.slice() {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

func (f FormValues) slice() []float64 {
	return []float64{f.Goals, f.Conceded, f.XG, f.XGA, f.Points, f.PPDA, f.Deep}
}

// formJSON writes undefined means as null, which encoding/json cannot do for NaN
type formJSON struct {
	Goals    *float64 `json:"goals"`
	Conceded *float64 `json:"conceded"`
	XG       *float64 `json:"xg"`
	XGA      *float64 `json:"xga"`
	Points   *float64 `json:"points"`
	PPDA     *float64 `json:"ppda"`
	Deep     *float64 `json:"deep"`
}

func defined(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func (f FormValues) MarshalJSON() ([]byte, error) {
	return json.Marshal(formJSON{
		Goals:    defined(f.Goals),
		Conceded: defined(f.Conceded),
		XG:       defined(f.XG),
		XGA:      defined(f.XGA),
		Points:   defined(f.Points),
		PPDA:     defined(f.PPDA),
		Deep:     defined(f.Deep),
	})
}

func (f *FormValues) UnmarshalJSON(b []byte) error {
	var j formJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*f = FormValues{
		Goals:    orNaN(j.Goals),
		Conceded: orNaN(j.Conceded),
		XG:       orNaN(j.XG),
		XGA:      orNaN(j.XGA),
		Points:   orNaN(j.Points),
		PPDA:     orNaN(j.PPDA),
		Deep:     orNaN(j.Deep),
	}
	return nil
}

func formValuesFrom(v [numMetrics]float64) FormValues {
	return FormValues{
		Goals:    v[MetricGoals],
		Conceded: v[MetricConceded],
		XG:       v[MetricXG],
		XGA:      v[MetricXGA],
		Points:   v[MetricPoints],
		PPDA:     v[MetricPPDA],
		Deep:     v[MetricDeep],
	}
}

func undefinedForm() FormValues {
	var v [numMetrics]float64
	for i := range v {
		v[i] = math.NaN()
	}
	return formValuesFrom(v)
}

// FormPair holds both sides' pre-match form
type FormPair struct {
	Home FormValues
	Away FormValues
}

// Imputer tracks the league-wide mean of every ImputeGlobalMean metric over
// the days already processed. Gaps are filled from matches strictly before the
// gap's day, so a later match can never change an earlier imputed value.
// A metric nothing has reported yet has no mean and the gap stays NaN.
type Imputer struct {
	sums   map[Metric]float64
	counts map[Metric]int
	warned map[Metric]bool
}

func NewImputer() *Imputer {
	return &Imputer{
		sums:   make(map[Metric]float64),
		counts: make(map[Metric]int),
		warned: make(map[Metric]bool),
	}
}

// Observe adds both sides of a finished match to the running means
func (im *Imputer) Observe(m *Match) {
	add := func(metric Metric, vals ...float64) {
		for _, v := range vals {
			if v >= 0 {
				im.sums[metric] += v
				im.counts[metric]++
			}
		}
	}
	add(MetricXG, m.HomeXG, m.AwayXG)
	add(MetricXGA, m.AwayXG, m.HomeXG)
	add(MetricPPDA, m.HomePPDA, m.AwayPPDA)
	add(MetricDeep, m.HomeDeep, m.AwayDeep)
}

// Mean returns the current imputation value for metric, NaN while nothing
// has been observed
func (im *Imputer) Mean(metric Metric) float64 {
	n := im.counts[metric]
	if n == 0 {
		if !im.warned[metric] {
			logger.Warn("No prior observations for metric, leaving gaps undefined", metric.String())
			im.warned[metric] = true
		}
		return math.NaN()
	}
	return im.sums[metric] / float64(n)
}

// Fill replaces every missing value whose policy is ImputeGlobalMean
func (im *Imputer) Fill(a *Appearance) {
	for metric := Metric(0); metric < numMetrics; metric++ {
		if ImputationPolicy[metric] == ImputeGlobalMean && math.IsNaN(a.Values[metric]) {
			a.Values[metric] = im.Mean(metric)
		}
	}
}

func raw(v float64) float64 {
	if v < 0 {
		return math.NaN()
	}
	return v
}

// appearances splits a match into the home and away perspective rows, each
// carrying that team's own values, then applies the imputation policy
func appearances(m *Match, im *Imputer, cfg *Config) (Appearance, Appearance) {
	homePts, awayPts := cfg.DrawPoints, cfg.DrawPoints
	switch m.Outcome() {
	case HomeWin:
		homePts, awayPts = cfg.WinPoints, cfg.LossPoints
	case AwayWin:
		homePts, awayPts = cfg.LossPoints, cfg.WinPoints
	}

	home := Appearance{MatchID: m.ID, TeamID: m.HomeID, Date: m.Date, Home: true}
	home.Values = [numMetrics]float64{
		MetricGoals:    float64(m.HomeGoals),
		MetricConceded: float64(m.AwayGoals),
		MetricXG:       raw(m.HomeXG),
		MetricXGA:      raw(m.AwayXG),
		MetricPoints:   homePts,
		MetricPPDA:     raw(m.HomePPDA),
		MetricDeep:     raw(m.HomeDeep),
	}

	away := Appearance{MatchID: m.ID, TeamID: m.AwayID, Date: m.Date, Home: false}
	away.Values = [numMetrics]float64{
		MetricGoals:    float64(m.AwayGoals),
		MetricConceded: float64(m.HomeGoals),
		MetricXG:       raw(m.AwayXG),
		MetricXGA:      raw(m.HomeXG),
		MetricPoints:   awayPts,
		MetricPPDA:     raw(m.AwayPPDA),
		MetricDeep:     raw(m.AwayDeep),
	}

	im.Fill(&home)
	im.Fill(&away)
	return home, away
}

// FormState is the per-team chronological list of appearances for one run
type FormState struct {
	history    map[int][]Appearance
	window     int
	minHistory int
}

func NewFormState(cfg *Config) *FormState {
	return &FormState{
		history:    make(map[int][]Appearance),
		window:     cfg.FormWindow,
		minHistory: cfg.MinFormHistory,
	}
}

// Push appends an appearance; callers push in chronological order
func (s *FormState) Push(a Appearance) {
	s.history[a.TeamID] = append(s.history[a.TeamID], a)
}

// Appearances returns the number of matches seen for the team
func (s *FormState) Appearances(teamID int) int {
	return len(s.history[teamID])
}

// Prior returns the trailing means over the team's last window appearances on
// days strictly before a's day. Fewer than minHistory such appearances give
// undefined (NaN) means.
func (s *FormState) Prior(a Appearance) FormValues {
	seq := s.history[a.TeamID]
	day := calendarDay(a.Date)
	end := len(seq)
	for end > 0 && !calendarDay(seq[end-1].Date).Before(day) {
		end--
	}
	return s.mean(seq[:end], s.minHistory)
}

// Latest returns means over the most recent window appearances with no shift,
// describing the team going into its next fixture
func (s *FormState) Latest(teamID int) FormValues {
	return s.mean(s.history[teamID], 1)
}

func (s *FormState) mean(seq []Appearance, minHistory int) FormValues {
	start := len(seq) - s.window
	if start < 0 {
		start = 0
	}
	window := seq[start:]
	if len(window) < minHistory {
		return undefinedForm()
	}
	var sums [numMetrics]float64
	for _, a := range window {
		for i, v := range a.Values {
			sums[i] += v
		}
	}
	for i := range sums {
		sums[i] /= float64(len(window))
	}
	return formValuesFrom(sums)
}

// RollingForm computes pre-match trailing means for both sides of every match.
// matches must be sorted and validated. Imputation is applied to the raw
// observations before they enter any window.
func RollingForm(matches []*Match, cfg *Config) (map[int64]FormPair, *FormState) {
	im := NewImputer()
	state := NewFormState(cfg)
	out := make(map[int64]FormPair, len(matches))

	for i := 0; i < len(matches); {
		// one calendar day at a time; its matches only feed the imputer afterwards
		day := calendarDay(matches[i].Date)
		j := i
		for j < len(matches) && calendarDay(matches[j].Date).Equal(day) {
			m := matches[j]
			home, away := appearances(m, im, cfg)
			out[m.ID] = FormPair{Home: state.Prior(home), Away: state.Prior(away)}
			state.Push(home)
			state.Push(away)
			j++
		}
		for _, m := range matches[i:j] {
			im.Observe(m)
		}
		i = j
	}
	return out, state
}
