package oracle

import "time"

// RestPair holds the days each side had off before a match
type RestPair struct {
	Home float64
	Away float64
}

type teamDay struct {
	day   time.Time // calendar day, UTC midnight
	first time.Time // earliest kickoff seen on that day
}

func calendarDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// RestDays computes, for both sides of every match, the days elapsed since the
// team's previous match anywhere in the stream. Dates carrying a kickoff time
// give fractional values. A team's first match gets cfg.DefaultRestDays.
//
// Two appearances of one team on the same calendar day are treated as
// simultaneous: both are measured from the previous day the team played.
func RestDays(matches []*Match, cfg *Config) map[int64]RestPair {
	// per team, the distinct days played in ascending order
	days := make(map[int][]teamDay)
	add := func(team int, t time.Time) {
		d := calendarDay(t)
		seq := days[team]
		for i := len(seq) - 1; i >= 0; i-- {
			if seq[i].day.Equal(d) {
				if t.Before(seq[i].first) {
					seq[i].first = t
				}
				return
			}
		}
		days[team] = append(seq, teamDay{day: d, first: t})
	}
	for _, m := range matches {
		add(m.HomeID, m.Date)
		add(m.AwayID, m.Date)
	}

	// (team, day) -> rest; days are appended in chronological order because
	// matches arrive sorted
	type key struct {
		team int
		day  time.Time
	}
	rest := make(map[key]float64)
	for team, seq := range days {
		for i, d := range seq {
			r := cfg.DefaultRestDays
			if i > 0 {
				r = d.first.Sub(seq[i-1].first).Hours() / 24
			}
			rest[key{team, d.day}] = r
		}
	}

	out := make(map[int64]RestPair, len(matches))
	for _, m := range matches {
		d := calendarDay(m.Date)
		out[m.ID] = RestPair{
			Home: rest[key{m.HomeID, d}],
			Away: rest[key{m.AwayID, d}],
		}
	}
	return out
}
