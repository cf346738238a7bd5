package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/richard-senior/oracle/internal/logger"
	"github.com/richard-senior/oracle/pkg/oracle"
)

// ReadMatchesFile reads a match history CSV from disk
func ReadMatchesFile(path string) ([]*oracle.Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadMatches(f)
}

// dateLayouts are tried in order for the date column
var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"}

func parseDate(s string) (time.Time, error) {
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// ReadMatches parses a match history CSV. match_id, date, home_team_id and
// away_team_id are required; goals and the advanced statistics are optional
// and an empty cell means missing. Seq follows file order.
//
// A date that cannot be parsed is left zero so the assembler skips that one
// match instead of the whole import failing.
func ReadMatches(r io.Reader) ([]*oracle.Match, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, need := range []string{"match_id", "date", "home_team_id", "away_team_id"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("match file has no %s column", need)
		}
	}

	var out []*oracle.Match
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cell := func(name string) string {
			i, ok := col[name]
			if !ok {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		integer := func(name string) (int, error) {
			v := cell(name)
			if v == "" {
				return oracle.Missing, nil
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("line %d: %s: %w", line, name, err)
			}
			return n, nil
		}
		float := func(name string) (float64, error) {
			v := cell(name)
			if v == "" {
				return oracle.Missing, nil
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return 0, fmt.Errorf("line %d: %s: %w", line, name, err)
			}
			return f, nil
		}

		id, err := strconv.ParseInt(cell("match_id"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: match_id: %w", line, err)
		}
		date, err := parseDate(cell("date"))
		if err != nil {
			logger.Warn("Match has an unusable date", id, err)
		}
		home, err := integer("home_team_id")
		if err != nil {
			return nil, err
		}
		away, err := integer("away_team_id")
		if err != nil {
			return nil, err
		}

		m := oracle.NewMatch(id, date, home, away)
		m.Seq = line - 1
		ints := []struct {
			name string
			dst  *int
		}{{"home_goals", &m.HomeGoals}, {"away_goals", &m.AwayGoals}}
		for _, f := range ints {
			if *f.dst, err = integer(f.name); err != nil {
				return nil, err
			}
		}
		floats := []struct {
			name string
			dst  *float64
		}{
			{"home_xg", &m.HomeXG}, {"away_xg", &m.AwayXG},
			{"home_ppda", &m.HomePPDA}, {"away_ppda", &m.AwayPPDA},
			{"home_deep", &m.HomeDeep}, {"away_deep", &m.AwayDeep},
		}
		for _, f := range floats {
			if *f.dst, err = float(f.name); err != nil {
				return nil, err
			}
		}
		out = append(out, m)
	}
	return out, nil
}
