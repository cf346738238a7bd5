package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/richard-senior/oracle/pkg/oracle"
)

// ReadPlayerStatsFile reads a player season stats CSV from disk
func ReadPlayerStatsFile(path string) ([]*oracle.PlayerSeasonStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadPlayerStats(f)
}

// ReadPlayerStats parses player season totals. player_id, team_id and season
// are required; goals, xg_chain and xg_buildup may be empty.
func ReadPlayerStats(r io.Reader) ([]*oracle.PlayerSeasonStats, error) {
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
	for _, need := range []string{"player_id", "team_id", "season"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("player stats file has no %s column", need)
		}
	}

	var out []*oracle.PlayerSeasonStats
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
		integer := func(name string, missing int) (int, error) {
			v := cell(name)
			if v == "" {
				return missing, nil
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

		p := &oracle.PlayerSeasonStats{}
		for _, req := range []struct {
			name string
			dst  *int
		}{{"player_id", &p.PlayerID}, {"team_id", &p.TeamID}, {"season", &p.Season}} {
			if cell(req.name) == "" {
				return nil, fmt.Errorf("line %d: %s is empty", line, req.name)
			}
			if *req.dst, err = integer(req.name, 0); err != nil {
				return nil, err
			}
		}
		if p.Goals, err = integer("goals", 0); err != nil {
			return nil, err
		}
		if p.XGChain, err = float("xg_chain"); err != nil {
			return nil, err
		}
		if p.XGBuildup, err = float("xg_buildup"); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
