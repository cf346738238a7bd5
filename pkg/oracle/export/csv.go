package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/richard-senior/oracle/internal/logger"
	"github.com/richard-senior/oracle/pkg/oracle"
)

var _ oracle.FeatureSink = (*CSVWriter)(nil)

// Header is the column order of an exported feature table. The squad columns
// only appear when the run computed them.
func Header(squad bool) []string {
	h := []string{"match_id", "date", "home_team_id", "away_team_id", "home_goals", "away_goals"}
	h = append(h, oracle.FeatureColumns...)
	if squad {
		h = append(h, oracle.SquadColumns...)
	}
	return append(h, "match_result")
}

// CSVWriter writes the feature table to a file, brotli compressed when the
// path ends in .br
type CSVWriter struct {
	Path  string
	Squad bool // include the squad columns
}

func NewCSVWriter(path string, squad bool) *CSVWriter {
	return &CSVWriter{Path: path, Squad: squad}
}

// SaveFeatures replaces the file with rows
func (w *CSVWriter) SaveFeatures(ctx context.Context, rows []*oracle.FeatureRow) error {
	f, err := os.Create(w.Path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", w.Path, err)
	}
	defer f.Close()

	var out io.Writer = f
	var br *brotli.Writer
	if strings.HasSuffix(w.Path, ".br") {
		br = brotli.NewWriterLevel(f, brotli.DefaultCompression)
		out = br
	}
	if err := WriteFeatures(out, rows, w.Squad); err != nil {
		return err
	}
	if br != nil {
		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to flush brotli stream: %w", err)
		}
	}
	logger.Info("Exported feature rows to", w.Path, len(rows))
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteFeatures writes a header and one record per row. Floats use the
// shortest exact representation so equal tables give equal bytes.
func WriteFeatures(w io.Writer, rows []*oracle.FeatureRow, squad bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(squad)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatInt(r.MatchID, 10),
			r.Date.UTC().Format(time.RFC3339),
			strconv.Itoa(r.HomeID),
			strconv.Itoa(r.AwayID),
			strconv.Itoa(r.HomeGoals),
			strconv.Itoa(r.AwayGoals),
		}
		for _, v := range r.Numeric() {
			rec = append(rec, formatFloat(v))
		}
		if squad {
			for _, v := range r.SquadNumeric() {
				rec = append(rec, formatFloat(v))
			}
		}
		rec = append(rec, strconv.Itoa(r.MatchResult))
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r.MatchID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Prediction is the classifier's output for one match, with prices when the
// file carries them
type Prediction struct {
	MatchID       int64
	Probabilities oracle.Probabilities
	Odds          oracle.Odds
	HasOdds       bool
}

// OpenPredictions reads a predictions file, decompressing .br files
func OpenPredictions(path string) ([]Prediction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".br") {
		r = brotli.NewReader(r)
	}
	return ReadPredictions(r)
}

// ReadPredictions parses a CSV with a header naming at least match_id,
// prob_home, prob_draw and prob_away. odds_home, odds_draw and odds_away are
// optional. Column order is free.
func ReadPredictions(r io.Reader) ([]Prediction, error) {
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
	for _, need := range []string{"match_id", "prob_home", "prob_draw", "prob_away"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("predictions file has no %s column", need)
		}
	}
	_, withOdds := col["odds_home"]
	if withOdds {
		for _, need := range []string{"odds_draw", "odds_away"} {
			if _, ok := col[need]; !ok {
				return nil, fmt.Errorf("predictions file has odds_home but no %s column", need)
			}
		}
	}

	var out []Prediction
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
		num := func(name string) (float64, error) {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[col[name]]), 64)
			if err != nil {
				return 0, fmt.Errorf("line %d: %s: %w", line, name, err)
			}
			return v, nil
		}

		id, err := strconv.ParseInt(strings.TrimSpace(rec[col["match_id"]]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: match_id: %w", line, err)
		}
		p := Prediction{MatchID: id, HasOdds: withOdds}
		if p.Probabilities.Home, err = num("prob_home"); err != nil {
			return nil, err
		}
		if p.Probabilities.Draw, err = num("prob_draw"); err != nil {
			return nil, err
		}
		if p.Probabilities.Away, err = num("prob_away"); err != nil {
			return nil, err
		}
		if withOdds {
			if p.Odds.Home, err = num("odds_home"); err != nil {
				return nil, err
			}
			if p.Odds.Draw, err = num("odds_draw"); err != nil {
				return nil, err
			}
			if p.Odds.Away, err = num("odds_away"); err != nil {
				return nil, err
			}
		}
		out = append(out, p)
	}
	return out, nil
}
