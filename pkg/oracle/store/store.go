package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/richard-senior/oracle/internal/logger"
	"github.com/richard-senior/oracle/pkg/oracle"
)

// Compile-time checks that the store can feed and receive the pipeline
var (
	_ oracle.MatchSource       = (*Store)(nil)
	_ oracle.PlayerStatsSource = (*Store)(nil)
	_ oracle.FeatureSink       = (*Store)(nil)
	_ oracle.RatingHistorySink = (*Store)(nil)
	_ Persistable              = (*oracle.Match)(nil)
	_ Persistable              = (*oracle.FeatureRow)(nil)
	_ Persistable              = (*oracle.RatingPoint)(nil)
	_ Persistable              = (*oracle.PlayerSeasonStats)(nil)
)

type dialect struct {
	name   string
	dollar bool // $1 placeholders instead of ?
}

func (d dialect) placeholder(n int) string {
	if d.dollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// columnType maps the struct tag types onto what the engine wants. Postgres
// REAL is single precision, which would not round trip the features.
func (d dialect) columnType(t string) string {
	if d.name == "postgres" {
		return strings.ReplaceAll(t, "REAL", "DOUBLE PRECISION")
	}
	return t
}

// Store holds the raw matches, the feature table and the rating history in a
// relational database: sqlite (modernc, pure Go) or postgres (lib/pq)
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the database and creates any missing tables
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var d dialect
	switch driver {
	case "sqlite":
		d = dialect{name: "sqlite"}
	case "postgres":
		d = dialect{name: "postgres", dollar: true}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.name == "sqlite" {
		// one connection keeps an in-memory database alive and serialises writers
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, dialect: d}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Database initialised", driver)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables(ctx context.Context) error {
	for _, obj := range []Persistable{&oracle.Match{}, &oracle.FeatureRow{}, &oracle.RatingPoint{}, &oracle.PlayerSeasonStats{}} {
		if err := s.CreateTable(ctx, obj); err != nil {
			return err
		}
	}
	return nil
}

// SaveMatches upserts raw matches, as the ingestion layer would
func (s *Store) SaveMatches(ctx context.Context, matches []*oracle.Match) error {
	objs := make([]Persistable, len(matches))
	for i, m := range matches {
		objs[i] = m
	}
	if err := s.bulkSave(ctx, "matches", false, objs); err != nil {
		return fmt.Errorf("failed to bulk save matches: %w", err)
	}
	logger.Info("Bulk saved/updated matches", len(matches))
	return nil
}

// LoadMatches returns every match ordered by date then ingestion sequence
func (s *Store) LoadMatches(ctx context.Context) ([]*oracle.Match, error) {
	res, err := s.findWhere(ctx, &oracle.Match{}, "ORDER BY date, seq, match_id")
	if err != nil {
		return nil, err
	}
	out := make([]*oracle.Match, len(res))
	for i, r := range res {
		out[i] = r.(*oracle.Match)
	}
	return out, nil
}

// SavePlayerStats upserts player season totals
func (s *Store) SavePlayerStats(ctx context.Context, stats []*oracle.PlayerSeasonStats) error {
	objs := make([]Persistable, len(stats))
	for i, p := range stats {
		objs[i] = p
	}
	if err := s.bulkSave(ctx, "player_season_stats", false, objs); err != nil {
		return fmt.Errorf("failed to bulk save player stats: %w", err)
	}
	logger.Info("Bulk saved/updated player season stats", len(stats))
	return nil
}

// LoadPlayerStats returns every player season row
func (s *Store) LoadPlayerStats(ctx context.Context) ([]*oracle.PlayerSeasonStats, error) {
	res, err := s.findWhere(ctx, &oracle.PlayerSeasonStats{}, "ORDER BY season, team_id, player_id")
	if err != nil {
		return nil, err
	}
	out := make([]*oracle.PlayerSeasonStats, len(res))
	for i, r := range res {
		out[i] = r.(*oracle.PlayerSeasonStats)
	}
	return out, nil
}

// SaveFeatures replaces the feature table with rows
func (s *Store) SaveFeatures(ctx context.Context, rows []*oracle.FeatureRow) error {
	objs := make([]Persistable, len(rows))
	for i, r := range rows {
		objs[i] = r
	}
	if err := s.bulkSave(ctx, "model_features", true, objs); err != nil {
		return fmt.Errorf("failed to save feature table: %w", err)
	}
	logger.Info("Saved feature rows", len(rows))
	return nil
}

// LoadFeatures returns the whole feature table in chronological order
func (s *Store) LoadFeatures(ctx context.Context) ([]*oracle.FeatureRow, error) {
	res, err := s.findWhere(ctx, &oracle.FeatureRow{}, "ORDER BY date, seq, match_id")
	if err != nil {
		return nil, err
	}
	out := make([]*oracle.FeatureRow, len(res))
	for i, r := range res {
		out[i] = r.(*oracle.FeatureRow)
	}
	return out, nil
}

// FeatureRow returns the features of one match, nil if there are none
func (s *Store) FeatureRow(ctx context.Context, matchID int64) (*oracle.FeatureRow, error) {
	res, err := s.findWhere(ctx, &oracle.FeatureRow{}, "WHERE match_id = "+s.dialect.placeholder(1), matchID)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}
	return res[0].(*oracle.FeatureRow), nil
}

// SaveRatingHistory replaces the stored rating trajectory
func (s *Store) SaveRatingHistory(ctx context.Context, points []*oracle.RatingPoint) error {
	objs := make([]Persistable, len(points))
	for i, p := range points {
		objs[i] = p
	}
	if err := s.bulkSave(ctx, "rating_history", true, objs); err != nil {
		return fmt.Errorf("failed to save rating history: %w", err)
	}
	return nil
}

// TeamRatingHistory returns one team's trajectory in chronological order
func (s *Store) TeamRatingHistory(ctx context.Context, teamID int) ([]*oracle.RatingPoint, error) {
	res, err := s.findWhere(ctx, &oracle.RatingPoint{},
		"WHERE team_id = "+s.dialect.placeholder(1)+" ORDER BY date, match_id", teamID)
	if err != nil {
		return nil, err
	}
	out := make([]*oracle.RatingPoint, len(res))
	for i, r := range res {
		out[i] = r.(*oracle.RatingPoint)
	}
	return out, nil
}
