package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/richard-senior/oracle/internal/logger"
)

// MatchSource supplies the raw match history in one bulk read
type MatchSource interface {
	LoadMatches(ctx context.Context) ([]*Match, error)
}

// PlayerStatsSource supplies player season totals for the squad columns
type PlayerStatsSource interface {
	LoadPlayerStats(ctx context.Context) ([]*PlayerSeasonStats, error)
}

// FeatureSink receives the finished feature table in one bulk write
type FeatureSink interface {
	SaveFeatures(ctx context.Context, rows []*FeatureRow) error
}

// RatingHistorySink stores the rating trajectory
type RatingHistorySink interface {
	SaveRatingHistory(ctx context.Context, points []*RatingPoint) error
}

// SnapshotSink stores each team's end-of-history state
type SnapshotSink interface {
	PutSnapshots(ctx context.Context, snaps []*TeamSnapshot) error
}

// SliceSource serves a fixed set of matches, mainly for tests and the CLI
type SliceSource []*Match

func (s SliceSource) LoadMatches(ctx context.Context) ([]*Match, error) {
	out := make([]*Match, len(s))
	copy(out, s)
	return out, nil
}

// Pipeline wires a source to any number of sinks. Each Run builds its own
// rating and form state so runs never share anything.
type Pipeline struct {
	Config    *Config
	Source    MatchSource
	Players   PlayerStatsSource // required when Config.SquadFeatures is set
	Sinks     []FeatureSink
	History   RatingHistorySink // optional
	Snapshots SnapshotSink      // optional
}

// Run reads the history, sorts it chronologically, builds the feature table
// and writes it to every sink
func (p *Pipeline) Run(ctx context.Context) (*FeatureTable, error) {
	if p.Source == nil {
		return nil, fmt.Errorf("pipeline has no match source")
	}
	if p.Config != nil && p.Config.SquadFeatures && p.Players == nil {
		return nil, fmt.Errorf("%w: squad features need a player stats source", ErrInvalidConfig)
	}
	start := time.Now()

	matches, err := p.Source.LoadMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load matches: %w", err)
	}
	logger.Info("Loaded matches", len(matches))
	kept := matches[:0]
	for _, m := range matches {
		if m != nil {
			kept = append(kept, m)
		}
	}
	matches = kept
	SortMatches(matches)

	var players []*PlayerSeasonStats
	if p.Players != nil {
		if players, err = p.Players.LoadPlayerStats(ctx); err != nil {
			return nil, fmt.Errorf("failed to load player stats: %w", err)
		}
		logger.Info("Loaded player season stats", len(players))
	}

	table, err := BuildFeaturesWithPlayers(matches, players, p.Config)
	if err != nil {
		return nil, err
	}

	for _, sink := range p.Sinks {
		if err := sink.SaveFeatures(ctx, table.Rows); err != nil {
			return nil, fmt.Errorf("failed to save features: %w", err)
		}
	}
	if p.History != nil {
		if err := p.History.SaveRatingHistory(ctx, table.Ratings.History); err != nil {
			return nil, fmt.Errorf("failed to save rating history: %w", err)
		}
	}
	if p.Snapshots != nil {
		if err := p.Snapshots.PutSnapshots(ctx, table.Snapshots); err != nil {
			return nil, fmt.Errorf("failed to store team snapshots: %w", err)
		}
	}

	logger.Info("Pipeline finished in", time.Since(start).String())
	return table, nil
}
