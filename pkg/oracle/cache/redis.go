package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/richard-senior/oracle/internal/logger"
	"github.com/richard-senior/oracle/pkg/oracle"
)

const (
	TeamKeyPrefix    = "oracle:team:"
	FeatureKeyPrefix = "oracle:features:"
	// RunStreamKey receives one entry per finished pipeline run
	RunStreamKey = "oracle:runs"
	runStreamLen = 1000
)

var (
	_ oracle.SnapshotSink = (*Cache)(nil)
	_ oracle.FeatureSink  = (*Cache)(nil)
)

// Cache keeps the latest team snapshots and feature rows in Redis so the
// dashboard and the model service can read them without touching the database
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a Cache that uses the given Redis client. A ttl of 0 means keys never expire.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func TeamKey(teamID int) string {
	return TeamKeyPrefix + strconv.Itoa(teamID)
}

func FeatureKey(matchID int64) string {
	return FeatureKeyPrefix + strconv.FormatInt(matchID, 10)
}

// PutSnapshots writes every team snapshot in one pipelined round trip
func (c *Cache) PutSnapshots(ctx context.Context, snaps []*oracle.TeamSnapshot) error {
	pipe := c.client.Pipeline()
	for _, s := range snaps {
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal snapshot %d: %w", s.TeamID, err)
		}
		pipe.Set(ctx, TeamKey(s.TeamID), b, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write snapshots: %w", err)
	}
	logger.Debug("Cached team snapshots", len(snaps))
	return nil
}

// SaveFeatures replaces the cached feature set with rows. Rows left over from
// an earlier run are deleted in the same transaction as the new writes.
func (c *Cache) SaveFeatures(ctx context.Context, rows []*oracle.FeatureRow) error {
	keep := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		keep[FeatureKey(r.MatchID)] = struct{}{}
	}
	stale, err := c.featureKeys(ctx, keep)
	if err != nil {
		return err
	}

	pipe := c.client.TxPipeline()
	if len(stale) > 0 {
		pipe.Del(ctx, stale...)
	}
	for _, r := range rows {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal feature row %d: %w", r.MatchID, err)
		}
		pipe.Set(ctx, FeatureKey(r.MatchID), b, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write feature rows: %w", err)
	}
	logger.Debug("Cached feature rows", len(rows), "removed stale", len(stale))
	return nil
}

// featureKeys lists the cached feature keys that are not in keep
func (c *Cache) featureKeys(ctx context.Context, keep map[string]struct{}) ([]string, error) {
	var out []string
	iter := c.client.Scan(ctx, 0, FeatureKeyPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		if _, ok := keep[iter.Val()]; !ok {
			out = append(out, iter.Val())
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan feature keys: %w", err)
	}
	return out, nil
}

// Snapshot returns the cached snapshot for a team, nil if there is none
func (c *Cache) Snapshot(ctx context.Context, teamID int) (*oracle.TeamSnapshot, error) {
	b, err := c.client.Get(ctx, TeamKey(teamID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out oracle.TeamSnapshot
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &out, nil
}

// FeatureRow returns the cached row for a match, nil if there is none
func (c *Cache) FeatureRow(ctx context.Context, matchID int64) (*oracle.FeatureRow, error) {
	b, err := c.client.Get(ctx, FeatureKey(matchID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out oracle.FeatureRow
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("unmarshal feature row: %w", err)
	}
	return &out, nil
}

// RunEvent summarises a finished pipeline run for downstream consumers
type RunEvent struct {
	Rows       int       `json:"rows"`
	Skipped    int       `json:"skipped"`
	Dropped    int       `json:"dropped"`
	Teams      int       `json:"teams"`
	FinishedAt time.Time `json:"finishedAt"`
}

// PublishRun appends a run summary to RunStreamKey and returns the entry id
func (c *Cache) PublishRun(ctx context.Context, table *oracle.FeatureTable) (string, error) {
	evt := RunEvent{
		Rows:       len(table.Rows),
		Skipped:    len(table.Skipped),
		Dropped:    table.Dropped,
		Teams:      len(table.Snapshots),
		FinishedAt: time.Now().UTC(),
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("marshal run event: %w", err)
	}
	id, err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: RunStreamKey,
		MaxLen: runStreamLen,
		Approx: true,
		Values: map[string]any{"payload": string(b)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd run event: %w", err)
	}
	return id, nil
}
