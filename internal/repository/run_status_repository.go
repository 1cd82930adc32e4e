package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iatidata/sector-harvester/internal/config"
	"github.com/iatidata/sector-harvester/internal/model"
	"github.com/redis/go-redis/v9"
)

// ErrRunNotFound is returned when no harvest summary has been recorded.
var ErrRunNotFound = errors.New("harvest run not found")

// runRetention bounds how long per-run summaries stay in Redis.
const runRetention = 30 * 24 * time.Hour

// RunStatusRepository records harvest summaries in Redis.
type RunStatusRepository struct {
	rdb *redis.Client
}

// NewRunStatusRepository creates a new RunStatusRepository.
func NewRunStatusRepository(rdb *redis.Client) *RunStatusRepository {
	return &RunStatusRepository{rdb: rdb}
}

// Save stores the summary under its run key and as the latest run.
func (r *RunStatusRepository) Save(ctx context.Context, summary *model.RunSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.RunKey(summary.RunID), payload, runRetention)
	pipe.Set(ctx, config.CacheKey.LatestRunKey(), payload, 0)
	_, err = pipe.Exec(ctx)
	return err
}

// Latest returns the most recently saved summary.
func (r *RunStatusRepository) Latest(ctx context.Context) (*model.RunSummary, error) {
	return r.get(ctx, config.CacheKey.LatestRunKey())
}

// Get returns the summary of a specific run.
func (r *RunStatusRepository) Get(ctx context.Context, runID string) (*model.RunSummary, error) {
	return r.get(ctx, config.CacheKey.RunKey(runID))
}

func (r *RunStatusRepository) get(ctx context.Context, key string) (*model.RunSummary, error) {
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	var summary model.RunSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("unmarshal run summary: %w", err)
	}
	return &summary, nil
}
