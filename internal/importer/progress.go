package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// progressTTL keeps finished-job progress around long enough for the UI to
// pick up the final state.
const progressTTL = 24 * time.Hour

// ProgressPublisher pushes observational job progress to Redis. A nil
// publisher is valid and drops every update, for CLI runs without Redis.
type ProgressPublisher struct {
	client *redis.Client
}

func NewProgressPublisher(client *redis.Client) *ProgressPublisher {
	if client == nil {
		return nil
	}
	return &ProgressPublisher{client: client}
}

func progressKey(jobID string) string {
	return fmt.Sprintf("import:progress:%s", jobID)
}

// Publish stores the snapshot; failures are swallowed because progress is
// purely observational.
func (p *ProgressPublisher) Publish(ctx context.Context, progress *Progress) {
	if p == nil || p.client == nil {
		return
	}
	progress.UpdatedAt = time.Now()
	data, err := json.Marshal(progress)
	if err != nil {
		return
	}
	p.client.Set(ctx, progressKey(progress.JobID), data, progressTTL)
}

// Get returns the last published snapshot, or nil when none exists.
func (p *ProgressPublisher) Get(ctx context.Context, jobID string) (*Progress, error) {
	if p == nil || p.client == nil {
		return nil, nil
	}
	data, err := p.client.Get(ctx, progressKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var progress Progress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}
