package analytics

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"go.uber.org/zap"
)

// Tracker writes post visits to the analytics store. A nil writer disables tracking, so the
// models never have to check whether analytics is configured.
type Tracker struct {
	writer   api.WriteAPI
	registry *Registry
	log      *zap.Logger
	now      func() time.Time
}

// NewTracker returns a tracker writing to bucket via the non-blocking write API, or a disabled
// one if client is nil
func NewTracker(client influxdb2.Client, org string, bucket string, log *zap.Logger) *Tracker {
	t := &Tracker{
		registry: NewRegistry(15*time.Minute, 5000),
		log:      log,
		now:      time.Now,
	}
	if client == nil {
		return t
	}

	t.writer = client.WriteAPI(org, bucket)
	go func(errs <-chan error) {
		for err := range errs {
			log.Warn("analytics write failed", zap.Error(err))
		}
	}(t.writer.Errors())

	return t
}

// Enabled reports whether visits are recorded
func (t *Tracker) Enabled() bool {
	return t.writer != nil
}

// SaveVisit records a visit of a post; repeated requests of a client for the same post count once
func (t *Tracker) SaveVisit(postID string, userID string, client string) {
	if t.writer == nil {
		return
	}
	if !t.registry.Continue(client, postID, t.now()) {
		return
	}

	// post id as tag: per-post series are what the queries group by
	p := influxdb2.NewPoint(
		"visit",
		map[string]string{"postId": postID},
		map[string]interface{}{"userId": userID},
		t.now())

	t.writer.WritePoint(p)
}

// Run expires the registry until ctx is done
func (t *Tracker) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := t.registry.Flush(now); n > 0 {
				t.log.Debug("visit registry flushed", zap.Int("removed", n))
			}
		}
	}
}

// Flush writes buffered points
func (t *Tracker) Flush() {
	if t.writer != nil {
		t.writer.Flush()
	}
}
