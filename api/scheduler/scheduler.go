package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/landviz/collab-api/databases"
	"github.com/landviz/collab-api/relay"
)

const (
	// Sessions with no traffic for this long are torn down
	maxSessionIdle = 30 * time.Minute

	// Soft-deleted spectate configs are kept this long before the purge
	deletedConfigRetention = 30 * 24 * time.Hour
)

// Scheduler handles periodic background jobs: idle session teardown and
// purging soft-deleted spectate configs
type Scheduler struct {
	cron *cron.Cron
	Hub  *relay.Hub
	SCDB databases.SpectateConfigDatabase
}

// NewScheduler creates a new scheduler instance
func NewScheduler(hub *relay.Hub, scDB databases.SpectateConfigDatabase) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		Hub:  hub,
		SCDB: scDB,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Tear down idle relay sessions every minute
	_, err := s.cron.AddFunc("@every 1m", s.pruneIdleSessions)
	if err != nil {
		zap.S().Errorw("failed to register session prune job", "error", err)
	}

	// Purge soft-deleted spectate configs daily at 3 AM UTC
	_, err = s.cron.AddFunc("0 3 * * *", s.purgeDeletedConfigs)
	if err != nil {
		zap.S().Errorw("failed to register config purge job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("collab scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("collab scheduler stopped")
}

func (s *Scheduler) pruneIdleSessions() {
	s.Hub.PruneIdleSessions(maxSessionIdle)
}

func (s *Scheduler) purgeDeletedConfigs() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-deletedConfigRetention)
	purged, err := s.SCDB.PurgeDeleted(ctx, cutoff)
	if err != nil {
		zap.S().Errorw("failed to purge deleted spectate configs", "error", err)
		return
	}
	if purged > 0 {
		zap.S().Infow("purged deleted spectate configs", "count", purged)
	}
}
