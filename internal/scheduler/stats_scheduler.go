package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/repository"
	"github.com/tawtheeq/tawtheeq-backend/pkg/logger"
	"github.com/tawtheeq/tawtheeq-backend/pkg/redis"
)

// snapshotRetention keeps daily snapshots long enough for quarterly reporting.
const snapshotRetention = 120 * 24 * time.Hour

// StatsScheduler writes a daily per-status snapshot of the submission counts
// into Redis, so dashboards can chart workload over time without scanning
// the submissions table.
type StatsScheduler struct {
	cron           *cron.Cron
	submissionRepo repository.SubmissionRepository
}

func NewStatsScheduler(submissionRepo repository.SubmissionRepository) *StatsScheduler {
	return &StatsScheduler{
		cron:           cron.New(),
		submissionRepo: submissionRepo,
	}
}

func (s *StatsScheduler) Start() error {
	// daily at 00:05, after the day has rolled over
	_, err := s.cron.AddFunc("5 0 * * *", s.snapshot)
	if err != nil {
		logger.Error("Failed to register stats snapshot job", err)
		return err
	}

	s.cron.Start()
	logger.Info("Stats snapshot scheduler started (daily at 00:05)", nil)
	return nil
}

func (s *StatsScheduler) Stop() {
	logger.Info("Stopping stats snapshot scheduler", nil)
	s.cron.Stop()
}

func (s *StatsScheduler) snapshot() {
	stats, err := s.submissionRepo.Stats(repository.SubmissionFilter{})
	if err != nil {
		logger.Error("Failed to compute stats snapshot", err)
		return
	}

	client := redis.GetClient()
	if client == nil {
		logger.Warn("Stats snapshot skipped: redis not initialized", nil)
		return
	}

	key := "verification:stats:snapshot:" + time.Now().Format("2006-01-02")
	if err := redis.SetJSON(context.Background(), client, key, stats, snapshotRetention); err != nil {
		logger.Error("Failed to store stats snapshot", err, map[string]interface{}{
			"key": key,
		})
		return
	}

	logger.Info("Stats snapshot stored", map[string]interface{}{
		"key":   key,
		"total": stats.Total,
	})
}
