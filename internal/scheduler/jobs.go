package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/avighnad/HamaraPrayas/internal/config"
	"github.com/avighnad/HamaraPrayas/internal/service"
	"github.com/avighnad/HamaraPrayas/pkg/errors"
	"github.com/avighnad/HamaraPrayas/pkg/logger"
)

const jobTimeout = 10 * time.Minute

// JobScheduler owns the cron-driven background jobs: the periodic
// leaderboard snapshot and the nightly ledger audit. Both can also be
// triggered on demand through the jobs API; a CAS flag keeps each job
// single-flight across cron and manual triggers.
type JobScheduler struct {
	cron           *cron.Cron
	leaderboardSvc *service.LeaderboardService
	auditSvc       *service.AuditService
	leaderboardCfg config.LeaderboardConfig
	jobsCfg        config.JobsConfig

	snapshotRunning int32
	auditRunning    int32
}

func NewJobScheduler(
	leaderboardSvc *service.LeaderboardService,
	auditSvc *service.AuditService,
	leaderboardCfg config.LeaderboardConfig,
	jobsCfg config.JobsConfig,
) *JobScheduler {
	return &JobScheduler{
		cron:           cron.New(cron.WithSeconds()),
		leaderboardSvc: leaderboardSvc,
		auditSvc:       auditSvc,
		leaderboardCfg: leaderboardCfg,
		jobsCfg:        jobsCfg,
	}
}

func (s *JobScheduler) Start() error {
	if s.jobsCfg.SnapshotEnabled {
		if _, err := s.cron.AddFunc(s.leaderboardCfg.SnapshotCron, s.runSnapshot); err != nil {
			return err
		}
	}
	if s.jobsCfg.AuditEnabled {
		if _, err := s.cron.AddFunc(s.jobsCfg.AuditCron, s.runAudit); err != nil {
			return err
		}
	}

	s.cron.Start()
	logger.Info("Job scheduler started")
	return nil
}

func (s *JobScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Job scheduler stopped")
}

func (s *JobScheduler) runSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.RunLeaderboardSnapshot(ctx); err != nil {
		logger.Error("Scheduled leaderboard snapshot failed:", err)
	}
}

func (s *JobScheduler) runAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.RunLedgerAudit(ctx); err != nil {
		logger.Error("Scheduled ledger audit failed:", err)
	}
}

// RunLeaderboardSnapshot computes today's snapshot and reports how many rows
// it wrote. A run that overlaps an in-flight one is rejected, not queued.
func (s *JobScheduler) RunLeaderboardSnapshot(ctx context.Context) (int, error) {
	if !atomic.CompareAndSwapInt32(&s.snapshotRunning, 0, 1) {
		logger.Warn("Leaderboard snapshot already running, skipping")
		return 0, errors.New(errors.ErrLeaderboard, "snapshot already running", nil)
	}
	defer atomic.StoreInt32(&s.snapshotRunning, 0)

	written, err := s.leaderboardSvc.ComputeSnapshot(ctx)
	if err != nil {
		return 0, err
	}

	logger.WithFields(map[string]interface{}{
		"rows_written": written,
	}).Info("Leaderboard snapshot completed")
	return written, nil
}

// RunLedgerAudit verifies the credit totals against the ledger and returns
// the drift report.
func (s *JobScheduler) RunLedgerAudit(ctx context.Context) (*service.AuditReport, error) {
	if !atomic.CompareAndSwapInt32(&s.auditRunning, 0, 1) {
		logger.Warn("Ledger audit already running, skipping")
		return nil, errors.New(errors.ErrAudit, "audit already running", nil)
	}
	defer atomic.StoreInt32(&s.auditRunning, 0)

	report, err := s.auditSvc.VerifyLedgers(ctx)
	if err != nil {
		return nil, err
	}

	if report.DriftCount > 0 {
		logger.WithFields(map[string]interface{}{
			"checked_profiles": report.CheckedProfiles,
			"drift_count":      report.DriftCount,
		}).Warn("Ledger audit found drifted profiles")
	} else {
		logger.WithFields(map[string]interface{}{
			"checked_profiles": report.CheckedProfiles,
		}).Info("Ledger audit completed with no drift")
	}
	return report, nil
}
