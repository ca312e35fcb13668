package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nflow-health/nflow/internal/archive"
	"github.com/nflow-health/nflow/internal/config"
	"github.com/nflow-health/nflow/internal/pkg/logger"
	"github.com/nflow-health/nflow/internal/pkg/metrics"
)

// Pinger checks database connectivity. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Archiver exports conversations created since a point in time
type Archiver interface {
	Export(ctx context.Context, since time.Time) (*archive.Result, error)
}

// Scheduler runs periodic maintenance jobs
type Scheduler struct {
	cfg      config.WorkerConfig
	db       Pinger
	archiver Archiver
	logger   *logger.Logger

	runningMutex sync.Mutex
	scheduler    *cron.Cron
	isRunning    bool
	ctx          context.Context
	cancel       context.CancelFunc

	exportMutex sync.Mutex
	lastExport  time.Time
}

// NewScheduler creates a scheduler. archiver may be nil, in which case the
// archive job is not scheduled.
func NewScheduler(cfg config.WorkerConfig, db Pinger, archiver Archiver, log *logger.Logger) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		db:         db,
		archiver:   archiver,
		logger:     log,
		lastExport: time.Now().Add(-24 * time.Hour),
	}
}

// Start schedules the jobs and starts the cron runner
func (s *Scheduler) Start(ctx context.Context) error {
	s.runningMutex.Lock()
	defer s.runningMutex.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	s.scheduler = cron.New()
	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.scheduler.AddFunc(s.cfg.HealthSchedule, func() { s.checkDatabase(s.ctx) }); err != nil {
		s.cancel()
		return fmt.Errorf("invalid health schedule %q: %w", s.cfg.HealthSchedule, err)
	}

	jobs := 1
	if s.archiver != nil {
		if _, err := s.scheduler.AddFunc(s.cfg.ArchiveSpec, func() { s.runArchive(s.ctx) }); err != nil {
			s.cancel()
			return fmt.Errorf("invalid archive schedule %q: %w", s.cfg.ArchiveSpec, err)
		}
		jobs++
	}

	s.scheduler.Start()
	s.isRunning = true

	s.logger.WithFields(map[string]interface{}{
		"jobs": jobs,
	}).Info("Worker scheduler started")

	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.runningMutex.Lock()
	defer s.runningMutex.Unlock()

	if !s.isRunning {
		return
	}

	s.cancel()
	<-s.scheduler.Stop().Done()
	s.isRunning = false

	s.logger.Info("Worker scheduler stopped")
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.runningMutex.Lock()
	defer s.runningMutex.Unlock()
	return s.isRunning
}

func (s *Scheduler) checkDatabase(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := s.db.PingContext(ctx)
	metrics.RecordDBQuery("ping", "", time.Since(start))
	metrics.SetDBUp(err == nil)

	if err != nil {
		s.logger.ErrorWithErr(err, "Database health check failed")
	}
}

func (s *Scheduler) runArchive(ctx context.Context) {
	s.exportMutex.Lock()
	defer s.exportMutex.Unlock()

	res, err := s.archiver.Export(ctx, s.lastExport)
	if err != nil {
		s.logger.WithFields(map[string]interface{}{
			"since": s.lastExport,
		}).ErrorWithErr(err, "Scheduled archive export failed")
		return
	}
	s.lastExport = res.Until
}
