package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/channel"
	"github.com/catalogsync/backend/internal/domain/syncrun"
)

// Trigger executes sync jobs. The orchestrator implements it; tests
// substitute a fake.
type Trigger interface {
	TriggerSync(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, jobType syncrun.JobType) (*syncrun.SyncJobRun, error)
	TestConnection(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode) (*channel.ConnectionProbe, error)
}

// Config holds scheduler configuration
type Config struct {
	Enabled bool
	// MaxConcurrentJobs bounds how many sync cycles execute at once
	MaxConcurrentJobs int
	// JobTimeout bounds one cycle end to end
	JobTimeout time.Duration
	// ReloadInterval is how often schedules are re-read from storage
	ReloadInterval time.Duration
	// TickInterval is how often due entries are checked
	TickInterval time.Duration
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		MaxConcurrentJobs: 4,
		JobTimeout:        30 * time.Minute,
		ReloadInterval:    5 * time.Minute,
		TickInterval:      15 * time.Second,
	}
}

// Job identifies one sync cycle to execute
type Job struct {
	TenantID uuid.UUID
	System   channel.SystemCode
	JobType  syncrun.JobType
}

// entry is one timer: a schedule plus its next fire time
type entry struct {
	schedule syncrun.ScheduleDefinition
	spec     cron.Schedule
	next     time.Time
}

// Scheduler turns ScheduleDefinitions into fired sync jobs. It keeps an
// in-memory timer set rebuilt from storage, and a worker pool that bounds
// how many cycles run at once. Same-key overlap is excluded downstream by
// the run lock, so the scheduler itself never tracks running jobs.
type Scheduler struct {
	config    Config
	trigger   Trigger
	schedules syncrun.ScheduleRepository
	parser    cron.Parser
	logger    *zap.Logger

	jobs   chan Job
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	entries map[uuid.UUID][]*entry
	running bool

	now func() time.Time
}

// NewScheduler creates a scheduler over the given trigger and schedule store
func NewScheduler(config Config, trigger Trigger, schedules syncrun.ScheduleRepository, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = DefaultConfig().MaxConcurrentJobs
	}
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultConfig().TickInterval
	}
	return &Scheduler{
		config:    config,
		trigger:   trigger,
		schedules: schedules,
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:    logger.Named("scheduler"),
		entries:   make(map[uuid.UUID][]*entry),
		now:       time.Now,
	}
}

// Start loads enabled schedules and begins tick consumption. Calling
// Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.jobs = make(chan Job, 100)
	s.mu.Unlock()

	if err := s.reloadAll(ctx); err != nil {
		s.logger.Warn("initial schedule load failed", zap.Error(err))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(runCtx)
	}
	s.wg.Add(1)
	go s.tickLoop(runCtx)
	s.wg.Add(1)
	go s.reloadLoop(runCtx)

	s.logger.Info("scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("tick_interval", s.config.TickInterval),
		zap.Duration("reload_interval", s.config.ReloadInterval))
	return nil
}

// Stop halts tick consumption and waits for in-flight jobs. The timer set
// is retained, so a later Start resumes where Stop left off.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
		return ctx.Err()
	}
}

// RunJobImmediately enqueues a job outside its schedule. It goes through
// the same worker pool and lock gate as a timed fire.
func (s *Scheduler) RunJobImmediately(tenantID uuid.UUID, system channel.SystemCode, jobType syncrun.JobType) error {
	s.mu.Lock()
	running := s.running
	jobs := s.jobs
	s.mu.Unlock()
	if !running {
		return ErrSchedulerNotRunning
	}

	select {
	case jobs <- Job{TenantID: tenantID, System: system, JobType: jobType}:
		return nil
	default:
		return ErrJobQueueFull
	}
}

// ReloadTenant rebuilds the timer set of one tenant from storage. Any
// mutation of that tenant's schedules should be followed by this call.
func (s *Scheduler) ReloadTenant(ctx context.Context, tenantID uuid.UUID) error {
	schedules, err := s.schedules.FindByTenant(ctx, tenantID)
	if err != nil {
		return err
	}

	entries := s.buildEntries(schedules)
	s.mu.Lock()
	if len(entries) == 0 {
		delete(s.entries, tenantID)
	} else {
		s.entries[tenantID] = entries
	}
	s.mu.Unlock()

	s.logger.Info("tenant schedules reloaded",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("entries", len(entries)))
	return nil
}

// reloadAll rebuilds the whole timer set from enabled schedules
func (s *Scheduler) reloadAll(ctx context.Context) error {
	schedules, err := s.schedules.FindEnabled(ctx)
	if err != nil {
		return err
	}

	byTenant := make(map[uuid.UUID][]syncrun.ScheduleDefinition)
	for _, schedule := range schedules {
		byTenant[schedule.TenantID] = append(byTenant[schedule.TenantID], schedule)
	}

	entries := make(map[uuid.UUID][]*entry, len(byTenant))
	total := 0
	for tenantID, tenantSchedules := range byTenant {
		built := s.buildEntries(tenantSchedules)
		if len(built) > 0 {
			entries[tenantID] = built
			total += len(built)
		}
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	s.logger.Info("schedules loaded",
		zap.Int("tenants", len(entries)),
		zap.Int("entries", total))
	return nil
}

// buildEntries parses schedules into timer entries, skipping disabled
// ones and logging unparseable cron expressions
func (s *Scheduler) buildEntries(schedules []syncrun.ScheduleDefinition) []*entry {
	now := s.now()
	entries := make([]*entry, 0, len(schedules))
	for _, schedule := range schedules {
		if !schedule.Enabled {
			continue
		}
		spec, err := s.parser.Parse(schedule.CronExpr)
		if err != nil {
			s.logger.Warn("skipping schedule with invalid cron expression",
				zap.String("schedule_id", schedule.ID.String()),
				zap.String("cron", schedule.CronExpr),
				zap.Error(err))
			continue
		}
		entries = append(entries, &entry{
			schedule: schedule,
			spec:     spec,
			next:     spec.Next(now),
		})
	}
	return entries
}

// collectDue advances all entries due at now and returns their jobs
func (s *Scheduler) collectDue(now time.Time) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Job
	for _, entries := range s.entries {
		for _, e := range entries {
			if e.next.After(now) {
				continue
			}
			due = append(due, Job{
				TenantID: e.schedule.TenantID,
				System:   e.schedule.System,
				JobType:  e.schedule.JobType,
			})
			e.next = e.spec.Next(now)
		}
	}
	return due
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, job := range s.collectDue(now) {
				select {
				case s.jobs <- job:
				default:
					s.logger.Warn("job queue full, dropping fire",
						zap.String("tenant_id", job.TenantID.String()),
						zap.String("system", job.System.String()),
						zap.String("job_type", job.JobType.String()))
				}
			}
		}
	}
}

func (s *Scheduler) reloadLoop(ctx context.Context) {
	defer s.wg.Done()
	if s.config.ReloadInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.config.ReloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.reloadAll(ctx); err != nil {
				s.logger.Warn("schedule reload failed", zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.execute(ctx, job)
		}
	}
}

// execute runs one job with a pre-flight connection probe. A failed probe
// skips the fire; the schedule stays armed for its next tick.
func (s *Scheduler) execute(ctx context.Context, job Job) {
	jobCtx := ctx
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	probe, err := s.trigger.TestConnection(jobCtx, job.TenantID, job.System)
	if err != nil || !probe.OK {
		detail := ""
		if probe != nil {
			detail = probe.Detail
		}
		s.logger.Warn("pre-flight probe failed, job skipped",
			zap.String("tenant_id", job.TenantID.String()),
			zap.String("system", job.System.String()),
			zap.String("job_type", job.JobType.String()),
			zap.String("detail", detail),
			zap.Error(err))
		return
	}

	run, err := s.trigger.TriggerSync(jobCtx, job.TenantID, job.System, job.JobType)
	if err != nil {
		s.logger.Error("sync job failed to trigger",
			zap.String("tenant_id", job.TenantID.String()),
			zap.String("system", job.System.String()),
			zap.String("job_type", job.JobType.String()),
			zap.Error(err))
		return
	}
	s.logger.Info("sync job finished",
		zap.String("run_id", run.ID.String()),
		zap.String("status", string(run.Status)))
}
