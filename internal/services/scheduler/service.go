package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"brandsync/internal/models"
)

// cronParser accepts the 6-field expressions stored in the database
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Service runs reconciliations on cron schedules. At most one run is in
// progress at a time; ticks that fire during a run are skipped.
type Service struct {
	db     *gorm.DB
	ctx    context.Context
	cron   *cron.Cron
	run    RunFunc
	logger zerolog.Logger

	jobs    map[string]cron.EntryID // jobID -> cron entry ID
	jobsMu  sync.RWMutex
	running atomic.Bool
}

// NewService creates a new scheduler service. Runs inherit ctx.
func NewService(ctx context.Context, db *gorm.DB, run RunFunc, logger zerolog.Logger) *Service {
	// Create cron scheduler with seconds support
	c := cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))

	return &Service{
		db:     db,
		ctx:    ctx,
		cron:   c,
		run:    run,
		logger: logger,
		jobs:   make(map[string]cron.EntryID),
	}
}

// Start starts the cron loop and schedules every enabled job
func (s *Service) Start() error {
	s.cron.Start()

	var jobs []models.ScheduledJob
	if err := s.db.Where("enabled = ?", true).Find(&jobs).Error; err != nil {
		return fmt.Errorf("failed to load scheduled jobs: %w", err)
	}

	for i := range jobs {
		job := &jobs[i]
		if err := s.scheduleJob(job); err != nil {
			s.logger.Warn().Err(err).Str("job", job.Name).Msg("Failed to schedule job")
			continue
		}
		s.logger.Info().Str("job", job.Name).Str("cron", job.Cron).Str("source", job.Source).Msg("Scheduled job")
	}

	s.logger.Info().Int("jobs", len(jobs)).Msg("Scheduler started")
	return nil
}

// Stop stops the cron loop and waits for a running job to finish
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.logger.Info().Msg("Scheduler stopped")
	}
}

// ListJobs retrieves all scheduled jobs
func (s *Service) ListJobs() ([]JobListResponse, error) {
	var jobs []models.ScheduledJob
	if err := s.db.Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	responses := make([]JobListResponse, len(jobs))
	for i := range jobs {
		responses[i] = toJobListResponse(&jobs[i])
	}

	return responses, nil
}

// UpsertJob creates or updates a scheduled job keyed by name
func (s *Service) UpsertJob(req UpsertJobRequest) (string, error) {
	if req.Name == "" || req.Cron == "" || req.Source == "" {
		return "", fmt.Errorf("name, cron, and source are required")
	}

	// Normalize and validate cron expression (convert 5-field to 6-field)
	normalizedCron, err := normalizeCron(req.Cron)
	if err != nil {
		return "", err
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return "", fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	var job models.ScheduledJob
	result := s.db.Where("name = ?", req.Name).First(&job)
	notFound := errors.Is(result.Error, gorm.ErrRecordNotFound)
	if result.Error != nil && !notFound {
		return "", fmt.Errorf("failed to query job: %w", result.Error)
	}

	job.Name = req.Name
	job.Cron = normalizedCron
	job.Timezone = timezone
	job.Source = req.Source
	job.Enabled = req.Enabled

	schedule, err := cronParser.Parse(job.Cron)
	if err != nil {
		return "", fmt.Errorf("failed to parse cron for next run: %w", err)
	}
	nextRun := schedule.Next(time.Now().In(loc)).UTC()
	job.NextRunAt = &nextRun

	if notFound {
		if err := s.db.Create(&job).Error; err != nil {
			return "", fmt.Errorf("failed to create job: %w", err)
		}
	} else {
		// Select forces a false Enabled to be written
		if err := s.db.Model(&job).Select("*").Updates(&job).Error; err != nil {
			return "", fmt.Errorf("failed to update job: %w", err)
		}
	}

	if err := s.rescheduleJob(job.ID); err != nil {
		return "", fmt.Errorf("failed to reschedule job: %w", err)
	}

	return job.ID, nil
}

// DeleteJob removes a scheduled job
func (s *Service) DeleteJob(jobID string) error {
	s.unschedule(jobID)

	if err := s.db.Delete(&models.ScheduledJob{}, "id = ?", jobID).Error; err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	return nil
}

// scheduleJob adds a job to the cron scheduler
func (s *Service) scheduleJob(job *models.ScheduledJob) error {
	s.unschedule(job.ID)
	if !job.Enabled {
		return nil
	}

	spec := job.Cron
	if job.Timezone != "" && job.Timezone != "UTC" {
		spec = "CRON_TZ=" + job.Timezone + " " + spec
	}

	jobID := job.ID
	entryID, err := s.cron.AddFunc(spec, func() {
		s.executeJob(jobID)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.jobsMu.Lock()
	s.jobs[job.ID] = entryID
	s.jobsMu.Unlock()

	return nil
}

func (s *Service) unschedule(jobID string) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if entryID, exists := s.jobs[jobID]; exists {
		s.cron.Remove(entryID)
		delete(s.jobs, jobID)
	}
}

// rescheduleJob reloads a job from database and reschedules it
func (s *Service) rescheduleJob(jobID string) error {
	var job models.ScheduledJob
	if err := s.db.First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.unschedule(jobID)
			return nil
		}
		return fmt.Errorf("failed to load job: %w", err)
	}

	return s.scheduleJob(&job)
}

// executeJob runs a scheduled job unless another run is in progress. It
// reports whether the run was started.
func (s *Service) executeJob(jobID string) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn().Str("job_id", jobID).Msg("Previous run still in progress; skipping tick")
		return false
	}
	defer s.running.Store(false)

	var job models.ScheduledJob
	if err := s.db.First(&job, "id = ?", jobID).Error; err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to load job")
		return false
	}

	log := s.logger.With().Str("job", job.Name).Str("source", job.Source).Logger()
	log.Info().Msg("Executing scheduled job")

	startedAt := time.Now().UTC()
	runID, status, err := s.run(s.ctx, job.Source)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Scheduled run failed")
		if status == "" {
			status = models.RunStatusError
		}
	} else {
		log.Info().Str("run_id", runID).Str("status", status).Msg("Completed scheduled job")
	}

	updates := map[string]interface{}{
		"last_run_id": runID,
		"last_status": status,
		"last_run_at": &startedAt,
	}
	if schedule, err := cronParser.Parse(job.Cron); err == nil {
		loc, locErr := time.LoadLocation(job.Timezone)
		if locErr != nil {
			loc = time.UTC
		}
		next := schedule.Next(time.Now().In(loc)).UTC()
		updates["next_run_at"] = &next
	}
	if err := s.db.Model(&job).Updates(updates).Error; err != nil {
		log.Warn().Err(err).Msg("Failed to update job run times")
	}

	return true
}

// normalizeCron converts 5-field cron to 6-field format by prepending seconds
// 5-field: "minute hour day month dow" (standard cron)
// 6-field: "second minute hour day month dow" (robfig/cron with WithSeconds)
func normalizeCron(cronExpr string) (string, error) {
	cronExpr = strings.TrimSpace(cronExpr)

	fields := strings.Fields(cronExpr)
	if len(fields) == 6 {
		if _, err := cronParser.Parse(cronExpr); err == nil {
			return cronExpr, nil
		}
	}

	if len(fields) == 5 {
		if _, err := cron.ParseStandard(cronExpr); err != nil {
			return "", fmt.Errorf("invalid 5-field cron expression: %w", err)
		}
		// Prepend seconds (0 = run at 0 seconds of the minute)
		return "0 " + cronExpr, nil
	}

	return "", fmt.Errorf("invalid cron expression: expected 5 or 6 fields, got %d", len(fields))
}

func toJobListResponse(job *models.ScheduledJob) JobListResponse {
	resp := JobListResponse{
		ID:         job.ID,
		Name:       job.Name,
		Cron:       job.Cron,
		Timezone:   job.Timezone,
		Source:     job.Source,
		Enabled:    job.Enabled,
		LastRunID:  job.LastRunID,
		LastStatus: job.LastStatus,
	}

	if job.LastRunAt != nil {
		lastRun := job.LastRunAt.Format(time.RFC3339)
		resp.LastRunAt = &lastRun
	}

	if job.NextRunAt != nil {
		nextRun := job.NextRunAt.Format(time.RFC3339)
		resp.NextRun = &nextRun
	}

	return resp
}
