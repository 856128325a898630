package history

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"brandsync/internal/api"
	"brandsync/internal/models"
)

// maxMessages bounds the message log kept per run
const maxMessages = 500

// Service persists reconciliation run progress and chunk failures
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewService creates a new run history service
func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// StartRun creates a running SyncRun for source and returns its ID
func (s *Service) StartRun(source string) (string, error) {
	run := &models.SyncRun{
		Source:    source,
		Status:    models.RunStatusRunning,
		Messages:  marshalMessages([]string{"Initializing run..."}),
		StartedAt: time.Now().UTC(),
	}

	if err := s.db.Create(run).Error; err != nil {
		return "", fmt.Errorf("failed to create run record: %w", err)
	}

	return run.ID, nil
}

// UpdateProgress records status, progress and a message against a run
func (s *Service) UpdateProgress(runID, status string, progress int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var run models.SyncRun
	if err := s.db.Where("id = ?", runID).First(&run).Error; err != nil {
		s.logger.Warn().Err(err).Str("run_id", runID).Msg("Run not found; progress not persisted")
		return
	}

	messages := unmarshalMessages(run.Messages)
	messages = append(messages, message)
	if len(messages) > maxMessages {
		messages = messages[len(messages)-maxMessages:]
	}

	updates := map[string]interface{}{
		"status":   status,
		"progress": progress,
		"messages": marshalMessages(messages),
	}
	if err := s.db.Model(&run).Updates(updates).Error; err != nil {
		s.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to persist run progress")
	}
}

// RecordChunkFailure stores a rejected chunk so partial completion is visible
func (s *Service) RecordChunkFailure(runID, stream string, chunk, start, size int, cause error) {
	failure := &models.ChunkFailure{
		RunID:  runID,
		Stream: stream,
		Chunk:  chunk,
		Start:  start,
		Size:   size,
	}
	if cause != nil {
		failure.Error = cause.Error()
		failure.Response = api.ResponseBody(cause)
	}

	if err := s.db.Create(failure).Error; err != nil {
		s.logger.Warn().Err(err).Str("run_id", runID).Int("chunk", chunk).Msg("Failed to persist chunk failure")
	}
}

// FinishRun stores the final status and counters of a run
func (s *Service) FinishRun(runID, status string, stats models.RunStats, runErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       status,
		"progress":     100,
		"completed_at": &now,
	}
	if runErr != nil {
		updates["error"] = runErr.Error()
	}

	tx := s.db.Model(&models.SyncRun{ID: runID}).Updates(updates)
	if tx.Error != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, tx.Error)
	}

	// Select forces zero counters and false flags to be written too
	tx = s.db.Model(&models.SyncRun{ID: runID}).
		Select("row_count", "existing_parents", "partial_index", "parents_planned", "parents_created",
			"children_planned", "children_created", "linked", "unlinked", "failed_chunks").
		Updates(&models.SyncRun{Stats: stats})
	if tx.Error != nil {
		return fmt.Errorf("failed to store stats for run %s: %w", runID, tx.Error)
	}

	return nil
}

// ListRuns returns the most recent runs, newest first
func (s *Service) ListRuns(limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	var runs []models.SyncRun
	if err := s.db.Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun loads a run and its chunk failures
func (s *Service) GetRun(runID string) (*models.SyncRun, []models.ChunkFailure, error) {
	var run models.SyncRun
	if err := s.db.Where("id = ?", runID).First(&run).Error; err != nil {
		return nil, nil, fmt.Errorf("run not found: %w", err)
	}

	var failures []models.ChunkFailure
	if err := s.db.Where("run_id = ?", runID).Order("stream, chunk").Find(&failures).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load chunk failures: %w", err)
	}

	return &run, failures, nil
}

// Messages decodes the message log of a run
func Messages(run *models.SyncRun) []string {
	return unmarshalMessages(run.Messages)
}

// marshalMessages converts a string slice to JSON
func marshalMessages(messages []string) string {
	data, _ := json.Marshal(messages)
	return string(data)
}

// unmarshalMessages converts JSON to a string slice
func unmarshalMessages(messagesJSON string) []string {
	if messagesJSON == "" {
		return []string{}
	}
	var messages []string
	if err := json.Unmarshal([]byte(messagesJSON), &messages); err != nil {
		return []string{}
	}
	return messages
}
