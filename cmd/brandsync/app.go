package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"brandsync/internal/api"
	"brandsync/internal/config"
	"brandsync/internal/database"
	"brandsync/internal/keystore"
	"brandsync/internal/logging"
	"brandsync/internal/models"
	"brandsync/internal/services/history"
	"brandsync/internal/services/reconcile"
	"brandsync/internal/spreadsheet"
)

// App holds the process-wide configuration and services
type App struct {
	cfg     *config.Config
	logger  zerolog.Logger
	db      *gorm.DB
	history *history.Service
}

// NewApp loads configuration and builds the logger
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &App{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, cfg.LogFormat),
	}, nil
}

// startup opens the run-history database
func (a *App) startup() error {
	if a.db != nil {
		return nil
	}

	db, err := database.Open(a.cfg.DatabaseURL, a.logger.GetLevel() <= zerolog.DebugLevel, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = db
	a.history = history.NewService(db, a.logger)

	a.logger.Debug().Str("database", a.cfg.DatabaseURL).Msg("Startup complete")
	return nil
}

// shutdown closes the database
func (a *App) shutdown() {
	if err := database.Close(a.db); err != nil {
		a.logger.Warn().Err(err).Msg("Error closing database")
	}
	a.db = nil
}

// prepareRun resolves the access token and validates the run settings
func (a *App) prepareRun() error {
	if a.cfg.AccessToken == "" {
		token, err := keystore.LoadToken()
		if err != nil && !errors.Is(err, keystore.ErrNoToken) {
			a.logger.Warn().Err(err).Msg("Keychain lookup failed")
		}
		a.cfg.AccessToken = token
	}
	return a.cfg.Validate()
}

// newEngine builds a reconciliation engine against the configured CRM. The
// recorder may be nil.
func (a *App) newEngine(recorder reconcile.Recorder) (*reconcile.Engine, error) {
	client := api.NewClient(a.cfg.BaseURL, a.cfg.AccessToken, api.Options{
		Timeout:    a.cfg.HTTPTimeout,
		RetryCount: a.cfg.HTTPRetryCount,
	})

	return reconcile.NewEngine(reconcile.Config{
		ObjectType:        a.cfg.CustomObjectID,
		AssociationTypeID: a.cfg.AssociationTypeID,
		PageSize:          a.cfg.PageSize,
		ChunkSize:         a.cfg.BatchSize,
		ChunkAttempts:     a.cfg.ChunkAttempts,
	}, reconcile.Deps{
		Companies: client,
		Objects:   client,
		Recorder:  recorder,
		Logger:    a.logger,
	})
}

// reconcile reads source and runs one reconciliation against the CRM
func (a *App) reconcile(ctx context.Context, source string) (*reconcile.Result, error) {
	sheet, err := spreadsheet.Read(source, a.logger)
	if err != nil {
		return nil, err
	}

	var recorder reconcile.Recorder
	if a.history != nil {
		recorder = a.history
	}
	engine, err := a.newEngine(recorder)
	if err != nil {
		return nil, err
	}

	return engine.Run(ctx, source, sheet.Rows)
}

// preview reads source and plans a reconciliation without writing anything
func (a *App) preview(ctx context.Context, source string) (*reconcile.Result, error) {
	sheet, err := spreadsheet.Read(source, a.logger)
	if err != nil {
		return nil, err
	}

	engine, err := a.newEngine(nil)
	if err != nil {
		return nil, err
	}

	return engine.Preview(ctx, sheet.Rows)
}

// scheduledRun adapts reconcile to the scheduler's callback
func (a *App) scheduledRun(ctx context.Context, source string) (string, string, error) {
	result, err := a.reconcile(ctx, source)
	if result == nil {
		return "", models.RunStatusError, err
	}
	if err != nil {
		return result.RunID, models.RunStatusError, err
	}
	return result.RunID, result.Status(), nil
}
