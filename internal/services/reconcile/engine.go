package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"brandsync/internal/api"
	"brandsync/internal/models"
	"brandsync/internal/services/batch"
	"brandsync/internal/services/index"
	"brandsync/internal/services/normalize"
)

// Config carries the CRM identifiers and batching limits of a run
type Config struct {
	ObjectType        string
	AssociationTypeID int
	PageSize          int
	ChunkSize         int
	ChunkAttempts     int
}

// Deps are the collaborators the engine calls against
type Deps struct {
	Companies CompanyStore
	Objects   ObjectStore
	Recorder  Recorder // optional
	Logger    zerolog.Logger
}

// Engine runs reconciliations: index, plan, create parents, link, upload children
type Engine struct {
	cfg       Config
	companies CompanyStore
	objects   ObjectStore
	recorder  Recorder
	logger    zerolog.Logger
}

// NewEngine creates a new reconciliation engine
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if deps.Companies == nil {
		return nil, errors.New("company store is required")
	}
	if deps.Objects == nil {
		return nil, errors.New("object store is required")
	}
	if cfg.ObjectType == "" {
		return nil, errors.New("object type is required")
	}
	if cfg.ChunkSize <= 0 || cfg.ChunkSize > batch.MaxChunkSize {
		cfg.ChunkSize = batch.MaxChunkSize
	}

	return &Engine{
		cfg:       cfg,
		companies: deps.Companies,
		objects:   deps.Objects,
		recorder:  deps.Recorder,
		logger:    deps.Logger,
	}, nil
}

// Run reconciles rows read from source. Failed pages and failed chunks do not
// abort the run; they are reported in the Result. An error is returned only
// when the run itself cannot proceed.
func (e *Engine) Run(ctx context.Context, source string, rows []normalize.RawRow) (*Result, error) {
	result := &Result{Rows: len(rows)}

	if e.recorder != nil {
		runID, err := e.recorder.StartRun(source)
		if err != nil {
			return nil, fmt.Errorf("failed to start run: %w", err)
		}
		result.RunID = runID
	}

	log := e.logger.With().Str("run_id", result.RunID).Logger()

	if err := e.run(ctx, log, rows, result); err != nil {
		e.progress(result.RunID, models.RunStatusError, 0, fmt.Sprintf("✗ Run failed: %v", err))
		e.finish(log, result, models.RunStatusError, err)
		return result, err
	}

	status := result.Status()
	stats := result.Stats()
	msg := fmt.Sprintf("🎉 Run complete: %d rows, %d/%d companies created, %d/%d objects created (%d linked, %d unlinked)",
		stats.Rows, stats.ParentsCreated, stats.ParentsPlanned, stats.ChildrenCreated, stats.ChildrenPlanned,
		stats.Linked, stats.Unlinked)
	if stats.FailedChunks > 0 || stats.PartialIndex {
		msg = fmt.Sprintf("%s; %d chunks failed, partial index: %t", msg, stats.FailedChunks, stats.PartialIndex)
	}
	e.progress(result.RunID, status, 100, msg)
	e.finish(log, result, status, nil)

	log.Info().Str("status", status).Msg(msg)
	return result, nil
}

// Preview builds the index and the plan without writing to the CRM or the
// run history. Children are linked only to companies that already exist.
func (e *Engine) Preview(ctx context.Context, rows []normalize.RawRow) (*Result, error) {
	result := &Result{Rows: len(rows)}

	idx, err := index.NewBuilder(e.companies, e.cfg.PageSize, e.logger).Build(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("index build interrupted: %w", ctxErr)
		}
		result.IndexErr = err
	}
	result.ExistingParents = idx.Len()
	result.Plan = BuildPlan(rows, idx)

	e.logger.Info().
		Int("rows", len(rows)).
		Int("new_companies", len(result.Plan.NewParents)).
		Int("linked", result.Plan.Linked()).
		Bool("partial_index", result.PartialIndex()).
		Msg("Dry run planned")

	return result, nil
}

func (e *Engine) run(ctx context.Context, log zerolog.Logger, rows []normalize.RawRow, result *Result) error {
	e.progress(result.RunID, models.RunStatusRunning, 10, "Building company index...")

	idx, err := index.NewBuilder(e.companies, e.cfg.PageSize, log).Build(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("index build interrupted: %w", ctxErr)
		}
		// Degraded mode: continue with whatever was fetched
		result.IndexErr = err
		log.Warn().Err(err).Int("companies", idx.Len()).Msg("Continuing with partial company index")
		e.progress(result.RunID, models.RunStatusRunning, 20,
			fmt.Sprintf("⚠ Company index is partial (%d companies): %v", idx.Len(), err))
	}
	result.ExistingParents = idx.Len()
	e.progress(result.RunID, models.RunStatusRunning, 25, fmt.Sprintf("✓ Indexed %d existing companies", idx.Len()))

	result.Plan = BuildPlan(rows, idx)
	e.progress(result.RunID, models.RunStatusRunning, 30,
		fmt.Sprintf("Planned %d new companies and %d objects from %d rows",
			len(result.Plan.NewParents), len(result.Plan.Children), len(rows)))

	// Parents first, so the children can link to them
	result.Parents = batch.Submit(ctx, result.Plan.NewParents, e.cfg.ChunkSize,
		func(ctx context.Context, chunk []ParentInput) error {
			resp, err := e.companies.BatchCreateCompanies(ctx, parentInputs(chunk))
			if err != nil {
				return err
			}
			created := createdParents(chunk, resp)
			idx.Merge(created...)
			result.ParentsCreated += len(created)
			if err := resp.Err(); err != nil {
				return &batch.PartialError{Accepted: len(created), Err: err}
			}
			return nil
		}, e.batchOptions(StreamCompanies, log))
	e.recordFailures(result.RunID, result.Parents)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted after company creation: %w", err)
	}
	e.progress(result.RunID, models.RunStatusRunning, 60,
		fmt.Sprintf("✓ Created %d companies (%d failed chunks)", result.ParentsCreated, len(result.Parents.Failures)))

	result.Plan.Relink(idx)
	linked := result.Plan.Linked()
	e.progress(result.RunID, models.RunStatusRunning, 65,
		fmt.Sprintf("Linked %d objects to companies, %d without a match", linked, len(result.Plan.Children)-linked))

	result.Children = batch.Submit(ctx, result.Plan.Children, e.cfg.ChunkSize,
		func(ctx context.Context, chunk []ChildInput) error {
			resp, err := e.objects.BatchCreateObjects(ctx, e.cfg.ObjectType, e.childInputs(chunk))
			if err != nil {
				return err
			}
			if err := resp.Err(); err != nil {
				accepted := len(chunk) - resp.Rejected()
				if accepted < 0 {
					accepted = 0
				}
				return &batch.PartialError{Accepted: accepted, Err: err}
			}
			return nil
		}, e.batchOptions(StreamObjects, log))
	e.recordFailures(result.RunID, result.Children)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted during object upload: %w", err)
	}

	return nil
}

func (e *Engine) batchOptions(stream string, log zerolog.Logger) batch.Options {
	return batch.Options{
		Stream:    stream,
		Attempts:  e.cfg.ChunkAttempts,
		Retryable: api.IsRetryable,
		Detail:    api.ResponseBody,
		Logger:    log,
	}
}

// parentInputs maps planned parents onto batch-create inputs
func parentInputs(chunk []ParentInput) []api.CreateInput {
	inputs := make([]api.CreateInput, len(chunk))
	for i, p := range chunk {
		inputs[i] = api.CreateInput{
			Properties: map[string]interface{}{
				"name":       p.Name,
				ColOrderID:   p.OrderID,
				ColOrderCode: p.OrderCode,
			},
		}
	}
	return inputs
}

// childInputs maps children onto batch-create inputs. Children without a
// parent are sent without associations.
func (e *Engine) childInputs(chunk []ChildInput) []api.CreateInput {
	inputs := make([]api.CreateInput, len(chunk))
	for i, c := range chunk {
		inputs[i] = api.CreateInput{Properties: map[string]interface{}(c.Properties)}
		if c.ParentID != "" {
			inputs[i].Associations = []api.Association{{
				To: api.AssociationTarget{ID: c.ParentID},
				Types: []api.AssociationType{{
					AssociationCategory: AssociationCategory,
					AssociationTypeID:   e.cfg.AssociationTypeID,
				}},
			}}
		}
	}
	return inputs
}

// createdParents projects the batch response onto index records. When the
// response omits the natural keys and nothing was rejected, the chunk's own
// keys are used by position.
func createdParents(chunk []ParentInput, resp *api.BatchResponse) []index.ParentRecord {
	if resp == nil {
		return nil
	}
	records := index.FromBatch(resp.Results)
	if len(records) != len(chunk) {
		return records
	}
	for i := range records {
		if records[i].OrderCode == "" && records[i].OrderID == "" {
			records[i].OrderCode = chunk[i].OrderCode
			records[i].OrderID = chunk[i].OrderID
		}
	}
	return records
}

func (e *Engine) recordFailures(runID string, report batch.Report) {
	if e.recorder == nil || runID == "" {
		return
	}
	for _, f := range report.Failures {
		e.recorder.RecordChunkFailure(runID, report.Stream, f.Chunk, f.Start, f.Size, f.Err)
	}
}

func (e *Engine) progress(runID, status string, pct int, message string) {
	if e.recorder == nil || runID == "" {
		return
	}
	e.recorder.UpdateProgress(runID, status, pct, message)
}

func (e *Engine) finish(log zerolog.Logger, result *Result, status string, runErr error) {
	if e.recorder == nil || result.RunID == "" {
		return
	}
	if err := e.recorder.FinishRun(result.RunID, status, result.Stats(), runErr); err != nil {
		log.Warn().Err(err).Msg("Failed to persist run summary")
	}
}
