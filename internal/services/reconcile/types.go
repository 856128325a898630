package reconcile

import (
	"context"

	"brandsync/internal/api"
	"brandsync/internal/models"
	"brandsync/internal/services/batch"
	"brandsync/internal/services/index"
	"brandsync/internal/services/normalize"
)

// Spreadsheet columns the engine relies on
const (
	ColBrandName = "brand_name"
	ColOrderID   = "order_id"
	ColOrderCode = "order_code"
)

// Upload stream names used in logs and run history
const (
	StreamCompanies = "companies"
	StreamObjects   = "objects"
)

// AssociationCategory is the category of the configured child-to-company association
const AssociationCategory = "USER_DEFINED"

// CompanyStore is the parent collection: paged search plus batch create
type CompanyStore interface {
	index.CompanySearcher
	BatchCreateCompanies(ctx context.Context, inputs []api.CreateInput) (*api.BatchResponse, error)
}

// ObjectStore is the custom child object collection
type ObjectStore interface {
	BatchCreateObjects(ctx context.Context, objectType string, inputs []api.CreateInput) (*api.BatchResponse, error)
}

// Recorder persists run progress. *history.Service implements it.
type Recorder interface {
	StartRun(source string) (string, error)
	UpdateProgress(runID, status string, progress int, message string)
	RecordChunkFailure(runID, stream string, chunk, start, size int, cause error)
	FinishRun(runID, status string, stats models.RunStats, runErr error) error
}

// ParentInput is a company to create for a row whose natural keys are unknown
type ParentInput struct {
	Name      string `json:"name"`
	OrderID   string `json:"order_id"`
	OrderCode string `json:"order_code"`
}

// ChildInput is one normalized row with its resolved parent. ParentID is
// empty when no company matched either natural key.
type ChildInput struct {
	Properties normalize.Row `json:"properties"`
	ParentID   string        `json:"parent_id,omitempty"`

	// raw natural keys, kept for re-resolution after parents are created
	orderCode string
	orderID   string
}

// Plan is the outcome of reconciling rows against an index
type Plan struct {
	NewParents []ParentInput `json:"new_parents"`
	Children   []ChildInput  `json:"children"`
}

// Linked counts children with a resolved parent
func (p Plan) Linked() int {
	n := 0
	for _, child := range p.Children {
		if child.ParentID != "" {
			n++
		}
	}
	return n
}

// Result describes a completed run, including partial failures
type Result struct {
	RunID           string       `json:"run_id,omitempty"`
	Rows            int          `json:"rows"`
	ExistingParents int          `json:"existing_parents"`
	IndexErr        error        `json:"-"`
	Plan            Plan         `json:"plan"`
	Parents         batch.Report `json:"parents"`
	Children        batch.Report `json:"children"`
	ParentsCreated  int          `json:"parents_created"`
}

// PartialIndex reports whether the company index stopped early
func (r *Result) PartialIndex() bool {
	return r.IndexErr != nil
}

// Status summarises the run for history
func (r *Result) Status() string {
	if r.PartialIndex() || r.Parents.Failed() || r.Children.Failed() {
		return models.RunStatusCompletedWithErrors
	}
	return models.RunStatusCompleted
}

// Stats converts the result into persisted counters
func (r *Result) Stats() models.RunStats {
	linked := r.Plan.Linked()
	return models.RunStats{
		Rows:            r.Rows,
		ExistingParents: r.ExistingParents,
		PartialIndex:    r.PartialIndex(),
		ParentsPlanned:  len(r.Plan.NewParents),
		ParentsCreated:  r.ParentsCreated,
		ChildrenPlanned: len(r.Plan.Children),
		ChildrenCreated: r.Children.Submitted,
		Linked:          linked,
		Unlinked:        len(r.Plan.Children) - linked,
		FailedChunks:    len(r.Parents.Failures) + len(r.Children.Failures),
	}
}
