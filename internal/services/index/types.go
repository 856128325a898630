package index

import (
	"context"
	"errors"

	"brandsync/internal/api"
)

// Property names requested from the companies collection
const (
	PropOrderCode = "order_code"
	PropOrderID   = "order_id"
	PropObjectID  = "hs_object_id"
)

// DefaultPageSize is the number of companies fetched per search call
const DefaultPageSize = 200

// ErrPartialIndex marks an index that stopped early because a page failed
var ErrPartialIndex = errors.New("partial index")

// ParentRecord is the minimal projection of a remote company
type ParentRecord struct {
	OrderCode string `json:"order_code"`
	OrderID   string `json:"order_id"`
	RemoteID  string `json:"remote_id"`
}

// CompanySearcher pages through the remote companies collection
type CompanySearcher interface {
	SearchCompanies(ctx context.Context, req api.SearchRequest) (*api.SearchResponse, error)
}
