package index

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"brandsync/internal/api"
)

// Builder pages through the companies collection and projects each company
// onto its natural keys.
type Builder struct {
	searcher CompanySearcher
	pageSize int
	logger   zerolog.Logger
}

// NewBuilder creates a new index builder. pageSize <= 0 uses DefaultPageSize.
func NewBuilder(searcher CompanySearcher, pageSize int, logger zerolog.Logger) *Builder {
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}
	return &Builder{
		searcher: searcher,
		pageSize: pageSize,
		logger:   logger,
	}
}

// Build fetches pages in increasing offset order until the server-reported
// total is reached or a page comes back empty. A failed page ends pagination:
// the records gathered so far are returned along with an error wrapping
// ErrPartialIndex.
func (b *Builder) Build(ctx context.Context) (*Index, error) {
	idx := New(nil)
	offset := 0
	page := 1

	for {
		if err := ctx.Err(); err != nil {
			return idx, fmt.Errorf("%w: stopped before page %d: %w", ErrPartialIndex, page, err)
		}

		resp, err := b.searcher.SearchCompanies(ctx, api.SearchRequest{
			Limit:      b.pageSize,
			After:      strconv.Itoa(offset),
			Properties: []string{PropOrderCode, PropOrderID, PropObjectID},
		})
		if err != nil {
			b.logger.Error().Err(err).
				Int("page", page).
				Int("offset", offset).
				Int("fetched", idx.Len()).
				Str("response", api.ResponseBody(err)).
				Msg("Company page fetch failed; continuing with partial index")
			return idx, fmt.Errorf("%w: page %d (offset %d): %w", ErrPartialIndex, page, offset, err)
		}

		if resp == nil || len(resp.Results) == 0 {
			break
		}

		for _, obj := range resp.Results {
			idx.Merge(project(obj))
		}

		b.logger.Debug().
			Int("page", page).
			Int("results", len(resp.Results)).
			Int("total", resp.Total).
			Msg("Fetched company page")

		offset += b.pageSize
		page++

		if resp.Total-offset <= 0 {
			break
		}
	}

	b.logger.Info().Int("companies", idx.Len()).Int("pages", page-1).Msg("Company index built")
	return idx, nil
}

// project keeps only the natural keys and the remote identifier
func project(obj api.SimpleObject) ParentRecord {
	remoteID := obj.Properties[PropObjectID]
	if remoteID == "" {
		remoteID = obj.ID
	}
	return ParentRecord{
		OrderCode: obj.Properties[PropOrderCode],
		OrderID:   obj.Properties[PropOrderID],
		RemoteID:  remoteID,
	}
}

// FromBatch projects companies returned by a batch-create call
func FromBatch(objs []api.SimpleObject) []ParentRecord {
	records := make([]ParentRecord, 0, len(objs))
	for _, obj := range objs {
		records = append(records, project(obj))
	}
	return records
}
