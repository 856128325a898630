package index

import (
	"strconv"
	"strings"

	"brandsync/internal/services/normalize"
)

// Index is an ordered, in-memory view of the remote companies. Lookups scan
// in insertion order so the first matching record wins.
type Index struct {
	records []ParentRecord
	known   map[string]struct{}
}

// New builds an index from records, keeping their order
func New(records []ParentRecord) *Index {
	idx := &Index{known: make(map[string]struct{})}
	idx.Merge(records...)
	return idx
}

// Merge appends records, typically companies created during the current run
func (idx *Index) Merge(records ...ParentRecord) {
	for _, rec := range records {
		idx.records = append(idx.records, rec)
		if key := CanonicalKey(rec.OrderCode); key != "" {
			idx.known[key] = struct{}{}
		}
		if key := CanonicalKey(rec.OrderID); key != "" {
			idx.known[key] = struct{}{}
		}
	}
}

// Len returns the number of records in the index
func (idx *Index) Len() int {
	return len(idx.records)
}

// Records returns a copy of the indexed records in order
func (idx *Index) Records() []ParentRecord {
	out := make([]ParentRecord, len(idx.records))
	copy(out, idx.records)
	return out
}

// Has reports whether either natural key of any record equals key. Both key
// fields share one namespace, so an order id may match an order code.
func (idx *Index) Has(key string) bool {
	canonical := CanonicalKey(key)
	if canonical == "" {
		return false
	}
	_, ok := idx.known[canonical]
	return ok
}

// FindParent returns the remote id of the first record whose order code
// equals orderCode or whose order id equals orderID.
func (idx *Index) FindParent(orderCode, orderID string) (string, bool) {
	code := CanonicalKey(orderCode)
	id := CanonicalKey(orderID)
	if code == "" && id == "" {
		return "", false
	}

	for _, rec := range idx.records {
		if code != "" && CanonicalKey(rec.OrderCode) == code {
			return rec.RemoteID, true
		}
		if id != "" && CanonicalKey(rec.OrderID) == id {
			return rec.RemoteID, true
		}
	}

	return "", false
}

// CanonicalKey returns the comparison form of a natural key. Numbers compare
// by value ("007" and "7.0" are both "7"); other text is trimmed. Blank input
// yields "" which never matches.
func CanonicalKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if normalize.IsNumeric(trimmed) {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return normalize.FormatNumber(f)
		}
	}
	return trimmed
}
