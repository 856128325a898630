package reconcile

import (
	"strings"

	"brandsync/internal/services/index"
	"brandsync/internal/services/normalize"
)

// BuildPlan partitions rows against idx. A row yields a new parent only when
// neither of its natural keys is known; every row yields exactly one child.
// Rows repeating the keys of an earlier new parent do not create a second one.
func BuildPlan(rows []normalize.RawRow, idx *index.Index) Plan {
	plan := Plan{
		NewParents: []ParentInput{},
		Children:   make([]ChildInput, 0, len(rows)),
	}

	planned := make(map[string]struct{})
	for _, row := range rows {
		code, id := row[ColOrderCode], row[ColOrderID]

		if !idx.Has(code) && !idx.Has(id) && !seen(planned, code, id) {
			plan.NewParents = append(plan.NewParents, ParentInput{
				Name:      row[ColBrandName],
				OrderID:   id,
				OrderCode: code,
			})
			mark(planned, code, id)
		}

		plan.Children = append(plan.Children, newChild(row, idx))
	}

	return plan
}

// Relink resolves every child's parent again against idx, which by now holds
// the companies created earlier in the run.
func (p *Plan) Relink(idx *index.Index) {
	for i := range p.Children {
		p.Children[i].ParentID, _ = idx.FindParent(p.Children[i].orderCode, p.Children[i].orderID)
	}
}

// newChild normalizes row. A blank order id becomes the missing marker.
func newChild(row normalize.RawRow, idx *index.Index) ChildInput {
	values := make(map[string]interface{}, len(row)+1)
	for key, value := range row {
		values[key] = value
	}
	if strings.TrimSpace(row[ColOrderID]) == "" {
		values[ColOrderID] = normalize.MissingValue
	}

	parentID, _ := idx.FindParent(row[ColOrderCode], row[ColOrderID])

	return ChildInput{
		Properties: normalize.Values(values),
		ParentID:   parentID,
		orderCode:  row[ColOrderCode],
		orderID:    row[ColOrderID],
	}
}

func seen(keys map[string]struct{}, values ...string) bool {
	for _, v := range values {
		if k := index.CanonicalKey(v); k != "" {
			if _, ok := keys[k]; ok {
				return true
			}
		}
	}
	return false
}

func mark(keys map[string]struct{}, values ...string) {
	for _, v := range values {
		if k := index.CanonicalKey(v); k != "" {
			keys[k] = struct{}{}
		}
	}
}
