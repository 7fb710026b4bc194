package milestone

import (
	"context"

	"github.com/upstream-pm/upstream/internal/host"
)

// CategoryIDs returns the milestone's category term ids. It returns nil when
// categories are disabled.
func (m *Milestone) CategoryIDs(ctx context.Context) ([]uint, error) {
	if !m.mgr.categories {
		return nil, nil
	}
	if m.state == Unsaved {
		return append([]uint(nil), m.pendingCategories...), nil
	}
	return m.obj.Host().Terms().ObjectTerms(ctx, m.ID(), CategoryTaxonomy)
}

// SetCategoryIDs replaces the milestone's categories. Every id must be a
// term of the milestone category taxonomy. It does nothing when categories
// are disabled.
func (m *Milestone) SetCategoryIDs(ctx context.Context, ids []uint) error {
	if !m.mgr.categories {
		return nil
	}
	terms := m.obj.Host().Terms()
	ids = uniqueIDs(ids)
	for _, id := range ids {
		ok, err := terms.Exists(ctx, CategoryTaxonomy, id)
		if err != nil {
			return err
		}
		if !ok {
			return host.Validationf("term %d is not a milestone category", id)
		}
	}
	if m.state == Unsaved {
		m.pendingCategories = ids
		return nil
	}
	return terms.SetObjectTerms(ctx, m.ID(), CategoryTaxonomy, ids)
}
