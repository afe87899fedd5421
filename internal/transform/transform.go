// Package transform holds the pure batch steps of a conversion: pending
// filtering, enrichment and ordering.
package transform

import (
	"context"
	"fmt"
	"sort"

	"github.com/rumor-ml/commons.systems/txconv/internal/config"
	"github.com/rumor-ml/commons.systems/txconv/internal/domain"
	"github.com/rumor-ml/commons.systems/txconv/internal/enrich"
)

// FilterPending drops pending transactions when ignorePending is set. The
// relative order of the remaining transactions is unchanged.
func FilterPending(ignorePending bool, txns []domain.Transaction) []domain.Transaction {
	if !ignorePending {
		return txns
	}
	kept := make([]domain.Transaction, 0, len(txns))
	for _, txn := range txns {
		if txn.Status() != domain.StatusPending {
			kept = append(kept, txn)
		}
	}
	return kept
}

// Stats summarizes an enrichment pass.
type Stats struct {
	Normalized    int
	Unresolved    int
	Categorized   int
	Uncategorized int
	Prompted      int

	unmatched []string
}

// UnmatchedExamples returns up to limit distinct payees that no rule matched,
// in first-seen order.
func (s Stats) UnmatchedExamples(limit int) []string {
	if len(s.unmatched) <= limit {
		return append([]string(nil), s.unmatched...)
	}
	return append([]string(nil), s.unmatched[:limit]...)
}

// Enrich normalizes then categorizes every transaction exactly once.
// Unmatched payees and missing categories are counted, not errors. A prompt
// failure stops the pass.
func Enrich(ctx context.Context, n *enrich.Normalizer, c *enrich.Categorizer, txns []domain.Transaction) ([]domain.Transaction, Stats, error) {
	var stats Stats
	seen := make(map[string]bool)
	out := make([]domain.Transaction, 0, len(txns))

	for i, txn := range txns {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		txn, err := n.Normalize(ctx, txn)
		if err != nil {
			return nil, stats, fmt.Errorf("transaction %d: %w", i+1, err)
		}
		if txn.IsNormalized() {
			stats.Normalized++
		} else {
			stats.Unresolved++
			if !seen[txn.RawPayeeName()] {
				seen[txn.RawPayeeName()] = true
				stats.unmatched = append(stats.unmatched, txn.RawPayeeName())
			}
		}

		txn, prompted, err := c.Categorize(ctx, txn)
		if prompted {
			stats.Prompted++
		}
		if err != nil {
			return nil, stats, fmt.Errorf("transaction %d: %w", i+1, err)
		}
		if txn.Category() != "" {
			stats.Categorized++
		} else {
			stats.Uncategorized++
		}

		out = append(out, txn)
	}

	return out, stats, nil
}

// Sort returns the transactions ordered by s. The sort is stable, so
// transactions with equal keys keep their input order in both directions.
func Sort(s config.Sort, txns []domain.Transaction) []domain.Transaction {
	sorted := append([]domain.Transaction(nil), txns...)
	descending := s.Order == config.SortDescending

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Date(), sorted[j].Date()
		if descending {
			return a.After(b)
		}
		return a.Before(b)
	})
	return sorted
}
