package coordinator

import (
	"context"
	"log/slog"
	"time"
)

// CheckConsistency implements spec §4.7.5: a chunk id present in exactly
// one of the two stores is an inconsistency. With only two stores there
// are two disjoint id sets (present-in-vector-only and
// present-in-lexical-only); OrphanVector/MissingLexical name the same set
// from the vector store's point of view, as do OrphanLexical/MissingVector,
// matching the four-name vocabulary spec §4.7.5 uses.
func (c *Coordinator) CheckConsistency(ctx context.Context) (*ConsistencyReport, error) {
	start := time.Now()

	vectorIDs := c.vector.AllIDs()
	lexicalIDs, err := c.bm25.AllIDs()
	if err != nil {
		return nil, err
	}

	vectorSet := make(map[string]bool, len(vectorIDs))
	for _, id := range vectorIDs {
		vectorSet[id] = true
	}
	lexicalSet := make(map[string]bool, len(lexicalIDs))
	for _, id := range lexicalIDs {
		lexicalSet[id] = true
	}

	report := &ConsistencyReport{Checked: len(vectorSet) + len(lexicalSet)}

	for id := range vectorSet {
		if !lexicalSet[id] {
			report.OrphanVector = append(report.OrphanVector, id)
			report.MissingLexical = append(report.MissingLexical, id)
		}
	}
	for id := range lexicalSet {
		if !vectorSet[id] {
			report.OrphanLexical = append(report.OrphanLexical, id)
			report.MissingVector = append(report.MissingVector, id)
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

// RepairConsistency deletes orphaned ids from whichever store still holds
// them, restoring the invariant that every chunk id is present in both
// stores or neither.
func (c *Coordinator) RepairConsistency(ctx context.Context, report *ConsistencyReport) error {
	if len(report.OrphanVector) > 0 {
		if err := c.vector.Delete(ctx, report.OrphanVector); err != nil {
			slog.Warn("failed to delete orphan vector entries",
				slog.Int("count", len(report.OrphanVector)),
				slog.String("error", err.Error()))
		} else {
			slog.Info("deleted orphan vector entries", slog.Int("count", len(report.OrphanVector)))
		}
	}
	if len(report.OrphanLexical) > 0 {
		if err := c.bm25.Delete(ctx, report.OrphanLexical); err != nil {
			slog.Warn("failed to delete orphan lexical entries",
				slog.Int("count", len(report.OrphanLexical)),
				slog.String("error", err.Error()))
		} else {
			slog.Info("deleted orphan lexical entries", slog.Int("count", len(report.OrphanLexical)))
		}
	}
	return c.persist()
}
