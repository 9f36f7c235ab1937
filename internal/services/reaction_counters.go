package services

import (
	"context"

	"github.com/HammerMeetNail/socialreact/internal/models"
)

// ComputeCounterDelta returns the counter adjustment for moving a pair from
// prev to next. The total only moves when a reaction appears or disappears;
// swapping kinds shifts one per-kind count to another.
func ComputeCounterDelta(prev, next models.ReactionKind) models.CounterDelta {
	var d models.CounterDelta
	if prev == next {
		return d
	}
	if prev.Valid() {
		d.Add(prev, -1)
	}
	if next.Valid() {
		d.Add(next, 1)
	}
	switch {
	case !prev.Valid() && next.Valid():
		d.Total = 1
	case prev.Valid() && !next.Valid():
		d.Total = -1
	}
	return d
}

// CounterProjector keeps the counter columns on an entity in step with its
// reaction rows, inside the transaction that changed the rows.
type CounterProjector struct{}

// Project applies the delta for prev -> next as a single relative update. A
// zero delta issues no statement.
func (CounterProjector) Project(ctx context.Context, tx ReactionTx, targetID int64, prev, next models.ReactionKind) (models.CounterDelta, error) {
	delta := ComputeCounterDelta(prev, next)
	if delta.IsZero() {
		return delta, nil
	}
	if err := tx.ApplyCounterDelta(ctx, targetID, delta); err != nil {
		return delta, err
	}
	return delta, nil
}

// Rebuild locks the entity's counters, recounts its active reaction rows and
// overwrites the counters with the result.
func (CounterProjector) Rebuild(ctx context.Context, tx ReactionTx, targetID int64) (before, after models.ReactionCounters, err error) {
	before, err = tx.LockCounters(ctx, targetID)
	if err != nil {
		return before, after, err
	}
	after, err = tx.RecountCounters(ctx, targetID)
	if err != nil {
		return before, after, err
	}
	if after == before {
		return before, after, nil
	}
	if err := tx.WriteCounters(ctx, targetID, after); err != nil {
		return before, after, err
	}
	return before, after, nil
}
