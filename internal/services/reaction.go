package services

import (
	"context"
	"time"

	"github.com/HammerMeetNail/socialreact/internal/logging"
	"github.com/HammerMeetNail/socialreact/internal/models"
)

// TxOutcome is how a reaction transaction ended.
type TxOutcome string

const (
	OutcomeCommitted  TxOutcome = "committed"
	OutcomeNoop       TxOutcome = "noop"
	OutcomeRolledBack TxOutcome = "rolled_back"
)

// ReactionObserver is told about every reaction transaction once it has ended.
// stage is the last stage the transaction entered.
type ReactionObserver interface {
	ObserveReactionTx(target models.TargetKind, op string, outcome TxOutcome, stage TxStage, elapsed time.Duration)
}

const (
	opReact     = "react"
	opRemove    = "remove"
	opReconcile = "reconcile"

	rollbackTimeout = 5 * time.Second
)

// ReactionService coordinates reaction writes for one entity kind. Each write
// runs BEGIN, LOCK_READ, MUTATE_ROW, PROJECT_COUNTERS and COMMIT in one
// transaction and rolls back on every other exit path.
type ReactionService struct {
	table    ReactionTable
	store    *ReactionStore
	counters CounterProjector
	observer ReactionObserver
}

func NewReactionService(table ReactionTable) *ReactionService {
	return &ReactionService{
		table: table,
		store: NewReactionStore(table),
	}
}

func (s *ReactionService) SetObserver(observer ReactionObserver) {
	s.observer = observer
}

func (s *ReactionService) Target() models.TargetKind {
	return s.table.Target()
}

// React makes kind the user's active reaction on the target and returns the
// kind it replaced. Repeating the current kind changes nothing.
func (s *ReactionService) React(ctx context.Context, userID, targetID int64, kind models.ReactionKind) (*models.ReactResult, error) {
	if err := validateIDs(userID, targetID); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, &ValidationError{Field: "reaction", Message: "unknown reaction kind"}
	}

	var prev models.ReactionKind
	err := s.inTx(ctx, opReact, func(ctx context.Context, run *reactionRun) (bool, error) {
		var err error
		prev, err = s.store.LockActiveReaction(ctx, run.tx, userID, targetID)
		if err != nil {
			return false, err
		}
		if prev == kind {
			return false, nil
		}

		if err := run.enter(ctx, StageMutateRow); err != nil {
			return false, err
		}
		if err := s.store.Upsert(ctx, run.tx, userID, targetID, kind); err != nil {
			return false, err
		}

		if err := run.enter(ctx, StageProjectCounters); err != nil {
			return false, err
		}
		if _, err := s.counters.Project(ctx, run.tx, targetID, prev, kind); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	return &models.ReactResult{Success: true, Reaction: kind, PreviousKind: prev}, nil
}

// RemoveReaction tombstones the user's active reaction. Success is false when
// there was nothing to remove; that is not an error.
func (s *ReactionService) RemoveReaction(ctx context.Context, userID, targetID int64) (*models.RemoveResult, error) {
	if err := validateIDs(userID, targetID); err != nil {
		return nil, err
	}

	var (
		prev    models.ReactionKind
		removed bool
	)
	err := s.inTx(ctx, opRemove, func(ctx context.Context, run *reactionRun) (bool, error) {
		var err error
		prev, err = s.store.LockActiveReaction(ctx, run.tx, userID, targetID)
		if err != nil {
			return false, err
		}
		if prev == models.ReactionNone {
			return false, nil
		}

		if err := run.enter(ctx, StageMutateRow); err != nil {
			return false, err
		}
		removed, err = s.store.SoftDelete(ctx, run.tx, userID, targetID)
		if err != nil {
			return false, err
		}
		if !removed {
			return false, nil
		}

		if err := run.enter(ctx, StageProjectCounters); err != nil {
			return false, err
		}
		if _, err := s.counters.Project(ctx, run.tx, targetID, prev, models.ReactionNone); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if !removed {
		return &models.RemoveResult{Success: false}, nil
	}
	return &models.RemoveResult{Success: true, PreviousKind: prev}, nil
}

// GetActiveReaction returns nil when the user has no active reaction.
func (s *ReactionService) GetActiveReaction(ctx context.Context, userID, targetID int64) (*models.Reaction, error) {
	if err := validateIDs(userID, targetID); err != nil {
		return nil, err
	}
	return s.store.GetActiveReaction(ctx, userID, targetID)
}

// Counters returns the cached counters of the target.
func (s *ReactionService) Counters(ctx context.Context, targetID int64) (models.ReactionCounters, error) {
	if targetID <= 0 {
		return models.ReactionCounters{}, &ValidationError{Field: "target_id", Message: "must be a positive integer"}
	}
	return s.table.Counters(ctx, targetID)
}

// TopReactions returns up to n kinds with the highest counts. Equal counts are
// ordered by kind id.
func (s *ReactionService) TopReactions(ctx context.Context, targetID int64, n int) ([]models.ReactionCount, error) {
	if n < 0 {
		return nil, &ValidationError{Field: "n", Message: "must not be negative"}
	}
	counters, err := s.Counters(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return counters.Top(n), nil
}

// Reconcile recomputes the target's counters from its active reaction rows and
// returns the counters before and after.
func (s *ReactionService) Reconcile(ctx context.Context, targetID int64) (before, after models.ReactionCounters, err error) {
	if targetID <= 0 {
		return before, after, &ValidationError{Field: "target_id", Message: "must be a positive integer"}
	}

	err = s.inTx(ctx, opReconcile, func(ctx context.Context, run *reactionRun) (bool, error) {
		var err error
		if err := run.enter(ctx, StageProjectCounters); err != nil {
			return false, err
		}
		before, after, err = s.counters.Rebuild(ctx, run.tx, targetID)
		if err != nil {
			return false, err
		}
		return before != after, nil
	})
	return before, after, err
}

type reactionRun struct {
	tx    ReactionTx
	stage TxStage
}

func (r *reactionRun) enter(ctx context.Context, stage TxStage) error {
	r.stage = stage
	return ctx.Err()
}

// inTx runs fn inside a reaction transaction. fn reports whether it wrote
// anything; a transaction that wrote nothing is rolled back instead of
// committed. Any error is returned as a *ReactionTxError after rollback.
func (s *ReactionService) inTx(ctx context.Context, op string, fn func(ctx context.Context, run *reactionRun) (bool, error)) error {
	start := time.Now()
	run := &reactionRun{stage: StageBegin}
	outcome := OutcomeRolledBack
	defer func() {
		if s.observer != nil {
			s.observer.ObserveReactionTx(s.table.Target(), op, outcome, run.stage, time.Since(start))
		}
	}()

	if err := ctx.Err(); err != nil {
		return s.txError(op, run.stage, err)
	}
	tx, err := s.table.Begin(ctx)
	if err != nil {
		return s.txError(op, run.stage, err)
	}
	run.tx = tx

	committed := false
	defer func() {
		if committed {
			return
		}
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()
		if err := tx.Rollback(rbCtx); err != nil {
			logging.Error("Failed to roll back reaction transaction", map[string]interface{}{
				"target": string(s.table.Target()),
				"op":     op,
				"stage":  string(run.stage),
				"error":  err.Error(),
			})
		}
	}()

	if err := run.enter(ctx, StageLockRead); err != nil {
		return s.txError(op, run.stage, err)
	}
	changed, err := fn(ctx, run)
	if err != nil {
		return s.txError(op, run.stage, err)
	}
	if !changed {
		outcome = OutcomeNoop
		return nil
	}

	if err := run.enter(ctx, StageCommit); err != nil {
		return s.txError(op, run.stage, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return s.txError(op, run.stage, err)
	}
	committed = true
	outcome = OutcomeCommitted
	return nil
}

func (s *ReactionService) txError(op string, stage TxStage, err error) error {
	return &ReactionTxError{Target: s.table.Target(), Op: op, Stage: stage, Err: err}
}
