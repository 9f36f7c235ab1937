package services

import (
	"context"

	"github.com/HammerMeetNail/socialreact/internal/models"
)

// ReactionTable is the storage capability for one reactable entity kind: its
// per-user reaction rows and the counter columns on the entity row. Posts and
// comments each get one instance; the store, projector and coordinator are
// written once against this interface.
type ReactionTable interface {
	Target() models.TargetKind
	Begin(ctx context.Context) (ReactionTx, error)
	// ActiveReaction returns nil when the user has no active reaction.
	ActiveReaction(ctx context.Context, userID, targetID int64) (*models.Reaction, error)
	// Counters returns ErrTargetNotFound when the entity does not exist.
	Counters(ctx context.Context, targetID int64) (models.ReactionCounters, error)
}

// ReactionTx is an open unit of work on a ReactionTable. Every method fails
// with ErrTxClosed once Commit or Rollback has been called.
type ReactionTx interface {
	// LockReaction blocks until no other transaction holds the (user, target)
	// pair, then returns its row in any state, or nil when none exists.
	LockReaction(ctx context.Context, userID, targetID int64) (*models.Reaction, error)
	// PutReaction inserts an active row or revives and rewrites the existing one.
	PutReaction(ctx context.Context, userID, targetID int64, kind models.ReactionKind) error
	// TombstoneReaction soft-deletes the active row and reports whether one existed.
	TombstoneReaction(ctx context.Context, userID, targetID int64) (bool, error)
	ApplyCounterDelta(ctx context.Context, targetID int64, delta models.CounterDelta) error
	LockCounters(ctx context.Context, targetID int64) (models.ReactionCounters, error)
	// RecountCounters aggregates the active rows for the target.
	RecountCounters(ctx context.Context, targetID int64) (models.ReactionCounters, error)
	WriteCounters(ctx context.Context, targetID int64, counters models.ReactionCounters) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
