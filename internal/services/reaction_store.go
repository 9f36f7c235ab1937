package services

import (
	"context"
	"fmt"

	"github.com/HammerMeetNail/socialreact/internal/models"
)

// ReactionStore owns the per-user reaction rows of one entity kind. Rows are
// never hard-deleted: removal leaves a tombstone that the next reaction revives.
type ReactionStore struct {
	table ReactionTable
}

func NewReactionStore(table ReactionTable) *ReactionStore {
	return &ReactionStore{table: table}
}

// GetActiveReaction returns the user's reaction row, or nil when the user has
// no reaction or only a tombstone.
func (s *ReactionStore) GetActiveReaction(ctx context.Context, userID, targetID int64) (*models.Reaction, error) {
	reaction, err := s.table.ActiveReaction(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}
	if reaction.ActiveKind() == models.ReactionNone {
		return nil, nil
	}
	return reaction, nil
}

// LockActiveReaction locks the pair for the rest of tx and returns the kind it
// held at that moment.
func (s *ReactionStore) LockActiveReaction(ctx context.Context, tx ReactionTx, userID, targetID int64) (models.ReactionKind, error) {
	reaction, err := tx.LockReaction(ctx, userID, targetID)
	if err != nil {
		return models.ReactionNone, err
	}
	return reaction.ActiveKind(), nil
}

// Upsert makes kind the pair's active reaction, reviving a tombstone if present.
func (s *ReactionStore) Upsert(ctx context.Context, tx ReactionTx, userID, targetID int64, kind models.ReactionKind) error {
	if !kind.Valid() {
		return &ValidationError{Field: "reaction", Message: fmt.Sprintf("unknown reaction kind %d", int16(kind))}
	}
	return tx.PutReaction(ctx, userID, targetID, kind)
}

// SoftDelete tombstones the active row. It reports false when there was nothing
// active to remove.
func (s *ReactionStore) SoftDelete(ctx context.Context, tx ReactionTx, userID, targetID int64) (bool, error) {
	return tx.TombstoneReaction(ctx, userID, targetID)
}
