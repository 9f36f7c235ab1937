package services

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/HammerMeetNail/socialreact/internal/models"
)

// reactionLockKey maps a (target kind, user, target) triple onto the int8
// key space of pg_advisory_xact_lock.
func reactionLockKey(target models.TargetKind, userID, targetID int64) int64 {
	var ids [16]byte
	binary.BigEndian.PutUint64(ids[:8], uint64(userID))
	binary.BigEndian.PutUint64(ids[8:], uint64(targetID))

	d := xxhash.New()
	_, _ = d.WriteString(string(target))
	_, _ = d.Write(ids[:])
	return int64(d.Sum64())
}

// lockReactionPair takes a transaction-scoped advisory lock on the pair. It
// serializes writers even before the pair has a row to lock.
func lockReactionPair(ctx context.Context, q Querier, target models.TargetKind, userID, targetID int64) error {
	key := reactionLockKey(target, userID, targetID)
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		return fmt.Errorf("lock reaction pair: %w", err)
	}
	return nil
}

// lockTimeoutSetting renders a duration in the form lock_timeout accepts.
func lockTimeoutSetting(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return strconv.FormatInt(ms, 10) + "ms"
}
