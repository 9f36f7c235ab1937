package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HammerMeetNail/socialreact/internal/models"
)

// PgReactionTable is the PostgreSQL ReactionTable for one entity kind.
type PgReactionTable struct {
	db          DB
	stmts       *reactionStatements
	lockTimeout time.Duration
}

// NewPostReactionTable stores reactions in post_reactions and counters on posts.
func NewPostReactionTable(db DB, lockTimeout time.Duration) *PgReactionTable {
	return &PgReactionTable{db: db, stmts: &postReactionStatements, lockTimeout: lockTimeout}
}

// NewCommentReactionTable stores reactions in comment_reactions and counters on comments.
func NewCommentReactionTable(db DB, lockTimeout time.Duration) *PgReactionTable {
	return &PgReactionTable{db: db, stmts: &commentReactionStatements, lockTimeout: lockTimeout}
}

func (t *PgReactionTable) Target() models.TargetKind {
	return t.stmts.target
}

func (t *PgReactionTable) Begin(ctx context.Context) (ReactionTx, error) {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return nil, storageError("begin transaction", err)
	}
	if t.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, setLockTimeoutSQL, lockTimeoutSetting(t.lockTimeout)); err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			return nil, storageError("set lock timeout", err)
		}
	}
	return &pgReactionTx{tx: tx, stmts: t.stmts}, nil
}

func (t *PgReactionTable) ActiveReaction(ctx context.Context, userID, targetID int64) (*models.Reaction, error) {
	reaction, err := scanReaction(t.db.QueryRow(ctx, t.stmts.activeReaction, userID, targetID), t.stmts.target)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("get active reaction", err)
	}
	return reaction, nil
}

func (t *PgReactionTable) Counters(ctx context.Context, targetID int64) (models.ReactionCounters, error) {
	counters, err := scanCounters(t.db.QueryRow(ctx, t.stmts.counters, targetID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ReactionCounters{}, ErrTargetNotFound
	}
	if err != nil {
		return models.ReactionCounters{}, storageError("get reaction counters", err)
	}
	return counters, nil
}

type pgReactionTx struct {
	tx     Tx
	stmts  *reactionStatements
	closed bool
}

func (p *pgReactionTx) LockReaction(ctx context.Context, userID, targetID int64) (*models.Reaction, error) {
	if p.closed {
		return nil, ErrTxClosed
	}
	if err := lockReactionPair(ctx, p.tx, p.stmts.target, userID, targetID); err != nil {
		return nil, storageError("lock reaction", txErr(err))
	}
	reaction, err := scanReaction(p.tx.QueryRow(ctx, p.stmts.lockReaction, userID, targetID), p.stmts.target)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("lock reaction", txErr(err))
	}
	return reaction, nil
}

func (p *pgReactionTx) PutReaction(ctx context.Context, userID, targetID int64, kind models.ReactionKind) error {
	if p.closed {
		return ErrTxClosed
	}
	if _, err := p.tx.Exec(ctx, p.stmts.putReaction, userID, targetID, int16(kind)); err != nil {
		return p.writeErr("put reaction", err)
	}
	return nil
}

func (p *pgReactionTx) TombstoneReaction(ctx context.Context, userID, targetID int64) (bool, error) {
	if p.closed {
		return false, ErrTxClosed
	}
	tag, err := p.tx.Exec(ctx, p.stmts.tombstone, userID, targetID)
	if err != nil {
		return false, p.writeErr("tombstone reaction", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *pgReactionTx) ApplyCounterDelta(ctx context.Context, targetID int64, delta models.CounterDelta) error {
	if p.closed {
		return ErrTxClosed
	}
	args := append([]any{targetID}, delta.Args()...)
	tag, err := p.tx.Exec(ctx, p.stmts.applyDelta, args...)
	if pgErrorCode(err) == pgCheckViolation {
		return &StorageError{Op: "apply counter delta", Err: fmt.Errorf("%w: %w", ErrCounterDrift, err)}
	}
	if err != nil {
		return p.writeErr("apply counter delta", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTargetNotFound
	}
	return nil
}

func (p *pgReactionTx) LockCounters(ctx context.Context, targetID int64) (models.ReactionCounters, error) {
	if p.closed {
		return models.ReactionCounters{}, ErrTxClosed
	}
	counters, err := scanCounters(p.tx.QueryRow(ctx, p.stmts.lockCounters, targetID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ReactionCounters{}, ErrTargetNotFound
	}
	if err != nil {
		return models.ReactionCounters{}, storageError("lock reaction counters", txErr(err))
	}
	return counters, nil
}

func (p *pgReactionTx) RecountCounters(ctx context.Context, targetID int64) (models.ReactionCounters, error) {
	if p.closed {
		return models.ReactionCounters{}, ErrTxClosed
	}
	args := make([]any, 0, models.NumReactionKinds+1)
	args = append(args, targetID)
	for _, k := range models.ReactionKinds {
		args = append(args, int16(k))
	}
	counters, err := scanCounters(p.tx.QueryRow(ctx, p.stmts.recount, args...))
	if err != nil {
		return models.ReactionCounters{}, storageError("recount reactions", txErr(err))
	}
	return counters, nil
}

func (p *pgReactionTx) WriteCounters(ctx context.Context, targetID int64, counters models.ReactionCounters) error {
	if p.closed {
		return ErrTxClosed
	}
	args := []any{targetID}
	for _, k := range models.ReactionKinds {
		args = append(args, counters.Count(k))
	}
	args = append(args, counters.Total)
	tag, err := p.tx.Exec(ctx, p.stmts.writeCounters, args...)
	if err != nil {
		return p.writeErr("write reaction counters", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTargetNotFound
	}
	return nil
}

func (p *pgReactionTx) Commit(ctx context.Context) error {
	if p.closed {
		return ErrTxClosed
	}
	p.closed = true
	if err := p.tx.Commit(ctx); err != nil {
		return storageError("commit", txErr(err))
	}
	return nil
}

// Rollback is a no-op on a finished transaction.
func (p *pgReactionTx) Rollback(ctx context.Context) error {
	if p.closed {
		return nil
	}
	p.closed = true
	err := p.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return storageError("rollback", err)
	}
	return nil
}

func (p *pgReactionTx) writeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		switch pgErr.ConstraintName {
		case p.stmts.targetFKConstraint:
			return ErrTargetNotFound
		case p.stmts.userFKConstraint:
			return &ValidationError{Field: "user_id", Message: "unknown user"}
		}
	}
	return storageError(op, txErr(err))
}

func txErr(err error) error {
	if errors.Is(err, pgx.ErrTxClosed) && !errors.Is(err, ErrTxClosed) {
		return fmt.Errorf("%w: %w", ErrTxClosed, err)
	}
	return err
}

func scanReaction(row Row, target models.TargetKind) (*models.Reaction, error) {
	var (
		r    models.Reaction
		kind int16
	)
	if err := row.Scan(&r.UserID, &r.TargetID, &kind, &r.IsDeleted, &r.DeletedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Target = target
	r.Kind = models.ReactionKind(kind)
	return &r, nil
}

func scanCounters(row Row) (models.ReactionCounters, error) {
	var c models.ReactionCounters
	err := row.Scan(&c.Likes, &c.Loves, &c.Cares, &c.Hahas, &c.Wows, &c.Sads, &c.Angries, &c.Total)
	return c, err
}
