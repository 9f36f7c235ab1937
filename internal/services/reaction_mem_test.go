package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/HammerMeetNail/socialreact/internal/models"
)

// memReactionTable is an in-memory ReactionTable. Pair and counter locks are
// held until commit or rollback, and writes only become visible on commit,
// which is enough to exercise the coordinator's locking and atomicity.
type memReactionTable struct {
	target models.TargetKind

	mu           sync.Mutex
	rows         map[memPair]models.Reaction
	counters     map[int64]models.ReactionCounters
	pairLocks    map[memPair]chan struct{}
	counterLocks map[int64]chan struct{}
	fail         map[string]error
	hooks        map[string]func()
	clock        time.Time

	begins    int
	commits   int
	rollbacks int
	open      int
}

type memPair struct {
	userID   int64
	targetID int64
}

func newMemReactionTable(target models.TargetKind, targetIDs ...int64) *memReactionTable {
	t := &memReactionTable{
		target:       target,
		rows:         map[memPair]models.Reaction{},
		counters:     map[int64]models.ReactionCounters{},
		pairLocks:    map[memPair]chan struct{}{},
		counterLocks: map[int64]chan struct{}{},
		fail:         map[string]error{},
		hooks:        map[string]func(){},
		clock:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, id := range targetIDs {
		t.counters[id] = models.ReactionCounters{}
	}
	return t
}

// failOn makes the named operation return err until cleared with nil.
func (t *memReactionTable) failOn(op string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.fail, op)
		return
	}
	t.fail[op] = err
}

// onOp runs fn after the named operation succeeds.
func (t *memReactionTable) onOp(op string, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks[op] = fn
}

func (t *memReactionTable) setCounters(targetID int64, c models.ReactionCounters) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counters[targetID] = c
}

func (t *memReactionTable) row(userID, targetID int64) (models.Reaction, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rows[memPair{userID, targetID}]
	return r, ok
}

func (t *memReactionTable) stats() (begins, commits, rollbacks, open int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.begins, t.commits, t.rollbacks, t.open
}

// recount aggregates committed active rows, independent of the cached counters.
func (t *memReactionTable) recount(targetID int64) models.ReactionCounters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return recountRows(t.rows, nil, targetID)
}

func recountRows(rows, pending map[memPair]models.Reaction, targetID int64) models.ReactionCounters {
	var c models.ReactionCounters
	seen := map[memPair]bool{}
	count := func(p memPair, r models.Reaction) {
		if p.targetID != targetID || seen[p] {
			return
		}
		seen[p] = true
		if k := r.ActiveKind(); k.Valid() {
			c.Set(k, c.Count(k)+1)
			c.Total++
		}
	}
	for p, r := range pending {
		count(p, r)
	}
	for p, r := range rows {
		count(p, r)
	}
	return c
}

func (t *memReactionTable) check(op string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fail[op]
}

func (t *memReactionTable) after(op string) {
	t.mu.Lock()
	fn := t.hooks[op]
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (t *memReactionTable) now() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clock = t.clock.Add(time.Second)
	return t.clock
}

func (t *memReactionTable) Target() models.TargetKind {
	return t.target
}

func (t *memReactionTable) Begin(ctx context.Context) (ReactionTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.check("begin"); err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.begins++
	t.open++
	t.mu.Unlock()
	return &memReactionTx{
		t:         t,
		writes:    map[memPair]models.Reaction{},
		deltas:    map[int64]models.CounterDelta{},
		overwrite: map[int64]models.ReactionCounters{},
	}, nil
}

func (t *memReactionTable) ActiveReaction(ctx context.Context, userID, targetID int64) (*models.Reaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := t.row(userID, targetID)
	if !ok || r.IsDeleted {
		return nil, nil
	}
	return &r, nil
}

func (t *memReactionTable) Counters(ctx context.Context, targetID int64) (models.ReactionCounters, error) {
	if err := ctx.Err(); err != nil {
		return models.ReactionCounters{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.counters[targetID]
	if !ok {
		return models.ReactionCounters{}, ErrTargetNotFound
	}
	return c, nil
}

func (t *memReactionTable) pairLock(p memPair) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pairLocks[p] == nil {
		t.pairLocks[p] = make(chan struct{}, 1)
	}
	return t.pairLocks[p]
}

func (t *memReactionTable) counterLock(targetID int64) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counterLocks[targetID] == nil {
		t.counterLocks[targetID] = make(chan struct{}, 1)
	}
	return t.counterLocks[targetID]
}

type memReactionTx struct {
	t         *memReactionTable
	held      []chan struct{}
	writes    map[memPair]models.Reaction
	deltas    map[int64]models.CounterDelta
	overwrite map[int64]models.ReactionCounters
	closed    bool
}

func (x *memReactionTx) acquire(ctx context.Context, ch chan struct{}) error {
	for _, h := range x.held {
		if h == ch {
			return nil
		}
	}
	select {
	case ch <- struct{}{}:
		x.held = append(x.held, ch)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (x *memReactionTx) release() {
	for _, ch := range x.held {
		<-ch
	}
	x.held = nil
	x.closed = true
	x.t.mu.Lock()
	x.t.open--
	x.t.mu.Unlock()
}

func (x *memReactionTx) begin(ctx context.Context, op string) error {
	if x.closed {
		return ErrTxClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return x.t.check(op)
}

func (x *memReactionTx) current(p memPair) (models.Reaction, bool) {
	if r, ok := x.writes[p]; ok {
		return r, true
	}
	return x.t.row(p.userID, p.targetID)
}

func (x *memReactionTx) targetExists(targetID int64) bool {
	x.t.mu.Lock()
	defer x.t.mu.Unlock()
	_, ok := x.t.counters[targetID]
	return ok
}

func (x *memReactionTx) LockReaction(ctx context.Context, userID, targetID int64) (*models.Reaction, error) {
	if err := x.begin(ctx, "lock"); err != nil {
		return nil, err
	}
	p := memPair{userID, targetID}
	if err := x.acquire(ctx, x.t.pairLock(p)); err != nil {
		return nil, err
	}
	defer x.t.after("lock")
	r, ok := x.current(p)
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (x *memReactionTx) PutReaction(ctx context.Context, userID, targetID int64, kind models.ReactionKind) error {
	if err := x.begin(ctx, "put"); err != nil {
		return err
	}
	if !x.targetExists(targetID) {
		return ErrTargetNotFound
	}
	p := memPair{userID, targetID}
	now := x.t.now()
	r, ok := x.current(p)
	if !ok {
		r = models.Reaction{UserID: userID, TargetID: targetID, Target: x.t.target, CreatedAt: now}
	}
	r.Kind = kind
	r.IsDeleted = false
	r.DeletedAt = nil
	r.UpdatedAt = now
	x.writes[p] = r
	x.t.after("put")
	return nil
}

func (x *memReactionTx) TombstoneReaction(ctx context.Context, userID, targetID int64) (bool, error) {
	if err := x.begin(ctx, "tombstone"); err != nil {
		return false, err
	}
	p := memPair{userID, targetID}
	r, ok := x.current(p)
	if !ok || r.IsDeleted {
		return false, nil
	}
	now := x.t.now()
	r.IsDeleted = true
	r.DeletedAt = &now
	r.UpdatedAt = now
	x.writes[p] = r
	x.t.after("tombstone")
	return true, nil
}

func (x *memReactionTx) ApplyCounterDelta(ctx context.Context, targetID int64, delta models.CounterDelta) error {
	if err := x.begin(ctx, "apply"); err != nil {
		return err
	}
	if !x.targetExists(targetID) {
		return ErrTargetNotFound
	}
	if err := x.acquire(ctx, x.t.counterLock(targetID)); err != nil {
		return err
	}
	d := x.deltas[targetID]
	for _, k := range models.ReactionKinds {
		d.Add(k, delta.Kind(k))
	}
	d.Total += delta.Total
	x.deltas[targetID] = d
	x.t.after("apply")
	return nil
}

func (x *memReactionTx) LockCounters(ctx context.Context, targetID int64) (models.ReactionCounters, error) {
	if err := x.begin(ctx, "lock_counters"); err != nil {
		return models.ReactionCounters{}, err
	}
	if err := x.acquire(ctx, x.t.counterLock(targetID)); err != nil {
		return models.ReactionCounters{}, err
	}
	if c, ok := x.overwrite[targetID]; ok {
		return c, nil
	}
	c, err := x.t.Counters(ctx, targetID)
	if err != nil {
		return c, err
	}
	c.Apply(x.deltas[targetID])
	return c, nil
}

func (x *memReactionTx) RecountCounters(ctx context.Context, targetID int64) (models.ReactionCounters, error) {
	if err := x.begin(ctx, "recount"); err != nil {
		return models.ReactionCounters{}, err
	}
	x.t.mu.Lock()
	defer x.t.mu.Unlock()
	return recountRows(x.t.rows, x.writes, targetID), nil
}

func (x *memReactionTx) WriteCounters(ctx context.Context, targetID int64, counters models.ReactionCounters) error {
	if err := x.begin(ctx, "write_counters"); err != nil {
		return err
	}
	if !x.targetExists(targetID) {
		return ErrTargetNotFound
	}
	x.overwrite[targetID] = counters
	delete(x.deltas, targetID)
	return nil
}

func (x *memReactionTx) Commit(ctx context.Context) error {
	if err := x.begin(ctx, "commit"); err != nil {
		if !errors.Is(err, ErrTxClosed) {
			x.abort()
		}
		return err
	}

	x.t.mu.Lock()
	next := map[int64]models.ReactionCounters{}
	for id, c := range x.overwrite {
		next[id] = c
	}
	for id, d := range x.deltas {
		c, ok := next[id]
		if !ok {
			c = x.t.counters[id]
		}
		c.Apply(d)
		next[id] = c
	}
	for id, c := range next {
		for _, k := range models.ReactionKinds {
			if c.Count(k) < 0 {
				x.t.mu.Unlock()
				x.abort()
				return fmt.Errorf("%w: counter %s on %d would go negative", ErrCounterDrift, k, id)
			}
		}
		if c.Total < 0 {
			x.t.mu.Unlock()
			x.abort()
			return fmt.Errorf("%w: total on %d would go negative", ErrCounterDrift, id)
		}
	}
	for p, r := range x.writes {
		x.t.rows[p] = r
	}
	for id, c := range next {
		x.t.counters[id] = c
	}
	x.t.commits++
	x.t.mu.Unlock()

	x.release()
	return nil
}

func (x *memReactionTx) abort() {
	x.t.mu.Lock()
	x.t.rollbacks++
	x.t.mu.Unlock()
	x.release()
}

func (x *memReactionTx) Rollback(ctx context.Context) error {
	if x.closed {
		return nil
	}
	x.abort()
	return nil
}
