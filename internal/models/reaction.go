package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ReactionKind is the stored reaction_types id. The zero value means no reaction.
type ReactionKind int16

const (
	ReactionNone ReactionKind = iota
	ReactionLike
	ReactionLove
	ReactionCare
	ReactionHaha
	ReactionWow
	ReactionSad
	ReactionAngry
)

// NumReactionKinds is the number of real (non-none) reaction kinds.
const NumReactionKinds = 7

// ReactionKinds lists every reaction kind in ordinal order.
var ReactionKinds = []ReactionKind{
	ReactionLike,
	ReactionLove,
	ReactionCare,
	ReactionHaha,
	ReactionWow,
	ReactionSad,
	ReactionAngry,
}

var reactionKindNames = [...]string{
	ReactionNone:  "",
	ReactionLike:  "like",
	ReactionLove:  "love",
	ReactionCare:  "care",
	ReactionHaha:  "haha",
	ReactionWow:   "wow",
	ReactionSad:   "sad",
	ReactionAngry: "angry",
}

func (k ReactionKind) Valid() bool {
	return k >= ReactionLike && k <= ReactionAngry
}

func (k ReactionKind) String() string {
	if k == ReactionNone || !k.Valid() {
		return ""
	}
	return reactionKindNames[k]
}

func (k ReactionKind) MarshalText() ([]byte, error) {
	if k != ReactionNone && !k.Valid() {
		return nil, fmt.Errorf("invalid reaction kind %d", int16(k))
	}
	return []byte(k.String()), nil
}

func (k *ReactionKind) UnmarshalText(text []byte) error {
	parsed, err := ParseReactionKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// UnmarshalJSON accepts either the kind name or its numeric id.
func (k *ReactionKind) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
	}
	return k.UnmarshalText([]byte(text))
}

// ParseReactionKind accepts a reaction name ("love", "LOVE") or its numeric id ("2").
func ParseReactionKind(s string) (ReactionKind, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ReactionNone, fmt.Errorf("empty reaction kind")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < int64(ReactionLike) || n > int64(ReactionAngry) {
			return ReactionNone, fmt.Errorf("unknown reaction kind %q", s)
		}
		return ReactionKind(n), nil
	}
	lower := strings.ToLower(s)
	for _, k := range ReactionKinds {
		if reactionKindNames[k] == lower {
			return k, nil
		}
	}
	return ReactionNone, fmt.Errorf("unknown reaction kind %q", s)
}

// TargetKind names the entity a reaction points at.
type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

func (t TargetKind) Valid() bool {
	return t == TargetPost || t == TargetComment
}

// Reaction is one user's reaction row for one target. A removed reaction is kept
// as a tombstone (IsDeleted) and revived in place by the next reaction.
type Reaction struct {
	UserID    int64        `json:"user_id"`
	TargetID  int64        `json:"target_id"`
	Target    TargetKind   `json:"target"`
	Kind      ReactionKind `json:"reaction"`
	IsDeleted bool         `json:"is_deleted"`
	DeletedAt *time.Time   `json:"deleted_at,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ActiveKind returns the row's kind, or ReactionNone for a missing or tombstoned row.
func (r *Reaction) ActiveKind() ReactionKind {
	if r == nil || r.IsDeleted {
		return ReactionNone
	}
	return r.Kind
}

// ReactionCounters is the cached tally stored on a post or comment row.
type ReactionCounters struct {
	Likes   int64 `json:"total_likes"`
	Loves   int64 `json:"total_loves"`
	Cares   int64 `json:"total_cares"`
	Hahas   int64 `json:"total_hahas"`
	Wows    int64 `json:"total_wows"`
	Sads    int64 `json:"total_sads"`
	Angries int64 `json:"total_angries"`
	Total   int64 `json:"total_reactions"`
}

func (c *ReactionCounters) slot(k ReactionKind) *int64 {
	switch k {
	case ReactionLike:
		return &c.Likes
	case ReactionLove:
		return &c.Loves
	case ReactionCare:
		return &c.Cares
	case ReactionHaha:
		return &c.Hahas
	case ReactionWow:
		return &c.Wows
	case ReactionSad:
		return &c.Sads
	case ReactionAngry:
		return &c.Angries
	}
	return nil
}

// Count returns the tally for one reaction kind.
func (c ReactionCounters) Count(k ReactionKind) int64 {
	if p := c.slot(k); p != nil {
		return *p
	}
	return 0
}

// Set overwrites the tally for one reaction kind. Total is left alone.
func (c *ReactionCounters) Set(k ReactionKind, n int64) {
	if p := c.slot(k); p != nil {
		*p = n
	}
}

// KindSum is the sum of the seven per-kind tallies.
func (c ReactionCounters) KindSum() int64 {
	var sum int64
	for _, k := range ReactionKinds {
		sum += c.Count(k)
	}
	return sum
}

// Consistent reports whether the cached total agrees with the per-kind tallies
// and nothing went negative.
func (c ReactionCounters) Consistent() bool {
	for _, k := range ReactionKinds {
		if c.Count(k) < 0 {
			return false
		}
	}
	return c.Total >= 0 && c.Total == c.KindSum()
}

// Apply adds a delta to the counters.
func (c *ReactionCounters) Apply(d CounterDelta) {
	for _, k := range ReactionKinds {
		*c.slot(k) += d.Kind(k)
	}
	c.Total += d.Total
}

type ReactionCount struct {
	Kind  ReactionKind `json:"reaction"`
	Count int64        `json:"count"`
}

// Top returns up to n kinds with a non-zero count, highest first. Equal counts
// are ordered by kind id so the result is deterministic.
func (c ReactionCounters) Top(n int) []ReactionCount {
	out := make([]ReactionCount, 0, NumReactionKinds)
	for _, k := range ReactionKinds {
		if cnt := c.Count(k); cnt > 0 {
			out = append(out, ReactionCount{Kind: k, Count: cnt})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Kind < out[j].Kind
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// CounterDelta is the per-kind and total adjustment produced by one reaction
// transition. Every slot is -1, 0 or +1.
type CounterDelta struct {
	kinds [NumReactionKinds]int64
	Total int64
}

func (d CounterDelta) Kind(k ReactionKind) int64 {
	if !k.Valid() {
		return 0
	}
	return d.kinds[k-1]
}

func (d *CounterDelta) Add(k ReactionKind, n int64) {
	if k.Valid() {
		d.kinds[k-1] += n
	}
}

func (d CounterDelta) IsZero() bool {
	return d == CounterDelta{}
}

// Args returns the delta in counter column order followed by the total,
// ready to be bound after the target id.
func (d CounterDelta) Args() []any {
	args := make([]any, 0, NumReactionKinds+1)
	for _, v := range d.kinds {
		args = append(args, v)
	}
	return append(args, d.Total)
}

// ReactResult is returned by a successful react call.
type ReactResult struct {
	Success      bool         `json:"success"`
	Reaction     ReactionKind `json:"reaction"`
	PreviousKind ReactionKind `json:"previous_reaction,omitempty"`
}

// RemoveResult reports whether there was an active reaction to remove.
type RemoveResult struct {
	Success      bool         `json:"success"`
	PreviousKind ReactionKind `json:"previous_reaction,omitempty"`
}
