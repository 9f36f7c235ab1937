package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/HammerMeetNail/socialreact/internal/models"
)

func TestReactionLockKey_StableAndDistinct(t *testing.T) {
	a := reactionLockKey(models.TargetPost, 1, 2)
	if a != reactionLockKey(models.TargetPost, 1, 2) {
		t.Fatal("expected stable key")
	}
	if a == reactionLockKey(models.TargetComment, 1, 2) {
		t.Fatal("expected target kind to change key")
	}
	if a == reactionLockKey(models.TargetPost, 2, 1) {
		t.Fatal("expected user and target ids not to commute")
	}
}

func TestLockReactionPair_BindsKey(t *testing.T) {
	var gotSQL string
	var gotArgs []any
	tx := &fakeTx{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			gotSQL = sql
			gotArgs = args
			return fakeCommandTag{}, nil
		},
	}

	if err := lockReactionPair(context.Background(), tx, models.TargetComment, 7, 9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotSQL, "pg_advisory_xact_lock($1)") {
		t.Fatalf("unexpected sql: %q", gotSQL)
	}
	if len(gotArgs) != 1 || gotArgs[0] != reactionLockKey(models.TargetComment, 7, 9) {
		t.Fatalf("unexpected args: %+v", gotArgs)
	}
}

func TestLockReactionPair_WrapsError(t *testing.T) {
	tx := &fakeTx{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			return nil, errors.New("boom")
		},
	}

	err := lockReactionPair(context.Background(), tx, models.TargetPost, 1, 1)
	if err == nil || !strings.Contains(err.Error(), "lock reaction pair") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestLockTimeoutSetting(t *testing.T) {
	cases := map[time.Duration]string{
		5 * time.Second:         "5000ms",
		1500 * time.Millisecond: "1500ms",
		time.Microsecond:        "1ms",
	}
	for in, want := range cases {
		if got := lockTimeoutSetting(in); got != want {
			t.Fatalf("lockTimeoutSetting(%s) = %q, want %q", in, got, want)
		}
	}
}
