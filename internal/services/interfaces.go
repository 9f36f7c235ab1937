package services

import (
	"context"
	"time"

	"github.com/HammerMeetNail/socialreact/internal/models"
)

// ReactionServiceInterface is the reaction surface handlers and the CLI depend on.
type ReactionServiceInterface interface {
	Target() models.TargetKind
	React(ctx context.Context, userID, targetID int64, kind models.ReactionKind) (*models.ReactResult, error)
	RemoveReaction(ctx context.Context, userID, targetID int64) (*models.RemoveResult, error)
	GetActiveReaction(ctx context.Context, userID, targetID int64) (*models.Reaction, error)
	Counters(ctx context.Context, targetID int64) (models.ReactionCounters, error)
	TopReactions(ctx context.Context, targetID int64, n int) ([]models.ReactionCount, error)
	Reconcile(ctx context.Context, targetID int64) (before, after models.ReactionCounters, err error)
}

var _ ReactionServiceInterface = (*ReactionService)(nil)

type ReactionServicesConfig struct {
	LockTimeout time.Duration
	Observer    ReactionObserver
}

// ReactionServices picks the reaction service for a target kind.
type ReactionServices map[models.TargetKind]ReactionServiceInterface

// NewReactionServices builds the post and comment reaction services over db.
func NewReactionServices(db DB, cfg ReactionServicesConfig) ReactionServices {
	posts := NewReactionService(NewPostReactionTable(db, cfg.LockTimeout))
	comments := NewReactionService(NewCommentReactionTable(db, cfg.LockTimeout))
	if cfg.Observer != nil {
		posts.SetObserver(cfg.Observer)
		comments.SetObserver(cfg.Observer)
	}
	return ReactionServices{
		models.TargetPost:    posts,
		models.TargetComment: comments,
	}
}

func (r ReactionServices) For(target models.TargetKind) (ReactionServiceInterface, error) {
	svc, ok := r[target]
	if !ok {
		return nil, ErrUnknownTarget
	}
	return svc, nil
}
