package services

import "github.com/HammerMeetNail/socialreact/internal/models"

// reactionStatements holds every statement one ReactionTable issues. All values
// are bound parameters; nothing is formatted into the SQL text.
type reactionStatements struct {
	target             models.TargetKind
	userFKConstraint   string
	targetFKConstraint string
	lockReaction       string
	activeReaction     string
	putReaction        string
	tombstone          string
	counters           string
	lockCounters       string
	applyDelta         string
	recount            string
	writeCounters      string
}

var postReactionStatements = reactionStatements{
	target:             models.TargetPost,
	userFKConstraint:   "post_reactions_user_id_fkey",
	targetFKConstraint: "post_reactions_post_id_fkey",
	lockReaction: `
		SELECT user_id, post_id, reaction_kind, is_deleted, deleted_at, created_at, updated_at
		FROM post_reactions
		WHERE user_id = $1 AND post_id = $2
		FOR UPDATE`,
	activeReaction: `
		SELECT user_id, post_id, reaction_kind, is_deleted, deleted_at, created_at, updated_at
		FROM post_reactions
		WHERE user_id = $1 AND post_id = $2 AND is_deleted = FALSE`,
	putReaction: `
		INSERT INTO post_reactions (user_id, post_id, reaction_kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, post_id)
		DO UPDATE SET reaction_kind = EXCLUDED.reaction_kind,
		              is_deleted = FALSE,
		              deleted_at = NULL,
		              updated_at = NOW()`,
	tombstone: `
		UPDATE post_reactions
		SET is_deleted = TRUE, deleted_at = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND post_id = $2 AND is_deleted = FALSE`,
	counters: `
		SELECT total_likes, total_loves, total_cares, total_hahas, total_wows, total_sads, total_angries, total_reactions
		FROM posts
		WHERE id = $1`,
	lockCounters: `
		SELECT total_likes, total_loves, total_cares, total_hahas, total_wows, total_sads, total_angries, total_reactions
		FROM posts
		WHERE id = $1
		FOR UPDATE`,
	applyDelta: `
		UPDATE posts
		SET total_likes = total_likes + $2,
		    total_loves = total_loves + $3,
		    total_cares = total_cares + $4,
		    total_hahas = total_hahas + $5,
		    total_wows = total_wows + $6,
		    total_sads = total_sads + $7,
		    total_angries = total_angries + $8,
		    total_reactions = total_reactions + $9
		WHERE id = $1`,
	recount: `
		SELECT COUNT(*) FILTER (WHERE reaction_kind = $2),
		       COUNT(*) FILTER (WHERE reaction_kind = $3),
		       COUNT(*) FILTER (WHERE reaction_kind = $4),
		       COUNT(*) FILTER (WHERE reaction_kind = $5),
		       COUNT(*) FILTER (WHERE reaction_kind = $6),
		       COUNT(*) FILTER (WHERE reaction_kind = $7),
		       COUNT(*) FILTER (WHERE reaction_kind = $8),
		       COUNT(*)
		FROM post_reactions
		WHERE post_id = $1 AND is_deleted = FALSE`,
	writeCounters: `
		UPDATE posts
		SET total_likes = $2,
		    total_loves = $3,
		    total_cares = $4,
		    total_hahas = $5,
		    total_wows = $6,
		    total_sads = $7,
		    total_angries = $8,
		    total_reactions = $9
		WHERE id = $1`,
}

var commentReactionStatements = reactionStatements{
	target:             models.TargetComment,
	userFKConstraint:   "comment_reactions_user_id_fkey",
	targetFKConstraint: "comment_reactions_comment_id_fkey",
	lockReaction: `
		SELECT user_id, comment_id, reaction_kind, is_deleted, deleted_at, created_at, updated_at
		FROM comment_reactions
		WHERE user_id = $1 AND comment_id = $2
		FOR UPDATE`,
	activeReaction: `
		SELECT user_id, comment_id, reaction_kind, is_deleted, deleted_at, created_at, updated_at
		FROM comment_reactions
		WHERE user_id = $1 AND comment_id = $2 AND is_deleted = FALSE`,
	putReaction: `
		INSERT INTO comment_reactions (user_id, comment_id, reaction_kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, comment_id)
		DO UPDATE SET reaction_kind = EXCLUDED.reaction_kind,
		              is_deleted = FALSE,
		              deleted_at = NULL,
		              updated_at = NOW()`,
	tombstone: `
		UPDATE comment_reactions
		SET is_deleted = TRUE, deleted_at = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND comment_id = $2 AND is_deleted = FALSE`,
	counters: `
		SELECT total_likes, total_loves, total_cares, total_hahas, total_wows, total_sads, total_angries, total_reactions
		FROM comments
		WHERE id = $1`,
	lockCounters: `
		SELECT total_likes, total_loves, total_cares, total_hahas, total_wows, total_sads, total_angries, total_reactions
		FROM comments
		WHERE id = $1
		FOR UPDATE`,
	applyDelta: `
		UPDATE comments
		SET total_likes = total_likes + $2,
		    total_loves = total_loves + $3,
		    total_cares = total_cares + $4,
		    total_hahas = total_hahas + $5,
		    total_wows = total_wows + $6,
		    total_sads = total_sads + $7,
		    total_angries = total_angries + $8,
		    total_reactions = total_reactions + $9
		WHERE id = $1`,
	recount: `
		SELECT COUNT(*) FILTER (WHERE reaction_kind = $2),
		       COUNT(*) FILTER (WHERE reaction_kind = $3),
		       COUNT(*) FILTER (WHERE reaction_kind = $4),
		       COUNT(*) FILTER (WHERE reaction_kind = $5),
		       COUNT(*) FILTER (WHERE reaction_kind = $6),
		       COUNT(*) FILTER (WHERE reaction_kind = $7),
		       COUNT(*) FILTER (WHERE reaction_kind = $8),
		       COUNT(*)
		FROM comment_reactions
		WHERE comment_id = $1 AND is_deleted = FALSE`,
	writeCounters: `
		UPDATE comments
		SET total_likes = $2,
		    total_loves = $3,
		    total_cares = $4,
		    total_hahas = $5,
		    total_wows = $6,
		    total_sads = $7,
		    total_angries = $8,
		    total_reactions = $9
		WHERE id = $1`,
}

const setLockTimeoutSQL = `SELECT set_config('lock_timeout', $1, true)`
