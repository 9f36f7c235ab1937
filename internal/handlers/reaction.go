package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/HammerMeetNail/socialreact/internal/logging"
	"github.com/HammerMeetNail/socialreact/internal/models"
	"github.com/HammerMeetNail/socialreact/internal/services"
)

const (
	defaultTopReactions = 3
	maxTopReactions     = models.NumReactionKinds
)

// ReactionHandler serves the reaction routes of one target kind. The server
// mounts one instance under /api/posts and one under /api/comments.
type ReactionHandler struct {
	reactionService services.ReactionServiceInterface
	notFound        string
}

func NewReactionHandler(reactionService services.ReactionServiceInterface) *ReactionHandler {
	notFound := "Target not found"
	switch reactionService.Target() {
	case models.TargetPost:
		notFound = "Post not found"
	case models.TargetComment:
		notFound = "Comment not found"
	}
	return &ReactionHandler{reactionService: reactionService, notFound: notFound}
}

type ReactRequest struct {
	Reaction models.ReactionKind `json:"reaction"`
}

type CountersResponse struct {
	Target   models.TargetKind       `json:"target"`
	TargetID int64                   `json:"target_id"`
	Counters models.ReactionCounters `json:"counters"`
}

type MyReactionResponse struct {
	Reaction *models.Reaction `json:"reaction"`
}

type TopReactionsResponse struct {
	Reactions []models.ReactionCount `json:"reactions"`
}

type ReactionKindsResponse struct {
	Kinds []models.ReactionKind `json:"kinds"`
}

func (h *ReactionHandler) React(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	targetID, ok := h.parseTargetID(w, r)
	if !ok {
		return
	}

	var req ReactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.Reaction.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid reaction")
		return
	}

	result, err := h.reactionService.React(r.Context(), user.ID, targetID, req.Reaction)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *ReactionHandler) Remove(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	targetID, ok := h.parseTargetID(w, r)
	if !ok {
		return
	}

	result, err := h.reactionService.RemoveReaction(r.Context(), user.ID, targetID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !result.Success {
		writeError(w, http.StatusNotFound, "Reaction not found")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *ReactionHandler) Counters(w http.ResponseWriter, r *http.Request) {
	targetID, ok := h.parseTargetID(w, r)
	if !ok {
		return
	}

	counters, err := h.reactionService.Counters(r.Context(), targetID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CountersResponse{
		Target:   h.reactionService.Target(),
		TargetID: targetID,
		Counters: counters,
	})
}

func (h *ReactionHandler) Mine(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	targetID, ok := h.parseTargetID(w, r)
	if !ok {
		return
	}

	reaction, err := h.reactionService.GetActiveReaction(r.Context(), user.ID, targetID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MyReactionResponse{Reaction: reaction})
}

func (h *ReactionHandler) Top(w http.ResponseWriter, r *http.Request) {
	targetID, ok := h.parseTargetID(w, r)
	if !ok {
		return
	}

	n := defaultTopReactions
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxTopReactions {
			writeError(w, http.StatusBadRequest, "n must be between 1 and "+strconv.Itoa(maxTopReactions))
			return
		}
		n = parsed
	}

	top, err := h.reactionService.TopReactions(r.Context(), targetID, n)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, TopReactionsResponse{Reactions: top})
}

// ListReactionKinds returns every reaction kind in id order.
func ListReactionKinds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ReactionKindsResponse{Kinds: models.ReactionKinds})
}

func (h *ReactionHandler) parseTargetID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid "+string(h.reactionService.Target())+" ID")
		return 0, false
	}
	return id, true
}

func (h *ReactionHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, services.ErrTargetNotFound):
		writeError(w, http.StatusNotFound, h.notFound)
	case services.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "Reaction is busy, please retry")
	case errors.Is(err, services.ErrCounterDrift):
		logging.Error("Reaction counters out of sync, run reactctl reconcile", map[string]interface{}{
			"target": string(h.reactionService.Target()),
			"path":   r.URL.Path,
			"error":  err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "Internal server error")
	default:
		logging.Error("Reaction request failed", map[string]interface{}{
			"target": string(h.reactionService.Target()),
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
