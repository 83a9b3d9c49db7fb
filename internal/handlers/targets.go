package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ukudarovv/instachecker-sub000/internal/auth"
	"github.com/ukudarovv/instachecker-sub000/internal/models"
	"github.com/ukudarovv/instachecker-sub000/internal/repositories"
	pkghttp "github.com/ukudarovv/instachecker-sub000/pkg/http"
)

// TargetHandler exposes target submission and inspection
type TargetHandler struct {
	targets repositories.TargetRepository
}

// NewTargetHandler creates a target handler
func NewTargetHandler(targets repositories.TargetRepository) *TargetHandler {
	return &TargetHandler{targets: targets}
}

// SubmitTargetsRequest carries a batch of identifiers to check
type SubmitTargetsRequest struct {
	Usernames []string `json:"usernames" validate:"required,min=1,max=100"`
}

// SubmitTargetsResponse reports what was accepted and what was rejected
type SubmitTargetsResponse struct {
	Accepted []*models.Target `json:"accepted"`
	Rejected []string         `json:"rejected,omitempty"`
}

// Submit creates pending targets from a batch of raw identifiers
func (h *TargetHandler) Submit(w http.ResponseWriter, r *http.Request) {
	claims := auth.OwnerFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	var req SubmitTargetsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	now := time.Now()
	var rejected []string
	candidates := make([]*models.Target, 0, len(req.Usernames))
	rawByID := make(map[string]string, len(req.Usernames))

	for _, raw := range req.Usernames {
		username := models.NormalizeUsername(raw)
		if !models.ValidUsername(username) {
			rejected = append(rejected, raw)
			continue
		}

		target := &models.Target{
			ID:        uuid.New().String(),
			OwnerID:   claims.OwnerID,
			Username:  username,
			Status:    models.TargetPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		candidates = append(candidates, target)
		rawByID[target.ID] = raw
	}

	// One transaction: duplicates are skipped row by row, anything else
	// rolls the whole batch back.
	accepted, err := h.targets.CreateBatch(r.Context(), candidates)
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to store targets")
		return
	}

	acceptedIDs := make(map[string]bool, len(accepted))
	for _, target := range accepted {
		acceptedIDs[target.ID] = true
	}
	for _, candidate := range candidates {
		if !acceptedIDs[candidate.ID] {
			rejected = append(rejected, rawByID[candidate.ID])
		}
	}

	pkghttp.WriteJSON(w, http.StatusCreated, SubmitTargetsResponse{Accepted: accepted, Rejected: rejected})
}

// List returns the owner's targets, newest first
func (h *TargetHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.OwnerFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	limit := queryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	offset := queryInt(r, "offset", 0)

	targets, err := h.targets.ListByOwner(r.Context(), claims.OwnerID, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to list targets")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, targets)
}

// Delete removes one of the owner's targets
func (h *TargetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := auth.OwnerFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	target, err := h.targets.GetByID(r.Context(), id)
	if err != nil || target.OwnerID != claims.OwnerID {
		pkghttp.WriteNotFound(w, "target not found")
		return
	}

	if err := h.targets.Delete(r.Context(), id); err != nil {
		pkghttp.WriteInternalError(w, "failed to delete target")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
