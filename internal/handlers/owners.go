package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ukudarovv/instachecker-sub000/internal/auth"
	"github.com/ukudarovv/instachecker-sub000/internal/models"
	"github.com/ukudarovv/instachecker-sub000/internal/repositories"
	"github.com/ukudarovv/instachecker-sub000/internal/verify"
	pkghttp "github.com/ukudarovv/instachecker-sub000/pkg/http"
)

// OwnerHandler exposes the owner's own verification settings
type OwnerHandler struct {
	owners repositories.OwnerRepository
}

// NewOwnerHandler creates an owner handler
func NewOwnerHandler(owners repositories.OwnerRepository) *OwnerHandler {
	return &OwnerHandler{owners: owners}
}

// Get returns the authenticated owner's profile and settings
func (h *OwnerHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := auth.OwnerFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	owner, err := h.owners.GetByID(r.Context(), claims.OwnerID)
	if err != nil {
		pkghttp.WriteNotFound(w, "owner not found")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, owner)
}

// SetModeRequest selects a verification mode
type SetModeRequest struct {
	Mode string `json:"mode" validate:"required"`
}

// SetMode changes which backend verifies this owner's targets
func (h *OwnerHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	claims := auth.OwnerFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	var req SetModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	mode := models.VerificationMode(req.Mode)
	if !models.ValidVerificationMode(mode) {
		pkghttp.WriteBadRequest(w, "unknown verification mode")
		return
	}

	if err := h.owners.UpdateMode(r.Context(), claims.OwnerID, mode); err != nil {
		pkghttp.WriteInternalError(w, "failed to update mode")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetFallbackOrderRequest reorders the fallback chain
type SetFallbackOrderRequest struct {
	Order []string `json:"order" validate:"max=8,dive,max=32"`
}

// SetFallbackOrder changes the owner's heuristic preference. An empty order
// restores the default chain.
func (h *OwnerHandler) SetFallbackOrder(w http.ResponseWriter, r *http.Request) {
	claims := auth.OwnerFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	var req SetFallbackOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	for _, name := range req.Order {
		switch name {
		case verify.HeuristicAltEndpoint, verify.HeuristicDeviceProfile, verify.HeuristicMirror, verify.HeuristicBrowser:
		default:
			pkghttp.WriteBadRequest(w, "unknown heuristic: "+name)
			return
		}
	}

	if err := h.owners.UpdateFallbackOrder(r.Context(), claims.OwnerID, req.Order); err != nil {
		pkghttp.WriteInternalError(w, "failed to update fallback order")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
