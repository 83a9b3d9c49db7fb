package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ukudarovv/instachecker-sub000/internal/auth"
	"github.com/ukudarovv/instachecker-sub000/internal/models"
	"github.com/ukudarovv/instachecker-sub000/internal/repositories"
	"github.com/ukudarovv/instachecker-sub000/internal/vault"
	pkghttp "github.com/ukudarovv/instachecker-sub000/pkg/http"
)

// KeyHandler exposes lookup key management. Secrets go in encrypted and
// never come back out; listings show only usage counters.
type KeyHandler struct {
	keys   repositories.LookupKeyRepository
	cipher vault.Cipher
}

// NewKeyHandler creates a lookup key handler
func NewKeyHandler(keys repositories.LookupKeyRepository, cipher vault.Cipher) *KeyHandler {
	return &KeyHandler{keys: keys, cipher: cipher}
}

// CreateKeyRequest imports a lookup API key
type CreateKeyRequest struct {
	Secret string `json:"secret" validate:"required,min=8,max=1024"`
}

// Create imports a key for the authenticated owner
func (h *KeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.OwnerFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	secret, err := h.cipher.Encrypt([]byte(req.Secret))
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to store key")
		return
	}

	now := time.Now()
	key := &models.LookupKey{
		ID:        uuid.New().String(),
		OwnerID:   claims.OwnerID,
		Secret:    secret,
		RefDate:   now,
		Working:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.keys.Create(r.Context(), key); err != nil {
		pkghttp.WriteInternalError(w, "failed to store key")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, key)
}

// List returns the owner's keys with usage counters
func (h *KeyHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.OwnerFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	keys, err := h.keys.ListByOwner(r.Context(), claims.OwnerID)
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to list keys")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, keys)
}

// Delete removes a key
func (h *KeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := auth.OwnerFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	key, err := h.keys.GetByID(r.Context(), id)
	if err != nil || key.OwnerID != claims.OwnerID {
		pkghttp.WriteNotFound(w, "key not found")
		return
	}

	if err := h.keys.Delete(r.Context(), id); err != nil {
		pkghttp.WriteInternalError(w, "failed to delete key")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
