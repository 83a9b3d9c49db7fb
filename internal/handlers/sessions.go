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

// SessionHandler exposes session import and refresh. Cookie payloads are
// encrypted on the way in and never returned.
type SessionHandler struct {
	sessions repositories.SessionRepository
	cipher   vault.Cipher
}

// NewSessionHandler creates a session handler
func NewSessionHandler(sessions repositories.SessionRepository, cipher vault.Cipher) *SessionHandler {
	return &SessionHandler{sessions: sessions, cipher: cipher}
}

// ImportSessionRequest carries a captured session. Cookies is the raw cookie
// jar JSON as exported by the capture tooling.
type ImportSessionRequest struct {
	Cookies   string     `json:"cookies" validate:"required,max=65536"`
	Password  string     `json:"password,omitempty" validate:"max=1024"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Import stores a new session for the authenticated owner
func (h *SessionHandler) Import(w http.ResponseWriter, r *http.Request) {
	claims := auth.OwnerFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	var req ImportSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	if !json.Valid([]byte(req.Cookies)) {
		pkghttp.WriteBadRequest(w, "cookies must be valid JSON")
		return
	}

	cookies, err := h.cipher.Encrypt([]byte(req.Cookies))
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to store session")
		return
	}

	password := ""
	if req.Password != "" {
		encrypted, err := h.cipher.Encrypt([]byte(req.Password))
		if err != nil {
			pkghttp.WriteInternalError(w, "failed to store session")
			return
		}
		password = encrypted
	}

	now := time.Now()
	session := &models.Session{
		ID:        uuid.New().String(),
		OwnerID:   claims.OwnerID,
		Cookies:   cookies,
		Password:  password,
		Active:    true,
		ExpiresAt: req.ExpiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.sessions.Create(r.Context(), session); err != nil {
		pkghttp.WriteInternalError(w, "failed to store session")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, session)
}

// List returns the owner's sessions, most recently used first
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.OwnerFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	sessions, err := h.sessions.ListByOwner(r.Context(), claims.OwnerID)
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to list sessions")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, sessions)
}

// RefreshCookiesRequest replaces a session's cookie payload
type RefreshCookiesRequest struct {
	Cookies string `json:"cookies" validate:"required,max=65536"`
}

// RefreshCookies swaps in fresh cookies and clears the needs-refresh flag
func (h *SessionHandler) RefreshCookies(w http.ResponseWriter, r *http.Request) {
	session, ok := h.owned(w, r)
	if !ok {
		return
	}

	var req RefreshCookiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	if !json.Valid([]byte(req.Cookies)) {
		pkghttp.WriteBadRequest(w, "cookies must be valid JSON")
		return
	}

	cookies, err := h.cipher.Encrypt([]byte(req.Cookies))
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to update session")
		return
	}

	if err := h.sessions.UpdateCookies(r.Context(), session.ID, cookies); err != nil {
		pkghttp.WriteInternalError(w, "failed to update session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetActive activates or deactivates a session
func (h *SessionHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	session, ok := h.owned(w, r)
	if !ok {
		return
	}

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.sessions.SetActive(r.Context(), session.ID, *req.Active); err != nil {
		pkghttp.WriteInternalError(w, "failed to update session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete removes a session
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Delete(r.Context(), session.ID); err != nil {
		pkghttp.WriteInternalError(w, "failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) owned(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	claims := auth.OwnerFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return nil, false
	}

	session, err := h.sessions.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil || session.OwnerID != claims.OwnerID {
		pkghttp.WriteNotFound(w, "session not found")
		return nil, false
	}

	return session, true
}
