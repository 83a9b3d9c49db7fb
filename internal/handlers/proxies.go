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

// ProxyHandler exposes the manual owner actions on proxies. Health counters
// belong to the registry; only activity, priority and lifecycle are mutable
// here.
type ProxyHandler struct {
	proxies repositories.ProxyRepository
	cipher  vault.Cipher
}

// NewProxyHandler creates a proxy handler
func NewProxyHandler(proxies repositories.ProxyRepository, cipher vault.Cipher) *ProxyHandler {
	return &ProxyHandler{proxies: proxies, cipher: cipher}
}

// CreateProxyRequest registers a new upstream
type CreateProxyRequest struct {
	Scheme   string `json:"scheme" validate:"required,oneof=http https socks5"`
	Host     string `json:"host" validate:"required,max=255"`
	Port     int    `json:"port" validate:"required,gte=1,lte=65535"`
	Username string `json:"username,omitempty" validate:"max=255"`
	Password string `json:"password,omitempty" validate:"max=1024"`
	Priority int    `json:"priority" validate:"gte=0,lte=10"`
}

// Create registers a proxy for the authenticated owner
func (h *ProxyHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.OwnerFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	var req CreateProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	password := ""
	if req.Password != "" {
		encrypted, err := h.cipher.Encrypt([]byte(req.Password))
		if err != nil {
			pkghttp.WriteInternalError(w, "failed to store proxy credentials")
			return
		}
		password = encrypted
	}

	priority := req.Priority
	if priority == 0 {
		priority = models.ProxyPriorityMax
	}

	now := time.Now()
	proxy := &models.Proxy{
		ID:        uuid.New().String(),
		OwnerID:   claims.OwnerID,
		Scheme:    req.Scheme,
		Host:      req.Host,
		Port:      req.Port,
		Username:  req.Username,
		Password:  password,
		Active:    true,
		Priority:  models.ClampPriority(priority),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.proxies.Create(r.Context(), proxy); err != nil {
		pkghttp.WriteInternalError(w, "failed to store proxy")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, proxy)
}

// List returns the owner's proxies with their health counters
func (h *ProxyHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.OwnerFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	proxies, err := h.proxies.ListByOwner(r.Context(), claims.OwnerID)
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to list proxies")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, proxies)
}

// SetActiveRequest toggles a proxy
type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// SetActive activates or deactivates a proxy
func (h *ProxyHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	proxy, ok := h.owned(w, r)
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

	if err := h.proxies.SetActive(r.Context(), proxy.ID, *req.Active); err != nil {
		pkghttp.WriteInternalError(w, "failed to update proxy")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetPriorityRequest nudges a proxy's rank
type SetPriorityRequest struct {
	Priority int `json:"priority" validate:"required,gte=1,lte=10"`
}

// SetPriority changes a proxy's priority, clamped to the valid range
func (h *ProxyHandler) SetPriority(w http.ResponseWriter, r *http.Request) {
	proxy, ok := h.owned(w, r)
	if !ok {
		return
	}

	var req SetPriorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.proxies.SetPriority(r.Context(), proxy.ID, req.Priority); err != nil {
		pkghttp.WriteInternalError(w, "failed to update proxy")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete removes a proxy
func (h *ProxyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	proxy, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := h.proxies.Delete(r.Context(), proxy.ID); err != nil {
		pkghttp.WriteInternalError(w, "failed to delete proxy")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// owned resolves the path proxy and enforces ownership, writing the error
// response itself when the proxy is unavailable.
func (h *ProxyHandler) owned(w http.ResponseWriter, r *http.Request) (*models.Proxy, bool) {
	claims := auth.OwnerFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return nil, false
	}

	proxy, err := h.proxies.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil || proxy.OwnerID != claims.OwnerID {
		pkghttp.WriteNotFound(w, "proxy not found")
		return nil, false
	}

	return proxy, true
}
