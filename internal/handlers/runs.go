package handlers

import (
	"net/http"

	"github.com/ukudarovv/instachecker-sub000/internal/auth"
	"github.com/ukudarovv/instachecker-sub000/internal/scheduler"
	pkghttp "github.com/ukudarovv/instachecker-sub000/pkg/http"
)

// RunScheduler is the scheduler surface the ops API exposes
type RunScheduler interface {
	TriggerRun()
	LastRun() *scheduler.RunSummary
}

// RunHandler exposes the on-demand sweep trigger and run aggregates
type RunHandler struct {
	sched RunScheduler
}

// NewRunHandler creates a run handler
func NewRunHandler(sched RunScheduler) *RunHandler {
	return &RunHandler{sched: sched}
}

// Trigger queues an immediate sweep. The sweep covers all owners; the
// request only says "now", not "just mine".
func (h *RunHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	claims := auth.OwnerFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	h.sched.TriggerRun()
	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

// Stats returns the aggregates of the most recently completed run
func (h *RunHandler) Stats(w http.ResponseWriter, r *http.Request) {
	claims := auth.OwnerFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	summary := h.sched.LastRun()
	if summary == nil {
		pkghttp.WriteNotFound(w, "no completed runs yet")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, summary)
}
