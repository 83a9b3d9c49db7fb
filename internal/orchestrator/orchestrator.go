package orchestrator

import (
	"context"
	"log/slog"

	"github.com/ukudarovv/instachecker-sub000/internal/lookup"
	"github.com/ukudarovv/instachecker-sub000/internal/models"
	"github.com/ukudarovv/instachecker-sub000/internal/verify"
)

// LookupClient is the phase-1 contract
type LookupClient interface {
	Lookup(ctx context.Context, ownerID, username string) lookup.Result
}

// Orchestrator composes the quota-limited lookup with a mode-selected deep
// verification backend and the fallback chain. One dispatch table decides
// which backend each mode uses; call sites never compare mode strings.
type Orchestrator struct {
	lookup          LookupClient
	backends        map[models.VerificationMode]verify.Backend
	fallback        *verify.Chain
	trustDeepVerify bool
	logger          *slog.Logger
}

// New creates an orchestrator. trustDeepVerify controls the contradiction
// policy: when set, a deep negative overrides a lookup positive.
func New(lookupClient LookupClient, session, proxy, altLookup verify.Backend, fallback *verify.Chain, trustDeepVerify bool, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		lookup: lookupClient,
		backends: map[models.VerificationMode]verify.Backend{
			models.ModeAPISession:   session,
			models.ModeAPIProxy:     proxy,
			models.ModeAPIAltLookup: altLookup,
			models.ModeSessionOnly:  session,
		},
		fallback:        fallback,
		trustDeepVerify: trustDeepVerify,
		logger:          logger,
	}
}

// Check runs the full two-phase pipeline for one identifier
func (o *Orchestrator) Check(ctx context.Context, owner *models.Owner, username string) *models.CheckResult {
	lookupResult := o.PhaseLookup(ctx, owner, username)
	if !o.NeedsDeepVerify(owner, lookupResult) {
		return lookupResult
	}
	return o.PhaseVerify(ctx, owner, username, lookupResult)
}

// PhaseLookup runs the cheap quota-bound lookup for one identifier
func (o *Orchestrator) PhaseLookup(ctx context.Context, owner *models.Owner, username string) *models.CheckResult {
	result := o.lookup.Lookup(ctx, owner.ID, username)
	return &models.CheckResult{
		Exists:     result.Exists,
		CheckedVia: models.ViaLookup,
		Reason:     result.Reason,
	}
}

// NeedsDeepVerify decides whether phase 2 runs for this lookup outcome.
// Negative and inconclusive lookups are terminal for every mode except the
// ones that force the deep check.
func (o *Orchestrator) NeedsDeepVerify(owner *models.Owner, lookupResult *models.CheckResult) bool {
	if owner.Mode.SkipsDeepVerify() {
		return false
	}
	if owner.Mode.ForcesDeepVerify() {
		return true
	}
	return lookupResult.Exists == models.ExistenceTrue
}

// PhaseVerify runs the deep verification backend selected by the owner's
// mode, escalating to the fallback chain once on a blocked signal, and
// applies the contradiction policy against the lookup result.
func (o *Orchestrator) PhaseVerify(ctx context.Context, owner *models.Owner, username string, lookupResult *models.CheckResult) *models.CheckResult {
	backend, ok := o.backends[owner.Mode]
	if !ok {
		o.logger.Error("no backend for verification mode",
			slog.String("owner_id", owner.ID),
			slog.String("mode", string(owner.Mode)))
		return lookupResult
	}

	deep := o.safeVerify(ctx, backend, owner, username)

	if deep.Blocked() {
		chain := o.fallback.ForOrder(owner.FallbackOrder)
		deep = o.safeVerify(ctx, chain, owner, username)
	}

	return o.reconcile(lookupResult, deep)
}

// reconcile merges the lookup and deep results into the final answer
func (o *Orchestrator) reconcile(lookupResult, deep *models.CheckResult) *models.CheckResult {
	// A negative lookup is authoritative for positives: the deep check may
	// run (forced modes) but can never resurrect the identifier.
	if lookupResult.Exists == models.ExistenceFalse && deep.Exists == models.ExistenceTrue {
		return lookupResult
	}

	if lookupResult.Exists == models.ExistenceTrue && deep.Exists == models.ExistenceFalse {
		if !o.trustDeepVerify {
			return lookupResult
		}
		return &models.CheckResult{
			Exists:     models.ExistenceFalse,
			CheckedVia: deep.CheckedVia,
			Reason:     models.ReasonLookupContradicted,
		}
	}

	return deep
}

// safeVerify contains backend failures: a panic becomes an inconclusive
// result so one identifier can never abort a batch.
func (o *Orchestrator) safeVerify(ctx context.Context, backend verify.Backend, owner *models.Owner, username string) (result *models.CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("verification backend panicked",
				slog.String("backend", backend.Name()),
				slog.String("owner_id", owner.ID),
				slog.String("username", username),
				slog.Any("panic", r))
			result = models.Unknown(backend.Name(), models.ReasonBackendException("panic"))
		}
	}()

	result = backend.Verify(ctx, owner, username)
	if result == nil {
		result = models.Unknown(backend.Name(), models.ReasonBackendException("nil_result"))
	}
	return result
}
