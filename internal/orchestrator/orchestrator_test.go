package orchestrator_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ukudarovv/instachecker-sub000/internal/lookup"
	"github.com/ukudarovv/instachecker-sub000/internal/models"
	"github.com/ukudarovv/instachecker-sub000/internal/orchestrator"
	"github.com/ukudarovv/instachecker-sub000/internal/verify"
)

// MockLookupClient returns a canned lookup result
type MockLookupClient struct {
	result lookup.Result
	calls  int
}

func (m *MockLookupClient) Lookup(ctx context.Context, ownerID, username string) lookup.Result {
	m.calls++
	return m.result
}

// MockBackend returns a canned verification result or panics
type MockBackend struct {
	name   string
	result *models.CheckResult
	panics bool
	calls  int
}

func (m *MockBackend) Name() string { return m.name }

func (m *MockBackend) Verify(ctx context.Context, owner *models.Owner, username string) *models.CheckResult {
	m.calls++
	if m.panics {
		panic("backend exploded")
	}
	return m.result
}

// chainHeuristic adapts a MockBackend result into a fallback heuristic
type chainHeuristic struct {
	result *models.CheckResult
	calls  int
}

func (h *chainHeuristic) Name() string { return "stub" }

func (h *chainHeuristic) Probe(ctx context.Context, owner *models.Owner, username string) *models.CheckResult {
	h.calls++
	return h.result
}

type fixture struct {
	lookup    *MockLookupClient
	session   *MockBackend
	proxy     *MockBackend
	altLookup *MockBackend
	heuristic *chainHeuristic
	orch      *orchestrator.Orchestrator
}

func newFixture(lookupResult lookup.Result, trustDeep bool) *fixture {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	f := &fixture{
		lookup:    &MockLookupClient{result: lookupResult},
		session:   &MockBackend{name: models.ViaSession, result: &models.CheckResult{Exists: models.ExistenceTrue, CheckedVia: models.ViaSession}},
		proxy:     &MockBackend{name: models.ViaProxy, result: &models.CheckResult{Exists: models.ExistenceTrue, CheckedVia: models.ViaProxy}},
		altLookup: &MockBackend{name: models.ViaAltLookup, result: &models.CheckResult{Exists: models.ExistenceTrue, CheckedVia: models.ViaAltLookup}},
		heuristic: &chainHeuristic{},
	}
	chain := verify.NewChain(logger, f.heuristic)
	f.orch = orchestrator.New(f.lookup, f.session, f.proxy, f.altLookup, chain, trustDeep, logger)
	return f
}

func owner(mode models.VerificationMode) *models.Owner {
	return &models.Owner{ID: "o1", Mode: mode, Active: true}
}

func TestLookupFalseIsTerminal(t *testing.T) {
	f := newFixture(lookup.Result{Exists: models.ExistenceFalse}, true)

	result := f.orch.Check(context.Background(), owner(models.ModeAPISession), "someuser")

	assert.Equal(t, models.ExistenceFalse, result.Exists)
	assert.Equal(t, models.ViaLookup, result.CheckedVia)
	assert.Equal(t, 0, f.session.calls, "no deep backend runs on a negative lookup")
}

func TestLookupUnknownIsTerminal(t *testing.T) {
	f := newFixture(lookup.Result{Exists: models.ExistenceUnknown, Reason: models.ReasonLookupFailed}, true)

	result := f.orch.Check(context.Background(), owner(models.ModeAPIProxy), "someuser")

	assert.Equal(t, models.ExistenceUnknown, result.Exists)
	assert.Equal(t, models.ReasonLookupFailed, result.Reason)
	assert.Equal(t, 0, f.proxy.calls)
}

func TestAPIOnlyModeSkipsDeepVerify(t *testing.T) {
	f := newFixture(lookup.Result{Exists: models.ExistenceTrue}, true)

	result := f.orch.Check(context.Background(), owner(models.ModeAPIOnly), "someuser")

	assert.Equal(t, models.ExistenceTrue, result.Exists)
	assert.Equal(t, models.ViaLookup, result.CheckedVia)
	assert.Equal(t, 0, f.session.calls)
	assert.Equal(t, 0, f.proxy.calls)
}

func TestSessionOnlyModeForcesDeepVerify(t *testing.T) {
	f := newFixture(lookup.Result{Exists: models.ExistenceUnknown, Reason: models.ReasonNoEligibleKey}, true)

	result := f.orch.Check(context.Background(), owner(models.ModeSessionOnly), "someuser")

	assert.Equal(t, models.ExistenceTrue, result.Exists)
	assert.Equal(t, models.ViaSession, result.CheckedVia)
	assert.Equal(t, 1, f.session.calls, "forced mode runs deep verify on an inconclusive lookup")
}

func TestDeepTrueCannotOverrideLookupFalse(t *testing.T) {
	f := newFixture(lookup.Result{Exists: models.ExistenceFalse}, true)

	result := f.orch.Check(context.Background(), owner(models.ModeSessionOnly), "someuser")

	assert.Equal(t, models.ExistenceFalse, result.Exists, "a negative lookup is never resurrected")
	assert.Equal(t, models.ViaLookup, result.CheckedVia)
	assert.Equal(t, 1, f.session.calls)
}

func TestContradictedOverride(t *testing.T) {
	f := newFixture(lookup.Result{Exists: models.ExistenceTrue}, true)
	f.session.result = &models.CheckResult{Exists: models.ExistenceFalse, CheckedVia: models.ViaSession}

	result := f.orch.Check(context.Background(), owner(models.ModeAPISession), "someuser")

	assert.Equal(t, models.ExistenceFalse, result.Exists)
	assert.Equal(t, models.ReasonLookupContradicted, result.Reason)
	assert.Equal(t, models.ViaSession, result.CheckedVia)
}

func TestContradictedOverrideDisabled(t *testing.T) {
	f := newFixture(lookup.Result{Exists: models.ExistenceTrue}, false)
	f.session.result = &models.CheckResult{Exists: models.ExistenceFalse, CheckedVia: models.ViaSession}

	result := f.orch.Check(context.Background(), owner(models.ModeAPISession), "someuser")

	assert.Equal(t, models.ExistenceTrue, result.Exists, "with the override disabled the lookup positive stands")
	assert.Equal(t, models.ViaLookup, result.CheckedVia)
}

func TestBlockedEscalatesToFallbackChain(t *testing.T) {
	f := newFixture(lookup.Result{Exists: models.ExistenceTrue}, true)
	f.proxy.result = models.Unknown(models.ViaProxy, models.ReasonBlocked)
	f.heuristic.result = &models.CheckResult{Exists: models.ExistenceTrue}

	result := f.orch.Check(context.Background(), owner(models.ModeAPIProxy), "someuser")

	assert.Equal(t, models.ExistenceTrue, result.Exists)
	assert.Equal(t, models.ViaFallback, result.CheckedVia)
	assert.Equal(t, 1, f.proxy.calls)
	assert.Equal(t, 1, f.heuristic.calls)
}

func TestFallbackChainExhaustedLeavesUnknown(t *testing.T) {
	f := newFixture(lookup.Result{Exists: models.ExistenceTrue}, true)
	f.proxy.result = models.Unknown(models.ViaProxy, models.ReasonBlocked)
	f.heuristic.result = nil // no signal

	result := f.orch.Check(context.Background(), owner(models.ModeAPIProxy), "someuser")

	assert.Equal(t, models.ExistenceUnknown, result.Exists)
	assert.Equal(t, models.ReasonHeuristicsExhausted, result.Reason)
}

func TestBackendPanicIsContained(t *testing.T) {
	f := newFixture(lookup.Result{Exists: models.ExistenceTrue}, true)
	f.session.panics = true

	result := f.orch.Check(context.Background(), owner(models.ModeAPISession), "someuser")

	assert.Equal(t, models.ExistenceUnknown, result.Exists)
	assert.Equal(t, models.ReasonBackendException("panic"), result.Reason)
}

func TestAltLookupModeDispatch(t *testing.T) {
	f := newFixture(lookup.Result{Exists: models.ExistenceTrue}, true)

	result := f.orch.Check(context.Background(), owner(models.ModeAPIAltLookup), "someuser")

	assert.Equal(t, models.ExistenceTrue, result.Exists)
	assert.Equal(t, models.ViaAltLookup, result.CheckedVia)
	assert.Equal(t, 1, f.altLookup.calls)
	assert.Equal(t, 0, f.session.calls)
	assert.Equal(t, 0, f.proxy.calls)
}
