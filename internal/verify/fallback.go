package verify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ukudarovv/instachecker-sub000/internal/models"
)

// Heuristic is one probe in the fallback chain. A nil result means "no
// signal": the chain moves on to the next, more expensive heuristic.
type Heuristic interface {
	Name() string
	Probe(ctx context.Context, owner *models.Owner, username string) *models.CheckResult
}

// Heuristic names owners may reference in their fallback order
const (
	HeuristicAltEndpoint   = "alt-endpoint"
	HeuristicDeviceProfile = "device-profile"
	HeuristicMirror        = "mirror"
	HeuristicBrowser       = "browser"
)

// Chain runs heuristics in order and stops at the first definitive answer.
// It absorbs blocked escalations from the other backends, so it is never the
// first thing tried for a fresh identifier.
type Chain struct {
	heuristics []Heuristic
	logger     *slog.Logger
}

// NewChain builds a fallback chain over the given heuristics, cheapest first
func NewChain(logger *slog.Logger, heuristics ...Heuristic) *Chain {
	return &Chain{heuristics: heuristics, logger: logger}
}

// DefaultChain builds the standard chain: alternate endpoint, then an
// alternate device profile, then a public mirror, then a full browser render.
func DefaultChain(alt *AltLookupBackend, renderer Renderer, cfg Config, logger *slog.Logger) *Chain {
	cfg.applyDefaults()
	return NewChain(logger,
		&altEndpointHeuristic{alt: alt},
		&deviceProfileHeuristic{cfg: cfg},
		&mirrorHeuristic{cfg: cfg},
		&browserHeuristic{renderer: renderer, cfg: cfg},
	)
}

// ForOrder returns a chain reordered to the owner's preference. Unknown
// names are skipped; an empty order keeps the default chain.
func (c *Chain) ForOrder(order []string) *Chain {
	if len(order) == 0 {
		return c
	}

	byName := make(map[string]Heuristic, len(c.heuristics))
	for _, h := range c.heuristics {
		byName[h.Name()] = h
	}

	picked := make([]Heuristic, 0, len(order))
	for _, name := range order {
		if h, ok := byName[name]; ok {
			picked = append(picked, h)
		}
	}
	if len(picked) == 0 {
		return c
	}

	return &Chain{heuristics: picked, logger: c.logger}
}

func (c *Chain) Name() string { return models.ViaFallback }

// Verify walks the chain; first definitive tri-state wins
func (c *Chain) Verify(ctx context.Context, owner *models.Owner, username string) *models.CheckResult {
	for _, h := range c.heuristics {
		result := h.Probe(ctx, owner, username)
		if result == nil || result.Exists == models.ExistenceUnknown {
			c.logger.Debug("fallback heuristic had no signal",
				slog.String("heuristic", h.Name()),
				slog.String("username", username))
			continue
		}

		return &models.CheckResult{
			Exists:       result.Exists,
			CheckedVia:   models.ViaFallback,
			EvidencePath: result.EvidencePath,
		}
	}

	return models.Unknown(models.ViaFallback, models.ReasonHeuristicsExhausted)
}

// altEndpointHeuristic reuses the alternate public endpoint as the cheapest
// probe in the chain.
type altEndpointHeuristic struct {
	alt *AltLookupBackend
}

func (h *altEndpointHeuristic) Name() string { return HeuristicAltEndpoint }

func (h *altEndpointHeuristic) Probe(ctx context.Context, owner *models.Owner, username string) *models.CheckResult {
	exists, _ := h.alt.probe(ctx, username)
	if exists == models.ExistenceUnknown {
		return nil
	}
	return &models.CheckResult{Exists: exists}
}

// deviceProfileHeuristic fetches the profile presenting as a mobile device,
// which is rate-limited on a separate budget than the desktop surface.
type deviceProfileHeuristic struct {
	cfg Config
}

const mobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

func (h *deviceProfileHeuristic) Name() string { return HeuristicDeviceProfile }

func (h *deviceProfileHeuristic) Probe(ctx context.Context, owner *models.Owner, username string) *models.CheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL(h.cfg.ProfileBaseURL, username), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", mobileUserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := newDirectClient(h.cfg.RenderTimeout).Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	class, _, err := ClassifyResponse(resp)
	if err != nil {
		return nil
	}
	return resultForClass(class)
}

// mirrorHeuristic checks a public mirror that caches profile pages and is
// not behind the primary site's anti-bot surface.
type mirrorHeuristic struct {
	cfg Config
}

func (h *mirrorHeuristic) Name() string { return HeuristicMirror }

func (h *mirrorHeuristic) Probe(ctx context.Context, owner *models.Owner, username string) *models.CheckResult {
	endpoint := fmt.Sprintf("%s/%s/", h.cfg.MirrorBaseURL, url.PathEscape(username))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", renderUserAgent)

	resp, err := newDirectClient(h.cfg.RenderTimeout).Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return &models.CheckResult{Exists: models.ExistenceFalse}
	case http.StatusOK:
		return &models.CheckResult{Exists: models.ExistenceTrue}
	default:
		// Mirrors are best-effort; anything odd is no signal
		return nil
	}
}

// browserHeuristic is the most expensive probe: a full render through the
// configured renderer, unauthenticated and unproxied.
type browserHeuristic struct {
	renderer Renderer
	cfg      Config
}

func (h *browserHeuristic) Name() string { return HeuristicBrowser }

func (h *browserHeuristic) Probe(ctx context.Context, owner *models.Owner, username string) *models.CheckResult {
	rendered, err := h.renderer.Render(ctx, newDirectClient(h.cfg.RenderTimeout), profileURL(h.cfg.ProfileBaseURL, username))
	if err != nil {
		return nil
	}

	result := resultForClass(rendered.Class)
	if result != nil && result.Exists == models.ExistenceTrue {
		result.EvidencePath = rendered.SnapshotPath
	}
	return result
}

func resultForClass(class PageClass) *models.CheckResult {
	switch class {
	case PageProfile:
		return &models.CheckResult{Exists: models.ExistenceTrue}
	case PageNotFound:
		return &models.CheckResult{Exists: models.ExistenceFalse}
	default:
		return nil
	}
}
