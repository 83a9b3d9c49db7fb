package verify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// RenderResult is what a render of the profile page produced
type RenderResult struct {
	Class        PageClass
	SnapshotPath string // set only when the render confirmed a profile
}

// Renderer fetches a profile page through the supplied client and classifies
// it. The HTTP implementation below is the default; an emulated-browser
// implementation satisfies the same contract.
type Renderer interface {
	Render(ctx context.Context, client *http.Client, profileURL string) (*RenderResult, error)
}

// HTTPRenderer renders with a plain GET and snapshots confirmed profiles to
// the configured directory.
type HTTPRenderer struct {
	snapshotDir string
	logger      *slog.Logger
}

// NewHTTPRenderer creates the default renderer
func NewHTTPRenderer(snapshotDir string, logger *slog.Logger) *HTTPRenderer {
	return &HTTPRenderer{snapshotDir: snapshotDir, logger: logger}
}

// Render fetches and classifies one profile page
func (r *HTTPRenderer) Render(ctx context.Context, client *http.Client, profileURL string) (*RenderResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", renderUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	class, body, err := ClassifyResponse(resp)
	if err != nil {
		return nil, err
	}

	result := &RenderResult{Class: class}
	if class == PageProfile && r.snapshotDir != "" && len(body) > 0 {
		result.SnapshotPath = r.snapshot(body)
	}

	return result, nil
}

// snapshot writes the rendered page as evidence; a write failure only costs
// the evidence, never the result.
func (r *HTTPRenderer) snapshot(body []byte) string {
	if err := os.MkdirAll(r.snapshotDir, 0o755); err != nil {
		r.logger.Warn("failed to create snapshot directory", slog.Any("error", err))
		return ""
	}

	path := filepath.Join(r.snapshotDir, fmt.Sprintf("%s.html", uuid.New().String()))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		r.logger.Warn("failed to write evidence snapshot", slog.Any("error", err))
		return ""
	}

	return path
}
