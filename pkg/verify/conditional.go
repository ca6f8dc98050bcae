package verify

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gobwas/glob"
	"github.com/playwright-community/playwright-go"
)

// VisualGate drives the preview page through the browser: it navigates,
// captures a full-page screenshot, and fails on navigation errors or
// console errors emitted while rendering.
type VisualGate struct {
	preview *Preview
	timeout time.Duration
}

// NewVisualGate creates a visual gate bound to a run's preview resources.
func NewVisualGate(preview *Preview, timeout time.Duration) *VisualGate {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &VisualGate{preview: preview, timeout: timeout}
}

func (g *VisualGate) Name() string      { return "visual" }
func (g *VisualGate) Conditional() bool { return true }

func (g *VisualGate) Run(ctx context.Context, dir string) GateResult {
	start := time.Now()
	result := GateResult{Gate: g.Name()}
	defer func() { result.Duration = time.Since(start) }()

	if g.preview == nil || g.preview.Page() == nil {
		result.Errors = append(result.Errors, "no preview session available")
		return result
	}

	page := g.preview.Page()
	timeoutMs := float64(g.timeout.Milliseconds())
	if _, err := page.Goto(g.preview.URL, playwright.PageGotoOptions{
		Timeout: &timeoutMs,
	}); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("navigation failed: %v", err))
		return result
	}

	shot, err := page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("screenshot failed: %v", err))
		return result
	}
	if len(shot) == 0 {
		result.Errors = append(result.Errors, "screenshot was empty")
		return result
	}

	if errs := g.preview.ConsoleErrors(); len(errs) > 0 {
		for _, msg := range errs {
			result.Errors = append(result.Errors, fmt.Sprintf("console error: %s", msg))
		}
		return result
	}

	result.Passed = true
	return result
}

// ProbeGate checks that the live preview answers HTTP with a non-5xx
// status, a runtime smoke signal on top of the static gates.
type ProbeGate struct {
	url     string
	timeout time.Duration
}

// NewProbeGate creates a runtime probe against url.
func NewProbeGate(url string, timeout time.Duration) *ProbeGate {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &ProbeGate{url: url, timeout: timeout}
}

func (g *ProbeGate) Name() string      { return "runtime_probe" }
func (g *ProbeGate) Conditional() bool { return true }

func (g *ProbeGate) Run(ctx context.Context, dir string) GateResult {
	start := time.Now()
	result := GateResult{Gate: g.Name()}
	defer func() { result.Duration = time.Since(start) }()

	probeCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, g.url, nil)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("invalid probe url: %v", err))
		return result
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("probe request failed: %v", err))
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		result.Errors = append(result.Errors, fmt.Sprintf("preview answered %d", resp.StatusCode))
		return result
	}

	result.Passed = true
	return result
}

// Scope carries the requirement material the coverage heuristic checks
// against the worktree.
type Scope struct {
	Files      []string
	Acceptance []string
}

// CoverageGate is a heuristic: every declared file-scope entry must match
// at least one file present in the worktree. It cannot prove acceptance
// statements hold, so unmatched acceptance material is surfaced as
// warnings rather than failures.
type CoverageGate struct {
	scope Scope
}

// NewCoverageGate creates a coverage gate for one requirement's scope.
func NewCoverageGate(scope Scope) *CoverageGate {
	return &CoverageGate{scope: scope}
}

func (g *CoverageGate) Name() string      { return "acceptance_coverage" }
func (g *CoverageGate) Conditional() bool { return true }

func (g *CoverageGate) Run(ctx context.Context, dir string) GateResult {
	start := time.Now()
	result := GateResult{Gate: g.Name()}
	defer func() { result.Duration = time.Since(start) }()

	if len(g.scope.Files) == 0 {
		result.Passed = true
		result.Warnings = append(result.Warnings, "requirement declares no file scope")
		return result
	}

	for _, pattern := range g.scope.Files {
		matched, err := scopeEntryMatched(dir, pattern)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to check scope %s: %v", pattern, err))
			continue
		}
		if !matched {
			result.Errors = append(result.Errors, fmt.Sprintf("declared scope %s has no matching file", pattern))
		}
	}

	if len(result.Errors) == 0 {
		result.Passed = true
	}
	return result
}

func scopeEntryMatched(dir, pattern string) (bool, error) {
	// Literal paths are the common case.
	if _, err := os.Stat(filepath.Join(dir, pattern)); err == nil {
		return true, nil
	}

	matcher, err := glob.Compile(pattern, '/')
	if err != nil {
		return false, err
	}

	matched := false
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || matched {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return nil
		}
		if matcher.Match(filepath.ToSlash(rel)) {
			matched = true
			return filepath.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return false, walkErr
	}
	return matched, nil
}
