package verify

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PreviewConfig describes the dev server and browser the conditional gates
// run against.
type PreviewConfig struct {
	// Command starts the preview server in the worktree, e.g.
	// ["npm", "run", "dev"]. Empty means the URL is already being served.
	Command []string `yaml:"command,omitempty" mapstructure:"command"`

	// URL is where the preview is reachable once the server is up.
	URL string `yaml:"url" mapstructure:"url"`

	// StartupTimeout bounds how long to wait for the URL to answer.
	StartupTimeout time.Duration `yaml:"startup_timeout,omitempty" mapstructure:"startup_timeout"`
}

// Preview is the explicit resource handle for one pipeline run: the spawned
// preview server and the browser automation session. It is created when a
// run begins and torn down unconditionally when the run ends, on every exit
// path. Nothing here is shared between runs.
type Preview struct {
	URL string

	server  *exec.Cmd
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page

	mu          sync.Mutex
	consoleErrs []string
}

// StartPreview launches the preview server (when configured), waits for it
// to answer, and opens a headless browser page that records console errors.
// On any failure it releases whatever it had already acquired.
func StartPreview(ctx context.Context, cfg PreviewConfig, dir string) (*Preview, error) {
	preview := &Preview{URL: cfg.URL}

	if len(cfg.Command) > 0 {
		server := exec.CommandContext(ctx, cfg.Command[0], cfg.Command[1:]...)
		server.Dir = dir
		if err := server.Start(); err != nil {
			return nil, fmt.Errorf("failed to start preview server: %w", err)
		}
		preview.server = server

		timeout := cfg.StartupTimeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		if err := waitForURL(ctx, cfg.URL, timeout); err != nil {
			preview.Close()
			return nil, err
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		preview.Close()
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	preview.pw = pw

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		preview.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	preview.browser = browser

	page, err := browser.NewPage()
	if err != nil {
		preview.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	preview.page = page

	page.OnConsole(func(msg playwright.ConsoleMessage) {
		if msg.Type() == "error" {
			preview.mu.Lock()
			preview.consoleErrs = append(preview.consoleErrs, msg.Text())
			preview.mu.Unlock()
		}
	})

	return preview, nil
}

// Page returns the automation page.
func (p *Preview) Page() playwright.Page { return p.page }

// ConsoleErrors returns the console errors observed so far.
func (p *Preview) ConsoleErrors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.consoleErrs...)
}

// Close tears down the browser session and the preview server. It is safe
// on a partially constructed preview and safe to call more than once.
func (p *Preview) Close() {
	if p.page != nil {
		_ = p.page.Close()
		p.page = nil
	}
	if p.browser != nil {
		_ = p.browser.Close()
		p.browser = nil
	}
	if p.pw != nil {
		_ = p.pw.Stop()
		p.pw = nil
	}
	if p.server != nil && p.server.Process != nil {
		_ = p.server.Process.Kill()
		_ = p.server.Wait()
		p.server = nil
	}
}

func waitForURL(ctx context.Context, url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}

	return fmt.Errorf("preview server at %s did not become ready within %s", url, timeout)
}
