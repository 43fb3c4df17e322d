// Package cdp drives a headless Chromium-family browser over the
// DevTools protocol. It owns the browser subprocess end to end: launch,
// attach, command dispatch, and teardown of the full process tree.
package cdp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/odvcencio/webshots/pkg/driver"
	"github.com/odvcencio/webshots/pkg/reaper"
)

const pollEvery = 100 * time.Millisecond

// Driver implements driver.Driver against one browser subprocess.
type Driver struct {
	cfg         Config
	cmd         *exec.Cmd
	client      *client
	httpBase    string
	waitDone    chan struct{}
	profileDir  string
	ownsProfile bool
	closed      atomic.Bool
}

var _ driver.Driver = (*Driver)(nil)

// Navigate loads url and blocks until the document finishes loading.
func (d *Driver) Navigate(ctx context.Context, rawURL string) error {
	if d.closed.Load() {
		return driver.ErrClosed
	}
	var res struct {
		ErrorText string `json:"errorText"`
	}
	if err := d.client.call(ctx, "Page.navigate", map[string]any{"url": rawURL}, &res); err != nil {
		return err
	}
	if res.ErrorText != "" {
		return driver.WrapCommandError("Page.navigate", res.ErrorText, nil)
	}
	return d.poll(ctx, d.cfg.NavigateTimeout, readyStateExpr, "page load")
}

// WaitVisible blocks until sel is present and displayed.
func (d *Driver) WaitVisible(ctx context.Context, sel driver.Selector, timeout time.Duration) error {
	return d.poll(ctx, timeout, visibleExpr(sel), "wait visible "+sel.String())
}

// WaitGone blocks until sel is absent or hidden.
func (d *Driver) WaitGone(ctx context.Context, sel driver.Selector, timeout time.Duration) error {
	return d.poll(ctx, timeout, goneExpr(sel), "wait gone "+sel.String())
}

// Click waits for sel to be displayed, then clicks it.
func (d *Driver) Click(ctx context.Context, sel driver.Selector, timeout time.Duration) error {
	return d.poll(ctx, timeout, clickExpr(sel), "click "+sel.String())
}

// Text waits for sel and returns its trimmed text content.
func (d *Driver) Text(ctx context.Context, sel driver.Selector, timeout time.Duration) (string, error) {
	if err := d.WaitVisible(ctx, sel, timeout); err != nil {
		return "", err
	}
	var text *string
	if err := d.evaluate(ctx, textExpr(sel), &text); err != nil {
		return "", err
	}
	if text == nil {
		return "", fmt.Errorf("%s: %w", sel, driver.ErrNotFound)
	}
	return *text, nil
}

// SendKeys waits for sel and types text into it.
func (d *Driver) SendKeys(ctx context.Context, sel driver.Selector, text string, timeout time.Duration) error {
	if err := d.WaitVisible(ctx, sel, timeout); err != nil {
		return err
	}
	var ok bool
	if err := d.evaluate(ctx, setValueExpr(sel, text), &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", sel, driver.ErrNotFound)
	}
	return nil
}

// Submit waits for sel and submits its enclosing form.
func (d *Driver) Submit(ctx context.Context, sel driver.Selector, timeout time.Duration) error {
	if err := d.WaitVisible(ctx, sel, timeout); err != nil {
		return err
	}
	var ok bool
	if err := d.evaluate(ctx, submitExpr(sel), &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("submit %s: no enclosing form", sel)
	}
	return nil
}

// Screenshot captures the current viewport as PNG to path.
func (d *Driver) Screenshot(ctx context.Context, path string) error {
	if d.closed.Load() {
		return driver.ErrClosed
	}
	var res struct {
		Data string `json:"data"`
	}
	if err := d.client.call(ctx, "Page.captureScreenshot", map[string]any{"format": "png"}, &res); err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(res.Data)
	if err != nil {
		return driver.WrapCommandError("Page.captureScreenshot", "decode image payload", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

// PageSource returns the current document markup.
func (d *Driver) PageSource(ctx context.Context) (string, error) {
	var html string
	if err := d.evaluate(ctx, "document.documentElement.outerHTML", &html); err != nil {
		return "", err
	}
	return html, nil
}

// Alive reports whether the browser's debugging endpoint still answers.
func (d *Driver) Alive(ctx context.Context) bool {
	if d.closed.Load() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.httpBase+"/json/version", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// PID returns the browser process id.
func (d *Driver) PID() int {
	if d == nil || d.cmd == nil || d.cmd.Process == nil {
		return 0
	}
	return d.cmd.Process.Pid
}

// Close tears the browser down: polite Browser.close, then the reaper
// sweeps the process group, then the throwaway profile is removed.
// Safe to call more than once.
func (d *Driver) Close() error {
	if d == nil || !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	_ = d.client.call(ctx, "Browser.close", nil, nil)
	cancel()
	_ = d.client.close()

	err := reaper.Reap(d.PID(), reaper.DefaultGrace)
	if d.waitDone != nil {
		<-d.waitDone
	}
	if d.ownsProfile && d.profileDir != "" {
		_ = os.RemoveAll(d.profileDir)
	}
	return err
}

// evaluate runs a JS expression and decodes its by-value result.
func (d *Driver) evaluate(ctx context.Context, expr string, out any) error {
	if d.closed.Load() {
		return driver.ErrClosed
	}
	var res struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}
	params := map[string]any{"expression": expr, "returnByValue": true}
	if err := d.client.call(ctx, "Runtime.evaluate", params, &res); err != nil {
		return err
	}
	if res.ExceptionDetails != nil {
		return driver.WrapCommandError("Runtime.evaluate", res.ExceptionDetails.Text, nil)
	}
	if out == nil {
		return nil
	}
	if len(res.Result.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Result.Value, out); err != nil {
		return driver.WrapCommandError("Runtime.evaluate", "decode value", err)
	}
	return nil
}

// poll re-evaluates a boolean condition until it holds or the bound
// expires.
func (d *Driver) poll(ctx context.Context, timeout time.Duration, cond, what string) error {
	deadline := time.Now().Add(timeout)
	for {
		if d.closed.Load() {
			return driver.ErrClosed
		}
		var ok bool
		if err := d.evaluate(ctx, cond, &ok); err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s after %s: %w", what, timeout, driver.ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollEvery):
		}
	}
}
