package cdp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/odvcencio/webshots/pkg/driver"
	"github.com/odvcencio/webshots/pkg/reaper"
)

// Launch starts a headless browser subprocess in its own process group
// and attaches to its first page target over the DevTools websocket.
func Launch(ctx context.Context, cfg Config) (*Driver, error) {
	cfg = cfg.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	path, err := resolveBrowserPath(cfg.BrowserPath)
	if err != nil {
		return nil, err
	}

	profile := cfg.UserDataDir
	ownsProfile := false
	if profile == "" {
		profile, err = os.MkdirTemp("", "webshots-profile-*")
		if err != nil {
			return nil, fmt.Errorf("create profile dir: %w", err)
		}
		ownsProfile = true
	}

	cmd := exec.Command(path, buildArgs(cfg, profile)...)
	reaper.Configure(cmd)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if ownsProfile {
			_ = os.RemoveAll(profile)
		}
		return nil, fmt.Errorf("start browser: %w", err)
	}
	waitDone := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(waitDone)
	}()

	fail := func(cause error) (*Driver, error) {
		_ = reaper.Reap(cmd.Process.Pid, reaper.DefaultGrace)
		<-waitDone
		if ownsProfile {
			_ = os.RemoveAll(profile)
		}
		return nil, cause
	}

	wsBase, err := awaitDevToolsEndpoint(ctx, stderr, cfg.ConnectTimeout)
	if err != nil {
		return fail(err)
	}
	httpBase, err := wsToHTTP(wsBase)
	if err != nil {
		return fail(err)
	}
	pageURL, err := firstPageTarget(ctx, httpBase, cfg.ConnectTimeout)
	if err != nil {
		return fail(err)
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = cfg.ConnectTimeout
	conn, _, err := dialer.DialContext(ctx, pageURL, nil)
	if err != nil {
		return fail(fmt.Errorf("dial devtools: %w", err))
	}

	d := &Driver{
		cfg:         cfg,
		cmd:         cmd,
		client:      newClient(conn),
		httpBase:    httpBase,
		waitDone:    waitDone,
		profileDir:  profile,
		ownsProfile: ownsProfile,
	}
	if err := d.client.call(ctx, "Page.enable", nil, nil); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func resolveBrowserPath(override string) (string, error) {
	if override != "" {
		return exec.LookPath(override)
	}
	for _, name := range browserCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no browser binary found (tried %s)", strings.Join(browserCandidates, ", "))
}

func buildArgs(cfg Config, profile string) []string {
	args := []string{
		"--remote-debugging-port=0",
		"--no-sandbox",
		"--disable-gpu",
		"--disable-dev-shm-usage",
		"--no-first-run",
		"--no-default-browser-check",
		fmt.Sprintf("--window-size=%d,%d", cfg.Width, cfg.Height),
		"--user-data-dir=" + profile,
	}
	if cfg.Headless {
		args = append(args, "--headless=new")
	}
	args = append(args, cfg.ExtraArgs...)
	args = append(args, "about:blank")
	return args
}

// awaitDevToolsEndpoint scans browser stderr for the advertised
// websocket endpoint. The port is chosen by the browser
// (--remote-debugging-port=0), so the announcement is the only way to
// learn it. Remaining stderr is drained in the background.
func awaitDevToolsEndpoint(ctx context.Context, stderr io.Reader, timeout time.Duration) (string, error) {
	type scanResult struct {
		endpoint string
		err      error
	}
	results := make(chan scanResult, 1)
	scanner := bufio.NewScanner(stderr)
	go func() {
		for scanner.Scan() {
			if ws, ok := parseDevToolsEndpoint(scanner.Text()); ok {
				results <- scanResult{endpoint: ws}
				// Keep draining so the browser never blocks on stderr.
				for scanner.Scan() {
				}
				return
			}
		}
		results <- scanResult{err: fmt.Errorf("browser exited before announcing devtools endpoint")}
	}()

	select {
	case res := <-results:
		return res.endpoint, res.err
	case <-time.After(timeout):
		return "", fmt.Errorf("devtools endpoint: %w", driver.ErrTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

const devToolsBanner = "DevTools listening on "

// parseDevToolsEndpoint extracts the ws:// URL from the browser's
// startup banner line.
func parseDevToolsEndpoint(line string) (string, bool) {
	idx := strings.Index(line, devToolsBanner)
	if idx < 0 {
		return "", false
	}
	ws := strings.TrimSpace(line[idx+len(devToolsBanner):])
	if !strings.HasPrefix(ws, "ws://") {
		return "", false
	}
	return ws, true
}

func wsToHTTP(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("parse devtools url: %w", err)
	}
	return "http://" + u.Host, nil
}

// firstPageTarget asks the browser's HTTP endpoint for the debugger URL
// of its initial page.
func firstPageTarget(ctx context.Context, httpBase string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpBase+"/json/list", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("list targets: %w", err)
	}
	defer resp.Body.Close()

	var targets []struct {
		Type                 string `json:"type"`
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return "", fmt.Errorf("decode targets: %w", err)
	}
	for _, t := range targets {
		if t.Type == "page" && t.WebSocketDebuggerURL != "" {
			return t.WebSocketDebuggerURL, nil
		}
	}
	return "", fmt.Errorf("no page target advertised by browser")
}
