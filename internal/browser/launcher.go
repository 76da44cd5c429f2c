// Package browser launches a headless Chromium and captures chart pages through CDP.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
	"time"
)

// viewportMargin is added around the chart so the container never touches
// the window edge. Capture pads its viewport by the same amount.
const viewportMargin = 40

const readyTimeout = 15 * time.Second

// Config describes the screenshot browser.
type Config struct {
	CDPAddress string
	CDPPort    int
	// Width and Height are the largest chart size the window must fit.
	Width    int
	Height   int
	Headless bool
}

// Launcher owns a Chromium process used only for chart snapshots. Each launch
// gets a temporary profile that Stop removes.
type Launcher struct {
	cfg        Config
	cmd        *exec.Cmd
	profileDir string
}

// NewLauncher returns a launcher for cfg. A zero Width or Height falls back
// to 800x500.
func NewLauncher(cfg Config) *Launcher {
	if cfg.Width <= 0 {
		cfg.Width = 800
	}
	if cfg.Height <= 0 {
		cfg.Height = 500
	}
	return &Launcher{cfg: cfg}
}

// Endpoint is the CDP HTTP address handed to Snapshotter.
func (l *Launcher) Endpoint() string {
	return "http://" + net.JoinHostPort(l.cfg.CDPAddress, strconv.Itoa(l.cfg.CDPPort))
}

func findChromium() (string, error) {
	for _, name := range []string{"chromium-browser", "chromium", "google-chrome", "headless-shell"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		macPath := "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(macPath); err == nil {
			return macPath, nil
		}
	}
	return "", errors.New("no chromium binary found for snapshots")
}

// launchArgs builds the command line for a snapshot browser whose window fits
// a chart of cfg.Width x cfg.Height.
func launchArgs(cfg Config, profileDir string) []string {
	args := []string{
		"--remote-debugging-port=" + strconv.Itoa(cfg.CDPPort),
		"--remote-debugging-address=" + cfg.CDPAddress,
		"--user-data-dir=" + profileDir,
		fmt.Sprintf("--window-size=%d,%d", cfg.Width+viewportMargin, cfg.Height+viewportMargin),
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-extensions",
		"--disable-dev-shm-usage",
		"--hide-scrollbars",
		"--mute-audio",
	}
	if cfg.Headless {
		args = append(args, "--headless=new", "--disable-gpu")
	}
	return append(args, "about:blank")
}

func (l *Launcher) endpointUp() bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(l.cfg.CDPAddress, strconv.Itoa(l.cfg.CDPPort)), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Launch starts Chromium unless something already answers on the CDP port,
// in which case that browser is used for snapshots.
func (l *Launcher) Launch(ctx context.Context) error {
	if l.endpointUp() {
		slog.Info("snapshot browser already reachable", "endpoint", l.Endpoint())
		return nil
	}

	bin, err := findChromium()
	if err != nil {
		return err
	}
	profileDir, err := os.MkdirTemp("", "pmchart-browser-")
	if err != nil {
		return fmt.Errorf("create browser profile: %w", err)
	}
	l.profileDir = profileDir

	l.cmd = exec.Command(bin, launchArgs(l.cfg, profileDir)...)
	l.cmd.Stderr = os.Stderr
	if err := l.cmd.Start(); err != nil {
		l.cleanup()
		return fmt.Errorf("start browser: %w", err)
	}
	slog.Info("snapshot browser started", "path", bin, "pid", l.cmd.Process.Pid,
		"window", fmt.Sprintf("%dx%d", l.cfg.Width+viewportMargin, l.cfg.Height+viewportMargin))

	if err := l.waitReady(ctx); err != nil {
		l.Stop()
		return fmt.Errorf("snapshot browser not ready: %w", err)
	}
	slog.Info("snapshot browser ready", "endpoint", l.Endpoint())
	return nil
}

// waitReady polls /json/version until the endpoint answers 200.
func (l *Launcher) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	versionURL := l.Endpoint() + "/json/version"
	client := &http.Client{Timeout: time.Second}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", versionURL, ctx.Err())
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, versionURL, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				continue
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}

// Running reports whether this launcher owns a live browser process.
func (l *Launcher) Running() bool {
	return l.cmd != nil && l.cmd.Process != nil
}

// Stop terminates a browser started by Launch and removes its profile.
func (l *Launcher) Stop() {
	defer l.cleanup()
	if !l.Running() {
		return
	}
	proc := l.cmd.Process
	_ = proc.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_ = l.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		slog.Warn("snapshot browser ignored SIGTERM, killing", "pid", proc.Pid)
		_ = proc.Kill()
		<-done
	}
	slog.Info("snapshot browser stopped", "pid", proc.Pid)
	l.cmd = nil
}

func (l *Launcher) cleanup() {
	if l.profileDir == "" {
		return
	}
	if err := os.RemoveAll(l.profileDir); err != nil {
		slog.Debug("browser profile cleanup failed", "dir", l.profileDir, "error", err)
	}
	l.profileDir = ""
}
