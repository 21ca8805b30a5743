// Package supervisor sequences Conductor's startup: singleton-instance
// takeover, payload injection, and broker listener startup, then
// blocks until shutdown is requested either by SIGINT or by the
// broker's exit signal. It is grounded on the host-agent's runAgent
// orchestration in cmd/agent/main.go, generalized to the
// discover/probe/kill/inject sequence from original_source/src/main.rs
// and src/inject.rs.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tancop/conductor/internal/broker"
	"github.com/tancop/conductor/internal/cdp"
	"github.com/tancop/conductor/internal/cefmarker"
	"github.com/tancop/conductor/internal/config"
	"github.com/tancop/conductor/internal/payload"
	"github.com/tancop/conductor/internal/pidfile"
	"github.com/tancop/conductor/internal/secret"
)

const probeSettleDelay = 50 * time.Millisecond

// Run executes the full supervisor lifecycle described in spec §4.6.
// It blocks until shutdown and returns the process exit code.
func Run(ctx context.Context, cfg *config.Config) int {
	cefmarker.Enable()

	if err := pidfile.Store(cfg.DataDir); err != nil {
		slog.Warn("failed to store pid file", "error", err)
	}

	url, err := cdp.Discover(ctx, nil)
	if err != nil {
		slog.Error("fatal: could not discover steam debugger endpoint", "error", err)
		return 1
	}

	if cdp.ProbeOtherInstance(url) {
		if !cfg.Conductor.ReplaceOtherInstances {
			slog.Error("another conductor instance is already running and replace_other_instances is disabled")
			return 1
		}

		slog.Info("another instance detected, killing it")
		if err := cdp.KillOtherInstance(url, 5); err != nil {
			slog.Error("fatal: failed to kill the other instance", "error", err)
			return 1
		}
		if err := pidfile.KillPrevious(cfg.DataDir); err != nil {
			slog.Warn("os-level kill of previous instance failed", "error", err)
		}
	}

	if err := pidfile.Store(cfg.DataDir); err != nil {
		slog.Warn("failed to store pid file", "error", err)
	}

	time.Sleep(probeSettleDelay)

	steamSecret := secret.Generate()
	clientSecrets := cfg.Auth.Tokens

	brokerCtx := broker.New(broker.Options{
		SteamSecret:   steamSecret,
		AuthEnabled:   cfg.Auth.Enabled,
		ClientSecrets: clientSecrets,
	})

	listener := broker.NewListener(brokerCtx, cfg.Conductor.Hostname)
	go func() {
		if err := listener.ListenAndServe(); err != nil {
			slog.Error("broker listener stopped unexpectedly", "error", err)
			brokerCtx.ExitSignal().Fire(false)
		}
	}()

	go injectPayload(brokerCtx, cfg, url, steamSecret)

	exitCode := waitForShutdown(ctx, brokerCtx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	listener.Shutdown(shutdownCtx)

	if err := cdp.KillOtherInstance(url, 5); err != nil {
		slog.Debug("final kill-running-instance attempt failed", "error", err)
	}

	return exitCode
}

// injectPayload reads the payload template relative to the executable
// directory, renders it, and injects it into SharedJSContext. Failure
// fires exitSignal=false per spec §4.6 step 5.
func injectPayload(brokerCtx *broker.Context, cfg *config.Config, url, steamSecret string) {
	exePath, err := os.Executable()
	if err != nil {
		slog.Error("could not determine executable path", "error", err)
		brokerCtx.ExitSignal().Fire(false)
		return
	}
	exeDir := filepath.Dir(exePath)

	templatePath := cfg.Conductor.PayloadPath
	if !filepath.IsAbs(templatePath) {
		templatePath = filepath.Join(exeDir, templatePath)
	}

	raw, err := os.ReadFile(templatePath)
	if err != nil {
		slog.Error("could not read payload template", "path", templatePath, "error", err)
		brokerCtx.ExitSignal().Fire(false)
		return
	}

	port, err := listenerPort(cfg.Conductor.Hostname)
	if err != nil {
		slog.Error("could not determine listener port", "error", err)
		brokerCtx.ExitSignal().Fire(false)
		return
	}

	rendered := payload.Render(string(raw), port, true, steamSecret)
	brokerCtx.UpdatePayload(rendered)

	if err := cdp.InjectPayload(url, rendered, 5); err != nil {
		slog.Error("fatal: failed to inject payload", "error", err)
		brokerCtx.ExitSignal().Fire(false)
		return
	}

	slog.Info("payload injected")
}

// waitForShutdown blocks until SIGINT (delivered via ctx) or the
// broker's exitSignal fires, and returns the matching process exit
// code. Along the way it also observes initSignal — the supervisor's
// confirmation that the Steam side has connected at least once (spec
// §3) — logging that startup succeeded the first time it fires.
func waitForShutdown(ctx context.Context, brokerCtx *broker.Context) int {
	initCh := brokerCtx.InitSignal().C()

	for {
		select {
		case <-ctx.Done():
			slog.Info("shutdown requested via signal")
			return 0
		case ok := <-brokerCtx.ExitSignal().C():
			if ok {
				slog.Info("broker requested normal shutdown")
				return 0
			}
			slog.Error("broker requested shutdown due to a fatal error")
			return 1
		case <-initCh:
			slog.Info("steam connected for the first time, startup confirmed")
			// initSignal is one-shot: once fired its channel is closed and
			// would otherwise be immediately ready forever, busy-looping
			// this select. Nil it out so it never matches again.
			initCh = nil
		}
	}
}

func listenerPort(hostname string) (uint16, error) {
	_, portStr, err := net.SplitHostPort(hostname)
	if err != nil {
		return 0, fmt.Errorf("parsing listener address %q: %w", hostname, err)
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("parsing listener port %q: %w", portStr, err)
	}
	return uint16(port), nil
}
