// Command conductor bridges external JSON-RPC-over-WebSocket clients
// to Steam's SteamWebHelper embedded browser. See internal/supervisor
// for the startup sequence and internal/broker for the multiplexing
// core.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kardianos/service"

	"github.com/tancop/conductor/internal/config"
	"github.com/tancop/conductor/internal/supervisor"
)

const (
	serviceName        = "Conductor"
	serviceDisplayName = "Conductor"
	serviceDescription = "Bridges external JSON-RPC clients to Steam's SteamWebHelper via CDP"
)

// conductorService implements kardianos/service.Interface so Conductor
// can be installed and run as a managed OS service in addition to
// running in the foreground.
type conductorService struct {
	cfg    *config.Config
	cancel context.CancelFunc
}

func (s *conductorService) Start(svc service.Service) error {
	go s.run()
	return nil
}

func (s *conductorService) Stop(svc service.Service) error {
	slog.Info("service stop requested")
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func (s *conductorService) run() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	defer cancel()

	if code := supervisor.Run(ctx, s.cfg); code != 0 {
		os.Exit(code)
	}
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file (default: conductor.yaml)")
		doInstall   = flag.Bool("install", false, "install as an OS service")
		doUninstall = flag.Bool("uninstall", false, "uninstall the OS service")
		doRun       = flag.Bool("run", false, "run in the foreground (non-service mode)")
		doReplace   = flag.Bool("replace", false, "override conductor.replace_other_instances for this run")
	)
	flag.Parse()

	initLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	initLogger(cfg.LogLevel)

	if *doReplace {
		cfg.Conductor.ReplaceOtherInstances = true
	}

	svcConfig := &service.Config{
		Name:        serviceName,
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
		Arguments:   []string{},
	}

	cs := &conductorService{cfg: cfg}
	svc, err := service.New(cs, svcConfig)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	switch {
	case *doInstall:
		if err := svc.Install(); err != nil {
			slog.Error("failed to install service", "error", err)
			os.Exit(1)
		}
		fmt.Println("Service installed successfully:", serviceName)

	case *doUninstall:
		if err := svc.Stop(); err != nil {
			slog.Warn("failed to stop service (may not be running)", "error", err)
		}
		if err := svc.Uninstall(); err != nil {
			slog.Error("failed to uninstall service", "error", err)
			os.Exit(1)
		}
		fmt.Println("Service uninstalled successfully:", serviceName)

	case *doRun, service.Interactive():
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		slog.Info("starting conductor in foreground mode")
		os.Exit(supervisor.Run(ctx, cfg))

	default:
		if err := svc.Run(); err != nil {
			slog.Error("service run failed", "error", err)
			os.Exit(1)
		}
	}
}

// initLogger configures the global slog logger at the given level.
func initLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	slog.SetDefault(slog.New(handler))
}
