// pipalid is the sidecar daemon: it loads the per-user sandbox policy,
// exposes the confirmation and settings API on loopback, and executes
// agent commands under OS confinement. Invoked with the "sandbox-exec"
// subcommand it instead acts as the confinement helper for one command.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pipali/pipali/internal/audit"
	"github.com/pipali/pipali/internal/config"
	"github.com/pipali/pipali/internal/confirm"
	"github.com/pipali/pipali/internal/logger"
	"github.com/pipali/pipali/internal/pidfile"
	"github.com/pipali/pipali/internal/sandbox"
	"github.com/pipali/pipali/internal/shell"
	"github.com/pipali/pipali/internal/web"
)

const helperCommand = "sandbox-exec"

func main() {
	if len(os.Args) > 1 && os.Args[1] == helperCommand {
		if err := runHelper(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "pipalid %s: %v\n", helperCommand, err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		logLevel = flag.String("log-level", "info", "log level (debug, info, warn, error)")
		logFile  = flag.String("log-file", filepath.Join(config.AppDir(), "pipalid.log"), "log file path")
		userID   = flag.String("user", "default", "user whose sandbox settings to load")
	)
	flag.Parse()

	if err := logger.Init(logger.ParseLevel(*logLevel), *logFile); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Global().Close()

	logger.Info("pipalid starting (user=%s)", *userID)

	pid, err := pidfile.Acquire(filepath.Join(config.AppDir(), "pipalid.pid"))
	if err != nil {
		return err
	}
	defer pid.Release()

	store := config.NewStore(config.DefaultStoreDir())
	if err := store.EnsureExists(*userID); err != nil {
		return fmt.Errorf("failed to initialize settings: %w", err)
	}
	cfg, err := store.Load(*userID)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	adapter := sandbox.New(cfg)
	defer adapter.Shutdown()

	// Settings edits made outside the API (editor, host app) reload the
	// adapter the same way PUT /api/users/:user/sandbox does.
	err = store.Watch(func(changed string) {
		if changed != *userID {
			return
		}
		updated, err := store.Load(changed)
		if err != nil {
			logger.Error("settings watch: reload failed for %s: %v", changed, err)
			return
		}
		adapter.Reload(updated)
	})
	if err != nil {
		logger.Warn("settings watch unavailable: %v", err)
	} else {
		defer store.StopWatch()
	}

	trail, err := audit.NewTrail(filepath.Join(config.AppDir(), "audit.db"))
	if err != nil {
		return fmt.Errorf("failed to open audit trail: %w", err)
	}
	defer trail.Close()

	gateway := confirm.NewGateway()
	gateway.SetRecorder(trail)
	engine := shell.NewEngine(adapter, confirm.NewCommandGate(gateway), trail)

	server := web.NewServer(store, adapter, gateway, engine, trail)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info("pipalid ready on %s", server.Addr())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	logger.Info("pipalid shutting down (%s)", sig)

	return server.Stop()
}
