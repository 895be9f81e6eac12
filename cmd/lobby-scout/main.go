// ABOUTME: Entry point for lobby-scout, the multi-account lobby search console
// ABOUTME: Wires config, sessions, the fleet controller, dashboard, ledger and metrics

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/2389/lobby-scout/internal/clock"
	"github.com/2389/lobby-scout/internal/config"
	"github.com/2389/lobby-scout/internal/console"
	"github.com/2389/lobby-scout/internal/dedupe"
	"github.com/2389/lobby-scout/internal/fleet"
	"github.com/2389/lobby-scout/internal/metrics"
	"github.com/2389/lobby-scout/internal/notify"
	"github.com/2389/lobby-scout/internal/session"
	"github.com/2389/lobby-scout/internal/status"
	"github.com/2389/lobby-scout/internal/store"
)

// version is stamped at build time with
// -ldflags "-X main.version=<tag>".
var version = "dev"

const banner = `
 _       _     _                                   _
| | ___ | |__ | |__  _   _       ___  ___ ___  _   _| |_
| |/ _ \| '_ \| '_ \| | | |_____/ __|/ __/ _ \| | | | __|
| | (_) | |_) | |_) | |_| |_____\__ \ (_| (_) | |_| | |_
|_|\___/|_.__/|_.__/ \__, |     |___/\___\___/ \__,_|\__|
                     |___/
`

const (
	echoCacheSize = 1024
	// ledgerBuffer lets the recorder fall behind during a burst of
	// sightings without losing any.
	ledgerBuffer = 4096
)

// options are the command-line flags.
type options struct {
	configPath  string
	logLevel    string
	historyFile string
	noBanner    bool
}

// getConfigPath returns the config file path.
// Priority: --config flag > LOBBY_SCOUT_CONFIG env var > ./config.yaml
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv("LOBBY_SCOUT_CONFIG"); envPath != "" {
		return envPath
	}
	return "config.yaml"
}

// defaultHistoryFile returns ~/.lobby-scout-history, or "" without a home.
func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".lobby-scout-history")
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, bool, error) {
	var opts options
	flagSet := pflag.NewFlagSet("lobby-scout", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "config file (default: $LOBBY_SCOUT_CONFIG or config.yaml)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	flagSet.StringVar(&opts.historyFile, "history-file", defaultHistoryFile(), "console history file, empty to disable")
	flagSet.BoolVar(&opts.noBanner, "no-banner", false, "skip the startup banner")
	showVersion := flagSet.Bool("version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return opts, true, nil
		}
		return opts, false, err
	}
	if *showVersion {
		fmt.Fprintf(stderr, "lobby-scout %s\n", version)
		return opts, true, nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return opts, false, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return opts, false, nil
}

// loadConfig reads the config, writing a starter file when none exists.
// created reports that the starter was written and the process should
// exit so the operator can fill it in.
func loadConfig(path string, out io.Writer) (cfg *config.Config, created bool, err error) {
	cfg, err = config.Load(path)
	if errors.Is(err, config.ErrNotExist) {
		fmt.Fprintf(out, "[-] %s not found. Creating default config file...\n", path)
		if err := config.WriteDefault(path); err != nil {
			return nil, false, fmt.Errorf("writing default config: %w", err)
		}
		fmt.Fprintf(out, "[+] Created %s. Please add your email accounts and target, then restart the program.\n", path)
		return nil, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading config: %w", err)
	}
	return cfg, false, nil
}

func run(args []string) error {
	opts, done, err := parseFlags(args, os.Stderr)
	if err != nil || done {
		return err
	}

	configPath := getConfigPath(opts.configPath)
	cfg, created, err := loadConfig(configPath, os.Stdout)
	if err != nil || created {
		return err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	logger, closeLog, err := setupLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	if !opts.noBanner {
		printBanner(cfg, configPath)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting lobby-scout",
		"config", configPath,
		"server", cfg.Server,
		"accounts", len(cfg.Emails),
		"target", cfg.Target,
	)
	return serve(ctx, cfg, opts, logger)
}

func printBanner(cfg *config.Config, configPath string) {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Server:   %s\n", cfg.Server)
	green.Print("    ▶ ")
	fmt.Printf("Target:   %s\n", cfg.Target)
	green.Print("    ▶ ")
	fmt.Printf("Accounts: %d\n", len(cfg.Emails))
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:  http://%s%s\n", cfg.Metrics.Addr, cfg.Metrics.Path)
	}
	if cfg.Database.Path != "" {
		green.Print("    ▶ ")
		fmt.Printf("Ledger:   %s\n", cfg.Database.Path)
	}
	fmt.Println()
}

func serve(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger) error {
	clk := clock.Real()

	rl, err := console.NewReadline(opts.historyFile)
	if err != nil {
		return err
	}
	out := console.SyncWriter(rl.Stdout())

	hub := notify.NewHub(logger)
	defer hub.Close()

	var fleetMetrics *metrics.Fleet
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		fleetMetrics = metrics.MustNewFleet(reg)
		metrics.MustRegisterNoticeDrops(reg, hub.Dropped)
		srv, err := metrics.Listen(cfg.Metrics.Addr, cfg.Metrics.Path, reg, logger)
		if err != nil {
			rl.Close()
			return err
		}
		go func() {
			if err := srv.Serve(ctx); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		ch, _ := hub.SubscribeBuffered(ctx, ledgerBuffer)
		go fleetMetrics.Run(ctx, ch)
	}

	var history console.History
	if cfg.Database.Path != "" {
		ledger, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			rl.Close()
			return fmt.Errorf("opening ledger: %w", err)
		}
		defer ledger.Close()
		history = ledger

		ch, _ := hub.SubscribeBuffered(ctx, ledgerBuffer)
		go store.NewRecorder(ledger, cfg.Target, logger).Run(ctx, ch)
	}

	echo := dedupe.New(cfg.Timing.EchoWindow, echoCacheSize, clk)
	defer echo.Close()
	notices, _ := hub.Subscribe(ctx)
	go console.NewPrinter(out, echo).Run(ctx, notices)

	renderer := status.NewTerminalRenderer(out,
		status.ShouldClear(cfg.Dashboard.ClearScreen, os.Stdout),
		status.IsTerminal(os.Stdout))
	dashboard := status.NewAggregator(status.Options{Target: cfg.Target, Zone: cfg.Search.Zone}, renderer, clk)

	ctrl := fleet.NewController(fleet.Params{
		Settings: fleet.SettingsFromConfig(cfg),
		Dialer:   session.NewWSDialer(cfg.Bridge.URL, logger),
		Clock:    clk,
		Logger:   logger,
		Notifier: hub,
		OnChange: func(views []fleet.AgentView) {
			fleetMetrics.ObserveSnapshot(views)
			dashboard.FleetChanged(views)
		},
	})
	defer ctrl.Shutdown()

	ctrl.AuthenticateAll(ctx)

	params := console.Params{
		Fleet:     ctrl,
		History:   history,
		Dashboard: dashboard,
		Out:       out,
		Logger:    logger,
	}
	if fleetMetrics != nil {
		params.Commands = fleetMetrics
	}
	err = console.NewDispatcher(params).Run(ctx, rl)

	fmt.Fprintln(out, "[/] Shutting down...")
	logger.Info("lobby-scout stopped")
	return err
}
