// wansync keeps DNS records pointed at the public WAN addresses of a home
// network. It reads the current addresses from the gateway (or a fallback
// source), compares them with what Route 53 publishes, and upserts the records
// that drifted.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"gitlab.bluewillows.net/root/wansync/internal/config"
	"gitlab.bluewillows.net/root/wansync/internal/health"
	"gitlab.bluewillows.net/root/wansync/internal/metrics"
	"gitlab.bluewillows.net/root/wansync/internal/reconciler"
	"gitlab.bluewillows.net/root/wansync/pkg/httputil"
	"gitlab.bluewillows.net/root/wansync/pkg/source"
	"gitlab.bluewillows.net/root/wansync/providers/route53"
	"gitlab.bluewillows.net/root/wansync/sources/opendns"
	"gitlab.bluewillows.net/root/wansync/sources/unifi"
	"gitlab.bluewillows.net/root/wansync/sources/web"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-01-03"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// Process exit codes.
const (
	exitOK          = 0
	exitPassFailed  = 1
	exitConfigError = 2
)

// shutdownTimeout bounds the health server drain on exit.
const shutdownTimeout = 5 * time.Second

// flags holds the parsed command line.
type flags struct {
	configFile      string
	envFile         string
	envFileRequired bool
	interval        time.Duration
	intervalSet     bool
	once            bool
	dryRun          bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "wansync: %v\n", err)
		return exitConfigError
	}

	// Load configuration first; nothing touches the network before this.
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile:      f.configFile,
		EnvFile:         f.envFile,
		EnvFileRequired: f.envFileRequired,
	})
	if err != nil {
		fmt.Fprintf(stderr, "wansync: %v\n", err)
		return exitConfigError
	}
	applyFlags(cfg, f)

	logger := setupLogger(cfg.Global.LogLevel, cfg.Global.LogFormat)
	slog.SetDefault(logger)

	metrics.SetBuildInfo(Version, runtime.Version())

	logger.Info("wansync starting",
		slog.String("version", Version),
		slog.String("build_date", BuildDate),
		slog.String("go_version", runtime.Version()),
		slog.String("source", cfg.Global.Source),
		slog.Bool("dry_run", cfg.Global.DryRun),
		slog.Duration("interval", cfg.Global.Interval),
		slog.Int("records", len(cfg.Records)),
	)

	registry, err := newSourceRegistry(cfg, logger)
	if err != nil {
		logger.Error("registering sources", slog.String("error", err.Error()))
		return exitConfigError
	}

	src, err := registry.Create(cfg.Global.Source)
	if err != nil {
		logger.Error("creating source", slog.String("source", cfg.Global.Source), slog.String("error", err.Error()))
		return exitConfigError
	}

	prov, err := route53.New(&cfg.Route53.Config,
		httputil.NewClient(&httputil.ClientConfig{
			Timeout: cfg.Global.HTTPTimeout,
			Logger:  logger,
		}),
		route53.WithLogger(logger),
	)
	if err != nil {
		logger.Error("creating route53 provider", slog.String("error", err.Error()))
		return exitConfigError
	}
	logger.Info("route53 provider ready", slog.String("zone_id", prov.ZoneID()))

	rec := reconciler.New(src, prov, buildTargets(cfg.Records),
		reconciler.WithLogger(logger),
		reconciler.WithConfig(reconciler.Config{
			DryRun:   cfg.Global.DryRun,
			Parallel: cfg.Global.Parallel,
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.DaemonMode() {
		return runOnce(ctx, rec, logger, stderr)
	}
	if err := runDaemon(ctx, cfg, rec, src, prov, logger); err != nil {
		logger.Error("fatal error", slog.String("error", err.Error()))
		return exitPassFailed
	}
	return exitOK
}

// parseFlags reads the command line. Flags override the environment and the
// config file.
func parseFlags(args []string, stderr io.Writer) (*flags, error) {
	f := &flags{}

	app := kingpin.New("wansync", "Publish the gateway's WAN addresses to Route 53.")
	app.Version(fmt.Sprintf("wansync %s (built %s, %s)", Version, BuildDate, runtime.Version()))
	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)
	app.HelpFlag.Short('h')

	app.Flag("config", "YAML or TOML config file (overrides WANSYNC_CONFIG).").
		Short('c').StringVar(&f.configFile)
	app.Flag("env-file", "dotenv file loaded before reading the environment.").
		Default(config.DefaultEnvFile).IsSetByUser(&f.envFileRequired).StringVar(&f.envFile)
	app.Flag("interval", "Run as a daemon, reconciling every interval (overrides WANSYNC_INTERVAL).").
		IsSetByUser(&f.intervalSet).DurationVar(&f.interval)
	app.Flag("once", "Run a single pass and exit, even when an interval is configured.").
		BoolVar(&f.once)
	app.Flag("dry-run", "Log the changes that would be made without applying them.").
		BoolVar(&f.dryRun)

	if _, err := app.Parse(args); err != nil {
		return nil, err
	}

	if f.once && f.intervalSet {
		return nil, errors.New("--once and --interval are mutually exclusive")
	}
	if f.intervalSet && f.interval < 0 {
		return nil, fmt.Errorf("--interval must be non-negative, got %s", f.interval)
	}
	return f, nil
}

// applyFlags overlays command line settings on the loaded configuration.
func applyFlags(cfg *config.Config, f *flags) {
	if f.intervalSet {
		cfg.Global.Interval = f.interval
	}
	if f.once {
		cfg.Global.Interval = 0
	}
	if f.dryRun {
		cfg.Global.DryRun = true
	}
}

// newSourceRegistry registers a factory for every known address source. Only
// the configured one is ever built.
func newSourceRegistry(cfg *config.Config, logger *slog.Logger) (*source.Registry, error) {
	registry := source.NewRegistry(logger)

	if err := registry.RegisterFactory(config.SourceUniFi, func() (source.Source, error) {
		return unifi.New(&cfg.UniFi.Config,
			unifi.WithLogger(logger),
			unifi.WithTimeout(cfg.Global.HTTPTimeout),
			unifi.WithUserAgent(userAgent()),
		)
	}); err != nil {
		return nil, fmt.Errorf("registering %s source: %w", config.SourceUniFi, err)
	}

	if err := registry.RegisterFactory(config.SourceWeb, func() (source.Source, error) {
		return web.New(&cfg.Web,
			web.WithLogger(logger),
			web.WithTimeout(cfg.Global.HTTPTimeout),
			web.WithUserAgent(userAgent()),
		)
	}); err != nil {
		return nil, fmt.Errorf("registering %s source: %w", config.SourceWeb, err)
	}

	if err := registry.RegisterFactory(config.SourceOpenDNS, func() (source.Source, error) {
		return opendns.New(&cfg.OpenDNS, opendns.WithLogger(logger))
	}); err != nil {
		return nil, fmt.Errorf("registering %s source: %w", config.SourceOpenDNS, err)
	}

	return registry, nil
}

func userAgent() string {
	return "wansync/" + Version
}

// buildTargets maps the configured records onto reconciler targets.
func buildTargets(records []config.RecordConfig) []reconciler.Target {
	targets := make([]reconciler.Target, 0, len(records))
	for _, r := range records {
		targets = append(targets, reconciler.Target{
			ZoneID: r.ZoneID,
			Name:   r.Name,
			Type:   r.Type,
			TTL:    r.TTL,
		})
	}
	return targets
}

// runOnce performs a single pass, writes its summary to w and maps the result
// onto the exit code.
func runOnce(ctx context.Context, rec *reconciler.Reconciler, logger *slog.Logger, w io.Writer) int {
	result, err := rec.Reconcile(ctx)
	if err != nil {
		logger.Error("reconciliation failed", slog.String("error", err.Error()))
		return exitPassFailed
	}
	fmt.Fprint(w, result.Summary())

	if result.HasErrors() {
		logger.Warn("reconciliation finished with failures",
			slog.Int("failed", result.FailedCount()),
			slog.String("error", result.Err().Error()),
		)
		return exitPassFailed
	}
	return exitOK
}

// runDaemon reconciles on start and then on every tick until ctx is
// cancelled. Pass failures are logged and counted but never stop the loop.
func runDaemon(ctx context.Context, cfg *config.Config, rec *reconciler.Reconciler, src source.Source, prov *route53.Provider, logger *slog.Logger) error {
	healthServer := health.New(cfg.Global.HealthPort,
		health.WithLogger(logger),
		health.WithStatus(rec.Status),
	)
	healthServer.RegisterChecker("source:"+src.Name(), src.Ping)
	healthServer.RegisterChecker("provider:"+prov.Name(), prov.Ping)
	healthServer.RegisterDegradedChecker("reconciler", rec.Degraded)

	if err := healthServer.Start(); err != nil {
		return fmt.Errorf("starting health server: %w", err)
	}

	pass := func() {
		if _, err := rec.Reconcile(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("reconciliation failed", slog.String("error", err.Error()))
		}
	}

	pass()

	ticker := time.NewTicker(cfg.Global.Interval)
	defer ticker.Stop()

	logger.Info("periodic reconciliation enabled", slog.Duration("interval", cfg.Global.Interval))

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			pass()
		}
	}

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error shutting down health server", slog.String("error", err.Error()))
	}

	logger.Info("shutdown complete")
	return nil
}

// setupLogger creates a structured logger with the given level and format.
func setupLogger(level, format string) *slog.Logger {
	logLevel := parseLogLevel(level)

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
