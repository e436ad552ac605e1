package main

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/pixelbridge/internal/config"
	"github.com/vango-dev/pixelbridge/internal/errors"
	"github.com/vango-dev/pixelbridge/internal/httpapi"
	"github.com/vango-dev/pixelbridge/internal/logging"
	"github.com/vango-dev/pixelbridge/pkg/display"
	"github.com/vango-dev/pixelbridge/pkg/metrics"
	"github.com/vango-dev/pixelbridge/pkg/session"
	"github.com/vango-dev/pixelbridge/pkg/supervisor"
)

type runOptions struct {
	configPath  string
	source      string
	actuator    string
	metricsAddr string
	logLevel    string
	logFormat   string
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bridge",
		Long: `Connect to the pattern source and stream its preview frames to the grid.

The bridge never gives up: dial failures, rejected upgrades and dropped
connections are logged and retried after supervisor.reconnectBackoff.
Stop it with Ctrl-C or SIGTERM.

Examples:
  pixelbridge run
  pixelbridge run --source 10.0.0.7:81 --actuator terminal
  pixelbridge run --config /etc/pixelbridge.yaml --metrics-addr ""`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg, opts)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBridge(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file (default ./"+config.ConfigFileName+" if present)")
	cmd.Flags().StringVar(&opts.source, "source", "", "Pattern source host:port (overrides source.address)")
	cmd.Flags().StringVar(&opts.actuator, "actuator", "", "Actuator: log, terminal or none (overrides display.actuator)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "HTTP listen address for /metrics, /healthz and /status; empty disables")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")

	return cmd
}

// applyRunFlags overlays flags the user set onto cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, opts runOptions) {
	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.SetSource(opts.source)
	}
	if flags.Changed("actuator") {
		cfg.Display.Actuator = opts.actuator
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Address = opts.metricsAddr
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
}

// runBridge wires the pipeline and blocks until ctx is canceled or a
// component fails for good.
func runBridge(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	logger, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(metrics.WithRegistry(reg))

	sink := display.NewChannel(cfg.Display.QueueDepth)
	driver := display.NewDriver(sink.Frames(), newActuator(cfg, stdout, logger),
		display.WithGridSize(cfg.Grid.Pixels),
		display.WithRestartDelay(cfg.RestartDelay()),
		display.WithPaintObserver(m),
		display.WithDriverLogger(logger.With("component", "display")),
	)

	queue := session.NewControlQueue(cfg.Session.ControlQueueDepth)
	sup := supervisor.New(cfg.SupervisorConfig(), nil, queue, sink,
		supervisor.WithLogger(logger),
		supervisor.WithMetrics(m),
	)

	logger.Info("pixelbridge starting",
		"version", version,
		"source", cfg.Source.Address,
		"actuator", cfg.Display.Actuator,
		"grid", cfg.Grid.Pixels)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := driver.Run(gctx); err != nil && !stderrors.Is(err, context.Canceled) {
			return errors.FromError(err, errors.CodeDisplayFailed)
		}
		return nil
	})

	g.Go(func() error {
		if err := sup.Run(gctx); err != nil && !stderrors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if cfg.Metrics.Address != "" {
		router := httpapi.NewRouter(sup, reg, logger)
		srv := httpapi.NewServer(httpapi.Config{Address: cfg.Metrics.Address}, router, logger)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	err = g.Wait()
	logger.Info("pixelbridge stopped")
	return err
}

func newActuator(cfg *config.Config, stdout io.Writer, logger *slog.Logger) display.Actuator {
	switch cfg.Display.Actuator {
	case config.ActuatorTerminal:
		return display.NewTerminalActuator(stdout, cfg.Grid.Columns)
	case config.ActuatorNone:
		return display.DiscardActuator{}
	default:
		return &display.LogActuator{Logger: logger.With("component", "actuator"), Level: slog.LevelDebug}
	}
}
