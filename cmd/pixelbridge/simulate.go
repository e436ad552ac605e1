package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/pixelbridge/internal/errors"
	"github.com/vango-dev/pixelbridge/internal/httpapi"
	"github.com/vango-dev/pixelbridge/internal/logging"
	"github.com/vango-dev/pixelbridge/internal/patternsim"
)

func simulateCmd() *cobra.Command {
	var (
		listen    string
		logLevel  string
		simConfig = patternsim.DefaultConfig()
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Serve a simulated pattern source",
		Long: `Serve a stand-in pattern source that streams a rainbow preview over
WebSocket, answers getConfig requests and pings its clients.

Examples:
  pixelbridge simulate --listen 127.0.0.1:8181
  pixelbridge run --source 127.0.0.1:8181 --actuator terminal`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if simConfig.FPS < 1 || simConfig.FPS > patternsim.MaxFPS {
				return errors.New(errors.CodeInvalidFlag).WithField("--fps").
					WithDetail(fmt.Sprintf("The frame rate must be between 1 and %d.", patternsim.MaxFPS))
			}
			if simConfig.Pixels < 1 {
				return errors.New(errors.CodeInvalidFlag).WithField("--pixels").
					WithDetail("The pixel count must be at least 1.")
			}
			if simConfig.PingInterval < 0 {
				return errors.New(errors.CodeInvalidFlag).WithField("--ping-interval").
					WithDetail("Use 0 to disable pings.")
			}

			logger, err := logging.New(cmd.ErrOrStderr(), logLevel, logging.FormatText)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sim := patternsim.New(simConfig, logger)
			srv := httpapi.NewServer(httpapi.Config{Address: listen}, sim, logger)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "127.0.0.1:8181", "Listen address")
	cmd.Flags().StringVar(&simConfig.Name, "name", simConfig.Name, "Name reported in the configuration reply")
	cmd.Flags().IntVar(&simConfig.FPS, "fps", simConfig.FPS, "Preview frames per second")
	cmd.Flags().IntVar(&simConfig.Pixels, "pixels", simConfig.Pixels, "Pixels per preview frame")
	cmd.Flags().DurationVar(&simConfig.PingInterval, "ping-interval", simConfig.PingInterval, "Time between pings (0 disables)")
	cmd.Flags().BoolVar(&simConfig.StreamWithoutSubscribe, "stream-without-subscribe", false, "Stream without waiting for a sendUpdates request")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	return cmd
}
