package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/pixelbridge/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(configPrintCmd(), configValidateCmd())
	return cmd
}

func configPrintCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration pixelbridge would run with: the defaults,
overlaid with pixelbridge.yaml from the working directory or --config.

Examples:
  pixelbridge config print > pixelbridge.yaml
  pixelbridge config print --config /etc/pixelbridge.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(path)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "", "Configuration file (default ./"+config.ConfigFileName+" if present)")
	return cmd
}

func configValidateCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration for errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(path)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "", "Configuration file (default ./"+config.ConfigFileName+" if present)")
	return cmd
}

// loadConfig reads path, or pixelbridge.yaml from the working directory
// when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load(".")
}
