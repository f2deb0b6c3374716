// Command orbitsim computes two-body orbit quantities and serves an animated
// orbit session over HTTP and WebSocket.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/illum/orbitsim/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "orbitsim",
	Short: "Two-body orbit calculator and playback-rate server",
	Long: `orbitsim derives the period and the periapsis and apoapsis speeds of an
orbit around a central mass, and maps the speed along the path to an
animation playback rate.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path to configuration file")
}

// loadConfig reads path when it exists, falls back to the defaults when it
// does not, and applies ORBITSIM_* overrides.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			if cfg, err = config.LoadConfig(path); err != nil {
				return nil, err
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("checking config file: %w", err)
		}
	}

	if err := config.ApplyEnvironmentOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
