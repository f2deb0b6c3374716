package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/illum/orbitsim/pkg/logging"
	"github.com/illum/orbitsim/pkg/network"
)

var watchFlags struct {
	url    string
	preset string
	rates  bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a running server's state and rate samples",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.StringVar(&watchFlags.url, "url", "ws://localhost:8080/ws", "server WebSocket URL")
	f.StringVarP(&watchFlags.preset, "preset", "p", "", "load this preset after connecting")
	f.BoolVar(&watchFlags.rates, "rates", false, "print rate samples as well as state changes")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	client := network.NewClient(cfg.CircuitBreaker, logging.NewLoggerWithWriter(cmd.ErrOrStderr()))
	if err := client.Connect(ctx, watchFlags.url); err != nil {
		return err
	}
	defer client.Close()

	if watchFlags.preset != "" {
		if _, err := client.LoadPreset(watchFlags.preset); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-client.Events():
			if !ok {
				return fmt.Errorf("connection closed by server")
			}
			if err := printEvent(out, env, watchFlags.rates); err != nil {
				return err
			}
		}
	}
}

func printEvent(w io.Writer, env network.Envelope, rates bool) error {
	switch env.Type {
	case network.MsgState, network.MsgStateChanged:
		var state network.StatePayload
		if err := env.Decode(&state); err != nil {
			return err
		}
		fmt.Fprintf(w, "[epoch %d] %s | %s | %s | e=%s\n",
			state.Epoch, state.Labels.Period, state.Labels.MaxSpeed, state.Labels.MinSpeed, state.Labels.Eccentricity)

	case network.MsgRateSample:
		if !rates {
			return nil
		}
		var rate network.RatePayload
		if err := env.Decode(&rate); err != nil {
			return err
		}
		fmt.Fprintf(w, "[epoch %d] %s rate=%.3f\n", rate.Epoch, rate.Label, rate.RateRatio)

	case network.MsgError:
		var e network.ErrorPayload
		if err := env.Decode(&e); err != nil {
			return err
		}
		fmt.Fprintf(w, "error %s: %s\n", e.Code, e.Message)
	}
	return nil
}
