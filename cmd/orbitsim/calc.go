package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/illum/orbitsim/pkg/render"
	"github.com/illum/orbitsim/pkg/session"
)

type calcOptions struct {
	preset       string
	au           *float64
	eccentricity *float64
	mantissa     string
	exponent     string
	asJSON       bool
	plot         bool
}

var calcFlags struct {
	preset       string
	au           float64
	eccentricity float64
	mantissa     string
	exponent     string
	asJSON       bool
	plot         bool
}

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Print the derived quantities of an orbit",
	Long: `Compute period, periapsis and apoapsis speeds for an orbit.

Edits apply in order: preset, semi-major axis (which resets the orbit to a
circle), eccentricity, then central mass. The mass fields accept the same
loosely typed text as the UI fields.`,
	Example: `  orbitsim calc --preset moon
  orbitsim calc --au 1 --eccentricity 0.5 --plot
  orbitsim calc --mass 5.972 --exponent 24 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := calcOptions{
			preset:   calcFlags.preset,
			mantissa: calcFlags.mantissa,
			exponent: calcFlags.exponent,
			asJSON:   calcFlags.asJSON,
			plot:     calcFlags.plot,
		}
		if cmd.Flags().Changed("au") {
			opts.au = &calcFlags.au
		}
		if cmd.Flags().Changed("eccentricity") {
			opts.eccentricity = &calcFlags.eccentricity
		}

		snap, err := calculate(opts)
		if err != nil {
			return err
		}
		if err := writeSnapshot(cmd.OutOrStdout(), snap, opts.asJSON); err != nil {
			return err
		}
		if opts.plot && !opts.asJSON {
			return plotOrbit(cmd.OutOrStdout(), snap)
		}
		return nil
	},
}

func init() {
	f := calcCmd.Flags()
	f.StringVarP(&calcFlags.preset, "preset", "p", "", "start from a preset (earth, moon)")
	f.Float64Var(&calcFlags.au, "au", 1, "semi-major axis in AU")
	f.Float64VarP(&calcFlags.eccentricity, "eccentricity", "e", 0, "eccentricity in [0, 1)")
	f.StringVar(&calcFlags.mantissa, "mass", "", "central mass mantissa")
	f.StringVar(&calcFlags.exponent, "exponent", "", "central mass exponent")
	f.BoolVar(&calcFlags.asJSON, "json", false, "print the full snapshot as JSON")
	f.BoolVar(&calcFlags.plot, "plot", false, "draw the orbit below the figures")
	rootCmd.AddCommand(calcCmd)
}

func calculate(opts calcOptions) (session.Snapshot, error) {
	sess := session.New(nil, nil)

	if opts.preset != "" {
		if _, err := sess.LoadPreset(opts.preset); err != nil {
			return session.Snapshot{}, err
		}
	}
	if opts.au != nil {
		if _, err := sess.SetSemiMajorAxisAU(*opts.au); err != nil {
			return session.Snapshot{}, err
		}
	}
	if opts.eccentricity != nil {
		if _, err := sess.SetEccentricity(*opts.eccentricity); err != nil {
			return session.Snapshot{}, err
		}
	}
	if opts.mantissa != "" || opts.exponent != "" {
		current := sess.Snapshot().State
		mantissa, exponent := opts.mantissa, opts.exponent
		if mantissa == "" {
			mantissa = strconv.FormatFloat(current.MassMantissa, 'f', -1, 64)
		}
		if exponent == "" {
			exponent = strconv.Itoa(current.MassExponent)
		}
		if _, err := sess.SetCentralMassText(mantissa, exponent); err != nil {
			return session.Snapshot{}, err
		}
	}

	return sess.Snapshot(), nil
}

func writeSnapshot(w io.Writer, snap session.Snapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	_, err := fmt.Fprintf(w, "%s\n%s\n%s\nEccentricity: %s\nSemi-minor axis: %s AU\n",
		snap.Labels.Period,
		snap.Labels.MaxSpeed,
		snap.Labels.MinSpeed,
		snap.Labels.Eccentricity,
		snap.Labels.SemiMinorAxis,
	)
	return err
}

// Plot grid size in characters.
const (
	plotWidth  = 61
	plotHeight = 21
)

func plotOrbit(w io.Writer, snap session.Snapshot) error {
	r := render.NewTerminalRenderer(plotWidth, plotHeight)
	r.DrawOrbit(snap.State.Shape())
	r.DrawBody(0)
	return r.Render(w)
}
