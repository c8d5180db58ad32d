package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/message"

	"github.com/andrewh/netem-trace/pkg/mahimahi"
	"github.com/andrewh/netem-trace/pkg/model"
)

const defaultExportDuration = 10 * time.Second

func exportCmd(a *app) *cobra.Command {
	var (
		duration time.Duration
		output   string
	)

	cmd := &cobra.Command{
		Use:   "export <config>",
		Short: "Export a bandwidth configuration as a mahimahi trace",
		Long: "Export a bandwidth configuration as a mahimahi trace.\n\n" +
			"Each output line is the millisecond at whose end one 1500 byte packet can be\n" +
			"delivered. The configuration may be JSON or YAML, chosen by file extension.",
		Args: configArg("export <config>"),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, a, args[0], duration, output)
		}),
	}

	cmd.Flags().DurationVar(&duration, "duration", defaultExportDuration, "length of the exported trace")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default: stdout)")

	return cmd
}

func runExport(cmd *cobra.Command, a *app, configPath string, duration time.Duration, output string) error {
	if duration < mahimahi.Bin {
		return fmt.Errorf("--duration must be at least %s, got %s", mahimahi.Bin, duration)
	}

	cfg, err := model.LoadConfig(configPath, a.codec, model.BwConfigs)
	if err != nil {
		return err
	}
	trace, err := cfg.Build()
	if err != nil {
		return err
	}

	exporter := &mahimahi.Exporter{Logger: a.log, Metrics: a.metrics}
	timestamps, err := exporter.Export(cmd.Context(), trace, duration)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output) //nolint:gosec // user-supplied output path is expected
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close() //nolint:errcheck // best-effort close on write
		w = f
	}
	if err := mahimahi.Write(w, timestamps); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	if len(timestamps) > 0 {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return fmt.Errorf("writing trace: %w", err)
		}
	}

	if !a.v.GetBool("quiet") {
		p := message.NewPrinter(message.MatchLanguage("en"))
		_, _ = p.Fprintf(cmd.ErrOrStderr(), "Exported %d delivery opportunities over %s (%.2f Mbps average)\n",
			len(timestamps), duration, averageMbps(len(timestamps), duration))
	}
	return nil
}

func averageMbps(opportunities int, d time.Duration) float64 {
	bits := float64(opportunities) * mahimahi.QuantumBits
	return bits / d.Seconds() / 1e6
}
