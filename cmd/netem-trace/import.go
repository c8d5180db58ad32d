package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andrewh/netem-trace/pkg/mahimahi"
	"github.com/andrewh/netem-trace/pkg/model"
)

func importCmd(a *app) *cobra.Command {
	var (
		count  int
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "import [trace]",
		Short: "Convert a mahimahi trace into a bandwidth configuration",
		Long: "Reads a mahimahi trace (one millisecond timestamp per line) and prints the\n" +
			"equivalent RepeatedBwPatternConfig of static bandwidth segments.",
		Args: cobra.MaximumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			if count < 0 {
				return fmt.Errorf("--count must not be negative, got %d", count)
			}
			docFormat, err := importFormat(cmd, format, output)
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0]) //nolint:gosec // user-supplied file path is expected
				if err != nil {
					return fmt.Errorf("opening input: %w", err)
				}
				defer f.Close() //nolint:errcheck // best-effort close on read-only file
				r = f
			}

			trace, err := mahimahi.Parse(r)
			if err != nil {
				return fmt.Errorf("reading trace: %w", err)
			}
			cfg, err := mahimahi.Load(trace, count)
			if err != nil {
				if errors.Is(err, mahimahi.ErrZeroDuration) {
					return fmt.Errorf("%w\n\nProvide a file or pipe stdin:\n  netem-trace import trace.txt\n  cat trace.txt | netem-trace import", err)
				}
				return err
			}
			a.log.Debug("trace imported",
				zap.Int("timestamps", len(trace)),
				zap.Int("segments", len(cfg.Pattern)),
			)

			data, err := model.EncodeDocument(cfg, docFormat, a.codec)
			if err != nil {
				return err
			}
			if output != "" {
				if err := os.WriteFile(output, data, 0o644); err != nil { //nolint:gosec // config files are not secret
					return fmt.Errorf("writing config: %w", err)
				}
				return nil
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}),
	}

	cmd.Flags().IntVar(&count, "count", 0, "times the pattern repeats (0 = forever)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default: stdout)")
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml or json; with -o the file extension decides unless set")

	return cmd
}

// importFormat honours an explicit --format and otherwise follows the output
// file extension.
func importFormat(cmd *cobra.Command, format, output string) (model.Format, error) {
	if output != "" && !cmd.Flags().Changed("format") {
		return model.FormatFromPath(output), nil
	}
	switch format {
	case "yaml", "yml":
		return model.YAML, nil
	case "json":
		return model.JSON, nil
	default:
		return 0, fmt.Errorf("unknown format %q, supported: yaml, json", format)
	}
}
