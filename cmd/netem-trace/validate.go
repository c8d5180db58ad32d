package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func validateCmd(a *app) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Parse and validate a trace configuration",
		Args:  configArg("validate <config>"),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			if err := validateKind(kind); err != nil {
				return err
			}
			cfg, err := loadKind(kind, args[0], a.codec)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "Configuration valid: %s (%s)\n\n", cfg.Tag(), kind)
			if kind == "bw" {
				_, _ = fmt.Fprintf(w, "To export a mahimahi trace:\n  netem-trace export --duration 10s %s\n", args[0])
				return nil
			}
			_, _ = fmt.Fprintf(w, "To preview it:\n  netem-trace preview --kind %s %s\n", kind, args[0])
			return nil
		}),
	}

	cmd.Flags().StringVar(&kind, "kind", "bw", "signal kind: bw, delay, loss, duplicate or delay-per-packet")

	return cmd
}
