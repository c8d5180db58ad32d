// Command-line front end for the netem-trace generators
// Exports mahimahi traces, imports them back and previews any signal kind
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/zap"

	"github.com/andrewh/netem-trace/pkg/logger"
	"github.com/andrewh/netem-trace/pkg/mahimahi"
	"github.com/andrewh/netem-trace/pkg/model"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

const (
	envPrefix       = "NETEM_TRACE"
	shutdownTimeout = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand. The persistent flags are
// read through v so that NETEM_TRACE_* variables can stand in for them.
type app struct {
	v *viper.Viper

	log      *zap.Logger
	codec    *model.Codec
	metrics  *mahimahi.Metrics
	closeFns []func(context.Context) error
}

func rootCmd() *cobra.Command {
	a := &app{v: viper.New(), log: zap.NewNop()}

	root := &cobra.Command{
		Use:          "netem-trace",
		Short:        "Generate network emulation traces",
		Long:         "Generate bandwidth, delay, loss and duplication traces for network emulators.",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("encoding", "human", "configuration encoding: structured or human")
	pf.Bool("log-json", false, "write logs as JSON lines")
	pf.Bool("no-color", false, "disable coloured log levels")
	pf.CountP("verbose", "v", "enable debug logging")
	pf.Bool("quiet", false, "only log warnings and errors")
	pf.Bool("metrics-stdout", false, "print export metrics to stderr when the command finishes")
	_ = a.v.BindPFlags(pf)

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(exportCmd(a))
	root.AddCommand(importCmd(a))
	root.AddCommand(previewCmd(a))
	root.AddCommand(validateCmd(a))
	root.AddCommand(versionCmd())

	return root
}

// run wraps a command body with logger and metrics setup, and tears both down
// whether or not the body fails.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := a.setup(cmd); err != nil {
			return errors.Join(err, a.shutdown())
		}
		defer func() {
			err = errors.Join(err, a.shutdown())
		}()
		return fn(cmd, args)
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	enc, err := model.ParseEncoding(a.v.GetString("encoding"))
	if err != nil {
		return err
	}
	a.codec = model.NewCodec(enc)

	lg, syncLog, err := logger.NewLogger(logger.Config{
		JSON:    a.v.GetBool("log-json"),
		NoColor: a.v.GetBool("no-color"),
		Verbose: a.v.GetInt("verbose"),
		Quiet:   a.v.GetBool("quiet"),
		Output:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	a.log = lg.Named(cmd.Name())
	a.closeFns = append(a.closeFns, syncLog)

	if a.v.GetBool("metrics-stdout") {
		if err := a.setupMetrics(cmd); err != nil {
			return fmt.Errorf("creating metrics: %w", err)
		}
	}
	return nil
}

func (a *app) setupMetrics(cmd *cobra.Command) error {
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("netem_trace.version", version),
	))
	if err != nil {
		return fmt.Errorf("creating resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	// Prepended so the provider flushes before the logger is synced.
	a.closeFns = append([]func(context.Context) error{mp.Shutdown}, a.closeFns...)

	a.metrics, err = mahimahi.NewMetrics(mp)
	return err
}

func (a *app) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	for _, fn := range a.closeFns {
		errs = append(errs, fn(ctx))
	}
	a.closeFns = nil
	return errors.Join(errs...)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "netem-trace %s (commit: %s, built: %s)\n", version, commit, buildTime)
		},
	}
}

// configArg accepts exactly one configuration path and explains how to call
// the command when it is missing.
func configArg(usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("missing configuration file\n\nUsage: netem-trace %s", usage)
		}
		return cobra.ExactArgs(1)(cmd, args)
	}
}
