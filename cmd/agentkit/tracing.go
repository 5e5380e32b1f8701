package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jingkaihe/agentkit/pkg/logger"
	"github.com/jingkaihe/agentkit/pkg/telemetry"
	"github.com/jingkaihe/agentkit/pkg/version"
)

// shutdownTracing flushes spans before the process exits.
var shutdownTracing telemetry.ShutdownFunc = func(context.Context) error { return nil }

func initTracing(ctx context.Context) error {
	shutdown, err := telemetry.InitTracer(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceVersion: version.Get().Version,
		Sampler:        cfg.Tracing.Sampler,
		Ratio:          cfg.Tracing.Ratio,
	})
	if err != nil {
		return err
	}
	shutdownTracing = shutdown
	return nil
}

// withTracing wraps the Run function of cmd and its subcommands in a
// cli.command span.
func withTracing(cmd *cobra.Command) {
	for _, sub := range cmd.Commands() {
		withTracing(sub)
	}
	if cmd.Run == nil {
		return
	}

	run := cmd.Run
	cmd.Run = func(cmd *cobra.Command, args []string) {
		attrs := []attribute.KeyValue{
			attribute.String("command.name", cmd.Name()),
			attribute.String("command.path", cmd.CommandPath()),
			attribute.Int("args.count", len(args)),
		}
		cmd.Flags().Visit(func(flag *pflag.Flag) {
			attrs = append(attrs, attribute.String("flag."+flag.Name, flag.Value.String()))
		})

		ctx, span := telemetry.Tracer("agentkit.cli").Start(cmd.Context(), "cli.command", trace.WithAttributes(attrs...))
		defer span.End()

		cmd.SetContext(ctx)
		run(cmd, args)
		span.SetStatus(codes.Ok, "")
	}
}

func flushTracing(ctx context.Context) {
	if err := shutdownTracing(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to flush traces")
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("tracing-enabled", false, "Export OpenTelemetry traces over OTLP/HTTP")
	rootCmd.PersistentFlags().String("tracing-sampler", "ratio", "Tracing sampler type (always, never, ratio)")
	rootCmd.PersistentFlags().Float64("tracing-ratio", 1, "Sampling ratio when using the ratio sampler")

	viper.BindPFlag("tracing.enabled", rootCmd.PersistentFlags().Lookup("tracing-enabled"))
	viper.BindPFlag("tracing.sampler", rootCmd.PersistentFlags().Lookup("tracing-sampler"))
	viper.BindPFlag("tracing.ratio", rootCmd.PersistentFlags().Lookup("tracing-ratio"))
}
