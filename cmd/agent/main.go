package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pcinventory/internal/config"
	"pcinventory/internal/engine"
	"pcinventory/internal/facts"
	"pcinventory/internal/logging"
	"pcinventory/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		once    bool
	)

	cmd := &cobra.Command{
		Use:   "pcinventory-agent",
		Short: "Reports this machine's hardware and network identity to the inventory collector",
		Long: `pcinventory-agent collects the hardware UUID, model, OS and active network
adapter of this machine and sends them to the inventory collector. It sends
once at startup, then whenever client.send_interval_secs has elapsed since the
last successful send. Failed sends are retried in the background.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfgFile, once)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", defaultConfigPath(), "configuration file (env CONFIG_PATH)")
	cmd.Flags().BoolVar(&once, "once", false, "collect and send a single report, then exit")
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.UserAgent())
		},
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.toml"
}

func run(ctx context.Context, cfgFile string, once bool) error {
	store := config.NewFileStore(cfgFile)
	cfg, err := store.Load()
	if err != nil {
		return err
	}

	base, closer, err := logging.New(cfg.LoggingConfig())
	if err != nil {
		return err
	}
	defer closer.Close()

	log := logging.Component(base, "agent")
	log.Info().Str("version", version.Version).Msg("PC inventory agent starting")
	log.Info().Str("config", cfgFile).Str("server", cfg.Server.URL).Msg("Configuration loaded")

	pipeline := &engine.Pipeline{
		Source: facts.NewSystemCollector(logging.Component(base, "facts")),
		Store:  store,
		Dial:   engine.HTTPTransport,
		Log:    logging.Component(base, "pipeline"),
	}

	if once {
		outcome, err := pipeline.Initial(ctx, cfg)
		if err != nil {
			return err
		}
		log.Info().Stringer("outcome", outcome).Msg("Single run complete")
		return nil
	}

	retry := engine.NewCoordinator(pipeline, store, logging.Component(base, "retry"))
	scheduler := engine.NewScheduler(cfg, store, pipeline, retry, logging.Component(base, "scheduler"))
	scheduler.Run(ctx)

	log.Info().Msg("Agent stopped")
	return nil
}
