package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sjsage522/autoread/config"
	"sjsage522/autoread/logger"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	initConfig bool
	noBrowse   bool
	debug      bool
}

// Execute runs the command until it finishes or SIGINT/SIGTERM arrives.
// An interrupted run is not an error.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "autoread",
		Short:         "Daily linux.do login and topic reading",
		Long:          "autoread logs in to linux.do, reads a batch of new topics, compares the Connect stats before and after, and pushes a report.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRoot(cmd, opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&opts.configFile, "config", "", "config file (json, yaml or toml)")
	flags.BoolVar(&opts.initConfig, "init-config", false, "write the default config to --config (or "+config.DefaultConfigFile+") and exit")
	flags.BoolVar(&opts.noBrowse, "no-browse", false, "only log in, skip reading topics")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.Int("max-topics", config.DefaultMaxTopics, "maximum number of topics to read")
	flags.Bool("headless", true, "run the browser without a window")
	flags.Duration("every", 0, "repeat the run at this interval, 0 runs once")

	return rootCmd
}

func runRoot(cmd *cobra.Command, opts *rootOptions) error {
	if opts.initConfig {
		path := opts.configFile
		if path == "" {
			path = config.DefaultConfigFile
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", path)
		return nil
	}

	v := config.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(v, config.LoadOptions{
		ConfigFile: opts.configFile,
		NoBrowse:   opts.noBrowse,
		Debug:      opts.debug,
	})
	if err != nil {
		return err
	}

	logFile := logger.Setup(logger.Options{Level: cfg.LogLevel, Debug: opts.debug, File: cfg.LogFile})
	defer logFile.Close()

	if err := cfg.Validate(); err != nil {
		logger.LogError("cmd", err, "Invalid configuration")
		return err
	}

	log := logger.For("cmd")
	log.Info().
		Bool("browse", cfg.BrowseEnabled).
		Int("max_topics", cfg.MaxTopics).
		Bool("headless", cfg.Browser.Headless).
		Str("every", everyLabel(cfg.Every)).
		Msg("Starting autoread")

	ctx := cmd.Context()
	err = run(ctx, cfg)
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		log.Info().Msg("Interrupted, shutting down")
		return nil
	}
	if err != nil {
		logger.LogError("cmd", err, "Run failed")
	}
	return err
}

func everyLabel(d time.Duration) string {
	if d <= 0 {
		return "once"
	}
	return d.String()
}
