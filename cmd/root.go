// Package cmd implements the dbops command line.
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonwraymond/dbops/config"
)

// NewCmd builds the root command with its own viper instance.
func NewCmd() *cobra.Command {
	s := &session{v: viper.New()}
	config.SetDefaults(s.v)

	var cfgFile string
	cmd := &cobra.Command{
		Use:           "dbops",
		Short:         "Run user queries through a resilient database pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				s.v.SetConfigFile(cfgFile)
			} else {
				s.v.SetConfigName("dbops")
				s.v.AddConfigPath(".")
				s.v.AddConfigPath("$HOME")
			}
			s.v.SetEnvPrefix(config.EnvPrefix)
			s.v.SetEnvKeyReplacer(config.EnvKeyReplacer)
			s.v.AutomaticEnv()

			if err := s.v.ReadInConfig(); err != nil {
				var notFound viper.ConfigFileNotFoundError
				if !errors.As(err, &notFound) {
					return err
				}
			}

			cfg, err := config.Decode(s.v)
			if err != nil {
				return err
			}
			s.cfg = cfg
			s.stderr = cmd.ErrOrStderr()
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default dbops.yaml in . or $HOME)")
	flags.String("driver", config.DriverSQLite, "database driver, one of: sqlite, postgres")
	flags.String("dsn", "dbops.db", "sqlite path or postgres connection string; ${VAR} is expanded")
	flags.String("log-level", "info", "log level, one of: debug, info, warn, error")
	flags.Int("retry-attempts", 3, "attempts per call, 0 disables retries")
	flags.Duration("retry-delay", 100*time.Millisecond, "wait before the first retry")
	flags.String("retry-strategy", "exponential", "backoff strategy, one of: constant, exponential, fibonacci, linear")
	flags.Bool("cache", true, "cache read results for the lifetime of the command")
	flags.Int("cache-size", 0, "maximum cached results, 0 is unbounded")
	flags.Int("bulkhead", 0, "maximum concurrent database calls, 0 is unbounded")
	flags.Int("concurrency", 0, "maximum concurrent lookups for multi-id commands, 0 is unbounded")
	flags.Duration("timeout", 0, "bound on each database call including retries, 0 is unbounded")

	bind := map[string]string{
		"driver":                  "driver",
		"dsn":                     "dsn",
		"observe.logging.level":   "log-level",
		"retry.attempts":          "retry-attempts",
		"retry.delay":             "retry-delay",
		"retry.strategy":          "retry-strategy",
		"cache.enabled":           "cache",
		"cache.size":              "cache-size",
		"bulkhead.max_concurrent": "bulkhead",
		"concurrency":             "concurrency",
		"timeout":                 "timeout",
	}
	// Unset flags fall back to config.Default rather than the flag defaults.
	for key, flag := range bind {
		_ = s.v.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.AddCommand(newSeedCmd(s))
	cmd.AddCommand(newUsersCmd(s))
	cmd.AddCommand(newHealthCmd(s))

	s.closeAfterRun(cmd)

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		cmd.PrintErrln("Error:", err)
		stop()
		os.Exit(1)
	}
}
