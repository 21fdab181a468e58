// Package cli builds the secboard command tree. Configuration comes from
// flags, SECBOARD_* environment variables and an optional YAML file, in that
// order of precedence.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/raysh454/secboard/internal/app"
	"github.com/raysh454/secboard/internal/logging"
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// rootOptions is the state shared by every subcommand of one command tree.
type rootOptions struct {
	v       *viper.Viper
	cfgFile string
	noCache bool

	cfg    *app.Config
	logger *logging.LogrusLogger
}

// NewRootCommand returns the secboard root command with all subcommands.
func NewRootCommand(info BuildInfo) *cobra.Command {
	o := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:   "secboard",
		Short: "Secboard - security posture dashboard backend",
		Long: `Secboard runs domain security scans against the full-scan service for the
domain of a signed-in user's email, caches the latest result and serves it to
the dashboard over HTTP and WebSocket.`,
		Version:       info.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := o.initConfig(); err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return o.initLogging()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if o.logger != nil {
				return o.logger.Close()
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&o.cfgFile, "config", "c", "", "config file (default is $HOME/.secboard/config.yaml)")
	pf.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "json", "log format (text, json)")
	pf.String("log-file", "", "log file path")
	pf.String("api-url", "", "full-scan service base URL")
	pf.String("cache-path", "", "SQLite cache file (default is $HOME/.secboard/cache.db)")
	pf.BoolVar(&o.noCache, "no-cache", false, "keep scan results in memory only")

	_ = o.v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = o.v.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = o.v.BindPFlag("log.file", pf.Lookup("log-file"))
	_ = o.v.BindPFlag("api.base_url", pf.Lookup("api-url"))
	_ = o.v.BindPFlag("cache.path", pf.Lookup("cache-path"))

	root.AddCommand(newServeCommand(o))
	root.AddCommand(newScanCommand(o))
	root.AddCommand(newLastCommand(o))
	root.AddCommand(newVersionCommand(info))

	root.SetVersionTemplate(fmt.Sprintf("Secboard %s (commit %s, built %s)\n", info.Version, info.Commit, info.BuildDate))
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute(info BuildInfo) {
	if err := NewRootCommand(info).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (o *rootOptions) initConfig() error {
	app.SetDefaults(o.v)
	app.BindEnv(o.v)

	if o.cfgFile != "" {
		o.v.SetConfigFile(o.cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			o.v.AddConfigPath(filepath.Join(home, ".secboard"))
		}
		o.v.AddConfigPath("/etc/secboard/")
		o.v.AddConfigPath(".")
		o.v.SetConfigName("config")
		o.v.SetConfigType("yaml")
	}

	if err := o.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	cfg, err := app.LoadConfig(o.v)
	if err != nil {
		return err
	}
	if o.noCache {
		cfg.CachePath = ""
	}
	o.cfg = cfg
	return nil
}

func (o *rootOptions) initLogging() error {
	logger, err := logging.New(o.cfg.Log)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	o.logger = logger
	if used := o.v.ConfigFileUsed(); used != "" {
		logger.Debug("using config file", logging.Field{Key: "path", Value: used})
	}
	return nil
}
