// Package cli implements the pipecheck command tree.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pipecheck/internal/config"
	"pipecheck/internal/domain"
	"pipecheck/internal/logging"
	"pipecheck/internal/secret"
	"pipecheck/internal/service"
	"pipecheck/internal/storage"
)

// Version is set at build time.
var Version = "dev"

// app carries flag values and per-invocation state through the commands.
type app struct {
	configPath string
	envFile    string
	logLevel   string
	keychain   bool
	noHistory  bool
	engine     string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	logger   *zap.Logger
	exitCode int

	// overridable in tests
	options service.Options
	secrets secret.SecretStore
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	return a.execute(ctx, args)
}

func (a *app) execute(ctx context.Context, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		if a.exitCode == 0 {
			a.exitCode = 1
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return a.exitCode
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pipecheck",
		Short: "Verify a deal-sourcing pipeline's store and crawler",
		Long: `pipecheck runs the pipeline's pre-flight checks.

Run without arguments to validate that every listing field mapped to a
business_listings column exists. Credentials come from .env or the
environment: SUPABASE_URL and SUPABASE_SERVICE_KEY for the default
postgrest driver, DATABASE_URL or MONGODB_URI for the others
(select with PIPECHECK_DRIVER).

Every run is recorded in a local SQLite history (history.path, default
.pipecheck/history.db, created on first use); see "pipecheck history".
Pass --no-history or set history.disabled to skip recording.

Exit status: 0 pass, 1 check failed, 2 configuration error.`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(a.logLevel)
			if err != nil {
				a.exitCode = 2
				return err
			}
			a.logger = logger
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd.Context(), domain.CheckMapping, "")
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "YAML config file (mapping, tables, crawl, watch, history)")
	pf.StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "dotenv file to load before reading the environment")
	pf.StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	pf.BoolVar(&a.keychain, "keychain", false, "also look credentials up in the macOS keychain")
	pf.BoolVar(&a.noHistory, "no-history", false, "do not record runs in the local history database")

	root.AddCommand(
		a.validateCmd(),
		a.tablesCmd(),
		a.pingCmd(),
		a.crawlCmd(),
		a.watchCmd(),
		a.historyCmd(),
		a.mcpCmd(),
		a.secretCmd(),
	)
	return root
}

// loadConfig reads configuration. Failures are configuration errors.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath, a.envFile)
	if err != nil {
		a.exitCode = 2
		return nil, err
	}
	if a.keychain {
		cfg.Keychain = true
	}
	if a.noHistory {
		cfg.History.Disabled = true
	}
	if a.engine != "" {
		cfg.Crawl.Engine = a.engine
		if err := cfg.Validate(); err != nil {
			a.exitCode = 2
			return nil, err
		}
	}
	return cfg, nil
}

// newService wires a CheckService for cfg. The returned cleanup closes the
// history database.
func (a *app) newService(cfg *config.Config, emitter service.EventEmitter) (*service.CheckService, func()) {
	opts := a.options
	opts.Logger = a.logger
	if emitter != nil {
		opts.Emitter = emitter
	}
	cleanup := func() {}

	if !cfg.History.Disabled && opts.History == nil {
		db, err := storage.New(cfg.History.Path)
		if err != nil {
			a.logger.Warn("history disabled", zap.String("path", cfg.History.Path), zap.Error(err))
		} else {
			a.logger.Debug("history enabled", zap.String("path", db.Path()))
			opts.History = storage.NewHistoryStore(db)
			cleanup = func() { db.Close() }
		}
	}
	secrets := cfg.Secrets()
	if a.secrets != nil {
		secrets = a.secrets
	}
	return service.NewCheckService(cfg, secrets, opts), cleanup
}

// runCheck runs one check, prints its report and records the exit code.
func (a *app) runCheck(ctx context.Context, name, arg string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		fmt.Fprintf(a.stdout, "FAIL: %v\n", err)
		return nil
	}
	svc, cleanup := a.newService(cfg, nil)
	defer cleanup()

	rr, err := svc.Run(ctx, name, arg)
	if err != nil {
		return err
	}
	rr.Report(a.stdout)
	a.exitCode = rr.Outcome().ExitCode()
	return nil
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the listing field mapping against business_listings (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd.Context(), domain.CheckMapping, "")
		},
	}
}

func (a *app) tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "Check that every pipeline table exists with its expected columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd.Context(), domain.CheckTables, "")
		},
	}
}

func (a *app) crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url]",
		Short: "Crawl one page and report its words, title and links",
		Long: `Crawls a single URL (default https://acquire.com/marketplace) to verify the
crawler works. Requires DEEPSEEK_API_KEY or OPENAI_API_KEY to be configured.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := ""
			if len(args) == 1 {
				url = args[0]
			}
			return a.runCheck(cmd.Context(), domain.CheckCrawl, url)
		},
	}
	cmd.Flags().StringVar(&a.engine, "engine", "", "crawl engine: browser or http (overrides config)")
	return cmd
}

func (a *app) pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test the store connection without probing any table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				fmt.Fprintf(a.stdout, "FAIL: %v\n", err)
				return nil
			}
			svc, cleanup := a.newService(cfg, nil)
			defer cleanup()

			if err := svc.Ping(cmd.Context()); err != nil {
				fmt.Fprintf(a.stdout, "FAIL: %v\n", err)
				a.exitCode = 1
				if service.IsConfigurationError(err) {
					a.exitCode = 2
				}
				return nil
			}
			fmt.Fprintf(a.stdout, "OK: connected to %s store\n", cfg.Store.Driver)
			return nil
		},
	}
}
