// Package commands implements the dimgraph command line
package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dimgraph/dimgraph/internal/cli/config"
	"github.com/dimgraph/dimgraph/internal/cli/ui"
	"github.com/dimgraph/dimgraph/internal/logging"
)

var (
	// Version information, set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globals holds the persistent flags
type globals struct {
	configPath string
	logLevel   string
	noColor    bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "dimgraph",
		Short: "Dimension model canvas engine",
		Long: `dimgraph lays out a fact table and its dimension tables as a tree,
resolves the ports where join edges attach, and keeps canvases in sync
through incremental diffs. It runs as an HTTP/WebSocket service or as
one-shot commands over configuration files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "config file (default ./dimgraph.yaml)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override log.level")
	rootCmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "disable coloured output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewServeCommand(g))
	rootCmd.AddCommand(NewRoutesCommand(g))
	rootCmd.AddCommand(NewLayoutCommand(g))
	rootCmd.AddCommand(NewTranslateCommand(g))
	rootCmd.AddCommand(NewValidateCommand(g))
	rootCmd.AddCommand(NewMigrateCommand(g))
	rootCmd.AddCommand(NewInitCommand(g))

	return rootCmd
}

// load reads the configuration, applying flag overrides
func (g *globals) load() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, g.problem(ui.ConfigProblem(err, g.noColor))
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
		if err := config.Validate(cfg); err != nil {
			return nil, g.problem(ui.ConfigProblem(err, g.noColor))
		}
	}
	return cfg, nil
}

// logger builds the process logger from cfg
func (g *globals) logger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// problemError carries a formatted report for Execute to print
type problemError struct {
	problem ui.Problem
}

func (e *problemError) Error() string {
	return e.problem.Message
}

func (g *globals) problem(p ui.Problem) error {
	p.NoColor = g.noColor || color.NoColor
	return &problemError{problem: p}
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			kv := ui.NewKeyValueTable(cmd.OutOrStdout(), color.NoColor)
			kv.AddRow("Version", Version)
			kv.AddRow("Git commit", GitCommit)
			kv.AddRow("Build date", BuildDate)
			kv.AddRow("Go version", runtime.Version())
			kv.Render()
		},
	}
}

// Execute runs the root command and prints failures
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		var pe *problemError
		if errors.As(err, &pe) {
			ui.WriteProblem(rootCmd.ErrOrStderr(), pe.problem)
		} else {
			ui.WriteProblem(rootCmd.ErrOrStderr(), ui.Problem{Level: ui.LevelError, Message: err.Error(), NoColor: color.NoColor})
		}
		return err
	}
	return nil
}
