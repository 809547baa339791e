// Package cli implements the lexis command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
	"github.com/custodia-labs/lexis/internal/core/ports/driving"
	"github.com/custodia-labs/lexis/internal/logger"
)

// Runtime builds the services commands run against.
type Runtime interface {
	Settings() driving.SettingsService
	Resolved() (*domain.AppSettings, error)
	IndexInfo(ctx context.Context) (*domain.IndexInfo, error)
	Documents(ctx context.Context) ([]domain.Document, error)
	Retrieval(ctx context.Context) (driving.RetrievalService, error)
	Answers(ctx context.Context) (driving.AnswerService, error)
	Evaluation(ctx context.Context, sink driven.EvaluationSink) (driving.EvaluationService, error)
	Ingest(ctx context.Context, root string, resume bool) (driving.IngestService, driven.Corpus, error)
	Attachment(ctx context.Context, path string) (*domain.Attachment, error)
	Close() error
}

// RuntimeFactory creates the runtime once flags are parsed.
type RuntimeFactory func(configPath string) (Runtime, error)

var (
	version = "dev"

	verbose    bool
	configPath string
	envFile    string

	runtimeFactory RuntimeFactory
	rt             Runtime
)

var rootCmd = &cobra.Command{
	Use:   "lexis",
	Short: "Question answering over a legal document corpus",
	Long: `Lexis indexes a directory of legal documents (PDF, scanned images and
plain text) and answers questions grounded in the retrieved passages.

Configure providers with 'lexis config set' or environment variables,
build an index with 'lexis index build <dir>', then ask questions.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.lexis/config.toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration")
}

// SetVersion sets the version reported by 'lexis version'.
func SetVersion(v string) {
	version = v
}

// SetRuntimeFactory sets how the runtime is built.
func SetRuntimeFactory(f RuntimeFactory) {
	runtimeFactory = f
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	defer func() {
		if rt != nil {
			rt.Close()
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("loading %s: %v", envFile, err)
		}
	}

	if rt == nil {
		if runtimeFactory == nil {
			return errors.New("runtime not configured")
		}
		r, err := runtimeFactory(configPath)
		if err != nil {
			return err
		}
		rt = r
	}

	// Commands that fix or report configuration must run on broken settings.
	if skipsResolution(cmd) {
		return nil
	}

	settings, err := rt.Resolved()
	if err != nil {
		return fmt.Errorf("%w\nRun 'lexis config show' to inspect settings", err)
	}
	if settings.Log.File != "" {
		if err := logger.SetFile(settings.Log.File); err != nil {
			logger.Warn("log file %s: %v", settings.Log.File, err)
		}
	}
	return nil
}

func skipsResolution(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c == configCmd || c == versionCmd {
			return true
		}
	}
	return false
}

func currentRuntime() (Runtime, error) {
	if rt == nil {
		return nil, errors.New("runtime not configured")
	}
	return rt, nil
}
