// Command contextrag assembles retrieval-augmented prompts for a local
// Ollama model and serves them over HTTP or the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/config"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/logging"
)

type globalOptions struct {
	ConfigPath string
	LogLevel   string
	OllamaURL  string
	Model      string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "contextrag",
		Short:         "Context-assembling RAG front end for Ollama",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "contextrag.yaml", "config file (YAML)")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.OllamaURL, "ollama-url", "", "Ollama base URL")
	root.PersistentFlags().StringVar(&opts.Model, "model", "", "default model")

	root.AddCommand(
		newServeCommand(opts),
		newAskCommand(opts),
		newIndexCommand(opts),
		newModelsCommand(opts),
		newHealthCommand(opts),
		newConfigCommand(opts),
	)
	return root
}

// load reads the config file and applies flag overrides.
func (o *globalOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.OllamaURL != "" {
		cfg.Ollama.URL = o.OllamaURL
	}
	if o.Model != "" {
		cfg.Ollama.Model = o.Model
	}
	cfg.Normalize()

	logger, _, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("setting up logging: %w", err)
	}
	return cfg, logger, nil
}
