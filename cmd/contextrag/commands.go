package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xcro3dile/contextrag-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/config"
	httpserver "github.com/0xcro3dile/contextrag-go/internal/infrastructure/http"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	dimColor    = color.New(color.FgHiBlack)
	okColor     = color.New(color.FgGreen)
	failColor   = color.New(color.FgRed)
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			a, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.KB.Enabled && cfg.KB.Watch {
				watcher, err := filewatcher.NewFSNotifyWatcher(a.loader.SupportedExtensions(), logger)
				if err != nil {
					return err
				}
				defer watcher.Stop()
				if err := a.kb.Follow(ctx, watcher, cfg.KB.Dir); err != nil {
					logger.Warn("knowledge base watch disabled", zap.String("dir", cfg.KB.Dir), zap.Error(err))
				}
			}

			server := httpserver.NewServer(httpserver.Deps{
				Pipeline: a.pipeline,
				KB:       a.kb,
				KBConfig: httpserver.KBSettings{
					Dir:          cfg.KB.Dir,
					ChunkChars:   cfg.KB.ChunkChars,
					OverlapChars: cfg.KB.OverlapChars,
				},
				Catalog: a.catalog,
			}, cfg.Server.Addr, logger)
			return server.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

type askFlags struct {
	system    string
	thinking  bool
	session   string
	chain     bool
	noSearch  bool
	noKB      bool
	noAPI     bool
	enhanced  bool
	images    string
	translate bool
	answer    string
	maxChars  int
	userImage []string
	jsonOut   bool
}

func newAskCommand(opts *globalOptions) *cobra.Command {
	f := &askFlags{}
	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Run one prompt through the pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			req, err := f.request(a.pipeline.DefaultRequest(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			res := a.pipeline.Run(cmd.Context(), req)
			if f.jsonOut {
				return writeJSONTo(cmd.OutOrStdout(), res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.system, "system", "s", "", "system prompt")
	fl.BoolVar(&f.thinking, "thinking", false, "show the model's reasoning")
	fl.StringVar(&f.session, "session", "", "session id for context chaining")
	fl.BoolVar(&f.chain, "chain", false, "persist and replay conversation turns")
	fl.BoolVar(&f.noSearch, "no-search", false, "disable live search")
	fl.BoolVar(&f.noKB, "no-kb", false, "disable the knowledge base")
	fl.BoolVar(&f.noAPI, "no-api", false, "disable routed API providers")
	fl.BoolVar(&f.enhanced, "enhanced", false, "add the HTML search scraper")
	fl.StringVar(&f.images, "images", "", "image provider: unsplash, bing, pexels, none")
	fl.BoolVar(&f.translate, "translate", false, "translate the prompt before retrieval")
	fl.StringVar(&f.answer, "answer-language", "", "answer language code")
	fl.IntVar(&f.maxChars, "max-context", 0, "context character budget")
	fl.StringSliceVar(&f.userImage, "image", nil, "image file to attach (repeatable)")
	fl.BoolVar(&f.jsonOut, "json", false, "print the raw result as JSON")
	return cmd
}

// request applies flags over the pipeline defaults.
func (f *askFlags) request(req entities.RunRequest, prompt string) (entities.RunRequest, error) {
	req.UserPrompt = prompt
	req.SystemPrompt = f.system
	req.Thinking = f.thinking
	if f.session != "" {
		req.SessionID = f.session
	}
	if f.chain {
		req.ContextChaining = true
	}
	if f.noSearch {
		req.UseLiveSearch = false
	}
	if f.noKB {
		req.UseKnowledgeBase = false
	}
	if f.noAPI {
		req.UseMultiAPI = false
	}
	if f.enhanced {
		req.EnhancedSearch = true
	}
	if f.images != "" {
		req.ImageProvider = f.images
	}
	if f.translate {
		req.AutoTranslate = true
	}
	if f.answer != "" {
		req.AnswerLanguage = f.answer
	}
	if f.maxChars > 0 {
		req.MaxContextChars = f.maxChars
	}
	for _, path := range f.userImage {
		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("reading image: %w", err)
		}
		req.Images = append(req.Images, entities.UserImage{
			Data:        base64.StdEncoding.EncodeToString(data),
			Description: path,
		})
	}
	return req, nil
}

func printResult(w io.Writer, res entities.RunResult) {
	if res.Thinking != "" {
		headerColor.Fprintln(w, "Thinking")
		dimColor.Fprintln(w, res.Thinking)
		fmt.Fprintln(w)
	}
	headerColor.Fprintln(w, "Answer")
	fmt.Fprintln(w, res.Final)

	if len(res.Sources) > 0 {
		fmt.Fprintln(w)
		headerColor.Fprintln(w, "Sources")
		for _, s := range res.Sources {
			fmt.Fprintf(w, "[%d] %s ", s.N, s.Title)
			dimColor.Fprintf(w, "(%s) %s\n", s.Type, s.URL)
		}
	}
	if len(res.Citations) > 0 {
		fmt.Fprintln(w)
		headerColor.Fprintln(w, "Citations")
		for _, c := range res.Citations {
			fmt.Fprintln(w, "  "+c)
		}
	}
	dimColor.Fprintf(w, "\nmodel=%s profile=%s context=%d transport=%s took=%s\n",
		res.Info.Model, res.Info.Profile, res.Info.ContextChars, res.Info.Transport, res.Info.Duration)
}

func printProviders(w io.Writer, sum entities.ProviderSummary) {
	images := "none"
	if len(sum.Images) > 0 {
		images = strings.Join(sum.Images, ", ")
	}
	fmt.Fprintf(w, "  image providers: %s\n  translators:     %d\n", images, sum.Translators)
}

func newIndexCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index [dir]",
		Short: "Build the knowledge-base index and print its stats",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			dir := cfg.KB.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if err := a.kb.Ensure(cmd.Context(), dir, cfg.KB.ChunkChars, cfg.KB.OverlapChars); err != nil {
				return err
			}
			st := a.kb.Stats(dir)
			out := cmd.OutOrStdout()
			okColor.Fprintf(out, "indexed %s\n", st.Dir)
			fmt.Fprintf(out, "  chunks:    %d\n  terms:     %d\n  signature: %s\n", st.Chunks, st.Terms, st.Signature)
			return nil
		},
	}
}

func newModelsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List locally installed models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			models, err := a.catalog.Models(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range models {
				if m == cfg.Ollama.Model {
					okColor.Fprintf(cmd.OutOrStdout(), "* %s\n", m)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", m)
			}
			return nil
		},
	}
}

func newHealthCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the Ollama endpoint responds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.catalog.Healthy(cmd.Context()) {
				failColor.Fprintf(cmd.ErrOrStderr(), "ollama unreachable at %s\n", cfg.Ollama.URL)
				return fmt.Errorf("ollama unreachable")
			}
			out := cmd.OutOrStdout()
			okColor.Fprintf(out, "ollama ok at %s\n", cfg.Ollama.URL)
			printProviders(out, a.pipeline.Providers())
			return nil
		},
	}
}

func newConfigCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(opts.ConfigPath); err == nil && !force {
				return fmt.Errorf("%s exists (use --force to overwrite)", opts.ConfigPath)
			}
			if err := config.Default().Save(opts.ConfigPath); err != nil {
				return err
			}
			okColor.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.ConfigPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			return writeYAMLTo(cmd.OutOrStdout(), cfg)
		},
	}
	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
