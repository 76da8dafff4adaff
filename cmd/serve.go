package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/spf13/cobra"

	"github.com/kura-kb/kura/api"
	"github.com/kura-kb/kura/internal/config"
	"github.com/kura-kb/kura/internal/converter"
	"github.com/kura-kb/kura/internal/knowledge"
	"github.com/kura-kb/kura/internal/log"
	"github.com/kura-kb/kura/internal/parser"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the knowledge base HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides configuration)")
	rootCmd.AddCommand(serveCmd)
}

// runServe wires configuration, the embedding backend, the knowledge
// store, and the HTTP server, then blocks until shutdown.
func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), JSON: cfg.LogJSON})
	slog.SetDefault(logger)
	logger.Info("starting kura", "version", AppVersion, "config", cfg)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: cfg.GeminiAPIKey}))
	if g == nil {
		return fmt.Errorf("initializing genkit")
	}
	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)

	store, err := knowledge.Open(cfg.StoragePath, cfg.CollectionName, knowledge.NewEmbeddingFunc(embedder), logger)
	if err != nil {
		return fmt.Errorf("opening knowledge store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	var gen converter.Generator
	if cfg.EnhancedMode {
		gen = converter.NewGenkitGenerator(g, cfg.EnhancedModel)
	}
	p := parser.NewFromConfig(parser.Config{
		UseEnhanced: cfg.EnhancedMode,
		Model:       cfg.EnhancedModel,
		Credential:  cfg.GeminiAPIKey,
	}, gen, logger)

	svc := knowledge.NewService(p, store, logger)

	addr := cfg.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	return api.NewServer(svc, logger).Run(ctx, addr)
}
