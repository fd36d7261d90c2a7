// Command copilot-api runs the Lumenstay hotel maintenance copilot service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lumenstay/copilot/agent"
	"github.com/lumenstay/copilot/config"
	"github.com/lumenstay/copilot/httpapi"
	"github.com/lumenstay/copilot/llm"
	"github.com/lumenstay/copilot/logging"
	"github.com/lumenstay/copilot/recall"
	"github.com/lumenstay/copilot/search"
	"github.com/lumenstay/copilot/search/embedder/cached"
	"github.com/lumenstay/copilot/search/embedder/mock"
	"github.com/lumenstay/copilot/search/embedder/openai"
	"github.com/lumenstay/copilot/store"
	"github.com/lumenstay/copilot/tools"
)

var (
	cfgFile string
	seed    bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "copilot-api",
		Short:         "Hotel maintenance copilot API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "copilot.yaml", "path to config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	serveCmd.Flags().BoolVar(&seed, "seed", false, "load demo hotels and bookings into an empty database")
	cmd.AddCommand(serveCmd)

	return cmd
}

func serve(ctx context.Context) error {
	// .env is optional; the real environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(os.Stderr, cfg.Logging.Level)
	log.Info().Str("addr", cfg.Server.Addr).Str("db", cfg.Database.Path).Msg("starting")

	repo, err := store.NewSQLite(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()

	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	if seed {
		if err := store.SeedDemoData(ctx, repo); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		log.Info().Msg("demo data loaded")
	}

	emb, err := buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("build embedder: %w", err)
	}

	index := search.NewIndex()
	svc := search.NewService(emb, index, log)

	// Warm the index from persisted requests so similarity search covers
	// everything saved in earlier runs.
	requests, err := repo.MaintenanceRequests(ctx)
	if err != nil {
		return fmt.Errorf("load maintenance requests: %w", err)
	}
	for _, req := range requests {
		if err := svc.Add(ctx, req.ID, req.Details, req); err != nil {
			log.Warn().Err(err).Str("request", req.ID).Msg("skipping unindexable request")
		}
	}
	log.Info().Int("indexed", len(requests)).Msg("similarity index warmed")

	registry := tools.NewRegistry()
	if err := tools.RegisterMaintenanceTools(registry, repo, svc); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	if cfg.Model.APIKey == "" {
		return errors.New("model api key is not set (config model.api_key or ANTHROPIC_API_KEY)")
	}
	completer := llm.NewAnthropicClient(cfg.Model.APIKey)

	opts := []agent.Option{
		agent.WithModel(cfg.Model.Name),
		agent.WithMaxTokens(cfg.Model.MaxTokens),
		agent.WithMaxRounds(cfg.Model.MaxRounds),
	}
	if cfg.Recall.Enabled {
		archive := recall.New(emb, recall.Options{
			Limit:         cfg.Recall.Limit,
			MinSimilarity: cfg.Recall.MinSimilarity,
		}, log)
		opts = append(opts, agent.WithRecall(archive))
	}
	copilot := agent.New(completer, registry, log, opts...)

	api := httpapi.New(repo, svc, copilot, log)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info().Str("addr", cfg.Server.Addr).Msg("listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildEmbedder constructs the configured embedding provider wrapped in
// the in-process cache.
func buildEmbedder(cfg config.Config) (search.Embedder, error) {
	var inner search.Embedder
	switch cfg.Embedding.Provider {
	case "", "mock":
		inner = mock.New(cfg.Embedding.Dimensions)
	case "openai":
		var err error
		inner, err = openai.New(openai.Config{
			BaseURL:    cfg.Embedding.OpenAI.BaseURL,
			APIKey:     cfg.Embedding.OpenAI.APIKey,
			Model:      cfg.Embedding.OpenAI.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	if cfg.Embedding.CacheSize <= 0 {
		return inner, nil
	}
	return cached.New(inner, cfg.Embedding.CacheSize)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
