package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/bidit/skillsage/internal/advisor"
	"github.com/bidit/skillsage/internal/api"
	"github.com/bidit/skillsage/internal/career"
	"github.com/bidit/skillsage/internal/config"
	"github.com/bidit/skillsage/internal/engine"
	"github.com/bidit/skillsage/internal/gap"
	"github.com/bidit/skillsage/internal/ingest"
	"github.com/bidit/skillsage/internal/matching"
	"github.com/bidit/skillsage/internal/ollama"
	"github.com/bidit/skillsage/internal/profile"
	"github.com/bidit/skillsage/internal/recommend"
	"github.com/bidit/skillsage/internal/retrieval"
	"github.com/bidit/skillsage/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the skillsage server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show skillsage system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "skillsage version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(os.Getenv("SKILLSAGE_LOG_LEVEL"), "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	token := cfg.Server.APIToken
	if token == "" {
		token = uuid.NewString()
		printWarning("SKILLSAGE_API_TOKEN not set; using ephemeral token %s", token)
	}

	// Wire services. One instance of each backs both surfaces.
	embedder := retrieval.NewEmbedder(eng, cfg.Engine.EmbedModel)
	vectorStore := retrieval.NewSQLiteStore(store.DB())
	retriever := retrieval.NewRetriever(embedder, vectorStore, cfg.Retrieval.DistanceThreshold)
	profiles := profile.NewAdapter(store)
	careers := career.NewSource(store)
	policy := matching.Policy(strings.ToLower(cfg.Gap.Policy))

	analyzer := gap.NewAnalyzer(profiles, careers, policy, cfg.Gap.ChartCap)
	ranker := recommend.NewRanker(profiles, retriever, careers, cfg.Recommend.TopK)
	orchestrator := advisor.NewOrchestrator(
		profiles, retriever, eng, store,
		cfg.Engine.ChatModel, cfg.Retrieval.TopK, cfg.Advisor.HistoryWindow,
	)
	ingestor := ingest.NewIngestor(embedder, vectorStore, store)

	handler := api.NewHandler(api.AppDeps{
		Advisor:   orchestrator,
		Gap:       analyzer,
		Recommend: ranker,
		Profiles:  profiles,
		Ingestor:  ingestor,
		Token:     token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server on stdio, sharing the wired services.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Advisor:   orchestrator,
		Gap:       analyzer,
		Recommend: ranker,
		Profiles:  profiles,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "skillsage listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildEngine constructs the configured inference backend and reports
// readiness problems early.
func buildEngine(ctx context.Context, cfg config.Config) (engine.Engine, error) {
	switch cfg.Engine.Backend {
	case "gemini":
		eng, err := engine.NewGeminiEngine(ctx, cfg.Engine.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("initializing gemini: %w", err)
		}
		slog.Info("using gemini backend", "chat_model", cfg.Engine.ChatModel)
		return eng, nil
	default:
		client := ollama.New(cfg.Engine.OllamaURL)
		if !client.IsRunning(ctx) {
			printWarning("ollama is not reachable at %s; advisory requests will degrade", cfg.Engine.OllamaURL)
		} else {
			for _, model := range []string{cfg.Engine.ChatModel, cfg.Engine.EmbedModel} {
				if !client.HasModel(ctx, model) {
					printWarning("model %q not found; run: ollama pull %s", model, model)
				}
			}
		}
		slog.Info("using ollama backend", "url", cfg.Engine.OllamaURL, "chat_model", cfg.Engine.ChatModel)
		return engine.NewOllamaEngine(cfg.Engine.OllamaURL), nil
	}
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Engine", "%s", cfg.Engine.Backend)
	if cfg.Engine.Backend == "ollama" {
		ollamaResp, err := client.Get(cfg.Engine.OllamaURL + "/api/version")
		if err != nil {
			printStatus("Ollama", "not running")
		} else {
			ollamaResp.Body.Close()
			printStatus("Ollama", "running at %s", cfg.Engine.OllamaURL)
		}
	}
	printStatus("Chat model", "%s", cfg.Engine.ChatModel)
	printStatus("Embed model", "%s", cfg.Engine.EmbedModel)
	printStatus("Gap policy", "%s", cfg.Gap.Policy)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
