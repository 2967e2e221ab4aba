// Command callsight is the main entry point for the Callsight call-analysis server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/callsight/callsight/internal/batch"
	"github.com/callsight/callsight/internal/config"
	"github.com/callsight/callsight/internal/health"
	"github.com/callsight/callsight/internal/observe"
	"github.com/callsight/callsight/internal/report"
	reportpg "github.com/callsight/callsight/internal/report/postgres"
	"github.com/callsight/callsight/internal/resilience"
	"github.com/callsight/callsight/internal/server"
	"github.com/callsight/callsight/internal/vocab"
	"github.com/callsight/callsight/pkg/provider/analysis"
	analysisanyllm "github.com/callsight/callsight/pkg/provider/analysis/anyllm"
	analysisopenai "github.com/callsight/callsight/pkg/provider/analysis/openai"
	"github.com/callsight/callsight/pkg/provider/embeddings"
	ollamaembed "github.com/callsight/callsight/pkg/provider/embeddings/ollama"
	oaembed "github.com/callsight/callsight/pkg/provider/embeddings/openai"
	"github.com/callsight/callsight/pkg/provider/stt"
	"github.com/callsight/callsight/pkg/provider/stt/deepgram"
	"github.com/callsight/callsight/pkg/provider/stt/elevenlabs"
	"github.com/callsight/callsight/pkg/provider/stt/whisper"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "callsight: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "callsight: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("callsight starting",
		"version", version,
		"config", *configPath,
		"listen_addr", listenAddr(cfg),
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "callsight",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg.Pipeline)

	sttProvider, analysisProvider, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Report archive (optional) ─────────────────────────────────────────────
	var (
		store    report.Store
		archiver *report.Archiver
		checkers []health.Checker
	)
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		embedder := buildEmbedder(cfg, reg)
		dims := resolveEmbeddingDims(cfg.Storage.EmbeddingDimensions, embedder)
		pg, err := reportpg.NewStore(ctx, dsn, dims)
		if err != nil {
			slog.Error("failed to connect report archive", "err", err)
			return 1
		}
		defer pg.Close()
		store = pg
		checkers = append(checkers, health.Checker{Name: "postgres", Check: pg.Ping})

		archiverOpts := []report.ArchiverOption{}
		if embedder != nil {
			archiverOpts = append(archiverOpts, report.WithEmbedder(embedder))
		}
		archiver = report.NewArchiver(store, archiverOpts...)
		slog.Info("report archive connected", "embedding_dimensions", dims)
	}

	// ── Batch orchestrator ────────────────────────────────────────────────────
	hub := server.NewHub()

	var runner server.Runner
	if sttProvider != nil && analysisProvider != nil {
		runner = buildOrchestrator(cfg, sttProvider, analysisProvider, hub)
	} else {
		slog.Warn("pipeline disabled: both an STT and an analysis provider are required")
	}
	checkers = append(checkers, health.Checker{
		Name: "providers",
		Check: func(context.Context) error {
			if runner == nil {
				return errors.New("stt and analysis providers are not both configured")
			}
			return nil
		},
	})

	printStartupSummary(cfg)

	// ── HTTP server ───────────────────────────────────────────────────────────
	srvOpts := []server.Option{
		server.WithArchiver(archiver),
		server.WithStore(store),
		server.WithProgressHub(hub),
		server.WithProviderStatus(sttProvider != nil, analysisProvider != nil),
		server.WithHealthCheckers(checkers...),
	}
	if cfg.Pipeline.MaxFileSize > 0 {
		// Leave headroom for multipart framing around the per-file cap.
		srvOpts = append(srvOpts, server.WithMaxRequestBytes(cfg.Pipeline.MaxFileSize*16))
	}
	srv := server.New(runner, srvOpts...)

	httpServer := &http.Server{
		Addr:              listenAddr(cfg),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if tls := cfg.Server.TLS; tls != nil {
			serveErr <- httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			serveErr <- httpServer.ListenAndServe()
		}
	}()

	slog.Info("server ready — press Ctrl+C to shut down", "addr", httpServer.Addr)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry, pipeline config.PipelineConfig) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("elevenlabs", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		if tagAudio, ok := entry.Options["tag_audio_events"].(bool); ok {
			opts = append(opts, elevenlabs.WithAudioEventTags(tagAudio))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.Option
		if pipeline.Language != "" {
			opts = append(opts, whisper.WithLanguage(pipeline.Language))
		}
		return whisper.New(modelPath, opts...)
	})

	// ── Analysis ──────────────────────────────────────────────────────────────
	// openai uses the official SDK for structured-output support; the rest go
	// through the any-llm bridge.

	reg.RegisterAnalysis("openai", func(entry config.ProviderEntry) (analysis.Provider, error) {
		var opts []analysisopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, analysisopenai.WithBaseURL(entry.BaseURL))
		}
		if pipeline.SanitizeAttempts > 0 {
			opts = append(opts, analysisopenai.WithSanitizeAttempts(pipeline.SanitizeAttempts))
		}
		return analysisopenai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterAnalysis(providerName, func(entry config.ProviderEntry) (analysis.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := analysisanyllm.New(providerName, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			if pipeline.SanitizeAttempts > 0 {
				p.SetSanitizeAttempts(pipeline.SanitizeAttempts)
			}
			return p, nil
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterAnalysis("ollama", func(entry config.ProviderEntry) (analysis.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		p, err := analysisanyllm.New("ollama", entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		if pipeline.SanitizeAttempts > 0 {
			p.SetSanitizeAttempts(pipeline.SanitizeAttempts)
		}
		return p, nil
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})
}

// buildProviders instantiates the configured STT and analysis providers.
// When a fallback STT provider is configured, the primary is wrapped in a
// circuit-breaking fallback group.
func buildProviders(cfg *config.Config, reg *config.Registry) (stt.Provider, analysis.Provider, error) {
	var sttProvider stt.Provider
	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return nil, nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		sttProvider = p
		slog.Info("provider created", "kind", "stt", "name", name)

		if fbName := cfg.Providers.STTFallback.Name; fbName != "" {
			fb, err := reg.CreateSTT(cfg.Providers.STTFallback)
			if err != nil {
				return nil, nil, fmt.Errorf("create stt fallback %q: %w", fbName, err)
			}
			group := resilience.NewSTTFallback(sttProvider, name, resilience.FallbackConfig{
				CircuitBreaker: resilience.CircuitBreakerConfig{
					MaxFailures:  3,
					ResetTimeout: 30 * time.Second,
					HalfOpenMax:  1,
				},
			})
			group.AddFallback(fbName, fb)
			sttProvider = group
			slog.Info("provider created", "kind", "stt_fallback", "name", fbName)
		}
	}

	var analysisProvider analysis.Provider
	if name := cfg.Providers.Analysis.Name; name != "" {
		p, err := reg.CreateAnalysis(cfg.Providers.Analysis)
		if err != nil {
			return nil, nil, fmt.Errorf("create analysis provider %q: %w", name, err)
		}
		analysisProvider = p
		slog.Info("provider created", "kind", "analysis", "name", name)

		if fbName := cfg.Providers.AnalysisFallback.Name; fbName != "" {
			fb, err := reg.CreateAnalysis(cfg.Providers.AnalysisFallback)
			if err != nil {
				return nil, nil, fmt.Errorf("create analysis fallback %q: %w", fbName, err)
			}
			group := resilience.NewAnalysisFallback(analysisProvider, name, resilience.FallbackConfig{
				CircuitBreaker: resilience.CircuitBreakerConfig{
					MaxFailures:  3,
					ResetTimeout: 30 * time.Second,
					HalfOpenMax:  1,
				},
			})
			group.AddFallback(fbName, fb)
			analysisProvider = group
			slog.Info("provider created", "kind", "analysis_fallback", "name", fbName)
		}
	}

	return sttProvider, analysisProvider, nil
}

// buildEmbedder instantiates the embeddings provider, or returns nil when
// none is configured or construction fails. Embeddings are optional; a broken
// embedder should not keep the server from starting.
func buildEmbedder(cfg *config.Config, reg *config.Registry) embeddings.Provider {
	name := cfg.Providers.Embeddings.Name
	if name == "" {
		return nil
	}
	p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
	if err != nil {
		slog.Warn("embeddings provider unavailable, similarity search disabled", "name", name, "err", err)
		return nil
	}
	slog.Info("provider created", "kind", "embeddings", "name", name)
	return p
}

// resolveEmbeddingDims picks the width of the archive's embedding column. An
// explicit storage.embedding_dimensions wins; otherwise the embedder reports
// its own model's dimension. 1536 covers the no-embedder case, where the
// column is never written anyway.
func resolveEmbeddingDims(configured int, embedder embeddings.Provider) int {
	if configured > 0 {
		return configured
	}
	if embedder != nil {
		if dims := embedder.Dimensions(); dims > 0 {
			return dims
		}
	}
	return 1536
}

// buildOrchestrator assembles the batch pipeline from the pipeline config.
func buildOrchestrator(cfg *config.Config, sttProvider stt.Provider, analysisProvider analysis.Provider, hub *server.Hub) *batch.Orchestrator {
	p := cfg.Pipeline

	opts := []batch.Option{
		batch.WithProgressSink(hub),
		batch.WithProviderNames(cfg.Providers.STT.Name, cfg.Providers.Analysis.Name),
	}
	if p.Workers > 0 {
		opts = append(opts, batch.WithWorkers(p.Workers))
	}
	if p.GapThresholdMS > 0 {
		opts = append(opts, batch.WithGapThreshold(p.GapThresholdMS))
	}
	if p.CallTimeoutSeconds > 0 {
		opts = append(opts, batch.WithCallTimeout(time.Duration(p.CallTimeoutSeconds)*time.Second))
	}
	if p.CountPolicy != "" {
		opts = append(opts, batch.WithCountPolicy(batch.CountPolicy(p.CountPolicy)))
	}
	if p.MaxFileSize > 0 {
		opts = append(opts, batch.WithMaxFileSize(p.MaxFileSize))
	}
	if len(p.AllowedExtensions) > 0 {
		opts = append(opts, batch.WithAllowedExtensions(p.AllowedExtensions))
	}
	if len(p.Vocabulary) > 0 {
		opts = append(opts, batch.WithCorrector(vocab.New(p.Vocabulary)))
	}
	if p.Language != "" {
		opts = append(opts, batch.WithLanguage(p.Language))
	}

	return batch.New(sttProvider, analysisProvider, opts...)
}

// listenAddr returns the configured listen address or the default ":8080".
func listenAddr(cfg *config.Config) string {
	if cfg.Server.ListenAddr != "" {
		return cfg.Server.ListenAddr
	}
	return ":8080"
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Callsight — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("STT fallback", cfg.Providers.STTFallback.Name, cfg.Providers.STTFallback.Model)
	printProvider("Analysis", cfg.Providers.Analysis.Name, cfg.Providers.Analysis.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	if cfg.Storage.PostgresDSN != "" {
		fmt.Printf("║  Archive         : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Archive         : %-19s ║\n", "(disabled)")
	}
	fmt.Printf("║  Vocabulary      : %-19d ║\n", len(cfg.Pipeline.Vocabulary))
	fmt.Printf("║  Listen addr     : %-19s ║\n", listenAddr(cfg))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
