package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":        {"elevenlabs", "deepgram", "whisper-native"},
	"analysis":   {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation: warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("stt", cfg.Providers.STTFallback.Name)
	validateProviderName("analysis", cfg.Providers.Analysis.Name)
	validateProviderName("analysis", cfg.Providers.AnalysisFallback.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// Provider availability warnings. The server starts without providers and
	// reports them unconfigured via /health; requests then fail with 500.
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; uploads cannot be transcribed")
	}
	if cfg.Providers.Analysis.Name == "" {
		slog.Warn("no analysis provider configured; transcripts cannot be analyzed")
	}
	if cfg.Providers.STTFallback.Name != "" && cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt_fallback requires providers.stt"))
	}
	if cfg.Providers.AnalysisFallback.Name != "" && cfg.Providers.Analysis.Name == "" {
		errs = append(errs, errors.New("providers.analysis_fallback requires providers.analysis"))
	}

	// Pipeline
	p := cfg.Pipeline
	if p.Workers < 0 {
		errs = append(errs, fmt.Errorf("pipeline.workers %d must not be negative", p.Workers))
	}
	if p.GapThresholdMS < 0 {
		errs = append(errs, fmt.Errorf("pipeline.gap_threshold_ms %d must not be negative", p.GapThresholdMS))
	}
	if p.CallTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("pipeline.call_timeout_seconds %d must not be negative", p.CallTimeoutSeconds))
	}
	if p.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_file_size %d must not be negative", p.MaxFileSize))
	}
	if p.SanitizeAttempts < 0 {
		errs = append(errs, fmt.Errorf("pipeline.sanitize_attempts %d must not be negative", p.SanitizeAttempts))
	}
	switch p.CountPolicy {
	case "", "attempted", "succeeded":
	default:
		errs = append(errs, fmt.Errorf("pipeline.count_policy %q is invalid; valid values: attempted, succeeded", p.CountPolicy))
	}

	// Embeddings and storage dimensions
	if cfg.Providers.Embeddings.Name != "" && cfg.Storage.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but storage.embedding_dimensions is not set; defaulting to 1536")
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Storage.PostgresDSN == "" {
		slog.Warn("providers.embeddings is configured but storage.postgres_dsn is empty; similarity search will not be available")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
