// Package config provides configuration loading, validation, and management
// for the writing pipeline.
//
// KEY PRINCIPLES:
//
//  1. SEPARATION OF CONCERNS:
//     - Project Config: per-workspace settings saved to .paperwright/config.json
//     - Constants: hardcoded algorithm parameters that users should not modify
//     - State/Metadata: run status, timestamps, etc. belong in the DATABASE, never in config
//
//  2. SCHEMA VERSIONING: all config changes MUST increment SchemaVersion to
//     prevent breaking changes for existing installations.
//
//  3. GLOBAL SINGLETON: a single global Config instance is maintained in
//     memory, protected by mutex for thread safety.
//
//  4. VALUE-BASED ACCESS: GetConfig() returns the config BY VALUE (copy, not
//     reference) to prevent external mutation. All updates MUST go through the
//     Update* functions, which validate and persist atomically.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"paperwright/pkg/logx"
)

// Global config instance with mutex protection.
// projectDir is set once during LoadConfig and never changes - it defines where
// all paperwright files are stored relative to the workspace root.
//
//nolint:gochecknoglobals // Intentional singleton pattern for config management
var (
	config     *Config
	projectDir string       // Immutable after LoadConfig - set once at startup
	logger     *logx.Logger // Package logger for config operations
	mu         sync.RWMutex
)

// getLogger returns the config logger, initializing it if needed.
func getLogger() *logx.Logger {
	if logger == nil {
		logger = logx.NewLogger("config")
	}
	return logger
}

// LogInfo logs an info message using the config logger.
// This is exposed for other packages (like main) to use consistent logging.
func LogInfo(format string, args ...interface{}) {
	getLogger().Info(format, args...)
}

// ModelInfo contains static information about a known LLM model.
// This data is hardcoded in the application, not user-configurable.
type ModelInfo struct {
	Provider         string  // API provider (anthropic, openai, google, openrouter)
	InputCPM         float64 // Cost per million input tokens (USD)
	OutputCPM        float64 // Cost per million output tokens (USD)
	MaxContextTokens int     // Maximum context window size in tokens
	MaxOutputTokens  int     // Maximum output tokens per request
}

// KnownModels registry contains pricing and provider information for common models.
// This is optional - unknown models will be inferred via ProviderPatterns.
//
//nolint:gochecknoglobals // Intentional global for static model registry
var KnownModels = map[string]ModelInfo{
	// Claude models (Anthropic)
	ModelClaudeHaiku45: {
		Provider:         ProviderAnthropic,
		InputCPM:         1.0,
		OutputCPM:        5.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  8192,
	},
	ModelClaudeSonnet45: {
		Provider:         ProviderAnthropic,
		InputCPM:         3.0,
		OutputCPM:        15.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  8192,
	},
	ModelClaudeOpus45: {
		Provider:         ProviderAnthropic,
		InputCPM:         15.0,
		OutputCPM:        75.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  16384,
	},

	// Google Gemini models
	"gemini-2.0-flash": {
		Provider:         ProviderGoogle,
		InputCPM:         0.10,
		OutputCPM:        0.40,
		MaxContextTokens: 1048576,
		MaxOutputTokens:  8192,
	},
	ModelGeminiFlash25: {
		Provider:         ProviderGoogle,
		InputCPM:         0.30,
		OutputCPM:        2.50,
		MaxContextTokens: 1048576,
		MaxOutputTokens:  65536,
	},

	// OpenAI GPT models
	"gpt-4o": {
		Provider:         ProviderOpenAI,
		InputCPM:         2.5,
		OutputCPM:        10.0,
		MaxContextTokens: 128000,
		MaxOutputTokens:  4096,
	},
}

// ProviderPattern represents a pattern for inferring provider from model name.
type ProviderPattern struct {
	Prefix   string
	Provider string
}

// ProviderPatterns defines rules for inferring providers from unknown model names.
// Allows using new models without code changes.
//
//nolint:gochecknoglobals // Intentional global for inference rules
var ProviderPatterns = []ProviderPattern{
	{"claude", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"o1", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"gemini", ProviderGoogle},
}

// GetModelProvider returns the API provider for a given model.
// Vendor-slashed names (e.g. "google/gemini-2.5-flash-image-preview") are
// OpenRouter routes; everything else checks KnownModels, then prefix patterns.
// Returns error if the model cannot be mapped to a provider (FATAL).
func GetModelProvider(modelName string) (string, error) {
	if strings.Contains(modelName, "/") {
		return ProviderOpenRouter, nil
	}

	if info, exists := KnownModels[modelName]; exists {
		return info.Provider, nil
	}

	for i := range ProviderPatterns {
		if strings.HasPrefix(modelName, ProviderPatterns[i].Prefix) {
			return ProviderPatterns[i].Provider, nil
		}
	}

	return "", fmt.Errorf("unknown model '%s': no known provider mapping or pattern match - cannot determine API provider", modelName)
}

// GetModelInfo returns the ModelInfo for a given model name.
// Returns the info and true if found in KnownModels, or a default info with
// inferred provider and false if not found.
func GetModelInfo(modelName string) (ModelInfo, bool) {
	if info, exists := KnownModels[modelName]; exists {
		return info, true
	}

	provider, _ := GetModelProvider(modelName)

	// Conservative defaults for unknown models: no cost tracking.
	return ModelInfo{
		Provider:         provider,
		InputCPM:         0.0,
		OutputCPM:        0.0,
		MaxContextTokens: 32000,
		MaxOutputTokens:  4096,
	}, false
}

// EffortLevel selects a model tier without naming a model.
type EffortLevel string

// Effort level constants.
const (
	EffortLow    EffortLevel = "low"
	EffortMedium EffortLevel = "medium"
	EffortHigh   EffortLevel = "high"
)

// EffortModels maps effort levels to concrete models.
//
//nolint:gochecknoglobals // Intentional global for static tier mapping
var EffortModels = map[EffortLevel]string{
	EffortLow:    ModelClaudeHaiku45,
	EffortMedium: ModelClaudeSonnet45,
	EffortHigh:   ModelClaudeOpus45,
}

// ModelForEffort resolves an effort level to its model name.
func ModelForEffort(level EffortLevel) (string, error) {
	model, ok := EffortModels[level]
	if !ok {
		return "", fmt.Errorf("unknown effort level '%s': must be %s, %s or %s", level, EffortLow, EffortMedium, EffortHigh)
	}
	return model, nil
}

// All constants bundled together for easy maintenance.
const (
	// Model name constants.
	ModelClaudeHaiku45  = "claude-haiku-4-5"
	ModelClaudeSonnet45 = "claude-sonnet-4-5"
	ModelClaudeOpus45   = "claude-opus-4-5"
	ModelGeminiFlash25  = "gemini-2.5-flash"

	// Defaults for the writer pipeline.
	DefaultWriterModel   = ModelClaudeSonnet45
	DefaultMaxTurns      = 500
	DefaultOutputDirName = "writing_outputs"

	// Defaults for schematic generation.
	DefaultSchematicModel       = "google/gemini-2.5-flash-image-preview"
	DefaultSchematicReviewModel = ModelGeminiFlash25
	DefaultSchematicMaxAttempts = 2
	DefaultMetricsNamespace     = "paperwright"
	DefaultLogRotationCount     = 4
	DefaultHealthListenAddr     = ":8085"

	// Source mode constants - how the authoring agent is driven.
	SourceModeAPI = "api" // Default: direct Anthropic API with a local tool loop
	SourceModeCLI = "cli" // Drive the claude CLI as a subprocess

	// Project config constants.
	ProjectConfigFilename = "config.json"
	ProjectConfigDir      = ".paperwright"
	DatabaseFilename      = "paperwright.db"
	SchemaVersion         = "1.0"

	// Provider constants.
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderGoogle     = "google"
	ProviderOpenRouter = "openrouter"

	// API key environment variable names.
	EnvAnthropicAPIKey  = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey     = "OPENAI_API_KEY"
	EnvOpenRouterAPIKey = "OPENROUTER_API_KEY"
	EnvGoogleAPIKey     = "GOOGLE_GENAI_API_KEY"

	// EnvAutoContinue disables the stop-hook continuation nudge when set to
	// "false", "0" or "no".
	EnvAutoContinue = "PAPERWRIGHT_AUTO_CONTINUE"

	// EnvSecretsPassword unlocks the encrypted secrets file without an
	// interactive prompt.
	EnvSecretsPassword = "PAPERWRIGHT_SECRETS_PASSWORD"

	// EnvSchematicModel and EnvSchematicReviewModel carry the project's
	// schematic model choices to the schematic tool, which the writer agent
	// invokes as a shell command.
	EnvSchematicModel       = "PAPERWRIGHT_SCHEMATIC_MODEL"
	EnvSchematicReviewModel = "PAPERWRIGHT_SCHEMATIC_REVIEW_MODEL"
)

// WriterConfig defines how authoring runs are driven.
type WriterConfig struct {
	Model        string `json:"model"`                   // Model name (mapped to provider via KnownModels)
	EffortLevel  string `json:"effort_level,omitempty"`  // Optional tier ("low", "medium", "high") overriding Model
	MaxTurns     int    `json:"max_turns"`               // Conversation turn cap per run
	OutputDir    string `json:"output_dir,omitempty"`    // Custom output parent (default: <workdir>/writing_outputs)
	SourceMode   string `json:"source_mode"`             // "api" or "cli"
	AutoContinue *bool  `json:"auto_continue,omitempty"` // Stop-hook continuation (nil = enabled)
	DeleteInputs bool   `json:"delete_inputs"`           // Remove originals after ingestion
}

// MetricsConfig defines configuration for metrics collection.
type MetricsConfig struct {
	Enabled       bool   `json:"enabled"`        // Whether metrics collection is enabled
	Namespace     string `json:"namespace"`      // Metrics namespace for grouping
	ListenAddr    string `json:"listen_addr"`    // Address for the /metrics and /healthz listener
	PrometheusURL string `json:"prometheus_url"` // Prometheus server URL for querying metrics
}

// LogsConfig contains log file management configuration.
type LogsConfig struct {
	RotationCount int `json:"rotation_count"` // Number of old run-log files to keep (default: 4)
}

// SchematicConfig defines models for the schematic figure generator.
type SchematicConfig struct {
	GenerationModel string `json:"generation_model"` // OpenRouter route for image generation
	ReviewModel     string `json:"review_model"`     // Gemini model for visual review
	MaxAttempts     int    `json:"max_attempts"`     // Generate/review cycles before falling back
}

// Config represents the main configuration for the writing pipeline.
//
// IMPORTANT: this structure contains only user-configurable workspace
// settings. Model pricing and provider mappings are hardcoded in KnownModels.
//
// Schema versioning prevents breaking changes - increment SchemaVersion for
// any structural changes.
type Config struct {
	SchemaVersion string `json:"schema_version"` // MUST increment for breaking changes

	Writer    *WriterConfig    `json:"writer"`    // Authoring run settings
	Metrics   *MetricsConfig   `json:"metrics"`   // Metrics collection configuration
	Logs      *LogsConfig      `json:"logs"`      // Run-log file management
	Schematic *SchematicConfig `json:"schematic"` // Schematic figure generation

	// === RUNTIME-ONLY STATE (NOT PERSISTED) ===
	SessionID string `json:"-"` // Current session UUID (generated at startup)
}

// GetProjectDir returns the current workspace directory.
// Must call LoadConfig first to initialize projectDir.
func GetProjectDir() string {
	mu.RLock()
	defer mu.RUnlock()
	return projectDir
}

// GetProjectConfigDir returns the path to the .paperwright directory holding
// all pipeline files. Must call LoadConfig first.
func GetProjectConfigDir() (string, error) {
	mu.RLock()
	defer mu.RUnlock()
	if projectDir == "" {
		return "", fmt.Errorf("config not initialized - call LoadConfig first")
	}
	return filepath.Join(projectDir, ProjectConfigDir), nil
}

// GetConfig returns the current configuration by value.
func GetConfig() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()
	if config == nil {
		return Config{}, fmt.Errorf("config not initialized - call LoadConfig first")
	}
	// Return by value (copy) to prevent external mutation
	return *config, nil
}

// SetConfigForTesting sets the global config for testing purposes.
// Pass nil to reset. This bypasses normal initialization and should only be
// used in tests.
func SetConfigForTesting(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	config = cfg
	if cfg == nil {
		projectDir = ""
	}
}

// LoadConfig loads the entire configuration from
// <projectDir>/.paperwright/config.json into the global singleton.
//
// Behavior:
// - Missing file: creates new config with defaults and saves it
// - Existing file: loads and validates, applying defaults for missing fields
// - Unparseable file: returns error to avoid overwriting user changes
//
// This should typically be called once at application startup.
func LoadConfig(inputProjectDir string) error {
	mu.Lock()
	defer mu.Unlock()

	// Store workspace directory - immutable after this point
	projectDir = inputProjectDir
	configPath := filepath.Join(projectDir, ProjectConfigDir, ProjectConfigFilename)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Missing file - create new config with defaults
		getLogger().Info("📝 Config file not found, creating new config at %s", configPath)
		config = createDefaultConfig()

		if err := validateConfig(config); err != nil {
			return fmt.Errorf("default config validation failed: %w", err)
		}

		if err := saveConfigLocked(); err != nil {
			return fmt.Errorf("failed to save initial config: %w", err)
		}
		getLogger().Info("✅ New config file created and validated")
		return nil
	}

	getLogger().Info("📝 Loading config from %s", configPath)
	loadedConfig, err := loadConfigFromFile(configPath)
	if err != nil {
		return fmt.Errorf("fatal: config file exists but cannot be parsed (to avoid overwriting your changes): %w", err)
	}

	applyDefaults(loadedConfig)
	if err := validateConfig(loadedConfig); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	config = loadedConfig

	// Save config back to disk with applied defaults (ensures old configs
	// get updated)
	if err := saveConfigLocked(); err != nil {
		return fmt.Errorf("failed to save config with applied defaults: %w", err)
	}

	getLogger().Info("✅ Config loaded and validated successfully")
	return nil
}

// loadConfigFromFile reads and unmarshals a config file.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// UpdateWriter updates the writer configuration and persists to disk.
func UpdateWriter(writer *WriterConfig) error {
	mu.Lock()
	defer mu.Unlock()

	if config == nil {
		return fmt.Errorf("config not initialized - call LoadConfig first")
	}

	oldWriter := config.Writer
	config.Writer = writer
	applyDefaults(config)

	if err := validateWriterConfig(config.Writer); err != nil {
		config.Writer = oldWriter // Restore old config
		return fmt.Errorf("invalid writer config: %w", err)
	}

	return saveConfigLocked()
}

// UpdateMetrics updates the metrics configuration and persists to disk.
func UpdateMetrics(metrics *MetricsConfig) error {
	mu.Lock()
	defer mu.Unlock()

	if config == nil {
		return fmt.Errorf("config not initialized - call LoadConfig first")
	}

	config.Metrics = metrics
	applyDefaults(config)
	return saveConfigLocked()
}

// SetSessionID stores the runtime session UUID. Not persisted.
func SetSessionID(id string) {
	mu.Lock()
	defer mu.Unlock()
	if config != nil {
		config.SessionID = id
	}
}

// createDefaultConfig builds a fully populated default configuration.
func createDefaultConfig() *Config {
	cfg := &Config{SchemaVersion: SchemaVersion}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration.
func applyDefaults(cfg *Config) {
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SchemaVersion
	}

	if cfg.Writer == nil {
		cfg.Writer = &WriterConfig{}
	}
	if cfg.Writer.Model == "" {
		cfg.Writer.Model = DefaultWriterModel
	}
	if cfg.Writer.MaxTurns == 0 {
		cfg.Writer.MaxTurns = DefaultMaxTurns
	}
	if cfg.Writer.SourceMode == "" {
		cfg.Writer.SourceMode = SourceModeAPI
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = DefaultHealthListenAddr
	}

	if cfg.Logs == nil {
		cfg.Logs = &LogsConfig{}
	}
	if cfg.Logs.RotationCount == 0 {
		cfg.Logs.RotationCount = DefaultLogRotationCount
	}

	if cfg.Schematic == nil {
		cfg.Schematic = &SchematicConfig{}
	}
	if cfg.Schematic.GenerationModel == "" {
		cfg.Schematic.GenerationModel = DefaultSchematicModel
	}
	if cfg.Schematic.ReviewModel == "" {
		cfg.Schematic.ReviewModel = DefaultSchematicReviewModel
	}
	if cfg.Schematic.MaxAttempts == 0 {
		cfg.Schematic.MaxAttempts = DefaultSchematicMaxAttempts
	}
}

// validateWriterConfig checks the writer section for fatal misconfiguration.
func validateWriterConfig(writer *WriterConfig) error {
	if writer.MaxTurns <= 0 {
		return fmt.Errorf("max_turns must be positive, got %d", writer.MaxTurns)
	}

	if writer.EffortLevel != "" {
		if _, err := ModelForEffort(EffortLevel(writer.EffortLevel)); err != nil {
			return err
		}
	}

	if _, err := GetModelProvider(writer.Model); err != nil {
		return fmt.Errorf("model '%s': %w", writer.Model, err)
	}

	if writer.SourceMode != SourceModeAPI && writer.SourceMode != SourceModeCLI {
		return fmt.Errorf("source_mode must be '%s' or '%s', got '%s'", SourceModeAPI, SourceModeCLI, writer.SourceMode)
	}
	return nil
}

// validateConfig validates the complete configuration.
func validateConfig(cfg *Config) error {
	if cfg.Writer == nil {
		return fmt.Errorf("writer config missing")
	}
	if err := validateWriterConfig(cfg.Writer); err != nil {
		return err
	}

	if cfg.Metrics != nil && cfg.Metrics.Enabled && cfg.Metrics.Namespace == "" {
		return fmt.Errorf("metrics namespace required when metrics are enabled")
	}

	if cfg.Schematic != nil && cfg.Schematic.MaxAttempts < 0 {
		return fmt.Errorf("schematic max_attempts cannot be negative")
	}
	return nil
}

// saveConfigLocked persists the current config to disk. Caller must hold mu.
func saveConfigLocked() error {
	if projectDir == "" {
		return fmt.Errorf("config not initialized - call LoadConfig first")
	}

	configPath := filepath.Join(projectDir, ProjectConfigDir, ProjectConfigFilename)

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ResolveModel returns the model a run should use: an explicit override wins,
// then the configured effort tier, then the configured model.
func ResolveModel(cfg *Config, override string, effort string) (string, error) {
	if override != "" {
		if _, err := GetModelProvider(override); err != nil {
			return "", err
		}
		return override, nil
	}
	if effort != "" {
		return ModelForEffort(EffortLevel(effort))
	}
	if cfg != nil && cfg.Writer != nil && cfg.Writer.EffortLevel != "" {
		return ModelForEffort(EffortLevel(cfg.Writer.EffortLevel))
	}
	if cfg != nil && cfg.Writer != nil && cfg.Writer.Model != "" {
		return cfg.Writer.Model, nil
	}
	return DefaultWriterModel, nil
}

// AutoContinueEnabled reports whether the stop-hook continuation nudge is
// active, honoring config then the environment kill switch.
func AutoContinueEnabled(cfg *Config) bool {
	if cfg != nil && cfg.Writer != nil && cfg.Writer.AutoContinue != nil && !*cfg.Writer.AutoContinue {
		return false
	}
	switch strings.ToLower(os.Getenv(EnvAutoContinue)) {
	case "false", "0", "no":
		return false
	}
	return true
}
