package cli

import (
	"context"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mnemo/pkg/adapter"
	"github.com/m-mizutani/mnemo/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const defaultBackendURL = "ws://localhost:8000/api/v1/multiagent/ws/multiagent"

// config holds configuration values
type config struct {
	configPath string
	logLevel   string

	// Streaming backend
	backendURL string
	userID     string

	// Gemini (single-shot path)
	geminiProject  string
	geminiLocation string
	geminiModel    string
	askTimeout     time.Duration
}

// fileConfig is the optional YAML config file. File values seed defaults;
// flags and environment variables win.
type fileConfig struct {
	BackendURL string `yaml:"backend_url"`
	UserID     string `yaml:"user_id"`
	LogLevel   string `yaml:"log_level"`
	Gemini     struct {
		Project  string `yaml:"project"`
		Location string `yaml:"location"`
		Model    string `yaml:"model"`
	} `yaml:"gemini"`
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML config file",
			Sources:     cli.EnvVars("MNEMO_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Sources:     cli.EnvVars("MNEMO_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "backend-url",
			Aliases:     []string{"b"},
			Usage:       "WebSocket URL of the research backend",
			Sources:     cli.EnvVars("MNEMO_BACKEND_URL"),
			Destination: &cfg.backendURL,
		},
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "User ID sent with each query",
			Sources:     cli.EnvVars("MNEMO_USER_ID"),
			Destination: &cfg.userID,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Generative model name",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Maximum duration of one completion",
			Sources:     cli.EnvVars("MNEMO_ASK_TIMEOUT"),
			Destination: &cfg.askTimeout,
		},
	}
}

// finalize layers the config file under flag/env values and applies
// built-in defaults, then installs the logger.
func (cfg *config) finalize(ctx context.Context) (context.Context, error) {
	if cfg.configPath != "" {
		data, err := os.ReadFile(cfg.configPath)
		if err != nil {
			return ctx, goerr.Wrap(err, "failed to read config file", goerr.V("path", cfg.configPath))
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return ctx, goerr.Wrap(err, "failed to parse config file", goerr.V("path", cfg.configPath))
		}
		setIfEmpty(&cfg.backendURL, fc.BackendURL)
		setIfEmpty(&cfg.userID, fc.UserID)
		setIfEmpty(&cfg.logLevel, fc.LogLevel)
		setIfEmpty(&cfg.geminiProject, fc.Gemini.Project)
		setIfEmpty(&cfg.geminiLocation, fc.Gemini.Location)
		setIfEmpty(&cfg.geminiModel, fc.Gemini.Model)
	}

	setIfEmpty(&cfg.backendURL, defaultBackendURL)
	setIfEmpty(&cfg.logLevel, "info")
	setIfEmpty(&cfg.geminiLocation, "us-central1")

	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// newBackend creates the streaming backend adapter
func (cfg *config) newBackend() (adapter.Backend, error) {
	if cfg.backendURL == "" {
		return nil, goerr.New("backend-url is required")
	}
	return adapter.NewWebSocket(cfg.backendURL), nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	var opts []adapter.GeminiOption
	if cfg.geminiModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.geminiModel))
	}
	gemini, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini adapter")
	}
	return gemini, nil
}
