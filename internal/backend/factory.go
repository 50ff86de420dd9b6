package backend

import (
	"fmt"
	"log/slog"
	"time"

	"finboard/internal/backend/memory"
	"finboard/internal/config"
	"finboard/internal/finapi"
)

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// HTTP specific
	BaseURL string
	Timeout time.Duration

	// Memory specific
	FixturesDir string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:        backendType,
		BaseURL:     appConfig.APIBaseURL,
		Timeout:     appConfig.APITimeout,
		FixturesDir: appConfig.FixturesDir,
	}, nil
}

// New creates the source selected by config.
func New(config Config, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch config.Type {
	case HTTPBackend:
		client, err := finapi.New(config.BaseURL, config.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize API client: %w", err)
		}
		logger.Info("Initialized HTTP backend", "base_url", config.BaseURL, "timeout", config.Timeout)
		return client, nil
	case MemoryBackend:
		dir := config.FixturesDir
		if dir == "" {
			dir = "data"
		}
		logger.Info("Initialized memory backend", "fixtures_dir", dir)
		return memory.NewFromFiles(dir), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
