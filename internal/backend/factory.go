package backend

import (
	"context"
	"fmt"
	"log/slog"

	"duka/internal/memory"
	"duka/internal/ports"
	"duka/internal/remote"
	"duka/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		return f.createMemoryBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case RemoteBackend:
		return f.createRemoteBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)

	return &BackendResult{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	seed, err := ports.LoadSeed(config.SeedFile)
	if err != nil {
		sqliteRepo.Close()
		return nil, err
	}
	if err := sqliteRepo.SeedIfEmpty(ctx, seed); err != nil {
		sqliteRepo.Close()
		return nil, fmt.Errorf("failed to seed SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   sqliteRepo,
		SQLite:  sqliteRepo,
		Cleanup: sqliteRepo.Close,
	}, nil
}

func (f *DefaultFactory) createRemoteBackend(config Config) (*BackendResult, error) {
	client, err := remote.New(config.RemoteAPIURL, config.RemoteAPIToken, config.RemoteTimeout,
		remote.WithLogger(f.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote backend: %w", err)
	}

	f.logger.Info("Initialized remote backend",
		"base_url", config.RemoteAPIURL,
		"has_token", config.RemoteAPIToken != "")

	return &BackendResult{
		Store:   client,
		Cleanup: client.Close,
	}, nil
}
