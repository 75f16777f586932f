package backend

import (
	"context"
	"fmt"
	"os"

	"billable/internal/amqp"
	"billable/internal/catalog/jsonstore"
	"billable/internal/catalog/sqlite"
	"billable/internal/config"
	"billable/internal/log"
	"billable/internal/services"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case JSONBackend:
		return f.createJSONBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	store, err := sqlite.Open(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite catalog: %w", err)
	}

	f.logger.Info("Initialized SQLite catalog", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   store,
		Ping:    store.Ping,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createJSONBackend(config Config) (*BackendResult, error) {
	if err := os.MkdirAll(config.DataDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	f.logger.Info("Initialized JSON catalog", "data_directory", config.DataDirectory)

	return &BackendResult{
		Store: jsonstore.New(config.DataDirectory),
		Ping: func(context.Context) error {
			_, err := os.Stat(config.DataDirectory)
			return err
		},
	}, nil
}

// CreateNotifier connects to the broker when AMQP is configured. Without
// it the ledger runs without change events and the returned notifier is
// nil.
func (f *DefaultFactory) CreateNotifier(cfg *config.Config) (services.Notifier, CleanupFunc) {
	if cfg.AMQPURL == "" {
		f.logger.Info("AMQP not configured, ledger change events disabled")
		return nil, nil
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without change events", log.FieldError, err)
		return nil, nil
	}

	f.logger.Info("Initialized AMQP client",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client, client.Close
}
