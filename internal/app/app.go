// Package app wires configuration, logging, object storage and resource
// cleanup for the storelabs commands.
package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/storelabs/storelabs/internal/config"
	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/internal/logging"
	"github.com/storelabs/storelabs/internal/storage"
)

// App holds the shared resources of one command invocation.
type App struct {
	cfg      *config.Config
	logger   *logrus.Logger
	shutdown *ShutdownManager

	mu      sync.Mutex
	storage storage.ObjectStorage
}

// New resolves and validates cfg, creates the data directories and the
// logger.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, errors.NewInternalError("create directories", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		shutdown: NewShutdownManager(0),
	}, nil
}

// Config returns the resolved configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Logger returns the application logger.
func (a *App) Logger() *logrus.Logger {
	return a.logger
}

// Register adds a resource closed when the app shuts down.
func (a *App) Register(c io.Closer) {
	a.shutdown.RegisterCloser(c)
}

// Storage returns the configured object storage, creating it on first use.
func (a *App) Storage(ctx context.Context) (storage.ObjectStorage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.storage != nil {
		return a.storage, nil
	}
	s, err := NewStorage(ctx, a.cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.storage = s

	fields := logrus.Fields{"type": a.cfg.Storage.Type}
	switch a.cfg.Storage.Type {
	case "s3":
		fields["bucket"] = a.cfg.Storage.S3.Bucket
		fields["region"] = a.cfg.Storage.S3.Region
		fields["endpoint"] = a.cfg.Storage.S3.Endpoint
	case "minio":
		fields["bucket"] = a.cfg.Storage.Minio.Bucket
		fields["endpoint"] = a.cfg.Storage.Minio.Endpoint
	default:
		fields["path"] = a.cfg.Storage.Path
	}
	a.logger.WithFields(fields).Info("storage initialized")
	return s, nil
}

// NewStorage builds the object storage backend selected by cfg.Type.
func NewStorage(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStorage, error) {
	var (
		s   storage.ObjectStorage
		err error
	)
	switch cfg.Type {
	case "local", "":
		s, err = storage.NewLocalStorage(cfg.Path)
	case "s3":
		s3Cfg := storage.DefaultS3Config()
		if cfg.S3.Region != "" {
			s3Cfg.Region = cfg.S3.Region
		}
		s3Cfg.Endpoint = cfg.S3.Endpoint
		s3Cfg.UsePathStyle = cfg.S3.UsePathStyle
		s3Cfg.AccessKeyID = cfg.S3.AccessKeyID
		s3Cfg.SecretAccessKey = cfg.S3.SecretAccessKey
		s, err = storage.NewS3Storage(ctx, cfg.S3.Bucket, s3Cfg)
	case "minio":
		s, err = storage.NewMinioStorage(cfg.Minio.Bucket, storage.MinioConfig{
			Endpoint:        cfg.Minio.Endpoint,
			AccessKeyID:     cfg.Minio.AccessKeyID,
			SecretAccessKey: cfg.Minio.SecretAccessKey,
			Secure:          cfg.Minio.Secure,
			Region:          cfg.Minio.Region,
		})
	default:
		return nil, errors.NewInvalidConfiguration("unsupported storage type: %s", cfg.Type)
	}
	if err != nil {
		return nil, errors.NewConnectionError(fmt.Sprintf("initialize %s storage", cfg.Type), err)
	}
	return s, nil
}

// EnsureBucket creates the bucket for backends that have one.
func EnsureBucket(ctx context.Context, s storage.ObjectStorage) error {
	b, ok := s.(interface {
		EnsureBucket(ctx context.Context) error
	})
	if !ok {
		return nil
	}
	if err := b.EnsureBucket(ctx); err != nil {
		return errors.NewConnectionError("ensure bucket", err)
	}
	return nil
}

// Run calls fn with a context cancelled on SIGINT/SIGTERM, then closes
// every registered resource. The error of fn wins over a close error.
func (a *App) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, stop := a.shutdown.NotifyContext(ctx)
	defer stop()

	log := a.logger.WithField("command", name)
	start := time.Now()
	log.Debug("started")

	err := fn(ctx)
	closeErr := a.Close()

	log = log.WithField("elapsed", time.Since(start).Round(time.Millisecond).String())
	if err != nil {
		log.WithError(err).Error("failed")
		return err
	}
	if closeErr != nil {
		log.WithError(closeErr).Warn("cleanup failed")
		return closeErr
	}
	log.Info("finished")
	return nil
}

// Close releases every registered resource.
func (a *App) Close() error {
	return a.shutdown.Shutdown(context.Background())
}
