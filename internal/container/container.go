package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/analyzer"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/config"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/factory"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/logger"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/matcher"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/observer"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/ocr"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/repository"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/service"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/transport"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/watcher"
)

// Container holds all application dependencies
type Container struct {
	config   *config.Config
	store    repository.StoreRepository
	detector ocr.TextDetector
	metrics  *observer.MetricsObserver
	service  service.DedupService
	handler  http.Handler

	closers []func() error
}

// NewContainer wires the pipeline from cfg. On error everything opened so far is closed.
func NewContainer(ctx context.Context, cfg *config.Config) (_ *Container, err error) {
	c := &Container{config: cfg}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	components := factory.NewComponentFactory(cfg)

	extraction, err := cfg.ExtractionOptions()
	if err != nil {
		return nil, fmt.Errorf("invalid extraction settings: %w", err)
	}

	c.store, err = components.StorageFactory.CreateStoreRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	c.closers = append(c.closers, c.store.Close)

	locker, closeLocker, err := components.LockerFactory.CreateLocker(ctx, factory.LockerType(cfg.LockBackend))
	if err != nil {
		return nil, fmt.Errorf("failed to create locker: %w", err)
	}
	c.closers = append(c.closers, closeLocker)

	c.detector, err = components.DetectorFactory.CreateDetector(ctx, factory.DetectorType(cfg.OCREngine))
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}
	c.closers = append(c.closers, c.detector.Close)

	source, err := components.StorageFactory.CreateImageSource()
	if err != nil {
		return nil, fmt.Errorf("failed to create image source: %w", err)
	}

	c.metrics = observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(c.metrics)

	opts := service.DefaultOptions()
	opts.DryRun = cfg.TestMode
	opts.LockTimeout = cfg.LockTTL
	opts.LeaseTTL = cfg.LockTTL
	opts.Preprocess = cfg.PreprocessOptions()

	c.service, err = service.NewDedupService(service.Dependencies{
		Analyzer: analyzer.NewScreenshotAnalyzer(extraction),
		Matcher:  matcher.New(cfg.MatchOptions()),
		Store:    c.store,
		Locker:   locker,
		Detector: c.detector,
		Source:   source,
		Events:   events,
		Metrics:  c.metrics,
	}, opts)
	if err != nil {
		return nil, err
	}

	c.handler = transport.NewHandler(c.service, cfg)

	logger.WithFields(logrus.Fields{
		"driver":      cfg.DatabaseDriver,
		"ocr_engine":  c.detector.Name(),
		"lock":        cfg.LockBackend,
		"size_metric": extraction.Size.GetStrategyName(),
		"threshold":   cfg.SimilarityThreshold,
		"dry_run":     cfg.TestMode,
	}).Info("Pipeline ready")

	return c, nil
}

// NewWatcher creates a drop-directory watcher feeding the pipeline
func (c *Container) NewWatcher() (*watcher.Watcher, error) {
	opts := watcher.DefaultOptions(c.config.WatchDir)
	opts.Workers = c.config.WatchWorkers
	opts.MaxImageBytes = c.config.MaxRequestBodySize
	return watcher.New(c.service, opts)
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Service returns the pipeline service
func (c *Container) Service() service.DedupService {
	return c.service
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close releases resources in reverse order of creation
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
