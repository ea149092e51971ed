package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/config"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/lock"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/ocr"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/repository"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/storage"
)

// DetectorType names an OCR engine
type DetectorType string

const (
	// TesseractDetector runs OCR locally
	TesseractDetector DetectorType = config.EngineTesseract
	// VisionDetector calls Google Cloud Vision
	VisionDetector DetectorType = config.EngineVision
)

// LockerType names a critical-section backend
type LockerType string

const (
	// MemoryLocker serializes registrations inside one process
	MemoryLocker LockerType = config.LockMemory
	// RedisLocker serializes registrations across processes
	RedisLocker LockerType = config.LockRedis
)

const redisLockPrefix = "scamvenge:lock:"

// DetectorFactory creates OCR engines
type DetectorFactory interface {
	CreateDetector(ctx context.Context, detectorType DetectorType) (ocr.TextDetector, error)
}

// LockerFactory creates registration lockers. The returned cleanup releases
// any connection the locker holds.
type LockerFactory interface {
	CreateLocker(ctx context.Context, lockerType LockerType) (lock.Locker, func() error, error)
}

// StorageFactory creates image sources and the store repository
type StorageFactory interface {
	CreateImageSource() (storage.ImageSource, error)
	CreateStoreRepository() (repository.StoreRepository, error)
}

type detectorFactory struct {
	language string
}

// NewDetectorFactory creates a new detector factory
func NewDetectorFactory(cfg *config.Config) DetectorFactory {
	return &detectorFactory{language: cfg.OCRLanguage}
}

// CreateDetector creates an OCR engine based on the specified type
func (f *detectorFactory) CreateDetector(ctx context.Context, detectorType DetectorType) (ocr.TextDetector, error) {
	switch detectorType {
	case TesseractDetector:
		return ocr.NewTesseractDetector(f.language), nil
	case VisionDetector:
		return ocr.NewVisionDetector(ctx)
	default:
		return nil, fmt.Errorf("unsupported OCR engine: %s", detectorType)
	}
}

type lockerFactory struct {
	addr     string
	password string
	ttl      time.Duration
}

// NewLockerFactory creates a new locker factory
func NewLockerFactory(cfg *config.Config) LockerFactory {
	return &lockerFactory{addr: cfg.RedisAddr, password: cfg.RedisPassword, ttl: cfg.LockTTL}
}

// CreateLocker creates a locker based on the specified type
func (f *lockerFactory) CreateLocker(ctx context.Context, lockerType LockerType) (lock.Locker, func() error, error) {
	switch lockerType {
	case MemoryLocker:
		return lock.NewMutexLocker(), func() error { return nil }, nil
	case RedisLocker:
		client, err := lock.NewRedisClient(ctx, f.addr, f.password)
		if err != nil {
			return nil, nil, err
		}
		return lock.NewRedisLocker(client, redisLockPrefix, f.ttl), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported lock backend: %s", lockerType)
	}
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateImageSource routes Azure Blob URLs to the Azure source when it is
// configured and everything else over HTTP.
func (f *storageFactory) CreateImageSource() (storage.ImageSource, error) {
	var azure storage.ImageSource
	if f.cfg.AzureEnabled() {
		src, err := storage.NewAzureImageSource(f.cfg.AzureAccountName, f.cfg.AzureAccountKey, f.cfg.MaxRequestBodySize)
		if err != nil {
			return nil, err
		}
		azure = src
	}
	return storage.NewRouter(
		azure,
		storage.NewHTTPImageSource(f.cfg.ImageFetchTimeout, f.cfg.MaxRequestBodySize),
	), nil
}

// CreateStoreRepository opens the configured database
func (f *storageFactory) CreateStoreRepository() (repository.StoreRepository, error) {
	opts := repository.DefaultOptions()
	opts.Driver = f.cfg.DatabaseDriver
	opts.DSN = f.cfg.DatabaseDSN
	opts.OpTimeout = f.cfg.StoreTimeout
	return repository.Open(opts)
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	DetectorFactory DetectorFactory
	LockerFactory   LockerFactory
	StorageFactory  StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		DetectorFactory: NewDetectorFactory(cfg),
		LockerFactory:   NewLockerFactory(cfg),
		StorageFactory:  NewStorageFactory(cfg),
	}
}
