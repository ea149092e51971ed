package factory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/config"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/lock"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		OCRLanguage:        "eng",
		LockTTL:            time.Second,
		ImageFetchTimeout:  time.Second,
		MaxRequestBodySize: 1 << 20,
		DatabaseDriver:     config.DriverSQLite,
		DatabaseDSN:        filepath.Join(t.TempDir(), "stores.db"),
		StoreTimeout:       time.Second,
	}
}

func TestDetectorFactory(t *testing.T) {
	f := NewDetectorFactory(testConfig(t))

	d, err := f.CreateDetector(context.Background(), TesseractDetector)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if d.Name() != "tesseract" {
		t.Errorf("Expected tesseract detector, got %s", d.Name())
	}

	if _, err := f.CreateDetector(context.Background(), DetectorType("easyocr")); err == nil {
		t.Error("Expected error for unsupported engine")
	}
}

func TestLockerFactory(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisAddr = mr.Addr()
	f := NewLockerFactory(cfg)

	tests := []struct {
		name       string
		lockerType LockerType
		wantErr    bool
	}{
		{"memory", MemoryLocker, false},
		{"redis", RedisLocker, false},
		{"unknown", LockerType("etcd"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locker, cleanup, err := f.CreateLocker(context.Background(), tt.lockerType)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			defer cleanup()

			release, err := locker.Acquire(context.Background(), lock.StoreNamesKey)
			if err != nil {
				t.Fatalf("Acquire failed: %v", err)
			}
			release()
		})
	}
}

func TestLockerFactory_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisAddr = mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, _, err := NewLockerFactory(cfg).CreateLocker(ctx, RedisLocker); err == nil {
		t.Error("Expected error when Redis is down")
	}
}

func TestStorageFactory(t *testing.T) {
	f := NewStorageFactory(testConfig(t))

	src, err := f.CreateImageSource()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !src.Accepts("https://api.telegram.org/file/a.jpg") {
		t.Error("Expected HTTP URLs to be routed")
	}

	repo, err := f.CreateStoreRepository()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer repo.Close()

	if _, err := repo.AddStore(context.Background(), "Nike Store", nil); err != nil {
		t.Fatalf("AddStore failed: %v", err)
	}
}

func TestStorageFactory_UnsupportedDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseDriver = "mysql"
	if _, err := NewStorageFactory(cfg).CreateStoreRepository(); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}
