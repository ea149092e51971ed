package repository

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/Hyllesen/scamvenge-telegram-bot/internal/errors"
	"gorm.io/gorm"
)

// GormStoreRepository implements StoreRepository on any gorm dialect.
type GormStoreRepository struct {
	db        *gorm.DB
	opTimeout time.Duration
}

var _ StoreRepository = (*GormStoreRepository)(nil)

// NewGormStoreRepository wraps an open, migrated connection. Every call is
// bounded by opTimeout; zero disables the bound.
func NewGormStoreRepository(db *gorm.DB, opTimeout time.Duration) *GormStoreRepository {
	return &GormStoreRepository{db: db, opTimeout: opTimeout}
}

func (r *GormStoreRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.opTimeout)
}

// ListNames returns every stored name verbatim, oldest first
func (r *GormStoreRepository) ListNames(ctx context.Context) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	names := make([]string, 0)
	if err := r.db.WithContext(ctx).
		Model(&StoreRecord{}).
		Order("id ASC").
		Pluck("name", &names).Error; err != nil {
		return nil, apperrors.NewPersistenceError("failed to list store names", err)
	}
	return names, nil
}

// Exists reports whether a record with exactly this name is stored
func (r *GormStoreRepository) Exists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&StoreRecord{}).
		Where("name = ?", name).
		Count(&count).Error; err != nil {
		return false, apperrors.NewPersistenceError("failed to look up store name", err).WithContext(name, "")
	}
	return count > 0, nil
}

// AddStore inserts a record inside a transaction so a failure leaves nothing behind
func (r *GormStoreRepository) AddStore(ctx context.Context, name string, sourceMessageID *string) (*StoreRecord, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewValidationError("cannot store an empty name", ErrEmptyName)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rec := &StoreRecord{
		Name:            name,
		SourceMessageID: sourceMessageID,
		CreatedAt:       time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	})
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to insert store record", err).WithContext(name, "")
	}
	return rec, nil
}

// ListStores returns stored records, oldest first
func (r *GormStoreRepository) ListStores(ctx context.Context, limit, offset int) ([]StoreRecord, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := r.db.WithContext(ctx).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	records := make([]StoreRecord, 0)
	if err := q.Find(&records).Error; err != nil {
		return nil, apperrors.NewPersistenceError("failed to list store records", err)
	}
	return records, nil
}

// GetStats counts stored records
func (r *GormStoreRepository) GetStats(ctx context.Context) (*StoreStats, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var total int64
	if err := r.db.WithContext(ctx).Model(&StoreRecord{}).Count(&total).Error; err != nil {
		return nil, apperrors.NewPersistenceError("failed to count store records", err)
	}
	return &StoreStats{TotalStores: total}, nil
}

// Close releases the connection pool
func (r *GormStoreRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
