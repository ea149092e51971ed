package repository

import (
	"context"
	"time"
)

// StoreRepository persists the names of stores that have already been forwarded.
// It does not de-duplicate; callers run the fuzzy matcher first.
type StoreRepository interface {
	// ListNames returns every stored name verbatim, oldest first
	ListNames(ctx context.Context) ([]string, error)

	// Exists reports whether a record with exactly this name is stored
	Exists(ctx context.Context, name string) (bool, error)

	// AddStore inserts a record unconditionally
	AddStore(ctx context.Context, name string, sourceMessageID *string) (*StoreRecord, error)

	// ListStores returns stored records, oldest first. A limit of 0 returns all of them.
	ListStores(ctx context.Context, limit, offset int) ([]StoreRecord, error)

	// GetStats returns informational counts
	GetStats(ctx context.Context) (*StoreStats, error)

	// Close releases the underlying connection pool
	Close() error
}

// StoreRecord is one forwarded store. Name is kept exactly as extracted;
// normalization only happens when comparing.
type StoreRecord struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:512;not null" json:"name"`
	SourceMessageID *string   `gorm:"size:255;index" json:"source_message_id,omitempty"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
}

// TableName pins the table name independent of gorm's pluralization rules.
func (StoreRecord) TableName() string {
	return "store_records"
}

// StoreStats holds informational counts about the store.
type StoreStats struct {
	TotalStores int64 `json:"total_stores"`
}
