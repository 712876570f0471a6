package storage

import (
	"context"
	"time"
)

// Backend defines the interface for usage state persistence.
// Implementations must be thread-safe and support concurrent access.
//
// Writes are per-key upserts: two concurrent saves for different providers
// must never lose each other's update.
type Backend interface {
	// Save persists the usage record for a provider. If a record already
	// exists for the provider, it is replaced.
	Save(ctx context.Context, record *Record) error

	// Load retrieves the usage record for a provider.
	// Returns nil if no record exists. Returns error on system failure.
	Load(ctx context.Context, provider string) (*Record, error)

	// LoadAll returns all persisted usage records keyed by provider name.
	LoadAll(ctx context.Context) (map[string]*Record, error)

	// Delete removes the usage record for a provider.
	// No-op if the record doesn't exist.
	Delete(ctx context.Context, provider string) error

	// Close releases any resources held by the backend.
	Close() error
}

// Record is the persisted usage state for a single provider. The row is
// deliberately small and human-readable so an operator can inspect or edit
// it directly (e.g., force-clearing a stuck cooldown by zeroing
// CooldownUntil).
type Record struct {
	// Provider is the provider identity the record belongs to.
	Provider string

	// Date is the calendar day the counter applies to, formatted
	// "2006-01-02".
	Date string

	// Count is the number of successful calls recorded for Date.
	Count int64

	// CooldownUntil is the epoch second until which the provider is
	// excluded from selection. Zero means no cooldown.
	CooldownUntil int64

	// UpdatedAt is when this record was last modified.
	UpdatedAt time.Time
}
