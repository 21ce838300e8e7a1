// Package backend builds the ledger store and event broker selected by
// configuration.
package backend

import (
	"context"

	"budgetbook/internal/amqp"
	"budgetbook/internal/services"
	"budgetbook/internal/store"
)

// CleanupFunc releases the resources held by a Result.
type CleanupFunc func() error

// Result is the store plus the optional broker connection.
type Result struct {
	Store store.Ledger
	// Broker is nil when AMQP_URL is unset or the broker was unreachable
	// and not required.
	Broker  *amqp.Client
	Cleanup CleanupFunc
}

// Events returns the broker as a publisher, or nil when there is none.
func (r *Result) Events() services.EventPublisher {
	if r.Broker == nil {
		return nil
	}
	return r.Broker
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string
	// SeedDir is read by the memory backend.
	SeedDir string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// RequireBroker turns an unreachable broker into an error instead of a warning.
	RequireBroker bool
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
