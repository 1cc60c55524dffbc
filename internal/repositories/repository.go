package repositories

import "context"

// Repository is the aggregate data-access interface. This service never
// writes domain data; snapshots are produced by the upstream delivery and
// similarity services and read here.
type Repository interface {
	// Exam snapshot domain
	Snapshot() SnapshotRepository

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
