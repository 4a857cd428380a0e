package store

import (
	"context"

	"github.com/abverdict/abverdict/internal/period"
)

// Store defines the persistent storage used by the CLI and the server
type Store interface {
	// Period operations
	period.Store

	// Analysis cache
	SaveAnalysis(ctx context.Context, experiment string, a *CachedAnalysis) error
	GetAnalysis(ctx context.Context, experiment string) (*CachedAnalysis, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	CountExperiments(ctx context.Context) (int, error)

	// Lifecycle
	Close() error
}
