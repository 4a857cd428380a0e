package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/abverdict/abverdict/internal/period"
	"github.com/abverdict/abverdict/internal/stats"
	"github.com/abverdict/abverdict/internal/store"
)

// SetupTestStore creates a test database and returns the store.
// Uses t.TempDir() for automatic cleanup on test completion.
func SetupTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Period builds a raw period with a "V0" control and one "V1" variant.
func Period(dateRange string, controlTrials, controlSuccesses, variantTrials, variantSuccesses int) period.Period {
	return period.Period{
		DateRange: dateRange,
		Control:   stats.Arm{Name: "V0", Trials: controlTrials, Successes: controlSuccesses},
		Variants:  []stats.Arm{{Name: "V1", Trials: variantTrials, Successes: variantSuccesses}},
	}
}
