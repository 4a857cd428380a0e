package store

import (
	"time"

	"github.com/abverdict/abverdict/internal/stats"
)

// SettingServerToken holds the API token so it survives server restarts.
const SettingServerToken = "server_token"

// CachedAnalysis is the last analysis computed for an experiment together
// with its verdicts.
type CachedAnalysis struct {
	Analysis       *stats.Analysis      `json:"analysis" yaml:"analysis"`
	Classification stats.Classification `json:"classification" yaml:"classification"`
	// Range is the consolidated date range the analysis was computed from.
	Range     string    `json:"range,omitempty" yaml:"range,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}
