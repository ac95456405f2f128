// Package sessionstore persists a planning session's intermediate-result
// location map (the producing location recorded for each IntermediateResult
// name, mirroring ast.SymTable.Results) across repeated Planner.Plan calls
// against the same session id, so incremental REPL-style planning keeps
// placing dependent Nodes at the locations already chosen for their
// producers instead of forgetting them between calls.
package sessionstore

import (
	"context"
	"time"
)

// TTL is how long a session's last-saved result-location map survives
// before it is treated as gone. Saving again resets the countdown.
const TTL = 12 * time.Hour

// Store persists a session's intermediate-result -> producing-location map
// across repeated Planner.Plan calls for the same session id.
type Store interface {
	// Get returns the session's saved results, or ok=false if no entry
	// exists or it has expired.
	Get(ctx context.Context, sessionID string) (results map[string]string, ok bool, err error)
	// Save upserts the session's results and resets its TTL countdown.
	Save(ctx context.Context, sessionID string, results map[string]string) error
}
