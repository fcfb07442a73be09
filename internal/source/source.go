// Package source abstracts where topology snapshots come from: the
// inventory REST API in production, Postgres when topoviz runs next to the
// inventory database, and fakes in tests.
package source

import (
	"context"
	"errors"

	"topoviz/internal/topo"
)

// ErrUnavailable wraps fetch failures where the source could not be reached
// at all, as opposed to a malformed response.
var ErrUnavailable = errors.New("topology source unavailable")

// Source is a read endpoint for topology snapshots plus the asynchronous
// discovery trigger. RunDiscovery only starts re-discovery on the backend;
// the caller re-polls after a fixed delay to pick up its results.
type Source interface {
	Fetch(ctx context.Context) (topo.Snapshot, error)
	RunDiscovery(ctx context.Context) error
	Ping(ctx context.Context) error
}
