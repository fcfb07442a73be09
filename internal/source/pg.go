package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"topoviz/internal/topo"
)

// PGSource reads the device/link inventory straight from the monitoring
// database. The discovery worker on the backend watches discovery_requests,
// so triggering discovery is a single insert.
type PGSource struct {
	pool *pgxpool.Pool
	q    *Queries
}

func OpenPG(ctx context.Context, databaseURL string) (*PGSource, error) {
	p, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	// Verify connectivity early.
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &PGSource{pool: p, q: NewQueries(p)}, nil
}

func (s *PGSource) Fetch(ctx context.Context) (topo.Snapshot, error) {
	nodes, err := s.q.ListTopologyDevices(ctx)
	if err != nil {
		return topo.Snapshot{}, fmt.Errorf("%w: list devices: %v", ErrUnavailable, err)
	}
	edges, err := s.q.ListTopologyLinks(ctx)
	if err != nil {
		return topo.Snapshot{}, fmt.Errorf("%w: list links: %v", ErrUnavailable, err)
	}
	return topo.Snapshot{Nodes: nodes, Edges: edges}, nil
}

func (s *PGSource) RunDiscovery(ctx context.Context) error {
	if err := s.q.InsertDiscoveryRequest(ctx); err != nil {
		return fmt.Errorf("queue discovery request: %w", err)
	}
	return nil
}

func (s *PGSource) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PGSource) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
