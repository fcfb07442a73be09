package source

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"topoviz/internal/topo"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const listTopologyDevices = `-- name: ListTopologyDevices :many
SELECT d.id,
       d.hostname,
       d.ip_address,
       d.device_type,
       d.location_name,
       d.status,
       d.cpu_usage,
       d.memory_usage
FROM devices d
ORDER BY d.id
`

func (q *Queries) ListTopologyDevices(ctx context.Context) ([]topo.Node, error) {
	rows, err := q.db.Query(ctx, listTopologyDevices)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []topo.Node
	for rows.Next() {
		var n topo.Node
		var status string
		if err := rows.Scan(
			&n.ID,
			&n.Hostname,
			&n.IPAddress,
			&n.DeviceType,
			&n.LocationName,
			&status,
			&n.CPUUsage,
			&n.MemoryUsage,
		); err != nil {
			return nil, err
		}
		n.Status = topo.ParseStatus(status)
		out = append(out, n)
	}
	return out, rows.Err()
}

const listTopologyLinks = `-- name: ListTopologyLinks :many
SELECT l.id,
       l.source_device_id,
       l.target_device_id,
       l.source_if,
       l.target_if,
       l.link_type
FROM links l
ORDER BY l.id
`

func (q *Queries) ListTopologyLinks(ctx context.Context) ([]topo.Edge, error) {
	rows, err := q.db.Query(ctx, listTopologyLinks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []topo.Edge
	for rows.Next() {
		var e topo.Edge
		var linkType string
		if err := rows.Scan(
			&e.ID,
			&e.Source,
			&e.Target,
			&e.SourceIf,
			&e.TargetIf,
			&linkType,
		); err != nil {
			return nil, err
		}
		if linkType == string(topo.LinkManual) {
			e.LinkType = topo.LinkManual
		} else {
			e.LinkType = topo.LinkLLDP
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const insertDiscoveryRequest = `-- name: InsertDiscoveryRequest :exec
INSERT INTO discovery_requests (requested_at)
VALUES (now())
`

func (q *Queries) InsertDiscoveryRequest(ctx context.Context) error {
	_, err := q.db.Exec(ctx, insertDiscoveryRequest)
	return err
}
