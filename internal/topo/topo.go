package topo

import "strings"

// Status is the operational state of a device as reported by the inventory
// source. Anything unrecognized collapses to StatusUnknown rather than
// failing the snapshot.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
	StatusUnknown  Status = "unknown"
)

func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusUp:
		return StatusUp
	case StatusDown:
		return StatusDown
	case StatusDegraded:
		return StatusDegraded
	default:
		return StatusUnknown
	}
}

// LinkType records how a link entered the inventory.
type LinkType string

const (
	LinkLLDP   LinkType = "lldp"
	LinkManual LinkType = "manual"
)

// Node is one device in the topology snapshot. Identity is ID and is stable
// across refreshes; everything else may change between polls.
type Node struct {
	ID           int64    `json:"id"`
	Hostname     string   `json:"hostname"`
	IPAddress    string   `json:"ip_address"`
	DeviceType   string   `json:"device_type"`
	LocationName *string  `json:"location_name"`
	Status       Status   `json:"status"`
	CPUUsage     *float64 `json:"cpu_usage"`
	MemoryUsage  *float64 `json:"memory_usage"`
}

// Edge is a link between two devices, keyed by device id on both ends.
type Edge struct {
	ID       int64    `json:"id"`
	Source   int64    `json:"source"`
	Target   int64    `json:"target"`
	SourceIf *string  `json:"source_if"`
	TargetIf *string  `json:"target_if"`
	LinkType LinkType `json:"link_type"`
}

// Snapshot is one raw poll result from the topology source.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Model is the normalized lookup view of a snapshot that every other
// component consumes. Edges referencing a device id not present in the
// snapshot are dropped here; a dangling edge is an expected transient state
// during partial data, not an error.
type Model struct {
	Nodes           []Node
	Edges           []Edge
	NodeByID        map[int64]Node
	EdgesByEndpoint map[int64][]Edge
}

// Build normalizes a raw node/edge snapshot. Inputs are not mutated and the
// result is deterministic for identical inputs.
func Build(nodes []Node, edges []Edge) Model {
	m := Model{
		Nodes:           make([]Node, len(nodes)),
		Edges:           make([]Edge, 0, len(edges)),
		NodeByID:        make(map[int64]Node, len(nodes)),
		EdgesByEndpoint: make(map[int64][]Edge),
	}
	copy(m.Nodes, nodes)

	for _, n := range nodes {
		m.NodeByID[n.ID] = n
	}

	for _, e := range edges {
		if _, ok := m.NodeByID[e.Source]; !ok {
			continue
		}
		if _, ok := m.NodeByID[e.Target]; !ok {
			continue
		}
		m.Edges = append(m.Edges, e)
		m.EdgesByEndpoint[e.Source] = append(m.EdgesByEndpoint[e.Source], e)
		if e.Target != e.Source {
			m.EdgesByEndpoint[e.Target] = append(m.EdgesByEndpoint[e.Target], e)
		}
	}

	return m
}

// IDSet returns the set of node ids in the model, used as the merge key set
// for the position store.
func (m Model) IDSet() map[int64]struct{} {
	out := make(map[int64]struct{}, len(m.NodeByID))
	for id := range m.NodeByID {
		out[id] = struct{}{}
	}
	return out
}
