// Package scene builds the renderable projection of the topology: node
// shapes keyed by tier, colors keyed by status, solid vs dashed links, and
// search fades. The shape and color tables are part of the visual contract
// operators rely on, not styling hints.
package scene

import (
	"sort"
	"time"

	"topoviz/internal/layout"
	"topoviz/internal/topo"
)

// State distinguishes a rendered graph from the two explicit fallbacks: an
// empty inventory and a failed fetch. A failed fetch never leaves a stale
// partial graph behind.
type State string

const (
	StateOK    State = "ok"
	StateEmpty State = "empty"
	StateError State = "error"
)

const (
	ShapeCircle   = "circle"
	ShapeDiamond  = "diamond"
	ShapeRect     = "rect"
	ShapePentagon = "pentagon"
)

const (
	colorUp       = "#22c55e"
	colorDown     = "#ef4444"
	colorDegraded = "#f97316"
	colorUnknown  = "#9ca3af"
)

const (
	FullOpacity  = 1.0
	FadedOpacity = 0.15
)

type Scene struct {
	State       State           `json:"state"`
	Error       *string         `json:"error,omitempty"`
	Query       string          `json:"query,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
	Regions     []layout.Region `json:"regions"`
	Nodes       []Node          `json:"nodes"`
	Edges       []Edge          `json:"edges"`
}

type Node struct {
	ID       int64    `json:"id"`
	Hostname string   `json:"hostname"`
	IP       string   `json:"ip_address"`
	Tier     string   `json:"tier"`
	Shape    string   `json:"shape"`
	Status   string   `json:"status"`
	Color    string   `json:"color"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Opacity  float64  `json:"opacity"`
	CPU      *float64 `json:"cpu_usage,omitempty"`
	Memory   *float64 `json:"memory_usage,omitempty"`
}

type Edge struct {
	ID       int64   `json:"id"`
	From     int64   `json:"from"`
	To       int64   `json:"to"`
	Dashed   bool    `json:"dashed"`
	Opacity  float64 `json:"opacity"`
	SourceIf *string `json:"source_if,omitempty"`
	TargetIf *string `json:"target_if,omitempty"`
}

// ShapeForTier maps a device tier to its node shape.
func ShapeForTier(tier string) string {
	switch tier {
	case "spine", "core":
		return ShapeDiamond
	case "router", "firewall":
		return ShapePentagon
	case "leaf", "distribution", "switch", "tor", "access":
		return ShapeRect
	case "server":
		return ShapeCircle
	default:
		return ShapeCircle
	}
}

// ColorForStatus maps a device status to its fill color.
func ColorForStatus(s topo.Status) string {
	switch s {
	case topo.StatusUp:
		return colorUp
	case topo.StatusDown:
		return colorDown
	case topo.StatusDegraded:
		return colorDegraded
	default:
		return colorUnknown
	}
}

// Build assembles the scene for the current model, merged positions, and
// search state. tierOf supplies the engine's tier classification so scene
// shapes follow the same (preset-driven) keyword list as the layout.
// Nodes without a merged position are skipped; the merge invariant makes
// that impossible outside a mid-refresh race, and a skipped node simply
// appears on the next pass.
func Build(
	m topo.Model,
	pos map[int64]layout.Position,
	regions []layout.Region,
	tierOf func(deviceType string) string,
	matched map[int64]struct{},
	queryActive bool,
) Scene {
	s := Scene{
		State:       StateOK,
		GeneratedAt: time.Now().UTC(),
		Regions:     append([]layout.Region{}, regions...),
		Nodes:       make([]Node, 0, len(m.Nodes)),
		Edges:       make([]Edge, 0, len(m.Edges)),
	}

	for _, n := range m.Nodes {
		p, ok := pos[n.ID]
		if !ok {
			continue
		}
		tier := tierOf(n.DeviceType)
		opacity := FullOpacity
		if queryActive {
			if _, hit := matched[n.ID]; !hit {
				opacity = FadedOpacity
			}
		}
		s.Nodes = append(s.Nodes, Node{
			ID:       n.ID,
			Hostname: n.Hostname,
			IP:       n.IPAddress,
			Tier:     tier,
			Shape:    ShapeForTier(tier),
			Status:   string(n.Status),
			Color:    ColorForStatus(n.Status),
			X:        p.X,
			Y:        p.Y,
			Opacity:  opacity,
			CPU:      n.CPUUsage,
			Memory:   n.MemoryUsage,
		})
	}

	for _, e := range m.Edges {
		opacity := FullOpacity
		if queryActive {
			_, fromHit := matched[e.Source]
			_, toHit := matched[e.Target]
			if !fromHit || !toHit {
				opacity = FadedOpacity
			}
		}
		s.Edges = append(s.Edges, Edge{
			ID:       e.ID,
			From:     e.Source,
			To:       e.Target,
			Dashed:   e.LinkType == topo.LinkManual,
			Opacity:  opacity,
			SourceIf: e.SourceIf,
			TargetIf: e.TargetIf,
		})
	}

	sort.SliceStable(s.Nodes, func(i, j int) bool { return s.Nodes[i].ID < s.Nodes[j].ID })
	sort.SliceStable(s.Edges, func(i, j int) bool { return s.Edges[i].ID < s.Edges[j].ID })

	return s
}

// Empty returns the explicit "no devices" scene.
func Empty() Scene {
	return Scene{
		State:       StateEmpty,
		GeneratedAt: time.Now().UTC(),
		Regions:     []layout.Region{},
		Nodes:       []Node{},
		Edges:       []Edge{},
	}
}

// Errored returns the explicit fetch-failure scene.
func Errored(msg string) Scene {
	return Scene{
		State:       StateError,
		Error:       &msg,
		GeneratedAt: time.Now().UTC(),
		Regions:     []layout.Region{},
		Nodes:       []Node{},
		Edges:       []Edge{},
	}
}
