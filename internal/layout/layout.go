package layout

import (
	"sort"
	"strings"
	"sync"

	"topoviz/internal/topo"
)

// UnassignedKey is the sentinel group for nodes without a location. It sorts
// after every named location and is labeled "Unassigned" in the scene.
const (
	UnassignedKey   = "__unassigned__"
	UnassignedLabel = "Unassigned"
)

// Position is a node's center in model space, independent of zoom and pan.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Region is the bounding rectangle of one location group. Regions are
// recomputed in full on every layout pass and are never merged with user
// state the way positions are.
type Region struct {
	Key   string  `json:"key"`
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
}

// Result is one layout pass: a default position for every input node plus
// the region boxes (empty in the flat degenerate case).
type Result struct {
	Positions map[int64]Position
	Regions   []Region
}

// Engine computes deterministic default positions grouped by location and
// device tier. It is stateless apart from its presets, which can be swapped
// at runtime; a given (nodes, canvas, presets) input always yields the same
// result.
type Engine struct {
	mu      sync.RWMutex
	presets Presets
}

func NewEngine(p Presets) *Engine {
	if len(p.TierKeywords) == 0 {
		p = DefaultPresets()
	}
	return &Engine{presets: p}
}

// SetPresets swaps the layout presets. Takes effect on the next layout pass;
// positions already merged into the store are untouched.
func (e *Engine) SetPresets(p Presets) {
	if len(p.TierKeywords) == 0 {
		return
	}
	e.mu.Lock()
	e.presets = p
	e.mu.Unlock()
}

func (e *Engine) Presets() Presets {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.presets
}

// TierOf classifies a device type with the engine's current keyword list.
func (e *Engine) TierOf(deviceType string) string {
	return tierOf(deviceType, e.Presets().TierKeywords)
}

// Layout computes default positions and regions for the given nodes on a
// canvasWidth x canvasHeight model-space canvas. An empty node list returns
// an empty result, not an error.
func (e *Engine) Layout(nodes []topo.Node, canvasWidth, canvasHeight float64) Result {
	p := e.Presets()
	res := Result{
		Positions: make(map[int64]Position, len(nodes)),
		Regions:   []Region{},
	}
	if len(nodes) == 0 {
		return res
	}

	groups := groupByLocation(nodes)

	if len(groups) == 1 && groups[0].key == UnassignedKey {
		// No location data exists at all: flat tiered layout, no regions.
		e.layoutFlat(&res, p, groups[0].nodes, canvasWidth, canvasHeight)
		return res
	}

	e.layoutGrouped(&res, p, groups, canvasWidth)
	return res
}

type group struct {
	key   string
	label string
	nodes []topo.Node
}

// groupByLocation partitions nodes by location name, alphabetical by label
// with the unassigned sentinel last. Node order within a group is by id so
// repeated passes are identical.
func groupByLocation(nodes []topo.Node) []group {
	byKey := make(map[string]*group)
	for _, n := range nodes {
		key := UnassignedKey
		label := UnassignedLabel
		if n.LocationName != nil {
			if trimmed := strings.TrimSpace(*n.LocationName); trimmed != "" {
				key = trimmed
				label = trimmed
			}
		}
		g := byKey[key]
		if g == nil {
			g = &group{key: key, label: label}
			byKey[key] = g
		}
		g.nodes = append(g.nodes, n)
	}

	out := make([]group, 0, len(byKey))
	for _, g := range byKey {
		sort.Slice(g.nodes, func(i, j int) bool { return g.nodes[i].ID < g.nodes[j].ID })
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].key == UnassignedKey {
			return false
		}
		if out[j].key == UnassignedKey {
			return true
		}
		return out[i].label < out[j].label
	})
	return out
}

type tierRow struct {
	tier  string
	nodes []topo.Node
}

func tierRows(nodes []topo.Node, p Presets) []tierRow {
	byTier := make(map[string][]topo.Node)
	for _, n := range nodes {
		t := tierOf(n.DeviceType, p.TierKeywords)
		byTier[t] = append(byTier[t], n)
	}
	rows := make([]tierRow, 0, len(byTier))
	for t, ns := range byTier {
		rows = append(rows, tierRow{tier: t, nodes: ns})
	}
	sort.Slice(rows, func(i, j int) bool {
		return tierRank(rows[i].tier, p.TierKeywords) < tierRank(rows[j].tier, p.TierKeywords)
	})
	return rows
}

// layoutFlat spreads tier rows evenly over the canvas height and nodes
// evenly over the width. A row with a single node sits at horizontal center
// so the even-spacing step never divides by zero.
func (e *Engine) layoutFlat(res *Result, p Presets, nodes []topo.Node, canvasWidth, canvasHeight float64) {
	rows := tierRows(nodes, p)
	rowStep := canvasHeight / float64(len(rows)+1)

	for ti, row := range rows {
		y := rowStep * float64(ti+1)
		if len(row.nodes) == 1 {
			res.Positions[row.nodes[0].ID] = Position{X: canvasWidth / 2, Y: y}
			continue
		}
		step := (canvasWidth - 2*p.FlatMargin) / float64(len(row.nodes)-1)
		for j, n := range row.nodes {
			res.Positions[n.ID] = Position{X: p.FlatMargin + float64(j)*step, Y: y}
		}
	}
}

// layoutGrouped lays out each location group as a stack of tier rows inside
// its own rectangle, then packs the rectangles onto horizontal shelves:
// left to right with a fixed gap, wrapping to a new band when the next group
// would exceed the available width. Greedy and not area-optimal; stability
// and predictability matter more here than packing density.
func (e *Engine) layoutGrouped(res *Result, p Presets, groups []group, canvasWidth float64) {
	cursorX := p.GroupGap
	cursorY := p.GroupGap
	bandHeight := 0.0

	for _, g := range groups {
		rows := tierRows(g.nodes, p)

		maxRow := 0
		for _, row := range rows {
			if len(row.nodes) > maxRow {
				maxRow = len(row.nodes)
			}
		}

		w := float64(maxRow)*p.HSpacing + 2*p.Padding
		h := float64(len(rows))*p.VSpacing + p.HeaderHeight + 2*p.Padding

		// Wrap to a new band, unless the group is the first in the band
		// (an oversized group still gets placed rather than looping).
		if cursorX > p.GroupGap && cursorX+w > canvasWidth-p.GroupGap {
			cursorX = p.GroupGap
			cursorY += bandHeight + p.GroupGap
			bandHeight = 0
		}

		res.Regions = append(res.Regions, Region{
			Key:   g.key,
			Label: g.label,
			X:     cursorX,
			Y:     cursorY,
			W:     w,
			H:     h,
		})

		innerW := w - 2*p.Padding
		for ti, row := range rows {
			y := cursorY + p.HeaderHeight + p.Padding + (float64(ti)+0.5)*p.VSpacing
			cellW := innerW / float64(len(row.nodes))
			for j, n := range row.nodes {
				x := cursorX + p.Padding + (float64(j)+0.5)*cellW
				res.Positions[n.ID] = Position{X: x, Y: y}
			}
		}

		if h > bandHeight {
			bandHeight = h
		}
		cursorX += w + p.GroupGap
	}
}
