package layout

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topoviz/internal/topo"
)

const (
	canvasW = 1600.0
	canvasH = 900.0
)

func strptr(s string) *string { return &s }

func node(id int64, deviceType string, location *string) topo.Node {
	return topo.Node{
		ID:           id,
		Hostname:     fmt.Sprintf("host-%d", id),
		DeviceType:   deviceType,
		LocationName: location,
	}
}

func regionByKey(t *testing.T, regions []Region, key string) Region {
	t.Helper()
	for _, r := range regions {
		if r.Key == key {
			return r
		}
	}
	t.Fatalf("region %q not found in %v", key, regions)
	return Region{}
}

func inRegion(p Position, r Region) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

func regionsOverlap(a, b Region) bool {
	return a.X < b.X+b.W && b.X < a.X+a.W && a.Y < b.Y+b.H && b.Y < a.Y+a.H
}

func TestLayout_EmptyInput(t *testing.T) {
	e := NewEngine(DefaultPresets())
	res := e.Layout(nil, canvasW, canvasH)

	assert.Empty(t, res.Positions)
	assert.Empty(t, res.Regions)
}

func TestLayout_Deterministic(t *testing.T) {
	e := NewEngine(DefaultPresets())
	nodes := []topo.Node{
		node(3, "leaf-switch", strptr("DC1")),
		node(1, "spine", strptr("DC1")),
		node(2, "server", nil),
		node(4, "core-router", strptr("DC2")),
		node(5, "firewall", strptr("DC2")),
	}

	first := e.Layout(nodes, canvasW, canvasH)
	for i := 0; i < 10; i++ {
		again := e.Layout(nodes, canvasW, canvasH)
		assert.Equal(t, first.Positions, again.Positions)
		assert.Equal(t, first.Regions, again.Regions)
	}
}

func TestLayout_GroupingContainment(t *testing.T) {
	e := NewEngine(DefaultPresets())
	var nodes []topo.Node
	types := []string{"spine", "leaf", "access-switch", "server", "mystery-box"}
	locs := []*string{strptr("DC1"), strptr("DC2"), strptr("Branch"), nil}
	id := int64(0)
	for _, loc := range locs {
		for _, dt := range types {
			id++
			nodes = append(nodes, node(id, dt, loc))
		}
	}

	res := e.Layout(nodes, canvasW, canvasH)
	require.Len(t, res.Regions, 4)

	for _, n := range nodes {
		key := UnassignedKey
		if n.LocationName != nil {
			key = *n.LocationName
		}
		r := regionByKey(t, res.Regions, key)
		p, ok := res.Positions[n.ID]
		require.True(t, ok, "node %d has no position", n.ID)
		assert.True(t, inRegion(p, r), "node %d at %+v outside region %+v", n.ID, p, r)
	}
}

func TestLayout_RegionsDoNotOverlap(t *testing.T) {
	e := NewEngine(DefaultPresets())
	var nodes []topo.Node
	id := int64(0)
	for g := 0; g < 8; g++ {
		loc := strptr(fmt.Sprintf("Site-%d", g))
		for j := 0; j < 6; j++ {
			id++
			nodes = append(nodes, node(id, "switch", loc))
		}
	}

	res := e.Layout(nodes, canvasW, canvasH)
	require.Len(t, res.Regions, 8)

	for i := range res.Regions {
		for j := i + 1; j < len(res.Regions); j++ {
			assert.False(t, regionsOverlap(res.Regions[i], res.Regions[j]),
				"regions %v and %v overlap", res.Regions[i], res.Regions[j])
		}
	}
}

func TestLayout_ShelfWrapsOnNarrowCanvas(t *testing.T) {
	e := NewEngine(DefaultPresets())
	var nodes []topo.Node
	id := int64(0)
	for g := 0; g < 4; g++ {
		loc := strptr(fmt.Sprintf("Site-%d", g))
		for j := 0; j < 5; j++ {
			id++
			nodes = append(nodes, node(id, "switch", loc))
		}
	}

	// Narrow canvas forces bands; regions must still be disjoint and every
	// node must stay inside its own region.
	res := e.Layout(nodes, 700, canvasH)
	require.Len(t, res.Regions, 4)

	maxY := 0.0
	for _, r := range res.Regions {
		if r.Y > maxY {
			maxY = r.Y
		}
	}
	assert.Greater(t, maxY, res.Regions[0].Y, "expected at least two packing bands")

	for i := range res.Regions {
		for j := i + 1; j < len(res.Regions); j++ {
			assert.False(t, regionsOverlap(res.Regions[i], res.Regions[j]))
		}
	}
}

func TestLayout_GroupOrderAlphabeticalWithUnassignedLast(t *testing.T) {
	e := NewEngine(DefaultPresets())
	nodes := []topo.Node{
		node(1, "switch", strptr("Zurich")),
		node(2, "switch", strptr("Amsterdam")),
		node(3, "switch", nil),
		node(4, "switch", strptr("Milan")),
	}

	res := e.Layout(nodes, canvasW, canvasH)
	require.Len(t, res.Regions, 4)

	labels := make([]string, 0, 4)
	for _, r := range res.Regions {
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []string{"Amsterdam", "Milan", "Zurich", UnassignedLabel}, labels)
}

func TestLayout_FlatWhenNoLocationDataAtAll(t *testing.T) {
	e := NewEngine(DefaultPresets())
	nodes := []topo.Node{
		node(1, "spine", nil),
		node(2, "leaf", nil),
		node(3, "leaf", nil),
		node(4, "server", nil),
	}

	res := e.Layout(nodes, canvasW, canvasH)

	assert.Empty(t, res.Regions, "flat layout emits no regions")
	require.Len(t, res.Positions, 4)

	// Tier rows stack top to bottom in keyword order: spine, leaf, server.
	assert.Less(t, res.Positions[1].Y, res.Positions[2].Y)
	assert.Less(t, res.Positions[2].Y, res.Positions[4].Y)
	assert.Equal(t, res.Positions[2].Y, res.Positions[3].Y, "same tier shares a row")
}

func TestLayout_FlatSingleNodeTierCentered(t *testing.T) {
	e := NewEngine(DefaultPresets())
	nodes := []topo.Node{node(1, "spine", nil)}

	res := e.Layout(nodes, canvasW, canvasH)

	require.Len(t, res.Positions, 1)
	assert.Equal(t, canvasW/2, res.Positions[1].X)
}

func TestLayout_FlatRowEvenlySpaced(t *testing.T) {
	p := DefaultPresets()
	e := NewEngine(p)
	nodes := []topo.Node{
		node(1, "leaf", nil),
		node(2, "leaf", nil),
		node(3, "leaf", nil),
	}

	res := e.Layout(nodes, canvasW, canvasH)

	assert.Equal(t, p.FlatMargin, res.Positions[1].X)
	assert.Equal(t, canvasW/2, res.Positions[2].X)
	assert.Equal(t, canvasW-p.FlatMargin, res.Positions[3].X)
}

func TestLayout_UnknownDeviceTypeGetsUnknownTier(t *testing.T) {
	e := NewEngine(DefaultPresets())
	nodes := []topo.Node{
		node(1, "quantum-flux-capacitor", strptr("DC1")),
		node(2, "", strptr("DC1")),
		node(3, "spine", strptr("DC1")),
	}

	res := e.Layout(nodes, canvasW, canvasH)

	require.Len(t, res.Positions, 3, "unknown types are laid out, not dropped")
	// Unknown tier rows sit below every keyword tier.
	assert.Less(t, res.Positions[3].Y, res.Positions[1].Y)
	assert.Equal(t, res.Positions[1].Y, res.Positions[2].Y)
}

func TestLayout_EndToEndScenario(t *testing.T) {
	e := NewEngine(DefaultPresets())
	nodes := []topo.Node{
		{ID: 1, Hostname: "A", DeviceType: "spine", LocationName: strptr("DC1")},
		{ID: 2, Hostname: "B", DeviceType: "leaf", LocationName: strptr("DC1")},
		{ID: 3, Hostname: "C", DeviceType: "server", LocationName: nil},
	}

	res := e.Layout(nodes, canvasW, canvasH)

	require.Len(t, res.Regions, 2)
	dc1 := regionByKey(t, res.Regions, "DC1")
	unassigned := regionByKey(t, res.Regions, UnassignedKey)
	assert.Equal(t, "DC1", dc1.Label)
	assert.Equal(t, UnassignedLabel, unassigned.Label)

	a := res.Positions[1]
	b := res.Positions[2]
	c := res.Positions[3]

	assert.Less(t, a.Y, b.Y, "spine A sits above leaf B")
	assert.True(t, inRegion(a, dc1))
	assert.True(t, inRegion(b, dc1))
	assert.True(t, inRegion(c, unassigned))
}

func TestTierOf_OrderedKeywordsFirstMatchWins(t *testing.T) {
	kws := defaultTierKeywords()

	// "distribution-switch" contains both keywords; the earlier one wins.
	assert.Equal(t, "distribution", tierOf("distribution-switch", kws))
	assert.Equal(t, "spine", tierOf("Spine-Switch-9000", kws))
	assert.Equal(t, "switch", tierOf("SWITCH", kws))
	assert.Equal(t, TierUnknown, tierOf("toaster", kws))
	assert.Equal(t, TierUnknown, tierOf("", kws))
	assert.Equal(t, TierUnknown, tierOf("   ", kws))
}

func TestEngine_SetPresetsAffectsNextPass(t *testing.T) {
	e := NewEngine(DefaultPresets())
	nodes := []topo.Node{node(1, "switch", strptr("DC1")), node(2, "switch", strptr("DC1"))}

	before := e.Layout(nodes, canvasW, canvasH)

	p := DefaultPresets()
	p.HSpacing = p.HSpacing * 2
	e.SetPresets(p)

	after := e.Layout(nodes, canvasW, canvasH)
	assert.NotEqual(t, before.Regions[0].W, after.Regions[0].W)
}
