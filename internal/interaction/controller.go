// Package interaction turns raw pointer events into node drags, canvas pans,
// hovers, and click-to-navigate actions. It is an explicit state machine
// with three mutually exclusive modes entered on pointer-down and exited on
// pointer-up, so any renderer can drive it from its own event loop.
package interaction

import (
	"gonum.org/v1/gonum/spatial/r2"

	"topoviz/internal/layout"
	"topoviz/internal/positions"
	"topoviz/internal/view"
)

// Mode is the current gesture state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeDraggingNode
	ModePanningCanvas
)

func (m Mode) String() string {
	switch m {
	case ModeDraggingNode:
		return "dragging"
	case ModePanningCanvas:
		return "panning"
	default:
		return "idle"
	}
}

// EventType is the pointer event kind fed into Handle.
type EventType string

const (
	PointerDown  EventType = "down"
	PointerMove  EventType = "move"
	PointerUp    EventType = "up"
	PointerLeave EventType = "leave"
)

// Event is one pointer event in screen space. NodeID carries the hit-test
// result for the pointer location (nil when over empty canvas).
type Event struct {
	Type   EventType
	Screen r2.Vec
	NodeID *int64
}

// NavigateFunc is invoked when a node is clicked without any drag motion.
type NavigateFunc func(nodeID int64)

// Controller runs the gesture state machine, writing drag positions through
// the store and pans through the transform. Not safe for concurrent use;
// the owning session serializes calls.
type Controller struct {
	transform *view.Transform
	store     *positions.Store
	navigate  NavigateFunc

	mode        Mode
	dragNode    int64
	grabOffset  r2.Vec
	pressScreen r2.Vec
	startPan    r2.Vec
	moved       bool
	hovered     *int64
}

func New(t *view.Transform, store *positions.Store, navigate NavigateFunc) *Controller {
	return &Controller{transform: t, store: store, navigate: navigate}
}

func (c *Controller) Mode() Mode { return c.mode }

// HoveredNode returns the node under an idle pointer, or nil.
func (c *Controller) HoveredNode() *int64 { return c.hovered }

// DraggingNode returns the node of an active drag gesture.
func (c *Controller) DraggingNode() (int64, bool) {
	if c.mode != ModeDraggingNode {
		return 0, false
	}
	return c.dragNode, true
}

// Handle advances the state machine by one pointer event.
func (c *Controller) Handle(ev Event) {
	switch ev.Type {
	case PointerDown:
		c.pointerDown(ev)
	case PointerMove:
		c.pointerMove(ev)
	case PointerUp:
		c.pointerUp()
	case PointerLeave:
		// Gestures track globally; leaving the canvas only clears hover.
		c.hovered = nil
	}
}

func (c *Controller) pointerDown(ev Event) {
	c.moved = false
	c.pressScreen = ev.Screen
	c.hovered = nil

	if ev.NodeID != nil {
		if pos, ok := c.store.Get(*ev.NodeID); ok {
			// Grab offset keeps the node from jumping to the pointer:
			// moves place it at pointer - offset, not at the pointer.
			model := c.transform.ToModel(ev.Screen)
			c.mode = ModeDraggingNode
			c.dragNode = *ev.NodeID
			c.grabOffset = r2.Vec{X: model.X - pos.X, Y: model.Y - pos.Y}
			return
		}
	}

	c.mode = ModePanningCanvas
	c.startPan = r2.Vec{X: c.transform.PanX, Y: c.transform.PanY}
}

func (c *Controller) pointerMove(ev Event) {
	switch c.mode {
	case ModeDraggingNode:
		if ev.Screen != c.pressScreen {
			c.moved = true
		}
		model := c.transform.ToModel(ev.Screen)
		c.store.Set(c.dragNode, layout.Position{
			X: model.X - c.grabOffset.X,
			Y: model.Y - c.grabOffset.Y,
		})

	case ModePanningCanvas:
		if ev.Screen != c.pressScreen {
			c.moved = true
		}
		// Pan deltas are screen-space: the canvas follows the pointer 1:1
		// regardless of zoom.
		c.transform.PanX = c.startPan.X + (ev.Screen.X - c.pressScreen.X)
		c.transform.PanY = c.startPan.Y + (ev.Screen.Y - c.pressScreen.Y)

	case ModeIdle:
		c.hovered = ev.NodeID
	}
}

func (c *Controller) pointerUp() {
	if c.mode == ModeDraggingNode && !c.moved && c.navigate != nil {
		c.navigate(c.dragNode)
	}
	c.mode = ModeIdle
	c.moved = false
}
