package viewstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r2"

	"topoviz/internal/interaction"
	"topoviz/internal/metrics"
	"topoviz/internal/positions"
	"topoviz/internal/view"
)

var ErrNoSession = errors.New("view session not found")

// Node hit radius in model space; matches the rendered node glyph size.
const nodeHitRadius = 16.0

const fitPadding = 48.0

// Session is one client's view of the scene: its own zoom/pan transform and
// gesture state machine over the shared position store. A mutex serializes
// the pointer stream; the transform and controller themselves are not
// concurrent-safe.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	lastSeen   time.Time
	transform  *view.Transform
	controller *interaction.Controller
	refresher  *Refresher
	navigated  *int64
}

// PointerInput is one pointer event from the client, in screen space.
type PointerInput struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// PointerResult reports the state machine's reaction to an event.
type PointerResult struct {
	Mode       string `json:"mode"`
	Hovered    *int64 `json:"hovered_node,omitempty"`
	NavigateTo *int64 `json:"navigate_to,omitempty"`
}

// ViewInfo is the session snapshot returned to clients.
type ViewInfo struct {
	ID      string  `json:"id"`
	Zoom    float64 `json:"zoom"`
	PanX    float64 `json:"pan_x"`
	PanY    float64 `json:"pan_y"`
	Mode    string  `json:"mode"`
	Hovered *int64  `json:"hovered_node,omitempty"`
}

// HandlePointer feeds one event through the interaction controller. The hit
// test runs server-side against the merged positions, in model space, so
// the client stays a dumb event forwarder.
func (s *Session) HandlePointer(in PointerInput) (PointerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()

	var evType interaction.EventType
	switch in.Type {
	case "down":
		evType = interaction.PointerDown
	case "move":
		evType = interaction.PointerMove
	case "up":
		evType = interaction.PointerUp
	case "leave":
		evType = interaction.PointerLeave
	default:
		return PointerResult{}, errors.New("invalid pointer event type")
	}

	screen := r2.Vec{X: in.X, Y: in.Y}
	var nodeID *int64
	if evType == interaction.PointerDown || evType == interaction.PointerMove {
		model := s.transform.ToModel(screen)
		nodeID = s.refresher.NodeAt(model.X, model.Y, nodeHitRadius)
	}

	s.navigated = nil
	s.controller.Handle(interaction.Event{Type: evType, Screen: screen, NodeID: nodeID})

	res := PointerResult{
		Mode:       s.controller.Mode().String(),
		Hovered:    s.controller.HoveredNode(),
		NavigateTo: s.navigated,
	}
	return res, nil
}

// ZoomBy applies a wheel delta to the session transform.
func (s *Session) ZoomBy(delta float64) ViewInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	s.transform.ZoomBy(delta)
	return s.viewLocked()
}

// ZoomAction handles the explicit zoom controls: in, out, reset, fit.
func (s *Session) ZoomAction(action string) (ViewInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()

	switch action {
	case "in":
		s.transform.ZoomBy(-view.ButtonZoomDelta)
	case "out":
		s.transform.ZoomBy(view.ButtonZoomDelta)
	case "reset":
		s.transform.Reset()
	case "fit":
		w, h := s.refresher.Canvas()
		s.transform.FitTo(s.refresher.Positions(), w, h, fitPadding)
	default:
		return ViewInfo{}, errors.New("invalid zoom action")
	}
	return s.viewLocked(), nil
}

// View returns the current viewport and gesture state.
func (s *Session) View() ViewInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() ViewInfo {
	return ViewInfo{
		ID:      s.ID,
		Zoom:    s.transform.Zoom,
		PanX:    s.transform.PanX,
		PanY:    s.transform.PanY,
		Mode:    s.controller.Mode().String(),
		Hovered: s.controller.HoveredNode(),
	}
}

// Sessions is the registry of live view sessions.
type Sessions struct {
	log       zerolog.Logger
	store     *positions.Store
	refresher *Refresher
	metrics   *metrics.Metrics
	ttl       time.Duration

	mu   sync.RWMutex
	byID map[string]*Session
}

func NewSessions(log zerolog.Logger, store *positions.Store, refresher *Refresher, m *metrics.Metrics, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Sessions{
		log:       log,
		store:     store,
		refresher: refresher,
		metrics:   m,
		ttl:       ttl,
		byID:      make(map[string]*Session),
	}
}

// Create registers a new session with an identity transform.
func (s *Sessions) Create() *Session {
	t := view.New()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		lastSeen:  time.Now(),
		transform: &t,
		refresher: s.refresher,
	}
	sess.controller = interaction.New(sess.transform, s.store, func(nodeID int64) {
		// Navigation is a one-way call surfaced to the client in the
		// pointer response; the device-detail view is not ours.
		sess.navigated = &nodeID
		s.log.Debug().Str("session", sess.ID).Int64("node", nodeID).Msg("node click navigation")
	})

	s.mu.Lock()
	s.byID[sess.ID] = sess
	n := len(s.byID)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(n)
	return sess
}

func (s *Sessions) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[id]
	if !ok {
		return nil, ErrNoSession
	}
	return sess, nil
}

func (s *Sessions) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNoSession
	}
	delete(s.byID, id)
	s.metrics.SetActiveSessions(len(s.byID))
	return nil
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Run prunes sessions idle past their TTL until ctx is done.
func (s *Sessions) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.prune()
		}
	}
}

func (s *Sessions) prune() {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	for id, sess := range s.byID {
		sess.mu.Lock()
		idle := sess.lastSeen.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.byID, id)
			s.log.Debug().Str("session", id).Msg("pruned idle view session")
		}
	}
	n := len(s.byID)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(n)
}
