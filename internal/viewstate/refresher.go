// Package viewstate ties the core together: it polls the topology source,
// recomputes model + layout + position merge on every snapshot, and owns the
// interactive view sessions that drags, pans, and zooms flow through.
package viewstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"topoviz/internal/layout"
	"topoviz/internal/metrics"
	"topoviz/internal/positions"
	"topoviz/internal/pubsub"
	"topoviz/internal/scene"
	"topoviz/internal/search"
	"topoviz/internal/source"
	"topoviz/internal/topo"
)

// SceneTopic is the pubsub topic scene-change notifications are published on.
const SceneTopic = "scene"

// SceneUpdate is the notification payload; clients re-fetch the full scene.
type SceneUpdate struct {
	State   scene.State `json:"state"`
	Nodes   int         `json:"nodes"`
	Edges   int         `json:"edges"`
	Regions int         `json:"regions"`
}

type Options struct {
	PollInterval     time.Duration
	DiscoveryRedelay time.Duration
	CanvasWidth      float64
	CanvasHeight     float64
}

// Refresher runs the refresh pipeline. Layout runs in full on every
// snapshot; the merge discards the freshly computed position for any id the
// store already knows, so only genuinely new nodes get placed.
type Refresher struct {
	log     zerolog.Logger
	src     source.Source
	engine  *layout.Engine
	store   *positions.Store
	broker  *pubsub.Broker
	metrics *metrics.Metrics

	pollInterval     time.Duration
	discoveryRedelay time.Duration
	canvasW          float64
	canvasH          float64

	kick chan struct{}

	mu       sync.RWMutex
	model    topo.Model
	regions  []layout.Region
	state    scene.State
	lastErr  string
	lastPoll time.Time
}

func New(log zerolog.Logger, src source.Source, engine *layout.Engine, store *positions.Store, broker *pubsub.Broker, m *metrics.Metrics, opts Options) *Refresher {
	pi := opts.PollInterval
	if pi <= 0 {
		pi = 15 * time.Second
	}
	rd := opts.DiscoveryRedelay
	if rd <= 0 {
		rd = 10 * time.Second
	}
	cw := opts.CanvasWidth
	if cw <= 0 {
		cw = 1600
	}
	ch := opts.CanvasHeight
	if ch <= 0 {
		ch = 900
	}

	return &Refresher{
		log:              log,
		src:              src,
		engine:           engine,
		store:            store,
		broker:           broker,
		metrics:          m,
		pollInterval:     pi,
		discoveryRedelay: rd,
		canvasW:          cw,
		canvasH:          ch,
		kick:             make(chan struct{}, 1),
		state:            scene.StateEmpty,
		regions:          []layout.Region{},
	}
}

// Run polls the source until ctx is done. A Kick triggers an immediate
// refresh without waiting for the next tick.
func (r *Refresher) Run(ctx context.Context) {
	r.refreshOnce(ctx)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshOnce(ctx)
		case <-r.kick:
			r.refreshOnce(ctx)
		}
	}
}

// Kick schedules an immediate refresh. Non-blocking; coalesces with any
// refresh already pending.
func (r *Refresher) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Refresh performs one synchronous refresh pass. Exposed for the manual
// refresh endpoint and tests; Run uses the same path.
func (r *Refresher) Refresh(ctx context.Context) error {
	return r.refreshOnce(ctx)
}

func (r *Refresher) refreshOnce(ctx context.Context) error {
	start := time.Now()

	snap, err := r.src.Fetch(ctx)
	if err != nil {
		r.mu.Lock()
		r.state = scene.StateError
		r.lastErr = err.Error()
		r.model = topo.Model{}
		r.regions = []layout.Region{}
		r.lastPoll = start
		r.mu.Unlock()

		r.metrics.ObserveRefresh("error", time.Since(start))
		r.log.Warn().Err(err).Msg("topology fetch failed")
		r.publish()
		return err
	}

	model := topo.Build(snap.Nodes, snap.Edges)

	layoutStart := time.Now()
	res := r.engine.Layout(model.Nodes, r.canvasW, r.canvasH)
	r.metrics.ObserveLayout(time.Since(layoutStart))

	// Merge after layout with the store as it is *now*: a position written
	// by a drag that started before this pass is "existing" and wins.
	r.store.Apply(res.Positions, model.IDSet())

	state := scene.StateOK
	if len(model.Nodes) == 0 {
		state = scene.StateEmpty
	}

	r.mu.Lock()
	r.model = model
	r.regions = res.Regions
	r.state = state
	r.lastErr = ""
	r.lastPoll = start
	r.mu.Unlock()

	r.metrics.ObserveRefresh("ok", time.Since(start))
	r.metrics.SetSceneSize(len(model.Nodes), len(model.Edges), len(res.Regions))
	r.log.Debug().
		Int("nodes", len(model.Nodes)).
		Int("edges", len(model.Edges)).
		Int("regions", len(res.Regions)).
		Dur("took", time.Since(start)).
		Msg("topology refreshed")

	r.publish()
	return nil
}

func (r *Refresher) publish() {
	if r.broker == nil {
		return
	}
	r.mu.RLock()
	update := SceneUpdate{
		State:   r.state,
		Nodes:   len(r.model.Nodes),
		Edges:   len(r.model.Edges),
		Regions: len(r.regions),
	}
	r.mu.RUnlock()

	if err := r.broker.Publish(SceneTopic, "scene_updated", update); err != nil && !errors.Is(err, pubsub.ErrClosed) {
		r.log.Warn().Err(err).Msg("scene publish failed")
	}
}

// RunDiscovery forwards the discovery trigger upstream and schedules one
// extra re-poll after the configured delay so the rediscovered inventory
// shows up without waiting a full interval. A failed trigger leaves the
// current scene untouched.
func (r *Refresher) RunDiscovery(ctx context.Context) error {
	if err := r.src.RunDiscovery(ctx); err != nil {
		r.metrics.IncDiscoveryTrigger("error")
		return err
	}
	r.metrics.IncDiscoveryTrigger("ok")

	go func() {
		t := time.NewTimer(r.discoveryRedelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
			r.Kick()
		}
	}()
	return nil
}

// Ping reports source reachability for the readiness probe.
func (r *Refresher) Ping(ctx context.Context) error {
	return r.src.Ping(ctx)
}

// Scene composes the current scene, applying the search query's fades.
func (r *Refresher) Scene(query string) scene.Scene {
	r.mu.RLock()
	state := r.state
	lastErr := r.lastErr
	model := r.model
	regions := r.regions
	r.mu.RUnlock()

	switch state {
	case scene.StateError:
		return scene.Errored(lastErr)
	case scene.StateEmpty:
		return scene.Empty()
	}

	matched := search.Match(query, model.Nodes)
	s := scene.Build(model, r.store.Snapshot(), regions, r.engine.TierOf, matched, search.Active(query))
	s.Query = query
	return s
}

// NodeAt hit-tests a model-space point against node positions, nearest
// first within the radius. Used to resolve pointer-down targets.
func (r *Refresher) NodeAt(x, y, radius float64) *int64 {
	r.mu.RLock()
	model := r.model
	r.mu.RUnlock()

	pos := r.store.Snapshot()
	var best *int64
	bestDist := radius * radius
	for id := range model.NodeByID {
		p, ok := pos[id]
		if !ok {
			continue
		}
		dx := p.X - x
		dy := p.Y - y
		d := dx*dx + dy*dy
		if d <= bestDist {
			id := id
			best = &id
			bestDist = d
		}
	}
	return best
}

// Positions exposes the merged store snapshot (for fit-to-view).
func (r *Refresher) Positions() map[int64]layout.Position {
	return r.store.Snapshot()
}

// Canvas returns the model-space canvas dimensions layout runs against.
func (r *Refresher) Canvas() (w, h float64) {
	return r.canvasW, r.canvasH
}
