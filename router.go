package studio

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/singleflight"
)

const (
	// RecorderID is the well-known endpoint wired to the mix bus.
	RecorderID = "recorder"

	// AnalyzerModule is the module name of the loudness analysis unit.
	AnalyzerModule = "loudness-analyzer"
)

// Connection is a directed wire between two endpoints.
type Connection struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

// connection holds the handles needed to sever a Connection.
type connection struct {
	Connection
	from     *GainNode
	to       AudioSink
	tap      *Tap
	analyzer *LoudnessAnalyzer
}

// RouterConfig configures a Router.
type RouterConfig struct {
	SampleRate    int           // Context sample rate (default: 48000)
	BlockSize     int           // Render quantum (default: 128)
	MeterBuffer   int           // Blocks buffered per analyzer tap (default: 8)
	MeterInterval time.Duration // Minimum spacing of loudness events (0 = every block)
	ManualClock   bool          // Mix only on explicit MixBus.Flush
	Logger        *log.Logger

	// NewContext creates the processing context. Defaults to NewAudioContext.
	NewContext func(AudioContextConfig) (*AudioContext, error)

	// LoadModule loads the analysis unit into a context. Nil loads nothing.
	LoadModule ModuleLoader
}

// DefaultRouterConfig returns a config with sensible defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		SampleRate:    48000,
		BlockSize:     128,
		MeterBuffer:   8,
		MeterInterval: 50 * time.Millisecond,
	}
}

// Router owns the audio graph: the processing context, one gain node per
// endpoint and the connections between them. Every connection is metered by
// its own LoudnessAnalyzer.
type Router struct {
	config RouterConfig

	mu    sync.Mutex
	actx  *AudioContext
	nodes map[string]*GainNode
	order []string
	conns []*connection

	loads  singleflight.Group
	meters *Broadcaster
	log    *log.Logger
}

// NewRouter creates a router. The processing context is created lazily by
// EnsureContextActive.
func NewRouter(config RouterConfig) *Router {
	def := DefaultRouterConfig()
	if config.SampleRate <= 0 {
		config.SampleRate = def.SampleRate
	}
	if config.BlockSize <= 0 {
		config.BlockSize = def.BlockSize
	}
	if config.MeterBuffer <= 0 {
		config.MeterBuffer = def.MeterBuffer
	}
	if config.NewContext == nil {
		config.NewContext = func(c AudioContextConfig) (*AudioContext, error) {
			return NewAudioContext(c), nil
		}
	}
	return &Router{
		config: config,
		nodes:  make(map[string]*GainNode),
		meters: NewBroadcaster(),
		log:    componentLogger(config.Logger, "router"),
	}
}

// EnsureContextActive creates the processing context and the recorder
// endpoint if the context is missing or closed, and resumes a suspended one.
func (r *Router) EnsureContextActive(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.actx != nil && r.actx.State() != ContextClosed {
		if err := r.actx.Resume(ctx); err != nil {
			return WrapError(ErrCodeResourceUnavailable, err, "resume audio context")
		}
		return nil
	}

	if r.actx != nil {
		// Nodes of a closed context never process again.
		r.log.Warn("audio context was closed, rebuilding graph")
		r.dropStaleLocked()
	}

	actx, err := r.config.NewContext(AudioContextConfig{
		SampleRate:  r.config.SampleRate,
		BlockSize:   r.config.BlockSize,
		Logger:      r.config.Logger,
		ManualClock: r.config.ManualClock,
	})
	if err != nil {
		return WrapError(ErrCodeResourceUnavailable, err, "create audio context")
	}
	if actx == nil {
		return NewError(ErrCodeResourceUnavailable, "audio context factory returned nil")
	}

	recorder, err := actx.NewGainNode(RecorderID)
	if err != nil {
		_ = actx.Close()
		return WrapError(ErrCodeResourceUnavailable, err, "create recorder endpoint")
	}
	if err := recorder.Connect(actx.MixBus()); err != nil {
		_ = actx.Close()
		return WrapError(ErrCodeResourceUnavailable, err, "wire recorder endpoint")
	}

	r.actx = actx
	r.nodes[RecorderID] = recorder
	r.order = append(r.order, RecorderID)
	r.log.Info("audio context created", "sample_rate", actx.SampleRate(), "block_size", actx.BlockSize())
	return nil
}

// dropStaleLocked forgets every node and connection of a closed context.
func (r *Router) dropStaleLocked() {
	for _, c := range r.conns {
		c.analyzer.Stop()
		c.tap.Close()
		r.meters.Forget(c.ID)
	}
	for _, n := range r.nodes {
		_ = n.Release()
	}
	r.conns = nil
	r.nodes = make(map[string]*GainNode)
	r.order = nil
	r.actx = nil
}

// LoadAnalysisUnit loads the loudness analysis module into the context once.
// Concurrent callers share a single in-flight load; after a successful load
// it returns immediately. A failed load is retried by the next call.
func (r *Router) LoadAnalysisUnit(ctx context.Context) error {
	if err := r.EnsureContextActive(ctx); err != nil {
		return err
	}
	actx := r.Context()
	if actx == nil {
		return NewError(ErrCodeResourceUnavailable, "audio context is gone")
	}
	if actx.HasModule(AnalyzerModule) {
		return nil
	}

	// A load belongs to one context; a rebuilt context starts its own.
	key := fmt.Sprintf("%s@%p", AnalyzerModule, actx)
	ch := r.loads.DoChan(key, func() (any, error) {
		if actx.HasModule(AnalyzerModule) {
			return nil, nil
		}
		// The load outlives any single caller.
		err := actx.AddModule(context.WithoutCancel(ctx), AnalyzerModule, r.config.LoadModule)
		if err != nil {
			r.log.Error("analysis unit load failed", "err", err)
		}
		return nil, err
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// RegisterEndpoint creates the gain node of id. Registering an existing id
// returns the existing node.
func (r *Router) RegisterEndpoint(ctx context.Context, id string) (*GainNode, error) {
	if err := r.EnsureContextActive(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.nodes[id]; ok {
		return n, nil
	}
	if r.actx == nil {
		return nil, NewError(ErrCodeResourceUnavailable, "audio context is gone")
	}
	n, err := r.actx.NewGainNode(id)
	if err != nil {
		return nil, err
	}
	r.nodes[id] = n
	r.order = append(r.order, id)
	r.log.Debug("endpoint registered", "id", id)
	return n, nil
}

// Connect wires from to to and starts metering the new connection. Nothing
// is recorded when any step fails.
func (r *Router) Connect(ctx context.Context, from, to string) (Connection, error) {
	if from == to {
		return Connection{}, NewError(ErrCodeSelfLoop, "cannot connect %q to itself", from)
	}
	if err := r.LoadAnalysisUnit(ctx); err != nil {
		return Connection{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.nodes[from]
	if !ok {
		return Connection{}, NewError(ErrCodeUnknownEndpoint, "endpoint %q is not registered", from)
	}
	dst, ok := r.nodes[to]
	if !ok {
		return Connection{}, NewError(ErrCodeUnknownEndpoint, "endpoint %q is not registered", to)
	}

	if err := src.Connect(dst); err != nil {
		r.log.Error("connect failed", "from", from, "to", to, "err", err)
		return Connection{}, err
	}
	tap, err := src.Tap(r.config.MeterBuffer)
	if err != nil {
		_ = src.Disconnect(dst)
		r.log.Error("meter tap failed", "from", from, "to", to, "err", err)
		return Connection{}, err
	}

	c := &connection{
		Connection: Connection{ID: uuid.NewString(), From: from, To: to},
		from:       src,
		to:         dst,
		tap:        tap,
	}
	c.analyzer = NewLoudnessAnalyzer(c.Connection, tap, r.config.MeterInterval, r.meters.Broadcast)
	c.analyzer.Start()
	r.conns = append(r.conns, c)

	r.log.Debug("connected", "id", c.ID, "from", from, "to", to)
	return c.Connection, nil
}

// Disconnect severs conn and stops its analyzer. Disconnecting an unknown or
// already disconnected connection is a no-op.
func (r *Router) Disconnect(conn Connection) error {
	r.mu.Lock()
	i := slices.IndexFunc(r.conns, func(c *connection) bool { return c.ID == conn.ID })
	if i < 0 {
		r.mu.Unlock()
		return nil
	}
	c := r.conns[i]
	r.conns = slices.Delete(r.conns, i, i+1)
	r.mu.Unlock()

	return r.sever(c)
}

// sever undoes the wiring of a connection already removed from bookkeeping.
func (r *Router) sever(c *connection) error {
	c.analyzer.Stop()
	c.tap.Close()
	r.meters.Forget(c.ID)

	if err := c.from.Disconnect(c.to); err != nil {
		r.log.Warn("disconnect failed", "id", c.ID, "err", err)
		return WrapError(ErrCodeTeardownFault, err, "disconnect %s", c.ID)
	}
	r.log.Debug("disconnected", "id", c.ID)
	return nil
}

// ReleaseEndpoint disconnects every connection touching id and releases its
// node. Releasing an unknown id is a no-op.
func (r *Router) ReleaseEndpoint(id string) error {
	r.mu.Lock()
	var touching []*connection
	r.conns = slices.DeleteFunc(r.conns, func(c *connection) bool {
		if c.From == id || c.To == id {
			touching = append(touching, c)
			return true
		}
		return false
	})
	n := r.nodes[id]
	delete(r.nodes, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	r.mu.Unlock()

	var result *multierror.Error
	for _, c := range touching {
		if err := r.sever(c); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if n != nil {
		if err := n.Release(); err != nil {
			result = multierror.Append(result, WrapError(ErrCodeTeardownFault, err, "release %s", id))
		}
		r.log.Debug("endpoint released", "id", id)
	}
	return result.ErrorOrNil()
}

// TeardownAll disconnects every connection, releases every node and closes
// the processing context. Every step runs even when an earlier one fails.
// Calling it again is a no-op.
func (r *Router) TeardownAll() error {
	r.mu.Lock()
	conns := r.conns
	nodes := make([]*GainNode, 0, len(r.order))
	for _, id := range r.order {
		nodes = append(nodes, r.nodes[id])
	}
	actx := r.actx
	r.conns = nil
	r.nodes = make(map[string]*GainNode)
	r.order = nil
	r.actx = nil
	r.mu.Unlock()

	var result *multierror.Error
	for _, c := range conns {
		if err := r.sever(c); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, n := range nodes {
		if err := n.Release(); err != nil {
			result = multierror.Append(result, WrapError(ErrCodeTeardownFault, err, "release %s", n.ID()))
		}
	}
	if actx != nil {
		if err := actx.Close(); err != nil {
			result = multierror.Append(result, WrapError(ErrCodeTeardownFault, err, "close audio context"))
		}
		r.log.Info("audio graph torn down", "connections", len(conns), "endpoints", len(nodes))
	}
	return result.ErrorOrNil()
}

// Close tears the graph down and closes every loudness subscription.
func (r *Router) Close() error {
	err := r.TeardownAll()
	r.meters.Close()
	return err
}

// SetGain sets the gain of endpoint id.
func (r *Router) SetGain(id string, gain float64) error {
	n, err := r.node(id)
	if err != nil {
		return err
	}
	n.SetGain(gain)
	return nil
}

// Push feeds a captured block into endpoint id.
func (r *Router) Push(id string, b *AudioBlock) error {
	n, err := r.node(id)
	if err != nil {
		return err
	}
	n.Process(b)
	return nil
}

func (r *Router) node(id string) (*GainNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return nil, NewError(ErrCodeUnknownEndpoint, "endpoint %q is not registered", id)
	}
	return n, nil
}

// Connections returns all connections in registration order.
func (r *Router) Connections() []Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Connection, len(r.conns))
	for i, c := range r.conns {
		out[i] = c.Connection
	}
	return out
}

// ConnectionsOf returns the connections that start or end at id.
func (r *Router) ConnectionsOf(id string) []Connection {
	return slices.DeleteFunc(r.Connections(), func(c Connection) bool {
		return c.From != id && c.To != id
	})
}

// Endpoints returns the registered endpoint ids in registration order.
func (r *Router) Endpoints() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Subscribe returns a channel of loudness events for every connection.
func (r *Router) Subscribe(subscriberID string, bufferSize int) <-chan LoudnessEvent {
	return r.meters.Subscribe(subscriberID, bufferSize)
}

// Unsubscribe closes a loudness subscription.
func (r *Router) Unsubscribe(subscriberID string) {
	r.meters.Unsubscribe(subscriberID)
}

// Levels returns the latest loudness event of every live connection.
func (r *Router) Levels() map[string]LoudnessEvent {
	return r.meters.Latest()
}

// MixTrack returns a new audio track of the mix bus.
func (r *Router) MixTrack(ctx context.Context) (*MixTrack, error) {
	if err := r.EnsureContextActive(ctx); err != nil {
		return nil, err
	}
	actx := r.Context()
	if actx == nil {
		return nil, NewError(ErrCodeResourceUnavailable, "audio context is gone")
	}
	return actx.MixBus().Track(), nil
}

// Context returns the current processing context, or nil.
func (r *Router) Context() *AudioContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.actx
}
