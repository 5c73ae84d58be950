package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/meikuraledutech/apiflow"
	"github.com/meikuraledutech/apiflow/nodeconfig"
	"github.com/meikuraledutech/apiflow/registry"
)

// Transform maps a screen point to canvas coordinates.
type Transform interface {
	ScreenToCanvas(p apiflow.Position) apiflow.Position
}

// Viewport is the pan/zoom state of the canvas.
type Viewport struct {
	OffsetX float64 `json:"x"`
	OffsetY float64 `json:"y"`
	Zoom    float64 `json:"zoom"`
}

// ScreenToCanvas undoes the pan and zoom. A zero zoom is treated as 1.
func (v Viewport) ScreenToCanvas(p apiflow.Position) apiflow.Position {
	zoom := v.Zoom
	if zoom == 0 {
		zoom = 1
	}
	return apiflow.Position{
		X: (p.X - v.OffsetX) / zoom,
		Y: (p.Y - v.OffsetY) / zoom,
	}
}

// Identity is the transform of an unpanned, unzoomed canvas.
var Identity Transform = Viewport{Zoom: 1}

// Connection is a connect gesture between two handles.
type Connection struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Selection is the current selection. At most one of the two is set.
type Selection struct {
	NodeID string `json:"nodeId,omitempty"`
	EdgeID string `json:"edgeId,omitempty"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithTransform sets the screen-to-canvas transform used by OnDrop.
func WithTransform(t Transform) Option {
	return func(c *Controller) { c.transform = t }
}

// WithLogger sets the logger rejected gestures are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEdgeIDs overrides the edge id generator.
func WithEdgeIDs(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.edgeID = fn
		}
	}
}

// WithConfigSaved registers a callback run after a node config was saved.
func WithConfigSaved(fn func(nodeID string)) Option {
	return func(c *Controller) { c.configSaved = fn }
}

// Controller translates canvas gestures into store mutations. Every handler
// is total: rejected gestures are logged and reported through the bool result.
type Controller struct {
	store       *Store
	registry    *registry.Registry
	dispatcher  *nodeconfig.Dispatcher
	transform   Transform
	logger      *slog.Logger
	edgeID      func() string
	configSaved func(string)

	mu  sync.Mutex
	sel Selection
}

// NewController creates a controller over store. A nil registry means registry.Default().
func NewController(store *Store, reg *registry.Registry, opts ...Option) *Controller {
	if reg == nil {
		reg = registry.Default()
	}
	c := &Controller{
		store:     store,
		registry:  reg,
		transform: Identity,
		logger:    slog.Default(),
		edgeID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.dispatcher = nodeconfig.NewDispatcher(reg, c.logger)
	return c
}

// Store returns the store the controller mutates.
func (c *Controller) Store() *Store { return c.store }

// SetTransform replaces the screen-to-canvas transform, e.g. after a pan.
func (c *Controller) SetTransform(t Transform) {
	c.mu.Lock()
	c.transform = t
	c.mu.Unlock()
}

// OnDrop creates a node of the dropped type at the canvas point under screen.
func (c *Controller) OnDrop(nodeType string, screen apiflow.Position) (apiflow.Node, bool) {
	if nodeType == "" {
		c.logger.Debug("drop ignored: no node type")
		return apiflow.Node{}, false
	}
	entry, ok := c.registry.Lookup(nodeType)
	if !ok {
		c.logger.Warn("drop ignored: unknown node type", "nodeType", nodeType)
		return apiflow.Node{}, false
	}

	c.mu.Lock()
	t := c.transform
	c.mu.Unlock()
	if t == nil {
		c.logger.Warn("drop ignored: canvas transform not ready", "nodeType", nodeType)
		return apiflow.Node{}, false
	}

	n, err := c.store.AddNodeSeq(nodeType, apiflow.Node{
		Type:     apiflow.RendererType,
		Position: t.ScreenToCanvas(screen),
		Data: apiflow.NodeData{
			NodeType: entry.Key,
			Label:    entry.Label,
			Icon:     entry.Icon,
			Group:    entry.Group,
		},
	})
	if err != nil {
		c.logger.Warn("drop rejected", "nodeType", nodeType, "error", err)
		return apiflow.Node{}, false
	}
	return n, true
}

// OnConnect adds an edge for a connect gesture. Connections into a start node
// are dropped silently; unknown endpoints and duplicates are logged.
func (c *Controller) OnConnect(conn Connection) (apiflow.Edge, bool) {
	target, ok := c.store.Node(conn.Target)
	if ok && target.IsStart() {
		return apiflow.Edge{}, false
	}
	if !ok || !c.store.HasNode(conn.Source) {
		c.logger.Warn("connect rejected: unknown endpoint", "source", conn.Source, "target", conn.Target)
		return apiflow.Edge{}, false
	}
	for _, e := range c.store.Snapshot().Edges {
		if e.Source == conn.Source && e.Target == conn.Target &&
			e.SourceHandle == conn.SourceHandle && e.TargetHandle == conn.TargetHandle {
			c.logger.Debug("connect ignored: edge exists", "edge", e.ID)
			return apiflow.Edge{}, false
		}
	}

	e := apiflow.Edge{
		ID:           c.edgeID(),
		Source:       conn.Source,
		Target:       conn.Target,
		SourceHandle: conn.SourceHandle,
		TargetHandle: conn.TargetHandle,
	}
	if err := c.store.AddEdge(e); err != nil {
		c.logger.Warn("connect rejected", "edge", e.ID, "error", err)
		return apiflow.Edge{}, false
	}
	return e, true
}

// OnNodeClick selects a node and clears any edge selection.
func (c *Controller) OnNodeClick(id string) bool {
	if !c.store.HasNode(id) {
		return false
	}
	c.mu.Lock()
	c.sel = Selection{NodeID: id}
	c.mu.Unlock()
	return true
}

// OnEdgeClick selects an edge and clears any node selection.
func (c *Controller) OnEdgeClick(id string) bool {
	if _, ok := c.store.Edge(id); !ok {
		return false
	}
	c.mu.Lock()
	c.sel = Selection{EdgeID: id}
	c.mu.Unlock()
	return true
}

// OnPaneClick clears the selection.
func (c *Controller) OnPaneClick() {
	c.mu.Lock()
	c.sel = Selection{}
	c.mu.Unlock()
}

// Selection returns the current selection.
func (c *Controller) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel
}

// OnNodeDoubleClick opens the configuration editor of a node. Saving the
// editor commits through SaveConfig.
func (c *Controller) OnNodeDoubleClick(id string) (*nodeconfig.Editor, bool) {
	n, ok := c.store.Node(id)
	if !ok {
		c.logger.Warn("editor not opened: unknown node", "node", id)
		return nil, false
	}
	return c.dispatcher.Dispatch(n, c.SaveConfig), true
}

// Dispatcher returns the config dispatcher bound to the controller's registry.
func (c *Controller) Dispatcher() *nodeconfig.Dispatcher { return c.dispatcher }

// OnDeleteNode removes a node and its edges and drops any selection that
// pointed at them.
func (c *Controller) OnDeleteNode(id string) bool {
	if !c.store.RemoveNode(id) {
		return false
	}
	c.mu.Lock()
	if c.sel.NodeID == id {
		c.sel.NodeID = ""
	}
	if c.sel.EdgeID != "" {
		if _, ok := c.store.Edge(c.sel.EdgeID); !ok {
			c.sel.EdgeID = ""
		}
	}
	c.mu.Unlock()
	return true
}

// OnDeleteEdge removes an edge.
func (c *Controller) OnDeleteEdge(id string) bool {
	if !c.store.RemoveEdge(id) {
		return false
	}
	c.mu.Lock()
	if c.sel.EdgeID == id {
		c.sel.EdgeID = ""
	}
	c.mu.Unlock()
	return true
}

// RequestDelete is the delete request a node renderer issues for itself.
func (c *Controller) RequestDelete(id string) {
	if !c.OnDeleteNode(id) {
		c.logger.Debug("delete request for missing node", "node", id)
	}
}

// DeleteCapability returns RequestDelete as a value to hand to renderers.
func (c *Controller) DeleteCapability() func(string) {
	return c.RequestDelete
}

// SaveConfig stores a node's config and re-derives its label from the
// config's name (or formName). A malformed config keeps the current label.
func (c *Controller) SaveConfig(nodeID string, raw json.RawMessage) error {
	if len(raw) > 0 && !json.Valid(raw) {
		return fmt.Errorf("graph: save config for %s: %w", nodeID, nodeconfig.ErrInvalidConfig)
	}
	err := c.store.UpdateNode(nodeID, func(n *apiflow.Node) {
		n.Data.Config = bytes.Clone(raw)
		label := nodeconfig.DeriveLabel(raw, n.Data.Label)
		if label == n.Data.Label && len(raw) > 0 {
			c.logger.Debug("config carries no name, label kept", "node", nodeID)
		}
		n.Data.Label = label
	})
	if err != nil {
		return err
	}
	if c.configSaved != nil {
		c.configSaved(nodeID)
	}
	return nil
}
