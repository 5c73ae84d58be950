// Package session manages editor sessions: one open flow each, with its
// graph store, its controller and the save/load/validate round-trips.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meikuraledutech/apiflow"
	"github.com/meikuraledutech/apiflow/client"
	"github.com/meikuraledutech/apiflow/flowjson"
	"github.com/meikuraledutech/apiflow/graph"
	"github.com/meikuraledutech/apiflow/registry"
)

var (
	ErrSessionNotFound = errors.New("session: not found")
	ErrNoValidator     = errors.New("session: no validator configured")
)

// Validator runs remote validation of a serialized flow.
type Validator interface {
	Validate(ctx context.Context, mode client.Mode, doc flowjson.Document) (json.RawMessage, error)
}

// Result is what the validation panel displays.
type Result struct {
	Mode   client.Mode     `json:"mode"`
	Body   json.RawMessage `json:"result"`
	Failed bool            `json:"failed"`
	At     time.Time       `json:"at"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithRegistry sets the node-type registry.
func WithRegistry(r *registry.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// Manager owns the open editor sessions.
type Manager struct {
	flows     apiflow.Store
	validator Validator
	registry  *registry.Registry
	logger    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. validator may be nil, in which
// case Validate fails with ErrNoValidator.
func NewManager(flows apiflow.Store, validator Validator, opts ...Option) *Manager {
	m := &Manager{
		flows:     flows,
		validator: validator,
		registry:  registry.Default(),
		logger:    slog.Default(),
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the manager's node-type registry.
func (m *Manager) Registry() *registry.Registry { return m.registry }

// Open starts a session. flowID "new" (or empty) opens an empty unsaved
// flow; any other id is loaded from the store.
func (m *Manager) Open(ctx context.Context, flowID string) (*Session, error) {
	s := m.newSession()
	if flowID != "" && flowID != apiflow.NewFlowID {
		s.flowID = flowID
		if err := s.Reload(ctx); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.logger.Info("session opened", "session", s.id, "flow", s.FlowID())
	return s, nil
}

func (m *Manager) newSession() *Session {
	s := &Session{
		id:        uuid.NewString(),
		flowID:    apiflow.NewFlowID,
		flows:     m.flows,
		validator: m.validator,
		registry:  m.registry,
		store:     graph.NewStore(),
		created:   time.Now(),
	}
	s.logger = m.logger.With("session", s.id)
	s.ctrl = graph.NewController(s.store, m.registry, graph.WithLogger(s.logger))
	return s
}

// Get returns an open session, or ErrSessionNotFound.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Close ends a session. It reports whether the session was open.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		m.logger.Info("session closed", "session", id)
	}
	return ok
}

// List returns the open sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].created.Before(out[j].created) })
	return out
}

// Session is one open flow in the editor.
type Session struct {
	id        string
	flows     apiflow.Store
	validator Validator
	registry  *registry.Registry
	logger    *slog.Logger
	store     *graph.Store
	ctrl      *graph.Controller
	epochs    Epochs
	created   time.Time

	// applyMu makes an epoch check and the state change it guards atomic.
	applyMu sync.Mutex

	mu         sync.Mutex
	flowID     string
	name       string
	status     string
	version    int
	validation *Result
}

func (s *Session) ID() string                    { return s.id }
func (s *Session) Store() *graph.Store           { return s.store }
func (s *Session) Controller() *graph.Controller { return s.ctrl }

// FlowID returns the id of the open flow, "new" until it is first saved.
func (s *Session) FlowID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flowID
}

// Name returns the flow name.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// SetName renames the flow.
func (s *Session) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// Flow returns the current contents as a flow.
func (s *Session) Flow() *apiflow.Flow {
	snap := s.store.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	return &apiflow.Flow{
		ID:      s.flowID,
		Name:    s.name,
		Status:  s.status,
		Version: s.version,
		Nodes:   snap.Nodes,
		Edges:   snap.Edges,
	}
}

// Document returns the current contents in wire form.
func (s *Session) Document() flowjson.Document {
	return flowjson.Serialize(s.Flow(), s.registry)
}

// Import replaces the graph with an uploaded document. A non-empty name in
// the document replaces the flow name; the flow id is kept.
func (s *Session) Import(doc flowjson.Document) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	s.epochs.Begin(KindLoad)
	f := flowjson.Deserialize(doc, s.registry)
	if f.Name != "" {
		s.SetName(f.Name)
	}
	s.store.ReplaceAll(f.Nodes, f.Edges)
	s.ctrl.OnPaneClick()
}

// Reload fetches the flow from the store and replaces the graph.
func (s *Session) Reload(ctx context.Context) error {
	flowID := s.FlowID()
	if flowID == apiflow.NewFlowID {
		return fmt.Errorf("session: reload: %w", apiflow.ErrFlowNotFound)
	}
	epoch := s.epochs.Begin(KindLoad)
	f, err := s.flows.GetFlow(ctx, flowID)
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if !s.epochs.Current(KindLoad, epoch) {
		return ErrStale
	}
	if err != nil {
		s.logger.Warn("flow load failed", "flow", flowID, "error", err)
		return fmt.Errorf("session: load %s: %w", flowID, err)
	}
	if f == nil {
		return fmt.Errorf("session: load %s: %w", flowID, apiflow.ErrFlowNotFound)
	}

	// Labels and icons are re-derived the same way for every store.
	loaded := flowjson.Deserialize(flowjson.Serialize(f, s.registry), s.registry)

	s.mu.Lock()
	s.name = f.Name
	s.status = f.Status
	s.version = f.Version
	s.mu.Unlock()
	s.store.ReplaceAll(loaded.Nodes, loaded.Edges)
	s.ctrl.OnPaneClick()
	return nil
}

// Save persists the flow. A new flow adopts the id the store assigns.
func (s *Session) Save(ctx context.Context) (string, error) {
	f := s.Flow()
	if strings.TrimSpace(f.Name) == "" {
		return "", apiflow.ErrNameRequired
	}

	epoch := s.epochs.Begin(KindSave)
	id, err := s.flows.SaveFlow(ctx, f)
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if !s.epochs.Current(KindSave, epoch) {
		return "", ErrStale
	}
	if err != nil {
		s.logger.Warn("flow save failed", "flow", f.ID, "error", err)
		return "", fmt.Errorf("session: save: %w", err)
	}

	s.mu.Lock()
	if s.flowID == apiflow.NewFlowID || s.flowID == "" {
		s.flowID = id
	}
	s.mu.Unlock()
	s.logger.Info("flow saved", "flow", id, "nodes", len(f.Nodes), "edges", len(f.Edges))
	return id, nil
}

// Validate sends the flow to the validator for mode. Transport failures do
// not return an error: they become the displayed result.
func (s *Session) Validate(ctx context.Context, mode client.Mode) (Result, error) {
	if s.validator == nil {
		return Result{}, ErrNoValidator
	}
	doc := s.Document()

	epoch := s.epochs.Begin(KindValidate)
	body, err := s.validator.Validate(ctx, mode, doc)
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if !s.epochs.Current(KindValidate, epoch) {
		return Result{}, ErrStale
	}

	res := Result{Mode: mode, Body: body, At: time.Now()}
	if err != nil {
		s.logger.Warn("validation failed", "mode", mode, "error", err)
		res.Failed = true
		res.Body, _ = json.Marshal(map[string]string{"error": "Error validating flow: " + err.Error()})
	}

	s.mu.Lock()
	s.validation = &res
	s.mu.Unlock()
	return res, nil
}

// LastValidation returns the most recent validation result.
func (s *Session) LastValidation() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.validation == nil {
		return Result{}, false
	}
	return *s.validation, true
}

// View is the JSON projection of a session.
type View struct {
	ID         string          `json:"id"`
	FlowID     string          `json:"flowId"`
	Name       string          `json:"name"`
	Revision   uint64          `json:"revision"`
	Nodes      []apiflow.Node  `json:"nodes"`
	Edges      []apiflow.Edge  `json:"edges"`
	Selection  graph.Selection `json:"selection"`
	Validation *Result         `json:"validation,omitempty"`
}

// View returns the session's current state.
func (s *Session) View() View {
	snap := s.store.Snapshot()
	v := View{
		ID:        s.id,
		Nodes:     snap.Nodes,
		Edges:     snap.Edges,
		Revision:  snap.Revision,
		Selection: s.ctrl.Selection(),
	}
	s.mu.Lock()
	v.FlowID = s.flowID
	v.Name = s.name
	if s.validation != nil {
		r := *s.validation
		v.Validation = &r
	}
	s.mu.Unlock()
	return v
}
