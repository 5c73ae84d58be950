package nodeconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meikuraledutech/apiflow"
	"github.com/meikuraledutech/apiflow/registry"
)

// ErrEditorClosed is returned by Save after Close.
var ErrEditorClosed = errors.New("nodeconfig: editor closed")

// CommitFunc writes a saved config back to the node store.
type CommitFunc func(nodeID string, config json.RawMessage) error

// Dispatcher picks the editor variant for a node.
type Dispatcher struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over a registry. A nil logger means slog.Default().
func NewDispatcher(reg *registry.Registry, logger *slog.Logger) *Dispatcher {
	if reg == nil {
		reg = registry.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: reg, logger: logger}
}

// VariantFor returns the editor variant a node type is edited with.
// "default", empty and unknown types use the free-form fallback.
func (d *Dispatcher) VariantFor(nodeType string) registry.Variant {
	return d.registry.VariantOf(nodeType)
}

// Dispatch opens the editor matching node.Data.NodeType, drafted from the
// node's stored config. It never fails: a config that cannot be decoded is
// logged and the editor starts from the variant's defaults.
func (d *Dispatcher) Dispatch(node apiflow.Node, commit CommitFunc) *Editor {
	nodeType := node.Data.NodeType
	v := d.VariantFor(nodeType)

	draft, err := Decode(v, nodeType, node.Data.Config)
	if err != nil {
		d.logger.Warn("malformed node config, editing from defaults",
			"node", node.ID, "nodeType", nodeType, "error", err)
	}

	return &Editor{
		nodeID:   node.ID,
		nodeType: nodeType,
		title:    d.title(v, nodeType),
		draft:    draft,
		commit:   commit,
	}
}

func (d *Dispatcher) title(v registry.Variant, nodeType string) string {
	switch v {
	case registry.VariantRaw:
		return "Node Configuration"
	case registry.VariantSubForm:
		return "Sub Form Configuration"
	}
	if e, ok := d.registry.Lookup(nodeType); ok {
		return e.Label + " Configuration"
	}
	return "Node Configuration"
}

// Editor owns a local draft of one node's config. Edits touch only the draft;
// Save commits it in a single assignment.
type Editor struct {
	nodeID   string
	nodeType string
	title    string
	draft    Config
	commit   CommitFunc
	closed   bool
}

func (e *Editor) NodeID() string            { return e.nodeID }
func (e *Editor) NodeType() string          { return e.nodeType }
func (e *Editor) Title() string             { return e.title }
func (e *Editor) Variant() registry.Variant { return e.draft.Variant() }

// Draft returns the typed draft. Mutate it through a type assertion, e.g.
// editor.Draft().(*nodeconfig.URLConfig).URL = "https://example.com".
func (e *Editor) Draft() Config {
	return e.draft
}

// Load replaces the draft with a JSON document shaped like this variant's
// config. On error the draft is left unchanged.
func (e *Editor) Load(raw json.RawMessage) error {
	c, err := Decode(e.draft.Variant(), e.nodeType, raw)
	if err != nil {
		return err
	}
	e.draft = c
	return nil
}

// Encoded returns the draft as it would be committed.
func (e *Editor) Encoded() (json.RawMessage, error) {
	if err := e.draft.normalize(); err != nil {
		return nil, err
	}
	return Encode(e.draft)
}

// Render returns the draft for display. It does not validate, so a stored
// config that would fail Save still opens.
func (e *Editor) Render() (json.RawMessage, error) {
	return Encode(e.draft)
}

// Save validates the draft and commits it.
func (e *Editor) Save() error {
	if e.closed {
		return ErrEditorClosed
	}
	raw, err := e.Encoded()
	if err != nil {
		return err
	}
	if e.commit == nil {
		return fmt.Errorf("nodeconfig: editor for %s has no commit target", e.nodeID)
	}
	return e.commit(e.nodeID, raw)
}

// Close discards the draft.
func (e *Editor) Close() {
	e.closed = true
}

// Closed reports whether Close was called.
func (e *Editor) Closed() bool {
	return e.closed
}
