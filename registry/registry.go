// Package registry is the catalog of flow node types: display metadata and the
// configuration variant each type is edited with.
package registry

import (
	"fmt"
	"sync"
)

// Variant tags the configuration shape a node type carries.
type Variant string

const (
	VariantStart                 Variant = "start"
	VariantURL                   Variant = "url"
	VariantStaticValue           Variant = "staticValue"
	VariantSubForm               Variant = "subForm"
	VariantComparison            Variant = "comparison"
	VariantLogical               Variant = "logical"
	VariantErrorMessage          Variant = "errorMessage"
	VariantWarningMessage        Variant = "warningMessage"
	VariantInput                 Variant = "input"
	VariantOutput                Variant = "output"
	VariantEntity                Variant = "entity"
	VariantNotification          Variant = "notification"
	VariantDelayNotification     Variant = "delayNotification"
	VariantBulkUpload            Variant = "bulkUpload"
	VariantSAP                   Variant = "sap"
	VariantBot                   Variant = "bot"
	VariantIOTAlarms             Variant = "iotAlarms"
	VariantIfBlock               Variant = "ifBlock"
	VariantInformation           Variant = "information"
	VariantProcessCategorisation Variant = "processCategorisation"
	VariantProcessTerminate      Variant = "processTerminate"
	VariantSchedule              Variant = "schedule"
	VariantSecondaryForm         Variant = "secondaryForm"

	// VariantRaw is the free-form fallback editor. No registry entry uses it.
	VariantRaw Variant = "default"
)

// Palette groups.
const (
	GroupSource     = "source"
	GroupOperator   = "operator"
	GroupMessages   = "messages"
	GroupM4         = "m4"
	GroupAutomation = "automation"
	GroupPrimary    = "primary"
)

// Entry describes one node type.
type Entry struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Group   string  `json:"group"`
	Icon    string  `json:"icon"`
	Variant Variant `json:"variant"`
}

// Group is a palette tab with its node types in display order.
type Group struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Entries []Entry `json:"entries"`
}

var groupLabels = map[string]string{
	GroupSource:     "Source",
	GroupOperator:   "Operator",
	GroupMessages:   "Messages",
	GroupM4:         "M4",
	GroupAutomation: "Automation",
	GroupPrimary:    "Primary",
}

var groupOrder = []string{GroupSource, GroupOperator, GroupMessages, GroupM4, GroupAutomation, GroupPrimary}

// builtin is the authoritative node-type table.
var builtin = []Entry{
	{"start", "Start", GroupSource, "▶️", VariantStart},
	{"url", "URL", GroupSource, "🔗", VariantURL},
	{"staticValue", "Static Value", GroupSource, "📝", VariantStaticValue},
	{"questionId", "Question ID", GroupSource, "❓", VariantSubForm},

	{"equalTo", "Equal to", GroupOperator, "=", VariantComparison},
	{"lessThan", "Less than", GroupOperator, "<", VariantComparison},
	{"greaterThan", "Greater than", GroupOperator, ">", VariantComparison},
	{"lessThanOrEqual", "Less than or Equal to", GroupOperator, "≤", VariantComparison},
	{"greaterThanOrEqual", "Greater than or Equal to", GroupOperator, "≥", VariantComparison},
	{"and", "AND", GroupOperator, "∧", VariantLogical},
	{"or", "OR", GroupOperator, "∨", VariantLogical},

	{"errorMessage", "Error Message", GroupMessages, "❌", VariantErrorMessage},
	{"warningMessage", "Warning Message", GroupMessages, "⚠️", VariantWarningMessage},

	{"input", "Input", GroupM4, "📥", VariantInput},
	{"output", "Output", GroupM4, "📤", VariantOutput},
	{"users", "Users", GroupM4, "👤", VariantEntity},
	{"approvers", "Approvers", GroupM4, "✅", VariantEntity},
	{"monitorUsers", "Monitor Users", GroupM4, "👁️", VariantEntity},
	{"machine", "Machine", GroupM4, "⚙️", VariantEntity},
	{"material", "Material", GroupM4, "📦", VariantEntity},
	{"method", "Method", GroupM4, "🛠️", VariantEntity},

	{"notification", "Notification", GroupAutomation, "🔔", VariantNotification},
	{"delayNotification", "Delay Notification", GroupAutomation, "⏰", VariantDelayNotification},
	{"bulkUpload", "Bulk Upload", GroupAutomation, "📁", VariantBulkUpload},
	{"sap", "SAP", GroupAutomation, "🏢", VariantSAP},
	{"bot", "Bot", GroupAutomation, "🤖", VariantBot},
	{"iotAlarms", "IOT Alarms", GroupAutomation, "🚨", VariantIOTAlarms},

	{"ifBlock", "If Block", GroupPrimary, "🔀", VariantIfBlock},
	{"information", "Information", GroupPrimary, "ℹ️", VariantInformation},
	{"processCategorisation", "Process Categorisation", GroupPrimary, "🏷️", VariantProcessCategorisation},
	{"processTerminate", "Process Terminate", GroupPrimary, "⏹️", VariantProcessTerminate},
	{"schedule", "Schedule", GroupPrimary, "📅", VariantSchedule},
	{"secondaryForm", "Secondary Form", GroupPrimary, "📄", VariantSecondaryForm},
}

// Registry maps node-type keys to their entries.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds an entry. A key may only be registered once.
func (r *Registry) Register(e Entry) error {
	if e.Key == "" {
		return fmt.Errorf("registry: entry key is required")
	}
	if e.Variant == "" || e.Variant == VariantRaw {
		return fmt.Errorf("registry: entry %q needs a dedicated config variant", e.Key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.Key]; exists {
		return fmt.Errorf("registry: node type %q is already registered", e.Key)
	}
	r.entries[e.Key] = e
	r.order = append(r.order, e.Key)
	return nil
}

// MustRegister registers an entry, panicking on error.
func (r *Registry) MustRegister(e Entry) {
	if err := r.Register(e); err != nil {
		panic(err)
	}
}

// Lookup returns the entry for a node-type key.
func (r *Registry) Lookup(key string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	return e, ok
}

// MustLookup returns the entry for a key, panicking when it is not registered.
func (r *Registry) MustLookup(key string) Entry {
	e, ok := r.Lookup(key)
	if !ok {
		panic(fmt.Sprintf("registry: unknown node type %q", key))
	}
	return e
}

// Icon returns the canonical icon for a key, or fallback when the key is unknown.
func (r *Registry) Icon(key, fallback string) string {
	if e, ok := r.Lookup(key); ok && e.Icon != "" {
		return e.Icon
	}
	return fallback
}

// VariantOf returns the config variant for a key; unknown keys map to VariantRaw.
func (r *Registry) VariantOf(key string) Variant {
	if e, ok := r.Lookup(key); ok {
		return e.Variant
	}
	return VariantRaw
}

// Keys returns every registered key in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Entries returns every entry in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.entries[k])
	}
	return out
}

// InGroup returns the entries of one palette group in order.
func (r *Registry) InGroup(group string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Group == group {
			out = append(out, e)
		}
	}
	return out
}

// Groups returns the palette: known groups first in their fixed order, then any
// group introduced by a later Register call. Empty groups are omitted.
func (r *Registry) Groups() []Group {
	seen := make(map[string]bool)
	keys := append([]string(nil), groupOrder...)
	for _, k := range keys {
		seen[k] = true
	}
	for _, e := range r.Entries() {
		if !seen[e.Group] {
			seen[e.Group] = true
			keys = append(keys, e.Group)
		}
	}

	var groups []Group
	for _, k := range keys {
		entries := r.InGroup(k)
		if len(entries) == 0 {
			continue
		}
		label := groupLabels[k]
		if label == "" {
			label = k
		}
		groups = append(groups, Group{Key: k, Label: label, Entries: entries})
	}
	return groups
}

// Len returns the number of registered node types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the built-in registry. It is initialized once.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewBuiltin()
	})
	return defaultReg
}

// NewBuiltin returns a fresh registry holding the built-in node types.
func NewBuiltin() *Registry {
	r := New()
	for _, e := range builtin {
		r.MustRegister(e)
	}
	return r
}
