package nodeconfig

import (
	"encoding/json"

	"github.com/meikuraledutech/apiflow/registry"
)

// entityPrefixes maps M4 entity node types to the prefix of their id/name fields.
var entityPrefixes = map[string]string{
	"users":        "user",
	"approvers":    "approver",
	"monitorUsers": "monitor",
	"machine":      "machine",
	"material":     "material",
	"method":       "method",
}

// EntityPrefix returns the field prefix for an entity node type, e.g. "user" for "users".
func EntityPrefix(nodeType string) string {
	if p, ok := entityPrefixes[nodeType]; ok {
		return p
	}
	return nodeType
}

// EntityConfig references an M4 entity. On the wire its fields are named after
// the prefix: {"userId": ..., "userName": ..., "description": ...}.
type EntityConfig struct {
	Prefix      string
	ID          string
	Name        string
	Description string
}

func (*EntityConfig) Variant() registry.Variant { return registry.VariantEntity }
func (*EntityConfig) normalize() error          { return nil }

func (c EntityConfig) idKey() string   { return c.Prefix + "Id" }
func (c EntityConfig) nameKey() string { return c.Prefix + "Name" }

// MarshalJSON writes the prefixed field names.
func (c EntityConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		c.idKey():     c.ID,
		c.nameKey():   c.Name,
		"description": c.Description,
	})
}

// UnmarshalJSON reads the prefixed field names. Prefix must be set beforehand;
// fields absent from the input keep their current value.
func (c *EntityConfig) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if v, ok := m[c.idKey()].(string); ok {
		c.ID = v
	}
	if v, ok := m[c.nameKey()].(string); ok {
		c.Name = v
	}
	if v, ok := m["description"].(string); ok {
		c.Description = v
	}
	return nil
}
