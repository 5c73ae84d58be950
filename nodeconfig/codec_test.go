package nodeconfig

import (
	"encoding/json"
	"testing"

	"github.com/meikuraledutech/apiflow/registry"
)

func TestDeriveLabel(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"name field", `{"name":"Orders"}`, "Orders"},
		{"formName field", `{"formName":"Shift Report"}`, "Shift Report"},
		{"name wins over formName", `{"name":"A","formName":"B"}`, "A"},
		{"empty name keeps fallback", `{"name":""}`, "prev"},
		{"non-string name keeps fallback", `{"name":3}`, "prev"},
		{"string encoded object", `"{\"name\":\"Inner\"}"`, "Inner"},
		{"plain string", `"hello"`, "prev"},
		{"malformed", `{oops`, "prev"},
		{"array", `[1]`, "prev"},
		{"empty", ``, "prev"},
		{"null", `null`, "prev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveLabel(json.RawMessage(tt.raw), "prev"); got != tt.want {
				t.Errorf("DeriveLabel(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDecode_EmptyGivesDefaults(t *testing.T) {
	for _, raw := range []string{"", "null", "  "} {
		c, err := Decode(registry.VariantNotification, "notification", json.RawMessage(raw))
		if err != nil {
			t.Fatalf("Decode(%q) error: %v", raw, err)
		}
		if got := c.(*NotificationConfig).Type; got != MessageInfo {
			t.Errorf("Decode(%q) type = %q, want %q", raw, got, MessageInfo)
		}
	}
}

func TestDecode_ErrorReturnsDefaults(t *testing.T) {
	c, err := Decode(registry.VariantErrorMessage, "errorMessage", json.RawMessage(`{"severity":`))
	if err == nil {
		t.Fatal("expected error")
	}
	em, ok := c.(*ErrorMessageConfig)
	if !ok {
		t.Fatalf("got %T, want *ErrorMessageConfig", c)
	}
	if em.Severity != SeverityError || !em.ShowInUI || !em.LogToConsole {
		t.Errorf("defaults not applied: %+v", em)
	}
}

func TestEncode_RawEmptyIsNil(t *testing.T) {
	raw, err := Encode(&RawConfig{})
	if err != nil || raw != nil {
		t.Errorf("Encode(empty raw) = %s, %v; want nil, nil", raw, err)
	}
	if _, err := Encode(&RawConfig{Value: json.RawMessage("{nope")}); err == nil {
		t.Error("Encode(invalid raw) should fail")
	}
}

func TestEntityPrefix(t *testing.T) {
	tests := map[string]string{
		"users":        "user",
		"approvers":    "approver",
		"monitorUsers": "monitor",
		"machine":      "machine",
		"material":     "material",
		"method":       "method",
		"robots":       "robots",
	}
	for nodeType, want := range tests {
		if got := EntityPrefix(nodeType); got != want {
			t.Errorf("EntityPrefix(%q) = %q, want %q", nodeType, got, want)
		}
	}
}
