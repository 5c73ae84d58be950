package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Lookup(t *testing.T) {
	tests := []struct {
		key     string
		label   string
		icon    string
		group   string
		variant Variant
	}{
		{"start", "Start", "▶️", GroupSource, VariantStart},
		{"url", "URL", "🔗", GroupSource, VariantURL},
		{"questionId", "Question ID", "❓", GroupSource, VariantSubForm},
		{"lessThanOrEqual", "Less than or Equal to", "≤", GroupOperator, VariantComparison},
		{"or", "OR", "∨", GroupOperator, VariantLogical},
		{"warningMessage", "Warning Message", "⚠️", GroupMessages, VariantWarningMessage},
		{"monitorUsers", "Monitor Users", "👁️", GroupM4, VariantEntity},
		{"iotAlarms", "IOT Alarms", "🚨", GroupAutomation, VariantIOTAlarms},
		{"schedule", "Schedule", "📅", GroupPrimary, VariantSchedule},
	}

	reg := Default()
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			e, ok := reg.Lookup(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.key, e.Key)
			assert.Equal(t, tt.label, e.Label)
			assert.Equal(t, tt.icon, e.Icon)
			assert.Equal(t, tt.group, e.Group)
			assert.Equal(t, tt.variant, e.Variant)
		})
	}
}

func TestDefault_CoversEveryNodeType(t *testing.T) {
	want := []string{
		"start", "url", "staticValue", "questionId",
		"equalTo", "lessThan", "greaterThan", "lessThanOrEqual", "greaterThanOrEqual", "and", "or",
		"errorMessage", "warningMessage",
		"input", "output", "users", "approvers", "monitorUsers", "machine", "material", "method",
		"notification", "delayNotification", "bulkUpload", "sap", "bot", "iotAlarms",
	}
	reg := Default()
	for _, k := range want {
		e, ok := reg.Lookup(k)
		if assert.True(t, ok, "missing %q", k) {
			assert.NotEqual(t, VariantRaw, e.Variant, "%q must not use the fallback editor", k)
		}
	}
}

func TestLookup_Unknown(t *testing.T) {
	reg := Default()

	_, ok := reg.Lookup("teleport")
	assert.False(t, ok)
	_, ok = reg.Lookup("default")
	assert.False(t, ok, "default names the fallback editor, not a node type")
	assert.Equal(t, VariantRaw, reg.VariantOf("teleport"))
	assert.Equal(t, "?", reg.Icon("teleport", "?"))
	assert.Equal(t, "🔗", reg.Icon("url", "?"))
}

func TestRegister(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(Entry{Key: "webhook", Label: "Webhook", Group: "custom", Icon: "🪝", Variant: VariantURL}))

	err := reg.Register(Entry{Key: "webhook", Label: "again", Variant: VariantURL})
	assert.Error(t, err)
	assert.Error(t, reg.Register(Entry{Label: "no key", Variant: VariantURL}))
	assert.Error(t, reg.Register(Entry{Key: "raw", Variant: VariantRaw}))
	assert.Equal(t, 1, reg.Len())

	assert.Panics(t, func() {
		reg.MustRegister(Entry{Key: "webhook", Variant: VariantURL})
	})
}

func TestGroups_Order(t *testing.T) {
	reg := NewBuiltin()
	reg.MustRegister(Entry{Key: "webhook", Label: "Webhook", Group: "custom", Variant: VariantURL})

	groups := reg.Groups()
	var keys []string
	for _, g := range groups {
		keys = append(keys, g.Key)
	}
	assert.Equal(t, []string{GroupSource, GroupOperator, GroupMessages, GroupM4, GroupAutomation, GroupPrimary, "custom"}, keys)

	source := groups[0]
	assert.Equal(t, "Source", source.Label)
	require.Len(t, source.Entries, 4)
	assert.Equal(t, "start", source.Entries[0].Key)
	assert.Equal(t, "custom", groups[len(groups)-1].Label)
}

func TestKeys_IsCopy(t *testing.T) {
	reg := NewBuiltin()
	keys := reg.Keys()
	keys[0] = "mutated"
	assert.Equal(t, "start", reg.Keys()[0])
	assert.Equal(t, len(builtin), reg.Len())
}
