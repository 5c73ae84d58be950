package nodeconfig

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/meikuraledutech/apiflow"
	"github.com/meikuraledutech/apiflow/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDispatcher() *Dispatcher {
	return NewDispatcher(registry.NewBuiltin(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func node(id, nodeType, config string) apiflow.Node {
	n := apiflow.Node{ID: id, Type: apiflow.RendererType, Data: apiflow.NodeData{NodeType: nodeType}}
	if config != "" {
		n.Data.Config = json.RawMessage(config)
	}
	return n
}

// commits records every CommitFunc call.
type commits struct {
	ids     []string
	configs []json.RawMessage
}

func (c *commits) fn(id string, raw json.RawMessage) error {
	c.ids = append(c.ids, id)
	c.configs = append(c.configs, raw)
	return nil
}

func TestDispatch_EveryRegistryTypeHasDedicatedEditor(t *testing.T) {
	d := testDispatcher()
	reg := registry.NewBuiltin()

	for _, key := range reg.Keys() {
		t.Run(key, func(t *testing.T) {
			ed := d.Dispatch(node(key+"-1", key, ""), nil)
			_, isRaw := ed.Draft().(*RawConfig)
			assert.False(t, isRaw, "%s fell back to the default editor", key)
			assert.Equal(t, reg.VariantOf(key), ed.Variant())
		})
	}
}

func TestDispatch_UnknownTypeFallsBack(t *testing.T) {
	d := testDispatcher()

	for _, nodeType := range []string{"", "default", "teleport"} {
		ed := d.Dispatch(node("n-1", nodeType, `{"anything":1}`), nil)
		raw, ok := ed.Draft().(*RawConfig)
		require.True(t, ok, "nodeType %q", nodeType)
		assert.JSONEq(t, `{"anything":1}`, string(raw.Value))
		assert.Equal(t, "Node Configuration", ed.Title())
	}
}

func TestURLEditor_SaveFixesName(t *testing.T) {
	var c commits
	ed := testDispatcher().Dispatch(node("url-1", "url", ""), c.fn)
	assert.Equal(t, "URL Configuration", ed.Title())

	cfg := ed.Draft().(*URLConfig)
	cfg.URL = "https://example.com"
	cfg.Remark = "test"
	require.NoError(t, ed.Save())

	require.Equal(t, []string{"url-1"}, c.ids)
	assert.JSONEq(t, `{"url":"https://example.com","remark":"test","name":"URL"}`, string(c.configs[0]))
	assert.Equal(t, "URL", DeriveLabel(c.configs[0], "fallback"))
}

func TestEditor_DraftStartsFromStoredConfig(t *testing.T) {
	d := testDispatcher()

	ed := d.Dispatch(node("input-1", "input", `{"name":"Shift","scale":"Global"}`), nil)
	in := ed.Draft().(*InputConfig)
	assert.Equal(t, "Shift", in.Name)
	assert.Equal(t, ScaleGlobal, in.Scale)

	// Double-encoded configs are unwrapped.
	ed = d.Dispatch(node("url-1", "url", `"{\"url\":\"https://a.b\"}"`), nil)
	assert.Equal(t, "https://a.b", ed.Draft().(*URLConfig).URL)
}

func TestEditor_MalformedConfigUsesDefaults(t *testing.T) {
	ed := testDispatcher().Dispatch(node("warn-1", "warningMessage", `{not json`), nil)

	w := ed.Draft().(*WarningMessageConfig)
	assert.Equal(t, SeverityWarning, w.Severity)
	assert.True(t, w.ShowInUI)
	assert.True(t, w.Dismissible)
	assert.False(t, w.AutoDismiss)
	assert.Equal(t, DefaultDismissTimeout, w.DismissTimeout)
}

func TestEditor_Defaults(t *testing.T) {
	d := testDispatcher()

	tests := []struct {
		nodeType string
		want     string
	}{
		{"input", `{"name":"","scale":"User Specific"}`},
		{"notification", `{"title":"","message":"","type":"info"}`},
		{"delayNotification", `{"delay":"","message":"","type":"info"}`},
		{"errorMessage", `{"message":"","severity":"error","showInUI":true,"logToConsole":true}`},
		{"users", `{"userId":"","userName":"","description":""}`},
		{"monitorUsers", `{"monitorId":"","monitorName":"","description":""}`},
		{"processTerminate", `{"terminationType":"success","message":"","statusCode":"200","description":""}`},
		{"output", `""`},
	}
	for _, tt := range tests {
		t.Run(tt.nodeType, func(t *testing.T) {
			raw, err := d.Dispatch(node("x", tt.nodeType, ""), nil).Encoded()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestEditor_Validation(t *testing.T) {
	d := testDispatcher()
	var c commits

	tests := []struct {
		nodeType string
		config   string
	}{
		{"input", `{"scale":"Planet"}`},
		{"notification", `{"type":"loud"}`},
		{"errorMessage", `{"severity":"warning"}`},
		{"warningMessage", `{"severity":"fatal"}`},
		{"warningMessage", `{"dismissTimeout":-1}`},
		{"ifBlock", `{"operator":"XOR"}`},
		{"ifBlock", `{"conditions":[{"field":"a","operator":"like"}]}`},
		{"schedule", `{"frequency":"hourly"}`},
	}
	for _, tt := range tests {
		t.Run(tt.nodeType+" "+tt.config, func(t *testing.T) {
			ed := d.Dispatch(node("x", tt.nodeType, tt.config), c.fn)
			err := ed.Save()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
	assert.Empty(t, c.ids, "invalid drafts must not be committed")
}

func TestEditor_RenderSkipsValidation(t *testing.T) {
	var c commits
	ed := testDispatcher().Dispatch(node("e-1", "errorMessage", `{"message":"boom","severity":"bogus"}`), c.fn)

	raw, err := ed.Render()
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"boom","severity":"bogus","showInUI":false,"logToConsole":false}`, string(raw))

	assert.ErrorIs(t, ed.Save(), ErrInvalidConfig)
	assert.Empty(t, c.ids)
}

func TestEditor_LoadKeepsDraftOnError(t *testing.T) {
	ed := testDispatcher().Dispatch(node("sap-1", "sap", `{"sapSystem":"PRD"}`), nil)

	require.Error(t, ed.Load(json.RawMessage(`[1,2]`)))
	assert.Equal(t, "PRD", ed.Draft().(*SAPConfig).SAPSystem)

	require.NoError(t, ed.Load(json.RawMessage(`{"sapSystem":"QAS","functionName":"BAPI_X"}`)))
	assert.Equal(t, "QAS", ed.Draft().(*SAPConfig).SAPSystem)
	assert.Equal(t, "BAPI_X", ed.Draft().(*SAPConfig).FunctionName)
}

func TestEditor_CloseBlocksSave(t *testing.T) {
	var c commits
	ed := testDispatcher().Dispatch(node("bot-1", "bot", ""), c.fn)
	ed.Close()

	assert.True(t, ed.Closed())
	assert.ErrorIs(t, ed.Save(), ErrEditorClosed)
	assert.Empty(t, c.ids)
}

func TestEditor_NoCommitTarget(t *testing.T) {
	ed := testDispatcher().Dispatch(node("bot-1", "bot", ""), nil)
	assert.Error(t, ed.Save())
}

func TestOutputEditor_FreeText(t *testing.T) {
	var c commits
	d := testDispatcher()

	ed := d.Dispatch(node("output-1", "output", `"previous"`), c.fn)
	out := ed.Draft().(*OutputConfig)
	assert.Equal(t, "previous", out.Text)

	out.Text = "result = 42"
	require.NoError(t, ed.Save())
	assert.Equal(t, `"result = 42"`, string(c.configs[0]))

	// A stored non-string value is edited as its JSON text.
	ed = d.Dispatch(node("output-2", "output", `{"a":1}`), nil)
	assert.Equal(t, `{"a":1}`, ed.Draft().(*OutputConfig).Text)
}

func TestEntityEditor_PrefixedFields(t *testing.T) {
	var c commits
	ed := testDispatcher().Dispatch(node("approvers-1", "approvers", `{"approverId":"7","approverName":"Ann"}`), c.fn)

	e := ed.Draft().(*EntityConfig)
	assert.Equal(t, "approver", e.Prefix)
	assert.Equal(t, "7", e.ID)
	assert.Equal(t, "Ann", e.Name)

	e.Description = "plant head"
	require.NoError(t, ed.Save())
	assert.JSONEq(t, `{"approverId":"7","approverName":"Ann","description":"plant head"}`, string(c.configs[0]))
}

func TestIfBlock_AddCondition(t *testing.T) {
	var c commits
	ed := testDispatcher().Dispatch(node("ifBlock-1", "ifBlock", ""), c.fn)

	cfg := ed.Draft().(*IfBlockConfig)
	cfg.AddCondition()
	cfg.Conditions[0].Field = "qty"
	cfg.Conditions[0].Value = "5"
	require.NoError(t, ed.Save())

	assert.JSONEq(t,
		`{"condition":"","operator":"AND","conditions":[{"field":"qty","operator":"equals","value":"5"}],"description":""}`,
		string(c.configs[0]))
}

func TestRawEditor_SetText(t *testing.T) {
	var c commits
	ed := testDispatcher().Dispatch(node("custom-1", "", ""), c.fn)
	raw := ed.Draft().(*RawConfig)

	raw.SetText("plain words")
	assert.Equal(t, "plain words", raw.Text())
	require.NoError(t, ed.Save())
	assert.Equal(t, `"plain words"`, string(c.configs[0]))

	raw.SetText(`{"k":true}`)
	require.NoError(t, ed.Save())
	assert.JSONEq(t, `{"k":true}`, string(c.configs[1]))

	raw.SetText("  ")
	require.NoError(t, ed.Save())
	assert.Nil(t, c.configs[2])
}
