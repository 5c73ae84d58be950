package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meikuraledutech/apiflow"
	"github.com/meikuraledutech/apiflow/flowjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(
		WithFlowServer(srv.URL+"/apiflowserver.php"),
		WithValidationURLs(srv.URL+"/flat", srv.URL+"/nested"),
		WithRateLimit(0),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return c, srv
}

func TestListFlows(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Empty(t, r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`[{"id":"1","name":"Orders","status":"Pending","version":"2"},{"id":7,"name":"Stock","version":1}]`))
	})

	flows, err := c.ListFlows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []apiflow.Summary{
		{ID: "1", Name: "Orders", Status: "Pending", Version: 2},
		{ID: "7", Name: "Stock", Version: 1},
	}, flows)
}

func TestListFlows_NotAnArray(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"db down"}`))
	})

	_, err := c.ListFlows(context.Background())
	assert.ErrorIs(t, err, ErrInvalidResponse)
	assert.True(t, IsTransport(err))
}

func TestGetFlow(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "f-9", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`{
			"name": "Orders",
			"flow": {
				"nodes": [{"id":"url-1","type":"custom","position":{"x":5,"y":6},
					"data":{"nodeType":"url","label":"URL","icon":"","config":"{\"name\":\"Orders API\",\"url\":\"https://x\"}"}}],
				"edges": []
			}
		}`))
	})

	f, err := c.GetFlow(context.Background(), "f-9")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "f-9", f.ID)
	assert.Equal(t, "Orders", f.Name)
	require.Len(t, f.Nodes, 1)
	assert.Equal(t, "Orders API", f.Nodes[0].Data.Label)
	assert.Equal(t, "🔗", f.Nodes[0].Data.Icon)
	assert.JSONEq(t, `{"name":"Orders API","url":"https://x"}`, string(f.Nodes[0].Data.Config))
}

func TestGetFlow_Absent(t *testing.T) {
	for _, tc := range []struct {
		name   string
		status int
		body   string
	}{
		{"empty object", http.StatusOK, `{}`},
		{"null flow", http.StatusOK, `{"flow":null}`},
		{"404", http.StatusNotFound, `{"error":"no such flow"}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			f, err := c.GetFlow(context.Background(), "missing")
			assert.NoError(t, err)
			assert.Nil(t, f)
		})
	}
}

func TestSaveFlow(t *testing.T) {
	var got flowjson.Document
	var rawConfig any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &got))

		var generic map[string]any
		require.NoError(t, json.Unmarshal(data, &generic))
		node := generic["flow"].(map[string]any)["nodes"].([]any)[0].(map[string]any)
		rawConfig = node["data"].(map[string]any)["config"]

		_, _ = w.Write([]byte(`{"success":true,"id":12}`))
	})

	f := &apiflow.Flow{
		ID:   apiflow.NewFlowID,
		Name: "Orders",
		Nodes: []apiflow.Node{{
			ID: "url-1", Type: apiflow.RendererType,
			Data: apiflow.NodeData{NodeType: "url", Label: "URL", Config: json.RawMessage(`{"url":"https://x"}`)},
		}},
	}
	id, err := c.SaveFlow(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "12", id)
	assert.Empty(t, got.ID, "new flows are posted without an id")
	assert.Equal(t, "Orders", got.Name)
	assert.IsType(t, "", rawConfig, "config is posted as a string")
}

func TestSaveFlow_KeepsExistingID(t *testing.T) {
	var got flowjson.Document
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	id, err := c.SaveFlow(context.Background(), &apiflow.Flow{ID: "f-3", Name: "Orders"})
	require.NoError(t, err)
	assert.Equal(t, "f-3", id)
	assert.Equal(t, "f-3", got.ID)
}

func TestSaveFlow_Failures(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"duplicate name"}`))
	})

	_, err := c.SaveFlow(context.Background(), &apiflow.Flow{Name: "Orders"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "duplicate name", apiErr.Message)
	assert.False(t, IsTransport(err))

	_, err = c.SaveFlow(context.Background(), &apiflow.Flow{})
	assert.ErrorIs(t, err, apiflow.ErrNameRequired)
}

func TestValidate_RoutesByMode(t *testing.T) {
	var paths []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{"valid":false,"errors":["dangling node url-1"]}`))
	})
	doc := flowjson.Document{Name: "Orders"}

	res, err := c.Validate(context.Background(), ModeFlat, doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":false,"errors":["dangling node url-1"]}`, string(res))

	_, err = c.Validate(context.Background(), ModeNested, doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"/flat", "/nested"}, paths)
}

func TestValidate_NonJSON(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<b>Fatal error</b>`))
	})
	_, err := c.Validate(context.Background(), ModeFlat, flowjson.Document{})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestHTTPErrors(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusTooManyRequests, IsRateLimited},
		{http.StatusInternalServerError, IsTransport},
		{http.StatusBadGateway, IsTransport},
	}
	for _, tt := range tests {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		_, err := c.ListFlows(context.Background())
		require.Error(t, err)
		assert.True(t, tt.check(err), "status %d: %v", tt.status, err)
	}
}

func TestNetworkError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := c.ListFlows(context.Background())
	assert.ErrorIs(t, err, ErrNetworkError)
	assert.True(t, IsTransport(err))
}

func TestRateLimiterHonoursContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	WithRateLimit(0.001)(c)

	_, err := c.ListFlows(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.ListFlows(ctx)
	assert.Error(t, err)
}

func TestDeleteFlowUnsupported(t *testing.T) {
	c := NewClient()
	assert.ErrorIs(t, c.DeleteFlow(context.Background(), "x"), ErrUnsupported)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeFlat, m)

	m, err = ParseMode("nested")
	require.NoError(t, err)
	assert.Equal(t, ModeNested, m)

	_, err = ParseMode("deep")
	assert.Error(t, err)
}
