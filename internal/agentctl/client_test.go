package agentctl

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGetDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/commands", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"ID":"CMD-1","Status":"COMPLETED"}]`))
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	var recent []map[string]interface{}
	require.NoError(t, c.get(context.Background(), "/v1/commands", &recent))
	require.Len(t, recent, 1)
	assert.Equal(t, "CMD-1", recent[0]["ID"])
}

func TestClientSurfacesServerErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"command not found"}`))
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	err := c.get(context.Background(), "/v1/commands/missing", &map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command not found")
}

func TestClientPostsJSONBody(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"stopped"}`))
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	var resp map[string]string
	require.NoError(t, c.post(context.Background(), "/v1/watches/123/stop", map[string]string{"id": "123"}, &resp))
	assert.Equal(t, "stopped", resp["status"])
	assert.Contains(t, gotBody, `"id":"123"`)
}

func TestNewClientAddsHTTPScheme(t *testing.T) {
	c := newClient("127.0.0.1:8080")
	assert.Equal(t, "http://127.0.0.1:8080", c.baseURL)
}
