package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biohack5079/cnc/internal/middleware"
)

func corsServer(t *testing.T, origins []string) *httptest.Server {
	t.Helper()
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(middleware.NewCORSMiddleware(origins)(handler))
	t.Cleanup(server.Close)
	return server
}

func doRequest(t *testing.T, server *httptest.Server, method, origin string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, server.URL, nil)
	require.NoError(t, err)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCORSMiddleware_AllowedOrigin(t *testing.T) {
	server := corsServer(t, []string{"https://app.example.com"})

	resp := doRequest(t, server, http.MethodGet, "https://app.example.com")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_DisallowedOrigin(t *testing.T) {
	server := corsServer(t, []string{"https://app.example.com"})

	resp := doRequest(t, server, http.MethodGet, "https://evil.example.com")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_Wildcard(t *testing.T) {
	server := corsServer(t, []string{"*"})

	resp := doRequest(t, server, http.MethodGet, "https://anywhere.example.com")
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_PreflightShortCircuits(t *testing.T) {
	server := corsServer(t, []string{"https://app.example.com"})

	resp := doRequest(t, server, http.MethodOptions, "https://app.example.com")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "GET, POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
}
