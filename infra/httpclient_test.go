package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackageIndexClientRefreshKeepsLatestVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/graphql", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"echo": {
				"1.0.0": {"signature": "(Any) -> Any", "capabilities": ["cpu"], "arg_names": ["value"]},
				"2.0.0": {"signature": "(Any) -> Any", "capabilities": ["gpu"], "arg_names": ["value"]}
			}
		}`))
	}))
	defer srv.Close()

	client := NewPackageIndexClient(NewHTTPClient(srv.URL))
	require.NoError(t, client.Refresh(context.Background()))

	meta, ok := client.Lookup("echo")
	require.True(t, ok)
	require.Equal(t, "2.0.0", meta.Version)
	require.Equal(t, []string{"gpu"}, meta.Capabilities)

	_, ok = client.Lookup("missing")
	require.False(t, ok)
}

func TestDataIndexClientKnownAndLocations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/data/info", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"input": {"access": {"loc-a": {"how": "file", "path": "/data/input"}}}
		}`))
	}))
	defer srv.Close()

	client := NewDataIndexClient(NewHTTPClient(srv.URL))
	require.NoError(t, client.Refresh(context.Background()))

	require.True(t, client.Known("input"))
	require.False(t, client.Known("other"))

	locs, ok := client.Locations("input")
	require.True(t, ok)
	require.Contains(t, locs, "loc-a")
}

func TestCapabilityClientFetchesSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/infra/capabilities/loc-a", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`["cpu", "gpu"]`))
	}))
	defer srv.Close()

	client := NewCapabilityClient(NewHTTPClient(srv.URL))
	caps, err := client.Capabilities(context.Background(), "loc-a")
	require.NoError(t, err)
	require.Equal(t, []string{"cpu", "gpu"}, caps)
}

func TestHTTPClientSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	client := NewCapabilityClient(NewHTTPClient(srv.URL))
	_, err := client.Capabilities(context.Background(), "loc-a")
	require.Error(t, err)
}
