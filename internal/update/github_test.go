package update

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NowakAdmin/MonerisAgent/internal/version"
)

func TestIsNewerVersion(t *testing.T) {
	t.Parallel()

	assert.True(t, isNewerVersion("1.2.0", "1.1.9"))
	assert.True(t, isNewerVersion("2.0", "1.9.9"))
	assert.False(t, isNewerVersion("1.2.0", "1.2.0"))
	assert.False(t, isNewerVersion("1.1.9", "1.2.0"))
	assert.False(t, isNewerVersion("", "1.0.0"))
	assert.Equal(t, [3]int{1, 4, 3}, parseVersion("1.4.3-rc1"))
}

// Tests below swap package-level endpoints and do not run in parallel.

func withServer(t *testing.T, handler http.Handler) {
	t.Helper()

	server := httptest.NewServer(handler)
	previousBase, previousClient := apiBase, httpClient
	apiBase, httpClient = server.URL, server.Client()

	t.Cleanup(func() {
		apiBase, httpClient = previousBase, previousClient
		server.Close()
	})
}

func TestCheckGitHubRelease_LatestRelease(t *testing.T) {
	withServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/agent/releases/latest", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"tag_name": "v99.0.0",
			"html_url": "https://github.com/acme/agent/releases/tag/v99.0.0",
			"body":     "notes",
		})
	}))

	result, err := CheckGitHubRelease(context.Background(), "acme/agent")
	require.NoError(t, err)
	assert.True(t, result.HasUpdate)
	assert.Equal(t, "99.0.0", result.Version)
	assert.Equal(t, "notes", result.Notes)
}

func TestCheckGitHubRelease_FallsBackToTags(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/agent/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/repos/acme/agent/tags", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]string{{"name": "v" + version.Version}})
	})
	withServer(t, mux)

	result, err := CheckGitHubRelease(context.Background(), "acme/agent")
	require.NoError(t, err)
	assert.False(t, result.HasUpdate)
	assert.Equal(t, "https://github.com/acme/agent/releases/tag/v"+version.Version, result.URL)
}

func TestCheckGitHubRelease_Errors(t *testing.T) {
	_, err := CheckGitHubRelease(context.Background(), " ")
	assert.Error(t, err)

	withServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err = CheckGitHubRelease(context.Background(), "acme/agent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
