package e2e_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sagarc03/blobkeep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestE2E_BasicCRUD_SQLite tests the full CRUD lifecycle using SQLite.
func TestE2E_BasicCRUD_SQLite(t *testing.T) {
	baseURL, cleanup := startServer(t, ServerConfig{
		Port:        getOpenPort(t),
		DBType:      "sqlite",
		DBDSN:       filepath.Join(t.TempDir(), "test.db"),
		StoragePath: t.TempDir(),
	})
	defer cleanup()

	runBasicCRUDTests(t, baseURL)
}

// TestE2E_BasicCRUD_Bolt tests the full CRUD lifecycle using bbolt.
func TestE2E_BasicCRUD_Bolt(t *testing.T) {
	baseURL, cleanup := startServer(t, ServerConfig{
		Port:        getOpenPort(t),
		DBType:      "bolt",
		DBDSN:       filepath.Join(t.TempDir(), "test.bolt"),
		StoragePath: t.TempDir(),
	})
	defer cleanup()

	runBasicCRUDTests(t, baseURL)
}

func doRequest(t *testing.T, method, url string, body []byte, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

// runBasicCRUDTests contains the shared CRUD test logic.
func runBasicCRUDTests(t *testing.T, baseURL string) {
	t.Helper()

	t.Run("PUT creates test.txt", func(t *testing.T) {
		resp, body := doRequest(t, http.MethodPut, baseURL+"/blobs/test.txt", []byte("Hello, World!"), nil)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "/blobs/test.txt", resp.Header.Get("Location"))

		var info blobkeep.BlobInfo
		require.NoError(t, json.Unmarshal(body, &info))
		assert.Equal(t, "test.txt", info.Key)
		assert.Equal(t, int64(13), info.Size)
		assert.NotEmpty(t, info.ETag)
		assert.Equal(t, int64(1), info.Version)
	})

	t.Run("GET returns test.txt content", func(t *testing.T) {
		resp, body := doRequest(t, http.MethodGet, baseURL+"/blobs/test.txt", nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Hello, World!", string(body))
		assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
	})

	t.Run("PUT replaces test.txt", func(t *testing.T) {
		resp, _ := doRequest(t, http.MethodPut, baseURL+"/blobs/test.txt", []byte("Bye"), nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "2", resp.Header.Get("X-Blob-Version"))

		resp, body := doRequest(t, http.MethodGet, baseURL+"/blobs/test.txt", nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Bye", string(body))
	})

	t.Run("DELETE removes test.txt", func(t *testing.T) {
		resp, _ := doRequest(t, http.MethodDelete, baseURL+"/blobs/test.txt", nil, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("GET returns 404 after delete", func(t *testing.T) {
		resp, _ := doRequest(t, http.MethodGet, baseURL+"/blobs/test.txt", nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("DELETE returns 404 for missing blob", func(t *testing.T) {
		resp, _ := doRequest(t, http.MethodDelete, baseURL+"/blobs/test.txt", nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("ready reports the database", func(t *testing.T) {
		resp, _ := doRequest(t, http.MethodGet, baseURL+"/ready", nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestE2E_List(t *testing.T) {
	baseURL, cleanup := startServer(t, ServerConfig{
		Port:        getOpenPort(t),
		DBType:      "sqlite",
		DBDSN:       filepath.Join(t.TempDir(), "test.db"),
		StoragePath: t.TempDir(),
	})
	defer cleanup()

	resp, body := doRequest(t, http.MethodGet, baseURL+"/blobs", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	for _, key := range []string{"a.txt", "b.txt", "c.txt"} {
		resp, _ := doRequest(t, http.MethodPut, baseURL+"/blobs/"+key, []byte(key), nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body = doRequest(t, http.MethodGet, baseURL+"/blobs", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var keys []string
	require.NoError(t, json.Unmarshal(body, &keys))
	assert.ElementsMatch(t, []string{"a.txt", "b.txt", "c.txt"}, keys)
}

func TestE2E_InvalidKeys(t *testing.T) {
	baseURL, cleanup := startServer(t, ServerConfig{
		Port:        getOpenPort(t),
		DBType:      "sqlite",
		DBDSN:       filepath.Join(t.TempDir(), "test.db"),
		StoragePath: t.TempDir(),
	})
	defer cleanup()

	for _, path := range []string{"/blobs/..%2Fescape", "/blobs/.hidden", "/blobs/a/b", "/blobs/a%2541"} {
		t.Run(path, func(t *testing.T) {
			resp, body := doRequest(t, http.MethodPut, baseURL+path, []byte("x"), nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, string(body), "invalid_key")
		})
	}
}

func TestE2E_ConditionalRequests(t *testing.T) {
	baseURL, cleanup := startServer(t, ServerConfig{
		Port:        getOpenPort(t),
		DBType:      "sqlite",
		DBDSN:       filepath.Join(t.TempDir(), "test.db"),
		StoragePath: t.TempDir(),
	})
	defer cleanup()

	resp, _ := doRequest(t, http.MethodPut, baseURL+"/blobs/cond.txt", []byte("content"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	t.Run("GET with matching If-None-Match returns 304", func(t *testing.T) {
		resp, _ := doRequest(t, http.MethodGet, baseURL+"/blobs/cond.txt", nil, map[string]string{"If-None-Match": etag})
		assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	})

	t.Run("HEAD with matching If-None-Match returns 304", func(t *testing.T) {
		resp, _ := doRequest(t, http.MethodHead, baseURL+"/blobs/cond.txt", nil, map[string]string{"If-None-Match": etag})
		assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	})

	t.Run("GET with non-matching If-None-Match returns content", func(t *testing.T) {
		resp, body := doRequest(t, http.MethodGet, baseURL+"/blobs/cond.txt", nil, map[string]string{"If-None-Match": `"other"`})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "content", string(body))
	})

	t.Run("GET with Range returns partial content", func(t *testing.T) {
		resp, body := doRequest(t, http.MethodGet, baseURL+"/blobs/cond.txt", nil, map[string]string{"Range": "bytes=0-3"})
		assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
		assert.Equal(t, "cont", string(body))
	})
}

func TestE2E_UploadLimit(t *testing.T) {
	baseURL, cleanup := startServer(t, ServerConfig{
		Port:          getOpenPort(t),
		DBType:        "sqlite",
		DBDSN:         filepath.Join(t.TempDir(), "test.db"),
		StoragePath:   t.TempDir(),
		MaxUploadSize: 8,
	})
	defer cleanup()

	resp, _ := doRequest(t, http.MethodPut, baseURL+"/blobs/big.bin", []byte("0123456789"), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodGet, baseURL+"/blobs/big.bin", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestE2E_RestartReconcile stores a blob, drops a file into the storage
// directory behind the server's back, and restarts with reconcile enabled.
func TestE2E_RestartReconcile(t *testing.T) {
	cfg := ServerConfig{
		Port:        getOpenPort(t),
		DBType:      "sqlite",
		DBDSN:       filepath.Join(t.TempDir(), "test.db"),
		StoragePath: t.TempDir(),
	}

	baseURL, cleanup := startServer(t, cfg)
	resp, _ := doRequest(t, http.MethodPut, baseURL+"/blobs/kept.txt", []byte("kept"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	cleanup()

	require.NoError(t, os.WriteFile(filepath.Join(cfg.StoragePath, "dropped.txt"), []byte("dropped"), 0o600))

	cfg.Reconcile = true
	baseURL, cleanup = startServer(t, cfg)
	defer cleanup()

	resp, body := doRequest(t, http.MethodGet, baseURL+"/blobs/kept.txt", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "kept", string(body))

	resp, _ = doRequest(t, http.MethodHead, baseURL+"/blobs/dropped.txt", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(7), resp.ContentLength)
	assert.NotEmpty(t, resp.Header.Get("ETag"))
}

// TestE2E_CLI drives the client binary against a running server.
func TestE2E_CLI(t *testing.T) {
	baseURL, cleanup := startServer(t, ServerConfig{
		Port:        getOpenPort(t),
		DBType:      "sqlite",
		DBDSN:       filepath.Join(t.TempDir(), "test.db"),
		StoragePath: t.TempDir(),
	})
	defer cleanup()

	cli := buildBinary(t, "blobkeep-cli")
	home := t.TempDir()

	run := func(args ...string) (string, error) {
		cmd := exec.Command(cli, append(args, "--endpoint", baseURL)...)
		cmd.Env = append(os.Environ(), "HOME="+home, "BLOBKEEP_CLI_CONFIG=", "BLOBKEEP_PROFILE=", "BLOBKEEP_ENDPOINT=")
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out
		err := cmd.Run()
		return out.String(), err
	}

	local := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(local, []byte("from the cli"), 0o600))

	out, err := run("put", local)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Created: note.txt")

	out, err = run("get", "note.txt", "--stdout")
	require.NoError(t, err, out)
	assert.Equal(t, "from the cli", out)

	out, err = run("list")
	require.NoError(t, err, out)
	assert.Equal(t, "note.txt", strings.TrimSpace(out))

	out, err = run("health")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Ready:    yes")

	out, err = run("delete", "note.txt")
	require.NoError(t, err, out)

	_, err = run("get", "note.txt", "--stdout")
	assert.Error(t, err)

	// Server shuts down cleanly on SIGTERM
	done := make(chan struct{})
	go func() {
		cleanup()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}
