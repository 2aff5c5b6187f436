package e2e_test

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	binaries      = map[string]string{}
	binaryErrs    = map[string]error{}
	binaryMu      sync.Mutex
	sharedTempDir string
)

// TestMain sets up and tears down shared test resources.
func TestMain(m *testing.M) {
	var err error
	sharedTempDir, err = os.MkdirTemp("", "blobkeep-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	stopPostgres()
	_ = os.RemoveAll(sharedTempDir)

	os.Exit(code)
}

// ServerConfig holds configuration for starting the blobkeep server.
type ServerConfig struct {
	Port          int
	DBType        string // sqlite, postgres, bolt
	DBDSN         string
	StoragePath   string
	MaxUploadSize int64
	Reconcile     bool
}

// buildBinary compiles the named command under ./cmd once per test run.
// Returns the path to the compiled binary.
func buildBinary(t *testing.T, name string) string {
	t.Helper()

	binaryMu.Lock()
	defer binaryMu.Unlock()

	if path, ok := binaries[name]; ok {
		return path
	}
	if err, ok := binaryErrs[name]; ok {
		t.Fatalf("failed to build %s: %v", name, err)
	}

	path := filepath.Join(sharedTempDir, name)
	cmd := exec.Command("go", "build", "-o", path, "./cmd/"+name)
	cmd.Dir = getProjectRoot(t)
	output, err := cmd.CombinedOutput()
	if err != nil {
		binaryErrs[name] = fmt.Errorf("build binary: %w\nOutput: %s", err, output)
		t.Fatalf("failed to build %s: %v", name, binaryErrs[name])
	}

	binaries[name] = path
	return path
}

// getProjectRoot returns the root directory of the blobkeep module.
func getProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err, "get working directory")

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// createConfigFile creates a temporary config file for the server.
// Returns the path to the config file.
func createConfigFile(t *testing.T, cfg ServerConfig) string {
	t.Helper()

	content := fmt.Sprintf(`server:
  host: 127.0.0.1
  port: %d
  max_upload_size: %d

database:
  type: %s
  dsn: "%s"
  auto_migrate: true

storage:
  path: "%s"
  reconcile_on_start: %t

log:
  level: error
  env: prod
`,
		cfg.Port,
		cfg.MaxUploadSize,
		cfg.DBType,
		cfg.DBDSN,
		cfg.StoragePath,
		cfg.Reconcile,
	)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(configPath, []byte(content), 0o600)
	require.NoError(t, err, "write config file")

	return configPath
}

// startServer starts the blobkeep binary with the given configuration.
// Returns the base URL and a cleanup function that must be called to stop the server.
func startServer(t *testing.T, cfg ServerConfig) (string, func()) {
	t.Helper()

	binary := buildBinary(t, "blobkeep")
	configPath := createConfigFile(t, cfg)

	cmd := exec.Command(binary, "serve", "--config", configPath, "--env-file", "")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Start()
	require.NoError(t, err, "start server")

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Port)

	waitForServer(t, baseURL, 10*time.Second)

	cleanup := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
			_ = cmd.Wait()
		}
	}

	return baseURL, cleanup
}

// waitForServer polls the liveness endpoint until it responds or times out.
func waitForServer(t *testing.T, baseURL string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Fatalf("server failed to start within %v", timeout)
}

// getOpenPort finds an available TCP port.
func getOpenPort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "find open port")

	port := l.Addr().(*net.TCPAddr).Port

	require.NoError(t, l.Close(), "close port")

	return port
}
