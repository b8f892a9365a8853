package integration

import (
	"net/http"
	"os"
	"testing"
	"time"
)

// BaseURL points the suite at a running API server. These tests
// exercise the real HTTP surface and need the server (and its
// database) up; they skip themselves otherwise.
var BaseURL = "http://localhost:8080"

func init() {
	if v := os.Getenv("API_BASE_URL"); v != "" {
		BaseURL = v
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

// requireServer skips the test when no server is reachable at BaseURL.
func requireServer(t *testing.T) {
	t.Helper()

	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(BaseURL + "/health")
	if err != nil {
		t.Skipf("API server not reachable at %s: %v", BaseURL, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Skipf("API server unhealthy at %s: %d", BaseURL, resp.StatusCode)
	}
}
