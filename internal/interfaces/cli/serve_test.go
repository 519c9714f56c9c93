package cli

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/embedscope/internal/application/embedding"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServe_EndToEnd(t *testing.T) {
	cliCtx, log := testCLIContext("table")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	store := &mockSnapshotStore{}
	store.On("SaveSnapshot", mock.Anything, mock.Anything).
		Return(&embedding.SnapshotLocation{Bucket: "b", Key: "k", Size: 10}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, cliCtx, ln, serveOptions{
			engine:   EngineOptions{Fetcher: &stubFetcher{}},
			exporter: store,
		})
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/api/v1/pointcloud/fetch")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var state struct {
			State embedding.LifecycleState `json:"state"`
		}
		return json.NewDecoder(resp.Body).Decode(&state) == nil && state.State.Phase == embedding.PhaseResolved
	}, 3*time.Second, 20*time.Millisecond)

	status, _ := get(t, base+"/healthz")
	assert.Equal(t, http.StatusOK, status)

	status, body := get(t, base+"/api/v1/pointcloud/clusters")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"c1"`)

	resp, err := http.Post(base+"/api/v1/pointcloud/export", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	status, body = get(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "embedscope_fetch_requests_total")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
	store.AssertExpectations(t)
	assert.True(t, log.HasMessage("info", "HTTP server stopped"))
}
