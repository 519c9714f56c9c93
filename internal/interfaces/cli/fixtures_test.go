package cli

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/embedscope/internal/config"
	"github.com/turtacn/embedscope/internal/testutil"
	embtypes "github.com/turtacn/embedscope/pkg/types/embedding"
)

func f64(v float64) *float64 { return &v }

func point(id string, x float64) embtypes.PointPayload {
	return embtypes.PointPayload{
		ID:          id,
		EventID:     "e" + id,
		Coordinates: embtypes.Coordinates{TypeName: "Point3D", X: x, Y: x, Z: f64(x)},
	}
}

// cloud has a large cluster c1 and a small drifting cluster c2.
func cloud() *embtypes.UMAPPoints {
	return &embtypes.UMAPPoints{
		Data: []embtypes.PointPayload{point("1", 0), point("2", 1), point("3", 2)},
		Clusters: []embtypes.ClusterPayload{
			{ID: "c2", EventIDs: []string{"e3"}, DriftRatio: f64(0.75)},
			{ID: "c1", EventIDs: []string{"e1", "e2"}},
		},
	}
}

type stubFetcher struct {
	mu    sync.Mutex
	calls []embtypes.QueryParams
	err   error
}

func (f *stubFetcher) FetchUMAPPoints(_ context.Context, params embtypes.QueryParams) (*embtypes.UMAPPoints, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	return cloud(), nil
}

func (f *stubFetcher) lastEmbeddingID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1].EmbeddingID
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.PointCloud.EmbeddingID = "emb"
	cfg.PointCloud.Datasets.Primary = config.DatasetWindow{Start: "2024-04-20T00:00:00Z", End: "2024-05-01T00:00:00Z"}
	cfg.Metrics.Enabled = true
	config.ApplyDefaults(cfg)
	return cfg
}

func testCLIContext(format string) (*CLIContext, *testutil.MockLogger) {
	log := testutil.NewMockLogger()
	return &CLIContext{
		Config:       testConfig(),
		Logger:       log,
		OutputFormat: format,
		NoColor:      true,
		Timeout:      5 * time.Second,
	}, log
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetContext(context.Background())
	return cmd, &buf
}
