package embedding

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	embtypes "github.com/turtacn/embedscope/pkg/types/embedding"
)

func strPtr(s string) *string { return &s }

func f64Ptr(f float64) *float64 { return &f }

func point3(id, eventID string, x, y, z float64) embtypes.PointPayload {
	return embtypes.PointPayload{
		ID:          id,
		EventID:     eventID,
		Coordinates: embtypes.Coordinates{TypeName: "Point3D", X: x, Y: y, Z: f64Ptr(z)},
	}
}

func point2(id, eventID string, x, y float64) embtypes.PointPayload {
	return embtypes.PointPayload{
		ID:          id,
		EventID:     eventID,
		Coordinates: embtypes.Coordinates{TypeName: "Point2D", X: x, Y: y},
	}
}

func clusterPayload(id string, eventIDs ...string) embtypes.ClusterPayload {
	return embtypes.ClusterPayload{ID: id, EventIDs: eventIDs}
}

// cloudA has two primary points in one cluster.
func cloudA() *embtypes.UMAPPoints {
	return &embtypes.UMAPPoints{
		Data:     []embtypes.PointPayload{point3("a1", "ea1", 0, 0, 0), point3("a2", "ea2", 1, 1, 1)},
		Clusters: []embtypes.ClusterPayload{clusterPayload("ca", "ea1", "ea2")},
	}
}

// cloudB has one primary and one reference point in two clusters.
func cloudB() *embtypes.UMAPPoints {
	return &embtypes.UMAPPoints{
		Data:          []embtypes.PointPayload{point3("b1", "eb1", 2, 2, 2)},
		ReferenceData: []embtypes.PointPayload{point3("b2", "eb2", 3, 3, 3)},
		Clusters: []embtypes.ClusterPayload{
			clusterPayload("cb1", "eb1"),
			clusterPayload("cb2", "eb2"),
		},
	}
}

func queryFor(id string) embtypes.QueryParams {
	return embtypes.QueryParams{EmbeddingID: id, PerformanceMetric: embtypes.PlaceholderPerformanceMetric}
}

type fetchResponse struct {
	result *embtypes.UMAPPoints
	err    error
}

// pendingFetch is one fetch parked until the test resolves it.
type pendingFetch struct {
	ctx    context.Context
	params embtypes.QueryParams
	resp   chan fetchResponse
}

func (p *pendingFetch) resolve(r *embtypes.UMAPPoints) { p.resp <- fetchResponse{result: r} }

func (p *pendingFetch) fail(err error) { p.resp <- fetchResponse{err: err} }

// controlledFetcher parks every call so tests decide the resolution order.
type controlledFetcher struct {
	calls chan *pendingFetch
}

func newControlledFetcher() *controlledFetcher {
	return &controlledFetcher{calls: make(chan *pendingFetch, 16)}
}

func (f *controlledFetcher) FetchUMAPPoints(ctx context.Context, params embtypes.QueryParams) (*embtypes.UMAPPoints, error) {
	p := &pendingFetch{ctx: ctx, params: params, resp: make(chan fetchResponse, 1)}
	f.calls <- p
	r := <-p.resp
	return r.result, r.err
}

func (f *controlledFetcher) next(t *testing.T) *pendingFetch {
	t.Helper()
	select {
	case p := <-f.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("no fetch was issued")
		return nil
	}
}

type fetchFunc func(ctx context.Context, params embtypes.QueryParams) (*embtypes.UMAPPoints, error)

func (f fetchFunc) FetchUMAPPoints(ctx context.Context, params embtypes.QueryParams) (*embtypes.UMAPPoints, error) {
	return f(ctx, params)
}

type MockFetchService struct {
	mock.Mock
}

func (m *MockFetchService) FetchUMAPPoints(ctx context.Context, params embtypes.QueryParams) (*embtypes.UMAPPoints, error) {
	args := m.Called(ctx, params)
	var r *embtypes.UMAPPoints
	if v := args.Get(0); v != nil {
		r = v.(*embtypes.UMAPPoints)
	}
	return r, args.Error(1)
}

// spyRecorder captures FetchRecorder calls.
type spyRecorder struct {
	mu       sync.Mutex
	issued   int
	outcomes []string
	inFlight bool
}

func (s *spyRecorder) RecordFetchIssued() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
}

func (s *spyRecorder) RecordFetchOutcome(outcome string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
}

func (s *spyRecorder) SetFetchInFlight(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = v
}

func (s *spyRecorder) count(outcome string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.outcomes {
		if o == outcome {
			n++
		}
	}
	return n
}

func (s *spyRecorder) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outcomes)
}

// capturePublisher records published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []LifecycleEvent
}

func (c *capturePublisher) PublishEvent(_ context.Context, _ string, e LifecycleEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capturePublisher) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType())
	}
	return out
}

func wait(t *testing.T, h *Handle) (Outcome, error) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("request did not complete")
	}
	return h.Wait(context.Background())
}
