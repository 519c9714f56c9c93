package embedding

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/turtacn/embedscope/internal/domain/pointcloud"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/embedscope/pkg/errors"
	"github.com/turtacn/embedscope/pkg/types/common"
	embtypes "github.com/turtacn/embedscope/pkg/types/embedding"
)

// Phase is the coordinator's position in its lifecycle.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhasePending  Phase = "pending"
	PhaseResolved Phase = "resolved"
	PhaseFailed   Phase = "failed"
	PhaseClosed   Phase = "closed"
)

// LifecycleState is the coordinator's fetch state.  Generation grows by one
// per Request and never decreases.
type LifecycleState struct {
	Generation uint64  `json:"generation"`
	InFlight   bool    `json:"in_flight"`
	Error      *string `json:"error"`
	Phase      Phase   `json:"phase"`
}

// Outcome is how a request ended.
type Outcome string

const (
	OutcomeResolved   Outcome = "resolved"
	OutcomeFailed     Outcome = "failed"
	OutcomeSuperseded Outcome = "superseded"
	OutcomeRejected   Outcome = "rejected"
)

// Handle tracks one request.  It completes exactly once.
type Handle struct {
	generation uint64
	once       sync.Once
	done       chan struct{}
	outcome    Outcome
	err        error
}

func newHandle(gen uint64) *Handle {
	return &Handle{generation: gen, done: make(chan struct{})}
}

func (h *Handle) finish(o Outcome, err error) {
	h.once.Do(func() {
		h.outcome = o
		h.err = err
		close(h.done)
	})
}

// Generation returns the generation the request was issued under.
func (h *Handle) Generation() uint64 { return h.generation }

// Done is closed when the request has an outcome.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the request completes or ctx ends.  A superseded request
// returns OutcomeSuperseded with ErrCodeStaleResult.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, h.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithFetchTimeout bounds every fetch.  Zero means no bound.
func WithFetchTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.timeout = d }
}

// WithDisplayMode sets the coordinate arity results must have.
func WithDisplayMode(m pointcloud.DisplayMode) CoordinatorOption {
	return func(c *Coordinator) { c.mode = m }
}

// WithFetchRecorder reports fetch activity to r.
func WithFetchRecorder(r FetchRecorder) CoordinatorOption {
	return func(c *Coordinator) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithEventStream publishes fetch transitions to s.
func WithEventStream(s *EventStream) CoordinatorOption {
	return func(c *Coordinator) { c.events = s }
}

// Coordinator owns the single logical fetch slot of a point cloud.  Each
// Request supersedes the previous one; only the result of the latest
// generation is ever written to the store.
//
// The generation check and the store write happen under mu, so a superseded
// result can never land after a newer Request has reset the store.  Store
// subscribers are therefore invoked with mu held and must not call back into
// Request, Cancel or Close synchronously.
type Coordinator struct {
	fetcher  FetchService
	store    *pointcloud.Store
	mode     pointcloud.DisplayMode
	timeout  time.Duration
	recorder FetchRecorder
	events   *EventStream
	logger   logging.Logger

	mu         sync.Mutex
	generation uint64
	inflight   uint64 // generation of the current request, 0 when none
	cancel     context.CancelFunc
	handle     *Handle
	closed     bool

	state atomic.Pointer[LifecycleState]
}

// NewCoordinator creates an idle coordinator writing into store.
func NewCoordinator(fetcher FetchService, store *pointcloud.Store, logger logging.Logger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		fetcher:  fetcher,
		store:    store,
		mode:     pointcloud.DisplayMode3D,
		recorder: nopFetchRecorder{},
		logger:   logging.OrNop(logger).Named("coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.Store(&LifecycleState{Phase: PhaseIdle})
	return c
}

// State returns the current lifecycle state without locking.
func (c *Coordinator) State() LifecycleState {
	return *c.state.Load()
}

// Request supersedes any in-flight request and issues params under a new
// generation.  The selection is cleared; points and clusters stay until the
// new result replaces them.  The fetch runs asynchronously; ctx contributes
// values only, its cancellation does not abort the fetch.  After Close the
// returned handle is already complete with OutcomeRejected.
func (c *Coordinator) Request(ctx context.Context, params embtypes.QueryParams) *Handle {
	return c.issue(ctx, params, false)
}

// RequestFresh is Request for a new parameter set: the store is reset
// before the fetch is issued, in the same critical section that supersedes
// the previous generation.
func (c *Coordinator) RequestFresh(ctx context.Context, params embtypes.QueryParams) *Handle {
	return c.issue(ctx, params, true)
}

func (c *Coordinator) issue(ctx context.Context, params embtypes.QueryParams, reset bool) *Handle {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		h := newHandle(0)
		h.finish(OutcomeRejected, errors.ErrCoordinatorClosed)
		return h
	}

	superseded := c.supersedeLocked()

	c.generation++
	gen := c.generation
	base := context.WithoutCancel(ctx)
	var fetchCtx context.Context
	var cancel context.CancelFunc
	if c.timeout > 0 {
		fetchCtx, cancel = context.WithTimeout(base, c.timeout)
	} else {
		fetchCtx, cancel = context.WithCancel(base)
	}
	h := newHandle(gen)
	c.inflight = gen
	c.cancel = cancel
	c.handle = h
	c.setState(LifecycleState{Generation: gen, InFlight: true, Phase: PhasePending})
	c.recorder.SetFetchInFlight(true)
	if reset {
		c.store.Reset()
	} else {
		c.store.ClearSelection()
	}
	c.store.SetErrorMessage(nil)
	c.mu.Unlock()

	if superseded != 0 {
		c.recordStale(superseded, params.EmbeddingID, "superseded")
	}
	c.recorder.RecordFetchIssued()
	c.logger.Debug("fetch issued",
		logging.Uint64("generation", gen),
		logging.String("embedding_id", params.EmbeddingID))
	c.emit(EventFetchIssued, params.EmbeddingID, func(e *LifecycleEvent) { e.Generation = gen })

	go c.run(fetchCtx, cancel, gen, params, h)
	return h
}

// Cancel supersedes the in-flight request, if any.  Its result will be
// dropped silently; the store keeps its current data.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	superseded := c.supersedeLocked()
	if superseded != 0 {
		prev := c.State()
		c.setState(LifecycleState{Generation: prev.Generation, Phase: PhaseIdle})
		c.recorder.SetFetchInFlight(false)
	}
	c.mu.Unlock()

	if superseded != 0 {
		c.recordStale(superseded, "", "cancelled")
	}
}

// Close cancels the in-flight request and refuses further requests.  It is
// safe to call more than once.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	superseded := c.supersedeLocked()
	c.setState(LifecycleState{Generation: c.generation, Phase: PhaseClosed})
	if superseded != 0 {
		c.recorder.SetFetchInFlight(false)
	}
	c.mu.Unlock()

	if superseded != 0 {
		c.recordStale(superseded, "", "closed")
	}
}

func (c *Coordinator) run(ctx context.Context, cancel context.CancelFunc, gen uint64, params embtypes.QueryParams, h *Handle) {
	start := time.Now()
	result, err := c.fetcher.FetchUMAPPoints(ctx, params)
	cancel()

	var points []pointcloud.Point
	var clusters []pointcloud.Cluster
	if err == nil {
		points, clusters, err = Normalize(result, params, c.mode, c.logger)
	} else if !errors.IsCode(err, errors.ErrCodeFetchFailed) {
		err = errors.Wrap(err, errors.ErrCodeFetchFailed, "point cloud fetch failed")
	}
	elapsed := time.Since(start)

	c.mu.Lock()
	if c.inflight != gen {
		c.mu.Unlock()
		c.logger.Debug("dropping stale fetch result",
			logging.Uint64("generation", gen),
			logging.Duration("elapsed", elapsed))
		c.recorder.RecordFetchOutcome("stale", elapsed)
		return
	}
	c.inflight = 0
	c.cancel = nil
	c.handle = nil

	var outcome Outcome
	if err != nil {
		msg := userFacingMessage(err)
		c.store.SetErrorMessage(&msg)
		c.setState(LifecycleState{Generation: gen, Error: &msg, Phase: PhaseFailed})
		outcome = OutcomeFailed
	} else {
		c.store.SetPointsAndClusters(points, clusters)
		c.setState(LifecycleState{Generation: gen, Phase: PhaseResolved})
		outcome = OutcomeResolved
	}
	c.recorder.SetFetchInFlight(false)
	c.mu.Unlock()

	c.recorder.RecordFetchOutcome(string(outcome), elapsed)

	if err != nil {
		c.logger.Warn("fetch failed",
			logging.Uint64("generation", gen),
			logging.String("embedding_id", params.EmbeddingID),
			logging.Duration("elapsed", elapsed),
			logging.Err(err))
		c.emit(EventFetchFailed, params.EmbeddingID, func(e *LifecycleEvent) {
			e.Generation = gen
			e.Outcome = string(outcome)
			e.Error = err.Error()
			e.DurationMillis = elapsed.Milliseconds()
		})
		h.finish(outcome, err)
		return
	}
	c.logger.Info("fetch resolved",
		logging.Uint64("generation", gen),
		logging.String("embedding_id", params.EmbeddingID),
		logging.Int("points", len(points)),
		logging.Int("clusters", len(clusters)),
		logging.Duration("elapsed", elapsed))
	c.emit(EventFetchResolved, params.EmbeddingID, func(e *LifecycleEvent) {
		e.Generation = gen
		e.Outcome = string(outcome)
		e.Points = len(points)
		e.Clusters = len(clusters)
		e.DurationMillis = elapsed.Milliseconds()
	})
	h.finish(outcome, nil)
}

// supersedeLocked abandons the in-flight request and returns its generation,
// or 0 when nothing was in flight.
func (c *Coordinator) supersedeLocked() uint64 {
	gen := c.inflight
	if gen == 0 {
		return 0
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.handle != nil {
		c.handle.finish(OutcomeSuperseded, errors.ErrStaleResult)
	}
	c.inflight = 0
	c.cancel = nil
	c.handle = nil
	return gen
}

func (c *Coordinator) setState(s LifecycleState) {
	c.state.Store(&s)
}

func (c *Coordinator) recordStale(gen uint64, embeddingID, reason string) {
	c.logger.Debug("fetch superseded",
		logging.Uint64("generation", gen),
		logging.String("reason", reason))
	c.emit(EventFetchStale, embeddingID, func(e *LifecycleEvent) {
		e.Generation = gen
		e.Outcome = string(OutcomeSuperseded)
	})
}

func (c *Coordinator) emit(eventType, embeddingID string, fill func(e *LifecycleEvent)) {
	if c.events == nil {
		return
	}
	e := LifecycleEvent{BaseEvent: common.NewBaseEvent(eventType, embeddingID)}
	fill(&e)
	c.events.Emit(e)
}

// userFacingMessage renders err for the notification sink: the outermost
// message followed by the innermost cause.
func userFacingMessage(err error) string {
	var ae *errors.AppError
	if !errors.As(err, &ae) {
		return err.Error()
	}
	msg := ae.Message
	if ae.Detail != "" {
		msg += ": " + ae.Detail
	}
	if ae.Cause != nil {
		msg += ": " + causeText(ae.Cause)
	}
	return msg
}

func causeText(err error) string {
	var ae *errors.AppError
	if errors.As(err, &ae) {
		return userFacingMessage(ae)
	}
	return err.Error()
}
