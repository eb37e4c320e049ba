package engine

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"datagraph/pkg/domain"
)

// MetricsRecorder receives one observation per facade operation. The
// error carries the outcome; recorders derive a status label from it
// via statusOf.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, err error, duration time.Duration)
}

// NoopMetricsRecorder discards all observations.
type NoopMetricsRecorder struct{}

// Observe implements MetricsRecorder.
func (NoopMetricsRecorder) Observe(context.Context, string, error, time.Duration) {}

// statusOf maps an operation outcome onto a stable status label. Each
// error of the request taxonomy gets its own label so dashboards can
// tell a rejected request from an infrastructure failure.
func statusOf(err error) string {
	if err == nil {
		return "success"
	}
	var (
		invalid    *domain.InvalidRequestError
		mismatch   *domain.NamespaceMismatchError
		unsat      *domain.UnsatisfiedConditionError
		uniqueness *domain.UniquenessViolationError
		notImpl    *domain.NotImplementedError
		unavail    *domain.StoreUnavailableError
	)
	switch {
	case errors.As(err, &invalid):
		return "invalid_request"
	case errors.As(err, &mismatch):
		return "namespace_mismatch"
	case errors.As(err, &unsat):
		return "unsatisfied_condition"
	case errors.As(err, &uniqueness):
		return "uniqueness_violation"
	case errors.As(err, &notImpl):
		return "not_implemented"
	case errors.As(err, &unavail):
		return "store_unavailable"
	default:
		return "error"
	}
}

var expvarSeq uint64

// OperationStats aggregates the observations of one facade operation.
type OperationStats struct {
	Count    int64            `json:"count"`
	TotalMS  float64          `json:"total_ms"`
	Statuses map[string]int64 `json:"statuses"`
}

// ExpvarMetricsRecorder publishes per-operation aggregates via expvar
// for deployments that prefer process-local metrics without an external
// collector. Counts and millisecond totals are broken down by the
// status labels of statusOf.
type ExpvarMetricsRecorder struct {
	name string
	mu   sync.Mutex
	ops  map[string]*OperationStats
}

// ExpvarMetricsSnapshot captures a read-only view of the recorded metrics.
type ExpvarMetricsSnapshot struct {
	Operations map[string]OperationStats `json:"operations"`
	RecordedAt time.Time                 `json:"recorded_at"`
}

// NewExpvarMetricsRecorder constructs an expvar-backed recorder and
// publishes it under the supplied name. When name is empty, a unique
// identifier is generated.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("datagraph_metrics_%d", id)
	}
	rec := &ExpvarMetricsRecorder{
		name: name,
		ops:  make(map[string]*OperationStats),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name associated with the recorder.
func (r *ExpvarMetricsRecorder) Name() string {
	return r.name
}

// Snapshot returns an immutable copy of the aggregated metrics.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make(map[string]OperationStats, len(r.ops))
	for op, stats := range r.ops {
		statuses := make(map[string]int64, len(stats.Statuses))
		for status, count := range stats.Statuses {
			statuses[status] = count
		}
		ops[op] = OperationStats{Count: stats.Count, TotalMS: stats.TotalMS, Statuses: statuses}
	}

	return ExpvarMetricsSnapshot{
		Operations: ops,
		RecordedAt: time.Now().UTC(),
	}
}

// Observe records a facade operation outcome.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, err error, duration time.Duration) {
	if operation == "" {
		return
	}
	status := statusOf(err)
	ms := float64(duration) / float64(time.Millisecond)

	r.mu.Lock()
	stats, ok := r.ops[operation]
	if !ok {
		stats = &OperationStats{Statuses: make(map[string]int64, 2)}
		r.ops[operation] = stats
	}
	stats.Count++
	stats.TotalMS += ms
	stats.Statuses[status]++
	r.mu.Unlock()
}

var (
	_ MetricsRecorder = NoopMetricsRecorder{}
	_ MetricsRecorder = (*ExpvarMetricsRecorder)(nil)
)
