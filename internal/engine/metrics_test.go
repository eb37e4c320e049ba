package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"datagraph/pkg/domain"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "success"},
		{"invalid request", &domain.InvalidRequestError{Reason: "x"}, "invalid_request"},
		{"namespace mismatch", &domain.NamespaceMismatchError{EntityID: "0-1", Namespace: "a"}, "namespace_mismatch"},
		{"unsatisfied condition", &domain.UnsatisfiedConditionError{EntityID: "0-1"}, "unsatisfied_condition"},
		{"uniqueness violation", &domain.UniquenessViolationError{PropertyName: "email"}, "uniqueness_violation"},
		{"not implemented", &domain.NotImplementedError{Feature: "x"}, "not_implemented"},
		{"store unavailable", &domain.StoreUnavailableError{Environment: "env", Err: errors.New("locked")}, "store_unavailable"},
		{"wrapped", fmt.Errorf("batch: %w", &domain.UnsatisfiedConditionError{EntityID: "0-2"}), "unsatisfied_condition"},
		{"plain", errors.New("disk full"), "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := statusOf(tc.err); got != tc.want {
				t.Fatalf("statusOf(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestExpvarRecorderAggregatesByStatus(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	ctx := context.Background()

	rec.Observe(ctx, "save_entities", nil, 10*time.Millisecond)
	rec.Observe(ctx, "save_entities", nil, 20*time.Millisecond)
	rec.Observe(ctx, "save_entities", &domain.UnsatisfiedConditionError{EntityID: "0-1"}, 5*time.Millisecond)
	rec.Observe(ctx, "remove_entities", &domain.InvalidRequestError{Reason: "x"}, time.Millisecond)
	rec.Observe(ctx, "", nil, time.Millisecond) // unnamed operations are dropped

	snap := rec.Snapshot()
	if len(snap.Operations) != 2 {
		t.Fatalf("operations = %d, want 2", len(snap.Operations))
	}

	saves := snap.Operations["save_entities"]
	if saves.Count != 3 {
		t.Fatalf("save count = %d, want 3", saves.Count)
	}
	if saves.TotalMS != 35 {
		t.Fatalf("save total = %v ms, want 35", saves.TotalMS)
	}
	if saves.Statuses["success"] != 2 || saves.Statuses["unsatisfied_condition"] != 1 {
		t.Fatalf("save statuses = %v", saves.Statuses)
	}

	removes := snap.Operations["remove_entities"]
	if removes.Count != 1 || removes.Statuses["invalid_request"] != 1 {
		t.Fatalf("remove stats = %+v", removes)
	}

	// Snapshots are copies; mutating one must not leak back.
	saves.Statuses["success"] = 99
	if rec.Snapshot().Operations["save_entities"].Statuses["success"] != 2 {
		t.Fatal("snapshot shares state with the recorder")
	}
}
