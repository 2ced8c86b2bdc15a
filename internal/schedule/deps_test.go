package schedule_test

import (
	"errors"
	"testing"

	"slipline/internal/domain"
	"slipline/internal/schedule"
)

func edge(pred, succ string) domain.StageDependency {
	return domain.StageDependency{PredecessorStageID: pred, SuccessorStageID: succ}
}

func TestDependencyCycleRejected(t *testing.T) {
	existing := []domain.StageDependency{edge("A", "B"), edge("B", "C")}
	if err := schedule.CheckNewDependency("C", "A", existing); !errors.Is(err, schedule.ErrCycleDetected) {
		t.Fatalf("C->A over A->B->C: got %v, want cycle", err)
	}
	// A->C closes no loop alongside A->B->C
	if err := schedule.CheckNewDependency("A", "C", existing); err != nil {
		t.Fatalf("A->C should be accepted: %v", err)
	}
}

func TestDependencySelfLoop(t *testing.T) {
	if err := schedule.CheckNewDependency("A", "A", nil); !errors.Is(err, schedule.ErrInvalidEdge) {
		t.Fatalf("got %v, want self-loop rejection", err)
	}
}

func TestDependencyDuplicate(t *testing.T) {
	existing := []domain.StageDependency{edge("A", "B")}
	if err := schedule.CheckNewDependency("A", "B", existing); !errors.Is(err, schedule.ErrDuplicateEdge) {
		t.Fatalf("got %v, want duplicate rejection", err)
	}
	// reverse direction of an existing edge is a 2-cycle, not a duplicate
	if err := schedule.CheckNewDependency("B", "A", existing); !errors.Is(err, schedule.ErrCycleDetected) {
		t.Fatalf("B->A over A->B: got %v, want cycle", err)
	}
}

func TestDependencyLongChain(t *testing.T) {
	var existing []domain.StageDependency
	ids := []string{"s1", "s2", "s3", "s4", "s5", "s6"}
	for i := 0; i+1 < len(ids); i++ {
		existing = append(existing, edge(ids[i], ids[i+1]))
	}
	if err := schedule.CheckNewDependency("s6", "s1", existing); !errors.Is(err, schedule.ErrCycleDetected) {
		t.Fatalf("closing a 6-stage chain: got %v, want cycle", err)
	}
	if err := schedule.CheckNewDependency("s1", "s6", existing); err != nil {
		t.Fatalf("skip edge along the chain: %v", err)
	}
}

func TestPredecessorsSuccessors(t *testing.T) {
	deps := []domain.StageDependency{edge("A", "B"), edge("A", "C"), edge("B", "C")}
	if got := schedule.Predecessors("C", deps); len(got) != 2 {
		t.Fatalf("predecessors of C: %v", got)
	}
	if got := schedule.Successors("A", deps); len(got) != 2 {
		t.Fatalf("successors of A: %v", got)
	}
	if got := schedule.Predecessors("A", deps); got != nil {
		t.Fatalf("predecessors of A: %v", got)
	}
}
