package schedule

import "slipline/internal/domain"

// CheckNewDependency validates a proposed finish-to-start edge against the
// existing edge set: no self-loop, no duplicate, no cycle. The cycle check
// runs a DFS over successors starting from the new successor; reaching the
// new predecessor means the edge would close a loop.
func CheckNewDependency(predecessorID, successorID string, existing []domain.StageDependency) error {
	if predecessorID == successorID {
		return ErrInvalidEdge
	}
	for _, dep := range existing {
		if dep.PredecessorStageID == predecessorID && dep.SuccessorStageID == successorID {
			return ErrDuplicateEdge
		}
	}
	if wouldCreateCycle(predecessorID, successorID, existing) {
		return ErrCycleDetected
	}
	return nil
}

func wouldCreateCycle(newPredecessor, newSuccessor string, existing []domain.StageDependency) bool {
	adjacency := map[string][]string{}
	for _, dep := range existing {
		adjacency[dep.PredecessorStageID] = append(adjacency[dep.PredecessorStageID], dep.SuccessorStageID)
	}
	visited := map[string]bool{}
	stack := []string{newSuccessor}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == newPredecessor {
			return true
		}
		if visited[node] {
			continue
		}
		visited[node] = true
		stack = append(stack, adjacency[node]...)
	}
	return false
}

// Predecessors returns the predecessor stage ids of a stage.
func Predecessors(stageID string, deps []domain.StageDependency) []string {
	var ids []string
	for _, dep := range deps {
		if dep.SuccessorStageID == stageID {
			ids = append(ids, dep.PredecessorStageID)
		}
	}
	return ids
}

// Successors returns the successor stage ids of a stage.
func Successors(stageID string, deps []domain.StageDependency) []string {
	var ids []string
	for _, dep := range deps {
		if dep.PredecessorStageID == stageID {
			ids = append(ids, dep.SuccessorStageID)
		}
	}
	return ids
}
