package schedule

import (
	"time"

	"slipline/internal/domain"
)

// RecalculateProjectProgress refreshes the project summary fields from all
// stages. Overall progress is the unweighted mean over the stage count;
// duration totals treat missing durations as zero.
func RecalculateProjectProgress(project *domain.Project, stages []domain.Stage, now time.Time) {
	project.UpdatedAt = now.UTC().Format(time.RFC3339)
	project.OverallProgressPct = 0
	project.TotalPlannedDurationDays = 0
	project.TotalActualDurationDays = 0
	project.TotalBaselineDurationDays = 0
	if len(stages) == 0 {
		return
	}
	var sum float64
	for _, s := range stages {
		sum += s.ProgressPct
		if s.PlannedDurationDays != nil {
			project.TotalPlannedDurationDays += *s.PlannedDurationDays
		}
		if s.ActualDurationDays != nil {
			project.TotalActualDurationDays += *s.ActualDurationDays
		}
		if s.BaselineDurationDays != nil {
			project.TotalBaselineDurationDays += *s.BaselineDurationDays
		}
	}
	project.OverallProgressPct = sum / float64(len(stages))
}

// RecalculatePhaseProgress refreshes one phase's mean progress and its date
// envelope (min start, max end over child stages).
func RecalculatePhaseProgress(phase *domain.Phase, stages []domain.Stage, now time.Time) {
	phase.UpdatedAt = now.UTC().Format(time.RFC3339)
	var children []domain.Stage
	for _, s := range stages {
		if s.PhaseID == phase.ID {
			children = append(children, s)
		}
	}
	if len(children) == 0 {
		phase.OverallProgressPct = 0
		return
	}

	var sum float64
	var plannedStarts, plannedEnds, actualStarts, actualEnds []string
	for _, s := range children {
		sum += s.ProgressPct
		if s.PlannedStartDate != nil {
			plannedStarts = append(plannedStarts, *s.PlannedStartDate)
		}
		if s.PlannedEndDate != nil {
			plannedEnds = append(plannedEnds, *s.PlannedEndDate)
		}
		if s.ActualStartDate != nil {
			actualStarts = append(actualStarts, *s.ActualStartDate)
		}
		if s.ActualEndDate != nil {
			actualEnds = append(actualEnds, *s.ActualEndDate)
		}
	}
	phase.OverallProgressPct = sum / float64(len(children))
	phase.PlannedStartDate = minDay(plannedStarts)
	phase.PlannedEndDate = maxDay(plannedEnds)
	phase.ActualStartDate = minDay(actualStarts)
	phase.ActualEndDate = maxDay(actualEnds)
}
