package schedule

import (
	"time"

	"slipline/internal/domain"
)

// ProgressUpdate is the input of one stage progress report.
type ProgressUpdate struct {
	Status          string
	ProgressPct     float64
	ActualStartDate *string
	ActualEndDate   *string
	Comments        string
}

// ApplyProgressUpdate validates and applies a progress report to the stage
// in place, returning the immutable history row describing the transition.
//
// Rules:
//   - progress_pct must be within [0, 100]
//   - actual_end_date requires actual_start_date and must not precede it
//   - a completed stage must carry both actual dates
func ApplyProgressUpdate(stage *domain.Stage, upd ProgressUpdate, actorID string, now time.Time) (domain.StageStatusUpdate, error) {
	if !domain.ValidStageStatus(upd.Status) {
		return domain.StageStatusUpdate{}, ErrUnknownEnum
	}
	if upd.ProgressPct < 0 || upd.ProgressPct > 100 {
		return domain.StageStatusUpdate{}, ErrInvalidProgress
	}
	if upd.ActualEndDate != nil && upd.ActualStartDate == nil {
		return domain.StageStatusUpdate{}, ErrEndWithoutStart
	}
	if err := CheckDateOrdering(upd.ActualStartDate, upd.ActualEndDate); err != nil {
		return domain.StageStatusUpdate{}, err
	}
	if upd.Status == domain.StageCompleted && (upd.ActualStartDate == nil || upd.ActualEndDate == nil) {
		return domain.StageStatusUpdate{}, ErrIncompleteActuals
	}

	ts := now.UTC().Format(time.RFC3339)
	prevStatus := stage.Status
	prevPct := stage.ProgressPct
	row := domain.StageStatusUpdate{
		StageID:             stage.ID,
		ProjectID:           stage.ProjectID,
		UpdatedByID:         actorID,
		PreviousStatus:      &prevStatus,
		NewStatus:           upd.Status,
		PreviousProgressPct: &prevPct,
		NewProgressPct:      upd.ProgressPct,
		ActualStartDate:     upd.ActualStartDate,
		ActualEndDate:       upd.ActualEndDate,
		Comments:            upd.Comments,
		UpdatedAt:           ts,
	}

	stage.Status = upd.Status
	stage.ProgressPct = upd.ProgressPct
	stage.ActualStartDate = upd.ActualStartDate
	stage.ActualEndDate = upd.ActualEndDate
	stage.ActualDurationDays = DurationDays(upd.ActualStartDate, upd.ActualEndDate)
	stage.Comments = upd.Comments
	stage.UpdatedAt = ts
	stage.UpdatedByID = &actorID
	return row, nil
}

// ComputeDeviation sets deviation_days and deviation_status on the stage
// from planned_end_date vs baseline_end_date. Both fields are cleared when
// either date is absent. Recomputing is idempotent.
func ComputeDeviation(stage *domain.Stage) {
	if stage.PlannedEndDate == nil || stage.BaselineEndDate == nil {
		stage.DeviationDays = nil
		stage.DeviationStatus = nil
		return
	}
	delta, err := DayDiff(*stage.BaselineEndDate, *stage.PlannedEndDate)
	if err != nil {
		stage.DeviationDays = nil
		stage.DeviationStatus = nil
		return
	}
	status := domain.DeviationOnBaseline
	switch {
	case delta > 0:
		status = domain.DeviationDelayed
	case delta < 0:
		status = domain.DeviationAhead
	}
	stage.DeviationDays = &delta
	stage.DeviationStatus = &status
}

// ComputeDeviations recomputes every stage in place.
func ComputeDeviations(stages []domain.Stage) {
	for i := range stages {
		ComputeDeviation(&stages[i])
	}
}

// DeviationSummary counts stages per deviation state. Stages without a
// baseline are excluded.
func DeviationSummary(stages []domain.Stage) map[string]int {
	summary := map[string]int{
		domain.DeviationOnBaseline: 0,
		domain.DeviationAhead:      0,
		domain.DeviationDelayed:    0,
	}
	for _, s := range stages {
		if s.DeviationStatus != nil {
			summary[*s.DeviationStatus]++
		}
	}
	return summary
}
