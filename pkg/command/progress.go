package command

// Aggregate computes execution-level percentages. Completion is the mean over
// all steps; accuracy is the mean over completed steps only, or 0 when none
// completed.
func Aggregate(steps []*Step) (completion, accuracy float64) {
	if len(steps) == 0 {
		return 0, 0
	}
	var completionSum, accuracySum float64
	completed := 0
	for _, s := range steps {
		completionSum += clampPercent(s.CompletionPercentage)
		if s.Status == StepCompleted {
			accuracySum += clampPercent(s.AccuracyPercentage)
			completed++
		}
	}
	completion = completionSum / float64(len(steps))
	if completed > 0 {
		accuracy = accuracySum / float64(completed)
	}
	return completion, accuracy
}

func (e *Execution) Recompute() {
	e.CompletionPercentage, e.AccuracyPercentage = Aggregate(e.Steps)
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
