package domain

import "fmt"

// StatusState is the host-neutral state of a commit status.
type StatusState string

const (
	StateSuccess StatusState = "success"
	StateFailure StatusState = "failure"
)

// CommitStatus is the commit status derived from a Result.
type CommitStatus struct {
	State       StatusState `json:"state"`
	Description string      `json:"description"`
	TargetURL   string      `json:"target_url,omitempty"`
	Context     string      `json:"context"`
}

// NewCommitStatus renders the commit status for a result.
// Only red fails; yellow is reported as success with a warning description.
func NewCommitStatus(result Result, context, targetURL string) CommitStatus {
	rate := FormatPercent(result.Rate)
	status := CommitStatus{TargetURL: targetURL, Context: context}
	switch result.Level {
	case LevelRed:
		status.State = StateFailure
		status.Description = fmt.Sprintf("Error: Too low %s coverage - %s", result.Metric, rate)
	case LevelYellow:
		status.State = StateSuccess
		status.Description = fmt.Sprintf("Warning: low %s coverage - %s", result.Metric, rate)
	default:
		status.State = StateSuccess
		status.Description = fmt.Sprintf("Success: %s coverage - %s", result.Metric, rate)
	}
	return status
}
