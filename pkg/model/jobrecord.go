package model

import "time"

// StepRecord is the persisted status of a single Workplan Step within a
// Job Record.
type StepRecord struct {
	Status      StepState  `json:"status"`
	HandlerID   string     `json:"handler_id,omitempty"`
	OutputPath  string     `json:"output_path,omitempty"`
	ScriptPath  string     `json:"script_path,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// JobRecord is the single persisted file tracking a Workplan run. Any
// re-invocation with the same RunID reads the existing record and
// resumes from it; a new RunID starts from scratch.
type JobRecord struct {
	RunID          string                `json:"run_id"`
	WorkplanDigest string                `json:"workplan_digest"`
	Steps          map[string]StepRecord `json:"steps"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// IsTerminal reports whether every step in the record has reached a
// terminal state.
func (j *JobRecord) IsTerminal() bool {
	if len(j.Steps) == 0 {
		return false
	}
	for _, s := range j.Steps {
		if !s.Status.IsTerminal() {
			return false
		}
	}
	return true
}
