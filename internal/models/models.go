package models

import "encoding/json"

// TaskStatus tracks the lifecycle of a scan task as reported to the console.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Severity is the common severity vocabulary all scanner output is mapped onto.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Confidence is the common confidence vocabulary for findings.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Task is the agent's read-only snapshot of a console-owned scan task.
type Task struct {
	ID            string   `json:"task_id"`
	RepositoryURL string   `json:"repository_url"`
	CommitRef     string   `json:"commit_ref,omitempty"`
	Scanners      []string `json:"scanners"`
	// Timeout overrides the per-scanner execution timeout, in seconds.
	Timeout int `json:"timeout,omitempty"`
}

// UnmarshalJSON accepts both "task_id" and the older "id" key used by
// earlier console versions.
func (t *Task) UnmarshalJSON(data []byte) error {
	type alias Task
	aux := struct {
		*alias
		LegacyID string `json:"id"`
	}{alias: (*alias)(t)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = aux.LegacyID
	}
	return nil
}

// Finding is one normalized security issue emitted by a scanner.
// Immutable once created.
type Finding struct {
	Scanner    string     `json:"scanner"`
	Severity   Severity   `json:"severity"`
	Confidence Confidence `json:"confidence"`
	FilePath   string     `json:"file_path"`
	Line       int        `json:"line,omitempty"`
	RuleID     string     `json:"rule_id"`
	Message    string     `json:"message"`
}

// ScanResult is the per-scanner, per-task bundle of findings submitted
// to the console.
type ScanResult struct {
	TaskID    string    `json:"task_id"`
	Scanner   string    `json:"scanner"`
	Findings  []Finding `json:"findings"`
	RawOutput string    `json:"raw_output,omitempty"`
}
