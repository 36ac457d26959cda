// File: api/schemas/tasks.go
package schemas

import "time"

// TaskType selects how the dispatcher routes a planner request.
type TaskType string

const (
	// TaskResolve is a direct element-resolution request.
	TaskResolve TaskType = "RESOLVE_ELEMENT"
	// TaskGoal drives a full control-loop run toward a goal string.
	TaskGoal TaskType = "RUN_GOAL"
)

// Task is one request from the planner boundary.
type Task struct {
	ID       string        `json:"id,omitempty"`
	Type     TaskType      `json:"type"`
	DeviceID string        `json:"device_id,omitempty"`
	Goal     string        `json:"goal,omitempty"`
	MaxSteps int           `json:"max_steps,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`

	// Resolve tasks carry the element to find.
	Element ElementDescription `json:"element,omitempty"`
}

// TaskStatus is the dispatcher-level outcome of one task.
type TaskStatus string

const (
	StatusCompleted           TaskStatus = "COMPLETED"
	StatusFailed              TaskStatus = "FAILED"
	StatusPendingConfirmation TaskStatus = "PENDING_CONFIRMATION"
)

// TaskResult is the structured result returned to the planner. Exactly one
// of Loop/Detection is populated depending on the task type; a pending
// confirmation additionally carries the assessment and the held directive.
type TaskResult struct {
	TaskID     string           `json:"task_id"`
	Status     TaskStatus       `json:"status"`
	Loop       *LoopResult      `json:"loop,omitempty"`
	Detection  *DetectionResult `json:"detection,omitempty"`
	Assessment *RiskAssessment  `json:"assessment,omitempty"`
	Held       *Directive       `json:"held_directive,omitempty"`
	Error      string           `json:"error,omitempty"`
}
