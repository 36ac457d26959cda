// File: api/schemas/results.go
package schemas

import "time"

// LoopStatus is the terminal state of one control-loop run.
type LoopStatus string

const (
	LoopSuccess LoopStatus = "success"
	LoopFailed  LoopStatus = "failed"
	LoopTimeout LoopStatus = "timeout"
)

// ActionRecord is one executed (or attempted) action inside a loop run,
// paired with the state label observed after it settled.
type ActionRecord struct {
	Step       int       `json:"step"`
	Directive  Directive `json:"directive"`
	Succeeded  bool      `json:"succeeded"`
	Error      string    `json:"error,omitempty"`
	StateLabel string    `json:"resulting_state_label"`
	Timestamp  time.Time `json:"timestamp"`
}

// LoopResult is the structured outcome returned to the dispatcher. Failures
// propagate as values here, never as errors crossing the boundary.
type LoopResult struct {
	Status           LoopStatus     `json:"status"`
	StepsTaken       int            `json:"steps_taken"`
	ActionsExecuted  []ActionRecord `json:"actions_executed"`
	ExecutionTimeMS  int64          `json:"execution_time_ms"`
	Error            string         `json:"error,omitempty"`
	CompletionReason string         `json:"completion_reason,omitempty"`
}

// ExecutionResult is the provider-side outcome of injecting one action.
type ExecutionResult struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
}
