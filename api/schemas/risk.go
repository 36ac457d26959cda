// File: api/schemas/risk.go
package schemas

import "time"

// RiskLevel grades the blast radius of one action.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskAssessment is the deterministic classification of one action request.
// Confirmation is required only for HIGH and CRITICAL.
type RiskAssessment struct {
	Level                RiskLevel `json:"level"`
	RequiresConfirmation bool      `json:"requires_confirmation"`
	// MatchedRule names the first rule that matched, empty for the default.
	MatchedRule string `json:"matched_rule,omitempty"`
}

// GateDecision is the safety gate's verdict for one action.
type GateDecision string

const (
	GateAllow GateDecision = "allow"
	GateDefer GateDecision = "defer_for_confirmation"
)

// AuditEntry is one append-only record of an attempted action.
type AuditEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	ActionType string    `json:"action_type"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
}

// UndoEntry captures the action snapshot kept for introspection. The undo
// queue never executes anything; it is a bounded read-only trail.
type UndoEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	ActionSnapshot Directive `json:"action_snapshot"`
}
