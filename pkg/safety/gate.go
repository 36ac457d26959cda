// File: pkg/safety/gate.go
package safety

import (
	"time"

	"go.uber.org/zap"

	"github.com/mirelock/uipilot/api/schemas"
)

// Gate intercepts action requests before execution. It classifies risk,
// defers high-risk actions pending confirmation, and records every attempted
// action regardless of outcome.
type Gate struct {
	logger *zap.Logger
	table  *RiskTable
	audit  *AuditLog
	undo   *UndoQueue
}

// NewGate wires the gate from its injected collaborators.
func NewGate(logger *zap.Logger, table *RiskTable, audit *AuditLog, undo *UndoQueue) *Gate {
	return &Gate{
		logger: logger.Named("safety_gate"),
		table:  table,
		audit:  audit,
		undo:   undo,
	}
}

// Assess classifies one action request without side effects.
func (g *Gate) Assess(actionType string, params map[string]any) schemas.RiskAssessment {
	return g.table.Assess(actionType, params)
}

// Decide returns the gate verdict for a directive. Deferred actions are
// never dropped here; the dispatcher surfaces the pending-confirmation state
// to the planner, which decides whether to proceed.
func (g *Gate) Decide(directive schemas.Directive) (schemas.GateDecision, schemas.RiskAssessment) {
	assessment := g.table.Assess(string(directive.Type), directiveParams(directive))
	if assessment.RequiresConfirmation {
		g.logger.Warn("Action deferred pending confirmation",
			zap.String("action_type", string(directive.Type)),
			zap.String("risk_level", string(assessment.Level)),
			zap.String("matched_rule", assessment.MatchedRule),
		)
		return schemas.GateDefer, assessment
	}
	return schemas.GateAllow, assessment
}

// Record appends the attempt to the audit log and undo queue. It is called
// unconditionally, success or failure, and never raises to the caller.
func (g *Gate) Record(directive schemas.Directive, status, detail string) {
	now := time.Now().UTC()
	g.audit.Append(schemas.AuditEntry{
		Timestamp:  now,
		ActionType: string(directive.Type),
		Status:     status,
		Detail:     detail,
	})
	g.undo.Push(schemas.UndoEntry{
		Timestamp:      now,
		ActionSnapshot: directive,
	})
}

// Undo exposes the bounded undo trail for introspection.
func (g *Gate) Undo() []schemas.UndoEntry { return g.undo.Entries() }

// Recent exposes the in-memory audit mirror.
func (g *Gate) Recent() []schemas.AuditEntry { return g.audit.Recent() }

// directiveParams flattens the type-specific fields a rule might match on.
func directiveParams(d schemas.Directive) map[string]any {
	params := make(map[string]any, 3)
	if d.Text != "" {
		params["text"] = d.Text
	}
	if d.Global != "" {
		params["global"] = string(d.Global)
	}
	if d.Direction != "" {
		params["direction"] = string(d.Direction)
	}
	return params
}
