// File: pkg/safety/risk.go
package safety

import (
	"sort"
	"strings"

	"github.com/mirelock/uipilot/api/schemas"
	"github.com/mirelock/uipilot/internal/config"
)

// riskRule is one compiled entry of the keyword-to-risk table.
type riskRule struct {
	keyword string
	level   schemas.RiskLevel
}

// RiskTable classifies actions by matching keyword substrings against the
// declared action type in a fixed priority order. The first matching rule
// wins; unmatched actions default to MEDIUM.
type RiskTable struct {
	rules []riskRule
}

// NewRiskTable compiles the configured rule list. Rule order is preserved:
// callers are expected to place specific keywords before broad ones.
func NewRiskTable(rules []config.RiskRule) *RiskTable {
	compiled := make([]riskRule, 0, len(rules))
	for _, r := range rules {
		compiled = append(compiled, riskRule{
			keyword: strings.ToLower(r.Keyword),
			level:   schemas.RiskLevel(r.Level),
		})
	}
	return &RiskTable{rules: compiled}
}

// Assess classifies one action request. Classification is deterministic:
// the same type and params always produce the same assessment.
func (t *RiskTable) Assess(actionType string, params map[string]any) schemas.RiskAssessment {
	needle := strings.ToLower(actionType)
	for _, rule := range t.rules {
		if strings.Contains(needle, rule.keyword) {
			return assessment(rule.level, rule.keyword)
		}
	}

	// The declared type did not match; string parameters may still carry a
	// risky verb (e.g. a shell command passed as a param). Rules stay in
	// priority order on the outside and keys are walked sorted, so the same
	// params always yield the same assessment regardless of map iteration.
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, rule := range t.rules {
		for _, k := range keys {
			s, ok := params[k].(string)
			if !ok {
				continue
			}
			if strings.Contains(strings.ToLower(s), rule.keyword) {
				return assessment(rule.level, rule.keyword)
			}
		}
	}

	return assessment(schemas.RiskMedium, "")
}

func assessment(level schemas.RiskLevel, rule string) schemas.RiskAssessment {
	return schemas.RiskAssessment{
		Level:                level,
		RequiresConfirmation: level == schemas.RiskHigh || level == schemas.RiskCritical,
		MatchedRule:          rule,
	}
}
