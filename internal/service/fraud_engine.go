package service

import (
	"regexp"

	"payflow/internal/core/domain"
)

// vpaPattern matches a plausible UPI virtual payment address, e.g.
// "alice@okicici". Applied case-insensitively.
var vpaPattern = regexp.MustCompile(`(?i)^[a-z0-9._-]{2,}@[a-z]{2,}$`)

// ValidVPA reports whether v looks like a UPI virtual payment address.
func ValidVPA(v string) bool {
	return vpaPattern.MatchString(v)
}

// fraudRule is a single named predicate over (attempt, trailing history).
type fraudRule struct {
	name string
	hits func(attempt domain.FraudAttempt, history domain.FraudHistory) bool
}

// FraudEngine folds an attempt through the rule set. Rules only decorate:
// a flagged payment still proceeds through authorization and shows up in the
// admin review queue.
type FraudEngine struct {
	rules []fraudRule
}

// NewFraudEngine creates the engine with the standard rule set.
func NewFraudEngine() *FraudEngine {
	return &FraudEngine{
		rules: []fraudRule{
			{
				name: domain.FraudRuleHighValue,
				hits: func(a domain.FraudAttempt, _ domain.FraudHistory) bool {
					return a.Amount > domain.FraudHighValueThreshold
				},
			},
			{
				name: domain.FraudRuleDuplicateAmount,
				hits: func(a domain.FraudAttempt, h domain.FraudHistory) bool {
					return h.HasAmount(a.Amount)
				},
			},
			{
				name: domain.FraudRuleHighFrequency,
				hits: func(_ domain.FraudAttempt, h domain.FraudHistory) bool {
					return h.Count > domain.FraudFrequencyThreshold
				},
			},
			{
				// Legacy transactions carry no VPA at all; an absent VPA is
				// not evaluated, only a malformed one.
				name: domain.FraudRuleInvalidVPA,
				hits: func(a domain.FraudAttempt, _ domain.FraudHistory) bool {
					return a.Method == domain.PaymentMethodUPI && a.VPA != "" && !ValidVPA(a.VPA)
				},
			},
			{
				name: domain.FraudRuleVelocity,
				hits: func(a domain.FraudAttempt, h domain.FraudHistory) bool {
					return h.TotalAmount+a.Amount > domain.FraudVelocityThreshold
				},
			},
		},
	}
}

// Evaluate returns the names of every rule the attempt trips, in rule order.
// An empty slice means the attempt is clean.
func (e *FraudEngine) Evaluate(attempt domain.FraudAttempt, history domain.FraudHistory) []string {
	var hits []string
	for _, r := range e.rules {
		if r.hits(attempt, history) {
			hits = append(hits, r.name)
		}
	}
	return hits
}
