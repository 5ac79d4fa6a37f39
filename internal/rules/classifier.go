package rules

import (
	"slices"

	"trailnotify/internal/types"
)

// Classifier evaluates an ordered rule table. It is immutable after
// construction and safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier over rules, evaluated in slice order.
func NewClassifier(rules []Rule) *Classifier {
	return &Classifier{rules: slices.Clone(rules)}
}

// Rules returns a copy of the table in evaluation order.
func (c *Classifier) Rules() []Rule {
	return slices.Clone(c.rules)
}

// Classify returns the first rule whose predicate holds. The first predicate
// that fails, by error or panic, ends evaluation with OutcomeFailure.
func (c *Classifier) Classify(rec types.Record) types.Classification {
	for _, rule := range c.rules {
		ok, err := evaluate(rule, rec)
		if err != nil {
			return types.Classification{Outcome: types.OutcomeFailure, RuleID: rule.ID, Err: err}
		}
		if ok {
			return types.Classification{Outcome: types.OutcomeMatch, RuleID: rule.ID, Label: rule.Label}
		}
	}
	return types.Classification{Outcome: types.OutcomeNoMatch}
}

func evaluate(rule Rule, rec types.Record) (ok bool, err error) {
	defer func() {
		if v := recover(); v != nil {
			ok = false
			err = &types.PredicatePanicError{RuleID: rule.ID, Value: v}
		}
	}()
	if rule.Predicate == nil {
		return false, nil
	}
	return rule.Predicate(rec)
}
