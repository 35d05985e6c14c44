package rules

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/banking/compliance-engine/internal/domain"
)

// Engine evaluates an organization's rule set against a transaction context.
// Evaluation is pure: no I/O, no mutation of the rules or the context, so a
// given (rules, context) pair always yields the same outcome.
type Engine struct {
	logger *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// Outcome is the aggregate of one evaluation pass.
type Outcome struct {
	Results []domain.RuleEvaluationResult
	// ResolvedAction is the most severe action among triggered rules,
	// ALLOW when nothing triggered. Ties go to the lower priority number.
	ResolvedAction domain.RuleAction
	// ResolvedBy is the rule that determined ResolvedAction, if any.
	ResolvedBy *domain.RuleEvaluationResult
	// RiskScoreImpact sums the impacts of all triggered rules, capped at 100.
	RiskScoreImpact int
}

// Evaluate runs every enabled rule in priority order (lower number first)
// against the context. Disabled rules are skipped and do not appear in the
// results. A rule whose condition references a field absent from the context
// does not trigger.
func (e *Engine) Evaluate(ruleSet []*domain.ComplianceRule, txCtx *domain.TransactionContext) Outcome {
	ordered := make([]*domain.ComplianceRule, 0, len(ruleSet))
	for _, r := range ruleSet {
		if r.Enabled {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	outcome := Outcome{
		Results:        make([]domain.RuleEvaluationResult, 0, len(ordered)),
		ResolvedAction: domain.ActionAllow,
	}
	now := time.Now().UTC()

	for _, rule := range ordered {
		result := domain.RuleEvaluationResult{
			RuleID:      rule.RuleID,
			RuleName:    rule.Name,
			Priority:    rule.Priority,
			EvaluatedAt: now,
		}
		if e.matches(rule, txCtx) {
			result.Triggered = true
			result.Action = rule.Action
			result.Severity = rule.Severity
			result.Message = rule.Message
			result.RiskScoreImpact = rule.RiskScoreImpact

			outcome.RiskScoreImpact += rule.RiskScoreImpact
			if rule.Action.Severity() > outcome.ResolvedAction.Severity() {
				outcome.ResolvedAction = rule.Action
				resolved := result
				outcome.ResolvedBy = &resolved
			}
		}
		outcome.Results = append(outcome.Results, result)
	}

	if outcome.RiskScoreImpact > 100 {
		outcome.RiskScoreImpact = 100
	}
	return outcome
}

// matches applies the rule's conditions under its AND/OR logic.
func (e *Engine) matches(rule *domain.ComplianceRule, txCtx *domain.TransactionContext) bool {
	if len(rule.Conditions) == 0 {
		return false
	}
	for _, cond := range rule.Conditions {
		ok := e.evaluateCondition(cond, txCtx)
		if rule.ConditionLogic == domain.LogicOr {
			if ok {
				return true
			}
		} else if !ok {
			return false
		}
	}
	return rule.ConditionLogic != domain.LogicOr
}

func (e *Engine) evaluateCondition(cond domain.RuleCondition, txCtx *domain.TransactionContext) bool {
	value, present := txCtx.Lookup(cond.Field)
	if !present {
		return false
	}

	switch cond.Operator {
	case domain.OpEquals:
		return compareEquals(cond, value)
	case domain.OpNotEquals:
		return !compareEquals(cond, value)
	case domain.OpGreaterThan:
		return value.Kind == domain.ValueNumber && cond.NumberValue != nil &&
			value.Number.GreaterThan(*cond.NumberValue)
	case domain.OpLessThan:
		return value.Kind == domain.ValueNumber && cond.NumberValue != nil &&
			value.Number.LessThan(*cond.NumberValue)
	case domain.OpIn:
		return listContains(cond.ListValue, value)
	case domain.OpNotIn:
		return value.Kind == domain.ValueString && !listContains(cond.ListValue, value)
	case domain.OpContains:
		return value.Kind == domain.ValueString && cond.StringValue != nil &&
			strings.Contains(value.Str, *cond.StringValue)
	case domain.OpRegexMatch:
		if value.Kind != domain.ValueString || cond.StringValue == nil {
			return false
		}
		// Pattern validity was checked at rule creation; a rule stored
		// before validation existed can still carry a broken pattern.
		re, err := regexp.Compile(*cond.StringValue)
		if err != nil {
			e.logger.Warn("rule regex failed to compile",
				zap.String("field", cond.Field),
				zap.Error(err))
			return false
		}
		return re.MatchString(value.Str)
	default:
		return false
	}
}

func compareEquals(cond domain.RuleCondition, value domain.ContextValue) bool {
	switch cond.ValueKind {
	case domain.ValueNumber:
		return value.Kind == domain.ValueNumber && cond.NumberValue != nil &&
			value.Number.Equal(*cond.NumberValue)
	case domain.ValueString:
		return value.Kind == domain.ValueString && cond.StringValue != nil &&
			value.Str == *cond.StringValue
	case domain.ValueBool:
		return value.Kind == domain.ValueBool && cond.BoolValue != nil &&
			value.Bool == *cond.BoolValue
	default:
		return false
	}
}

func listContains(list []string, value domain.ContextValue) bool {
	if value.Kind != domain.ValueString {
		return false
	}
	for _, item := range list {
		if item == value.Str {
			return true
		}
	}
	return false
}

