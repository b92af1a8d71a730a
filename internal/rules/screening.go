// Package rules provides the CEL-based transaction screening engine that
// assigns fraud scores and flags transactions at ingestion.
package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/finsec/fraudlens/internal/domain"
)

// Engine compiles and evaluates screening rules.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*compiledRule

	// flagThreshold is the fraud score at or above which a transaction is
	// flagged.
	flagThreshold float64
}

type compiledRule struct {
	rule    domain.ScreeningRule
	program cel.Program
}

// NewEngine creates a screening engine with the given flag threshold.
func NewEngine(flagThreshold float64) (*Engine, error) {
	if flagThreshold <= 0 || flagThreshold > 1 {
		return nil, fmt.Errorf("%w: flag threshold must be in (0, 1]", domain.ErrInvalidInput)
	}

	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("tx_type", cel.StringType),
		cel.Variable("channel", cel.StringType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("merchant_category", cel.StringType),
		cel.Variable("merchant_verified", cel.BoolType),
		cel.Variable("ip_is_proxy", cel.BoolType),
		cel.Variable("ip_is_vpn", cel.BoolType),
		cel.Variable("ip_risk", cel.DoubleType),
		cel.Variable("device_trusted", cel.BoolType),
		cel.Variable("from_account_status", cel.StringType),
		cel.Variable("to_account_status", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiled:      make(map[string]*compiledRule),
		flagThreshold: flagThreshold,
	}, nil
}

// LoadRule compiles and loads a rule. Disabled rules are skipped.
func (e *Engine) LoadRule(rule domain.ScreeningRule) error {
	if !rule.Enabled {
		return nil
	}
	if rule.ID == "" || rule.Expression == "" {
		return fmt.Errorf("%w: rule id and expression are required", domain.ErrInvalidInput)
	}
	if rule.Weight < 0 || rule.Weight > 1 {
		return fmt.Errorf("%w: rule %s weight must be in [0, 1]", domain.ErrInvalidInput, rule.ID)
	}

	compiled, err := e.compile(rule)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.compiled[rule.ID] = compiled
	e.mu.Unlock()
	return nil
}

// LoadRules loads multiple rules, stopping at the first compile failure.
func (e *Engine) LoadRules(rules []domain.ScreeningRule) error {
	for _, rule := range rules {
		if err := e.LoadRule(rule); err != nil {
			return err
		}
	}
	return nil
}

// RuleCount returns the number of loaded rules.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

func (e *Engine) compile(rule domain.ScreeningRule) (*compiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType {
		return nil, fmt.Errorf("rule %s: expression must return bool or double, got %s", rule.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &compiledRule{rule: rule, program: program}, nil
}

// ScreenInput holds the transaction attributes plus the referenced entity
// context the caller resolved for screening.
type ScreenInput struct {
	Transaction *domain.Transaction

	// Optional referenced-entity context. Nil fields screen with neutral
	// defaults.
	Merchant    *domain.Merchant
	IP          *domain.IPAddress
	Device      *domain.Device
	FromAccount *domain.Account
	ToAccount   *domain.Account
}

// ScreenResult is the screening outcome for one transaction.
type ScreenResult struct {
	FraudScore   float64  `json:"fraudScore"` // [0, 1]
	Flagged      bool     `json:"flagged"`
	MatchedRules []string `json:"matchedRules"`
}

// Screen evaluates all loaded rules against a transaction. The fraud score
// is the weighted sum of matched rule strengths, clamped to [0, 1]; the
// transaction is flagged when the score meets the engine threshold.
func (e *Engine) Screen(input ScreenInput) (ScreenResult, error) {
	if input.Transaction == nil {
		return ScreenResult{}, fmt.Errorf("%w: transaction is required", domain.ErrInvalidInput)
	}

	activation := buildActivation(input)

	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.compiled))
	for _, r := range e.compiled {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	var score float64
	var matched []string
	for _, r := range rules {
		out, _, err := r.program.Eval(activation)
		if err != nil {
			return ScreenResult{}, fmt.Errorf("rule %s evaluation failed: %w", r.rule.ID, err)
		}
		strength := toStrength(out)
		if strength > 0 {
			score += r.rule.Weight * strength
			matched = append(matched, r.rule.ID)
		}
	}

	score = domain.Clamp01(score)
	return ScreenResult{
		FraudScore:   score,
		Flagged:      score >= e.flagThreshold,
		MatchedRules: matched,
	}, nil
}

func buildActivation(input ScreenInput) map[string]any {
	t := input.Transaction

	activation := map[string]any{
		"amount":              t.Amount,
		"currency":            t.Currency,
		"tx_type":             string(t.Type),
		"channel":             string(t.Channel),
		"hour":                int64(t.Timestamp.UTC().Hour()),
		"merchant_category":   "",
		"merchant_verified":   true,
		"ip_is_proxy":         false,
		"ip_is_vpn":           false,
		"ip_risk":             0.0,
		"device_trusted":      true,
		"from_account_status": "",
		"to_account_status":   "",
	}

	if input.Merchant != nil {
		activation["merchant_category"] = input.Merchant.Category
		activation["merchant_verified"] = input.Merchant.IsVerified
	}
	if input.IP != nil {
		activation["ip_is_proxy"] = input.IP.IsProxy
		activation["ip_is_vpn"] = input.IP.IsVPN
		activation["ip_risk"] = input.IP.RiskScore
	}
	if input.Device != nil {
		activation["device_trusted"] = input.Device.IsTrusted
	}
	if input.FromAccount != nil {
		activation["from_account_status"] = string(input.FromAccount.Status)
	}
	if input.ToAccount != nil {
		activation["to_account_status"] = string(input.ToAccount.Status)
	}
	return activation
}

// toStrength converts a CEL result to a match strength in [0, 1].
func toStrength(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return domain.Clamp01(float64(v))
	default:
		return 0.0
	}
}
