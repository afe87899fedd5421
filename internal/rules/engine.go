// Package rules matches raw payee text against an account's normalizer rules.
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/rumor-ml/commons.systems/txconv/internal/config"
)

// Rule is a normalizer rule prepared for matching.
type Rule struct {
	PayeeID   string
	MatchType config.MatchType
	// Needle is the match string, case folded when FoldCase is set.
	Needle   string
	FoldCase bool

	pattern *regexp.Regexp
}

// Engine performs rule matching on payee text. Rules keep their declaration
// order and the first matching rule wins regardless of specificity.
type Engine struct {
	rules []Rule
}

// MatchResult identifies the rule that matched
type MatchResult struct {
	PayeeID   string
	RuleIndex int
	MatchType config.MatchType
}

// NewEngine prepares an account's normalizer rules. Regex rules use the
// pattern compiled at configuration load time when available.
func NewEngine(normalizers []config.NormalizerRule) (*Engine, error) {
	fold := cases.Fold()
	rules := make([]Rule, 0, len(normalizers))

	for i := range normalizers {
		n := &normalizers[i]
		rule := Rule{
			PayeeID:   n.PayeeID,
			MatchType: n.Matcher.Type,
			Needle:    n.Matcher.MatchString,
			FoldCase:  n.CaseInsensitive(),
		}

		if strings.TrimSpace(rule.Needle) == "" {
			return nil, fmt.Errorf("rule %d (%s): match string cannot be empty", i, n.PayeeID)
		}

		switch rule.MatchType {
		case config.MatchExact, config.MatchContains:
			if rule.FoldCase {
				rule.Needle = fold.String(rule.Needle)
			}
		case config.MatchRegex:
			rule.pattern = n.Pattern()
			if rule.pattern == nil {
				expr := rule.Needle
				if rule.FoldCase {
					expr = "(?i)" + expr
				}
				re, err := regexp.Compile(expr)
				if err != nil {
					return nil, fmt.Errorf("rule %d (%s): invalid regular expression: %w", i, n.PayeeID, err)
				}
				rule.pattern = re
			}
		default:
			return nil, fmt.Errorf("rule %d (%s): invalid matcher type %q (must be Exact, Contains or Regex)", i, n.PayeeID, rule.MatchType)
		}

		rules = append(rules, rule)
	}

	return &Engine{rules: rules}, nil
}

// Match applies rules to a payee description and returns the first match.
// Returns (nil, false) if no rules match.
func (e *Engine) Match(description string) (*MatchResult, bool) {
	var folded string
	if e.needsFold() {
		folded = cases.Fold().String(description)
	}

	for i, rule := range e.rules {
		subject := description
		if rule.FoldCase {
			subject = folded
		}

		matched := false
		switch rule.MatchType {
		case config.MatchExact:
			matched = subject == rule.Needle
		case config.MatchContains:
			matched = strings.Contains(subject, rule.Needle)
		case config.MatchRegex:
			matched = rule.pattern.MatchString(description)
		}

		if matched {
			return &MatchResult{PayeeID: rule.PayeeID, RuleIndex: i, MatchType: rule.MatchType}, true
		}
	}

	return nil, false
}

func (e *Engine) needsFold() bool {
	for _, r := range e.rules {
		if r.FoldCase && r.MatchType != config.MatchRegex {
			return true
		}
	}
	return false
}

// GetRules returns a copy of the rules in evaluation order.
func (e *Engine) GetRules() []Rule {
	result := make([]Rule, len(e.rules))
	copy(result, e.rules)
	return result
}
