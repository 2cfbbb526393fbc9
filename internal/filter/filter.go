// Package filter evaluates live chat messages against user-defined pattern
// rules. It decides; it does not enforce. Whatever acts on a verdict
// (deleting a message, issuing a timeout) lives behind the chat collaborator.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode selects how a rule's pattern is applied to its target string.
type Mode string

const (
	FullMatch Mode = "full_match"
	Substring Mode = "substring"
	Regex     Mode = "regex"
)

// Target selects which part of a chat message the rule inspects.
type Target string

const (
	TargetMessage Target = "message"
	TargetAuthor  Target = "author"
)

// Penalty is the action a matched rule asks for.
type Penalty string

const (
	PenaltyDelete     Penalty = "delete"
	PenaltyTimeout1m  Penalty = "timeout_1m"
	PenaltyTimeout10m Penalty = "timeout_10m"
	PenaltyBan        Penalty = "ban"
)

// Rule is one compiled filter. Build rules with New; a Regex-mode rule's
// pattern is compiled there, so an invalid pattern is rejected at creation
// and never surfaces at match time.
type Rule struct {
	Pattern string
	Mode    Mode
	Target  Target
	Penalty Penalty

	re *regexp.Regexp
}

// Match is the positive outcome of evaluating one rule.
type Match struct {
	// Text is the part of the target string that triggered the rule: the
	// full target for FullMatch, the pattern for Substring, the first
	// regexp match for Regex.
	Text    string
	Penalty Penalty
}

func New(pattern string, mode Mode, target Target, penalty Penalty) (Rule, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return Rule{}, fmt.Errorf("filter: empty pattern")
	}
	if !validMode(mode) {
		return Rule{}, fmt.Errorf("filter: unknown mode %q", mode)
	}
	if !validTarget(target) {
		return Rule{}, fmt.Errorf("filter: unknown target %q", target)
	}
	if !validPenalty(penalty) {
		return Rule{}, fmt.Errorf("filter: unknown penalty %q", penalty)
	}

	r := Rule{Pattern: pattern, Mode: mode, Target: target, Penalty: penalty}
	if mode == Regex {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Rule{}, fmt.Errorf("filter: pattern does not compile: %w", err)
		}
		r.re = re
	}
	return r, nil
}

// Evaluate runs the rule against one message. The second return value is
// false when the rule does not match.
func (r Rule) Evaluate(author, content string) (Match, bool) {
	s := strings.TrimSpace(content)
	if r.Target == TargetAuthor {
		s = author
	}

	switch r.Mode {
	case FullMatch:
		if strings.TrimSpace(s) == r.Pattern {
			return Match{Text: strings.TrimSpace(s), Penalty: r.Penalty}, true
		}
	case Substring:
		if strings.Contains(s, r.Pattern) {
			return Match{Text: r.Pattern, Penalty: r.Penalty}, true
		}
	case Regex:
		if loc := r.re.FindStringIndex(s); loc != nil {
			return Match{Text: s[loc[0]:loc[1]], Penalty: r.Penalty}, true
		}
	}
	return Match{}, false
}

// RuleMatch pairs a matched rule with its match, for callers reporting every
// rule a message triggered.
type RuleMatch struct {
	Rule  Rule
	Match Match
}

// EvaluateAll runs every rule independently and returns all matches, in rule
// order. No match yields a nil slice.
func EvaluateAll(rules []Rule, author, content string) []RuleMatch {
	var out []RuleMatch
	for _, r := range rules {
		if m, ok := r.Evaluate(author, content); ok {
			out = append(out, RuleMatch{Rule: r, Match: m})
		}
	}
	return out
}

func validMode(m Mode) bool {
	switch m {
	case FullMatch, Substring, Regex:
		return true
	}
	return false
}

func validTarget(t Target) bool {
	switch t {
	case TargetMessage, TargetAuthor:
		return true
	}
	return false
}

func validPenalty(p Penalty) bool {
	switch p {
	case PenaltyDelete, PenaltyTimeout1m, PenaltyTimeout10m, PenaltyBan:
		return true
	}
	return false
}
