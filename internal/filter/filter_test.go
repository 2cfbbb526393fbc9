package filter

import (
	"os"
	"path/filepath"
	"testing"
)

func mustRule(t *testing.T, pattern string, mode Mode, target Target, penalty Penalty) Rule {
	t.Helper()
	r, err := New(pattern, mode, target, penalty)
	if err != nil {
		t.Fatalf("New(%q, %s): %v", pattern, mode, err)
	}
	return r
}

func TestEvaluateModes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		rule     Rule
		author   string
		content  string
		wantHit  bool
		wantText string
	}{
		{
			name:     "full match exact",
			rule:     mustRule(t, "spam", FullMatch, TargetMessage, PenaltyDelete),
			content:  "spam",
			wantHit:  true,
			wantText: "spam",
		},
		{
			name:    "full match rejects superstring",
			rule:    mustRule(t, "spam", FullMatch, TargetMessage, PenaltyDelete),
			content: "spam!",
			wantHit: false,
		},
		{
			name:     "full match trims message",
			rule:     mustRule(t, "spam", FullMatch, TargetMessage, PenaltyDelete),
			content:  "  spam  ",
			wantHit:  true,
			wantText: "spam",
		},
		{
			name:     "substring matches superstring",
			rule:     mustRule(t, "spam", Substring, TargetMessage, PenaltyTimeout1m),
			content:  "spam!",
			wantHit:  true,
			wantText: "spam",
		},
		{
			name:     "substring matches exact",
			rule:     mustRule(t, "spam", Substring, TargetMessage, PenaltyTimeout1m),
			content:  "spam",
			wantHit:  true,
			wantText: "spam",
		},
		{
			name:     "regex searches unanchored",
			rule:     mustRule(t, "^!raid", Regex, TargetMessage, PenaltyBan),
			content:  "!raid now",
			wantHit:  true,
			wantText: "!raid",
		},
		{
			name:    "regex no match",
			rule:    mustRule(t, "^!raid", Regex, TargetMessage, PenaltyBan),
			content: "say !raid later",
			wantHit: false,
		},
		{
			name:     "author target",
			rule:     mustRule(t, "bot", Substring, TargetAuthor, PenaltyBan),
			author:   "follow_bot_123",
			content:  "hello",
			wantHit:  true,
			wantText: "bot",
		},
		{
			name:    "author target ignores content",
			rule:    mustRule(t, "bot", Substring, TargetAuthor, PenaltyBan),
			author:  "regular",
			content: "bot bot bot",
			wantHit: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, ok := tt.rule.Evaluate(tt.author, tt.content)
			if ok != tt.wantHit {
				t.Fatalf("Evaluate hit = %v, want %v", ok, tt.wantHit)
			}
			if ok && m.Text != tt.wantText {
				t.Fatalf("match text = %q, want %q", m.Text, tt.wantText)
			}
			if ok && m.Penalty != tt.rule.Penalty {
				t.Fatalf("penalty = %q, want %q", m.Penalty, tt.rule.Penalty)
			}
		})
	}
}

func TestNewRejectsInvalid(t *testing.T) {
	t.Parallel()
	if _, err := New("[unclosed", Regex, TargetMessage, PenaltyBan); err == nil {
		t.Fatal("expected error for invalid regex pattern")
	}
	if _, err := New("", FullMatch, TargetMessage, PenaltyBan); err == nil {
		t.Fatal("expected error for empty pattern")
	}
	if _, err := New("x", Mode("fuzzy"), TargetMessage, PenaltyBan); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if _, err := New("x", FullMatch, Target("channel"), PenaltyBan); err == nil {
		t.Fatal("expected error for unknown target")
	}
	if _, err := New("x", FullMatch, TargetMessage, Penalty("shadowban")); err == nil {
		t.Fatal("expected error for unknown penalty")
	}

	// Invalid regex syntax is fine in non-regex modes; the pattern is literal there.
	if _, err := New("[unclosed", Substring, TargetMessage, PenaltyBan); err != nil {
		t.Fatalf("substring rule rejected: %v", err)
	}
}

func TestEvaluateAllReportsEveryMatch(t *testing.T) {
	t.Parallel()
	rules := []Rule{
		mustRule(t, "spam", Substring, TargetMessage, PenaltyDelete),
		mustRule(t, "^!raid", Regex, TargetMessage, PenaltyBan),
		mustRule(t, "unrelated", FullMatch, TargetMessage, PenaltyBan),
	}

	got := EvaluateAll(rules, "someone", "!raid spam now")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].Match.Penalty != PenaltyDelete || got[1].Match.Penalty != PenaltyBan {
		t.Fatalf("unexpected matches: %+v", got)
	}

	if got := EvaluateAll(rules, "someone", "nothing here"); got != nil {
		t.Fatalf("expected no matches, got %+v", got)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "rules", "chat_filters.yaml")

	rules := []Rule{
		mustRule(t, "spam", Substring, TargetMessage, PenaltyDelete),
		mustRule(t, "^!raid", Regex, TargetMessage, PenaltyBan),
	}
	if err := Save(path, rules); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(got))
	}
	if got[0].Pattern != "spam" || got[0].Mode != Substring {
		t.Fatalf("unexpected first rule: %+v", got[0])
	}
	// Regex rules come back compiled.
	if m, ok := got[1].Evaluate("", "!raid now"); !ok || m.Text != "!raid" {
		t.Fatalf("reloaded regex rule broken: %+v ok=%v", m, ok)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	rules, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rules != nil {
		t.Fatalf("expected nil rules, got %v", rules)
	}
}

func TestLoadSkipsInvalidEntries(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "chat_filters.yaml")
	raw := "- pattern: \"[unclosed\"\n  mode: regex\n  target: message\n  penalty: ban\n" +
		"- pattern: spam\n  mode: substring\n  target: message\n  penalty: delete\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	var skipped []string
	rules, err := Load(path, func(pattern string, err error) {
		skipped = append(skipped, pattern)
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rules) != 1 || rules[0].Pattern != "spam" {
		t.Fatalf("unexpected rules: %+v", rules)
	}
	if len(skipped) != 1 || skipped[0] != "[unclosed" {
		t.Fatalf("unexpected skip list: %v", skipped)
	}
}
