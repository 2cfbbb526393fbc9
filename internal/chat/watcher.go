package chat

import (
	"context"
	"sync"
	"time"

	"modwatch/internal/eventbus"
	"modwatch/internal/filter"
	"modwatch/pkg/logx"
)

// Enforcer acts on a matched rule. The default installation only logs;
// wiring a Sender-backed enforcer turns verdicts into real commands.
type Enforcer interface {
	Enforce(msg Message, m filter.RuleMatch)
}

// EnforcerFunc adapts a function to the Enforcer interface.
type EnforcerFunc func(msg Message, m filter.RuleMatch)

func (f EnforcerFunc) Enforce(msg Message, m filter.RuleMatch) { f(msg, m) }

// Watcher screens chat messages against the current rule set. Rules are
// swapped atomically on config or rule-file reload; screening never sees a
// half-applied set.
type Watcher struct {
	mu       sync.RWMutex
	rules    []filter.Rule
	enforcer Enforcer
	log      logx.Logger
}

func NewWatcher(rules []filter.Rule, enforcer Enforcer, log logx.Logger) *Watcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	w := &Watcher{rules: rules, log: log}
	if enforcer == nil {
		enforcer = EnforcerFunc(w.logOnly)
	}
	w.enforcer = enforcer
	return w
}

// SetRules replaces the active rule set.
func (w *Watcher) SetRules(rules []filter.Rule) {
	w.mu.Lock()
	w.rules = rules
	w.mu.Unlock()
}

// Rules returns the active set (shared slice, treat as read-only).
func (w *Watcher) Rules() []filter.Rule {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rules
}

// Handle screens one message and hands every match to the enforcer. It
// returns the matches so callers can test or report them.
func (w *Watcher) Handle(msg Message) []filter.RuleMatch {
	matches := filter.EvaluateAll(w.Rules(), msg.Author, msg.Content)
	for _, m := range matches {
		w.enforcer.Enforce(msg, m)
	}
	return matches
}

// Run pumps chat messages off the bus until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, bus eventbus.Bus) {
	ch, unsub := bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if msg, ok := ev.Data.(Message); ok && ev.Type == eventbus.TypeChatMessage {
				w.Handle(msg)
			}
		}
	}
}

func (w *Watcher) logOnly(msg Message, m filter.RuleMatch) {
	w.log.Info("filter matched",
		logx.String("channel", msg.Channel),
		logx.String("author", msg.Author),
		logx.String("pattern", m.Rule.Pattern),
		logx.String("matched", m.Match.Text),
		logx.String("penalty", string(m.Match.Penalty)),
	)
}

// SenderEnforcer turns penalties into moderation commands on a Sender.
// Command failures are logged, never propagated into the message pump.
type SenderEnforcer struct {
	Sender Sender
	Log    logx.Logger
}

func (e SenderEnforcer) Enforce(msg Message, m filter.RuleMatch) {
	log := e.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	reason := "filter: " + m.Rule.Pattern

	var err error
	switch m.Match.Penalty {
	case filter.PenaltyDelete:
		// Message IDs are not carried on this path yet; fall back to a
		// short timeout, which also purges recent messages.
		err = e.Sender.Timeout(msg.Channel, msg.Author, time.Second, reason)
	case filter.PenaltyTimeout1m:
		err = e.Sender.Timeout(msg.Channel, msg.Author, time.Minute, reason)
	case filter.PenaltyTimeout10m:
		err = e.Sender.Timeout(msg.Channel, msg.Author, 10*time.Minute, reason)
	case filter.PenaltyBan:
		err = e.Sender.Ban(msg.Channel, msg.Author, reason)
	}
	if err != nil {
		log.Warn("enforcement failed",
			logx.String("author", msg.Author),
			logx.String("penalty", string(m.Match.Penalty)),
			logx.Err(err),
		)
	}
}
