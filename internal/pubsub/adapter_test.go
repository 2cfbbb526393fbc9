package pubsub

import (
	"testing"

	"modwatch/internal/modlog"
)

func TestToRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		action ModerationAction
		want   modlog.Record
	}{
		{
			name: "ban with reason keeps id and reason",
			action: ModerationAction{
				Action:       "ban",
				TargetUserID: "1001",
				CreatedBy:    "modx",
				CreatedAt:    "2026-08-28T10:00:00Z",
				Args:         []any{"troll_user", "spamming links"},
			},
			want: modlog.Record{
				UserName:  "troll_user",
				UserID:    "1001",
				Kind:      modlog.KindBan,
				Moderator: "modx",
				Timestamp: "2026-08-28T10:00:00Z",
				Info:      "spamming links",
			},
		},
		{
			name: "unban keeps id, no info",
			action: ModerationAction{
				Action:       "unban",
				TargetUserID: "1001",
				CreatedBy:    "mody",
				CreatedAt:    "2026-08-28T11:00:00Z",
				Args:         []any{"troll_user"},
			},
			want: modlog.Record{
				UserName:  "troll_user",
				UserID:    "1001",
				Kind:      modlog.KindUnban,
				Moderator: "mody",
				Timestamp: "2026-08-28T11:00:00Z",
			},
		},
		{
			name: "timeout drops id and formats duration",
			action: ModerationAction{
				Action:       "timeout",
				TargetUserID: "1002",
				CreatedBy:    "modx",
				Args:         []any{"noisy_user", "600"},
			},
			want: modlog.Record{
				UserName:  "noisy_user",
				Kind:      modlog.KindTimeout,
				Moderator: "modx",
				Info:      "600s",
			},
		},
		{
			name: "delete carries message text",
			action: ModerationAction{
				Action:    "delete",
				CreatedBy: "modz",
				Args:      []any{"chatty_user", "rude message", "msg-id-1"},
			},
			want: modlog.Record{
				UserName:  "chatty_user",
				Kind:      modlog.KindMessageDeleted,
				Moderator: "modz",
				Info:      "rude message",
			},
		},
		{
			name: "blocked term names a phrase not a user",
			action: ModerationAction{
				Action:    "add_blocked_term",
				CreatedBy: "modx",
				Args:      []any{"bad phrase"},
			},
			want: modlog.Record{
				Kind:      modlog.KindAddedBlockedTerm,
				Moderator: "modx",
				Info:      "bad phrase",
			},
		},
		{
			name: "unmapped action passes through verbatim",
			action: ModerationAction{
				Action:    "slowoff",
				CreatedBy: "modx",
			},
			want: modlog.Record{
				Kind:      modlog.ActionKind("slowoff"),
				Moderator: "modx",
			},
		},
		{
			name:   "empty action maps to unknown",
			action: ModerationAction{CreatedBy: "modx"},
			want: modlog.Record{
				Kind:      modlog.KindUnknown,
				Moderator: "modx",
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ToRecord(tt.action); got != tt.want {
				t.Fatalf("ToRecord() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestArgStringToleratesShapes(t *testing.T) {
	t.Parallel()

	m := ModerationAction{Args: []any{"name", 600, nil}}
	if got := m.ArgString(0); got != "name" {
		t.Errorf("ArgString(0) = %q", got)
	}
	if got := m.ArgString(1); got != "" {
		t.Errorf("ArgString(1) = %q, want empty for non-string", got)
	}
	if got := m.ArgString(5); got != "" {
		t.Errorf("ArgString(5) = %q, want empty out of range", got)
	}
}

func TestDecodeModeration(t *testing.T) {
	t.Parallel()

	raw := `{"type":"moderation_action","data":{"moderation_action":"ban","target_user_id":"42","created_by":"modx","created_at":"2026-08-28T10:00:00Z","args":["troll","reason"]}}`
	m, err := decodeModeration(raw)
	if err != nil {
		t.Fatalf("decodeModeration: %v", err)
	}
	if m.Action != "ban" || m.TargetUserID != "42" || m.ArgString(1) != "reason" {
		t.Fatalf("decoded = %+v", m)
	}

	if _, err := decodeModeration("{not json"); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
