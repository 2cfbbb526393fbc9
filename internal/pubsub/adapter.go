package pubsub

import "modwatch/internal/modlog"

// actionKinds maps the push channel's action strings onto the canonical
// kinds shared with the dashboard-export parser. Anything else passes
// through as-is so exotic actions still land in the ledger legibly.
var actionKinds = map[string]modlog.ActionKind{
	"ban":                   modlog.KindBan,
	"unban":                 modlog.KindUnban,
	"timeout":               modlog.KindTimeout,
	"untimeout":             modlog.KindRemovedTimeout,
	"raid":                  modlog.KindStartedRaid,
	"followers":             modlog.KindFollowerOnlyChat,
	"vip":                   modlog.KindAddedVIP,
	"mod":                   modlog.KindAddedModerator,
	"host":                  modlog.KindHostingStarted,
	"unhost":                modlog.KindHostingEnded,
	"delete":                modlog.KindMessageDeleted,
	"add_permitted_term":    modlog.KindAddedPermittedTerm,
	"add_blocked_term":      modlog.KindAddedBlockedTerm,
	"deny_unban_request":    modlog.KindDeniedUnbanRequest,
	"approve_unban_request": modlog.KindUnban,
}

// ToRecord converts a live moderation payload into the canonical record
// shape. The numeric user ID is kept only for bans and unbans, where the
// ledger's reconciliation needs it; other actions resolve names later if
// at all.
func ToRecord(m ModerationAction) modlog.Record {
	rec := modlog.Record{
		UserName:  m.ArgString(0),
		Moderator: m.CreatedBy,
		Timestamp: m.CreatedAt,
	}

	kind, ok := actionKinds[m.Action]
	switch {
	case ok:
		rec.Kind = kind
	case m.Action != "":
		rec.Kind = modlog.ActionKind(m.Action)
	default:
		rec.Kind = modlog.KindUnknown
	}

	switch rec.Kind {
	case modlog.KindBan:
		rec.UserID = m.TargetUserID
		rec.Info = m.ArgString(1)
	case modlog.KindUnban:
		rec.UserID = m.TargetUserID
	case modlog.KindTimeout:
		if d := m.ArgString(1); d != "" {
			rec.Info = d + "s"
		}
	case modlog.KindMessageDeleted:
		rec.Info = m.ArgString(1)
	case modlog.KindAddedPermittedTerm, modlog.KindAddedBlockedTerm:
		// Term actions name a phrase, not a user.
		rec.Info = m.ArgString(0)
		rec.UserName = ""
	}
	return rec
}
