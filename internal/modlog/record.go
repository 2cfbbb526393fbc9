package modlog

// ActionKind names one category of moderation event.
//
// Live payloads may carry action strings outside this set; those pass
// through verbatim so the ledger keeps whatever the platform reported.
type ActionKind string

const (
	KindBan                ActionKind = "ban"
	KindUnban              ActionKind = "unban"
	KindTimeout            ActionKind = "timeout"
	KindRemovedTimeout     ActionKind = "removed_timeout"
	KindStartedRaid        ActionKind = "started_raid"
	KindFollowerOnlyChat   ActionKind = "follower_only_chat"
	KindAddedVIP           ActionKind = "added_vip"
	KindAddedModerator     ActionKind = "added_moderator"
	KindHostingStarted     ActionKind = "hosting_started"
	KindHostingEnded       ActionKind = "hosting_ended"
	KindMessageDeleted     ActionKind = "message_deleted"
	KindAddedPermittedTerm ActionKind = "added_permitted_term"
	KindAddedBlockedTerm   ActionKind = "added_blocked_term"
	KindDeniedUnbanRequest ActionKind = "denied_unban_request"
	KindUnknown            ActionKind = "unknown"
)

// Record is the canonical representation of one moderation event, whether it
// came from a pasted dashboard export or from the live push channel.
//
// Timestamp stays a string on purpose: live events carry the platform's
// RFC3339-shaped created_at verbatim, imported blocks carry none, and the
// bans-ledger reconciliation compares the values lexicographically.
type Record struct {
	// UserName is the subject of the action. Empty for channel-wide events
	// (follower-only mode, term list changes).
	UserName string

	// UserID is the numeric platform ID. Live ban/unban events populate it
	// directly; otherwise it is filled lazily by the batch ID->name
	// resolution pass and may stay empty.
	UserID string

	Kind ActionKind

	// Moderator is the acting moderator's name. Empty for automated
	// (AutoMod) actions.
	Moderator string

	Timestamp string

	// Info is a free-text payload: deleted message content, a permitted or
	// blocked term, follower-only status text, a timeout duration, or a
	// ban reason.
	Info string
}
