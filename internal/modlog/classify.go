package modlog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnclassified marks a block whose detail line matches no known phrase, or
// whose extraction failed (e.g. a timeout line without "for N seconds").
// Callers log these and move on; classification failures never abort a parse.
var ErrUnclassified = errors.New("modlog: unclassifiable action block")

var (
	timeoutModPattern       = regexp.MustCompile(`Timed out by (.+?) for (\d+) seconds?`)
	permittedTermModPattern = regexp.MustCompile(`Added as Permitted Term by (\w+)( via AutoMod)?`)
	blockedTermModPattern   = regexp.MustCompile(`Added as Blocked Term by (\w+)( via AutoMod)?`)
)

// classifyRule maps a detail-line phrase (or an exact subject line) to an
// action kind and an extraction function.
type classifyRule struct {
	phrase  string // substring match against the detail line
	subject string // exact match against the subject line, used when phrase is empty
	kind    ActionKind
	extract func(parts []string) (Record, error)
}

// classifyTable is matched top to bottom, first hit wins. Order matters:
// some phrases are substrings of moderator names appearing in others, so this
// must stay a priority list, not a set.
var classifyTable = []classifyRule{
	{phrase: "Banned by", kind: KindBan, extract: subjectAndLastToken},
	{phrase: "Timed out by", kind: KindTimeout, extract: extractTimeout},
	{phrase: "Raid Started by", kind: KindStartedRaid, extract: subjectAndLastToken},
	{subject: "Followers-Only Chat", kind: KindFollowerOnlyChat, extract: extractFollowerOnly},
	{phrase: "Added as a VIP by", kind: KindAddedVIP, extract: subjectAndLastToken},
	{phrase: "Added as a Moderator by", kind: KindAddedModerator, extract: subjectAndLastToken},
	{phrase: "Hosting Started by", kind: KindHostingStarted, extract: subjectAndLastToken},
	{phrase: "Hosting Ended by", kind: KindHostingEnded, extract: subjectAndLastToken},
	{phrase: "Message Deleted by", kind: KindMessageDeleted, extract: extractDeletedMessage},
	{phrase: "Removed Timeout by", kind: KindRemovedTimeout, extract: subjectAndLastToken},
	{phrase: "Added as Permitted Term by", kind: KindAddedPermittedTerm, extract: extractPermittedTerm},
	{phrase: "Unban request denied by", kind: KindDeniedUnbanRequest, extract: subjectAndLastToken},
	{phrase: "Added as Blocked Term by", kind: KindAddedBlockedTerm, extract: extractBlockedTerm},
}

// Classify maps one segmented block to a Record. The returned error wraps
// ErrUnclassified for both unknown phrases and failed extractions.
func Classify(parts []string) (Record, error) {
	if len(parts) < 2 {
		return Record{}, fmt.Errorf("%w: got %d parts, need at least 2", ErrUnclassified, len(parts))
	}
	subject, detail := parts[0], parts[1]
	for _, r := range classifyTable {
		if r.subject != "" {
			if subject != r.subject {
				continue
			}
		} else if !strings.Contains(detail, r.phrase) {
			continue
		}
		rec, err := r.extract(parts)
		if err != nil {
			return Record{}, err
		}
		rec.Kind = r.kind
		return rec, nil
	}
	return Record{}, fmt.Errorf("%w: %q", ErrUnclassified, detail)
}

// ParseExport segments and classifies a full pasted export. Blocks that fail
// classification are reported through onSkip (may be nil) and excluded.
func ParseExport(text string, onSkip func(parts []string, err error)) []Record {
	var recs []Record
	for _, parts := range Segment(text) {
		rec, err := Classify(parts)
		if err != nil {
			if onSkip != nil {
				onSkip(parts, err)
			}
			continue
		}
		recs = append(recs, rec)
	}
	return recs
}

// subjectAndLastToken covers the common block shape: the subject line names
// the user and the moderator is the last whitespace-delimited token of the
// detail line.
func subjectAndLastToken(parts []string) (Record, error) {
	return Record{UserName: parts[0], Moderator: lastToken(parts[1])}, nil
}

func extractTimeout(parts []string) (Record, error) {
	m := timeoutModPattern.FindStringSubmatch(parts[1])
	if m == nil {
		return Record{}, fmt.Errorf("%w: timeout line without duration: %q", ErrUnclassified, parts[1])
	}
	return Record{
		UserName:  parts[0],
		Moderator: strings.TrimSpace(m[1]),
		Info:      m[2] + "s",
	}, nil
}

func extractFollowerOnly(parts []string) (Record, error) {
	// Channel-wide event: no subject user. The detail line reads
	// "<status> ... by <moderator>".
	return Record{
		Moderator: lastToken(parts[1]),
		Info:      firstToken(parts[1]),
	}, nil
}

func extractDeletedMessage(parts []string) (Record, error) {
	if len(parts) < 3 {
		return Record{}, fmt.Errorf("%w: deleted message block without content line", ErrUnclassified)
	}
	return Record{
		UserName:  parts[0],
		Moderator: lastToken(parts[1]),
		Info:      parts[2],
	}, nil
}

func extractPermittedTerm(parts []string) (Record, error) {
	m := permittedTermModPattern.FindStringSubmatch(parts[1])
	if m == nil {
		return Record{}, fmt.Errorf("%w: permitted term line: %q", ErrUnclassified, parts[1])
	}
	// The subject line is the term itself; the "(via AutoMod)" suffix in the
	// detail line is ignored.
	return Record{Moderator: m[1], Info: parts[0]}, nil
}

func extractBlockedTerm(parts []string) (Record, error) {
	m := blockedTermModPattern.FindStringSubmatch(parts[1])
	if m == nil {
		return Record{}, fmt.Errorf("%w: blocked term line: %q", ErrUnclassified, parts[1])
	}
	return Record{Moderator: m[1], Info: parts[0]}, nil
}

func lastToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
