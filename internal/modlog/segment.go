package modlog

import (
	"regexp"
	"strings"
)

// blockPattern splits a pasted dashboard export into per-action blocks.
//
// A block is either "line / blank / line / blank / line / line" or
// "line / blank / line / line". The 3-line alternative comes first so it wins
// over a false 2-line split of the same text. `.` does not cross newlines,
// which is what makes the blank lines act as separators.
var blockPattern = regexp.MustCompile(`.*\n\n.*\n\n.*\n.*|.*\n\n.*\n.*`)

// Segment splits raw export text into blocks of 2-3 meaningful parts each
// (subject line, detail line, optional extra line). Blank interior lines are
// dropped and every part is whitespace-trimmed.
//
// Text matching neither block shape is excluded from the result. Callers that
// care about coverage should compare len(Segment(text)) against expectations;
// the segmenter itself stays silent about leftovers.
func Segment(text string) [][]string {
	var blocks [][]string
	for _, raw := range blockPattern.FindAllString(text, -1) {
		parts := splitParts(raw)
		if len(parts) >= 2 {
			blocks = append(blocks, parts)
		}
	}
	return blocks
}

func splitParts(raw string) []string {
	var parts []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			parts = append(parts, line)
		}
	}
	return parts
}
