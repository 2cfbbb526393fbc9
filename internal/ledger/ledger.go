// Package ledger maintains the append-only per-day CSV files that accumulate
// moderation actions across sessions.
//
// Both ledgers ("all actions" and "bans only") share one merge shape: read
// what the day's file already holds, drop candidate lines that are byte
// identical to existing ones, append only the survivors. Exporting the same
// record set twice therefore leaves the file unchanged.
package ledger

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"modwatch/internal/modlog"
)

// Header is written exactly once, when a day's file is first created.
const Header = "User,userID,Action,Moderator,Timestamp,Reason"

// Writer merges record sets into the day's ledger files.
//
// A single mutex serializes the read-existing/append-new window; concurrent
// export calls from the same process would otherwise interleave writes or
// duplicate lines.
type Writer struct {
	dir string

	mu  sync.Mutex
	now func() time.Time
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// ExportAll merges every record into Modactions_all_<date>.csv.
// It returns the file path and the number of lines actually appended.
func (w *Writer) ExportAll(recs []modlog.Record) (string, int, error) {
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		lines = append(lines, csvLine(r))
	}
	return w.merge("Modactions_all_", lines)
}

// ExportBans reconciles ban/unban pairs, then merges the surviving ban rows
// into Modactions_bans_<date>.csv in timestamp order.
func (w *Writer) ExportBans(recs []modlog.Record) (string, int, error) {
	bans := reconcileBans(recs)
	lines := make([]string, 0, len(bans))
	for _, r := range bans {
		lines = append(lines, csvLine(r))
	}
	return w.merge("Modactions_bans_", lines)
}

func (w *Writer) merge(prefix string, lines []string) (string, int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", 0, err
	}
	path := filepath.Join(w.dir, prefix+w.now().Format("2006-01-02")+".csv")

	existing, err := readLines(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return path, 0, err
		}
		// Fresh file: header first, then the deduplicated body.
		body := dedupLines(lines, map[string]struct{}{})
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return path, 0, err
		}
		defer f.Close()
		if _, err := f.WriteString(Header + "\n"); err != nil {
			return path, 0, err
		}
		if len(body) > 0 {
			if _, err := f.WriteString(strings.Join(body, "\n") + "\n"); err != nil {
				return path, 0, err
			}
		}
		return path, len(body), nil
	}

	seen := make(map[string]struct{}, len(existing))
	for _, line := range existing {
		seen[line] = struct{}{}
	}
	survivors := dedupLines(lines, seen)
	if len(survivors) == 0 {
		return path, 0, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return path, 0, err
	}
	defer f.Close()
	if _, err := f.WriteString(strings.Join(survivors, "\n") + "\n"); err != nil {
		return path, 0, err
	}
	return path, len(survivors), nil
}

// dedupLines filters out lines already in seen and duplicates within the
// candidate set itself, preserving order. seen is updated in place.
func dedupLines(lines []string, seen map[string]struct{}) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	return lines, sc.Err()
}

// csvLine serializes one record in the fixed 6-column order. Fields
// containing commas or quotes are quoted so a row stays one line.
func csvLine(r modlog.Record) string {
	fields := []string{r.UserName, r.UserID, string(r.Kind), r.Moderator, r.Timestamp, r.Info}
	for i, f := range fields {
		fields[i] = quoteField(f)
	}
	return strings.Join(fields, ",")
}

func quoteField(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// reconcileBans partitions records into last-seen-wins ban and unban maps
// keyed by user name, drops every ban whose user also has an unban with a
// strictly greater timestamp, and returns the survivors sorted by timestamp
// ascending (name as tiebreaker, for stable output).
//
// Timestamps compare lexicographically; they are RFC3339-shaped strings on
// live records and empty on imported ones. An empty timestamp counts as
// "always older": an unban without a timestamp never suppresses a ban, and a
// ban without a timestamp is never suppressed.
func reconcileBans(recs []modlog.Record) []modlog.Record {
	bans := map[string]modlog.Record{}
	unbans := map[string]modlog.Record{}
	for _, r := range recs {
		switch r.Kind {
		case modlog.KindBan:
			bans[r.UserName] = r
		case modlog.KindUnban:
			unbans[r.UserName] = r
		}
	}

	for name, ub := range unbans {
		b, ok := bans[name]
		if !ok {
			continue
		}
		if ub.Timestamp != "" && b.Timestamp != "" && ub.Timestamp > b.Timestamp {
			delete(bans, name)
		}
	}

	out := make([]modlog.Record, 0, len(bans))
	for _, r := range bans {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].UserName < out[j].UserName
	})
	return out
}
