package modlog

import "sync"

// Journal is the append-only in-memory table of moderation records.
//
// Display order is newest-first: live events are prepended as they arrive,
// and imports prepend each parsed block in turn (so an imported file ends up
// in reverse parse order, matching how the dashboard lists actions).
//
// Writes come from the ingestion side only; exporters read via Snapshot and
// never mutate in place. The one exception is ApplyNames, the single ID->name
// resolution pass a record may receive.
type Journal struct {
	mu   sync.RWMutex
	recs []Record
}

func NewJournal() *Journal {
	return &Journal{}
}

// Prepend inserts one record at the front.
func (j *Journal) Prepend(r Record) {
	j.mu.Lock()
	j.recs = append([]Record{r}, j.recs...)
	j.mu.Unlock()
}

// Ingest prepends each record in order, so the last record of rs ends up at
// the front of the journal.
func (j *Journal) Ingest(rs []Record) {
	if len(rs) == 0 {
		return
	}
	j.mu.Lock()
	merged := make([]Record, 0, len(rs)+len(j.recs))
	for i := len(rs) - 1; i >= 0; i-- {
		merged = append(merged, rs[i])
	}
	merged = append(merged, j.recs...)
	j.recs = merged
	j.mu.Unlock()
}

func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.recs)
}

// Snapshot returns a copy of the current table, newest first. A record that
// arrives after the copy is taken simply misses this export cycle.
func (j *Journal) Snapshot() []Record {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Record, len(j.recs))
	copy(out, j.recs)
	return out
}

// MissingNameIDs lists the user IDs of records that have an ID but no name
// yet, deduplicated, in table order.
func (j *Journal) MissingNameIDs() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	seen := map[string]struct{}{}
	var ids []string
	for _, r := range j.recs {
		if r.UserID == "" || r.UserName != "" {
			continue
		}
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		ids = append(ids, r.UserID)
	}
	return ids
}

// ApplyNames fills UserName on records whose UserID appears in names.
// It returns the number of records updated.
func (j *Journal) ApplyNames(names map[string]string) int {
	if len(names) == 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	updated := 0
	for i := range j.recs {
		if j.recs[i].UserName != "" || j.recs[i].UserID == "" {
			continue
		}
		if name, ok := names[j.recs[i].UserID]; ok && name != "" {
			j.recs[i].UserName = name
			updated++
		}
	}
	return updated
}
