package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"modwatch/internal/modlog"
	"modwatch/pkg/logx"
)

// fileStore is a dependency-free archive backend: one append-only JSON Lines
// file, scanned on search. Fine for a single channel's action volume.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	file *os.File
	path string
}

// fileEntry is the on-disk shape. Flat so a human can grep the archive.
type fileEntry struct {
	At        string `json:"at"`
	Source    string `json:"source"`
	User      string `json:"user,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Kind      string `json:"kind"`
	Moderator string `json:"moderator,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Info      string `json:"info,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, file: f, path: path}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *fileStore) AppendAction(ctx context.Context, e Entry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("archive closed")
	}
	return json.NewEncoder(s.file).Encode(fileEntry{
		At:        e.At.UTC().Format(time.RFC3339Nano),
		Source:    e.Source,
		User:      e.Record.UserName,
		UserID:    e.Record.UserID,
		Kind:      string(e.Record.Kind),
		Moderator: e.Record.Moderator,
		Timestamp: e.Record.Timestamp,
		Info:      e.Record.Info,
	})
}

func (s *fileStore) SearchActions(ctx context.Context, q Query) ([]Entry, error) {
	s.mu.Lock()
	path := s.path
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		var fe fileEntry
		if err := json.Unmarshal(sc.Bytes(), &fe); err != nil {
			// A torn trailing line after a crash is not fatal.
			s.log.Debug("skipping undecodable archive line", logx.Err(err))
			continue
		}
		e := Entry{Source: fe.Source, Record: modlog.Record{
			UserName:  fe.User,
			UserID:    fe.UserID,
			Kind:      modlog.ActionKind(fe.Kind),
			Moderator: fe.Moderator,
			Timestamp: fe.Timestamp,
			Info:      fe.Info,
		}}
		if fe.At != "" {
			if t, err := time.Parse(time.RFC3339Nano, fe.At); err == nil {
				e.At = t
			}
		}
		if !matches(q, e) {
			continue
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return out, err
	}

	// The file is append order (oldest first); callers get newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(q Query, e Entry) bool {
	if q.User != "" && !strings.EqualFold(q.User, e.Record.UserName) {
		return false
	}
	if q.Moderator != "" && !strings.EqualFold(q.Moderator, e.Record.Moderator) {
		return false
	}
	if q.Kind != "" && q.Kind != e.Record.Kind {
		return false
	}
	if !q.Since.IsZero() && e.At.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !e.At.Before(q.Until) {
		return false
	}
	return true
}
