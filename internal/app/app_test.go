package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"modwatch/internal/chat"
	"modwatch/internal/modlog"
	"modwatch/internal/storage"
)

// fakeHelix answers /users lookups for a fixed id<->login table.
func fakeHelix(t *testing.T) *httptest.Server {
	t.Helper()
	users := map[string]string{ // login -> id
		"selfacct": "900",
		"mainchan": "100",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users" {
			http.NotFound(w, r)
			return
		}
		type user struct {
			ID          string `json:"id"`
			Login       string `json:"login"`
			DisplayName string `json:"display_name"`
		}
		var out struct {
			Data []user `json:"data"`
		}
		for _, login := range r.URL.Query()["login"] {
			if id, ok := users[login]; ok {
				out.Data = append(out.Data, user{ID: id, Login: login, DisplayName: strings.ToUpper(login[:1]) + login[1:]})
			}
		}
		for _, id := range r.URL.Query()["id"] {
			for login, uid := range users {
				if uid == id {
					out.Data = append(out.Data, user{ID: id, Login: login, DisplayName: strings.ToUpper(login[:1]) + login[1:]})
				}
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeTestConfig(t *testing.T, dir, apiURL string) string {
	t.Helper()
	exportDir := filepath.Join(dir, "exports")
	archive := filepath.Join(dir, "archive.jsonl")
	filters := filepath.Join(dir, "filters.yaml")

	raw := fmt.Sprintf(`twitch:
  client_id: cid
  token: tok
  login: SelfAcct
  api_base_url: %q
chat:
  channels: [mainchan]
pubsub:
  enabled: false
export:
  dir: %q
filters:
  path: %q
storage:
  driver: file
  path: %q
logging:
  level: ERROR
  console: false
`, apiURL, exportDir, filters, archive)

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleExport = `TrollOne

Banned by ModA
2 days ago

NoisyOne

Timed out by ModB for 600 seconds
3 days ago`

func TestAppImportAndExport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	srv := fakeHelix(t)
	cfgPath := writeTestConfig(t, dir, srv.URL)

	a, err := New(cfgPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	n, err := a.ImportActions(ctx, sampleExport)
	if err != nil {
		t.Fatalf("ImportActions: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported %d actions, want 2", n)
	}
	if a.Journal().Len() != 2 {
		t.Fatalf("journal len = %d", a.Journal().Len())
	}

	path, appended, err := a.ExportAll(ctx)
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if appended != 2 {
		t.Fatalf("appended %d rows, want 2", appended)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	body := string(b)
	if !strings.Contains(body, "TrollOne") || !strings.Contains(body, "ban,ModA") {
		t.Fatalf("ledger missing expected rows:\n%s", body)
	}

	// Re-export is a no-op: the ledger is append-only and deduplicated.
	if _, appended, err = a.ExportAll(ctx); err != nil || appended != 0 {
		t.Fatalf("second export appended %d (err %v), want 0", appended, err)
	}

	// The archive saw both imported actions.
	entries, err := a.SearchActions(ctx, storage.Query{Kind: modlog.KindBan})
	if err != nil {
		t.Fatalf("SearchActions: %v", err)
	}
	if len(entries) != 1 || entries[0].Record.UserName != "TrollOne" {
		t.Fatalf("archive entries = %+v", entries)
	}
}

func TestAppExportBansResolvesNames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	srv := fakeHelix(t)
	cfgPath := writeTestConfig(t, dir, srv.URL)

	a, err := New(cfgPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// A live ban that arrived with only an ID.
	a.Journal().Prepend(modlog.Record{
		UserID:    "100",
		Kind:      modlog.KindBan,
		Moderator: "modx",
		Timestamp: "2026-08-28T10:00:00Z",
	})

	path, appended, err := a.ExportBans(context.Background())
	if err != nil {
		t.Fatalf("ExportBans: %v", err)
	}
	if appended != 1 {
		t.Fatalf("appended %d rows, want 1", appended)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "Mainchan,100") {
		t.Fatalf("bans ledger should carry the resolved name:\n%s", string(b))
	}
}

func TestAppStartStop(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	srv := fakeHelix(t)
	cfgPath := writeTestConfig(t, dir, srv.URL)

	a, err := New(cfgPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if a.selfID != "900" {
		t.Fatalf("selfID = %q, want 900", a.selfID)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

type nullSender struct{ bans int }

func (s *nullSender) Ban(channel, user, reason string) error { s.bans++; return nil }
func (s *nullSender) Unban(channel, user string) error       { return nil }
func (s *nullSender) Timeout(channel, user string, d time.Duration, reason string) error {
	return nil
}
func (s *nullSender) Delete(channel, messageID string) error { return nil }

func TestAppFilterReloadAndEnforcement(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	srv := fakeHelix(t)
	cfgPath := writeTestConfig(t, dir, srv.URL)

	sender := &nullSender{}
	a, err := New(cfgPath, WithSender(sender))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Issuer() == nil {
		t.Fatal("sender should enable the issuer")
	}

	// No rules yet; nothing happens.
	a.HandleChatMessage(chat.Message{Channel: "mainchan", Author: "troll", Content: "buy followers"})
	if sender.bans != 0 {
		t.Fatalf("bans = %d before any rules", sender.bans)
	}

	rulesPath := filepath.Join(dir, "rules.yaml")
	raw := "- pattern: buy followers\n  mode: substring\n  target: message\n  penalty: ban\n"
	if err := os.WriteFile(rulesPath, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := a.ReloadFilters(rulesPath); err != nil {
		t.Fatalf("ReloadFilters: %v", err)
	}

	a.HandleChatMessage(chat.Message{Channel: "mainchan", Author: "troll", Content: "buy followers now"})
	if sender.bans != 1 {
		t.Fatalf("bans = %d after matching message, want 1", sender.bans)
	}
}

func TestAppSyncBlocklist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	var blockedIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users":
			var out struct {
				Data []map[string]string `json:"data"`
			}
			for _, login := range r.URL.Query()["login"] {
				id := map[string]string{"selfacct": "900", "badbot": "1", "worsebot": "2"}[login]
				if id != "" {
					out.Data = append(out.Data, map[string]string{"id": id, "login": login, "display_name": login})
				}
			}
			_ = json.NewEncoder(w).Encode(out)
		case "/users/blocks":
			if r.Method == http.MethodPut {
				blockedIDs = append(blockedIDs, r.URL.Query().Get("target_user_id"))
				w.WriteHeader(http.StatusNoContent)
				return
			}
			// Current block list already holds badbot.
			_, _ = w.Write([]byte(`{"data":[{"user_id":"1","user_login":"badbot"}],"pagination":{}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfgPath := writeTestConfig(t, dir, srv.URL)
	a, err := New(cfgPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	listPath := filepath.Join(dir, "bots.csv")
	if err := os.WriteFile(listPath, []byte("userName,lastSeen\nbadbot,x\nworsebot,y\nghostbot,z\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := a.SyncBlocklist(context.Background(), listPath)
	if err != nil {
		t.Fatalf("SyncBlocklist: %v", err)
	}
	// badbot already blocked, ghostbot does not resolve, worsebot gets blocked.
	if n != 1 {
		t.Fatalf("blocked %d, want 1", n)
	}
	if len(blockedIDs) != 1 || blockedIDs[0] != "2" {
		t.Fatalf("blockedIDs = %v", blockedIDs)
	}
}
