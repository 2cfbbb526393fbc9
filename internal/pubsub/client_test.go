package pubsub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"modwatch/pkg/logx"
)

// fakeEdge accepts one connection, checks the LISTEN frame, and plays the
// given frames back to the client.
func fakeEdge(t *testing.T, wantTopic string, play []frame) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var req listenRequest
		if err := conn.ReadJSON(&req); err != nil {
			t.Errorf("read listen: %v", err)
			return
		}
		if req.Type != frameListen {
			t.Errorf("first frame type = %q, want LISTEN", req.Type)
		}
		if len(req.Data.Topics) != 1 || req.Data.Topics[0] != wantTopic {
			t.Errorf("topics = %v, want [%s]", req.Data.Topics, wantTopic)
		}
		if req.Data.AuthToken != "tok" {
			t.Errorf("auth_token = %q", req.Data.AuthToken)
		}

		for _, f := range play {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestListenerDeliversActions(t *testing.T) {
	t.Parallel()

	inner := `{"type":"moderation_action","data":{"moderation_action":"ban","target_user_id":"42","created_by":"modx","args":["troll"]}}`
	srv := fakeEdge(t, "chat_moderator_actions.10.20", []frame{
		{Type: frameResponse},
		{Type: frameMessage, Data: &frameData{Topic: "chat_moderator_actions.10.20", Message: inner}},
	})
	defer srv.Close()

	got := make(chan ModerationAction, 1)
	l := NewListener(Config{
		URL:       wsURL(srv),
		AuthToken: "tok",
		UserID:    "10",
		ChannelID: "20",
	}, func(m ModerationAction) { got <- m }, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	select {
	case m := <-got:
		if m.Action != "ban" || m.TargetUserID != "42" || m.ArgString(0) != "troll" {
			t.Fatalf("delivered = %+v", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no action delivered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop on cancel")
	}
}

func TestListenerStopsOnRejectedListen(t *testing.T) {
	t.Parallel()

	srv := fakeEdge(t, "chat_moderator_actions.10.20", []frame{
		{Type: frameResponse, Error: "ERR_BADAUTH"},
	})
	defer srv.Close()

	l := NewListener(Config{
		URL:       wsURL(srv),
		AuthToken: "tok",
		UserID:    "10",
		ChannelID: "20",
	}, nil, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err := l.session(ctx)
	if err == nil || !strings.Contains(err.Error(), "ERR_BADAUTH") {
		t.Fatalf("session err = %v, want listen rejection", err)
	}
}

func TestListenerSkipsUndecodablePayload(t *testing.T) {
	t.Parallel()

	inner := `{"type":"moderation_action","data":{"moderation_action":"unban","target_user_id":"7","created_by":"mody","args":["troll"]}}`
	srv := fakeEdge(t, "chat_moderator_actions.10.20", []frame{
		{Type: frameMessage, Data: &frameData{Message: "{broken"}},
		{Type: frameMessage, Data: &frameData{Message: inner}},
	})
	defer srv.Close()

	got := make(chan ModerationAction, 2)
	l := NewListener(Config{
		URL:       wsURL(srv),
		AuthToken: "tok",
		UserID:    "10",
		ChannelID: "20",
	}, func(m ModerationAction) { got <- m }, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	select {
	case m := <-got:
		if m.Action != "unban" {
			t.Fatalf("delivered %+v, want the valid unban only", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("valid payload never delivered")
	}
}
