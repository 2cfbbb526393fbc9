// Package pubsub maintains the push connection that streams moderator
// actions as they happen. The listener owns its own reconnect loop; callers
// just hand it a callback and cancel the context to stop.
package pubsub

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"modwatch/pkg/logx"
)

const defaultURL = "wss://pubsub-edge.twitch.tv"

// Ping cadence per the endpoint's contract: at least once every five
// minutes, jittered so a fleet does not ping in lockstep.
const (
	pingBase   = 4 * time.Minute
	pingJitter = 30 * time.Second

	writeTimeout = 10 * time.Second

	// If no frame (PONG included) arrives within this window the
	// connection is considered dead and torn down.
	readTimeout = 5*time.Minute + 30*time.Second

	reconnectMin = time.Second
	reconnectMax = 2 * time.Minute
)

type Config struct {
	// URL overrides the endpoint (tests). Empty means the public edge.
	URL string

	AuthToken string

	// UserID and ChannelID form the moderator-actions topic
	// chat_moderator_actions.<user>.<channel>.
	UserID    string
	ChannelID string
}

// Listener connects, subscribes, and feeds decoded moderation actions to the
// handler until its context is cancelled.
type Listener struct {
	cfg     Config
	handler func(ModerationAction)
	log     logx.Logger
}

func NewListener(cfg Config, handler func(ModerationAction), log logx.Logger) *Listener {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = defaultURL
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Listener{cfg: cfg, handler: handler, log: log}
}

func (l *Listener) topic() string {
	return fmt.Sprintf("chat_moderator_actions.%s.%s", l.cfg.UserID, l.cfg.ChannelID)
}

// Run blocks until ctx is cancelled, reconnecting with capped exponential
// backoff whenever the connection drops.
func (l *Listener) Run(ctx context.Context) {
	backoff := reconnectMin
	for {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		err := l.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.log.Warn("pubsub session ended", logx.Err(err))
		}

		// A session that survived a while earns a fresh backoff.
		if time.Since(start) > time.Minute {
			backoff = reconnectMin
		}
		l.log.Info("pubsub reconnecting", logx.Duration("in", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// session runs one connection to completion: dial, LISTEN, then pump frames
// until the peer drops us, asks us to reconnect, or ctx is cancelled.
func (l *Listener) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, l.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", l.cfg.URL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := l.writeJSON(conn, listenRequest{
		Type:  frameListen,
		Nonce: fmt.Sprintf("modwatch-%d", time.Now().UnixNano()),
		Data: listenData{
			Topics:    []string{l.topic()},
			AuthToken: l.cfg.AuthToken,
		},
	}); err != nil {
		return fmt.Errorf("send listen: %w", err)
	}
	l.log.Info("pubsub listening", logx.String("topic", l.topic()))

	pingDone := make(chan struct{})
	defer close(pingDone)
	go l.pingLoop(conn, pingDone)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		switch f.Type {
		case framePong:
			// read deadline already advanced; nothing else to do
		case frameReconnect:
			return fmt.Errorf("server requested reconnect")
		case frameResponse:
			if f.Error != "" {
				return fmt.Errorf("listen rejected: %s", f.Error)
			}
		case frameMessage:
			if f.Data == nil {
				continue
			}
			action, err := decodeModeration(f.Data.Message)
			if err != nil {
				l.log.Warn("undecodable pubsub payload", logx.Err(err))
				continue
			}
			if action.Action == "" {
				continue
			}
			if l.handler != nil {
				l.handler(action)
			}
		default:
			l.log.Debug("ignoring pubsub frame", logx.String("type", f.Type))
		}
	}
}

func (l *Listener) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	for {
		wait := pingBase + time.Duration(rand.Int63n(int64(pingJitter)))
		select {
		case <-done:
			return
		case <-time.After(wait):
		}
		if err := l.writeJSON(conn, frame{Type: framePing}); err != nil {
			// The read loop will notice the dead connection.
			return
		}
	}
}

func (l *Listener) writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}
