package pubsub

import "encoding/json"

// Wire frames exchanged with the PubSub endpoint. The outer envelope carries
// a topic plus a JSON string payload; the payload is decoded separately.

type frame struct {
	Type  string     `json:"type"`
	Nonce string     `json:"nonce,omitempty"`
	Error string     `json:"error,omitempty"`
	Data  *frameData `json:"data,omitempty"`
}

type frameData struct {
	Topic   string `json:"topic,omitempty"`
	Message string `json:"message,omitempty"`
}

type listenRequest struct {
	Type  string     `json:"type"`
	Nonce string     `json:"nonce"`
	Data  listenData `json:"data"`
}

type listenData struct {
	Topics    []string `json:"topics"`
	AuthToken string   `json:"auth_token"`
}

const (
	frameMessage   = "MESSAGE"
	framePing      = "PING"
	framePong      = "PONG"
	frameReconnect = "RECONNECT"
	frameResponse  = "RESPONSE"
	frameListen    = "LISTEN"
)

// ModerationAction is the inner payload of a chat_moderator_actions topic
// message. Args is positional and action dependent: for most actions slot 0
// is the target login; bans may carry a reason in slot 1.
type ModerationAction struct {
	Action       string `json:"moderation_action"`
	TargetUserID string `json:"target_user_id"`
	CreatedBy    string `json:"created_by"`
	CreatedAt    string `json:"created_at"`
	Args         []any  `json:"args"`
}

// ArgString returns Args[i] as a string, empty when absent or not a string.
func (m ModerationAction) ArgString(i int) string {
	if i < 0 || i >= len(m.Args) {
		return ""
	}
	s, _ := m.Args[i].(string)
	return s
}

type moderationEnvelope struct {
	Type string           `json:"type"`
	Data ModerationAction `json:"data"`
}

// decodeModeration parses the inner JSON string of a MESSAGE frame.
func decodeModeration(raw string) (ModerationAction, error) {
	var env moderationEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return ModerationAction{}, err
	}
	return env.Data, nil
}
