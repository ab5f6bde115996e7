// FILE: src/internal/stream/message.go
package stream

import (
	"logrelay/src/internal/core"
	"logrelay/src/internal/filter"
)

// Client actions on the streaming protocol
const (
	ActionAuth        = "auth"
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPause       = "pause"
	ActionResume      = "resume"
	ActionPing        = "ping"
)

// Server message types
const (
	TypeSuccess   = "success"
	TypeError     = "error"
	TypeLog       = "log"
	TypeHeartbeat = "heartbeat"
	TypeSystem    = "system"
)

// ClientMessage is one inbound NDJSON frame from a subscriber
type ClientMessage struct {
	Action         string                `json:"action"`
	SubscriptionID string                `json:"subscription_id,omitempty"`
	Filters        []filter.ClauseConfig `json:"filters,omitempty"`
	Token          string                `json:"token,omitempty"`
}

// ServerMessage is one outbound NDJSON frame to a subscriber
type ServerMessage struct {
	Type           string      `json:"type"`
	SubscriptionID string      `json:"subscription_id,omitempty"`
	Data           any         `json:"data,omitempty"`
	Error          *core.Error `json:"error,omitempty"`
}
