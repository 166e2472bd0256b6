package bridge

import "encoding/json"

// Message is the wire envelope between a content process and the
// coordinator. Notify messages carry only Channel and Payload. Invoke
// requests set RequestID; the matching response sets ReplyTo to that id.
type Message struct {
	Channel   string          `json:"channel,omitempty"`
	RequestID uint64          `json:"requestId,omitempty"`
	ReplyTo   uint64          `json:"replyTo,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Env is the read-only environment descriptor exposed to content processes.
type Env struct {
	Platform       string `json:"platform"`
	OSVersion      string `json:"osVersion"`
	EOL            string `json:"eol"`
	SecondInstance bool   `json:"secondInstance"`
}

// EchoSuffix is the fixed marker appended to a logical channel name to form
// the echo-back return channel.
const EchoSuffix = "-back"

// EchoChannel derives the return channel for an echoed message.
func EchoChannel(logical string) string {
	return "window-message-" + logical + EchoSuffix
}
