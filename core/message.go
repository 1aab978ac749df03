package core

import "time"

// Broadcast is the recipient value that fans a message out to every
// registered agent except the sender.
const Broadcast = "*"

// MessageType categorizes bus traffic. The bus itself is agnostic to the
// type; it exists so receivers can dispatch without inspecting payloads.
type MessageType string

const (
	// MessageTypeStatusUpdate carries agent load/health and task completion
	// reports.
	MessageTypeStatusUpdate MessageType = "status_update"
	// MessageTypeResponse answers a message sent with RequiresResponse.
	MessageTypeResponse MessageType = "response"
	// MessageTypeContextShare announces a context entry made visible to
	// other agents.
	MessageTypeContextShare MessageType = "context_share"
)

// Message is the bus envelope. Higher Priority values are delivered first;
// within equal priority delivery is FIFO by send time. A TTL of zero means
// the message never expires.
type Message struct {
	ID               string        `json:"id"`
	Sender           string        `json:"sender"`
	Recipient        string        `json:"recipient"`
	Type             MessageType   `json:"type"`
	Priority         int           `json:"priority"`
	Payload          any           `json:"payload,omitempty"`
	Timestamp        time.Time     `json:"timestamp"`
	TTL              time.Duration `json:"ttl,omitempty"`
	CorrelationID    string        `json:"correlation_id,omitempty"`
	RequiresResponse bool          `json:"requires_response,omitempty"`
}

// NewMessage creates a message with a generated id and current timestamp.
func NewMessage(sender, recipient string, typ MessageType, payload any) *Message {
	return &Message{
		ID:        NewID(),
		Sender:    sender,
		Recipient: recipient,
		Type:      typ,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewResponse creates a reply correlated to the given request. The reply is
// addressed to the request's sender and inherits its priority so the answer
// is not queued behind lower-priority traffic.
func NewResponse(request *Message, sender string, payload any) *Message {
	resp := NewMessage(sender, request.Sender, MessageTypeResponse, payload)
	resp.CorrelationID = request.ID
	resp.Priority = request.Priority
	return resp
}

// Expired reports whether the message's TTL has elapsed at the given time.
// TTL == 0 disables expiry.
func (m *Message) Expired(now time.Time) bool {
	return m.TTL > 0 && now.Sub(m.Timestamp) > m.TTL
}
