// Package control holds the pure data types for the control-stream
// protocol: the pairing handshake and clipboard-sync messages exchanged
// over a transport.StreamControl stream. Grounded on the Message enum in
// original_source/core/src/transport.rs and its handlers in client.rs.
package control

// MessageKind discriminates Message.
type MessageKind int

const (
	MessageUnknown MessageKind = iota
	MessageHandshake
	MessageHandshakeAck
	MessageClipboard
	MessagePing
	MessagePong
)

func (k MessageKind) String() string {
	switch k {
	case MessageHandshake:
		return "handshake"
	case MessageHandshakeAck:
		return "handshake_ack"
	case MessageClipboard:
		return "clipboard"
	case MessagePing:
		return "ping"
	case MessagePong:
		return "pong"
	default:
		return "unknown"
	}
}

// Message is a single control-stream protocol message. Only the fields
// relevant to Kind are populated.
type Message struct {
	Kind MessageKind

	// Handshake / HandshakeAck
	DeviceID   string
	DeviceName string

	// Clipboard
	Text string

	// Ping / Pong: FromID is the sending device's id, TimestampMS the
	// sender's wall-clock milliseconds at send time. Pong echoes both
	// back unchanged so the sender can match its own probe.
	FromID      string
	TimestampMS int64
}
