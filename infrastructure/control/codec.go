// Package control implements the wire codec for domain/control messages:
// a 4-byte big-endian length prefix followed by a JSON body, the same shape
// infrastructure/filetransfer uses for its frames and the one
// send_handshake/send_clipboard hand-roll inline in client.rs.
package control

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	apptransport "connected/application/transport"
	"connected/domain/control"
)

// wireMessage is the JSON wire shape of a control.Message.
type wireMessage struct {
	Type        string `json:"type"`
	DeviceID    string `json:"device_id,omitempty"`
	DeviceName  string `json:"device_name,omitempty"`
	Text        string `json:"text,omitempty"`
	FromID      string `json:"from_id,omitempty"`
	TimestampMS int64  `json:"timestamp,omitempty"`
}

func toWire(m control.Message) wireMessage {
	return wireMessage{
		Type:        m.Kind.String(),
		DeviceID:    m.DeviceID,
		DeviceName:  m.DeviceName,
		Text:        m.Text,
		FromID:      m.FromID,
		TimestampMS: m.TimestampMS,
	}
}

func fromWire(w wireMessage) control.Message {
	return control.Message{
		Kind:        parseKind(w.Type),
		DeviceID:    w.DeviceID,
		DeviceName:  w.DeviceName,
		Text:        w.Text,
		FromID:      w.FromID,
		TimestampMS: w.TimestampMS,
	}
}

func parseKind(s string) control.MessageKind {
	switch s {
	case "handshake":
		return control.MessageHandshake
	case "handshake_ack":
		return control.MessageHandshakeAck
	case "clipboard":
		return control.MessageClipboard
	case "ping":
		return control.MessagePing
	case "pong":
		return control.MessagePong
	default:
		return control.MessageUnknown
	}
}

// WriteMessage sends one length-prefixed control message.
func WriteMessage(stream apptransport.Stream, m control.Message) error {
	data, err := json.Marshal(toWire(m))
	if err != nil {
		return fmt.Errorf("control: marshal message: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := stream.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("control: write message length: %w", err)
	}
	if _, err := stream.Write(data); err != nil {
		return fmt.Errorf("control: write message body: %w", err)
	}
	return nil
}

// ReadMessage receives one length-prefixed control message, rejecting
// anything larger than apptransport.MaxControlMessageSize.
func ReadMessage(ctx context.Context, stream apptransport.Stream) (control.Message, error) {
	msg, _, err := ReadFrame(ctx, stream)
	return msg, err
}

// ReadFrame receives one length-prefixed control message and also returns
// the raw bytes it consumed (length prefix plus body). AcceptStream uses
// the raw bytes to replay a frame it peeked at in order to intercept
// Ping without consuming the stream for whatever reads it next.
func ReadFrame(ctx context.Context, stream apptransport.Stream) (control.Message, []byte, error) {
	var lenBuf [4]byte
	if err := readExact(ctx, stream, lenBuf[:]); err != nil {
		return control.Message{}, nil, fmt.Errorf("control: read message length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > apptransport.MaxControlMessageSize {
		return control.Message{}, nil, fmt.Errorf("control: message of %d bytes exceeds %d byte limit", n, apptransport.MaxControlMessageSize)
	}

	data := make([]byte, n)
	if err := readExact(ctx, stream, data); err != nil {
		return control.Message{}, nil, fmt.Errorf("control: read message body: %w", err)
	}

	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return control.Message{}, nil, fmt.Errorf("control: unmarshal message: %w", err)
	}

	raw := make([]byte, 0, 4+len(data))
	raw = append(raw, lenBuf[:]...)
	raw = append(raw, data...)
	return fromWire(w), raw, nil
}

func readExact(ctx context.Context, stream apptransport.Stream, buf []byte) error {
	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		n := 0
		for n < len(buf) {
			m, err := stream.Read(buf[n:])
			n += m
			if err != nil {
				done <- result{err}
				return
			}
		}
		done <- result{nil}
	}()

	select {
	case r := <-done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
