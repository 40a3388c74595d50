// Package filetransfer implements application/filetransfer.Sender/Receiver:
// the chunked send/receive state machine, CRC-32 checksum verification,
// and filename sanitization run over a transport.Stream. Grounded on
// original_source/core/src/file_transfer.rs.
package filetransfer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	apptransport "connected/application/transport"
	"connected/domain/transfer"
)

// maxFrameSize bounds a single file-transfer frame. Chunk frames can
// legitimately approach the transport's stream receive window; this is
// generous headroom above ChunkSize plus JSON/base64 overhead, not the
// tighter MaxControlMessageSize the control stream enforces.
const maxFrameSize = 1024 * 1024

// wireFrame is the JSON wire shape of a transfer.Frame. Using the type
// string directly (rather than transfer.FrameKind's int value) keeps the
// wire format stable if the Go iota ordering ever changes.
type wireFrame struct {
	Type     string `json:"type"`
	Filename string `json:"filename,omitempty"`
	Size     uint64 `json:"size,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Offset   uint64 `json:"offset,omitempty"`
	Data     []byte `json:"data,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Message  string `json:"message,omitempty"`
}

func toWire(f transfer.Frame) wireFrame {
	return wireFrame{
		Type:     f.Kind.String(),
		Filename: f.Filename,
		Size:     f.Size,
		MimeType: f.MimeType,
		Reason:   f.Reason,
		Offset:   f.Offset,
		Data:     f.Data,
		Checksum: f.Checksum,
		Message:  f.Message,
	}
}

func fromWire(w wireFrame) transfer.Frame {
	return transfer.Frame{
		Kind:     parseFrameKind(w.Type),
		Filename: w.Filename,
		Size:     w.Size,
		MimeType: w.MimeType,
		Reason:   w.Reason,
		Offset:   w.Offset,
		Data:     w.Data,
		Checksum: w.Checksum,
		Message:  w.Message,
	}
}

func parseFrameKind(s string) transfer.FrameKind {
	switch s {
	case "send_request":
		return transfer.FrameSendRequest
	case "accept":
		return transfer.FrameAccept
	case "reject":
		return transfer.FrameReject
	case "chunk":
		return transfer.FrameChunk
	case "complete":
		return transfer.FrameComplete
	case "ack":
		return transfer.FrameAck
	case "error":
		return transfer.FrameError
	case "cancel":
		return transfer.FrameCancel
	default:
		return transfer.FrameUnknown
	}
}

// writeFrame sends one length-prefixed frame: a 4-byte big-endian length
// followed by its JSON encoding, matching file_transfer.rs::send_message.
func writeFrame(stream apptransport.Stream, f transfer.Frame) error {
	data, err := json.Marshal(toWire(f))
	if err != nil {
		return fmt.Errorf("filetransfer: marshal frame: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := stream.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("filetransfer: write frame length: %w", err)
	}
	if _, err := stream.Write(data); err != nil {
		return fmt.Errorf("filetransfer: write frame body: %w", err)
	}
	return nil
}

// readFrame receives one length-prefixed frame, matching
// file_transfer.rs::recv_message including its oversized-message guard.
func readFrame(ctx context.Context, stream apptransport.Stream) (transfer.Frame, error) {
	var lenBuf [4]byte
	if err := readExact(ctx, stream, lenBuf[:]); err != nil {
		return transfer.Frame{}, fmt.Errorf("filetransfer: read frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameSize {
		return transfer.Frame{}, fmt.Errorf("filetransfer: frame of %d bytes exceeds %d byte limit", n, maxFrameSize)
	}

	data := make([]byte, n)
	if err := readExact(ctx, stream, data); err != nil {
		return transfer.Frame{}, fmt.Errorf("filetransfer: read frame body: %w", err)
	}

	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return transfer.Frame{}, fmt.Errorf("filetransfer: unmarshal frame: %w", err)
	}
	return fromWire(w), nil
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
