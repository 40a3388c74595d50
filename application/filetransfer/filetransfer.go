// Package filetransfer defines the port for the file-transfer state
// machine run over a dedicated transport stream. The concrete
// implementation in infrastructure/filetransfer does the chunked
// send/receive, checksum verification, and filename sanitization.
package filetransfer

import (
	"context"

	"connected/application/transport"
	"connected/domain/transfer"
)

// ProgressFunc receives progress updates as a transfer proceeds. It is
// called synchronously from the send/receive loop and must not block.
type ProgressFunc func(transfer.Progress)

// Sender drives the sending side of the protocol over an already-open
// transport stream.
type Sender interface {
	// Send opens the SendRequest/Accept handshake on stream, then streams
	// path's contents in ChunkSize frames, finishing with a checksummed
	// Complete frame. It returns once the peer Acks or the transfer fails.
	Send(ctx context.Context, stream transport.Stream, path string, onProgress ProgressFunc) error
}

// Receiver drives the receiving side of the protocol over an already-open
// transport stream.
type Receiver interface {
	// Receive reads a SendRequest, decides accept/reject via shouldAccept,
	// and on acceptance streams the incoming chunks to a sanitized path
	// under dir, verifying the checksum before acking. It returns the
	// path written to on success.
	Receive(ctx context.Context, stream transport.Stream, dir string, shouldAccept func(filename string, size uint64) bool, onProgress ProgressFunc) (string, error)
}
