package filetransfer

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	appfiletransfer "connected/application/filetransfer"
	apptransport "connected/application/transport"
	"connected/domain/transfer"
)

// ErrRejected is returned when the peer declines a transfer.
var ErrRejected = errors.New("filetransfer: transfer rejected by peer")

// ErrUnexpectedFrame is returned when a frame arrives out of the expected
// sequence for the current step of the protocol.
var ErrUnexpectedFrame = errors.New("filetransfer: unexpected frame")

var _ appfiletransfer.Sender = (*Sender)(nil)

// Sender drives the sending side of the file-transfer protocol.
type Sender struct {
	transferIDFunc func() string
}

// NewSender returns a Sender. transferID is called once per Send call to
// stamp progress events; callers typically pass a UUIDv4 generator.
func NewSender(transferID func() string) *Sender {
	return &Sender{transferIDFunc: transferID}
}

func (s *Sender) Send(ctx context.Context, stream apptransport.Stream, path string, onProgress appfiletransfer.ProgressFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("filetransfer: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("filetransfer: stat %s: %w", path, err)
	}

	transferID := ""
	if s.transferIDFunc != nil {
		transferID = s.transferIDFunc()
	}
	filename := filepath.Base(path)
	totalSize := uint64(info.Size())

	report := func(phase transfer.Phase, bytesTransferred uint64, errMsg string) {
		if onProgress == nil {
			return
		}
		onProgress(transfer.Progress{
			TransferID:       transferID,
			Filename:         filename,
			Direction:        transfer.DirectionSending,
			Phase:            phase,
			BytesTransferred: bytesTransferred,
			TotalSize:        totalSize,
			Error:            errMsg,
		})
	}

	report(transfer.PhaseStarting, 0, "")

	if err := writeFrame(stream, transfer.Frame{
		Kind:     transfer.FrameSendRequest,
		Filename: filename,
		Size:     totalSize,
		MimeType: guessMimeType(filename),
	}); err != nil {
		report(transfer.PhaseFailed, 0, err.Error())
		return err
	}

	resp, err := readFrame(ctx, stream)
	if err != nil {
		report(transfer.PhaseFailed, 0, err.Error())
		return err
	}
	switch resp.Kind {
	case transfer.FrameAccept:
	case transfer.FrameReject:
		report(transfer.PhaseFailed, 0, resp.Reason)
		return fmt.Errorf("%w: %s", ErrRejected, resp.Reason)
	default:
		report(transfer.PhaseFailed, 0, "unexpected response")
		return ErrUnexpectedFrame
	}

	checksum := crc32.NewIEEE()
	buf := make([]byte, transfer.ChunkSize)
	var offset uint64

	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			checksum.Write(chunk)

			if err := writeFrame(stream, transfer.Frame{
				Kind:   transfer.FrameChunk,
				Offset: offset,
				Data:   chunk,
			}); err != nil {
				report(transfer.PhaseFailed, offset, err.Error())
				return err
			}
			offset += uint64(n)
			report(transfer.PhaseProgress, offset, "")
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			report(transfer.PhaseFailed, offset, readErr.Error())
			return fmt.Errorf("filetransfer: read %s: %w", path, readErr)
		}
	}

	if err := writeFrame(stream, transfer.Frame{
		Kind:     transfer.FrameComplete,
		Checksum: fmt.Sprintf("%08x", checksum.Sum32()),
	}); err != nil {
		report(transfer.PhaseFailed, offset, err.Error())
		return err
	}

	ack, err := readFrame(ctx, stream)
	if err != nil {
		report(transfer.PhaseFailed, offset, err.Error())
		return err
	}
	switch ack.Kind {
	case transfer.FrameAck:
		report(transfer.PhaseCompleted, offset, "")
		return nil
	case transfer.FrameError:
		report(transfer.PhaseFailed, offset, ack.Message)
		return fmt.Errorf("filetransfer: peer reported error: %s", ack.Message)
	default:
		report(transfer.PhaseFailed, offset, "unexpected response")
		return ErrUnexpectedFrame
	}
}
