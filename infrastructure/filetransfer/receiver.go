package filetransfer

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	appfiletransfer "connected/application/filetransfer"
	apptransport "connected/application/transport"
	"connected/domain/transfer"
)

var _ appfiletransfer.Receiver = (*Receiver)(nil)

// Receiver drives the receiving side of the file-transfer protocol.
type Receiver struct {
	transferIDFunc func() string
}

// NewReceiver returns a Receiver. transferID is called once per Receive
// call to stamp progress events.
func NewReceiver(transferID func() string) *Receiver {
	return &Receiver{transferIDFunc: transferID}
}

func (r *Receiver) Receive(ctx context.Context, stream apptransport.Stream, dir string, shouldAccept func(filename string, size uint64) bool, onProgress appfiletransfer.ProgressFunc) (string, error) {
	req, err := readFrame(ctx, stream)
	if err != nil {
		return "", err
	}
	if req.Kind != transfer.FrameSendRequest {
		return "", ErrUnexpectedFrame
	}

	transferID := ""
	if r.transferIDFunc != nil {
		transferID = r.transferIDFunc()
	}

	report := func(phase transfer.Phase, bytesTransferred uint64, errMsg string) {
		if onProgress == nil {
			return
		}
		onProgress(transfer.Progress{
			TransferID:       transferID,
			Filename:         req.Filename,
			Direction:        transfer.DirectionReceiving,
			Phase:            phase,
			BytesTransferred: bytesTransferred,
			TotalSize:        req.Size,
			Error:            errMsg,
		})
	}
	report(transfer.PhaseStarting, 0, "")

	accept := shouldAccept == nil || shouldAccept(req.Filename, req.Size)
	if !accept {
		_ = writeFrame(stream, transfer.Frame{Kind: transfer.FrameReject, Reason: "declined by user"})
		report(transfer.PhaseFailed, 0, "declined by user")
		return "", ErrRejected
	}
	if err := writeFrame(stream, transfer.Frame{Kind: transfer.FrameAccept}); err != nil {
		report(transfer.PhaseFailed, 0, err.Error())
		return "", err
	}

	safeName := sanitizeFilename(req.Filename)
	savePath := filepath.Join(dir, safeName)

	out, err := os.Create(savePath)
	if err != nil {
		report(transfer.PhaseFailed, 0, err.Error())
		return "", fmt.Errorf("filetransfer: create %s: %w", savePath, err)
	}
	defer out.Close()

	checksum := crc32.NewIEEE()
	var received uint64

	for {
		frame, err := readFrame(ctx, stream)
		if err != nil {
			report(transfer.PhaseFailed, received, err.Error())
			return "", err
		}

		switch frame.Kind {
		case transfer.FrameChunk:
			// The chunk's offset is not compared with the bytes received
			// so far, and a mismatch is not reported: every chunk is
			// appended in the order it arrives.
			if _, err := out.Write(frame.Data); err != nil {
				report(transfer.PhaseFailed, received, err.Error())
				return "", fmt.Errorf("filetransfer: write chunk: %w", err)
			}
			checksum.Write(frame.Data)
			received += uint64(len(frame.Data))
			report(transfer.PhaseProgress, received, "")

		case transfer.FrameComplete:
			if err := out.Sync(); err != nil {
				report(transfer.PhaseFailed, received, err.Error())
				return "", err
			}
			ours := fmt.Sprintf("%08x", checksum.Sum32())
			if ours != frame.Checksum {
				_ = writeFrame(stream, transfer.Frame{Kind: transfer.FrameError, Message: "checksum mismatch"})
				_ = os.Remove(savePath)
				report(transfer.PhaseFailed, received, "checksum mismatch")
				return "", fmt.Errorf("filetransfer: checksum mismatch: want %s got %s", frame.Checksum, ours)
			}
			if err := writeFrame(stream, transfer.Frame{Kind: transfer.FrameAck}); err != nil {
				report(transfer.PhaseFailed, received, err.Error())
				return "", err
			}
			report(transfer.PhaseCompleted, received, "")
			return savePath, nil

		case transfer.FrameCancel:
			_ = os.Remove(savePath)
			report(transfer.PhaseCancelled, received, "")
			return "", fmt.Errorf("filetransfer: transfer cancelled by sender")

		case transfer.FrameError:
			_ = os.Remove(savePath)
			report(transfer.PhaseFailed, received, frame.Message)
			return "", fmt.Errorf("filetransfer: sender reported error: %s", frame.Message)
		}
	}
}
