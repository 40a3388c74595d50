package orchestrator

import (
	"context"
	"fmt"

	appevents "connected/application/events"
	apptransport "connected/application/transport"
	"connected/domain/transfer"
	"connected/domain/trust"
)

// handleFileStream dispatches an inbound file-transfer stream to the
// receiver, but only for a trusted peer — an untrusted peer's file stream
// is dropped without any protocol exchange, matching client.rs's
// "strict drop is safer" stance.
func (a *Agent) handleFileStream(ctx context.Context, sess apptransport.Session, st apptransport.Stream, fp trust.Fingerprint) {
	defer a.wg.Done()
	defer st.Close()

	peer, known := a.cfg.Identity.Lookup(fp)
	if !known || !peer.IsTrusted() {
		a.log.WithField("fingerprint", string(fp)).Infof("rejected file stream from untrusted peer")
		return
	}

	_, err := a.cfg.Receiver.Receive(ctx, st, a.cfg.DownloadDir, nil, a.bridgeTransferProgress(peer.DeviceID))
	if err != nil {
		a.log.WithError(err).Warnf("incoming file transfer failed")
	}
}

// bridgeTransferProgress adapts a transfer.Progress callback into events
// published on the agent's event bus.
func (a *Agent) bridgeTransferProgress(peerDeviceID string) func(transfer.Progress) {
	return func(p transfer.Progress) {
		evt := appevents.Event{
			TransferID:       p.TransferID,
			PeerDeviceID:     peerDeviceID,
			Filename:         p.Filename,
			Direction:        p.Direction,
			BytesTransferred: p.BytesTransferred,
			TotalSize:        p.TotalSize,
			Message:          p.Error,
		}
		switch p.Phase {
		case transfer.PhaseStarting:
			evt.Kind = appevents.KindTransferStarting
		case transfer.PhaseProgress:
			evt.Kind = appevents.KindTransferProgress
		case transfer.PhaseCompleted:
			evt.Kind = appevents.KindTransferCompleted
		case transfer.PhaseFailed, transfer.PhaseCancelled:
			evt.Kind = appevents.KindTransferFailed
		default:
			return
		}
		a.cfg.Events.Publish(evt)
	}
}

// SendFile opens a dedicated file-transfer stream to deviceID and sends
// path over it, only if the peer is currently trusted.
func (a *Agent) SendFile(ctx context.Context, deviceID, path string) error {
	sess, peer, err := a.dialTrusted(ctx, deviceID)
	if err != nil {
		return err
	}

	st, err := sess.OpenStream(ctx, apptransport.StreamFile)
	if err != nil {
		return fmt.Errorf("orchestrator: open file stream to %s: %w", deviceID, err)
	}
	defer st.Close()

	return a.cfg.Sender.Send(ctx, st, path, a.bridgeTransferProgress(peer.DeviceID))
}

func (a *Agent) dialTrusted(ctx context.Context, deviceID string) (apptransport.Session, trust.PeerInfo, error) {
	dev, ok := a.cfg.Discovery.Lookup(deviceID)
	if !ok {
		return nil, trust.PeerInfo{}, fmt.Errorf("orchestrator: device %s is not currently discovered", deviceID)
	}

	sess, fp, err := a.dialSession(ctx, dev.Addr)
	if err != nil {
		return nil, trust.PeerInfo{}, fmt.Errorf("orchestrator: dial %s: %w", deviceID, err)
	}

	peer, known := a.cfg.Identity.Lookup(fp)
	if !known || !peer.IsTrusted() {
		return nil, trust.PeerInfo{}, fmt.Errorf("orchestrator: device %s is not a trusted peer", deviceID)
	}
	return sess, peer, nil
}
