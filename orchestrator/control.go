package orchestrator

import (
	"context"

	appevents "connected/application/events"
	apptransport "connected/application/transport"
	"connected/domain/control"
	"connected/domain/device"
	"connected/domain/trust"
	infracontrol "connected/infrastructure/control"
)

// handleControlStream reads the single message a control stream carries
// and dispatches it. Every control message in this protocol is sent on its
// own freshly opened stream (matching send_handshake/send_clipboard in the
// original client), so one read is all a control stream ever carries.
func (a *Agent) handleControlStream(ctx context.Context, sess apptransport.Session, st apptransport.Stream, fp trust.Fingerprint) {
	defer a.wg.Done()
	defer st.Close()

	msg, err := infracontrol.ReadMessage(ctx, st)
	if err != nil {
		a.log.WithError(err).Debugf("control stream closed without a valid message")
		return
	}

	switch msg.Kind {
	case control.MessageHandshake:
		a.handleHandshake(ctx, sess, fp, msg)
	case control.MessageHandshakeAck:
		a.handleHandshakeAck(sess, fp, msg)
	case control.MessageClipboard:
		a.handleClipboard(fp, msg)
	}
}

// handleHandshake implements the passive side of pairing: an untrusted
// peer either gets auto-trusted (pairing mode on) or raises a
// PairingRequest event for the operator to decide on; a trusted peer just
// gets an Ack back.
func (a *Agent) handleHandshake(ctx context.Context, sess apptransport.Session, fp trust.Fingerprint, msg control.Message) {
	peer, known := a.cfg.Identity.Lookup(fp)
	if known && peer.IsBlocked() {
		return
	}

	if known && peer.IsTrusted() {
		if _, err := a.cfg.Identity.Upsert(fp, msg.DeviceID, msg.DeviceName); err != nil {
			a.log.WithError(err).Warnf("failed to refresh trusted peer info")
		}
		a.ackHandshake(ctx, sess)
		a.noteConnected(msg.DeviceID, msg.DeviceName, sess)
		return
	}

	if a.cfg.Identity.PairingMode() {
		a.autoTrust(fp, msg, func() { a.ackHandshake(ctx, sess) }, sess)
		return
	}

	a.publishPairingRequest(fp, msg)
}

// handleHandshakeAck implements the initiating side: it completes pairing
// when we dialed out while pairing mode was on, or raises a
// PairingRequest if an Ack shows up for a peer we don't recognize as
// mid-pairing (we may have forgotten them since).
func (a *Agent) handleHandshakeAck(sess apptransport.Session, fp trust.Fingerprint, msg control.Message) {
	peer, known := a.cfg.Identity.Lookup(fp)
	if known && peer.IsBlocked() {
		return
	}

	if known && peer.IsTrusted() {
		if _, err := a.cfg.Identity.Upsert(fp, msg.DeviceID, msg.DeviceName); err != nil {
			a.log.WithError(err).Warnf("failed to refresh trusted peer info on ack")
		}
		a.noteConnected(msg.DeviceID, msg.DeviceName, sess)
		a.cfg.Events.Publish(appevents.Event{Kind: appevents.KindDeviceFound, DeviceID: msg.DeviceID, DeviceName: msg.DeviceName})
		return
	}

	if a.cfg.Identity.PairingMode() {
		a.autoTrust(fp, msg, nil, sess)
		return
	}

	a.publishPairingRequest(fp, msg)
}

// autoTrust upserts and trusts a peer, notes it as connected, publishes a
// DeviceFound event, and optionally runs an extra step (e.g. replying with
// our own Ack) once trust is recorded.
func (a *Agent) autoTrust(fp trust.Fingerprint, msg control.Message, then func(), sess apptransport.Session) {
	if _, err := a.cfg.Identity.Upsert(fp, msg.DeviceID, msg.DeviceName); err != nil {
		a.log.WithError(err).Warnf("failed to record pairing peer")
	}
	if _, err := a.cfg.Identity.Trust(fp); err != nil {
		a.log.WithError(err).Warnf("failed to auto-trust peer during pairing mode")
		return
	}
	if then != nil {
		then()
	}
	a.noteConnected(msg.DeviceID, msg.DeviceName, sess)
	a.cfg.Events.Publish(appevents.Event{Kind: appevents.KindDeviceFound, DeviceID: msg.DeviceID, DeviceName: msg.DeviceName})
}

func (a *Agent) publishPairingRequest(fp trust.Fingerprint, msg control.Message) {
	a.cfg.Events.Publish(appevents.Event{
		Kind:        appevents.KindPairingRequest,
		DeviceID:    msg.DeviceID,
		DeviceName:  msg.DeviceName,
		Fingerprint: string(fp),
	})
}

func (a *Agent) handleClipboard(fp trust.Fingerprint, msg control.Message) {
	peer, known := a.cfg.Identity.Lookup(fp)
	if !known || !peer.IsTrusted() {
		a.log.WithField("fingerprint", string(fp)).Infof("rejected clipboard from untrusted peer")
		return
	}
	a.cfg.Events.Publish(appevents.Event{
		Kind:         appevents.KindClipboardReceived,
		Content:      msg.Text,
		FromDeviceID: peer.DeviceID,
		FromName:     peer.Name,
	})
}

func (a *Agent) ackHandshake(ctx context.Context, sess apptransport.Session) {
	local := a.LocalDevice()
	st, err := sess.OpenStream(ctx, apptransport.StreamControl)
	if err != nil {
		a.log.WithError(err).Warnf("failed to open stream for handshake ack")
		return
	}
	defer st.Close()
	if err := infracontrol.WriteMessage(st, control.Message{
		Kind:       control.MessageHandshakeAck,
		DeviceID:   local.ID,
		DeviceName: local.Name,
	}); err != nil {
		a.log.WithError(err).Warnf("failed to write handshake ack")
	}
}

func (a *Agent) noteConnected(deviceID, name string, sess apptransport.Session) {
	if deviceID == "" {
		return
	}
	a.cfg.Discovery.NoteConnected(device.Device{
		ID:   deviceID,
		Name: name,
		Addr: sess.PeerAddr(),
		Kind: device.KindUnknown,
	})
}
