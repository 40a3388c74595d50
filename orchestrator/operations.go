package orchestrator

import (
	"context"
	"fmt"
	"time"

	apptransport "connected/application/transport"
	"connected/domain/control"
	"connected/domain/trust"
	infracontrol "connected/infrastructure/control"
)

// SendPing measures round-trip latency to a discovered device. It is a
// thin passthrough to the session's own Ping — Transport owns the entire
// Ping/Pong exchange, timeout, and cache-invalidation-on-failure behavior,
// so this just resolves a device id to an address and dials through.
func (a *Agent) SendPing(ctx context.Context, deviceID string) (time.Duration, error) {
	dev, ok := a.cfg.Discovery.Lookup(deviceID)
	if !ok {
		return 0, fmt.Errorf("orchestrator: device %s is not currently discovered", deviceID)
	}

	sess, _, err := a.dialSession(ctx, dev.Addr)
	if err != nil {
		return 0, fmt.Errorf("orchestrator: dial %s: %w", deviceID, err)
	}

	return sess.Ping(ctx, a.LocalDevice().ID)
}

// Connect dials a discovered-but-not-yet-paired device and sends a
// Handshake, starting (or re-confirming) pairing. The device must
// currently be present in the discovery snapshot; devices that have gone
// stale must be re-discovered before they can be connected to.
func (a *Agent) Connect(ctx context.Context, deviceID string) error {
	dev, ok := a.cfg.Discovery.Lookup(deviceID)
	if !ok {
		return fmt.Errorf("orchestrator: device %s is not currently discovered", deviceID)
	}

	sess, _, err := a.dialSession(ctx, dev.Addr)
	if err != nil {
		return fmt.Errorf("orchestrator: dial %s: %w", deviceID, err)
	}

	st, err := sess.OpenStream(ctx, apptransport.StreamControl)
	if err != nil {
		return fmt.Errorf("orchestrator: open control stream to %s: %w", deviceID, err)
	}
	defer st.Close()

	local := a.LocalDevice()
	return infracontrol.WriteMessage(st, control.Message{
		Kind:       control.MessageHandshake,
		DeviceID:   local.ID,
		DeviceName: local.Name,
	})
}

// SendClipboard delivers text to a single trusted peer over a fresh
// control stream.
func (a *Agent) SendClipboard(ctx context.Context, deviceID, text string) error {
	sess, _, err := a.dialTrusted(ctx, deviceID)
	if err != nil {
		return err
	}

	st, err := sess.OpenStream(ctx, apptransport.StreamControl)
	if err != nil {
		return fmt.Errorf("orchestrator: open control stream to %s: %w", deviceID, err)
	}
	defer st.Close()

	return infracontrol.WriteMessage(st, control.Message{Kind: control.MessageClipboard, Text: text})
}

// BroadcastClipboard delivers text to every currently discovered device
// whose device id is a trusted peer, continuing past individual failures.
// It returns both the success count and the device ids that failed, so a
// caller such as the administration CLI can surface partial-failure detail
// without changing the success-counting semantics of a plain broadcast.
func (a *Agent) BroadcastClipboard(ctx context.Context, text string) (sent int, failed []string, err error) {
	trustedIDs := make(map[string]struct{})
	peers, err := a.cfg.Identity.Peers(trust.StatusTrusted)
	if err != nil {
		return 0, nil, fmt.Errorf("orchestrator: list trusted peers: %w", err)
	}
	for _, p := range peers {
		if p.DeviceID != "" {
			trustedIDs[p.DeviceID] = struct{}{}
		}
	}

	for _, dev := range a.cfg.Discovery.Snapshot() {
		if _, trusted := trustedIDs[dev.ID]; !trusted {
			continue
		}
		if sendErr := a.SendClipboard(ctx, dev.ID, text); sendErr != nil {
			a.log.WithError(sendErr).WithField("device_id", dev.ID).Warnf("failed to broadcast clipboard")
			failed = append(failed, dev.ID)
			continue
		}
		sent++
	}
	return sent, failed, nil
}

// TrustDevice accepts a pending pairing request, transitioning the peer to
// Trusted.
func (a *Agent) TrustDevice(fp trust.Fingerprint) (trust.PeerInfo, error) {
	return a.cfg.Identity.Trust(fp)
}

// BlockDevice refuses a peer at the transport handshake from now on.
func (a *Agent) BlockDevice(fp trust.Fingerprint) (trust.PeerInfo, error) {
	return a.cfg.Identity.Block(fp)
}

// UnblockDevice lifts a block, returning the peer to Forgotten so a fresh
// pairing request is required before it is trusted again.
func (a *Agent) UnblockDevice(fp trust.Fingerprint) (trust.PeerInfo, error) {
	return a.cfg.Identity.Unblock(fp)
}

// UnpairDevice returns a Trusted peer to Unpaired without forgetting it
// entirely.
func (a *Agent) UnpairDevice(fp trust.Fingerprint) (trust.PeerInfo, error) {
	return a.cfg.Identity.Unpair(fp)
}

// ForgetDevice marks a peer Forgotten, so it must pair afresh before it is
// trusted again.
func (a *Agent) ForgetDevice(fp trust.Fingerprint) error {
	return a.cfg.Identity.Forget(fp)
}
