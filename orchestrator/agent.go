// Package orchestrator wires identity, transport, discovery, and
// file-transfer into one running agent: it boots the transport and
// discovery reconciler, consumes inbound sessions, gates them against the
// trust store, dispatches control and file streams, and exposes the
// operations a host process (daemon, CLI) drives the system with.
//
// Grounded on original_source/core/src/client.rs's ConnectedClient: the
// boot sequence in new_with_ip, the control-message state machine in
// start_background_tasks, and the outbound operations (send_file,
// send_clipboard, broadcast_clipboard, trust_device, block_device).
package orchestrator

import (
	"context"
	"fmt"
	"net/netip"
	"sync"

	appdiscovery "connected/application/discovery"
	appevents "connected/application/events"
	appfiletransfer "connected/application/filetransfer"
	appidentity "connected/application/identity"
	apptransport "connected/application/transport"
	"connected/domain/device"
	domaindiscovery "connected/domain/discovery"
	"connected/domain/trust"
	"connected/infrastructure/logging"

	"golang.org/x/sync/errgroup"
)

// Config is everything needed to construct an Agent. Every field is
// required except Logger, which defaults to an info-level logger.
type Config struct {
	DeviceName  string
	DeviceKind  device.Kind
	BindAddr    netip.AddrPort
	DownloadDir string

	Identity  appidentity.Store
	Transport apptransport.Transport
	Discovery appdiscovery.Reconciler
	Events    appevents.Bus
	Sender    appfiletransfer.Sender
	Receiver  appfiletransfer.Receiver

	Logger logging.Logger
}

// Agent is one running peer: bound transport, active discovery, and the
// trust-gated session handling that connects them to the event bus.
type Agent struct {
	cfg Config
	log logging.Logger

	mu          sync.RWMutex
	localDevice device.Device
	identityID  appidentity.Identity

	// wg tracks the dynamic per-session and per-stream goroutines spawned
	// as peers connect; its size is not known at boot time.
	wg sync.WaitGroup

	// eg tracks the two long-lived background loops started in Start
	// (discovery event bridging and the accept loop) as a cooperative
	// group, so Shutdown can wait on both and propagate whichever error
	// ended them first.
	eg     *errgroup.Group
	runCtx context.Context
	cancel context.CancelFunc

	sessions *sessionSet
}

// New validates cfg and constructs an Agent. Call Start to bind the
// transport, announce over mDNS, and begin serving.
func New(cfg Config) (*Agent, error) {
	if cfg.Identity == nil || cfg.Transport == nil || cfg.Discovery == nil || cfg.Events == nil || cfg.Sender == nil || cfg.Receiver == nil {
		return nil, fmt.Errorf("orchestrator: Config is missing a required dependency")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New("info")
	}
	return &Agent{
		cfg:      cfg,
		log:      cfg.Logger,
		sessions: newSessionSet(),
	}, nil
}

// Start resolves the local identity, binds the transport, builds the local
// device record, and starts discovery and the accept loop. It returns once
// the transport is bound and discovery has announced; both continue
// running in the background until ctx is cancelled or Shutdown is called.
func (a *Agent) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.runCtx = runCtx
	a.cancel = cancel
	a.eg = &errgroup.Group{}

	id, err := a.cfg.Identity.LocalIdentity(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: load local identity: %w", err)
	}
	a.identityID = id

	if err := a.cfg.Transport.Bind(ctx, a.cfg.BindAddr); err != nil {
		return fmt.Errorf("orchestrator: bind transport: %w", err)
	}
	boundAddr := a.cfg.Transport.LocalAddr()

	local := device.Device{
		ID:   id.DeviceID,
		Name: a.cfg.DeviceName,
		Addr: boundAddr,
		Kind: a.cfg.DeviceKind,
	}
	a.mu.Lock()
	a.localDevice = local
	a.mu.Unlock()

	if err := a.cfg.Discovery.Start(ctx, local); err != nil {
		return fmt.Errorf("orchestrator: start discovery: %w", err)
	}

	a.eg.Go(func() error { return a.bridgeDiscoveryEvents(runCtx) })
	a.eg.Go(func() error { return a.acceptLoop(runCtx) })

	a.log.WithField("device_id", local.ID).WithField("addr", boundAddr.String()).Infof("agent started")
	return nil
}

// Shutdown stops the accept loop, discovery, and transport, and closes the
// event bus. It blocks until background goroutines have exited.
func (a *Agent) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.sessions.closeAll()
	a.wg.Wait()

	var firstErr error
	if a.eg != nil {
		if err := a.eg.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.cfg.Discovery.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.cfg.Transport.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	a.cfg.Events.Close()
	return firstErr
}

// LocalDevice returns this agent's own device record.
func (a *Agent) LocalDevice() device.Device {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.localDevice
}

// Fingerprint returns this agent's own certificate fingerprint.
func (a *Agent) Fingerprint() trust.Fingerprint {
	return a.identityID.Fingerprint()
}

// Subscribe returns a channel of future orchestrator events.
func (a *Agent) Subscribe() (<-chan appevents.Event, func()) {
	return a.cfg.Events.Subscribe()
}

// Devices returns every device currently tracked by discovery.
func (a *Agent) Devices() []device.Device {
	return a.cfg.Discovery.Snapshot()
}

// Peers returns known-peer trust records, optionally filtered by status.
func (a *Agent) Peers(status ...trust.Status) ([]trust.PeerInfo, error) {
	return a.cfg.Identity.Peers(status...)
}

// SetPairingMode toggles whether inbound handshakes from unknown peers are
// auto-trusted rather than raising a PairingRequest event.
func (a *Agent) SetPairingMode(enabled bool) {
	a.cfg.Identity.SetPairingMode(enabled)
	a.cfg.Events.Publish(appevents.Event{Kind: appevents.KindPairingModeChanged, Enabled: enabled})
}

// PairingMode reports whether pairing mode is currently enabled.
func (a *Agent) PairingMode() bool {
	return a.cfg.Identity.PairingMode()
}

func (a *Agent) bridgeDiscoveryEvents(ctx context.Context) error {
	events := a.cfg.Discovery.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			a.publishDiscoveryEvent(ev)
		}
	}
}

func (a *Agent) publishDiscoveryEvent(ev domaindiscovery.Event) {
	switch ev.Kind {
	case domaindiscovery.EventDeviceFound:
		a.cfg.Events.Publish(appevents.Event{
			Kind:       appevents.KindDeviceFound,
			DeviceID:   ev.Device.ID,
			DeviceName: ev.Device.Name,
		})
	case domaindiscovery.EventDeviceLost:
		a.cfg.Events.Publish(appevents.Event{
			Kind:     appevents.KindDeviceLost,
			DeviceID: ev.DeviceID,
		})
	}
}
