package orchestrator

import (
	"context"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	appdiscovery "connected/application/discovery"
	appevents "connected/application/events"
	"connected/domain/device"
	domaindiscovery "connected/domain/discovery"
	"connected/domain/trust"
	"connected/infrastructure/eventbus"
	"connected/infrastructure/filetransfer"
	"connected/infrastructure/identity"
	"connected/infrastructure/logging"
	infratransport "connected/infrastructure/transport"

	"github.com/google/uuid"
)

// fakeReconciler is a network-free application/discovery.Reconciler stub:
// peers are registered directly by the test instead of discovered over
// mDNS, so these tests never touch a real network interface.
type fakeReconciler struct {
	mu     sync.Mutex
	peers  map[string]device.Device
	events chan domaindiscovery.Event
}

func newFakeReconciler() *fakeReconciler {
	return &fakeReconciler{peers: make(map[string]device.Device), events: make(chan domaindiscovery.Event, 16)}
}

func (f *fakeReconciler) Start(ctx context.Context, self device.Device) error { return nil }
func (f *fakeReconciler) register(d device.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peers[d.ID] = d
}
func (f *fakeReconciler) Events() <-chan domaindiscovery.Event { return f.events }
func (f *fakeReconciler) NoteConnected(d device.Device)        { f.register(d) }
func (f *fakeReconciler) ClearConnected(deviceID string)       {}
func (f *fakeReconciler) Snapshot() []device.Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]device.Device, 0, len(f.peers))
	for _, d := range f.peers {
		out = append(out, d)
	}
	return out
}
func (f *fakeReconciler) Lookup(deviceID string) (device.Device, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.peers[deviceID]
	return d, ok
}
func (f *fakeReconciler) Shutdown(ctx context.Context) error {
	close(f.events)
	return nil
}

var _ appdiscovery.Reconciler = (*fakeReconciler)(nil)

// newTestAgent builds an Agent whose Identity/Transport are the real
// infrastructure implementations (loopback QUIC, temp-dir trust store) and
// whose Discovery is the network-free fake above.
func newTestAgent(t *testing.T, name string) (*Agent, *fakeReconciler) {
	t.Helper()

	dir := t.TempDir()
	store, err := identity.New(dir)
	if err != nil {
		t.Fatalf("identity.New: %v", err)
	}
	id, err := store.LocalIdentity(context.Background())
	if err != nil {
		t.Fatalf("LocalIdentity: %v", err)
	}

	tr := infratransport.New(id.Cert)
	disco := newFakeReconciler()
	bus := eventbus.New()
	downloadDir := filepath.Join(dir, "downloads")
	if err := os.MkdirAll(downloadDir, 0o700); err != nil {
		t.Fatalf("mkdir downloads: %v", err)
	}

	cfg := Config{
		DeviceName:  name,
		DeviceKind:  device.KindLinux,
		BindAddr:    netip.MustParseAddrPort("127.0.0.1:0"),
		DownloadDir: downloadDir,
		Identity:    store,
		Transport:   tr,
		Discovery:   disco,
		Events:      bus,
		Sender:      filetransfer.NewSender(uuid.NewString),
		Receiver:    filetransfer.NewReceiver(uuid.NewString),
		Logger:      logging.New("error"),
	}

	agent, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := agent.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		_ = agent.Shutdown(context.Background())
	})
	return agent, disco
}

func waitForEvent(t *testing.T, ch <-chan appevents.Event, kind appevents.Kind, timeout time.Duration) appevents.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e := <-ch:
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", kind)
		}
	}
}

func TestAgent_HandshakeAutoTrustsBothSidesInPairingMode(t *testing.T) {
	a, discoA := newTestAgent(t, "agent-a")
	b, discoB := newTestAgent(t, "agent-b")

	discoB.register(a.LocalDevice())
	discoA.register(b.LocalDevice())

	a.SetPairingMode(true)
	b.SetPairingMode(true)

	subA, unsubA := a.Subscribe()
	defer unsubA()
	subB, unsubB := b.Subscribe()
	defer unsubB()

	if err := b.Connect(context.Background(), a.LocalDevice().ID); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	waitForEvent(t, subB, appevents.KindDeviceFound, 2*time.Second)
	waitForEvent(t, subA, appevents.KindDeviceFound, 2*time.Second)

	peersA, err := a.Peers(trust.StatusTrusted)
	if err != nil || len(peersA) != 1 {
		t.Fatalf("expected agent A to have trusted agent B, peers=%v err=%v", peersA, err)
	}
	peersB, err := b.Peers(trust.StatusTrusted)
	if err != nil || len(peersB) != 1 {
		t.Fatalf("expected agent B to have trusted agent A, peers=%v err=%v", peersB, err)
	}
}

func TestAgent_PairingRequestRaisedWithoutPairingMode(t *testing.T) {
	a, discoA := newTestAgent(t, "agent-a")
	b, discoB := newTestAgent(t, "agent-b")

	discoB.register(a.LocalDevice())
	discoA.register(b.LocalDevice())

	subA, unsubA := a.Subscribe()
	defer unsubA()

	if err := b.Connect(context.Background(), a.LocalDevice().ID); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	evt := waitForEvent(t, subA, appevents.KindPairingRequest, 2*time.Second)
	if evt.DeviceID != b.LocalDevice().ID {
		t.Fatalf("expected pairing request to name device %s, got %s", b.LocalDevice().ID, evt.DeviceID)
	}

	peersA, err := a.Peers(trust.StatusTrusted)
	if err != nil {
		t.Fatalf("Peers: %v", err)
	}
	if len(peersA) != 0 {
		t.Fatalf("expected no auto-trust without pairing mode, got %v", peersA)
	}
}

func TestAgent_ClipboardAndFileTransferBetweenTrustedPeers(t *testing.T) {
	a, discoA := newTestAgent(t, "agent-a")
	b, discoB := newTestAgent(t, "agent-b")

	discoB.register(a.LocalDevice())
	discoA.register(b.LocalDevice())

	a.SetPairingMode(true)
	b.SetPairingMode(true)

	subA, unsubA := a.Subscribe()
	defer unsubA()
	subB, unsubB := b.Subscribe()
	defer unsubB()

	if err := b.Connect(context.Background(), a.LocalDevice().ID); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForEvent(t, subB, appevents.KindDeviceFound, 2*time.Second)
	waitForEvent(t, subA, appevents.KindDeviceFound, 2*time.Second)

	if err := b.SendClipboard(context.Background(), a.LocalDevice().ID, "hello from b"); err != nil {
		t.Fatalf("SendClipboard: %v", err)
	}
	clip := waitForEvent(t, subA, appevents.KindClipboardReceived, 2*time.Second)
	if clip.Content != "hello from b" {
		t.Fatalf("clipboard content = %q, want %q", clip.Content, "hello from b")
	}

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "report.txt")
	if err := os.WriteFile(srcPath, []byte("quarterly numbers"), 0o600); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	sendErr := make(chan error, 1)
	go func() { sendErr <- b.SendFile(context.Background(), a.LocalDevice().ID, srcPath) }()

	waitForEvent(t, subA, appevents.KindTransferCompleted, 2*time.Second)
	if err := <-sendErr; err != nil {
		t.Fatalf("SendFile: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(a.cfg.DownloadDir, "report.txt"))
	if err != nil {
		t.Fatalf("read received file: %v", err)
	}
	if string(got) != "quarterly numbers" {
		t.Fatalf("received content = %q, want %q", got, "quarterly numbers")
	}
}
