// Command connected-agent is the background daemon: it boots the
// orchestrator (identity, transport, discovery, file transfer) and keeps it
// running until asked to stop. It exposes no network RPC surface of its
// own — connectedctl and other local tools drive it as a library, not over
// the wire.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/netip"
	"os"

	appevents "connected/application/events"
	"connected/domain/device"
	infraconfig "connected/infrastructure/config"
	infradiscovery "connected/infrastructure/discovery"
	"connected/infrastructure/eventbus"
	"connected/infrastructure/filetransfer"
	"connected/infrastructure/identity"
	"connected/infrastructure/logging"
	"connected/infrastructure/shutdown"
	infratransport "connected/infrastructure/transport"
	"connected/orchestrator"

	"github.com/google/uuid"
)

func main() {
	var (
		name       = flag.String("name", defaultDeviceName(), "device name advertised to peers")
		bindAddr   = flag.String("bind", "0.0.0.0:0", "UDP address to bind the QUIC transport to")
		storageDir = flag.String("storage-dir", "", "directory for identity/trust state (default: OS user config dir)")
		logLevel   = flag.String("log-level", "info", "log level: debug, info, warn, error")
		pairing    = flag.Bool("pairing-mode", false, "start with pairing mode enabled, auto-trusting inbound handshakes")
	)
	flag.Parse()

	log := logging.New(*logLevel)

	if err := run(*name, *bindAddr, *storageDir, *pairing, log); err != nil {
		log.WithError(err).Errorf("connected-agent exited with error")
		os.Exit(1)
	}
}

func run(name, bindAddr, storageDir string, pairing bool, log logging.Logger) error {
	addr, err := netip.ParseAddrPort(bindAddr)
	if err != nil {
		return fmt.Errorf("connected-agent: parse -bind %q: %w", bindAddr, err)
	}

	paths, err := infraconfig.Resolve(storageDir)
	if err != nil {
		return fmt.Errorf("connected-agent: resolve storage paths: %w", err)
	}

	idStore, err := identity.New(paths.StorageDir)
	if err != nil {
		return fmt.Errorf("connected-agent: open identity store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := idStore.LocalIdentity(ctx)
	if err != nil {
		return fmt.Errorf("connected-agent: load local identity: %w", err)
	}

	agent, err := orchestrator.New(orchestrator.Config{
		DeviceName:  name,
		DeviceKind:  localDeviceKind(),
		BindAddr:    addr,
		DownloadDir: paths.DownloadDir,
		Identity:    idStore,
		Transport:   infratransport.New(id.Cert),
		Discovery:   infradiscovery.New(log),
		Events:      eventbus.New(),
		Sender:      filetransfer.NewSender(uuid.NewString),
		Receiver:    filetransfer.NewReceiver(uuid.NewString),
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("connected-agent: construct agent: %w", err)
	}

	if pairing {
		agent.SetPairingMode(true)
	}

	if err := agent.Start(ctx); err != nil {
		return fmt.Errorf("connected-agent: start agent: %w", err)
	}

	logEvents(ctx, agent, log)

	handler := shutdown.NewHandler(ctx, cancel, shutdown.NewDefaultProvider(), shutdown.NewNotifier())
	handler.Handle()

	<-ctx.Done()
	log.Infof("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer shutdownCancel()
	return agent.Shutdown(shutdownCtx)
}

// logEvents drains the agent's event bus to the log for as long as the
// daemon runs. connectedctl runs its own agent and bus in its own process;
// this is just the daemon's always-on audit trail.
func logEvents(ctx context.Context, agent *orchestrator.Agent, log logging.Logger) {
	events, unsubscribe := agent.Subscribe()
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				logEvent(log, ev)
			}
		}
	}()
}

func logEvent(log logging.Logger, ev appevents.Event) {
	entry := log.WithField("kind", ev.Kind)
	switch ev.Kind {
	case appevents.KindPairingRequest:
		entry.WithField("device_id", ev.DeviceID).Infof("pairing request")
	case appevents.KindDeviceFound:
		entry.WithField("device_id", ev.DeviceID).Infof("device found")
	case appevents.KindDeviceLost:
		entry.WithField("device_id", ev.DeviceID).Infof("device lost")
	case appevents.KindTransferFailed:
		entry.WithField("filename", ev.Filename).Warnf("transfer failed")
	case appevents.KindError:
		entry.Warnf("agent error: %s", ev.Message)
	default:
		entry.Debugf("event")
	}
}

func defaultDeviceName() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "connected-device"
}

func localDeviceKind() device.Kind {
	switch {
	case isLinux():
		return device.KindLinux
	case isMacOS():
		return device.KindMacOS
	case isWindows():
		return device.KindWindows
	default:
		return device.KindUnknown
	}
}
