// Command connectedctl is a terminal operator tool for trust and pairing
// administration. It embeds the same orchestrator connected-agent runs —
// there is no RPC surface to dial — so running connectedctl alongside a
// connected-agent started against the same storage directory lets an
// operator review discovered peers and accept, block, or forget them.
//
// It deliberately never renders transfer progress or clipboard content:
// that belongs to the desktop/tray UI this module is a library for, not to
// a maintenance CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/netip"
	"os"

	infraconfig "connected/infrastructure/config"
	infradiscovery "connected/infrastructure/discovery"
	"connected/infrastructure/eventbus"
	"connected/infrastructure/filetransfer"
	"connected/infrastructure/identity"
	"connected/infrastructure/logging"
	infratransport "connected/infrastructure/transport"
	"connected/orchestrator"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

func main() {
	var (
		name       = flag.String("name", "connectedctl", "device name this tool advertises while attached")
		bindAddr   = flag.String("bind", "127.0.0.1:0", "UDP address to bind while attached")
		storageDir = flag.String("storage-dir", "", "storage directory shared with the running connected-agent")
	)
	flag.Parse()

	if err := run(*name, *bindAddr, *storageDir); err != nil {
		fmt.Fprintln(os.Stderr, "connectedctl:", err)
		os.Exit(1)
	}
}

func run(name, bindAddr, storageDir string) error {
	addr, err := netip.ParseAddrPort(bindAddr)
	if err != nil {
		return fmt.Errorf("parse -bind %q: %w", bindAddr, err)
	}

	paths, err := infraconfig.Resolve(storageDir)
	if err != nil {
		return fmt.Errorf("resolve storage paths: %w", err)
	}

	log := logging.New("error")
	idStore, err := identity.New(paths.StorageDir)
	if err != nil {
		return fmt.Errorf("open identity store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := idStore.LocalIdentity(ctx)
	if err != nil {
		return fmt.Errorf("load local identity: %w", err)
	}

	agent, err := orchestrator.New(orchestrator.Config{
		DeviceName:  name,
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
		return fmt.Errorf("construct agent: %w", err)
	}
	if err := agent.Start(ctx); err != nil {
		return fmt.Errorf("start agent: %w", err)
	}
	defer func() { _ = agent.Shutdown(context.Background()) }()

	p := tea.NewProgram(newModel(agent), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
