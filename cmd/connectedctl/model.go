package main

import (
	"fmt"

	appevents "connected/application/events"
	"connected/domain/device"
	"connected/domain/trust"
	"connected/orchestrator"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	statusStyle = map[trust.Status]lipgloss.Style{
		trust.StatusUnknown:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		trust.StatusUnpaired:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		trust.StatusTrusted:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		trust.StatusForgotten: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		trust.StatusBlocked:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
	pairingOnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	pairingOffStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	helpStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// peerItem adapts a discovered device plus its trust record into a
// list.Item for bubbles/list.
type peerItem struct {
	dev   device.Device
	peer  trust.PeerInfo
	known bool
}

func (i peerItem) FilterValue() string { return i.dev.Name }

func (i peerItem) Title() string {
	return fmt.Sprintf("%s  (%s)", i.dev.Name, i.dev.ID)
}

func (i peerItem) Description() string {
	status := trust.StatusUnknown
	if i.known {
		status = i.peer.Status
	}
	style, ok := statusStyle[status]
	if !ok {
		style = statusStyle[trust.StatusUnknown]
	}
	return style.Render(status.String())
}

// model is the bubbletea Model driving connectedctl. It lists discovered
// devices fused with their trust status and lets an operator trust, block,
// unblock, or forget the selected one.
type model struct {
	agent   *orchestrator.Agent
	list    list.Model
	events  <-chan appevents.Event
	unsub   func()
	status  string
	pairing bool
}

func newModel(agent *orchestrator.Agent) model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "connected — known devices"
	l.SetShowStatusBar(false)

	events, unsub := agent.Subscribe()
	return model{
		agent:   agent,
		list:    l,
		events:  events,
		unsub:   unsub,
		pairing: agent.PairingMode(),
	}
}

type eventMsg appevents.Event

func (m model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.waitForEventCmd())
}

func (m model) waitForEventCmd() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

type refreshMsg struct {
	items []list.Item
}

func (m model) refreshCmd() tea.Cmd {
	agent := m.agent
	return func() tea.Msg {
		devices := agent.Devices()
		peersByDeviceID := make(map[string]trust.PeerInfo)
		if peers, err := agent.Peers(); err == nil {
			for _, p := range peers {
				if p.DeviceID != "" {
					peersByDeviceID[p.DeviceID] = p
				}
			}
		}

		items := make([]list.Item, 0, len(devices))
		for _, d := range devices {
			peer, known := peersByDeviceID[d.ID]
			items = append(items, peerItem{dev: d, peer: peer, known: known})
		}
		return refreshMsg{items: items}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case refreshMsg:
		m.list.SetItems(msg.items)
		return m, nil

	case eventMsg:
		switch msg.Kind {
		case appevents.KindPairingModeChanged:
			m.pairing = msg.Enabled
		case appevents.KindPairingRequest:
			m.status = fmt.Sprintf("pairing request from %s", msg.DeviceID)
		case appevents.KindError:
			m.status = msg.Message
		}
		return m, tea.Batch(m.refreshCmd(), m.waitForEventCmd())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.unsub != nil {
				m.unsub()
			}
			return m, tea.Quit
		case "p":
			m.agent.SetPairingMode(!m.pairing)
			return m, nil
		case "t", "b", "u", "f":
			return m, m.actOnSelected(msg.String())
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) actOnSelected(key string) tea.Cmd {
	item, ok := m.list.SelectedItem().(peerItem)
	if !ok || !item.known {
		return nil
	}
	agent := m.agent
	fp := item.peer.Fingerprint
	act := func() tea.Msg {
		var err error
		switch key {
		case "t":
			_, err = agent.TrustDevice(fp)
		case "b":
			_, err = agent.BlockDevice(fp)
		case "u":
			_, err = agent.UnblockDevice(fp)
		case "f":
			err = agent.ForgetDevice(fp)
		}
		if err != nil {
			return eventMsg(appevents.Event{Kind: appevents.KindError, Message: err.Error()})
		}
		return nil
	}
	return tea.Sequence(act, m.refreshCmd())
}

func (m model) View() string {
	pairing := pairingOffStyle.Render("pairing mode: off")
	if m.pairing {
		pairing = pairingOnStyle.Render("pairing mode: on")
	}
	help := helpStyle.Render("t trust · b block · u unblock · f forget · p toggle pairing · q quit")

	body := m.list.View() + "\n" + pairing
	if m.status != "" {
		body += "\n" + m.status
	}
	return body + "\n" + help
}
