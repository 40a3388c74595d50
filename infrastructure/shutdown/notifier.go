// Package shutdown wires OS signals to context cancellation, so the
// orchestrator and its hosting command can wind down cooperatively instead
// of being killed mid-transfer.
//
// Grounded on the teacher's presentation/signals/shutdown package: a thin
// Notifier seam over os/signal, and a Handler that is safe to call more
// than once.
package shutdown

import "os"

// Notifier abstracts os/signal.Notify and os/signal.Stop so tests can
// observe registration without sending real process signals.
type Notifier interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

type osNotifier struct{}

// NewNotifier returns a Notifier backed by the real os/signal package.
func NewNotifier() Notifier {
	return osNotifier{}
}

func (osNotifier) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signalNotify(c, sig...)
}

func (osNotifier) Stop(c chan<- os.Signal) {
	signalStop(c)
}
