package shutdown

import (
	"os"
	"os/signal"
)

func signalNotify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func signalStop(c chan<- os.Signal) {
	signal.Stop(c)
}
