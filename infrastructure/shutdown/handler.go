package shutdown

import (
	"context"
	"os"
	"sync"
	"syscall"
)

// Provider supplies the signals that should trigger shutdown. It exists so
// a platform-specific signal set (e.g. SIGTERM only on Unix) can be swapped
// in without touching Handler.
type Provider interface {
	ShutdownSignals() []os.Signal
}

// defaultProvider returns the signals connected-agent shuts down on:
// interrupt and termination requests.
type defaultProvider struct{}

// NewDefaultProvider returns the standard interrupt/terminate signal set.
func NewDefaultProvider() Provider {
	return defaultProvider{}
}

func (defaultProvider) ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}

// Handler cancels a context the first time one of Provider's signals
// arrives, then stops listening. Handle is idempotent: calling it more than
// once only arms the handler once.
type Handler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	provider Provider
	notifier Notifier

	once sync.Once
}

// NewHandler builds a Handler that cancels cancel when ctx is still live
// and one of provider's signals arrives on notifier.
func NewHandler(ctx context.Context, cancel context.CancelFunc, provider Provider, notifier Notifier) *Handler {
	return &Handler{ctx: ctx, cancel: cancel, provider: provider, notifier: notifier}
}

// Handle arms the signal subscription and starts the goroutine that waits
// for either a shutdown signal or ctx's own cancellation. Calling Handle
// more than once is a no-op after the first call.
func (h *Handler) Handle() {
	h.once.Do(func() {
		ch := make(chan os.Signal, 1)
		h.notifier.Notify(ch, h.provider.ShutdownSignals()...)

		go func() {
			defer h.notifier.Stop(ch)
			select {
			case <-ch:
				h.cancel()
			case <-h.ctx.Done():
			}
		}()
	})
}
