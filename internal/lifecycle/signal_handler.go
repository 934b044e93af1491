// Package lifecycle ties the basex command to OS signals and runs its
// background HTTP services.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

// SignalHandler cancels a context on SIGINT or SIGTERM.
type SignalHandler struct {
	sigChan chan os.Signal
	done    chan struct{}
}

// NewSignalHandler registers for interrupt and terminate signals.
func NewSignalHandler() *SignalHandler {
	sh := &SignalHandler{
		sigChan: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
	signal.Notify(sh.sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sh
}

// HandleSignals returns a child of parent that is cancelled on the first
// signal. Stop releases it.
func (sh *SignalHandler) HandleSignals(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		defer cancel()
		select {
		case sig := <-sh.sigChan:
			log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		case <-sh.done:
		case <-ctx.Done():
		}
	}()
	return ctx
}

// Stop unregisters the handler and cancels the contexts it returned.
func (sh *SignalHandler) Stop() {
	signal.Stop(sh.sigChan)
	select {
	case <-sh.done:
	default:
		close(sh.done)
	}
}
