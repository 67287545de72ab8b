// Package lifecycle turns process signals into camera lifecycle signals.
package lifecycle

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog"

	"github.com/kartoza/kartoza-dualcam/internal/camera"
	xlog "github.com/kartoza/kartoza-dualcam/internal/log"
)

// Handler receives translated lifecycle signals.
type Handler interface {
	HandleSignal(ctx context.Context, sig camera.Signal)
}

// Watch forwards background/foreground process signals to h until ctx is done.
func Watch(ctx context.Context, h Handler, logger zerolog.Logger) {
	if len(watched) == 0 {
		// Notify with no signals would relay every signal
		<-ctx.Done()
		return
	}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, watched...)
	defer signal.Stop(sigChan)

	Run(ctx, sigChan, h, logger)
}

// Run dispatches signals from ch to h until ctx is done or ch is closed.
func Run(ctx context.Context, ch <-chan os.Signal, h Handler, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			sig, known := Translate(s)
			if !known {
				logger.Debug().Str(xlog.FieldSignal, s.String()).Msg("ignoring process signal")
				continue
			}
			logger.Info().
				Str("process_signal", s.String()).
				Str(xlog.FieldSignal, sig.Kind.String()).
				Msg("dispatching lifecycle signal")
			h.HandleSignal(ctx, sig)
		}
	}
}
