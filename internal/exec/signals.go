package exec

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
)

// forwarded lists the signals relayed to a running child.
var forwarded = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}

// ForwardSignals relays SIGINT, SIGTERM and SIGHUP to process until the
// returned cleanup function is called or ctx is done. Cleanup must be called
// once the child has exited.
func ForwardSignals(ctx context.Context, process *os.Process) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, forwarded...)

	done := make(chan struct{})

	go forwardLoop(ctx, process, sigChan, done)

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}

func forwardLoop(ctx context.Context, process *os.Process, sigChan <-chan os.Signal, done <-chan struct{}) {
	logger := zerolog.Ctx(ctx)
	for {
		select {
		case sig := <-sigChan:
			if err := process.Signal(sig); err != nil {
				logger.Debug().Err(err).Str("signal", sig.String()).Msg("forwarding signal failed")
				continue
			}
			logger.Debug().Str("signal", sig.String()).Int("pid", process.Pid).Msg("forwarded signal")
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
