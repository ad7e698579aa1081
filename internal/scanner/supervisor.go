// Package scanner runs one camera session under remote start/stop control.
package scanner

import (
	"context"
	"log/slog"

	"github.com/your-org/rollcall/internal/queue"
)

// Runner is the session being supervised. Run must return promptly once
// its context is cancelled.
type Runner interface {
	ID() string
	Run(ctx context.Context) error
}

// Supervise starts and stops r in response to control commands until ctx
// is done. Each run gets its own context; a stop command cancels it and
// waits for Run to return. A run that ends on its own (for example because
// the camera was lost) leaves the session stopped until the next start
// command.
func Supervise(ctx context.Context, r Runner, autostart bool, cmds <-chan queue.ControlCommand) {
	logger := slog.Default().With("component", "scanner", "session_id", r.ID())

	var (
		done      chan error
		cancelRun context.CancelFunc
	)
	start := func() {
		if done != nil {
			return
		}
		runCtx, cancel := context.WithCancel(ctx)
		done, cancelRun = make(chan error, 1), cancel
		go func(ch chan<- error) {
			ch <- r.Run(runCtx)
		}(done)
		logger.Info("session run started")
	}
	reap := func(err error) {
		cancelRun()
		done, cancelRun = nil, nil
		if err != nil {
			logger.Error("session run failed", "error", err)
		}
	}
	stop := func() {
		if done == nil {
			return
		}
		cancelRun()
		reap(<-done)
		logger.Info("session run stopped")
	}

	if autostart {
		start()
	}

	for {
		select {
		case <-ctx.Done():
			stop()
			return

		case err := <-done:
			// nil channel blocks, so this only fires while running
			reap(err)
			logger.Info("session run finished")

		case cmd, ok := <-cmds:
			if !ok {
				cmds = nil
				continue
			}
			if !cmd.Targets(r.ID()) {
				continue
			}
			switch cmd.Action {
			case queue.ActionStart:
				start()
			case queue.ActionStop:
				stop()
			}
		}
	}
}
