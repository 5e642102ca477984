package feed

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Status describes the active feed
type Status struct {
	Running bool     `json:"running"`
	Mode    string   `json:"mode,omitempty"`
	Symbols []string `json:"symbols,omitempty"`
}

// Runner owns the lifecycle of at most one live source. The source runs on
// its own context, independent of the request that started it.
type Runner struct {
	mu        sync.Mutex
	sink      Sink
	factories map[string]SourceFactory
	logger    *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
	status Status
}

// NewRunner creates a new feed runner
func NewRunner(sink Sink, logger *zap.Logger) *Runner {
	return &Runner{
		sink:      sink,
		factories: make(map[string]SourceFactory),
		logger:    logger,
	}
}

// Register makes a source available under mode
func (r *Runner) Register(mode string, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[mode] = factory
}

// Start launches the source registered under mode
func (r *Runner) Start(mode string, symbols []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.Running {
		return ErrAlreadyRunning
	}
	factory, ok := r.factories[mode]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	src, err := factory(symbols)
	if err != nil {
		return err
	}

	if r.cancel != nil {
		// previous source already exited on its own
		r.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.cancel, r.done = cancel, done
	r.status = Status{Running: true, Mode: mode, Symbols: append([]string(nil), symbols...)}

	go func() {
		defer close(done)
		err := src.Run(ctx, r.sink)
		if err != nil && ctx.Err() == nil {
			r.logger.Error("Feed stopped unexpectedly", zap.String("mode", mode), zap.Error(err))
		}

		r.mu.Lock()
		if r.done == done {
			r.status = Status{}
		}
		r.mu.Unlock()
	}()

	r.logger.Info("Feed started", zap.String("mode", mode), zap.Strings("symbols", symbols))
	return nil
}

// Stop cancels the active source and waits for it to exit. It reports
// whether a source was running.
func (r *Runner) Stop() bool {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	wasRunning := r.status.Running
	r.status = Status{}
	r.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done

	r.logger.Info("Feed stopped")
	return wasRunning
}

// Status returns the active feed
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}
