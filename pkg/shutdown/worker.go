package shutdown

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BackgroundWorker runs a single goroutine whose lifetime is bounded by the
// shutdown manager. The work function must return when its context is done.
type BackgroundWorker struct {
	name     string
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewBackgroundWorker creates a stopped worker; call Start to launch it
func NewBackgroundWorker(name string, logger *zap.Logger) *BackgroundWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &BackgroundWorker{
		name:   name,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker goroutine
func (bw *BackgroundWorker) Start(work func(ctx context.Context)) {
	bw.wg.Add(1)
	go func() {
		defer bw.wg.Done()
		bw.logger.Info("Background worker started", zap.String("worker", bw.name))
		work(bw.ctx)
		bw.logger.Info("Background worker stopped", zap.String("worker", bw.name))
	}()
}

// Shutdown cancels the worker and waits for it to finish, bounded by ctx.
// Satisfies the manager's ShutdownFunc signature.
func (bw *BackgroundWorker) Shutdown(ctx context.Context) error {
	bw.stopOnce.Do(bw.cancel)

	done := make(chan struct{})
	go func() {
		bw.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		bw.logger.Warn("Background worker shutdown timeout", zap.String("worker", bw.name))
		return ctx.Err()
	}
}

// PeriodicWorker runs a function on a fixed interval, once immediately at
// start and then on every tick until shutdown.
type PeriodicWorker struct {
	*BackgroundWorker
	interval time.Duration
}

// NewPeriodicWorker creates a periodic worker with the given interval
func NewPeriodicWorker(name string, interval time.Duration, logger *zap.Logger) *PeriodicWorker {
	return &PeriodicWorker{
		BackgroundWorker: NewBackgroundWorker(name, logger),
		interval:         interval,
	}
}

// Start begins the periodic loop
func (pw *PeriodicWorker) Start(work func(ctx context.Context)) {
	pw.BackgroundWorker.Start(func(ctx context.Context) {
		ticker := time.NewTicker(pw.interval)
		defer ticker.Stop()

		work(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				work(ctx)
			}
		}
	})
}
