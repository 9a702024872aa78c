package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
}

// Group tracks background loops so main can wait for them after the root
// context is cancelled.
type Group struct {
	log *slog.Logger
	wg  sync.WaitGroup
}

func NewGroup(log *slog.Logger) *Group {
	return &Group{log: log}
}

func (g *Group) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			g.log.Error("background loop stopped", "name", name, "err", err)
			return
		}
		g.log.Info("background loop stopped", "name", name)
	}()
}

// Wait blocks until every loop returned or timeout elapsed. It reports
// whether all loops finished in time.
func (g *Group) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		g.log.Warn("shutdown timed out waiting for background loops", "timeout", timeout)
		return false
	}
}
