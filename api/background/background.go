// Package background runs fire-and-forget jobs spawned by request
// handlers, with a graceful drain on shutdown.
package background

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

type Background struct {
	log logrus.FieldLogger
	wg  sync.WaitGroup
}

func New(log logrus.FieldLogger) *Background {
	return &Background{log: log}
}

// Go runs fn on its own goroutine, recovering a panic so one bad job
// cannot take the process down.
func (b *Background) Go(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				b.log.Errorf("background job panicked: %v", rec)
			}
		}()
		fn()
	}()
}

// Shutdown waits for running jobs, bounded by the context.
func (b *Background) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
