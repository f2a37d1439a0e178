package background

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Background runs fire-and-forget tasks off the request path. Task
// failures and panics are logged and go nowhere else; Shutdown drains
// in-flight tasks before the process exits.
type Background struct {
	log logrus.FieldLogger
	wg  sync.WaitGroup
}

func New(log logrus.FieldLogger) *Background {
	return &Background{log: log}
}

func (b *Background) Add(task func() error) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		defer func() {
			if rec := recover(); rec != nil {
				b.log.Errorf("background task panic: %v", rec)
			}
		}()

		if err := task(); err != nil {
			b.log.Errorf("background task: %v", err)
		}
	}()
}

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
		return fmt.Errorf("background tasks still running: %w", ctx.Err())
	}
}
