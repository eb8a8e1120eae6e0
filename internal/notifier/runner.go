package notifier

import (
	"context"
	"errors"

	"barberline/pkg/kafka"
	"barberline/pkg/logger"

	"golang.org/x/sync/errgroup"
)

type consumer interface {
	Start(ctx context.Context) error
	Close() error
}

// Runner drives a set of consumers until Stop is called.
type Runner struct {
	consumers []consumer
	log       *logger.Logger
	cancel    context.CancelFunc
	done      chan error
}

func NewRunner(log *logger.Logger, consumers ...*kafka.Consumer) *Runner {
	r := &Runner{log: log}
	for _, c := range consumers {
		r.consumers = append(r.consumers, c)
	}
	return r
}

func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan error, 1)

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range r.consumers {
		g.Go(func() error {
			err := c.Start(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	go func() {
		r.done <- g.Wait()
	}()
}

// Stop cancels consumption, waits for in-flight messages up to ctx and
// closes every consumer.
func (r *Runner) Stop(ctx context.Context) {
	if r.cancel == nil {
		return
	}
	r.cancel()

	select {
	case err := <-r.done:
		if err != nil {
			r.log.Error("Consumer stopped with error", "error", err)
		}
	case <-ctx.Done():
		r.log.Warn("Timed out waiting for consumers to stop")
	}

	for _, c := range r.consumers {
		if err := c.Close(); err != nil {
			r.log.Error("Failed to close consumer", "error", err)
		}
	}
}
