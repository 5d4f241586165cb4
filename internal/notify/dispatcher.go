package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultSendTimeout = 30 * time.Second

type Sink interface {
	Name() string
	Send(ctx context.Context, event Event) error
}

// Dispatcher queues committed ledger events on a worker pool and fans each
// one out to every sink. Callers never wait on a sink.
type Dispatcher struct {
	pool    WorkerPoolI
	sinks   []Sink
	timeout time.Duration
	now     func() time.Time
}

func NewDispatcher(pool WorkerPoolI, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Dispatcher{
		pool:    pool,
		sinks:   sinks,
		timeout: timeout,
		now:     time.Now,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, events ...domain.LedgerEvent) {
	if len(d.sinks) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	for _, le := range events {
		event := NewEvent(le, d.now())
		err := d.pool.AddTask(ctx, func() error {
			return d.dispatch(detached, event)
		})
		if err != nil {
			zap.L().Warn("notification dropped",
				zap.String("event", string(event.Type)),
				zap.Int("entry_id", event.EntryID),
				zap.Error(err))
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, event Event) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var g errgroup.Group
	for _, sink := range d.sinks {
		g.Go(func() error {
			if err := sink.Send(ctx, event); err != nil {
				return fmt.Errorf("%s sink, event %s: %w", sink.Name(), event.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}
