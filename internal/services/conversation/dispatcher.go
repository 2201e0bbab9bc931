package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/transport"
)

// Dispatcher serialises events per person. Each person gets a FIFO queue
// drained by its own goroutine, which exits once the queue is empty. Events
// of different people are handled concurrently.
type Dispatcher struct {
	handler transport.Handler
	ctx     context.Context
	logger  *slog.Logger

	mu     sync.Mutex
	queues map[model.PersonID][]transport.Event
	wg     sync.WaitGroup
}

// Ensure Dispatcher implements the interface
var _ transport.Handler = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher. Events are handled with ctx rather
// than the context they were submitted with, so an inbound request ending
// does not abort the handling it queued.
func NewDispatcher(ctx context.Context, handler transport.Handler, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handler: handler,
		ctx:     ctx,
		logger:  logger.With(slog.String("component", "dispatcher")),
		queues:  make(map[model.PersonID][]transport.Event),
	}
}

// Handle queues the event behind earlier events of the same person
func (d *Dispatcher) Handle(_ context.Context, event transport.Event) {
	d.Dispatch(event)
}

// Dispatch queues the event behind earlier events of the same person
func (d *Dispatcher) Dispatch(event transport.Event) {
	id := event.PersonID()

	d.mu.Lock()
	queue, running := d.queues[id]
	d.queues[id] = append(queue, event)
	if !running {
		d.wg.Add(1)
		go d.drain(id)
	}
	d.mu.Unlock()
}

// Wait blocks until every queued event has been handled
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) drain(id model.PersonID) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.queues[id]
		if len(queue) == 0 {
			delete(d.queues, id)
			d.mu.Unlock()
			return
		}
		event := queue[0]
		d.queues[id] = queue[1:]
		d.mu.Unlock()

		d.handle(id, event)
	}
}

func (d *Dispatcher) handle(id model.PersonID, event transport.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while handling event",
				slog.Int64("person_id", int64(id)),
				slog.Any("panic", r),
			)
		}
	}()
	d.handler.Handle(d.ctx, event)
}
