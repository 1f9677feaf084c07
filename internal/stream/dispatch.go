package stream

import (
	"log/slog"
	"sync"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/message"
	"github.com/kode4food/caravan/topic"
)

type (
	// dispatcher runs a session's sink callbacks sequentially on its own
	// goroutine, in the order they were enqueued. The final task is the
	// last one it runs
	dispatcher struct {
		prod     topic.Producer[task]
		cons     topic.Consumer[task]
		done     chan struct{}
		mu       sync.Mutex
		finished bool
	}

	task struct {
		fn    func()
		final bool
	}
)

func newDispatcher() *dispatcher {
	queue := caravan.NewTopic[task]()
	d := &dispatcher{
		prod: queue.NewProducer(),
		cons: queue.NewConsumer(),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue schedules fn. Calls made after Finish are dropped
func (d *dispatcher) Enqueue(fn func()) {
	d.send(task{fn: fn})
}

// Finish schedules fn as the final task
func (d *dispatcher) Finish(fn func()) {
	d.send(task{fn: fn, final: true})
}

// Done is closed once the final task has run
func (d *dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *dispatcher) send(t task) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.finished {
		return
	}
	d.finished = t.final
	message.Send(d.prod, t)
}

func (d *dispatcher) run() {
	defer close(d.done)
	defer func() {
		d.prod.Close()
		d.cons.Close()
	}()

	for {
		t, ok := <-d.cons.Receive()
		if !ok {
			return
		}
		d.runTask(t.fn)
		if t.final {
			return
		}
	}
}

func (d *dispatcher) runTask(fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Stream sink panic",
				slog.Any("panic", r))
		}
	}()
	fn()
}
