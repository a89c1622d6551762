package notify

import (
	"context"
	"log"
	"sync"

	"github.com/zulandar/changeboard/internal/events"
)

const queueSize = 100

// Publisher is an events.Observer that formats changes and hands them to a
// Notifier on a background goroutine, so request handlers never wait on chat
// APIs.
type Publisher struct {
	notifier Notifier
	baseURL  string
	queue    chan Event

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewPublisher returns a Publisher. Call Run to start delivery.
func NewPublisher(n Notifier, baseURL string) *Publisher {
	return &Publisher{
		notifier: n,
		baseURL:  baseURL,
		queue:    make(chan Event, queueSize),
		done:     make(chan struct{}),
	}
}

// Observe queues relevant changes. When the queue is full the change is
// dropped and logged.
func (p *Publisher) Observe(_ context.Context, ch events.Change) {
	if !Relevant(ch.Kind) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- FromChange(ch, p.baseURL):
	default:
		log.Printf("notify: queue full, dropping %s for %s", ch.Kind, ch.BcrNumber)
	}
}

// Run delivers queued events until ctx is cancelled or Close drains the
// queue.
func (p *Publisher) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-p.queue:
			if !ok {
				return
			}
			// Multi logs its own failures.
			_ = p.notifier.Notify(ctx, ev)
		}
	}
}

// Close stops accepting changes and waits for Run to drain the queue. Run
// must have been started.
func (p *Publisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
}
