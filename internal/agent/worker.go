package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/ferdousbhai/llm-terminal/internal/domain"
)

// ErrBusy is returned when a prompt is submitted while a run is in
// flight. At most one run per conversation at a time.
var ErrBusy = errors.New("a request is already running")

// Sink receives stream events on the worker goroutine. Implementations
// must hand them to the UI thread safely.
type Sink func(domain.StreamEvent)

type job struct {
	prompt string
	sink   Sink
}

// Worker serializes prompt runs through a single-slot queue feeding one
// goroutine, preserving the single-writer-to-history invariant.
type Worker struct {
	agent *Agent
	jobs  chan job
	quit  chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool

	wg sync.WaitGroup
}

func NewWorker(agent *Agent) *Worker {
	w := &Worker{
		agent: agent,
		jobs:  make(chan job, 1),
		quit:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Submit queues one prompt. Returns ErrBusy if a run is in flight or
// queued.
func (w *Worker) Submit(prompt string, sink Sink) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrBusy
	}

	select {
	case w.jobs <- job{prompt: prompt, sink: sink}:
		w.running = true
		return nil
	default:
		return ErrBusy
	}
}

// Busy reports whether a run is in flight.
func (w *Worker) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stop cancels the in-flight run, if any. In-flight vendor calls abort
// through their request contexts.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
}

// Close stops the worker goroutine after cancelling any active run.
func (w *Worker) Close() {
	w.Stop()
	close(w.quit)
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.quit:
			return
		case j := <-w.jobs:
			w.process(j)
		}
	}
}

func (w *Worker) process(j job) {
	ctx, cancel := context.WithCancel(context.Background())
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	defer func() {
		cancel()
		w.mu.Lock()
		w.cancel = nil
		w.running = false
		w.mu.Unlock()
	}()

	events, err := w.agent.Run(ctx, j.prompt)
	if err != nil {
		j.sink(domain.StreamEvent{Type: domain.StreamEventError, Error: err})
		j.sink(domain.StreamEvent{Type: domain.StreamEventDone, Done: true})
		return
	}

	for event := range events {
		j.sink(event)
	}
}
