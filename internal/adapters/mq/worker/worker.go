// Package worker implements the write pump: a pool of workers draining the
// op queue into the record store.
//
// Writes are parallelized per entity, but each worker pauses for a fixed
// delay between successive writes so a hosted store does not throttle the
// import. A failed write is recorded and the pump moves on; partial
// failures surface in the run summary, not as an abort.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/veloclub/sortie/internal/adapters/mq/queue"
	"github.com/veloclub/sortie/internal/domain/model"
	"github.com/veloclub/sortie/pkg/logger"
	"github.com/veloclub/sortie/pkg/metrics"
)

// Default pump configuration constants.
const (
	defaultWorkerCount = 4
	defaultWriteDelay  = 250 * time.Millisecond
	drainPollInterval  = 10 * time.Millisecond
	workerStopTimeout  = 5 * time.Second
)

// Op is what workers read off the queue.
type Op = model.WriteOp

// Applier applies a single op against the record store.
type Applier interface {
	Apply(ctx context.Context, op Op) error
}

// Queue defines how workers receive ops.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Op
}

// Result summarizes one drained batch.
type Result struct {
	Applied int
	Failed  map[model.OpKind]int
	Errors  []string
}

// Pump runs the worker pool and tracks in-flight ops so callers can order
// write phases (all attendance rewrites drain before member updates).
type Pump struct {
	workerCount int
	writeDelay  time.Duration
	queue       queue.Queue
	applier     Applier
	logger      logger.Logger

	pending atomic.Int64

	mu      sync.Mutex
	applied int
	failed  map[model.OpKind]int
	errs    []string

	stop chan struct{}
	done chan struct{}
}

// Option applies a configuration option to the Pump.
type Option func(*Pump)

// WithWorkerCount sets the number of concurrent writers.
func WithWorkerCount(n int) Option {
	return func(p *Pump) {
		if n > 0 {
			p.workerCount = n
		}
	}
}

// WithWriteDelay sets the pause each worker takes between successive writes.
func WithWriteDelay(d time.Duration) Option {
	return func(p *Pump) {
		if d >= 0 {
			p.writeDelay = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pump) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPump creates a write pump reading from q and applying via a.
func NewPump(q queue.Queue, a Applier, opts ...Option) *Pump {
	p := &Pump{
		workerCount: defaultWorkerCount,
		writeDelay:  defaultWriteDelay,
		queue:       q,
		applier:     a,
		failed:      make(map[model.OpKind]int),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger.Get().Named("write-pump"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. They run until ctx is canceled or Stop is
// called.
func (p *Pump) Start(ctx context.Context) {
	metrics.UpdateWorkerCount(p.workerCount)
	var wg sync.WaitGroup
	ch := p.queue.Dequeue(ctx)
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			p.run(ctx, name, ch)
		}("writer-" + strconv.Itoa(i))
	}
	go func() {
		wg.Wait()
		close(p.done)
	}()
}

// Stop signals workers to finish and waits briefly for them.
func (p *Pump) Stop() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	select {
	case <-p.done:
	case <-time.After(workerStopTimeout):
		p.logger.Warn(context.Background(), "write pump stop timed out")
	}
}

// Submit enqueues an op for application. Returns false on backpressure.
func (p *Pump) Submit(ctx context.Context, op Op) bool {
	if !p.queue.Enqueue(ctx, op) {
		return false
	}
	p.pending.Add(1)
	return true
}

// Drain blocks until every submitted op has been applied, then returns the
// batch result and resets the counters for the next phase.
func (p *Pump) Drain(ctx context.Context) (Result, error) {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for p.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return p.takeResult(), ctx.Err()
		case <-ticker.C:
		}
	}
	return p.takeResult(), nil
}

func (p *Pump) takeResult() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := Result{Applied: p.applied, Failed: p.failed, Errors: p.errs}
	p.applied = 0
	p.failed = make(map[model.OpKind]int)
	p.errs = nil
	return res
}

func (p *Pump) run(ctx context.Context, name string, ch <-chan Op) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case op, ok := <-ch:
			if !ok {
				return
			}
			p.apply(ctx, name, op)
			// Pace successive calls so the provider does not throttle.
			if p.writeDelay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.writeDelay):
				}
			}
		}
	}
}

func (p *Pump) apply(ctx context.Context, name string, op Op) {
	defer p.pending.Add(-1)

	start := time.Now()
	err := p.applier.Apply(ctx, op)
	metrics.RecordStoreWriteLatency(float64(time.Since(start).Milliseconds()))

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		metrics.RecordStoreWriteError(string(op.Kind))
		p.failed[op.Kind]++
		p.errs = append(p.errs, fmt.Sprintf("%s: %v", op.Label(), err))
		p.logger.Error(ctx, "store write failed",
			logger.String("worker", name),
			logger.String("op", op.Label()),
			logger.Error(err),
		)
		return
	}
	metrics.RecordStoreWrite(string(op.Kind))
	p.applied++
}
