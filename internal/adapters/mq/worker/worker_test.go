package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/veloclub/sortie/internal/adapters/mq/queue"
	"github.com/veloclub/sortie/internal/adapters/mq/worker"
	"github.com/veloclub/sortie/internal/domain/model"
	"github.com/veloclub/sortie/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

// countingApplier records every op it sees and fails the ones whose label
// matches failName.
type countingApplier struct {
	mu       sync.Mutex
	applied  []worker.Op
	failName string
}

func (a *countingApplier) Apply(_ context.Context, op worker.Op) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, op)
	if a.failName != "" && op.Member != nil && op.Member.Name == a.failName {
		return errors.New("simulated write failure")
	}
	return nil
}

func (a *countingApplier) seen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.applied)
}

func memberCreate(name string) worker.Op {
	return worker.Op{
		Kind:   model.OpCreateMember,
		Member: &model.Member{ID: name, Name: name, Group: "Route"},
	}
}

func TestPumpDrain(t *testing.T) {
	convey.Convey("Given a running pump with instant writes", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue()
		applier := &countingApplier{}
		pump := worker.NewPump(q, applier,
			worker.WithWorkerCount(2),
			worker.WithWriteDelay(0),
		)
		pump.Start(ctx)
		defer pump.Stop()

		convey.Convey("When a batch of ops is submitted and drained", func() {
			for _, name := range []string{"Alice Martin", "Bob Durand", "Chloé Petit"} {
				convey.So(pump.Submit(ctx, memberCreate(name)), convey.ShouldBeTrue)
			}
			res, err := pump.Drain(ctx)

			convey.Convey("Then every op is applied exactly once", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Applied, convey.ShouldEqual, 3)
				convey.So(res.Failed, convey.ShouldBeEmpty)
				convey.So(res.Errors, convey.ShouldBeEmpty)
				convey.So(applier.seen(), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When one op in the batch fails", func() {
			applier.failName = "Bob Durand"
			for _, name := range []string{"Alice Martin", "Bob Durand", "Chloé Petit"} {
				pump.Submit(ctx, memberCreate(name))
			}
			res, err := pump.Drain(ctx)

			convey.Convey("Then the failure is counted per kind and the rest succeed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Applied, convey.ShouldEqual, 2)
				convey.So(res.Failed[model.OpCreateMember], convey.ShouldEqual, 1)
				convey.So(res.Errors, convey.ShouldHaveLength, 1)
				convey.So(res.Errors[0], convey.ShouldContainSubstring, "Bob Durand")
			})
		})

		convey.Convey("When two batches are drained back to back", func() {
			pump.Submit(ctx, memberCreate("Alice Martin"))
			first, err := pump.Drain(ctx)
			convey.So(err, convey.ShouldBeNil)

			pump.Submit(ctx, memberCreate("Bob Durand"))
			pump.Submit(ctx, memberCreate("Chloé Petit"))
			second, err := pump.Drain(ctx)

			convey.Convey("Then counters reset between phases", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(first.Applied, convey.ShouldEqual, 1)
				convey.So(second.Applied, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the batch is empty", func() {
			res, err := pump.Drain(ctx)

			convey.Convey("Then drain returns immediately with nothing to report", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Applied, convey.ShouldEqual, 0)
				convey.So(res.Failed, convey.ShouldBeEmpty)
			})
		})
	})
}

func TestPumpBackpressure(t *testing.T) {
	convey.Convey("Given a pump over a tiny queue with no workers started", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(2), queue.WithBufferSize(2))
		pump := worker.NewPump(q, &countingApplier{}, worker.WithWriteDelay(0))

		convey.Convey("When the queue fills up", func() {
			convey.So(pump.Submit(ctx, memberCreate("Alice Martin")), convey.ShouldBeTrue)
			convey.So(pump.Submit(ctx, memberCreate("Bob Durand")), convey.ShouldBeTrue)

			convey.Convey("Then further submissions are rejected", func() {
				convey.So(pump.Submit(ctx, memberCreate("Chloé Petit")), convey.ShouldBeFalse)
			})
		})
	})
}

func TestPumpStop(t *testing.T) {
	convey.Convey("Given a running pump", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue()
		applier := &countingApplier{}
		pump := worker.NewPump(q, applier, worker.WithWriteDelay(0))
		pump.Start(ctx)

		pump.Submit(ctx, memberCreate("Alice Martin"))
		_, err := pump.Drain(ctx)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When the pump is stopped", func() {
			done := make(chan struct{})
			go func() {
				pump.Stop()
				close(done)
			}()

			convey.Convey("Then stop returns promptly and is idempotent", func() {
				select {
				case <-done:
				case <-time.After(2 * time.Second):
					t.Fatal("pump stop did not return")
				}
				pump.Stop()
			})
		})
	})
}

func TestPumpPacing(t *testing.T) {
	convey.Convey("Given a single worker with a throttle delay", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue()
		applier := &countingApplier{}
		pump := worker.NewPump(q, applier,
			worker.WithWorkerCount(1),
			worker.WithWriteDelay(30*time.Millisecond),
		)
		pump.Start(ctx)
		defer pump.Stop()

		convey.Convey("When three ops are drained", func() {
			start := time.Now()
			for _, name := range []string{"Alice Martin", "Bob Durand", "Chloé Petit"} {
				pump.Submit(ctx, memberCreate(name))
			}
			_, err := pump.Drain(ctx)

			convey.Convey("Then successive writes are paced apart", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(applier.seen(), convey.ShouldEqual, 3)
				convey.So(time.Since(start), convey.ShouldBeGreaterThanOrEqualTo, 60*time.Millisecond)
			})
		})
	})
}
