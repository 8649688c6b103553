package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/snaptrace/snaptrace/internal/stacktree"
	"github.com/snaptrace/snaptrace/internal/trace"
)

// simulateWorkload keeps a rotating population of traces in the registry so
// the snapshot endpoints have something to capture when the service runs
// outside an instrumented process.
func (e *environment) simulateWorkload(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go e.runSimulatedTrace(ctx)
		}
	}
}

func (e *environment) runSimulatedTrace(ctx context.Context) {
	id := uuid.New().String()
	t := trace.New(id, time.Now(), time.Now().UnixNano(),
		trace.MessageOf("GET /api/checkout", nil))
	t.SetAttribute("http.method", "GET")
	t.SetAttribute("http.path", "/api/checkout")
	e.registry.Register(t)

	t.StartSpan(time.Now().UnixNano(), trace.MessageOf("select inventory", map[string]interface{}{
		"rows": 42,
	}))
	sleepCtx(ctx, time.Duration(rand.Intn(50)+10)*time.Millisecond)
	t.CoarseProfile().AddSample([]stacktree.Frame{
		{Text: "main.handleCheckout(checkout.go:41)", MetricNames: []string{"http request"}},
		{Text: "store.SelectInventory(store.go:118)", MetricNames: []string{"db query"}},
	}, "runnable")
	t.EndSpan(time.Now().UnixNano())

	s := t.StartSpan(time.Now().UnixNano(), trace.MessageOf("reserve items", nil))
	sleepCtx(ctx, time.Duration(rand.Intn(100)+20)*time.Millisecond)
	if rand.Intn(10) == 0 {
		s.SetErrorMessage(&trace.ErrorMessage{
			Text: "reservation conflict",
			Detail: map[string]interface{}{
				"retryable": true,
			},
		})
	}
	t.CoarseProfile().AddSample([]stacktree.Frame{
		{Text: "main.handleCheckout(checkout.go:41)", MetricNames: []string{"http request"}},
		{Text: "store.ReserveItems(store.go:164)", MetricNames: []string{"db query", "db query"}},
	}, "waiting")
	t.EndSpan(time.Now().UnixNano())

	end := time.Now().UnixNano()
	t.AddMetric(trace.Metric{Name: "http request", Total: end - t.StartTick(), Min: end - t.StartTick(), Max: end - t.StartTick(), Count: 1})
	t.AddMetric(trace.Metric{Name: "db query", Total: (end - t.StartTick()) / 2, Min: 1e6, Max: (end - t.StartTick()) / 2, Count: 2})
	t.End(end)

	// keep completed traces reachable for a while, then retire them
	sleepCtx(ctx, 30*time.Second)
	e.registry.Remove(id)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
