package trace

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/snaptrace/snaptrace/internal/stacktree"
)

type (
	// Attribute is one entry of the ordered trace attribute map.
	Attribute struct {
		Key   string
		Value string
	}

	// Trace is a tree of timed operations produced by one execution. It is
	// mutated by its owning goroutine only; readers take snapshot views
	// through the accessors and never block the owner. Tick fields are read
	// through atomics so a concurrent capture sees a well-defined value.
	Trace struct {
		id        string
		start     time.Time
		startTick int64

		endTick    atomic.Int64
		stuck      atomic.Bool
		background atomic.Bool
		fine       atomic.Bool

		mu         sync.Mutex
		userID     string
		attributes []Attribute
		spans      []*Span
		open       []*Span
		metrics    []Metric

		coarseProfile *stacktree.Tree
		fineProfile   *stacktree.Tree
	}
)

// New starts a trace. The root span is created immediately with the trace's
// own start tick.
func New(id string, start time.Time, startTick int64, root MessageSupplier) *Trace {
	t := &Trace{
		id:            id,
		start:         start,
		startTick:     startTick,
		coarseProfile: &stacktree.Tree{},
		fineProfile:   &stacktree.Tree{},
	}
	rootSpan := &Span{
		Index:           0,
		ParentIndex:     -1,
		NestingLevel:    0,
		StartTick:       startTick,
		MessageSupplier: root,
	}
	t.spans = append(t.spans, rootSpan)
	t.open = append(t.open, rootSpan)
	return t
}

func (t *Trace) ID() string           { return t.id }
func (t *Trace) Start() time.Time     { return t.start }
func (t *Trace) StartTick() int64     { return t.startTick }
func (t *Trace) EndTick() int64       { return t.endTick.Load() }
func (t *Trace) IsCompleted() bool    { return t.endTick.Load() != 0 }
func (t *Trace) IsStuck() bool        { return t.stuck.Load() }
func (t *Trace) IsBackground() bool   { return t.background.Load() }
func (t *Trace) IsFine() bool         { return t.fine.Load() }
func (t *Trace) SetStuck(v bool)      { t.stuck.Store(v) }
func (t *Trace) SetBackground(v bool) { t.background.Store(v) }
func (t *Trace) SetFine(v bool)       { t.fine.Store(v) }

// End marks the whole trace as completed at endTick.
func (t *Trace) End(endTick int64) {
	t.endTick.Store(endTick)
}

// IsError reports whether the root span carries an error message.
func (t *Trace) IsError() bool {
	return t.RootSpan().ErrorMessage() != nil
}

func (t *Trace) RootSpan() *Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spans[0]
}

// StartSpan opens a nested span under the innermost open span.
func (t *Trace) StartSpan(startTick int64, ms MessageSupplier) *Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	parent := t.open[len(t.open)-1]
	s := &Span{
		Offset:          startTick - t.startTick,
		Index:           len(t.spans),
		ParentIndex:     parent.Index,
		NestingLevel:    parent.NestingLevel + 1,
		StartTick:       startTick,
		MessageSupplier: ms,
	}
	t.spans = append(t.spans, s)
	t.open = append(t.open, s)
	return s
}

// EndSpan closes the innermost open span. The root span stays open until the
// trace itself ends.
func (t *Trace) EndSpan(endTick int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.open) <= 1 {
		return
	}
	s := t.open[len(t.open)-1]
	t.open = t.open[:len(t.open)-1]
	s.End(endTick)
}

// Spans returns a snapshot of the ordered span list. Spans appended after the
// snapshot is taken are not included.
func (t *Trace) Spans() []*Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	spans := make([]*Span, len(t.spans))
	copy(spans, t.spans)
	return spans
}

func (t *Trace) SetUserID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.userID = id
}

func (t *Trace) UserID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userID
}

// SetAttribute appends or replaces an attribute, preserving insertion order.
func (t *Trace) SetAttribute(key, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.attributes {
		if t.attributes[i].Key == key {
			t.attributes[i].Value = value
			return
		}
	}
	t.attributes = append(t.attributes, Attribute{Key: key, Value: value})
}

func (t *Trace) Attributes() []Attribute {
	t.mu.Lock()
	defer t.mu.Unlock()
	attributes := make([]Attribute, len(t.attributes))
	copy(attributes, t.attributes)
	return attributes
}

// AddMetric records one aggregated per-metric timing snapshot.
func (t *Trace) AddMetric(m Metric) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics = append(t.metrics, m)
}

func (t *Trace) Metrics() []Metric {
	t.mu.Lock()
	defer t.mu.Unlock()
	metrics := make([]Metric, len(t.metrics))
	copy(metrics, t.metrics)
	return metrics
}

func (t *Trace) CoarseProfile() *stacktree.Tree { return t.coarseProfile }
func (t *Trace) FineProfile() *stacktree.Tree   { return t.fineProfile }
