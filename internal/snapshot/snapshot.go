package snapshot

import (
	"bytes"
	"sort"

	gojson "github.com/goccy/go-json"

	"github.com/snaptrace/snaptrace/internal/bytestream"
	"github.com/snaptrace/snaptrace/internal/jsonutil"
	"github.com/snaptrace/snaptrace/internal/tick"
	"github.com/snaptrace/snaptrace/internal/trace"
)

// targetChunkSize is the soft threshold at which the streaming encoders flush
// their accumulated buffer as one chunk.
const targetChunkSize = 8192

type (
	// Snapshot is a consistent point-in-time view of one trace. Scalar
	// sections are pre-rendered strings; the span list and the two profile
	// trees are deferred byte streams. A Snapshot is built once, never
	// mutated, and its streams are consumed exactly once.
	Snapshot struct {
		ID          string
		Start       int64
		Duration    int64
		Stuck       bool
		Completed   bool
		Background  bool
		Description string

		Attributes  string
		UserID      string
		ErrorText   string
		ErrorDetail string
		Exception   string
		Metrics     string

		Spans                 bytestream.Stream
		CoarseMergedStackTree bytestream.Stream
		FineMergedStackTree   bytestream.Stream
	}
)

// FromTrace assembles a snapshot of t at captureTick. The capture tick is
// fixed here once and threaded through every sub-encoder, so all duration
// fields in the output reflect the same instant even though the trace keeps
// advancing. With includeDetail false only the scalar sections are built.
func FromTrace(t *trace.Trace, captureTick int64, includeDetail bool) (*Snapshot, error) {
	s := Snapshot{
		ID:    t.ID(),
		Start: t.Start().UnixMilli(),
	}
	endTick := t.EndTick()
	s.Duration, s.Completed = tick.Normalize(t.StartTick(), endTick, captureTick)
	s.Stuck = t.IsStuck() && endTick == 0
	s.Background = t.IsBackground()

	root := t.RootSpan()
	s.Description = messageText(root.MessageSupplier.Get())
	if errMsg := root.ErrorMessage(); errMsg != nil {
		s.ErrorText = errMsg.Text
		if errMsg.Detail != nil {
			detail, err := jsonutil.MarshalDetail(errMsg.Detail)
			if err != nil {
				return nil, err
			}
			s.ErrorDetail = detail
		}
		if errMsg.Exception != nil {
			exception, err := exceptionJSON(errMsg.Exception)
			if err != nil {
				return nil, err
			}
			s.Exception = exception
		}
	}
	if attributes := t.Attributes(); len(attributes) > 0 {
		s.Attributes = attributesJSON(attributes)
	}
	s.UserID = t.UserID()

	metrics, err := metricsJSON(t.Metrics())
	if err != nil {
		return nil, err
	}
	s.Metrics = metrics

	if includeDetail {
		s.Spans = newSpanStream(t.Spans(), captureTick)
		s.CoarseMergedStackTree = newStackTreeStream(t.CoarseProfile())
		s.FineMergedStackTree = newStackTreeStream(t.FineProfile())
	}
	return &s, nil
}

// metricsJSON pre-renders the per-metric timing snapshots sorted by total
// duration descending, ties broken by original order.
func metricsJSON(metrics []trace.Metric) (string, error) {
	if len(metrics) == 0 {
		return "", nil
	}
	sort.SliceStable(metrics, func(i, j int) bool {
		return metrics[i].Total > metrics[j].Total
	})
	b, err := gojson.Marshal(metrics)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// attributesJSON renders the ordered attribute map, preserving insertion
// order.
func attributesJSON(attributes []trace.Attribute) string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range attributes {
		if i > 0 {
			buf.WriteByte(',')
		}
		jsonutil.AppendString(&buf, a.Key)
		buf.WriteByte(':')
		jsonutil.AppendString(&buf, a.Value)
	}
	buf.WriteByte('}')
	return buf.String()
}
