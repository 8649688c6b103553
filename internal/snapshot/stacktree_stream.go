package snapshot

import (
	"bytes"
	"strconv"

	"github.com/snaptrace/snaptrace/internal/bytestream"
	"github.com/snaptrace/snaptrace/internal/errorutil"
	"github.com/snaptrace/snaptrace/internal/jsonutil"
	"github.com/snaptrace/snaptrace/internal/stacktree"
)

type treeOp int

const (
	opCloseObject treeOp = iota
	opCloseArray
	opPopMetricName
)

type (
	// treeItem is one entry of the explicit work stack: a node to visit when
	// node is set, a writer op otherwise.
	treeItem struct {
		node *stacktree.Node
		op   treeOp
	}

	// stackTreeStream serializes a profile tree of unbounded depth without
	// native recursion. A single work stack interleaves node visits with
	// deferred closing tokens, and a side metric-name stack tracks the chain
	// of metric names along the current root-to-node path. Every visit
	// strictly shrinks the remaining subtree and every pop shrinks one of
	// the stacks, so the traversal terminates with both stacks empty.
	stackTreeStream struct {
		toVisit     []treeItem
		metricNames []string
		buf         bytes.Buffer
		needComma   bool
	}
)

// newStackTreeStream returns a stream over the merged tree, or nil if nothing
// was sampled.
func newStackTreeStream(tree *stacktree.Tree) bytestream.Stream {
	if tree == nil {
		return nil
	}
	root := tree.Root()
	if root == nil {
		return nil
	}
	s := stackTreeStream{toVisit: []treeItem{{node: root}}}
	s.buf.Grow(2 * targetChunkSize)
	return &s
}

func (s *stackTreeStream) HasNext() bool {
	return len(s.toVisit) > 0
}

func (s *stackTreeStream) Next() ([]byte, error) {
	if len(s.toVisit) == 0 {
		return nil, errorutil.ErrExhaustedStream
	}
	for s.buf.Len() < targetChunkSize && len(s.toVisit) > 0 {
		s.writeNext()
	}
	chunk := make([]byte, s.buf.Len())
	copy(chunk, s.buf.Bytes())
	s.buf.Reset()
	return chunk, nil
}

func (s *stackTreeStream) writeNext() {
	item := s.toVisit[len(s.toVisit)-1]
	s.toVisit = s.toVisit[:len(s.toVisit)-1]
	if item.node == nil {
		switch item.op {
		case opCloseObject:
			s.buf.WriteByte('}')
			s.needComma = true
		case opCloseArray:
			s.buf.WriteByte(']')
		case opPopMetricName:
			s.metricNames = s.metricNames[:len(s.metricNames)-1]
		}
		return
	}

	node := item.node
	if s.needComma {
		s.buf.WriteByte(',')
		s.needComma = false
	}
	s.buf.WriteString(`{"stackTraceElement":`)
	// the object is closed after all of its children, however many there are
	s.push(treeItem{op: opCloseObject})
	if node.IsSyntheticRoot() {
		jsonutil.AppendString(&s.buf, stacktree.SyntheticRootFrame)
	} else {
		jsonutil.AppendString(&s.buf, node.Frame)
		for _, name := range node.MetricNames {
			// filter out successive duplicates which are common from weaving
			// groups of overloaded methods
			if n := len(s.metricNames); n == 0 || name != s.metricNames[n-1] {
				s.metricNames = append(s.metricNames, name)
				// removed exactly when the traversal backtracks past this node
				s.push(treeItem{op: opPopMetricName})
			}
		}
		s.buf.WriteString(`,"sampleCount":`)
		s.buf.WriteString(strconv.FormatInt(node.SampleCount, 10))
		if node.IsLeaf() {
			s.buf.WriteString(`,"leafThreadState":`)
			jsonutil.AppendString(&s.buf, node.LeafThreadState)
			s.buf.WriteString(`,"metricNames":[`)
			for i, name := range s.metricNames {
				if i > 0 {
					s.buf.WriteByte(',')
				}
				jsonutil.AppendString(&s.buf, name)
			}
			s.buf.WriteByte(']')
		}
	}
	if len(node.Children) > 0 {
		s.buf.WriteString(`,"childNodes":[`)
		s.push(treeItem{op: opCloseArray})
		// children pushed in reverse so LIFO popping visits them in order
		for i := len(node.Children) - 1; i >= 0; i-- {
			s.push(treeItem{node: node.Children[i]})
		}
	}
}

func (s *stackTreeStream) push(item treeItem) {
	s.toVisit = append(s.toVisit, item)
}
