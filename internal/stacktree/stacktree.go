package stacktree

import (
	"strings"
	"sync"
)

// SyntheticRootFrame is the placeholder label emitted for the synthetic root
// inserted when sampling observed multiple distinct root frames.
const SyntheticRootFrame = "<multiple root nodes>"

// syntheticFrameMarker tags wrapper frames woven into the call stack by the
// instrumentation. They carry no information for the user and are stripped
// from every serialized stack trace.
const syntheticFrameMarker = "$trace_metric$"

type (
	// Frame is one observed stack frame together with the metric names
	// attributed to it during sampling.
	Frame struct {
		Text        string
		MetricNames []string
	}

	// Node is one frame of the merged call tree. Children are ordered by
	// first observation. Depth is exactly the call-stack depth observed
	// during sampling, so it is unbounded.
	Node struct {
		Frame           string
		SampleCount     int64
		MetricNames     []string
		LeafThreadState string
		Children        []*Node

		synthetic bool
	}

	// Tree accumulates sampled call stacks. It is mutated by the sampling
	// goroutine only; readers take a detached copy through Root and never
	// observe later samples.
	Tree struct {
		mu    sync.Mutex
		roots []*Node
	}
)

func (n *Node) IsSyntheticRoot() bool {
	return n.synthetic
}

func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// AddSample merges one sampled stack, in root-to-leaf order, into the tree.
func (t *Tree) AddSample(stack []Frame, threadState string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	nodes := &t.roots
	var node *Node
	for _, f := range stack {
		var match *Node
		for _, child := range *nodes {
			if child.Frame == f.Text {
				match = child
				break
			}
		}
		if match == nil {
			match = &Node{
				Frame:       f.Text,
				MetricNames: append([]string(nil), f.MetricNames...),
			}
			*nodes = append(*nodes, match)
		} else {
			match.mergeMetricNames(f.MetricNames)
		}
		match.SampleCount++
		node = match
		nodes = &match.Children
	}
	if node != nil {
		node.LeafThreadState = threadState
	}
}

// Root returns the root node of the merged tree, wrapping multiple real roots
// in a synthetic one, or nil if nothing was sampled. The returned nodes are a
// deep copy taken under the lock, so callers may traverse them while sampling
// continues.
func (t *Tree) Root() *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch len(t.roots) {
	case 0:
		return nil
	case 1:
		return copyNodes(t.roots)[0]
	default:
		return &Node{Frame: SyntheticRootFrame, synthetic: true, Children: copyNodes(t.roots)}
	}
}

// copyNodes deep-copies a forest with an explicit work stack, since sampled
// stacks can be as deep as the deepest call stack ever observed.
func copyNodes(src []*Node) []*Node {
	type pendingCopy struct {
		src *Node
		dst *Node
	}
	dst := make([]*Node, len(src))
	var stack []pendingCopy
	for i, n := range src {
		dst[i] = &Node{}
		stack = append(stack, pendingCopy{src: n, dst: dst[i]})
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		p.dst.Frame = p.src.Frame
		p.dst.SampleCount = p.src.SampleCount
		p.dst.MetricNames = append([]string(nil), p.src.MetricNames...)
		p.dst.LeafThreadState = p.src.LeafThreadState
		p.dst.synthetic = p.src.synthetic
		if len(p.src.Children) > 0 {
			p.dst.Children = make([]*Node, len(p.src.Children))
			for i, child := range p.src.Children {
				p.dst.Children[i] = &Node{}
				stack = append(stack, pendingCopy{src: child, dst: p.dst.Children[i]})
			}
		}
	}
	return dst
}

func (n *Node) mergeMetricNames(names []string) {
	for _, name := range names {
		found := false
		for _, existing := range n.MetricNames {
			if existing == name {
				found = true
				break
			}
		}
		if !found {
			n.MetricNames = append(n.MetricNames, name)
		}
	}
}

// StripSyntheticFrames removes instrumentation-woven wrapper frames from a
// captured stack trace.
func StripSyntheticFrames(frames []string) []string {
	stripped := make([]string, 0, len(frames))
	for _, f := range frames {
		if strings.Contains(f, syntheticFrameMarker) {
			continue
		}
		stripped = append(stripped, f)
	}
	return stripped
}
