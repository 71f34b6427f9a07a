// Forest reconstruction from flat span records
// Groups records by trace id and links children to parents for display
package spans

import (
	"log/slog"
	"slices"
	"strings"
)

// Tree holds the records of one trace with parent-child links.
type Tree struct {
	TraceID  string
	Roots    []*Node
	AllNodes []*Node
}

// Node wraps a Record with its children.
type Node struct {
	Record   Record
	Children []*Node
}

// BuildForest reconstructs one tree per trace id, ordered by trace id.
// Records whose parent is absent from the capture become additional roots.
// Parent links that would close a cycle are dropped, so the result is
// always a forest. logger may be nil.
func BuildForest(records []Record, logger *slog.Logger) []*Tree {
	if logger == nil {
		logger = discardLogger()
	}

	byTrace := make(map[string][]Record)
	var order []string
	for _, r := range records {
		if _, seen := byTrace[r.TraceID]; !seen {
			order = append(order, r.TraceID)
		}
		byTrace[r.TraceID] = append(byTrace[r.TraceID], r)
	}
	slices.Sort(order)

	trees := make([]*Tree, 0, len(order))
	for _, traceID := range order {
		trees = append(trees, buildTree(traceID, byTrace[traceID], logger))
	}
	return trees
}

func buildTree(traceID string, records []Record, logger *slog.Logger) *Tree {
	nodes := make(map[string]*Node, len(records))
	allNodes := make([]*Node, 0, len(records))
	for _, r := range records {
		node := &Node{Record: r}
		if r.ID != "" {
			nodes[r.ID] = node
		}
		allNodes = append(allNodes, node)
	}

	// parentOf follows links already made so cycles can be detected.
	parentOf := make(map[*Node]*Node, len(allNodes))
	createsCycle := func(child, parent *Node) bool {
		for cur := parent; cur != nil; cur = parentOf[cur] {
			if cur == child {
				return true
			}
		}
		return false
	}

	var roots []*Node
	for _, node := range allNodes {
		pid := node.Record.ParentID
		if pid == "" {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[pid]
		if !ok {
			logger.Warn("parent not found in capture, treating span as root",
				"trace_id", traceID, "span_id", node.Record.ID, "parent_id", pid)
			roots = append(roots, node)
			continue
		}
		if createsCycle(node, parent) {
			logger.Warn("cyclic parent reference, treating span as root",
				"trace_id", traceID, "span_id", node.Record.ID, "parent_id", pid)
			roots = append(roots, node)
			continue
		}
		parentOf[node] = parent
		parent.Children = append(parent.Children, node)
	}

	return &Tree{
		TraceID:  traceID,
		Roots:    roots,
		AllNodes: allNodes,
	}
}

// Walk visits every node depth-first, passing its depth below the root.
func (t *Tree) Walk(fn func(n *Node, depth int)) {
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		fn(n, depth)
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	for _, r := range t.Roots {
		visit(r, 0)
	}
}

// Render draws the tree as indented lines, one span per line.
func (t *Tree) Render() string {
	var b strings.Builder
	t.Walk(func(n *Node, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.Record.Name)
		b.WriteString(" [")
		b.WriteString(n.Record.Kind.String())
		b.WriteString("]")
		if n.Record.HasTiming() {
			b.WriteString(" ")
			b.WriteString(n.Record.EndTime.Sub(n.Record.StartTime).String())
		}
		b.WriteString("\n")
	})
	return b.String()
}
