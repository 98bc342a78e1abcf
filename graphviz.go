// graphviz.go — GraphViz rendering of the node graph and the live scopes.
//
// The scope is a plain data structure, so it is rendered here as a visitor
// concern: GenerateDot walks the graph from stop and start, then draws each
// live scope as a separate record cluster with edges into the nodes its
// names bind. Nothing in the symbol table knows about visualization.
package simple

import (
	"fmt"
	"sort"
	"strings"
)

// GenerateDot renders the whole compilation: every node reachable from stop
// or start, plus cur and the active scope stack. Output is deterministic
// (sorted by node id) so graphs diff cleanly across runs.
func GenerateDot(sea *Sea, cur *Scope, xScopes []*Scope) string {
	nodes := collectNodes(sea)

	var b strings.Builder
	b.WriteString("digraph simple {\n")
	b.WriteString("\trankdir=BT;\n")
	b.WriteString("\tordering=\"in\";\n")
	b.WriteString("\tconcentrate=\"true\";\n")

	// Nodes: control gets boxes, data gets ovals.
	b.WriteString("\tsubgraph cluster_Nodes {\n")
	for _, n := range nodes {
		shape := "oval"
		if n.IsCFG() {
			shape = "box"
		}
		fmt.Fprintf(&b, "\t\tn%d [label=\"%s\" shape=%s];\n", n.ID(), escapeDot(n.label()), shape)
	}
	b.WriteString("\t}\n")

	// Scopes: one record cluster per live scope, innermost frame last.
	scopes := liveScopes(cur, xScopes)
	for si, sc := range scopes {
		fmt.Fprintf(&b, "\tsubgraph cluster_Scope%d {\n", si)
		fmt.Fprintf(&b, "\t\tlabel=\"scope %d\";\n", si)
		for fi, f := range sc.frames {
			var cells []string
			for _, name := range f.names {
				cells = append(cells, fmt.Sprintf("<%s> %s", portName(name), escapeDot(name)))
			}
			fmt.Fprintf(&b, "\t\ts%d_%d [shape=record label=\"%s\"];\n", si, fi, strings.Join(cells, "|"))
		}
		b.WriteString("\t}\n")
	}

	// Use -> def edges; control edges drawn bold red like the usual SoN
	// renderings.
	for _, n := range nodes {
		for i := 0; i < n.NIns(); i++ {
			d := n.In(i)
			if d == nil || d.base().isDead() {
				continue
			}
			attr := ""
			if d.IsCFG() {
				attr = " [color=red]"
			}
			fmt.Fprintf(&b, "\tn%d -> n%d%s;\n", n.ID(), d.ID(), attr)
		}
	}

	// Scope binding edges, dashed.
	for si, sc := range scopes {
		for fi, f := range sc.frames {
			for _, name := range f.names {
				sl := f.vars[name]
				if sl.n == nil || sl.n.base().isDead() {
					continue
				}
				fmt.Fprintf(&b, "\ts%d_%d:%s -> n%d [style=dashed];\n",
					si, fi, portName(name), sl.n.ID())
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// Summary renders a one-line-per-return digest of the graph, for the REPL.
func Summary(stop *StopNode) string {
	var b strings.Builder
	rets := stop.Returns()
	if len(rets) == 0 {
		b.WriteString("no return\n")
		return b.String()
	}
	for _, r := range rets {
		fmt.Fprintf(&b, "return %s (type %s)\n", r.Data().label(), r.Data().Type().Str())
	}
	return b.String()
}

/* ---------- helpers ---------- */

// collectNodes gathers every live node reachable from stop or start along
// both def and use edges, sorted by id.
func collectNodes(sea *Sea) []Node {
	seen := map[int]Node{}
	var walk func(n Node)
	walk = func(n Node) {
		if n == nil || n.base().isDead() {
			return
		}
		if _, ok := seen[n.ID()]; ok {
			return
		}
		seen[n.ID()] = n
		for i := 0; i < n.NIns(); i++ {
			walk(n.In(i))
		}
		for i := 0; i < n.NOuts(); i++ {
			walk(n.Out(i))
		}
	}
	walk(sea.stop)
	walk(sea.start)

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, seen[id])
	}
	return out
}

// liveScopes dedups cur plus the visualization stack, dropping dead scopes.
func liveScopes(cur *Scope, xScopes []*Scope) []*Scope {
	var out []*Scope
	seen := map[*Scope]bool{}
	add := func(sc *Scope) {
		if sc == nil || sc.frames == nil || seen[sc] {
			return
		}
		seen[sc] = true
		out = append(out, sc)
	}
	for _, sc := range xScopes {
		add(sc)
	}
	add(cur)
	return out
}

// portName makes a record port id out of a variable name ('$' is not valid
// in a port).
func portName(name string) string {
	return strings.ReplaceAll(name, "$", "_")
}

func escapeDot(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "<", "\\<")
	s = strings.ReplaceAll(s, ">", "\\>")
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "{", "\\{")
	s = strings.ReplaceAll(s, "}", "\\}")
	return s
}
