// sea.go — per-compilation context.
//
// Everything that was process-global in earlier designs lives here: the node
// id allocator, the start and stop nodes, the struct registry, the field
// alias counter, and the iterative peephole worklist. A Sea is created per
// parse and torn down with it, so independent compilations can run
// concurrently in one process.
package simple

// Sea owns one compilation's node graph.
type Sea struct {
	nodeID int

	start *StartNode
	stop  *StopNode

	structs     map[string]*TypeStruct
	structOrder []string
	aliasID     int

	work    *worklist
	noPeeps bool // suppress all peepholes; test hook
}

// NewSea builds a fresh compilation context. arg is the type bound for the
// single program argument.
func NewSea(arg Type) *Sea {
	s := &Sea{
		structs: map[string]*TypeStruct{},
		work:    newWorklist(),
		aliasID: 1, // aliases 0 and 1 are the control and argument slots
	}
	s.start = newStartNode(s, arg)
	s.start.typ = s.start.compute()
	s.stop = newStopNode(s)
	s.stop.typ = TypeBot
	return s
}

func (s *Sea) Start() *StartNode { return s.start }
func (s *Sea) Stop() *StopNode   { return s.stop }

// newAlias hands out the next memory color. The id doubles as the field's
// projection index in the start tuple.
func (s *Sea) newAlias() int {
	s.aliasID++
	return s.aliasID
}

// Struct looks up a declared struct type by name.
func (s *Sea) Struct(name string) *TypeStruct { return s.structs[name] }

// defineStruct interns a struct type; false if the name is taken.
func (s *Sea) defineStruct(ts *TypeStruct) bool {
	if _, dup := s.structs[ts.Name]; dup {
		return false
	}
	s.structs[ts.Name] = ts
	s.structOrder = append(s.structOrder, ts.Name)
	return true
}

// Find locates a live node by id, walking the graph from stop and start.
// Debug helper.
func (s *Sea) Find(id int) Node {
	seen := map[int]bool{}
	var walk func(n Node) Node
	walk = func(n Node) Node {
		if n == nil || n.base().isDead() || seen[n.ID()] {
			return nil
		}
		seen[n.ID()] = true
		if n.ID() == id {
			return n
		}
		for i := 0; i < n.NIns(); i++ {
			if f := walk(n.In(i)); f != nil {
				return f
			}
		}
		for i := 0; i < n.NOuts(); i++ {
			if f := walk(n.Out(i)); f != nil {
				return f
			}
		}
		return nil
	}
	if f := walk(s.stop); f != nil {
		return f
	}
	return walk(s.start)
}
