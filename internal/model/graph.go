package model

// Graph is an immutable arena of nodes. Parent and child relations are id
// references into the arena; the fact node is the root.
type Graph struct {
	nodes    []Node
	index    map[string]int
	children map[string][]string
	root     string
}

// Root returns the fact node id
func (g *Graph) Root() string {
	return g.root
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node looks a node up by id. The returned value is a copy.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i].clone(), true
}

// Children returns the ordered child ids of a node
func (g *Graph) Children(id string) []string {
	kids := g.children[id]
	out := make([]string, len(kids))
	copy(out, kids)
	return out
}

// Nodes returns all nodes in insertion order, fact first
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.clone()
	}
	return out
}

// Walk visits nodes depth-first starting at the root
func (g *Graph) Walk(fn func(n Node, depth int)) {
	if g.root == "" {
		return
	}
	var visit func(id string, depth int)
	visit = func(id string, depth int) {
		n, ok := g.Node(id)
		if !ok {
			return
		}
		fn(n, depth)
		for _, c := range g.children[id] {
			visit(c, depth+1)
		}
	}
	visit(g.root, 0)
}

// WithNode returns a new snapshot with the node of the same id replaced.
// Type, id and parent are kept from the existing node.
func (g *Graph) WithNode(n Node) *Graph {
	i, ok := g.index[n.ID]
	if !ok {
		return g
	}
	next := &Graph{
		nodes:    make([]Node, len(g.nodes)),
		index:    g.index,
		children: g.children,
		root:     g.root,
	}
	copy(next.nodes, g.nodes)
	old := g.nodes[i]
	n = n.clone()
	n.Type = old.Type
	n.ParentID = old.ParentID
	next.nodes[i] = n
	return next
}

// Builder assembles a Graph and enforces the star-shape invariants
type Builder struct {
	fact  *Node
	dims  []Node
	order map[string]bool
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{order: make(map[string]bool)}
}

// SetFact sets the single fact node
func (b *Builder) SetFact(n Node) *Builder {
	n = n.clone()
	n.Type = Fact
	n.ParentID = ""
	b.fact = &n
	return b
}

// AddDimension appends a dimension node
func (b *Builder) AddDimension(n Node) *Builder {
	n = n.clone()
	n.Type = Dimension
	b.dims = append(b.dims, n)
	return b
}

// Build validates and freezes the graph
func (b *Builder) Build() (*Graph, error) {
	if b.fact == nil || b.fact.ID == "" {
		return nil, &GraphError{Reason: "missing fact node"}
	}

	g := &Graph{
		nodes:    make([]Node, 0, len(b.dims)+1),
		index:    make(map[string]int, len(b.dims)+1),
		children: make(map[string][]string),
		root:     b.fact.ID,
	}

	if err := g.add(*b.fact); err != nil {
		return nil, err
	}

	for _, d := range b.dims {
		if d.ID == "" {
			return nil, &GraphError{Reason: "dimension node without id"}
		}
		if !d.Side.Valid() {
			return nil, &GraphError{NodeID: d.ID, Reason: "unknown side " + string(d.Side)}
		}
		d.ParentID = b.fact.ID
		if err := checkDimensionLink(d, b.fact.ID); err != nil {
			return nil, err
		}
		if err := g.add(d); err != nil {
			return nil, err
		}
		g.children[b.fact.ID] = append(g.children[b.fact.ID], d.ID)
	}

	return g, nil
}

func (g *Graph) add(n Node) error {
	if _, dup := g.index[n.ID]; dup {
		return &GraphError{NodeID: n.ID, Reason: "duplicate id"}
	}
	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return nil
}

// checkDimensionLink allows a dimension without a link yet (freshly dropped
// on the canvas) but never more than one, and the peer must be a fact port.
func checkDimensionLink(d Node, factID string) error {
	if len(d.LinkMap) > 1 {
		return &GraphError{NodeID: d.ID, Reason: "dimension supports a single join"}
	}
	for own, peer := range d.LinkMap {
		ownNode, _, ok := own.Split()
		if !ok || ownNode != d.ID {
			return &GraphError{NodeID: d.ID, Reason: "link key " + string(own) + " is not a port of this node"}
		}
		peerNode, _, ok := peer.Split()
		if !ok || peerNode != factID {
			return &GraphError{NodeID: d.ID, Reason: "link target " + string(peer) + " is not a fact port"}
		}
	}
	return nil
}
