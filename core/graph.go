package core

import (
	"bytes"
	"fmt"

	"github.com/jinzhu/copier"
)

// fieldKey identifies one property of one node; it is the dispatch key of
// the reactive engine.
type fieldKey struct {
	node  NodeID
	field string
}

func (k fieldKey) String() string {
	return fmt.Sprintf("node(%d).%s", int(k.node), k.field)
}

// node is one entry in the object-graph arena: a primitive, Model
// instance, or View. Identity is the arena index and never changes.
//
// A node is allocated at compile time together with its creation template
// (the declared position and property expressions); the engine evaluates
// the template when the corresponding create instruction runs. Nodes made
// by deep copy at run time skip the template and start from the source's
// materialized state.
type node struct {
	ID       NodeID
	Type     Type
	Name     string
	Parent   NodeID // -1 for top-level instances
	Children map[string]NodeID
	Order    []string // child names in declaration order
	Props    map[string]Value
	live     bool

	at       exprNode     // declared position, may be nil
	defaults []propAssign // declared property values
}

func (n *node) child(name string) (NodeID, bool) {
	id, ok := n.Children[name]
	return id, ok
}

// compiledAction is one Action of a Model type: the observed field path
// and the body, compiled once per type with owner-relative references so
// that every instance (copies included) shares it.
type compiledAction struct {
	model string
	index int
	path  []string
	body  []Instruction
}

// boundAction attaches a compiledAction to a concrete instance.
type boundAction struct {
	owner NodeID
	act   *compiledAction
}

// graph is the object & action graph: the node arena plus the dispatch
// table from fieldKey to the Actions observing it. Watcher lists keep
// binding order, which is creation order outermost-first and declaration
// order within one Model.
type graph struct {
	nodes    []*node
	watchers map[fieldKey][]*boundAction
	actions  map[string][]*compiledAction
	an       *analysis
}

func newGraph(an *analysis) *graph {
	return &graph{
		watchers: map[fieldKey][]*boundAction{},
		actions:  map[string][]*compiledAction{},
		an:       an,
	}
}

func (g *graph) node(id NodeID) *node {
	return g.nodes[int(id)]
}

func (g *graph) alloc(t Type, name string, parent NodeID) *node {
	n := &node{
		ID:       NodeID(len(g.nodes)),
		Type:     t,
		Name:     name,
		Parent:   parent,
		Children: map[string]NodeID{},
		Props:    map[string]Value{},
	}
	g.nodes = append(g.nodes, n)
	return n
}

// buildInstance allocates the arena subtree for one instance declaration:
// the node itself plus, for Model types, one child subtree per
// instance-typed field. Scalar fields become property defaults. Actions of
// the subtree are bound immediately; writes cannot happen before the
// create instruction materializes the nodes.
func (g *graph) buildInstance(t Type, name string, parent NodeID, at exprNode, props []propAssign) NodeID {
	n := g.alloc(t, name, parent)
	n.at = at
	n.defaults = props

	if t.Kind == ModelType {
		spec := g.an.models[t.Name]
		for _, f := range spec.fields {
			if isInstance(f.typ) {
				child := g.buildInstance(f.typ, f.name, n.ID, f.decl.at, f.decl.props)
				n.Children[f.name] = child
				n.Order = append(n.Order, f.name)
			} else if f.decl.init != nil {
				n.defaults = append(n.defaults, propAssign{name: f.name, value: f.decl.init, p: f.decl.pos()})
			}
		}
		g.bindActions(n.ID)
	}
	return n.ID
}

// registerActions installs a Model type's compiled Action bodies; must
// happen before any instance of the type is built.
func (g *graph) registerActions(model string, acts []*compiledAction) {
	g.actions[model] = acts
}

// bindActions registers this instance's Actions in the dispatch table. The
// observed path was validated during analysis, so resolution cannot fail
// on a well-formed graph.
func (g *graph) bindActions(id NodeID) {
	n := g.node(id)
	if n.Type.Kind != ModelType {
		return
	}
	for _, act := range g.actions[n.Type.Name] {
		key, err := g.resolveActionKey(id, act.path)
		if err != nil {
			continue
		}
		g.watchers[key] = append(g.watchers[key], &boundAction{owner: id, act: act})
	}
}

func (g *graph) resolveActionKey(owner NodeID, path []string) (fieldKey, error) {
	cur := owner
	for _, part := range path[:len(path)-1] {
		next, ok := g.node(cur).child(part)
		if !ok {
			return fieldKey{}, fmt.Errorf("node(%d) has no child %s", int(cur), part)
		}
		cur = next
	}
	return fieldKey{node: cur, field: path[len(path)-1]}, nil
}

func (g *graph) watchersFor(key fieldKey) []*boundAction {
	return g.watchers[key]
}

// subtree returns the ids of the subtree rooted at id, depth-first with
// the root first and children in declaration order.
func (g *graph) subtree(id NodeID) []NodeID {
	out := []NodeID{id}
	n := g.node(id)
	for _, name := range n.Order {
		out = append(out, g.subtree(n.Children[name])...)
	}
	return out
}

// deepCopy clones the subtree rooted at src into fresh arena nodes with
// fully independent state, and rebinds the subtree's Actions so each copy
// observes its own fields.
func (g *graph) deepCopy(src NodeID) (NodeID, error) {
	root, err := g.copySubtree(src, -1)
	if err != nil {
		return 0, err
	}
	for _, id := range g.subtree(root) {
		g.bindActions(id)
	}
	return root, nil
}

func (g *graph) copySubtree(src NodeID, parent NodeID) (NodeID, error) {
	from := g.node(src)
	n := g.alloc(from.Type, from.Name, parent)
	n.at = from.at
	n.defaults = from.defaults
	n.live = from.live

	props := map[string]Value{}
	if err := copier.CopyWithOption(&props, from.Props, copier.Option{DeepCopy: true}); err != nil {
		return 0, err
	}
	n.Props = props

	for _, name := range from.Order {
		child, err := g.copySubtree(from.Children[name], n.ID)
		if err != nil {
			return 0, err
		}
		n.Children[name] = child
		n.Order = append(n.Order, name)
	}
	return n.ID, nil
}

// resolve walks a ref's child path from a base node down to the node it
// denotes.
func (g *graph) resolve(base NodeID, path []string) (NodeID, error) {
	cur := base
	for _, part := range path {
		next, ok := g.node(cur).child(part)
		if !ok {
			return 0, fmt.Errorf("node(%d) has no child %s", int(cur), part)
		}
		cur = next
	}
	return cur, nil
}

// dump renders the arena for the --debug-program flag and tests.
func (g *graph) dump() string {
	var out bytes.Buffer
	for _, n := range g.nodes {
		fmt.Fprintf(&out, "node(%d) %s %s", int(n.ID), n.Type, n.Name)
		if n.Parent >= 0 {
			fmt.Fprintf(&out, " parent=%d", int(n.Parent))
		}
		out.WriteByte('\n')
	}
	return out.String()
}
