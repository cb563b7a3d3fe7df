package core

import (
	"fmt"
	"sort"
)

// compiler lowers the analyzed AST into the instruction stream, building
// the object-graph arena as it encounters instance declarations. All name
// and type resolution already happened; the compiler only deals in
// resolved refs and slots.
type compiler struct {
	g    *graph
	an   *analysis
	errs ErrorList
}

// compileProgram generates a runnable Program from an analyzed host AST.
func compileProgram(program []astNode, an *analysis) (*Program, error) {
	g := newGraph(an)
	c := &compiler{g: g, an: an}

	// Action bodies compile once per Model type, before any instance is
	// built, so every instance and copy shares them.
	names := make([]string, 0, len(an.models))
	for name := range an.models {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec := an.models[name]
		g.registerActions(name, c.compileActions(spec))
	}

	ins := c.compileBlock(program)
	if len(c.errs) > 0 {
		return nil, c.errs
	}
	return &Program{Instructions: ins, graph: g, analysis: an, globals: an.slots}, nil
}

// compileScript lowers an analyzed script AST against an existing
// Program's graph. The script's slots are a fresh frame; its instructions
// may reference the host's nodes only through the play bindings.
func compileScript(program []astNode, host *Program, slots int) (*Program, error) {
	c := &compiler{g: host.graph, an: host.analysis}
	ins := c.compileBlock(program)
	if len(c.errs) > 0 {
		return nil, c.errs
	}
	return &Program{Instructions: ins, graph: host.graph, analysis: host.analysis, globals: slots}, nil
}

func (c *compiler) errorf(pos position, format string, args ...any) {
	c.errs = append(c.errs, &TypeError{Reason: fmt.Sprintf(format, args...), Pos: pos})
}

func (c *compiler) compileActions(spec *modelSpec) []*compiledAction {
	out := make([]*compiledAction, 0, len(spec.actions))
	for i, act := range spec.actions {
		out = append(out, &compiledAction{
			model: spec.name,
			index: i,
			path:  act.path,
			body:  c.compileBlock(act.body),
		})
	}
	return out
}

func (c *compiler) compileBlock(stmts []astNode) []Instruction {
	out := []Instruction{}
	for _, stmt := range stmts {
		out = append(out, c.compileStmt(stmt)...)
	}
	return out
}

func (c *compiler) compileStmt(stmt astNode) []Instruction {
	switch n := stmt.(type) {
	case *modelDeclNode, *enumDeclNode:
		return nil
	case *declNode:
		return c.compileDecl(n)
	case *assignNode:
		target, index, ok := c.lvalue(n.target)
		if !ok {
			return nil
		}
		return []Instruction{{Kind: OpSet, Target: target, Index: index, Expr: n.value, p: n.pos()}}
	case *moveNode:
		target, ok := c.instanceRef(n.target)
		if !ok {
			return nil
		}
		return []Instruction{{Kind: OpMove, Target: target, Expr: n.dest, p: n.pos()}}
	case *rotateNode:
		target, ok := c.instanceRef(n.target)
		if !ok {
			return nil
		}
		return []Instruction{{Kind: OpRotate, Target: target, Expr: n.by, p: n.pos()}}
	case *refreshNode:
		target, ok := c.instanceRef(n.target)
		if !ok {
			return nil
		}
		return []Instruction{{Kind: OpRefresh, Target: target, Expr: n.after, p: n.pos()}}
	case *closeNode:
		target, ok := c.instanceRef(n.target)
		if !ok {
			return nil
		}
		return []Instruction{{Kind: OpClose, Target: target, p: n.pos()}}
	case *waitStmtNode:
		return []Instruction{{Kind: OpWait, Name: n.event, p: n.pos()}}
	case *withNode:
		base, ok := c.instanceRef(n.target)
		if !ok {
			return nil
		}
		out := make([]Instruction, 0, len(n.props))
		for _, prop := range n.props {
			out = append(out, Instruction{
				Kind:   OpSet,
				Target: base.prop(prop.name),
				Expr:   prop.value,
				p:      prop.p,
			})
		}
		return out
	case *playNode:
		binds := make([]playBinding, len(n.bindings))
		for i, b := range n.bindings {
			binds[i] = playBinding{Name: b.name, Target: b.target, p: b.p}
		}
		return []Instruction{{Kind: OpPlay, Expr: n.script, Bindings: binds, p: n.pos()}}
	case *ifNode:
		ins := Instruction{Kind: OpIf, Expr: n.cond, Body: c.compileBlock(n.then), p: n.pos()}
		if n.els != nil {
			ins.Else = c.compileBlock(n.els)
		}
		return []Instruction{ins}
	case *forNode:
		return []Instruction{{
			Kind:   OpFor,
			Target: ref{kind: refVar, slot: n.slot},
			From:   n.from,
			To:     n.to,
			Step:   n.step,
			Body:   c.compileBlock(n.body),
			p:      n.pos(),
		}}
	case *whileNode:
		return []Instruction{{Kind: OpWhile, Expr: n.cond, Body: c.compileBlock(n.body), p: n.pos()}}
	case *repeatNode:
		return []Instruction{{Kind: OpRepeat, Expr: n.cond, Body: c.compileBlock(n.body), p: n.pos()}}
	}
	c.errorf(stmt.pos(), "cannot compile statement %s", stmt)
	return nil
}

func (c *compiler) compileDecl(d *declNode) []Instruction {
	target := ref{kind: refVar, slot: d.slot}

	switch {
	case isInstance(d.typ):
		if cp, ok := d.init.(*copyNode); ok {
			src, ok := c.instanceRef(cp.src)
			if !ok {
				return nil
			}
			return []Instruction{{Kind: OpDeepCopy, Src: src, Target: target, p: d.pos()}}
		}
		id := c.g.buildInstance(d.typ, d.name, -1, d.at, d.props)
		return []Instruction{{Kind: OpCreate, Node: id, Target: target, p: d.pos()}}
	case d.init != nil:
		return []Instruction{{Kind: OpSet, Target: target, Expr: d.init, p: d.pos()}}
	default:
		return []Instruction{{Kind: OpSet, Target: target, Value: defaultValue(d.typ), p: d.pos()}}
	}
}

// instanceRef extracts the resolved node ref of an instance-denoting
// expression. Only named instances and nested fields reached from one can
// be operation targets.
func (c *compiler) instanceRef(e exprNode) (ref, bool) {
	if r, ok := nodeRef(e); ok {
		return r, true
	}
	c.errorf(e.pos(), "%s does not name an instance", e)
	return ref{}, false
}

// lvalue resolves an assignment target to a ref, plus the element
// subscript for array writes.
func (c *compiler) lvalue(e exprNode) (ref, exprNode, bool) {
	switch n := e.(type) {
	case *identNode:
		return n.ref, nil, true
	case *pathNode:
		if n.ref.kind == refNone {
			c.errorf(n.pos(), "%s is not addressable", n)
			return ref{}, nil, false
		}
		return n.ref, nil, true
	case *indexNode:
		base, index, ok := c.lvalue(n.target)
		if !ok {
			return ref{}, nil, false
		}
		if index != nil {
			c.errorf(n.pos(), "nested element assignment is not supported")
			return ref{}, nil, false
		}
		return base, n.index, true
	}
	c.errorf(e.pos(), "cannot assign to %s", e)
	return ref{}, nil, false
}
