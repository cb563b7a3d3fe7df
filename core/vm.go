package core

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"
)

// EngineState is the lifecycle of the execution engine.
type EngineState int

const (
	Running EngineState = iota
	WaitingOnEvent
	Closed
)

func (s EngineState) String() string {
	switch s {
	case Running:
		return "running"
	case WaitingOnEvent:
		return "waiting"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// guardKey is the re-entrancy unit: one Action of one instance observing
// one property. A guarded entry does not re-run within the cascade of a
// single outer write.
type guardKey struct {
	key    fieldKey
	owner  NodeID
	action int
}

type frame struct {
	slots []Value
	owner NodeID // the instance an Action body runs against; -1 elsewhere
}

// Engine executes a Program against a Surface. Execution is synchronous:
// every statement returns only after the writes it caused have settled,
// cascaded Actions included.
type Engine struct {
	prog    *Program
	g       *graph
	surface Surface
	state   EngineState

	slots []Value // the host program's variable frame

	guard map[guardKey]bool
	depth int // cascade nesting; the guard resets when it returns to zero

	liveViews int

	// Loader resolves a load path to a parsed script. core.go installs a
	// file loader; tests substitute their own.
	Loader func(path string) (*ScriptValue, error)

	// ViewDefaults override the schema defaults of every View, before the
	// declaration's own properties apply. The CLI fills these from
	// agl.toml.
	ViewDefaults map[string]Value
}

func NewEngine(prog *Program, surface Surface) *Engine {
	return &Engine{
		prog:    prog,
		g:       prog.graph,
		surface: surface,
		slots:   make([]Value, prog.globals),
		guard:   map[guardKey]bool{},
	}
}

func (e *Engine) State() EngineState { return e.state }

// Run executes the whole program.
func (e *Engine) Run(ctx context.Context) error {
	fr := &frame{slots: e.slots, owner: -1}
	return e.exec(ctx, e.prog.Instructions, fr)
}

func (e *Engine) runtimeErrorf(pos position, format string, args ...any) error {
	return &RuntimeError{Reason: fmt.Sprintf(format, args...), Pos: pos}
}

// ---- instruction dispatch ----

func (e *Engine) exec(ctx context.Context, ins []Instruction, fr *frame) error {
	for i := range ins {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Closed is terminal: once the last view closes nothing else runs
		if e.state == Closed {
			return nil
		}
		if err := e.execOne(ctx, &ins[i], fr); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) execOne(ctx context.Context, ins *Instruction, fr *frame) error {
	klog.V(2).Infof("exec %s", ins.summary())
	switch ins.Kind {
	case OpCreate:
		if err := e.materialize(ctx, ins.Node, fr); err != nil {
			return err
		}
		return e.writeRef(ctx, ins.Target, NodeValue(ins.Node), fr)
	case OpSet:
		return e.execSet(ctx, ins, fr)
	case OpMove:
		return e.execMove(ctx, ins, fr)
	case OpRotate:
		return e.execRotate(ctx, ins, fr)
	case OpRefresh:
		return e.execRefresh(ctx, ins, fr)
	case OpWait:
		_, err := e.waitEvent(ctx, ins.Name, ins.p)
		return err
	case OpDeepCopy:
		srcID, err := e.refNode(ins.Src, fr)
		if err != nil {
			return err
		}
		id, err := e.copyInstance(srcID)
		if err != nil {
			return e.runtimeErrorf(ins.p, "copy failed: %v", err)
		}
		return e.writeRef(ctx, ins.Target, NodeValue(id), fr)
	case OpClose:
		return e.execClose(ins, fr)
	case OpPlay:
		return e.execPlay(ctx, ins, fr)
	case OpIf:
		cond, err := e.evalBool(ctx, ins.Expr, fr)
		if err != nil {
			return err
		}
		if cond {
			return e.exec(ctx, ins.Body, fr)
		}
		return e.exec(ctx, ins.Else, fr)
	case OpFor:
		return e.execFor(ctx, ins, fr)
	case OpWhile:
		for {
			cond, err := e.evalBool(ctx, ins.Expr, fr)
			if err != nil {
				return err
			}
			if !cond {
				return nil
			}
			if err := e.exec(ctx, ins.Body, fr); err != nil {
				return err
			}
		}
	case OpRepeat:
		for {
			if err := e.exec(ctx, ins.Body, fr); err != nil {
				return err
			}
			cond, err := e.evalBool(ctx, ins.Expr, fr)
			if err != nil {
				return err
			}
			if cond {
				return nil
			}
		}
	}
	return e.runtimeErrorf(ins.p, "cannot execute %s", ins.Kind)
}

func (e *Engine) execSet(ctx context.Context, ins *Instruction, fr *frame) error {
	v := ins.Value
	if ins.Expr != nil {
		var err error
		v, err = e.eval(ctx, ins.Expr, fr)
		if err != nil {
			return err
		}
	}
	if ins.Index != nil {
		return e.writeElement(ctx, ins, v, fr)
	}
	return e.writeRef(ctx, ins.Target, v, fr)
}

func (e *Engine) writeElement(ctx context.Context, ins *Instruction, v Value, fr *frame) error {
	cur, err := e.readRef(ins.Target, fr)
	if err != nil {
		return err
	}
	list, ok := cur.(ListValue)
	if !ok {
		return e.runtimeErrorf(ins.p, "%s is not an array", ins.Target)
	}
	iv, err := e.eval(ctx, ins.Index, fr)
	if err != nil {
		return err
	}
	i, ok := asIndex(iv)
	if !ok || i < 0 || i >= len(list) {
		return e.runtimeErrorf(ins.p, "index %s out of range (length %d)", iv, len(list))
	}
	list[i] = v
	// write back through the ref so property watchers observe the change
	return e.writeRef(ctx, ins.Target, list, fr)
}

func (e *Engine) execMove(ctx context.Context, ins *Instruction, fr *frame) error {
	id, err := e.refNode(ins.Target, fr)
	if err != nil {
		return err
	}
	dest, err := e.eval(ctx, ins.Expr, fr)
	if err != nil {
		return err
	}
	p, ok := dest.(PointValue)
	if !ok {
		return e.runtimeErrorf(ins.p, "move destination must be a Point, got %s", dest)
	}
	cur := e.position(id)
	delta := p.Sub(cur)
	// one compound write: every node of the subtree translates by the same
	// delta, so relative layout is preserved
	for _, sub := range e.g.subtree(id) {
		if err := e.writeProp(ctx, sub, "position", e.position(sub).Add(delta)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) execRotate(ctx context.Context, ins *Instruction, fr *frame) error {
	id, err := e.refNode(ins.Target, fr)
	if err != nil {
		return err
	}
	by, err := e.eval(ctx, ins.Expr, fr)
	if err != nil {
		return err
	}
	degrees, ok := asFloat(by)
	if !ok {
		return e.runtimeErrorf(ins.p, "rotate angle must be numeric, got %s", by)
	}
	deg := float32(degrees)
	center := e.position(id)
	for _, sub := range e.g.subtree(id) {
		n := e.g.node(sub)
		if sub != id {
			rotated := rotateAbout(e.position(sub), center, deg)
			if err := e.writeProp(ctx, sub, "position", rotated); err != nil {
				return err
			}
		}
		if n.Type.Kind != ShapeType {
			continue
		}
		switch n.Type.Shape {
		case Line:
			if to, ok := n.Props["to"].(VectorValue); ok {
				if err := e.writeProp(ctx, sub, "to", rotateVector(to, deg)); err != nil {
					return err
				}
			}
		case Polyline, Spline, Polygon, Blob:
			if pts, ok := n.Props["points"].(ListValue); ok {
				out := make(ListValue, len(pts))
				for i, pv := range pts {
					if p, ok := pv.(PointValue); ok {
						out[i] = rotateAbout(p, PointValue{}, deg)
					} else {
						out[i] = pv
					}
				}
				if err := e.writeProp(ctx, sub, "points", out); err != nil {
					return err
				}
			}
		case Arc, ArcChord, PieSlice:
			if start, ok := asFloat(n.Props["start"]); ok {
				if err := e.writeProp(ctx, sub, "start", NumberValue(start+degrees)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (e *Engine) execRefresh(ctx context.Context, ins *Instruction, fr *frame) error {
	id, err := e.refNode(ins.Target, fr)
	if err != nil {
		return err
	}
	if ins.Expr == nil {
		e.surface.RenderFrame(id)
		return nil
	}
	delay, err := e.eval(ctx, ins.Expr, fr)
	if err != nil {
		return err
	}
	ms, ok := asFloat(delay)
	if !ok {
		return e.runtimeErrorf(ins.p, "refresh delay must be a Time, got %s", delay)
	}
	if ms < 0 {
		ms = 0
	}
	e.surface.ScheduleRefresh(id, ms)
	return nil
}

func (e *Engine) execClose(ins *Instruction, fr *frame) error {
	id, err := e.refNode(ins.Target, fr)
	if err != nil {
		return err
	}
	n := e.g.node(id)
	if !n.live {
		return nil
	}
	n.live = false
	e.surface.CloseView(id)
	if e.liveViews > 0 {
		e.liveViews--
	}
	if e.liveViews == 0 {
		e.state = Closed
	}
	return nil
}

func (e *Engine) execFor(ctx context.Context, ins *Instruction, fr *frame) error {
	fromV, err := e.eval(ctx, ins.From, fr)
	if err != nil {
		return err
	}
	toV, err := e.eval(ctx, ins.To, fr)
	if err != nil {
		return err
	}
	stepV := Value(IntValue(1))
	if ins.Step != nil {
		stepV, err = e.eval(ctx, ins.Step, fr)
		if err != nil {
			return err
		}
	}

	_, fi := fromV.(IntValue)
	_, ti := toV.(IntValue)
	_, si := stepV.(IntValue)
	from, ok1 := asFloat(fromV)
	to, ok2 := asFloat(toV)
	step, ok3 := asFloat(stepV)
	if !ok1 || !ok2 || !ok3 {
		return e.runtimeErrorf(ins.p, "range bounds must be numeric")
	}
	if step == 0 {
		return e.runtimeErrorf(ins.p, "range step cannot be zero")
	}
	integral := fi && ti && si

	for v := from; (step > 0 && v < to) || (step < 0 && v > to); v += step {
		var item Value
		if integral {
			item = IntValue(int64(v))
		} else {
			item = NumberValue(v)
		}
		fr.slots[ins.Target.slot] = item
		if err := e.exec(ctx, ins.Body, fr); err != nil {
			return err
		}
	}
	return nil
}

// ---- node materialization ----

// materialize gives an arena node its initial state: schema defaults,
// then the declared position and property expressions, children first so a
// Model's primitives exist before the Model itself goes live. No Action
// runs during creation.
func (e *Engine) materialize(ctx context.Context, id NodeID, fr *frame) error {
	n := e.g.node(id)

	var schema map[string]Type
	switch n.Type.Kind {
	case ShapeType:
		schema = shapeProps(n.Type.Shape)
	case ViewType:
		schema = viewProps
	case ModelType:
		schema = map[string]Type{"position": typePoint}
	}
	for name, t := range schema {
		n.Props[name] = defaultValue(t)
	}
	if _, ok := schema["visible"]; ok {
		n.Props["visible"] = BoolValue(true)
	}
	if n.Type.Kind == ViewType {
		for name, v := range e.ViewDefaults {
			n.Props[name] = v
		}
	}

	if n.at != nil {
		at, err := e.eval(ctx, n.at, fr)
		if err != nil {
			return err
		}
		p, ok := at.(PointValue)
		if !ok {
			return e.runtimeErrorf(n.at.pos(), "position must be a Point, got %s", at)
		}
		n.Props["position"] = p
	}
	for _, prop := range n.defaults {
		v, err := e.eval(ctx, prop.value, fr)
		if err != nil {
			return err
		}
		n.Props[prop.name] = v
	}

	for _, name := range n.Order {
		child := n.Children[name]
		if err := e.materialize(ctx, child, fr); err != nil {
			return err
		}
		// nested instances are declared relative to their owner
		if n.Type.Kind == ModelType {
			base, _ := n.Props["position"].(PointValue)
			e.translateSubtree(child, base.Sub(PointValue{}))
		}
	}

	n.live = true
	e.surface.CreateShape(id, n.Type.String(), n.Props)
	if n.Type.Kind == ViewType {
		e.liveViews++
	}
	klog.V(1).Infof("created %s node(%d) %q", n.Type, int(id), n.Name)
	return nil
}

func (e *Engine) translateSubtree(id NodeID, delta VectorValue) {
	if delta.X == 0 && delta.Y == 0 {
		return
	}
	for _, sub := range e.g.subtree(id) {
		n := e.g.node(sub)
		p, _ := n.Props["position"].(PointValue)
		n.Props["position"] = p.Add(delta)
	}
}

// copyInstance deep-copies a subtree and surfaces the live part of the
// copy.
func (e *Engine) copyInstance(src NodeID) (NodeID, error) {
	id, err := e.g.deepCopy(src)
	if err != nil {
		return 0, err
	}
	for _, sub := range e.g.subtree(id) {
		n := e.g.node(sub)
		if n.live {
			e.surface.CreateShape(sub, n.Type.String(), n.Props)
		}
	}
	klog.V(1).Infof("copied node(%d) -> node(%d)", int(src), int(id))
	return id, nil
}

// ---- the reactive core ----

// writeProp applies one property write and runs the Actions observing it,
// to a fixed point, before returning. Within one outer write each bound
// Action runs at most once per observed key.
func (e *Engine) writeProp(ctx context.Context, id NodeID, field string, v Value) error {
	n := e.g.node(id)
	n.Props[field] = v
	if n.live {
		e.surface.UpdateShape(id, field, v)
	}
	return e.dispatch(ctx, fieldKey{node: id, field: field})
}

func (e *Engine) dispatch(ctx context.Context, key fieldKey) error {
	watchers := e.g.watchersFor(key)
	if len(watchers) == 0 {
		return nil
	}
	e.depth++
	defer func() {
		e.depth--
		if e.depth == 0 {
			e.guard = map[guardKey]bool{}
		}
	}()

	for _, w := range watchers {
		gk := guardKey{key: key, owner: w.owner, action: w.act.index}
		if e.guard[gk] {
			continue
		}
		e.guard[gk] = true
		klog.V(2).Infof("dispatch %s -> %s action %d of node(%d)",
			key, w.act.model, w.act.index, int(w.owner))
		fr := &frame{slots: e.slots, owner: w.owner}
		if err := e.exec(ctx, w.act.body, fr); err != nil {
			return err
		}
	}
	return nil
}

// ---- references ----

// refNode resolves a ref that denotes a node.
func (e *Engine) refNode(r ref, fr *frame) (NodeID, error) {
	base, err := e.refBase(r, fr)
	if err != nil {
		return 0, err
	}
	if r.field != "" {
		return 0, fmt.Errorf("%s denotes a property, not an instance", r)
	}
	return base, nil
}

func (e *Engine) refBase(r ref, fr *frame) (NodeID, error) {
	var base NodeID
	switch {
	case r.kind == refProp && r.owner:
		if fr.owner < 0 {
			return 0, fmt.Errorf("no owner instance in scope")
		}
		base = fr.owner
	case r.kind == refVar || r.kind == refProp:
		nv, ok := fr.slots[r.slot].(NodeValue)
		if !ok {
			return 0, fmt.Errorf("variable $%d does not hold an instance", r.slot)
		}
		base = NodeID(nv)
	default:
		return 0, fmt.Errorf("unresolved reference")
	}
	return e.g.resolve(base, r.path)
}

func (e *Engine) readRef(r ref, fr *frame) (Value, error) {
	if r.kind == refVar && len(r.path) == 0 && r.field == "" {
		return fr.slots[r.slot], nil
	}
	id, err := e.refBase(r, fr)
	if err != nil {
		return nil, err
	}
	if r.field == "" {
		return NodeValue(id), nil
	}
	v, ok := e.g.node(id).Props[r.field]
	if !ok {
		return nil, fmt.Errorf("node(%d) has no property %s", int(id), r.field)
	}
	return v, nil
}

func (e *Engine) writeRef(ctx context.Context, r ref, v Value, fr *frame) error {
	if r.kind == refVar && len(r.path) == 0 && r.field == "" {
		fr.slots[r.slot] = v
		return nil
	}
	id, err := e.refBase(r, fr)
	if err != nil {
		return err
	}
	if r.field == "" {
		return fmt.Errorf("cannot overwrite the instance %s", r)
	}
	return e.writeProp(ctx, id, r.field, v)
}

// ---- events and scripts ----

func (e *Engine) waitEvent(ctx context.Context, kind string, pos position) (Value, error) {
	e.state = WaitingOnEvent
	v, err := e.surface.WaitForEvent(ctx, kind)
	e.state = Running
	if err != nil {
		return nil, e.runtimeErrorf(pos, "wait %s: %v", kind, err)
	}
	return v, nil
}

func (e *Engine) execPlay(ctx context.Context, ins *Instruction, fr *frame) error {
	sv, err := e.eval(ctx, ins.Expr, fr)
	if err != nil {
		return err
	}
	script, ok := sv.(*ScriptValue)
	if !ok {
		return e.runtimeErrorf(ins.p, "play target must be a Script, got %s", sv)
	}
	err = e.play(ctx, script, ins.Bindings, fr)
	if err == nil {
		return nil
	}
	// binding and script-compilation failures abort only this play
	if isPlaySetupError(err) {
		klog.Errorf("play %s: %v", script.Path, err)
		return nil
	}
	return err
}

func isPlaySetupError(err error) bool {
	switch err.(type) {
	case *BindingError, ErrorList:
		return true
	}
	return false
}
