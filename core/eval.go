package core

import (
	"context"
	"math"
)

func (e *Engine) position(id NodeID) PointValue {
	p, _ := e.g.node(id).Props["position"].(PointValue)
	return p
}

func asFloat(v Value) (float64, bool) {
	switch t := v.(type) {
	case IntValue:
		return float64(t), true
	case NumberValue:
		return float64(t), true
	case TimeValue:
		return float64(t), true
	}
	return 0, false
}

func asIndex(v Value) (int, bool) {
	if i, ok := v.(IntValue); ok {
		return int(i), true
	}
	return 0, false
}

func (e *Engine) evalBool(ctx context.Context, expr exprNode, fr *frame) (bool, error) {
	v, err := e.eval(ctx, expr, fr)
	if err != nil {
		return false, err
	}
	b, ok := v.(BoolValue)
	if !ok {
		return false, e.runtimeErrorf(expr.pos(), "condition must be a Boolean, got %s", v)
	}
	return bool(b), nil
}

// eval computes an expression against the running graph and frame.
func (e *Engine) eval(ctx context.Context, expr exprNode, fr *frame) (Value, error) {
	switch n := expr.(type) {
	case *intNode:
		return IntValue(n.payload), nil
	case *numberNode:
		return NumberValue(n.payload), nil
	case *stringNode:
		return StringValue(n.payload), nil
	case *boolNode:
		return BoolValue(n.payload), nil
	case *timeNode:
		return TimeValue(n.millis), nil
	case *pointNode:
		x, err := e.evalFloat(ctx, n.x, fr)
		if err != nil {
			return nil, err
		}
		y, err := e.evalFloat(ctx, n.y, fr)
		if err != nil {
			return nil, err
		}
		return PointValue{X: float32(x), Y: float32(y)}, nil
	case *polarNode:
		angle, err := e.evalFloat(ctx, n.angle, fr)
		if err != nil {
			return nil, err
		}
		length, err := e.evalFloat(ctx, n.length, fr)
		if err != nil {
			return nil, err
		}
		return polarVector(float32(angle), float32(length)), nil
	case *listNode:
		out := make(ListValue, len(n.items))
		for i, item := range n.items {
			v, err := e.eval(ctx, item, fr)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *identNode:
		v, err := e.readRef(n.ref, fr)
		if err != nil {
			return nil, e.runtimeErrorf(n.pos(), "%s: %v", n.name, err)
		}
		return v, nil
	case *pathNode:
		return e.evalPath(ctx, n, fr)
	case *indexNode:
		return e.evalIndex(ctx, n, fr)
	case *callNode:
		return e.evalCall(ctx, n, fr)
	case *unaryNode:
		return e.evalUnary(ctx, n, fr)
	case *binaryNode:
		return e.evalBinaryNode(ctx, n, fr)
	case *copyNode:
		src, err := e.eval(ctx, n.src, fr)
		if err != nil {
			return nil, err
		}
		nv, ok := src.(NodeValue)
		if !ok {
			return nil, e.runtimeErrorf(n.pos(), "copy source must be an instance, got %s", src)
		}
		id, err := e.copyInstance(NodeID(nv))
		if err != nil {
			return nil, e.runtimeErrorf(n.pos(), "copy failed: %v", err)
		}
		return NodeValue(id), nil
	case *loadNode:
		if e.Loader == nil {
			return nil, e.runtimeErrorf(n.pos(), "no script loader configured")
		}
		return e.Loader(n.path)
	case *waitNode:
		return e.waitEvent(ctx, n.event, n.pos())
	}
	return nil, e.runtimeErrorf(expr.pos(), "cannot evaluate %s", expr)
}

func (e *Engine) evalFloat(ctx context.Context, expr exprNode, fr *frame) (float64, error) {
	v, err := e.eval(ctx, expr, fr)
	if err != nil {
		return 0, err
	}
	f, ok := asFloat(v)
	if !ok {
		return 0, e.runtimeErrorf(expr.pos(), "expected a number, got %s", v)
	}
	return f, nil
}

func (e *Engine) evalPath(ctx context.Context, n *pathNode, fr *frame) (Value, error) {
	switch n.kind {
	case pathEnumMember:
		id := n.target.(*identNode)
		return EnumValue{Enum: id.name, Member: n.field}, nil
	case pathMember:
		tv, err := e.eval(ctx, n.target, fr)
		if err != nil {
			return nil, err
		}
		switch t := tv.(type) {
		case PointValue:
			switch n.field {
			case "x":
				return NumberValue(t.X), nil
			case "y":
				return NumberValue(t.Y), nil
			}
		case VectorValue:
			switch n.field {
			case "x":
				return NumberValue(t.X), nil
			case "y":
				return NumberValue(t.Y), nil
			case "angle":
				return NumberValue(t.Angle()), nil
			case "length":
				return NumberValue(t.Length()), nil
			}
		}
		return nil, e.runtimeErrorf(n.pos(), "%s has no member %s", tv, n.field)
	}

	if n.ref.kind != refNone {
		v, err := e.readRef(n.ref, fr)
		if err != nil {
			return nil, e.runtimeErrorf(n.pos(), "%s: %v", n, err)
		}
		return v, nil
	}

	// base without a static ref, e.g. an instance pulled out of an array
	tv, err := e.eval(ctx, n.target, fr)
	if err != nil {
		return nil, err
	}
	nv, ok := tv.(NodeValue)
	if !ok {
		return nil, e.runtimeErrorf(n.pos(), "%s has no property %s", tv, n.field)
	}
	nd := e.g.node(NodeID(nv))
	if n.kind == pathChild {
		child, ok := nd.child(n.field)
		if !ok {
			return nil, e.runtimeErrorf(n.pos(), "node(%d) has no child %s", int(nv), n.field)
		}
		return NodeValue(child), nil
	}
	v, ok := nd.Props[n.field]
	if !ok {
		return nil, e.runtimeErrorf(n.pos(), "node(%d) has no property %s", int(nv), n.field)
	}
	return v, nil
}

func (e *Engine) evalIndex(ctx context.Context, n *indexNode, fr *frame) (Value, error) {
	tv, err := e.eval(ctx, n.target, fr)
	if err != nil {
		return nil, err
	}
	list, ok := tv.(ListValue)
	if !ok {
		return nil, e.runtimeErrorf(n.pos(), "cannot index %s", tv)
	}
	iv, err := e.eval(ctx, n.index, fr)
	if err != nil {
		return nil, err
	}
	i, ok := asIndex(iv)
	if !ok || i < 0 || i >= len(list) {
		return nil, e.runtimeErrorf(n.pos(), "index %s out of range (length %d)", iv, len(list))
	}
	return list[i], nil
}

func (e *Engine) evalCall(ctx context.Context, n *callNode, fr *frame) (Value, error) {
	if n.name == "Point" || n.name == "Vector" {
		x, err := e.evalFloat(ctx, n.args[0], fr)
		if err != nil {
			return nil, err
		}
		y, err := e.evalFloat(ctx, n.args[1], fr)
		if err != nil {
			return nil, err
		}
		if n.name == "Point" {
			return PointValue{X: float32(x), Y: float32(y)}, nil
		}
		return VectorValue{X: float32(x), Y: float32(y)}, nil
	}

	spec, ok := builtins[n.name]
	if !ok {
		return nil, e.runtimeErrorf(n.pos(), "unknown function %s", n.name)
	}
	args := make([]Value, len(n.args))
	for i, arg := range n.args {
		v, err := e.eval(ctx, arg, fr)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	v, err := spec.fn(args)
	if err != nil {
		return nil, e.runtimeErrorf(n.pos(), "%s: %v", n.name, err)
	}
	return v, nil
}

func (e *Engine) evalUnary(ctx context.Context, n *unaryNode, fr *frame) (Value, error) {
	v, err := e.eval(ctx, n.right, fr)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case minus:
		switch t := v.(type) {
		case IntValue:
			return -t, nil
		case NumberValue:
			return -t, nil
		case VectorValue:
			return t.MulScalar(-1), nil
		}
	case notKeyword:
		if b, ok := v.(BoolValue); ok {
			return !b, nil
		}
	}
	return nil, e.runtimeErrorf(n.pos(), "cannot apply %s to %s", token{kind: n.op}, v)
}

func (e *Engine) evalBinaryNode(ctx context.Context, n *binaryNode, fr *frame) (Value, error) {
	// and / or short-circuit
	if n.op == andKeyword || n.op == orKeyword {
		l, err := e.evalBool(ctx, n.left, fr)
		if err != nil {
			return nil, err
		}
		if n.op == andKeyword && !l {
			return BoolValue(false), nil
		}
		if n.op == orKeyword && l {
			return BoolValue(true), nil
		}
		r, err := e.evalBool(ctx, n.right, fr)
		if err != nil {
			return nil, err
		}
		return BoolValue(r), nil
	}

	l, err := e.eval(ctx, n.left, fr)
	if err != nil {
		return nil, err
	}
	r, err := e.eval(ctx, n.right, fr)
	if err != nil {
		return nil, err
	}
	return e.evalBinary(n.op, l, r, n.pos())
}

func (e *Engine) evalBinary(op tokenKind, l, r Value, pos position) (Value, error) {
	switch op {
	case eq:
		return BoolValue(l.Eq(r)), nil
	case neq:
		return BoolValue(!l.Eq(r)), nil
	}

	// geometry overloads first, then the numeric tower
	switch lv := l.(type) {
	case PointValue:
		switch rv := r.(type) {
		case VectorValue:
			if op == plus {
				return lv.Add(rv), nil
			}
		case PointValue:
			if op == minus {
				return lv.Sub(rv), nil
			}
		}
	case VectorValue:
		switch rv := r.(type) {
		case VectorValue:
			switch op {
			case plus:
				return lv.Add(rv), nil
			case minus:
				return lv.Sub(rv), nil
			}
		case IntValue, NumberValue:
			if op == times {
				s, _ := asFloat(r)
				return lv.MulScalar(float32(s)), nil
			}
		}
	case IntValue, NumberValue:
		if op == times {
			switch rv := r.(type) {
			case VectorValue:
				s, _ := asFloat(l)
				return rv.MulScalar(float32(s)), nil
			case TimeValue:
				s, _ := asFloat(l)
				return TimeValue(s * float64(rv)), nil
			}
		}
	case StringValue:
		if rv, ok := r.(StringValue); ok {
			switch op {
			case plus:
				return lv + rv, nil
			case less:
				return BoolValue(lv < rv), nil
			case greater:
				return BoolValue(lv > rv), nil
			case leq:
				return BoolValue(lv <= rv), nil
			case geq:
				return BoolValue(lv >= rv), nil
			}
		}
	case TimeValue:
		switch rv := r.(type) {
		case TimeValue:
			switch op {
			case plus:
				return lv + rv, nil
			case minus:
				out := lv - rv
				if out < 0 {
					out = 0
				}
				return out, nil
			case less:
				return BoolValue(lv < rv), nil
			case greater:
				return BoolValue(lv > rv), nil
			case leq:
				return BoolValue(lv <= rv), nil
			case geq:
				return BoolValue(lv >= rv), nil
			}
		case IntValue, NumberValue:
			if op == times {
				s, _ := asFloat(r)
				return TimeValue(float64(lv) * s), nil
			}
		}
	}
	li, lInt := l.(IntValue)
	ri, rInt := r.(IntValue)
	if lInt && rInt {
		switch op {
		case plus:
			return li + ri, nil
		case minus:
			return li - ri, nil
		case times:
			return li * ri, nil
		case divide:
			if ri == 0 {
				return nil, e.runtimeErrorf(pos, "division by zero")
			}
			return li / ri, nil
		case modulus:
			if ri == 0 {
				return nil, e.runtimeErrorf(pos, "division by zero")
			}
			return li % ri, nil
		case less:
			return BoolValue(li < ri), nil
		case greater:
			return BoolValue(li > ri), nil
		case leq:
			return BoolValue(li <= ri), nil
		case geq:
			return BoolValue(li >= ri), nil
		}
	}

	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if lok && rok {
		switch op {
		case plus:
			return NumberValue(lf + rf), nil
		case minus:
			return NumberValue(lf - rf), nil
		case times:
			return NumberValue(lf * rf), nil
		case divide:
			if rf == 0 {
				return nil, e.runtimeErrorf(pos, "division by zero")
			}
			return NumberValue(lf / rf), nil
		case modulus:
			if rf == 0 {
				return nil, e.runtimeErrorf(pos, "division by zero")
			}
			return NumberValue(math.Mod(lf, rf)), nil
		case less:
			return BoolValue(lf < rf), nil
		case greater:
			return BoolValue(lf > rf), nil
		case leq:
			return BoolValue(lf <= rf), nil
		case geq:
			return BoolValue(lf >= rf), nil
		}
	}

	return nil, e.runtimeErrorf(pos, "operator %s not defined for %s and %s",
		token{kind: op}, l, r)
}
