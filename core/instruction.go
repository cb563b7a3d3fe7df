package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NodeID is the stable identity of a node in the object-graph arena.
type NodeID int

type refKind int

const (
	refNone refKind = iota
	refVar          // a program variable slot
	refProp         // a node property or nested child, reached from a base
)

// ref is a resolved reference to an assignment or operation target. The
// base is either a variable slot holding a NodeValue, or — inside an
// Action body — the instance the Action is scoped to, so that bodies stay
// instance-independent and survive deep copies unchanged.
type ref struct {
	kind  refKind
	slot  int      // base variable slot, when owner is false
	owner bool     // base is the running Action's owner node
	path  []string // child names walked from the base node
	field string   // final property; empty when the ref denotes the node itself
}

func (r ref) String() string {
	var base string
	switch r.kind {
	case refNone:
		return "_"
	case refVar:
		base = "$" + strconv.Itoa(r.slot)
	case refProp:
		if r.owner {
			base = "@"
		} else {
			base = "$" + strconv.Itoa(r.slot)
		}
	}
	for _, part := range r.path {
		base += "." + part
	}
	if r.field != "" {
		base += "." + r.field
	}
	return base
}

// child extends a node-denoting ref by one nested child.
func (r ref) child(name string) ref {
	next := r
	next.path = append(append([]string{}, r.path...), name)
	return next
}

// prop narrows a node-denoting ref to one of the node's properties.
func (r ref) prop(name string) ref {
	next := r
	next.path = append([]string{}, r.path...)
	next.field = name
	return next
}

type OpKind int

const (
	OpCreate OpKind = iota
	OpSet
	OpMove
	OpRotate
	OpRefresh
	OpWait
	OpDeepCopy
	OpClose
	OpPlay
	OpIf
	OpFor
	OpWhile
	OpRepeat
)

var opNames = map[OpKind]string{
	OpCreate:   "create",
	OpSet:      "set",
	OpMove:     "move",
	OpRotate:   "rotate",
	OpRefresh:  "refresh",
	OpWait:     "wait",
	OpDeepCopy: "deepcopy",
	OpClose:    "close",
	OpPlay:     "play",
	OpIf:       "if",
	OpFor:      "for",
	OpWhile:    "while",
	OpRepeat:   "repeat",
}

func (k OpKind) String() string {
	if name, ok := opNames[k]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(k))
}

type playBinding struct {
	Name   string
	Target exprNode
	p      position
}

// Instruction is one operation of the generated program. The stream is
// structured: control-flow instructions carry their bodies instead of jump
// offsets, which keeps it serializable and directly replayable.
type Instruction struct {
	Kind     OpKind
	Target   ref
	Src      ref    // deepcopy source
	Node     NodeID // create: the arena node to materialize
	Name     string // wait: event kind
	Expr     exprNode
	Index    exprNode // set: array element subscript
	Value    Value    // set: pre-evaluated constant, used when Expr is nil
	From     exprNode // for: range bounds
	To       exprNode
	Step     exprNode
	Body     []Instruction
	Else     []Instruction
	Bindings []playBinding
	p        position
}

func (ins Instruction) summary() string {
	switch ins.Kind {
	case OpCreate:
		return fmt.Sprintf("create node(%d) -> %s", int(ins.Node), ins.Target)
	case OpSet:
		target := ins.Target.String()
		if ins.Index != nil {
			target += "[" + ins.Index.String() + "]"
		}
		if ins.Expr == nil {
			return fmt.Sprintf("set %s = %s", target, ins.Value)
		}
		return fmt.Sprintf("set %s = %s", target, ins.Expr)
	case OpMove:
		return fmt.Sprintf("move %s to %s", ins.Target, ins.Expr)
	case OpRotate:
		return fmt.Sprintf("rotate %s by %s", ins.Target, ins.Expr)
	case OpRefresh:
		if ins.Expr != nil {
			return fmt.Sprintf("refresh %s after %s", ins.Target, ins.Expr)
		}
		return fmt.Sprintf("refresh %s", ins.Target)
	case OpWait:
		if ins.Target.kind != refNone {
			return fmt.Sprintf("wait %s -> %s", ins.Name, ins.Target)
		}
		return "wait " + ins.Name
	case OpDeepCopy:
		return fmt.Sprintf("deepcopy %s -> %s", ins.Src, ins.Target)
	case OpClose:
		return "close " + ins.Target.String()
	case OpPlay:
		binds := make([]string, len(ins.Bindings))
		for i, b := range ins.Bindings {
			binds[i] = b.Name + " = " + b.Target.String()
		}
		return fmt.Sprintf("play %s with { %s }", ins.Expr, strings.Join(binds, ", "))
	case OpIf:
		return fmt.Sprintf("if %s", ins.Expr)
	case OpFor:
		if ins.Step != nil {
			return fmt.Sprintf("for %s in %s..%s..%s", ins.Target, ins.From, ins.To, ins.Step)
		}
		return fmt.Sprintf("for %s in %s..%s", ins.Target, ins.From, ins.To)
	case OpWhile:
		return fmt.Sprintf("while %s", ins.Expr)
	case OpRepeat:
		return fmt.Sprintf("repeat until %s", ins.Expr)
	}
	return ins.Kind.String()
}

func (ins Instruction) MarshalJSON() ([]byte, error) {
	obj := map[string]any{"op": ins.Kind.String()}
	if ins.Target.kind != refNone {
		obj["target"] = ins.Target.String()
	}
	if ins.Src.kind != refNone {
		obj["src"] = ins.Src.String()
	}
	if ins.Kind == OpCreate {
		obj["node"] = int(ins.Node)
	}
	if ins.Name != "" {
		obj["event"] = ins.Name
	}
	if ins.Expr != nil {
		obj["expr"] = ins.Expr.String()
	} else if ins.Value != nil {
		obj["value"] = ins.Value.String()
	}
	if ins.Index != nil {
		obj["index"] = ins.Index.String()
	}
	if ins.From != nil {
		obj["from"] = ins.From.String()
		obj["to"] = ins.To.String()
	}
	if ins.Step != nil {
		obj["step"] = ins.Step.String()
	}
	if len(ins.Bindings) > 0 {
		binds := map[string]string{}
		for _, b := range ins.Bindings {
			binds[b.Name] = b.Target.String()
		}
		obj["bindings"] = binds
	}
	if ins.Body != nil {
		obj["body"] = ins.Body
	}
	if ins.Else != nil {
		obj["else"] = ins.Else
	}
	return json.Marshal(obj)
}

// Program is the Code Generator's output: the instruction stream plus the
// object graph it references. It is the only handoff artifact between
// compile time and run time.
type Program struct {
	Instructions []Instruction

	graph    *graph
	analysis *analysis
	globals  int
}

// Disassemble renders the instruction stream for debugging and snapshot
// tests.
func (p *Program) Disassemble() string {
	var out bytes.Buffer
	disassemble(&out, p.Instructions, 0)
	return out.String()
}

func disassemble(out *bytes.Buffer, ins []Instruction, depth int) {
	indent := strings.Repeat("  ", depth)
	for i, instr := range ins {
		fmt.Fprintf(out, "%s%04d %s\n", indent, i, instr.summary())
		if len(instr.Body) > 0 {
			disassemble(out, instr.Body, depth+1)
		}
		if len(instr.Else) > 0 {
			fmt.Fprintf(out, "%s     else\n", indent)
			disassemble(out, instr.Else, depth+1)
		}
	}
}

func (p *Program) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Instructions)
}
