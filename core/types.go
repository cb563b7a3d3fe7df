package core

import (
	"fmt"
)

// TypeKind enumerates the static types of the language.
type TypeKind int

const (
	InvalidType TypeKind = iota
	IntegerType
	NumberType
	StringType
	BooleanType
	PointType
	VectorType
	TimeType
	ArrayType
	EnumType
	ModelType
	ViewType
	ScriptType
	ShapeType
)

// Type is the statically-determined type of an expression. Every expression
// node carries exactly one after analysis.
type Type struct {
	Kind  TypeKind
	Elem  *Type     // ArrayType element
	Name  string    // ModelType / EnumType name
	Shape ShapeKind // ShapeType primitive kind
}

var (
	typeInvalid = Type{Kind: InvalidType}
	typeInteger = Type{Kind: IntegerType}
	typeNumber  = Type{Kind: NumberType}
	typeString  = Type{Kind: StringType}
	typeBoolean = Type{Kind: BooleanType}
	typePoint   = Type{Kind: PointType}
	typeVector  = Type{Kind: VectorType}
	typeTime    = Type{Kind: TimeType}
	typeScript  = Type{Kind: ScriptType}
	typeView    = Type{Kind: ViewType}
)

func (t Type) String() string {
	switch t.Kind {
	case InvalidType:
		return "<invalid>"
	case IntegerType:
		return "Integer"
	case NumberType:
		return "Number"
	case StringType:
		return "String"
	case BooleanType:
		return "Boolean"
	case PointType:
		return "Point"
	case VectorType:
		return "Vector"
	case TimeType:
		return "Time"
	case ArrayType:
		return "Array<" + t.Elem.String() + ">"
	case EnumType, ModelType:
		return t.Name
	case ViewType:
		return "View"
	case ScriptType:
		return "Script"
	case ShapeType:
		return t.Shape.String()
	}
	return "<invalid>"
}

func (t Type) eq(u Type) bool {
	if t.Kind != u.Kind {
		return false
	}
	switch t.Kind {
	case ArrayType:
		return t.Elem.eq(*u.Elem)
	case EnumType, ModelType:
		return t.Name == u.Name
	case ShapeType:
		return t.Shape == u.Shape
	}
	return true
}

func isNumeric(t Type) bool {
	return t.Kind == IntegerType || t.Kind == NumberType
}

// isInstance reports whether the type denotes an object-graph node.
func isInstance(t Type) bool {
	return t.Kind == ModelType || t.Kind == ShapeType || t.Kind == ViewType
}

// assignable reports whether a value of type src may be assigned to a
// target of type dst. Integer widens to Number; an empty array literal
// (element type still unknown) assigns to any array.
func assignable(dst, src Type) bool {
	if dst.Kind == NumberType && src.Kind == IntegerType {
		return true
	}
	if dst.Kind == ArrayType && src.Kind == ArrayType {
		if src.Elem.Kind == InvalidType {
			return true
		}
		return assignable(*dst.Elem, *src.Elem)
	}
	return dst.eq(src)
}

// unify merges two array-element candidate types, widening Integer to
// Number when mixed.
func unify(a, b Type) (Type, bool) {
	if a.eq(b) {
		return a, true
	}
	if isNumeric(a) && isNumeric(b) {
		return typeNumber, true
	}
	if a.Kind == ArrayType && b.Kind == ArrayType {
		if a.Elem.Kind == InvalidType {
			return b, true
		}
		if b.Elem.Kind == InvalidType {
			return a, true
		}
		elem, ok := unify(*a.Elem, *b.Elem)
		if !ok {
			return typeInvalid, false
		}
		return Type{Kind: ArrayType, Elem: &elem}, true
	}
	return typeInvalid, false
}

// ---- model specs ----

type modelField struct {
	name string
	typ  Type
	decl *declNode
}

type modelSpec struct {
	name    string
	fields  []modelField
	actions []*actionDeclNode
	decl    *modelDeclNode
}

func (m *modelSpec) field(name string) (modelField, bool) {
	for _, f := range m.fields {
		if f.name == name {
			return f, true
		}
	}
	return modelField{}, false
}

// analysis is the semantic analyzer's output: the model/enum registries and
// the number of variable slots the program needs.
type analysis struct {
	models  map[string]*modelSpec
	enums   map[string][]string
	slots   int
	globals map[string]*symbol // top-level declarations by name
}

// ---- analyzer ----

type symbol struct {
	name string
	typ  Type
	ref  ref
}

type scope struct {
	parent *scope
	names  map[string]*symbol
}

func (s *scope) lookup(name string) (*symbol, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if sym, ok := cur.names[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

func (s *scope) declaredHere(name string) bool {
	_, ok := s.names[name]
	return ok
}

type analyzer struct {
	models  map[string]*modelSpec
	enums   map[string][]string
	scope   *scope
	slots   int
	current *modelSpec // non-nil while analyzing a Model's action bodies
	repeats int        // nesting depth of re-executing blocks (loops, Action bodies)
	errs    ErrorList
}

func newAnalyzer() *analyzer {
	return &analyzer{
		models: map[string]*modelSpec{},
		enums:  map[string][]string{},
		scope:  &scope{names: map[string]*symbol{}},
	}
}

// analyze runs semantic analysis over a host program, decorating every
// expression with its Type and resolving every name. All diagnostics are
// collected and reported together.
func analyze(program []astNode) (*analysis, error) {
	a := newAnalyzer()
	for _, stmt := range program {
		a.analyzeStmt(stmt)
	}
	if len(a.errs) > 0 {
		return nil, a.errs
	}
	return &analysis{models: a.models, enums: a.enums, slots: a.slots, globals: a.scope.names}, nil
}

// scriptBinding is one name the script scope is seeded with at play time.
type scriptBinding struct {
	name string
	typ  Type
}

// analyzeScript analyzes a script AST against the host program's model
// registry, with the binding table as the only pre-seeded names. Returns
// the script's slot count; binding i occupies slot i.
func analyzeScript(program []astNode, host *analysis, bindings []scriptBinding) (int, error) {
	a := newAnalyzer()
	a.models = host.models
	a.enums = host.enums
	for i, b := range bindings {
		a.scope.names[b.name] = &symbol{
			name: b.name,
			typ:  b.typ,
			ref:  ref{kind: refVar, slot: i},
		}
		a.slots++
	}
	for _, stmt := range program {
		a.analyzeStmt(stmt)
	}
	if len(a.errs) > 0 {
		return 0, a.errs
	}
	return a.slots, nil
}

func (a *analyzer) typeErrorf(pos position, format string, args ...any) {
	a.errs = append(a.errs, &TypeError{Reason: fmt.Sprintf(format, args...), Pos: pos})
}

func (a *analyzer) nameError(pos position, name string) {
	a.errs = append(a.errs, &NameError{Name: name, Pos: pos})
}

func (a *analyzer) pushScope() {
	a.scope = &scope{parent: a.scope, names: map[string]*symbol{}}
}

func (a *analyzer) popScope() {
	a.scope = a.scope.parent
}

func (a *analyzer) define(name string, t Type, pos position) int {
	if a.scope.declaredHere(name) {
		a.typeErrorf(pos, "%s is already declared", name)
	}
	slot := a.slots
	a.slots++
	a.scope.names[name] = &symbol{
		name: name,
		typ:  t,
		ref:  ref{kind: refVar, slot: slot},
	}
	return slot
}

func (a *analyzer) resolveType(tr *typeRef) Type {
	switch tr.name {
	case "Integer":
		return typeInteger
	case "Number":
		return typeNumber
	case "String":
		return typeString
	case "Boolean":
		return typeBoolean
	case "Point":
		return typePoint
	case "Vector":
		return typeVector
	case "Time":
		return typeTime
	case "Script":
		return typeScript
	case "View":
		return typeView
	case "Array":
		elem := a.resolveType(tr.elem)
		return Type{Kind: ArrayType, Elem: &elem}
	}
	if kind, ok := shapeNames[tr.name]; ok {
		return Type{Kind: ShapeType, Shape: kind}
	}
	if _, ok := a.models[tr.name]; ok {
		return Type{Kind: ModelType, Name: tr.name}
	}
	if _, ok := a.enums[tr.name]; ok {
		return Type{Kind: EnumType, Name: tr.name}
	}
	a.nameError(tr.p, tr.name)
	return typeInvalid
}

// ---- statements ----

func (a *analyzer) analyzeStmt(stmt astNode) {
	switch n := stmt.(type) {
	case *modelDeclNode:
		a.analyzeModelDecl(n)
	case *enumDeclNode:
		if _, ok := a.enums[n.name]; ok {
			a.typeErrorf(n.pos(), "%s is already declared", n.name)
			return
		}
		seen := map[string]bool{}
		for _, member := range n.members {
			if seen[member] {
				a.typeErrorf(n.pos(), "duplicate enum member %s.%s", n.name, member)
			}
			seen[member] = true
		}
		a.enums[n.name] = n.members
	case *declNode:
		a.analyzeDecl(n)
	case *assignNode:
		a.analyzeAssign(n)
	case *moveNode:
		t := a.analyzeExpr(n.target, typeInvalid)
		if t.Kind != ModelType && t.Kind != ShapeType && t.Kind != InvalidType {
			a.typeErrorf(n.pos(), "cannot move a %s", t)
		}
		a.expectExpr(n.dest, typePoint, "move destination")
	case *rotateNode:
		t := a.analyzeExpr(n.target, typeInvalid)
		if t.Kind != ModelType && t.Kind != ShapeType && t.Kind != InvalidType {
			a.typeErrorf(n.pos(), "cannot rotate a %s", t)
		}
		dt := a.analyzeExpr(n.by, typeInvalid)
		if !isNumeric(dt) && dt.Kind != InvalidType {
			a.typeErrorf(n.by.pos(), "rotate angle must be numeric, got %s", dt)
		}
	case *refreshNode:
		t := a.analyzeExpr(n.target, typeInvalid)
		if t.Kind != ViewType && t.Kind != InvalidType {
			a.typeErrorf(n.pos(), "refresh target must be a View, got %s", t)
		}
		if n.after != nil {
			a.expectExpr(n.after, typeTime, "refresh delay")
		}
	case *closeNode:
		t := a.analyzeExpr(n.target, typeInvalid)
		if t.Kind != ViewType && t.Kind != InvalidType {
			a.typeErrorf(n.pos(), "close target must be a View, got %s", t)
		}
	case *waitStmtNode:
		if _, ok := eventType(n.event); !ok {
			a.typeErrorf(n.pos(), "unknown event kind %s", n.event)
		}
	case *withNode:
		a.analyzeWith(n)
	case *playNode:
		a.expectExpr(n.script, typeScript, "play target")
		for _, b := range n.bindings {
			t := a.analyzeExpr(b.target, typeInvalid)
			if !isInstance(t) && t.Kind != InvalidType {
				a.typeErrorf(b.p, "binding %s must reference a Model, View, or primitive, got %s", b.name, t)
			}
		}
	case *ifNode:
		a.expectExpr(n.cond, typeBoolean, "if condition")
		a.analyzeBlock(n.then)
		if n.els != nil {
			a.analyzeBlock(n.els)
		}
	case *forNode:
		ft := a.analyzeExpr(n.from, typeInvalid)
		tt := a.analyzeExpr(n.to, typeInvalid)
		if (!isNumeric(ft) && ft.Kind != InvalidType) || (!isNumeric(tt) && tt.Kind != InvalidType) {
			a.typeErrorf(n.pos(), "range bounds must be numeric")
		}
		if n.step != nil {
			st := a.analyzeExpr(n.step, typeInvalid)
			if !isNumeric(st) && st.Kind != InvalidType {
				a.typeErrorf(n.step.pos(), "range step must be numeric")
			}
		}
		varType := typeInteger
		if ft.Kind == NumberType || tt.Kind == NumberType {
			varType = typeNumber
		}
		a.pushScope()
		n.slot = a.define(n.varName, varType, n.pos())
		a.repeats++
		a.analyzeBlockFlat(n.body)
		a.repeats--
		a.popScope()
	case *whileNode:
		a.expectExpr(n.cond, typeBoolean, "while condition")
		a.repeats++
		a.analyzeBlock(n.body)
		a.repeats--
	case *repeatNode:
		a.repeats++
		a.analyzeBlock(n.body)
		a.repeats--
		a.expectExpr(n.cond, typeBoolean, "until condition")
	default:
		a.typeErrorf(stmt.pos(), "unexpected statement %s", stmt)
	}
}

func (a *analyzer) analyzeBlock(stmts []astNode) {
	a.pushScope()
	a.analyzeBlockFlat(stmts)
	a.popScope()
}

func (a *analyzer) analyzeBlockFlat(stmts []astNode) {
	for _, stmt := range stmts {
		a.analyzeStmt(stmt)
	}
}

func (a *analyzer) expectExpr(e exprNode, want Type, what string) {
	got := a.analyzeExpr(e, want)
	if got.Kind == InvalidType {
		return
	}
	if !assignable(want, got) {
		a.typeErrorf(e.pos(), "%s must be %s, got %s", what, want, got)
	}
}

func (a *analyzer) analyzeDecl(d *declNode) {
	t := a.resolveType(d.declared)
	d.typ = t

	// an instance declaration names exactly one node for the whole run, so
	// it cannot sit in a block that executes more than once
	if a.repeats > 0 && isInstance(t) {
		a.typeErrorf(d.pos(), "cannot declare an instance inside a loop or Action body")
	}

	switch t.Kind {
	case ShapeType, ModelType:
		if d.at != nil {
			a.expectExpr(d.at, typePoint, "position")
		}
		a.analyzeProps(t, d.props)
		if d.init != nil {
			if _, ok := d.init.(*copyNode); !ok {
				a.typeErrorf(d.init.pos(), "%s instances are created by declaration or copy", t)
			} else {
				it := a.analyzeExpr(d.init, t)
				if it.Kind != InvalidType && !it.eq(t) {
					a.typeErrorf(d.init.pos(), "cannot initialize %s from a copy of %s", t, it)
				}
			}
		}
	case ViewType:
		if d.at != nil {
			a.typeErrorf(d.at.pos(), "a View has an origin property, not a position")
		}
		a.analyzeProps(t, d.props)
		if d.init != nil {
			a.typeErrorf(d.init.pos(), "a View cannot have an initializer")
		}
	case ScriptType:
		if d.at != nil || len(d.props) > 0 {
			a.typeErrorf(d.pos(), "a Script has no position or properties")
		}
		if d.init == nil {
			a.typeErrorf(d.pos(), "a Script declaration requires a load initializer")
		} else {
			a.expectExpr(d.init, typeScript, "script initializer")
		}
	case InvalidType:
		// the unresolved type already produced a NameError
	default:
		if d.at != nil {
			a.typeErrorf(d.at.pos(), "%s has no position", t)
		}
		if len(d.props) > 0 {
			a.typeErrorf(d.pos(), "%s has no properties", t)
		}
		if d.init != nil {
			it := a.analyzeExpr(d.init, t)
			if it.Kind != InvalidType && !assignable(t, it) {
				a.typeErrorf(d.init.pos(), "cannot assign %s to %s", it, t)
			}
		} else if t.Kind == EnumType {
			a.typeErrorf(d.pos(), "an enum variable requires an initializer")
		}
	}

	d.slot = a.define(d.name, t, d.pos())
}

// propSchema returns the assignable property set of an instance type.
// Model instances expose their scalar state fields.
func (a *analyzer) propSchema(t Type) (map[string]Type, bool) {
	switch t.Kind {
	case ShapeType:
		return shapeProps(t.Shape), true
	case ViewType:
		return viewProps, true
	case ModelType:
		spec, ok := a.models[t.Name]
		if !ok {
			return nil, false
		}
		props := map[string]Type{"position": typePoint}
		for _, f := range spec.fields {
			if !isInstance(f.typ) {
				props[f.name] = f.typ
			}
		}
		return props, true
	}
	return nil, false
}

func (a *analyzer) analyzeProps(t Type, props []propAssign) {
	schema, ok := a.propSchema(t)
	if !ok {
		return
	}
	for _, prop := range props {
		want, ok := schema[prop.name]
		if !ok {
			a.typeErrorf(prop.p, "%s has no property %s", t, prop.name)
			a.analyzeExpr(prop.value, typeInvalid)
			continue
		}
		got := a.analyzeExpr(prop.value, want)
		if got.Kind != InvalidType && !assignable(want, got) {
			a.typeErrorf(prop.p, "property %s of %s must be %s, got %s", prop.name, t, want, got)
		}
	}
}

func (a *analyzer) analyzeModelDecl(n *modelDeclNode) {
	if _, ok := a.models[n.name]; ok {
		a.typeErrorf(n.pos(), "%s is already declared", n.name)
		return
	}
	if _, ok := shapeNames[n.name]; ok {
		a.typeErrorf(n.pos(), "%s shadows a primitive type", n.name)
		return
	}

	spec := &modelSpec{name: n.name, decl: n, actions: n.actions}

	// field declarations first, in a scope of their own so that positions
	// and defaults cannot reach program variables
	a.pushScope()
	savedSlots := a.slots
	for _, field := range n.fields {
		a.analyzeDecl(field)
		if _, ok := field.init.(*copyNode); ok {
			a.typeErrorf(field.init.pos(), "a Model field cannot be initialized with copy")
		}
		spec.fields = append(spec.fields, modelField{name: field.name, typ: field.typ, decl: field})
	}
	a.popScope()
	a.slots = savedSlots

	// the model type must be registered before action bodies run, so an
	// action can copy-free reference sibling fields
	a.models[n.name] = spec

	for _, action := range n.actions {
		a.validateActionPath(spec, action)
		a.analyzeActionBody(spec, action)
	}
}

// validateActionPath checks that an Action's observed property resolves to
// a declared field of the Model, following nested instance paths.
func (a *analyzer) validateActionPath(spec *modelSpec, action *actionDeclNode) {
	cur := spec
	for i, part := range action.path {
		field, ok := cur.field(part)
		if !ok {
			a.typeErrorf(action.pos(), "Action observes %s, which is not a field of %s",
				joinPath(action.path), spec.name)
			return
		}
		last := i == len(action.path)-1
		switch field.typ.Kind {
		case ModelType:
			if last {
				a.typeErrorf(action.pos(), "Action cannot observe the instance %s itself", part)
				return
			}
			cur = a.models[field.typ.Name]
		case ShapeType:
			if last {
				a.typeErrorf(action.pos(), "Action cannot observe the instance %s itself", part)
				return
			}
			if i != len(action.path)-2 {
				a.typeErrorf(action.pos(), "%s is a primitive; only its direct properties can be observed", part)
				return
			}
			props := shapeProps(field.typ.Shape)
			if _, ok := props[action.path[i+1]]; !ok {
				a.typeErrorf(action.pos(), "%s has no property %s", field.typ, action.path[i+1])
			}
			return
		default:
			if !last {
				a.typeErrorf(action.pos(), "%s is not an instance; cannot observe %s",
					part, joinPath(action.path))
				return
			}
		}
	}
}

func (a *analyzer) analyzeActionBody(spec *modelSpec, action *actionDeclNode) {
	prev := a.current
	a.current = spec
	a.pushScope()

	// fields of the enclosing Model are in scope, addressed relative to the
	// instance the Action runs on
	for _, field := range spec.fields {
		var r ref
		if isInstance(field.typ) {
			r = ref{kind: refProp, owner: true, path: []string{field.name}}
		} else {
			r = ref{kind: refProp, owner: true, field: field.name}
		}
		a.scope.names[field.name] = &symbol{name: field.name, typ: field.typ, ref: r}
	}
	// the instance's own position is writable from its Actions
	a.scope.names["position"] = &symbol{
		name: "position",
		typ:  typePoint,
		ref:  ref{kind: refProp, owner: true, field: "position"},
	}

	a.repeats++
	a.analyzeBlockFlat(action.body)
	a.repeats--
	a.popScope()
	a.current = prev
}

func (a *analyzer) analyzeAssign(n *assignNode) {
	tt := a.analyzeExpr(n.target, typeInvalid)

	switch target := n.target.(type) {
	case *identNode:
		if isInstance(tt) {
			a.typeErrorf(n.pos(), "cannot reassign the instance %s", target.name)
			return
		}
	case *pathNode:
		switch target.kind {
		case pathChild:
			a.typeErrorf(n.pos(), "cannot replace the nested instance %s", target)
			return
		case pathMember, pathEnumMember:
			a.typeErrorf(n.pos(), "%s is read-only", target)
			return
		}
	case *indexNode:
		// element assignment through any lvalue chain
	default:
		a.typeErrorf(n.pos(), "cannot assign to %s", n.target)
		return
	}

	vt := a.analyzeExpr(n.value, tt)
	if tt.Kind == InvalidType || vt.Kind == InvalidType {
		return
	}
	if !assignable(tt, vt) {
		a.typeErrorf(n.pos(), "cannot assign %s to %s", vt, tt)
	}
}

func (a *analyzer) analyzeWith(n *withNode) {
	t := a.analyzeExpr(n.target, typeInvalid)
	if t.Kind == InvalidType {
		return
	}
	if !isInstance(t) {
		a.typeErrorf(n.pos(), "with target must be an instance, got %s", t)
		return
	}
	a.analyzeProps(t, n.props)
}

// ---- expressions ----

func eventType(kind string) (Type, bool) {
	switch kind {
	case "click":
		return typePoint, true
	case "keypress":
		return typeString, true
	}
	return typeInvalid, false
}

// nodeRef extracts the resolved node-denoting ref of an expression, if it
// has one.
func nodeRef(e exprNode) (ref, bool) {
	switch n := e.(type) {
	case *identNode:
		if isInstance(n.typ) {
			return n.ref, true
		}
	case *pathNode:
		if n.kind == pathChild {
			return n.ref, true
		}
	}
	return ref{}, false
}

func (a *analyzer) analyzeExpr(e exprNode, hint Type) Type {
	switch n := e.(type) {
	case *intNode, *numberNode, *stringNode, *boolNode, *timeNode:
		return e.resultType()
	case *pointNode:
		a.expectExpr(n.x, typeNumber, "Point x")
		a.expectExpr(n.y, typeNumber, "Point y")
		return typePoint
	case *polarNode:
		a.expectExpr(n.angle, typeNumber, "polar angle")
		a.expectExpr(n.length, typeNumber, "polar length")
		return typeVector
	case *listNode:
		return a.analyzeList(n, hint)
	case *identNode:
		sym, ok := a.scope.lookup(n.name)
		if !ok {
			a.nameError(n.pos(), n.name)
			n.typ = typeInvalid
			return typeInvalid
		}
		n.typ = sym.typ
		n.ref = sym.ref
		return n.typ
	case *pathNode:
		return a.analyzePath(n)
	case *indexNode:
		tt := a.analyzeExpr(n.target, typeInvalid)
		a.expectExpr(n.index, typeInteger, "index")
		if tt.Kind == InvalidType {
			n.typ = typeInvalid
			return typeInvalid
		}
		if tt.Kind != ArrayType {
			a.typeErrorf(n.pos(), "cannot index a %s", tt)
			n.typ = typeInvalid
			return typeInvalid
		}
		n.typ = *tt.Elem
		return n.typ
	case *callNode:
		return a.analyzeCall(n)
	case *unaryNode:
		return a.analyzeUnary(n)
	case *binaryNode:
		return a.analyzeBinary(n)
	case *copyNode:
		t := a.analyzeExpr(n.src, typeInvalid)
		if t.Kind != InvalidType && t.Kind != ModelType && t.Kind != ShapeType {
			a.typeErrorf(n.pos(), "copy source must be a Model or primitive instance, got %s", t)
			t = typeInvalid
		}
		n.typ = t
		return t
	case *loadNode:
		return typeScript
	case *waitNode:
		t, ok := eventType(n.event)
		if !ok {
			a.typeErrorf(n.pos(), "unknown event kind %s", n.event)
		}
		n.typ = t
		return t
	}
	a.typeErrorf(e.pos(), "unexpected expression %s", e)
	return typeInvalid
}

func (a *analyzer) analyzeList(n *listNode, hint Type) Type {
	if len(n.items) == 0 {
		if hint.Kind == ArrayType {
			n.typ = hint
		} else {
			n.typ = Type{Kind: ArrayType, Elem: &typeInvalid}
		}
		return n.typ
	}

	var itemHint Type
	if hint.Kind == ArrayType {
		itemHint = *hint.Elem
	}

	elem := a.analyzeExpr(n.items[0], itemHint)
	for _, item := range n.items[1:] {
		it := a.analyzeExpr(item, itemHint)
		if elem.Kind == InvalidType || it.Kind == InvalidType {
			elem = typeInvalid
			continue
		}
		merged, ok := unify(elem, it)
		if !ok {
			a.typeErrorf(item.pos(), "array elements must share one type: %s vs %s", elem, it)
			elem = typeInvalid
			break
		}
		elem = merged
	}

	e := elem
	n.typ = Type{Kind: ArrayType, Elem: &e}
	return n.typ
}

func (a *analyzer) analyzePath(n *pathNode) Type {
	// Enum.member resolves without looking the target up as a variable
	if id, ok := n.target.(*identNode); ok {
		if members, ok := a.enums[id.name]; ok {
			for _, member := range members {
				if member == n.field {
					n.kind = pathEnumMember
					n.typ = Type{Kind: EnumType, Name: id.name}
					id.typ = n.typ
					return n.typ
				}
			}
			a.typeErrorf(n.pos(), "%s has no member %s", id.name, n.field)
			n.typ = typeInvalid
			return typeInvalid
		}
	}

	tt := a.analyzeExpr(n.target, typeInvalid)
	if tt.Kind == InvalidType {
		n.typ = typeInvalid
		return typeInvalid
	}

	switch tt.Kind {
	case ModelType:
		spec, ok := a.models[tt.Name]
		if !ok {
			n.typ = typeInvalid
			return typeInvalid
		}
		base, haveRef := nodeRef(n.target)
		if n.field == "position" {
			n.kind = pathProp
			if haveRef {
				n.ref = base.prop("position")
			}
			n.typ = typePoint
			return n.typ
		}
		field, ok := spec.field(n.field)
		if !ok {
			a.typeErrorf(n.pos(), "%s has no field %s", tt, n.field)
			n.typ = typeInvalid
			return typeInvalid
		}
		if isInstance(field.typ) {
			n.kind = pathChild
			if haveRef {
				n.ref = base.child(n.field)
			}
		} else {
			n.kind = pathProp
			if haveRef {
				n.ref = base.prop(n.field)
			}
		}
		n.typ = field.typ
		return n.typ
	case ShapeType, ViewType:
		schema, _ := a.propSchema(tt)
		want, ok := schema[n.field]
		if !ok {
			a.typeErrorf(n.pos(), "%s has no property %s", tt, n.field)
			n.typ = typeInvalid
			return typeInvalid
		}
		n.kind = pathProp
		if base, haveRef := nodeRef(n.target); haveRef {
			n.ref = base.prop(n.field)
		}
		n.typ = want
		return n.typ
	case PointType:
		switch n.field {
		case "x", "y":
			n.kind = pathMember
			n.typ = typeNumber
			return n.typ
		}
		a.typeErrorf(n.pos(), "Point has no member %s", n.field)
	case VectorType:
		switch n.field {
		case "x", "y", "angle", "length":
			n.kind = pathMember
			n.typ = typeNumber
			return n.typ
		}
		a.typeErrorf(n.pos(), "Vector has no member %s", n.field)
	default:
		a.typeErrorf(n.pos(), "%s has no properties", tt)
	}
	n.typ = typeInvalid
	return typeInvalid
}

func (a *analyzer) analyzeCall(n *callNode) Type {
	// Point and Vector Cartesian constructors
	if n.name == "Point" || n.name == "Vector" {
		if len(n.args) != 2 {
			a.typeErrorf(n.pos(), "%s requires 2 arguments, got %d", n.name, len(n.args))
		}
		for _, arg := range n.args {
			a.expectExpr(arg, typeNumber, n.name+" component")
		}
		if n.name == "Point" {
			n.typ = typePoint
		} else {
			n.typ = typeVector
		}
		return n.typ
	}

	spec, ok := builtins[n.name]
	if !ok {
		a.nameError(n.pos(), n.name)
		n.typ = typeInvalid
		return typeInvalid
	}
	if len(n.args) != len(spec.params) {
		a.typeErrorf(n.pos(), "%s requires %d arguments, got %d", n.name, len(spec.params), len(n.args))
	}
	for i, arg := range n.args {
		if i >= len(spec.params) {
			a.analyzeExpr(arg, typeInvalid)
			continue
		}
		a.expectExpr(arg, spec.params[i], n.name+" argument")
	}
	n.typ = spec.result
	return n.typ
}

func (a *analyzer) analyzeUnary(n *unaryNode) Type {
	rt := a.analyzeExpr(n.right, typeInvalid)
	if rt.Kind == InvalidType {
		n.typ = typeInvalid
		return typeInvalid
	}

	switch n.op {
	case minus:
		switch rt.Kind {
		case IntegerType, NumberType, VectorType:
			n.typ = rt
			return rt
		case TimeType:
			a.typeErrorf(n.pos(), "Time is non-negative and cannot be negated")
		default:
			a.typeErrorf(n.pos(), "cannot negate a %s", rt)
		}
	case notKeyword:
		if rt.Kind == BooleanType {
			n.typ = typeBoolean
			return n.typ
		}
		a.typeErrorf(n.pos(), "not requires a Boolean, got %s", rt)
	}
	n.typ = typeInvalid
	return typeInvalid
}

func (a *analyzer) analyzeBinary(n *binaryNode) Type {
	lt := a.analyzeExpr(n.left, typeInvalid)
	rt := a.analyzeExpr(n.right, typeInvalid)
	if lt.Kind == InvalidType || rt.Kind == InvalidType {
		n.typ = typeInvalid
		return typeInvalid
	}

	result := typeInvalid
	switch n.op {
	case plus:
		switch {
		case isNumeric(lt) && isNumeric(rt):
			result = arithType(lt, rt)
		case lt.Kind == PointType && rt.Kind == VectorType:
			result = typePoint
		case lt.Kind == VectorType && rt.Kind == VectorType:
			result = typeVector
		case lt.Kind == TimeType && rt.Kind == TimeType:
			result = typeTime
		case lt.Kind == StringType && rt.Kind == StringType:
			result = typeString
		}
	case minus:
		switch {
		case isNumeric(lt) && isNumeric(rt):
			result = arithType(lt, rt)
		case lt.Kind == PointType && rt.Kind == PointType:
			result = typeVector
		case lt.Kind == VectorType && rt.Kind == VectorType:
			result = typeVector
		case lt.Kind == TimeType && rt.Kind == TimeType:
			result = typeTime
		}
	case times:
		switch {
		case isNumeric(lt) && isNumeric(rt):
			result = arithType(lt, rt)
		case isNumeric(lt) && rt.Kind == VectorType:
			result = typeVector
		case lt.Kind == VectorType && isNumeric(rt):
			result = typeVector
		case isNumeric(lt) && rt.Kind == TimeType:
			result = typeTime
		case lt.Kind == TimeType && isNumeric(rt):
			result = typeTime
		}
	case divide, modulus:
		if isNumeric(lt) && isNumeric(rt) {
			result = arithType(lt, rt)
		}
	case less, greater, leq, geq:
		ok := (isNumeric(lt) && isNumeric(rt)) ||
			(lt.Kind == TimeType && rt.Kind == TimeType) ||
			(lt.Kind == StringType && rt.Kind == StringType)
		if ok {
			result = typeBoolean
		}
	case eq, neq:
		// comparison only between identical types, with the numeric
		// widening exception
		if lt.eq(rt) || (isNumeric(lt) && isNumeric(rt)) {
			result = typeBoolean
		}
	case andKeyword, orKeyword:
		if lt.Kind == BooleanType && rt.Kind == BooleanType {
			result = typeBoolean
		}
	}

	if result.Kind == InvalidType {
		a.typeErrorf(n.pos(), "operator %s not defined for %s and %s",
			token{kind: n.op}, lt, rt)
	}
	n.typ = result
	return result
}

func arithType(lt, rt Type) Type {
	if lt.Kind == IntegerType && rt.Kind == IntegerType {
		return typeInteger
	}
	return typeNumber
}

func joinPath(parts []string) string {
	s := parts[0]
	for _, p := range parts[1:] {
		s += "." + p
	}
	return s
}
