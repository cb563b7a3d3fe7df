package core

import (
	"fmt"
	"strconv"
	"strings"
)

// astNode is any parsed node, statement or expression.
type astNode interface {
	String() string
	pos() position
}

// exprNode is a node the analyzer decorates with exactly one Type.
type exprNode interface {
	astNode
	resultType() Type
}

// ---- expression nodes ----

type intNode struct {
	payload int64
	tok     token
}

func (n *intNode) String() string   { return strconv.FormatInt(n.payload, 10) }
func (n *intNode) pos() position    { return n.tok.pos }
func (n *intNode) resultType() Type { return typeInteger }

type numberNode struct {
	payload float64
	tok     token
}

func (n *numberNode) String() string   { return strconv.FormatFloat(n.payload, 'g', -1, 64) }
func (n *numberNode) pos() position    { return n.tok.pos }
func (n *numberNode) resultType() Type { return typeNumber }

type stringNode struct {
	payload string
	tok     token
}

func (n *stringNode) String() string   { return strconv.Quote(n.payload) }
func (n *stringNode) pos() position    { return n.tok.pos }
func (n *stringNode) resultType() Type { return typeString }

type boolNode struct {
	payload bool
	tok     token
}

func (n *boolNode) String() string   { return strconv.FormatBool(n.payload) }
func (n *boolNode) pos() position    { return n.tok.pos }
func (n *boolNode) resultType() Type { return typeBoolean }

type timeNode struct {
	millis float64
	tok    token
}

func (n *timeNode) String() string   { return formatNumber(n.millis) + "ms" }
func (n *timeNode) pos() position    { return n.tok.pos }
func (n *timeNode) resultType() Type { return typeTime }

type pointNode struct {
	x, y exprNode
	tok  token
}

func (n *pointNode) String() string   { return "(" + n.x.String() + ", " + n.y.String() + ")" }
func (n *pointNode) pos() position    { return n.tok.pos }
func (n *pointNode) resultType() Type { return typePoint }

// polarNode is the angle:length Vector literal.
type polarNode struct {
	angle, length exprNode
	tok           token
}

func (n *polarNode) String() string   { return n.angle.String() + ":" + n.length.String() }
func (n *polarNode) pos() position    { return n.tok.pos }
func (n *polarNode) resultType() Type { return typeVector }

type listNode struct {
	items []exprNode
	typ   Type
	tok   token
}

func (n *listNode) String() string {
	items := make([]string, len(n.items))
	for i, item := range n.items {
		items[i] = item.String()
	}
	return "[" + strings.Join(items, ", ") + "]"
}
func (n *listNode) pos() position    { return n.tok.pos }
func (n *listNode) resultType() Type { return n.typ }

type identNode struct {
	name string
	typ  Type
	ref  ref
	tok  token
}

func (n *identNode) String() string   { return n.name }
func (n *identNode) pos() position    { return n.tok.pos }
func (n *identNode) resultType() Type { return n.typ }

// pathKind records what a property access resolved to.
type pathKind int

const (
	pathUnresolved pathKind = iota
	pathProp               // a property on a graph node
	pathChild              // a nested child node
	pathMember             // a derived member of a Point/Vector value
	pathEnumMember         // an enum member literal
)

type pathNode struct {
	target exprNode
	field  string
	kind   pathKind
	typ    Type
	ref    ref
	tok    token
}

func (n *pathNode) String() string   { return n.target.String() + "." + n.field }
func (n *pathNode) pos() position    { return n.tok.pos }
func (n *pathNode) resultType() Type { return n.typ }

type indexNode struct {
	target exprNode
	index  exprNode
	typ    Type
	tok    token
}

func (n *indexNode) String() string   { return n.target.String() + "[" + n.index.String() + "]" }
func (n *indexNode) pos() position    { return n.tok.pos }
func (n *indexNode) resultType() Type { return n.typ }

type callNode struct {
	name string
	args []exprNode
	typ  Type
	tok  token
}

func (n *callNode) String() string {
	args := make([]string, len(n.args))
	for i, arg := range n.args {
		args[i] = arg.String()
	}
	return n.name + "(" + strings.Join(args, ", ") + ")"
}
func (n *callNode) pos() position    { return n.tok.pos }
func (n *callNode) resultType() Type { return n.typ }

type unaryNode struct {
	op    tokenKind
	right exprNode
	typ   Type
	tok   token
}

func (n *unaryNode) String() string {
	if n.op == notKeyword {
		return "not " + n.right.String()
	}
	return token{kind: n.op}.String() + n.right.String()
}
func (n *unaryNode) pos() position    { return n.tok.pos }
func (n *unaryNode) resultType() Type { return n.typ }

type binaryNode struct {
	op    tokenKind
	left  exprNode
	right exprNode
	typ   Type
	tok   token
}

func (n *binaryNode) String() string {
	return "(" + n.left.String() + " " + token{kind: n.op}.String() + " " + n.right.String() + ")"
}
func (n *binaryNode) pos() position    { return n.tok.pos }
func (n *binaryNode) resultType() Type { return n.typ }

type copyNode struct {
	src exprNode
	typ Type
	tok token
}

func (n *copyNode) String() string   { return "copy " + n.src.String() }
func (n *copyNode) pos() position    { return n.tok.pos }
func (n *copyNode) resultType() Type { return n.typ }

type loadNode struct {
	path string
	tok  token
}

func (n *loadNode) String() string   { return "load " + strconv.Quote(n.path) }
func (n *loadNode) pos() position    { return n.tok.pos }
func (n *loadNode) resultType() Type { return typeScript }

type waitNode struct {
	event string
	typ   Type
	tok   token
}

func (n *waitNode) String() string   { return "wait " + n.event }
func (n *waitNode) pos() position    { return n.tok.pos }
func (n *waitNode) resultType() Type { return n.typ }

// ---- statement nodes ----

// typeRef is an unresolved type annotation: a name, optionally Array<...>.
type typeRef struct {
	name string
	elem *typeRef
	p    position
}

func (t *typeRef) String() string {
	if t.elem != nil {
		return t.name + "<" + t.elem.String() + ">"
	}
	return t.name
}

type propAssign struct {
	name  string
	value exprNode
	p     position
}

func (a propAssign) String() string { return a.name + " = " + a.value.String() }

// declNode declares a variable, a View, a primitive or Model instance, or a
// field inside a Model declaration:
//
//	name : Type [at expr] [with { prop = expr ... }] [= expr]
type declNode struct {
	name     string
	declared *typeRef
	at       exprNode
	props    []propAssign
	init     exprNode
	typ      Type
	slot     int
	tok      token
}

func (n *declNode) String() string {
	s := n.name + " : " + n.declared.String()
	if n.at != nil {
		s += " at " + n.at.String()
	}
	if len(n.props) > 0 {
		props := make([]string, len(n.props))
		for i, prop := range n.props {
			props[i] = prop.String()
		}
		s += " with { " + strings.Join(props, ", ") + " }"
	}
	if n.init != nil {
		s += " = " + n.init.String()
	}
	return s
}
func (n *declNode) pos() position { return n.tok.pos }

type actionDeclNode struct {
	path []string
	body []astNode
	tok  token
}

func (n *actionDeclNode) String() string {
	return "on " + strings.Join(n.path, ".") + " " + blockString(n.body)
}
func (n *actionDeclNode) pos() position { return n.tok.pos }

type modelDeclNode struct {
	name    string
	fields  []*declNode
	actions []*actionDeclNode
	tok     token
}

func (n *modelDeclNode) String() string {
	parts := []string{}
	for _, f := range n.fields {
		parts = append(parts, f.String())
	}
	for _, a := range n.actions {
		parts = append(parts, a.String())
	}
	return n.name + " :: { " + strings.Join(parts, " ") + " }"
}
func (n *modelDeclNode) pos() position { return n.tok.pos }

type enumDeclNode struct {
	name    string
	members []string
	tok     token
}

func (n *enumDeclNode) String() string {
	return n.name + " :: enum { " + strings.Join(n.members, ", ") + " }"
}
func (n *enumDeclNode) pos() position { return n.tok.pos }

type assignNode struct {
	target exprNode
	value  exprNode
	tok    token
}

func (n *assignNode) String() string { return n.target.String() + " = " + n.value.String() }
func (n *assignNode) pos() position  { return n.tok.pos }

type moveNode struct {
	target exprNode
	dest   exprNode
	tok    token
}

func (n *moveNode) String() string { return "move " + n.target.String() + " to " + n.dest.String() }
func (n *moveNode) pos() position  { return n.tok.pos }

type rotateNode struct {
	target exprNode
	by     exprNode
	tok    token
}

func (n *rotateNode) String() string { return "rotate " + n.target.String() + " by " + n.by.String() }
func (n *rotateNode) pos() position  { return n.tok.pos }

type refreshNode struct {
	target exprNode
	after  exprNode // nil for an immediate render
	tok    token
}

func (n *refreshNode) String() string {
	if n.after != nil {
		return "refresh " + n.target.String() + " after " + n.after.String()
	}
	return "refresh " + n.target.String()
}
func (n *refreshNode) pos() position { return n.tok.pos }

type waitStmtNode struct {
	event string
	tok   token
}

func (n *waitStmtNode) String() string { return "wait " + n.event }
func (n *waitStmtNode) pos() position  { return n.tok.pos }

type closeNode struct {
	target exprNode
	tok    token
}

func (n *closeNode) String() string { return "close " + n.target.String() }
func (n *closeNode) pos() position  { return n.tok.pos }

type withNode struct {
	target exprNode
	props  []propAssign
	tok    token
}

func (n *withNode) String() string {
	props := make([]string, len(n.props))
	for i, prop := range n.props {
		props[i] = prop.String()
	}
	return "with " + n.target.String() + " do { " + strings.Join(props, ", ") + " }"
}
func (n *withNode) pos() position { return n.tok.pos }

type playBindingDecl struct {
	name   string
	target exprNode
	p      position
}

type playNode struct {
	script   exprNode
	bindings []playBindingDecl
	tok      token
}

func (n *playNode) String() string {
	binds := make([]string, len(n.bindings))
	for i, b := range n.bindings {
		binds[i] = b.name + " = " + b.target.String()
	}
	return "play " + n.script.String() + " with { " + strings.Join(binds, ", ") + " }"
}
func (n *playNode) pos() position { return n.tok.pos }

type ifNode struct {
	cond exprNode
	then []astNode
	els  []astNode
	tok  token
}

func (n *ifNode) String() string {
	s := "if " + n.cond.String() + " " + blockString(n.then)
	if n.els != nil {
		s += " else " + blockString(n.els)
	}
	return s
}
func (n *ifNode) pos() position { return n.tok.pos }

type forNode struct {
	varName string
	slot    int
	from    exprNode
	to      exprNode
	step    exprNode // nil means step 1
	body    []astNode
	tok     token
}

func (n *forNode) String() string {
	s := "for " + n.varName + " in " + n.from.String() + ".." + n.to.String()
	if n.step != nil {
		s += ".." + n.step.String()
	}
	return s + " " + blockString(n.body)
}
func (n *forNode) pos() position { return n.tok.pos }

type whileNode struct {
	cond exprNode
	body []astNode
	tok  token
}

func (n *whileNode) String() string { return "while " + n.cond.String() + " " + blockString(n.body) }
func (n *whileNode) pos() position  { return n.tok.pos }

type repeatNode struct {
	body []astNode
	cond exprNode
	tok  token
}

func (n *repeatNode) String() string {
	return "repeat " + blockString(n.body) + " until " + n.cond.String()
}
func (n *repeatNode) pos() position { return n.tok.pos }

func blockString(stmts []astNode) string {
	parts := make([]string, len(stmts))
	for i, s := range stmts {
		parts[i] = s.String()
	}
	return "{ " + strings.Join(parts, " ") + " }"
}

// ---- parser ----

type parser struct {
	tokens []token
	index  int

	// scriptMode restricts the grammar to the extension-language statement
	// subset: no declarations, no load/play/copy/close.
	scriptMode bool
}

func newParser(tokens []token, scriptMode bool) parser {
	return parser{tokens: tokens, scriptMode: scriptMode}
}

func (p *parser) isEOF() bool {
	return p.index >= len(p.tokens)
}

func (p *parser) peek() token {
	if p.isEOF() {
		return token{kind: unknown}
	}
	return p.tokens[p.index]
}

func (p *parser) peekAhead(n int) token {
	if p.index+n >= len(p.tokens) {
		return token{kind: unknown}
	}
	return p.tokens[p.index+n]
}

func (p *parser) next() token {
	tok := p.peek()
	if !p.isEOF() {
		p.index++
	}
	return tok
}

func (p *parser) lastPos() position {
	if len(p.tokens) == 0 {
		return position{}
	}
	if p.isEOF() {
		return p.tokens[len(p.tokens)-1].pos
	}
	return p.peek().pos
}

func (p *parser) expect(kind tokenKind) (token, error) {
	if p.isEOF() {
		return token{}, &SyntaxError{
			Reason: fmt.Sprintf("unexpected end of input, expected %s", token{kind: kind}),
			Pos:    p.lastPos(),
		}
	}
	next := p.next()
	if next.kind != kind {
		return token{}, &SyntaxError{
			Reason: fmt.Sprintf("unexpected token %s, expected %s", next, token{kind: kind}),
			Pos:    next.pos,
		}
	}
	return next, nil
}

func (p *parser) errorf(pos position, format string, args ...any) error {
	return &SyntaxError{Reason: fmt.Sprintf(format, args...), Pos: pos}
}

// expectName reads a property or field name. Keywords are admitted here:
// a Line's destination property is literally named "to".
func (p *parser) expectName() (token, error) {
	if p.isEOF() {
		return token{}, &SyntaxError{
			Reason: "unexpected end of input, expected a name",
			Pos:    p.lastPos(),
		}
	}
	tok := p.next()
	if tok.kind == identifier {
		return tok, nil
	}
	for word, kind := range keywords {
		if kind == tok.kind {
			return token{kind: identifier, pos: tok.pos, payload: word}, nil
		}
	}
	return token{}, p.errorf(tok.pos, "unexpected token %s, expected a name", tok)
}

func (p *parser) parseProgram() ([]astNode, error) {
	stmts := []astNode{}
	for !p.isEOF() {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (p *parser) parseStatement() (astNode, error) {
	tok := p.peek()

	switch tok.kind {
	case identifier:
		switch p.peekAhead(1).kind {
		case doubleColon:
			if p.scriptMode {
				return nil, p.errorf(tok.pos, "declarations are not allowed in scripts")
			}
			return p.parseTypeDecl()
		case colon:
			if p.scriptMode {
				return nil, p.errorf(tok.pos, "declarations are not allowed in scripts")
			}
			return p.parseDecl()
		}
		return p.parseAssignment()
	case moveKeyword:
		p.next()
		target, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(toKeyword); err != nil {
			return nil, err
		}
		dest, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &moveNode{target: target, dest: dest, tok: tok}, nil
	case rotateKeyword:
		p.next()
		target, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(byKeyword); err != nil {
			return nil, err
		}
		by, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &rotateNode{target: target, by: by, tok: tok}, nil
	case refreshKeyword:
		p.next()
		target, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		node := &refreshNode{target: target, tok: tok}
		if p.peek().kind == afterKeyword {
			p.next()
			after, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			node.after = after
		}
		return node, nil
	case waitKeyword:
		p.next()
		event, err := p.expect(identifier)
		if err != nil {
			return nil, err
		}
		return &waitStmtNode{event: event.payload, tok: tok}, nil
	case closeKeyword:
		if p.scriptMode {
			return nil, p.errorf(tok.pos, "close is not allowed in scripts")
		}
		p.next()
		target, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		return &closeNode{target: target, tok: tok}, nil
	case withKeyword:
		p.next()
		target, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(doKeyword); err != nil {
			return nil, err
		}
		props, err := p.parsePropBlock()
		if err != nil {
			return nil, err
		}
		return &withNode{target: target, props: props, tok: tok}, nil
	case playKeyword:
		if p.scriptMode {
			return nil, p.errorf(tok.pos, "play is not allowed in scripts")
		}
		return p.parsePlay()
	case ifKeyword:
		return p.parseIf()
	case forKeyword:
		return p.parseFor()
	case whileKeyword:
		p.next()
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &whileNode{cond: cond, body: body, tok: tok}, nil
	case repeatKeyword:
		p.next()
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(untilKeyword); err != nil {
			return nil, err
		}
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &repeatNode{body: body, cond: cond, tok: tok}, nil
	case onKeyword:
		return nil, p.errorf(tok.pos, "on is only allowed inside a Model declaration")
	}

	return nil, p.errorf(tok.pos, "unexpected token %s at start of statement", tok)
}

// parseAssignment handles `path = expr` statements.
func (p *parser) parseAssignment() (astNode, error) {
	target, err := p.parseTarget()
	if err != nil {
		return nil, err
	}

	tok, err := p.expect(assign)
	if err != nil {
		return nil, err
	}

	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	return &assignNode{target: target, value: value, tok: tok}, nil
}

// parseTarget parses an lvalue-ish path: ident(.field | [index])*.
func (p *parser) parseTarget() (exprNode, error) {
	tok, err := p.expect(identifier)
	if err != nil {
		return nil, err
	}
	return p.parsePostfix(&identNode{name: tok.payload, tok: tok})
}

func (p *parser) parseTypeDecl() (astNode, error) {
	name, err := p.expect(identifier)
	if err != nil {
		return nil, err
	}
	tok, err := p.expect(doubleColon)
	if err != nil {
		return nil, err
	}

	if p.peek().kind == enumKeyword {
		p.next()
		if _, err := p.expect(leftBrace); err != nil {
			return nil, err
		}
		members := []string{}
		for !p.isEOF() && p.peek().kind != rightBrace {
			member, err := p.expect(identifier)
			if err != nil {
				return nil, err
			}
			members = append(members, member.payload)
			if p.peek().kind == comma {
				p.next()
			}
		}
		if _, err := p.expect(rightBrace); err != nil {
			return nil, err
		}
		return &enumDeclNode{name: name.payload, members: members, tok: tok}, nil
	}

	if _, err := p.expect(leftBrace); err != nil {
		return nil, err
	}

	node := &modelDeclNode{name: name.payload, tok: tok}
	for !p.isEOF() && p.peek().kind != rightBrace {
		switch p.peek().kind {
		case onKeyword:
			onTok := p.next()
			path := []string{}
			first, err := p.expect(identifier)
			if err != nil {
				return nil, err
			}
			path = append(path, first.payload)
			for p.peek().kind == dot {
				p.next()
				part, err := p.expectName()
				if err != nil {
					return nil, err
				}
				path = append(path, part.payload)
			}
			body, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			node.actions = append(node.actions, &actionDeclNode{path: path, body: body, tok: onTok})
		case identifier:
			decl, err := p.parseDecl()
			if err != nil {
				return nil, err
			}
			node.fields = append(node.fields, decl.(*declNode))
		default:
			return nil, p.errorf(p.peek().pos, "unexpected token %s in Model declaration", p.peek())
		}
	}

	if _, err := p.expect(rightBrace); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *parser) parseDecl() (astNode, error) {
	name, err := p.expect(identifier)
	if err != nil {
		return nil, err
	}
	tok, err := p.expect(colon)
	if err != nil {
		return nil, err
	}
	declared, err := p.parseTypeRef()
	if err != nil {
		return nil, err
	}

	node := &declNode{name: name.payload, declared: declared, tok: tok}

	if p.peek().kind == atKeyword {
		p.next()
		at, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		node.at = at
	}

	// `with` here belongs to the declaration only when a property block
	// follows; otherwise it starts the next `with ... do` statement
	if p.peek().kind == withKeyword && p.peekAhead(1).kind == leftBrace {
		p.next()
		props, err := p.parsePropBlock()
		if err != nil {
			return nil, err
		}
		node.props = props
	}

	if p.peek().kind == assign {
		p.next()
		init, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		node.init = init
	}

	return node, nil
}

func (p *parser) parseTypeRef() (*typeRef, error) {
	name, err := p.expect(identifier)
	if err != nil {
		return nil, err
	}
	ref := &typeRef{name: name.payload, p: name.pos}

	if name.payload == "Array" {
		if _, err := p.expect(less); err != nil {
			return nil, err
		}
		elem, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(greater); err != nil {
			return nil, err
		}
		ref.elem = elem
	}

	return ref, nil
}

func (p *parser) parsePropBlock() ([]propAssign, error) {
	if _, err := p.expect(leftBrace); err != nil {
		return nil, err
	}

	props := []propAssign{}
	for !p.isEOF() && p.peek().kind != rightBrace {
		name, err := p.expectName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(assign); err != nil {
			return nil, err
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		props = append(props, propAssign{name: name.payload, value: value, p: name.pos})
		if p.peek().kind == comma {
			p.next()
		}
	}

	if _, err := p.expect(rightBrace); err != nil {
		return nil, err
	}
	return props, nil
}

func (p *parser) parsePlay() (astNode, error) {
	tok := p.next()
	script, err := p.parseTarget()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(withKeyword); err != nil {
		return nil, err
	}
	if _, err := p.expect(leftBrace); err != nil {
		return nil, err
	}

	bindings := []playBindingDecl{}
	for !p.isEOF() && p.peek().kind != rightBrace {
		name, err := p.expect(identifier)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(assign); err != nil {
			return nil, err
		}
		target, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, playBindingDecl{name: name.payload, target: target, p: name.pos})
		if p.peek().kind == comma {
			p.next()
		}
	}

	if _, err := p.expect(rightBrace); err != nil {
		return nil, err
	}
	return &playNode{script: script, bindings: bindings, tok: tok}, nil
}

func (p *parser) parseIf() (astNode, error) {
	tok := p.next()
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	node := &ifNode{cond: cond, then: then, tok: tok}
	if p.peek().kind == elseKeyword {
		p.next()
		if p.peek().kind == ifKeyword {
			chained, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			node.els = []astNode{chained}
		} else {
			els, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			node.els = els
		}
	}
	return node, nil
}

func (p *parser) parseFor() (astNode, error) {
	tok := p.next()
	varName, err := p.expect(identifier)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(inKeyword); err != nil {
		return nil, err
	}

	from, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(dotdot); err != nil {
		return nil, err
	}
	to, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	node := &forNode{varName: varName.payload, from: from, to: to, tok: tok}
	if p.peek().kind == dotdot {
		p.next()
		step, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		node.step = step
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	node.body = body
	return node, nil
}

func (p *parser) parseBlock() ([]astNode, error) {
	if _, err := p.expect(leftBrace); err != nil {
		return nil, err
	}
	stmts := []astNode{}
	for !p.isEOF() && p.peek().kind != rightBrace {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	if _, err := p.expect(rightBrace); err != nil {
		return nil, err
	}
	return stmts, nil
}

// ---- expressions ----

func infixPrecedence(op tokenKind) int {
	switch op {
	case orKeyword:
		return 10
	case andKeyword:
		return 20
	case eq, neq:
		return 30
	case less, greater, leq, geq:
		return 35
	case plus, minus:
		return 40
	case times, divide, modulus:
		return 50
	// the polar literal's colon binds tighter than any arithmetic, so
	// 2 * 90:10 scales the vector
	case colon:
		return 60
	}
	return -1
}

func (p *parser) parseExpression() (exprNode, error) {
	return p.parseBinary(0)
}

func (p *parser) parseBinary(minPrec int) (exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for !p.isEOF() {
		op := p.peek()
		prec := infixPrecedence(op.kind)
		if prec <= minPrec {
			break
		}
		p.next()

		right, err := p.parseBinary(prec)
		if err != nil {
			return nil, err
		}

		// number:number is the polar Vector literal, not an operator
		if op.kind == colon {
			left = &polarNode{angle: left, length: right, tok: op}
		} else {
			left = &binaryNode{op: op.kind, left: left, right: right, tok: op}
		}
	}

	return left, nil
}

func (p *parser) parseUnary() (exprNode, error) {
	tok := p.peek()
	if tok.kind == minus || tok.kind == notKeyword {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: tok.kind, right: right, tok: tok}, nil
	}

	unit, err := p.parseUnit()
	if err != nil {
		return nil, err
	}
	return p.parsePostfix(unit)
}

func (p *parser) parsePostfix(node exprNode) (exprNode, error) {
	for !p.isEOF() {
		switch p.peek().kind {
		case dot:
			tok := p.next()
			field, err := p.expectName()
			if err != nil {
				return nil, err
			}
			node = &pathNode{target: node, field: field.payload, tok: tok}
		case leftBracket:
			tok := p.next()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(rightBracket); err != nil {
				return nil, err
			}
			node = &indexNode{target: node, index: index, tok: tok}
		default:
			return node, nil
		}
	}
	return node, nil
}

func (p *parser) parseUnit() (exprNode, error) {
	tok := p.next()

	switch tok.kind {
	case numberLiteral:
		if strings.ContainsRune(tok.payload, '.') {
			f, err := strconv.ParseFloat(tok.payload, 64)
			if err != nil {
				return nil, p.errorf(tok.pos, "%s", err.Error())
			}
			return &numberNode{payload: f, tok: tok}, nil
		}
		n, err := strconv.ParseInt(tok.payload, 10, 64)
		if err != nil {
			return nil, p.errorf(tok.pos, "%s", err.Error())
		}
		return &intNode{payload: n, tok: tok}, nil
	case timeLiteral:
		millis, err := strconv.ParseFloat(tok.payload, 64)
		if err != nil {
			return nil, p.errorf(tok.pos, "%s", err.Error())
		}
		return &timeNode{millis: millis, tok: tok}, nil
	case stringLiteral:
		return &stringNode{payload: tok.payload, tok: tok}, nil
	case trueLiteral:
		return &boolNode{payload: true, tok: tok}, nil
	case falseLiteral:
		return &boolNode{payload: false, tok: tok}, nil
	case identifier:
		if p.peek().kind == leftParen {
			p.next()
			args := []exprNode{}
			for !p.isEOF() && p.peek().kind != rightParen {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.peek().kind == comma {
					p.next()
				}
			}
			if _, err := p.expect(rightParen); err != nil {
				return nil, err
			}
			return &callNode{name: tok.payload, args: args, tok: tok}, nil
		}
		return &identNode{name: tok.payload, tok: tok}, nil
	case leftParen:
		first, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		// (x, y) is a Point literal, (expr) is grouping
		if p.peek().kind == comma {
			p.next()
			second, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(rightParen); err != nil {
				return nil, err
			}
			return &pointNode{x: first, y: second, tok: tok}, nil
		}
		if _, err := p.expect(rightParen); err != nil {
			return nil, err
		}
		return first, nil
	case leftBracket:
		items := []exprNode{}
		for !p.isEOF() && p.peek().kind != rightBracket {
			item, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if p.peek().kind == comma {
				p.next()
			}
		}
		if _, err := p.expect(rightBracket); err != nil {
			return nil, err
		}
		return &listNode{items: items, tok: tok}, nil
	case copyKeyword:
		if p.scriptMode {
			return nil, p.errorf(tok.pos, "copy is not allowed in scripts")
		}
		src, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		return &copyNode{src: src, tok: tok}, nil
	case loadKeyword:
		if p.scriptMode {
			return nil, p.errorf(tok.pos, "load is not allowed in scripts")
		}
		path, err := p.expect(stringLiteral)
		if err != nil {
			return nil, err
		}
		return &loadNode{path: path.payload, tok: tok}, nil
	case waitKeyword:
		event, err := p.expect(identifier)
		if err != nil {
			return nil, err
		}
		return &waitNode{event: event.payload, tok: tok}, nil
	}

	return nil, p.errorf(tok.pos, "unexpected token %s at start of expression", tok)
}
