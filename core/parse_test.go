package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSource(t *testing.T, source string) []astNode {
	t.Helper()
	tokens := newTokenizer(source, "test.agl").tokenize()
	p := newParser(tokens, false)
	ast, err := p.parseProgram()
	require.NoError(t, err)
	return ast
}

func parseScriptSource(source string) ([]astNode, error) {
	tokens := newTokenizer(source, "test.xagl").tokenize()
	p := newParser(tokens, true)
	return p.parseProgram()
}

const clockSource = `
Clock :: {
    face  : Ellipse at (0, 0) with { width = 100, height = 100, fill = "white" }
    hand  : Line at (0, 0) with { to = Vector(0, -40), width = 2 }
    angle : Number = 0

    on angle {
        rotate hand by angle
    }
}

main : View with { width = 800, height = 600, title = "Clock" }
c : Clock at (400, 300)
c.angle = 90
`

func TestParseClockProgram(t *testing.T) {
	ast := parseSource(t, clockSource)
	require.Len(t, ast, 4)

	model, ok := ast[0].(*modelDeclNode)
	require.True(t, ok)
	assert.Equal(t, "Clock", model.name)
	require.Len(t, model.fields, 3)
	assert.Equal(t, "face", model.fields[0].name)
	assert.Equal(t, "Ellipse", model.fields[0].declared.name)
	require.Len(t, model.fields[0].props, 3)
	require.Len(t, model.actions, 1)
	assert.Equal(t, []string{"angle"}, model.actions[0].path)
	require.Len(t, model.actions[0].body, 1)
	_, ok = model.actions[0].body[0].(*rotateNode)
	assert.True(t, ok)

	view, ok := ast[1].(*declNode)
	require.True(t, ok)
	assert.Equal(t, "View", view.declared.name)
	assert.Nil(t, view.at)

	decl, ok := ast[2].(*declNode)
	require.True(t, ok)
	assert.Equal(t, "c", decl.name)
	require.NotNil(t, decl.at)
	_, ok = decl.at.(*pointNode)
	assert.True(t, ok)

	set, ok := ast[3].(*assignNode)
	require.True(t, ok)
	assert.Equal(t, "c.angle", set.target.String())
}

func TestParseDeclVersusPolar(t *testing.T) {
	// `v : Vector = 90:10` — the first colon declares, the second is the
	// polar literal
	ast := parseSource(t, "v : Vector = 90:10")
	decl := ast[0].(*declNode)
	polar, ok := decl.init.(*polarNode)
	require.True(t, ok)
	assert.Equal(t, "90", polar.angle.String())
	assert.Equal(t, "10", polar.length.String())
}

func TestParsePolarPrecedence(t *testing.T) {
	// `:` binds tighter than + so a sum of polar vectors reads naturally
	ast := parseSource(t, "x = 0:5 + 90:5")
	set := ast[0].(*assignNode)
	sum, ok := set.value.(*binaryNode)
	require.True(t, ok)
	assert.Equal(t, plus, sum.op)
	_, ok = sum.left.(*polarNode)
	assert.True(t, ok)
	_, ok = sum.right.(*polarNode)
	assert.True(t, ok)
}

func TestParsePointVersusGrouping(t *testing.T) {
	ast := parseSource(t, "a = (1, 2)\nb = (1 + 2)")
	_, ok := ast[0].(*assignNode).value.(*pointNode)
	assert.True(t, ok)
	_, ok = ast[1].(*assignNode).value.(*binaryNode)
	assert.True(t, ok)
}

func TestParseEnumDecl(t *testing.T) {
	ast := parseSource(t, "Color :: enum { red, green, blue }")
	enum := ast[0].(*enumDeclNode)
	assert.Equal(t, "Color", enum.name)
	assert.Equal(t, []string{"red", "green", "blue"}, enum.members)
}

func TestParseArrayDecl(t *testing.T) {
	ast := parseSource(t, "xs : Array<Number> = [1, 2.5, 3]")
	decl := ast[0].(*declNode)
	assert.Equal(t, "Array", decl.declared.name)
	require.NotNil(t, decl.declared.elem)
	assert.Equal(t, "Number", decl.declared.elem.name)
	list := decl.init.(*listNode)
	assert.Len(t, list.items, 3)
}

func TestParseForRange(t *testing.T) {
	ast := parseSource(t, "for i in 0..10..3 { x = i }")
	loop := ast[0].(*forNode)
	assert.Equal(t, "i", loop.varName)
	assert.Equal(t, "0", loop.from.String())
	assert.Equal(t, "10", loop.to.String())
	require.NotNil(t, loop.step)
	assert.Equal(t, "3", loop.step.String())

	ast = parseSource(t, "for i in 0..10 { x = i }")
	assert.Nil(t, ast[0].(*forNode).step)
}

func TestParseWithStatement(t *testing.T) {
	ast := parseSource(t, "with c do { angle = 45, visible = true }")
	with := ast[0].(*withNode)
	assert.Equal(t, "c", with.target.String())
	require.Len(t, with.props, 2)
	assert.Equal(t, "angle", with.props[0].name)
}

func TestParsePlay(t *testing.T) {
	ast := parseSource(t, `s : Script = load "sweep.xagl"` + "\nplay s with { m = c, w = main }")
	decl := ast[0].(*declNode)
	load := decl.init.(*loadNode)
	assert.Equal(t, "sweep.xagl", load.path)

	pl := ast[1].(*playNode)
	require.Len(t, pl.bindings, 2)
	assert.Equal(t, "m", pl.bindings[0].name)
	assert.Equal(t, "c", pl.bindings[0].target.String())
}

func TestParseWaitForms(t *testing.T) {
	ast := parseSource(t, "p : Point = wait click\nwait keypress")
	decl := ast[0].(*declNode)
	w := decl.init.(*waitNode)
	assert.Equal(t, "click", w.event)
	stmt := ast[1].(*waitStmtNode)
	assert.Equal(t, "keypress", stmt.event)
}

func TestParseSyntaxErrorPosition(t *testing.T) {
	tokens := newTokenizer("move c\nrotate", "bad.agl").tokenize()
	p := newParser(tokens, false)
	_, err := p.parseProgram()
	require.Error(t, err)
	var syn *SyntaxError
	require.ErrorAs(t, err, &syn)
	assert.Equal(t, "bad.agl", syn.Pos.filename)
}

func TestScriptModeRejectsDeclarations(t *testing.T) {
	for _, src := range []string{
		"x : Number = 1",
		"Clock :: { angle : Number = 0 }",
		"close w",
		"play s with { }",
		"c2 = copy c",
		`s = load "x.xagl"`,
	} {
		_, err := parseScriptSource(src)
		require.Error(t, err, "source %q", src)
		var syn *SyntaxError
		assert.ErrorAs(t, err, &syn, "source %q", src)
	}
}

func TestScriptModeAllowsStatements(t *testing.T) {
	_, err := parseScriptSource(`
m.angle = 45
move m to (10, 20)
rotate m by 15
refresh w after 50ms
wait click
with m do { angle = 0 }
for i in 0..360..30 { m.angle = i }
if m.angle > 180 { m.angle = 0 } else { m.angle = 180 }
while m.angle < 90 { m.angle = m.angle + 1 }
repeat { rotate m by 1 } until m.angle == 0
`)
	require.NoError(t, err)
}
