package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyzeSource(t *testing.T, source string) ([]astNode, *analysis, error) {
	t.Helper()
	tokens := newTokenizer(source, "test.agl").tokenize()
	p := newParser(tokens, false)
	ast, err := p.parseProgram()
	require.NoError(t, err)
	an, err := analyze(ast)
	return ast, an, err
}

func requireTypeErrors(t *testing.T, err error, count int) ErrorList {
	t.Helper()
	require.Error(t, err)
	list, ok := err.(ErrorList)
	require.True(t, ok, "expected an ErrorList, got %T: %v", err, err)
	require.Len(t, list, count, "%v", err)
	return list
}

func TestAnalyzeClock(t *testing.T) {
	_, an, err := analyzeSource(t, clockSource)
	require.NoError(t, err)
	spec, ok := an.models["Clock"]
	require.True(t, ok)
	assert.Len(t, spec.fields, 3)
	assert.Len(t, spec.actions, 1)

	angle, ok := spec.field("angle")
	require.True(t, ok)
	assert.Equal(t, NumberType, angle.typ.Kind)
}

func TestDeclTypeMismatch(t *testing.T) {
	_, _, err := analyzeSource(t, `a : Integer = "text"`)
	list := requireTypeErrors(t, err, 1)
	var te *TypeError
	assert.ErrorAs(t, list[0], &te)
}

func TestMultipleErrorsCollected(t *testing.T) {
	_, _, err := analyzeSource(t, "a : Integer = \"text\"\nb : Boolean = 3")
	requireTypeErrors(t, err, 2)
}

func TestInstanceDeclarationRejectedInRepeatingBlocks(t *testing.T) {
	// one arena node per declaration, so re-executing blocks cannot declare
	for _, src := range []string{
		"for i in 0..3 { d : Dot at (0, 0) }",
		"b : Boolean = true\nwhile b { d : Dot at (0, 0) }",
		"b : Boolean = true\nrepeat { w : View with { title = \"t\" } } until b",
		"M :: {\n  x : Number = 0\n  on x { d : Dot at (0, 0) }\n}",
	} {
		_, _, err := analyzeSource(t, src)
		list := requireTypeErrors(t, err, 1)
		assert.Contains(t, list[0].Error(), "instance")
	}

	// scalar declarations in loop bodies stay legal
	_, _, err := analyzeSource(t, "for i in 0..3 { n : Number = i }")
	require.NoError(t, err)
}

func TestMixedArrayRejected(t *testing.T) {
	_, _, err := analyzeSource(t, `xs : Array<Number> = [1, "two"]`)
	requireTypeErrors(t, err, 1)
}

func TestIntegerWidensToNumber(t *testing.T) {
	ast, _, err := analyzeSource(t, "n : Number = 3\nxs : Array<Number> = [1, 2.5]")
	require.NoError(t, err)

	list := ast[1].(*declNode).init.(*listNode)
	require.Equal(t, ArrayType, list.typ.Kind)
	assert.Equal(t, NumberType, list.typ.Elem.Kind)
}

func TestGeometryOperatorTable(t *testing.T) {
	// every row of the table type-checks
	ast, _, err := analyzeSource(t, `
p : Point = (0, 0) + 90:10
v : Vector = (3, 4) - (1, 2)
w : Vector = 90:10 + 0:5
u : Vector = 2 * 90:10
u2 : Vector = 90:10 * 2
`)
	require.NoError(t, err)
	assert.Equal(t, PointType, ast[0].(*declNode).init.resultType().Kind)
	assert.Equal(t, VectorType, ast[1].(*declNode).init.resultType().Kind)

	// and the rows the table omits are rejected
	for _, src := range []string{
		"p : Point = (0, 0) + (1, 1)",       // Point + Point
		"v : Vector = (0, 0) + 1",           // Point + scalar
		"p : Point = 2 * (1, 1)",            // scalar * Point
		"n : Number = (0, 0) - 90:10",       // Point - Vector
	} {
		_, _, err := analyzeSource(t, src)
		require.Error(t, err, "source %q", src)
	}
}

func TestUnresolvedName(t *testing.T) {
	_, _, err := analyzeSource(t, "a : Number = missing")
	list := requireTypeErrors(t, err, 1)
	var ne *NameError
	require.ErrorAs(t, list[0], &ne)
	assert.Equal(t, "missing", ne.Name)
}

func TestUnknownShapeProperty(t *testing.T) {
	_, _, err := analyzeSource(t, "e : Ellipse with { radius = 10 }")
	requireTypeErrors(t, err, 1)

	_, _, err = analyzeSource(t, "e : Ellipse with { width = 10, height = 20 }")
	require.NoError(t, err)
}

func TestShapePropertyTypeChecked(t *testing.T) {
	_, _, err := analyzeSource(t, `e : Ellipse with { width = "wide" }`)
	requireTypeErrors(t, err, 1)
}

func TestActionMustObserveDeclaredField(t *testing.T) {
	_, _, err := analyzeSource(t, `
Spinner :: {
    angle : Number = 0
    on speed { angle = angle + 1 }
}
`)
	requireTypeErrors(t, err, 1)
}

func TestActionCannotObserveInstance(t *testing.T) {
	_, _, err := analyzeSource(t, `
Spinner :: {
    face : Ellipse at (0, 0)
    on face { face.width = 1 }
}
`)
	requireTypeErrors(t, err, 1)
}

func TestActionObservesNestedShapeProperty(t *testing.T) {
	_, _, err := analyzeSource(t, `
Spinner :: {
    face  : Ellipse at (0, 0)
    angle : Number = 0
    on face.width { angle = face.width }
}
`)
	require.NoError(t, err)
}

func TestEnumTyping(t *testing.T) {
	_, _, err := analyzeSource(t, "Color :: enum { red, green, blue }\nc : Color = Color.red")
	require.NoError(t, err)

	_, _, err = analyzeSource(t, "Color :: enum { red, green, blue }\nc : Color = Color.purple")
	requireTypeErrors(t, err, 1)
}

func TestWaitEventTypes(t *testing.T) {
	_, _, err := analyzeSource(t, "p : Point = wait click\nk : String = wait keypress")
	require.NoError(t, err)

	_, _, err = analyzeSource(t, "k : String = wait click")
	requireTypeErrors(t, err, 1)
}

func TestViewHasNoPosition(t *testing.T) {
	_, _, err := analyzeSource(t, "w : View at (0, 0)")
	requireTypeErrors(t, err, 1)
}

func TestCannotReassignInstance(t *testing.T) {
	_, _, err := analyzeSource(t, clockSource+"\nc = copy c")
	requireTypeErrors(t, err, 1)
}

func TestTimeCannotBeNegated(t *testing.T) {
	_, _, err := analyzeSource(t, "d : Time = -50ms")
	requireTypeErrors(t, err, 1)
}

func TestConditionsMustBeBoolean(t *testing.T) {
	_, _, err := analyzeSource(t, "if 1 { }")
	requireTypeErrors(t, err, 1)
}

func TestRotateTargetMustBeInstance(t *testing.T) {
	_, _, err := analyzeSource(t, "n : Number = 1\nrotate n by 10")
	requireTypeErrors(t, err, 1)
}

func TestRefreshTargetMustBeView(t *testing.T) {
	_, _, err := analyzeSource(t, "e : Ellipse at (0, 0)\nrefresh e")
	requireTypeErrors(t, err, 1)
}

func TestDuplicateDeclarationRejected(t *testing.T) {
	_, _, err := analyzeSource(t, "a : Number = 1\na : Number = 2")
	requireTypeErrors(t, err, 1)
}

func TestPolarComponentsAreDerived(t *testing.T) {
	ast, _, err := analyzeSource(t, "v : Vector = 90:10\na : Number = v.angle\nl : Number = v.length")
	require.NoError(t, err)
	path := ast[1].(*declNode).init.(*pathNode)
	assert.Equal(t, pathMember, path.kind)
}

func TestBuiltinSignatures(t *testing.T) {
	_, _, err := analyzeSource(t, "x : Number = sqrt(2) + min(1, 2) + sin(90)")
	require.NoError(t, err)

	_, _, err = analyzeSource(t, `x : Number = sqrt("two")`)
	requireTypeErrors(t, err, 1)

	_, _, err = analyzeSource(t, "x : Number = sqrt(1, 2)")
	requireTypeErrors(t, err, 1)
}
