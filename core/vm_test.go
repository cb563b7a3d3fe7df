package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runProgram(t *testing.T, source string) (*Engine, *RecordingSurface) {
	t.Helper()
	eng, surface := startProgram(t, source, nil)
	require.NoError(t, eng.Run(context.Background()))
	return eng, surface
}

// startProgram compiles without running, so tests can queue events or set
// view defaults first.
func startProgram(t *testing.T, source string, setup func(*Engine, *RecordingSurface)) (*Engine, *RecordingSurface) {
	t.Helper()
	prog, err := CompileSource(source, "test.agl")
	require.NoError(t, err)
	surface := NewRecordingSurface()
	eng := NewEngine(prog, surface)
	if setup != nil {
		setup(eng, surface)
	}
	return eng, surface
}

func globalNode(t *testing.T, eng *Engine, name string) *node {
	t.Helper()
	sym, ok := eng.prog.analysis.globals[name]
	require.True(t, ok, "no global %q", name)
	nv, ok := eng.slots[sym.ref.slot].(NodeValue)
	require.True(t, ok, "%q does not hold an instance", name)
	return eng.g.node(NodeID(nv))
}

func numOf(t *testing.T, v Value) float64 {
	t.Helper()
	f, ok := asFloat(v)
	require.True(t, ok, "%s is not numeric", v)
	return f
}

func updatesOf(surface *RecordingSurface, id NodeID, field string) []Value {
	var out []Value
	for _, c := range surface.Calls {
		if c.Op == "update" && c.Node == id && c.Field == field {
			out = append(out, c.Value)
		}
	}
	return out
}

func TestClockActionRotatesHand(t *testing.T) {
	eng, _ := runProgram(t, clockSource)

	c := globalNode(t, eng, "c")
	hand := eng.g.node(c.Children["hand"])
	to, ok := hand.Props["to"].(VectorValue)
	require.True(t, ok)
	assert.InDelta(t, 40, float64(to.X), geomDelta)
	assert.InDelta(t, 0, float64(to.Y), geomDelta)

	// rotating the hand about its own position leaves positions alone
	pos := hand.Props["position"].(PointValue)
	assert.InDelta(t, 400, float64(pos.X), geomDelta)
	assert.InDelta(t, 300, float64(pos.Y), geomDelta)
}

func TestNestedInstancesPlacedRelativeToOwner(t *testing.T) {
	eng, _ := runProgram(t, `
Pair :: {
    a : Dot at (0, 0)
    b : Dot at (10, 20)
}
p : Pair at (100, 100)
`)
	p := globalNode(t, eng, "p")
	a := eng.g.node(p.Children["a"]).Props["position"].(PointValue)
	b := eng.g.node(p.Children["b"]).Props["position"].(PointValue)
	assert.Equal(t, PointValue{X: 100, Y: 100}, a)
	assert.Equal(t, PointValue{X: 110, Y: 120}, b)
}

func TestMoveTranslatesWholeSubtree(t *testing.T) {
	eng, _ := runProgram(t, `
Pair :: {
    a : Dot at (0, 0)
    b : Dot at (10, 20)
}
p : Pair at (100, 100)
move p to (150, 130)
`)
	p := globalNode(t, eng, "p")
	assert.Equal(t, PointValue{X: 150, Y: 130}, p.Props["position"])
	a := eng.g.node(p.Children["a"]).Props["position"].(PointValue)
	b := eng.g.node(p.Children["b"]).Props["position"].(PointValue)
	assert.Equal(t, PointValue{X: 150, Y: 130}, a)
	assert.Equal(t, PointValue{X: 160, Y: 150}, b)
}

func TestActionsRunInDeclarationOrder(t *testing.T) {
	eng, _ := runProgram(t, `
Logger :: {
    x : Number = 0
    y : String = ""
    on x { y = y + "a" }
    on x { y = y + "b" }
}
m : Logger at (0, 0)
m.x = 1
`)
	m := globalNode(t, eng, "m")
	assert.Equal(t, StringValue("ab"), m.Props["y"])
}

func TestSelfWritingActionRunsOncePerCascade(t *testing.T) {
	eng, _ := runProgram(t, `
Counter :: {
    x : Number = 0
    on x { x = x + 1 }
}
m : Counter at (0, 0)
m.x = 1
`)
	// the inner write is guarded, so one outer write settles at x+1
	m := globalNode(t, eng, "m")
	assert.InDelta(t, 2, numOf(t, m.Props["x"]), geomDelta)
}

func TestActionCascadeSettlesBeforeReturning(t *testing.T) {
	eng, _ := runProgram(t, `
Chain :: {
    x : Number = 0
    y : Number = 0
    z : Number = 0
    on x { y = x * 2 }
    on y { z = y + 1 }
}
m : Chain at (0, 0)
m.x = 3
`)
	m := globalNode(t, eng, "m")
	assert.InDelta(t, 6, numOf(t, m.Props["y"]), geomDelta)
	assert.InDelta(t, 7, numOf(t, m.Props["z"]), geomDelta)
}

func TestGuardResetsBetweenOuterWrites(t *testing.T) {
	eng, _ := runProgram(t, `
Counter :: {
    x : Number = 0
    on x { x = x + 1 }
}
m : Counter at (0, 0)
m.x = 1
m.x = 10
`)
	m := globalNode(t, eng, "m")
	assert.InDelta(t, 11, numOf(t, m.Props["x"]), geomDelta)
}

func TestForRangeSequences(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   []float64
	}{
		{"ascending exclusive", "0..10..3", []float64{0, 3, 6, 9}},
		{"descending", "10..0..-1", []float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}},
		{"default step", "0..4", []float64{0, 1, 2, 3}},
		{"wrong sign is empty", "0..10..-1", nil},
		{"wrong sign descending", "10..0..3", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eng, surface := runProgram(t, `
Probe :: { x : Number = 0 }
m : Probe at (0, 0)
for i in `+tc.header+` { m.x = i }
`)
			m := globalNode(t, eng, "m")
			got := updatesOf(surface, m.ID, "x")
			require.Len(t, got, len(tc.want))
			for i, v := range got {
				assert.InDelta(t, tc.want[i], numOf(t, v), geomDelta)
			}
		})
	}
}

func TestForRangeZeroStepFails(t *testing.T) {
	eng, _ := startProgram(t, "for i in 0..10..0 { i = i }", nil)
	err := eng.Run(context.Background())
	var rt *RuntimeError
	require.ErrorAs(t, err, &rt)
	assert.Contains(t, rt.Reason, "step")
}

func TestDivisionByZeroFails(t *testing.T) {
	eng, _ := startProgram(t, "x : Number = 1 / 0", nil)
	err := eng.Run(context.Background())
	var rt *RuntimeError
	require.ErrorAs(t, err, &rt)
}

func TestWaitClickDeliversPoint(t *testing.T) {
	eng, surface := startProgram(t, `
Probe :: { x : Number = 0 }
m : Probe at (0, 0)
p : Point = wait click
move m to p
`, func(_ *Engine, s *RecordingSurface) {
		s.QueueEvent("click", PointValue{X: 5, Y: 6})
	})
	require.NoError(t, eng.Run(context.Background()))

	m := globalNode(t, eng, "m")
	assert.Equal(t, PointValue{X: 5, Y: 6}, m.Props["position"])
	assert.Equal(t, Running, eng.State())

	var waited []string
	for _, call := range surface.Calls {
		if call.Op == "wait" {
			waited = append(waited, call.Kind)
		}
	}
	assert.Equal(t, []string{"click"}, waited)
}

func TestWaitWithoutEventFails(t *testing.T) {
	eng, _ := startProgram(t, "k : String = wait keypress", nil)
	err := eng.Run(context.Background())
	var rt *RuntimeError
	require.ErrorAs(t, err, &rt)
	assert.Contains(t, rt.Reason, "keypress")
}

func TestDeepCopyIsIndependent(t *testing.T) {
	eng, surface := runProgram(t, `
Clock :: {
    hand  : Line at (0, 0) with { to = Vector(0, -40) }
    angle : Number = 0
    on angle { rotate hand by angle }
}
c : Clock at (100, 100)
c2 : Clock = copy c
c2.angle = 90
c.angle = 180
`)
	c := globalNode(t, eng, "c")
	c2 := globalNode(t, eng, "c2")
	require.NotEqual(t, c.ID, c2.ID)

	// each copy's Action observed its own write only
	to := eng.g.node(c.Children["hand"]).Props["to"].(VectorValue)
	assert.InDelta(t, 0, float64(to.X), geomDelta)
	assert.InDelta(t, 40, float64(to.Y), geomDelta)

	to2 := eng.g.node(c2.Children["hand"]).Props["to"].(VectorValue)
	assert.InDelta(t, 40, float64(to2.X), geomDelta)
	assert.InDelta(t, 0, float64(to2.Y), geomDelta)

	// the copy's subtree surfaced as fresh shapes
	var created []NodeID
	for _, call := range surface.Calls {
		if call.Op == "create" {
			created = append(created, call.Node)
		}
	}
	assert.Contains(t, created, c2.ID)
	assert.Contains(t, created, c2.Children["hand"])
}

func TestCopyStartsFromMaterializedState(t *testing.T) {
	eng, _ := runProgram(t, `
Probe :: { x : Number = 0 }
m : Probe at (0, 0)
m.x = 7
m2 : Probe = copy m
`)
	m2 := globalNode(t, eng, "m2")
	assert.InDelta(t, 7, numOf(t, m2.Props["x"]), geomDelta)
}

func TestRefreshAndClose(t *testing.T) {
	eng, surface := runProgram(t, `
w : View with { title = "win" }
refresh w
refresh w after 2s
close w
close w
`)
	w := globalNode(t, eng, "w")
	assert.Equal(t, Closed, eng.State())

	var render, schedule, closed int
	for _, call := range surface.Calls {
		switch {
		case call.Op == "render" && call.Node == w.ID:
			render++
		case call.Op == "schedule" && call.Node == w.ID:
			schedule++
			assert.InDelta(t, 2000, call.Delay, geomDelta)
		case call.Op == "close" && call.Node == w.ID:
			closed++
		}
	}
	assert.Equal(t, 1, render)
	assert.Equal(t, 1, schedule)
	// the program is terminal after the first close; the second never runs
	assert.Equal(t, 1, closed)
}

func TestCloseStopsExecution(t *testing.T) {
	eng, surface := runProgram(t, `
w : View with { title = "w" }
d : Dot at (0, 0)
close w
d.fill = "red"
refresh w
`)
	assert.Equal(t, Closed, eng.State())

	d := globalNode(t, eng, "d")
	assert.Empty(t, updatesOf(surface, d.ID, "fill"))
	for _, call := range surface.Calls {
		assert.NotEqual(t, "render", call.Op, "nothing renders after the last view closes")
	}
}

func TestCloseCancelsPendingWait(t *testing.T) {
	// no event is queued; the wait must never be reached
	eng, surface := runProgram(t, `
w : View with { title = "w" }
close w
p : Point = wait click
`)
	assert.Equal(t, Closed, eng.State())
	for _, call := range surface.Calls {
		assert.NotEqual(t, "wait", call.Op)
	}
}

func TestNegativeRefreshDelayClampsToZero(t *testing.T) {
	_, surface := runProgram(t, `
w : View with { title = "w" }
short : Time = 1s
refresh w after short - 2s
`)
	var found bool
	for _, call := range surface.Calls {
		if call.Op == "schedule" {
			found = true
			assert.Equal(t, float64(0), call.Delay)
		}
	}
	assert.True(t, found)
}

func TestViewDefaultsOverrideSchema(t *testing.T) {
	eng, _ := startProgram(t, `w : View with { title = "t" }`, func(e *Engine, _ *RecordingSurface) {
		e.ViewDefaults = map[string]Value{
			"width": NumberValue(1024),
			"title": StringValue("from-config"),
		}
	})
	require.NoError(t, eng.Run(context.Background()))

	w := globalNode(t, eng, "w")
	assert.Equal(t, NumberValue(1024), w.Props["width"])
	// the declaration's own properties win over config defaults
	assert.Equal(t, StringValue("t"), w.Props["title"])
}

func TestShapesAreVisibleByDefault(t *testing.T) {
	eng, _ := runProgram(t, "d : Dot at (1, 2)")
	d := globalNode(t, eng, "d")
	assert.Equal(t, BoolValue(true), d.Props["visible"])
	assert.Equal(t, PointValue{X: 1, Y: 2}, d.Props["position"])
}

func TestElementWriteTriggersWatchers(t *testing.T) {
	eng, _ := runProgram(t, `
Poly :: {
    xs   : Array<Number> = [1, 2, 3]
    hits : Number = 0
    on xs { hits = hits + 1 }
}
m : Poly at (0, 0)
m.xs[1] = 9
`)
	m := globalNode(t, eng, "m")
	xs := m.Props["xs"].(ListValue)
	require.Len(t, xs, 3)
	assert.InDelta(t, 9, numOf(t, xs[1]), geomDelta)
	assert.InDelta(t, 1, numOf(t, m.Props["hits"]), geomDelta)
}

func TestRotateArcShiftsStart(t *testing.T) {
	eng, _ := runProgram(t, `
a : Arc at (0, 0) with { start = 10, extent = 90 }
rotate a by 45
`)
	a := globalNode(t, eng, "a")
	assert.InDelta(t, 55, numOf(t, a.Props["start"]), geomDelta)
}

func TestModelCreationDoesNotDispatch(t *testing.T) {
	_, surface := runProgram(t, `
Counter :: {
    x    : Number = 5
    hits : Number = 0
    on x { hits = hits + 1 }
}
m : Counter at (0, 0)
`)
	for _, call := range surface.Calls {
		assert.NotEqual(t, "update", call.Op, "creation must not run Actions")
	}
}

func TestWhileAndRepeat(t *testing.T) {
	eng, _ := runProgram(t, `
Probe :: { x : Number = 0 }
m : Probe at (0, 0)
n : Number = 0
while n < 3 {
    n = n + 1
}
repeat {
    n = n + 10
} until n > 20
m.x = n
`)
	m := globalNode(t, eng, "m")
	assert.InDelta(t, 23, numOf(t, m.Props["x"]), geomDelta)
}
