package core

import (
	"context"
	"fmt"
)

// Surface is the rendering capability the engine draws through. The
// engine owns all state and sequencing; a Surface only mirrors shapes,
// presents frames, and sources input events. Views go through CreateShape
// and CloseView like any other node.
type Surface interface {
	CreateShape(id NodeID, kind string, props map[string]Value)
	UpdateShape(id NodeID, field string, value Value)
	RenderFrame(view NodeID)
	ScheduleRefresh(view NodeID, afterMillis float64)
	WaitForEvent(ctx context.Context, kind string) (Value, error)
	CloseView(view NodeID)
}

// SurfaceCall is one recorded Surface operation.
type SurfaceCall struct {
	Op    string
	Node  NodeID
	Kind  string
	Field string
	Value Value
	Delay float64
}

func (c SurfaceCall) String() string {
	switch c.Op {
	case "create":
		return fmt.Sprintf("create node(%d) %s", int(c.Node), c.Kind)
	case "update":
		return fmt.Sprintf("update node(%d).%s = %s", int(c.Node), c.Field, c.Value)
	case "render":
		return fmt.Sprintf("render node(%d)", int(c.Node))
	case "schedule":
		return fmt.Sprintf("schedule node(%d) after %gms", int(c.Node), c.Delay)
	case "wait":
		return "wait " + c.Kind
	case "close":
		return fmt.Sprintf("close node(%d)", int(c.Node))
	}
	return c.Op
}

// RecordingSurface is the headless Surface: it records every call and
// serves events from a queue, so whole programs run and assert without a
// display.
type RecordingSurface struct {
	Calls  []SurfaceCall
	events map[string][]Value
}

func NewRecordingSurface() *RecordingSurface {
	return &RecordingSurface{events: map[string][]Value{}}
}

// QueueEvent pre-loads one event for a later WaitForEvent.
func (s *RecordingSurface) QueueEvent(kind string, v Value) {
	s.events[kind] = append(s.events[kind], v)
}

func (s *RecordingSurface) CreateShape(id NodeID, kind string, props map[string]Value) {
	s.Calls = append(s.Calls, SurfaceCall{Op: "create", Node: id, Kind: kind})
}

func (s *RecordingSurface) UpdateShape(id NodeID, field string, value Value) {
	s.Calls = append(s.Calls, SurfaceCall{Op: "update", Node: id, Field: field, Value: value})
}

func (s *RecordingSurface) RenderFrame(view NodeID) {
	s.Calls = append(s.Calls, SurfaceCall{Op: "render", Node: view})
}

func (s *RecordingSurface) ScheduleRefresh(view NodeID, afterMillis float64) {
	s.Calls = append(s.Calls, SurfaceCall{Op: "schedule", Node: view, Delay: afterMillis})
}

func (s *RecordingSurface) WaitForEvent(ctx context.Context, kind string) (Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.Calls = append(s.Calls, SurfaceCall{Op: "wait", Kind: kind})
	queue := s.events[kind]
	if len(queue) == 0 {
		return nil, fmt.Errorf("no queued %s event", kind)
	}
	v := queue[0]
	s.events[kind] = queue[1:]
	return v, nil
}

func (s *RecordingSurface) CloseView(view NodeID) {
	s.Calls = append(s.Calls, SurfaceCall{Op: "close", Node: view})
}

// Log renders the call trace, one call per line, for snapshot assertions.
func (s *RecordingSurface) Log() []string {
	out := make([]string, len(s.Calls))
	for i, c := range s.Calls {
		out[i] = c.String()
	}
	return out
}
