package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ParseScript parses extension-language source. Only the grammar is
// checked here; names and types are resolved when the script is played,
// against the binding table of that play.
func ParseScript(source, filename string) (*ScriptValue, error) {
	tokens := newTokenizer(source, filename).tokenize()
	p := newParser(tokens, true)
	ast, err := p.parseProgram()
	if err != nil {
		return nil, err
	}
	return &ScriptValue{Path: filename, ast: ast}, nil
}

// FileLoader resolves load paths relative to dir.
func FileLoader(dir string) func(string) (*ScriptValue, error) {
	return func(path string) (*ScriptValue, error) {
		full := path
		if !filepath.IsAbs(full) {
			full = filepath.Join(dir, full)
		}
		src, err := os.ReadFile(full)
		if err != nil {
			return nil, errors.Wrapf(err, "loading script %s", path)
		}
		return ParseScript(string(src), path)
	}
}

// play resolves the binding table, then analyzes, compiles, and runs the
// script through the same engine. Each play is independent: the script
// gets a fresh frame seeded only with the bound instances.
func (e *Engine) play(ctx context.Context, script *ScriptValue, bindings []playBinding, fr *frame) error {
	binds := make([]scriptBinding, len(bindings))
	values := make([]Value, len(bindings))
	seen := map[string]bool{}
	for i, b := range bindings {
		if seen[b.Name] {
			return &BindingError{Name: b.Name, Reason: "bound twice"}
		}
		seen[b.Name] = true
		v, err := e.eval(ctx, b.Target, fr)
		if err != nil {
			return &BindingError{Name: b.Name, Reason: err.Error()}
		}
		nv, ok := v.(NodeValue)
		if !ok {
			return &BindingError{Name: b.Name, Reason: fmt.Sprintf("must name an instance, got %s", v)}
		}
		binds[i] = scriptBinding{name: b.Name, typ: e.g.node(NodeID(nv)).Type}
		values[i] = v
	}

	slots, err := analyzeScript(script.ast, e.prog.analysis, binds)
	if err != nil {
		return scriptAnalysisError(err)
	}
	sub, err := compileScript(script.ast, e.prog, slots)
	if err != nil {
		return err
	}

	sf := &frame{slots: make([]Value, slots), owner: -1}
	copy(sf.slots, values)
	klog.V(1).Infof("play %s with %d bindings", script.Path, len(bindings))
	return e.exec(ctx, sub.Instructions, sf)
}

// scriptAnalysisError reshapes script analysis failures: a name a script
// body uses but the play's binding table does not cover is a binding
// failure, not a compile diagnostic.
func scriptAnalysisError(err error) error {
	list, ok := err.(ErrorList)
	if !ok {
		return err
	}
	for _, item := range list {
		if ne, ok := item.(*NameError); ok {
			return &BindingError{Name: ne.Name, Reason: "not bound by this play"}
		}
	}
	return err
}

// PlaySource runs extension-language source directly against the live
// graph, with every top-level instance of the host program bound under its
// declared name. The REPL is built on this.
func (e *Engine) PlaySource(ctx context.Context, source, name string) error {
	script, err := ParseScript(source, name)
	if err != nil {
		return err
	}
	var bindings []playBinding
	for gname, sym := range e.prog.analysis.globals {
		if !isInstance(sym.typ) {
			continue
		}
		if _, ok := e.slots[sym.ref.slot].(NodeValue); !ok {
			continue
		}
		bindings = append(bindings, playBinding{
			Name:   gname,
			Target: &identNode{name: gname, typ: sym.typ, ref: sym.ref},
		})
	}
	fr := &frame{slots: e.slots, owner: -1}
	return e.play(ctx, script, bindings, fr)
}
