package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// AST is a parsed host program, opaque beyond printing.
type AST struct {
	nodes []astNode
}

func (a AST) String() string {
	parts := make([]string, len(a.nodes))
	for i, n := range a.nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, "\n")
}

// Parse tokenizes and parses host-language source.
func Parse(source, filename string) (AST, error) {
	tokens := newTokenizer(source, filename).tokenize()
	p := newParser(tokens, false)
	nodes, err := p.parseProgram()
	if err != nil {
		return AST{}, err
	}
	return AST{nodes: nodes}, nil
}

// Compile analyzes and lowers a parsed program.
func Compile(ast AST) (*Program, error) {
	an, err := analyze(ast.nodes)
	if err != nil {
		return nil, err
	}
	return compileProgram(ast.nodes, an)
}

// CompileSource is Parse followed by Compile.
func CompileSource(source, filename string) (*Program, error) {
	ast, err := Parse(source, filename)
	if err != nil {
		return nil, err
	}
	return Compile(ast)
}

// CompileFile compiles a .agl file.
func CompileFile(path string) (*Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return CompileSource(string(src), filepath.Base(path))
}

// Run executes a compiled program on a surface, loading scripts relative
// to dir.
func Run(ctx context.Context, prog *Program, surface Surface, dir string) (*Engine, error) {
	eng := NewEngine(prog, surface)
	eng.Loader = FileLoader(dir)
	if err := eng.Run(ctx); err != nil {
		return eng, err
	}
	return eng, nil
}

// RunFile compiles and executes one .agl file headlessly or on the given
// surface.
func RunFile(ctx context.Context, path string, surface Surface) (*Engine, error) {
	prog, err := CompileFile(path)
	if err != nil {
		return nil, err
	}
	return Run(ctx, prog, surface, filepath.Dir(path))
}
