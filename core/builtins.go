package core

import (
	"fmt"
	"math"
	"math/rand"
)

type builtinSpec struct {
	params []Type
	result Type
	fn     func(args []Value) (Value, error)
}

func numArg(args []Value, i int) (float64, error) {
	f, ok := asFloat(args[i])
	if !ok {
		return 0, fmt.Errorf("argument %d must be a number, got %s", i+1, args[i])
	}
	return f, nil
}

func numFn(f func(float64) float64) builtinSpec {
	return builtinSpec{
		params: []Type{typeNumber},
		result: typeNumber,
		fn: func(args []Value) (Value, error) {
			x, err := numArg(args, 0)
			if err != nil {
				return nil, err
			}
			return NumberValue(f(x)), nil
		},
	}
}

func numFn2(f func(float64, float64) float64) builtinSpec {
	return builtinSpec{
		params: []Type{typeNumber, typeNumber},
		result: typeNumber,
		fn: func(args []Value) (Value, error) {
			x, err := numArg(args, 0)
			if err != nil {
				return nil, err
			}
			y, err := numArg(args, 1)
			if err != nil {
				return nil, err
			}
			return NumberValue(f(x, y)), nil
		},
	}
}

const degToRad = math.Pi / 180

// builtins are the functions callable from expressions. Angles are in
// degrees, like everywhere else in the language.
var builtins = map[string]builtinSpec{
	"sqrt": {
		params: []Type{typeNumber},
		result: typeNumber,
		fn: func(args []Value) (Value, error) {
			x, err := numArg(args, 0)
			if err != nil {
				return nil, err
			}
			if x < 0 {
				return nil, fmt.Errorf("sqrt of negative number %g", x)
			}
			return NumberValue(math.Sqrt(x)), nil
		},
	},
	"sin":   numFn(func(x float64) float64 { return math.Sin(x * degToRad) }),
	"cos":   numFn(func(x float64) float64 { return math.Cos(x * degToRad) }),
	"abs":   numFn(math.Abs),
	"floor": numFn(math.Floor),
	"ceil":  numFn(math.Ceil),
	"min":   numFn2(math.Min),
	"max":   numFn2(math.Max),
	"random": {
		result: typeNumber,
		fn: func([]Value) (Value, error) {
			return NumberValue(rand.Float64()), nil
		},
	},
}
