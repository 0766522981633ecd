// Package condition implements the Condition Evaluator: the if_*
// guard a node checks before it runs at all (spec.md §4.3).
package condition

import (
	"fmt"
	"regexp"

	"github.com/ubleipzig/spcht-go/pkg/record"
	"github.com/ubleipzig/spcht-go/pkg/transform"
)

// Operator is one of the recognized if_condition lexemes.
type Operator string

const (
	OpEqual        Operator = "=="
	OpUnequal      Operator = "!="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpExists       Operator = "exi"
)

// Reader resolves a field path, mirroring transform.Reader so a
// Condition can be evaluated against the same record/source a node
// was bound to.
type Reader func(field string) ([]record.Scalar, error)

// Condition is a compiled if_field/if_condition/if_value guard, with
// its own independent if_match/if_cut/if_replace/if_prepend/if_append
// preprocessing (spec.md §4.3: these mirror the main pipeline's steps
// but run on the condition's own extracted values).
type Condition struct {
	Field   string
	Op      Operator
	Value   []record.Scalar // one element for a scalar if_value, several for a list

	Match   *regexp.Regexp
	Cut     *regexp.Regexp
	Replace string
	Prepend string
	Append  string
}

// Evaluate reads Condition.Field via read, applies the condition's own
// match/cut/replace/prepend/append steps, and checks the result
// against Op/Value per spec.md §4.3.
func (c *Condition) Evaluate(read Reader) (bool, error) {
	raw, err := read(c.Field)
	if err != nil {
		return false, err
	}

	fieldVals := transform.FilterMatch(raw, c.Match)
	fieldVals = transform.CutReplace(fieldVals, c.Cut, c.Replace)
	fieldVals = transform.Affix(fieldVals, c.Prepend, c.Append)

	if c.Op == OpExists {
		return len(fieldVals) > 0, nil
	}

	if len(fieldVals) == 0 {
		// Absence-as-negativity law (spec.md §8 property 7).
		switch c.Op {
		case OpEqual, OpGreater, OpGreaterEqual:
			return false, nil
		case OpUnequal, OpLess, OpLessEqual:
			return true, nil
		}
		return false, fmt.Errorf("condition: unrecognized operator %q", c.Op)
	}

	if len(c.Value) > 1 {
		// List if_value: only ==/!= are meaningful (load-time error for
		// any other operator; defensively re-checked here).
		switch c.Op {
		case OpEqual:
			return anyPairEqual(fieldVals, c.Value), nil
		case OpUnequal:
			return !anyPairEqual(fieldVals, c.Value), nil
		default:
			return false, fmt.Errorf("condition: operator %q is not valid against a list if_value", c.Op)
		}
	}

	// Scalar if_value: condition holds iff ANY field value satisfies it.
	var target record.Scalar
	if len(c.Value) == 1 {
		target = c.Value[0]
	}
	for _, fv := range fieldVals {
		if compare(fv, c.Op, target) {
			return true, nil
		}
	}
	return false, nil
}

func anyPairEqual(a, b []record.Scalar) bool {
	for _, x := range a {
		for _, y := range b {
			if scalarsEqual(x, y) {
				return true
			}
		}
	}
	return false
}

func scalarsEqual(a, b record.Scalar) bool {
	if af, aok := a.AsFloat64(); aok {
		if bf, bok := b.AsFloat64(); bok {
			return af == bf
		}
	}
	return a.String() == b.String()
}

// compare evaluates one field value against op/target, coercing both
// to the narrowest shared representation: numeric if both sides parse
// as numbers, lexicographic string order otherwise (spec.md §4.3).
func compare(fv record.Scalar, op Operator, target record.Scalar) bool {
	switch op {
	case OpEqual:
		return scalarsEqual(fv, target)
	case OpUnequal:
		return !scalarsEqual(fv, target)
	}

	af, aok := fv.AsFloat64()
	bf, bok := target.AsFloat64()
	if aok && bok {
		switch op {
		case OpLess:
			return af < bf
		case OpLessEqual:
			return af <= bf
		case OpGreater:
			return af > bf
		case OpGreaterEqual:
			return af >= bf
		}
	}

	as, bs := fv.String(), target.String()
	switch op {
	case OpLess:
		return as < bs
	case OpLessEqual:
		return as <= bs
	case OpGreater:
		return as > bs
	case OpGreaterEqual:
		return as >= bs
	}
	return false
}

// ParseOperator validates and normalizes an if_condition lexeme from a
// descriptor document.
func ParseOperator(s string) (Operator, error) {
	switch Operator(s) {
	case OpEqual, OpUnequal, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpExists:
		return Operator(s), nil
	}
	return "", fmt.Errorf("condition: unrecognized if_condition %q", s)
}
