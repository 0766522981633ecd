// Package transform implements the Value Transformer: the fixed,
// pure pipeline of per-value operations a node applies to the scalars
// the accessor extracted (spec.md §4.2).
package transform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ubleipzig/spcht-go/pkg/record"
)

// FieldRef is a subset of a node used by insert_into's
// insert_add_fields: a field path plus the match/cut/replace/prepend/
// append steps (no mapping, no static_field — spec.md §3 "Field ref").
type FieldRef struct {
	Field   string
	Match   *regexp.Regexp
	Cut     *regexp.Regexp
	Replace string
	Prepend string
	Append  string
}

// Reader resolves a field path against whatever record and source a
// node was bound to. Node supplies this so transform stays independent
// of pkg/accessor and pkg/record's Source plumbing.
type Reader func(field string) ([]record.Scalar, error)

// Pipeline is a node's compiled value-transformation steps, applied in
// the fixed order from spec.md §4.2: match, mapping, cut+replace,
// prepend/append, insert_into, static_field.
type Pipeline struct {
	Match           *regexp.Regexp
	Mapping         *Mapping
	Cut             *regexp.Regexp
	Replace         string
	Prepend         string
	Append          string
	InsertInto      string
	InsertAddFields []FieldRef
	StaticField     *string
}

// Apply runs values through the pipeline. read resolves insert_into's
// additional field refs against the same record/source the caller
// extracted values from; it may be nil if InsertAddFields is empty.
func (p *Pipeline) Apply(values []record.Scalar, read Reader) ([]string, error) {
	strs := FilterMatch(values, p.Match)

	if p.Mapping != nil {
		strs = p.Mapping.Apply(strs)
	}

	strs = CutReplace(strs, p.Cut, p.Replace)
	strs = Affix(strs, p.Prepend, p.Append)

	if p.InsertInto != "" {
		out, err := p.applyInsertInto(strs, read)
		if err != nil {
			return nil, err
		}
		strs = out
	}

	if p.StaticField != nil {
		for i := range strs {
			strs[i] = *p.StaticField
		}
	}

	return strs, nil
}

// FilterMatch keeps only values whose string form matches re, preserving
// order. A nil regex passes every value through unfiltered. Shared by
// the main pipeline's match step and by the Condition Evaluator's
// if_match preprocessing (spec.md §4.2, §4.3).
func FilterMatch(values []record.Scalar, re *regexp.Regexp) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		s := v.String()
		if re == nil || re.MatchString(s) {
			out = append(out, s)
		}
	}
	return out
}

// CutReplace substitutes every occurrence of cut with replace in each
// value. A nil cut regex is a no-op.
func CutReplace(values []string, cut *regexp.Regexp, replace string) []string {
	if cut == nil {
		return values
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = cut.ReplaceAllString(v, replace)
	}
	return out
}

// Affix concatenates prepend/append around each value.
func Affix(values []string, prepend, append_ string) []string {
	if prepend == "" && append_ == "" {
		return values
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = prepend + v + append_
	}
	return out
}

// applyInsertInto resolves each InsertAddFields ref (through its own
// match/cut/replace/prepend/append steps, spec.md §4.2 step 5), then
// substitutes the primary values and every field ref's values into
// InsertInto's "{}" placeholders. Multi-value slots form a cartesian
// product, primary field outermost and each subsequent field ref
// nested inward in declared order (spec.md §9, Open Question 1).
func (p *Pipeline) applyInsertInto(primary []string, read Reader) ([]string, error) {
	slots := make([][]string, 0, len(p.InsertAddFields)+1)
	slots = append(slots, primary)

	for _, ref := range p.InsertAddFields {
		if read == nil {
			return nil, fmt.Errorf("transform: insert_into references field %q but no reader was supplied", ref.Field)
		}
		vals, err := read(ref.Field)
		if err != nil {
			return nil, err
		}
		s := FilterMatch(vals, ref.Match)
		s = CutReplace(s, ref.Cut, ref.Replace)
		s = Affix(s, ref.Prepend, ref.Append)
		slots = append(slots, s)
	}

	placeholders := strings.Count(p.InsertInto, "{}")
	if placeholders != len(slots) {
		// Arity mismatch: load-time validation should have caught an
		// authoring error of this shape; at evaluation time a
		// data-dependent mismatch silently disables the template.
		return nil, nil
	}

	var results []string
	cartesianProduct(slots, make([]string, 0, len(slots)), func(combo []string) {
		results = append(results, substitute(p.InsertInto, combo))
	})
	return results, nil
}

func substitute(template string, values []string) string {
	var b strings.Builder
	rest := template
	for _, v := range values {
		idx := strings.Index(rest, "{}")
		if idx < 0 {
			break
		}
		b.WriteString(rest[:idx])
		b.WriteString(v)
		rest = rest[idx+2:]
	}
	b.WriteString(rest)
	return b.String()
}

// cartesianProduct invokes fn once per combination drawn from slots,
// one element per slot, in field-major nested order. An empty slot
// yields zero combinations, which is how an empty required field ref
// silently drops the whole insert_into value (spec.md §4.2 step 5).
func cartesianProduct(slots [][]string, prefix []string, fn func([]string)) {
	if len(slots) == 0 {
		combo := make([]string, len(prefix))
		copy(combo, prefix)
		fn(combo)
		return
	}
	for _, v := range slots[0] {
		cartesianProduct(slots[1:], append(prefix, v), fn)
	}
}
