// Package node implements the Node Evaluator: the algorithm that
// drives one node (or the head node) against one record to produce
// triples (spec.md §4.4).
package node

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ubleipzig/spcht-go/pkg/accessor"
	"github.com/ubleipzig/spcht-go/pkg/descriptor"
	"github.com/ubleipzig/spcht-go/pkg/record"
)

// ErrMultipleHeadValues signals a head node that survived with more
// than one object, violating the "exactly one scalar" head invariant
// (spec.md §3). The descriptor loader does not check the head's value
// count; it is checked only here, at evaluation time, against the
// record's data.
var ErrMultipleHeadValues = errors.New("node: head node yielded more than one value")

// Warning is a non-fatal authoring issue surfaced during evaluation
// (spec.md §7, EvaluationWarning): the offending sub-expression
// contributes nothing, but the rest of the node still evaluates.
type Warning struct {
	Path    string
	Message string
}

func (w Warning) String() string { return fmt.Sprintf("%s: %s", w.Path, w.Message) }

func reader(rec *record.Record, source record.Source) func(string) ([]record.Scalar, error) {
	return func(field string) ([]record.Scalar, error) {
		return accessor.Read(rec, source, field)
	}
}

// EvaluateHead derives a record's subject from the compiled head node.
// It returns the bare identifier (not yet prefixed — the caller owns
// that, spec.md §4.6) and ok=false when the record should be
// discarded because the head produced nothing.
func EvaluateHead(head *descriptor.Head, rec *record.Record) (subject string, ok bool, warnings []Warning, err error) {
	if head.Condition != nil {
		pass, err := head.Condition.Evaluate(reader(rec, head.Source))
		if err != nil {
			return "", false, nil, err
		}
		if !pass {
			return "", false, nil, nil
		}
	}

	read := reader(rec, head.Source)
	values, err := read(head.Field)
	if err != nil {
		return "", false, nil, err
	}
	for _, alt := range head.Alternatives {
		if len(values) > 0 {
			break
		}
		values, err = read(alt)
		if err != nil {
			return "", false, nil, err
		}
	}

	if len(values) == 0 {
		if head.Fallback != nil {
			triples, _, warnings, err := EvaluateNode(head.Fallback, rec, "")
			if err != nil {
				return "", false, warnings, err
			}
			if len(triples) == 0 {
				return "", false, warnings, nil
			}
			if len(triples) > 1 {
				return "", false, warnings, ErrMultipleHeadValues
			}
			return triples[0].Object.Value, true, warnings, nil
		}
		return "", false, nil, nil
	}

	strs, err := head.Pipeline.Apply(values, read)
	if err != nil {
		return "", false, nil, err
	}
	if len(strs) == 0 {
		return "", false, nil, nil
	}
	if len(strs) > 1 {
		return "", false, nil, ErrMultipleHeadValues
	}
	return strs[0], true, nil, nil
}

// EvaluateNode runs the full node algorithm of spec.md §4.4 against
// rec, emitting triples with the given subject. discard reports a
// mandatory node that found nothing; this includes a mandatory
// sub_node, whose discard propagates up through every enclosing call
// so the driver discards the whole record rather than just the
// sub-tree (spec.md §4.4/§7: the mandatory invariant applies to any
// node, not only top-level body nodes).
func EvaluateNode(n *descriptor.Node, rec *record.Record, subject string) (triples []record.Triple, discard bool, warnings []Warning, err error) {
	read := reader(rec, n.Source)

	if n.Condition != nil {
		pass, err := n.Condition.Evaluate(read)
		if err != nil {
			return nil, false, nil, err
		}
		if !pass {
			return nil, false, nil, nil
		}
	}

	if n.JoinedField != "" {
		return evaluateJoined(n, rec, subject)
	}

	values, err := read(n.Field)
	if err != nil {
		return nil, false, nil, err
	}
	for _, alt := range n.Alternatives {
		if len(values) > 0 {
			break
		}
		values, err = read(alt)
		if err != nil {
			return nil, false, nil, err
		}
	}

	if len(values) == 0 {
		if n.Fallback != nil {
			fbTriples, fbDiscard, fbWarnings, err := EvaluateNode(n.Fallback, rec, subject)
			if err != nil || fbDiscard || len(fbTriples) > 0 {
				return fbTriples, fbDiscard, fbWarnings, err
			}
			// Primary, alternatives and fallback all empty: a mandatory
			// node still discards the record.
			return nil, n.Required == descriptor.Mandatory, fbWarnings, nil
		}
		if n.Required == descriptor.Mandatory {
			return nil, true, nil, nil
		}
		return nil, false, nil, nil
	}

	strs, err := n.Pipeline.Apply(values, read)
	if err != nil {
		return nil, false, nil, err
	}
	if len(strs) == 0 {
		return nil, false, nil, nil
	}

	predicates := []string{n.Predicate}
	if len(n.AppendUUIDPredicateFields) > 0 {
		suffix, err := uuidSuffix(rec, n.Source, n.AppendUUIDPredicateFields)
		if err != nil {
			return nil, false, nil, err
		}
		predicates = []string{n.Predicate + suffix}
	}

	var objSuffix string
	if len(n.AppendUUIDObjectFields) > 0 {
		objSuffix, err = uuidSuffix(rec, n.Source, n.AppendUUIDObjectFields)
		if err != nil {
			return nil, false, nil, err
		}
	}

	for _, s := range strs {
		objVal := s + objSuffix
		obj := record.Object{Value: objVal, IsIRI: n.Type == descriptor.URI, Tag: n.Tag}
		for _, p := range predicates {
			t := record.Triple{Subject: subject, Predicate: p, Object: obj}
			triples = append(triples, t)

			if len(n.SubNodes) > 0 {
				for _, sub := range n.SubNodes {
					subTriples, subDiscard, subWarnings, err := EvaluateNode(sub, rec, objVal)
					if err != nil {
						return nil, false, nil, err
					}
					if subDiscard {
						return nil, true, nil, nil
					}
					triples = append(triples, subTriples...)
					warnings = append(warnings, subWarnings...)
				}
			}
		}
	}

	return triples, false, warnings, nil
}

// evaluateJoined implements the joined_map variant of step 4 (spec.md
// §4.2, §4.3 property 6, "Join length law"): the primary field and
// joined_field are paired index-wise; each pair's predicate is looked
// up in the joined map, falling back to the node's own predicate on a
// miss so that, whenever the two fields' lengths agree, exactly one
// triple is emitted per pair regardless of hit or miss.
func evaluateJoined(n *descriptor.Node, rec *record.Record, subject string) ([]record.Triple, bool, []Warning, error) {
	read := reader(rec, n.Source)

	fieldVals, err := read(n.Field)
	if err != nil {
		return nil, false, nil, err
	}
	for _, alt := range n.Alternatives {
		if len(fieldVals) > 0 {
			break
		}
		fieldVals, err = read(alt)
		if err != nil {
			return nil, false, nil, err
		}
	}

	if len(fieldVals) == 0 {
		if n.Fallback != nil {
			fbTriples, fbDiscard, fbWarnings, err := EvaluateNode(n.Fallback, rec, subject)
			if err != nil || fbDiscard || len(fbTriples) > 0 {
				return fbTriples, fbDiscard, fbWarnings, err
			}
			return nil, n.Required == descriptor.Mandatory, fbWarnings, nil
		}
		if n.Required == descriptor.Mandatory {
			return nil, true, nil, nil
		}
		return nil, false, nil, nil
	}

	joinedVals, err := read(n.JoinedField)
	if err != nil {
		return nil, false, nil, err
	}

	if len(joinedVals) != len(fieldVals) {
		return nil, false, []Warning{{
			Path:    n.Field,
			Message: fmt.Sprintf("joined_field length %d does not match field length %d", len(joinedVals), len(fieldVals)),
		}}, nil
	}

	strs := transformSingles(fieldVals, n)

	var objSuffix string
	if len(n.AppendUUIDObjectFields) > 0 {
		objSuffix, err = uuidSuffix(rec, n.Source, n.AppendUUIDObjectFields)
		if err != nil {
			return nil, false, nil, err
		}
	}

	triples := make([]record.Triple, 0, len(strs))
	var warnings []Warning
	for i, s := range strs {
		predicate := n.Predicate
		if n.JoinedMap != nil {
			if mapped, ok := n.JoinedMap.Lookup(joinedVals[i].String()); ok {
				predicate = mapped
			}
		}
		objVal := s + objSuffix
		obj := record.Object{Value: objVal, IsIRI: n.Type == descriptor.URI, Tag: n.Tag}
		triples = append(triples, record.Triple{Subject: subject, Predicate: predicate, Object: obj})

		for _, sub := range n.SubNodes {
			subTriples, subDiscard, subWarnings, err := EvaluateNode(sub, rec, objVal)
			if err != nil {
				return nil, false, nil, err
			}
			if subDiscard {
				return nil, true, nil, nil
			}
			triples = append(triples, subTriples...)
			warnings = append(warnings, subWarnings...)
		}
	}

	return triples, false, warnings, nil
}

// transformSingles applies cut/replace and prepend/append to each
// field value independently, preserving index correspondence with the
// paired joined_field values. match and insert_into are not applied in
// the joined_map path: match would break the 1:1 pairing the join
// requires, and insert_into combined with joined_map has no worked
// example in spec.md to ground a cross-product behavior against.
func transformSingles(values []record.Scalar, n *descriptor.Node) []string {
	out := make([]string, len(values))
	for i, v := range values {
		s := v.String()
		if n.Pipeline.Cut != nil {
			s = n.Pipeline.Cut.ReplaceAllString(s, n.Pipeline.Replace)
		}
		s = n.Pipeline.Prepend + s + n.Pipeline.Append
		out[i] = s
	}
	return out
}

// uuidSuffix computes the RFC4122 v5 UUID (namespace OID) whose name
// is the concatenation, without separator, of every listed field's
// extracted string values in field order (spec.md §4.4 step 6/7, §8
// property 8).
func uuidSuffix(rec *record.Record, source record.Source, fields []string) (string, error) {
	var name strings.Builder
	read := reader(rec, source)
	for _, f := range fields {
		vals, err := read(f)
		if err != nil {
			return "", err
		}
		for _, v := range vals {
			name.WriteString(v.String())
		}
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name.String())).String(), nil
}
