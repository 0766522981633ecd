// Package accessor implements the Value Accessor: a uniform read of a
// field path against either the flat or MARC21-nested view of a record.
package accessor

import (
	"fmt"
	"strings"

	"github.com/ubleipzig/spcht-go/pkg/record"
)

// Read extracts the sequence of scalars at path within the given view
// of rec (spec.md §4.1).
//
// For source=flat, path is a plain key: missing key yields an empty
// sequence, a scalar yields a length-1 sequence, a list is returned in
// order.
//
// For source=marc, path has shape "FFF:SS" (three-digit field tag,
// colon, subfield code or "i1"/"i2"/"none"). A repeating field
// concatenates results from every repetition in order; a subfield
// value that is itself a sequence is flattened into the result.
func Read(rec *record.Record, source record.Source, path string) ([]record.Scalar, error) {
	if rec == nil {
		return nil, nil
	}
	switch source {
	case record.SourceFlat:
		return readFlat(rec, path), nil
	case record.SourceMarc:
		return readMarc(rec, path)
	default:
		return nil, fmt.Errorf("accessor: unknown source %q", source)
	}
}

func readFlat(rec *record.Record, path string) []record.Scalar {
	v, ok := rec.Flat[path]
	if !ok {
		return nil
	}
	return toScalars(v)
}

// toScalars normalizes a flat-view value (scalar or sequence, however
// the caller decoded it) into an ordered []record.Scalar.
func toScalars(v any) []record.Scalar {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]record.Scalar, 0, len(t))
		for _, e := range t {
			out = append(out, record.ScalarFromAny(e))
		}
		return out
	case []string:
		out := make([]record.Scalar, 0, len(t))
		for _, e := range t {
			out = append(out, record.String(e))
		}
		return out
	case []record.Scalar:
		return t
	default:
		return []record.Scalar{record.ScalarFromAny(v)}
	}
}

// readMarc parses "FFF:SS" and concatenates every repetition's values
// for that subfield, in order, flattening per-repetition sequences.
func readMarc(rec *record.Record, path string) ([]record.Scalar, error) {
	if rec.Marc == nil {
		return nil, nil
	}

	tag, sub, err := splitMarcPath(path)
	if err != nil {
		return nil, err
	}

	field, ok := rec.Marc[tag]
	if !ok {
		return nil, nil
	}

	var out []record.Scalar
	for _, rep := range field.Repetitions {
		vals, ok := rep[sub]
		if !ok {
			continue
		}
		out = append(out, vals...)
	}
	return out, nil
}

func splitMarcPath(path string) (tag, sub string, err error) {
	idx := strings.IndexByte(path, ':')
	if idx < 0 {
		return "", "", fmt.Errorf("accessor: MARC path %q missing \"FFF:SS\" separator", path)
	}
	tag, sub = path[:idx], path[idx+1:]
	if len(tag) != 3 {
		return "", "", fmt.Errorf("accessor: MARC field tag %q must be 3 characters", tag)
	}
	if sub == "" {
		return "", "", fmt.Errorf("accessor: MARC path %q missing subfield code", path)
	}
	return tag, sub, nil
}
