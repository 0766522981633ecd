package descriptor

import (
	"github.com/ubleipzig/spcht-go/pkg/condition"
	"github.com/ubleipzig/spcht-go/pkg/record"
	"github.com/ubleipzig/spcht-go/pkg/transform"
)

// Required is a node's presence requirement (spec.md §3).
type Required string

const (
	Mandatory Required = "mandatory"
	Optional  Required = "optional"
)

// ObjectKind is a node's object type: a plain literal or an IRI
// (spec.md §3).
type ObjectKind string

const (
	Literal ObjectKind = "literal"
	URI     ObjectKind = "uri"
)

// Node is one compiled body node: regexes precompiled, mappings
// inlined, fallback and sub_nodes owned recursively (spec.md §4.5,
// §9 "Recursive structures").
type Node struct {
	Source    record.Source
	Field     string
	Predicate string
	Required  Required
	Type      ObjectKind
	Tag       string

	Alternatives []string
	Fallback     *Node

	Pipeline transform.Pipeline

	JoinedField string
	JoinedMap   *transform.Mapping

	Condition *condition.Condition

	AppendUUIDPredicateFields []string
	AppendUUIDObjectFields    []string

	SubNodes []*Node
}

// Head is the compiled head node: it derives the record's subject and
// so carries no predicate, type, or sub_nodes (spec.md §4.4, "Head
// node").
type Head struct {
	Source record.Source
	Field  string

	Alternatives []string
	Fallback     *Node

	Pipeline transform.Pipeline

	Condition *condition.Condition
}

// Compiled is an immutable, ready-to-evaluate descriptor: a head and
// an ordered list of body nodes (spec.md §3, "Descriptor").
type Compiled struct {
	Head  Head
	Nodes []*Node
}
