package node

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubleipzig/spcht-go/pkg/descriptor"
	"github.com/ubleipzig/spcht-go/pkg/record"
	"github.com/ubleipzig/spcht-go/pkg/transform"
)

func rec(flat map[string]any) *record.Record {
	return record.New(flat, "")
}

// S2: URI with a prepend affix.
func TestEvaluateNodeURIWithPrepend(t *testing.T) {
	n := &descriptor.Node{
		Source: record.SourceFlat, Field: "author_gnd", Predicate: "P:creator",
		Required: descriptor.Optional, Type: descriptor.URI,
		Pipeline: transform.Pipeline{Prepend: "http://d-nb.info/gnd/"},
	}
	triples, discard, _, err := EvaluateNode(n, rec(map[string]any{"author_gnd": "118514768"}), "42")
	require.NoError(t, err)
	assert.False(t, discard)
	require.Len(t, triples, 1)
	assert.Equal(t, record.Triple{
		Subject: "42", Predicate: "P:creator",
		Object: record.Object{Value: "http://d-nb.info/gnd/118514768", IsIRI: true},
	}, triples[0])
}

// S4: joined_map pairs author2 with author2_role through a mapping.
func TestEvaluateNodeJoinedMap(t *testing.T) {
	jm := &transform.Mapping{Entries: []transform.MappingEntry{
		{Key: "fmd", Value: "P:film"},
		{Key: "act", Value: "P:acts"},
	}, Settings: transform.MappingSettings{CaseSensitive: true}}

	n := &descriptor.Node{
		Source: record.SourceFlat, Field: "author2", Predicate: "P:contributor",
		Required: descriptor.Optional, Type: descriptor.Literal,
		JoinedField: "author2_role", JoinedMap: jm,
	}
	r := rec(map[string]any{
		"author2":      []any{"W", "O"},
		"author2_role": []any{"fmd", "act"},
	})
	triples, discard, warnings, err := EvaluateNode(n, r, "1")
	require.NoError(t, err)
	assert.False(t, discard)
	assert.Empty(t, warnings)
	require.Len(t, triples, 2)
	assert.Equal(t, "P:film", triples[0].Predicate)
	assert.Equal(t, "W", triples[0].Object.Value)
	assert.Equal(t, "P:acts", triples[1].Predicate)
	assert.Equal(t, "O", triples[1].Object.Value)
}

// Join length law (property 6): mismatched lengths evaluate empty.
func TestEvaluateNodeJoinedMapLengthMismatch(t *testing.T) {
	n := &descriptor.Node{
		Source: record.SourceFlat, Field: "author2", Predicate: "P:contributor",
		JoinedField: "author2_role",
		JoinedMap:   &transform.Mapping{},
	}
	r := rec(map[string]any{
		"author2":      []any{"W", "O"},
		"author2_role": []any{"fmd"},
	})
	triples, discard, warnings, err := EvaluateNode(n, r, "1")
	require.NoError(t, err)
	assert.False(t, discard)
	assert.Empty(t, triples)
	require.Len(t, warnings, 1)
}

// S6: a mandatory node with nothing to extract discards the record.
func TestEvaluateNodeMandatoryDiscard(t *testing.T) {
	n := &descriptor.Node{
		Source: record.SourceFlat, Field: "missing", Predicate: "P:x",
		Required: descriptor.Mandatory,
	}
	triples, discard, _, err := EvaluateNode(n, rec(map[string]any{"id": "1"}), "1")
	require.NoError(t, err)
	assert.True(t, discard)
	assert.Empty(t, triples)
}

// Fallback exhaustiveness (property 4): primary, alternative, and
// fallback all empty still discards a mandatory node.
func TestEvaluateNodeFallbackExhaustion(t *testing.T) {
	n := &descriptor.Node{
		Source: record.SourceFlat, Field: "missing", Predicate: "P:x",
		Required:     descriptor.Mandatory,
		Alternatives: []string{"also_missing"},
		Fallback: &descriptor.Node{
			Source: record.SourceFlat, Field: "still_missing", Predicate: "P:x",
			Required: descriptor.Mandatory,
		},
	}
	_, discard, _, err := EvaluateNode(n, rec(map[string]any{"id": "1"}), "1")
	require.NoError(t, err)
	assert.True(t, discard)
}

// S7: a static object with append_uuid_object_fields, then a sub-node
// whose subject is that same URI (property 9: sub-node subject law).
func TestEvaluateNodeSubNodesWithUUID(t *testing.T) {
	static := "/Geo/"
	parent := &descriptor.Node{
		Source: record.SourceFlat, Field: "inst", Predicate: "P:dep",
		Type: descriptor.Literal,
		Pipeline: transform.Pipeline{
			InsertInto:      "/org/{}/dep/zw{}",
			InsertAddFields: []transform.FieldRef{{Field: "lib"}},
		},
	}
	geo := &descriptor.Node{
		Source: record.SourceFlat, Field: "inst", Predicate: "P:location",
		Type:                   descriptor.URI,
		AppendUUIDObjectFields: []string{"lat", "lon"},
		Pipeline:               transform.Pipeline{StaticField: &static},
		SubNodes: []*descriptor.Node{
			{
				Source: record.SourceFlat, Field: "lat", Predicate: "P:latitude",
				Type: descriptor.Literal,
			},
		},
	}
	parent.SubNodes = []*descriptor.Node{geo}

	r := rec(map[string]any{
		"inst": "DE-15", "lib": "01", "lat": "51.33", "lon": "12.37",
	})
	triples, discard, _, err := EvaluateNode(parent, r, "1")
	require.NoError(t, err)
	assert.False(t, discard)
	require.Len(t, triples, 3)

	wantUUID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("51.3312.37")).String()
	assert.Equal(t, "/org/DE-15/dep/zw01", triples[0].Object.Value)
	assert.Equal(t, "P:location", triples[1].Predicate)
	assert.Equal(t, "/Geo/"+wantUUID, triples[1].Object.Value)
	assert.Equal(t, "/Geo/"+wantUUID, triples[2].Subject)
	assert.Equal(t, "51.33", triples[2].Object.Value)
}

// A mandatory sub_node's discard propagates up through every enclosing
// node, not just its immediate parent: the mandatory invariant binds
// at every recursion depth (spec.md §4.4/§7).
func TestEvaluateNodeMandatorySubNodeDiscardPropagates(t *testing.T) {
	n := &descriptor.Node{
		Source: record.SourceFlat, Field: "inst", Predicate: "P:dep",
		Type: descriptor.Literal,
		SubNodes: []*descriptor.Node{
			{
				Source: record.SourceFlat, Field: "missing", Predicate: "P:x",
				Required: descriptor.Mandatory,
			},
		},
	}
	triples, discard, _, err := EvaluateNode(n, rec(map[string]any{"inst": "DE-15"}), "1")
	require.NoError(t, err)
	assert.True(t, discard)
	assert.Empty(t, triples)
}

// Same propagation through the joined_map evaluation path.
func TestEvaluateJoinedMandatorySubNodeDiscardPropagates(t *testing.T) {
	n := &descriptor.Node{
		Source: record.SourceFlat, Field: "author2", Predicate: "P:contributor",
		JoinedField: "author2_role",
		JoinedMap:   &transform.Mapping{},
		SubNodes: []*descriptor.Node{
			{
				Source: record.SourceFlat, Field: "missing", Predicate: "P:x",
				Required: descriptor.Mandatory,
			},
		},
	}
	r := rec(map[string]any{
		"author2":      []any{"W"},
		"author2_role": []any{"fmd"},
	})
	triples, discard, _, err := EvaluateNode(n, r, "1")
	require.NoError(t, err)
	assert.True(t, discard)
	assert.Empty(t, triples)
}

func TestEvaluateHeadSingleValue(t *testing.T) {
	head := &descriptor.Head{Source: record.SourceFlat, Field: "id"}
	subject, ok, _, err := EvaluateHead(head, rec(map[string]any{"id": "42"}))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", subject)
}

func TestEvaluateHeadDiscardsOnEmpty(t *testing.T) {
	head := &descriptor.Head{Source: record.SourceFlat, Field: "id"}
	_, ok, _, err := EvaluateHead(head, rec(map[string]any{}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateHeadRejectsMultipleValues(t *testing.T) {
	head := &descriptor.Head{Source: record.SourceFlat, Field: "id"}
	_, _, _, err := EvaluateHead(head, rec(map[string]any{"id": []any{"1", "2"}}))
	assert.ErrorIs(t, err, ErrMultipleHeadValues)
}

// A node without a condition guard always runs.
func TestEvaluateNodeRunsWithoutCondition(t *testing.T) {
	n := &descriptor.Node{
		Source: record.SourceFlat, Field: "title", Predicate: "P:title",
	}
	n.Condition = nil // explicit: absence of a condition always runs
	triples, discard, _, err := EvaluateNode(n, rec(map[string]any{"title": "Faust"}), "42")
	require.NoError(t, err)
	assert.False(t, discard)
	require.Len(t, triples, 1)
	assert.Equal(t, "Faust", triples[0].Object.Value)
}
