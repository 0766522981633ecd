package engine

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubleipzig/spcht-go/pkg/descriptor"
	"github.com/ubleipzig/spcht-go/pkg/record"
	"github.com/ubleipzig/spcht-go/pkg/transform"
)

func s1Descriptor() *descriptor.Compiled {
	return &descriptor.Compiled{
		Head: descriptor.Head{Source: record.SourceFlat, Field: "id"},
		Nodes: []*descriptor.Node{
			{Source: record.SourceFlat, Field: "title", Predicate: "P:title", Type: descriptor.Literal},
		},
	}
}

// S1: one flat field maps to one literal triple.
func TestEvaluateSimpleLiteral(t *testing.T) {
	e := New(nil)
	rec := record.New(map[string]any{"id": "42", "title": "Faust"}, "")
	result, err := e.Evaluate(context.Background(), s1Descriptor(), rec, "<")
	require.NoError(t, err)
	assert.Equal(t, Ok, result.Status)
	require.Len(t, result.Triples, 1)
	assert.Equal(t, record.Triple{
		Subject: "<42", Predicate: "P:title",
		Object: record.Object{Value: "Faust"},
	}, result.Triples[0])
}

// S6: a mandatory node with nothing to extract discards the whole record.
func TestEvaluateMandatoryDiscard(t *testing.T) {
	compiled := &descriptor.Compiled{
		Head: descriptor.Head{Source: record.SourceFlat, Field: "id"},
		Nodes: []*descriptor.Node{
			{Source: record.SourceFlat, Field: "missing", Predicate: "P:x", Required: descriptor.Mandatory},
		},
	}
	e := New(nil)
	rec := record.New(map[string]any{"id": "1"}, "")
	result, err := e.Evaluate(context.Background(), compiled, rec, "")
	require.NoError(t, err)
	assert.Equal(t, Discarded, result.Status)
	assert.Empty(t, result.Triples)
	require.NotNil(t, result.Discard)
	assert.Equal(t, "missing", result.Discard.NodeField)
}

func TestEvaluateHeadDiscardSkipsBodyNodes(t *testing.T) {
	compiled := &descriptor.Compiled{
		Head: descriptor.Head{Source: record.SourceFlat, Field: "id"},
		Nodes: []*descriptor.Node{
			{Source: record.SourceFlat, Field: "title", Predicate: "P:title"},
		},
	}
	e := New(nil)
	rec := record.New(map[string]any{"title": "Faust"}, "")
	result, err := e.Evaluate(context.Background(), compiled, rec, "")
	require.NoError(t, err)
	assert.Equal(t, Discarded, result.Status)
	assert.Empty(t, result.Triples)
}

// Property 1 (determinism) and property 2 (purity): two evaluations of
// the same compiled descriptor and record produce identical output and
// never mutate the input record.
func TestEvaluateIsDeterministicAndPure(t *testing.T) {
	compiled := &descriptor.Compiled{
		Head: descriptor.Head{Source: record.SourceFlat, Field: "id"},
		Nodes: []*descriptor.Node{
			{
				Source: record.SourceFlat, Field: "ctrlnum", Predicate: "P:ctrl",
				Pipeline: transform.Pipeline{Cut: regexp.MustCompile(`^\([^)]*\)`)},
			},
		},
	}
	flat := map[string]any{
		"id": "42",
		"ctrlnum": []any{
			"(DE-627)657059196",
			"(DE-576)9657059194",
			"(DE-599)GBV657059196",
		},
	}
	before := map[string]any{}
	for k, v := range flat {
		before[k] = v
	}

	e := New(nil)
	rec1 := record.New(flat, "")
	r1, err := e.Evaluate(context.Background(), compiled, rec1, "<")
	require.NoError(t, err)

	rec2 := record.New(flat, "")
	r2, err := e.Evaluate(context.Background(), compiled, rec2, "<")
	require.NoError(t, err)

	assert.Equal(t, r1.Triples, r2.Triples)
	require.Len(t, r1.Triples, 3)
	assert.Equal(t, "657059196", r1.Triples[0].Object.Value)
	assert.Equal(t, "9657059194", r1.Triples[1].Object.Value)
	assert.Equal(t, "GBV657059196", r1.Triples[2].Object.Value)

	assert.Equal(t, before, flat, "evaluation must not mutate the input record")
}
