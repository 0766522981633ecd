// Package engine implements the Engine Driver: given one compiled
// descriptor and one record, derive the subject and evaluate every
// body node into the record's triple set (spec.md §4.6).
package engine

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ubleipzig/spcht-go/pkg/descriptor"
	"github.com/ubleipzig/spcht-go/pkg/node"
	"github.com/ubleipzig/spcht-go/pkg/record"
)

var tracer = otel.Tracer("github.com/ubleipzig/spcht-go/pkg/engine")

// Status classifies the outcome of evaluating one record (spec.md §4.6).
type Status int

const (
	Ok Status = iota
	Discarded
)

// DiscardReason names the node whose emptiness forced a discard.
type DiscardReason struct {
	NodeField string
}

func (r DiscardReason) Error() string {
	return fmt.Sprintf("mandatory node on field %q produced no value", r.NodeField)
}

// Result is one record's evaluation outcome.
type Result struct {
	Status   Status
	Triples  []record.Triple
	Discard  *DiscardReason
	Warnings []node.Warning
}

// Engine evaluates compiled descriptors against records. It holds no
// per-record state: every field is either immutable configuration or
// request-scoped, so an Engine is safe to share across goroutines
// (spec.md §5).
type Engine struct {
	logger ectologger.Logger
}

// New creates an Engine. logger may be nil, in which case evaluation
// proceeds unlogged.
func New(logger ectologger.Logger) *Engine {
	return &Engine{logger: logger}
}

// Evaluate runs the full engine driver algorithm: derive the subject
// from the compiled head, then accumulate every body node's triples
// against it (spec.md §4.6). subjectPrefix is prepended to the head's
// raw extracted identifier to form the record's subject IRI.
func (e *Engine) Evaluate(ctx context.Context, compiled *descriptor.Compiled, rec *record.Record, subjectPrefix string) (Result, error) {
	ctx, span := tracer.Start(ctx, "engine.Evaluate")
	defer span.End()

	log := e.log(ctx)

	rawSubject, ok, headWarnings, err := node.EvaluateHead(&compiled.Head, rec)
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}
	if !ok {
		if log != nil {
			log.WithFields(map[string]any{"field": compiled.Head.Field}).Debug("record discarded: head node produced no value")
		}
		return Result{
			Status:   Discarded,
			Discard:  &DiscardReason{NodeField: compiled.Head.Field},
			Warnings: headWarnings,
		}, nil
	}

	subject := subjectPrefix + rawSubject
	span.SetAttributes(attribute.String("spcht.subject", subject))

	var triples []record.Triple
	var warnings []node.Warning
	warnings = append(warnings, headWarnings...)

	for _, n := range compiled.Nodes {
		nodeTriples, discard, nodeWarnings, err := node.EvaluateNode(n, rec, subject)
		if err != nil {
			span.RecordError(err)
			return Result{}, err
		}
		warnings = append(warnings, nodeWarnings...)

		if discard {
			if log != nil {
				log.WithFields(map[string]any{"field": n.Field, "predicate": n.Predicate}).Debug("record discarded: mandatory node produced no value")
			}
			return Result{
				Status:   Discarded,
				Discard:  &DiscardReason{NodeField: n.Field},
				Warnings: warnings,
			}, nil
		}

		triples = append(triples, nodeTriples...)
	}

	span.SetAttributes(attribute.Int("spcht.triples", len(triples)))
	if log != nil {
		log.WithFields(map[string]any{"subject": subject, "triples": len(triples)}).Debug("record evaluated")
	}

	return Result{Status: Ok, Triples: triples, Warnings: warnings}, nil
}

func (e *Engine) log(ctx context.Context) ectologger.Logger {
	if e.logger == nil {
		return nil
	}
	return e.logger.WithContext(ctx)
}

// IsDiscarded reports whether result's Status represents a
// RecordDiscarded outcome rather than an Ok one.
func IsDiscarded(result Result) bool {
	return result.Status == Discarded
}
