package descriptor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ubleipzig/spcht-go/pkg/condition"
	"github.com/ubleipzig/spcht-go/pkg/record"
	"github.com/ubleipzig/spcht-go/pkg/transform"
)

// LoadError is returned when a descriptor document fails any fatal
// validation (spec.md §7: "LoadError surfaces to the loader caller").
type LoadError struct {
	Path   string
	Result ValidationResult
}

func (e *LoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "descriptor: %s failed validation:", e.Path)
	for _, ve := range e.Result.Errors {
		fmt.Fprintf(&b, "\n  %s", ve.String())
	}
	return b.String()
}

// Load reads, validates, and compiles a descriptor document at path.
// Encoding (JSON or YAML) is chosen by file extension. $ref and
// joined_map_ref targets are resolved relative to path's directory
// (spec.md §4.5, §6).
func Load(path string) (*Compiled, []ValidationError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("descriptor: reading %s: %w", path, err)
	}

	var raw map[string]any
	var doc DescriptorDoc
	if err := decode(path, data, &raw); err != nil {
		return nil, nil, fmt.Errorf("descriptor: decoding %s: %w", path, err)
	}
	if err := decode(path, data, &doc); err != nil {
		return nil, nil, fmt.Errorf("descriptor: decoding %s: %w", path, err)
	}

	result := &ValidationResult{}
	validateStructTags(&doc, result)
	walkRawDescriptor(raw, result)
	if !result.Valid() {
		return nil, result.Warnings, &LoadError{Path: path, Result: *result}
	}

	baseDir := filepath.Dir(path)

	head, err := buildHead(&doc, baseDir, result)
	if err != nil {
		result.addError("$", "%s", err.Error())
		return nil, result.Warnings, &LoadError{Path: path, Result: *result}
	}

	nodes := make([]*Node, 0, len(doc.Nodes))
	for i := range doc.Nodes {
		n, err := buildNode(fmt.Sprintf("$.nodes[%d]", i), &doc.Nodes[i], baseDir, result, false, "")
		if err != nil {
			result.addError(fmt.Sprintf("$.nodes[%d]", i), "%s", err.Error())
			continue
		}
		nodes = append(nodes, n)
	}
	if !result.Valid() {
		return nil, result.Warnings, &LoadError{Path: path, Result: *result}
	}

	return &Compiled{Head: *head, Nodes: nodes}, result.Warnings, nil
}

func decode(path string, data []byte, v any) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return json.Unmarshal(data, v)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	default:
		return fmt.Errorf("unrecognized descriptor extension %q (want .json, .yaml, or .yml)", ext)
	}
}

func buildHead(doc *DescriptorDoc, baseDir string, result *ValidationResult) (*Head, error) {
	source, err := parseSource(doc.IDSource)
	if err != nil {
		return nil, err
	}

	pipeline, err := buildPipeline("$", &doc.valueSlots, baseDir, result)
	if err != nil {
		return nil, err
	}

	var fallback *Node
	if doc.IDFallback != nil {
		fallback, err = buildNode("$.id_fallback", doc.IDFallback, baseDir, result, true, "")
		if err != nil {
			return nil, err
		}
	}

	cond, err := buildCondition("$", &doc.valueSlots)
	if err != nil {
		return nil, err
	}

	return &Head{
		Source:       source,
		Field:        doc.IDField,
		Alternatives: doc.IDAlternatives,
		Fallback:     fallback,
		Pipeline:     *pipeline,
		Condition:    cond,
	}, nil
}

// buildNode compiles one node. isFallback marks a node reached via a
// fallback slot: it may omit predicate and inherits the invoking
// node's predicate when it does (spec.md §3). inheritedPredicate is
// ignored unless isFallback is true.
func buildNode(path string, n *NodeDoc, baseDir string, result *ValidationResult, isFallback bool, inheritedPredicate string) (*Node, error) {
	source, err := parseSource(n.Source)
	if err != nil {
		return nil, err
	}

	predicate := n.Predicate
	if predicate == "" {
		if isFallback {
			predicate = inheritedPredicate
		} else {
			result.addError(path, "predicate is required")
		}
	}

	required := Optional
	if n.Required != "" {
		required = Required(n.Required)
	}
	if isFallback {
		// Fallback nodes ignore required entirely (spec.md §4.4 step 3).
		required = Optional
	}
	typ := Literal
	if n.Type != "" {
		typ = ObjectKind(n.Type)
	}
	if typ == URI && n.Tag != "" {
		result.addError(path, "type=uri node %q forbids a tag on its literal", n.Field)
	}

	pipeline, err := buildPipeline(path, &n.valueSlots, baseDir, result)
	if err != nil {
		return nil, err
	}

	var fallback *Node
	if n.Fallback != nil {
		fallback, err = buildNode(path+".fallback", n.Fallback, baseDir, result, true, predicate)
		if err != nil {
			return nil, err
		}
	}

	var joinedMap *transform.Mapping
	if n.JoinedField != "" {
		joinedMap, err = buildMapping(n.JoinedMap, nil, baseDir)
		if err != nil {
			return nil, fmt.Errorf("%s: joined_map: %w", path, err)
		}
		if n.JoinedMapRef != "" {
			ref, err := loadRefFile(baseDir, n.JoinedMapRef)
			if err != nil {
				return nil, fmt.Errorf("%s: joined_map_ref: %w", path, err)
			}
			joinedMap.MergeRef(ref)
		}
	}

	cond, err := buildCondition(path, &n.valueSlots)
	if err != nil {
		return nil, err
	}

	subNodes, err := buildSubNodes(path, n.SubNodes, baseDir, result)
	if err != nil {
		return nil, err
	}

	return &Node{
		Source:                    source,
		Field:                     n.Field,
		Predicate:                 predicate,
		Required:                  required,
		Type:                      typ,
		Tag:                       n.Tag,
		Alternatives:              n.Alternatives,
		Fallback:                  fallback,
		Pipeline:                  *pipeline,
		JoinedField:               n.JoinedField,
		JoinedMap:                 joinedMap,
		Condition:                 cond,
		AppendUUIDPredicateFields: n.AppendUUIDPredicateFields,
		AppendUUIDObjectFields:    n.AppendUUIDObjectFields,
		SubNodes:                 subNodes,
	}, nil
}

func buildSubNodes(path string, docs []NodeDoc, baseDir string, result *ValidationResult) ([]*Node, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	out := make([]*Node, 0, len(docs))
	for i := range docs {
		sn, err := buildNode(fmt.Sprintf("%s.sub_nodes[%d]", path, i), &docs[i], baseDir, result, false, "")
		if err != nil {
			return nil, err
		}
		out = append(out, sn)
	}
	return out, nil
}

func parseSource(s string) (record.Source, error) {
	switch s {
	case "flat":
		return record.SourceFlat, nil
	case "marc":
		return record.SourceMarc, nil
	default:
		return "", fmt.Errorf("unrecognized source %q", s)
	}
}

// buildPipeline compiles a node (or head)'s shared value slots into a
// transform.Pipeline: regexes compiled once, mapping inlined including
// any $ref merge (spec.md §4.5, §9 "Regex pre-compilation").
func buildPipeline(path string, slots *valueSlots, baseDir string, result *ValidationResult) (*transform.Pipeline, error) {
	match, err := compileOptionalRegex(slots.Match)
	if err != nil {
		return nil, fmt.Errorf("%s.match: %w", path, err)
	}
	cut, err := compileOptionalRegex(slots.Cut)
	if err != nil {
		return nil, fmt.Errorf("%s.cut: %w", path, err)
	}

	var mapping *transform.Mapping
	if len(slots.Mapping) > 0 || slots.MappingSettings != nil {
		mapping, err = buildMapping(slots.Mapping, slots.MappingSettings, baseDir)
		if err != nil {
			return nil, fmt.Errorf("%s.mapping: %w", path, err)
		}
	}

	refs := make([]transform.FieldRef, 0, len(slots.InsertAddFields))
	for i, f := range slots.InsertAddFields {
		fm, err := compileOptionalRegex(f.Match)
		if err != nil {
			return nil, fmt.Errorf("%s.insert_add_fields[%d].match: %w", path, i, err)
		}
		fc, err := compileOptionalRegex(f.Cut)
		if err != nil {
			return nil, fmt.Errorf("%s.insert_add_fields[%d].cut: %w", path, i, err)
		}
		refs = append(refs, transform.FieldRef{
			Field: f.Field, Match: fm, Cut: fc, Replace: f.Replace,
			Prepend: f.Prepend, Append: f.Append,
		})
	}

	if slots.InsertInto != "" {
		want := 1 + len(slots.InsertAddFields)
		got := strings.Count(slots.InsertInto, "{}")
		if got != want {
			result.addWarning(path, "insert_into has %d placeholders but 1+len(insert_add_fields)=%d; template will produce no output", got, want)
		}
	}

	return &transform.Pipeline{
		Match: match, Mapping: mapping, Cut: cut, Replace: slots.Replace,
		Prepend: slots.Prepend, Append: slots.Append,
		InsertInto: slots.InsertInto, InsertAddFields: refs,
		StaticField: slots.StaticField,
	}, nil
}

func buildMapping(entries map[string]string, settingsDoc *MappingSettingsDoc, baseDir string) (*transform.Mapping, error) {
	m := &transform.Mapping{Settings: transform.MappingSettings{CaseSensitive: true}}

	keys := sortedKeys(entries)
	for _, k := range keys {
		m.Entries = append(m.Entries, transform.MappingEntry{Key: k, Value: entries[k]})
	}

	if settingsDoc != nil {
		if settingsDoc.CaseSensitive != nil {
			m.Settings.CaseSensitive = *settingsDoc.CaseSensitive
		}
		m.Settings.Inherit = settingsDoc.Inherit
		m.Settings.Regex = settingsDoc.Regex
		m.Settings.Default = settingsDoc.Default

		if settingsDoc.Ref != "" {
			ref, err := loadRefFile(baseDir, settingsDoc.Ref)
			if err != nil {
				return nil, err
			}
			m.MergeRef(ref)
		}
	}

	if err := m.Compile(); err != nil {
		return nil, err
	}
	return m, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// loadRefFile resolves a $ref/joined_map_ref path relative to the
// descriptor's directory and parses it as a flat string→string mapping
// (spec.md §6, "no remote URLs").
func loadRefFile(baseDir, ref string) (map[string]string, error) {
	full := filepath.Join(baseDir, ref)
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("resolving ref %q: %w", ref, err)
	}
	out := map[string]string{}
	if err := decode(full, data, &out); err != nil {
		return nil, fmt.Errorf("parsing ref %q: %w", ref, err)
	}
	return out, nil
}

func compileOptionalRegex(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

// buildCondition compiles the if_* guard slots into a *condition.Condition,
// or nil when the node carries no guard (spec.md §4.3).
func buildCondition(path string, slots *valueSlots) (*condition.Condition, error) {
	if slots.IfField == "" {
		return nil, nil
	}

	op, err := condition.ParseOperator(slots.IfCondition)
	if err != nil {
		return nil, fmt.Errorf("%s.if_condition: %w", path, err)
	}

	values, isList, err := decodeIfValue(slots.IfValue)
	if err != nil {
		return nil, fmt.Errorf("%s.if_value: %w", path, err)
	}
	if isList && op != condition.OpEqual && op != condition.OpUnequal {
		return nil, fmt.Errorf("%s.if_condition: operator %q is not valid against a list if_value", path, op)
	}

	match, err := compileOptionalRegex(slots.IfMatch)
	if err != nil {
		return nil, fmt.Errorf("%s.if_match: %w", path, err)
	}
	cut, err := compileOptionalRegex(slots.IfCut)
	if err != nil {
		return nil, fmt.Errorf("%s.if_cut: %w", path, err)
	}

	return &condition.Condition{
		Field: slots.IfField, Op: op, Value: values,
		Match: match, Cut: cut, Replace: slots.IfReplace,
		Prepend: slots.IfPrepend, Append: slots.IfAppend,
	}, nil
}

// decodeIfValue normalizes if_value (decoded from JSON/YAML as string,
// number, bool, or a list of those) into a []record.Scalar and reports
// whether the original document shape was a list.
func decodeIfValue(v any) ([]record.Scalar, bool, error) {
	switch t := v.(type) {
	case nil:
		return nil, false, nil
	case []any:
		out := make([]record.Scalar, 0, len(t))
		for _, e := range t {
			out = append(out, record.ScalarFromAny(e))
		}
		return out, true, nil
	default:
		return []record.Scalar{record.ScalarFromAny(t)}, false, nil
	}
}
