package descriptor

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError is a single structural problem found while loading a
// descriptor document.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationResult accumulates every structural problem found in one
// pass rather than failing on the first (spec.md §4.5 lists a whole
// battery of fatal checks; authors benefit from seeing all of them at
// once, following the accumulate-then-report style of the schema
// package this is grounded on).
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

func (r *ValidationResult) addError(path, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) addWarning(path, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

var structValidator = validator.New()

// validateStructTags runs the go-playground/validator struct tags
// declared on DescriptorDoc/NodeDoc/FieldRefDoc (required fields,
// oneof enumerations) and folds any failures into result.
func validateStructTags(doc *DescriptorDoc, result *ValidationResult) {
	if err := structValidator.Struct(doc); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			result.addError("$", "%s", err.Error())
			return
		}
		for _, fe := range verrs {
			result.addError(fe.Namespace(), "failed %q validation", fe.Tag())
		}
	}
}

// recognizedMappingSettingsKeys lists the $-prefixed keys mapping_settings
// understands; anything else $-prefixed is a load-time warning, not a
// fatal error (spec.md §4.5).
var recognizedMappingSettingsKeys = map[string]struct{}{
	"$casesens": {}, "$inherit": {}, "$regex": {}, "$default": {}, "$ref": {},
}

// checkUnknownMappingSettingsKeys scans the raw decoded form of a
// mapping_settings table for keys outside the recognized set.
func checkUnknownMappingSettingsKeys(path string, raw map[string]any, result *ValidationResult) {
	for k := range raw {
		if !strings.HasPrefix(k, "$") {
			continue
		}
		if _, ok := recognizedMappingSettingsKeys[k]; !ok {
			result.addWarning(path, "unrecognized mapping_settings key %q", k)
		}
	}
}

// knownNodeKeys / knownHeadKeys enumerate every recognized document
// key at the node and descriptor-root level (spec.md §4.5: "keys not
// in known set and not prefixed comment are rejected").
var knownNodeKeys = buildKnownKeySet(
	"source", "field", "predicate", "required", "type", "tag",
	"alternatives", "fallback",
)

var knownHeadKeys = buildKnownKeySet(
	"id_source", "id_field", "id_fallback", "id_alternatives", "nodes",
)

var knownValueSlotKeys = []string{
	"match", "cut", "replace", "prepend", "append",
	"insert_into", "insert_add_fields", "static_field",
	"mapping", "mapping_settings",
	"joined_field", "joined_map", "joined_map_ref",
	"if_field", "if_condition", "if_value",
	"if_match", "if_cut", "if_replace", "if_prepend", "if_append",
	"append_uuid_predicate_fields", "append_uuid_object_fields",
	"sub_nodes",
}

func buildKnownKeySet(keys ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys)+len(knownValueSlotKeys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func init() {
	for _, k := range knownValueSlotKeys {
		knownNodeKeys[k] = struct{}{}
		knownHeadKeys[k] = struct{}{}
	}
}

var knownFieldRefKeys = map[string]struct{}{
	"field": {}, "match": {}, "cut": {}, "replace": {}, "prepend": {}, "append": {},
}

// checkUnknownKeys rejects any key in raw that is neither in known nor
// prefixed "comment" (spec.md §4.5).
func checkUnknownKeys(path string, raw map[string]any, known map[string]struct{}, result *ValidationResult) {
	for k := range raw {
		if strings.HasPrefix(k, "comment") {
			continue
		}
		if _, ok := known[k]; !ok {
			result.addError(path, "unrecognized key %q", k)
		}
	}
}

// walkRawDescriptor recursively scans the descriptor's raw decoded
// form (map[string]any, as produced by the JSON/YAML unmarshal into
// `any`) for unknown keys at every node, field-ref, and
// mapping_settings position.
func walkRawDescriptor(raw map[string]any, result *ValidationResult) {
	checkUnknownKeys("$", raw, knownHeadKeys, result)

	if ms, ok := raw["mapping_settings"].(map[string]any); ok {
		checkUnknownMappingSettingsKeys("$.mapping_settings", ms, result)
	}
	for i, ref := range rawSlice(raw["insert_add_fields"]) {
		if m, ok := ref.(map[string]any); ok {
			checkUnknownKeys(fmt.Sprintf("$.insert_add_fields[%d]", i), m, knownFieldRefKeys, result)
		}
	}
	if fb, ok := raw["id_fallback"].(map[string]any); ok {
		walkRawNode("$.id_fallback", fb, result)
	}
	for i, n := range rawSlice(raw["nodes"]) {
		if m, ok := n.(map[string]any); ok {
			walkRawNode(fmt.Sprintf("$.nodes[%d]", i), m, result)
		}
	}
}

func walkRawNode(path string, raw map[string]any, result *ValidationResult) {
	checkUnknownKeys(path, raw, knownNodeKeys, result)

	if ms, ok := raw["mapping_settings"].(map[string]any); ok {
		checkUnknownMappingSettingsKeys(path+".mapping_settings", ms, result)
	}
	for i, ref := range rawSlice(raw["insert_add_fields"]) {
		if m, ok := ref.(map[string]any); ok {
			checkUnknownKeys(fmt.Sprintf("%s.insert_add_fields[%d]", path, i), m, knownFieldRefKeys, result)
		}
	}
	if fb, ok := raw["fallback"].(map[string]any); ok {
		walkRawNode(path+".fallback", fb, result)
	}
	for i, sn := range rawSlice(raw["sub_nodes"]) {
		if m, ok := sn.(map[string]any); ok {
			walkRawNode(fmt.Sprintf("%s.sub_nodes[%d]", path, i), m, result)
		}
	}
}

func rawSlice(v any) []any {
	s, _ := v.([]any)
	return s
}
