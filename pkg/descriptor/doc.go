// Package descriptor loads, validates, and compiles a Spcht descriptor
// document (SDF) into an immutable tree the node and engine packages
// can evaluate against records (spec.md §4.5).
package descriptor

// FieldRefDoc is the raw decode shape of a field ref used inside
// insert_add_fields: a field path plus its own match/cut/replace/
// prepend/append (spec.md §3).
type FieldRefDoc struct {
	Field   string `json:"field" yaml:"field" validate:"required"`
	Match   string `json:"match,omitempty" yaml:"match,omitempty"`
	Cut     string `json:"cut,omitempty" yaml:"cut,omitempty"`
	Replace string `json:"replace,omitempty" yaml:"replace,omitempty"`
	Prepend string `json:"prepend,omitempty" yaml:"prepend,omitempty"`
	Append  string `json:"append,omitempty" yaml:"append,omitempty"`
}

// MappingSettingsDoc is the raw decode shape of a node's
// mapping_settings table (spec.md §4.2).
type MappingSettingsDoc struct {
	CaseSensitive *bool   `json:"$casesens,omitempty" yaml:"$casesens,omitempty"`
	Inherit       bool    `json:"$inherit,omitempty" yaml:"$inherit,omitempty"`
	Regex         bool    `json:"$regex,omitempty" yaml:"$regex,omitempty"`
	Default       *string `json:"$default,omitempty" yaml:"$default,omitempty"`
	Ref           string  `json:"$ref,omitempty" yaml:"$ref,omitempty"`
}

// valueSlots holds every value-transformation and guard slot shared
// between a body node and the head node (spec.md §3, §6: "per-head
// variants of all node slots" reuse the same key names; only the
// subject-identity slots below are id_-prefixed).
type valueSlots struct {
	Match      string `json:"match,omitempty" yaml:"match,omitempty"`
	Cut        string `json:"cut,omitempty" yaml:"cut,omitempty"`
	Replace    string `json:"replace,omitempty" yaml:"replace,omitempty"`
	Prepend    string `json:"prepend,omitempty" yaml:"prepend,omitempty"`
	Append     string `json:"append,omitempty" yaml:"append,omitempty"`

	InsertInto      string        `json:"insert_into,omitempty" yaml:"insert_into,omitempty"`
	InsertAddFields []FieldRefDoc `json:"insert_add_fields,omitempty" yaml:"insert_add_fields,omitempty" validate:"omitempty,dive"`

	StaticField *string `json:"static_field,omitempty" yaml:"static_field,omitempty"`

	Mapping         map[string]string    `json:"mapping,omitempty" yaml:"mapping,omitempty"`
	MappingSettings *MappingSettingsDoc   `json:"mapping_settings,omitempty" yaml:"mapping_settings,omitempty"`

	JoinedField   string            `json:"joined_field,omitempty" yaml:"joined_field,omitempty"`
	JoinedMap     map[string]string `json:"joined_map,omitempty" yaml:"joined_map,omitempty"`
	JoinedMapRef  string            `json:"joined_map_ref,omitempty" yaml:"joined_map_ref,omitempty"`

	IfField     string `json:"if_field,omitempty" yaml:"if_field,omitempty"`
	IfCondition string `json:"if_condition,omitempty" yaml:"if_condition,omitempty"`
	IfValue     any    `json:"if_value,omitempty" yaml:"if_value,omitempty"`
	IfMatch     string `json:"if_match,omitempty" yaml:"if_match,omitempty"`
	IfCut       string `json:"if_cut,omitempty" yaml:"if_cut,omitempty"`
	IfReplace   string `json:"if_replace,omitempty" yaml:"if_replace,omitempty"`
	IfPrepend   string `json:"if_prepend,omitempty" yaml:"if_prepend,omitempty"`
	IfAppend    string `json:"if_append,omitempty" yaml:"if_append,omitempty"`

	AppendUUIDPredicateFields []string `json:"append_uuid_predicate_fields,omitempty" yaml:"append_uuid_predicate_fields,omitempty"`
	AppendUUIDObjectFields    []string `json:"append_uuid_object_fields,omitempty" yaml:"append_uuid_object_fields,omitempty"`

	SubNodes []NodeDoc `json:"sub_nodes,omitempty" yaml:"sub_nodes,omitempty"`
}

// NodeDoc is the raw decode shape of one body node (spec.md §3). It is
// the unit both JSON and YAML descriptor documents decode into before
// validation and compilation.
type NodeDoc struct {
	Source   string `json:"source" yaml:"source" validate:"required,oneof=flat marc"`
	Field    string `json:"field" yaml:"field" validate:"required"`
	// Predicate is required on body and sub_nodes; a fallback node may
	// leave it blank to inherit its parent's predicate (spec.md §3,
	// "fallback ... inheriting predicate unless redefined").
	Predicate string `json:"predicate" yaml:"predicate"`
	Required string `json:"required,omitempty" yaml:"required,omitempty" validate:"omitempty,oneof=mandatory optional"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty" validate:"omitempty,oneof=literal uri"`
	Tag      string `json:"tag,omitempty" yaml:"tag,omitempty"`

	Alternatives []string `json:"alternatives,omitempty" yaml:"alternatives,omitempty"`
	Fallback     *NodeDoc `json:"fallback,omitempty" yaml:"fallback,omitempty"`

	valueSlots `yaml:",inline"`
}

// DescriptorDoc is the raw decode shape of an entire descriptor
// document: the head node's identity slots (id_-prefixed, spec.md §6)
// plus its shared value slots, and the ordered list of body nodes.
type DescriptorDoc struct {
	IDSource       string   `json:"id_source" yaml:"id_source" validate:"required,oneof=flat marc"`
	IDField        string   `json:"id_field" yaml:"id_field" validate:"required"`
	IDFallback     *NodeDoc `json:"id_fallback,omitempty" yaml:"id_fallback,omitempty"`
	IDAlternatives []string `json:"id_alternatives,omitempty" yaml:"id_alternatives,omitempty"`

	valueSlots `yaml:",inline"`

	Nodes []NodeDoc `json:"nodes" yaml:"nodes" validate:"required,min=1,dive"`
}
