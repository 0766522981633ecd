package descriptor

import "github.com/invopop/jsonschema"

// JSONSchema reflects DescriptorDoc into the normative companion schema
// document spec.md §6 calls for: authors and editors validate SDF
// documents against this before Load ever sees them.
func JSONSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	return r.Reflect(&DescriptorDoc{})
}
