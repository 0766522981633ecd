package transform

import (
	"regexp"
	"sort"
	"strings"
)

// MappingSettings controls lookup behavior for a Mapping (spec.md §4.2).
// Zero value matches the spec's defaults except CaseSensitive, which
// defaults to true and must be set explicitly by callers that decode a
// descriptor (absence of $casesens means case-sensitive).
type MappingSettings struct {
	CaseSensitive bool
	Inherit       bool
	Regex         bool
	Default       *string
}

// MappingEntry is one key/value pair of a Mapping. Entry order matters
// because regex-mode lookup takes the first matching entry. The
// descriptor loader appends a node's own entries in sorted key order,
// then any $ref entries, also in sorted key order; the order in which
// keys appear in the document is not kept.
type MappingEntry struct {
	Key   string
	Value string

	keyRegex *regexp.Regexp
}

// Mapping is a compiled key→value table together with its lookup
// settings. Used both for a node's own mapping and for joined_map.
type Mapping struct {
	Entries  []MappingEntry
	Settings MappingSettings
}

// Compile precompiles regex keys when Settings.Regex is set. Call once
// at descriptor load time; Lookup assumes Entries are already compiled.
func (m *Mapping) Compile() error {
	if !m.Settings.Regex {
		return nil
	}
	for i, e := range m.Entries {
		re, err := regexp.Compile(e.Key)
		if err != nil {
			return err
		}
		m.Entries[i].keyRegex = re
	}
	return nil
}

// Lookup returns the mapped value for a single string, and whether any
// entry matched. Exported for joined_map, which looks up each paired
// value individually rather than through Apply's whole-list default
// law (spec.md §4.2, "joined_map").
func (m *Mapping) Lookup(value string) (string, bool) {
	return m.lookup(value)
}

// lookup returns the mapped value for a single string, and whether any
// entry matched.
func (m *Mapping) lookup(value string) (string, bool) {
	if m.Settings.Regex {
		for _, e := range m.Entries {
			if e.keyRegex != nil && e.keyRegex.MatchString(value) {
				return e.Value, true
			}
		}
		return "", false
	}
	for _, e := range m.Entries {
		if m.Settings.CaseSensitive {
			if e.Key == value {
				return e.Value, true
			}
		} else if strings.EqualFold(e.Key, value) {
			return e.Value, true
		}
	}
	return "", false
}

// Apply maps a whole value list per spec.md §4.2 and the mapping
// default law (§8 property 5). The sibling-suppression rule scopes to
// $default only: when at least one value in the list matches, a
// non-inherited miss is dropped and $default plays no part; $default
// itself applies at most once, only when NO value in the list matches.
// $inherit is not suppressed by sibling hits: each missed value is
// emitted in place, regardless of whether other values in the same
// list matched.
func (m *Mapping) Apply(values []string) []string {
	out := make([]string, 0, len(values))
	hasHit := false
	pendingMiss := 0
	for _, v := range values {
		if mapped, ok := m.lookup(v); ok {
			out = append(out, mapped)
			hasHit = true
			continue
		}
		if m.Settings.Inherit {
			out = append(out, v)
			continue
		}
		pendingMiss++
	}
	if hasHit || pendingMiss == 0 {
		return out
	}
	if m.Settings.Default != nil {
		return []string{*m.Settings.Default}
	}
	return nil
}

// MergeRef inlines a $ref-resolved flat mapping (key→value strings)
// into m, loaded from a file at descriptor load time. Local entries
// that m already carries take precedence on key collision (spec.md
// §4.2, §9 "$ref merging").
func (m *Mapping) MergeRef(ref map[string]string) {
	existing := make(map[string]struct{}, len(m.Entries))
	for _, e := range m.Entries {
		existing[e.Key] = struct{}{}
	}
	keys := make([]string, 0, len(ref))
	for k := range ref {
		if _, ok := existing[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.Entries = append(m.Entries, MappingEntry{Key: k, Value: ref[k]})
	}
}
