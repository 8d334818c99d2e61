// Package mapping loads and resolves the per-source field-alias profiles
// the normalizer uses to project raw events into the canonical schema.
package mapping

import "authsentinel/internal/rawevent"

// requiredFields are the canonical fields every profile must declare a
// non-empty alias list for.
var requiredFields = []string{"timestamp", "event_type", "result"}

// DefaultProfileName is the fallback profile used when no source-specific
// profile matches (spec §4.1).
const DefaultProfileName = "_default"

// Profile is one source's field-alias configuration.
type Profile struct {
	Name string

	// Fields maps a canonical field name to its ordered alias list. Each
	// alias is a dot-path resolved against the raw event (e.g.
	// "winlog.event_data.TargetUserName").
	Fields map[string][]string `yaml:"fields"`

	// RejectEventTypes is a profile-declared telemetry blacklist, merged
	// with the global one at resolution time.
	RejectEventTypes []string `yaml:"reject_event_types"`

	// ResultMap translates raw outcome strings to the canonical
	// success|failure|other enumeration.
	ResultMap map[string]string `yaml:"result_map"`
}

// Profiles is the full loaded set, keyed by source identifier.
type Profiles struct {
	byName map[string]*Profile
}

// New builds a Profiles set directly from an in-memory map, bypassing the
// YAML loader. Used by Load and by callers (tests) that construct profiles
// programmatically.
func New(byName map[string]*Profile) *Profiles {
	return &Profiles{byName: byName}
}

// Resolve returns the profile for source, falling back to _default.
func (p *Profiles) Resolve(source string) *Profile {
	if source != "" {
		if prof, ok := p.byName[source]; ok {
			return prof
		}
	}
	return p.byName[DefaultProfileName]
}

// Resolution is the outcome of resolving one canonical field against a raw
// event: the resolved textual value, or Found=false when no alias resolved.
type Resolution struct {
	Value string
	Found bool
}

// ResolveField walks field's ordered alias list against event, returning the
// first alias present (spec §4.1 resolution semantics).
func (p *Profile) ResolveField(event rawevent.Value, field string) Resolution {
	for _, alias := range p.Fields[field] {
		v, ok := event.Lookup(alias)
		if !ok || v.IsNull() {
			continue
		}
		if s, ok := v.String(); ok {
			return Resolution{Value: s, Found: true}
		}
	}
	return Resolution{}
}

// TranslateResult maps a raw outcome string to the canonical enumeration
// (spec §4.2 step 4): success|failure pass through, everything else (absent
// from result_map, or explicitly mapped to something else) becomes "other".
func (p *Profile) TranslateResult(raw string) string {
	if mapped, ok := p.ResultMap[raw]; ok {
		switch mapped {
		case "success", "failure":
			return mapped
		default:
			return "other"
		}
	}
	switch raw {
	case "success", "failure":
		return raw
	default:
		return "other"
	}
}
