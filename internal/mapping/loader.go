package mapping

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"authsentinel/pkg/domainerrors"
)

// fileFormat is the on-disk shape of config/field_mappings.yaml.
type fileFormat struct {
	Profiles map[string]*Profile `yaml:"profiles"`
}

// Load reads and validates a field-mapping profile file (spec §4.1). A
// missing _default profile, or a required field with an empty alias list in
// any profile, is a config_invalid error — the caller (main) treats this as
// fatal.
func Load(path string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInvalid, "read mapping file")
	}

	var doc fileFormat
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInvalid, "parse mapping file")
	}

	byName := make(map[string]*Profile, len(doc.Profiles))
	for name, prof := range doc.Profiles {
		prof.Name = name
		byName[name] = prof
	}
	profiles := New(byName)

	if err := profiles.validate(); err != nil {
		return nil, err
	}
	return profiles, nil
}

// validate enforces spec §4.1: a _default profile must exist, and every
// profile must declare a non-empty alias list for each required field.
func (p *Profiles) validate() error {
	if _, ok := p.byName[DefaultProfileName]; !ok {
		return domainerrors.New(domainerrors.CodeInvalid, "mapping: missing required \"_default\" profile")
	}

	var problems []string
	for name, prof := range p.byName {
		for _, field := range requiredFields {
			if len(prof.Fields[field]) == 0 {
				problems = append(problems, fmt.Sprintf("profile %q: empty alias list for required field %q", name, field))
			}
		}
	}
	if len(problems) > 0 {
		return domainerrors.New(domainerrors.CodeInvalid, "mapping: "+strings.Join(problems, "; "))
	}
	return nil
}
