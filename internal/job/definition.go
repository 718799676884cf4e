package job

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"jobgraph/internal/services"
)

// Definition is the operator-authored description of a job template, read
// from a TOML file and registered once against the remote store.
type Definition struct {
	Name        string               `toml:"name"`
	Description string               `toml:"description"`
	EntryPoint  EntryPointDefinition `toml:"entry_point"`
	Properties  []PropertyDefinition `toml:"property"`
	Values      []ValueDefinition    `toml:"value"`
}

// EntryPointDefinition describes the invocation point of a job.
type EntryPointDefinition struct {
	Name           string `toml:"name"`
	Description    string `toml:"description"`
	ActionPlatform string `toml:"action_platform"`
	ContentType    string `toml:"content_type"`
	EncodingType   string `toml:"encoding_type"`
	FormatIn       string `toml:"format_in"`
	FormatOut      string `toml:"format_out"`
}

// PropertyDefinition describes a node-reference input slot.
type PropertyDefinition struct {
	Name         string   `toml:"name"`
	Description  string   `toml:"description"`
	AllowedTypes []string `toml:"allowed_types"`
	Optional     bool     `toml:"optional"`
}

// ValueDefinition describes a literal input slot.
type ValueDefinition struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Type        string `toml:"type"`
	Optional    bool   `toml:"optional"`
	MinLength   *int   `toml:"min_length"`
	MaxLength   *int   `toml:"max_length"`
	Pattern     string `toml:"pattern"`
	Default     string `toml:"default"`
}

// LoadDefinition reads and validates a job definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job definition %q: %w", path, err)
	}
	return ParseDefinition(data)
}

// ParseDefinition decodes and validates a job definition document.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := toml.Unmarshal(data, &def); err != nil {
		return nil, services.Wrap(services.ErrValidation, "job", "parse definition", "invalid TOML", err)
	}
	def.normalize()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

func (d *Definition) normalize() {
	d.Name = strings.TrimSpace(d.Name)
	if d.EntryPoint.Name == "" {
		d.EntryPoint.Name = d.Name
	}
	if d.EntryPoint.Description == "" {
		d.EntryPoint.Description = d.Description
	}
	for i := range d.Values {
		d.Values[i].Type = strings.ToUpper(strings.TrimSpace(d.Values[i].Type))
		if d.Values[i].Type == "" {
			d.Values[i].Type = string(ValueString)
		}
	}
}

// Validate reports structural problems in the definition.
func (d *Definition) Validate() error {
	var problems []error
	if d.Name == "" {
		problems = append(problems, errors.New("name is required"))
	}
	seen := make(map[string]struct{})
	claim := func(name string) {
		if name == "" {
			problems = append(problems, errors.New("every slot needs a name"))
			return
		}
		if _, ok := seen[name]; ok {
			problems = append(problems, fmt.Errorf("slot %q is declared more than once", name))
			return
		}
		seen[name] = struct{}{}
	}
	for _, prop := range d.Properties {
		claim(prop.Name)
		if len(prop.AllowedTypes) == 0 {
			problems = append(problems, fmt.Errorf("property %q needs at least one allowed type", prop.Name))
		}
	}
	for _, value := range d.Values {
		claim(value.Name)
		switch ValueType(value.Type) {
		case ValueString, ValueInteger, ValueFloat, ValueBoolean:
		default:
			problems = append(problems, fmt.Errorf("value %q has unsupported type %q", value.Name, value.Type))
		}
		if value.MinLength != nil && value.MaxLength != nil && *value.MinLength > *value.MaxLength {
			problems = append(problems, fmt.Errorf("value %q has min_length greater than max_length", value.Name))
		}
	}
	if len(problems) > 0 {
		return services.Wrap(services.ErrValidation, "job", "validate definition", d.Name, errors.Join(problems...))
	}
	return nil
}

// Template converts the definition into a template without remote
// identifiers. The registrar fills identifiers as it creates the nodes.
func (d *Definition) Template() Template {
	tmpl := Template{Name: d.Name, Description: d.Description}
	for _, prop := range d.Properties {
		tmpl.Properties = append(tmpl.Properties, PropertySlot{
			Name:         prop.Name,
			Description:  prop.Description,
			AllowedTypes: append([]string(nil), prop.AllowedTypes...),
			Required:     !prop.Optional,
		})
	}
	for _, value := range d.Values {
		tmpl.Values = append(tmpl.Values, ValueSlot{
			Name:        value.Name,
			Description: value.Description,
			Type:        ValueType(value.Type),
			Required:    !value.Optional,
			MinLength:   value.MinLength,
			MaxLength:   value.MaxLength,
			Pattern:     value.Pattern,
			Default:     value.Default,
		})
	}
	return tmpl
}
