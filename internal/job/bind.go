package job

import (
	"fmt"
	"strings"

	"jobgraph/internal/services"
)

// ValidateValues checks literal bindings against the template before a
// request is sent. A required value slot must be bound to a non-empty value;
// it may be left unbound only when it has a default. Length bounds and
// patterns are not enforced.
func (t Template) ValidateValues(values []ValueBinding) error {
	bound := make(map[string]string, len(values))
	for _, binding := range values {
		bound[binding.Slot] = binding.Value
	}
	for _, slot := range t.Values {
		if !slot.Required {
			continue
		}
		value, ok := bound[slot.Name]
		if !ok && slot.Default != "" {
			continue
		}
		if strings.TrimSpace(value) == "" {
			return services.Wrap(services.ErrMissingRequiredValue, "job", "validate request",
				fmt.Sprintf("required value %q is missing or empty", slot.Name), nil)
		}
	}
	return nil
}

// Partition splits an instance's bound objects into node-reference and
// literal inputs keyed by the template's slot names. Objects whose name
// matches no slot are ignored. A required slot without a binding yields
// ErrMissingRequiredValue. Node types are not checked against AllowedTypes.
func (t Template) Partition(bound []BoundObject) (Inputs, error) {
	inputs := Inputs{
		Nodes:  make(map[string]Artifact),
		Values: make(map[string]string),
	}
	for _, obj := range bound {
		if _, ok := t.Property(obj.Name); ok {
			if obj.Node != nil {
				inputs.Nodes[obj.Name] = *obj.Node
			}
			continue
		}
		if _, ok := t.Value(obj.Name); ok {
			inputs.Values[obj.Name] = obj.Value
		}
	}

	for _, slot := range t.Properties {
		if !slot.Required {
			continue
		}
		node, ok := inputs.Nodes[slot.Name]
		if !ok || node.Location() == "" {
			return inputs, services.Wrap(services.ErrMissingRequiredValue, "job", "resolve inputs",
				fmt.Sprintf("required input %q is not bound to a node with content", slot.Name), nil)
		}
	}
	for _, slot := range t.Values {
		if !slot.Required {
			continue
		}
		if strings.TrimSpace(inputs.Values[slot.Name]) == "" {
			if slot.Default != "" {
				inputs.Values[slot.Name] = slot.Default
				continue
			}
			return inputs, services.Wrap(services.ErrMissingRequiredValue, "job", "resolve inputs",
				fmt.Sprintf("required value %q is missing or empty", slot.Name), nil)
		}
	}
	for _, slot := range t.Values {
		if _, ok := inputs.Values[slot.Name]; !ok && slot.Default != "" {
			inputs.Values[slot.Name] = slot.Default
		}
	}
	return inputs, nil
}
