package ops

import (
	"encoding/json"
	"fmt"
	"reflect"

	"jobgraph/internal/job"
	"jobgraph/internal/services"
)

// Created is the reply shape of every Create and Update archetype.
type Created struct {
	Identifier   string `json:"identifier"`
	ActionStatus string `json:"actionStatus"`
}

// DecodeField decodes data.<name> into out. Queries answer with a list; when
// out is not a slice the first element is used and an empty list reports
// ErrNotFound.
func DecodeField(data json.RawMessage, name string, out any) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return services.Wrap(services.ErrProtocolViolation, "ops", "decode reply", "data is not an object", err)
	}
	raw, ok := envelope[name]
	if !ok || string(raw) == "null" {
		return services.Wrap(services.ErrNotFound, "ops", "decode reply", fmt.Sprintf("reply has no %s", name), nil)
	}
	if len(raw) > 0 && raw[0] == '[' {
		if !wantsSlice(out) {
			var items []json.RawMessage
			if err := json.Unmarshal(raw, &items); err != nil {
				return services.Wrap(services.ErrProtocolViolation, "ops", "decode reply", name, err)
			}
			if len(items) == 0 {
				return services.Wrap(services.ErrNotFound, "ops", "decode reply", fmt.Sprintf("%s matched nothing", name), nil)
			}
			raw = items[0]
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return services.Wrap(services.ErrProtocolViolation, "ops", "decode reply", name, err)
	}
	return nil
}

func wantsSlice(out any) bool {
	t := reflect.TypeOf(out)
	return t != nil && t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Slice
}

type artifactNode struct {
	Typename   string `json:"__typename"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Source     string `json:"source"`
	ContentURL string `json:"contentUrl"`
	Format     string `json:"format"`
	InLanguage string `json:"inLanguage"`
}

func (n *artifactNode) artifact() *job.Artifact {
	if n == nil || n.Identifier == "" {
		return nil
	}
	return &job.Artifact{
		ID:         n.Identifier,
		Type:       job.ArtifactType(n.Typename),
		Name:       n.Name,
		Source:     n.Source,
		ContentURL: n.ContentURL,
		Format:     n.Format,
		Language:   n.InLanguage,
	}
}

// InstanceNode is the reply shape of QueryInstance and QueryStatus.
type InstanceNode struct {
	Identifier     string `json:"identifier"`
	ActionStatus   string `json:"actionStatus"`
	Error          string `json:"error"`
	WasDerivedFrom []struct {
		Identifier string `json:"identifier"`
	} `json:"wasDerivedFrom"`
	Object []struct {
		Typename   string        `json:"__typename"`
		Identifier string        `json:"identifier"`
		Name       string        `json:"name"`
		Value      string        `json:"value"`
		NodeValue  *artifactNode `json:"nodeValue"`
	} `json:"object"`
	Result []artifactNode `json:"result"`
}

// Instance converts the reply into a job instance. The first linked result
// and the first template reference win.
func (n InstanceNode) Instance() job.Instance {
	inst := job.Instance{
		ID:     n.Identifier,
		Status: job.ParseStatus(n.ActionStatus),
		Error:  n.Error,
	}
	if len(n.WasDerivedFrom) > 0 {
		inst.TemplateID = n.WasDerivedFrom[0].Identifier
	}
	for _, obj := range n.Object {
		inst.Bound = append(inst.Bound, job.BoundObject{
			ID:    obj.Identifier,
			Name:  obj.Name,
			Value: obj.Value,
			Node:  obj.NodeValue.artifact(),
		})
	}
	if len(n.Result) > 0 {
		inst.Result = n.Result[0].artifact()
	}
	return inst
}

// TemplateNode is the reply shape of QueryTemplate.
type TemplateNode struct {
	Identifier  string `json:"identifier"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Object      []struct {
		Typename       string   `json:"__typename"`
		Identifier     string   `json:"identifier"`
		Title          string   `json:"title"`
		Description    string   `json:"description"`
		RangeIncludes  []string `json:"rangeIncludes"`
		ValueRequired  bool     `json:"valueRequired"`
		ValueMinLength *int     `json:"valueMinLength"`
		ValueMaxLength *int     `json:"valueMaxLength"`
		ValuePattern   string   `json:"valuePattern"`
		DefaultValue   string   `json:"defaultValue"`
		AdditionalType string   `json:"additionalType"`
	} `json:"object"`
}

// Template converts the reply into a template. Properties are always
// required; the store does not record optional node inputs.
func (n TemplateNode) Template(entryPointID string) job.Template {
	tmpl := job.Template{
		EntryPointID: entryPointID,
		ID:           n.Identifier,
		Name:         n.Name,
		Description:  n.Description,
	}
	for _, obj := range n.Object {
		switch obj.Typename {
		case TypeProperty:
			tmpl.Properties = append(tmpl.Properties, job.PropertySlot{
				ID:           obj.Identifier,
				Name:         obj.Title,
				Description:  obj.Description,
				AllowedTypes: obj.RangeIncludes,
				Required:     true,
			})
		case TypePropertyValueSpecification:
			valueType := job.ValueType(obj.AdditionalType)
			if valueType == "" {
				valueType = job.ValueString
			}
			tmpl.Values = append(tmpl.Values, job.ValueSlot{
				ID:          obj.Identifier,
				Name:        obj.Title,
				Description: obj.Description,
				Type:        valueType,
				Required:    obj.ValueRequired,
				MinLength:   obj.ValueMinLength,
				MaxLength:   obj.ValueMaxLength,
				Pattern:     obj.ValuePattern,
				Default:     obj.DefaultValue,
			})
		}
	}
	return tmpl
}

// RequestEvent is the payload pushed for EventControlActionRequest.
type RequestEvent struct {
	Identifier string `json:"identifier"`
}
