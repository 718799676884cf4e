package ops

import (
	"fmt"

	"jobgraph/internal/job"
	"jobgraph/internal/services"
	"jobgraph/internal/wire"
)

// Node types and relations of the job lifecycle graph.
const (
	TypeEntryPoint                 = "EntryPoint"
	TypeControlAction              = "ControlAction"
	TypeProperty                   = "Property"
	TypePropertyValueSpecification = "PropertyValueSpecification"

	RelationEntryPointPotentialAction = "EntryPointPotentialAction"
	RelationControlActionObject       = "ControlActionObject"
	RelationControlActionResult       = "ControlActionResult"

	// EventControlActionRequest is pushed when a job is requested on an
	// entry point.
	EventControlActionRequest = "ControlActionRequest"
)

// CreateEntryPoint creates the invocation point for a job.
func CreateEntryPoint(ep job.EntryPointDefinition) Operation {
	return Create(TypeEntryPoint, wire.Fields{
		{Name: "name", Value: wire.String(ep.Name)},
		{Name: "description", Value: wire.NonEmpty(ep.Description)},
		{Name: "actionPlatform", Value: wire.NonEmpty(ep.ActionPlatform)},
		{Name: "contentType", Value: listOrUnset(ep.ContentType)},
		{Name: "encodingType", Value: listOrUnset(ep.EncodingType)},
		{Name: "formatIn", Value: wire.NonEmpty(ep.FormatIn)},
		{Name: "formatOut", Value: wire.NonEmpty(ep.FormatOut)},
	})
}

// CreateControlActionTemplate creates the ControlAction a job's requests
// are derived from.
func CreateControlActionTemplate(name, description string) Operation {
	return Create(TypeControlAction, wire.Fields{
		{Name: "name", Value: wire.String(name)},
		{Name: "description", Value: wire.NonEmpty(description)},
		{Name: "actionStatus", Value: wire.Enum(job.ActionPotential)},
	})
}

// CreateProperty creates a node-reference input slot. Allowed types are
// emitted as enum tokens.
func CreateProperty(slot job.PropertySlot) Operation {
	return Create(TypeProperty, wire.Fields{
		{Name: "title", Value: wire.String(slot.Name)},
		{Name: "description", Value: wire.NonEmpty(slot.Description)},
		{Name: "rangeIncludes", Value: wire.Enums(slot.AllowedTypes...)},
	})
}

// CreatePropertyValueSpecification creates a literal input slot.
func CreatePropertyValueSpecification(slot job.ValueSlot) Operation {
	return Create(TypePropertyValueSpecification, wire.Fields{
		{Name: "title", Value: wire.String(slot.Name)},
		{Name: "description", Value: wire.NonEmpty(slot.Description)},
		{Name: "valueRequired", Value: wire.Bool(slot.Required)},
		{Name: "valueMinLength", Value: wire.OptInt(slot.MinLength)},
		{Name: "valueMaxLength", Value: wire.OptInt(slot.MaxLength)},
		{Name: "valuePattern", Value: wire.NonEmpty(slot.Pattern)},
		{Name: "defaultValue", Value: wire.NonEmpty(slot.Default)},
		{Name: "additionalType", Value: valueTypeEnum(slot.Type)},
	})
}

// LinkEntryPointAction attaches the ControlAction template to its entry point.
func LinkEntryPointAction(entryPointID, templateID string) (Operation, error) {
	if err := requireIDs("link entry point", "entry point identifier", entryPointID, "template identifier", templateID); err != nil {
		return Operation{}, err
	}
	return Merge(RelationEntryPointPotentialAction, entryPointID, templateID), nil
}

// LinkTemplateSlot attaches a Property or PropertyValueSpecification to the
// template.
func LinkTemplateSlot(templateID, slotID string) (Operation, error) {
	if err := requireIDs("link template slot", "template identifier", templateID, "slot identifier", slotID); err != nil {
		return Operation{}, err
	}
	return Merge(RelationControlActionObject, templateID, slotID), nil
}

// LinkResult records artifactID as the result of the job instance.
func LinkResult(instanceID, artifactID string) (Operation, error) {
	if err := requireIDs("link result", "job identifier", instanceID, "artifact identifier", artifactID); err != nil {
		return Operation{}, err
	}
	return Merge(RelationControlActionResult, instanceID, artifactID), nil
}

// RequestControlAction builds the request that creates a job instance from
// tmpl. Bindings are matched to slots by name. Literal bindings carry their
// wire type as an enum token.
func RequestControlAction(tmpl job.Template, nodes []job.NodeBinding, values []job.ValueBinding) (Operation, error) {
	if err := requireIDs("request job", "entry point identifier", tmpl.EntryPointID, "template identifier", tmpl.ID); err != nil {
		return Operation{}, err
	}

	nodeItems := make(wire.List, 0, len(nodes))
	for _, binding := range nodes {
		slot, ok := tmpl.Property(binding.Slot)
		if !ok {
			return Operation{}, services.Wrap(services.ErrValidation, "ops", "request job",
				fmt.Sprintf("template has no input %q", binding.Slot), nil)
		}
		if err := requireIDs("request job", "input "+slot.Name+" identifier", slot.ID, "node identifier for "+slot.Name, binding.NodeID); err != nil {
			return Operation{}, err
		}
		nodeType := binding.NodeType
		if nodeType == "" {
			nodeType = job.ArtifactDigitalDocument
		}
		nodeItems = append(nodeItems, wire.Object{
			{Name: "potentialActionPropertyIdentifier", Value: wire.String(slot.ID)},
			{Name: "nodeIdentifier", Value: wire.String(binding.NodeID)},
			{Name: "nodeType", Value: wire.Enum(nodeType)},
		})
	}

	valueItems := make(wire.List, 0, len(values))
	for _, binding := range values {
		slot, ok := tmpl.Value(binding.Slot)
		if !ok {
			return Operation{}, services.Wrap(services.ErrValidation, "ops", "request job",
				fmt.Sprintf("template has no value %q", binding.Slot), nil)
		}
		if err := requireIDs("request job", "value "+slot.Name+" identifier", slot.ID); err != nil {
			return Operation{}, err
		}
		valueType := binding.Type
		if valueType == "" {
			valueType = slot.Type
		}
		valueItems = append(valueItems, wire.Object{
			{Name: "potentialActionPropertyValueSpecificationIdentifier", Value: wire.String(slot.ID)},
			{Name: "value", Value: wire.String(binding.Value)},
			{Name: "valueDataType", Value: valueTypeEnum(valueType)},
		})
	}

	return Operation{
		Name: "RequestControlAction",
		Kind: KindCreate,
		Params: wire.Fields{
			{Name: "controlAction", Value: wire.Object{
				{Name: "entryPointIdentifier", Value: wire.String(tmpl.EntryPointID)},
				{Name: "potentialActionIdentifier", Value: wire.String(tmpl.ID)},
				{Name: "propertyObject", Value: nodeItems},
				{Name: "propertyValueObject", Value: valueItems},
			}},
		},
		Return: []string{IdentifierField, "actionStatus"},
	}, nil
}

// UpdateStatus sets the status of a job instance. errText is written only
// when non-nil. Completed updates request the linked result back.
func UpdateStatus(instanceID string, status job.Status, errText *string) (Operation, error) {
	if err := requireIDs("update status", "job identifier", instanceID); err != nil {
		return Operation{}, err
	}
	action := status.ActionStatus()
	if action == "" {
		return Operation{}, services.Wrap(services.ErrUnsupportedValue, "ops", "update status",
			fmt.Sprintf("status %v has no action status", status), nil)
	}
	returns := []string{"actionStatus"}
	if status == job.StatusCompleted {
		returns = append(returns, Nested("result", artifactSelection()...))
	}
	return Update(TypeControlAction, instanceID, wire.Fields{
		{Name: "actionStatus", Value: wire.Enum(action)},
		{Name: "error", Value: wire.OptString(errText)},
	}, returns...), nil
}

// QueryInstance reads a job instance with its bound inputs and result.
func QueryInstance(instanceID string) Operation {
	return Query(TypeControlAction, byIdentifier(instanceID),
		IdentifierField,
		"actionStatus",
		"error",
		Nested("wasDerivedFrom", IdentifierField),
		Nested("object",
			"__typename",
			On("PropertyValue",
				IdentifierField,
				"name",
				"value",
				Nested("nodeValue", artifactSelection()...),
			),
		),
		Nested("result", artifactSelection()...),
	)
}

// QueryStatus reads only the status fields of a job instance.
func QueryStatus(instanceID string) Operation {
	return Query(TypeControlAction, byIdentifier(instanceID),
		IdentifierField,
		"actionStatus",
		"error",
		Nested("result", artifactSelection()...),
	)
}

// QueryTemplate reads a ControlAction template and its declared slots.
func QueryTemplate(templateID string) Operation {
	return Query(TypeControlAction, byIdentifier(templateID),
		IdentifierField,
		"name",
		"description",
		Nested("object",
			"__typename",
			On(TypeProperty, IdentifierField, "title", "description", "rangeIncludes"),
			On(TypePropertyValueSpecification, IdentifierField, "title", "description",
				"valueRequired", "valueMinLength", "valueMaxLength", "valuePattern", "defaultValue", "additionalType"),
		),
	)
}

// SubscribeRequests subscribes to job requests made on one entry point.
func SubscribeRequests(entryPointID string) (Operation, error) {
	if err := requireIDs("subscribe", "entry point identifier", entryPointID); err != nil {
		return Operation{}, err
	}
	return Subscribe(EventControlActionRequest, wire.Fields{
		{Name: "entryPointIdentifier", Value: wire.String(entryPointID)},
	}, IdentifierField), nil
}

// Ping is the smallest valid query, used to check the store is reachable.
func Ping() string {
	return "query { __typename }"
}

func byIdentifier(id string) wire.Fields {
	return wire.Fields{{Name: IdentifierField, Value: wire.String(id)}}
}

func artifactSelection() []string {
	fields := []string{IdentifierField, "name", "source", "contentUrl", "format", "inLanguage"}
	return []string{
		"__typename",
		On(string(job.ArtifactDigitalDocument), fields...),
		On(string(job.ArtifactMediaObject), fields...),
		On(string(job.ArtifactAudioObject), fields...),
	}
}

func valueTypeEnum(t job.ValueType) wire.Value {
	if t == "" {
		return wire.Enum(job.ValueString)
	}
	return wire.Enum(t)
}

func listOrUnset(value string) wire.Value {
	if value == "" {
		return wire.Unset
	}
	return wire.Strings(value)
}
