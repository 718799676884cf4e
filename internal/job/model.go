package job

// ArtifactType is the node type of a content-bearing artifact.
type ArtifactType string

const (
	ArtifactDigitalDocument ArtifactType = "DigitalDocument"
	ArtifactMediaObject     ArtifactType = "MediaObject"
	ArtifactAudioObject     ArtifactType = "AudioObject"
)

// ValidArtifactType reports whether t is one of the artifact node types.
func ValidArtifactType(t ArtifactType) bool {
	switch t {
	case ArtifactDigitalDocument, ArtifactMediaObject, ArtifactAudioObject:
		return true
	}
	return false
}

// ValueType is the wire-type tag of a literal binding.
type ValueType string

const (
	ValueString  ValueType = "STRING"
	ValueInteger ValueType = "INTEGER"
	ValueFloat   ValueType = "FLOAT"
	ValueBoolean ValueType = "BOOLEAN"
)

// Artifact is a content-bearing node used as job input or output.
type Artifact struct {
	ID         string       `json:"identifier"`
	Type       ArtifactType `json:"__typename"`
	Name       string       `json:"name"`
	Source     string       `json:"source"`
	ContentURL string       `json:"contentUrl"`
	Format     string       `json:"format"`
	Language   string       `json:"inLanguage"`
}

// Location returns the URL content should be fetched from.
func (a Artifact) Location() string {
	if a.ContentURL != "" {
		return a.ContentURL
	}
	return a.Source
}

// PropertySlot is a node-reference input declared by a template.
type PropertySlot struct {
	ID           string
	Name         string
	Description  string
	AllowedTypes []string
	Required     bool
}

// ValueSlot is a literal input declared by a template.
type ValueSlot struct {
	ID          string
	Name        string
	Description string
	Type        ValueType
	Required    bool
	MinLength   *int
	MaxLength   *int
	Pattern     string
	Default     string
}

// Template is a ControlAction definition bound to an EntryPoint.
type Template struct {
	EntryPointID string
	ID           string
	Name         string
	Description  string
	Properties   []PropertySlot
	Values       []ValueSlot
}

// Property returns the node-reference slot with the given name.
func (t Template) Property(name string) (PropertySlot, bool) {
	for _, slot := range t.Properties {
		if slot.Name == name {
			return slot, true
		}
	}
	return PropertySlot{}, false
}

// Value returns the literal slot with the given name.
func (t Template) Value(name string) (ValueSlot, bool) {
	for _, slot := range t.Values {
		if slot.Name == name {
			return slot, true
		}
	}
	return ValueSlot{}, false
}

// NodeBinding binds a node in the store to a Property slot.
type NodeBinding struct {
	Slot     string
	NodeID   string
	NodeType ArtifactType
}

// ValueBinding binds a literal to a PropertyValueSpecification slot.
type ValueBinding struct {
	Slot  string
	Value string
	Type  ValueType
}

// BoundObject is one input recorded on an instance: either a node reference
// (Node set) or a literal value.
type BoundObject struct {
	ID    string
	Name  string
	Value string
	Node  *Artifact
}

// Inputs are an instance's bound objects partitioned against its template.
type Inputs struct {
	Nodes  map[string]Artifact
	Values map[string]string
}

// Instance is one job request and its state.
type Instance struct {
	ID         string
	TemplateID string
	Status     Status
	Bound      []BoundObject
	Result     *Artifact
	Error      string
}
