package ops

import (
	"fmt"
	"strings"

	"jobgraph/internal/services"
	"jobgraph/internal/wire"
)

// Kind classifies an operation and selects its envelope.
type Kind int

const (
	KindCreate Kind = iota
	KindUpdate
	KindDelete
	KindAdd
	KindMerge
	KindRemove
	KindQuery
	KindSubscribe
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "Create"
	case KindUpdate:
		return "Update"
	case KindDelete:
		return "Delete"
	case KindAdd:
		return "Add"
	case KindMerge:
		return "Merge"
	case KindRemove:
		return "Remove"
	case KindQuery:
		return "Query"
	case KindSubscribe:
		return "Subscribe"
	default:
		return "Unknown"
	}
}

// Envelope returns the document keyword that wraps operations of kind k.
func (k Kind) Envelope() string {
	switch k {
	case KindQuery:
		return "query"
	case KindSubscribe:
		return "subscription"
	default:
		return "mutation"
	}
}

// Operation is one named remote call.
type Operation struct {
	Name   string
	Kind   Kind
	Params wire.Fields
	Return []string
}

// Document renders the operation with the default encoder.
func (o Operation) Document() (string, error) {
	return o.Render(wire.Encoder{})
}

// Render renders the operation with enc:
//
//	mutation {
//	  Name(params) {
//	    fields
//	  }
//	}
func (o Operation) Render(enc wire.Encoder) (string, error) {
	name := strings.TrimSpace(o.Name)
	if name == "" {
		return "", services.Wrap(services.ErrEncoding, "ops", "render", "operation name is required", nil)
	}
	if len(o.Return) == 0 {
		return "", services.Wrap(services.ErrEncoding, "ops", "render", fmt.Sprintf("%s requests no return fields", name), nil)
	}
	params, err := enc.EncodeFields(o.Params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}

	var b strings.Builder
	b.WriteString(o.Kind.Envelope())
	b.WriteString(" {\n  ")
	b.WriteString(name)
	if params != "" {
		b.WriteString("(")
		b.WriteString(params)
		b.WriteString(")")
	}
	b.WriteString(" {\n")
	for _, field := range o.Return {
		for _, line := range strings.Split(field, "\n") {
			b.WriteString("    ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	b.WriteString("  }\n}")
	return b.String(), nil
}

// Nested renders a selection of sub-fields under name, for use in Return.
func Nested(name string, fields ...string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteString(" {\n")
	for _, field := range fields {
		for _, line := range strings.Split(field, "\n") {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	b.WriteString("}")
	return b.String()
}

// On renders an inline fragment selecting fields when the node has typeName.
func On(typeName string, fields ...string) string {
	return Nested("... on "+typeName, fields...)
}
